package ua

import (
	"fmt"
	"strings"
	"sync"
)

// NamespaceURI is the URI of namespace 0.
const NamespaceURI = "http://opcfoundation.org/UA/"

// Well-known nodes of namespace 0.
var (
	RootFolder    = NewNumericNodeID(0, 84)
	ObjectsFolder = NewNumericNodeID(0, 85)
	TypesFolder   = NewNumericNodeID(0, 86)
	ViewsFolder   = NewNumericNodeID(0, 87)

	ObjectTypesFolder    = NewNumericNodeID(0, 88)
	VariableTypesFolder  = NewNumericNodeID(0, 89)
	ReferenceTypesFolder = NewNumericNodeID(0, 91)

	BaseObjectType       = NewNumericNodeID(0, 58)
	FolderType           = NewNumericNodeID(0, 61)
	BaseDataVariableType = NewNumericNodeID(0, 63)
	ServerType           = NewNumericNodeID(0, 2004)

	Server                  = NewNumericNodeID(0, 2253)
	ServerStatus            = NewNumericNodeID(0, 2256)
	ServerStatusStartTime   = NewNumericNodeID(0, 2257)
	ServerStatusCurrentTime = NewNumericNodeID(0, 2258)
	ServerStatusState       = NewNumericNodeID(0, 2259)

	ReferencesRefType         = NewNumericNodeID(0, 31)
	NonHierarchicalReferences = NewNumericNodeID(0, 32)
	HierarchicalReferences    = NewNumericNodeID(0, 33)
	HasChild                  = NewNumericNodeID(0, 34)
	Organizes                 = NewNumericNodeID(0, 35)
	HasTypeDefinition         = NewNumericNodeID(0, 40)
	Aggregates                = NewNumericNodeID(0, 44)
	HasSubtype                = NewNumericNodeID(0, 45)
	HasProperty               = NewNumericNodeID(0, 46)
	HasComponent              = NewNumericNodeID(0, 47)
)

// ServerState values written to Server/ServerStatus/State.
const (
	ServerStateRunning  int32 = 0
	ServerStateShutdown int32 = 4
	ServerStateUnknown  int32 = 7
)

var referenceTypeNames = map[string]NodeID{
	"References":                ReferencesRefType,
	"NonHierarchicalReferences": NonHierarchicalReferences,
	"HierarchicalReferences":    HierarchicalReferences,
	"HasChild":                  HasChild,
	"Organizes":                 Organizes,
	"HasTypeDefinition":         HasTypeDefinition,
	"Aggregates":                Aggregates,
	"HasSubtype":                HasSubtype,
	"HasProperty":               HasProperty,
	"HasComponent":              HasComponent,
}

// ParseReferenceType resolves a standard reference type name such as
// "Organizes", or parses s as a node id.
func ParseReferenceType(s string) (NodeID, error) {
	for name, id := range referenceTypeNames {
		if strings.EqualFold(name, s) {
			return id, nil
		}
	}
	id, err := ParseNodeID(s)
	if err != nil {
		return NodeID{}, fmt.Errorf("unknown reference type %q: %w", s, err)
	}
	return id, nil
}

// NamespaceTable maps namespace indexes to URIs. Index 0 is always the
// OPC UA namespace.
type NamespaceTable struct {
	mu   sync.RWMutex
	uris []string
}

// NewNamespaceTable returns a table holding only namespace 0.
func NewNamespaceTable() *NamespaceTable {
	return &NamespaceTable{uris: []string{NamespaceURI}}
}

// Register returns the index of uri, appending it when absent.
func (t *NamespaceTable) Register(uri string) uint16 {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, u := range t.uris {
		if u == uri {
			return uint16(i)
		}
	}
	t.uris = append(t.uris, uri)
	return uint16(len(t.uris) - 1)
}

// Index returns the index of uri.
func (t *NamespaceTable) Index(uri string) (uint16, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i, u := range t.uris {
		if u == uri {
			return uint16(i), true
		}
	}
	return 0, false
}

// URI returns the URI registered at index i.
func (t *NamespaceTable) URI(i uint16) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if int(i) >= len(t.uris) {
		return "", false
	}
	return t.uris[i], true
}

// URIs returns a copy of all registered URIs in index order.
func (t *NamespaceTable) URIs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.uris...)
}
