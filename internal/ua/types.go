package ua

import (
	"fmt"
	"strconv"
	"strings"
)

// NodeClass is the class of a node. Values match the OPC UA bit mask.
type NodeClass uint32

const (
	NodeClassUnspecified   NodeClass = 0
	NodeClassObject        NodeClass = 1
	NodeClassVariable      NodeClass = 2
	NodeClassMethod        NodeClass = 4
	NodeClassObjectType    NodeClass = 8
	NodeClassVariableType  NodeClass = 16
	NodeClassReferenceType NodeClass = 32
	NodeClassDataType      NodeClass = 64
	NodeClassView          NodeClass = 128
)

var nodeClassNames = map[NodeClass]string{
	NodeClassObject:        "Object",
	NodeClassVariable:      "Variable",
	NodeClassMethod:        "Method",
	NodeClassObjectType:    "ObjectType",
	NodeClassVariableType:  "VariableType",
	NodeClassReferenceType: "ReferenceType",
	NodeClassDataType:      "DataType",
	NodeClassView:          "View",
}

func (c NodeClass) String() string {
	if name, ok := nodeClassNames[c]; ok {
		return name
	}
	return "Unspecified"
}

// Valid reports whether c is one of the eight concrete node classes.
func (c NodeClass) Valid() bool {
	_, ok := nodeClassNames[c]
	return ok
}

// ParseNodeClass parses a node class name, case-insensitively.
func ParseNodeClass(s string) (NodeClass, error) {
	for c, name := range nodeClassNames {
		if strings.EqualFold(name, s) {
			return c, nil
		}
	}
	return NodeClassUnspecified, fmt.Errorf("unknown node class: %s", s)
}

// LocalizedText is human readable text with an optional locale.
type LocalizedText struct {
	Locale string `json:"locale,omitempty" yaml:"locale,omitempty"`
	Text   string `json:"text" yaml:"text"`
}

// NewLocalizedText returns a LocalizedText.
func NewLocalizedText(locale, text string) LocalizedText {
	return LocalizedText{Locale: locale, Text: text}
}

func (t LocalizedText) String() string {
	if t.Locale == "" {
		return t.Text
	}
	return t.Locale + ":" + t.Text
}

// QualifiedName is a namespace-qualified browse name.
type QualifiedName struct {
	NamespaceIndex uint16
	Name           string
}

// NewQualifiedName returns a QualifiedName.
func NewQualifiedName(ns uint16, name string) QualifiedName {
	return QualifiedName{NamespaceIndex: ns, Name: name}
}

// String formats q as "ns:name", omitting the namespace when it is 0.
func (q QualifiedName) String() string {
	if q.NamespaceIndex == 0 {
		return q.Name
	}
	return strconv.FormatUint(uint64(q.NamespaceIndex), 10) + ":" + q.Name
}

// ParseQualifiedName parses "ns:name" or a bare name in namespace 0.
func ParseQualifiedName(s string) QualifiedName {
	if idx := strings.IndexByte(s, ':'); idx > 0 {
		if ns, err := strconv.ParseUint(s[:idx], 10, 16); err == nil {
			return QualifiedName{NamespaceIndex: uint16(ns), Name: s[idx+1:]}
		}
	}
	return QualifiedName{Name: s}
}

// MarshalText implements encoding.TextMarshaler.
func (q QualifiedName) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (q *QualifiedName) UnmarshalText(text []byte) error {
	*q = ParseQualifiedName(string(text))
	return nil
}

// AccessLevel is the access level bit mask of a Variable.
type AccessLevel uint8

const (
	AccessLevelCurrentRead  AccessLevel = 1 << 0
	AccessLevelCurrentWrite AccessLevel = 1 << 1
	AccessLevelHistoryRead  AccessLevel = 1 << 2
	AccessLevelHistoryWrite AccessLevel = 1 << 3
)

// AccessLevelReadWrite is the default access level of new variables.
const AccessLevelReadWrite = AccessLevelCurrentRead | AccessLevelCurrentWrite

// Has reports whether all bits of flag are set.
func (a AccessLevel) Has(flag AccessLevel) bool {
	return a&flag == flag
}

// ParseAccessLevel parses a list such as ["read", "write", "history"].
func ParseAccessLevel(flags []string) (AccessLevel, error) {
	var a AccessLevel
	for _, f := range flags {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "read":
			a |= AccessLevelCurrentRead
		case "write":
			a |= AccessLevelCurrentWrite
		case "history", "historyread":
			a |= AccessLevelHistoryRead
		case "historywrite":
			a |= AccessLevelHistoryWrite
		default:
			return 0, fmt.Errorf("unknown access level flag: %s", f)
		}
	}
	return a, nil
}
