package model

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"uaspace/internal/addrspace"
	"uaspace/internal/logger"
	"uaspace/internal/ua"
)

const logScope = "model"

//go:embed default.yaml
var defaultModel []byte

// File is an information model document. Node ids use namespace indexes
// local to the file: index i refers to Namespaces[i-1]. A file without
// Namespaces uses the server's indexes directly.
type File struct {
	Namespaces []string    `yaml:"namespaces" json:"namespaces"`
	Nodes      []NodeDef   `yaml:"nodes" json:"nodes"`
	References []Reference `yaml:"references" json:"references"`
}

// NodeDef describes one node.
type NodeDef struct {
	ID             string   `yaml:"id" json:"id"`
	Class          string   `yaml:"class" json:"class"`
	BrowseName     string   `yaml:"browse_name" json:"browse_name"`
	DisplayName    string   `yaml:"display_name" json:"display_name"`
	Description    string   `yaml:"description" json:"description"`
	Locale         string   `yaml:"locale" json:"locale"`
	Parent         string   `yaml:"parent" json:"parent"`
	ReferenceType  string   `yaml:"reference_type" json:"reference_type"`
	TypeDefinition string   `yaml:"type_definition" json:"type_definition"`
	DataType       string   `yaml:"data_type" json:"data_type"`
	Value          any      `yaml:"value" json:"value"`
	AccessLevel    []string `yaml:"access_level" json:"access_level"`
	Historizing    bool     `yaml:"historizing" json:"historizing"`
}

// Reference describes a reference between two nodes. Forward defaults to
// true.
type Reference struct {
	Source  string `yaml:"source" json:"source"`
	Target  string `yaml:"target" json:"target"`
	Type    string `yaml:"type" json:"type"`
	Forward *bool  `yaml:"forward" json:"forward"`
}

// Stats counts what Apply changed.
type Stats struct {
	Nodes      int `json:"nodes"`
	References int `json:"references"`
	Skipped    int `json:"skipped"`
}

// Parse decodes a model document. format is "yaml" or "json".
func Parse(data []byte, format string) (*File, error) {
	f := &File{}
	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, f); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(f); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported model format: %s", format)
	}
	return f, nil
}

// Load reads a model file, choosing the format by extension.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	return Parse(data, formatOf(path))
}

// Default returns the built-in model.
func Default() *File {
	f, err := Parse(defaultModel, "yaml")
	if err != nil {
		panic(fmt.Sprintf("model: embedded default model is invalid: %v", err))
	}
	return f
}

// Supported reports whether path has a model file extension.
func Supported(path string) bool {
	switch formatOf(path) {
	case "yaml", "yml", "json":
		return true
	}
	return false
}

func formatOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

type compiled struct {
	spec    addrspace.NodeSpec
	parent  ua.NodeID
	refType ua.NodeID
}

type compiledRef struct {
	source, target, refType ua.NodeID
	forward                 bool
}

// resolver maps file-local namespace indexes to server indexes.
type resolver struct {
	index []uint16
}

func newResolver(f *File, ns *ua.NamespaceTable) resolver {
	if len(f.Namespaces) == 0 {
		return resolver{}
	}
	r := resolver{index: make([]uint16, len(f.Namespaces)+1)}
	for i, uri := range f.Namespaces {
		r.index[i+1] = ns.Register(uri)
	}
	return r
}

func (r resolver) nodeID(s string) (ua.NodeID, error) {
	id, err := ua.ParseNodeID(s)
	if err != nil {
		return ua.NodeID{}, err
	}
	return r.remap(id)
}

func (r resolver) remap(id ua.NodeID) (ua.NodeID, error) {
	if r.index == nil || id.Namespace() == 0 {
		return id, nil
	}
	if int(id.Namespace()) >= len(r.index) {
		return ua.NodeID{}, fmt.Errorf("namespace index %d not declared in model", id.Namespace())
	}
	return id.WithNamespace(r.index[id.Namespace()]), nil
}

func (r resolver) refType(s string) (ua.NodeID, error) {
	if s == "" {
		return ua.Organizes, nil
	}
	id, err := ua.ParseReferenceType(s)
	if err != nil {
		return ua.NodeID{}, err
	}
	return r.remap(id)
}

// compile validates f and converts it to node specs without touching the
// address space beyond namespace registration.
func (f *File) compile(ns *ua.NamespaceTable) ([]compiled, []compiledRef, error) {
	r := newResolver(f, ns)

	nodes := make([]compiled, 0, len(f.Nodes))
	for i, def := range f.Nodes {
		c, err := def.compile(r)
		if err != nil {
			return nil, nil, fmt.Errorf("node %d (%s): %w", i, def.ID, err)
		}
		nodes = append(nodes, c)
	}

	refs := make([]compiledRef, 0, len(f.References))
	for i, ref := range f.References {
		c, err := ref.compile(r)
		if err != nil {
			return nil, nil, fmt.Errorf("reference %d: %w", i, err)
		}
		refs = append(refs, c)
	}
	return nodes, refs, nil
}

func (d NodeDef) compile(r resolver) (compiled, error) {
	var out compiled

	id, err := r.nodeID(d.ID)
	if err != nil {
		return out, err
	}
	class, err := ua.ParseNodeClass(d.Class)
	if err != nil {
		return out, err
	}

	name := d.BrowseName
	if name == "" {
		if s, ok := id.StringID(); ok {
			name = s
		} else {
			name = id.String()
		}
	}
	display := d.DisplayName
	if display == "" {
		display = name
	}

	spec := addrspace.NodeSpec{
		ID:          id,
		Class:       class,
		BrowseName:  ua.NewQualifiedName(id.Namespace(), name),
		DisplayName: ua.NewLocalizedText(d.Locale, display),
		Attributes:  map[ua.AttributeID]ua.Variant{},
	}
	if d.Description != "" {
		spec.Description = ua.NewLocalizedText(d.Locale, d.Description)
	}

	if d.TypeDefinition != "" {
		if spec.TypeDefinition, err = r.nodeID(d.TypeDefinition); err != nil {
			return out, fmt.Errorf("type_definition: %w", err)
		}
	} else if class == ua.NodeClassVariable {
		spec.TypeDefinition = ua.BaseDataVariableType
	}

	if d.Value != nil {
		v, err := valueOf(d.DataType, d.Value)
		if err != nil {
			return out, fmt.Errorf("value: %w", err)
		}
		spec.Attributes[ua.AttrValue] = v
	} else if d.DataType != "" {
		t, err := ua.ParseTypeID(d.DataType)
		if err != nil {
			return out, err
		}
		spec.Attributes[ua.AttrDataType] = ua.NewNodeIDVariant(t.DataTypeNodeID())
	}

	if len(d.AccessLevel) > 0 {
		al, err := ua.ParseAccessLevel(d.AccessLevel)
		if err != nil {
			return out, err
		}
		spec.Attributes[ua.AttrAccessLevel] = ua.NewByte(uint8(al))
	}
	if d.Historizing {
		spec.Attributes[ua.AttrHistorizing] = ua.NewBoolean(true)
	}

	out.spec = spec
	if d.Parent != "" {
		if out.parent, err = r.nodeID(d.Parent); err != nil {
			return out, fmt.Errorf("parent: %w", err)
		}
		if out.refType, err = r.refType(d.ReferenceType); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (ref Reference) compile(r resolver) (compiledRef, error) {
	var out compiledRef
	var err error

	if out.source, err = r.nodeID(ref.Source); err != nil {
		return out, fmt.Errorf("source: %w", err)
	}
	if out.target, err = r.nodeID(ref.Target); err != nil {
		return out, fmt.Errorf("target: %w", err)
	}
	if ref.Type == "" {
		return out, errors.New("reference type is required")
	}
	if out.refType, err = r.refType(ref.Type); err != nil {
		return out, err
	}
	out.forward = ref.Forward == nil || *ref.Forward
	return out, nil
}

// valueOf builds a Variant from a decoded value. Without an explicit data
// type the tag is inferred: integers become Int32 when they fit and Int64
// otherwise, other numbers Double.
func valueOf(dataType string, raw any) (ua.Variant, error) {
	if dataType != "" {
		t, err := ua.ParseTypeID(dataType)
		if err != nil {
			return ua.Variant{}, err
		}
		return ua.VariantFrom(t, raw)
	}

	switch v := raw.(type) {
	case bool:
		return ua.NewBoolean(v), nil
	case string:
		return ua.NewString(v), nil
	case int:
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return ua.NewInt32(int32(v)), nil
		}
		return ua.NewInt64(int64(v)), nil
	case float64:
		return ua.NewDouble(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return valueOf("", int(i))
		}
		f, err := v.Float64()
		if err != nil {
			return ua.Variant{}, fmt.Errorf("%w: %s", ua.ErrTypeMismatch, v)
		}
		return ua.NewDouble(f), nil
	}
	return ua.Variant{}, fmt.Errorf("%w: cannot infer a data type for %T, set data_type", ua.ErrTypeMismatch, raw)
}

// Apply adds the nodes and references of f to s. Nodes that already exist
// and references already present are skipped, so applying a file twice
// is harmless. The file is validated before any node is added.
func Apply(s *addrspace.Space, f *File) (Stats, error) {
	var stats Stats

	nodes, refs, err := f.compile(s.Namespaces())
	if err != nil {
		return stats, err
	}

	for _, c := range nodes {
		if _, exists := s.GetNode(c.spec.ID); exists {
			stats.Skipped++
			continue
		}
		if c.parent.IsNull() {
			err = s.AddNode(c.spec)
		} else {
			err = s.AddNodeUnder(c.spec, c.parent, c.refType)
		}
		if err != nil {
			return stats, fmt.Errorf("failed to add %s: %w", c.spec.ID, err)
		}
		stats.Nodes++
	}

	for _, c := range refs {
		err := s.AddReference(c.source, c.target, c.refType, c.forward)
		switch {
		case errors.Is(err, addrspace.ErrDuplicateReference):
			stats.Skipped++
		case err != nil:
			return stats, fmt.Errorf("failed to add reference %s -> %s: %w", c.source, c.target, err)
		default:
			stats.References++
		}
	}

	logger.Info(logScope, "applied model: %d nodes, %d references, %d skipped", stats.Nodes, stats.References, stats.Skipped)
	return stats, nil
}

// ApplyFile loads path and applies it to s.
func ApplyFile(s *addrspace.Space, path string) (Stats, error) {
	f, err := Load(path)
	if err != nil {
		return Stats{}, err
	}
	stats, err := Apply(s, f)
	if err != nil {
		return stats, fmt.Errorf("%s: %w", path, err)
	}
	return stats, nil
}
