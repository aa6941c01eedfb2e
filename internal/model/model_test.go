package model

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uaspace/internal/addrspace"
	"uaspace/internal/ua"
)

var temperature = ua.NewStringNodeID(1, "temperature")

func newSpace(t *testing.T) *addrspace.Space {
	t.Helper()
	s := addrspace.New()
	require.NoError(t, addrspace.Bootstrap(s, true))
	s.Namespaces().Register("urn:uaspace:server")
	return s
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultModel(t *testing.T) {
	s := newSpace(t)

	stats, err := Apply(s, Default())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Nodes)

	n, ok := s.GetNode(temperature)
	require.True(t, ok)
	assert.Equal(t, ua.NodeClassVariable, n.Class)
	assert.Equal(t, ua.NewLocalizedText("en-US", "temperature"), n.DisplayName)
	assert.Equal(t, ua.NewQualifiedName(1, "temperature"), n.BrowseName)

	v, err := s.ReadValue(temperature)
	require.NoError(t, err)
	assert.True(t, v.Equal(ua.NewInt32(45)))

	h, err := s.ReadAttribute(temperature, ua.AttrHistorizing)
	require.NoError(t, err)
	assert.Equal(t, true, h.Value)

	parents := s.BrowseAll(temperature, addrspace.BrowseOptions{Direction: addrspace.Inverse, ReferenceType: ua.Organizes})
	require.Len(t, parents, 1)
	assert.Equal(t, ua.ObjectsFolder, parents[0].NodeID)
}

func TestApplyTwiceSkips(t *testing.T) {
	s := newSpace(t)

	_, err := Apply(s, Default())
	require.NoError(t, err)
	before := s.Len()

	stats, err := Apply(s, Default())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Nodes)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, before, s.Len())
}

func TestApplyKeepsExistingValue(t *testing.T) {
	s := newSpace(t)
	_, err := Apply(s, Default())
	require.NoError(t, err)
	require.NoError(t, s.WriteValue(temperature, ua.NewInt32(60)))

	_, err = Apply(s, Default())
	require.NoError(t, err)

	v, err := s.ReadValue(temperature)
	require.NoError(t, err)
	assert.True(t, v.Equal(ua.NewInt32(60)))
}

func TestNamespaceRemap(t *testing.T) {
	s := newSpace(t)
	s.Namespaces().Register("urn:other")

	f, err := Parse([]byte(`
namespaces:
  - urn:plant
nodes:
  - id: ns=1;s=boiler
    class: Object
    parent: i=85
    type_definition: i=58
  - id: ns=1;s=pressure
    class: Variable
    parent: ns=1;s=boiler
    reference_type: HasComponent
    data_type: Double
    value: 1.5
`), "yaml")
	require.NoError(t, err)

	_, err = Apply(s, f)
	require.NoError(t, err)

	idx, ok := s.Namespaces().Index("urn:plant")
	require.True(t, ok)
	assert.Equal(t, uint16(3), idx)

	pressure := ua.NewStringNodeID(idx, "pressure")
	v, err := s.ReadValue(pressure)
	require.NoError(t, err)
	assert.True(t, v.Equal(ua.NewDouble(1.5)))

	children := s.BrowseAll(ua.NewStringNodeID(idx, "boiler"), addrspace.BrowseOptions{ReferenceType: ua.HasComponent})
	require.Len(t, children, 1)
	assert.Equal(t, pressure, children[0].NodeID)

	_, ok = s.GetNode(ua.NewStringNodeID(1, "boiler"))
	assert.False(t, ok)
}

func TestUndeclaredNamespace(t *testing.T) {
	s := newSpace(t)
	f := &File{
		Namespaces: []string{"urn:plant"},
		Nodes:      []NodeDef{{ID: "ns=2;s=x", Class: "Object"}},
	}

	_, err := Apply(s, f)
	assert.ErrorContains(t, err, "not declared")
}

func TestInvalidFileAddsNothing(t *testing.T) {
	tests := map[string]NodeDef{
		"bad class":        {ID: "ns=1;s=b", Class: "Gadget"},
		"bad id":           {ID: "nonsense", Class: "Object"},
		"bad data type":    {ID: "ns=1;s=b", Class: "Variable", DataType: "Quaternion", Value: 1},
		"value mismatch":   {ID: "ns=1;s=b", Class: "Variable", DataType: "Int32", Value: "hot"},
		"value range":      {ID: "ns=1;s=b", Class: "Variable", DataType: "Byte", Value: 300},
		"bad access level": {ID: "ns=1;s=b", Class: "Variable", Value: 1, AccessLevel: []string{"execute"}},
		"bad parent":       {ID: "ns=1;s=b", Class: "Object", Parent: "???"},
		"bad ref type":     {ID: "ns=1;s=b", Class: "Object", Parent: "i=85", ReferenceType: "Likes"},
	}

	for name, bad := range tests {
		t.Run(name, func(t *testing.T) {
			s := newSpace(t)
			before := s.Len()
			f := &File{Nodes: []NodeDef{
				{ID: "ns=1;s=a", Class: "Object", Parent: "i=85"},
				bad,
			}}

			_, err := Apply(s, f)
			require.Error(t, err)
			assert.Equal(t, before, s.Len())
		})
	}
}

func TestApplyFailsOnMissingParent(t *testing.T) {
	s := newSpace(t)
	f := &File{Nodes: []NodeDef{{ID: "ns=1;s=orphan", Class: "Object", Parent: "ns=1;s=nowhere"}}}

	_, err := Apply(s, f)
	assert.ErrorIs(t, err, addrspace.ErrDanglingEndpoint)
	_, ok := s.GetNode(ua.NewStringNodeID(1, "orphan"))
	assert.False(t, ok)
}

func TestJSONModel(t *testing.T) {
	s := newSpace(t)
	path := writeFile(t, t.TempDir(), "plant.json", `{
  "nodes": [
    {"id": "ns=1;s=setpoint", "class": "Variable", "parent": "i=85", "value": 3.5},
    {"id": "ns=1;s=count", "class": "Variable", "parent": "i=85", "data_type": "UInt64", "value": 18446744073709551615},
    {"id": "ns=1;s=label", "class": "Variable", "parent": "i=85", "value": "line 4", "access_level": ["read"]}
  ],
  "references": [
    {"source": "ns=1;s=label", "target": "ns=1;s=setpoint", "type": "HasProperty", "forward": false}
  ]
}`)

	stats, err := ApplyFile(s, path)
	require.NoError(t, err)
	assert.Equal(t, Stats{Nodes: 3, References: 1}, stats)

	v, err := s.ReadValue(ua.NewStringNodeID(1, "setpoint"))
	require.NoError(t, err)
	assert.True(t, v.Equal(ua.NewDouble(3.5)))

	v, err = s.ReadValue(ua.NewStringNodeID(1, "count"))
	require.NoError(t, err)
	assert.True(t, v.Equal(ua.NewUInt64(18446744073709551615)))

	err = s.WriteValue(ua.NewStringNodeID(1, "label"), ua.NewString("line 5"))
	assert.ErrorIs(t, err, addrspace.ErrAttributeNotWritable)

	props := s.BrowseAll(ua.NewStringNodeID(1, "setpoint"), addrspace.BrowseOptions{ReferenceType: ua.HasProperty})
	require.Len(t, props, 1)
	assert.Equal(t, ua.NewStringNodeID(1, "label"), props[0].NodeID)

	// Duplicate references are skipped on reapply
	stats, err = ApplyFile(s, path)
	require.NoError(t, err)
	assert.Equal(t, Stats{Skipped: 4}, stats)
}

func TestValueInference(t *testing.T) {
	tests := []struct {
		raw  any
		want ua.Variant
	}{
		{true, ua.NewBoolean(true)},
		{"hot", ua.NewString("hot")},
		{45, ua.NewInt32(45)},
		{1 << 40, ua.NewInt64(1 << 40)},
		{2.5, ua.NewDouble(2.5)},
	}
	for _, tt := range tests {
		got, err := valueOf("", tt.raw)
		require.NoError(t, err)
		assert.True(t, got.Equal(tt.want), "raw %v: got %v", tt.raw, got)
	}

	_, err := valueOf("", []any{1, 2})
	assert.ErrorIs(t, err, ua.ErrTypeMismatch)
}

func TestNonFiniteValuesExport(t *testing.T) {
	s := newSpace(t)

	f, err := Parse([]byte(`
namespaces:
  - urn:uaspace:server
nodes:
  - id: ns=1;s=ceiling
    class: Variable
    parent: i=85
    value: .inf
  - id: ns=1;s=floor
    class: Variable
    parent: i=85
    data_type: Double
    value: "-Infinity"
`), "yaml")
	require.NoError(t, err)
	_, err = Apply(s, f)
	require.NoError(t, err)

	v, err := s.ReadValue(ua.NewStringNodeID(1, "ceiling"))
	require.NoError(t, err)
	assert.True(t, v.Equal(ua.NewDouble(math.Inf(1))), "got %v", v)
	v, err = s.ReadValue(ua.NewStringNodeID(1, "floor"))
	require.NoError(t, err)
	assert.True(t, v.Equal(ua.NewDouble(math.Inf(-1))), "got %v", v)

	data, err := json.Marshal(s.Export())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Infinity"`)
	assert.Contains(t, string(data), `"-Infinity"`)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, dir, "model.txt", "nodes: []"))
	assert.ErrorContains(t, err, "unsupported")

	_, err = Load(writeFile(t, dir, "broken.yaml", "nodes: [unclosed"))
	assert.Error(t, err)
}

func TestSupported(t *testing.T) {
	for _, p := range []string{"a.yaml", "b.YML", "dir/c.json"} {
		assert.True(t, Supported(p), p)
	}
	for _, p := range []string{"a.txt", "yaml", "a.yaml.bak"} {
		assert.False(t, Supported(p), p)
	}
}

func TestDefaultModelIsStable(t *testing.T) {
	f := Default()
	require.Len(t, f.Nodes, 1)
	assert.Empty(t, f.Namespaces)
}
