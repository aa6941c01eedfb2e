package ua

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNodeID(t *testing.T) {
	guid := uuid.MustParse("72962b91-fa75-4ae6-8d28-b404dc7daf63")

	tests := []struct {
		in   string
		want NodeID
		text string
	}{
		{"i=85", ObjectsFolder, "i=85"},
		{"ns=1;s=temperature", NewStringNodeID(1, "temperature"), "ns=1;s=temperature"},
		{"1:temperature", NewStringNodeID(1, "temperature"), "ns=1;s=temperature"},
		{"ns=2;i=1001", NewNumericNodeID(2, 1001), "ns=2;i=1001"},
		{"ns=3;g=72962b91-fa75-4ae6-8d28-b404dc7daf63", NewGUIDNodeID(3, guid), "ns=3;g=72962b91-fa75-4ae6-8d28-b404dc7daf63"},
		{"ns=1;b=AQID", NewByteStringNodeID(1, []byte{1, 2, 3}), "ns=1;b=AQID"},
		{"s=plain", NewStringNodeID(0, "plain"), "s=plain"},
		{"ns=1;s=a;b", NewStringNodeID(1, "a;b"), "ns=1;s=a;b"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseNodeID(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.text, got.String())

			again, err := ParseNodeID(got.String())
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestParseNodeIDInvalid(t *testing.T) {
	for _, in := range []string{"", "ns=1", "ns=x;i=1", "i=abc", "i=-1", "s=", "g=not-a-guid", "b=***", "temperature", "ns=70000;i=1"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseNodeID(in)
			assert.ErrorIs(t, err, ErrInvalidNodeID)
		})
	}
}

func TestNodeIDComparable(t *testing.T) {
	a := NewByteStringNodeID(1, []byte("key"))
	b := NewByteStringNodeID(1, []byte("key"))
	assert.Equal(t, a, b)

	m := map[NodeID]int{a: 1}
	assert.Equal(t, 1, m[b])

	assert.NotEqual(t, NewStringNodeID(1, "x"), NewByteStringNodeID(1, []byte("x")))
	assert.NotEqual(t, NewNumericNodeID(0, 85), NewNumericNodeID(1, 85))
}

func TestNodeIDByteStringIsImmutable(t *testing.T) {
	raw := []byte{1, 2, 3}
	id := NewByteStringNodeID(0, raw)
	raw[0] = 9

	got, ok := id.ByteStringID()
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, got)

	got[1] = 9
	again, _ := id.ByteStringID()
	assert.Equal(t, []byte{1, 2, 3}, again)
}

func TestNodeIDAccessors(t *testing.T) {
	assert.True(t, NullNodeID.IsNull())
	assert.False(t, ObjectsFolder.IsNull())

	num, ok := ObjectsFolder.IntID()
	assert.True(t, ok)
	assert.Equal(t, uint32(85), num)

	_, ok = ObjectsFolder.StringID()
	assert.False(t, ok)

	s, ok := NewStringNodeID(1, "temperature").StringID()
	assert.True(t, ok)
	assert.Equal(t, "temperature", s)
	assert.Equal(t, IDString.String(), "string")
}

func TestNodeIDText(t *testing.T) {
	var id NodeID
	require.NoError(t, id.UnmarshalText([]byte("ns=1;s=temperature")))
	assert.Equal(t, NewStringNodeID(1, "temperature"), id)

	text, err := id.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "ns=1;s=temperature", string(text))
}

func TestParseReferenceType(t *testing.T) {
	id, err := ParseReferenceType("organizes")
	require.NoError(t, err)
	assert.Equal(t, Organizes, id)

	id, err = ParseReferenceType("i=47")
	require.NoError(t, err)
	assert.Equal(t, HasComponent, id)

	_, err = ParseReferenceType("NotAReference")
	assert.Error(t, err)
}

func TestNamespaceTable(t *testing.T) {
	tbl := NewNamespaceTable()
	assert.Equal(t, []string{NamespaceURI}, tbl.URIs())

	idx := tbl.Register("urn:example:uaspace")
	assert.Equal(t, uint16(1), idx)
	assert.Equal(t, uint16(1), tbl.Register("urn:example:uaspace"))

	uri, ok := tbl.URI(1)
	assert.True(t, ok)
	assert.Equal(t, "urn:example:uaspace", uri)

	_, ok = tbl.URI(5)
	assert.False(t, ok)

	i, ok := tbl.Index(NamespaceURI)
	assert.True(t, ok)
	assert.Equal(t, uint16(0), i)
}
