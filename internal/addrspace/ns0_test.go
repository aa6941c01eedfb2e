package addrspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uaspace/internal/ua"
)

func TestBootstrapMinimal(t *testing.T) {
	s := newSpace(t)

	for _, id := range []ua.NodeID{ua.RootFolder, ua.ObjectsFolder, ua.TypesFolder, ua.ViewsFolder, ua.Organizes, ua.HasSubtype} {
		_, ok := s.GetNode(id)
		assert.True(t, ok, "%s", id)
	}
	_, ok := s.GetNode(ua.Server)
	assert.False(t, ok)

	root := s.BrowseAll(ua.RootFolder, BrowseOptions{ReferenceType: ua.Organizes})
	assert.Equal(t, []ua.NodeID{ua.ObjectsFolder, ua.TypesFolder, ua.ViewsFolder}, targets(root))

	view, _ := s.GetNode(ua.Organizes)
	assert.Equal(t, ua.NodeClassReferenceType, view.Class)
	inv, ok := view.Attribute(ua.AttrInverseName)
	require.True(t, ok)
	assert.Equal(t, "OrganizedBy", inv.Value.(ua.LocalizedText).Text)

	assert.Error(t, Bootstrap(s, true))
}

func TestBootstrapFull(t *testing.T) {
	s := New()
	require.NoError(t, Bootstrap(s, false))

	children := s.BrowseAll(ua.ServerStatus, BrowseOptions{ReferenceType: ua.HasComponent})
	assert.Equal(t, []ua.NodeID{ua.ServerStatusStartTime, ua.ServerStatusCurrentTime, ua.ServerStatusState}, targets(children))

	state, err := s.ReadValue(ua.ServerStatusState)
	require.NoError(t, err)
	assert.Equal(t, ua.ServerStateUnknown, state.Value)

	err = s.WriteValue(ua.ServerStatusState, ua.NewInt32(ua.ServerStateRunning))
	assert.ErrorIs(t, err, ErrAttributeNotWritable)

	require.NoError(t, s.ForceValue(ua.ServerStatusState, ua.NewInt32(ua.ServerStateRunning)))
	state, _ = s.ReadValue(ua.ServerStatusState)
	assert.Equal(t, ua.ServerStateRunning, state.Value)

	err = s.ForceValue(ua.ServerStatusState, ua.NewString("Running"))
	assert.ErrorIs(t, err, ErrTypeMismatch)
}
