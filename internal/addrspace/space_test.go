package addrspace

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uaspace/internal/events"
	"uaspace/internal/ua"
)

var temperature = ua.NewStringNodeID(1, "temperature")

func newSpace(t *testing.T) *Space {
	t.Helper()
	s := New()
	require.NoError(t, Bootstrap(s, true))
	return s
}

func addTemperature(t *testing.T, s *Space) {
	t.Helper()
	spec := VariableNode(temperature, "temperature", ua.NewInt32(45))
	spec.DisplayName = ua.NewLocalizedText("en-US", "temperature")
	require.NoError(t, s.AddNodeUnder(spec, ua.ObjectsFolder, ua.Organizes))
}

func TestGetNodeAbsentThenPresent(t *testing.T) {
	s := newSpace(t)

	_, ok := s.GetNode(temperature)
	assert.False(t, ok)

	spec := VariableNode(temperature, "temperature", ua.NewInt32(45))
	spec.DisplayName = ua.NewLocalizedText("en-US", "temperature")
	spec.Description = ua.NewLocalizedText("en-US", "Ambient temperature")
	require.NoError(t, s.AddNode(spec))

	view, ok := s.GetNode(temperature)
	require.True(t, ok)
	assert.Equal(t, temperature, view.ID)
	assert.Equal(t, ua.NodeClassVariable, view.Class)
	assert.Equal(t, ua.NewQualifiedName(1, "temperature"), view.BrowseName)
	assert.Equal(t, ua.NewLocalizedText("en-US", "temperature"), view.DisplayName)
	assert.Equal(t, "Ambient temperature", view.Description.Text)

	v, ok := view.Value()
	require.True(t, ok)
	assert.True(t, v.Equal(ua.NewInt32(45)))

	dt, ok := view.DataType()
	require.True(t, ok)
	assert.Equal(t, ua.TypeInt32, dt)

	al, ok := view.Attribute(ua.AttrAccessLevel)
	require.True(t, ok)
	assert.Equal(t, uint8(ua.AccessLevelReadWrite), al.Value)
}

func TestNodeViewIsACopy(t *testing.T) {
	s := newSpace(t)
	require.NoError(t, s.AddNode(VariableNode(ua.NewStringNodeID(1, "raw"), "raw", ua.NewByteString([]byte{1, 2}))))

	view, _ := s.GetNode(ua.NewStringNodeID(1, "raw"))
	view.Attributes[ua.AttrValue].Value.([]byte)[0] = 9
	delete(view.Attributes, ua.AttrDataType)

	again, _ := s.GetNode(ua.NewStringNodeID(1, "raw"))
	assert.Equal(t, []byte{1, 2}, again.Attributes[ua.AttrValue].Value)
	_, ok := again.DataType()
	assert.True(t, ok)
}

func TestAddNodeDefaults(t *testing.T) {
	s := New()
	id := ua.NewNumericNodeID(2, 1001)
	require.NoError(t, s.AddNode(NodeSpec{ID: id, Class: ua.NodeClassObject}))

	view, ok := s.GetNode(id)
	require.True(t, ok)
	assert.Equal(t, ua.NewQualifiedName(2, "ns=2;i=1001"), view.BrowseName)
	assert.Equal(t, "ns=2;i=1001", view.DisplayName.Text)

	en, ok := view.Attribute(ua.AttrEventNotifier)
	require.True(t, ok)
	assert.Equal(t, uint8(0), en.Value)
}

func TestAddNodeDuplicate(t *testing.T) {
	s := newSpace(t)
	addTemperature(t, s)

	specs := []NodeSpec{
		VariableNode(temperature, "temperature", ua.NewInt32(45)),
		VariableNode(temperature, "other", ua.NewString("hot")),
		ObjectNode(temperature, "temperature"),
	}
	for _, spec := range specs {
		err := s.AddNode(spec)
		assert.ErrorIs(t, err, ErrDuplicateID)

		var nodeErr *NodeError
		require.True(t, errors.As(err, &nodeErr))
		assert.Equal(t, temperature, nodeErr.ID)
	}

	v, err := s.ReadValue(temperature)
	require.NoError(t, err)
	assert.True(t, v.Equal(ua.NewInt32(45)))
}

func TestAddNodeInvalidClass(t *testing.T) {
	id := ua.NewStringNodeID(1, "bad")
	tests := []struct {
		name string
		spec NodeSpec
	}{
		{"variable without value", NodeSpec{ID: id, Class: ua.NodeClassVariable}},
		{"unknown class", NodeSpec{ID: id, Class: ua.NodeClass(3)}},
		{"unspecified class", NodeSpec{ID: id}},
		{"value on object", NodeSpec{ID: id, Class: ua.NodeClassObject, Attributes: map[ua.AttributeID]ua.Variant{
			ua.AttrValue: ua.NewInt32(1),
		}}},
		{"data type disagrees", NodeSpec{ID: id, Class: ua.NodeClassVariable, Attributes: map[ua.AttributeID]ua.Variant{
			ua.AttrValue:    ua.NewInt32(1),
			ua.AttrDataType: ua.NewNodeIDVariant(ua.TypeString.DataTypeNodeID()),
		}}},
		{"node class attribute", NodeSpec{ID: id, Class: ua.NodeClassObject, Attributes: map[ua.AttributeID]ua.Variant{
			ua.AttrNodeClass: ua.NewInt32(1),
		}}},
		{"wrong attribute type", NodeSpec{ID: id, Class: ua.NodeClassObject, Attributes: map[ua.AttributeID]ua.Variant{
			ua.AttrEventNotifier: ua.NewString("x"),
		}}},
		{"initial value out of range", NodeSpec{ID: id, Class: ua.NodeClassVariable, Attributes: map[ua.AttributeID]ua.Variant{
			ua.AttrValue: {Type: ua.TypeByte, Value: 300},
		}}},
		{"null value", NodeSpec{ID: id, Class: ua.NodeClassVariable, Attributes: map[ua.AttributeID]ua.Variant{
			ua.AttrValue: {},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			err := s.AddNode(tt.spec)
			assert.ErrorIs(t, err, ErrInvalidClass)
			assert.Equal(t, ua.StatusBadNodeClassInvalid, StatusOf(err))
			_, ok := s.GetNode(id)
			assert.False(t, ok)
			assert.Zero(t, s.Len())
		})
	}
}

func TestAddNodeNullID(t *testing.T) {
	s := New()
	err := s.AddNode(ObjectNode(ua.NullNodeID, "nothing"))
	assert.ErrorIs(t, err, ua.ErrInvalidNodeID)
	assert.Equal(t, ua.StatusBadNodeIDInvalid, StatusOf(err))
}

func TestAddNodeUnderIsAtomic(t *testing.T) {
	s := newSpace(t)
	missing := ua.NewStringNodeID(1, "missing")

	err := s.AddNodeUnder(VariableNode(temperature, "temperature", ua.NewInt32(45)), missing, ua.Organizes)
	assert.ErrorIs(t, err, ErrDanglingEndpoint)

	_, ok := s.GetNode(temperature)
	assert.False(t, ok)

	spec := VariableNode(temperature, "temperature", ua.NewInt32(45))
	spec.TypeDefinition = ua.NewStringNodeID(1, "NoSuchType")
	err = s.AddNodeUnder(spec, ua.ObjectsFolder, ua.Organizes)
	assert.ErrorIs(t, err, ErrDanglingEndpoint)
	assert.Empty(t, s.BrowseAll(ua.ObjectsFolder, BrowseOptions{ReferenceType: ua.Organizes}))
}

func TestRemoveNode(t *testing.T) {
	s := newSpace(t)

	err := s.RemoveNode(temperature, false)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, ua.StatusBadNodeIDUnknown, StatusOf(err))

	addTemperature(t, s)

	err = s.RemoveNode(temperature, false)
	assert.ErrorIs(t, err, ErrHasReferences)
	_, ok := s.GetNode(temperature)
	assert.True(t, ok)

	require.NoError(t, s.RemoveNode(temperature, true))
	_, ok = s.GetNode(temperature)
	assert.False(t, ok)

	assert.Empty(t, s.BrowseAll(temperature, BrowseOptions{Direction: Both}))
	for _, r := range s.BrowseAll(ua.ObjectsFolder, BrowseOptions{Direction: Both}) {
		assert.NotEqual(t, temperature, r.NodeID)
	}
	for _, r := range s.Export().References {
		assert.NotEqual(t, temperature, r.Source)
		assert.NotEqual(t, temperature, r.Target)
	}
}

func TestRemoveNodeWithoutReferences(t *testing.T) {
	s := New()
	require.NoError(t, s.AddNode(ObjectNode(temperature, "temperature")))
	require.NoError(t, s.RemoveNode(temperature, false))
	assert.Zero(t, s.Len())
}

func TestRemoveNodeSelfReference(t *testing.T) {
	s := New()
	id := ua.NewStringNodeID(1, "loop")
	require.NoError(t, s.AddNode(ObjectNode(id, "loop")))
	require.NoError(t, s.AddReference(id, id, ua.HasComponent, true))

	assert.Len(t, s.BrowseAll(id, BrowseOptions{Direction: Both}), 2)

	require.NoError(t, s.RemoveNode(id, true))
	assert.Empty(t, s.Export().References)
}

func TestNodesInsertionOrder(t *testing.T) {
	s := New()
	ids := []ua.NodeID{
		ua.NewStringNodeID(1, "c"),
		ua.NewStringNodeID(1, "a"),
		ua.NewNumericNodeID(1, 7),
	}
	for _, id := range ids {
		require.NoError(t, s.AddNode(ObjectNode(id, "x")))
	}
	assert.Equal(t, ids, s.Nodes())
	assert.Equal(t, 3, s.Len())
}

func TestFreezeRejectsMutations(t *testing.T) {
	s := newSpace(t)
	addTemperature(t, s)
	s.Freeze()
	assert.True(t, s.Frozen())

	other := ua.NewStringNodeID(1, "pressure")
	errs := []error{
		s.AddNode(ObjectNode(other, "pressure")),
		s.RemoveNode(temperature, true),
		s.WriteValue(temperature, ua.NewInt32(50)),
		s.AddReference(ua.RootFolder, temperature, ua.Organizes, true),
		s.RemoveReference(ua.ObjectsFolder, temperature, ua.Organizes, true),
	}
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrServerNotRunning)
		assert.Equal(t, ua.StatusBadServerHalted, StatusOf(err))
	}

	v, err := s.ReadValue(temperature)
	require.NoError(t, err)
	assert.True(t, v.Equal(ua.NewInt32(45)))

	require.NoError(t, s.ForceValue(temperature, ua.NewInt32(46)))
	v, _ = s.ReadValue(temperature)
	assert.True(t, v.Equal(ua.NewInt32(46)))
}

func TestSpaceEvents(t *testing.T) {
	s := newSpace(t)
	bus := events.NewBus()
	ch := bus.Subscribe()
	s.SetEventBus(bus)

	addTemperature(t, s)
	require.NoError(t, s.WriteValue(temperature, ua.NewInt32(50)))

	want := []events.EventType{
		events.EventNodeAdded,
		events.EventReferenceAdded,
		events.EventReferenceAdded,
		events.EventValueWritten,
	}
	for _, typ := range want {
		select {
		case e := <-ch:
			assert.Equal(t, typ, e.Type)
			if typ == events.EventValueWritten {
				require.NotNil(t, e.Data.Value)
				assert.True(t, e.Data.Value.Equal(ua.NewInt32(50)))
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %s", typ)
		}
	}

	s.SetEventBus(nil)
	require.NoError(t, s.WriteValue(temperature, ua.NewInt32(51)))
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %s", e.Type)
	default:
	}
}

func TestExportImport(t *testing.T) {
	src := newSpace(t)
	src.Namespaces().Register("urn:uaspace:demo")
	addTemperature(t, src)
	require.NoError(t, src.WriteValue(temperature, ua.NewInt32(50)))

	snap := src.Export()
	assert.Equal(t, src.Len(), len(snap.Nodes))

	dst := newSpace(t)
	st, err := dst.Import(snap)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Nodes)
	assert.Equal(t, 2, st.References)
	assert.Positive(t, st.Skipped)

	v, err := dst.ReadValue(temperature)
	require.NoError(t, err)
	assert.True(t, v.Equal(ua.NewInt32(50)))

	got := dst.BrowseAll(ua.ObjectsFolder, BrowseOptions{ReferenceType: ua.Organizes})
	require.Len(t, got, 1)
	assert.Equal(t, temperature, got[0].NodeID)

	idx, ok := dst.Namespaces().Index("urn:uaspace:demo")
	assert.True(t, ok)
	assert.Equal(t, uint16(1), idx)

	again, err := dst.Import(snap)
	require.NoError(t, err)
	assert.Zero(t, again.Nodes)
	assert.Zero(t, again.References)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want ua.StatusCode
	}{
		{nil, ua.StatusGood},
		{&NodeError{Err: ErrDuplicateID}, ua.StatusBadNodeIDExists},
		{&NodeError{Err: ErrInvalidClass}, ua.StatusBadNodeClassInvalid},
		{&NodeError{Err: ErrNotFound}, ua.StatusBadNodeIDUnknown},
		{&NodeError{Err: ErrHasReferences}, ua.StatusBadReferenceNotAllowed},
		{&AttrError{Err: ErrNodeNotFound}, ua.StatusBadNodeIDUnknown},
		{&AttrError{Err: ErrAttributeNotApplicable}, ua.StatusBadAttributeIDInvalid},
		{&AttrError{Err: ErrAttributeNotWritable}, ua.StatusBadNotWritable},
		{&AttrError{Err: ErrTypeMismatch}, ua.StatusBadTypeMismatch},
		{&AttrError{Err: ErrValueOutOfRange}, ua.StatusBadOutOfRange},
		{&RefError{Err: ErrDanglingEndpoint}, ua.StatusBadTargetNodeIDInvalid},
		{&RefError{Err: ErrDuplicateReference}, ua.StatusBadDuplicateReferenceNotAllowed},
		{&AttrError{Err: ErrServerNotRunning}, ua.StatusBadServerHalted},
		{errors.New("disk on fire"), ua.StatusBadInternalError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusOf(tt.err), "%v", tt.err)
	}
}
