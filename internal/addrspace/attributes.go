package addrspace

import (
	"fmt"

	"uaspace/internal/events"
	"uaspace/internal/ua"
)

// readOnly attributes never change after AddNode.
var readOnly = map[ua.AttributeID]bool{
	ua.AttrNodeID:     true,
	ua.AttrNodeClass:  true,
	ua.AttrBrowseName: true,
	ua.AttrDataType:   true,
}

// ReadAttribute returns a copy of an attribute value.
func (s *Space) ReadAttribute(id ua.NodeID, attr ua.AttributeID) (ua.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readLocked(id, attr)
}

func (s *Space) readLocked(id ua.NodeID, attr ua.AttributeID) (ua.Variant, error) {
	n, ok := s.nodes[id]
	if !ok {
		return ua.Variant{}, &AttrError{Op: "read", ID: id, Attr: attr, Err: ErrNodeNotFound}
	}
	switch attr {
	case ua.AttrNodeID:
		return ua.NewNodeIDVariant(n.id), nil
	case ua.AttrNodeClass:
		return ua.NewInt32(int32(n.class)), nil
	}
	if !attr.AppliesTo(n.class) {
		return ua.Variant{}, &AttrError{Op: "read", ID: id, Attr: attr, Err: ErrAttributeNotApplicable}
	}
	v, ok := n.attrs[attr]
	if !ok {
		return ua.Variant{}, &AttrError{Op: "read", ID: id, Attr: attr, Err: ErrAttributeNotApplicable}
	}
	return v.Clone(), nil
}

// ReadValue reads the Value attribute.
func (s *Space) ReadValue(id ua.NodeID) (ua.Variant, error) {
	return s.ReadAttribute(id, ua.AttrValue)
}

// ReadRequest names one attribute of one node.
type ReadRequest struct {
	NodeID    ua.NodeID      `json:"node_id"`
	Attribute ua.AttributeID `json:"attribute"`
}

// ReadResult is the outcome of one ReadRequest.
type ReadResult struct {
	Value  ua.Variant    `json:"value"`
	Status ua.StatusCode `json:"status"`
	Err    error         `json:"-"`
}

// ReadAttributes reads a batch under a single read lock, so all results
// come from the same state of the space.
func (s *Space) ReadAttributes(reqs []ReadRequest) []ReadResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ReadResult, len(reqs))
	for i, r := range reqs {
		v, err := s.readLocked(r.NodeID, r.Attribute)
		out[i] = ReadResult{Value: v, Status: StatusOf(err), Err: err}
	}
	return out
}

// WriteAttribute replaces an attribute value. The value's tag must equal
// the attribute's type (the declared DataType for Value); integers are
// range checked against it and never truncated. A failed write leaves the
// node untouched, and readers see either the old or the new value.
func (s *Space) WriteAttribute(id ua.NodeID, attr ua.AttributeID, value ua.Variant) error {
	return s.write(id, attr, value, false)
}

// WriteValue writes the Value attribute.
func (s *Space) WriteValue(id ua.NodeID, value ua.Variant) error {
	return s.write(id, ua.AttrValue, value, false)
}

// ForceValue writes the Value attribute on behalf of the server itself. It
// ignores the node's AccessLevel and works on a frozen space, but still
// enforces the declared type.
func (s *Space) ForceValue(id ua.NodeID, value ua.Variant) error {
	return s.write(id, ua.AttrValue, value, true)
}

func (s *Space) write(id ua.NodeID, attr ua.AttributeID, value ua.Variant, internal bool) error {
	attrErr := func(err error) error {
		return &AttrError{Op: "write", ID: id, Attr: attr, Err: err}
	}

	s.mu.Lock()
	if !internal && s.frozen.Load() {
		s.mu.Unlock()
		return attrErr(ErrServerNotRunning)
	}
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return attrErr(ErrNodeNotFound)
	}
	if !attr.AppliesTo(n.class) {
		s.mu.Unlock()
		return attrErr(ErrAttributeNotApplicable)
	}
	if readOnly[attr] {
		s.mu.Unlock()
		return attrErr(ErrAttributeNotWritable)
	}

	var want ua.TypeID
	if attr == ua.AttrValue {
		declared, ok := n.declaredType()
		if !ok {
			s.mu.Unlock()
			return attrErr(ErrAttributeNotApplicable)
		}
		if !internal && n.class == ua.NodeClassVariable && !n.accessLevel().Has(ua.AccessLevelCurrentWrite) {
			s.mu.Unlock()
			return attrErr(ErrAttributeNotWritable)
		}
		want = declared
	} else {
		want, _ = attr.FixedType()
	}

	if value.Type != want {
		s.mu.Unlock()
		return attrErr(fmt.Errorf("%w: %s is %s, got %s", ErrTypeMismatch, attr, want, value.Type))
	}
	norm, err := value.Normalize()
	if err != nil {
		s.mu.Unlock()
		return attrErr(err)
	}

	n.attrs[attr] = norm
	if attr == ua.AttrValue {
		s.checkStoredType(n)
	}
	historizing := n.historizing()
	s.mu.Unlock()

	if attr == ua.AttrValue {
		s.emit(events.NewValueWrittenEvent(id, norm, historizing))
	} else {
		s.emit(events.NewAttributeWrittenEvent(id, attr, norm))
	}
	return nil
}

// checkStoredType panics when a Variable holds a value of a type other
// than its declared DataType. The write path makes this unreachable.
func (s *Space) checkStoredType(n *node) {
	declared, _ := n.declaredType()
	if v := n.attrs[ua.AttrValue]; v.Type != declared {
		panic(fmt.Sprintf("addrspace: %s stores %s but declares %s", n.id, v.Type, declared))
	}
}
