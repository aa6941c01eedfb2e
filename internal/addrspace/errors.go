package addrspace

import (
	"errors"
	"fmt"

	"uaspace/internal/ua"
)

var (
	// ErrDuplicateID is returned when a node id is already in use.
	ErrDuplicateID = errors.New("duplicate node id")
	// ErrInvalidClass is returned when a node's class is unknown or its
	// attributes do not satisfy the class.
	ErrInvalidClass = errors.New("invalid node class")
	// ErrNotFound is returned when a node does not exist.
	ErrNotFound = errors.New("node not found")
	// ErrHasReferences is returned when removing a node that still has references.
	ErrHasReferences = errors.New("node has references")
	// ErrAttributeNotApplicable is returned for attributes the node does not carry.
	ErrAttributeNotApplicable = errors.New("attribute not applicable")
	// ErrAttributeNotWritable is returned for read-only attributes.
	ErrAttributeNotWritable = errors.New("attribute not writable")
	// ErrDanglingEndpoint is returned when a reference endpoint does not exist.
	ErrDanglingEndpoint = errors.New("dangling reference endpoint")
	// ErrDuplicateReference is returned when an identical reference exists.
	ErrDuplicateReference = errors.New("duplicate reference")
	// ErrServerNotRunning is returned for mutations after the space is frozen.
	ErrServerNotRunning = errors.New("server not running")
)

// Aliases kept so callers can match attribute errors from this package alone.
var (
	ErrNodeNotFound    = ErrNotFound
	ErrTypeMismatch    = ua.ErrTypeMismatch
	ErrValueOutOfRange = ua.ErrValueOutOfRange
)

// NodeError reports a failed node store operation.
type NodeError struct {
	Op     string
	ID     ua.NodeID
	Err    error
	Reason string
}

func (e *NodeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s %s: %v: %s", e.Op, e.ID, e.Err, e.Reason)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// AttrError reports a failed attribute read or write.
type AttrError struct {
	Op   string
	ID   ua.NodeID
	Attr ua.AttributeID
	Err  error
}

func (e *AttrError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Op, e.ID, e.Attr, e.Err)
}

func (e *AttrError) Unwrap() error { return e.Err }

// RefError reports a failed reference operation.
type RefError struct {
	Op      string
	Source  ua.NodeID
	Target  ua.NodeID
	RefType ua.NodeID
	Err     error
}

func (e *RefError) Error() string {
	return fmt.Sprintf("%s %s -[%s]-> %s: %v", e.Op, e.Source, e.RefType, e.Target, e.Err)
}

func (e *RefError) Unwrap() error { return e.Err }

func invalidClass(op string, id ua.NodeID, format string, args ...any) error {
	return &NodeError{Op: op, ID: id, Err: ErrInvalidClass, Reason: fmt.Sprintf(format, args...)}
}
