// Package events provides change notifications for the address space and
// the server lifecycle.
package events

import (
	"time"

	"github.com/google/uuid"

	"uaspace/internal/ua"
)

// EventType represents the type of event
type EventType string

const (
	// EventNodeAdded is emitted after a node becomes visible
	EventNodeAdded EventType = "node_added"
	// EventNodeRemoved is emitted after a node and its references are gone
	EventNodeRemoved EventType = "node_removed"
	// EventReferenceAdded is emitted after a reference is inserted
	EventReferenceAdded EventType = "reference_added"
	// EventReferenceRemoved is emitted after a reference is deleted
	EventReferenceRemoved EventType = "reference_removed"
	// EventValueWritten is emitted after the Value attribute of a variable changes
	EventValueWritten EventType = "value_written"
	// EventAttributeWritten is emitted after any other attribute changes
	EventAttributeWritten EventType = "attribute_written"
	// EventServerState is emitted on every lifecycle transition
	EventServerState EventType = "server_state"
)

// Event represents an address space or lifecycle event
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"node_id,omitempty"`
	Data      EventData `json:"data,omitempty"`
}

// EventData contains event-specific data
type EventData struct {
	NodeClass     string      `json:"node_class,omitempty"`
	Attribute     string      `json:"attribute,omitempty"`
	Value         *ua.Variant `json:"value,omitempty"`
	Historizing   bool        `json:"historizing,omitempty"`
	Target        string      `json:"target,omitempty"`
	ReferenceType string      `json:"reference_type,omitempty"`
	IsForward     bool        `json:"is_forward,omitempty"`
	State         string      `json:"state,omitempty"`
}

func newEvent(t EventType, nodeID string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now(),
		NodeID:    nodeID,
	}
}

// NewNodeAddedEvent creates a node added event
func NewNodeAddedEvent(id ua.NodeID, class ua.NodeClass) Event {
	e := newEvent(EventNodeAdded, id.String())
	e.Data.NodeClass = class.String()
	return e
}

// NewNodeRemovedEvent creates a node removed event
func NewNodeRemovedEvent(id ua.NodeID) Event {
	return newEvent(EventNodeRemoved, id.String())
}

// NewReferenceEvent creates a reference added or removed event
func NewReferenceEvent(t EventType, source, target, refType ua.NodeID, isForward bool) Event {
	e := newEvent(t, source.String())
	e.Data.Target = target.String()
	e.Data.ReferenceType = refType.String()
	e.Data.IsForward = isForward
	return e
}

// NewValueWrittenEvent creates a value written event
func NewValueWrittenEvent(id ua.NodeID, value ua.Variant, historizing bool) Event {
	e := newEvent(EventValueWritten, id.String())
	v := value.Clone()
	e.Data.Attribute = ua.AttrValue.String()
	e.Data.Value = &v
	e.Data.Historizing = historizing
	return e
}

// NewAttributeWrittenEvent creates an attribute written event
func NewAttributeWrittenEvent(id ua.NodeID, attr ua.AttributeID, value ua.Variant) Event {
	e := newEvent(EventAttributeWritten, id.String())
	v := value.Clone()
	e.Data.Attribute = attr.String()
	e.Data.Value = &v
	return e
}

// NewServerStateEvent creates a lifecycle transition event
func NewServerStateEvent(state string) Event {
	e := newEvent(EventServerState, "")
	e.Data.State = state
	return e
}
