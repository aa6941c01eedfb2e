package events

import (
	"testing"
	"time"

	"uaspace/internal/ua"
)

var temperature = ua.NewStringNodeID(1, "temperature")

func TestNewBus(t *testing.T) {
	bus := NewBus()
	if bus == nil {
		t.Fatal("expected non-nil bus")
	}
	if bus.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", bus.SubscriberCount())
	}
}

func TestBusSubscribe(t *testing.T) {
	bus := NewBus()

	ch1 := bus.Subscribe()
	if bus.SubscriberCount() != 1 {
		t.Errorf("expected 1 subscriber, got %d", bus.SubscriberCount())
	}

	ch2 := bus.Subscribe()
	if bus.SubscriberCount() != 2 {
		t.Errorf("expected 2 subscribers, got %d", bus.SubscriberCount())
	}

	if ch1 == nil || ch2 == nil {
		t.Error("expected non-nil channels")
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()

	ch := bus.Subscribe()
	bus.Unsubscribe(ch)
	if bus.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", bus.SubscriberCount())
	}

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after unsubscribe")
	}
}

func TestBusPublish(t *testing.T) {
	bus := NewBus()

	ch := bus.Subscribe()
	bus.Publish(NewNodeAddedEvent(temperature, ua.NodeClassVariable))

	select {
	case received := <-ch:
		if received.Type != EventNodeAdded {
			t.Errorf("expected type %s, got %s", EventNodeAdded, received.Type)
		}
		if received.NodeID != "ns=1;s=temperature" {
			t.Errorf("expected ns=1;s=temperature, got %s", received.NodeID)
		}
		if received.Data.NodeClass != "Variable" {
			t.Errorf("expected Variable, got %s", received.Data.NodeClass)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for event")
	}

	if bus.Published() != 1 {
		t.Errorf("expected 1 published event, got %d", bus.Published())
	}
}

func TestBusPublishMultipleSubscribers(t *testing.T) {
	bus := NewBus()

	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()

	bus.Publish(NewValueWrittenEvent(temperature, ua.NewInt32(50), false))

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			if received.Type != EventValueWritten {
				t.Errorf("subscriber %d: expected type %s, got %s", i, EventValueWritten, received.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("subscriber %d: timeout waiting for event", i)
		}
	}
}

func TestBusPublishNonBlocking(t *testing.T) {
	bus := NewBusWithBuffer(1)

	ch := bus.Subscribe()

	bus.Publish(NewNodeRemovedEvent(temperature))
	bus.Publish(NewNodeRemovedEvent(temperature))
	bus.Publish(NewNodeRemovedEvent(temperature))

	select {
	case <-ch:
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for first event")
	}

	if bus.Dropped() != 2 {
		t.Errorf("expected 2 dropped deliveries, got %d", bus.Dropped())
	}
}

func TestBusClose(t *testing.T) {
	bus := NewBus()

	ch := bus.Subscribe()
	bus.Close()

	if bus.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers after close, got %d", bus.SubscriberCount())
	}

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed")
	}

	// Publish and Close after Close are no-ops
	bus.Publish(NewNodeRemovedEvent(temperature))
	bus.Close()

	late := bus.Subscribe()
	if _, ok := <-late; ok {
		t.Error("expected subscription after close to be closed")
	}
}

func TestEventCreation(t *testing.T) {
	t.Run("ValueWritten", func(t *testing.T) {
		event := NewValueWrittenEvent(temperature, ua.NewInt32(50), true)
		if event.Type != EventValueWritten {
			t.Errorf("expected %s, got %s", EventValueWritten, event.Type)
		}
		if event.ID == "" {
			t.Error("expected event id")
		}
		if event.Data.Value == nil || !event.Data.Value.Equal(ua.NewInt32(50)) {
			t.Errorf("expected Int32(50), got %v", event.Data.Value)
		}
		if !event.Data.Historizing {
			t.Error("expected historizing flag")
		}
	})

	t.Run("Reference", func(t *testing.T) {
		event := NewReferenceEvent(EventReferenceAdded, ua.ObjectsFolder, temperature, ua.Organizes, true)
		if event.NodeID != "i=85" {
			t.Errorf("expected i=85, got %s", event.NodeID)
		}
		if event.Data.Target != "ns=1;s=temperature" {
			t.Errorf("expected target ns=1;s=temperature, got %s", event.Data.Target)
		}
		if event.Data.ReferenceType != "i=35" {
			t.Errorf("expected i=35, got %s", event.Data.ReferenceType)
		}
	})

	t.Run("ServerState", func(t *testing.T) {
		event := NewServerStateEvent("Running")
		if event.Data.State != "Running" {
			t.Errorf("expected Running, got %s", event.Data.State)
		}
		if event.NodeID != "" {
			t.Errorf("expected empty node id, got %s", event.NodeID)
		}
	})
}
