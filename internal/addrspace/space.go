package addrspace

import (
	"cmp"
	"errors"
	"iter"
	"slices"
	"sync"
	"sync/atomic"

	"uaspace/internal/events"
	"uaspace/internal/logger"
	"uaspace/internal/ua"
)

const logScope = "addrspace"

// NodeStore owns the nodes of an address space.
type NodeStore interface {
	AddNode(spec NodeSpec) error
	GetNode(id ua.NodeID) (NodeView, bool)
	RemoveNode(id ua.NodeID, cascade bool) error
}

// AttributeAccessor reads and writes typed node attributes.
type AttributeAccessor interface {
	ReadAttribute(id ua.NodeID, attr ua.AttributeID) (ua.Variant, error)
	WriteAttribute(id ua.NodeID, attr ua.AttributeID, value ua.Variant) error
}

// ReferenceIndex maintains typed references between nodes.
type ReferenceIndex interface {
	AddReference(source, target, refType ua.NodeID, isForward bool) error
	RemoveReference(source, target, refType ua.NodeID, isForward bool) error
	Browse(id ua.NodeID, opts BrowseOptions) iter.Seq[BrowseResult]
}

// Ensure Space implements the three contracts
var (
	_ NodeStore         = (*Space)(nil)
	_ AttributeAccessor = (*Space)(nil)
	_ ReferenceIndex    = (*Space)(nil)
)

// Space is an in-memory address space. One RWMutex guards nodes and
// references together: reads run concurrently, every mutation is
// exclusive.
type Space struct {
	mu    sync.RWMutex
	nodes map[ua.NodeID]*node
	refs  *referenceIndex
	seq   uint64

	ns     *ua.NamespaceTable
	frozen atomic.Bool
	bus    atomic.Pointer[events.Bus]
}

// New returns an empty address space.
func New() *Space {
	return &Space{
		nodes: make(map[ua.NodeID]*node),
		refs:  newReferenceIndex(),
		ns:    ua.NewNamespaceTable(),
	}
}

// SetEventBus makes the space publish change events to bus. nil disables
// publishing.
func (s *Space) SetEventBus(bus *events.Bus) {
	s.bus.Store(bus)
}

func (s *Space) emit(evs ...events.Event) {
	bus := s.bus.Load()
	if bus == nil {
		return
	}
	for _, e := range evs {
		bus.Publish(e)
	}
}

// Namespaces returns the namespace table of the space.
func (s *Space) Namespaces() *ua.NamespaceTable {
	return s.ns
}

// Freeze rejects every later mutation with ErrServerNotRunning. Reads
// keep working. Freeze cannot be undone.
func (s *Space) Freeze() {
	s.frozen.Store(true)
}

// Frozen reports whether Freeze has been called.
func (s *Space) Frozen() bool {
	return s.frozen.Load()
}

// AddNode adds a node. The node is visible to the next lookup once
// AddNode returns and never partially before.
func (s *Space) AddNode(spec NodeSpec) error {
	return s.addNode("add node", spec, nil)
}

// AddNodeUnder adds a node and a forward reference of refType from parent
// to it. Either both are applied or neither.
func (s *Space) AddNodeUnder(spec NodeSpec, parent, refType ua.NodeID) error {
	r := Reference{Source: parent, Target: spec.ID, ReferenceType: refType, IsForward: true}
	return s.addNode("add node", spec, &r)
}

func (s *Space) addNode(op string, spec NodeSpec, parentRef *Reference) error {
	n, err := buildNode(op, spec)
	if err != nil {
		return err
	}

	var typeRef *Reference
	if !spec.TypeDefinition.IsNull() {
		typeRef = &Reference{Source: n.id, Target: spec.TypeDefinition, ReferenceType: ua.HasTypeDefinition, IsForward: true}
	}

	s.mu.Lock()
	if s.frozen.Load() {
		s.mu.Unlock()
		return &NodeError{Op: op, ID: n.id, Err: ErrServerNotRunning}
	}
	if _, ok := s.nodes[n.id]; ok {
		s.mu.Unlock()
		return &NodeError{Op: op, ID: n.id, Err: ErrDuplicateID}
	}
	if parentRef != nil {
		if _, ok := s.nodes[parentRef.Source]; !ok {
			s.mu.Unlock()
			return &RefError{Op: op, Source: parentRef.Source, Target: n.id, RefType: parentRef.ReferenceType, Err: ErrDanglingEndpoint}
		}
	}
	if typeRef != nil {
		if _, ok := s.nodes[typeRef.Target]; !ok {
			s.mu.Unlock()
			return &RefError{Op: op, Source: n.id, Target: typeRef.Target, RefType: ua.HasTypeDefinition, Err: ErrDanglingEndpoint}
		}
	}

	s.seq++
	n.seq = s.seq
	s.nodes[n.id] = n
	evs := []events.Event{events.NewNodeAddedEvent(n.id, n.class)}
	for _, r := range []*Reference{parentRef, typeRef} {
		if r == nil {
			continue
		}
		s.refs.insert(*r)
		evs = append(evs, events.NewReferenceEvent(events.EventReferenceAdded, r.Source, r.Target, r.ReferenceType, true))
	}
	s.mu.Unlock()

	logger.Debug(logScope, "Node %s added (%s)", n.id, n.class)
	s.emit(evs...)
	return nil
}

// GetNode returns a copy of the node. A missing node is not an error.
func (s *Space) GetNode(id ua.NodeID) (NodeView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return NodeView{}, false
	}
	return n.view(), true
}

// RemoveNode deletes a node. Without cascade it fails while any reference
// touches the node; with cascade those references go first.
func (s *Space) RemoveNode(id ua.NodeID, cascade bool) error {
	const op = "remove node"

	s.mu.Lock()
	if s.frozen.Load() {
		s.mu.Unlock()
		return &NodeError{Op: op, ID: id, Err: ErrServerNotRunning}
	}
	if _, ok := s.nodes[id]; !ok {
		s.mu.Unlock()
		return &NodeError{Op: op, ID: id, Err: ErrNotFound}
	}
	incident := s.refs.incident(id)
	if len(incident) > 0 && !cascade {
		s.mu.Unlock()
		return &NodeError{Op: op, ID: id, Err: ErrHasReferences}
	}

	evs := make([]events.Event, 0, len(incident)+1)
	for _, r := range incident {
		// A self reference shows up twice; the second delete finds nothing.
		if s.refs.delete(r) {
			evs = append(evs, events.NewReferenceEvent(events.EventReferenceRemoved, r.Source, r.Target, r.ReferenceType, r.IsForward))
		}
	}
	delete(s.nodes, id)
	evs = append(evs, events.NewNodeRemovedEvent(id))
	s.mu.Unlock()

	logger.Debug(logScope, "Node %s removed (%d references)", id, len(incident))
	s.emit(evs...)
	return nil
}

// Len returns the number of nodes.
func (s *Space) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// Nodes returns every node id in insertion order.
func (s *Space) Nodes() []ua.NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orderedLocked()
}

func (s *Space) orderedLocked() []ua.NodeID {
	ids := make([]ua.NodeID, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b ua.NodeID) int { return cmp.Compare(s.nodes[a].seq, s.nodes[b].seq) })
	return ids
}

// Snapshot is a consistent copy of a whole address space.
type Snapshot struct {
	Namespaces []string    `json:"namespaces"`
	Nodes      []NodeView  `json:"nodes"`
	References []Reference `json:"references"`
}

// Export copies every node and reference under one read lock. Nodes and
// references keep insertion order; references are in forward form.
func (s *Space) Export() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.orderedLocked()
	snap := Snapshot{
		Namespaces: s.ns.URIs(),
		Nodes:      make([]NodeView, 0, len(ids)),
		References: s.refs.all(),
	}
	for _, id := range ids {
		snap.Nodes = append(snap.Nodes, s.nodes[id].view())
	}
	return snap
}

// ImportStats counts what Import applied and skipped.
type ImportStats struct {
	Nodes      int
	References int
	Skipped    int
}

// Import adds the nodes and references of snap that are not already
// present. Existing nodes win over snapshot content. The first other
// error stops the import.
func (s *Space) Import(snap Snapshot) (ImportStats, error) {
	var st ImportStats
	for _, uri := range snap.Namespaces {
		s.ns.Register(uri)
	}
	for _, v := range snap.Nodes {
		if _, ok := s.GetNode(v.ID); ok {
			st.Skipped++
			continue
		}
		if err := s.AddNode(v.Spec()); err != nil {
			return st, err
		}
		st.Nodes++
	}
	for _, r := range snap.References {
		err := s.AddReference(r.Source, r.Target, r.ReferenceType, r.IsForward)
		switch {
		case err == nil:
			st.References++
		case errors.Is(err, ErrDuplicateReference):
			st.Skipped++
		default:
			return st, err
		}
	}
	return st, nil
}
