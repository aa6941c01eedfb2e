package addrspace

import (
	"cmp"
	"fmt"
	"iter"
	"slices"

	"uaspace/internal/events"
	"uaspace/internal/ua"
)

// Direction selects which side of a reference Browse follows.
type Direction int

const (
	Forward Direction = iota
	Inverse
	Both
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Inverse:
		return "inverse"
	case Both:
		return "both"
	default:
		return "unknown"
	}
}

// ParseDirection parses "forward", "inverse" or "both".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "forward", "":
		return Forward, nil
	case "inverse":
		return Inverse, nil
	case "both":
		return Both, nil
	}
	return Forward, fmt.Errorf("unknown browse direction: %s", s)
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	v, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Reference is a typed, directed edge. A reference with IsForward false
// is the same edge as its mirror with source and target swapped.
type Reference struct {
	Source        ua.NodeID `json:"source"`
	Target        ua.NodeID `json:"target"`
	ReferenceType ua.NodeID `json:"reference_type"`
	IsForward     bool      `json:"is_forward"`
}

// canonical returns the forward form of r.
func (r Reference) canonical() Reference {
	if r.IsForward {
		return r
	}
	return Reference{Source: r.Target, Target: r.Source, ReferenceType: r.ReferenceType, IsForward: true}
}

// BrowseOptions filters Browse results. A null ReferenceType matches every
// reference type.
type BrowseOptions struct {
	ReferenceType   ua.NodeID
	Direction       Direction
	IncludeSubtypes bool
}

// BrowseResult is one reference seen from the browsed node.
type BrowseResult struct {
	NodeID        ua.NodeID `json:"node_id"`
	ReferenceType ua.NodeID `json:"reference_type"`
	Direction     Direction `json:"direction"`
}

// IsForward reports whether the browsed node is the source of the reference.
func (r BrowseResult) IsForward() bool { return r.Direction == Forward }

// halfRef is one endpoint's view of a reference.
type halfRef struct {
	other   ua.NodeID
	refType ua.NodeID
	forward bool
	seq     uint64
}

// referenceIndex keeps per-node adjacency in insertion order. Each edge is
// stored once per endpoint and once in byKey. Callers hold Space.mu.
type referenceIndex struct {
	adj   map[ua.NodeID][]halfRef
	byKey map[Reference]uint64
	seq   uint64
}

func newReferenceIndex() *referenceIndex {
	return &referenceIndex{
		adj:   make(map[ua.NodeID][]halfRef),
		byKey: make(map[Reference]uint64),
	}
}

func (x *referenceIndex) contains(r Reference) bool {
	_, ok := x.byKey[r.canonical()]
	return ok
}

func (x *referenceIndex) insert(r Reference) {
	c := r.canonical()
	x.seq++
	x.byKey[c] = x.seq
	x.adj[c.Source] = append(x.adj[c.Source], halfRef{other: c.Target, refType: c.ReferenceType, forward: true, seq: x.seq})
	x.adj[c.Target] = append(x.adj[c.Target], halfRef{other: c.Source, refType: c.ReferenceType, forward: false, seq: x.seq})
}

// delete removes r and reports whether it existed. Losing one half of an
// edge that byKey still knows about means the index is corrupt.
func (x *referenceIndex) delete(r Reference) bool {
	c := r.canonical()
	seq, ok := x.byKey[c]
	if !ok {
		return false
	}
	delete(x.byKey, c)
	if !x.dropHalf(c.Source, seq, true) || !x.dropHalf(c.Target, seq, false) {
		panic(fmt.Sprintf("addrspace: reference index lost half of %s -[%s]-> %s", c.Source, c.ReferenceType, c.Target))
	}
	return true
}

func (x *referenceIndex) dropHalf(id ua.NodeID, seq uint64, forward bool) bool {
	refs := x.adj[id]
	i := slices.IndexFunc(refs, func(h halfRef) bool { return h.seq == seq && h.forward == forward })
	if i < 0 {
		return false
	}
	refs = slices.Delete(refs, i, i+1)
	if len(refs) == 0 {
		delete(x.adj, id)
	} else {
		x.adj[id] = refs
	}
	return true
}

// incident returns every reference touching id, in insertion order.
func (x *referenceIndex) incident(id ua.NodeID) []Reference {
	refs := x.adj[id]
	out := make([]Reference, 0, len(refs))
	for _, h := range refs {
		out = append(out, Reference{Source: id, Target: h.other, ReferenceType: h.refType, IsForward: h.forward})
	}
	return out
}

// all returns every edge in canonical form, in insertion order.
func (x *referenceIndex) all() []Reference {
	out := make([]Reference, 0, len(x.byKey))
	for r := range x.byKey {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Reference) int { return cmp.Compare(x.byKey[a], x.byKey[b]) })
	return out
}

// subtypes returns refType and, transitively, every type reached through
// forward HasSubtype references.
func (x *referenceIndex) subtypes(refType ua.NodeID) map[ua.NodeID]struct{} {
	set := map[ua.NodeID]struct{}{refType: {}}
	queue := []ua.NodeID{refType}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, h := range x.adj[cur] {
			if !h.forward || h.refType != ua.HasSubtype {
				continue
			}
			if _, seen := set[h.other]; !seen {
				set[h.other] = struct{}{}
				queue = append(queue, h.other)
			}
		}
	}
	return set
}

// AddReference inserts a reference. Both endpoints must exist; the check
// and the insert happen under one write lock.
func (s *Space) AddReference(source, target, refType ua.NodeID, isForward bool) error {
	r := Reference{Source: source, Target: target, ReferenceType: refType, IsForward: isForward}
	refErr := func(err error) error {
		return &RefError{Op: "add reference", Source: source, Target: target, RefType: refType, Err: err}
	}
	if refType.IsNull() {
		return refErr(ua.ErrInvalidNodeID)
	}

	s.mu.Lock()
	if s.frozen.Load() {
		s.mu.Unlock()
		return refErr(ErrServerNotRunning)
	}
	if _, ok := s.nodes[source]; !ok {
		s.mu.Unlock()
		return refErr(ErrDanglingEndpoint)
	}
	if _, ok := s.nodes[target]; !ok {
		s.mu.Unlock()
		return refErr(ErrDanglingEndpoint)
	}
	if s.refs.contains(r) {
		s.mu.Unlock()
		return refErr(ErrDuplicateReference)
	}
	s.refs.insert(r)
	s.mu.Unlock()

	s.emit(events.NewReferenceEvent(events.EventReferenceAdded, source, target, refType, isForward))
	return nil
}

// RemoveReference deletes a reference given in either of its two forms.
func (s *Space) RemoveReference(source, target, refType ua.NodeID, isForward bool) error {
	r := Reference{Source: source, Target: target, ReferenceType: refType, IsForward: isForward}
	refErr := func(err error) error {
		return &RefError{Op: "remove reference", Source: source, Target: target, RefType: refType, Err: err}
	}

	s.mu.Lock()
	if s.frozen.Load() {
		s.mu.Unlock()
		return refErr(ErrServerNotRunning)
	}
	if !s.refs.delete(r) {
		s.mu.Unlock()
		if !s.exists(source) || !s.exists(target) {
			return refErr(ErrDanglingEndpoint)
		}
		return refErr(ErrNotFound)
	}
	s.mu.Unlock()

	s.emit(events.NewReferenceEvent(events.EventReferenceRemoved, source, target, refType, isForward))
	return nil
}

func (s *Space) exists(id ua.NodeID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[id]
	return ok
}

// Browse returns the references of id that match opts. The sequence is
// lazy and restartable: every range takes a fresh snapshot, so it never
// holds the lock while yielding and never observes a half-applied
// mutation. Results come in reference insertion order. An unknown id
// yields nothing.
func (s *Space) Browse(id ua.NodeID, opts BrowseOptions) iter.Seq[BrowseResult] {
	return func(yield func(BrowseResult) bool) {
		for _, r := range s.browseSnapshot(id, opts) {
			if !yield(r) {
				return
			}
		}
	}
}

// BrowseAll collects Browse into a slice.
func (s *Space) BrowseAll(id ua.NodeID, opts BrowseOptions) []BrowseResult {
	return slices.Collect(s.Browse(id, opts))
}

func (s *Space) browseSnapshot(id ua.NodeID, opts BrowseOptions) []BrowseResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var match func(ua.NodeID) bool
	switch {
	case opts.ReferenceType.IsNull():
		match = func(ua.NodeID) bool { return true }
	case opts.IncludeSubtypes:
		set := s.refs.subtypes(opts.ReferenceType)
		match = func(t ua.NodeID) bool { _, ok := set[t]; return ok }
	default:
		match = func(t ua.NodeID) bool { return t == opts.ReferenceType }
	}

	refs := s.refs.adj[id]
	out := make([]BrowseResult, 0, len(refs))
	for _, h := range refs {
		if !match(h.refType) {
			continue
		}
		dir := Inverse
		if h.forward {
			dir = Forward
		}
		if opts.Direction != Both && opts.Direction != dir {
			continue
		}
		if _, ok := s.nodes[h.other]; !ok {
			panic(fmt.Sprintf("addrspace: reference from %s points at missing node %s", id, h.other))
		}
		out = append(out, BrowseResult{NodeID: h.other, ReferenceType: h.refType, Direction: dir})
	}
	return out
}
