package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"uaspace/internal/addrspace"
	"uaspace/internal/events"
	"uaspace/internal/logger"
	"uaspace/internal/ua"
)

const logScope = "server"

// ErrInvalidState is returned when a lifecycle call does not fit the
// current state.
var ErrInvalidState = errors.New("invalid lifecycle state")

// State is a lifecycle state.
type State int32

const (
	StateCreated State = iota
	StateConfigured
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateConfigured:
		return "Configured"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Server drives an address space through
// Created -> Configured -> Running -> Stopping -> Stopped.
// Stopped is terminal; a new Server is needed to run again.
type Server struct {
	space     *addrspace.Space
	transport Transport
	bus       *events.Bus

	cfg         Config
	configuring atomic.Bool
	state       atomic.Int32
	running     atomic.Bool

	startedAt  atomic.Pointer[time.Time]
	iterations atomic.Uint64

	doneOnce sync.Once
	done     chan struct{}
}

// New returns a server in the Created state. A nil transport is replaced
// by IdleTransport.
func New(space *addrspace.Space, transport Transport) *Server {
	if transport == nil {
		transport = IdleTransport{}
	}
	return &Server{
		space:     space,
		transport: transport,
		done:      make(chan struct{}),
	}
}

// SetEventBus publishes lifecycle transitions to bus.
func (s *Server) SetEventBus(bus *events.Bus) {
	s.bus = bus
}

// Space returns the managed address space.
func (s *Server) Space() *addrspace.Space {
	return s.space
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Running reports whether the serve loop should keep going.
func (s *Server) Running() bool {
	return s.running.Load()
}

// Config returns the applied configuration.
func (s *Server) Config() Config {
	return s.cfg
}

// Done is closed once the server reaches Stopped.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the server reaches Stopped.
func (s *Server) Wait() {
	<-s.done
}

// Configure applies cfg and moves Created -> Configured. It bootstraps
// namespace 0 into an empty address space but acquires no network
// resources. Only the first valid call gets to configure; a bootstrap
// failure leaves the server Stopped.
func (s *Server) Configure(cfg Config) error {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}
	if !s.configuring.CompareAndSwap(false, true) {
		return fmt.Errorf("configure in state %s: %w", s.State(), ErrInvalidState)
	}
	if State(s.state.Load()) != StateCreated {
		return fmt.Errorf("configure in state %s: %w", s.State(), ErrInvalidState)
	}
	s.cfg = cfg

	if s.space.Len() == 0 {
		if err := addrspace.Bootstrap(s.space, cfg.MinimalProfile); err != nil {
			logger.Error(logScope, "Bootstrap failed: %v", err)
			s.RequestStop()
			return fmt.Errorf("bootstrap: %w", err)
		}
	}

	if !s.transition(StateCreated, StateConfigured) {
		return fmt.Errorf("configure in state %s: %w", s.State(), ErrInvalidState)
	}
	logger.Info(logScope, "Configured %s (minimal profile: %v)", cfg.Endpoint(), cfg.MinimalProfile)
	return nil
}

// Run binds the transport and serves until a stop is requested or ctx is
// done. The loop checks the running flag between polls, so a stop takes
// effect within one PollInterval. Any failure to start leaves the server
// Stopped and is returned.
func (s *Server) Run(ctx context.Context) error {
	s.running.Store(true)
	if !s.transition(StateConfigured, StateRunning) {
		s.running.Store(false)
		return fmt.Errorf("run in state %s: %w", s.State(), ErrInvalidState)
	}

	if err := s.transport.Bind(s.cfg.Addr()); err != nil {
		s.RequestStop()
		s.finish()
		return fmt.Errorf("bind %s: %w", s.cfg.Addr(), err)
	}

	now := time.Now()
	s.startedAt.Store(&now)
	s.setStatus(ua.ServerStateRunning, now, true)
	logger.Info(logScope, "Serving %s", s.cfg.Endpoint())

	var loopErr error
	for s.running.Load() {
		if ctx.Err() != nil {
			s.RequestStop()
			break
		}
		err := s.transport.Poll(ctx, s.cfg.PollInterval)
		s.iterations.Add(1)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			logger.Error(logScope, "Transport poll failed: %v", err)
			loopErr = fmt.Errorf("poll: %w", err)
			s.RequestStop()
			break
		}
		s.setStatus(ua.ServerStateRunning, time.Now(), false)
	}

	if err := s.finish(); err != nil && loopErr == nil {
		loopErr = err
	}
	return loopErr
}

// RequestStop asks the server to stop. It only flips atomic state, so it
// is safe to call from a signal goroutine, and calling it again is a
// no-op. From Running it moves to Stopping and the loop finishes the
// shutdown; before Running it goes straight to Stopped. Either way the
// address space rejects mutations from here on.
func (s *Server) RequestStop() {
	for {
		switch cur := State(s.state.Load()); cur {
		case StateCreated, StateConfigured:
			if s.transition(cur, StateStopped) {
				s.space.Freeze()
				s.closeDone()
				return
			}
		case StateRunning:
			if s.transition(cur, StateStopping) {
				s.space.Freeze()
				s.running.Store(false)
				return
			}
		default:
			return
		}
	}
}

// finish moves Stopping -> Stopped and releases the transport.
func (s *Server) finish() error {
	s.setStatus(ua.ServerStateShutdown, time.Now(), false)
	err := s.transport.Close()
	if err != nil {
		logger.Error(logScope, "Transport close failed: %v", err)
		err = fmt.Errorf("close transport: %w", err)
	}
	s.transition(StateStopping, StateStopped)
	s.closeDone()
	logger.Info(logScope, "Stopped after %d iterations", s.iterations.Load())
	return err
}

func (s *Server) transition(from, to State) bool {
	if !s.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	logger.Debug(logScope, "State %s -> %s", from, to)
	if s.bus != nil {
		s.bus.Publish(events.NewServerStateEvent(to.String()))
	}
	return true
}

func (s *Server) closeDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

// setStatus keeps Server/ServerStatus current when the full profile is
// loaded. Missing status nodes are ignored.
func (s *Server) setStatus(state int32, now time.Time, starting bool) {
	if s.cfg.MinimalProfile {
		return
	}
	if starting {
		s.forceValue(ua.ServerStatusStartTime, ua.NewDateTime(now))
	}
	s.forceValue(ua.ServerStatusCurrentTime, ua.NewDateTime(now))
	s.forceValue(ua.ServerStatusState, ua.NewInt32(state))
}

func (s *Server) forceValue(id ua.NodeID, v ua.Variant) {
	err := s.space.ForceValue(id, v)
	if err != nil && !errors.Is(err, addrspace.ErrNodeNotFound) {
		logger.Warn(logScope, "Update %s failed: %v", id, err)
	}
}

// Status summarizes the server for status endpoints.
type Status struct {
	State      string    `json:"state"`
	Endpoint   string    `json:"endpoint"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	Iterations uint64    `json:"iterations"`
	Nodes      int       `json:"nodes"`
	ReadOnly   bool      `json:"read_only"`
}

// Status returns a snapshot of the lifecycle.
func (s *Server) Status() Status {
	st := Status{
		State:      s.State().String(),
		Endpoint:   s.cfg.Endpoint(),
		Iterations: s.iterations.Load(),
		Nodes:      s.space.Len(),
		ReadOnly:   s.space.Frozen(),
	}
	if t := s.startedAt.Load(); t != nil {
		st.StartedAt = *t
	}
	return st
}
