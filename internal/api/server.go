package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"uaspace/internal/addrspace"
	"uaspace/internal/events"
	"uaspace/internal/history"
	"uaspace/internal/logger"
	"uaspace/internal/metrics"
	"uaspace/internal/server"
	"uaspace/internal/snapshot"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/websocket"
)

const logScope = "api"

// シャットダウン時に処理中のリクエストを待つ上限
const shutdownTimeout = 5 * time.Second

// サービス名 (メトリクスのラベル)
const (
	ServiceRead             = "Read"
	ServiceWrite            = "Write"
	ServiceBrowse           = "Browse"
	ServiceAddNodes         = "AddNodes"
	ServiceDeleteNodes      = "DeleteNodes"
	ServiceAddReferences    = "AddReferences"
	ServiceDeleteReferences = "DeleteReferences"
	ServiceHistoryRead      = "HistoryRead"
)

// ErrAlreadyBound はBindが2回呼ばれたときに返る
var ErrAlreadyBound = errors.New("api server already bound")

// Option はServerの設定を変更する関数
type Option func(*Server)

// WithEventBus はイベントストリーム (/ws) の配信元を設定する
func WithEventBus(bus *events.Bus) Option {
	return func(s *Server) {
		s.bus = bus
	}
}

// WithHistory はヒストリ参照に使うストアを設定する
func WithHistory(store *history.Store) Option {
	return func(s *Server) {
		s.history = store
	}
}

// WithSnapshots はスナップショット操作に使うストアを設定する
func WithSnapshots(store *snapshot.Store) Option {
	return func(s *Server) {
		s.snapshots = store
	}
}

// WithCollector はメトリクスの記録先を設定する
func WithCollector(c *metrics.Collector) Option {
	return func(s *Server) {
		s.collector = c
	}
}

// WithListenAddr はBindに渡されたアドレスの代わりにaddrで待ち受ける
// ライフサイクルのエンドポイントとゲートウェイのアドレスを分けるときに使う
func WithListenAddr(addr string) Option {
	return func(s *Server) {
		s.listenAddr = addr
	}
}

// Server はアドレス空間のHTTP/JSONゲートウェイ
// server.Transport を実装し、サーバーループから駆動される
type Server struct {
	space     *addrspace.Space
	bus       *events.Bus
	history   *history.Store
	snapshots *snapshot.Store
	collector *metrics.Collector
	status    func() server.Status

	listenAddr string

	mu        sync.RWMutex
	wsClients map[*websocket.Conn]string

	httpServer *http.Server
	listener   net.Listener
	serveErr   chan error
	eventCh    <-chan events.Event
	fanoutDone chan struct{}
}

var _ server.Transport = (*Server)(nil)

// NewServer は新しいAPIサーバーを作成する
// コレクター未指定なら専用のものを作る
func NewServer(space *addrspace.Space, opts ...Option) *Server {
	s := &Server{
		space:     space,
		wsClients: make(map[*websocket.Conn]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.collector == nil {
		s.collector = metrics.NewCollector()
	}
	s.registerGauges()
	return s
}

func (s *Server) registerGauges() {
	s.collector.GaugeFunc("address_space_nodes", "Number of nodes in the address space", func() float64 {
		return float64(s.space.Len())
	})
	s.collector.GaugeFunc("event_stream_clients", "Number of connected event stream clients", func() float64 {
		return float64(s.ClientCount())
	})
	if s.bus != nil {
		bus := s.bus
		s.collector.CounterFunc("events_published_total", "Events published on the bus", func() float64 {
			return float64(bus.Published())
		})
		s.collector.CounterFunc("events_dropped_total", "Events dropped because a subscriber was full", func() float64 {
			return float64(bus.Dropped())
		})
	}
}

// SetStatusSource はライフサイクル状態の取得元を設定する
// Bindより前に呼ぶこと
func (s *Server) SetStatusSource(fn func() server.Status) {
	s.status = fn
}

// Collector はメトリクスのコレクターを返す
func (s *Server) Collector() *metrics.Collector {
	return s.collector
}

// Handler はルーティング済みのHTTPハンドラを返す
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/namespaces", s.handleNamespaces)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/nodes", func(r chi.Router) {
			r.Get("/", s.handleListNodes)
			r.Post("/", s.handleAddNode)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetNode)
				r.Delete("/", s.handleDeleteNode)
				r.Get("/value", s.handleReadValue)
				r.Put("/value", s.handleWriteValue)
				r.Get("/attributes/{attr}", s.handleReadAttribute)
				r.Put("/attributes/{attr}", s.handleWriteAttribute)
				r.Get("/references", s.handleBrowse)
				r.Get("/history", s.handleHistory)
			})
		})

		r.Post("/references", s.handleAddReference)
		r.Delete("/references", s.handleDeleteReference)

		r.Get("/snapshot", s.handleSnapshotInfo)
		r.Post("/snapshot", s.handleSnapshotSave)
	})

	r.Handle("/metrics", s.collector.Handler())
	r.Handle("/ws", websocket.Handler(s.handleWebSocket))
	return r
}

// requestLogger はリクエストごとにデバッグログを出す
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Debug(logScope, "%s %s -> %d (%s) [%s]",
			r.Method, r.URL.Path, ww.Status(), time.Since(start), middleware.GetReqID(r.Context()))
	})
}

// Bind はaddrで待ち受けを開始する
func (s *Server) Bind(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return ErrAlreadyBound
	}
	if s.listenAddr != "" {
		addr = s.listenAddr
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = ln
	s.serveErr = make(chan error, 1)
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.bus != nil {
		s.eventCh = s.bus.Subscribe()
		s.fanoutDone = make(chan struct{})
		go s.fanout(s.eventCh, s.fanoutDone)
	}

	httpServer := s.httpServer
	errCh := s.serveErr
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info(logScope, "API server listening on http://%s", ln.Addr())
	return nil
}

// Addr は実際に待ち受けているアドレスを返す (未Bindならnil)
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Poll はtimeoutだけ待つ
// リクエストはServeのゴルーチンで処理されるので、ここではServeの失敗だけを拾う
func (s *Server) Poll(ctx context.Context, timeout time.Duration) error {
	s.mu.RLock()
	errCh := s.serveErr
	s.mu.RUnlock()

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	case <-t.C:
		return nil
	}
}

// Close はHTTPサーバーとイベント配信を停止する
// 2回目以降の呼び出しは何もしない
func (s *Server) Close() error {
	s.mu.Lock()
	httpServer := s.httpServer
	eventCh := s.eventCh
	fanoutDone := s.fanoutDone
	s.httpServer = nil
	s.listener = nil
	s.eventCh = nil
	s.mu.Unlock()

	if httpServer == nil {
		return nil
	}

	if eventCh != nil {
		s.bus.Unsubscribe(eventCh)
		<-fanoutDone
	}
	s.closeClients()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down api server: %w", err)
	}
	logger.Info(logScope, "API server stopped")
	return nil
}

// observe はサービス呼び出しを1件記録する
func (s *Server) observe(service string, start time.Time, err error) {
	s.collector.Observe(service, statusOf(err).String(), err, time.Since(start))
}
