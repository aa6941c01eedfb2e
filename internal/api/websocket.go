package api

import (
	"encoding/json"
	"time"

	"uaspace/internal/events"
	"uaspace/internal/logger"

	"golang.org/x/net/websocket"
)

// 1クライアントへの送信にかける上限
const wsWriteTimeout = 5 * time.Second

// handleWebSocket はイベントストリームの接続を受け付ける
// ?type=value_written のように指定するとその種類だけを配信する
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	filter := ws.Request().URL.Query().Get("type")

	s.mu.Lock()
	s.wsClients[ws] = filter
	s.mu.Unlock()
	logger.Debug(logScope, "Event stream client connected (filter: %q)", filter)

	defer s.dropClient(ws)

	// クライアントからのメッセージは読み捨てる (切断検知のため)
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			break
		}
	}
}

func (s *Server) dropClient(ws *websocket.Conn) {
	s.mu.Lock()
	_, ok := s.wsClients[ws]
	delete(s.wsClients, ws)
	s.mu.Unlock()

	if ok {
		_ = ws.Close()
		logger.Debug(logScope, "Event stream client disconnected")
	}
}

// ClientCount は接続中のイベントストリームクライアント数を返す
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.wsClients)
}

// fanout はバスのイベントを全クライアントに配信する
// chが閉じられたら終了する
func (s *Server) fanout(ch <-chan events.Event, done chan<- struct{}) {
	defer close(done)
	for e := range ch {
		s.broadcast(e)
	}
}

type wsTarget struct {
	conn   *websocket.Conn
	filter string
}

func (s *Server) broadcast(e events.Event) {
	s.mu.RLock()
	if len(s.wsClients) == 0 {
		s.mu.RUnlock()
		return
	}
	clients := make([]wsTarget, 0, len(s.wsClients))
	for ws, filter := range s.wsClients {
		clients = append(clients, wsTarget{conn: ws, filter: filter})
	}
	s.mu.RUnlock()

	data, err := json.Marshal(e)
	if err != nil {
		logger.Error(logScope, "Failed to encode event: %v", err)
		return
	}

	for _, c := range clients {
		if c.filter != "" && c.filter != string(e.Type) {
			continue
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := websocket.Message.Send(c.conn, string(data)); err != nil {
			logger.Warn(logScope, "Dropping event stream client: %v", err)
			s.dropClient(c.conn)
		}
	}
}

func (s *Server) closeClients() {
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for ws := range s.wsClients {
		clients = append(clients, ws)
	}
	s.mu.RUnlock()

	for _, ws := range clients {
		s.dropClient(ws)
	}
}
