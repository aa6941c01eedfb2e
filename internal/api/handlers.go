package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"uaspace/internal/addrspace"
	"uaspace/internal/history"
	"uaspace/internal/logger"
	"uaspace/internal/model"
	"uaspace/internal/server"
	"uaspace/internal/ua"

	"github.com/go-chi/chi/v5"
)

// リクエストの形式が不正なときのエラー
var errInvalidRequest = errors.New("invalid request")

// 機能が無効化されているときのエラー
var errDisabled = errors.New("feature disabled")

// ErrorResponse はエラーレスポンス
type ErrorResponse struct {
	Status string `json:"status"`
	Code   uint32 `json:"code"`
	Error  string `json:"error"`
}

// statusOf はゲートウェイ固有のエラーを含めてStatusCodeを決める
func statusOf(err error) ua.StatusCode {
	switch {
	case errors.Is(err, errInvalidRequest):
		return ua.StatusBadInvalidArgument
	case errors.Is(err, errDisabled):
		return ua.StatusBadNotImplemented
	}
	return addrspace.StatusOf(err)
}

// httpStatus はエラーをHTTPステータスに変換する
func httpStatus(err error) int {
	switch statusOf(err) {
	case ua.StatusBadNotImplemented:
		return http.StatusNotImplemented
	case ua.StatusBadNodeIDUnknown:
		return http.StatusNotFound
	case ua.StatusBadNodeIDExists, ua.StatusBadDuplicateReferenceNotAllowed, ua.StatusBadReferenceNotAllowed:
		return http.StatusConflict
	case ua.StatusBadNotWritable:
		return http.StatusForbidden
	case ua.StatusBadServerHalted:
		return http.StatusServiceUnavailable
	case ua.StatusBadInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus(err))
	if encErr := json.NewEncoder(w).Encode(ErrorResponse{
		Status: code.String(),
		Code:   uint32(code),
		Error:  err.Error(),
	}); encErr != nil {
		logger.Error(logScope, "Failed to encode JSON: %v", encErr)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	s.writeJSONStatus(w, http.StatusOK, data)
}

// writeJSONStatus はエンコードが成功してからヘッダを送る
// 失敗したときは500とBadInternalErrorを返す
func (s *Server) writeJSONStatus(w http.ResponseWriter, status int, data any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		logger.Error(logScope, "Failed to encode JSON: %v", err)
		s.writeError(w, fmt.Errorf("encode response: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.Debug(logScope, "Failed to write response: %v", err)
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errInvalidRequest, fmt.Sprintf(format, args...))
}

// decodeBody はJSONボディを数値を保ったまま読み込む
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return invalid("bad request body: %v", err)
	}
	return nil
}

// nodeIDParam はパスの{id}をNodeIDとして解釈する
// "/" を含む文字列IDは%2Fでエスケープされて届く
func nodeIDParam(r *http.Request) (ua.NodeID, error) {
	raw, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil {
		return ua.NodeID{}, invalid("bad node id escape: %v", err)
	}
	return ua.ParseNodeID(raw)
}

// StatusResponse はステータスレスポンス
type StatusResponse struct {
	server.Status
	Namespaces       int  `json:"namespaces"`
	EventClients     int  `json:"event_clients"`
	HistoryEnabled   bool `json:"history_enabled"`
	SnapshotsEnabled bool `json:"snapshots_enabled"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var st server.Status
	if s.status != nil {
		st = s.status()
	} else {
		st = server.Status{
			State:    "Unknown",
			Nodes:    s.space.Len(),
			ReadOnly: s.space.Frozen(),
		}
	}

	s.writeJSON(w, StatusResponse{
		Status:           st,
		Namespaces:       len(s.space.Namespaces().URIs()),
		EventClients:     s.ClientCount(),
		HistoryEnabled:   s.history != nil,
		SnapshotsEnabled: s.snapshots != nil,
	})
}

// NamespaceInfo は名前空間テーブルの1行
type NamespaceInfo struct {
	Index int    `json:"index"`
	URI   string `json:"uri"`
}

func (s *Server) handleNamespaces(w http.ResponseWriter, r *http.Request) {
	uris := s.space.Namespaces().URIs()
	out := make([]NamespaceInfo, len(uris))
	for i, uri := range uris {
		out[i] = NamespaceInfo{Index: i, URI: uri}
	}
	s.writeJSON(w, out)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.collector.Snapshots())
}

// NodeSummary はノード一覧の1行
type NodeSummary struct {
	ID         ua.NodeID        `json:"id"`
	Class      string           `json:"class"`
	BrowseName ua.QualifiedName `json:"browse_name"`
}

// handleListNodes はノードを追加順に返す (?ns= で名前空間を絞り込む)
func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	nsFilter := -1
	if v := r.URL.Query().Get("ns"); v != "" {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			s.writeError(w, invalid("bad ns: %v", err))
			return
		}
		nsFilter = int(n)
	}

	out := []NodeSummary{}
	for _, id := range s.space.Nodes() {
		if nsFilter >= 0 && int(id.Namespace()) != nsFilter {
			continue
		}
		v, ok := s.space.GetNode(id)
		if !ok {
			continue
		}
		out = append(out, NodeSummary{ID: v.ID, Class: v.Class.String(), BrowseName: v.BrowseName})
	}
	s.writeJSON(w, out)
}

// NodeResponse はノードの全属性
type NodeResponse struct {
	ID          ua.NodeID             `json:"id"`
	Class       string                `json:"class"`
	BrowseName  ua.QualifiedName      `json:"browse_name"`
	DisplayName ua.LocalizedText      `json:"display_name"`
	Description ua.LocalizedText      `json:"description"`
	Attributes  map[string]ua.Variant `json:"attributes,omitempty"`
}

func nodeResponse(v addrspace.NodeView) NodeResponse {
	resp := NodeResponse{
		ID:          v.ID,
		Class:       v.Class.String(),
		BrowseName:  v.BrowseName,
		DisplayName: v.DisplayName,
		Description: v.Description,
	}
	if len(v.Attributes) > 0 {
		resp.Attributes = make(map[string]ua.Variant, len(v.Attributes))
		for a, val := range v.Attributes {
			resp.Attributes[a.String()] = val
		}
	}
	return resp
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := nodeIDParam(r)
	if err == nil {
		if v, ok := s.space.GetNode(id); ok {
			s.observe(ServiceRead, start, nil)
			s.writeJSON(w, nodeResponse(v))
			return
		}
		err = &addrspace.NodeError{Op: "get node", ID: id, Err: addrspace.ErrNotFound}
	}
	s.observe(ServiceRead, start, err)
	s.writeError(w, err)
}

// handleAddNode は情報モデルと同じ形式のノード定義を1件追加する
func (s *Server) handleAddNode(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	v, err := s.addNode(r)
	s.observe(ServiceAddNodes, start, err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSONStatus(w, http.StatusCreated, nodeResponse(v))
}

func (s *Server) addNode(r *http.Request) (addrspace.NodeView, error) {
	var def model.NodeDef
	if err := decodeBody(r, &def); err != nil {
		return addrspace.NodeView{}, err
	}
	id, err := ua.ParseNodeID(def.ID)
	if err != nil {
		return addrspace.NodeView{}, err
	}
	duplicate := &addrspace.NodeError{Op: "add node", ID: id, Err: addrspace.ErrDuplicateID}
	if _, exists := s.space.GetNode(id); exists {
		return addrspace.NodeView{}, duplicate
	}

	stats, err := model.Apply(s.space, &model.File{Nodes: []model.NodeDef{def}})
	if err != nil {
		// Applyの検証エラーはアドレス空間のエラーを包まない
		if addrspace.StatusOf(err) == ua.StatusBadInternalError {
			return addrspace.NodeView{}, fmt.Errorf("%w: %v", errInvalidRequest, err)
		}
		return addrspace.NodeView{}, err
	}
	if stats.Nodes == 0 {
		return addrspace.NodeView{}, duplicate
	}

	v, ok := s.space.GetNode(id)
	if !ok {
		// 追加直後に別のリクエストで削除された
		return addrspace.NodeView{}, &addrspace.NodeError{Op: "add node", ID: id, Err: addrspace.ErrNotFound}
	}
	return v, nil
}

// handleDeleteNode はノードを削除する (?cascade=true で参照ごと削除)
func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	err := s.deleteNode(r)
	s.observe(ServiceDeleteNodes, start, err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteNode(r *http.Request) error {
	id, err := nodeIDParam(r)
	if err != nil {
		return err
	}
	cascade := false
	if v := r.URL.Query().Get("cascade"); v != "" {
		if cascade, err = strconv.ParseBool(v); err != nil {
			return invalid("bad cascade: %v", err)
		}
	}
	return s.space.RemoveNode(id, cascade)
}

// ValueResponse は属性の読み書き結果
type ValueResponse struct {
	NodeID    ua.NodeID  `json:"node_id"`
	Attribute string     `json:"attribute"`
	Value     ua.Variant `json:"value"`
	Status    string     `json:"status"`
}

func (s *Server) handleReadValue(w http.ResponseWriter, r *http.Request) {
	s.read(w, r, ua.AttrValue)
}

func (s *Server) handleReadAttribute(w http.ResponseWriter, r *http.Request) {
	attr, err := ua.ParseAttributeID(chi.URLParam(r, "attr"))
	if err != nil {
		s.observe(ServiceRead, time.Now(), err)
		s.writeError(w, fmt.Errorf("%w: %v", addrspace.ErrAttributeNotApplicable, err))
		return
	}
	s.read(w, r, attr)
}

func (s *Server) read(w http.ResponseWriter, r *http.Request, attr ua.AttributeID) {
	start := time.Now()
	id, err := nodeIDParam(r)
	var value ua.Variant
	if err == nil {
		value, err = s.space.ReadAttribute(id, attr)
	}
	s.observe(ServiceRead, start, err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, ValueResponse{NodeID: id, Attribute: attr.String(), Value: value, Status: ua.StatusGood.String()})
}

// WriteRequest は書き込みリクエスト
// Typeを省略すると属性の型 (Valueならノードのデータ型) を使う
type WriteRequest struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

func (s *Server) handleWriteValue(w http.ResponseWriter, r *http.Request) {
	s.write(w, r, ua.AttrValue)
}

func (s *Server) handleWriteAttribute(w http.ResponseWriter, r *http.Request) {
	attr, err := ua.ParseAttributeID(chi.URLParam(r, "attr"))
	if err != nil {
		s.observe(ServiceWrite, time.Now(), err)
		s.writeError(w, fmt.Errorf("%w: %v", addrspace.ErrAttributeNotApplicable, err))
		return
	}
	s.write(w, r, attr)
}

func (s *Server) write(w http.ResponseWriter, r *http.Request, attr ua.AttributeID) {
	start := time.Now()
	id, value, err := s.writeTarget(r, attr)
	if err == nil {
		err = s.space.WriteAttribute(id, attr, value)
	}
	s.observe(ServiceWrite, start, err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, ValueResponse{NodeID: id, Attribute: attr.String(), Value: value, Status: ua.StatusGood.String()})
}

func (s *Server) writeTarget(r *http.Request, attr ua.AttributeID) (ua.NodeID, ua.Variant, error) {
	id, err := nodeIDParam(r)
	if err != nil {
		return id, ua.Variant{}, err
	}

	var req WriteRequest
	if err := decodeBody(r, &req); err != nil {
		return id, ua.Variant{}, err
	}

	var t ua.TypeID
	switch {
	case req.Type != "":
		if t, err = ua.ParseTypeID(req.Type); err != nil {
			return id, ua.Variant{}, fmt.Errorf("%w: %v", ua.ErrTypeMismatch, err)
		}
	default:
		t, err = s.impliedType(id, attr)
		if err != nil {
			return id, ua.Variant{}, err
		}
	}

	value, err := ua.VariantFrom(t, req.Value)
	return id, value, err
}

// impliedType は型が省略された書き込みの型を決める
func (s *Server) impliedType(id ua.NodeID, attr ua.AttributeID) (ua.TypeID, error) {
	if t, ok := attr.FixedType(); ok {
		return t, nil
	}
	v, ok := s.space.GetNode(id)
	if !ok {
		return ua.TypeNull, &addrspace.NodeError{Op: "write", ID: id, Err: addrspace.ErrNotFound}
	}
	if t, ok := v.DataType(); ok {
		return t, nil
	}
	if cur, ok := v.Attribute(attr); ok && !cur.IsNull() {
		return cur.Type, nil
	}
	return ua.TypeNull, invalid("type is required for %s of %s", attr, id)
}

// BrowseResponse はブラウズ結果
type BrowseResponse struct {
	NodeID     ua.NodeID                `json:"node_id"`
	References []addrspace.BrowseResult `json:"references"`
}

// handleBrowse は参照を返す
// ?type= 参照型 ?direction=forward|inverse|both ?subtypes=true
func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, results, err := s.browse(r)
	s.observe(ServiceBrowse, start, err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, BrowseResponse{NodeID: id, References: results})
}

func (s *Server) browse(r *http.Request) (ua.NodeID, []addrspace.BrowseResult, error) {
	id, err := nodeIDParam(r)
	if err != nil {
		return id, nil, err
	}
	if _, ok := s.space.GetNode(id); !ok {
		return id, nil, &addrspace.NodeError{Op: "browse", ID: id, Err: addrspace.ErrNotFound}
	}

	q := r.URL.Query()
	var opts addrspace.BrowseOptions
	if v := q.Get("type"); v != "" {
		if opts.ReferenceType, err = ua.ParseReferenceType(v); err != nil {
			return id, nil, invalid("%v", err)
		}
	}
	if opts.Direction, err = addrspace.ParseDirection(q.Get("direction")); err != nil {
		return id, nil, invalid("%v", err)
	}
	if v := q.Get("subtypes"); v != "" {
		if opts.IncludeSubtypes, err = strconv.ParseBool(v); err != nil {
			return id, nil, invalid("bad subtypes: %v", err)
		}
	}

	results := s.space.BrowseAll(id, opts)
	if results == nil {
		results = []addrspace.BrowseResult{}
	}
	return id, results, nil
}

func (s *Server) handleAddReference(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ref, err := s.referenceBody(r)
	if err == nil {
		err = s.space.AddReference(ref.Source, ref.Target, ref.ReferenceType, ref.IsForward)
	}
	s.observe(ServiceAddReferences, start, err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSONStatus(w, http.StatusCreated, ref)
}

func (s *Server) handleDeleteReference(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ref, err := s.referenceBody(r)
	if err == nil {
		err = s.space.RemoveReference(ref.Source, ref.Target, ref.ReferenceType, ref.IsForward)
	}
	s.observe(ServiceDeleteReferences, start, err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// referenceBody は情報モデルと同じ形式の参照定義を読む
// ノードIDはサーバーの名前空間インデックスで解釈する
func (s *Server) referenceBody(r *http.Request) (addrspace.Reference, error) {
	var def model.Reference
	if err := decodeBody(r, &def); err != nil {
		return addrspace.Reference{}, err
	}

	source, err := ua.ParseNodeID(def.Source)
	if err != nil {
		return addrspace.Reference{}, err
	}
	target, err := ua.ParseNodeID(def.Target)
	if err != nil {
		return addrspace.Reference{}, err
	}
	if def.Type == "" {
		return addrspace.Reference{}, invalid("reference type is required")
	}
	refType, err := ua.ParseReferenceType(def.Type)
	if err != nil {
		return addrspace.Reference{}, invalid("%v", err)
	}

	forward := true
	if def.Forward != nil {
		forward = *def.Forward
	}
	return addrspace.Reference{Source: source, Target: target, ReferenceType: refType, IsForward: forward}, nil
}

// handleHistory は記録済みの値を返す
// ?from= ?to= (RFC3339) ?limit=
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	samples, err := s.queryHistory(r)
	s.observe(ServiceHistoryRead, start, err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, samples)
}

func (s *Server) queryHistory(r *http.Request) ([]history.Sample, error) {
	if s.history == nil {
		return nil, fmt.Errorf("history: %w", errDisabled)
	}
	id, err := nodeIDParam(r)
	if err != nil {
		return nil, err
	}
	if _, ok := s.space.GetNode(id); !ok {
		return nil, &addrspace.NodeError{Op: "history read", ID: id, Err: addrspace.ErrNotFound}
	}

	q := history.Query{NodeID: id}
	params := r.URL.Query()
	if q.From, err = parseTime(params.Get("from")); err != nil {
		return nil, invalid("bad from: %v", err)
	}
	if q.To, err = parseTime(params.Get("to")); err != nil {
		return nil, invalid("bad to: %v", err)
	}
	if v := params.Get("limit"); v != "" {
		if q.Limit, err = strconv.Atoi(v); err != nil || q.Limit < 0 {
			return nil, invalid("bad limit: %q", v)
		}
	}

	samples, err := s.history.Query(r.Context(), q)
	if err != nil {
		return nil, err
	}
	if samples == nil {
		samples = []history.Sample{}
	}
	return samples, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func (s *Server) handleSnapshotInfo(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		s.writeError(w, fmt.Errorf("snapshots: %w", errDisabled))
		return
	}
	info, ok, err := s.snapshots.Info()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		s.writeError(w, fmt.Errorf("no snapshot saved yet: %w", addrspace.ErrNotFound))
		return
	}
	s.writeJSON(w, info)
}

func (s *Server) handleSnapshotSave(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		s.writeError(w, fmt.Errorf("snapshots: %w", errDisabled))
		return
	}
	info, err := s.snapshots.Save(s.space)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSONStatus(w, http.StatusCreated, info)
}
