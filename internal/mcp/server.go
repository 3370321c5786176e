// Package mcp speaks JSON-RPC over HTTP and stdio for the prompt
// tools. The HTTP transport carries session tracking, origin and API
// key checks, and per-client rate limiting; tool dispatch itself is
// transport-agnostic.
package mcp

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"promptforge/internal/config"
	"promptforge/internal/fault"
	"promptforge/internal/observability"
	"promptforge/internal/pipeline"
	"promptforge/internal/ratelimit"
	"promptforge/internal/store"
	"promptforge/internal/telemetry"
	"promptforge/internal/tools"
)

const (
	serverVersion = "0.1.0"
	sessionTTL    = 24 * time.Hour
)

type clientIDKey struct{}

func withClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientIDKey{}, id)
}

func clientFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(clientIDKey{}).(string); ok && id != "" {
		return id
	}
	return "local"
}

// toolFunc decodes its own arguments so that each tool owns its input
// shape and the dispatcher stays a flat lookup.
type toolFunc func(ctx context.Context, args json.RawMessage) (any, error)

type Server struct {
	Config   config.Config
	Tools    *tools.Service
	Limiter  *ratelimit.Limiter
	Throttle *observability.ThrottleObserver

	sessions *sessionTable
	toolset  map[string]toolFunc
}

func NewServer(cfg config.Config, toolsSvc *tools.Service, limiter *ratelimit.Limiter, throttle *observability.ThrottleObserver) *Server {
	s := &Server{
		Config:   cfg,
		Tools:    toolsSvc,
		Limiter:  limiter,
		Throttle: throttle,
		sessions: newSessionTable(),
	}
	s.toolset = map[string]toolFunc{
		"refine_prompt":   s.toolRefine,
		"validate_prompt": s.toolValidate,
		"score_prompt":    s.toolScore,
		"save_prompt":     s.toolSave,
		"get_prompt":      s.toolGet,
		"search_prompts":  s.toolSearch,
		"similar_prompts": s.toolSimilar,
		"get_stats":       s.toolStats,
		"list_domains":    s.toolDomains,
	}
	return s
}

func (s *Server) HandleHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := s.checkOrigin(r); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	log.Printf("mcp method=%s protocol_version=%q", req.Method, strings.TrimSpace(r.Header.Get("MCP-Protocol-Version")))

	sessionID := r.Header.Get("MCP-Session-Id")
	if req.Method != "initialize" && !s.sessions.active(sessionID) {
		writeRPC(w, respondError(req.ID, plainError(-32000, "missing or invalid MCP-Session-Id")))
		return
	}

	ctx := withClientID(r.Context(), clientID(r))
	result, err := s.route(ctx, req)
	if err != nil {
		writeRPC(w, respondError(req.ID, rpcError(err)))
		return
	}
	if req.Method == "initialize" {
		if sessionID == "" {
			sessionID = s.sessions.open()
		}
		w.Header().Set("MCP-Session-Id", sessionID)
	}
	w.Header().Set("MCP-Protocol-Version", s.Config.MCP.ProtocolVersion)
	writeRPC(w, respond(req.ID, result))
}

// clientID keys the rate limiter: the API key when one is presented,
// otherwise the remote host.
func clientID(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return "local"
	}
	return host
}

func (s *Server) HandleSSEStub(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusNotImplemented)
	_, _ = w.Write([]byte("SSE not supported; use POST /mcp"))
}

func (s *Server) route(ctx context.Context, req Request) (any, error) {
	switch req.Method {
	case "initialize":
		return s.handshake(), nil
	case "tools/list":
		return ListTools(), nil
	case "tools/call":
		return s.callTool(ctx, req)
	case "resources/list":
		return ListResources(), nil
	case "resources/read":
		return s.readResource(ctx, req)
	default:
		return nil, fmt.Errorf("unknown method: %s", req.Method)
	}
}

func (s *Server) handshake() map[string]any {
	return map[string]any{
		"protocolVersion": s.Config.MCP.ProtocolVersion,
		"serverInfo": map[string]any{
			"name":    "promptforged",
			"version": serverVersion,
		},
		"capabilities": map[string]any{
			"tools":     true,
			"resources": true,
		},
	}
}

func (s *Server) callTool(ctx context.Context, req Request) (any, error) {
	var params ToolCallParams
	if err := unpack(req.Params, &params); err != nil {
		return nil, err
	}
	run, ok := s.toolset[params.Name]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", params.Name)
	}

	if err := s.admit(ctx, params.Name); err != nil {
		return nil, err
	}

	start := time.Now()
	requestID := observability.NewRequestID()
	result, callErr := run(ctx, params.Arguments)
	result = stamp(result, "requestId", requestID)
	callID := s.audit(ctx, params.Name, digest(params.Arguments), result, start, callErr)
	result = stamp(result, "toolCallId", callID)
	return result, callErr
}

// admit runs the per-client token bucket ahead of tool execution.
func (s *Server) admit(ctx context.Context, toolName string) error {
	if s.Limiter == nil || s.Config.RateLimit.PerMinute <= 0 {
		return nil
	}
	client := clientFromContext(ctx)
	allowed, retryAfter := s.Limiter.Allow(client, s.Config.RateLimit.PerMinute, s.Config.RateLimit.Burst)
	if !allowed {
		if s.Throttle != nil {
			s.Throttle.RecordDeny(client, "rate_limited")
		}
		return &ratelimit.Error{RetryAfterSeconds: retryAfter}
	}
	if s.Throttle != nil {
		used, capacity := s.Limiter.Usage(client)
		s.Throttle.RecordAllow(client, used, capacity)
	}
	return nil
}

func (s *Server) toolRefine(ctx context.Context, args json.RawMessage) (any, error) {
	var in pipeline.ProcessInput
	if err := unpack(args, &in); err != nil {
		return nil, err
	}
	return s.Tools.RefinePrompt(ctx, in)
}

func (s *Server) toolValidate(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Prompt string `json:"prompt"`
		Domain string `json:"domain"`
	}
	if err := unpack(args, &in); err != nil {
		return nil, err
	}
	return s.Tools.ValidatePrompt(ctx, in.Prompt, in.Domain)
}

func (s *Server) toolScore(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Prompt string `json:"prompt"`
		Domain string `json:"domain"`
	}
	if err := unpack(args, &in); err != nil {
		return nil, err
	}
	return s.Tools.ScorePrompt(ctx, in.Prompt, in.Domain)
}

func (s *Server) toolSave(ctx context.Context, args json.RawMessage) (any, error) {
	var in store.Prompt
	if err := unpack(args, &in); err != nil {
		return nil, err
	}
	return s.Tools.SavePrompt(ctx, in)
}

func (s *Server) toolGet(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		ID string `json:"id"`
	}
	if err := unpack(args, &in); err != nil {
		return nil, err
	}
	return s.Tools.GetPrompt(ctx, in.ID)
}

func (s *Server) toolSearch(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Query  string `json:"query"`
		Domain string `json:"domain"`
		Limit  int    `json:"limit"`
	}
	if err := unpack(args, &in); err != nil {
		return nil, err
	}
	return s.Tools.SearchPrompts(ctx, in.Query, in.Domain, in.Limit)
}

func (s *Server) toolSimilar(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Text   string `json:"text"`
		Domain string `json:"domain"`
		TopK   int    `json:"topK"`
	}
	if err := unpack(args, &in); err != nil {
		return nil, err
	}
	return s.Tools.SimilarPrompts(ctx, in.Text, in.Domain, in.TopK)
}

func (s *Server) toolStats(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Days int `json:"days"`
	}
	// Stats take no required arguments; an absent block means defaults.
	if len(args) > 0 {
		if err := unpack(args, &in); err != nil {
			return nil, err
		}
	}
	return s.Tools.GetStats(ctx, in.Days)
}

func (s *Server) toolDomains(ctx context.Context, _ json.RawMessage) (any, error) {
	return s.Tools.ListDomains(ctx)
}

// audit hashes inputs and outputs into the tool_calls record and emits
// the matching telemetry event. It returns the record ID, or "" when no
// store is wired.
func (s *Server) audit(ctx context.Context, toolName string, inputsHash string, result any, start time.Time, callErr error) string {
	if s.Tools == nil || s.Tools.Store == nil {
		return ""
	}
	latency := int(time.Since(start).Milliseconds())
	errorCode := ""
	if callErr != nil {
		errorCode = fault.KindOf(callErr).String()
	}
	callID, err := s.Tools.Store.RecordToolCall(ctx, toolName, inputsHash, digest(result), latency, callErr == nil, errorCode)
	if err != nil {
		return ""
	}
	s.Tools.Telemetry.Track(ctx, telemetry.EventToolCall, map[string]any{
		"tool":       toolName,
		"ok":         callErr == nil,
		"latency_ms": latency,
	})
	return callID
}

func digest(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:])
}

// stamp adds an identifier field to map-shaped results and leaves
// every other result shape untouched.
func stamp(result any, key, value string) any {
	if value == "" {
		return result
	}
	if fields, ok := result.(map[string]any); ok {
		fields[key] = value
	}
	return result
}

func (s *Server) readResource(ctx context.Context, req Request) (any, error) {
	var params ResourceReadParams
	if err := unpack(req.Params, &params); err != nil {
		return nil, err
	}
	switch {
	case params.URI == "prompt://domains":
		return s.Tools.ListDomains(ctx)
	case params.URI == "prompt://stats":
		return s.Tools.GetStats(ctx, 30)
	case strings.HasPrefix(params.URI, "prompt://prompts/"):
		id := strings.TrimPrefix(params.URI, "prompt://prompts/")
		return s.Tools.GetPrompt(ctx, id)
	default:
		return nil, fmt.Errorf("resource not found: %s", params.URI)
	}
}

func (s *Server) checkOrigin(r *http.Request) error {
	if s.Config.Dev.Mode {
		return nil
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients present an API key instead of an origin.
		if s.Config.Security.APIKey == "" {
			return errors.New("missing origin")
		}
		if r.Header.Get("X-API-Key") != s.Config.Security.APIKey {
			return errors.New("invalid api key")
		}
		return nil
	}
	if len(s.Config.MCP.AllowOrigins) == 0 || slices.Contains(s.Config.MCP.AllowOrigins, origin) {
		return nil
	}
	return errors.New("origin not allowed")
}

// rpcError maps an internal failure onto the wire code a client can
// act on, with a retry hint where retrying can help.
func rpcError(err error) *ResponseError {
	var rateErr *ratelimit.Error
	switch {
	case errors.As(err, &rateErr):
		return &ResponseError{Code: -32042, Message: "rate_limited", Data: map[string]any{
			"retryable":           true,
			"retry_after_seconds": rateErr.RetryAfterSeconds,
		}}
	case fault.IsNotFound(err):
		return &ResponseError{Code: -32001, Message: "not_found", Data: map[string]any{"retryable": false}}
	case fault.KindOf(err) == fault.Invalid:
		return &ResponseError{Code: -32602, Message: err.Error()}
	case fault.IsUnavailable(err):
		return &ResponseError{Code: -32050, Message: "upstream_unavailable", Data: map[string]any{"retryable": true}}
	default:
		return &ResponseError{Code: -32000, Message: err.Error()}
	}
}

func plainError(code int, message string) *ResponseError {
	return &ResponseError{Code: code, Message: message}
}

func respond(id any, result any) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}

func respondError(id any, rpcErr *ResponseError) Response {
	return Response{JSONRPC: "2.0", ID: id, Error: rpcErr}
}

func writeRPC(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// unpack decodes a JSON-RPC payload. Absent and malformed payloads are
// both invalid-params conditions, not server faults.
func unpack(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return fault.Invalidf("mcp.params", errors.New("missing params"))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fault.Invalidf("mcp.params", err)
	}
	return nil
}

// Sessions live in process memory; a restart invalidates all of them
// and clients re-initialize.
type sessionTable struct {
	mu     sync.Mutex
	expiry map[string]time.Time
}

func newSessionTable() *sessionTable {
	return &sessionTable{expiry: make(map[string]time.Time)}
}

func (st *sessionTable) open() string {
	id := uuid.NewString()
	st.mu.Lock()
	st.expiry[id] = time.Now().Add(sessionTTL)
	st.mu.Unlock()
	return id
}

func (st *sessionTable) active(id string) bool {
	if id == "" {
		return false
	}
	st.mu.Lock()
	deadline, ok := st.expiry[id]
	st.mu.Unlock()
	return ok && time.Now().Before(deadline)
}
