package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"mentorstream/internal/domain"
	"mentorstream/internal/usecase"
)

// ContentHandler exposes the generation pipeline over the gateway, both as
// WebSocket RPC methods and as plain HTTP routes.
type ContentHandler struct {
	pipeline *usecase.Pipeline
	cache    domain.ResultCache
	auth     Authenticator
	logger   *slog.Logger
}

// NewContentHandler wires a handler to the pipeline and result cache.
func NewContentHandler(pipeline *usecase.Pipeline, cache domain.ResultCache, auth Authenticator, logger *slog.Logger) *ContentHandler {
	return &ContentHandler{pipeline: pipeline, cache: cache, auth: auth, logger: logger}
}

// Register installs the handler's RPC methods and HTTP routes on the server.
func (h *ContentHandler) Register(s *Server) {
	s.RegisterHandler("content.generate", h.rpcGenerate)
	s.RegisterHandler("content.regenerate", h.rpcRegenerate)
	s.RegisterHandler("content.cancel", h.rpcCancel)

	s.RegisterHTTPRoute("GET /healthz", h.handleHealthz)
	s.RegisterHTTPRoute("GET /v1/status", h.withAuth(h.handleStatus))
	s.RegisterHTTPRoute("GET /v1/content", h.withAuth(h.handleGetContent))
	s.RegisterHTTPRoute("POST /v1/content/stream", h.withAuth(h.handleStartStream))
}

type generateResult struct {
	Content  string   `json:"content"`
	Diagrams []string `json:"diagrams,omitempty"`
	Cached   bool     `json:"cached"`
	Tokens   int      `json:"tokens,omitempty"`
	CostUSD  float64  `json:"cost_usd,omitempty"`
}

func toGenerateResult(res *usecase.Result) generateResult {
	return generateResult{
		Content:  res.Content,
		Diagrams: res.Diagrams,
		Cached:   res.Cached,
		Tokens:   res.Tokens,
		CostUSD:  res.CostUSD,
	}
}

func (h *ContentHandler) rpcGenerate(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var req domain.GenerationRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, domain.ErrInvalidInput
	}
	res, err := h.pipeline.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(toGenerateResult(res))
}

func (h *ContentHandler) rpcRegenerate(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var req domain.GenerationRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, domain.ErrInvalidInput
	}
	res, err := h.pipeline.Regenerate(ctx, req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(toGenerateResult(res))
}

func (h *ContentHandler) rpcCancel(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var req struct {
		Target string `json:"target"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.Target == "" {
		return nil, domain.ErrInvalidInput
	}
	cancelled := h.pipeline.CancelTarget(req.Target)
	return json.Marshal(map[string]bool{"cancelled": cancelled})
}

func (h *ContentHandler) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.auth.Authenticate(requestToken(r)); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (h *ContentHandler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus reports pipeline activity. With full key components in the
// query it also says whether that target is streaming right now; the entry
// count is included only for cache backends that can count cheaply.
func (h *ContentHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if key, err := keyFromQuery(r); err == nil {
		resp["streaming"] = h.pipeline.Streaming(key.Target())
	}
	if c, ok := h.cache.(interface{ Len() int }); ok {
		resp["entries"] = c.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}

func keyFromQuery(r *http.Request) (domain.ContentKey, error) {
	q := r.URL.Query()
	key := domain.ContentKey{
		SubjectID:   q.Get("subject_id"),
		ContentID:   q.Get("content_id"),
		Mode:        domain.ContentMode(q.Get("mode")),
		Version:     q.Get("version"),
		PersonaHash: q.Get("persona_hash"),
	}
	if key.SubjectID == "" || key.ContentID == "" || key.Mode == "" {
		return domain.ContentKey{}, domain.ErrInvalidInput
	}
	return key, nil
}

// handleGetContent serves a cache lookup only; it never triggers generation.
func (h *ContentHandler) handleGetContent(w http.ResponseWriter, r *http.Request) {
	key, err := keyFromQuery(r)
	if err != nil {
		http.Error(w, "missing key components", http.StatusBadRequest)
		return
	}

	content, ok, err := h.cache.Get(r.Context(), key)
	if err != nil {
		h.logger.Error("cache lookup failed", "target", key.Target(), "error", err)
		http.Error(w, "cache unavailable", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": content})
}

// handleStartStream kicks off generation in the background. Progress and the
// final document arrive on the WebSocket event feed; the response only
// acknowledges the start.
func (h *ContentHandler) handleStartStream(w http.ResponseWriter, r *http.Request) {
	var body struct {
		domain.GenerationRequest
		Regenerate bool `json:"regenerate,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	key := body.Key
	if key.SubjectID == "" || key.ContentID == "" || key.Mode == "" {
		http.Error(w, "missing key components", http.StatusBadRequest)
		return
	}

	go func() {
		ctx := context.Background()
		var err error
		if body.Regenerate {
			_, err = h.pipeline.Regenerate(ctx, body.GenerationRequest)
		} else {
			_, err = h.pipeline.Generate(ctx, body.GenerationRequest)
		}
		if err != nil && !errors.Is(err, domain.ErrSessionCancelled) {
			h.logger.Error("background generation failed", "target", key.Target(), "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "started",
		"target": key.Target(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
