package network

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/MRamiBalles/GatoVirtual/server/internal/domain/pet"
	"github.com/MRamiBalles/GatoVirtual/server/internal/infra/ai"
	"github.com/MRamiBalles/GatoVirtual/server/internal/limiter"
	"github.com/MRamiBalles/GatoVirtual/server/internal/platform/logger"
	"github.com/MRamiBalles/GatoVirtual/server/internal/platform/metrics"
)

// CommunicationError is the only failure text the boundary reveals.
const CommunicationError = "Communication error with the cat"

// maxChatBody caps the request body read by the boundary.
const maxChatBody = 16 << 10

// ChatRequest is the body accepted by the chat boundary.
type ChatRequest struct {
	Message string     `json:"message"`
	Stats   *pet.Stats `json:"stats"`
}

// ChatResponse carries the generated reply.
type ChatResponse struct {
	Text string `json:"text"`
}

// ChatHandler is the stateless chat endpoint for clients that keep the pet
// themselves and only need a reply. It spaces callers by source identity and
// renders the guided prompt from the stats they send.
type ChatHandler struct {
	gen     ai.LLMProvider
	spacing *limiter.SpacingGuard
	timeout time.Duration
	now     func() time.Time
	logger  *logger.Logger
	metrics *metrics.Collector
}

// NewChatHandler creates the boundary. A nil spacing guard disables spacing.
func NewChatHandler(gen ai.LLMProvider, spacing *limiter.SpacingGuard, timeout time.Duration, log *logger.Logger) *ChatHandler {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = logger.Discard()
	}
	return &ChatHandler{
		gen:     gen,
		spacing: spacing,
		timeout: timeout,
		now:     time.Now,
		logger:  log,
		metrics: metrics.Get(),
	}
}

// WithMetrics replaces the collector used by the handler.
func (h *ChatHandler) WithMetrics(c *metrics.Collector) *ChatHandler {
	h.metrics = c
	return h
}

// ServeHTTP handles POST /api/chat.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.metrics.RecordChat(metrics.ChatBoundaryHit)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.spacing != nil {
		source := SourceIdentity(r)
		if d := h.spacing.Check(source, h.now()); !d.Allowed {
			h.logger.Warn("Chat spam detected from " + source)
			h.metrics.RecordChat(metrics.ChatSpacing)
			jsonError(w, d.Reason.Message(), http.StatusTooManyRequests)
			return
		}
	}

	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		h.logger.Warn("Malformed chat request: " + err.Error())
		jsonError(w, CommunicationError, http.StatusInternalServerError)
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" || req.Stats == nil {
		h.logger.Warn("Malformed chat request: missing message or stats")
		jsonError(w, CommunicationError, http.StatusInternalServerError)
		return
	}

	reply, err := h.generate(r.Context(), message, req.Stats.Clamp())
	if err != nil {
		h.logger.Error("Chat generation failed: " + err.Error())
		h.metrics.RecordChat(metrics.ChatFallback)
		jsonError(w, CommunicationError, http.StatusInternalServerError)
		return
	}

	h.metrics.RecordChat(metrics.ChatReplied)
	jsonSuccess(w, ChatResponse{Text: reply})
}

func (h *ChatHandler) generate(ctx context.Context, message string, stats pet.Stats) (string, error) {
	if h.gen == nil {
		return "", &ai.ServiceError{Provider: "none", Message: "no generator configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	resp, err := h.gen.Complete(ctx, ai.Guided.Request(message, stats))
	h.metrics.RecordLLMCall(time.Since(start), err)
	if err != nil {
		return "", err
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", &ai.ServiceError{Provider: h.gen.Name(), Message: "empty reply"}
	}
	return strings.TrimSpace(resp.Content), nil
}
