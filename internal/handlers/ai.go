package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/eldtechnologies/chatrix/internal/ai"
	"github.com/eldtechnologies/chatrix/internal/api/middleware"
	"github.com/eldtechnologies/chatrix/internal/metrics"
)

// maxAIMessageRunes bounds a single prompt from the user.
const maxAIMessageRunes = 2000

// AIChatRequest is the body of POST /ai/chat. Both fields are decoded
// lazily so malformed values can be reported or sanitized individually.
type AIChatRequest struct {
	Message json.RawMessage `json:"message"`
	History json.RawMessage `json:"history"`
}

// AIChatResponse is the reply to POST /ai/chat.
type AIChatResponse struct {
	Text string `json:"text"`
}

// ChatWithAI answers a message addressed to the AI participant. The message
// is trimmed and stripped of control characters other than newlines and
// tabs before validation, and that cleaned text is what the provider sees.
// The length limit applies to the cleaned text.
func (h *Handler) ChatWithAI(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if h.ai == nil {
		metrics.AIRequests.WithLabelValues("misconfigured").Inc()
		h.Error(w, http.StatusInternalServerError, "AI provider is not configured")
		return
	}

	var req AIChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.AIRequests.WithLabelValues("invalid").Inc()
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var message string
	if err := json.Unmarshal(req.Message, &message); err != nil || sanitizeText(message) == "" {
		metrics.AIRequests.WithLabelValues("invalid").Inc()
		h.Error(w, http.StatusBadRequest, "message (string) is required")
		return
	}
	message = sanitizeText(message)
	if utf8.RuneCountInString(message) > maxAIMessageRunes {
		metrics.AIRequests.WithLabelValues("invalid").Inc()
		h.Error(w, http.StatusBadRequest, "message too long (max 2000 characters)")
		return
	}

	// Undecodable history is treated as absent.
	var rawHistory any
	if len(req.History) > 0 {
		_ = json.Unmarshal(req.History, &rawHistory)
	}
	history := ai.SanitizeHistory(rawHistory)
	system := ai.BuildSystemPrompt(user.FullName)

	ctx, cancel := context.WithTimeout(r.Context(), h.aiTimeout)
	defer cancel()

	start := time.Now()
	text, err := h.ai.Reply(ctx, system, history, message)
	metrics.AIProviderLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		log := h.logger.With().
			Err(err).
			Str("user", user.ID.String()).
			Int("history", len(history)).
			Logger()

		switch {
		case errors.Is(err, ai.ErrMisconfigured):
			metrics.AIRequests.WithLabelValues("misconfigured").Inc()
			log.Error().Msg("AI provider credentials missing")
			h.Error(w, http.StatusInternalServerError, "AI provider is not configured")
		case errors.Is(err, ai.ErrRateLimited):
			metrics.AIRequests.WithLabelValues("rate_limited").Inc()
			log.Warn().Msg("AI provider rate limit reached")
			h.Error(w, http.StatusTooManyRequests, "AI rate limit reached. Try again shortly.")
		default:
			metrics.AIRequests.WithLabelValues("failed").Inc()
			log.Error().Msg("AI provider call failed")
			h.Error(w, http.StatusInternalServerError, "AI error")
		}
		return
	}

	outcome := "ok"
	if text == ai.FallbackReply {
		outcome = "fallback"
	}
	metrics.AIRequests.WithLabelValues(outcome).Inc()

	h.JSON(w, http.StatusOK, AIChatResponse{Text: text})
}
