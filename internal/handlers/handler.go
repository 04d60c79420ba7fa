package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatrix/internal/ai"
	"github.com/eldtechnologies/chatrix/internal/models"
	"github.com/eldtechnologies/chatrix/internal/store"
)

// emailRegex validates email addresses per RFC 5322 (simplified).
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Realtime delivers events to connected users.
type Realtime interface {
	Publish(userID string, event models.Event) int
	ServeWS(w http.ResponseWriter, r *http.Request, userID string)
	Online() []string
}

// Deps are the collaborators shared by all handlers. Any store may be nil
// when it is not configured; dependent endpoints then report 503.
type Deps struct {
	Users     store.DataStore
	Messages  store.MessageStore
	AI        ai.Replier
	Realtime  Realtime
	AITimeout time.Duration
	JWTSecret string
	TokenTTL  time.Duration
	Secure    bool // mark the session cookie Secure
	Logger    zerolog.Logger
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	users     store.DataStore
	messages  store.MessageStore
	ai        ai.Replier
	realtime  Realtime
	aiTimeout time.Duration
	secret    []byte
	tokenTTL  time.Duration
	secure    bool
	logger    zerolog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(deps Deps) *Handler {
	if deps.AITimeout <= 0 {
		deps.AITimeout = 20 * time.Second
	}
	if deps.TokenTTL <= 0 {
		deps.TokenTTL = 7 * 24 * time.Hour
	}
	return &Handler{
		users:     deps.Users,
		messages:  deps.Messages,
		ai:        deps.AI,
		realtime:  deps.Realtime,
		aiTimeout: deps.AITimeout,
		secret:    []byte(deps.JWTSecret),
		tokenTTL:  deps.TokenTTL,
		secure:    deps.Secure,
		logger:    deps.Logger,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// sanitizeText trims text and removes control characters other than
// newlines and tabs.
func sanitizeText(text string) string {
	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, text)
	return strings.TrimSpace(text)
}

// sanitizeName trims a display name, strips control characters and caps it
// at 100 bytes.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	if len(name) > 100 {
		name = strings.ToValidUTF8(name[:100], "")
	}
	return name
}

// isValidEmail reports whether email is empty or a plausible address.
func isValidEmail(email string) bool {
	if email == "" {
		return true
	}
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}
