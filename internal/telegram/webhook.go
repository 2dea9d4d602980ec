package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

// HTTP endpoints
const (
	HealthPath        = "/healthz"
	RootPath          = "/"
	SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"
	RequestIDHeader   = "X-Request-ID"
	Banner            = "yt-downloader-bot is running with webhook"
	MaxUpdateBytes    = 1 << 20
	DefaultUpdateWait = 30 * time.Second
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// RequestIDFromContext returns the request id set by the RequestID middleware
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

// WebhookHandler serves the Bot API webhook, a health check and a banner
type WebhookHandler struct {
	dispatcher *Dispatcher
	path       string
	secret     string
	logger     *slog.Logger
	mux        *http.ServeMux
}

// NewWebhookHandler creates the webhook HTTP handler. Updates are accepted
// on POST path; when secret is set the secret token header must match.
func NewWebhookHandler(dispatcher *Dispatcher, path, secret string, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	h := &WebhookHandler{
		dispatcher: dispatcher,
		path:       path,
		secret:     secret,
		logger:     logger,
		mux:        http.NewServeMux(),
	}
	h.mux.HandleFunc(HealthPath, h.health)
	h.mux.HandleFunc(path, h.update)
	h.mux.HandleFunc(RootPath, h.root)
	return h
}

// Handle registers an extra route next to the webhook
func (h *WebhookHandler) Handle(pattern string, handler http.Handler) {
	h.mux.Handle(pattern, handler)
}

// Handler returns the routes wrapped in the logging, recovery and request id middleware
func (h *WebhookHandler) Handler() http.Handler {
	var handler http.Handler = h.mux
	handler = RequestID(handler)
	handler = Recovery(h.logger, handler)
	handler = Logging(h.logger, handler)
	return handler
}

func (h *WebhookHandler) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *WebhookHandler) root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != RootPath {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(Banner))
}

func (h *WebhookHandler) update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.secret != "" {
		got := r.Header.Get(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxUpdateBytes)).Decode(&update); err != nil {
		h.logger.Warn("webhook_bad_update", "request_id", RequestIDFromContext(r.Context()), "error", err.Error())
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	// Telegram redelivers updates that are not acknowledged with 200, so
	// handler errors are logged by the dispatcher and never returned here.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), DefaultUpdateWait)
	defer cancel()
	_ = h.dispatcher.HandleUpdate(ctx, update)

	w.WriteHeader(http.StatusOK)
}

// Recovery turns handler panics into 500 responses
func Recovery(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("http_panic", "panic", err, "stack", string(debug.Stack()))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// RequestID tags each request with an id, reusing X-Request-ID when present
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logging logs each request with its duration. The webhook path is not
// logged because it embeds the secret.
func Logging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("http_request",
			"method", r.Method,
			"request_id", w.Header().Get(RequestIDHeader),
			"duration", time.Since(start).String(),
		)
	})
}
