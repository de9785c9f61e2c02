package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/vedran77/dmcore/internal/directory"
	"github.com/vedran77/dmcore/internal/service"
	"github.com/vedran77/dmcore/internal/transport/http/middleware"
)

type RouterConfig struct {
	Conversations  *service.ConversationService
	Messages       *service.MessageService
	Directory      directory.Client
	JWTSecret      string
	AllowedOrigins []string
	// WebSocket is mounted at /ws when set.
	WebSocket http.Handler
}

func NewRouter(cfg RouterConfig, log *zap.Logger) http.Handler {
	convHandler := NewConversationHandler(cfg.Conversations, cfg.Messages, log)
	msgHandler := NewMessageHandler(cfg.Messages, cfg.Conversations, log)
	userHandler := NewUserHandler(cfg.Directory)

	auth := middleware.Auth(cfg.JWTSecret)
	protected := func(h http.HandlerFunc) http.Handler { return auth(h) }

	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.WebSocket != nil {
		mux.Handle("GET /ws", cfg.WebSocket)
	}

	// Protected - Conversations
	mux.Handle("POST /api/v1/conversations", protected(convHandler.Create))
	mux.Handle("GET /api/v1/conversations", protected(convHandler.List))
	mux.Handle("GET /api/v1/conversations/stats", protected(convHandler.Stats))
	mux.Handle("GET /api/v1/conversations/{id}", protected(convHandler.Get))
	mux.Handle("DELETE /api/v1/conversations/{id}", protected(convHandler.Delete))
	mux.Handle("POST /api/v1/conversations/{id}/read", protected(convHandler.MarkRead))

	// Protected - Messages
	mux.Handle("POST /api/v1/conversations/{id}/messages", protected(msgHandler.Send))
	mux.Handle("GET /api/v1/conversations/{id}/messages", protected(msgHandler.List))
	mux.Handle("GET /api/v1/messages/unread", protected(msgHandler.Unread))
	mux.Handle("GET /api/v1/messages/unread/count", protected(msgHandler.UnreadCount))
	mux.Handle("GET /api/v1/messages/{id}", protected(msgHandler.Get))
	mux.Handle("POST /api/v1/messages/{id}/read", protected(msgHandler.MarkRead))
	mux.Handle("DELETE /api/v1/messages/{id}", protected(msgHandler.Delete))
	mux.Handle("POST /api/v1/messages/{id}/report", protected(msgHandler.Report))

	// Protected - Users
	mux.Handle("GET /api/v1/users/search", protected(userHandler.Search))

	return middleware.RequestLogger(log)(middleware.CORS(cfg.AllowedOrigins)(mux))
}
