package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/moodchat/internal/handler/chat"
	"github.com/zhouzirui/moodchat/internal/handler/feed"
	"github.com/zhouzirui/moodchat/internal/handler/persona"
	middlewarePkg "github.com/zhouzirui/moodchat/internal/middleware"
	personaModel "github.com/zhouzirui/moodchat/internal/model/persona"
	chatService "github.com/zhouzirui/moodchat/internal/service/chat"
	"github.com/zhouzirui/moodchat/pkg/utils"
)

// NewRouter wires HTTP routes to core services. hub may be nil, in which
// case /ws/emotion answers 503.
func NewRouter(personas personaModel.Store, chatSvc *chatService.Service, hub *feed.Hub, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	personaHandler := persona.New(personas, chatSvc.Persona().ID)
	chatHandler := chat.New(chatSvc, logger)

	personaHandler.RegisterRoutes(r)
	chatHandler.RegisterRoutes(r)

	r.Get("/ws/emotion", func(w http.ResponseWriter, r *http.Request) {
		if hub == nil {
			utils.RespondError(w, http.StatusServiceUnavailable, "emotion push unavailable")
			return
		}
		hub.ServeHTTP(w, r)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
