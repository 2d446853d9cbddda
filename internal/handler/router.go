package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	authHandler "github.com/zhouzirui/z-chat/backend/internal/handler/auth"
	chatHandler "github.com/zhouzirui/z-chat/backend/internal/handler/chat"
	"github.com/zhouzirui/z-chat/backend/internal/handler/live"
	"github.com/zhouzirui/z-chat/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/z-chat/backend/internal/middleware"
	authService "github.com/zhouzirui/z-chat/backend/internal/service/auth"
	chatService "github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/internal/service/interaction"
	"github.com/zhouzirui/z-chat/backend/internal/session"
	"github.com/zhouzirui/z-chat/backend/internal/view"
	"github.com/zhouzirui/z-chat/backend/pkg/utils"
)

// Dependencies are the services the router wires to HTTP.
type Dependencies struct {
	Sessions       *session.Store
	Auth           *authService.Service
	State          *chatService.State
	Loop           *interaction.Loop
	Renderer       view.Renderer
	AllowedOrigins []string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	authHandler.New(deps.Auth, deps.Sessions, deps.Renderer).RegisterRoutes(r)

	chat := chatHandler.New(deps.State, deps.Loop, deps.Renderer)

	r.Group(func(views chi.Router) {
		views.Use(middlewarePkg.RequireSession(deps.Sessions))
		chat.RegisterViewRoutes(views)
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(middlewarePkg.RequireSessionAPI(deps.Sessions))

		chat.RegisterRoutes(api)
		api.Method(http.MethodGet, "/events", stream.New(deps.State, deps.Loop))
		api.Method(http.MethodGet, "/ws", live.New(deps.State, deps.Loop, deps.AllowedOrigins))
	})

	return r
}
