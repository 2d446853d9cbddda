package auth

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-chat/backend/internal/middleware"
	authService "github.com/zhouzirui/z-chat/backend/internal/service/auth"
	"github.com/zhouzirui/z-chat/backend/internal/session"
	"github.com/zhouzirui/z-chat/backend/internal/view"
	"github.com/zhouzirui/z-chat/backend/pkg/utils"
)

// Handler 登录、登出与首页跳转
type Handler struct {
	authSvc  *authService.Service
	sessions *session.Store
	renderer view.Renderer
}

// New 创建认证处理器
func New(authSvc *authService.Service, sessions *session.Store, renderer view.Renderer) *Handler {
	return &Handler{
		authSvc:  authSvc,
		sessions: sessions,
		renderer: renderer,
	}
}

// RegisterRoutes 注册认证相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.With(middleware.RedirectAuthenticated(h.sessions)).Get(authService.LoginPath, h.handleLoginPage)
	r.Post(authService.LoginPath, h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	target := authService.LoginPath
	if authService.Resolve(h.sessions, r) != nil {
		target = authService.AppPath
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, http.StatusOK, view.LoginPage{})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	creds, err := readCredentials(r)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, err := h.authSvc.Login(r.Context(), creds)
	if err != nil {
		if utils.WantsHTML(r) {
			h.renderLogin(w, http.StatusBadRequest, view.LoginPage{
				Email: creds.Email,
				Error: authService.InvalidCredentialsMessage,
			})
			return
		}
		utils.RespondError(w, http.StatusBadRequest, authService.InvalidCredentialsMessage)
		return
	}

	if err := h.sessions.Commit(w, session.Identity{UserID: userID}); err != nil {
		log.Printf("[auth] failed to commit session: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	http.Redirect(w, r, authService.AppPath, http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Destroy(w)
	http.Redirect(w, r, authService.LoginPath, http.StatusSeeOther)
}

func (h *Handler) renderLogin(w http.ResponseWriter, status int, page view.LoginPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.renderer.RenderLogin(w, page); err != nil {
		log.Printf("[auth] failed to render login page: %v", err)
	}
}

// readCredentials accepts form posts and JSON bodies.
func readCredentials(r *http.Request) (authService.Credentials, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var payload struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			return authService.Credentials{}, err
		}
		return authService.Credentials{Email: payload.Email, Password: payload.Password}, nil
	}

	if err := r.ParseForm(); err != nil {
		return authService.Credentials{}, err
	}
	return authService.Credentials{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}, nil
}
