package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	chatService "github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/internal/service/interaction"
	"github.com/zhouzirui/z-chat/backend/internal/view"
	"github.com/zhouzirui/z-chat/backend/pkg/utils"
)

// Handler 聊天页面与聊天API的HTTP处理器
type Handler struct {
	state    *chatService.State
	loop     *interaction.Loop
	renderer view.Renderer
}

// New 创建聊天处理器
func New(state *chatService.State, loop *interaction.Loop, renderer view.Renderer) *Handler {
	return &Handler{
		state:    state,
		loop:     loop,
		renderer: renderer,
	}
}

// RegisterViewRoutes 注册聊天页面路由，调用方负责会话校验
func (h *Handler) RegisterViewRoutes(r chi.Router) {
	r.Get("/chat", h.handleChatPage)
	r.Get("/chat/{chatId}", h.handleChatPage)
	r.Post("/chat/{chatId}/messages", h.handleComposerSend)
}

// RegisterRoutes 注册聊天API路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/conversations", h.handleListConversations)
	r.Get("/conversations/{id}/messages", h.handleTranscript)
	r.Post("/conversations/{id}/select", h.handleSelect)
	r.Post("/chat/messages", h.handleSend)
	r.Get("/chat/status", h.handleStatus)
}

type conversationList struct {
	Conversations []chat.Conversation `json:"conversations"`
	Selected      string              `json:"selected"`
	Loading       bool                `json:"loading"`
}

type statusResponse struct {
	Selected string `json:"selected"`
	Loading  bool   `json:"loading"`
}

type sendResponse struct {
	TurnID         string        `json:"turnId"`
	ConversationID string        `json:"conversationId"`
	UserMessage    chat.Message  `json:"userMessage"`
	Reply          *chat.Message `json:"reply,omitempty"`
}

func (h *Handler) handleChatPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// unknown ids keep the current selection
	if chatID := chi.URLParam(r, "chatId"); chatID != "" {
		h.state.SelectConversation(ctx, chatID)
	}

	selected := h.state.Selected(ctx)
	messages, err := h.state.Transcript(ctx, selected)
	if err != nil {
		log.Printf("[chat] failed to load transcript conversation=%s: %v", selected, err)
	}

	query := r.URL.Query().Get("q")
	page := view.ChatPage{
		Conversations: h.state.Search(ctx, query),
		Selected:      selected,
		Messages:      messages,
		Query:         query,
		Loading:       h.loop.Loading(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.renderer.RenderChat(w, page); err != nil {
		log.Printf("[chat] failed to render chat page: %v", err)
	}
}

// handleComposerSend backs the chat page form: it sends on the conversation
// in the URL, waits for the reply and redirects back to the page.
func (h *Handler) handleComposerSend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.state.SelectConversation(ctx, chi.URLParam(r, "chatId"))

	turn, err := h.loop.Send(ctx, r.PostFormValue("text"))
	if err != nil {
		if SendErrorStatus(err) == http.StatusInternalServerError {
			log.Printf("[chat] composer send failed: %v", err)
		}
	} else if _, err := turn.Wait(ctx); err != nil {
		// the client left; the reply is still appended by the loop
		return
	}

	http.Redirect(w, r, "/chat/"+url.PathEscape(h.state.Selected(ctx)), http.StatusSeeOther)
}

func (h *Handler) handleListConversations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	utils.RespondJSON(w, http.StatusOK, conversationList{
		Conversations: h.state.Search(ctx, r.URL.Query().Get("q")),
		Selected:      h.state.Selected(ctx),
		Loading:       h.loop.Loading(),
	})
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	messages, err := h.state.Transcript(r.Context(), id)
	if err != nil {
		if errors.Is(err, chatService.ErrConversationNotFound) {
			utils.RespondError(w, http.StatusNotFound, "conversation not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"conversationId": id,
		"messages":       messages,
	})
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.state.SelectConversation(ctx, chi.URLParam(r, "id")) {
		utils.RespondError(w, http.StatusNotFound, "conversation not found")
		return
	}

	utils.RespondJSON(w, http.StatusOK, statusResponse{
		Selected: h.state.Selected(ctx),
		Loading:  h.loop.Loading(),
	})
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	turn, err := h.loop.Send(r.Context(), payload.Text)
	if err != nil {
		utils.RespondError(w, SendErrorStatus(err), err.Error())
		return
	}

	resp := sendResponse{
		TurnID:         turn.ID,
		ConversationID: turn.ConversationID,
		UserMessage:    turn.UserMessage,
	}

	if r.URL.Query().Get("async") == "true" {
		utils.RespondJSON(w, http.StatusAccepted, resp)
		return
	}

	reply, err := turn.Wait(r.Context())
	if err != nil {
		// the client left; the reply is still appended by the loop
		if errors.Is(err, context.Canceled) {
			return
		}
		utils.RespondJSON(w, http.StatusAccepted, resp)
		return
	}

	resp.Reply = &reply
	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, statusResponse{
		Selected: h.state.Selected(r.Context()),
		Loading:  h.loop.Loading(),
	})
}

// SendErrorStatus maps a send failure to an HTTP status.
func SendErrorStatus(err error) int {
	switch {
	case errors.Is(err, interaction.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, interaction.ErrBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
