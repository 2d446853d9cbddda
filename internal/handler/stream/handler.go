package stream

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	chatService "github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/internal/service/interaction"
	"github.com/zhouzirui/z-chat/backend/pkg/utils"
)

// DefaultHeartbeat is how often an idle stream sends a keep-alive comment.
const DefaultHeartbeat = 15 * time.Second

// Handler pushes interaction loop events to the browser via Server-Sent Events
type Handler struct {
	state     *chatService.State
	loop      *interaction.Loop
	heartbeat time.Duration
}

// New creates a new stream handler
func New(state *chatService.State, loop *interaction.Loop) *Handler {
	return &Handler{
		state:     state,
		loop:      loop,
		heartbeat: DefaultHeartbeat,
	}
}

// StatusEvent is the first frame of every stream.
type StatusEvent struct {
	Selected string `json:"selected"`
	Loading  bool   `json:"loading"`
}

// ServeHTTP streams events until the client goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, unsubscribe := h.loop.Subscribe()
	defer unsubscribe()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	log.Printf("[sse] opening event stream request=%s", reqID)

	if err := utils.SendSSEEvent(w, flusher, "status", StatusEvent{
		Selected: h.state.Selected(ctx),
		Loading:  h.loop.Loading(),
	}); err != nil {
		log.Printf("[sse] %v", err)
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[sse] closing event stream request=%s", reqID)
			return
		case event, open := <-events:
			if !open {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, string(event.Type), event); err != nil {
				log.Printf("[sse] %v", err)
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				log.Printf("[sse] %v", err)
				return
			}
		}
	}
}
