// Package live serves the interaction loop over a websocket: the browser
// sends and selects through the socket and receives loop events on it.
package live

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	chatService "github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/internal/service/interaction"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
	outboundSize = 16
)

// Frame types.
const (
	TypeSend      = "send"
	TypeSelect    = "select"
	TypeConnected = "connected"
	TypeSelected  = "selected"
	TypeError     = "error"
)

// Handler upgrades /api/ws connections.
type Handler struct {
	state    *chatService.State
	loop     *interaction.Loop
	upgrader websocket.Upgrader
}

// New creates a websocket handler. Browsers are accepted from the serving
// host and from allowedOrigins.
func New(state *chatService.State, loop *interaction.Loop, allowedOrigins []string) *Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[strings.TrimSuffix(origin, "/")] = struct{}{}
	}

	return &Handler{
		state: state,
		loop:  loop,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if _, ok := allowed[origin]; ok {
					return true
				}
				u, err := url.Parse(origin)
				return err == nil && strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

// InboundMessage is a frame sent by the client.
type InboundMessage struct {
	Type           string `json:"type"`
	Text           string `json:"text,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

// OutboundMessage is a frame pushed to the client.
type OutboundMessage struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type statusData struct {
	Selected string `json:"selected"`
	Loading  bool   `json:"loading"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsubscribe := h.loop.Subscribe()
	defer unsubscribe()

	outbound := make(chan OutboundMessage, outboundSize)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		// unblocks the read loop once writing has stopped
		defer conn.Close()
		h.writeLoop(ctx, conn, events, outbound)
	}()

	log.Printf("[websocket] new connection from %s", r.RemoteAddr)

	enqueue(ctx, outbound, TypeConnected, statusData{
		Selected: h.state.Selected(ctx),
		Loading:  h.loop.Loading(),
	})

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		var msg InboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		h.handleMessage(ctx, outbound, msg)
	}

	cancel()
	<-writerDone
}

func (h *Handler) handleMessage(ctx context.Context, outbound chan<- OutboundMessage, msg InboundMessage) {
	switch msg.Type {
	case TypeSend:
		// the reply arrives as a loop event
		if _, err := h.loop.Send(ctx, msg.Text); err != nil {
			enqueueError(ctx, outbound, err.Error())
		}
	case TypeSelect:
		if !h.state.SelectConversation(ctx, msg.ConversationID) {
			enqueueError(ctx, outbound, "conversation not found")
			return
		}
		enqueue(ctx, outbound, TypeSelected, statusData{
			Selected: h.state.Selected(ctx),
			Loading:  h.loop.Loading(),
		})
	default:
		enqueueError(ctx, outbound, "unknown message type")
	}
}

// writeLoop is the only goroutine writing to conn.
func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, events <-chan interaction.Event, outbound <-chan OutboundMessage) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			return
		case event, open := <-events:
			if !open {
				return
			}
			if !write(conn, OutboundMessage{Type: string(event.Type), Data: event, Timestamp: time.Now().Unix()}) {
				return
			}
		case msg := <-outbound:
			if !write(conn, msg) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func write(conn *websocket.Conn, msg OutboundMessage) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[websocket] write %s failed: %v", msg.Type, err)
		return false
	}
	return true
}

func enqueue(ctx context.Context, outbound chan<- OutboundMessage, kind string, data any) {
	select {
	case outbound <- OutboundMessage{Type: kind, Data: data, Timestamp: time.Now().Unix()}:
	case <-ctx.Done():
	}
}

func enqueueError(ctx context.Context, outbound chan<- OutboundMessage, message string) {
	enqueue(ctx, outbound, TypeError, map[string]string{"message": message})
}
