// Package interaction sequences one chat turn: append the user message, ask
// the completer for a reply, append the reply.
package interaction

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	"github.com/zhouzirui/z-chat/backend/internal/service/completion"
)

var (
	ErrEmptyInput = errors.New("message text is empty")
	ErrBusy       = errors.New("a reply is still pending")
)

// Store is the part of the chat state the loop mutates.
type Store interface {
	Selected(ctx context.Context) string
	AppendMessage(ctx context.Context, id string, message chat.Message) (chat.Message, error)
	Transcript(ctx context.Context, id string) ([]chat.Message, error)
}

// Loop owns the loading flag. At most one completion is in flight; sends
// made meanwhile are rejected with ErrBusy, never queued.
type Loop struct {
	store     Store
	completer completion.Completer

	mu      sync.Mutex
	loading bool

	inflight sync.WaitGroup
	events   *broker
}

// New creates a loop over store using completer for replies.
func New(store Store, completer completion.Completer) *Loop {
	return &Loop{
		store:     store,
		completer: completer,
		events:    newBroker(),
	}
}

// Loading reports whether a completion is in flight.
func (l *Loop) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

// Subscribe registers for loop events. The returned func unsubscribes.
func (l *Loop) Subscribe() (<-chan Event, func()) {
	return l.events.subscribe()
}

// Send appends input as a user message to the selected conversation and
// starts the completion. The reply is bound to the conversation selected at
// send time and is applied even if ctx is cancelled afterwards.
func (l *Loop) Send(ctx context.Context, input string) (*Turn, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}

	l.mu.Lock()
	if l.loading {
		l.mu.Unlock()
		return nil, ErrBusy
	}
	l.loading = true
	l.mu.Unlock()

	conversationID := l.store.Selected(ctx)
	userMsg, err := l.store.AppendMessage(ctx, conversationID, chat.UserMessage(input))
	if err != nil {
		l.setLoading(false)
		return nil, fmt.Errorf("append user message: %w", err)
	}

	history, err := l.store.Transcript(ctx, conversationID)
	if err != nil {
		l.setLoading(false)
		return nil, fmt.Errorf("load transcript: %w", err)
	}

	l.events.publish(Event{Type: EventMessage, ConversationID: conversationID, Message: &userMsg})
	l.events.publish(Event{Type: EventLoading, ConversationID: conversationID, Loading: true})

	turn := &Turn{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		UserMessage:    userMsg,
		done:           make(chan struct{}),
	}

	l.inflight.Add(1)
	go l.complete(context.WithoutCancel(ctx), turn, history)

	return turn, nil
}

// Drain blocks until every in-flight completion has been applied or ctx ends.
func (l *Loop) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) complete(ctx context.Context, turn *Turn, history []chat.Message) {
	defer l.inflight.Done()

	text := l.reply(ctx, turn.ConversationID, history)

	stored, err := l.store.AppendMessage(ctx, turn.ConversationID, chat.AssistantMessage(text))
	if err != nil {
		log.Printf("[interaction] failed to append reply conversation=%s: %v", turn.ConversationID, err)
	} else {
		turn.reply = stored
		l.events.publish(Event{Type: EventMessage, ConversationID: turn.ConversationID, Message: &stored})
	}

	l.setLoading(false)
	l.events.publish(Event{Type: EventLoading, ConversationID: turn.ConversationID, Loading: false})
	close(turn.done)
}

func (l *Loop) reply(ctx context.Context, conversationID string, history []chat.Message) (text string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[interaction] completer panicked conversation=%s: %v", conversationID, r)
			text = completion.FailureReply
		}
	}()

	reply, err := l.completer.Complete(ctx, history)
	if err != nil {
		log.Printf("[interaction] completion failed conversation=%s: %v", conversationID, err)
	}

	text = completion.ReplyText(reply, err)
	if strings.TrimSpace(text) == "" {
		text = completion.FallbackReply
	}
	return text
}

func (l *Loop) setLoading(loading bool) {
	l.mu.Lock()
	l.loading = loading
	l.mu.Unlock()
}
