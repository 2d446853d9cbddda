package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

var (
	ErrNoConversations       = errors.New("at least one seed conversation is required")
	ErrDuplicateConversation = errors.New("duplicate conversation id")
	ErrEmptySeed             = errors.New("conversation has no seed message")
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrInvalidMessage        = errors.New("message must have a known sender and non-empty content")
)

// UntitledConversation is the title given to a conversation created by an
// append rather than a seed.
const UntitledConversation = "New conversation"

// State holds every conversation of the running process plus the selected one.
// Nothing survives a restart.
type State struct {
	mu       sync.RWMutex
	order    []chat.Conversation
	messages map[string][]chat.Message
	selected string
}

// NewState builds the in-memory chat state from explicit seed conversations.
// The first seed becomes the selected conversation.
func NewState(seeds []chat.Conversation) (*State, error) {
	if len(seeds) == 0 {
		return nil, ErrNoConversations
	}

	s := &State{
		order:    make([]chat.Conversation, 0, len(seeds)),
		messages: make(map[string][]chat.Message, len(seeds)),
	}

	for _, seed := range seeds {
		id := strings.TrimSpace(seed.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: empty id", ErrInvalidMessage)
		}
		if _, exists := s.messages[id]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateConversation, id)
		}
		if len(seed.Messages) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptySeed, id)
		}

		history := make([]chat.Message, 0, len(seed.Messages)+16)
		for _, msg := range seed.Messages {
			if !msg.Sender.Valid() || msg.Blank() {
				return nil, fmt.Errorf("%w: seed for %s", ErrInvalidMessage, id)
			}
			history = append(history, stamp(id, msg))
		}

		s.messages[id] = history
		s.order = append(s.order, chat.Conversation{ID: id, Title: seed.Title})
	}

	s.selected = s.order[0].ID
	return s, nil
}

// Conversations lists conversation metadata in seed order.
func (s *State) Conversations(_ context.Context) []chat.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]chat.Conversation(nil), s.order...)
}

// Search returns the conversations whose title contains query, ignoring case.
func (s *State) Search(ctx context.Context, query string) []chat.Conversation {
	query = strings.ToLower(strings.TrimSpace(query))
	all := s.Conversations(ctx)
	if query == "" {
		return all
	}

	matches := make([]chat.Conversation, 0, len(all))
	for _, conv := range all {
		if strings.Contains(strings.ToLower(conv.Title), query) {
			matches = append(matches, conv)
		}
	}
	return matches
}

// Selected returns the identifier of the active conversation.
func (s *State) Selected(_ context.Context) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// SelectConversation moves the selection to id when it is known.
// Unknown ids leave the selection untouched and report false.
func (s *State) SelectConversation(_ context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[id]; !ok {
		return false
	}
	s.selected = id
	return true
}

// Known reports whether id has a message sequence.
func (s *State) Known(_ context.Context, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.messages[id]
	return ok
}

// AppendMessage appends message to the sequence for id, creating the sequence
// when absent. A created sequence is listed after the seeds as an untitled
// conversation. The stored copy is returned.
func (s *State) AppendMessage(_ context.Context, id string, message chat.Message) (chat.Message, error) {
	if id == "" || !message.Sender.Valid() || message.Blank() {
		return chat.Message{}, ErrInvalidMessage
	}

	stored := stamp(id, message)

	s.mu.Lock()
	if _, ok := s.messages[id]; !ok {
		s.order = append(s.order, chat.Conversation{ID: id, Title: UntitledConversation})
	}
	s.messages[id] = append(s.messages[id], stored)
	s.mu.Unlock()

	return stored, nil
}

// Transcript returns a copy of the messages stored for id.
func (s *State) Transcript(_ context.Context, id string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[id]
	if !ok {
		return nil, ErrConversationNotFound
	}

	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

func stamp(id string, message chat.Message) chat.Message {
	message.ID = uuid.NewString()
	message.ConversationID = id
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	return message
}
