package interaction

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

// EventType names a loop notification.
type EventType string

const (
	EventMessage EventType = "message"
	EventLoading EventType = "loading"
)

// Event is pushed to subscribers whenever a message is appended or the
// loading flag flips.
type Event struct {
	Type           EventType     `json:"event"`
	ConversationID string        `json:"conversationId,omitempty"`
	Message        *chat.Message `json:"message,omitempty"`
	Loading        bool          `json:"loading"`
}

const subscriberBuffer = 32

type broker struct {
	mu   sync.RWMutex
	subs map[string]chan Event
}

func newBroker() *broker {
	return &broker{subs: make(map[string]chan Event)}
}

func (b *broker) subscribe() (<-chan Event, func()) {
	id := uuid.NewString()
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// publish never blocks; a full subscriber misses the event.
func (b *broker) publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			log.Printf("[interaction] dropping %s event for slow subscriber %s", event.Type, id)
		}
	}
}
