package interaction

import (
	"context"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

// Turn tracks one send action until its reply has been appended.
type Turn struct {
	ID             string
	ConversationID string
	UserMessage    chat.Message

	done  chan struct{}
	reply chat.Message
}

// Done is closed once the reply is stored and loading is cleared.
func (t *Turn) Done() <-chan struct{} {
	return t.done
}

// Wait blocks for the reply. Giving up on ctx does not cancel the turn.
func (t *Turn) Wait(ctx context.Context) (chat.Message, error) {
	select {
	case <-t.done:
		return t.reply, nil
	case <-ctx.Done():
		return chat.Message{}, ctx.Err()
	}
}
