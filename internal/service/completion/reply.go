package completion

import (
	"context"
	"errors"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

const (
	// FallbackReply is returned when the upstream answered without any content.
	FallbackReply = "No valid response from AI."

	// MissingCredentialReply is shown instead of a reply when no key is configured.
	MissingCredentialReply = "Error: API key is missing!"

	// FailureReply is shown for every other failed completion.
	FailureReply = "Sorry, something went wrong."
)

// Completer produces the assistant reply for a conversation history.
type Completer interface {
	Complete(ctx context.Context, history []chat.Message) (string, error)
}

// ReplyText turns a completion result into the text of the assistant message.
func ReplyText(reply string, err error) string {
	switch {
	case err == nil:
		return reply
	case errors.Is(err, ErrMissingCredential):
		return MissingCredentialReply
	default:
		return FailureReply
	}
}
