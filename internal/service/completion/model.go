package completion

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

var _ model.BaseChatModel = (*Client)(nil)

// Generate implements eino's model.BaseChatModel so the client can be used as
// a chain node.
func (c *Client) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	content, err := c.send(ctx, fromSchemaMessages(input))
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(content, nil), nil
}

// Stream returns the whole completion as a single chunk.
func (c *Client) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := c.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// ModelCompleter runs conversation history through an eino chat model.
type ModelCompleter struct {
	chain compose.Runnable[[]*schema.Message, *schema.Message]
}

// NewModelCompleter compiles a single-node chain around chatModel.
func NewModelCompleter(ctx context.Context, chatModel model.BaseChatModel) (*ModelCompleter, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	chain := compose.NewChain[[]*schema.Message, *schema.Message]()
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile completion chain: %w", err)
	}

	return &ModelCompleter{chain: runnable}, nil
}

// Complete implements Completer.
func (m *ModelCompleter) Complete(ctx context.Context, history []chat.Message) (string, error) {
	response, err := m.chain.Invoke(ctx, ToSchemaMessages(history))
	if err != nil {
		if errors.Is(err, ErrMissingCredential) || errors.Is(err, ErrUpstreamStatus) || errors.Is(err, ErrTransportFailure) {
			return "", err
		}
		log.Printf("[completion] chat model failed: %v", err)
		return "", fmt.Errorf("%w: %w", ErrTransportFailure, err)
	}

	if response == nil || response.Content == "" {
		return FallbackReply, nil
	}
	return response.Content, nil
}

// ToSchemaMessages maps chat history to eino messages with the same role
// rule as ToWireMessages.
func ToSchemaMessages(history []chat.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, msg := range history {
		if msg.Sender == chat.RoleUser {
			out = append(out, schema.UserMessage(msg.Content))
			continue
		}
		out = append(out, schema.AssistantMessage(msg.Content, nil))
	}
	return out
}

func fromSchemaMessages(input []*schema.Message) []WireMessage {
	out := make([]WireMessage, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}
		role := string(chat.RoleAssistant)
		switch msg.Role {
		case schema.User:
			role = string(chat.RoleUser)
		case schema.System:
			role = string(schema.System)
		}
		out = append(out, WireMessage{Role: role, Content: msg.Content})
	}
	return out
}
