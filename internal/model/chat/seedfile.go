package chat

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrInvalidSeed reports a seed file whose content cannot initialise a conversation.
var ErrInvalidSeed = errors.New("invalid seed conversation")

type seedDocument struct {
	Conversations []seedConversation `toml:"conversation"`
}

type seedConversation struct {
	ID       string        `toml:"id"`
	Title    string        `toml:"title"`
	Messages []seedMessage `toml:"message"`
}

type seedMessage struct {
	Sender  string `toml:"sender"`
	Content string `toml:"content"`
}

// LoadSeedFile reads seed conversations from a TOML document:
//
//	[[conversation]]
//	id = "1"
//	title = "Chat with AI"
//	  [[conversation.message]]
//	  sender = "assistant"
//	  content = "Welcome!"
func LoadSeedFile(path string) ([]Conversation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	conversations, err := DecodeSeed(f)
	if err != nil {
		return nil, fmt.Errorf("seed file %s: %w", path, err)
	}
	return conversations, nil
}

// DecodeSeed parses a TOML seed document from r.
func DecodeSeed(r io.Reader) ([]Conversation, error) {
	var doc seedDocument
	if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}

	conversations := make([]Conversation, 0, len(doc.Conversations))
	for i, sc := range doc.Conversations {
		id := strings.TrimSpace(sc.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: conversation #%d has no id", ErrInvalidSeed, i+1)
		}
		if len(sc.Messages) == 0 {
			return nil, fmt.Errorf("%w: conversation %q has no seed message", ErrInvalidSeed, id)
		}

		title := strings.TrimSpace(sc.Title)
		if title == "" {
			title = id
		}

		conv := Conversation{ID: id, Title: title, Messages: make([]Message, 0, len(sc.Messages))}
		for _, sm := range sc.Messages {
			msg := Message{Sender: Role(strings.ToLower(strings.TrimSpace(sm.Sender))), Content: sm.Content}
			if !msg.Sender.Valid() || msg.Blank() {
				return nil, fmt.Errorf("%w: conversation %q has an invalid message", ErrInvalidSeed, id)
			}
			conv.Messages = append(conv.Messages, msg)
		}
		conversations = append(conversations, conv)
	}

	if len(conversations) == 0 {
		return nil, fmt.Errorf("%w: no conversations defined", ErrInvalidSeed)
	}
	return conversations, nil
}
