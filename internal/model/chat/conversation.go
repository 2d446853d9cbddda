package chat

// Conversation is a titled, ordered collection of messages.
type Conversation struct {
	ID       string    `json:"id" toml:"id"`
	Title    string    `json:"title" toml:"title"`
	Messages []Message `json:"messages,omitempty" toml:"-"`
}

// Seed returns the conversations every fresh process starts with.
func Seed() []Conversation {
	return []Conversation{
		{
			ID:       "1",
			Title:    "Chat with AI - March 25",
			Messages: []Message{AssistantMessage("Welcome to your March 25 chat!")},
		},
		{
			ID:       "2",
			Title:    "Tech Discussion - March 24",
			Messages: []Message{AssistantMessage("This is your Tech Discussion!")},
		},
		{
			ID:       "3",
			Title:    "Random Talk - March 23",
			Messages: []Message{AssistantMessage("Let's chat about random things!")},
		},
	}
}
