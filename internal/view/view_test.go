package view

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

func TestRenderLoginKeepsEmailAndEscapes(t *testing.T) {
	r, err := NewHTMLRenderer()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.RenderLogin(&buf, LoginPage{Email: "<sam>@gmail.com", Error: "Invalid credentials"}))

	out := buf.String()
	assert.Contains(t, out, "Invalid credentials")
	assert.Contains(t, out, `value="&lt;sam&gt;@gmail.com"`)
	assert.NotContains(t, out, "<sam>")
}

func TestRenderChat(t *testing.T) {
	r, err := NewHTMLRenderer()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.RenderChat(&buf, ChatPage{
		Conversations: []chat.Conversation{{ID: "1", Title: "First"}, {ID: "2", Title: "Second"}},
		Selected:      "2",
		Messages: []chat.Message{
			chat.AssistantMessage("welcome"),
			chat.UserMessage("<b>hi</b>"),
		},
		Loading: true,
	}))

	out := buf.String()
	assert.Contains(t, out, `<li class="selected"><a href="/chat/2">Second</a></li>`)
	assert.Contains(t, out, `<li class="assistant">welcome</li>`)
	assert.Contains(t, out, `<li class="user">&lt;b&gt;hi&lt;/b&gt;</li>`)
	assert.Contains(t, out, "disabled")
	assert.Contains(t, out, `<form id="composer" method="post" action="/chat/2/messages">`)
}
