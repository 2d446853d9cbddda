package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	authService "github.com/zhouzirui/z-chat/backend/internal/service/auth"
	chatService "github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/internal/service/completion"
	"github.com/zhouzirui/z-chat/backend/internal/service/interaction"
	"github.com/zhouzirui/z-chat/backend/internal/session"
	"github.com/zhouzirui/z-chat/backend/internal/view"
)

func newTestServer(t *testing.T, completer completion.Completer) *httptest.Server {
	t.Helper()

	verifier, err := authService.NewStaticVerifier("sam@gmail.com", "password", "123")
	require.NoError(t, err)
	state, err := chatService.NewState(chat.Seed())
	require.NoError(t, err)
	renderer, err := view.NewHTMLRenderer()
	require.NoError(t, err)

	server := httptest.NewServer(NewRouter(Dependencies{
		Sessions: session.NewStore(session.Config{Secret: "router-secret"}),
		Auth:     authService.NewService(verifier),
		State:    state,
		Loop:     interaction.New(state, completer),
		Renderer: renderer,
	}))
	t.Cleanup(server.Close)
	return server
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
		Timeout: 5 * time.Second,
	}
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t, completion.NewClient(""))

	resp, err := newClient(t).Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	server := newTestServer(t, completion.NewClient(""))
	client := newClient(t)

	resp, err := client.Get(server.URL + "/chat")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, err = client.Get(server.URL + "/api/conversations")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// Logging in, chatting without an API key and logging out, end to end.
func TestLoginChatLogoutFlow(t *testing.T) {
	server := newTestServer(t, completion.NewClient(""))
	client := newClient(t)

	resp, err := client.PostForm(server.URL+"/login", url.Values{"email": {"sam@gmail.com"}, "password": {"password"}})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp, err = client.Get(server.URL + "/chat")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server.URL+"/api/chat/messages", strings.NewReader(`{"text":"hello"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err = client.Do(req)
	require.NoError(t, err)

	var out struct {
		Reply *chat.Message `json:"reply"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	require.NotNil(t, out.Reply)
	assert.Equal(t, completion.MissingCredentialReply, out.Reply.Content)

	resp, err = client.Post(server.URL+"/logout", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, err = client.Get(server.URL + "/chat")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

var composerAction = regexp.MustCompile(`<form id="composer" method="post" action="([^"]+)">`)

func countUserMessages(t *testing.T, client *http.Client, target string) int {
	t.Helper()
	resp, err := client.Get(target)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Messages []chat.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	count := 0
	for _, msg := range out.Messages {
		if msg.Sender == chat.RoleUser {
			count++
		}
	}
	return count
}

func TestComposerSubmitAppendsUserMessage(t *testing.T) {
	server := newTestServer(t, completion.NewClient(""))
	client := newClient(t)

	resp, err := client.PostForm(server.URL+"/login", url.Values{"email": {"sam@gmail.com"}, "password": {"password"}})
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = client.Get(server.URL + "/chat/2")
	require.NoError(t, err)
	page, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	match := composerAction.FindSubmatch(page)
	require.NotNil(t, match, "chat page must carry a posting composer form")
	action := string(match[1])
	assert.Equal(t, "/chat/2/messages", action)

	transcript := server.URL + "/api/conversations/2/messages"
	before := countUserMessages(t, client, transcript)

	resp, err = client.PostForm(server.URL+action, url.Values{"text": {"hello"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/chat/2", resp.Header.Get("Location"))

	assert.Equal(t, before+1, countUserMessages(t, client, transcript))
}
