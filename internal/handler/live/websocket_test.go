package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/internal/service/interaction"
)

type echoCompleter struct{}

func (echoCompleter) Complete(_ context.Context, history []chat.Message) (string, error) {
	return "echo: " + history[len(history)-1].Content, nil
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dial(t *testing.T, origins []string, header http.Header) (*websocket.Conn, *chatservice.State, *http.Response, error) {
	t.Helper()
	state, err := chatservice.NewState(chat.Seed())
	require.NoError(t, err)
	loop := interaction.New(state, echoCompleter{})

	server := httptest.NewServer(New(state, loop, origins))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, state, resp, err
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestWebSocketSelectAndSend(t *testing.T) {
	conn, state, _, err := dial(t, nil, nil)
	require.NoError(t, err)

	connected := readFrame(t, conn)
	assert.Equal(t, TypeConnected, connected.Type)
	assert.JSONEq(t, `{"selected":"1","loading":false}`, string(connected.Data))

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: TypeSelect, ConversationID: "missing"}))
	f := readFrame(t, conn)
	assert.Equal(t, TypeError, f.Type)
	assert.JSONEq(t, `{"message":"conversation not found"}`, string(f.Data))

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: TypeSelect, ConversationID: "2"}))
	f = readFrame(t, conn)
	assert.Equal(t, TypeSelected, f.Type)
	assert.Equal(t, "2", state.Selected(context.Background()))

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: TypeSend, Text: "hi"}))

	var events []interaction.Event
	for len(events) < 4 {
		f := readFrame(t, conn)
		var ev interaction.Event
		require.NoError(t, json.Unmarshal(f.Data, &ev))
		assert.Equal(t, f.Type, string(ev.Type))
		events = append(events, ev)
	}

	assert.Equal(t, "hi", events[0].Message.Content)
	assert.Equal(t, "2", events[0].ConversationID)
	assert.True(t, events[1].Loading)
	assert.Equal(t, "echo: hi", events[2].Message.Content)
	assert.False(t, events[3].Loading)
}

func TestWebSocketRejectsBlankAndUnknownFrames(t *testing.T) {
	conn, _, _, err := dial(t, nil, nil)
	require.NoError(t, err)
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: TypeSend, Text: "  "}))
	f := readFrame(t, conn)
	assert.Equal(t, TypeError, f.Type)
	assert.Contains(t, string(f.Data), interaction.ErrEmptyInput.Error())

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "dance"}))
	f = readFrame(t, conn)
	assert.Equal(t, TypeError, f.Type)
}

func TestWebSocketChecksOrigin(t *testing.T) {
	_, _, resp, err := dial(t, nil, http.Header{"Origin": {"http://evil.test"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, _, err := dial(t, []string{"http://app.test"}, http.Header{"Origin": {"http://app.test"}})
	require.NoError(t, err)
	assert.Equal(t, TypeConnected, readFrame(t, conn).Type)
}
