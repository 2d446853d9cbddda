package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

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

type sseFrame struct {
	event string
	data  string
}

func readFrame(t *testing.T, reader *bufio.Reader) sseFrame {
	t.Helper()
	var frame sseFrame
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")

		switch {
		case line == "":
			if frame.event != "" {
				return frame
			}
		case strings.HasPrefix(line, "event: "):
			frame.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			frame.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestStreamDeliversLoopEvents(t *testing.T) {
	state, err := chatservice.NewState(chat.Seed())
	require.NoError(t, err)
	loop := interaction.New(state, echoCompleter{})

	server := httptest.NewServer(New(state, loop))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	reader := bufio.NewReader(resp.Body)

	status := readFrame(t, reader)
	assert.Equal(t, "status", status.event)
	assert.JSONEq(t, `{"selected":"1","loading":false}`, status.data)

	turn, err := loop.Send(ctx, "hi")
	require.NoError(t, err)
	_, err = turn.Wait(ctx)
	require.NoError(t, err)

	var got []interaction.Event
	for len(got) < 4 {
		frame := readFrame(t, reader)
		var ev interaction.Event
		require.NoError(t, json.Unmarshal([]byte(frame.data), &ev))
		assert.Equal(t, frame.event, string(ev.Type))
		got = append(got, ev)
	}

	assert.Equal(t, "hi", got[0].Message.Content)
	assert.True(t, got[1].Loading)
	assert.Equal(t, "echo: hi", got[2].Message.Content)
	assert.False(t, got[3].Loading)
}

func TestStreamHeartbeat(t *testing.T) {
	state, err := chatservice.NewState(chat.Seed())
	require.NoError(t, err)
	h := New(state, interaction.New(state, echoCompleter{}))
	h.heartbeat = 10 * time.Millisecond

	server := httptest.NewServer(h)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, ": heartbeat") {
			return
		}
	}
}
