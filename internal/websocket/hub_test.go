package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"ai-chatbot-be/internal/dto"
	"ai-chatbot-be/internal/pkg/logger"
	"ai-chatbot-be/pkg/errs"
	"ai-chatbot-be/pkg/rag/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStreamer struct {
	chunks []response.Chunk
	got    *dto.SendMessageRequest
}

func (s *stubStreamer) StreamMessage(ctx context.Context, request *dto.SendMessageRequest) <-chan response.Chunk {
	s.got = request
	out := make(chan response.Chunk, len(s.chunks))
	for _, c := range s.chunks {
		out <- c
	}
	close(out)
	return out
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil, logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func join(t *testing.T, hub *Hub, sessionID string, streamer Streamer) *Client {
	t.Helper()
	before := hub.Clients(sessionID)
	c := &Client{Hub: hub, SessionID: sessionID, Send: make(chan []byte, 16), streamer: streamer}
	require.True(t, hub.Register(c))
	require.Eventually(t, func() bool { return hub.Clients(sessionID) == before+1 }, time.Second, 5*time.Millisecond)
	return c
}

func frames(t *testing.T, c *Client, n int) []dto.SocketFrame {
	t.Helper()
	out := make([]dto.SocketFrame, 0, n)
	for i := 0; i < n; i++ {
		select {
		case data := <-c.Send:
			var f dto.SocketFrame
			require.NoError(t, json.Unmarshal(data, &f))
			out = append(out, f)
		case <-time.After(time.Second):
			t.Fatalf("expected %d frames, got %d", n, len(out))
		}
	}
	return out
}

func TestHub_SendToSessionReachesOnlyThatSession(t *testing.T) {
	hub := startHub(t)
	a1 := join(t, hub, "a", nil)
	a2 := join(t, hub, "a", nil)
	b := join(t, hub, "b", nil)

	hub.SendToSession("a", []byte(`{"type":"chunk"}`))

	assert.Len(t, frames(t, a1, 1), 1)
	assert.Len(t, frames(t, a2, 1), 1)
	assert.Empty(t, b.Send)
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := startHub(t)
	c := join(t, hub, "a", nil)

	hub.Unregister(c)

	require.Eventually(t, func() bool { return hub.Clients("a") == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-c.Send
	assert.False(t, open)

	// Late replies to a departed client are dropped
	hub.sendTo(c, []byte("late"))
}

func TestHub_StopReleasesPendingCalls(t *testing.T) {
	hub := NewHub(nil, logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	c := join(t, hub, "a", nil)

	cancel()
	<-stopped

	_, open := <-c.Send
	assert.False(t, open)
	assert.Equal(t, 0, hub.Clients("a"))

	done := make(chan struct{})
	go func() {
		hub.Unregister(c)
		assert.False(t, hub.Register(&Client{Hub: hub, SessionID: "b", Send: make(chan []byte, 1)}))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("register/unregister blocked after the hub stopped")
	}
}

func TestClient_HandleFrameStreamsToSession(t *testing.T) {
	hub := startHub(t)
	streamer := &stubStreamer{chunks: []response.Chunk{
		{Text: "Hello "},
		{Text: "there"},
		{Done: true},
	}}
	sender := join(t, hub, "s1", streamer)
	otherTab := join(t, hub, "s1", nil)

	sender.handleFrame(context.Background(), []byte(`{"type":"message","message":"Hi","use_retrieval":true}`))

	got := frames(t, sender, 3)
	assert.Equal(t, FrameChunk, got[0].Type)
	assert.Equal(t, "Hello ", got[0].Text)
	assert.Equal(t, "there", got[1].Text)
	assert.Equal(t, FrameDone, got[2].Type)
	assert.Len(t, frames(t, otherTab, 3), 3)

	require.NotNil(t, streamer.got)
	assert.Equal(t, "s1", streamer.got.SessionId)
	assert.True(t, streamer.got.UseRetrieval)
}

func TestClient_HandleFrameErrors(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		chunks    []response.Chunk
		wantError string
	}{
		{"not json", `nope`, nil, "Invalid frame"},
		{"unknown type", `{"type":"typing"}`, nil, "Unsupported frame type typing"},
		{"empty message", `{"type":"message"}`, nil, "message is required"},
		{
			"completion failed",
			`{"type":"message","message":"Hi"}`,
			[]response.Chunk{{Done: true, Err: errs.NewServiceError("completion", errs.KindRateLimited, errors.New("429"))}},
			response.FailureMessage(errs.NewServiceError("completion", errs.KindRateLimited, nil)),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := startHub(t)
			c := join(t, hub, "s1", &stubStreamer{chunks: tt.chunks})

			c.handleFrame(context.Background(), []byte(tt.raw))

			got := frames(t, c, 1)
			assert.Equal(t, FrameError, got[0].Type)
			assert.Equal(t, tt.wantError, got[0].Error)
		})
	}
}
