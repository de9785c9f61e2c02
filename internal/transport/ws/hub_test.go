package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/vedran77/dmcore/internal/auth"
)

const testSecret = "ws-secret"

type testServer struct {
	hub    *Hub
	srv    *httptest.Server
	cancel context.CancelFunc
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(zap.NewNop())
	go hub.Run(ctx)

	srv := httptest.NewServer(ServeWS(hub, testSecret, []string{"http://localhost:3000"}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testServer{hub: hub, srv: srv, cancel: cancel}
}

func (s *testServer) dial(t *testing.T, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	tok, err := auth.Sign(userID, testSecret, time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "?token=" + tok
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func (s *testServer) waitSessions(t *testing.T, userID uuid.UUID, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		n, err := s.hub.SessionCount(context.Background(), userID.String())
		return err == nil && n == want
	}, 2*time.Second, 10*time.Millisecond)
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var evt Event
	require.NoError(t, wsjson.Read(ctx, conn, &evt))
	return evt
}

func TestHub_PublishReachesEverySessionOfUser(t *testing.T) {
	s := newTestServer(t)
	alice, bob := uuid.New(), uuid.New()

	phone := s.dial(t, alice)
	laptop := s.dial(t, alice)
	other := s.dial(t, bob)
	s.waitSessions(t, alice, 2)
	s.waitSessions(t, bob, 1)

	payload := map[string]string{"content": "hi"}
	require.NoError(t, s.hub.Publish(context.Background(), alice.String(), "message.received", payload))

	for _, conn := range []*websocket.Conn{phone, laptop} {
		evt := readEvent(t, conn)
		assert.Equal(t, "message.received", evt.Type)
		assert.Equal(t, alice.String(), evt.Channel)
		assert.NotZero(t, evt.Timestamp)

		var got map[string]string
		require.NoError(t, json.Unmarshal(evt.Payload, &got))
		assert.Equal(t, payload, got)
	}

	// bob's session stays quiet
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	var evt Event
	assert.Error(t, wsjson.Read(ctx, other, &evt))
}

func TestHub_PublishWithoutSessionsIsNotAnError(t *testing.T) {
	s := newTestServer(t)
	assert.NoError(t, s.hub.Publish(context.Background(), uuid.NewString(), "message.received", nil))
}

func TestHub_SessionLeavesOnClose(t *testing.T) {
	s := newTestServer(t)
	alice := uuid.New()

	conn := s.dial(t, alice)
	s.waitSessions(t, alice, 1)

	conn.Close(websocket.StatusNormalClosure, "bye")
	s.waitSessions(t, alice, 0)
}

func TestHub_PingPongAndUnknownEvent(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t, uuid.New())

	ctx := context.Background()
	require.NoError(t, wsjson.Write(ctx, conn, Event{Type: EventTypePing}))
	assert.Equal(t, EventTypePong, readEvent(t, conn).Type)

	require.NoError(t, wsjson.Write(ctx, conn, Event{Type: "typing.start"}))
	evt := readEvent(t, conn)
	require.Equal(t, EventTypeError, evt.Type)

	var p ErrorPayload
	require.NoError(t, json.Unmarshal(evt.Payload, &p))
	assert.Equal(t, "UNKNOWN_EVENT", p.Code)
}

func TestHub_ClosedHubRejectsPublish(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	err := hub.Publish(context.Background(), uuid.NewString(), "message.received", nil)
	assert.ErrorIs(t, err, ErrHubClosed)

	_, err = hub.SessionCount(context.Background(), "x")
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestServeWS_RejectsBadToken(t *testing.T) {
	s := newTestServer(t)

	for name, query := range map[string]string{
		"missing": "",
		"garbage": "?token=nope",
	} {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + query
			_, resp, err := websocket.Dial(ctx, url, nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestServeWS_RejectsForeignOrigin(t *testing.T) {
	s := newTestServer(t)
	tok, err := auth.Sign(uuid.New(), testSecret, time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "?token=" + tok
	_, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"https://evil.example"}},
	})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestOriginPatterns(t *testing.T) {
	got := OriginPatterns([]string{"http://localhost:3000", " https://app.example.com ", "*.example.org", ""})
	assert.Equal(t, []string{"localhost:3000", "app.example.com", "*.example.org"}, got)
}
