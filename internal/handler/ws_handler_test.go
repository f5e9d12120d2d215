package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/app/chat"
	"parley/internal/app/user"
	"parley/internal/configs"
	"parley/internal/pkg/errs"
)

// fakeVerifier maps opaque credentials straight to identities.
type fakeVerifier struct {
	users map[string]user.User
}

func (f fakeVerifier) Verify(_ context.Context, token string) (user.User, error) {
	u, ok := f.users[token]
	if !ok {
		return user.User{}, errs.NewError(errs.ErrUnauthorized)
	}
	return u, nil
}

// fakeChatStore keeps membership and saved messages in memory.
type fakeChatStore struct {
	mu           sync.Mutex
	participants map[int64][]int64
	saved        []string
	nextID       int64
}

func (f *fakeChatStore) IsParticipant(_ context.Context, conversationID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, id := range f.participants[conversationID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeChatStore) SaveMessage(_ context.Context, _, _ int64, content string) (chat.PersistedMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	f.saved = append(f.saved, content)
	return chat.PersistedMessage{ID: f.nextID, CreatedAt: time.Now()}, nil
}

func (f *fakeChatStore) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

type wsFixture struct {
	srv   *httptest.Server
	deps  *AppDeps
	store *fakeChatStore
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()

	st := &fakeChatStore{participants: map[int64][]int64{
		5: {1, 2},
	}}

	registry := chat.NewRegistry()
	bus := chat.NewMemoryBus(registry)

	deps := &AppDeps{
		Config: &configs.AppConfig{
			Environment: "development",
			Port:        8080,
			JWTSecret:   "handler-test-secret",
		},
		Registry:   registry,
		Bus:        bus,
		Pipeline:   chat.NewPipeline(st, bus),
		Membership: st,
		Verifier: fakeVerifier{users: map[string]user.User{
			"alice-token":   {ID: 1, Username: "alice", DisplayName: "Alice"},
			"bob-token":     {ID: 2, Username: "bob", DisplayName: "Bob"},
			"mallory-token": {ID: 9, Username: "mallory", DisplayName: "Mallory"},
		}},
	}

	srv := httptest.NewServer(Router(deps))
	t.Cleanup(srv.Close)

	return &wsFixture{srv: srv, deps: deps, store: st}
}

func (f *wsFixture) dial(t *testing.T, path string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + path
	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	return dialer.Dial(wsURL, header)
}

func (f *wsFixture) connect(t *testing.T, path string) *websocket.Conn {
	t.Helper()

	conn, _, err := f.dial(t, path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) chat.Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev chat.Event
	require.NoError(t, json.Unmarshal(frame, &ev))
	return ev
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func TestWebSocketRejectsMissingCredential(t *testing.T) {
	f := newWSFixture(t)

	_, resp, err := f.dial(t, "/ws/5", nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, f.deps.Registry.Members(5))
}

func TestWebSocketRejectsInvalidCredential(t *testing.T) {
	f := newWSFixture(t)

	_, resp, err := f.dial(t, "/ws/5?token=forged", nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, f.deps.Registry.Members(5))
}

func TestWebSocketRejectsNonParticipant(t *testing.T) {
	f := newWSFixture(t)

	_, resp, err := f.dial(t, "/ws/5?token=mallory-token", nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, f.deps.Registry.Members(5))
}

func TestWebSocketMissingConversationRejectsLikeNonMembership(t *testing.T) {
	f := newWSFixture(t)

	_, resp, err := f.dial(t, "/ws/404?token=alice-token", nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebSocketAcceptsBearerHeader(t *testing.T) {
	f := newWSFixture(t)

	header := http.Header{"Authorization": []string{"Bearer alice-token"}}
	conn, _, err := f.dial(t, "/ws/5", header)
	require.NoError(t, err)
	defer conn.Close()

	ev := readEvent(t, conn)
	assert.Equal(t, chat.EventUserJoin, ev.Type)
	assert.Equal(t, int64(1), ev.UserID)
}

func TestWebSocketJoinAnnouncesToRoom(t *testing.T) {
	f := newWSFixture(t)

	a := f.connect(t, "/ws/5?token=alice-token")

	ev := readEvent(t, a)
	assert.Equal(t, chat.EventUserJoin, ev.Type)
	assert.Equal(t, "alice", ev.Username)
	assert.Equal(t, "Alice", ev.DisplayName)

	b := f.connect(t, "/ws/5?token=bob-token")

	// Alice sees Bob's join; Bob sees his own.
	ev = readEvent(t, a)
	assert.Equal(t, chat.EventUserJoin, ev.Type)
	assert.Equal(t, int64(2), ev.UserID)

	ev = readEvent(t, b)
	assert.Equal(t, chat.EventUserJoin, ev.Type)
	assert.Equal(t, int64(2), ev.UserID)

	assert.Equal(t, 2, f.deps.Registry.Members(5))
}

func TestWebSocketMessageRoundTrip(t *testing.T) {
	f := newWSFixture(t)

	a := f.connect(t, "/ws/5?token=alice-token")
	readEvent(t, a) // own join

	b := f.connect(t, "/ws/5?token=bob-token")
	readEvent(t, a) // bob's join
	readEvent(t, b) // own join

	writeFrame(t, a, `{"type":"message","message":"hello bob"}`)

	for _, conn := range []*websocket.Conn{a, b} {
		ev := readEvent(t, conn)
		assert.Equal(t, chat.EventMessage, ev.Type)
		assert.Equal(t, "hello bob", ev.Message)
		assert.Equal(t, int64(1), ev.UserID)
		assert.Equal(t, "Alice", ev.DisplayName)
		assert.Equal(t, int64(1), ev.MessageID)
		assert.NotEmpty(t, ev.Timestamp)
	}

	assert.Equal(t, 1, f.store.savedCount())
}

func TestWebSocketTypingIndicatorOrdering(t *testing.T) {
	f := newWSFixture(t)

	a := f.connect(t, "/ws/5?token=alice-token")
	readEvent(t, a)

	b := f.connect(t, "/ws/5?token=bob-token")
	readEvent(t, a)
	readEvent(t, b)

	writeFrame(t, a, `{"type":"typing","typing":true}`)
	writeFrame(t, a, `{"type":"typing","typing":false}`)

	for _, want := range []bool{true, false} {
		ev := readEvent(t, b)
		assert.Equal(t, chat.EventTyping, ev.Type)
		require.NotNil(t, ev.Typing)
		assert.Equal(t, want, *ev.Typing)
	}

	assert.Equal(t, 0, f.store.savedCount(), "typing indicators are never persisted")
}

func TestWebSocketRejectedMessageGetsNoErrorFrame(t *testing.T) {
	f := newWSFixture(t)

	a := f.connect(t, "/ws/5?token=alice-token")
	readEvent(t, a)

	b := f.connect(t, "/ws/5?token=bob-token")
	readEvent(t, a)
	readEvent(t, b)

	// Empty content is rejected silently; the typing frame right after proves the
	// connection stayed open and nothing else was delivered in between.
	writeFrame(t, a, `{"type":"message","message":""}`)
	writeFrame(t, a, `{"type":"typing","typing":true}`)

	ev := readEvent(t, b)
	assert.Equal(t, chat.EventTyping, ev.Type)

	ev = readEvent(t, a)
	assert.Equal(t, chat.EventTyping, ev.Type)

	assert.Equal(t, 0, f.store.savedCount())
}

func TestWebSocketDisconnectEmitsSingleLeave(t *testing.T) {
	f := newWSFixture(t)

	a := f.connect(t, "/ws/5?token=alice-token")
	readEvent(t, a)

	b := f.connect(t, "/ws/5?token=bob-token")
	readEvent(t, a)
	readEvent(t, b)

	require.NoError(t, a.Close())

	ev := readEvent(t, b)
	assert.Equal(t, chat.EventUserLeave, ev.Type)
	assert.Equal(t, int64(1), ev.UserID)
	assert.Equal(t, "alice", ev.Username)

	require.Eventually(t, func() bool {
		return f.deps.Registry.Members(5) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// No second leave notice follows the first.
	require.NoError(t, b.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, frame, err := b.ReadMessage()
	require.Error(t, err, "unexpected extra frame: %s", frame)
}
