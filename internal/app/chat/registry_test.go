package chat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/app/user"
)

func newTestSession(conversationID int64, id int64) *Session {
	u := user.User{ID: id, Username: "u", DisplayName: "U"}
	return NewSession(conversationID, u, nil, nil, nil, nil)
}

func TestRegistrySubscribeIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	s := newTestSession(5, 1)

	reg.Subscribe(5, s)
	reg.Subscribe(5, s)

	assert.Equal(t, 1, reg.Members(5))
}

func TestRegistryUnsubscribeRemovesEmptyRoom(t *testing.T) {
	reg := NewRegistry()
	s := newTestSession(5, 1)

	reg.Subscribe(5, s)
	require.Equal(t, 1, reg.Members(5))

	reg.Unsubscribe(5, s)
	assert.Equal(t, 0, reg.Members(5))

	// Double unsubscribe and unsubscribing from absent rooms are no-ops.
	reg.Unsubscribe(5, s)
	reg.Unsubscribe(42, s)
	assert.Equal(t, 0, reg.Members(5))
}

func TestRegistryBroadcastReachesAllMembersIncludingPublisher(t *testing.T) {
	reg := NewRegistry()
	a := newTestSession(5, 1)
	b := newTestSession(5, 2)
	outsider := newTestSession(9, 3)

	reg.Subscribe(5, a)
	reg.Subscribe(5, b)
	reg.Subscribe(9, outsider)

	frame := []byte(`{"type":"message"}`)
	reg.Broadcast(5, frame)

	for _, s := range []*Session{a, b} {
		select {
		case got := <-s.send:
			assert.Equal(t, frame, got)
		default:
			t.Fatalf("expected frame queued for session %d", s.user.ID)
		}
	}

	select {
	case <-outsider.send:
		t.Fatal("frame leaked into an unrelated room")
	default:
	}
}

func TestRegistryBroadcastToAbsentRoomIsNoop(t *testing.T) {
	reg := NewRegistry()

	// Must not panic or create the room.
	reg.Broadcast(5, []byte("x"))
	assert.Equal(t, 0, reg.Members(5))
}

func TestRegistryConcurrentJoinLeave(t *testing.T) {
	reg := NewRegistry()

	const sessions = 64
	var wg sync.WaitGroup

	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()

			s := newTestSession(5, id)
			reg.Subscribe(5, s)
			reg.Broadcast(5, []byte("frame"))
			reg.Unsubscribe(5, s)
		}(int64(i))
	}

	wg.Wait()
	assert.Equal(t, 0, reg.Members(5))
}
