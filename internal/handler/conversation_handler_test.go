package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"parley/internal/app/store"
)

func TestDisplayTitleDirectConversationShowsOtherParticipant(t *testing.T) {
	c := store.Conversation{
		ID:    5,
		Title: "",
		Participants: []store.User{
			{ID: 1, Username: "alice", DisplayName: "Alice"},
			{ID: 2, Username: "bob", DisplayName: "Bob"},
		},
	}

	assert.Equal(t, "Bob", displayTitle(c, 1))
	assert.Equal(t, "Alice", displayTitle(c, 2))
}

func TestDisplayTitleFallsBackToUsername(t *testing.T) {
	c := store.Conversation{
		Participants: []store.User{
			{ID: 1, Username: "alice", DisplayName: "Alice"},
			{ID: 2, Username: "bob", DisplayName: ""},
		},
	}

	assert.Equal(t, "bob", displayTitle(c, 1))
}

func TestDisplayTitleGroupConversationUsesTitle(t *testing.T) {
	c := store.Conversation{
		Title: "weekend plans",
		Participants: []store.User{
			{ID: 1, Username: "alice"},
			{ID: 2, Username: "bob"},
			{ID: 3, Username: "carol"},
		},
	}

	assert.Equal(t, "weekend plans", displayTitle(c, 1))
}

func TestDisplayTitleSoloConversationUsesTitle(t *testing.T) {
	c := store.Conversation{
		Title: "notes to self",
		Participants: []store.User{
			{ID: 1, Username: "alice"},
		},
	}

	assert.Equal(t, "notes to self", displayTitle(c, 1))
}
