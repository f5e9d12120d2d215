package store

import "time"

// User is a user account row.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Conversation is a conversation row with its participant set attached.
type Conversation struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	Participants []User    `json:"participants"`
}

// Message is a message row with its sender identity attached.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	Sender         User      `json:"sender"`
}
