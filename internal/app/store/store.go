/*
Package store implements the durable persistence layer over PostgreSQL.

It owns all SQL for users, conversations, participants, and messages, and
implements the narrow collaborator interfaces the realtime core consumes
(membership checks, message inserts, user lookup).
*/
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"parley/internal/app/chat"
	"parley/internal/app/user"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// searchResultLimit caps user search responses.
const searchResultLimit = 20

// Store executes all database queries through a shared pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs a Store over an initialized connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Users ---

// CreateUser inserts a new user account. The caller is responsible for hashing
// the password. A duplicate username surfaces as a unique violation.
func (s *Store) CreateUser(ctx context.Context, username, displayName, passwordHash string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, display_name, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, username, display_name, password_hash, created_at`,
		username, displayName, passwordHash,
	).Scan(&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUserByUsername fetches a user account by its unique username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, display_name, password_hash, created_at
		 FROM users WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

// GetUserByID fetches a user account by id.
func (s *Store) GetUserByID(ctx context.Context, id int64) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, display_name, password_hash, created_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// LookupUser implements chat.UserLookup for the credential verifier.
func (s *Store) LookupUser(ctx context.Context, id int64) (user.User, error) {
	u, err := s.GetUserByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	return user.User{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName}, nil
}

// SearchUsers returns users whose username or display name contains the query
// substring, excluding the requesting user.
func (s *Store) SearchUsers(ctx context.Context, query string, excludeID int64) ([]User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, username, display_name, created_at
		 FROM users
		 WHERE (username ILIKE '%' || $1 || '%' OR display_name ILIKE '%' || $1 || '%')
		   AND id <> $2
		 ORDER BY username
		 LIMIT $3`,
		query, excludeID, searchResultLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// --- Conversations ---

// CreateConversation inserts a conversation and its participant set in one
// transaction. Duplicate participant ids are collapsed by the primary key.
func (s *Store) CreateConversation(ctx context.Context, title string, participantIDs []int64) (Conversation, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Conversation{}, fmt.Errorf("begin create conversation: %w", err)
	}
	defer tx.Rollback(ctx)

	var c Conversation
	err = tx.QueryRow(ctx,
		`INSERT INTO conversations (title) VALUES ($1)
		 RETURNING id, title, created_at`,
		title,
	).Scan(&c.ID, &c.Title, &c.CreatedAt)
	if err != nil {
		return Conversation{}, fmt.Errorf("insert conversation: %w", err)
	}

	for _, userID := range participantIDs {
		_, err = tx.Exec(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id)
			 VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			c.ID, userID,
		)
		if err != nil {
			return Conversation{}, fmt.Errorf("insert participant: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Conversation{}, fmt.Errorf("commit create conversation: %w", err)
	}

	participants, err := s.listParticipants(ctx, c.ID)
	if err != nil {
		return Conversation{}, err
	}
	c.Participants = participants

	return c, nil
}

// GetConversation fetches one conversation with its participants.
func (s *Store) GetConversation(ctx context.Context, id int64) (Conversation, error) {
	var c Conversation
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, created_at FROM conversations WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Title, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("get conversation: %w", err)
	}

	participants, err := s.listParticipants(ctx, c.ID)
	if err != nil {
		return Conversation{}, err
	}
	c.Participants = participants

	return c, nil
}

// ListConversations returns the conversations the user participates in,
// newest first, each with its full participant set.
func (s *Store) ListConversations(ctx context.Context, userID int64) ([]Conversation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.title, c.created_at
		 FROM conversations c
		 JOIN conversation_participants cp ON cp.conversation_id = c.id
		 WHERE cp.user_id = $1
		 ORDER BY c.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []Conversation{}
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range conversations {
		participants, err := s.listParticipants(ctx, conversations[i].ID)
		if err != nil {
			return nil, err
		}
		conversations[i].Participants = participants
	}

	return conversations, nil
}

// listParticipants loads the participant set of one conversation.
func (s *Store) listParticipants(ctx context.Context, conversationID int64) ([]User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT u.id, u.username, u.display_name, u.created_at
		 FROM users u
		 JOIN conversation_participants cp ON cp.user_id = u.id
		 WHERE cp.conversation_id = $1
		 ORDER BY u.id`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan participant row: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// IsParticipant implements chat.Store. A missing conversation reports false so
// the caller cannot distinguish absence from exclusion.
func (s *Store) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM conversation_participants
		   WHERE conversation_id = $1 AND user_id = $2
		 )`,
		conversationID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("participant check: %w", err)
	}
	return exists, nil
}

// --- Messages ---

// CreateMessage inserts a message row with a server-assigned id and timestamp
// and returns it with the sender identity attached.
func (s *Store) CreateMessage(ctx context.Context, conversationID, senderID int64, content string) (Message, error) {
	var m Message
	err := s.pool.QueryRow(ctx,
		`WITH inserted AS (
		   INSERT INTO messages (conversation_id, sender_id, content)
		   VALUES ($1, $2, $3)
		   RETURNING id, conversation_id, sender_id, content, created_at
		 )
		 SELECT i.id, i.conversation_id, i.content, i.created_at,
		        u.id, u.username, u.display_name, u.created_at
		 FROM inserted i
		 JOIN users u ON u.id = i.sender_id`,
		conversationID, senderID, content,
	).Scan(
		&m.ID, &m.ConversationID, &m.Content, &m.CreatedAt,
		&m.Sender.ID, &m.Sender.Username, &m.Sender.DisplayName, &m.Sender.CreatedAt,
	)
	if err != nil {
		return Message{}, fmt.Errorf("create message: %w", err)
	}
	return m, nil
}

// SaveMessage implements chat.Store for the ingest pipeline.
func (s *Store) SaveMessage(ctx context.Context, conversationID, senderID int64, content string) (chat.PersistedMessage, error) {
	m, err := s.CreateMessage(ctx, conversationID, senderID, content)
	if err != nil {
		return chat.PersistedMessage{}, err
	}
	return chat.PersistedMessage{ID: m.ID, CreatedAt: m.CreatedAt}, nil
}

// ListMessages returns every message in the conversation ordered by creation
// time, ties broken by id.
func (s *Store) ListMessages(ctx context.Context, conversationID int64) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT m.id, m.conversation_id, m.content, m.created_at,
		        u.id, u.username, u.display_name, u.created_at
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.conversation_id = $1
		 ORDER BY m.created_at, m.id`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.ID, &m.ConversationID, &m.Content, &m.CreatedAt,
			&m.Sender.ID, &m.Sender.Username, &m.Sender.DisplayName, &m.Sender.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
