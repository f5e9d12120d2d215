/*
Package handler provides HTTP handler functions for conversation and message CRUD.
*/
package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"parley/internal/app/chat"
	"parley/internal/app/db"
	"parley/internal/app/store"
	"parley/internal/pkg/auth/jwt"
	"parley/internal/pkg/errs"
	"parley/internal/pkg/logx"
	"parley/internal/pkg/req"
	"parley/internal/pkg/resp"
)

// ConversationResponse is the public shape of a conversation, including the
// per-viewer display title.
type ConversationResponse struct {
	ID           int64          `json:"id"`
	Title        string         `json:"title"`
	DisplayTitle string         `json:"display_title"`
	Participants []UserResponse `json:"participants"`
	CreatedAt    time.Time      `json:"created_at"`
}

// MessageResponse is the public shape of a persisted message.
type MessageResponse struct {
	ID           int64        `json:"id"`
	Conversation int64        `json:"conversation"`
	Sender       UserResponse `json:"sender"`
	Content      string       `json:"content"`
	CreatedAt    time.Time    `json:"created_at"`
}

// displayTitle derives the title shown to the viewer. Direct conversations
// (exactly two participants) show the other participant's name; everything else
// falls back to the stored title.
func displayTitle(c store.Conversation, viewerID int64) string {
	if len(c.Participants) == 2 {
		for _, p := range c.Participants {
			if p.ID != viewerID {
				if p.DisplayName != "" {
					return p.DisplayName
				}
				return p.Username
			}
		}
	}
	return c.Title
}

func toConversationResponse(c store.Conversation, viewerID int64) ConversationResponse {
	participants := make([]UserResponse, 0, len(c.Participants))
	for _, p := range c.Participants {
		participants = append(participants, toUserResponse(p))
	}

	return ConversationResponse{
		ID:           c.ID,
		Title:        c.Title,
		DisplayTitle: displayTitle(c, viewerID),
		Participants: participants,
		CreatedAt:    c.CreatedAt,
	}
}

func toMessageResponse(m store.Message) MessageResponse {
	return MessageResponse{
		ID:           m.ID,
		Conversation: m.ConversationID,
		Sender:       toUserResponse(m.Sender),
		Content:      m.Content,
		CreatedAt:    m.CreatedAt,
	}
}

// HandleListConversations returns the authenticated user's conversations, newest first.
func HandleListConversations(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		conversations, err := deps.Store.ListConversations(r.Context(), identity.UserID)
		if err != nil {
			logx.Error(err, "failed to list conversations", "user_id", identity.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailure))
			return
		}

		results := make([]ConversationResponse, 0, len(conversations))
		for _, c := range conversations {
			results = append(results, toConversationResponse(c, identity.UserID))
		}

		resp.RespondSuccess(w, r, results)
	}
}

type CreateConversationInput struct {
	Title          string  `json:"title"`
	ParticipantIDs []int64 `json:"participant_ids"`
}

// HandleCreateConversation creates a conversation. The creator is always added
// to the participant set whether or not the request lists them.
func HandleCreateConversation(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input CreateConversationInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		participantIDs := input.ParticipantIDs
		includesSelf := false
		for _, id := range participantIDs {
			if id == identity.UserID {
				includesSelf = true
				break
			}
		}
		if !includesSelf {
			participantIDs = append(participantIDs, identity.UserID)
		}

		conversation, err := deps.Store.CreateConversation(r.Context(), strings.TrimSpace(input.Title), participantIDs)
		if err != nil {
			if db.IsForeignKeyViolation(err) {
				resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
				return
			}
			logx.Error(err, "failed to create conversation", "user_id", identity.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailure))
			return
		}

		resp.RespondSuccess(w, r, toConversationResponse(conversation, identity.UserID))
	}
}

// conversationIDParam parses the conversation id path segment.
func conversationIDParam(r *http.Request) (int64, *errs.CustomError) {
	id, err := strconv.ParseInt(chi.URLParam(r, "conversationID"), 10, 64)
	if err != nil {
		return 0, errs.NewError(errs.ErrInvalidParams)
	}
	return id, nil
}

// HandleListMessages returns the conversation's messages ordered by creation
// time. Only participants may read history.
func HandleListMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		conversationID, customErr := conversationIDParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		isMember, err := deps.Store.IsParticipant(r.Context(), conversationID, identity.UserID)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailure))
			return
		}
		if !isMember {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotParticipant))
			return
		}

		messages, err := deps.Store.ListMessages(r.Context(), conversationID)
		if err != nil {
			logx.Error(err, "failed to list messages", "conversation_id", conversationID)
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailure))
			return
		}

		results := make([]MessageResponse, 0, len(messages))
		for _, m := range messages {
			results = append(results, toMessageResponse(m))
		}

		resp.RespondSuccess(w, r, results)
	}
}

type CreateMessageInput struct {
	Content string `json:"content"`
}

// HandleCreateMessage persists a message posted over REST. Realtime fan-out is
// the WebSocket pipeline's job; REST creation only writes history.
func HandleCreateMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		conversationID, customErr := conversationIDParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input CreateMessageInput
		if bindErr := req.BindJSON(w, r, &input); bindErr != nil {
			resp.RespondError(w, r, bindErr)
			return
		}

		if input.Content == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrEmptyMessage))
			return
		}
		if len(input.Content) > chat.MaxContentBytes {
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageContentTooLong))
			return
		}

		isMember, err := deps.Store.IsParticipant(r.Context(), conversationID, identity.UserID)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailure))
			return
		}
		if !isMember {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotParticipant))
			return
		}

		message, err := deps.Store.CreateMessage(r.Context(), conversationID, identity.UserID, input.Content)
		if err != nil {
			logx.Error(err, "failed to create message", "conversation_id", conversationID)
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailure))
			return
		}

		resp.RespondSuccess(w, r, toMessageResponse(message))
	}
}
