/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for rate limiting,
the authentication handshake, room membership authorization, upgrading the HTTP connection
to WebSocket, and running the session lifecycle.
*/
package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"parley/internal/app/chat"
	"parley/internal/pkg/errs"
	"parley/internal/pkg/limiter"
	"parley/internal/pkg/logx"
	"parley/internal/pkg/resp"
)

// bearerToken extracts the connection credential: the token query parameter is
// checked first, then the Authorization header. Empty means no credential.
func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}

	return ""
}

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
// Authentication and membership authorization run before the upgrade, so a rejected
// connection never receives a single frame.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r.RemoteAddr)

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		conversationID, err := strconv.ParseInt(chi.URLParam(r, "conversationID"), 10, 64)
		if err != nil {
			logx.Warn("WebSocket request rejected: Invalid conversation id")
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		u, err := deps.Verifier.Verify(r.Context(), bearerToken(r))
		if err != nil {
			logx.Warn("WebSocket connection rejected: Authentication failed.",
				"conversation_id", conversationID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		// A missing conversation and a non-membership reject identically, so an
		// outsider learns nothing about which conversations exist.
		isMember, err := deps.Membership.IsParticipant(r.Context(), conversationID, u.ID)
		if err != nil {
			logx.Error(err, "WebSocket membership check failed", "conversation_id", conversationID)
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailure))
			return
		}
		if !isMember {
			logx.Info("WebSocket connection rejected: Not a participant.",
				"conversation_id", conversationID, "user_id", u.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrNotParticipant))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		logx.Info("WebSocket connection established",
			"user_id", u.ID, "conversation_id", conversationID)

		session := chat.NewSession(conversationID, u, conn, deps.Registry, deps.Bus, deps.Pipeline)
		session.Run(r.Context())
	}
}
