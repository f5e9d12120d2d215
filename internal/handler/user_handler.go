/*
Package handler provides HTTP handler functions for user discovery.
*/
package handler

import (
	"net/http"
	"strings"

	"parley/internal/pkg/auth/jwt"
	"parley/internal/pkg/errs"
	"parley/internal/pkg/logx"
	"parley/internal/pkg/resp"
)

// HandleSearchUsers returns users whose username or display name contains the
// q query substring. The requesting user is excluded from results; a blank
// query returns an empty list rather than the whole directory.
func HandleSearchUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		query := strings.TrimSpace(r.URL.Query().Get("q"))
		if query == "" {
			resp.RespondSuccess(w, r, []UserResponse{})
			return
		}

		users, err := deps.Store.SearchUsers(r.Context(), query, identity.UserID)
		if err != nil {
			logx.Error(err, "user search failed", "query", query)
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailure))
			return
		}

		results := make([]UserResponse, 0, len(users))
		for _, u := range users {
			results = append(results, toUserResponse(u))
		}

		resp.RespondSuccess(w, r, results)
	}
}
