/*
Package handler provides HTTP handler functions for user authentication and account management.
*/
package handler

import (
	"errors"
	"net/http"
	"regexp"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"parley/internal/app/db"
	"parley/internal/app/store"
	"parley/internal/pkg/auth/jwt"
	"parley/internal/pkg/errs"
	"parley/internal/pkg/logx"
	"parley/internal/pkg/req"
	"parley/internal/pkg/resp"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)

// refreshCookieName is the HTTP-only cookie carrying the refresh token.
const refreshCookieName = "refresh_token"

// UserResponse is the public shape of a user account.
type UserResponse struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

func toUserResponse(u store.User) UserResponse {
	return UserResponse{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName}
}

// setRefreshCookie stores the refresh token in an HTTP-only cookie so browser
// clients never expose it to script.
func setRefreshCookie(w http.ResponseWriter, token string, environment string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(jwt.RefreshTokenExpiration.Seconds()),
		HttpOnly: true,
		Secure:   environment != "development",
		SameSite: http.SameSiteLaxMode,
	})
}

// clearRefreshCookie expires the refresh token cookie.
func clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

type RegisterInput struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// HandleRegister processes the request to create a new user account.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input RegisterInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !usernameRegex.MatchString(input.Username) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidUsername))
			return
		}

		passwordLen := utf8.RuneCountInString(input.Password)
		if passwordLen < 6 || passwordLen > 50 {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidPassword))
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		u, err := deps.Store.CreateUser(r.Context(), input.Username, input.DisplayName, string(hashedPassword))
		if err != nil {
			if db.IsUniqueViolation(err) {
				logx.Warn("registration conflict: username already exists", "username", input.Username)
				resp.RespondError(w, r, errs.NewError(errs.ErrUserAlreadyExists))
				return
			}

			logx.Error(err, "failed to create user in database")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, toUserResponse(u))
	}
}

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin verifies user credentials and issues an access token in the
// response body plus a refresh token in an HTTP-only cookie.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input LoginInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		u, err := deps.Store.GetUserByUsername(r.Context(), input.Username)
		if err != nil {
			logx.Warn("login: user fetch failed", "username", input.Username, "error", err)
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(input.Password)); err != nil {
			logx.Warn("login: password mismatch", "username", input.Username)
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		accessToken, err := jwt.GenerateToken(u.ID, jwt.TokenTypeAccess, deps.Config.JWTSecret, jwt.AccessTokenExpiration)
		if err != nil {
			logx.Error(err, "login: access token generation failed")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		refreshToken, err := jwt.GenerateToken(u.ID, jwt.TokenTypeRefresh, deps.Config.JWTSecret, jwt.RefreshTokenExpiration)
		if err != nil {
			logx.Error(err, "login: refresh token generation failed")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		setRefreshCookie(w, refreshToken, deps.Config.Environment)

		resp.RespondSuccess(w, r, map[string]any{
			"access": accessToken,
			"user":   toUserResponse(u),
		})
	}
}

// HandleRefreshToken exchanges a valid refresh cookie for a fresh access token.
func HandleRefreshToken(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(refreshCookieName)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidRefreshToken))
			return
		}

		payload, err := jwt.ParseToken(cookie.Value, deps.Config.JWTSecret)
		if err != nil || payload.TokenType != jwt.TokenTypeRefresh {
			logx.Warn("refresh: invalid refresh token presented")
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidRefreshToken))
			return
		}

		// The account must still exist for the refresh to succeed.
		if _, err := deps.Store.GetUserByID(r.Context(), payload.UserID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidRefreshToken))
				return
			}
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailure))
			return
		}

		accessToken, err := jwt.GenerateToken(payload.UserID, jwt.TokenTypeAccess, deps.Config.JWTSecret, jwt.AccessTokenExpiration)
		if err != nil {
			logx.Error(err, "refresh: access token generation failed")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"access": accessToken,
		})
	}
}

// HandleLogout clears the refresh token cookie for the authenticated user.
func HandleLogout(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jwt.GetPayloadFromContext(r) == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		clearRefreshCookie(w)

		resp.RespondSuccess(w, r, map[string]string{
			"detail": "Successfully logged out.",
		})
	}
}

// HandleMe returns the authenticated user's own account.
func HandleMe(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		u, err := deps.Store.GetUserByID(r.Context(), identity.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
				return
			}
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailure))
			return
		}

		resp.RespondSuccess(w, r, toUserResponse(u))
	}
}
