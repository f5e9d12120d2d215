package jwt

import "github.com/golang-jwt/jwt"

// Token types carried in the token_type claim. Access tokens authenticate API and
// WebSocket requests; refresh tokens are only accepted by the token refresh endpoint.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Payload defines the structure of the JSON Web Token (JWT) claims issued by the server.
// It includes standard claims required by the JWT specification and the custom claims
// necessary for identifying users within the chat system.
type Payload struct {
	// StandardClaims embeds the necessary JWT standard fields such as Exp (Expiration),
	// Iat (Issued At), Jti (token id) and Iss (Issuer).
	jwt.StandardClaims `json:"standard_claims"`

	// UserID is the database identifier of the authenticated user.
	UserID int64 `json:"user_id"`

	// TokenType distinguishes access tokens from refresh tokens.
	TokenType string `json:"token_type"`
}
