package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
)

const (
	// AccessTokenExpiration defines the lifetime of short-term access tokens.
	AccessTokenExpiration = 1 * time.Hour

	// RefreshTokenExpiration defines the lifetime of refresh tokens (stored in an HTTP-only cookie).
	RefreshTokenExpiration = 7 * 24 * time.Hour

	// TokenIssuer identifies the issuer of the token.
	TokenIssuer = "Parley-Server"
)

// GenerateToken creates and signs a new JWT string for the given user id and token type.
// Every token carries a unique jti so refresh tokens can be told apart even when
// issued within the same second.
func GenerateToken(userID int64, tokenType string, secretKey string, duration time.Duration) (string, error) {
	now := time.Now()

	payload := &Payload{
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: now.Add(duration).Unix(),
			IssuedAt:  now.Unix(),
			Issuer:    TokenIssuer,
			Id:        uuid.New().String(),
		},
		UserID:    userID,
		TokenType: tokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)

	return token.SignedString([]byte(secretKey))
}

// ParseToken parses and validates the JWT string using the provided secretKey.
func ParseToken(tokenString string, secretKey string) (*Payload, error) {
	claims := &Payload{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secretKey), nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	return claims, nil
}
