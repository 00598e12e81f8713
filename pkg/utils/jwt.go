package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	jwtSecret     = []byte("change-me-in-production")
	jwtSessionTTL = 15 * time.Minute
	jwtRefreshTTL = 30 * 24 * time.Hour
)

const (
	TokenTypeSession = "session"
	TokenTypeRefresh = "refresh"
)

// Claims embed the verified identity. Roles are captured at issuance time
// and are not re-read on rotation.
type Claims struct {
	UserID    uuid.UUID `json:"userID"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	TokenType string    `json:"tokenType"`
	jwt.RegisteredClaims
}

func ConfigureJWT(secret string, sessionTTL, refreshTTL time.Duration) {
	if secret != "" {
		jwtSecret = []byte(secret)
	}
	if sessionTTL > 0 {
		jwtSessionTTL = sessionTTL
	}
	if refreshTTL > 0 {
		jwtRefreshTTL = refreshTTL
	}
}

type TokenPair struct {
	SessionToken string `json:"token"`
	RefreshToken string `json:"refresh"`
}

func GenerateTokenPair(userID uuid.UUID, email string, roles []string) (*TokenPair, error) {
	session, err := signToken(userID, email, roles, TokenTypeSession, jwtSessionTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := signToken(userID, email, roles, TokenTypeRefresh, jwtRefreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{SessionToken: session, RefreshToken: refresh}, nil
}

func signToken(userID uuid.UUID, email string, roles []string, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    userID,
		Email:     email,
		Roles:     roles,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func parseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// ValidateSessionToken verifies signature, expiry, and token type. Any
// failure is opaque: no partial identity escapes.
func ValidateSessionToken(tokenString string) (*Claims, error) {
	claims, err := parseToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeSession {
		return nil, fmt.Errorf("invalid token type")
	}
	return claims, nil
}

func ValidateRefreshToken(tokenString string) (*Claims, error) {
	claims, err := parseToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeRefresh {
		return nil, fmt.Errorf("invalid token type")
	}
	return claims, nil
}

// RotateSessionToken reissues a session token from a valid refresh token.
// Role claims are copied as-is: a refreshed session can carry stale roles
// until the refresh token itself expires.
func RotateSessionToken(refreshToken string) (string, error) {
	claims, err := ValidateRefreshToken(refreshToken)
	if err != nil {
		return "", err
	}
	return signToken(claims.UserID, claims.Email, claims.Roles, TokenTypeSession, jwtSessionTTL)
}
