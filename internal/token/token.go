// Package token issues and verifies the signed bearer tokens that carry an
// actor's identity and role to the HTTP boundary.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalid = errors.New("invalid token")
	ErrExpired = errors.New("token expired")
)

// Roles understood by the service.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
)

// MaxUserIDLength keeps tokens small.
const MaxUserIDLength = 128

// Actor is the verified identity behind a request.
type Actor struct {
	UserID   string
	Role     string
	IssuedAt time.Time
}

// IsModerator reports whether the actor may use moderator routes.
func (a Actor) IsModerator() bool {
	return a.Role == RoleModerator
}

// Claims is the JWT body. The user ID travels as the subject.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Generate creates a signed token for userID with role.
func Generate(userID, role string, secret []byte) (string, error) {
	return generateAt(userID, role, time.Now(), secret)
}

func generateAt(userID, role string, at time.Time, secret []byte) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id required")
	}
	if len(userID) > MaxUserIDLength {
		return "", fmt.Errorf("user id too long: %d chars (max %d)", len(userID), MaxUserIDLength)
	}
	if !validRole(role) {
		return "", fmt.Errorf("unknown role %q", role)
	}
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(at),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func validRole(role string) bool {
	return role == RoleUser || role == RoleModerator
}

// Verify checks the token signature and age and returns the actor.
// A ttl of zero disables the age check.
func Verify(tok string, secret []byte, ttl time.Duration) (Actor, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tok, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return Actor{}, ErrInvalid
	}
	if claims.Subject == "" || claims.IssuedAt == nil || !validRole(claims.Role) {
		return Actor{}, ErrInvalid
	}
	issued := claims.IssuedAt.Time
	if ttl > 0 && time.Since(issued) > ttl {
		return Actor{}, ErrExpired
	}
	return Actor{UserID: claims.Subject, Role: claims.Role, IssuedAt: issued}, nil
}

// FromHeader extracts the token from an "Authorization: Bearer" value.
func FromHeader(h string) (string, bool) {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(h), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}
