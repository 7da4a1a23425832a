package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"grocery/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) Guest() bool {
	return c.Role == models.RoleGuest
}

// Tokens issues and verifies HS256 tokens for users and guests.
type Tokens struct {
	secret   []byte
	ttl      time.Duration
	guestTTL time.Duration
}

func NewTokens(secret string, ttl, guestTTL time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, guestTTL: guestTTL}
}

func (t *Tokens) sign(userID, role string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (t *Tokens) Issue(userID, role string) (string, time.Time, error) {
	return t.sign(userID, role, t.ttl)
}

// IssueGuest mints a guest id and a token carrying it.
func (t *Tokens) IssueGuest() (token, guestID string, exp time.Time, err error) {
	guestID = models.GuestOwnerPrefix + uuid.NewString()
	token, exp, err = t.sign(guestID, models.RoleGuest, t.guestTTL)
	return token, guestID, exp, err
}

func (t *Tokens) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid token signing method")
		}
		return t.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// BearerToken strips the "Bearer " prefix of an Authorization header value.
func BearerToken(header string) string {
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return strings.TrimSpace(header)
}
