package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"grocery/database"
	"grocery/models"
	"grocery/utils"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost        = 10
	minPasswordLength = 6
)

type AuthService struct {
	users  database.UserRepository
	tokens database.TokenBlacklist
	jwt    *utils.Tokens
	carts  *CartService
	log    *zap.Logger
}

func NewAuthService(users database.UserRepository, tokens database.TokenBlacklist, jwt *utils.Tokens, carts *CartService, log *zap.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, jwt: jwt, carts: carts, log: log}
}

type Session struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
	Cart      *CartView
}

type GuestSession struct {
	GuestID   string
	Token     string
	ExpiresAt time.Time
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) create(ctx context.Context, name, email, password, role string) (*models.User, error) {
	email = normalizeEmail(email)
	if strings.TrimSpace(name) == "" {
		return nil, NewValidation("name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, NewValidation("invalid email")
	}
	if len(password) < minPasswordLength {
		return nil, NewValidation("password must be at least 6 characters")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, NewInternal(err)
	}
	user := &models.User{Name: strings.TrimSpace(name), Email: email, Password: string(hashed), Role: role}
	err = s.users.Create(ctx, user)
	if errors.Is(err, database.ErrDuplicateKey) {
		return nil, NewConflict("email already registered")
	}
	if err != nil {
		return nil, NewInternal(err)
	}
	return user, nil
}

// Register creates a customer account.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	return s.create(ctx, name, email, password, models.RoleCustomer)
}

// EnsureAdmin creates the admin account unless the email is already taken.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	_, err := s.create(ctx, "Admin", email, password, models.RoleAdmin)
	if KindOf(err) == KindConflict {
		return nil
	}
	return err
}

// Login verifies credentials and issues a token. A valid guestToken has its
// cart merged into the user's cart; merge failures do not fail the login.
func (s *AuthService) Login(ctx context.Context, email, password, guestToken string) (*Session, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, database.ErrNotFound) {
		return nil, NewUnauthorized(ErrMsgInvalidLogin)
	}
	if err != nil {
		return nil, NewInternal(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, NewUnauthorized(ErrMsgInvalidLogin)
	}

	token, exp, err := s.jwt.Issue(user.ID.Hex(), user.Role)
	if err != nil {
		return nil, NewInternal(err)
	}
	session := &Session{User: user, Token: token, ExpiresAt: exp}

	if guestToken != "" {
		claims, err := s.jwt.Parse(guestToken)
		if err != nil || !claims.Guest() {
			s.log.Info("ignoring invalid guest token on login", zap.String("userId", user.ID.Hex()))
			return session, nil
		}
		view, err := s.carts.MergeGuestCart(ctx, claims.UserID, user.ID.Hex())
		if err != nil {
			s.log.Warn("guest cart merge failed", zap.String("guest", claims.UserID), zap.Error(err))
			return session, nil
		}
		session.Cart = view
	}
	return session, nil
}

func (s *AuthService) Guest() (*GuestSession, error) {
	token, id, exp, err := s.jwt.IssueGuest()
	if err != nil {
		return nil, NewInternal(err)
	}
	return &GuestSession{GuestID: id, Token: token, ExpiresAt: exp}, nil
}

// Logout blacklists the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.jwt.Parse(token)
	if err != nil {
		return NewUnauthorized("invalid token")
	}
	if err := s.tokens.Revoke(ctx, token, claims.ExpiresAt.Time); err != nil {
		return NewInternal(err)
	}
	return nil
}

// Authenticate parses token and rejects blacklisted ones.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*utils.Claims, error) {
	revoked, err := s.tokens.IsRevoked(ctx, token)
	if err != nil {
		return nil, NewInternal(err)
	}
	if revoked {
		return nil, NewUnauthorized("token has been revoked")
	}
	claims, err := s.jwt.Parse(token)
	if err != nil {
		return nil, NewUnauthorized(err.Error())
	}
	return claims, nil
}

// GuestOwner resolves a guest token to its owner key.
func (s *AuthService) GuestOwner(token string) (string, error) {
	claims, err := s.jwt.Parse(token)
	if err != nil || !claims.Guest() {
		return "", NewValidation("invalid guest token")
	}
	return claims.UserID, nil
}
