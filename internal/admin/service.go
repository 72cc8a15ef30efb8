package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// Claims is the payload of an admin bearer token.
type Claims struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type Service interface {
	Login(ctx context.Context, username, password string) (string, *User, error)
	Authenticate(ctx context.Context, token string) (*User, error)
	EnsureAdmin(ctx context.Context, username, password string) error
	CountUsers(ctx context.Context) (int64, error)
}

type service struct {
	repo     Repository
	secret   []byte
	tokenTTL time.Duration
}

func NewService(repo Repository, secret string, tokenTTL time.Duration) Service {
	return &service{
		repo:     repo,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
	}
}

func (s *service) Login(ctx context.Context, username, password string) (string, *User, error) {
	u, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			log.Warn().Str("username", username).Msg("service: login attempt for unknown user")
			return "", nil, ErrInvalidCredentials
		}
		log.Error().Err(err).Msg("service: failed to load user for login")
		return "", nil, fmt.Errorf("service: failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		log.Warn().Stringer("user_id", u.ID).Msg("service: login attempt with wrong password")
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(u)
	if err != nil {
		return "", nil, err
	}

	log.Info().Stringer("user_id", u.ID).Msg("service: admin logged in")
	return token, u, nil
}

func (s *service) issueToken(u *User) (string, error) {
	now := time.Now()
	claims := Claims{
		ID:       u.ID.String(),
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("service: failed to sign token: %w", err)
	}
	return signed, nil
}

// Authenticate verifies the token and returns its user, who must still exist
// and hold the admin role.
func (s *service) Authenticate(ctx context.Context, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		log.Debug().Err(err).Msg("service: rejected bearer token")
		return nil, ErrInvalidToken
	}

	id, err := uuid.FromString(claims.ID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		log.Error().Err(err).Stringer("user_id", id).Msg("service: failed to load token user")
		return nil, fmt.Errorf("service: failed to load token user: %w", err)
	}

	if !u.IsAdmin() {
		return nil, ErrForbidden
	}
	return u, nil
}

// EnsureAdmin creates the bootstrap admin account when it does not exist yet.
func (s *service) EnsureAdmin(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil
	}

	_, err := s.repo.GetByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return fmt.Errorf("service: failed to look up bootstrap admin: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("service: failed to hash password: %w", err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("service: failed to generate user ID: %w", err)
	}

	u := &User{ID: id, Username: username, PasswordHash: string(hash), Role: RoleAdmin}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrUsernameExists) {
			return nil
		}
		return fmt.Errorf("service: failed to create bootstrap admin: %w", err)
	}

	log.Info().Str("username", username).Msg("service: bootstrap admin created")
	return nil
}

func (s *service) CountUsers(ctx context.Context) (int64, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to count users")
		return 0, fmt.Errorf("service: failed to count users: %w", err)
	}
	return n, nil
}
