// Package service provides the catalog server's business logic, delegating
// persistence to repository interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/GophShop/internal/models"
	"github.com/atinyakov/GophShop/internal/repository"
)

var (
	// ErrInvalidCredentials is returned for an unknown user or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned for a bearer token that does not verify.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidInput is returned for a request that fails validation.
	ErrInvalidInput = errors.New("invalid input")
)

// UserRepository defines the persistence operations required by the
// authentication service.
type UserRepository interface {
	// GetByUsername returns repository.ErrNotFound for an unknown user.
	GetByUsername(ctx context.Context, username string) (*models.UserRecord, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	Create(ctx context.Context, rec *models.UserRecord) (int64, error)
}

// Claims are the bearer token claims. Subject is the user id.
type Claims struct {
	Username string `json:"name"`
	jwt.RegisteredClaims
}

// UserID returns the subject as a user id.
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// AuthService checks passwords and issues and verifies bearer tokens.
type AuthService struct {
	repo   UserRepository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewAuthService creates an AuthService signing HS256 tokens with secret.
func NewAuthService(repo UserRepository, secret string, ttl time.Duration) *AuthService {
	return &AuthService{repo: repo, secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Login verifies the password and returns the user with a fresh token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	rec, err := s.repo.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword(rec.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.IssueToken(rec.User)
	if err != nil {
		return nil, err
	}
	return &models.LoginResponse{User: rec.User, Token: token}, nil
}

// Register creates a user with a bcrypt hash of password.
func (s *AuthService) Register(ctx context.Context, profile models.User, password string) (*models.User, error) {
	profile.Username = strings.TrimSpace(profile.Username)
	if profile.Username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	id, err := s.repo.Create(ctx, &models.UserRecord{User: profile, PasswordHash: hash})
	if err != nil {
		return nil, err
	}
	profile.ID = id
	return &profile, nil
}

// Me returns the profile of the user the token was issued to.
func (s *AuthService) Me(ctx context.Context, claims *Claims) (*models.User, error) {
	id, err := claims.UserID()
	if err != nil {
		return nil, ErrInvalidToken
	}
	return s.repo.GetByID(ctx, id)
}

// IssueToken signs a token for u.
func (s *AuthService) IssueToken(u models.User) (string, error) {
	now := s.now()
	claims := Claims{
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies a signed token and returns its claims.
func (s *AuthService) ParseToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}
