// Package session owns the signed-in user: the bearer token, the cached
// profile, and login/logout against the remote API and the persisted store.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/client/kv"
	"github.com/atinyakov/GophShop/internal/logger"
	"github.com/atinyakov/GophShop/internal/models"
)

const (
	// SuperAdminUsername is the identity of the offline login shortcut and
	// the name Session.IsSuperAdmin checks.
	SuperAdminUsername = "superadmin"
	superAdminPassword = "1234567"
	superAdminToken    = "local-superadmin-token"

	// AdminIdentity is what Store.IsSuperAdmin compares against. It differs
	// from SuperAdminUsername in the shipped app and is kept that way until
	// product decides which one is meant.
	AdminIdentity = "super@demo"
)

// Authenticator is the remote side of login.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*models.LoginResponse, error)
	CurrentUser(ctx context.Context) (*models.User, error)
}

// Session is an authenticated user and its bearer token.
type Session struct {
	Token string
	User  *models.User
}

// IsAuthenticated reports whether both token and user are set.
func (s Session) IsAuthenticated() bool {
	return s.Token != "" && s.User != nil
}

// IsSuperAdmin reports whether the session belongs to the superadmin.
func (s Session) IsSuperAdmin() bool {
	return s.User != nil && s.User.Username == SuperAdminUsername
}

// Store holds the current session and persists it to a kv.Store.
type Store struct {
	kv     kv.Store
	remote Authenticator
	log    *zap.Logger

	mu      sync.RWMutex
	current Session
}

// New creates a Store. remote may be nil when only the offline shortcut is used.
func New(store kv.Store, remote Authenticator, log *zap.Logger) *Store {
	return &Store{kv: store, remote: remote, log: logger.OrNop(log)}
}

// Login authenticates the user. The superadmin shortcut is answered locally
// without a network call; any other credentials go to the remote API once,
// and its error is returned unchanged.
func (s *Store) Login(ctx context.Context, username, password string) (Session, error) {
	if username == SuperAdminUsername && password == superAdminPassword {
		resp := superAdmin()
		if err := s.persist(resp); err != nil {
			s.log.Warn("failed to persist superadmin session", zap.Error(err))
		}
		return s.adopt(resp), nil
	}

	if s.remote == nil {
		return Session{}, errors.New("no remote authenticator configured")
	}
	resp, err := s.remote.Login(ctx, username, password)
	if err != nil {
		s.log.Info("login failed", zap.String("username", username), zap.Error(err))
		return Session{}, err
	}
	if err := s.persist(resp); err != nil {
		return Session{}, fmt.Errorf("persist session: %w", err)
	}
	return s.adopt(resp), nil
}

func superAdmin() *models.LoginResponse {
	return &models.LoginResponse{
		User: models.User{
			ID:        0,
			Username:  SuperAdminUsername,
			Email:     "superadmin@local",
			FirstName: "Super",
			LastName:  "Admin",
			Gender:    "none",
			Image:     "",
		},
		Token: superAdminToken,
	}
}

func (s *Store) persist(resp *models.LoginResponse) error {
	if err := s.kv.Set(kv.KeyAuthToken, resp.Token); err != nil {
		return err
	}
	return kv.SetObject(s.kv, kv.KeyUserData, resp.User)
}

func (s *Store) adopt(resp *models.LoginResponse) Session {
	u := resp.User
	sess := Session{Token: resp.Token, User: &u}
	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
	return sess
}

// Logout forgets the session in memory and in the persisted store.
func (s *Store) Logout() error {
	s.mu.Lock()
	s.current = Session{}
	s.mu.Unlock()

	err := errors.Join(s.kv.Delete(kv.KeyAuthToken), s.kv.Delete(kv.KeyUserData))
	if err != nil {
		s.log.Error("logout failed to clear storage", zap.Error(err))
		return err
	}
	s.log.Info("logout successful")
	return nil
}

// Restore adopts a session persisted by a previous run, if both the token
// and a readable user are present.
func (s *Store) Restore() (Session, bool) {
	token, ok := s.kv.GetString(kv.KeyAuthToken)
	if !ok || token == "" {
		return Session{}, false
	}
	u, ok := s.CachedUser()
	if !ok {
		return Session{}, false
	}
	return s.adopt(&models.LoginResponse{User: *u, Token: token}), true
}

// RefreshUser fetches the profile from the remote API and persists it.
func (s *Store) RefreshUser(ctx context.Context) (*models.User, error) {
	if s.remote == nil {
		return nil, errors.New("no remote authenticator configured")
	}
	u, err := s.remote.CurrentUser(ctx)
	if err != nil {
		s.log.Warn("get current user failed", zap.Error(err))
		return nil, err
	}
	if err := kv.SetObject(s.kv, kv.KeyUserData, u); err != nil {
		return nil, fmt.Errorf("persist user: %w", err)
	}
	s.mu.Lock()
	if s.current.Token != "" {
		cp := *u
		s.current.User = &cp
	}
	s.mu.Unlock()
	return u, nil
}

// HasValidToken reports whether a non-empty token is persisted.
func (s *Store) HasValidToken() bool {
	token, ok := s.kv.GetString(kv.KeyAuthToken)
	return ok && token != ""
}

// CachedUser decodes the persisted profile. A malformed value is logged and
// reported as absent.
func (s *Store) CachedUser() (*models.User, bool) {
	var u models.User
	err := kv.GetObject(s.kv, kv.KeyUserData, &u)
	if errors.Is(err, kv.ErrMalformed) {
		s.log.Warn("failed to parse cached user", zap.Error(err))
		return nil, false
	}
	if err != nil {
		return nil, false
	}
	return &u, true
}

// IsSuperAdmin compares username, or the cached user's name when username
// is empty, against AdminIdentity.
func (s *Store) IsSuperAdmin(username string) bool {
	if username != "" {
		return username == AdminIdentity
	}
	u, ok := s.CachedUser()
	return ok && u.Username == AdminIdentity
}

// Current returns the in-memory session.
func (s *Store) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current.IsAuthenticated()
}

// Token returns the current bearer token, or "" when signed out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Token
}
