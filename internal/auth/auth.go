package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/c-pro/geche"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultTokenExpiry = 12 * time.Hour
	loginFailedMessage = "login failed"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUnauthorized = errors.New("unauthorized")
)

// Identity is what a valid bearer token resolves to. Every live connection
// carries one.
type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Credentials is the durable part of a user account plus in-memory
// brute-force counters (the counters are not persisted).
type Credentials struct {
	UserID       string
	Username     string
	PasswordHash string
	CreatedAt    int64

	failedAttempts int64
	lastAttemptAt  int64
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Token       string `json:"token,omitempty"`
	TokenExpiry int64  `json:"tokenExpiry,omitempty"`
}

// Store is the persistence surface auth needs. Satisfied by storage.Store.
type Store interface {
	UpsertCredentials(Credentials) error
	ListCredentials() ([]Credentials, error)
	UpsertToken(userID, tokenHash string) error
	DeleteToken(tokenHash string) error
	ListTokens() (map[string]string, error)
}

type Config struct {
	TokenExpiry time.Duration `json:"tokenExpiry"`
}

func (c *Config) Validate() error {
	if c.TokenExpiry == 0 {
		c.TokenExpiry = DefaultTokenExpiry
	}
	if c.TokenExpiry < 0 {
		return errors.New("token expiry must be positive")
	}
	return nil
}

// Service authenticates bearer tokens at connection open and issues them at
// login. Live tokens are held in a TTL cache keyed by token hash; the store
// keeps them across restarts.
type Service struct {
	Config
	store      Store
	users      *geche.Locker[string, *Credentials]
	names      geche.Geche[string, string]
	liveTokens geche.Geche[string, Identity]
	now        func() time.Time
}

func NewService(ctx context.Context, config Config, store Store) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		Config:     config,
		store:      store,
		users:      geche.NewLocker[string, *Credentials](geche.NewMapCache[string, *Credentials]()),
		names:      geche.NewMapCache[string, string](),
		liveTokens: geche.NewMapTTLCache[string, Identity](ctx, config.TokenExpiry, time.Minute),
		now:        time.Now,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) load() error {
	credentials, err := s.store.ListCredentials()
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	tx := s.users.Lock()
	for i := range credentials {
		c := credentials[i]
		tx.Set(c.Username, &c)
		s.names.Set(c.UserID, c.Username)
	}
	tx.Unlock()

	tokens, err := s.store.ListTokens()
	if err != nil {
		return fmt.Errorf("failed to load tokens: %w", err)
	}
	for tokenHash, userID := range tokens {
		username, err := s.names.Get(userID)
		if err != nil {
			continue
		}
		s.liveTokens.Set(tokenHash, Identity{UserID: userID, Username: username})
	}
	return nil
}

// AddUser registers a new user with the given password.
func (s *Service) AddUser(username, password string) (Identity, error) {
	tx := s.users.Lock()
	defer tx.Unlock()
	if _, err := tx.Get(username); err == nil {
		return Identity{}, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to hash password: %w", err)
	}

	creds := Credentials{
		UserID:       uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UnixMilli(),
	}
	if err := s.store.UpsertCredentials(creds); err != nil {
		return Identity{}, err
	}
	tx.Set(username, &creds)
	s.names.Set(creds.UserID, username)

	return Identity{UserID: creds.UserID, Username: username}, nil
}

// Login verifies the password and issues a bearer token. Repeated failures
// back off quadratically, matching attempts*attempts*30 seconds.
func (s *Service) Login(req LoginRequest) LoginResponse {
	now := s.now()
	tx := s.users.Lock()
	defer tx.Unlock()
	user, err := tx.Get(req.Username)
	if err != nil {
		return LoginResponse{Success: false, Message: loginFailedMessage}
	}

	if user.failedAttempts > 3 {
		nextAttempt := user.lastAttemptAt + 30*(user.failedAttempts*user.failedAttempts)
		if now.Unix() < nextAttempt {
			return LoginResponse{
				Success: false,
				Message: fmt.Sprintf("too many failed login attempts, next attempt in %d seconds", nextAttempt-now.Unix()),
			}
		}
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		user.failedAttempts++
		user.lastAttemptAt = now.Unix()
		return LoginResponse{Success: false, Message: loginFailedMessage}
	}

	token, err := generateToken()
	if err != nil {
		slog.Error("login failed", "user_id", user.UserID, "error", err)
		return LoginResponse{Success: false, Message: "internal error"}
	}

	tokenHash := hashToken(token)
	if err := s.store.UpsertToken(user.UserID, tokenHash); err != nil {
		slog.Error("failed to persist token", "user_id", user.UserID, "error", err)
		return LoginResponse{Success: false, Message: "internal error"}
	}
	s.liveTokens.Set(tokenHash, Identity{UserID: user.UserID, Username: user.Username})
	user.failedAttempts = 0
	user.lastAttemptAt = now.Unix()

	return LoginResponse{
		Success:     true,
		Token:       token,
		TokenExpiry: now.Unix() + int64(s.TokenExpiry.Seconds()),
	}
}

// Authenticate resolves a bearer token presented at connection open.
// Returns ErrUnauthorized for unknown or expired tokens.
func (s *Service) Authenticate(token string) (Identity, error) {
	identity, err := s.liveTokens.Get(hashToken(token))
	if err != nil {
		return Identity{}, ErrUnauthorized
	}
	return identity, nil
}

// Logoff revokes a token everywhere.
func (s *Service) Logoff(token string) error {
	tokenHash := hashToken(token)
	_ = s.liveTokens.Del(tokenHash)
	return s.store.DeleteToken(tokenHash)
}

// Lookup returns the username for a user ID, if known.
func (s *Service) Lookup(userID string) (string, bool) {
	username, err := s.names.Get(userID)
	return username, err == nil
}

func generateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.StdEncoding.EncodeToString(sum[:])
}
