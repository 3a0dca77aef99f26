// Package session tracks whether a user is logged in and persists the
// access token between runs.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/schoolone/portal/internal/api"
	"github.com/schoolone/portal/internal/credential"
	"github.com/schoolone/portal/internal/model"
)

// Keys under which the session is kept in the credential vault.
const (
	tokenKey = "access_token"
	userKey  = "user"
)

// ErrMissingCredentials is returned by Login when email or password is
// empty.
var ErrMissingCredentials = errors.New("email and password are required")

// Authenticator exchanges credentials for a token and sends the token with
// later requests.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*api.LoginResult, error)
	SetToken(token string)
}

// Secrets persists the session between runs.
type Secrets interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// State is a snapshot of the session.
type State struct {
	LoggedIn bool
	User     model.User
	Token    string
	// ID identifies this session in logs.
	ID string
}

// Manager owns the logged-in flag. Subscribers are called synchronously on
// every transition, after the new state is visible through IsLoggedIn.
type Manager struct {
	auth    Authenticator
	secrets Secrets
	log     zerolog.Logger
	now     func() time.Time

	mu      sync.Mutex
	state   State
	subs    map[int]func(bool)
	nextSub int
}

// NewManager creates a logged-out manager. secrets may be nil, in which
// case nothing is persisted.
func NewManager(auth Authenticator, secrets Secrets, logger zerolog.Logger) *Manager {
	return &Manager{
		auth:    auth,
		secrets: secrets,
		log:     logger.With().Str("component", "session").Logger(),
		now:     time.Now,
		subs:    make(map[int]func(bool)),
	}
}

// IsLoggedIn reports whether a session is active.
func (m *Manager) IsLoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.LoggedIn
}

// SessionID returns the id of the active session, or "" when logged out.
// Each login gets a new id.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.LoggedIn {
		return ""
	}
	return m.state.ID
}

// Current returns a snapshot of the session.
func (m *Manager) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers fn for login and logout transitions.
func (m *Manager) Subscribe(fn func(loggedIn bool)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Login authenticates against the backend and starts a session.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return ErrMissingCredentials
	}

	res, err := m.auth.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("logging in: %w", err)
	}

	m.persist(res.AccessToken, res.User)
	m.begin(res.AccessToken, res.User, "login")
	return nil
}

// Resume restores a session saved by an earlier Login. It reports false
// when nothing usable is stored; an expired token is discarded.
func (m *Manager) Resume() (bool, error) {
	if m.secrets == nil {
		return false, nil
	}

	token, err := m.secrets.Get(tokenKey)
	if errors.Is(err, credential.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("resuming session: %w", err)
	}
	if token == "" {
		return false, nil
	}

	if expired(token, m.now()) {
		m.log.Info().Msg("stored token expired, discarding")
		m.forget()
		return false, nil
	}

	var user model.User
	if raw, err := m.secrets.Get(userKey); err == nil {
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			m.log.Warn().Err(err).Msg("stored user is unreadable")
		}
	}

	m.begin(token, user, "resume")
	return true, nil
}

// Logout ends the session and forgets the stored token. Logging out while
// logged out does nothing.
func (m *Manager) Logout() {
	m.mu.Lock()
	if !m.state.LoggedIn {
		m.mu.Unlock()
		return
	}
	id := m.state.ID
	m.state = State{}
	m.mu.Unlock()

	m.auth.SetToken("")
	m.forget()
	m.log.Info().Str("session_id", id).Msg("logged out")
	m.notify(false)
}

func (m *Manager) begin(token string, user model.User, how string) {
	m.auth.SetToken(token)

	m.mu.Lock()
	wasLoggedIn := m.state.LoggedIn
	m.state = State{
		LoggedIn: true,
		User:     user,
		Token:    token,
		ID:       uuid.NewString(),
	}
	id := m.state.ID
	m.mu.Unlock()

	m.log.Info().
		Str("session_id", id).
		Str("user", user.Email).
		Str("via", how).
		Msg("session started")

	if !wasLoggedIn {
		m.notify(true)
	}
}

func (m *Manager) persist(token string, user model.User) {
	if m.secrets == nil {
		return
	}
	if err := m.secrets.Set(tokenKey, token); err != nil {
		m.log.Warn().Err(err).Msg("could not store access token")
		return
	}
	data, err := json.Marshal(user)
	if err != nil {
		return
	}
	if err := m.secrets.Set(userKey, string(data)); err != nil {
		m.log.Warn().Err(err).Msg("could not store user")
	}
}

func (m *Manager) forget() {
	if m.secrets == nil {
		return
	}
	for _, key := range []string{tokenKey, userKey} {
		if err := m.secrets.Delete(key); err != nil {
			m.log.Warn().Err(err).Str("key", key).Msg("could not delete credential")
		}
	}
}

func (m *Manager) notify(loggedIn bool) {
	m.mu.Lock()
	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(loggedIn)
	}
}

// expired reports whether token is a JWT whose exp lies before now. The
// signature is not checked; the backend does that. Tokens that are not
// JWTs, or carry no exp, are treated as valid.
func expired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
