// Package session holds the staff login state on the client side.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"barberia-backend/internal/client"
	"barberia-backend/internal/models"
)

const (
	MaxAttempts   = 3
	LockoutWindow = 15 * time.Minute
	DefaultTTL    = 24 * time.Hour

	keySession  = "session"
	keyAttempts = "login_attempts"

	logoutTimeout = 5 * time.Second
)

type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
	Expired
	LoggedOut
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Expired:
		return "expired"
	case LoggedOut:
		return "logged out"
	default:
		return "anonymous"
	}
}

var ErrNotAuthenticated = errors.New("not logged in")

// LockedOutError rejects a login without contacting the server.
type LockedOutError struct {
	Until time.Time
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("too many failed logins, try again after %s", e.Until.Format("15:04"))
}

// LoginFailedError is a credential rejection. Remaining is how many attempts
// are left before the lockout starts.
type LoginFailedError struct {
	Remaining int
	Err       error
}

func (e *LoginFailedError) Error() string {
	return fmt.Sprintf("invalid username or password (%d attempts left)", e.Remaining)
}

func (e *LoginFailedError) Unwrap() error {
	return e.Err
}

type Session struct {
	Token       string    `json:"token"`
	Username    string    `json:"usuario"`
	Name        string    `json:"nombre"`
	Role        string    `json:"rol"`
	Permissions []string  `json:"permisos"`
	Specialist  string    `json:"barberoAsignado,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (s Session) Has(permission string) bool {
	return models.HasPermission(s.Permissions, permission)
}

type attempts struct {
	Count int       `json:"count"`
	Last  time.Time `json:"lastAttempt"`
}

// Authenticator is the remote half of the login flow.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (client.LoginResult, error)
	Logout(ctx context.Context, token string) error
}

type Manager struct {
	auth  Authenticator
	store Store
	log   *slog.Logger
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	state   State
	pending sync.WaitGroup
}

func NewManager(auth Authenticator, store Store, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{auth: auth, store: store, log: log, ttl: DefaultTTL, now: time.Now}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Login checks the lockout, asks the server and persists the session.
// Only credential rejections count towards the lockout.
func (m *Manager) Login(ctx context.Context, username, password string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	tries := m.loadAttempts()
	if tries.Count > 0 && !now.Before(tries.Last.Add(LockoutWindow)) {
		tries = attempts{}
	}
	if tries.Count >= MaxAttempts {
		return Session{}, &LockedOutError{Until: tries.Last.Add(LockoutWindow)}
	}

	m.state = Authenticating
	res, err := m.auth.Login(ctx, username, password)
	if err != nil {
		m.state = Anonymous
		if !errors.Is(err, client.ErrInvalidCredentials) {
			return Session{}, err
		}
		tries.Count++
		tries.Last = now
		m.saveAttempts(tries)
		m.log.Warn("session login: rejected", slog.String("username", username), slog.Int("attempt", tries.Count))
		return Session{}, &LoginFailedError{Remaining: MaxAttempts - tries.Count, Err: err}
	}

	expires := now.Add(m.ttl)
	if !res.ExpiresAt.IsZero() && res.ExpiresAt.Before(expires) {
		expires = res.ExpiresAt
	}
	s := Session{
		Token:       res.Token,
		Username:    res.User.Username,
		Name:        res.User.Name,
		Role:        res.User.Role,
		Permissions: res.User.Permissions,
		Specialist:  res.User.Specialist,
		ExpiresAt:   expires,
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return Session{}, err
	}
	if err := m.store.Save(keySession, raw); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	if err := m.store.Delete(keyAttempts); err != nil {
		m.log.Warn("session login: clear attempts failed", slog.String("error", err.Error()))
	}
	m.state = Authenticated
	m.log.Info("session login: ok", slog.String("username", s.Username), slog.Time("expires_at", s.ExpiresAt))
	return s, nil
}

// Current returns the stored session. An expired session is purged and
// reported as missing.
func (m *Manager) Current() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current()
}

func (m *Manager) current() (Session, bool) {
	raw, err := m.store.Load(keySession)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.log.Warn("session: load failed", slog.String("error", err.Error()))
		}
		return Session{}, false
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil || s.Token == "" {
		m.log.Warn("session: discarding unreadable session")
		_ = m.store.Delete(keySession)
		return Session{}, false
	}
	if !m.now().Before(s.ExpiresAt) {
		_ = m.store.Delete(keySession)
		m.state = Expired
		m.log.Info("session: expired", slog.String("username", s.Username))
		return Session{}, false
	}
	m.state = Authenticated
	return s, true
}

func (m *Manager) IsAuthenticated() bool {
	_, ok := m.Current()
	return ok
}

func (m *Manager) Token() (string, error) {
	s, ok := m.Current()
	if !ok {
		return "", ErrNotAuthenticated
	}
	return s.Token, nil
}

// Logout clears local state right away and tells the server in the
// background. Remote failures are only logged.
func (m *Manager) Logout() {
	m.mu.Lock()
	s, ok := m.current()
	if err := m.store.Delete(keySession); err != nil {
		m.log.Warn("session logout: clear failed", slog.String("error", err.Error()))
	}
	m.state = LoggedOut
	m.mu.Unlock()

	if !ok {
		return
	}
	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), logoutTimeout)
		defer cancel()
		if err := m.auth.Logout(ctx, s.Token); err != nil {
			m.log.Warn("session logout: remote failed", slog.String("error", err.Error()))
		}
	}()
}

// Wait blocks until background logouts have finished.
func (m *Manager) Wait() {
	m.pending.Wait()
}

// Invalidate drops the local session after the server rejected its token.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.store.Delete(keySession)
	m.state = Expired
}

func (m *Manager) loadAttempts() attempts {
	var a attempts
	raw, err := m.store.Load(keyAttempts)
	if err != nil {
		return a
	}
	if err := json.Unmarshal(raw, &a); err != nil {
		return attempts{}
	}
	return a
}

func (m *Manager) saveAttempts(a attempts) {
	raw, err := json.Marshal(a)
	if err != nil {
		return
	}
	if err := m.store.Save(keyAttempts, raw); err != nil {
		m.log.Warn("session: save attempts failed", slog.String("error", err.Error()))
	}
}
