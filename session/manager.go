// Package session owns the authenticated identity of the client: it acquires
// tokens through login and register, restores a persisted token on startup and
// invalidates it on logout. It is the only writer of the token store.
package session

import (
	"context"
	"errors"
	"flavorai-client/core"
	"flavorai-client/gateway"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"
)

// State is the lifecycle position of a Manager.
type State int

const (
	// Anonymous means no identity is held.
	Anonymous State = iota
	// Restoring means a persisted token is being checked against the API.
	Restoring
	// Authenticated means a user and its token are held.
	Authenticated
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Restoring:
		return "restoring"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// ErrClosed is returned by operations on a closed Manager.
var ErrClosed = errors.New("session: manager closed")

// Identity exposes the acting user's id to components that gate on ownership.
type Identity interface {
	// UserID returns the current user's id; ok is false unless authenticated.
	UserID() (id string, ok bool)
}

// Listener is notified after every state change.
type Listener func(state State, user *core.User)

// Manager holds at most one identity at a time.
type Manager struct {
	gw    *gateway.Gateway
	store core.TokenStore

	mu        sync.Mutex
	state     State
	user      *core.User
	token     string
	gen       uint64
	restoring bool
	closed    bool
	listeners []Listener

	ready     chan struct{}
	readyOnce sync.Once
}

// NewManager inspects the store and starts in Restoring when a token is
// persisted, or in Anonymous otherwise. Call Restore to resolve Restoring.
func NewManager(ctx context.Context, gw *gateway.Gateway, store core.TokenStore) *Manager {
	m := &Manager{
		gw:    gw,
		store: store,
		ready: make(chan struct{}),
	}

	token, ok, err := store.Get(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Failed to read persisted token; starting anonymous")
	}
	if err == nil && ok {
		m.state = Restoring
		m.token = token
	} else {
		m.state = Anonymous
		m.markReady()
	}
	return m
}

// Restore validates the persisted token with GET /auth/me. It runs at most
// once; failures clear the token and leave the manager anonymous without
// returning an error, since an expired session at startup is expected.
func (m *Manager) Restore(ctx context.Context) {
	m.mu.Lock()
	if m.closed || m.state != Restoring || m.restoring {
		m.mu.Unlock()
		return
	}
	m.restoring = true
	gen := m.gen
	m.mu.Unlock()

	user, err := gateway.Fetch[core.User](ctx, m.gw, "/auth/me", gateway.Options{})
	if err == nil && user.ID == "" {
		err = core.NewAPI(0, "Session check returned no user")
	}

	m.mu.Lock()
	if m.gen != gen || m.closed {
		// Login, logout or Close happened while the check was in flight.
		m.mu.Unlock()
		logrus.Debug("Discarding superseded session restore result")
		return
	}

	log := logrus.WithField("op", "restore")
	if err != nil {
		if clearErr := m.store.Clear(ctx); clearErr != nil {
			log.WithError(clearErr).Warn("Failed to clear rejected token")
		}
		m.setLocked(Anonymous, nil, "")
		log.WithField("reason", core.Message(err, "")).Debug("Persisted session rejected")
	} else {
		m.setLocked(Authenticated, &user, m.token)
		log.WithField("user_id", user.ID).Info("Session restored")
	}
	m.markReady()
	m.notifyUnlock()
}

// Login exchanges credentials for a token. On success the token is persisted
// and the identity replaced; on failure the session is left unchanged.
func (m *Manager) Login(ctx context.Context, email, password string) (*core.User, error) {
	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{email, password}
	return m.authenticate(ctx, "/auth/login", body)
}

// Register creates an account and signs in with it. name is optional.
func (m *Manager) Register(ctx context.Context, email, password, name string) (*core.User, error) {
	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name,omitempty"`
	}{email, password, name}
	return m.authenticate(ctx, "/auth/register", body)
}

func (m *Manager) authenticate(ctx context.Context, path string, body any) (*core.User, error) {
	if m.isClosed() {
		return nil, ErrClosed
	}

	res, err := gateway.Fetch[core.AuthResponse](ctx, m.gw, path, gateway.Options{
		Method: http.MethodPost,
		JSON:   body,
	})
	if err != nil {
		return nil, err
	}
	if res.AccessToken == "" {
		return nil, core.NewAPI(0, "The server did not return an access token")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	// Persist first: if the write fails nothing in memory has changed.
	if err := m.store.Set(ctx, res.AccessToken); err != nil {
		m.mu.Unlock()
		logrus.WithError(err).Error("Failed to persist access token")
		return nil, err
	}
	user := res.User
	m.setLocked(Authenticated, &user, res.AccessToken)
	m.markReady()
	m.notifyUnlock()

	logrus.WithFields(logrus.Fields{"path": path, "user_id": user.ID}).Info("Signed in")
	out := user
	return &out, nil
}

// Logout forgets the identity and clears the persisted token. It never
// touches the network. The in-memory session is reset even when clearing the
// store fails; that error is returned.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	err := m.store.Clear(ctx)
	m.setLocked(Anonymous, nil, "")
	m.markReady()
	m.notifyUnlock()

	if err != nil {
		logrus.WithError(err).Error("Failed to clear persisted token")
		return err
	}
	logrus.Info("Signed out")
	return nil
}

// Ready is closed once the startup state is resolved.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Await blocks until the startup state is resolved or ctx is done.
func (m *Manager) Await(ctx context.Context) error {
	select {
	case <-m.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns a copy of the session, or nil unless authenticated.
func (m *Manager) Current() *core.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Authenticated || m.user == nil {
		return nil
	}
	return &core.Session{Token: m.token, User: *m.user}
}

// User returns a copy of the current user, or nil.
func (m *Manager) User() *core.User {
	if s := m.Current(); s != nil {
		return &s.User
	}
	return nil
}

// UserID implements Identity.
func (m *Manager) UserID() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Authenticated || m.user == nil || m.user.ID == "" {
		return "", false
	}
	return m.user.ID, true
}

// OnChange registers fn to be called after every state change.
func (m *Manager) OnChange(fn Listener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Close ends the manager's lifetime. The persisted token is kept so the next
// process can restore it. Pending Await calls return.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.gen++
	m.listeners = nil
	m.mu.Unlock()
	m.markReady()
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// setLocked replaces the identity wholesale. Callers hold m.mu.
func (m *Manager) setLocked(state State, user *core.User, token string) {
	m.state = state
	m.user = user
	m.token = token
	m.gen++
}

// notifyUnlock releases m.mu and then calls listeners with the new state.
func (m *Manager) notifyUnlock() {
	state := m.state
	var user *core.User
	if m.user != nil {
		u := *m.user
		user = &u
	}
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(state, user)
	}
}

func (m *Manager) markReady() {
	m.readyOnce.Do(func() { close(m.ready) })
}
