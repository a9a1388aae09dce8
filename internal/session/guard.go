// Package session tracks the authentication state of the CLI and reacts to
// authentication failures reported by the API transport.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kiranshivaraju/newscast/internal/podcastapi"
	"github.com/kiranshivaraju/newscast/pkg/models"
)

// User-facing messages.
const (
	SessionExpiredMessage = "Your session has expired. Please log in again."
	RefreshFailedMessage  = "Could not refresh session. Please log in again."
	LoginFailedMessage    = "Login failed. Please check your credentials."
	RegisterFailedMessage = "Registration failed. Please try again."
)

// DefaultNoticeDuration is how long an expiry notice stays visible.
const DefaultNoticeDuration = 5 * time.Second

// ErrLoginRequired is returned by Require when the session is not authenticated.
var ErrLoginRequired = errors.New("login required")

// State is the authentication state of a session.
type State int

const (
	LoggedOut State = iota
	Authenticating
	Authenticated
	SessionExpired
)

func (s State) String() string {
	switch s {
	case LoggedOut:
		return "logged_out"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case SessionExpired:
		return "session_expired"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// AuthAPI is the subset of the API the guard calls.
type AuthAPI interface {
	Login(ctx context.Context, creds models.Credentials) (models.Token, error)
	CurrentUser(ctx context.Context) (models.User, error)
	Register(ctx context.Context, reg models.Registration) (models.User, error)
}

// Snapshot is a read-only copy of the session.
type Snapshot struct {
	State           State
	HasToken        bool
	User            *models.User
	IsAuthenticated bool
	IsLoading       bool
	Error           string
	NoticeUntil     time.Time
}

// NoticeVisible reports whether the error notice should still be shown at now.
func (s Snapshot) NoticeVisible(now time.Time) bool {
	return s.Error != "" && now.Before(s.NoticeUntil)
}

// Guard is the session state container. Every transition goes through one of
// its methods. Safe for concurrent use.
type Guard struct {
	api            AuthAPI
	store          TokenStore
	logger         *slog.Logger
	noticeDuration time.Duration
	now            func() time.Time

	mu          sync.Mutex
	state       State
	token       string
	user        *models.User
	loading     bool
	errMsg      string
	noticeUntil time.Time

	subs    map[int]func(Snapshot)
	nextSub int
}

// Option configures a Guard.
type Option func(*Guard)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithNoticeDuration sets how long error notices stay visible.
func WithNoticeDuration(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.noticeDuration = d
		}
	}
}

// WithClock sets the time source for notice expiry.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		g.now = now
	}
}

// New creates a logged-out Guard. Call Start to restore a persisted token.
func New(api AuthAPI, store TokenStore, opts ...Option) *Guard {
	if store == nil {
		store = &MemoryStore{}
	}
	g := &Guard{
		api:            api,
		store:          store,
		logger:         slog.Default(),
		noticeDuration: DefaultNoticeDuration,
		now:            time.Now,
		subs:           make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Start restores the persisted token and loads its user. Without a token the
// session is logged out immediately and nothing is fetched.
func (g *Guard) Start(ctx context.Context) error {
	token, err := g.store.Load(ctx)
	if err != nil {
		g.logger.Warn("loading persisted token", "error", err)
		token = ""
	}

	g.mu.Lock()
	g.token = token
	g.user = nil
	g.errMsg = ""
	if token == "" {
		g.state = LoggedOut
	}
	g.mu.Unlock()

	if token == "" {
		g.notify()
		return nil
	}
	return g.LoadUser(ctx)
}

// LoadUser fetches the profile for the current token. It is a no-op while a
// user is loaded or a load is in flight. A failed load expires the session.
func (g *Guard) LoadUser(ctx context.Context) error {
	g.mu.Lock()
	if g.user != nil || g.loading {
		g.mu.Unlock()
		return nil
	}
	if g.token == "" {
		g.clearLocked()
		g.state = LoggedOut
		g.mu.Unlock()
		g.notify()
		return nil
	}
	token := g.token
	g.loading = true
	g.state = Authenticating
	g.mu.Unlock()
	g.notify()

	user, err := g.api.CurrentUser(ctx)

	g.mu.Lock()
	if g.token != token {
		// Logged out or logged in again while the fetch was in flight. The
		// newer session owns the loading flag.
		g.mu.Unlock()
		g.notify()
		return nil
	}
	g.loading = false
	if err != nil {
		g.clearLocked()
		g.state = SessionExpired
		g.setErrorLocked(RefreshFailedMessage)
		g.mu.Unlock()

		g.logger.Info("session refresh failed", "error", err)
		g.clearStore(ctx)
		g.notify()
		return fmt.Errorf("loading user: %w", err)
	}
	g.user = &user
	g.state = Authenticated
	g.errMsg = ""
	g.mu.Unlock()

	g.notify()
	return nil
}

// Login exchanges credentials for a token, persists it, and loads the user.
// On failure the token is discarded and the error message is surfaced.
func (g *Guard) Login(ctx context.Context, creds models.Credentials) error {
	g.mu.Lock()
	g.clearLocked()
	g.state = Authenticating
	g.loading = true
	g.errMsg = ""
	g.mu.Unlock()
	g.notify()

	tok, err := g.api.Login(ctx, creds)
	if err != nil {
		g.failLogin(ctx, err)
		return fmt.Errorf("login: %w", err)
	}

	g.mu.Lock()
	g.token = tok.AccessToken
	g.mu.Unlock()

	if err := g.store.Save(ctx, tok.AccessToken); err != nil {
		g.logger.Warn("persisting token", "error", err)
	}

	user, err := g.api.CurrentUser(ctx)
	if err != nil {
		g.failLogin(ctx, err)
		return fmt.Errorf("login: fetching user: %w", err)
	}

	g.mu.Lock()
	g.user = &user
	g.state = Authenticated
	g.loading = false
	g.errMsg = ""
	g.mu.Unlock()

	g.logger.Info("logged in", "user_id", user.ID)
	g.notify()
	return nil
}

func (g *Guard) failLogin(ctx context.Context, err error) {
	msg := podcastapi.Detail(err)
	if msg == "" {
		msg = LoginFailedMessage
	}

	g.mu.Lock()
	g.clearLocked()
	g.state = LoggedOut
	g.setErrorLocked(msg)
	g.mu.Unlock()

	g.clearStore(ctx)
	g.notify()
}

// Register creates an account. It does not log in.
func (g *Guard) Register(ctx context.Context, reg models.Registration) (models.User, error) {
	user, err := g.api.Register(ctx, reg)
	if err != nil {
		msg := podcastapi.Detail(err)
		if msg == "" {
			msg = RegisterFailedMessage
		}
		g.mu.Lock()
		g.setErrorLocked(msg)
		g.mu.Unlock()
		g.notify()
		return models.User{}, fmt.Errorf("register: %w", err)
	}
	return user, nil
}

// Logout clears the token, user, and error.
func (g *Guard) Logout(ctx context.Context) error {
	g.mu.Lock()
	g.clearLocked()
	g.state = LoggedOut
	g.errMsg = ""
	g.noticeUntil = time.Time{}
	g.mu.Unlock()

	err := g.store.Clear(ctx)
	g.notify()
	return err
}

// HandleAuthFailure is called by the API transport when a request to path was
// rejected as unauthenticated. Failures on the login and register endpoints
// are ignored, as are failures while not authenticated.
func (g *Guard) HandleAuthFailure(path string) {
	if podcastapi.IsAuthPath(path) {
		return
	}

	g.mu.Lock()
	if g.state != Authenticated {
		g.mu.Unlock()
		return
	}
	g.clearLocked()
	g.state = SessionExpired
	g.setErrorLocked(SessionExpiredMessage)
	g.mu.Unlock()

	g.logger.Info("session expired", "path", path)
	g.clearStore(context.Background())
	g.notify()
}

// Require returns nil when the session may access protected operations.
// An expired session is treated the same as a logged-out one.
func (g *Guard) Require() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == Authenticated && g.token != "" && g.user != nil {
		return nil
	}
	return ErrLoginRequired
}

// Token returns the current bearer token, or "". It satisfies
// podcastapi.TokenSource.
func (g *Guard) Token() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.token
}

// ClearError dismisses the current error notice.
func (g *Guard) ClearError() {
	g.mu.Lock()
	g.errMsg = ""
	g.noticeUntil = time.Time{}
	g.mu.Unlock()
	g.notify()
}

// Snapshot returns the current session.
func (g *Guard) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

// Subscribe calls fn with a snapshot after every change. The returned func
// removes the subscription.
func (g *Guard) Subscribe(fn func(Snapshot)) (cancel func()) {
	g.mu.Lock()
	id := g.nextSub
	g.nextSub++
	g.subs[id] = fn
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		delete(g.subs, id)
		g.mu.Unlock()
	}
}

func (g *Guard) snapshotLocked() Snapshot {
	var user *models.User
	if g.user != nil {
		u := *g.user
		user = &u
	}
	return Snapshot{
		State:           g.state,
		HasToken:        g.token != "",
		User:            user,
		IsAuthenticated: g.state == Authenticated && g.token != "" && g.user != nil,
		IsLoading:       g.loading,
		Error:           g.errMsg,
		NoticeUntil:     g.noticeUntil,
	}
}

// clearLocked drops the token and user. Must be called with mu held.
func (g *Guard) clearLocked() {
	g.token = ""
	g.user = nil
	g.loading = false
}

func (g *Guard) setErrorLocked(msg string) {
	g.errMsg = msg
	g.noticeUntil = g.now().Add(g.noticeDuration)
}

func (g *Guard) clearStore(ctx context.Context) {
	if err := g.store.Clear(ctx); err != nil {
		g.logger.Warn("clearing persisted token", "error", err)
	}
}

func (g *Guard) notify() {
	g.mu.Lock()
	snap := g.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(g.subs))
	for _, fn := range g.subs {
		subs = append(subs, fn)
	}
	g.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

var _ podcastapi.TokenSource = (*Guard)(nil)
