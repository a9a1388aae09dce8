package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/kiranshivaraju/newscast/internal/cache"
	"github.com/kiranshivaraju/newscast/internal/config"
	"github.com/kiranshivaraju/newscast/internal/generation"
	"github.com/kiranshivaraju/newscast/internal/podcastapi"
	"github.com/kiranshivaraju/newscast/internal/poller"
	"github.com/kiranshivaraju/newscast/internal/session"
)

// app holds the wired client for one invocation.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	client *podcastapi.HTTPClient
	guard  *session.Guard

	out    *syncWriter
	errOut *syncWriter

	closers []func() error
}

// syncWriter serializes writes from poller goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *syncWriter) printf(format string, args ...any) {
	fmt.Fprintf(s, format, args...)
}

func newApp(cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logger,
		out:    &syncWriter{w: stdout},
		errOut: &syncWriter{w: stderr},
	}

	store, err := a.tokenStore()
	if err != nil {
		return nil, err
	}

	tr := &podcastapi.Transport{Limiter: podcastapi.NewLimiter(cfg.API.RateLimit, cfg.API.RateBurst)}
	a.client = podcastapi.NewHTTPClient(cfg.API.BaseURL,
		podcastapi.WithTransport(tr),
		podcastapi.WithTimeout(cfg.API.Timeout),
	)
	a.guard = session.New(a.client, store,
		session.WithLogger(logger),
		session.WithNoticeDuration(cfg.Session.NoticeDuration),
	)
	tr.Tokens = a.guard
	tr.OnAuthFailure = a.guard.HandleAuthFailure

	unsubscribe := a.guard.Subscribe(func(s session.Snapshot) {
		if s.State == session.SessionExpired && s.Error != "" {
			a.errOut.printf("%s\n", s.Error)
		}
	})
	a.closers = append(a.closers, func() error { unsubscribe(); return nil })

	return a, nil
}

func (a *app) tokenStore() (session.TokenStore, error) {
	switch a.cfg.Session.TokenStore {
	case config.TokenStoreRedis:
		rc, err := cache.NewRedisCache(a.cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("create redis cache: %w", err)
		}
		a.closers = append(a.closers, rc.Close)
		return session.NewCacheStore(rc, ""), nil
	case config.TokenStoreMemory:
		return &session.MemoryStore{}, nil
	default:
		return session.NewFileStore(a.cfg.Session.TokenFile), nil
	}
}

// authenticate restores the persisted session and fails unless it is valid.
func (a *app) authenticate(ctx context.Context) error {
	if err := a.guard.Start(ctx); err != nil {
		a.logger.Debug("restoring session", "error", err)
	}
	if err := a.guard.Require(); err != nil {
		return fmt.Errorf("%w: run `newscast login` first", err)
	}
	return nil
}

func (a *app) coordinator(opts ...poller.Option) *generation.Coordinator {
	pollOpts := append([]poller.Option{poller.WithInterval(a.cfg.Poll.Interval)}, opts...)
	return generation.New(a.client, a.guard,
		generation.WithLogger(a.logger),
		generation.WithPollerOptions(pollOpts...),
	)
}

func (a *app) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("closing resources", "error", err)
	}
}
