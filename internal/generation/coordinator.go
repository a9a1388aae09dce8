// Package generation ties request composition, submission, job tracking, and
// status polling together behind one Coordinator.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kiranshivaraju/newscast/internal/compose"
	"github.com/kiranshivaraju/newscast/internal/podcastapi"
	"github.com/kiranshivaraju/newscast/internal/poller"
	"github.com/kiranshivaraju/newscast/internal/registry"
	"github.com/kiranshivaraju/newscast/pkg/models"
)

// Gate decides whether protected operations may run. *session.Guard
// satisfies it.
type Gate interface {
	Require() error
}

// Coordinator is safe for concurrent use. Pollers it starts run until their
// job is terminal or Close is called.
type Coordinator struct {
	api      podcastapi.Client
	gate     Gate
	composer compose.Composer
	registry *registry.Registry
	group    *poller.Group
	logger   *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Option configures a Coordinator.
type Option func(*config)

type config struct {
	registry    *registry.Registry
	logger      *slog.Logger
	pollOptions []poller.Option
}

// WithRegistry tracks jobs in r instead of a fresh registry.
func WithRegistry(r *registry.Registry) Option {
	return func(c *config) { c.registry = r }
}

// WithLogger sets the logger used by the coordinator and its pollers.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithPollerOptions passes options through to the status poller.
func WithPollerOptions(opts ...poller.Option) Option {
	return func(c *config) { c.pollOptions = append(c.pollOptions, opts...) }
}

// New creates a Coordinator that submits through api once gate allows it.
func New(api podcastapi.Client, gate Gate, opts ...Option) *Coordinator {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.registry == nil {
		cfg.registry = registry.New()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	pollOpts := append([]poller.Option{poller.WithLogger(cfg.logger)}, cfg.pollOptions...)
	p := poller.New(api, cfg.registry, pollOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		api:      api,
		gate:     gate,
		registry: cfg.registry,
		group:    p.NewGroup(),
		logger:   cfg.logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit composes a request from fields, sends it, tracks the resulting job,
// and starts polling it. Validation failures are *compose.ValidationError and
// never reach the network. API failures are *SubmissionError and leave the
// registry untouched.
func (c *Coordinator) Submit(ctx context.Context, mode compose.Mode, fields compose.Fields) (models.Job, *poller.Handle, error) {
	if err := c.gate.Require(); err != nil {
		return models.Job{}, nil, err
	}

	req, err := c.composer.Compose(mode, fields)
	if err != nil {
		return models.Job{}, nil, err
	}

	resp, err := c.api.Generate(ctx, req)
	if err != nil {
		c.logger.Warn("generation request failed", "mode", mode.String(), "error", err)
		return models.Job{}, nil, &SubmissionError{Err: err}
	}

	job := c.registry.Upsert(registry.SummaryFromResponse(resp))
	c.logger.Info("generation accepted",
		"job_id", job.ID,
		"status", job.Status,
		"cached", job.IsCachedOnStart,
	)

	c.dropEvicted()
	h := c.group.Start(c.ctx, job)
	return job, h, nil
}

// Track starts following a job submitted elsewhere, e.g. in an earlier run.
func (c *Coordinator) Track(ctx context.Context, id int64) (models.Job, *poller.Handle, error) {
	if err := c.gate.Require(); err != nil {
		return models.Job{}, nil, err
	}

	snap, err := c.api.Status(ctx, id)
	if err != nil {
		return models.Job{}, nil, fmt.Errorf("fetching job %d: %w", id, err)
	}

	c.registry.Upsert(registry.Summary{ID: id, Status: snap.Status})
	job, err := c.registry.ApplyStatusSnapshot(id, snap)
	if err != nil {
		return models.Job{}, nil, err
	}

	c.dropEvicted()
	h := c.group.Start(c.ctx, job)
	return job, h, nil
}

// dropEvicted stops polling jobs that fell out of the registry.
func (c *Coordinator) dropEvicted() {
	jobs := c.registry.List()
	ids := make([]int64, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	c.group.Retain(ids)
}

// Rename names an episode on the server and updates the tracked job that
// produced it, if any.
func (c *Coordinator) Rename(ctx context.Context, episodeID int64, name string) (models.EpisodeDetail, error) {
	if err := c.gate.Require(); err != nil {
		return models.EpisodeDetail{}, &RenameError{EpisodeID: episodeID, Err: err}
	}

	detail, err := c.api.RenameEpisode(ctx, episodeID, name)
	if err != nil {
		return models.EpisodeDetail{}, &RenameError{EpisodeID: episodeID, Err: err}
	}

	saved := name
	if detail.UserGivenName != nil {
		saved = *detail.UserGivenName
	}
	if _, err := c.registry.Rename(episodeID, saved); err != nil && !errors.Is(err, registry.ErrNotFound) {
		return detail, err
	}
	return detail, nil
}

// Resume restarts polling for every tracked job that is not yet terminal,
// e.g. after logging back in.
func (c *Coordinator) Resume() []*poller.Handle {
	return c.group.StartAll(c.ctx, c.registry.List())
}

// Refresh polls one job immediately.
func (c *Coordinator) Refresh(jobID int64) bool {
	h, ok := c.group.Handle(jobID)
	if ok {
		h.Refresh()
	}
	return ok
}

// RefreshAll polls every live job immediately.
func (c *Coordinator) RefreshAll() {
	c.group.RefreshAll()
}

// Jobs returns the tracked jobs, newest first.
func (c *Coordinator) Jobs() []models.Job {
	return c.registry.List()
}

// Handle returns the poll handle of a job.
func (c *Coordinator) Handle(jobID int64) (*poller.Handle, bool) {
	return c.group.Handle(jobID)
}

// Wait blocks until every poller has finished or ctx is done.
func (c *Coordinator) Wait(ctx context.Context) error {
	return c.group.Wait(ctx)
}

// Close stops all pollers.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.group.StopAll()
	})
}
