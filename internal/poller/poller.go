// Package poller tracks generation jobs until the server reports them finished.
//
// Each job gets its own goroutine that fetches status immediately, then once
// per interval, until the job completes with audio, fails, or is stopped.
// Fetches for one job never overlap.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/newscast/internal/podcastapi"
	"github.com/kiranshivaraju/newscast/internal/registry"
	"github.com/kiranshivaraju/newscast/pkg/models"
)

// DefaultInterval is the delay between status fetches.
const DefaultInterval = 5 * time.Second

// State is the polling state of one job.
type State int

const (
	Polling State = iota
	Completed
	Failed
	Stopped
)

func (s State) String() string {
	switch s {
	case Polling:
		return "polling"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further fetches will happen.
func (s State) Terminal() bool {
	return s != Polling
}

// Next is the transition applied after every successful fetch.
func Next(snap models.StatusSnapshot) State {
	switch {
	case snap.Status == models.StatusFailed:
		return Failed
	case snap.Status == models.StatusCompleted && snap.HasAudio():
		return Completed
	default:
		return Polling
	}
}

// Fetcher retrieves the current status of a job.
type Fetcher interface {
	Status(ctx context.Context, id int64) (models.StatusSnapshot, error)
}

// Store receives fetched snapshots. *registry.Registry satisfies it.
// Polling stops once the store reports registry.ErrNotFound for the job.
type Store interface {
	ApplyStatusSnapshot(id int64, snap models.StatusSnapshot) (models.Job, error)
}

// NamingPrompter is asked to name a freshly generated episode.
type NamingPrompter interface {
	PromptName(job models.Job)
}

// NamingPrompterFunc adapts a function to NamingPrompter.
type NamingPrompterFunc func(job models.Job)

func (f NamingPrompterFunc) PromptName(job models.Job) { f(job) }

// PollError wraps a failed status fetch. Polling continues after it.
type PollError struct {
	JobID int64
	Err   error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("polling job %d: %v", e.JobID, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// Event is emitted after every fetch and on every state change.
type Event struct {
	HandleID string
	JobID    int64
	State    State
	View     JobView
	Err      error
}

// Poller starts and owns per-job polling goroutines.
type Poller struct {
	fetcher  Fetcher
	store    Store
	interval time.Duration
	logger   *slog.Logger
	prompter NamingPrompter
	listener func(Event)
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the delay between fetches. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithNamingPrompter sets the collaborator asked to name fresh episodes.
func WithNamingPrompter(np NamingPrompter) Option {
	return func(p *Poller) {
		p.prompter = np
	}
}

// WithListener registers fn for every Event. fn runs on the job's goroutine
// and must not call Stop on that job's handle.
func WithListener(fn func(Event)) Option {
	return func(p *Poller) {
		p.listener = fn
	}
}

// New creates a Poller.
func New(fetcher Fetcher, store Store, opts ...Option) *Poller {
	p := &Poller{
		fetcher:  fetcher,
		store:    store,
		interval: DefaultInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins polling job and returns its handle. The caller must call Stop
// (or cancel ctx) when the job's owner goes away.
func (p *Poller) Start(ctx context.Context, job models.Job) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		id:            uuid.NewString(),
		jobID:         job.ID,
		cachedOnStart: job.IsCachedOnStart,
		state:         Polling,
		view:          initialView(job),
		refresh:       make(chan struct{}, 1),
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	go p.run(ctx, h)
	return h
}

func (p *Poller) run(ctx context.Context, h *Handle) {
	defer close(h.done)
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic in poller", "error", r, "job_id", h.jobID)
			h.finish(Stopped)
		}
	}()

	log := p.logger.With("job_id", h.jobID, "handle", h.id)
	log.Debug("polling started")

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		if state := p.poll(ctx, h, log); state.Terminal() {
			log.Debug("polling finished", "state", state)
			return
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(p.interval)

		select {
		case <-ctx.Done():
			h.finish(Stopped)
			p.emit(h, nil)
			return
		case <-timer.C:
		case <-h.refresh:
			log.Debug("refresh requested")
		}
	}
}

// poll performs one fetch and returns the resulting state.
func (p *Poller) poll(ctx context.Context, h *Handle, log *slog.Logger) State {
	snap, err := p.fetcher.Status(ctx, h.jobID)
	if ctx.Err() != nil {
		h.finish(Stopped)
		p.emit(h, nil)
		return Stopped
	}

	if err != nil {
		if errors.Is(err, podcastapi.ErrUnauthorized) {
			log.Info("polling abandoned, session no longer valid")
			h.setError(err)
			h.finish(Stopped)
			p.emit(h, err)
			return Stopped
		}
		perr := &PollError{JobID: h.jobID, Err: err}
		log.Warn("status fetch failed", "error", err)
		h.setError(perr)
		p.emit(h, perr)
		return Polling
	}

	job, err := p.store.ApplyStatusSnapshot(h.jobID, snap)
	if errors.Is(err, registry.ErrNotFound) {
		log.Debug("job no longer tracked, polling stopped")
		h.finish(Stopped)
		p.emit(h, nil)
		return Stopped
	}
	if err != nil {
		log.Warn("applying status snapshot", "error", err)
		job = jobFromSnapshot(h.jobID, snap)
	}

	state := Next(snap)
	h.observe(Confirmed{Snapshot: snap}, state)

	if state == Completed && shouldPromptName(job, snap, h.cachedOnStart) && h.claimPrompt() {
		if p.prompter != nil {
			p.prompter.PromptName(job)
		}
	}

	p.emit(h, nil)
	return state
}

// shouldPromptName narrows the naming prompt to fresh, successful, unnamed
// generations.
func shouldPromptName(job models.Job, snap models.StatusSnapshot, cachedOnStart bool) bool {
	if cachedOnStart || job.IsCachedOnStart {
		return false
	}
	if !snap.HasAudio() {
		return false
	}
	if job.IsNamed() || (snap.UserGivenName != nil && *snap.UserGivenName != "") {
		return false
	}
	if job.HasError() || (snap.ErrorMessage != nil && *snap.ErrorMessage != "") {
		return false
	}
	return true
}

func jobFromSnapshot(id int64, snap models.StatusSnapshot) models.Job {
	return models.Job{
		ID:            id,
		Status:        snap.Status,
		EpisodeID:     snap.PodcastEpisodeID,
		UserGivenName: snap.UserGivenName,
		ScriptPreview: snap.ScriptPreview,
		AudioURL:      snap.AudioURL,
		ErrorMessage:  snap.ErrorMessage,
		CreatedAt:     snap.CreatedAt,
		UpdatedAt:     snap.UpdatedAt,
	}
}

func (p *Poller) emit(h *Handle, err error) {
	if p.listener == nil {
		return
	}
	p.listener(Event{
		HandleID: h.id,
		JobID:    h.jobID,
		State:    h.State(),
		View:     h.View(),
		Err:      err,
	})
}

// Handle controls the polling of one job.
type Handle struct {
	id            string
	jobID         int64
	cachedOnStart bool

	mu       sync.Mutex
	state    State
	view     JobView
	lastErr  error
	prompted bool

	refresh chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

// ID identifies this handle. A job restarted after Stop gets a new id.
func (h *Handle) ID() string { return h.id }

// JobID returns the id of the polled job.
func (h *Handle) JobID() int64 { return h.jobID }

// State returns the current polling state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// View returns the latest view, or nil before the first fetch of a job that
// has no provisional view.
func (h *Handle) View() JobView {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.view
}

// LastError returns the error of the most recent fetch, or nil if it succeeded.
func (h *Handle) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// Refresh requests an extra fetch now. Requests made while one is pending are
// coalesced. It is a no-op once polling has finished.
func (h *Handle) Refresh() {
	select {
	case h.refresh <- struct{}{}:
	default:
	}
}

// Stop cancels polling and waits for the goroutine to exit. Safe to call more
// than once. Must not be called from a listener or NamingPrompter.
func (h *Handle) Stop() {
	h.cancel()
	<-h.done
}

// Done is closed when the polling goroutine has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) observe(v JobView, s State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.view = v
	h.lastErr = nil
	if !h.state.Terminal() {
		h.state = s
	}
}

func (h *Handle) setError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastErr = err
}

// finish moves a polling handle to s. Terminal states are never left.
func (h *Handle) finish(s State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.state.Terminal() {
		h.state = s
	}
}

func (h *Handle) claimPrompt() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.prompted {
		return false
	}
	h.prompted = true
	return true
}
