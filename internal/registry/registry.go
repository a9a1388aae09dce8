// Package registry keeps the bounded, newest-first list of generation jobs the
// client is tracking.
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/kiranshivaraju/newscast/pkg/models"
)

// DefaultCapacity is the number of jobs kept before the oldest is evicted.
const DefaultCapacity = 6

// ErrNotFound is returned when no tracked job matches. It usually means the
// job was evicted while a request for it was in flight.
var ErrNotFound = errors.New("job not found")

// Summary is what a caller knows about a job when it upserts it, typically
// built from a submission response. Nil pointers and empty strings mean "not
// supplied" and leave the stored value alone.
type Summary struct {
	ID              int64
	Status          models.DigestStatus
	IsCachedOnStart bool
	InitialMessage  string
	EpisodeID       *int64
	UserGivenName   *string
	AudioURL        *string
	ScriptPreview   *string
	ErrorMessage    *string
}

// SummaryFromResponse builds the Summary for a freshly accepted submission.
func SummaryFromResponse(resp models.GenerationResponse) Summary {
	return Summary{
		ID:              resp.NewsDigestID,
		Status:          models.ParseDigestStatus(resp.InitialStatus),
		IsCachedOnStart: resp.IsCacheHit(),
		InitialMessage:  resp.Message,
		EpisodeID:       resp.PodcastEpisodeID,
	}
}

// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	jobs     []models.Job
	capacity int
	now      func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithCapacity overrides DefaultCapacity. Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// WithClock sets the time source used for CreatedAt/UpdatedAt on upsert.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		capacity: DefaultCapacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Upsert merges s into the job with the same id and moves it to the front, or
// inserts a new job at the front and evicts from the tail beyond capacity.
func (r *Registry) Upsert(s Summary) models.Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := models.NewTimestamp(r.now())

	job := models.Job{ID: s.ID, CreatedAt: now}
	if i := r.indexOf(s.ID); i >= 0 {
		job = r.jobs[i]
		r.jobs = append(r.jobs[:i], r.jobs[i+1:]...)
	}

	job.Status = s.Status
	job.IsCachedOnStart = s.IsCachedOnStart
	if s.InitialMessage != "" {
		job.InitialMessage = s.InitialMessage
	}
	mergeInt64(&job.EpisodeID, s.EpisodeID)
	mergeString(&job.UserGivenName, s.UserGivenName)
	mergeString(&job.AudioURL, s.AudioURL)
	mergeString(&job.ScriptPreview, s.ScriptPreview)
	mergeString(&job.ErrorMessage, s.ErrorMessage)
	job.UpdatedAt = now

	r.jobs = append([]models.Job{job}, r.jobs...)
	if len(r.jobs) > r.capacity {
		r.jobs = r.jobs[:r.capacity]
	}
	return job
}

// ApplyStatusSnapshot merges a fetched status into the matching job without
// changing its position. Returns ErrNotFound if the job is no longer tracked.
func (r *Registry) ApplyStatusSnapshot(id int64, snap models.StatusSnapshot) (models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return models.Job{}, ErrNotFound
	}

	job := &r.jobs[i]
	if snap.Status != "" {
		job.Status = snap.Status
	}
	mergeString(&job.AudioURL, snap.AudioURL)
	mergeString(&job.ScriptPreview, snap.ScriptPreview)
	mergeString(&job.ErrorMessage, snap.ErrorMessage)
	mergeInt64(&job.EpisodeID, snap.PodcastEpisodeID)
	mergeString(&job.UserGivenName, snap.UserGivenName)
	if !snap.CreatedAt.IsZero() {
		job.CreatedAt = snap.CreatedAt
	}
	if !snap.UpdatedAt.IsZero() {
		job.UpdatedAt = snap.UpdatedAt
	}
	return *job, nil
}

// Rename sets the user-given name on the job whose episode id matches.
func (r *Registry) Rename(episodeID int64, name string) (models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.jobs {
		if r.jobs[i].EpisodeID != nil && *r.jobs[i].EpisodeID == episodeID {
			n := name
			r.jobs[i].UserGivenName = &n
			return r.jobs[i], nil
		}
	}
	return models.Job{}, ErrNotFound
}

// Get returns the job with the given id.
func (r *Registry) Get(id int64) (models.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.indexOf(id); i >= 0 {
		return r.jobs[i], true
	}
	return models.Job{}, false
}

// List returns a copy of all jobs, newest first.
func (r *Registry) List() []models.Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Job, len(r.jobs))
	copy(out, r.jobs)
	return out
}

// Len returns the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// indexOf must be called with mu held.
func (r *Registry) indexOf(id int64) int {
	for i := range r.jobs {
		if r.jobs[i].ID == id {
			return i
		}
	}
	return -1
}

func mergeString(dst **string, src *string) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func mergeInt64(dst **int64, src *int64) {
	if src != nil {
		v := *src
		*dst = &v
	}
}
