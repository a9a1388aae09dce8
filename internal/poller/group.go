package poller

import (
	"context"
	"sync"

	"github.com/kiranshivaraju/newscast/pkg/models"
)

// Group owns the handles started for one view, so they can be refreshed and
// torn down together.
type Group struct {
	poller *Poller

	mu      sync.Mutex
	handles map[int64]*Handle
}

// NewGroup creates an empty group backed by p.
func (p *Poller) NewGroup() *Group {
	return &Group{poller: p, handles: make(map[int64]*Handle)}
}

// Start polls job unless the group already has a live handle for it.
func (g *Group) Start(ctx context.Context, job models.Job) *Handle {
	g.mu.Lock()
	defer g.mu.Unlock()

	if h, ok := g.handles[job.ID]; ok {
		select {
		case <-h.Done():
		default:
			return h
		}
	}
	h := g.poller.Start(ctx, job)
	g.handles[job.ID] = h
	return h
}

// StartAll starts polling every job that is not already terminal.
func (g *Group) StartAll(ctx context.Context, jobs []models.Job) []*Handle {
	out := make([]*Handle, 0, len(jobs))
	for _, job := range jobs {
		if job.Status == models.StatusFailed || (job.Status == models.StatusCompleted && job.HasAudio()) {
			continue
		}
		out = append(out, g.Start(ctx, job))
	}
	return out
}

// Handles returns the group's handles.
func (g *Group) Handles() []*Handle {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]*Handle, 0, len(g.handles))
	for _, h := range g.handles {
		out = append(out, h)
	}
	return out
}

// Handle returns the handle for a job id.
func (g *Group) Handle(jobID int64) (*Handle, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	h, ok := g.handles[jobID]
	return h, ok
}

// Retain stops and forgets every handle whose job id is not in keep.
func (g *Group) Retain(keep []int64) {
	want := make(map[int64]struct{}, len(keep))
	for _, id := range keep {
		want[id] = struct{}{}
	}

	g.mu.Lock()
	var dropped []*Handle
	for id, h := range g.handles {
		if _, ok := want[id]; !ok {
			dropped = append(dropped, h)
			delete(g.handles, id)
		}
	}
	g.mu.Unlock()

	for _, h := range dropped {
		h.Stop()
	}
}

// RefreshAll requests an immediate fetch on every live handle.
func (g *Group) RefreshAll() {
	for _, h := range g.Handles() {
		h.Refresh()
	}
}

// StopAll stops every handle and waits for them to exit.
func (g *Group) StopAll() {
	for _, h := range g.Handles() {
		h.Stop()
	}
}

// Wait blocks until every handle has finished or ctx is done.
func (g *Group) Wait(ctx context.Context) error {
	for _, h := range g.Handles() {
		select {
		case <-h.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
