package poller

import (
	"fmt"
	"strings"

	"github.com/kiranshivaraju/newscast/pkg/models"
)

// JobView is what a renderer knows about a job: either a Provisional view
// synthesized from the submission response, or a Confirmed status snapshot.
type JobView interface {
	jobView()
}

// Provisional stands in for a job before its first status fetch resolves.
// It must never be treated as final.
type Provisional struct {
	Job models.Job
}

// Confirmed holds a status snapshot fetched from the API.
type Confirmed struct {
	Snapshot models.StatusSnapshot
}

func (Provisional) jobView() {}
func (Confirmed) jobView()   {}

// initialView returns the view a job starts with. Only a cache hit that was
// already completed at submission gets an optimistic view.
func initialView(job models.Job) JobView {
	if job.IsCachedOnStart && job.Status == models.StatusCompleted {
		return Provisional{Job: job}
	}
	return nil
}

// Describe renders a one-line status for v.
func Describe(v JobView) string {
	switch v := v.(type) {
	case Provisional:
		return fmt.Sprintf("#%d %s (from cache, confirming...)", v.Job.ID, statusLabel(v.Job.Status))
	case Confirmed:
		s := v.Snapshot
		line := fmt.Sprintf("#%d %s", s.NewsDigestID, statusLabel(s.Status))
		if s.UserGivenName != nil && *s.UserGivenName != "" {
			line = fmt.Sprintf("%s %q", line, *s.UserGivenName)
		}
		switch {
		case s.Status == models.StatusFailed && s.ErrorMessage != nil:
			line += ": " + *s.ErrorMessage
		case s.Status == models.StatusCompleted && !s.HasAudio():
			line += " (audio pending)"
		case s.HasAudio():
			line += ": " + *s.AudioURL
		}
		return line
	default:
		return "waiting for first status"
	}
}

func statusLabel(s models.DigestStatus) string {
	if s == "" {
		return "unknown"
	}
	return strings.ReplaceAll(strings.ToLower(string(s)), "_", " ")
}
