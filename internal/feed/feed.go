// Package feed exports a user's podcast history as an RSS feed.
package feed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/eduncan911/podcast"
	"github.com/kiranshivaraju/newscast/pkg/models"
)

const defaultDescription = "News digests generated on demand."

// Lister pages through a user's podcast history. podcastapi.Client
// satisfies it.
type Lister interface {
	ListPodcasts(ctx context.Context, page, limit int) (models.PodcastPage, error)
}

// Options describes the channel.
type Options struct {
	Title       string
	Link        string
	Description string
	Language    string
	// ResolveURL turns a server-relative audio path into an absolute URL.
	ResolveURL func(ref string) string
	Now        func() time.Time
}

// Collect fetches every page of history, newest first.
func Collect(ctx context.Context, l Lister, limit int) ([]models.PodcastListItem, error) {
	var items []models.PodcastListItem
	for page := 1; ; page++ {
		p, err := l.ListPodcasts(ctx, page, limit)
		if err != nil {
			return nil, fmt.Errorf("listing podcasts page %d: %w", page, err)
		}
		items = append(items, p.Podcasts...)
		if len(p.Podcasts) == 0 || page >= p.TotalPages() {
			return items, nil
		}
	}
}

// Build creates a channel with one item per episode that has audio and has
// not expired.
func Build(items []models.PodcastListItem, opts Options) (*podcast.Podcast, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	resolve := opts.ResolveURL
	if resolve == nil {
		resolve = func(ref string) string { return ref }
	}
	desc := opts.Description
	if desc == "" {
		desc = defaultDescription
	}

	built := now()
	p := podcast.New(opts.Title, opts.Link, desc, &built, &built)
	if opts.Language != "" {
		p.Language = opts.Language
	}

	for _, it := range items {
		if it.AudioURL == nil || *it.AudioURL == "" {
			continue
		}
		if it.EpisodeExpiresAt != nil && !it.EpisodeExpiresAt.IsZero() && !built.Before(it.EpisodeExpiresAt.Time) {
			continue
		}

		summary := defaultDescription
		if it.OriginalRequestSummary != nil && *it.OriginalRequestSummary != "" {
			summary = *it.OriginalRequestSummary
		}
		pub := it.EpisodeCreatedAt.Time
		if pub.IsZero() {
			pub = it.DigestCreatedAt.Time
		}

		item := podcast.Item{
			Title:       it.DisplayName(),
			Description: summary,
			PubDate:     &pub,
		}
		item.AddEnclosure(resolve(*it.AudioURL), podcast.MP3, 0)
		if it.DurationSeconds != nil {
			item.AddDuration(int64(*it.DurationSeconds))
		}
		if _, err := p.AddItem(item); err != nil {
			return nil, fmt.Errorf("adding episode %d: %w", it.PodcastEpisodeID, err)
		}
	}
	return &p, nil
}

// Write collects the full history from l and encodes it as RSS to w.
func Write(ctx context.Context, w io.Writer, l Lister, limit int, opts Options) error {
	items, err := Collect(ctx, l, limit)
	if err != nil {
		return err
	}
	p, err := Build(items, opts)
	if err != nil {
		return err
	}
	return p.Encode(w)
}
