package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/kiranshivaraju/newscast/internal/compose"
	"github.com/kiranshivaraju/newscast/internal/feed"
	"github.com/kiranshivaraju/newscast/internal/generation"
	"github.com/kiranshivaraju/newscast/internal/podcastapi"
	"github.com/kiranshivaraju/newscast/internal/poller"
	"github.com/kiranshivaraju/newscast/pkg/models"
)

// --- session ---

func cmdRegister(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "register")
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("NEWSCAST_PASSWORD"), "account password")
	name := fs.String("name", "", "full name")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	reg := models.Registration{Email: *email, Password: *password}
	if n := strings.TrimSpace(*name); n != "" {
		reg.FullName = &n
	}
	user, err := a.guard.Register(ctx, reg)
	if err != nil {
		return sessionError(a, err)
	}
	a.out.printf("Registered %s. Run `newscast login` to sign in.\n", user.Email)
	return nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("NEWSCAST_PASSWORD"), "account password")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	if err := a.guard.Login(ctx, models.Credentials{Email: *email, Password: *password}); err != nil {
		return sessionError(a, err)
	}
	snap := a.guard.Snapshot()
	if snap.User != nil {
		a.out.printf("Logged in as %s.\n", snap.User.Email)
	}
	return nil
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.guard.Start(ctx); err != nil {
		a.logger.Debug("restoring session", "error", err)
	}
	if err := a.guard.Logout(ctx); err != nil {
		return err
	}
	a.out.printf("Logged out.\n")
	return nil
}

func cmdWhoami(ctx context.Context, a *app, _ []string) error {
	if err := a.authenticate(ctx); err != nil {
		return err
	}
	u := a.guard.Snapshot().User
	a.out.printf("%s (%s), %d credits\n", u.Email, derefOr(u.FullName, "no name"), u.Credits)
	return nil
}

func usageError(name string) error {
	return fmt.Errorf("usage: newscast %s", commands[name].usage)
}

// sessionError prefers the user-facing message the guard recorded.
func sessionError(a *app, err error) error {
	if msg := a.guard.Snapshot().Error; msg != "" {
		return errors.New(msg)
	}
	return err
}

// --- generation ---

func cmdGenerate(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "generate")
	modeName := fs.String("mode", "adhoc", "content source: urls, profile, preferences, or adhoc")
	urls := fs.String("urls", "", "comma-separated article URLs (urls mode)")
	profile := fs.Int64("profile", 0, "profile id (profile mode)")
	topics := fs.String("topics", "", "comma-separated topics")
	keywords := fs.String("keywords", "", "comma-separated keywords")
	rss := fs.String("rss", "", "comma-separated RSS feed URLs")
	excludeKeywords := fs.String("exclude-keywords", "", "comma-separated keywords to exclude")
	excludeDomains := fs.String("exclude-domains", "", "comma-separated source domains to exclude")
	language := fs.String("language", "en", "podcast language")
	style := fs.String("style", "standard", "audio style")
	force := fs.Bool("force", false, "regenerate even if a cached podcast exists")
	openAIKey := fs.String("openai-key", os.Getenv("NEWSCAST_OPENAI_API_KEY"), "OpenAI API key to use for this request")
	googleKey := fs.String("google-key", os.Getenv("NEWSCAST_GOOGLE_API_KEY"), "Google API key to use for this request")
	watch := fs.Bool("watch", false, "poll until the podcast is ready")
	name := fs.String("name", "", "name to give the episode once it is ready (with --watch)")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	mode, err := compose.ParseMode(*modeName)
	if err != nil {
		return err
	}
	fields := compose.Fields{
		URLs:            compose.SplitList(*urls),
		Topics:          compose.SplitList(*topics),
		Keywords:        compose.SplitList(*keywords),
		RSSURLs:         compose.SplitList(*rss),
		ExcludeKeywords: compose.SplitList(*excludeKeywords),
		ExcludeDomains:  compose.SplitList(*excludeDomains),
		Language:        *language,
		AudioStyle:      *style,
		ForceRegenerate: *force,
		OpenAIKey:       *openAIKey,
		GoogleKey:       *googleKey,
	}
	if *profile > 0 {
		fields.ProfileID = profile
	}

	if err := a.authenticate(ctx); err != nil {
		return err
	}

	var coord *generation.Coordinator
	prompter := poller.NamingPrompterFunc(func(job models.Job) {
		if job.EpisodeID == nil {
			return
		}
		if strings.TrimSpace(*name) == "" {
			a.out.printf("Episode %d is ready. Name it with: newscast rename %d <name>\n", *job.EpisodeID, *job.EpisodeID)
			return
		}
		if _, err := coord.Rename(ctx, *job.EpisodeID, *name); err != nil {
			a.errOut.printf("Could not name episode %d: %v\n", *job.EpisodeID, err)
		}
	})
	coord = a.coordinator(poller.WithNamingPrompter(prompter), poller.WithListener(a.printEvents()))
	defer coord.Close()

	job, h, err := coord.Submit(ctx, mode, fields)
	if err != nil {
		return err
	}
	if job.IsCachedOnStart {
		a.out.printf("%s\n", job.InitialMessage)
	}
	a.out.printf("Submitted digest %d (%s).\n", job.ID, statusText(job.Status))

	wantName := strings.TrimSpace(*name) != ""
	if !*watch {
		if wantName {
			a.errOut.printf("--name was not applied without --watch. Name the episode with: newscast rename <episode-id> <name>\n")
		}
		return nil
	}
	if err := a.watch(ctx, coord, h); err != nil {
		return err
	}
	// Cache hits never prompt for a name, so apply --name here.
	if job.IsCachedOnStart && wantName {
		a.nameEpisode(ctx, coord, h, *name)
	}
	return nil
}

// nameEpisode renames the episode a finished handle produced.
func (a *app) nameEpisode(ctx context.Context, coord *generation.Coordinator, h *poller.Handle, name string) {
	v, ok := h.View().(poller.Confirmed)
	if !ok || v.Snapshot.PodcastEpisodeID == nil {
		a.errOut.printf("--name was not applied: digest %d has no episode yet.\n", h.JobID())
		return
	}
	episodeID := *v.Snapshot.PodcastEpisodeID
	detail, err := coord.Rename(ctx, episodeID, name)
	if err != nil {
		a.errOut.printf("Could not name episode %d: %v\n", episodeID, err)
		return
	}
	a.out.printf("Episode %d is now %q.\n", episodeID, derefOr(detail.UserGivenName, name))
}

func cmdStatus(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "status")
	watch := fs.Bool("watch", false, "poll until the podcast is ready")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return usageError("status")
	}
	id, err := strconv.ParseInt(positional[0], 10, 64)
	if err != nil || id < 1 {
		return fmt.Errorf("invalid digest id %q", positional[0])
	}

	if err := a.authenticate(ctx); err != nil {
		return err
	}

	if !*watch {
		snap, err := a.client.Status(ctx, id)
		if err != nil {
			return err
		}
		a.out.printf("%s\n", poller.Describe(poller.Confirmed{Snapshot: snap}))
		a.printAudio(snap.AudioURL)
		return nil
	}

	coord := a.coordinator(poller.WithListener(a.printEvents()))
	defer coord.Close()
	_, h, err := coord.Track(ctx, id)
	if err != nil {
		return err
	}
	return a.watch(ctx, coord, h)
}

// printEvents returns a poll listener that prints each job's line when it
// changes and reports fetch errors.
func (a *app) printEvents() func(poller.Event) {
	var mu sync.Mutex
	last := make(map[int64]string)
	return func(ev poller.Event) {
		var pe *poller.PollError
		if errors.As(ev.Err, &pe) {
			a.errOut.printf("#%d: %v (retrying)\n", ev.JobID, pe.Err)
			return
		}
		if ev.View == nil {
			return
		}
		line := poller.Describe(ev.View)
		mu.Lock()
		changed := last[ev.JobID] != line
		last[ev.JobID] = line
		mu.Unlock()
		if changed {
			a.out.printf("%s\n", line)
		}
	}
}

// watch blocks until h finishes. Refresh signals poll every job at once.
func (a *app) watch(ctx context.Context, coord *generation.Coordinator, h *poller.Handle) error {
	if len(refreshSignals) > 0 {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, refreshSignals...)
		defer signal.Stop(sig)
		go func() {
			for {
				select {
				case <-sig:
					coord.RefreshAll()
				case <-h.Done():
					return
				}
			}
		}()
	}

	select {
	case <-h.Done():
	case <-ctx.Done():
		coord.Close()
		return fmt.Errorf("stopped watching digest %d: %w", h.JobID(), ctx.Err())
	}

	switch h.State() {
	case poller.Completed:
		if v, ok := h.View().(poller.Confirmed); ok {
			a.printAudio(v.Snapshot.AudioURL)
		}
		return nil
	case poller.Failed:
		return fmt.Errorf("digest %d failed", h.JobID())
	default:
		if err := a.guard.Require(); err != nil {
			return fmt.Errorf("stopped watching digest %d: %w", h.JobID(), err)
		}
		return fmt.Errorf("stopped watching digest %d", h.JobID())
	}
}

func (a *app) printAudio(ref *string) {
	if ref != nil && *ref != "" {
		a.out.printf("Audio: %s\n", a.client.AssetURL(*ref))
	}
}

func statusText(s models.DigestStatus) string {
	return strings.ToLower(strings.ReplaceAll(string(s), "_", " "))
}

// --- history ---

func cmdHistory(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "history")
	page := fs.Int("page", 1, "page number")
	limit := fs.Int("limit", a.cfg.API.PageLimit, "episodes per page")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	if err := a.authenticate(ctx); err != nil {
		return err
	}
	p, err := a.client.ListPodcasts(ctx, *page, *limit)
	if err != nil {
		return err
	}
	if p.Total == 0 {
		a.out.printf("No podcasts yet.\n")
		return nil
	}

	writeHistory(a.out, p, time.Now())
	return nil
}

func writeHistory(w io.Writer, p models.PodcastPage, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EPISODE\tDIGEST\tNAME\tLENGTH\tCREATED\tEXPIRES")
	for _, it := range p.Podcasts {
		length := "-"
		if it.DurationSeconds != nil {
			length = (time.Duration(*it.DurationSeconds) * time.Second).String()
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\n",
			it.PodcastEpisodeID,
			it.NewsDigestID,
			it.DisplayName(),
			length,
			it.EpisodeCreatedAt.Format("2006-01-02 15:04"),
			expiryText(it.EpisodeExpiresAt, now),
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "Page %d of %d (%d episodes)\n", p.Page, p.TotalPages(), p.Total)
}

func expiryText(ts *models.Timestamp, now time.Time) string {
	switch {
	case ts == nil || ts.IsZero():
		return "-"
	case !now.Before(ts.Time):
		return "expired"
	default:
		return ts.Format("2006-01-02")
	}
}

func cmdRename(ctx context.Context, a *app, args []string) error {
	positional, err := parseArgs(newFlagSet(a, "rename"), args)
	if err != nil {
		return err
	}
	if len(positional) < 2 {
		return usageError("rename")
	}
	id, err := strconv.ParseInt(positional[0], 10, 64)
	if err != nil || id < 1 {
		return fmt.Errorf("invalid episode id %q", positional[0])
	}
	name := strings.Join(positional[1:], " ")
	if _, err := podcastapi.ValidateName(name); err != nil {
		return err
	}

	if err := a.authenticate(ctx); err != nil {
		return err
	}
	coord := a.coordinator()
	defer coord.Close()

	detail, err := coord.Rename(ctx, id, name)
	if err != nil {
		return err
	}
	a.out.printf("Episode %d is now %q.\n", detail.ID, derefOr(detail.UserGivenName, name))
	return nil
}

// --- preferences / profiles ---

func cmdPrefs(ctx context.Context, a *app, args []string) error {
	if len(args) > 0 && args[0] == "set" {
		return cmdPrefsSet(ctx, a, args[1:])
	}
	if _, err := parseArgs(newFlagSet(a, "prefs"), args); err != nil {
		return err
	}

	if err := a.authenticate(ctx); err != nil {
		return err
	}
	p, err := a.client.Preferences(ctx)
	if err != nil {
		return err
	}
	writePreferences(a.out, p)
	return nil
}

func cmdPrefsSet(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "prefs set")
	topics := fs.String("topics", "", "comma-separated preferred topics")
	keywords := fs.String("keywords", "", "comma-separated custom keywords")
	rss := fs.String("rss", "", "comma-separated RSS feed URLs")
	excludeKeywords := fs.String("exclude-keywords", "", "comma-separated keywords to exclude")
	excludeDomains := fs.String("exclude-domains", "", "comma-separated source domains to exclude")
	language := fs.String("language", "", "default language")
	style := fs.String("style", "", "default audio style")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	var update models.UserPreferenceUpdate
	list := func(flagName, value string) []string {
		if !visited(fs, flagName) {
			return nil
		}
		if out := compose.Clean(compose.SplitList(value)); out != nil {
			return out
		}
		return []string{}
	}
	update.PreferredTopics = list("topics", *topics)
	update.CustomKeywords = list("keywords", *keywords)
	update.IncludeSourceRSSURLs = list("rss", *rss)
	update.ExcludeKeywords = list("exclude-keywords", *excludeKeywords)
	update.ExcludeSourceDomains = list("exclude-domains", *excludeDomains)
	if visited(fs, "language") {
		update.DefaultLanguage = language
	}
	if visited(fs, "style") {
		update.DefaultAudioStyle = style
	}

	if err := a.authenticate(ctx); err != nil {
		return err
	}
	p, err := a.client.UpdatePreferences(ctx, update)
	if err != nil {
		return err
	}
	writePreferences(a.out, p)
	return nil
}

func writePreferences(w io.Writer, p models.UserPreference) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Topics:\t%s\n", joinOrDash(p.PreferredTopics))
	fmt.Fprintf(tw, "Keywords:\t%s\n", joinOrDash(p.CustomKeywords))
	fmt.Fprintf(tw, "RSS feeds:\t%s\n", joinOrDash(p.IncludeSourceRSSURLs))
	fmt.Fprintf(tw, "Excluded keywords:\t%s\n", joinOrDash(p.ExcludeKeywords))
	fmt.Fprintf(tw, "Excluded domains:\t%s\n", joinOrDash(p.ExcludeSourceDomains))
	fmt.Fprintf(tw, "Language:\t%s\n", derefOr(p.DefaultLanguage, "-"))
	fmt.Fprintf(tw, "Audio style:\t%s\n", derefOr(p.DefaultAudioStyle, "-"))
	tw.Flush()
}

func cmdProfiles(ctx context.Context, a *app, _ []string) error {
	if err := a.authenticate(ctx); err != nil {
		return err
	}
	profiles, err := a.client.Profiles(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tLANGUAGE\tDESCRIPTION")
	for _, p := range profiles {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.ID, p.Name, derefOr(p.Language, "-"), derefOr(p.Description, ""))
	}
	return tw.Flush()
}

// --- feed ---

func cmdFeed(ctx context.Context, a *app, args []string) (err error) {
	fs := newFlagSet(a, "feed")
	out := fs.String("out", "", "write the feed to FILE instead of stdout")
	title := fs.String("title", "", "channel title")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	if err := a.authenticate(ctx); err != nil {
		return err
	}

	t := *title
	if t == "" {
		t = "Newscast for " + a.guard.Snapshot().User.Email
	}
	opts := feed.Options{
		Title:      t,
		Link:       podcastapi.RootURL(a.client.BaseURL()),
		ResolveURL: a.client.AssetURL,
	}

	var w io.Writer = a.out
	if *out != "" {
		f, cerr := os.Create(*out)
		if cerr != nil {
			return fmt.Errorf("creating feed file: %w", cerr)
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}
	return feed.Write(ctx, w, a.client, a.cfg.API.PageLimit, opts)
}
