// Package backend holds the in-memory state of the mock podcast API: accounts,
// tokens, digests, episodes, preferences, and the profile catalog.
//
// A digest advances one status step each time its status is read, so a client
// polling it sees the full PENDING_SCRIPT → PENDING_AUDIO → PROCESSING_AUDIO →
// COMPLETED sequence.
package backend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/newscast/internal/cache"
	"github.com/kiranshivaraju/newscast/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

// Messages returned in generation responses.
const (
	CacheHitMessage = "Podcast retrieved from cache. Audio is available."
	StartedMessage  = "Podcast generation process with custom preferences started."
	FailedMessage   = "Failed to process news content or no content found for criteria."
)

const (
	digestCacheTTL  = 24 * time.Hour
	episodeLifetime = 7 * 24 * time.Hour
	defaultCredits  = 10
	maxNameLength   = 255
)

// Sentinel errors mapped to HTTP statuses by the handlers.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
)

// ValidationError is a rejected request body.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

type account struct {
	user         models.User
	passwordHash []byte
}

type digest struct {
	id        int64
	ownerID   int64
	status    models.DigestStatus
	request   models.GenerationRequest
	willFail  bool
	episodeID *int64
	script    *string
	errMsg    *string
	createdAt time.Time
	updatedAt time.Time
}

type episode struct {
	detail  models.EpisodeDetail
	ownerID int64
	summary string
}

// Backend is safe for concurrent use.
type Backend struct {
	cache     cache.Cache
	now       func() time.Time
	stepDelay time.Duration

	mu            sync.Mutex
	nextUserID    int64
	nextDigestID  int64
	nextEpisodeID int64
	accounts      map[int64]*account
	byEmail       map[string]int64
	tokens        map[string]int64
	digests       map[int64]*digest
	episodes      map[int64]*episode
	prefs         map[int64]*models.UserPreference
	profiles      []models.Profile
}

// Option configures a Backend.
type Option func(*Backend)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// WithStepDelay sets the minimum time between two status advances of one
// digest. Zero advances on every read.
func WithStepDelay(d time.Duration) Option {
	return func(b *Backend) { b.stepDelay = d }
}

// New creates a Backend seeded with the default profile catalog. c stores the
// request fingerprints used for cache hits.
func New(c cache.Cache, opts ...Option) *Backend {
	if c == nil {
		c = cache.NewMemoryCache()
	}
	b := &Backend{
		cache:    c,
		now:      time.Now,
		accounts: make(map[int64]*account),
		byEmail:  make(map[string]int64),
		tokens:   make(map[string]int64),
		digests:  make(map[int64]*digest),
		episodes: make(map[int64]*episode),
		prefs:    make(map[int64]*models.UserPreference),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.profiles = seedProfiles(b.now())
	return b
}

// --- accounts ---

// Register creates an account.
func (b *Backend) Register(_ context.Context, reg models.Registration) (models.User, error) {
	email := strings.ToLower(strings.TrimSpace(reg.Email))
	if email == "" || !strings.Contains(email, "@") {
		return models.User{}, &ValidationError{Msg: "value is not a valid email address"}
	}
	if len(reg.Password) < 6 {
		return models.User{}, &ValidationError{Msg: "password must be at least 6 characters"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hashing password: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.byEmail[email]; ok {
		return models.User{}, ErrEmailTaken
	}
	b.nextUserID++
	user := models.User{
		ID:       b.nextUserID,
		Email:    email,
		FullName: reg.FullName,
		IsActive: true,
		Credits:  defaultCredits,
	}
	b.accounts[user.ID] = &account{user: user, passwordHash: hash}
	b.byEmail[email] = user.ID
	return user, nil
}

// Login checks credentials and issues a new bearer token.
func (b *Backend) Login(_ context.Context, creds models.Credentials) (models.Token, error) {
	email := strings.ToLower(strings.TrimSpace(creds.Email))

	b.mu.Lock()
	id, ok := b.byEmail[email]
	var acct *account
	if ok {
		acct = b.accounts[id]
	}
	b.mu.Unlock()

	if acct == nil || bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(creds.Password)) != nil {
		return models.Token{}, ErrInvalidCredentials
	}

	token := uuid.NewString()
	b.mu.Lock()
	b.tokens[token] = id
	b.mu.Unlock()

	slog.Info("user logged in", "user_id", id)
	return models.Token{AccessToken: token, TokenType: "bearer"}, nil
}

// UserForToken resolves a bearer token.
func (b *Backend) UserForToken(token string) (models.User, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, ok := b.tokens[token]
	if !ok {
		return models.User{}, false
	}
	acct, ok := b.accounts[id]
	if !ok || !acct.user.IsActive {
		return models.User{}, false
	}
	return acct.user, true
}

// RevokeToken invalidates a token, simulating server-side expiry.
func (b *Backend) RevokeToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tokens, token)
}

// RevokeAll invalidates every issued token.
func (b *Backend) RevokeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = make(map[string]int64)
}

// --- generation ---

// Generate accepts a generation request. Unless force_regenerate is set, a
// request identical to one that already completed for the same user is served
// from cache.
func (b *Backend) Generate(ctx context.Context, userID int64, req models.GenerationRequest) (models.GenerationResponse, error) {
	if strings.TrimSpace(req.Language) == "" || strings.TrimSpace(req.AudioStyle) == "" {
		return models.GenerationResponse{}, &ValidationError{Msg: "language and audio_style are required"}
	}
	if req.PredefinedCategoryID != nil && !b.profileExists(*req.PredefinedCategoryID) {
		return models.GenerationResponse{}, fmt.Errorf("%w: predefined category %d", ErrNotFound, *req.PredefinedCategoryID)
	}

	fp := Fingerprint(userID, req)
	if !req.ForceRegenerate {
		if resp, ok := b.cachedDigest(ctx, userID, fp); ok {
			return resp, nil
		}
	}

	now := b.now()
	b.mu.Lock()
	b.nextDigestID++
	d := &digest{
		id:        b.nextDigestID,
		ownerID:   userID,
		status:    models.StatusPendingScript,
		request:   req,
		willFail:  requestsFailure(req),
		createdAt: now,
		updatedAt: now,
	}
	b.digests[d.id] = d
	b.mu.Unlock()

	if err := b.cache.Set(ctx, cache.DigestKey(fp), []byte(strconv.FormatInt(d.id, 10)), digestCacheTTL); err != nil {
		slog.Warn("caching digest fingerprint", "error", err, "digest_id", d.id)
	}

	slog.Info("digest created", "digest_id", d.id, "user_id", userID, "request", req)
	return models.GenerationResponse{
		NewsDigestID:  d.id,
		InitialStatus: string(models.StatusPendingScript),
		Message:       StartedMessage,
	}, nil
}

func (b *Backend) cachedDigest(ctx context.Context, userID int64, fp string) (models.GenerationResponse, bool) {
	raw, found, err := b.cache.Get(ctx, cache.DigestKey(fp))
	if err != nil {
		slog.Warn("digest cache lookup failed", "error", err)
		return models.GenerationResponse{}, false
	}
	if !found {
		return models.GenerationResponse{}, false
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return models.GenerationResponse{}, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	d, ok := b.digests[id]
	if !ok || d.ownerID != userID || d.status != models.StatusCompleted || d.episodeID == nil {
		return models.GenerationResponse{}, false
	}
	return models.GenerationResponse{
		NewsDigestID:  d.id,
		InitialStatus: string(models.StatusCompleted),
		Message:       CacheHitMessage,
	}, true
}

// Status returns the digest and advances it one step.
func (b *Backend) Status(_ context.Context, userID, digestID int64) (models.StatusSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, ok := b.digests[digestID]
	if !ok {
		return models.StatusSnapshot{}, ErrNotFound
	}
	if d.ownerID != userID {
		return models.StatusSnapshot{}, ErrForbidden
	}

	b.advanceLocked(d)
	return b.snapshotLocked(d), nil
}

func (b *Backend) advanceLocked(d *digest) {
	if d.status.IsTerminal() {
		return
	}
	now := b.now()
	if b.stepDelay > 0 && now.Sub(d.updatedAt) < b.stepDelay {
		return
	}

	switch d.status {
	case models.StatusPendingScript:
		if d.willFail {
			msg := FailedMessage
			d.errMsg = &msg
			d.status = models.StatusFailed
			break
		}
		script := scriptFor(d.request)
		d.script = &script
		d.status = models.StatusPendingAudio
	case models.StatusPendingAudio:
		d.status = models.StatusProcessingAudio
	case models.StatusProcessingAudio:
		b.nextEpisodeID++
		id := b.nextEpisodeID
		audio := fmt.Sprintf("/static/audio/%d.mp3", id)
		style := d.request.AudioStyle
		duration := 60 + int(id%5)*30
		expires := models.NewTimestamp(now.Add(episodeLifetime))
		b.episodes[id] = &episode{
			ownerID: d.ownerID,
			summary: requestSummary(d.request),
			detail: models.EpisodeDetail{
				ID:              id,
				NewsDigestID:    d.id,
				AudioURL:        &audio,
				Language:        d.request.Language,
				AudioStyle:      &style,
				DurationSeconds: &duration,
				CreatedAt:       models.NewTimestamp(now),
				ExpiresAt:       &expires,
			},
		}
		d.episodeID = &id
		d.status = models.StatusCompleted
	}
	d.updatedAt = now
}

func (b *Backend) snapshotLocked(d *digest) models.StatusSnapshot {
	snap := models.StatusSnapshot{
		NewsDigestID:     d.id,
		Status:           d.status,
		ScriptPreview:    d.script,
		ErrorMessage:     d.errMsg,
		CreatedAt:        models.NewTimestamp(d.createdAt),
		UpdatedAt:        models.NewTimestamp(d.updatedAt),
		PodcastEpisodeID: d.episodeID,
	}
	if d.episodeID != nil {
		if ep, ok := b.episodes[*d.episodeID]; ok {
			snap.AudioURL = ep.detail.AudioURL
			snap.UserGivenName = ep.detail.UserGivenName
		}
	}
	return snap
}

// ListPodcasts returns the user's episodes, newest first.
func (b *Backend) ListPodcasts(_ context.Context, userID int64, page, limit int) models.PodcastPage {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var items []models.PodcastListItem
	for _, ep := range b.episodes {
		if ep.ownerID != userID {
			continue
		}
		d := b.digests[ep.detail.NewsDigestID]
		summary := ep.summary
		items = append(items, models.PodcastListItem{
			PodcastEpisodeID:       ep.detail.ID,
			NewsDigestID:           ep.detail.NewsDigestID,
			UserGivenName:          ep.detail.UserGivenName,
			AudioURL:               ep.detail.AudioURL,
			OriginalRequestSummary: &summary,
			Language:               ep.detail.Language,
			AudioStyle:             ep.detail.AudioStyle,
			DurationSeconds:        ep.detail.DurationSeconds,
			DigestCreatedAt:        models.NewTimestamp(d.createdAt),
			EpisodeCreatedAt:       ep.detail.CreatedAt,
			EpisodeExpiresAt:       ep.detail.ExpiresAt,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].PodcastEpisodeID > items[j].PodcastEpisodeID
	})

	out := models.PodcastPage{Podcasts: []models.PodcastListItem{}, Total: len(items), Page: page, Limit: limit}
	start := (page - 1) * limit
	if start < len(items) {
		end := min(start+limit, len(items))
		out.Podcasts = items[start:end]
	}
	return out
}

// RenameEpisode sets the user-given name of an episode.
func (b *Backend) RenameEpisode(_ context.Context, userID, episodeID int64, name string) (models.EpisodeDetail, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return models.EpisodeDetail{}, &ValidationError{Msg: "user_given_name must be between 1 and 255 characters"}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ep, ok := b.episodes[episodeID]
	if !ok || ep.ownerID != userID {
		return models.EpisodeDetail{}, ErrNotFound
	}
	ep.detail.UserGivenName = &name
	return ep.detail, nil
}

// --- preferences / profiles ---

// Preferences returns the user's stored preferences, creating defaults on
// first access.
func (b *Backend) Preferences(_ context.Context, userID int64) models.UserPreference {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *b.prefsLocked(userID)
}

// UpdatePreferences applies the non-nil fields of update.
func (b *Backend) UpdatePreferences(_ context.Context, userID int64, update models.UserPreferenceUpdate) models.UserPreference {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := b.prefsLocked(userID)
	if update.PreferredTopics != nil {
		p.PreferredTopics = update.PreferredTopics
	}
	if update.CustomKeywords != nil {
		p.CustomKeywords = update.CustomKeywords
	}
	if update.IncludeSourceRSSURLs != nil {
		p.IncludeSourceRSSURLs = update.IncludeSourceRSSURLs
	}
	if update.ExcludeKeywords != nil {
		p.ExcludeKeywords = update.ExcludeKeywords
	}
	if update.ExcludeSourceDomains != nil {
		p.ExcludeSourceDomains = update.ExcludeSourceDomains
	}
	if update.DefaultLanguage != nil {
		p.DefaultLanguage = update.DefaultLanguage
	}
	if update.DefaultAudioStyle != nil {
		p.DefaultAudioStyle = update.DefaultAudioStyle
	}
	p.UpdatedAt = models.NewTimestamp(b.now())
	return *p
}

func (b *Backend) prefsLocked(userID int64) *models.UserPreference {
	if p, ok := b.prefs[userID]; ok {
		return p
	}
	lang, style := "en", "standard"
	now := models.NewTimestamp(b.now())
	p := &models.UserPreference{
		ID:                   userID,
		UserID:               userID,
		PreferredTopics:      []string{},
		CustomKeywords:       []string{},
		IncludeSourceRSSURLs: []string{},
		ExcludeKeywords:      []string{},
		ExcludeSourceDomains: []string{},
		DefaultLanguage:      &lang,
		DefaultAudioStyle:    &style,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	b.prefs[userID] = p
	return p
}

// Profiles returns the active profile catalog.
func (b *Backend) Profiles(_ context.Context) []models.Profile {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]models.Profile, 0, len(b.profiles))
	for _, p := range b.profiles {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out
}

func (b *Backend) profileExists(id int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.profiles {
		if p.ID == id && p.IsActive {
			return true
		}
	}
	return false
}

// --- helpers ---

// Fingerprint identifies a request for cache lookups. Force-regenerate and the
// user's API keys do not change what gets generated, so they are excluded.
func Fingerprint(userID int64, req models.GenerationRequest) string {
	req.ForceRegenerate = false
	req.UserOpenAIAPIKey = nil
	req.UserGoogleAPIKey = nil

	data, _ := json.Marshal(struct {
		UserID  int64                    `json:"user_id"`
		Request models.GenerationRequest `json:"request"`
	}{userID, req})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// requestsFailure marks requests the mock should fail, so clients can exercise
// the FAILED path: any topic or keyword equal to "fail".
func requestsFailure(req models.GenerationRequest) bool {
	for _, list := range [][]string{req.RequestTopics, req.RequestKeywords} {
		for _, v := range list {
			if strings.EqualFold(strings.TrimSpace(v), "fail") {
				return true
			}
		}
	}
	return false
}

func scriptFor(req models.GenerationRequest) string {
	return fmt.Sprintf("Welcome to your %s news digest. Today: %s.", req.AudioStyle, requestSummary(req))
}

func requestSummary(req models.GenerationRequest) string {
	switch {
	case len(req.SpecificArticleURLs) > 0:
		return fmt.Sprintf("%d article(s)", len(req.SpecificArticleURLs))
	case req.PredefinedCategoryID != nil:
		return fmt.Sprintf("profile %d", *req.PredefinedCategoryID)
	case req.UseUserDefaultPreferences:
		return "your stored preferences"
	case len(req.RequestTopics) > 0:
		return strings.Join(req.RequestTopics, ", ")
	default:
		return "top stories"
	}
}

func seedProfiles(now time.Time) []models.Profile {
	es := "es"
	en := "en"
	ts := models.NewTimestamp(now)
	desc := func(s string) *string { return &s }
	return []models.Profile{
		{
			ID:          1,
			Name:        "Últimas Noticias El País",
			Description: desc("Últimas noticias de El País"),
			RSSURLs:     []string{"https://feeds.elpais.com/mrss-s/pages/ep/site/elpais.com/section/ultimas-noticias/portada"},
			Topics:      []string{}, Keywords: []string{}, ExcludeKeywords: []string{}, ExcludeSourceDomains: []string{},
			Language:  &es,
			IsActive:  true,
			CreatedAt: ts,
		},
		{
			ID:          2,
			Name:        "Titulares del Día El País",
			Description: desc("Titulares del día de El País"),
			RSSURLs:     []string{"https://feeds.elpais.com/mrss-s/pages/ep/site/elpais.com/portada"},
			Topics:      []string{}, Keywords: []string{}, ExcludeKeywords: []string{}, ExcludeSourceDomains: []string{},
			Language:  &es,
			IsActive:  true,
			CreatedAt: ts,
		},
		{
			ID:          3,
			Name:        "Tech Briefing",
			Description: desc("Daily technology headlines"),
			RSSURLs:     []string{"https://hnrss.org/frontpage"},
			Topics:      []string{"technology", "AI"}, Keywords: []string{}, ExcludeKeywords: []string{"gossip"}, ExcludeSourceDomains: []string{},
			Language:  &en,
			IsActive:  true,
			CreatedAt: ts,
		},
	}
}
