package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kiranshivaraju/newscast/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func int64Ptr(v int64) *int64 { return &v }

func ids(jobs []models.Job) []int64 {
	out := make([]int64, len(jobs))
	for i, j := range jobs {
		out[i] = j.ID
	}
	return out
}

func TestUpsert_EvictsOldestBeyondCapacity(t *testing.T) {
	r := New()
	for id := int64(1); id <= 6; id++ {
		r.Upsert(Summary{ID: id, Status: models.StatusPendingScript})
	}
	require.Equal(t, []int64{6, 5, 4, 3, 2, 1}, ids(r.List()))

	r.Upsert(Summary{ID: 7, Status: models.StatusPendingScript})

	assert.Equal(t, []int64{7, 6, 5, 4, 3, 2}, ids(r.List()))
	_, ok := r.Get(1)
	assert.False(t, ok)
}

func TestUpsert_DuplicateIDMovesToFront(t *testing.T) {
	r := New()
	r.Upsert(Summary{ID: 1, Status: models.StatusPendingScript, InitialMessage: "started", EpisodeID: int64Ptr(11)})
	r.Upsert(Summary{ID: 2, Status: models.StatusPendingScript})

	job := r.Upsert(Summary{ID: 1, Status: models.StatusCompleted, IsCachedOnStart: true})

	assert.Equal(t, []int64{1, 2}, ids(r.List()))
	assert.Equal(t, models.StatusCompleted, job.Status)
	assert.True(t, job.IsCachedOnStart)
	assert.Equal(t, "started", job.InitialMessage)
	require.NotNil(t, job.EpisodeID)
	assert.Equal(t, int64(11), *job.EpisodeID)
}

func TestUpsert_NeverDuplicatesOrExceedsCapacity(t *testing.T) {
	r := New()
	for i := 0; i < 50; i++ {
		r.Upsert(Summary{ID: int64(i % 9), Status: models.StatusPendingAudio})

		seen := map[int64]bool{}
		for _, j := range r.List() {
			assert.False(t, seen[j.ID], "duplicate id %d", j.ID)
			seen[j.ID] = true
		}
		assert.LessOrEqual(t, r.Len(), DefaultCapacity)
	}
}

func TestWithCapacity(t *testing.T) {
	r := New(WithCapacity(2))
	r.Upsert(Summary{ID: 1})
	r.Upsert(Summary{ID: 2})
	r.Upsert(Summary{ID: 3})
	assert.Equal(t, []int64{3, 2}, ids(r.List()))

	r = New(WithCapacity(0))
	assert.Equal(t, DefaultCapacity, r.capacity)
}

func TestUpsert_SetsTimestamps(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := New(WithClock(func() time.Time { return fixed }))

	job := r.Upsert(Summary{ID: 1})
	assert.True(t, job.CreatedAt.Equal(fixed))
	assert.True(t, job.UpdatedAt.Equal(fixed))
}

func TestApplyStatusSnapshot_Merges(t *testing.T) {
	r := New()
	r.Upsert(Summary{ID: 42, Status: models.StatusPendingScript, InitialMessage: "queued"})
	r.Upsert(Summary{ID: 43})

	job, err := r.ApplyStatusSnapshot(42, models.StatusSnapshot{
		NewsDigestID:     42,
		Status:           models.StatusCompleted,
		AudioURL:         strPtr("/static/a.mp3"),
		PodcastEpisodeID: int64Ptr(9),
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, job.Status)
	assert.True(t, job.HasAudio())
	assert.Equal(t, "queued", job.InitialMessage)
	require.NotNil(t, job.EpisodeID)
	assert.Equal(t, int64(9), *job.EpisodeID)
	// position is unchanged
	assert.Equal(t, []int64{43, 42}, ids(r.List()))
}

func TestApplyStatusSnapshot_KeepsFieldsNotSupplied(t *testing.T) {
	r := New()
	r.Upsert(Summary{ID: 1, ScriptPreview: strPtr("Hello")})

	job, err := r.ApplyStatusSnapshot(1, models.StatusSnapshot{Status: models.StatusPendingAudio})
	require.NoError(t, err)
	require.NotNil(t, job.ScriptPreview)
	assert.Equal(t, "Hello", *job.ScriptPreview)
}

func TestApplyStatusSnapshot_EvictedJobIsNotFound(t *testing.T) {
	r := New()
	before := r.Len()

	_, err := r.ApplyStatusSnapshot(99, models.StatusSnapshot{Status: models.StatusFailed})

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, before, r.Len())
}

func TestRename(t *testing.T) {
	r := New()
	r.Upsert(Summary{ID: 1, EpisodeID: int64Ptr(100)})
	r.Upsert(Summary{ID: 2})

	job, err := r.Rename(100, "Morning brief")
	require.NoError(t, err)
	assert.Equal(t, int64(1), job.ID)
	assert.True(t, job.IsNamed())

	got, _ := r.Get(1)
	assert.Equal(t, "Morning brief", *got.UserGivenName)

	_, err = r.Rename(1, "wrong id space")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_ReturnsCopy(t *testing.T) {
	r := New()
	r.Upsert(Summary{ID: 1, Status: models.StatusPendingScript})

	list := r.List()
	list[0].Status = models.StatusFailed

	got, _ := r.Get(1)
	assert.Equal(t, models.StatusPendingScript, got.Status)
}

func TestSummaryFromResponse(t *testing.T) {
	s := SummaryFromResponse(models.GenerationResponse{
		NewsDigestID:     5,
		InitialStatus:    "completed",
		Message:          "Podcast retrieved from cache. Audio is available.",
		PodcastEpisodeID: int64Ptr(3),
	})
	assert.Equal(t, int64(5), s.ID)
	assert.Equal(t, models.StatusCompleted, s.Status)
	assert.True(t, s.IsCachedOnStart)
	assert.Equal(t, int64(3), *s.EpisodeID)
}

func TestConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := int64((w*100 + i) % 10)
				r.Upsert(Summary{ID: id, InitialMessage: fmt.Sprintf("w%d", w)})
				_, _ = r.ApplyStatusSnapshot(id, models.StatusSnapshot{Status: models.StatusPendingAudio})
				_ = r.List()
			}
		}(w)
	}
	wg.Wait()
	assert.LessOrEqual(t, r.Len(), DefaultCapacity)
}
