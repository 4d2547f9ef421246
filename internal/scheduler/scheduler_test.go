package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/JustinTDCT/Posteract/internal/config"
	"github.com/JustinTDCT/Posteract/internal/logging"
	"github.com/JustinTDCT/Posteract/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOutcomes struct {
	due     []*models.PosterOutcome
	args    []any
	touched []int
}

func (f *fakeOutcomes) MarkCheckedNow(_ context.Context, tmdbID int) error {
	f.touched = append(f.touched, tmdbID)
	return nil
}

func (f *fakeOutcomes) DueRetries(_ context.Context, days int, wanted string, limit int) ([]*models.PosterOutcome, error) {
	f.args = []any{days, wanted, limit}
	return f.due, nil
}

type fakeJobs struct {
	due []*models.PosterJob
	err error
}

func (f *fakeJobs) DueRetries(context.Context, int) ([]*models.PosterJob, error) {
	return f.due, f.err
}

type fakeItems struct {
	items []models.MediaItem
	calls int
	libs  []string
}

func (f *fakeItems) Items(_ context.Context, libs []string) ([]models.MediaItem, error) {
	f.calls++
	f.libs = libs
	return f.items, nil
}

type fakeProcessor struct{ got []models.MediaItem }

func (f *fakeProcessor) ProcessItems(_ context.Context, items []models.MediaItem) []models.WorkflowResult {
	f.got = items
	out := make([]models.WorkflowResult, len(items))
	for i := range items {
		out[i] = models.WorkflowResult{Success: i%2 == 0}
	}
	return out
}

func intPtr(i int) *int { return &i }

func catalogue() []models.MediaItem {
	return []models.MediaItem{
		{RatingKey: intPtr(1), Title: "The Matrix", TMDBID: intPtr(603)},
		{RatingKey: intPtr(2), Title: "Inception", TMDBID: intPtr(27205)},
		{RatingKey: intPtr(3), Title: "The Dark Knight", TMDBID: intPtr(155)},
		{RatingKey: intPtr(4), Title: "Home Video"},
	}
}

func TestPlanner_Due(t *testing.T) {
	cfg := config.Defaults()
	cfg.Libraries = []string{"Movies"}
	outcomes := &fakeOutcomes{due: []*models.PosterOutcome{{TMDBID: 155}}}
	jobs := &fakeJobs{due: []*models.PosterJob{{MediaKey: "4"}, {MediaKey: "3"}}}
	items := &fakeItems{items: catalogue()}

	p := NewPlanner(cfg, outcomes, jobs, items, logging.Discard())
	due, err := p.Due(context.Background())
	require.NoError(t, err)

	var titles []string
	for _, d := range due {
		titles = append(titles, d.Title)
	}
	assert.Equal(t, []string{"The Dark Knight", "Home Video"}, titles)
	assert.Equal(t, []any{7, "textless", 100}, outcomes.args)
	assert.Equal(t, []string{"Movies"}, items.libs)
}

func TestPlanner_PostponesOutcomesMissingFromCatalogue(t *testing.T) {
	outcomes := &fakeOutcomes{due: []*models.PosterOutcome{{TMDBID: 603}, {TMDBID: 999}}}
	p := NewPlanner(config.Defaults(), outcomes, &fakeJobs{}, &fakeItems{items: catalogue()}, logging.Discard())

	due, err := p.Due(context.Background())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "The Matrix", due[0].Title)
	assert.Equal(t, []int{999}, outcomes.touched)
}

func TestPlanner_NothingDueSkipsCatalogue(t *testing.T) {
	items := &fakeItems{items: catalogue()}
	p := NewPlanner(config.Defaults(), &fakeOutcomes{}, &fakeJobs{}, items, logging.Discard())

	due, err := p.Due(context.Background())
	require.NoError(t, err)
	assert.Empty(t, due)
	assert.Zero(t, items.calls)
}

func TestPlanner_RespectsLimit(t *testing.T) {
	cfg := config.Defaults()
	cfg.RetryLimit = 1
	outcomes := &fakeOutcomes{due: []*models.PosterOutcome{{TMDBID: 603}, {TMDBID: 27205}}}
	p := NewPlanner(cfg, outcomes, &fakeJobs{}, &fakeItems{items: catalogue()}, logging.Discard())

	due, err := p.Due(context.Background())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "The Matrix", due[0].Title)
}

func TestPlanner_JobStoreError(t *testing.T) {
	p := NewPlanner(config.Defaults(), &fakeOutcomes{}, &fakeJobs{err: errors.New("locked")}, &fakeItems{}, logging.Discard())

	_, err := p.Due(context.Background())
	assert.ErrorContains(t, err, "locked")
}

func TestScheduler_RunOnce(t *testing.T) {
	outcomes := &fakeOutcomes{due: []*models.PosterOutcome{{TMDBID: 603}, {TMDBID: 155}}}
	p := NewPlanner(config.Defaults(), outcomes, &fakeJobs{}, &fakeItems{items: catalogue()}, logging.Discard())
	proc := &fakeProcessor{}
	s := New(p, proc, "0 3 * * *", logging.Discard())

	results, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Len(t, proc.got, 2)
}

func TestScheduler_StartRejectsBadSchedule(t *testing.T) {
	p := NewPlanner(config.Defaults(), &fakeOutcomes{}, &fakeJobs{}, &fakeItems{}, logging.Discard())
	s := New(p, &fakeProcessor{}, "every tuesday", logging.Discard())

	assert.Error(t, s.Start(context.Background()))
}

func TestScheduler_StartStop(t *testing.T) {
	p := NewPlanner(config.Defaults(), &fakeOutcomes{}, &fakeJobs{}, &fakeItems{}, logging.Discard())
	s := New(p, &fakeProcessor{}, "@every 1h", logging.Discard())

	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}
