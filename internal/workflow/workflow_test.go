package workflow

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JustinTDCT/Posteract/internal/config"
	"github.com/JustinTDCT/Posteract/internal/db"
	"github.com/JustinTDCT/Posteract/internal/httputil"
	"github.com/JustinTDCT/Posteract/internal/logging"
	"github.com/JustinTDCT/Posteract/internal/metadata"
	"github.com/JustinTDCT/Posteract/internal/models"
	"github.com/JustinTDCT/Posteract/internal/repository"
	"github.com/JustinTDCT/Posteract/internal/selection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ──────────────────── Fixtures ────────────────────

type stores struct {
	jobs     *repository.JobRepository
	outcomes *repository.OutcomeRepository
}

func newStores(t *testing.T) stores {
	t.Helper()
	d, err := db.Connect(&config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "test.sqlite")})
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	require.NoError(t, d.Migrate(context.Background()))
	return stores{
		jobs:     repository.NewJobRepository(d, 6*time.Hour),
		outcomes: repository.NewOutcomeRepository(d),
	}
}

type resolverFunc func(models.MediaItem) (models.PosterCandidate, bool)

func (f resolverFunc) Resolve(_ context.Context, item models.MediaItem, _ []string) (models.PosterCandidate, bool) {
	return f(item)
}

func always(mode string) resolverFunc {
	return func(models.MediaItem) (models.PosterCandidate, bool) {
		return models.PosterCandidate{URL: "https://img.example/" + mode + ".jpg", Mode: mode}, true
	}
}

type fakeDownloader struct{ err error }

func (d *fakeDownloader) Download(_ context.Context, _ string, target string) error {
	if d.err != nil {
		return d.err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return os.WriteFile(target, []byte("poster"), 0o644)
}

type fakeCatalogue struct {
	err       error
	uploads   []string
	resetLibs []string
	resetN    int
}

func (c *fakeCatalogue) UploadPoster(_ context.Context, _ models.MediaItem, path string) error {
	if c.err != nil {
		return c.err
	}
	c.uploads = append(c.uploads, path)
	return nil
}

func (c *fakeCatalogue) ResetPosters(_ context.Context, libs []string) (int, error) {
	c.resetLibs = libs
	return c.resetN, nil
}

type fakeDecorator struct {
	err   error
	calls int
}

func (d *fakeDecorator) Apply(posterPath, _ string) (string, error) {
	d.calls++
	if d.err != nil {
		return "", d.err
	}
	return posterPath + ".decorated.png", nil
}

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.OutputDirectory = filepath.Join(dir, "posters")
	cfg.Overlays.OutputDir = filepath.Join(dir, "rendered")
	return cfg
}

func intPtr(i int) *int { return &i }

func matrix() models.MediaItem {
	return models.MediaItem{RatingKey: intPtr(101), Title: "The Matrix", TMDBID: intPtr(603), Kind: models.MediaKindMovie}
}

// ──────────────────── ProcessItem ────────────────────

func TestProcessItem_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/3/movie/603/images":
			io.WriteString(w, `{"posters":[
				{"file_path":"/english.jpg","iso_639_1":"en","vote_average":7.0},
				{"file_path":"/clean.jpg","iso_639_1":null,"vote_average":5.0}]}`)
		case "/img/clean.jpg":
			w.Write([]byte("jpeg-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := newStores(t)
	cfg := testConfig(t)
	tmdb := metadata.NewTMDBProvider("key", logging.Discard(),
		metadata.WithBaseURL(srv.URL), metadata.WithImageBase(srv.URL+"/img"))
	cat := &fakeCatalogue{}
	wf := New(cfg, Deps{
		Resolver:   selection.NewResolver(tmdb, nil, logging.Discard()),
		Downloader: httputil.NewDownloader(logging.Discard()),
		Catalogue:  cat,
		Jobs:       s.jobs,
		Outcomes:   s.outcomes,
	}, logging.Discard())

	ctx := context.Background()
	res, err := wf.ProcessItem(ctx, matrix())
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, models.TaskUploaded, res.Task.Status)
	assert.Equal(t, "textless", res.Task.Mode)
	assert.Equal(t, srv.URL+"/img/clean.jpg", res.Task.ChosenURL)

	want := filepath.Join(cfg.OutputDirectory, "603_textless.jpg")
	assert.Equal(t, []string{want}, cat.uploads)
	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	outcome, err := s.outcomes.Get(ctx, 603)
	require.NoError(t, err)
	assert.Equal(t, "textless", outcome.WantedType)
	assert.Equal(t, "textless", outcome.ActualType)
	assert.Equal(t, models.MediaKindMovie, outcome.MediaType)

	job, err := s.jobs.Get(ctx, "101")
	require.NoError(t, err)
	assert.Equal(t, models.TaskUploaded, job.Status)
	assert.Equal(t, 0, job.RetryCount)
	assert.Nil(t, job.NextRetryAt)
	require.NotNil(t, job.SourceUsed)
	assert.Equal(t, "tmdb", *job.SourceUsed)
}

func TestProcessItem_NoSubject(t *testing.T) {
	s := newStores(t)
	cat := &fakeCatalogue{}
	wf := New(testConfig(t), Deps{
		Resolver:   selection.NewResolver(nil, nil, logging.Discard()),
		Downloader: &fakeDownloader{},
		Catalogue:  cat,
		Jobs:       s.jobs,
		Outcomes:   s.outcomes,
	}, logging.Discard())

	ctx := context.Background()
	res, err := wf.ProcessItem(ctx, models.MediaItem{Title: "Home Video"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "No poster available", res.Message)
	assert.Equal(t, models.TaskNotFound, res.Task.Status)
	assert.Empty(t, cat.uploads)

	job, err := s.jobs.Get(ctx, "Home Video")
	require.NoError(t, err)
	assert.Equal(t, models.TaskNotFound, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	require.NotNil(t, job.LastError)
	assert.Equal(t, "No poster available", *job.LastError)

	n, err := s.outcomes.Clear(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessItem_UploadFailure(t *testing.T) {
	s := newStores(t)
	wf := New(testConfig(t), Deps{
		Resolver:   always("textless"),
		Downloader: &fakeDownloader{},
		Catalogue:  &fakeCatalogue{err: errors.New("plex unreachable")},
		Jobs:       s.jobs,
		Outcomes:   s.outcomes,
	}, logging.Discard())

	ctx := context.Background()
	res, err := wf.ProcessItem(ctx, matrix())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Upload to Plex failed", res.Message)
	assert.Equal(t, models.TaskFailed, res.Task.Status)

	job, err := s.jobs.Get(ctx, "101")
	require.NoError(t, err)
	assert.Equal(t, models.TaskFailed, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	require.NotNil(t, job.NextRetryAt)
	assert.WithinDuration(t, time.Now().Add(6*time.Hour), *job.NextRetryAt, 5*time.Second)

	_, err = s.outcomes.Get(ctx, 603)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestProcessItem_DownloadFailure(t *testing.T) {
	s := newStores(t)
	cat := &fakeCatalogue{}
	wf := New(testConfig(t), Deps{
		Resolver:   always("tmdb_en"),
		Downloader: &fakeDownloader{err: errors.New("connection reset")},
		Catalogue:  cat,
		Jobs:       s.jobs,
		Outcomes:   s.outcomes,
	}, logging.Discard())

	ctx := context.Background()
	res, err := wf.ProcessItem(ctx, matrix())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "connection reset", res.Message)
	assert.Empty(t, cat.uploads)

	job, err := s.jobs.Get(ctx, "101")
	require.NoError(t, err)
	assert.Equal(t, models.TaskFailed, job.Status)
	require.NotNil(t, job.LastError)
	assert.Equal(t, "connection reset", *job.LastError)
}

func TestProcessItem_Overlay(t *testing.T) {
	tests := []struct {
		name      string
		enabled   bool
		decorator *fakeDecorator
		wantCalls int
		decorated bool
	}{
		{name: "applied", enabled: true, decorator: &fakeDecorator{}, wantCalls: 1, decorated: true},
		{name: "failure falls back", enabled: true, decorator: &fakeDecorator{err: errors.New("bad png")}, wantCalls: 1},
		{name: "disabled", enabled: false, decorator: &fakeDecorator{}, wantCalls: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStores(t)
			cfg := testConfig(t)
			cfg.Overlays.Enabled = tt.enabled
			cat := &fakeCatalogue{}
			wf := New(cfg, Deps{
				Resolver:   always("textless"),
				Downloader: &fakeDownloader{},
				Catalogue:  cat,
				Decorator:  tt.decorator,
				Jobs:       s.jobs,
				Outcomes:   s.outcomes,
			}, logging.Discard())

			res, err := wf.ProcessItem(context.Background(), matrix())
			require.NoError(t, err)
			assert.True(t, res.Success)
			assert.Equal(t, tt.wantCalls, tt.decorator.calls)

			downloaded := filepath.Join(cfg.OutputDirectory, "603_textless.jpg")
			want := downloaded
			if tt.decorated {
				want = downloaded + ".decorated.png"
			}
			assert.Equal(t, []string{want}, cat.uploads)
			assert.Equal(t, downloaded, res.Task.DownloadedFile)
		})
	}
}

func TestPosterFilename(t *testing.T) {
	tests := []struct {
		item models.MediaItem
		mode string
		want string
	}{
		{matrix(), "textless", "603_textless.jpg"},
		{models.MediaItem{RatingKey: intPtr(7), Title: "x"}, "tmdb_en", "7_tmdb_en.jpg"},
		{models.MediaItem{Title: "AC/DC Live"}, "fanart", "AC_DC Live_fanart.jpg"},
		{models.MediaItem{Title: "Plain"}, "", "Plain_poster.jpg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, posterFilename(tt.item, tt.mode))
	}
}
