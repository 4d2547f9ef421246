package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/JustinTDCT/Posteract/internal/config"
	"github.com/JustinTDCT/Posteract/internal/models"
)

const (
	msgNoPoster     = "No poster available"
	msgUploadFailed = "Upload to Plex failed"
)

// ──────────────────── Collaborators ────────────────────

type Resolver interface {
	Resolve(ctx context.Context, item models.MediaItem, prefs []string) (models.PosterCandidate, bool)
}

type Downloader interface {
	Download(ctx context.Context, url, target string) error
}

// Catalogue is the media server posters are published to.
type Catalogue interface {
	UploadPoster(ctx context.Context, item models.MediaItem, path string) error
	ResetPosters(ctx context.Context, libraries []string) (int, error)
}

type Decorator interface {
	Apply(posterPath, overlayFilename string) (string, error)
}

type JobStore interface {
	Upsert(ctx context.Context, job *models.PosterJob) error
	UpdateStatus(ctx context.Context, mediaKey string, status models.TaskStatus, errMsg string, retryIn time.Duration) error
	MarkUploaded(ctx context.Context, mediaKey string) error
	Clear(ctx context.Context) (int64, error)
}

type OutcomeStore interface {
	Save(ctx context.Context, o *models.PosterOutcome) error
	Clear(ctx context.Context) (int64, error)
}

// Deps bundles the collaborators of a Workflow. Decorator may be nil.
type Deps struct {
	Resolver   Resolver
	Downloader Downloader
	Catalogue  Catalogue
	Decorator  Decorator
	Jobs       JobStore
	Outcomes   OutcomeStore
}

// ──────────────────── Workflow ────────────────────

// Workflow drives one item at a time through selection, download, optional
// overlay, and publishing, recording every transition in the job store.
type Workflow struct {
	deps            Deps
	prefs           []string
	wanted          string
	outputDir       string
	renderDir       string
	overlayFilename string
	logger          *slog.Logger
}

func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Workflow {
	if !cfg.Overlays.Enabled {
		deps.Decorator = nil
	}
	return &Workflow{
		deps:            deps,
		prefs:           cfg.PosterPreferences,
		wanted:          cfg.WantedType(),
		outputDir:       cfg.OutputDirectory,
		renderDir:       cfg.Overlays.OutputDir,
		overlayFilename: cfg.Overlays.PosterFilename,
		logger:          logger.With("component", "workflow"),
	}
}

// ProcessItem runs the full pipeline for item. Expected failures (no poster,
// download or upload errors) come back as an unsuccessful result with a nil
// error; a non-nil error means the job store could not be written.
func (w *Workflow) ProcessItem(ctx context.Context, item models.MediaItem) (models.WorkflowResult, error) {
	w.logger.Info("processing item", "item", item.String())
	task := models.NewPosterTask(item)
	key := item.MediaKey()

	candidate, found := w.deps.Resolver.Resolve(ctx, item, w.prefs)
	if found {
		task.ChosenURL = candidate.URL
		task.Mode = candidate.Mode
		task.SetStatus(models.TaskSelected)
	} else {
		task.SetStatus(models.TaskNotFound)
	}

	job := &models.PosterJob{
		MediaKey:   key,
		TMDBID:     item.TMDBID,
		SourceUsed: models.SourceFromMode(task.Mode),
		Status:     task.Status,
	}
	if task.Mode != "" {
		mode := task.Mode
		job.PosterType = &mode
	}
	if err := w.deps.Jobs.Upsert(ctx, job); err != nil {
		return failed(task, err.Error()), err
	}

	if !found {
		w.logger.Warn(msgNoPoster, "title", item.Title)
		if err := w.deps.Jobs.UpdateStatus(ctx, key, models.TaskNotFound, msgNoPoster, 0); err != nil {
			return failed(task, msgNoPoster), err
		}
		return failed(task, msgNoPoster), nil
	}

	target := filepath.Join(w.outputDir, posterFilename(item, task.Mode))
	if err := w.deps.Downloader.Download(ctx, task.ChosenURL, target); err != nil {
		w.logger.Error("download failed", "title", item.Title, "url", task.ChosenURL, "error", err)
		task.SetStatus(models.TaskFailed)
		if serr := w.deps.Jobs.UpdateStatus(ctx, key, models.TaskFailed, err.Error(), 0); serr != nil {
			return failed(task, err.Error()), serr
		}
		return failed(task, err.Error()), nil
	}
	task.DownloadedFile = target
	task.SetStatus(models.TaskDownloaded)
	if err := w.deps.Jobs.UpdateStatus(ctx, key, models.TaskDownloaded, "", 0); err != nil {
		return failed(task, err.Error()), err
	}

	task.OutputFile = task.DownloadedFile
	if w.deps.Decorator != nil {
		out, err := w.deps.Decorator.Apply(task.DownloadedFile, w.overlayFilename)
		if err != nil {
			w.logger.Warn("overlay application failed; continuing with downloaded file", "title", item.Title, "error", err)
		} else {
			task.OutputFile = out
		}
	}

	if err := w.deps.Catalogue.UploadPoster(ctx, item, task.ImagePath()); err != nil {
		w.logger.Error(msgUploadFailed, "title", item.Title, "error", err)
		task.SetStatus(models.TaskFailed)
		if serr := w.deps.Jobs.UpdateStatus(ctx, key, models.TaskFailed, msgUploadFailed, 0); serr != nil {
			return failed(task, msgUploadFailed), serr
		}
		return failed(task, msgUploadFailed), nil
	}

	task.SetStatus(models.TaskUploaded)
	if err := w.deps.Jobs.MarkUploaded(ctx, key); err != nil {
		return failed(task, err.Error()), err
	}
	if item.TMDBID != nil {
		actual := task.Mode
		if actual == "" {
			actual = "unknown"
		}
		outcome := &models.PosterOutcome{
			TMDBID:     *item.TMDBID,
			MediaType:  item.Kind,
			WantedType: w.wanted,
			ActualType: actual,
			PosterURL:  task.ChosenURL,
		}
		if err := w.deps.Outcomes.Save(ctx, outcome); err != nil {
			return failed(task, err.Error()), err
		}
	}

	w.logger.Info("completed workflow", "title", item.Title, "mode", task.Mode)
	return models.WorkflowResult{Task: task, Success: true}, nil
}

func failed(task *models.PosterTask, msg string) models.WorkflowResult {
	return models.WorkflowResult{Task: task, Success: false, Message: msg}
}

// posterFilename builds <tmdb|ratingKey|title>_<mode>.jpg.
func posterFilename(item models.MediaItem, mode string) string {
	var base string
	switch {
	case item.TMDBID != nil:
		base = strconv.Itoa(*item.TMDBID)
	case item.RatingKey != nil:
		base = strconv.Itoa(*item.RatingKey)
	default:
		base = item.Title
	}
	if mode == "" {
		mode = "poster"
	}
	return strings.ReplaceAll(fmt.Sprintf("%s_%s", base, mode), "/", "_") + ".jpg"
}
