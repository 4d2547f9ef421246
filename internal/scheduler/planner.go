package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JustinTDCT/Posteract/internal/config"
	"github.com/JustinTDCT/Posteract/internal/models"
)

type OutcomeSource interface {
	DueRetries(ctx context.Context, retryAfterDays int, wantedType string, limit int) ([]*models.PosterOutcome, error)
	MarkCheckedNow(ctx context.Context, tmdbID int) error
}

type JobSource interface {
	DueRetries(ctx context.Context, limit int) ([]*models.PosterJob, error)
}

type ItemSource interface {
	Items(ctx context.Context, libraries []string) ([]models.MediaItem, error)
}

// Planner decides which catalogue items are due for another attempt: items
// whose cached outcome missed the wanted poster type long enough ago, and
// items whose job failed and whose retry timer has expired.
type Planner struct {
	outcomes  OutcomeSource
	jobs      JobSource
	items     ItemSource
	libraries []string
	days      int
	wanted    string
	limit     int
	logger    *slog.Logger
}

func NewPlanner(cfg *config.Config, outcomes OutcomeSource, jobs JobSource, items ItemSource, logger *slog.Logger) *Planner {
	limit := cfg.RetryLimit
	if limit <= 0 {
		limit = 100
	}
	return &Planner{
		outcomes:  outcomes,
		jobs:      jobs,
		items:     items,
		libraries: cfg.Libraries,
		days:      cfg.RetryAfterDays,
		wanted:    cfg.WantedType(),
		limit:     limit,
		logger:    logger.With("component", "planner"),
	}
}

// Due returns the catalogue items to retry, in catalogue order, at most the
// configured limit. The catalogue is only listed when something is due.
// Due outcomes whose title is no longer in the catalogue scope are marked
// checked so they wait another retry period instead of coming back each pass.
func (p *Planner) Due(ctx context.Context) ([]models.MediaItem, error) {
	outcomes, err := p.outcomes.DueRetries(ctx, p.days, p.wanted, p.limit)
	if err != nil {
		return nil, fmt.Errorf("outcome retries: %w", err)
	}
	jobs, err := p.jobs.DueRetries(ctx, p.limit)
	if err != nil {
		return nil, fmt.Errorf("job retries: %w", err)
	}
	if len(outcomes) == 0 && len(jobs) == 0 {
		p.logger.Info("no items due for retry", "wanted", p.wanted)
		return nil, nil
	}

	byTMDB := make(map[int]bool, len(outcomes))
	for _, o := range outcomes {
		byTMDB[o.TMDBID] = true
	}
	byKey := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		byKey[j.MediaKey] = true
	}

	items, err := p.items.Items(ctx, p.libraries)
	if err != nil {
		return nil, fmt.Errorf("list catalogue: %w", err)
	}
	var due []models.MediaItem
	present := make(map[int]bool, len(byTMDB))
	for _, item := range items {
		if item.TMDBID != nil && byTMDB[*item.TMDBID] {
			present[*item.TMDBID] = true
		}
		if len(due) >= p.limit {
			continue
		}
		if byKey[item.MediaKey()] || (item.TMDBID != nil && byTMDB[*item.TMDBID]) {
			due = append(due, item)
		}
	}

	for _, o := range outcomes {
		if present[o.TMDBID] {
			continue
		}
		if err := p.outcomes.MarkCheckedNow(ctx, o.TMDBID); err != nil {
			return nil, fmt.Errorf("touch outcome %d: %w", o.TMDBID, err)
		}
		p.logger.Info("due outcome not in catalogue, postponed", "tmdb_id", o.TMDBID)
	}

	p.logger.Info("items due for retry", "outcomes", len(outcomes), "jobs", len(jobs), "matched", len(due))
	return due, nil
}
