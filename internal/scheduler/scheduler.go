package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JustinTDCT/Posteract/internal/models"
	"github.com/robfig/cron/v3"
)

type Processor interface {
	ProcessItems(ctx context.Context, items []models.MediaItem) []models.WorkflowResult
}

// Scheduler runs the retry planner on a cron schedule and feeds due items to
// the workflow.
type Scheduler struct {
	planner   *Planner
	processor Processor
	schedule  string
	cron      *cron.Cron
	logger    *slog.Logger
}

func New(planner *Planner, processor Processor, schedule string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		planner:   planner,
		processor: processor,
		schedule:  schedule,
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:    logger.With("component", "scheduler"),
	}
}

// RunOnce processes every item that is currently due.
func (s *Scheduler) RunOnce(ctx context.Context) ([]models.WorkflowResult, error) {
	items, err := s.planner.Due(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	results := s.processor.ProcessItems(ctx, items)
	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
		}
	}
	s.logger.Info("retry pass complete", "processed", len(results), "succeeded", ok)
	return results, nil
}

// Start registers the retry pass and starts the cron loop. Runs use ctx, so
// cancelling it aborts a pass in progress.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("retry pass failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("register retry schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info("retry scheduler started", "schedule", s.schedule)
	return nil
}

// Stop halts the cron loop and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("retry scheduler stopped")
}
