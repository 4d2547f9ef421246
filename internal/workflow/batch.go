package workflow

import (
	"context"
	"fmt"

	"github.com/JustinTDCT/Posteract/internal/models"
)

// ProcessItems runs ProcessItem over items in order and always returns one
// result per item. Store errors and panics from a single item become a failed
// result for that item; cancellation marks every remaining item failed.
func (w *Workflow) ProcessItems(ctx context.Context, items []models.MediaItem) []models.WorkflowResult {
	results := make([]models.WorkflowResult, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			task := models.NewPosterTask(item)
			task.SetStatus(models.TaskFailed)
			results = append(results, failed(task, err.Error()))
			continue
		}
		results = append(results, w.processSafely(ctx, item))
	}
	return results
}

func (w *Workflow) processSafely(ctx context.Context, item models.MediaItem) (result models.WorkflowResult) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("unhandled error processing item", "title", item.Title, "panic", r)
			task := models.NewPosterTask(item)
			task.SetStatus(models.TaskFailed)
			result = failed(task, fmt.Sprint(r))
		}
	}()

	res, err := w.ProcessItem(ctx, item)
	if err != nil {
		w.logger.Error("unhandled error processing item", "title", item.Title, "error", err)
		task := res.Task
		if task == nil {
			task = models.NewPosterTask(item)
		}
		task.SetStatus(models.TaskFailed)
		return failed(task, err.Error())
	}
	return res
}

// Summary counts successes in a batch.
func Summary(results []models.WorkflowResult) (ok, failedCount int) {
	for _, r := range results {
		if r.Success {
			ok++
		} else {
			failedCount++
		}
	}
	return ok, failedCount
}
