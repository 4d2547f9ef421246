package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Reset removes every downloaded and decorated poster, clears the job store
// (and the outcome cache when clearOutcomes is set), then restores the
// catalogue's own posters in the named libraries. It returns the number of
// catalogue items reset.
func (w *Workflow) Reset(ctx context.Context, libraries []string, clearOutcomes bool) (int, error) {
	for _, dir := range w.posterDirs() {
		if err := os.RemoveAll(dir); err != nil {
			return 0, fmt.Errorf("remove %s: %w", dir, err)
		}
		w.logger.Info("deleted poster directory", "path", dir)
	}

	n, err := w.deps.Jobs.Clear(ctx)
	if err != nil {
		return 0, err
	}
	w.logger.Info("cleared job store", "rows", n)

	if clearOutcomes {
		n, err := w.deps.Outcomes.Clear(ctx)
		if err != nil {
			return 0, err
		}
		w.logger.Info("cleared outcome cache", "rows", n)
	}

	return w.deps.Catalogue.ResetPosters(ctx, libraries)
}

// posterDirs lists the local image directories: downloads, plus rendered
// overlays when they live elsewhere.
func (w *Workflow) posterDirs() []string {
	dirs := []string{w.outputDir}
	if w.renderDir != "" && filepath.Clean(w.renderDir) != filepath.Clean(w.outputDir) {
		dirs = append(dirs, w.renderDir)
	}
	return dirs
}
