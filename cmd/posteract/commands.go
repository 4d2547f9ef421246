package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/JustinTDCT/Posteract/internal/models"
	"github.com/JustinTDCT/Posteract/internal/scheduler"
	"github.com/JustinTDCT/Posteract/internal/workflow"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"
)

// sampleMovies are processed by the sample command.
var sampleMovies = []struct {
	TMDBID int
	Title  string
}{
	{603, "The Matrix"},
	{27205, "Inception"},
	{155, "The Dark Knight"},
}

// ──────────────────── Processing ────────────────────

func itemAction(ctx context.Context, cmd *cli.Command) error {
	id := int(cmd.Int("id"))
	title := cmd.String("title")
	if id == 0 && title == "" {
		return errors.New("item: one of --id or --title is required")
	}

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var item models.MediaItem
	if id != 0 {
		item, err = a.plex.Item(ctx, id)
	} else {
		item, err = a.plex.FindMovieByTitle(ctx, title)
	}
	if err != nil {
		a.logger.Error("item not found in Plex", "id", id, "title", title, "error", err)
		return nil
	}
	report(a, a.workflow.ProcessItems(ctx, []models.MediaItem{item}))
	return nil
}

func allAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	libs := cmd.StringSlice("library")
	if len(libs) == 0 {
		libs = a.cfg.Libraries
	}
	items, err := a.plex.Items(ctx, libs)
	if err != nil {
		a.logger.Error("listing Plex items failed", "error", err)
		return nil
	}
	a.logger.Info("processing library items", "count", len(items))
	report(a, a.workflow.ProcessItems(ctx, items))
	return nil
}

func sampleAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	items := make([]models.MediaItem, 0, len(sampleMovies))
	for _, s := range sampleMovies {
		item, err := a.plex.FindMovieByTitle(ctx, s.Title)
		if err != nil {
			a.logger.Warn("sample movie not in Plex, uploading will fail", "title", s.Title, "error", err)
			tmdbID := s.TMDBID
			item = models.MediaItem{Title: s.Title, TMDBID: &tmdbID, Kind: models.MediaKindMovie}
		}
		items = append(items, item)
	}
	report(a, a.workflow.ProcessItems(ctx, items))
	return nil
}

func retryAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := scheduler.New(a.planner, a.workflow, a.cfg.RetrySchedule, a.logger).RunOnce(ctx)
	if err != nil {
		return err
	}
	report(a, results)
	return nil
}

func scheduleAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	s := scheduler.New(a.planner, a.workflow, a.cfg.RetrySchedule, a.logger)
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

func resetAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	libs := cmd.StringSlice("library")
	if len(libs) == 0 {
		libs = a.cfg.Libraries
	}
	n, err := a.workflow.Reset(ctx, libs, cmd.Bool("outcomes"))
	if err != nil {
		return err
	}
	a.logger.Info("reset complete", "items", n)
	return nil
}

func report(a *app, results []models.WorkflowResult) {
	for _, r := range results {
		if r.Success {
			a.logger.Info("poster updated", "item", r.Task.Item.String(), "mode", r.Task.Mode)
		} else {
			a.logger.Warn("poster not updated", "item", r.Task.Item.String(), "status", r.Task.Status, "reason", r.Message)
		}
	}
	ok, failed := workflow.Summary(results)
	a.logger.Info("run complete", "processed", len(results), "succeeded", ok, "failed", failed)
}

// ──────────────────── Listings ────────────────────

func retriesAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	items, err := a.planner.Due(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("No items due for retry.")
		return nil
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Rating Key", "Title", "TMDB", "Kind")
	for _, item := range items {
		table.Append(optional(item.RatingKey), item.Title, optional(item.TMDBID), string(item.Kind))
	}
	return table.Render()
}

func jobsAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	jobs, err := a.jobs.List(ctx, models.TaskStatus(cmd.String("status")), int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Media", "TMDB", "Type", "Status", "Retries", "Next Retry", "Last Error")
	for _, j := range jobs {
		next := ""
		if j.NextRetryAt != nil {
			next = j.NextRetryAt.Local().Format("2006-01-02 15:04")
		}
		table.Append(j.MediaKey, optional(j.TMDBID), deref(j.PosterType), string(j.Status),
			strconv.Itoa(j.RetryCount), next, deref(j.LastError))
	}
	return table.Render()
}

func librariesAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	libs, err := a.plex.Libraries(ctx)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Key", "Title", "Type")
	for _, l := range libs {
		table.Append(l.Key, l.Title, l.Type)
	}
	return table.Render()
}

func optional(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
