package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/JustinTDCT/Posteract/internal/db"
	"github.com/JustinTDCT/Posteract/internal/models"
)

// OutcomeRepository records, per TMDB id, which poster type was wanted and
// which one was actually published.
type OutcomeRepository struct {
	db  *db.DB
	now func() time.Time
}

func NewOutcomeRepository(d *db.DB) *OutcomeRepository {
	return &OutcomeRepository{db: d, now: time.Now}
}

const outcomeColumns = `tmdb_id, media_type, wanted_type, actual_type, poster_url, last_checked`

// Save upserts the outcome for o.TMDBID and stamps last_checked with now.
func (r *OutcomeRepository) Save(ctx context.Context, o *models.PosterOutcome) error {
	o.LastChecked = r.now().UTC().Truncate(time.Second)
	query := r.db.Rebind(`INSERT INTO poster_cache (` + outcomeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tmdb_id) DO UPDATE SET
			media_type = excluded.media_type,
			wanted_type = excluded.wanted_type,
			actual_type = excluded.actual_type,
			poster_url = excluded.poster_url,
			last_checked = excluded.last_checked`)
	_, err := r.db.ExecContext(ctx, query, o.TMDBID, string(o.MediaType), o.WantedType, o.ActualType,
		o.PosterURL, formatTime(o.LastChecked))
	return err
}

func (r *OutcomeRepository) Get(ctx context.Context, tmdbID int) (*models.PosterOutcome, error) {
	row := r.db.QueryRowContext(ctx,
		r.db.Rebind(`SELECT `+outcomeColumns+` FROM poster_cache WHERE tmdb_id = ?`), tmdbID)
	o, err := scanOutcome(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return o, err
}

func (r *OutcomeRepository) MarkCheckedNow(ctx context.Context, tmdbID int) error {
	_, err := r.db.ExecContext(ctx,
		r.db.Rebind(`UPDATE poster_cache SET last_checked = ? WHERE tmdb_id = ?`),
		formatTime(r.now()), tmdbID)
	return err
}

// NeedsRetry reports whether tmdbID has a recorded outcome that missed
// wantedType and was last checked at least retryAfterDays ago.
func (r *OutcomeRepository) NeedsRetry(ctx context.Context, tmdbID, retryAfterDays int, wantedType string) (bool, error) {
	o, err := r.Get(ctx, tmdbID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if o.ActualType == wantedType {
		return false, nil
	}
	return r.now().Sub(o.LastChecked) >= time.Duration(retryAfterDays)*24*time.Hour, nil
}

// DueRetries lists outcomes that missed wantedType and are older than
// retryAfterDays, oldest first.
func (r *OutcomeRepository) DueRetries(ctx context.Context, retryAfterDays int, wantedType string, limit int) ([]*models.PosterOutcome, error) {
	cutoff := r.now().AddDate(0, 0, -retryAfterDays)
	query := r.db.Rebind(`SELECT ` + outcomeColumns + ` FROM poster_cache
		WHERE actual_type <> ? AND last_checked <= ?
		ORDER BY last_checked ASC, tmdb_id ASC
		LIMIT ?`)
	rows, err := r.db.QueryContext(ctx, query, wantedType, formatTime(cutoff), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.PosterOutcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Clear removes every cached outcome and returns the number of rows deleted.
func (r *OutcomeRepository) Clear(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM poster_cache`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutcome(s rowScanner) (*models.PosterOutcome, error) {
	var (
		o         models.PosterOutcome
		mediaType string
		checked   string
	)
	if err := s.Scan(&o.TMDBID, &mediaType, &o.WantedType, &o.ActualType, &o.PosterURL, &checked); err != nil {
		return nil, err
	}
	o.MediaType = models.MediaKind(mediaType)
	t, err := parseTime(checked)
	if err != nil {
		return nil, err
	}
	o.LastChecked = t
	return &o, nil
}
