package repository

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned by Get lookups that match no row.
var ErrNotFound = errors.New("not found")

// Timestamps are stored as UTC text in SQLite's CURRENT_TIMESTAMP layout so that
// lexical and chronological order agree on every driver.
const timeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		// tolerate rows written by other tools in RFC 3339
		return time.Parse(time.RFC3339, s)
	}
	return t, nil
}

func nullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullInt(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullablePtr[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
