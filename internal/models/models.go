package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ──────────────────── Enums ────────────────────

type MediaKind string

const (
	MediaKindMovie MediaKind = "movie"
	MediaKindShow  MediaKind = "show"
)

// ParseMediaKind maps catalogue type names onto a MediaKind. Anything that is
// not a show is treated as a movie.
func ParseMediaKind(s string) MediaKind {
	switch s {
	case "show", "tv", "tv_shows", "series":
		return MediaKindShow
	default:
		return MediaKindMovie
	}
}

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskSelected   TaskStatus = "selected"
	TaskNotFound   TaskStatus = "not_found"
	TaskDownloaded TaskStatus = "downloaded"
	TaskUploaded   TaskStatus = "uploaded"
	TaskFailed     TaskStatus = "failed"
)

// Retryable reports whether entering this status schedules a retry.
func (s TaskStatus) Retryable() bool {
	return s == TaskFailed || s == TaskNotFound
}

// ──────────────────── Media Item ────────────────────

// MediaItem is a catalogue entry under consideration for one workflow pass.
type MediaItem struct {
	RatingKey  *int      `json:"rating_key,omitempty"`
	Title      string    `json:"title"`
	Year       *int      `json:"year,omitempty"`
	TMDBID     *int      `json:"tmdb_id,omitempty"`
	IMDBID     string    `json:"imdb_id,omitempty"`
	TVDBID     *int      `json:"tvdb_id,omitempty"`
	Kind       MediaKind `json:"kind"`
	PosterPath string    `json:"poster_path,omitempty"`
}

// Subject returns the metadata-provider lookup key for the item, or false when
// the item carries no TMDB id.
func (m MediaItem) Subject() (Subject, bool) {
	if m.TMDBID == nil {
		return Subject{}, false
	}
	s := Subject{TMDBID: *m.TMDBID, Kind: m.Kind}
	if m.TVDBID != nil {
		s.TVDBID = *m.TVDBID
	}
	return s, true
}

// MediaKey is the job-state key: rating key, then TMDB id, then title.
func (m MediaItem) MediaKey() string {
	if m.RatingKey != nil {
		return strconv.Itoa(*m.RatingKey)
	}
	if m.TMDBID != nil {
		return fmt.Sprintf("tmdb-%d", *m.TMDBID)
	}
	return m.Title
}

func (m MediaItem) String() string {
	if m.TMDBID != nil {
		return fmt.Sprintf("%s (tmdb %d)", m.Title, *m.TMDBID)
	}
	return m.Title
}

// Subject identifies a title at the metadata providers.
type Subject struct {
	TMDBID int
	TVDBID int
	Kind   MediaKind
}

// ──────────────────── Posters ────────────────────

type PosterCandidate struct {
	URL  string `json:"url"`
	Mode string `json:"mode"`
}

// PosterTask is the mutable record of one workflow run for one item.
type PosterTask struct {
	Item           MediaItem  `json:"item"`
	ChosenURL      string     `json:"chosen_url,omitempty"`
	Mode           string     `json:"mode,omitempty"`
	DownloadedFile string     `json:"downloaded_file,omitempty"`
	OutputFile     string     `json:"output_file,omitempty"`
	Status         TaskStatus `json:"status"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func NewPosterTask(item MediaItem) *PosterTask {
	return &PosterTask{Item: item, Status: TaskPending, UpdatedAt: time.Now()}
}

func (t *PosterTask) SetStatus(s TaskStatus) {
	t.Status = s
	t.UpdatedAt = time.Now()
}

// ImagePath is the file that should be published: the decorated file when
// present, otherwise the download.
func (t *PosterTask) ImagePath() string {
	if t.OutputFile != "" {
		return t.OutputFile
	}
	return t.DownloadedFile
}

type WorkflowResult struct {
	Task    *PosterTask `json:"task"`
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
}

// ──────────────────── Poster Outcome Cache ────────────────────

type PosterOutcome struct {
	TMDBID      int       `json:"tmdb_id" db:"tmdb_id"`
	MediaType   MediaKind `json:"media_type" db:"media_type"`
	WantedType  string    `json:"wanted_type" db:"wanted_type"`
	ActualType  string    `json:"actual_type" db:"actual_type"`
	PosterURL   string    `json:"poster_url" db:"poster_url"`
	LastChecked time.Time `json:"last_checked" db:"last_checked"`
}

// ──────────────────── Poster Job State ────────────────────

type PosterJob struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	MediaKey      string     `json:"media_id" db:"media_id"`
	TMDBID        *int       `json:"tmdb_id,omitempty" db:"tmdb_id"`
	SourceUsed    *string    `json:"source_used,omitempty" db:"source_used"`
	PosterType    *string    `json:"poster_type,omitempty" db:"poster_type"`
	Status        TaskStatus `json:"status" db:"status"`
	RetryCount    int        `json:"retry_count" db:"retry_count"`
	LastError     *string    `json:"last_error,omitempty" db:"last_error"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty" db:"last_attempt_at"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty" db:"next_retry_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// SourceFromMode derives the provider name recorded in the job store from a
// selection-mode tag.
func SourceFromMode(mode string) *string {
	if mode == "" {
		return nil
	}
	src := "tmdb"
	if strings.HasPrefix(mode, "fanart") {
		src = "fanart"
	}
	return &src
}
