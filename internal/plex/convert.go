package plex

import (
	"strconv"
	"strings"

	"github.com/JustinTDCT/Posteract/internal/models"
)

type guid struct {
	ID string `json:"id"`
}

type metadata struct {
	RatingKey string `json:"ratingKey"`
	Title     string `json:"title"`
	Type      string `json:"type"`
	Year      int    `json:"year"`
	Thumb     string `json:"thumb"`
	Guids     []guid `json:"Guid"`
}

// ExternalIDs holds the agent identifiers parsed from an item's guid list.
type ExternalIDs struct {
	TMDB *int
	IMDB string
	TVDB *int
}

// ParseGuids extracts tmdb://, imdb:// and tvdb:// identifiers. Malformed
// numeric ids are ignored.
func ParseGuids(ids []string) ExternalIDs {
	var out ExternalIDs
	for _, id := range ids {
		scheme, value, ok := strings.Cut(id, "://")
		if !ok || value == "" {
			continue
		}
		switch scheme {
		case "tmdb":
			if n, err := strconv.Atoi(value); err == nil {
				out.TMDB = &n
			}
		case "imdb":
			out.IMDB = value
		case "tvdb":
			if n, err := strconv.Atoi(value); err == nil {
				out.TVDB = &n
			}
		}
	}
	return out
}

func (m metadata) toMediaItem() (models.MediaItem, bool) {
	key, err := strconv.Atoi(m.RatingKey)
	if err != nil {
		return models.MediaItem{}, false
	}
	ids := make([]string, 0, len(m.Guids))
	for _, g := range m.Guids {
		ids = append(ids, g.ID)
	}
	ext := ParseGuids(ids)

	item := models.MediaItem{
		RatingKey:  &key,
		Title:      m.Title,
		TMDBID:     ext.TMDB,
		IMDBID:     ext.IMDB,
		TVDBID:     ext.TVDB,
		Kind:       models.ParseMediaKind(m.Type),
		PosterPath: m.Thumb,
	}
	if item.Title == "" {
		item.Title = "Unknown"
	}
	if m.Year > 0 {
		year := m.Year
		item.Year = &year
	}
	return item, true
}
