package selection

import (
	"context"
	"log/slog"

	"github.com/JustinTDCT/Posteract/internal/metadata"
	"github.com/JustinTDCT/Posteract/internal/models"
)

// Resolver walks an ordered list of selection modes and returns the first
// poster found. "fanart" entries go to the secondary provider, every other
// mode to the primary one.
type Resolver struct {
	primary   metadata.Provider
	secondary metadata.Provider
	logger    *slog.Logger
}

// NewResolver wires the two providers. secondary may be nil, in which case
// fanart preferences are skipped.
func NewResolver(primary, secondary metadata.Provider, logger *slog.Logger) *Resolver {
	return &Resolver{primary: primary, secondary: secondary, logger: logger.With("component", "resolver")}
}

// Resolve returns the first candidate across prefs, or false when the item has
// no TMDB id or no preference yields a poster.
func (r *Resolver) Resolve(ctx context.Context, item models.MediaItem, prefs []string) (models.PosterCandidate, bool) {
	subject, ok := item.Subject()
	if !ok {
		r.logger.Warn("item has no TMDB id, cannot fetch posters", "title", item.Title)
		return models.PosterCandidate{}, false
	}

	for _, pref := range prefs {
		mode, err := metadata.ParseMode(pref)
		if err != nil {
			r.logger.Warn("skipping poster preference", "preference", pref, "error", err)
			continue
		}

		provider := r.primary
		if mode.Kind == metadata.ModeFanart {
			provider = r.secondary
		}
		if provider == nil {
			continue
		}

		if c, ok := provider.Fetch(ctx, subject, mode); ok {
			r.logger.Info("poster selected", "title", item.Title, "tmdb_id", subject.TMDBID,
				"provider", provider.Name(), "mode", c.Mode)
			return c, true
		}
	}

	r.logger.Warn("no poster found after checking all preferences", "title", item.Title, "tmdb_id", subject.TMDBID)
	return models.PosterCandidate{}, false
}
