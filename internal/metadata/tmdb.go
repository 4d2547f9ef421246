package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/JustinTDCT/Posteract/internal/models"
	"github.com/patrickmn/go-cache"
)

const (
	tmdbAPIBase   = "https://api.themoviedb.org"
	tmdbImageBase = "https://image.tmdb.org/t/p/original"
)

// TMDBProvider is the primary poster source. Image lists are cached per
// subject so that walking several modes for one item costs a single request.
type TMDBProvider struct {
	apiKey string
	opts   options
	images *cache.Cache
	logger *slog.Logger
}

func NewTMDBProvider(apiKey string, logger *slog.Logger, opts ...Option) *TMDBProvider {
	o := buildOptions(tmdbAPIBase, 4, opts)
	if o.imageBase == "" {
		o.imageBase = tmdbImageBase
	}
	return &TMDBProvider{
		apiKey: apiKey,
		opts:   o,
		images: cache.New(30*time.Minute, time.Hour),
		logger: logger.With("component", "tmdb"),
	}
}

func (p *TMDBProvider) Name() string { return "tmdb" }

func (p *TMDBProvider) Fetch(ctx context.Context, subject models.Subject, mode Mode) (models.PosterCandidate, bool) {
	images, err := p.Posters(ctx, subject)
	if err != nil {
		p.logger.Error("fetching TMDB images failed", "tmdb_id", subject.TMDBID, "error", err)
		return models.PosterCandidate{}, false
	}
	img, ok := pick(images, mode)
	if !ok {
		return models.PosterCandidate{}, false
	}
	return models.PosterCandidate{URL: img.URL, Mode: mode.Tag}, true
}

type tmdbImagesResponse struct {
	Posters []struct {
		FilePath    string  `json:"file_path"`
		ISO6391     *string `json:"iso_639_1"`
		VoteAverage float64 `json:"vote_average"`
		Width       int     `json:"width"`
		Height      int     `json:"height"`
	} `json:"posters"`
}

// Posters lists every poster TMDB has for the subject, in TMDB's order.
func (p *TMDBProvider) Posters(ctx context.Context, subject models.Subject) ([]Image, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("TMDB API key not configured")
	}

	kind := "movie"
	if subject.Kind == models.MediaKindShow {
		kind = "tv"
	}
	key := fmt.Sprintf("%s:%d", kind, subject.TMDBID)
	if cached, ok := p.images.Get(key); ok {
		return cached.([]Image), nil
	}

	if err := p.opts.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	reqURL := fmt.Sprintf("%s/3/%s/%d/images?api_key=%s", p.opts.baseURL, kind, subject.TMDBID, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.opts.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		p.images.SetDefault(key, []Image(nil))
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("TMDB images request returned %d", resp.StatusCode)
	}

	var result tmdbImagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode TMDB images: %w", err)
	}

	images := make([]Image, 0, len(result.Posters))
	for _, poster := range result.Posters {
		img := Image{Language: poster.ISO6391, Popularity: poster.VoteAverage}
		if poster.FilePath != "" {
			img.URL = p.opts.imageBase + poster.FilePath
		}
		images = append(images, img)
	}
	p.images.SetDefault(key, images)
	return images, nil
}
