package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/JustinTDCT/Posteract/internal/models"
	"github.com/spf13/cast"
)

const fanartAPIBase = "https://webservice.fanart.tv"

// FanartProvider is the secondary poster source: it returns the most liked
// poster fanart.tv has for the subject.
type FanartProvider struct {
	apiKey  string
	enabled bool
	opts    options
	logger  *slog.Logger
}

func NewFanartProvider(apiKey string, enabled bool, logger *slog.Logger, opts ...Option) *FanartProvider {
	logger = logger.With("component", "fanart")
	if !enabled || apiKey == "" {
		logger.Warn("Fanart.tv disabled or API key missing")
	}
	return &FanartProvider{
		apiKey:  apiKey,
		enabled: enabled,
		opts:    buildOptions(fanartAPIBase, 2, opts),
		logger:  logger,
	}
}

func (p *FanartProvider) Name() string { return "fanart" }

func (p *FanartProvider) Enabled() bool { return p.enabled && p.apiKey != "" }

func (p *FanartProvider) Fetch(ctx context.Context, subject models.Subject, mode Mode) (models.PosterCandidate, bool) {
	if !p.Enabled() {
		return models.PosterCandidate{}, false
	}
	images, err := p.Posters(ctx, subject)
	if err != nil {
		p.logger.Error("fetching fanart.tv artwork failed", "tmdb_id", subject.TMDBID, "error", err)
		return models.PosterCandidate{}, false
	}
	best, ok := pickMostPopular(images)
	if !ok {
		p.logger.Debug("no fanart.tv poster", "tmdb_id", subject.TMDBID)
		return models.PosterCandidate{}, false
	}
	p.logger.Info("found fanart.tv poster", "tmdb_id", subject.TMDBID, "url", best.URL)
	return models.PosterCandidate{URL: best.URL, Mode: mode.Tag}, true
}

type fanartImage struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Likes string `json:"likes"`
	Lang  string `json:"lang"`
}

// Posters lists the fanart.tv posters for a subject. Movies are looked up by
// TMDB id; shows need a TVDB id and yield nothing without one.
func (p *FanartProvider) Posters(ctx context.Context, subject models.Subject) ([]Image, error) {
	var reqURL string
	switch subject.Kind {
	case models.MediaKindShow:
		if subject.TVDBID == 0 {
			return nil, nil
		}
		reqURL = fmt.Sprintf("%s/v3/tv/%d?api_key=%s", p.opts.baseURL, subject.TVDBID, p.apiKey)
	default:
		reqURL = fmt.Sprintf("%s/v3/movies/%d?api_key=%s", p.opts.baseURL, subject.TMDBID, p.apiKey)
	}

	if err := p.opts.limiter.Wait(ctx); err != nil {
		return nil, err
	}
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
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fanart.tv returned %d", resp.StatusCode)
	}

	var result struct {
		MoviePosters []fanartImage `json:"movieposter"`
		TVPosters    []fanartImage `json:"tvposter"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode fanart.tv response: %w", err)
	}

	posters := result.MoviePosters
	if subject.Kind == models.MediaKindShow {
		posters = result.TVPosters
	}
	images := make([]Image, 0, len(posters))
	for _, fi := range posters {
		lang := fi.Lang
		images = append(images, Image{
			URL:        fi.URL,
			Language:   &lang,
			Popularity: cast.ToFloat64(fi.Likes),
		})
	}
	return images, nil
}
