package metadata

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/JustinTDCT/Posteract/internal/models"
	"golang.org/x/time/rate"
)

// Provider returns the best poster a source has for a subject under a
// selection mode. Lookup failures are logged by the provider and reported as
// a miss; callers never see them.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, subject models.Subject, mode Mode) (models.PosterCandidate, bool)
}

// ──────────────────── Selection Modes ────────────────────

type ModeKind int

const (
	ModeTextless ModeKind = iota
	ModeLanguage
	ModeAny
	ModeFanart
)

// Mode is a parsed selection-mode tag. Tag is kept verbatim so results carry
// the operator's own spelling (e.g. "tmdb_en" or "lang:en").
type Mode struct {
	Tag      string
	Kind     ModeKind
	Language string
}

// ParseMode understands textless, any / tmdb_any, tmdb_<lang> / lang:<lang>
// and fanart.
func ParseMode(tag string) (Mode, error) {
	t := strings.TrimSpace(tag)
	switch {
	case t == "textless":
		return Mode{Tag: t, Kind: ModeTextless}, nil
	case t == "any" || t == "tmdb_any":
		return Mode{Tag: t, Kind: ModeAny}, nil
	case t == "fanart":
		return Mode{Tag: t, Kind: ModeFanart}, nil
	case strings.HasPrefix(t, "lang:") && len(t) > len("lang:"):
		return Mode{Tag: t, Kind: ModeLanguage, Language: t[len("lang:"):]}, nil
	case strings.HasPrefix(t, "tmdb_") && len(t) > len("tmdb_"):
		return Mode{Tag: t, Kind: ModeLanguage, Language: t[len("tmdb_"):]}, nil
	}
	return Mode{}, fmt.Errorf("unknown poster mode %q", tag)
}

// ──────────────────── Candidate Images ────────────────────

// Image is one poster as listed by a provider, in provider order.
type Image struct {
	URL        string
	Language   *string
	Popularity float64
}

func pickTextless(images []Image) (Image, bool) {
	for _, img := range images {
		if (img.Language == nil || *img.Language == "") && img.URL != "" {
			return img, true
		}
	}
	return Image{}, false
}

func pickLanguage(images []Image, lang string) (Image, bool) {
	for _, img := range images {
		if img.Language == nil || img.URL == "" {
			continue
		}
		if *img.Language == lang || (lang == "pt" && *img.Language == "pt-BR") {
			return img, true
		}
	}
	return Image{}, false
}

func pickFirst(images []Image) (Image, bool) {
	if len(images) == 0 || images[0].URL == "" {
		return Image{}, false
	}
	return images[0], true
}

// pickMostPopular returns the image with the highest popularity; equal scores
// keep provider order.
func pickMostPopular(images []Image) (Image, bool) {
	ranked := make([]Image, 0, len(images))
	for _, img := range images {
		if img.URL != "" {
			ranked = append(ranked, img)
		}
	}
	if len(ranked) == 0 {
		return Image{}, false
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Popularity > ranked[j].Popularity
	})
	return ranked[0], true
}

// pick applies the matching rule of a mode to a provider's image list.
func pick(images []Image, mode Mode) (Image, bool) {
	switch mode.Kind {
	case ModeTextless:
		return pickTextless(images)
	case ModeLanguage:
		return pickLanguage(images, mode.Language)
	case ModeAny:
		return pickFirst(images)
	case ModeFanart:
		return pickMostPopular(images)
	}
	return Image{}, false
}

// ──────────────────── Options ────────────────────

type options struct {
	baseURL   string
	imageBase string
	client    *http.Client
	limiter   *rate.Limiter
}

type Option func(*options)

// WithBaseURL points a provider at a different API host (tests, proxies).
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = strings.TrimRight(u, "/") }
}

// WithImageBase overrides the host that relative image paths are joined to.
func WithImageBase(u string) Option {
	return func(o *options) { o.imageBase = strings.TrimRight(u, "/") }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(o *options) { o.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

func buildOptions(baseURL string, perSecond float64, opts []Option) options {
	o := options{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
