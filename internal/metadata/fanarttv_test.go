package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/JustinTDCT/Posteract/internal/logging"
	"github.com/JustinTDCT/Posteract/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFanartServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		switch r.URL.Path {
		case "/v3/movies/603":
			w.Write([]byte(`{
			  "name": "The Matrix",
			  "movieposter": [
			    {"id": "1", "url": "https://assets.fanart.tv/p10.jpg", "lang": "en", "likes": "10"},
			    {"id": "2", "url": "https://assets.fanart.tv/p50.jpg", "lang": "en", "likes": "50"},
			    {"id": "3", "url": "https://assets.fanart.tv/p30.jpg", "lang": "00", "likes": "30"}
			  ],
			  "hdmovielogo": [{"id": "9", "url": "https://assets.fanart.tv/logo.png", "likes": "99"}]
			}`))
		case "/v3/tv/81189":
			w.Write([]byte(`{"tvposter": [{"id": "4", "url": "https://assets.fanart.tv/bb.jpg", "lang": "en", "likes": "3"}]}`))
		case "/v3/movies/27205":
			w.Write([]byte(`{"hdmovielogo": [{"id": "5", "url": "https://assets.fanart.tv/logo.png", "likes": "1"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFanartProvider_MostLikedPoster(t *testing.T) {
	var hits int32
	srv := newFanartServer(t, &hits)
	p := NewFanartProvider("key", true, logging.Discard(), WithBaseURL(srv.URL), WithRateLimit(1000, 10))

	got, ok := p.Fetch(context.Background(), models.Subject{TMDBID: 603, Kind: models.MediaKindMovie}, mustMode(t, "fanart"))
	require.True(t, ok)
	assert.Equal(t, models.PosterCandidate{URL: "https://assets.fanart.tv/p50.jpg", Mode: "fanart"}, got)
}

func TestFanartProvider_ShowsNeedTVDB(t *testing.T) {
	var hits int32
	srv := newFanartServer(t, &hits)
	p := NewFanartProvider("key", true, logging.Discard(), WithBaseURL(srv.URL), WithRateLimit(1000, 10))
	ctx := context.Background()

	_, ok := p.Fetch(ctx, models.Subject{TMDBID: 1396, Kind: models.MediaKindShow}, mustMode(t, "fanart"))
	assert.False(t, ok)
	assert.Zero(t, atomic.LoadInt32(&hits))

	got, ok := p.Fetch(ctx, models.Subject{TMDBID: 1396, TVDBID: 81189, Kind: models.MediaKindShow}, mustMode(t, "fanart"))
	require.True(t, ok)
	assert.Equal(t, "https://assets.fanart.tv/bb.jpg", got.URL)
}

func TestFanartProvider_MissesAndDisabled(t *testing.T) {
	var hits int32
	srv := newFanartServer(t, &hits)
	ctx := context.Background()
	matrix := models.Subject{TMDBID: 603, Kind: models.MediaKindMovie}

	p := NewFanartProvider("key", true, logging.Discard(), WithBaseURL(srv.URL), WithRateLimit(1000, 10))
	_, ok := p.Fetch(ctx, models.Subject{TMDBID: 27205}, mustMode(t, "fanart"))
	assert.False(t, ok, "logos are not posters")
	_, ok = p.Fetch(ctx, models.Subject{TMDBID: 1}, mustMode(t, "fanart"))
	assert.False(t, ok)

	before := atomic.LoadInt32(&hits)
	disabled := NewFanartProvider("key", false, logging.Discard(), WithBaseURL(srv.URL))
	_, ok = disabled.Fetch(ctx, matrix, mustMode(t, "fanart"))
	assert.False(t, ok)
	noKey := NewFanartProvider("", true, logging.Discard(), WithBaseURL(srv.URL))
	_, ok = noKey.Fetch(ctx, matrix, mustMode(t, "fanart"))
	assert.False(t, ok)
	assert.Equal(t, before, atomic.LoadInt32(&hits))
}
