package plex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/JustinTDCT/Posteract/internal/config"
	"github.com/JustinTDCT/Posteract/internal/models"
)

var (
	ErrNotFound    = errors.New("plex: item not found")
	ErrNoRatingKey = errors.New("plex: item has no rating key")
)

// Client talks to a Plex Media Server over its JSON HTTP API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(cfg config.PlexConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With("component", "plex"),
	}
}

// Library is one library section on the server.
type Library struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

type container struct {
	MediaContainer struct {
		Directory []Library  `json:"Directory"`
		Metadata  []metadata `json:"Metadata"`
	} `json:"MediaContainer"`
}

// ──────────────────── Reads ────────────────────

func (c *Client) Libraries(ctx context.Context) ([]Library, error) {
	var out container
	if err := c.getJSON(ctx, "/library/sections", nil, &out); err != nil {
		return nil, fmt.Errorf("list libraries: %w", err)
	}
	return out.MediaContainer.Directory, nil
}

// Item fetches one catalogue entry and converts it to a MediaItem.
func (c *Client) Item(ctx context.Context, ratingKey int) (models.MediaItem, error) {
	var out container
	q := url.Values{"includeGuids": {"1"}}
	if err := c.getJSON(ctx, "/library/metadata/"+strconv.Itoa(ratingKey), q, &out); err != nil {
		return models.MediaItem{}, fmt.Errorf("fetch item %d: %w", ratingKey, err)
	}
	for _, m := range out.MediaContainer.Metadata {
		if item, ok := m.toMediaItem(); ok {
			return item, nil
		}
	}
	return models.MediaItem{}, fmt.Errorf("fetch item %d: %w", ratingKey, ErrNotFound)
}

// FindMovieByTitle searches every movie library for a case-insensitive exact
// title match. Errors in one section are logged and the search moves on.
func (c *Client) FindMovieByTitle(ctx context.Context, title string) (models.MediaItem, error) {
	libs, err := c.Libraries(ctx)
	if err != nil {
		return models.MediaItem{}, err
	}
	for _, lib := range libs {
		if lib.Type != "movie" {
			continue
		}
		entries, err := c.sectionItems(ctx, lib.Key, url.Values{"title": {title}})
		if err != nil {
			c.logger.Warn("title search failed", "library", lib.Title, "error", err)
			continue
		}
		for _, m := range entries {
			if !strings.EqualFold(m.Title, title) {
				continue
			}
			if item, ok := m.toMediaItem(); ok {
				return item, nil
			}
		}
	}
	return models.MediaItem{}, fmt.Errorf("find %q: %w", title, ErrNotFound)
}

// Items lists the entries of the named libraries, or of every library when
// names is empty. A section that cannot be listed is logged and skipped.
func (c *Client) Items(ctx context.Context, names []string) ([]models.MediaItem, error) {
	libs, err := c.Libraries(ctx)
	if err != nil {
		return nil, err
	}
	var items []models.MediaItem
	for _, lib := range filterLibraries(libs, names) {
		entries, err := c.sectionItems(ctx, lib.Key, nil)
		if err != nil {
			c.logger.Warn("listing library failed", "library", lib.Title, "error", err)
			continue
		}
		for _, m := range entries {
			if item, ok := m.toMediaItem(); ok {
				items = append(items, item)
			}
		}
	}
	return items, nil
}

func (c *Client) sectionItems(ctx context.Context, key string, q url.Values) ([]metadata, error) {
	if q == nil {
		q = url.Values{}
	}
	q.Set("includeGuids", "1")
	var out container
	if err := c.getJSON(ctx, "/library/sections/"+url.PathEscape(key)+"/all", q, &out); err != nil {
		return nil, err
	}
	return out.MediaContainer.Metadata, nil
}

func filterLibraries(libs []Library, names []string) []Library {
	if len(names) == 0 {
		return libs
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	var out []Library
	for _, lib := range libs {
		if wanted[lib.Title] {
			out = append(out, lib)
		}
	}
	return out
}

// ──────────────────── Writes ────────────────────

// UploadPoster sends the image at path to the item and makes it the selected
// poster.
func (c *Client) UploadPoster(ctx context.Context, item models.MediaItem, path string) error {
	if item.RatingKey == nil {
		return fmt.Errorf("upload poster for %s: %w", item.Title, ErrNoRatingKey)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read poster %s: %w", path, err)
	}
	endpoint := fmt.Sprintf("/library/metadata/%d/posters", *item.RatingKey)
	resp, err := c.do(ctx, http.MethodPost, endpoint, nil, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("upload poster for %s: %w", item.Title, err)
	}
	resp.Body.Close()
	c.logger.Info("poster uploaded", "rating_key", *item.RatingKey, "title", item.Title)
	return nil
}

// ResetPoster selects the first poster on the item that was not uploaded by a
// user, which restores the agent-provided artwork.
func (c *Client) ResetPoster(ctx context.Context, ratingKey int) error {
	var out container
	endpoint := fmt.Sprintf("/library/metadata/%d/posters", ratingKey)
	if err := c.getJSON(ctx, endpoint, nil, &out); err != nil {
		return fmt.Errorf("list posters for %d: %w", ratingKey, err)
	}
	for _, p := range out.MediaContainer.Metadata {
		if p.RatingKey == "" || strings.HasPrefix(p.RatingKey, "upload://") {
			continue
		}
		q := url.Values{"url": {p.RatingKey}}
		resp, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/library/metadata/%d/poster", ratingKey), q, nil)
		if err != nil {
			return fmt.Errorf("select poster for %d: %w", ratingKey, err)
		}
		resp.Body.Close()
		return nil
	}
	return fmt.Errorf("no agent poster for %d: %w", ratingKey, ErrNotFound)
}

// ResetPosters resets every item in the named libraries (all libraries when
// names is empty) and returns how many items were reset.
func (c *Client) ResetPosters(ctx context.Context, names []string) (int, error) {
	libs, err := c.Libraries(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, lib := range filterLibraries(libs, names) {
		c.logger.Info("resetting posters", "library", lib.Title)
		entries, err := c.sectionItems(ctx, lib.Key, nil)
		if err != nil {
			c.logger.Warn("listing library failed", "library", lib.Title, "error", err)
			continue
		}
		for _, m := range entries {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			key, err := strconv.Atoi(m.RatingKey)
			if err != nil {
				continue
			}
			if err := c.ResetPoster(ctx, key); err != nil {
				c.logger.Warn("poster reset failed", "title", m.Title, "error", err)
				continue
			}
			total++
		}
	}
	c.logger.Info("poster reset complete", "items", total)
	return total, nil
}

// ──────────────────── HTTP ────────────────────

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, dst any) error {
	resp, err := c.do(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body io.Reader) (*http.Response, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("X-Plex-Product", "Posteract")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	return resp, nil
}
