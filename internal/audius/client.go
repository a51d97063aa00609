// Package audius implements the remote catalog client: track search,
// URL resolution, playlist reads and the write-proxy actions.
package audius

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"driftdj/internal/core"
)

const playlistPageSize = 100

// Client is a read-only catalog client over the public Audius discovery API.
type Client struct {
	host       string
	appName    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a catalog client for the given API host.
func NewClient(host, appName string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		host:       strings.TrimRight(host, "/"),
		appName:    appName,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// SearchTracks runs one page of a track search. The full endpoint carries
// BPM, key and mood fields the basic endpoint omits.
func (c *Client) SearchTracks(ctx context.Context, q core.SearchQuery) ([]core.Track, error) {
	endpoint := c.host + "/v1/tracks/search"
	if q.Full {
		endpoint = c.host + "/v1/full/tracks/search"
	}

	params := url.Values{}
	params.Set("query", q.Query)
	params.Set("sort_method", q.Sort)
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("offset", strconv.Itoa(q.Offset))
	params.Set("app_name", c.appName)
	if q.Mood != "" {
		params.Set("mood", q.Mood)
	}
	if q.BPMMin > 0 {
		params.Set("bpm_min", strconv.FormatFloat(q.BPMMin, 'f', -1, 64))
	}
	if q.BPMMax > 0 {
		params.Set("bpm_max", strconv.FormatFloat(q.BPMMax, 'f', -1, 64))
	}
	if q.Key != "" {
		params.Set("key", q.Key)
	}
	// The full endpoint accepts the genre parameter repeated.
	for _, g := range q.Genres {
		params.Add("genre", g)
	}

	var resp trackListResponse
	if err := c.getJSON(ctx, endpoint+"?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("failed to search tracks: %w", err)
	}
	return decodeTracks(resp.Data), nil
}

// ResolveTrack resolves an audius.co track URL to a track. A scheme is
// added when missing. An unresolvable URL yields (nil, nil).
func (c *Client) ResolveTrack(ctx context.Context, rawURL string) (*core.Track, error) {
	normalized := strings.TrimSpace(rawURL)
	if normalized == "" {
		return nil, nil
	}
	if !strings.HasPrefix(normalized, "http") {
		normalized = "https://" + normalized
	}

	params := url.Values{}
	params.Set("url", normalized)
	params.Set("app_name", c.appName)

	var resp struct {
		Data *trackJSON `json:"data"`
	}
	if err := c.getJSON(ctx, c.host+"/v1/resolve?"+params.Encode(), &resp); err != nil {
		c.logger.Debug("Failed to resolve track URL",
			zap.String("url", normalized),
			zap.Error(err))
		return nil, nil
	}
	if resp.Data == nil {
		return nil, nil
	}
	track := resp.Data.toTrack()
	return &track, nil
}

// PlaylistTracks fetches the full track objects of a playlist.
func (c *Client) PlaylistTracks(ctx context.Context, playlistID string) ([]core.Track, error) {
	endpoint := fmt.Sprintf("%s/v1/playlists/%s/tracks?app_name=%s",
		c.host, url.PathEscape(playlistID), url.QueryEscape(c.appName))

	var resp trackListResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch playlist tracks: %w", err)
	}
	return decodeTracks(resp.Data), nil
}

// UserPlaylists fetches all playlists of a user, paginating until a short
// page. Albums are filtered out.
func (c *Client) UserPlaylists(ctx context.Context, userID string) ([]core.Playlist, error) {
	var all []core.Playlist
	for offset := 0; ; offset += playlistPageSize {
		endpoint := fmt.Sprintf("%s/v1/users/%s/playlists?app_name=%s&limit=%d&offset=%d",
			c.host, url.PathEscape(userID), url.QueryEscape(c.appName), playlistPageSize, offset)

		var resp struct {
			Data []playlistJSON `json:"data"`
		}
		if err := c.getJSON(ctx, endpoint, &resp); err != nil {
			if offset == 0 {
				return nil, fmt.Errorf("failed to fetch user playlists: %w", err)
			}
			// Later pages degrade to what was already collected.
			c.logger.Warn("Playlist pagination aborted",
				zap.String("user_id", userID),
				zap.Int("offset", offset),
				zap.Error(err))
			return all, nil
		}

		for _, p := range resp.Data {
			if p.IsAlbum {
				continue
			}
			all = append(all, p.toPlaylist())
		}
		if len(resp.Data) < playlistPageSize {
			return all, nil
		}
	}
}

// StreamURL returns the public stream endpoint for a track.
func (c *Client) StreamURL(trackID string) string {
	return fmt.Sprintf("%s/v1/tracks/%s/stream?app_name=%s",
		c.host, url.PathEscape(trackID), url.QueryEscape(c.appName))
}

func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

type trackListResponse struct {
	Data []trackJSON `json:"data"`
}

type trackJSON struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Duration    float64           `json:"duration"`
	BPM         float64           `json:"bpm"`
	MusicalKey  string            `json:"musical_key"`
	Mood        string            `json:"mood"`
	Genre       string            `json:"genre"`
	Tags        string            `json:"tags"`
	PlayCount   int               `json:"play_count"`
	ReleaseDate string            `json:"release_date"`
	CreatedAt   string            `json:"created_at"`
	Permalink   string            `json:"permalink"`
	Artwork     map[string]string `json:"artwork"`
	User        struct {
		Handle string `json:"handle"`
		Name   string `json:"name"`
	} `json:"user"`
}

func (t trackJSON) toTrack() core.Track {
	return core.Track{
		ID:         t.ID,
		Title:      t.Title,
		Duration:   time.Duration(t.Duration * float64(time.Second)),
		BPM:        t.BPM,
		MusicalKey: t.MusicalKey,
		Mood:       t.Mood,
		Genre:      t.Genre,
		Tags:       t.Tags,
		PlayCount:  t.PlayCount,
		ReleasedAt: parseTimestamp(t.ReleaseDate, t.CreatedAt),
		Artist:     core.Artist{Handle: t.User.Handle, Name: t.User.Name},
		Artwork:    t.Artwork,
		Permalink:  t.Permalink,
	}
}

type playlistJSON struct {
	ID           string            `json:"id"`
	PlaylistName string            `json:"playlist_name"`
	Description  string            `json:"description"`
	TrackCount   int               `json:"track_count"`
	IsPrivate    bool              `json:"is_private"`
	IsAlbum      bool              `json:"is_album"`
	Artwork      map[string]string `json:"artwork"`
}

func (p playlistJSON) toPlaylist() core.Playlist {
	return core.Playlist{
		ID:          p.ID,
		Name:        p.PlaylistName,
		Description: p.Description,
		TrackCount:  p.TrackCount,
		IsPrivate:   p.IsPrivate,
		Artwork:     p.Artwork,
	}
}

func decodeTracks(data []trackJSON) []core.Track {
	tracks := make([]core.Track, 0, len(data))
	for _, t := range data {
		tracks = append(tracks, t.toTrack())
	}
	return tracks
}

// parseTimestamp prefers the release date over the upload date and returns
// the zero time when neither parses.
func parseTimestamp(release, created string) time.Time {
	for _, s := range []string{release, created} {
		if s == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z", "2006-01-02"} {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts
			}
		}
	}
	return time.Time{}
}
