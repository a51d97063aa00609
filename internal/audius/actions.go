package audius

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ActionClient talks to the write proxy, which holds the platform
// credentials and relays curation actions on behalf of a user.
type ActionClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewActionClient creates a write-proxy client.
func NewActionClient(baseURL string, timeout time.Duration, logger *zap.Logger) *ActionClient {
	return &ActionClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// PlaylistMetadata carries the editable fields of a playlist. Empty fields
// are left unchanged by UpdatePlaylist.
type PlaylistMetadata struct {
	PlaylistName string `json:"playlistName,omitempty"`
	Description  string `json:"description,omitempty"`
	IsPrivate    *bool  `json:"isPrivate,omitempty"`
}

// CreatePlaylist publishes a new playlist with the given track IDs and
// returns the remote playlist ID.
func (ac *ActionClient) CreatePlaylist(ctx context.Context, userID, name string, trackIDs []string, description string, isPrivate bool, artworkURL string) (string, error) {
	body := map[string]any{
		"userId":       userID,
		"playlistName": name,
		"trackIds":     trackIDs,
		"description":  description,
		"isPrivate":    isPrivate,
	}
	if artworkURL != "" {
		body["artworkUrl"] = artworkURL
	}

	var resp struct {
		PlaylistID string `json:"playlistId"`
	}
	if err := ac.postJSON(ctx, "/api/create-playlist", body, &resp); err != nil {
		return "", fmt.Errorf("failed to create playlist: %w", err)
	}
	if resp.PlaylistID == "" {
		return "", fmt.Errorf("write proxy returned no playlist id")
	}
	return resp.PlaylistID, nil
}

// AddTrack appends a track to an existing playlist.
func (ac *ActionClient) AddTrack(ctx context.Context, userID, playlistID, trackID string) error {
	return ac.playlistAction(ctx, map[string]any{
		"action":     "addTrack",
		"userId":     userID,
		"playlistId": playlistID,
		"trackId":    trackID,
	})
}

// RemoveTrack removes a track from an existing playlist.
func (ac *ActionClient) RemoveTrack(ctx context.Context, userID, playlistID, trackID string) error {
	return ac.playlistAction(ctx, map[string]any{
		"action":     "removeTrack",
		"userId":     userID,
		"playlistId": playlistID,
		"trackId":    trackID,
	})
}

// UpdatePlaylist changes playlist metadata.
func (ac *ActionClient) UpdatePlaylist(ctx context.Context, userID, playlistID string, metadata PlaylistMetadata, artworkURL string) error {
	body := map[string]any{
		"action":     "updatePlaylist",
		"userId":     userID,
		"playlistId": playlistID,
		"metadata":   metadata,
	}
	if artworkURL != "" {
		body["artworkUrl"] = artworkURL
	}
	return ac.playlistAction(ctx, body)
}

// Favorite marks a track as favorited by the user.
func (ac *ActionClient) Favorite(ctx context.Context, userID, trackID string) error {
	return ac.trackAction(ctx, "favorite", userID, trackID)
}

// Unfavorite removes a favorite.
func (ac *ActionClient) Unfavorite(ctx context.Context, userID, trackID string) error {
	return ac.trackAction(ctx, "unfavorite", userID, trackID)
}

// Repost reposts a track to the user's feed.
func (ac *ActionClient) Repost(ctx context.Context, userID, trackID string) error {
	return ac.trackAction(ctx, "repost", userID, trackID)
}

// Unrepost removes a repost.
func (ac *ActionClient) Unrepost(ctx context.Context, userID, trackID string) error {
	return ac.trackAction(ctx, "unrepost", userID, trackID)
}

func (ac *ActionClient) playlistAction(ctx context.Context, body map[string]any) error {
	if err := ac.postJSON(ctx, "/api/playlist-action", body, nil); err != nil {
		return fmt.Errorf("playlist action %v failed: %w", body["action"], err)
	}
	return nil
}

func (ac *ActionClient) trackAction(ctx context.Context, action, userID, trackID string) error {
	body := map[string]any{
		"action":  action,
		"userId":  userID,
		"trackId": trackID,
	}
	if err := ac.postJSON(ctx, "/api/track-action", body, nil); err != nil {
		return fmt.Errorf("track action %s failed: %w", action, err)
	}
	return nil
}

func (ac *ActionClient) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ac.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ac.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("proxy error: %s", apiErr.Error)
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
