// Package playlist manages the local draft playlist and its remote
// counterpart. Remote mutations are two-phase: the local draft is updated
// tentatively, and a compensating inverse is applied when the remote call
// fails.
package playlist

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"driftdj/internal/core"
)

// Remote is the write side of the playlist proxy.
type Remote interface {
	CreatePlaylist(ctx context.Context, userID, name string, trackIDs []string, description string, isPrivate bool, artworkURL string) (string, error)
	AddTrack(ctx context.Context, userID, playlistID, trackID string) error
	RemoveTrack(ctx context.Context, userID, playlistID, trackID string) error
}

// Resolver turns a share URL into a track.
type Resolver interface {
	ResolveTrack(ctx context.Context, url string) (*core.Track, error)
}

// Manager owns the draft playlist. The draft keeps insertion order and
// rejects duplicate track ids; it survives restarts through the preference
// store and is cleared once published.
type Manager struct {
	prefs    core.PrefStore
	remote   Remote
	resolver Resolver
	logger   *zap.Logger

	mutex sync.Mutex
}

func NewManager(prefs core.PrefStore, remote Remote, resolver Resolver, logger *zap.Logger) *Manager {
	return &Manager{
		prefs:    prefs,
		remote:   remote,
		resolver: resolver,
		logger:   logger,
	}
}

// Tracks returns the draft in insertion order.
func (m *Manager) Tracks() []core.Track {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.prefs.DraftPlaylist()
}

// Add appends a track to the draft. Returns false when the track is already
// in the draft.
func (m *Manager) Add(track core.Track) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.appendLocked(track)
}

// Remove drops a track from the draft. Returns false when the id is not in
// the draft.
func (m *Manager) Remove(trackID string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	_, _, ok := m.removeLocked(trackID)
	return ok
}

// Clear empties the draft.
func (m *Manager) Clear() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.prefs.SaveDraftPlaylist(nil)
}

// AddRemote appends a track to the draft and mirrors the change to the
// published playlist. When the remote call fails the local append is undone.
func (m *Manager) AddRemote(ctx context.Context, userID, playlistID string, track core.Track) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.remote == nil {
		return fmt.Errorf("write proxy is not configured")
	}
	if !m.appendLocked(track) {
		return fmt.Errorf("track %s is already in the playlist", track.ID)
	}
	if err := m.remote.AddTrack(ctx, userID, playlistID, track.ID); err != nil {
		m.removeLocked(track.ID)
		m.logger.Warn("remote add failed, local append reverted",
			zap.String("track_id", track.ID),
			zap.Error(err))
		return err
	}
	return nil
}

// RemoveRemote drops a track from the draft and mirrors the change to the
// published playlist. When the remote call fails the track is restored at
// its original position.
func (m *Manager) RemoveRemote(ctx context.Context, userID, playlistID, trackID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.remote == nil {
		return fmt.Errorf("write proxy is not configured")
	}
	removed, index, ok := m.removeLocked(trackID)
	if !ok {
		return fmt.Errorf("track %s is not in the playlist", trackID)
	}
	if err := m.remote.RemoveTrack(ctx, userID, playlistID, trackID); err != nil {
		m.insertLocked(removed, index)
		m.logger.Warn("remote remove failed, local removal reverted",
			zap.String("track_id", trackID),
			zap.Error(err))
		return err
	}
	return nil
}

// Publish creates a remote playlist from the draft and clears the draft on
// success.
func (m *Manager) Publish(ctx context.Context, userID, name, description string, isPrivate bool, artworkURL string) (string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.remote == nil {
		return "", fmt.Errorf("write proxy is not configured")
	}
	draft := m.prefs.DraftPlaylist()
	if len(draft) == 0 {
		return "", fmt.Errorf("draft playlist is empty")
	}
	trackIDs := make([]string, 0, len(draft))
	for _, t := range draft {
		trackIDs = append(trackIDs, t.ID)
	}

	playlistID, err := m.remote.CreatePlaylist(ctx, userID, name, trackIDs, description, isPrivate, artworkURL)
	if err != nil {
		return "", fmt.Errorf("publishing playlist %q: %w", name, err)
	}

	m.prefs.SaveDraftPlaylist(nil)
	m.logger.Info("draft playlist published",
		zap.String("playlist_id", playlistID),
		zap.Int("tracks", len(trackIDs)))
	return playlistID, nil
}

// ImportText extracts track links from clipboard-style text, resolves each
// and appends the resolved tracks to the draft. Unresolvable links are
// skipped. Returns the tracks that were added.
func (m *Manager) ImportText(ctx context.Context, text string) ([]core.Track, error) {
	links := ExtractTrackLinks(text)

	var added []core.Track
	for _, link := range links {
		track, err := m.resolver.ResolveTrack(ctx, link)
		if err != nil {
			return added, fmt.Errorf("resolving %s: %w", link, err)
		}
		if track == nil {
			m.logger.Debug("link did not resolve to a track", zap.String("url", link))
			continue
		}
		m.mutex.Lock()
		ok := m.appendLocked(*track)
		m.mutex.Unlock()
		if ok {
			added = append(added, *track)
		}
	}
	return added, nil
}

// ExtractTrackLinks pulls audius.co links out of free text, splitting on
// newlines, commas and whitespace.
func ExtractTrackLinks(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ',' || r == ' ' || r == '\t'
	})

	var links []string
	for _, f := range fields {
		if strings.Contains(f, "audius.co/") {
			links = append(links, f)
		}
	}
	return links
}

func (m *Manager) appendLocked(track core.Track) bool {
	draft := m.prefs.DraftPlaylist()
	for _, t := range draft {
		if t.ID == track.ID {
			return false
		}
	}
	m.prefs.SaveDraftPlaylist(append(draft, track))
	return true
}

func (m *Manager) removeLocked(trackID string) (core.Track, int, bool) {
	draft := m.prefs.DraftPlaylist()
	for i, t := range draft {
		if t.ID == trackID {
			m.prefs.SaveDraftPlaylist(append(draft[:i:i], draft[i+1:]...))
			return t, i, true
		}
	}
	return core.Track{}, 0, false
}

func (m *Manager) insertLocked(track core.Track, index int) {
	draft := m.prefs.DraftPlaylist()
	if index > len(draft) {
		index = len(draft)
	}
	out := make([]core.Track, 0, len(draft)+1)
	out = append(out, draft[:index]...)
	out = append(out, track)
	out = append(out, draft[index:]...)
	m.prefs.SaveDraftPlaylist(out)
}
