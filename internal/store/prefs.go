// Package store provides local persistence for listening preferences and
// candidate deduplication.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"driftdj/internal/core"
)

const (
	blockedTracksFile  = "blocked.json"
	blockedArtistsFile = "blocked-artists.json"
	recentFile         = "recent.json"
	draftFile          = "playlist-draft.json"
)

// PrefStore persists blocked tracks, blocked artists, the recently-played
// ring and the draft playlist as JSON files under a state directory.
// A missing or unreadable file is treated as empty.
type PrefStore struct {
	dir        string
	recentSize int
	logger     *zap.Logger

	mutex          sync.RWMutex
	blockedTracks  map[string]struct{}
	blockedArtists map[string]struct{}
	recent         []string
	draft          []core.Track
}

// NewPrefStore loads existing state from dir, creating it when absent.
func NewPrefStore(dir string, recentSize int, logger *zap.Logger) (*PrefStore, error) {
	if recentSize <= 0 {
		recentSize = core.DefaultRecentRingSize
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	ps := &PrefStore{
		dir:            dir,
		recentSize:     recentSize,
		logger:         logger,
		blockedTracks:  make(map[string]struct{}),
		blockedArtists: make(map[string]struct{}),
	}

	ps.blockedTracks = ps.loadStringSet(blockedTracksFile)
	ps.blockedArtists = ps.loadStringSet(blockedArtistsFile)
	ps.recent = ps.loadStringList(recentFile)
	ps.draft = ps.loadDraft()

	return ps, nil
}

// Snapshot returns a point-in-time copy of the block and recent sets for
// use by the filter pipeline.
func (ps *PrefStore) Snapshot() core.PrefSnapshot {
	ps.mutex.RLock()
	defer ps.mutex.RUnlock()

	snap := core.PrefSnapshot{
		BlockedTracks:  make(map[string]struct{}, len(ps.blockedTracks)),
		BlockedArtists: make(map[string]struct{}, len(ps.blockedArtists)),
		Recent:         make(map[string]struct{}, len(ps.recent)),
	}
	for id := range ps.blockedTracks {
		snap.BlockedTracks[id] = struct{}{}
	}
	for handle := range ps.blockedArtists {
		snap.BlockedArtists[handle] = struct{}{}
	}
	for _, id := range ps.recent {
		snap.Recent[id] = struct{}{}
	}
	return snap
}

// BlockTrack adds a track ID to the blocked set.
func (ps *PrefStore) BlockTrack(trackID string) {
	if trackID == "" {
		return
	}
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	if _, exists := ps.blockedTracks[trackID]; exists {
		return
	}
	ps.blockedTracks[trackID] = struct{}{}
	ps.saveStringSet(blockedTracksFile, ps.blockedTracks)
}

// BlockArtist adds an artist handle to the blocked set.
func (ps *PrefStore) BlockArtist(handle string) {
	if handle == "" {
		return
	}
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	if _, exists := ps.blockedArtists[handle]; exists {
		return
	}
	ps.blockedArtists[handle] = struct{}{}
	ps.saveStringSet(blockedArtistsFile, ps.blockedArtists)
}

// UnblockArtist removes an artist handle from the blocked set.
func (ps *PrefStore) UnblockArtist(handle string) {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	if _, exists := ps.blockedArtists[handle]; !exists {
		return
	}
	delete(ps.blockedArtists, handle)
	ps.saveStringSet(blockedArtistsFile, ps.blockedArtists)
}

// BlockedArtists returns the currently blocked artist handles.
func (ps *PrefStore) BlockedArtists() []string {
	ps.mutex.RLock()
	defer ps.mutex.RUnlock()

	handles := make([]string, 0, len(ps.blockedArtists))
	for handle := range ps.blockedArtists {
		handles = append(handles, handle)
	}
	return handles
}

// AddRecentlyPlayed appends a track ID to the recent ring, evicting the
// oldest entries once the ring exceeds its capacity.
func (ps *PrefStore) AddRecentlyPlayed(trackID string) {
	if trackID == "" {
		return
	}
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	ps.recent = append(ps.recent, trackID)
	if len(ps.recent) > ps.recentSize {
		ps.recent = ps.recent[len(ps.recent)-ps.recentSize:]
	}
	ps.saveJSON(recentFile, ps.recent)
}

// RecentlyPlayed returns the recent ring contents, oldest first.
func (ps *PrefStore) RecentlyPlayed() []string {
	ps.mutex.RLock()
	defer ps.mutex.RUnlock()

	out := make([]string, len(ps.recent))
	copy(out, ps.recent)
	return out
}

// DraftPlaylist returns a copy of the draft playlist tracks in insertion order.
func (ps *PrefStore) DraftPlaylist() []core.Track {
	ps.mutex.RLock()
	defer ps.mutex.RUnlock()

	tracks := make([]core.Track, len(ps.draft))
	copy(tracks, ps.draft)
	return tracks
}

// SaveDraftPlaylist replaces the stored draft playlist.
func (ps *PrefStore) SaveDraftPlaylist(tracks []core.Track) {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	ps.draft = make([]core.Track, len(tracks))
	copy(ps.draft, tracks)
	ps.saveJSON(draftFile, ps.draft)
}

func (ps *PrefStore) loadStringSet(name string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, s := range ps.loadStringList(name) {
		if s != "" {
			set[s] = struct{}{}
		}
	}
	return set
}

func (ps *PrefStore) loadStringList(name string) []string {
	var list []string
	ps.loadJSON(name, &list)
	return list
}

func (ps *PrefStore) loadDraft() []core.Track {
	var tracks []core.Track
	ps.loadJSON(draftFile, &tracks)
	return tracks
}

func (ps *PrefStore) loadJSON(name string, v any) {
	data, err := os.ReadFile(filepath.Join(ps.dir, name))
	if err != nil {
		if !os.IsNotExist(err) {
			ps.logger.Warn("Failed to read state file, starting empty",
				zap.String("file", name),
				zap.Error(err))
		}
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		ps.logger.Warn("Corrupt state file, starting empty",
			zap.String("file", name),
			zap.Error(err))
	}
}

func (ps *PrefStore) saveStringSet(name string, set map[string]struct{}) {
	list := make([]string, 0, len(set))
	for s := range set {
		list = append(list, s)
	}
	ps.saveJSON(name, list)
}

func (ps *PrefStore) saveJSON(name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		ps.logger.Error("Failed to encode state file",
			zap.String("file", name),
			zap.Error(err))
		return
	}

	path := filepath.Join(ps.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		ps.logger.Error("Failed to write state file",
			zap.String("file", name),
			zap.Error(err))
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		ps.logger.Error("Failed to replace state file",
			zap.String("file", name),
			zap.Error(err))
	}
}
