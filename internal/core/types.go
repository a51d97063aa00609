package core

import (
	"context"
	"time"
)

// Artist identifies a catalog artist. The handle is the stable identity
// used for blocking and diversity checks; the display name is for humans.
type Artist struct {
	Handle string
	Name   string
}

// Track is a catalog track as returned by the remote search API. Immutable
// once fetched; identity is the ID.
type Track struct {
	ID         string
	Title      string
	Duration   time.Duration
	BPM        float64
	MusicalKey string
	Mood       string
	Genre      string
	Tags       string
	PlayCount  int
	ReleasedAt time.Time // zero when the catalog reports neither a release nor a creation date
	Artist     Artist
	Artwork    map[string]string // size label -> URL
	Permalink  string
}

// Playlist is a remotely-owned playlist summary.
type Playlist struct {
	ID          string
	Name        string
	Description string
	TrackCount  int
	IsPrivate   bool
	Artwork     map[string]string
}

// Sort methods accepted by the catalog search endpoint.
const (
	SortRelevant = "relevant"
	SortPopular  = "popular"
	SortRecent   = "recent"
)

// ReleaseWindow bounds directed-search results to a recency window.
type ReleaseWindow string

const (
	WindowNone     ReleaseWindow = ""
	WindowDay      ReleaseWindow = "day"
	WindowWeek     ReleaseWindow = "week"
	WindowMonth    ReleaseWindow = "month"
	WindowHalfYear ReleaseWindow = "halfyear"
	WindowYear     ReleaseWindow = "year"
)

// Cutoff returns the earliest acceptable release time for the window,
// computed from now. The half-year window is a calendar offset and the year
// window is January 1st of the current year; the rest are fixed durations.
func (w ReleaseWindow) Cutoff(now time.Time) (time.Time, bool) {
	switch w {
	case WindowDay:
		return now.Add(-24 * time.Hour), true
	case WindowWeek:
		return now.Add(-7 * 24 * time.Hour), true
	case WindowMonth:
		return now.Add(-30 * 24 * time.Hour), true
	case WindowHalfYear:
		return now.AddDate(0, -6, 0), true
	case WindowYear:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location()), true
	default:
		return time.Time{}, false
	}
}

// FilterSet is one directed-search invocation's worth of user filters.
// It is built per search call and re-applied live to already-fetched
// results whenever a field changes.
type FilterSet struct {
	Query              string
	Genres             []string
	BPMMin             float64 // 0 = unset
	BPMMax             float64 // 0 = unset
	MusicalKey         string
	Mood               string
	MaxDurationMinutes int // 0 = unset
	ReleasedWithin     ReleaseWindow
	SortBias           string // optional sort to overweight in the fan-out sweep
}

// SearchQuery is one page request against the catalog search endpoint.
type SearchQuery struct {
	Query  string
	Sort   string
	Limit  int
	Offset int
	Genres []string
	Mood   string
	BPMMin float64
	BPMMax float64
	Key    string
	Full   bool // use the full endpoint, which carries BPM/key/mood fields
}

// Catalog is the read side of the remote track platform.
type Catalog interface {
	SearchTracks(ctx context.Context, q SearchQuery) ([]Track, error)
	ResolveTrack(ctx context.Context, rawURL string) (*Track, error)
	PlaylistTracks(ctx context.Context, playlistID string) ([]Track, error)
	UserPlaylists(ctx context.Context, userID string) ([]Playlist, error)
	StreamURL(trackID string) string
}

// PrefSnapshot is a point-in-time copy of the exclusion state consulted by
// the filter pipeline. Filters never write through it.
type PrefSnapshot struct {
	BlockedTracks  map[string]struct{}
	BlockedArtists map[string]struct{}
	Recent         map[string]struct{}
}

// PrefStore is the durable local preference state: block lists, the
// recently-played ring and the draft playlist. Corrupted or missing
// storage degrades to empty collections, never an error on read.
type PrefStore interface {
	Snapshot() PrefSnapshot
	BlockTrack(id string)
	BlockArtist(handle string)
	UnblockArtist(handle string)
	BlockedArtists() []string
	AddRecentlyPlayed(id string)
	RecentlyPlayed() []string
	DraftPlaylist() []Track
	SaveDraftPlaylist(tracks []Track)
}
