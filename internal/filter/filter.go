// Package filter implements the candidate filter pipeline: block lists,
// duration caps, genre allow-lists, recency exclusion and the live
// re-filter for directed search results.
package filter

import (
	"strings"
	"time"

	"driftdj/internal/core"
	"driftdj/pkg/fuzzy"
)

// Pipeline filters server batches before they enter the candidate pool.
// All methods are pure over their inputs.
type Pipeline struct {
	norm *fuzzy.Normalizer
}

func New() *Pipeline {
	return &Pipeline{norm: fuzzy.NewNormalizer()}
}

// VibeBatch filters a vibe or radio batch: duplicate IDs (first occurrence
// wins), tracks over the vibe's duration cap, blocked tracks and artists,
// recently played tracks, and genres outside the vibe's allow-list.
func (p *Pipeline) VibeBatch(tracks []core.Track, vibe core.Vibe, prefs core.PrefSnapshot) []core.Track {
	seen := make(map[string]struct{}, len(tracks))
	out := make([]core.Track, 0, len(tracks))
	for _, t := range tracks {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}

		if vibe.MaxDuration > 0 && t.Duration > vibe.MaxDuration {
			continue
		}
		if _, blocked := prefs.BlockedTracks[t.ID]; blocked {
			continue
		}
		if _, blocked := prefs.BlockedArtists[t.Artist.Handle]; blocked {
			continue
		}
		if _, recent := prefs.Recent[t.ID]; recent {
			continue
		}
		if len(vibe.AllowedGenres) > 0 && !p.norm.MatchGenre(t.Genre, vibe.AllowedGenres) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// SearchBatch filters a directed-search fan-out: duplicate IDs, block lists
// and the genre/tag reconciliation rule. Recently played tracks are kept;
// directed search shows the full result set.
//
// Reconciliation: a track passes when its genre is in the selected set, or
// its tag string contains any selected genre name (tag fallback for
// mis-tagged entries). Independently, a track whose tags contain the free
// text query is kept regardless of genre, since a tag match indicates
// deliberate categorization.
func (p *Pipeline) SearchBatch(tracks []core.Track, fs core.FilterSet, prefs core.PrefSnapshot) []core.Track {
	query := strings.TrimSpace(fs.Query)

	seen := make(map[string]struct{}, len(tracks))
	out := make([]core.Track, 0, len(tracks))
	for _, t := range tracks {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}

		if _, blocked := prefs.BlockedTracks[t.ID]; blocked {
			continue
		}
		if _, blocked := prefs.BlockedArtists[t.Artist.Handle]; blocked {
			continue
		}

		if query != "" && t.Tags != "" && p.norm.ContainsTerm(t.Tags, query) {
			out = append(out, t)
			continue
		}

		if len(fs.Genres) > 0 && !p.norm.MatchGenre(t.Genre, fs.Genres) {
			if !p.tagsContainAnyGenre(t.Tags, fs.Genres) {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

// RandomMixBatch filters a random-mix fan-out: duplicate IDs, block lists
// and recently played tracks.
func (p *Pipeline) RandomMixBatch(tracks []core.Track, prefs core.PrefSnapshot) []core.Track {
	seen := make(map[string]struct{}, len(tracks))
	out := make([]core.Track, 0, len(tracks))
	for _, t := range tracks {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}

		if _, blocked := prefs.BlockedTracks[t.ID]; blocked {
			continue
		}
		if _, blocked := prefs.BlockedArtists[t.Artist.Handle]; blocked {
			continue
		}
		if _, recent := prefs.Recent[t.ID]; recent {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Refine applies the live re-filter to already-fetched search results. It
// runs without a network call whenever a filter field changes. BPM bounds
// are inclusive and only apply when the track exposes a BPM; key and mood
// likewise only apply when the track reports them. A track without a
// release timestamp fails an active release window.
func (p *Pipeline) Refine(tracks []core.Track, fs core.FilterSet, prefs core.PrefSnapshot, now time.Time) []core.Track {
	cutoff, hasCutoff := fs.ReleasedWithin.Cutoff(now)
	maxDur := time.Duration(fs.MaxDurationMinutes) * time.Minute

	out := make([]core.Track, 0, len(tracks))
	for _, t := range tracks {
		if _, blocked := prefs.BlockedArtists[t.Artist.Handle]; blocked {
			continue
		}
		if fs.BPMMin > 0 && t.BPM > 0 && t.BPM < fs.BPMMin {
			continue
		}
		if fs.BPMMax > 0 && t.BPM > 0 && t.BPM > fs.BPMMax {
			continue
		}
		if fs.MusicalKey != "" && t.MusicalKey != "" && t.MusicalKey != fs.MusicalKey {
			continue
		}
		if fs.Mood != "" && t.Mood != "" && !strings.EqualFold(t.Mood, fs.Mood) {
			continue
		}
		if maxDur > 0 && t.Duration > maxDur {
			continue
		}
		if hasCutoff {
			if t.ReleasedAt.IsZero() || t.ReleasedAt.Before(cutoff) {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

func (p *Pipeline) tagsContainAnyGenre(tags string, genres []string) bool {
	if tags == "" {
		return false
	}
	for _, g := range genres {
		if p.norm.ContainsTerm(tags, g) {
			return true
		}
	}
	return false
}
