// Package rank orders candidate tracks for presentation: a uniform shuffle
// for radio batches and a weighted, log-scaled score for discovery feeds.
package rank

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"driftdj/internal/core"
)

// freshWindow marks a release as fresh for scoring purposes.
const freshWindow = 90 * 24 * time.Hour

// Ranker produces presentation orderings. The random source is injected so
// tests can fix the seed.
type Ranker struct {
	rng *rand.Rand
	now func() time.Time
}

// New creates a Ranker backed by the given random source. A nil source
// falls back to a time-seeded one.
func New(rng *rand.Rand) *Ranker {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Ranker{rng: rng, now: time.Now}
}

// Shuffle returns a uniformly shuffled copy of tracks (Fisher-Yates).
func (r *Ranker) Shuffle(tracks []core.Track) []core.Track {
	out := make([]core.Track, len(tracks))
	copy(out, tracks)
	for i := len(out) - 1; i > 0; i-- {
		j := r.rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// WeightedRank returns a copy of tracks sorted by descending score, where
// score = log10(max(playCount,1)) * freshness * (0.5 + uniform random).
// The log scale keeps popular tracks favored without letting popularity
// dominate, and the random factor reorders the top across calls. Tracks
// released within the last 90 days score double.
func (r *Ranker) WeightedRank(tracks []core.Track) []core.Track {
	now := r.now()

	type scored struct {
		track core.Track
		score float64
	}
	items := make([]scored, len(tracks))
	for i, t := range tracks {
		plays := float64(t.PlayCount)
		if plays < 1 {
			plays = 1
		}
		freshness := 1.0
		if !t.ReleasedAt.IsZero() && now.Sub(t.ReleasedAt) <= freshWindow {
			freshness = 2.0
		}
		items[i] = scored{
			track: t,
			score: math.Log10(plays) * freshness * (0.5 + r.rng.Float64()),
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].score > items[j].score
	})

	out := make([]core.Track, len(items))
	for i, it := range items {
		out[i] = it.track
	}
	return out
}
