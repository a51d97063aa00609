// Package gateway turns vibe selections, directed searches and random-mix
// requests into parameterized catalog queries, fanning out pages in
// parallel and merging the results through the filter pipeline.
package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"driftdj/internal/core"
	"driftdj/internal/filter"
	"driftdj/internal/rank"
)

// radioFallbackThreshold is the result count below which a vibe fetch falls
// back to the wider radio fan-out.
const radioFallbackThreshold = 5

const (
	radioPickCount         = 4
	maxSearchQueries       = 4
	discoveryTermsPerGenre = 3
	randomMixGenreCount    = 4
	searchPageLimit        = 100
)

// Metrics receives fetch outcome counts. The control server provides the
// Prometheus-backed implementation.
type Metrics interface {
	RecordFetch(mode string, tracks int)
	RecordPageError(mode string)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) RecordFetch(string, int) {}
func (NopMetrics) RecordPageError(string)  {}

// Gateway is the track source for all discovery modes. It owns the per-vibe
// query rotation state so repeated fetches cycle through a vibe's query
// list instead of repeating the same phrase.
type Gateway struct {
	catalog  core.Catalog
	prefs    core.PrefStore
	pipeline *filter.Pipeline
	ranker   *rank.Ranker
	logger   *zap.Logger
	metrics  Metrics
	limit    int

	mutex    sync.Mutex
	rng      *rand.Rand
	rotation map[string]int
}

// New creates a Gateway. limit bounds single-page vibe fetches; a nil rng
// falls back to a time-seeded source.
func New(catalog core.Catalog, prefs core.PrefStore, logger *zap.Logger, metrics Metrics, limit int, rng *rand.Rand) *Gateway {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if limit <= 0 {
		limit = core.DefaultBatchLimit
	}
	return &Gateway{
		catalog:  catalog,
		prefs:    prefs,
		pipeline: filter.New(),
		ranker:   rank.New(rand.New(rand.NewSource(rng.Int63()))),
		logger:   logger,
		metrics:  metrics,
		limit:    limit,
		rng:      rng,
		rotation: make(map[string]int),
	}
}

// FetchVibeBatch fetches one page for the vibe's current rotation query and
// filters it. When the filtered batch under-returns it falls back to the
// wider radio fan-out. The returned batch is weighted-ranked.
func (g *Gateway) FetchVibeBatch(ctx context.Context, vibeName string) ([]core.Track, error) {
	vibe := core.LookupVibe(vibeName, "lofi")
	idx := g.advanceRotation(vibe.Name)

	query := vibe.Queries[idx%len(vibe.Queries)]
	// Relevant and recent are overrepresented to avoid popularity bias.
	sorts := []string{core.SortRelevant, core.SortRelevant, core.SortPopular, core.SortRecent, core.SortRecent}
	sort := sorts[g.intn(len(sorts))]
	offset := g.intn(11) * 25

	tracks, err := g.catalog.SearchTracks(ctx, core.SearchQuery{
		Query:  query,
		Sort:   sort,
		Limit:  g.limit,
		Offset: offset,
		Genres: genreParam(vibe.APIGenre(idx)),
	})
	if err != nil {
		return nil, fmt.Errorf("vibe fetch failed: %w", err)
	}

	filtered := g.pipeline.VibeBatch(tracks, vibe, g.prefs.Snapshot())
	g.logger.Debug("Fetched vibe batch",
		zap.String("vibe", vibe.Name),
		zap.String("query", query),
		zap.String("sort", sort),
		zap.Int("offset", offset),
		zap.Int("raw", len(tracks)),
		zap.Int("filtered", len(filtered)))
	g.metrics.RecordFetch("vibe", len(filtered))

	if len(filtered) < radioFallbackThreshold {
		g.logger.Info("Vibe batch under-returned, widening to radio",
			zap.String("vibe", vibe.Name),
			zap.Int("results", len(filtered)))
		return g.FetchRadioBatch(ctx, vibeName)
	}
	return g.ranker.WeightedRank(filtered), nil
}

// FetchRadioBatch fans out several random query/sort/offset picks in
// parallel for a much wider pool. A failed page contributes zero results
// rather than failing the batch. The merged batch is shuffled.
func (g *Gateway) FetchRadioBatch(ctx context.Context, vibeName string) ([]core.Track, error) {
	vibe := core.LookupVibe(vibeName, "lofi")

	type pick struct {
		query  string
		sort   string
		offset int
		genre  string
	}
	sorts := []string{core.SortRelevant, core.SortPopular, core.SortRecent}

	picks := make([]pick, radioPickCount)
	g.mutex.Lock()
	for i := range picks {
		picks[i] = pick{
			query:  vibe.Queries[g.rng.Intn(len(vibe.Queries))],
			sort:   sorts[g.rng.Intn(len(sorts))],
			offset: g.rng.Intn(20) * 25,
			genre:  vibe.APIGenre(i),
		}
	}
	g.mutex.Unlock()

	pages := make([][]core.Track, len(picks))
	grp, grpCtx := errgroup.WithContext(ctx)
	for i, p := range picks {
		i, p := i, p
		grp.Go(func() error {
			tracks, err := g.catalog.SearchTracks(grpCtx, core.SearchQuery{
				Query:  p.query,
				Sort:   p.sort,
				Limit:  g.limit,
				Offset: p.offset,
				Genres: genreParam(p.genre),
			})
			if err != nil {
				g.logger.Warn("Radio page fetch failed",
					zap.String("vibe", vibe.Name),
					zap.String("query", p.query),
					zap.Error(err))
				g.metrics.RecordPageError("radio")
				return nil
			}
			pages[i] = tracks
			return nil
		})
	}
	_ = grp.Wait()

	merged := flatten(pages)
	filtered := g.pipeline.VibeBatch(merged, vibe, g.prefs.Snapshot())
	g.metrics.RecordFetch("radio", len(filtered))
	return g.ranker.Shuffle(filtered), nil
}

// SearchTracks runs a directed search: up to four underlying queries swept
// across sorts and offsets in parallel, merged, deduplicated and filtered.
// Results keep their merged order. The refinement filters (BPM, key, mood,
// duration cap, release window) are applied before returning, so the server
// sweep and the client-side fields behave the same.
func (g *Gateway) SearchTracks(ctx context.Context, fs core.FilterSet) ([]core.Track, error) {
	queries := g.buildSearchQueries(fs)

	sorts := []string{core.SortRelevant, core.SortPopular, core.SortRecent}
	if fs.SortBias != "" {
		// Weight the biased sort heavily, e.g. recent when date-filtering.
		sorts = []string{fs.SortBias, fs.SortBias, core.SortRelevant}
	}
	offsets := []int{0, 100, 200}

	type page struct {
		query  string
		sort   string
		offset int
	}
	var plan []page
	for _, q := range queries {
		for _, s := range sorts {
			for _, o := range offsets {
				plan = append(plan, page{query: q, sort: s, offset: o})
			}
		}
	}

	pages := make([][]core.Track, len(plan))
	grp, grpCtx := errgroup.WithContext(ctx)
	for i, p := range plan {
		i, p := i, p
		grp.Go(func() error {
			tracks, err := g.catalog.SearchTracks(grpCtx, core.SearchQuery{
				Query:  p.query,
				Sort:   p.sort,
				Limit:  searchPageLimit,
				Offset: p.offset,
				Genres: fs.Genres,
				Mood:   fs.Mood,
				BPMMin: fs.BPMMin,
				BPMMax: fs.BPMMax,
				Key:    fs.MusicalKey,
				Full:   true,
			})
			if err != nil {
				g.logger.Warn("Search page fetch failed",
					zap.String("query", p.query),
					zap.String("sort", p.sort),
					zap.Int("offset", p.offset),
					zap.Error(err))
				g.metrics.RecordPageError("search")
				return nil
			}
			pages[i] = tracks
			return nil
		})
	}
	_ = grp.Wait()

	merged := flatten(pages)
	snap := g.prefs.Snapshot()
	filtered := g.pipeline.SearchBatch(merged, fs, snap)
	filtered = g.pipeline.Refine(filtered, fs, snap, time.Now())
	g.metrics.RecordFetch("search", len(filtered))
	return filtered, nil
}

// SearchFromTrack runs a directed search seeded with the track's genre.
func (g *Gateway) SearchFromTrack(ctx context.Context, track core.Track) ([]core.Track, error) {
	fs := core.FilterSet{}
	if track.Genre != "" {
		fs.Genres = []string{track.Genre}
	}
	return g.SearchTracks(ctx, fs)
}

// SearchFromPlaylist runs a directed search seeded with the playlist's
// distinct genres, capped at three.
func (g *Gateway) SearchFromPlaylist(ctx context.Context, tracks []core.Track) ([]core.Track, error) {
	const maxSeedGenres = 3

	fs := core.FilterSet{}
	seen := make(map[string]struct{})
	for _, t := range tracks {
		if t.Genre == "" {
			continue
		}
		if _, ok := seen[t.Genre]; ok {
			continue
		}
		seen[t.Genre] = struct{}{}
		fs.Genres = append(fs.Genres, t.Genre)
		if len(fs.Genres) == maxSeedGenres {
			break
		}
	}
	return g.SearchTracks(ctx, fs)
}

// FetchRandomMix fetches one discovery-term page for each of four random
// genres and merges them into a shuffled mix.
func (g *Gateway) FetchRandomMix(ctx context.Context) ([]core.Track, error) {
	genres := make([]string, 0, len(core.GenreDiscovery))
	for genre := range core.GenreDiscovery {
		genres = append(genres, genre)
	}

	type pick struct {
		genre  string
		query  string
		sort   string
		offset int
	}
	sorts := []string{core.SortRelevant, core.SortPopular, core.SortRecent}

	g.mutex.Lock()
	g.rng.Shuffle(len(genres), func(i, j int) {
		genres[i], genres[j] = genres[j], genres[i]
	})
	picked := genres[:randomMixGenreCount]
	picks := make([]pick, len(picked))
	for i, genre := range picked {
		pool := core.GenreDiscovery[genre]
		picks[i] = pick{
			genre:  genre,
			query:  pool[g.rng.Intn(len(pool))],
			sort:   sorts[g.rng.Intn(len(sorts))],
			offset: g.rng.Intn(4) * 25,
		}
	}
	g.mutex.Unlock()

	pages := make([][]core.Track, len(picks))
	grp, grpCtx := errgroup.WithContext(ctx)
	for i, p := range picks {
		i, p := i, p
		grp.Go(func() error {
			tracks, err := g.catalog.SearchTracks(grpCtx, core.SearchQuery{
				Query:  p.query,
				Sort:   p.sort,
				Limit:  searchPageLimit,
				Offset: p.offset,
				Genres: []string{p.genre},
				Full:   true,
			})
			if err != nil {
				g.logger.Warn("Random mix page fetch failed",
					zap.String("genre", p.genre),
					zap.String("query", p.query),
					zap.Error(err))
				g.metrics.RecordPageError("random")
				return nil
			}
			pages[i] = tracks
			return nil
		})
	}
	_ = grp.Wait()

	merged := flatten(pages)
	filtered := g.pipeline.RandomMixBatch(merged, g.prefs.Snapshot())
	g.metrics.RecordFetch("random", len(filtered))
	return g.ranker.Shuffle(filtered), nil
}

// buildSearchQueries picks the underlying query strings for a directed
// search. Free text is used alone; otherwise each selected genre
// contributes three random discovery terms plus one literal genre name;
// with nothing selected, generic fallback terms are used. Capped at four.
func (g *Gateway) buildSearchQueries(fs core.FilterSet) []string {
	var queries []string

	switch {
	case strings.TrimSpace(fs.Query) != "":
		queries = []string{strings.TrimSpace(fs.Query)}
	case len(fs.Genres) > 0:
		g.mutex.Lock()
		for _, genre := range fs.Genres {
			pool, ok := core.GenreDiscovery[genre]
			if !ok {
				pool = []string{genre}
			}
			shuffled := make([]string, len(pool))
			copy(shuffled, pool)
			g.rng.Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})
			n := discoveryTermsPerGenre
			if n > len(shuffled) {
				n = len(shuffled)
			}
			queries = append(queries, shuffled[:n]...)
		}
		g.mutex.Unlock()
		queries = append(queries, fs.Genres[0])
	default:
		queries = append(queries, core.FallbackDiscoveryTerms...)
	}

	if len(queries) > maxSearchQueries {
		queries = queries[:maxSearchQueries]
	}
	return queries
}

// advanceRotation returns the vibe's current rotation index and advances it.
func (g *Gateway) advanceRotation(vibeName string) int {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	idx := g.rotation[vibeName]
	g.rotation[vibeName]++
	return idx
}

func (g *Gateway) intn(n int) int {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.rng.Intn(n)
}

func genreParam(genre string) []string {
	if genre == "" {
		return nil
	}
	return []string{genre}
}

func flatten(pages [][]core.Track) []core.Track {
	total := 0
	for _, p := range pages {
		total += len(p)
	}
	out := make([]core.Track, 0, total)
	for _, p := range pages {
		out = append(out, p...)
	}
	return out
}

