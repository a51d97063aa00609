package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"driftdj/internal/core"
)

type fakeCatalog struct {
	mutex   sync.Mutex
	calls   []core.SearchQuery
	respond func(q core.SearchQuery) ([]core.Track, error)
}

func (fc *fakeCatalog) SearchTracks(_ context.Context, q core.SearchQuery) ([]core.Track, error) {
	fc.mutex.Lock()
	fc.calls = append(fc.calls, q)
	fc.mutex.Unlock()
	if fc.respond != nil {
		return fc.respond(q)
	}
	return nil, nil
}

func (fc *fakeCatalog) ResolveTrack(context.Context, string) (*core.Track, error) {
	return nil, nil
}

func (fc *fakeCatalog) PlaylistTracks(context.Context, string) ([]core.Track, error) {
	return nil, nil
}

func (fc *fakeCatalog) UserPlaylists(context.Context, string) ([]core.Playlist, error) {
	return nil, nil
}

func (fc *fakeCatalog) StreamURL(trackID string) string {
	return "http://stream/" + trackID
}

func (fc *fakeCatalog) recordedCalls() []core.SearchQuery {
	fc.mutex.Lock()
	defer fc.mutex.Unlock()
	out := make([]core.SearchQuery, len(fc.calls))
	copy(out, fc.calls)
	return out
}

type fakePrefs struct {
	snap core.PrefSnapshot
}

func newFakePrefs() *fakePrefs {
	return &fakePrefs{snap: core.PrefSnapshot{
		BlockedTracks:  map[string]struct{}{},
		BlockedArtists: map[string]struct{}{},
		Recent:         map[string]struct{}{},
	}}
}

func (fp *fakePrefs) Snapshot() core.PrefSnapshot    { return fp.snap }
func (fp *fakePrefs) BlockTrack(string)              {}
func (fp *fakePrefs) BlockArtist(string)             {}
func (fp *fakePrefs) UnblockArtist(string)           {}
func (fp *fakePrefs) BlockedArtists() []string       { return nil }
func (fp *fakePrefs) AddRecentlyPlayed(string)       {}
func (fp *fakePrefs) RecentlyPlayed() []string       { return nil }
func (fp *fakePrefs) DraftPlaylist() []core.Track    { return nil }
func (fp *fakePrefs) SaveDraftPlaylist([]core.Track) {}

func lofiTracks(n int) []core.Track {
	out := make([]core.Track, n)
	for i := range out {
		out[i] = core.Track{
			ID:       fmt.Sprintf("t%d", i),
			Genre:    "Lo-Fi",
			Duration: 3 * time.Minute,
			Artist:   core.Artist{Handle: fmt.Sprintf("dj%d", i)},
		}
	}
	return out
}

func trackIDs(tracks []core.Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}

func newTestGateway(fc *fakeCatalog) *Gateway {
	return New(fc, newFakePrefs(), zap.NewNop(), nil, 50, rand.New(rand.NewSource(1)))
}

func TestGateway_FetchVibeBatch(t *testing.T) {
	fc := &fakeCatalog{respond: func(q core.SearchQuery) ([]core.Track, error) {
		return lofiTracks(20), nil
	}}
	gw := newTestGateway(fc)

	tracks, err := gw.FetchVibeBatch(context.Background(), "lofi")
	if err != nil {
		t.Fatalf("FetchVibeBatch() error = %v", err)
	}
	if len(tracks) != 20 {
		t.Errorf("len = %d, want 20", len(tracks))
	}

	calls := fc.recordedCalls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want single page", len(calls))
	}
	if calls[0].Limit != 50 {
		t.Errorf("limit = %d, want 50", calls[0].Limit)
	}
	if calls[0].Offset%25 != 0 || calls[0].Offset > 250 {
		t.Errorf("offset = %d, want multiple of 25 in [0,250]", calls[0].Offset)
	}
	if len(calls[0].Genres) != 1 || calls[0].Genres[0] != "Lo-Fi" {
		t.Errorf("genres = %v, want [Lo-Fi]", calls[0].Genres)
	}
}

func TestGateway_FetchVibeBatch_RotatesQueries(t *testing.T) {
	fc := &fakeCatalog{respond: func(q core.SearchQuery) ([]core.Track, error) {
		return lofiTracks(20), nil
	}}
	gw := newTestGateway(fc)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := gw.FetchVibeBatch(ctx, "lofi"); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}

	calls := fc.recordedCalls()
	wantQueries := core.Vibes["lofi"].Queries
	for i, call := range calls {
		if call.Query != wantQueries[i] {
			t.Errorf("call %d query = %q, want rotation entry %q", i, call.Query, wantQueries[i])
		}
	}
}

func TestGateway_FetchVibeBatch_ErrorPropagates(t *testing.T) {
	fc := &fakeCatalog{respond: func(q core.SearchQuery) ([]core.Track, error) {
		return nil, errors.New("catalog down")
	}}
	gw := newTestGateway(fc)

	if _, err := gw.FetchVibeBatch(context.Background(), "lofi"); err == nil {
		t.Fatal("single-page fetch failure must propagate")
	}
}

func TestGateway_FetchVibeBatch_FallsBackToRadio(t *testing.T) {
	// Thin first page triggers the radio fallback; radio pages are wide.
	fc := &fakeCatalog{}
	first := true
	var mu sync.Mutex
	fc.respond = func(q core.SearchQuery) ([]core.Track, error) {
		mu.Lock()
		thin := first
		first = false
		mu.Unlock()
		if thin {
			return lofiTracks(2), nil
		}
		return lofiTracks(20), nil
	}
	gw := newTestGateway(fc)

	tracks, err := gw.FetchVibeBatch(context.Background(), "lofi")
	if err != nil {
		t.Fatalf("FetchVibeBatch() error = %v", err)
	}

	calls := fc.recordedCalls()
	if len(calls) != 1+4 {
		t.Errorf("calls = %d, want primary page plus 4 radio pages", len(calls))
	}
	if len(tracks) != 20 {
		t.Errorf("len = %d, want deduplicated radio pool", len(tracks))
	}
}

func TestGateway_FetchRadioBatch_PageErrorDegrades(t *testing.T) {
	var mu sync.Mutex
	call := 0
	fc := &fakeCatalog{}
	fc.respond = func(q core.SearchQuery) ([]core.Track, error) {
		mu.Lock()
		call++
		n := call
		mu.Unlock()
		if n == 1 {
			return nil, errors.New("page exploded")
		}
		return []core.Track{{
			ID:       fmt.Sprintf("page%d", n),
			Genre:    "Lo-Fi",
			Duration: 3 * time.Minute,
		}}, nil
	}
	gw := newTestGateway(fc)

	tracks, err := gw.FetchRadioBatch(context.Background(), "lofi")
	if err != nil {
		t.Fatalf("FetchRadioBatch() error = %v", err)
	}
	if len(tracks) != 3 {
		t.Errorf("len = %d, want 3 tracks from the surviving pages", len(tracks))
	}
}

func TestGateway_SearchTracks_AppliesReleaseWindow(t *testing.T) {
	fc := &fakeCatalog{respond: func(q core.SearchQuery) ([]core.Track, error) {
		return []core.Track{
			{ID: "dated", Genre: "Techno", ReleasedAt: time.Now().Add(-24 * time.Hour)},
			{ID: "undated", Genre: "Techno"},
			{ID: "stale", Genre: "Techno", ReleasedAt: time.Now().Add(-30 * 24 * time.Hour)},
		}, nil
	}}
	gw := newTestGateway(fc)

	tracks, err := gw.SearchTracks(context.Background(), core.FilterSet{
		Genres:         []string{"Techno"},
		ReleasedWithin: core.WindowWeek,
	})
	if err != nil {
		t.Fatalf("SearchTracks() error = %v", err)
	}
	if len(tracks) != 1 || tracks[0].ID != "dated" {
		t.Errorf("tracks = %v, want only the recently dated one", trackIDs(tracks))
	}
}

func TestGateway_SearchTracks_AppliesDurationCap(t *testing.T) {
	fc := &fakeCatalog{respond: func(q core.SearchQuery) ([]core.Track, error) {
		return []core.Track{
			{ID: "short", Genre: "Techno", Duration: 4 * time.Minute},
			{ID: "long", Genre: "Techno", Duration: 12 * time.Minute},
		}, nil
	}}
	gw := newTestGateway(fc)

	tracks, err := gw.SearchTracks(context.Background(), core.FilterSet{
		Genres:             []string{"Techno"},
		MaxDurationMinutes: 6,
	})
	if err != nil {
		t.Fatalf("SearchTracks() error = %v", err)
	}
	if len(tracks) != 1 || tracks[0].ID != "short" {
		t.Errorf("tracks = %v, want only the one under the cap", trackIDs(tracks))
	}
}

func TestGateway_SearchTracks_TechnoQueryCap(t *testing.T) {
	fc := &fakeCatalog{respond: func(q core.SearchQuery) ([]core.Track, error) {
		return nil, nil
	}}
	gw := newTestGateway(fc)

	_, err := gw.SearchTracks(context.Background(), core.FilterSet{Genres: []string{"Techno"}})
	if err != nil {
		t.Fatalf("SearchTracks() error = %v", err)
	}

	distinct := map[string]struct{}{}
	literalGenre := false
	for _, call := range fc.recordedCalls() {
		distinct[call.Query] = struct{}{}
		if call.Query == "Techno" {
			literalGenre = true
		}
		if !call.Full {
			t.Error("directed search must use the full endpoint")
		}
		if len(call.Genres) != 1 || call.Genres[0] != "Techno" {
			t.Errorf("genres = %v, want [Techno] forwarded", call.Genres)
		}
	}
	if len(distinct) > 4 {
		t.Errorf("distinct queries = %d, want at most 4", len(distinct))
	}
	if !literalGenre {
		t.Error("one literal genre-name query expected alongside discovery terms")
	}
}

func TestGateway_SearchTracks_FreeTextSingleQuery(t *testing.T) {
	fc := &fakeCatalog{}
	gw := newTestGateway(fc)

	_, err := gw.SearchTracks(context.Background(), core.FilterSet{Query: "  midnight drive  ", Genres: []string{"Techno"}})
	if err != nil {
		t.Fatalf("SearchTracks() error = %v", err)
	}

	calls := fc.recordedCalls()
	// 1 query x 3 sorts x 3 offsets.
	if len(calls) != 9 {
		t.Fatalf("calls = %d, want 9", len(calls))
	}
	for _, call := range calls {
		if call.Query != "midnight drive" {
			t.Errorf("query = %q, want trimmed free text only", call.Query)
		}
	}
}

func TestGateway_SearchTracks_SortBias(t *testing.T) {
	fc := &fakeCatalog{}
	gw := newTestGateway(fc)

	_, err := gw.SearchTracks(context.Background(), core.FilterSet{
		Query:    "dark",
		SortBias: core.SortRecent,
	})
	if err != nil {
		t.Fatalf("SearchTracks() error = %v", err)
	}

	counts := map[string]int{}
	for _, call := range fc.recordedCalls() {
		counts[call.Sort]++
	}
	if counts[core.SortRecent] != 6 || counts[core.SortRelevant] != 3 {
		t.Errorf("sort counts = %v, want recent doubled over relevant", counts)
	}
	if counts[core.SortPopular] != 0 {
		t.Errorf("biased sweep should drop popular, got %v", counts)
	}
}

func TestGateway_SearchTracks_Dedup(t *testing.T) {
	fc := &fakeCatalog{respond: func(q core.SearchQuery) ([]core.Track, error) {
		// Every page returns the same tracks.
		return []core.Track{{ID: "dup1"}, {ID: "dup2"}}, nil
	}}
	gw := newTestGateway(fc)

	tracks, err := gw.SearchTracks(context.Background(), core.FilterSet{Query: "dark"})
	if err != nil {
		t.Fatalf("SearchTracks() error = %v", err)
	}
	if len(tracks) != 2 {
		t.Errorf("len = %d, want 2 after dedup across pages", len(tracks))
	}
}

func TestGateway_FetchRandomMix(t *testing.T) {
	fc := &fakeCatalog{respond: func(q core.SearchQuery) ([]core.Track, error) {
		return []core.Track{{ID: q.Genres[0] + "-" + q.Query}}, nil
	}}
	gw := newTestGateway(fc)

	tracks, err := gw.FetchRandomMix(context.Background())
	if err != nil {
		t.Fatalf("FetchRandomMix() error = %v", err)
	}

	calls := fc.recordedCalls()
	if len(calls) != 4 {
		t.Fatalf("calls = %d, want 4 genre pages", len(calls))
	}
	genres := map[string]struct{}{}
	for _, call := range calls {
		if len(call.Genres) != 1 {
			t.Fatalf("genres = %v, want exactly one per page", call.Genres)
		}
		genres[call.Genres[0]] = struct{}{}
		if call.Offset%25 != 0 || call.Offset > 75 {
			t.Errorf("offset = %d, want multiple of 25 in [0,75]", call.Offset)
		}
	}
	if len(genres) != 4 {
		t.Errorf("distinct genres = %d, want 4", len(genres))
	}
	if len(tracks) != 4 {
		t.Errorf("len = %d, want one track per page", len(tracks))
	}
}

func TestGateway_SearchFromPlaylist_SeedsDistinctGenres(t *testing.T) {
	fc := &fakeCatalog{}
	gw := newTestGateway(fc)

	_, err := gw.SearchFromPlaylist(context.Background(), []core.Track{
		{Genre: "Techno"},
		{Genre: "Techno"},
		{Genre: "House"},
		{},
		{Genre: "Drum & Bass"},
		{Genre: "Trap"},
	})
	if err != nil {
		t.Fatalf("SearchFromPlaylist() error = %v", err)
	}

	calls := fc.recordedCalls()
	if len(calls) == 0 {
		t.Fatal("no catalog calls issued")
	}
	want := []string{"Techno", "House", "Drum & Bass"}
	got := calls[0].Genres
	if len(got) != len(want) {
		t.Fatalf("seed genres = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("seed genre %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestGateway_SearchFromTrack_SeedsGenre(t *testing.T) {
	fc := &fakeCatalog{}
	gw := newTestGateway(fc)

	_, err := gw.SearchFromTrack(context.Background(), core.Track{ID: "t1", Genre: "House"})
	if err != nil {
		t.Fatalf("SearchFromTrack() error = %v", err)
	}

	calls := fc.recordedCalls()
	if len(calls) == 0 {
		t.Fatal("no catalog calls issued")
	}
	for _, c := range calls {
		if len(c.Genres) != 1 || c.Genres[0] != "House" {
			t.Errorf("genres = %v, want [House]", c.Genres)
		}
	}
}
