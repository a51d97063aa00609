// Package http exposes the control API: playback transport, vibe selection,
// directed search, draft playlist editing, and the usual health and metrics
// endpoints.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"driftdj/internal/core"
	"driftdj/internal/flood"
	"driftdj/internal/player"
	"driftdj/internal/playlist"
)

// TrackSource is the fetch side of the gateway used by the API handlers.
type TrackSource interface {
	FetchVibeBatch(ctx context.Context, vibeName string) ([]core.Track, error)
	FetchRandomMix(ctx context.Context) ([]core.Track, error)
	SearchTracks(ctx context.Context, fs core.FilterSet) ([]core.Track, error)
	SearchFromTrack(ctx context.Context, track core.Track) ([]core.Track, error)
	SearchFromPlaylist(ctx context.Context, tracks []core.Track) ([]core.Track, error)
}

// Library is the playlist read side of the catalog.
type Library interface {
	PlaylistTracks(ctx context.Context, playlistID string) ([]core.Track, error)
	UserPlaylists(ctx context.Context, userID string) ([]core.Playlist, error)
}

// Queue is the queue surface the API needs.
type Queue interface {
	Load(vibeName string, tracks []core.Track)
	Current() *core.Track
	Remaining() int
}

// Player is the playback session surface the API needs.
type Player interface {
	StartCurrent()
	Play()
	Pause()
	Skip()
	Prev()
	Stop()
	SeekFraction(frac float64)
	BlockCurrentTrack()
	BlockCurrentArtist()
	Status() player.Status
}

// Reactor forwards favorite/repost actions to the write proxy. A nil Reactor
// disables the write endpoints.
type Reactor interface {
	Favorite(ctx context.Context, userID, trackID string) error
	Unfavorite(ctx context.Context, userID, trackID string) error
	Repost(ctx context.Context, userID, trackID string) error
	Unrepost(ctx context.Context, userID, trackID string) error
}

type Server struct {
	config  *core.ServerConfig
	logger  *zap.Logger
	server  *http.Server
	metrics *Metrics

	source  TrackSource
	library Library
	queue   Queue
	player  Player
	drafts  *playlist.Manager
	prefs   core.PrefStore
	reactor Reactor
	gate    *flood.Floodgate
}

func NewServer(
	config *core.ServerConfig,
	logger *zap.Logger,
	source TrackSource,
	library Library,
	q Queue,
	p Player,
	drafts *playlist.Manager,
	prefs core.PrefStore,
	reactor Reactor,
	gate *flood.Floodgate,
	metrics *Metrics,
) *Server {
	if metrics == nil {
		metrics = NewMetrics()
	}
	s := &Server{
		config:  config,
		logger:  logger,
		metrics: metrics,
		source:  source,
		library: library,
		queue:   q,
		player:  p,
		drafts:  drafts,
		prefs:   prefs,
		reactor: reactor,
		gate:    gate,
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      s.routes(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleHome)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Get("/vibes", s.handleVibes)
		r.Post("/vibes/{name}", s.handleSelectVibe)
		r.Post("/random", s.handleRandomMix)
		r.Post("/radio/from-current", s.handleRadioFromCurrent)
		r.Post("/radio/from-playlist/{playlistID}", s.handleRadioFromPlaylist)
		r.Post("/search", s.handleSearch)

		r.Get("/playlists", s.handleUserPlaylists)

		r.Route("/player", func(r chi.Router) {
			r.Post("/play", s.playerAction(Player.Play))
			r.Post("/pause", s.playerAction(Player.Pause))
			r.Post("/next", s.playerAction(Player.Skip))
			r.Post("/prev", s.playerAction(Player.Prev))
			r.Post("/stop", s.playerAction(Player.Stop))
			r.Post("/seek", s.handleSeek)
			r.Post("/block-track", s.playerAction(Player.BlockCurrentTrack))
			r.Post("/block-artist", s.playerAction(Player.BlockCurrentArtist))
		})

		r.Post("/track/{action}", s.handleTrackReaction)

		r.Route("/draft", func(r chi.Router) {
			r.Get("/", s.handleDraftList)
			r.Post("/", s.handleDraftAddCurrent)
			r.Delete("/{trackID}", s.handleDraftRemove)
			r.Post("/publish", s.handleDraftPublish)
			r.Post("/import", s.handleDraftImport)
		})

		r.Get("/blocked-artists", s.handleBlockedArtists)
		r.Post("/blocked-artists/unblock", s.handleUnblockArtist)
	})

	return r
}

// Start runs the server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// GetMetrics exposes the instruments so other components can record into them.
func (s *Server) GetMetrics() *Metrics {
	return s.metrics
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","service":"driftdj"}`))
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready","service":"driftdj"}`))
}

func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>driftdj</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .endpoint { margin: 10px 0; }
        .endpoint a { text-decoration: none; color: #0066cc; }
    </style>
</head>
<body>
    <h1>🎵 driftdj</h1>
    <p>Audius vibe radio and discovery service</p>

    <h2>Endpoints</h2>
    <div class="endpoint">📊 <a href="/metrics">Metrics</a> - Prometheus metrics</div>
    <div class="endpoint">💚 <a href="/healthz">Health</a> - Health check</div>
    <div class="endpoint">✅ <a href="/readyz">Ready</a> - Readiness check</div>
    <div class="endpoint">🎚 <a href="/api/status">Status</a> - Playback status</div>
</body>
</html>`))
}

type statusResponse struct {
	State           string     `json:"state"`
	WantsToPlay     bool       `json:"wants_to_play"`
	Track           *trackView `json:"track,omitempty"`
	PositionSeconds float64    `json:"position_seconds"`
	DurationSeconds float64    `json:"duration_seconds"`
	QueueRemaining  int        `json:"queue_remaining"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.player.Status()
	resp := statusResponse{
		State:           st.State.String(),
		WantsToPlay:     st.WantsToPlay,
		PositionSeconds: st.Position.Seconds(),
		DurationSeconds: st.Duration.Seconds(),
		QueueRemaining:  s.queue.Remaining(),
	}
	if st.Track != nil {
		tv := newTrackView(*st.Track)
		resp.Track = &tv
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type vibeView struct {
	Name          string   `json:"name"`
	Label         string   `json:"label"`
	AllowedGenres []string `json:"allowed_genres,omitempty"`
}

func (s *Server) handleVibes(w http.ResponseWriter, _ *http.Request) {
	views := make([]vibeView, 0, len(core.Vibes))
	for _, v := range core.Vibes {
		views = append(views, vibeView{
			Name:          v.Name,
			Label:         v.Label,
			AllowedGenres: v.AllowedGenres,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleSelectVibe(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := core.Vibes[name]; !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown vibe %q", name))
		return
	}

	tracks, err := s.source.FetchVibeBatch(r.Context(), name)
	if err != nil {
		s.logger.Error("Vibe fetch failed", zap.String("vibe", name), zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "catalog fetch failed")
		return
	}

	s.queue.Load(name, tracks)
	s.player.StartCurrent()
	s.metrics.QueueRemaining.Set(float64(s.queue.Remaining()))

	s.writeJSON(w, http.StatusOK, trackViews(tracks))
}

func (s *Server) handleRandomMix(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.source.FetchRandomMix(r.Context())
	if err != nil {
		s.logger.Error("Random mix fetch failed", zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "catalog fetch failed")
		return
	}

	s.queue.Load("random", tracks)
	s.player.StartCurrent()
	s.metrics.QueueRemaining.Set(float64(s.queue.Remaining()))

	s.writeJSON(w, http.StatusOK, trackViews(tracks))
}

// handleRadioFromCurrent seeds a new queue from the currently playing
// track's genre.
func (s *Server) handleRadioFromCurrent(w http.ResponseWriter, r *http.Request) {
	current := s.queue.Current()
	if current == nil {
		s.writeError(w, http.StatusConflict, "nothing is playing")
		return
	}

	tracks, err := s.source.SearchFromTrack(r.Context(), *current)
	if err != nil {
		s.logger.Error("Radio-from-track fetch failed",
			zap.String("track_id", current.ID), zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "catalog fetch failed")
		return
	}

	s.queue.Load("radio", tracks)
	s.player.StartCurrent()
	s.metrics.QueueRemaining.Set(float64(s.queue.Remaining()))

	s.writeJSON(w, http.StatusOK, trackViews(tracks))
}

// handleRadioFromPlaylist seeds a new queue from a playlist's genres.
func (s *Server) handleRadioFromPlaylist(w http.ResponseWriter, r *http.Request) {
	playlistID := chi.URLParam(r, "playlistID")

	seeds, err := s.library.PlaylistTracks(r.Context(), playlistID)
	if err != nil {
		s.logger.Error("Playlist fetch failed",
			zap.String("playlist_id", playlistID), zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "playlist fetch failed")
		return
	}
	if len(seeds) == 0 {
		s.writeError(w, http.StatusNotFound, "playlist is empty or unknown")
		return
	}

	tracks, err := s.source.SearchFromPlaylist(r.Context(), seeds)
	if err != nil {
		s.logger.Error("Radio-from-playlist fetch failed",
			zap.String("playlist_id", playlistID), zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "catalog fetch failed")
		return
	}

	s.queue.Load("radio", tracks)
	s.player.StartCurrent()
	s.metrics.QueueRemaining.Set(float64(s.queue.Remaining()))

	s.writeJSON(w, http.StatusOK, trackViews(tracks))
}

type playlistView struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	TrackCount  int               `json:"track_count"`
	IsPrivate   bool              `json:"is_private"`
	Artwork     map[string]string `json:"artwork,omitempty"`
}

func (s *Server) handleUserPlaylists(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	playlists, err := s.library.UserPlaylists(r.Context(), userID)
	if err != nil {
		s.logger.Error("User playlists fetch failed",
			zap.String("user_id", userID), zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "playlist listing failed")
		return
	}

	views := make([]playlistView, 0, len(playlists))
	for _, p := range playlists {
		views = append(views, playlistView{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			TrackCount:  p.TrackCount,
			IsPrivate:   p.IsPrivate,
			Artwork:     p.Artwork,
		})
	}
	s.writeJSON(w, http.StatusOK, views)
}

type searchRequest struct {
	Query              string   `json:"query"`
	Genres             []string `json:"genres"`
	Mood               string   `json:"mood"`
	BPMMin             float64  `json:"bpm_min"`
	BPMMax             float64  `json:"bpm_max"`
	MusicalKey         string   `json:"key"`
	MaxDurationMinutes int      `json:"max_duration_minutes"`
	ReleasedWithin     string   `json:"released_within"`
	SortBias           string   `json:"sort_bias"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !s.gate.Allow(callerKey(r)) {
		s.metrics.SearchesBlocked.Inc()
		s.writeError(w, http.StatusTooManyRequests, "search rate limit exceeded")
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fs := core.FilterSet{
		Query:              req.Query,
		Genres:             req.Genres,
		Mood:               req.Mood,
		BPMMin:             req.BPMMin,
		BPMMax:             req.BPMMax,
		MusicalKey:         req.MusicalKey,
		MaxDurationMinutes: req.MaxDurationMinutes,
		ReleasedWithin:     core.ReleaseWindow(req.ReleasedWithin),
		SortBias:           req.SortBias,
	}

	tracks, err := s.source.SearchTracks(r.Context(), fs)
	if err != nil {
		s.logger.Error("Search failed", zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "catalog search failed")
		return
	}

	s.writeJSON(w, http.StatusOK, trackViews(tracks))
}

// playerAction wraps a transport method into a handler returning the fresh
// status, so clients see the effect of the action they issued.
func (s *Server) playerAction(action func(Player)) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		action(s.player)
		s.metrics.QueueRemaining.Set(float64(s.queue.Remaining()))
		s.handleStatus(w, nil)
	}
}

type seekRequest struct {
	Fraction float64 `json:"fraction"`
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Fraction < 0 || req.Fraction > 1 {
		s.writeError(w, http.StatusBadRequest, "fraction must be within [0,1]")
		return
	}
	s.player.SeekFraction(req.Fraction)
	s.handleStatus(w, nil)
}

type trackReactionRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleTrackReaction(w http.ResponseWriter, r *http.Request) {
	if s.reactor == nil {
		s.writeError(w, http.StatusServiceUnavailable, "write actions are disabled")
		return
	}

	current := s.queue.Current()
	if current == nil {
		s.writeError(w, http.StatusConflict, "nothing is playing")
		return
	}

	var req trackReactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	var err error
	switch action := chi.URLParam(r, "action"); action {
	case "favorite":
		err = s.reactor.Favorite(r.Context(), req.UserID, current.ID)
	case "unfavorite":
		err = s.reactor.Unfavorite(r.Context(), req.UserID, current.ID)
	case "repost":
		err = s.reactor.Repost(r.Context(), req.UserID, current.ID)
	case "unrepost":
		err = s.reactor.Unrepost(r.Context(), req.UserID, current.ID)
	default:
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown action %q", action))
		return
	}
	if err != nil {
		s.logger.Error("Track action failed", zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "write proxy rejected the action")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"track_id": current.ID})
}

func (s *Server) handleDraftList(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, trackViews(s.drafts.Tracks()))
}

func (s *Server) handleDraftAddCurrent(w http.ResponseWriter, _ *http.Request) {
	current := s.queue.Current()
	if current == nil {
		s.writeError(w, http.StatusConflict, "nothing is playing")
		return
	}
	if !s.drafts.Add(*current) {
		s.writeError(w, http.StatusConflict, "track is already in the draft")
		return
	}
	s.metrics.DraftSize.Set(float64(len(s.drafts.Tracks())))
	s.writeJSON(w, http.StatusOK, trackViews(s.drafts.Tracks()))
}

func (s *Server) handleDraftRemove(w http.ResponseWriter, r *http.Request) {
	trackID := chi.URLParam(r, "trackID")
	if !s.drafts.Remove(trackID) {
		s.writeError(w, http.StatusNotFound, "track is not in the draft")
		return
	}
	s.metrics.DraftSize.Set(float64(len(s.drafts.Tracks())))
	s.writeJSON(w, http.StatusOK, trackViews(s.drafts.Tracks()))
}

type publishRequest struct {
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
	ArtworkURL  string `json:"artwork_url"`
}

func (s *Server) handleDraftPublish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "user_id and name are required")
		return
	}

	playlistID, err := s.drafts.Publish(r.Context(), req.UserID, req.Name, req.Description, req.IsPrivate, req.ArtworkURL)
	if err != nil {
		s.logger.Error("Draft publish failed", zap.Error(err))
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.metrics.DraftSize.Set(0)
	s.writeJSON(w, http.StatusOK, map[string]string{"playlist_id": playlistID})
}

type importRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleDraftImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	added, err := s.drafts.ImportText(r.Context(), req.Text)
	if err != nil {
		s.logger.Error("Draft import failed", zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "resolving links failed")
		return
	}

	s.metrics.DraftSize.Set(float64(len(s.drafts.Tracks())))
	s.writeJSON(w, http.StatusOK, trackViews(added))
}

func (s *Server) handleBlockedArtists(w http.ResponseWriter, _ *http.Request) {
	handles := s.prefs.BlockedArtists()
	if handles == nil {
		handles = []string{}
	}
	sort.Strings(handles)
	s.writeJSON(w, http.StatusOK, handles)
}

type unblockRequest struct {
	Handle string `json:"handle"`
}

func (s *Server) handleUnblockArtist(w http.ResponseWriter, r *http.Request) {
	var req unblockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Handle == "" {
		s.writeError(w, http.StatusBadRequest, "handle is required")
		return
	}
	s.prefs.UnblockArtist(req.Handle)
	s.writeJSON(w, http.StatusOK, map[string]string{"handle": req.Handle})
}

type trackView struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	ArtistHandle    string            `json:"artist_handle"`
	ArtistName      string            `json:"artist_name,omitempty"`
	Genre           string            `json:"genre,omitempty"`
	Mood            string            `json:"mood,omitempty"`
	MusicalKey      string            `json:"key,omitempty"`
	BPM             float64           `json:"bpm,omitempty"`
	DurationSeconds float64           `json:"duration_seconds"`
	PlayCount       int               `json:"play_count"`
	ReleasedAt      string            `json:"released_at,omitempty"`
	Permalink       string            `json:"permalink,omitempty"`
	Artwork         map[string]string `json:"artwork,omitempty"`
}

func newTrackView(t core.Track) trackView {
	tv := trackView{
		ID:              t.ID,
		Title:           t.Title,
		ArtistHandle:    t.Artist.Handle,
		ArtistName:      t.Artist.Name,
		Genre:           t.Genre,
		Mood:            t.Mood,
		MusicalKey:      t.MusicalKey,
		BPM:             t.BPM,
		DurationSeconds: t.Duration.Seconds(),
		PlayCount:       t.PlayCount,
		Permalink:       t.Permalink,
		Artwork:         t.Artwork,
	}
	if !t.ReleasedAt.IsZero() {
		tv.ReleasedAt = t.ReleasedAt.Format(time.RFC3339)
	}
	return tv
}

func trackViews(tracks []core.Track) []trackView {
	out := make([]trackView, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, newTrackView(t))
	}
	return out
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// callerKey identifies the client for rate limiting, the port is irrelevant.
func callerKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
