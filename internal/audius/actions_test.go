package audius

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestActionClient(t *testing.T, handler http.HandlerFunc) *ActionClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewActionClient(srv.URL, 5*time.Second, zap.NewNop())
}

func TestActionClient_CreatePlaylist(t *testing.T) {
	var gotBody map[string]any
	ac := newTestActionClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/create-playlist" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"playlistId": "pl-new"})
	})

	id, err := ac.CreatePlaylist(context.Background(), "u1", "Night Drive",
		[]string{"t1", "t2"}, "late hours", true, "")
	if err != nil {
		t.Fatalf("CreatePlaylist() error = %v", err)
	}
	if id != "pl-new" {
		t.Errorf("id = %s, want pl-new", id)
	}
	if gotBody["playlistName"] != "Night Drive" {
		t.Errorf("playlistName = %v", gotBody["playlistName"])
	}
	if gotBody["isPrivate"] != true {
		t.Errorf("isPrivate = %v, want true", gotBody["isPrivate"])
	}
	if _, has := gotBody["artworkUrl"]; has {
		t.Error("empty artworkUrl should be omitted")
	}
}

func TestActionClient_CreatePlaylist_ProxyError(t *testing.T) {
	ac := newTestActionClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "name required"})
	})

	_, err := ac.CreatePlaylist(context.Background(), "u1", "", nil, "", false, "")
	if err == nil {
		t.Fatal("expected error from proxy")
	}
}

func TestActionClient_AddRemoveTrack(t *testing.T) {
	var actions []string
	ac := newTestActionClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/playlist-action" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		actions = append(actions, body["action"].(string))
		w.WriteHeader(http.StatusOK)
	})

	if err := ac.AddTrack(context.Background(), "u1", "pl1", "t1"); err != nil {
		t.Fatalf("AddTrack() error = %v", err)
	}
	if err := ac.RemoveTrack(context.Background(), "u1", "pl1", "t1"); err != nil {
		t.Fatalf("RemoveTrack() error = %v", err)
	}

	if len(actions) != 2 || actions[0] != "addTrack" || actions[1] != "removeTrack" {
		t.Errorf("actions = %v", actions)
	}
}

func TestActionClient_TrackActions(t *testing.T) {
	var actions []string
	ac := newTestActionClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/track-action" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		actions = append(actions, body["action"].(string))
		w.WriteHeader(http.StatusOK)
	})

	ctx := context.Background()
	for _, call := range []func() error{
		func() error { return ac.Favorite(ctx, "u1", "t1") },
		func() error { return ac.Unfavorite(ctx, "u1", "t1") },
		func() error { return ac.Repost(ctx, "u1", "t1") },
		func() error { return ac.Unrepost(ctx, "u1", "t1") },
	} {
		if err := call(); err != nil {
			t.Fatalf("track action error = %v", err)
		}
	}

	want := []string{"favorite", "unfavorite", "repost", "unrepost"}
	for i, action := range want {
		if actions[i] != action {
			t.Errorf("actions[%d] = %s, want %s", i, actions[i], action)
		}
	}
}

func TestActionClient_UpdatePlaylist(t *testing.T) {
	var gotBody map[string]any
	ac := newTestActionClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	})

	private := true
	err := ac.UpdatePlaylist(context.Background(), "u1", "pl1",
		PlaylistMetadata{PlaylistName: "Renamed", IsPrivate: &private}, "")
	if err != nil {
		t.Fatalf("UpdatePlaylist() error = %v", err)
	}

	meta, ok := gotBody["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("metadata missing from body: %v", gotBody)
	}
	if meta["playlistName"] != "Renamed" {
		t.Errorf("playlistName = %v", meta["playlistName"])
	}
	if meta["isPrivate"] != true {
		t.Errorf("isPrivate = %v", meta["isPrivate"])
	}
	if _, has := meta["description"]; has {
		t.Error("empty description should be omitted")
	}
}
