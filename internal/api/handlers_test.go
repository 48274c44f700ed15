package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"parlor/internal/auth"
	"parlor/internal/history"
	"parlor/internal/models"
	"parlor/internal/registry"
	"parlor/internal/rooms"
	"parlor/internal/storage"
)

func newTestAPI(t *testing.T) (*API, *storage.Store, *registry.Registry) {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "api_test.db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	authService, err := auth.NewService(context.Background(), auth.Config{TokenExpiry: time.Hour}, store)
	if err != nil {
		t.Fatalf("failed to create auth service: %v", err)
	}
	tracker := rooms.NewTracker(context.Background(), store, time.Minute)
	reg := registry.NewRegistry()
	return New(authService, store, tracker, history.NewPaginator(store), reg), store, reg
}

func TestHistoryHandler(t *testing.T) {
	api, store, _ := newTestAPI(t)

	room := models.Room{ID: "room1", Type: models.RoomTypeGroup, Name: "general", CreatedAt: 1000}
	member := models.Membership{UserID: "alice", RoomID: "room1", Role: models.RoleAdmin, JoinedAt: 1000}
	if err := store.CreateRoomWithMembers(room, []models.Membership{member}); err != nil {
		t.Fatalf("CreateRoomWithMembers failed: %v", err)
	}
	msg := models.Message{
		ID:         "msg1",
		RoomID:     "room1",
		SenderID:   "alice",
		SenderType: models.SenderTypeUser,
		Content:    models.Content{Kind: models.ContentKindText, Text: "hello"},
		SentAt:     2000,
	}
	if err := store.SaveMessage(msg); err != nil {
		t.Fatalf("SaveMessage failed: %v", err)
	}

	get := func(roomID, query string, identity auth.Identity) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", fmt.Sprintf("/api/rooms/%s/messages%s", roomID, query), nil)
		req.SetPathValue("id", roomID)
		rec := httptest.NewRecorder()
		api.HistoryHandler(rec, req, identity)
		return rec
	}
	alice := auth.Identity{UserID: "alice", Username: "alice"}

	t.Run("Page", func(t *testing.T) {
		rec := get("room1", "", alice)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var page []models.Message
		if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
			t.Fatalf("failed to decode page: %v", err)
		}
		if len(page) != 1 || page[0].ID != "msg1" {
			t.Errorf("expected [msg1], got %+v", page)
		}
	})

	t.Run("UnknownRoom", func(t *testing.T) {
		if rec := get("nope", "", alice); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("NonMember", func(t *testing.T) {
		eve := auth.Identity{UserID: "eve", Username: "eve"}
		if rec := get("room1", "", eve); rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("InvalidBefore", func(t *testing.T) {
		// Non-positive cursors would wrap the store's unsigned key
		// encoding; they are rejected at the boundary.
		for _, v := range []string{"-1", "0", "abc"} {
			if rec := get("room1", "?before="+v, alice); rec.Code != http.StatusBadRequest {
				t.Errorf("before=%s: expected 400, got %d", v, rec.Code)
			}
		}
	})

	t.Run("BoundaryExcludesOwnTimestamp", func(t *testing.T) {
		rec := get("room1", "?before=2000", alice)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var page []models.Message
		if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
			t.Fatalf("failed to decode page: %v", err)
		}
		if len(page) != 0 {
			t.Errorf("expected empty page at boundary, got %+v", page)
		}
	})
}

func TestRoomsHandler_UnreadIgnoresPresence(t *testing.T) {
	api, store, reg := newTestAPI(t)

	room := models.Room{ID: "room1", Type: models.RoomTypeGroup, Name: "general", CreatedAt: 1000}
	members := []models.Membership{
		{UserID: "alice", RoomID: "room1", Role: models.RoleAdmin, JoinedAt: 1000, LastSeenAt: 1000},
		{UserID: "bob", RoomID: "room1", Role: models.RoleMember, JoinedAt: 1000, LastSeenAt: 1000},
	}
	if err := store.CreateRoomWithMembers(room, members); err != nil {
		t.Fatalf("CreateRoomWithMembers failed: %v", err)
	}
	for i := 1; i <= 3; i++ {
		msg := models.Message{
			ID:         fmt.Sprintf("msg%d", i),
			RoomID:     "room1",
			SenderID:   "alice",
			SenderType: models.SenderTypeUser,
			Content:    models.Content{Kind: models.ContentKindText, Text: "hi"},
			SentAt:     int64(1000 + i),
		}
		if err := store.SaveMessage(msg); err != nil {
			t.Fatalf("SaveMessage failed: %v", err)
		}
	}

	// alice is connected, bob is not. Unread bookkeeping is driven by the
	// persisted last-seen stamp, so presence must not change the count.
	reg.Register("alice", "alice")

	unreadFor := func(identity auth.Identity) int {
		req := httptest.NewRequest("GET", "/api/rooms", nil)
		rec := httptest.NewRecorder()
		api.RoomsHandler(rec, req, identity)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", identity.UserID, rec.Code)
		}
		var summaries []RoomSummary
		if err := json.NewDecoder(rec.Body).Decode(&summaries); err != nil {
			t.Fatalf("%s: failed to decode summaries: %v", identity.UserID, err)
		}
		if len(summaries) != 1 {
			t.Fatalf("%s: expected 1 room, got %d", identity.UserID, len(summaries))
		}
		return summaries[0].Unread
	}

	online := unreadFor(auth.Identity{UserID: "alice", Username: "alice"})
	offline := unreadFor(auth.Identity{UserID: "bob", Username: "bob"})
	if online != 3 || offline != 3 {
		t.Errorf("expected 3 unread for both, got online=%d offline=%d", online, offline)
	}
}
