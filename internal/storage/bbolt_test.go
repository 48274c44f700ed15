package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"parlor/internal/auth"
	"parlor/internal/models"
)

func TestStorage(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "storage_test")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	dbPath := filepath.Join(tmpDir, "test.db")
	store, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	t.Run("Credentials", func(t *testing.T) {
		creds := auth.Credentials{
			UserID:       "user1",
			Username:     "alice",
			PasswordHash: "hash",
			CreatedAt:    1000,
		}
		if err := store.UpsertCredentials(creds); err != nil {
			t.Fatalf("UpsertCredentials failed: %v", err)
		}

		listCreds, err := store.ListCredentials()
		if err != nil {
			t.Fatalf("ListCredentials failed: %v", err)
		}
		if len(listCreds) != 1 {
			t.Fatalf("expected 1 credential, got %d", len(listCreds))
		}
		if listCreds[0].UserID != creds.UserID || listCreds[0].PasswordHash != creds.PasswordHash {
			t.Errorf("round-trip mismatch: %+v", listCreds[0])
		}

		byName, err := store.GetCredentialsByUsername("alice")
		if err != nil {
			t.Fatalf("GetCredentialsByUsername failed: %v", err)
		}
		if byName.UserID != "user1" {
			t.Errorf("expected user1, got %s", byName.UserID)
		}
		if _, err := store.GetCredentialsByUsername("nobody"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		user, err := store.GetUser("user1")
		if err != nil {
			t.Fatalf("GetUser failed: %v", err)
		}
		if user.Username != "alice" {
			t.Errorf("expected alice, got %s", user.Username)
		}

		users, err := store.ListUsers()
		if err != nil {
			t.Fatalf("ListUsers failed: %v", err)
		}
		if len(users) != 1 {
			t.Errorf("expected 1 user, got %d", len(users))
		}
	})

	t.Run("Tokens", func(t *testing.T) {
		if err := store.UpsertToken("user1", "hash1"); err != nil {
			t.Fatalf("UpsertToken failed: %v", err)
		}
		tokens, err := store.ListTokens()
		if err != nil {
			t.Fatalf("ListTokens failed: %v", err)
		}
		if tokens["hash1"] != "user1" {
			t.Errorf("expected hash1 -> user1, got %v", tokens)
		}
		if err := store.DeleteToken("hash1"); err != nil {
			t.Fatalf("DeleteToken failed: %v", err)
		}
		tokens, _ = store.ListTokens()
		if len(tokens) != 0 {
			t.Errorf("expected no tokens, got %v", tokens)
		}
	})

	t.Run("Rooms", func(t *testing.T) {
		room := models.Room{ID: "group1", Type: models.RoomTypeGroup, Name: "general", CreatedAt: 1000}
		admin := models.Membership{UserID: "user1", RoomID: "group1", Role: models.RoleAdmin, JoinedAt: 1000}
		if err := store.CreateRoomWithMembers(room, []models.Membership{admin}); err != nil {
			t.Fatalf("CreateRoomWithMembers failed: %v", err)
		}
		if err := store.CreateRoomWithMembers(room, nil); !errors.Is(err, models.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}

		got, err := store.GetRoom("group1")
		if err != nil {
			t.Fatalf("GetRoom failed: %v", err)
		}
		if got.Name != "general" || got.Type != models.RoomTypeGroup {
			t.Errorf("round-trip mismatch: %+v", got)
		}
		if _, err := store.GetRoom("missing"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		membership, err := store.GetMembership("group1", "user1")
		if err != nil {
			t.Fatalf("GetMembership failed: %v", err)
		}
		if membership.Role != models.RoleAdmin {
			t.Errorf("expected admin role, got %s", membership.Role)
		}
	})

	t.Run("EnsureDirectRoom", func(t *testing.T) {
		room1, created, err := store.EnsureDirectRoom("userA", "userB")
		if err != nil {
			t.Fatalf("EnsureDirectRoom failed: %v", err)
		}
		if !created {
			t.Error("expected created=true on first call")
		}
		if room1.Type != models.RoomTypeDirect {
			t.Errorf("expected direct room, got %s", room1.Type)
		}

		// Reversed pair resolves to the same room.
		room2, created, err := store.EnsureDirectRoom("userB", "userA")
		if err != nil {
			t.Fatalf("EnsureDirectRoom (reversed) failed: %v", err)
		}
		if created {
			t.Error("expected created=false on second call")
		}
		if room2.ID != room1.ID {
			t.Errorf("expected same room ID, got %s and %s", room1.ID, room2.ID)
		}

		// Both sides are members.
		for _, userID := range []string{"userA", "userB"} {
			if _, err := store.GetMembership(room1.ID, userID); err != nil {
				t.Errorf("expected membership for %s: %v", userID, err)
			}
		}
	})

	t.Run("EnsureDirectRoom_Concurrent", func(t *testing.T) {
		var (
			wg           sync.WaitGroup
			mu           sync.Mutex
			createdCount int
			ids          = make(map[string]bool)
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				room, created, err := store.EnsureDirectRoom("userC", "userD")
				if err != nil {
					t.Errorf("EnsureDirectRoom failed: %v", err)
					return
				}
				mu.Lock()
				defer mu.Unlock()
				if created {
					createdCount++
				}
				ids[room.ID] = true
			}()
		}
		wg.Wait()
		if createdCount != 1 {
			t.Errorf("expected exactly one creation, got %d", createdCount)
		}
		if len(ids) != 1 {
			t.Errorf("expected one room ID, got %v", ids)
		}
	})

	t.Run("Memberships", func(t *testing.T) {
		room := models.Room{ID: "group2", Type: models.RoomTypeGroup, Name: "team", CreatedAt: 1000}
		if err := store.CreateRoomWithMembers(room, nil); err != nil {
			t.Fatalf("CreateRoomWithMembers failed: %v", err)
		}

		m := models.Membership{UserID: "user1", RoomID: "group2", Role: models.RoleMember, JoinedAt: 2000}
		if err := store.UpsertMembership(m); err != nil {
			t.Fatalf("UpsertMembership failed: %v", err)
		}
		if err := store.UpsertMembership(models.Membership{UserID: "u", RoomID: "missing"}); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound for missing room, got %v", err)
		}

		rooms, err := store.ListRoomsFor("user1")
		if err != nil {
			t.Fatalf("ListRoomsFor failed: %v", err)
		}
		found := false
		for _, r := range rooms {
			if r.ID == "group2" {
				found = true
			}
		}
		if !found {
			t.Errorf("expected group2 in user1's rooms, got %+v", rooms)
		}

		// Leaving keeps the record but drops the room from the active list.
		m.Left = true
		if err := store.UpsertMembership(m); err != nil {
			t.Fatalf("UpsertMembership (leave) failed: %v", err)
		}
		rooms, _ = store.ListRoomsFor("user1")
		for _, r := range rooms {
			if r.ID == "group2" {
				t.Error("left room still listed as active")
			}
		}
		got, err := store.GetMembership("group2", "user1")
		if err != nil {
			t.Fatalf("GetMembership after leave failed: %v", err)
		}
		if !got.Left {
			t.Error("expected Left=true")
		}

		members, err := store.ListMembers("group2")
		if err != nil {
			t.Fatalf("ListMembers failed: %v", err)
		}
		if len(members) != 1 || !members[0].Left {
			t.Errorf("expected one left member, got %+v", members)
		}

		if err := store.UpdateLastSeen("group2", "user1", 5000); err != nil {
			t.Fatalf("UpdateLastSeen failed: %v", err)
		}
		got, _ = store.GetMembership("group2", "user1")
		if got.LastSeenAt != 5000 {
			t.Errorf("expected LastSeenAt 5000, got %d", got.LastSeenAt)
		}
		if err := store.UpdateLastSeen("group2", "nobody", 1); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Messages", func(t *testing.T) {
		room := models.Room{ID: "group3", Type: models.RoomTypeGroup, Name: "msgs", CreatedAt: 1000}
		if err := store.CreateRoomWithMembers(room, nil); err != nil {
			t.Fatalf("CreateRoomWithMembers failed: %v", err)
		}

		if err := store.SaveMessage(models.Message{ID: "x", RoomID: "missing", SentAt: 1}); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound for missing room, got %v", err)
		}

		for i := 1; i <= 5; i++ {
			msg := models.Message{
				ID:         fmt.Sprintf("msg%d", i),
				RoomID:     "group3",
				SenderID:   "user1",
				SenderType: models.SenderTypeUser,
				Content:    models.Content{Kind: models.ContentKindText, Text: fmt.Sprintf("hello %d", i)},
				SentAt:     int64(i * 100),
			}
			if err := store.SaveMessage(msg); err != nil {
				t.Fatalf("SaveMessage failed: %v", err)
			}
		}

		got, err := store.GetMessage("msg3")
		if err != nil {
			t.Fatalf("GetMessage failed: %v", err)
		}
		if got.Content.Text != "hello 3" || got.SentAt != 300 {
			t.Errorf("round-trip mismatch: %+v", got)
		}
		if _, err := store.GetMessage("missing"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		got.Content.Text = "edited"
		got.Edited = true
		if err := store.UpdateMessage(got); err != nil {
			t.Fatalf("UpdateMessage failed: %v", err)
		}
		got, _ = store.GetMessage("msg3")
		if got.Content.Text != "edited" || !got.Edited {
			t.Errorf("edit not persisted: %+v", got)
		}

		// Strict less-than: a message exactly at the boundary is excluded.
		page, err := store.ListMessagesBefore("group3", 300, 10)
		if err != nil {
			t.Fatalf("ListMessagesBefore failed: %v", err)
		}
		if len(page) != 2 {
			t.Fatalf("expected 2 messages before 300, got %d", len(page))
		}
		if page[0].ID != "msg2" || page[1].ID != "msg1" {
			t.Errorf("expected newest-first [msg2 msg1], got [%s %s]", page[0].ID, page[1].ID)
		}

		// Limit is honored walking backward from the boundary.
		page, _ = store.ListMessagesBefore("group3", 1000, 3)
		if len(page) != 3 || page[0].ID != "msg5" || page[2].ID != "msg3" {
			t.Errorf("expected [msg5 msg4 msg3], got %+v", page)
		}

		// Unknown room is an empty page, not an error.
		page, err = store.ListMessagesBefore("missing", 1000, 10)
		if err != nil || len(page) != 0 {
			t.Errorf("expected empty page, got %v, %v", page, err)
		}

		// Strictly after: a message exactly at since is not unread.
		count, err := store.CountMessagesSince("group3", 300)
		if err != nil {
			t.Fatalf("CountMessagesSince failed: %v", err)
		}
		if count != 2 {
			t.Errorf("expected 2 messages since 300, got %d", count)
		}
		count, _ = store.CountMessagesSince("group3", 0)
		if count != 5 {
			t.Errorf("expected 5 messages since 0, got %d", count)
		}
	})

	t.Run("MessageOrderTieBreak", func(t *testing.T) {
		room := models.Room{ID: "group4", Type: models.RoomTypeGroup, CreatedAt: 1000}
		if err := store.CreateRoomWithMembers(room, nil); err != nil {
			t.Fatalf("CreateRoomWithMembers failed: %v", err)
		}
		for _, id := range []string{"b", "a", "c"} {
			msg := models.Message{ID: id, RoomID: "group4", SenderType: models.SenderTypeUser, SentAt: 100}
			if err := store.SaveMessage(msg); err != nil {
				t.Fatalf("SaveMessage failed: %v", err)
			}
		}
		page, err := store.ListMessagesBefore("group4", 101, 10)
		if err != nil {
			t.Fatalf("ListMessagesBefore failed: %v", err)
		}
		if len(page) != 3 {
			t.Fatalf("expected 3 messages, got %d", len(page))
		}
		// Same timestamp orders by ID; the walk is newest-first.
		if page[0].ID != "c" || page[1].ID != "b" || page[2].ID != "a" {
			t.Errorf("expected [c b a], got [%s %s %s]", page[0].ID, page[1].ID, page[2].ID)
		}
	})
}
