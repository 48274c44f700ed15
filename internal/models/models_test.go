package models

import "testing"

func TestDirectRoomID(t *testing.T) {
	id1 := DirectRoomID("alice", "bob")
	id2 := DirectRoomID("bob", "alice")
	if id1 != id2 {
		t.Errorf("pair order changed the room ID: %s vs %s", id1, id2)
	}
	if id1 == DirectRoomID("alice", "carol") {
		t.Error("different pairs produced the same room ID")
	}

	// Deterministic across calls.
	if id1 != DirectRoomID("alice", "bob") {
		t.Error("room ID not stable across calls")
	}
}

func TestNewMessageID(t *testing.T) {
	id1 := NewMessageID("room1", "alice", 100)
	id2 := NewMessageID("room1", "alice", 100)
	if id1 == id2 {
		t.Error("expected distinct IDs for repeated sends")
	}
	if id1 == "" {
		t.Error("empty message ID")
	}
}

func TestMessageBefore(t *testing.T) {
	tests := []struct {
		name string
		a, b Message
		want bool
	}{
		{"Earlier timestamp", Message{ID: "z", SentAt: 100}, Message{ID: "a", SentAt: 200}, true},
		{"Later timestamp", Message{ID: "a", SentAt: 200}, Message{ID: "z", SentAt: 100}, false},
		{"Tie broken by ID", Message{ID: "a", SentAt: 100}, Message{ID: "b", SentAt: 100}, true},
		{"Equal", Message{ID: "a", SentAt: 100}, Message{ID: "a", SentAt: 100}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Before(tt.b); got != tt.want {
				t.Errorf("Before() = %v, want %v", got, tt.want)
			}
		})
	}
}
