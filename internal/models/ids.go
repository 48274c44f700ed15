package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Fixed namespaces so derived IDs are stable across restarts.
var (
	nsDirectRoom = uuid.MustParse("5f0f6a86-9c2d-4b70-9b1c-2c9e6f1d3a11")
	nsMessage    = uuid.MustParse("c3b8f2e4-7d15-4a9a-8e60-0b4d92c5a7f2")
)

// DirectRoomID derives the room ID for a 1:1 conversation from the sorted
// pair of user IDs. It is commutative: DirectRoomID(a, b) == DirectRoomID(b, a).
func DirectRoomID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return uuid.NewSHA1(nsDirectRoom, []byte(a+"-"+b)).String()
}

// NewMessageID derives a collision-resistant message ID from the room,
// sender, timestamp and a random salt.
func NewMessageID(roomID, senderID string, sentAt int64) string {
	salt := make([]byte, 8)
	_, _ = rand.Read(salt)
	seed := fmt.Sprintf("%s|%s|%d|%s", roomID, senderID, sentAt, hex.EncodeToString(salt))
	return uuid.NewSHA1(nsMessage, []byte(seed)).String()
}
