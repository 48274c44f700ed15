package models

import "errors"

var (
	ErrNotFound  = errors.New("not found")
	ErrNotMember = errors.New("not a room member")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("already exists")
)

type RoomType string

const (
	RoomTypeDirect RoomType = "direct"
	RoomTypeGroup  RoomType = "group"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

type SenderType string

const (
	SenderTypeUser   SenderType = "user"
	SenderTypeSystem SenderType = "system"
)

type ContentKind string

const (
	ContentKindText ContentKind = "text"
)

// User represents a user identity. Online is derived from the connection
// registry, never persisted.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// Room is a messaging destination: a 2-party direct conversation or an
// N-party group.
type Room struct {
	ID        string   `json:"id"`
	Type      RoomType `json:"type"`
	Name      string   `json:"name,omitempty"`
	CreatedAt int64    `json:"createdAt"`
}

// Membership is the durable (user, room) relationship. Leaving a room is a
// soft delete: the record stays with Left set.
type Membership struct {
	UserID     string `json:"userId"`
	RoomID     string `json:"roomId"`
	Role       Role   `json:"role"`
	JoinedAt   int64  `json:"joinedAt"`
	Left       bool   `json:"left"`
	LastSeenAt int64  `json:"lastSeenAt"`
}

// Content is the message payload. Only text exists today; Kind keeps the
// wire format open for image and file payloads.
type Content struct {
	Kind ContentKind `json:"kind"`
	Text string      `json:"text,omitempty"`
}

// Message is immutable once persisted, except for the edit and unsend flags.
// SentAt is unix milliseconds. Room order is SentAt, then ID as tie-break.
type Message struct {
	ID         string     `json:"id"`
	RoomID     string     `json:"roomId"`
	SenderID   string     `json:"senderId,omitempty"`
	SenderType SenderType `json:"senderType"`
	Content    Content    `json:"content"`
	SentAt     int64      `json:"sentAt"`
	Edited     bool       `json:"edited,omitempty"`
	Deleted    bool       `json:"deleted,omitempty"`
}

// Before reports whether m sorts before other in room order.
func (m Message) Before(other Message) bool {
	if m.SentAt != other.SentAt {
		return m.SentAt < other.SentAt
	}
	return m.ID < other.ID
}

type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Response is the envelope every outbound frame carries, both direct acks
// and room broadcasts.
type Response struct {
	Status      Status `json:"status"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
	Destination string `json:"destination,omitempty"`
	Body        any    `json:"body,omitempty"`
}

// ServerEvent pairs a response envelope with the event name the client
// subscribed to. Recipients dispatch on Event, not on payload shape.
type ServerEvent struct {
	Event string `json:"event"`
	Response
}

// Outbound event names.
const (
	EventRoomMessage  = "room-message"
	EventRoomEdit     = "room-edit-message"
	EventRoomUnsend   = "room-unsend-message"
	EventRoomActivity = "room-activity"
	EventRoomHistory  = "room-history"
	EventDirectNotify = "direct-notify"
	EventPresence     = "presence"
)

type ActivityType string

const (
	ActivityJoin        ActivityType = "join"
	ActivityLeave       ActivityType = "leave"
	ActivityUpdateAdmin ActivityType = "update-admin"
)

// Activity is the body of a room-activity broadcast.
type Activity struct {
	Type     ActivityType `json:"type"`
	RoomID   string       `json:"roomId"`
	UserID   string       `json:"userId"`
	Username string       `json:"username,omitempty"`
}

// PresenceUpdate is the body of a presence broadcast.
type PresenceUpdate struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
	At       int64  `json:"at"`
}
