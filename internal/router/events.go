package router

import "fmt"

// Inbound event names.
const (
	TypeRoomConnect   = "room-connect"
	TypeRoomOpen      = "room-open"
	TypeRoomMessage   = "room-message"
	TypeRoomEdit      = "room-edit-message"
	TypeRoomUnsend    = "room-unsend-message"
	TypeGroupJoin     = "group-join"
	TypeGroupLeave    = "group-leave"
	TypeDirectJoin    = "direct-join"
	TypeDirectOpen    = "direct-open"
	TypeDirectLeave   = "direct-leave"
	TypeDirectMessage = "direct-message"
)

// ClientEvent is the raw wire shape read off a connection. It is validated
// into one of the typed events below before any handler sees it; unknown or
// malformed shapes are rejected at the boundary.
type ClientEvent struct {
	Type           string     `json:"type"`
	Destination    string     `json:"destination,omitempty"`
	GroupID        string     `json:"groupId,omitempty"`
	ConversationID string     `json:"conversationId,omitempty"`
	PeerID         string     `json:"peerId,omitempty"`
	Content        string     `json:"content,omitempty"`
	Body           *EventBody `json:"body,omitempty"`
}

type EventBody struct {
	ID       string `json:"id,omitempty"`
	Content  string `json:"content,omitempty"`
	SentAt   int64  `json:"sentAt,omitempty"`
	SenderID string `json:"senderId,omitempty"`
}

// ValidationError marks a malformed payload. It is reported to the sender
// only and never reaches persistence.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func errValidation(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// Event is a validated inbound command.
type Event interface {
	eventType() string
}

type RoomConnect struct{ Room string }

type RoomOpen struct{ Room string }

type RoomMessage struct {
	Room     string
	Content  string
	SenderID string
	SentAt   int64
}

type RoomEdit struct {
	Room      string
	MessageID string
	Content   string
	SenderID  string
}

type RoomUnsend struct {
	Room      string
	MessageID string
	SenderID  string
}

type GroupJoin struct{ Group string }

type GroupLeave struct{ Group string }

type DirectJoin struct{ Peer string }

type DirectOpen struct{ Conversation string }

type DirectLeave struct{ Conversation string }

type DirectMessage struct {
	Conversation string
	Content      string
}

func (RoomConnect) eventType() string   { return TypeRoomConnect }
func (RoomOpen) eventType() string      { return TypeRoomOpen }
func (RoomMessage) eventType() string   { return TypeRoomMessage }
func (RoomEdit) eventType() string      { return TypeRoomEdit }
func (RoomUnsend) eventType() string    { return TypeRoomUnsend }
func (GroupJoin) eventType() string     { return TypeGroupJoin }
func (GroupLeave) eventType() string    { return TypeGroupLeave }
func (DirectJoin) eventType() string    { return TypeDirectJoin }
func (DirectOpen) eventType() string    { return TypeDirectOpen }
func (DirectLeave) eventType() string   { return TypeDirectLeave }
func (DirectMessage) eventType() string { return TypeDirectMessage }

// Parse validates a raw client event into its typed form.
func Parse(raw ClientEvent) (Event, error) {
	switch raw.Type {
	case TypeRoomConnect:
		if raw.Destination == "" {
			return nil, errValidation("%s requires a destination", raw.Type)
		}
		return RoomConnect{Room: raw.Destination}, nil

	case TypeRoomOpen:
		if raw.Destination == "" {
			return nil, errValidation("%s requires a destination", raw.Type)
		}
		return RoomOpen{Room: raw.Destination}, nil

	case TypeRoomMessage:
		if raw.Destination == "" {
			return nil, errValidation("%s requires a destination", raw.Type)
		}
		if raw.Body == nil || raw.Body.Content == "" {
			return nil, errValidation("%s requires body.content", raw.Type)
		}
		if raw.Body.SentAt == 0 {
			return nil, errValidation("%s requires body.sentAt", raw.Type)
		}
		if raw.Body.SenderID == "" {
			return nil, errValidation("%s requires body.senderId", raw.Type)
		}
		return RoomMessage{
			Room:     raw.Destination,
			Content:  raw.Body.Content,
			SenderID: raw.Body.SenderID,
			SentAt:   raw.Body.SentAt,
		}, nil

	case TypeRoomEdit:
		if raw.Destination == "" {
			return nil, errValidation("%s requires a destination", raw.Type)
		}
		if raw.Body == nil || raw.Body.ID == "" {
			return nil, errValidation("%s requires body.id", raw.Type)
		}
		if raw.Body.Content == "" {
			return nil, errValidation("%s requires body.content", raw.Type)
		}
		return RoomEdit{
			Room:      raw.Destination,
			MessageID: raw.Body.ID,
			Content:   raw.Body.Content,
			SenderID:  raw.Body.SenderID,
		}, nil

	case TypeRoomUnsend:
		if raw.Destination == "" {
			return nil, errValidation("%s requires a destination", raw.Type)
		}
		if raw.Body == nil || raw.Body.ID == "" {
			return nil, errValidation("%s requires body.id", raw.Type)
		}
		return RoomUnsend{
			Room:      raw.Destination,
			MessageID: raw.Body.ID,
			SenderID:  raw.Body.SenderID,
		}, nil

	case TypeGroupJoin:
		if raw.GroupID == "" {
			return nil, errValidation("%s requires a groupId", raw.Type)
		}
		return GroupJoin{Group: raw.GroupID}, nil

	case TypeGroupLeave:
		if raw.GroupID == "" {
			return nil, errValidation("%s requires a groupId", raw.Type)
		}
		return GroupLeave{Group: raw.GroupID}, nil

	case TypeDirectJoin:
		if raw.PeerID == "" {
			return nil, errValidation("%s requires a peerId", raw.Type)
		}
		return DirectJoin{Peer: raw.PeerID}, nil

	case TypeDirectOpen:
		if raw.ConversationID == "" {
			return nil, errValidation("%s requires a conversationId", raw.Type)
		}
		return DirectOpen{Conversation: raw.ConversationID}, nil

	case TypeDirectLeave:
		if raw.ConversationID == "" {
			return nil, errValidation("%s requires a conversationId", raw.Type)
		}
		return DirectLeave{Conversation: raw.ConversationID}, nil

	case TypeDirectMessage:
		if raw.ConversationID == "" {
			return nil, errValidation("%s requires a conversationId", raw.Type)
		}
		if raw.Content == "" {
			return nil, errValidation("%s requires content", raw.Type)
		}
		return DirectMessage{Conversation: raw.ConversationID, Content: raw.Content}, nil

	default:
		return nil, errValidation("unknown event type %q", raw.Type)
	}
}
