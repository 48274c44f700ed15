package storage

import (
	"encoding"
	"encoding/binary"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type DBCredentials struct {
	UserID       string `msgpack:"userId"`
	Username     string `msgpack:"username"`
	PasswordHash string `msgpack:"passwordHash"`
	CreatedAt    int64  `msgpack:"createdAt"`
}

func (c *DBCredentials) Key() []byte {
	return []byte(c.UserID)
}

func (c *DBCredentials) MarshalBinary() (data []byte, err error) {
	type alias DBCredentials
	return msgpack.Marshal((*alias)(c))
}

func (c *DBCredentials) UnmarshalBinary(data []byte) error {
	type alias DBCredentials
	return msgpack.Unmarshal(data, (*alias)(c))
}

type DBRoom struct {
	ID        string `msgpack:"id"`
	Type      string `msgpack:"type"`
	Name      string `msgpack:"name"`
	CreatedAt int64  `msgpack:"createdAt"`
}

func (r *DBRoom) Key() []byte {
	return []byte(r.ID)
}

func (r *DBRoom) MarshalBinary() (data []byte, err error) {
	type alias DBRoom
	return msgpack.Marshal((*alias)(r))
}

func (r *DBRoom) UnmarshalBinary(data []byte) error {
	type alias DBRoom
	return msgpack.Unmarshal(data, (*alias)(r))
}

type DBMembership struct {
	UserID     string `msgpack:"userId"`
	RoomID     string `msgpack:"roomId"`
	Role       string `msgpack:"role"`
	JoinedAt   int64  `msgpack:"joinedAt"`
	Left       bool   `msgpack:"left"`
	LastSeenAt int64  `msgpack:"lastSeenAt"`
}

func (m *DBMembership) Key() []byte {
	return []byte(m.UserID)
}

func (m *DBMembership) MarshalBinary() (data []byte, err error) {
	type alias DBMembership
	return msgpack.Marshal((*alias)(m))
}

func (m *DBMembership) UnmarshalBinary(data []byte) error {
	type alias DBMembership
	return msgpack.Unmarshal(data, (*alias)(m))
}

type DBMessage struct {
	ID          string `msgpack:"id"`
	RoomID      string `msgpack:"roomId"`
	SenderID    string `msgpack:"senderId"`
	SenderType  string `msgpack:"senderType"`
	ContentKind string `msgpack:"contentKind"`
	ContentText string `msgpack:"contentText"`
	SentAt      int64  `msgpack:"sentAt"`
	Edited      bool   `msgpack:"edited"`
	Deleted     bool   `msgpack:"deleted"`
}

// Key orders messages by SentAt with the ID as tie-break, so a bucket
// cursor walks a room in delivery order.
func (m *DBMessage) Key() []byte {
	return messageKey(m.SentAt, m.ID)
}

func messageKey(sentAt int64, id string) []byte {
	key := make([]byte, 8, 8+len(id))
	binary.BigEndian.PutUint64(key, uint64(sentAt))
	return append(key, id...)
}

func (m *DBMessage) MarshalBinary() (data []byte, err error) {
	type alias DBMessage
	return msgpack.Marshal((*alias)(m))
}

func (m *DBMessage) UnmarshalBinary(data []byte) error {
	type alias DBMessage
	return msgpack.Unmarshal(data, (*alias)(m))
}

// DBMessageRef is the secondary index entry locating a message by ID.
type DBMessageRef struct {
	MessageID string `msgpack:"messageId"`
	RoomID    string `msgpack:"roomId"`
	SentAt    int64  `msgpack:"sentAt"`
}

func (r *DBMessageRef) Key() []byte {
	return []byte(r.MessageID)
}

func (r *DBMessageRef) MarshalBinary() (data []byte, err error) {
	type alias DBMessageRef
	return msgpack.Marshal((*alias)(r))
}

func (r *DBMessageRef) UnmarshalBinary(data []byte) error {
	type alias DBMessageRef
	return msgpack.Unmarshal(data, (*alias)(r))
}

type DBToken struct {
	UserID string `msgpack:"userId"`
	Token  string `msgpack:"token"`
}

func (t *DBToken) Key() []byte {
	return []byte(t.Token)
}

func (t *DBToken) MarshalBinary() (data []byte, err error) {
	type alias DBToken
	return msgpack.Marshal((*alias)(t))
}

func (t *DBToken) UnmarshalBinary(data []byte) error {
	type alias DBToken
	return msgpack.Unmarshal(data, (*alias)(t))
}
