package storage

import (
	"errors"
	"fmt"
	"time"

	"parlor/internal/auth"
	"parlor/internal/models"

	"go.etcd.io/bbolt"
)

var (
	bucketUsers        = []byte("users")
	bucketUsernames    = []byte("usernames")
	bucketRooms        = []byte("rooms")
	bucketParticipants = []byte("participants")
	bucketUserRooms    = []byte("user_rooms")
	bucketMessages     = []byte("messages")
	bucketMessageIndex = []byte("message_index")
	bucketTokens       = []byte("tokens")
)

var (
	flagActive = []byte{1}
	flagLeft   = []byte{0}
)

// Store is the persistence gateway: the durable source of truth for users,
// rooms, memberships and messages. All delivery ordering derives from what
// is committed here.
type Store struct {
	db *bbolt.DB
}

func NewStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{
			bucketUsers,
			bucketUsernames,
			bucketRooms,
			bucketParticipants,
			bucketUserRooms,
			bucketMessages,
			bucketMessageIndex,
			bucketTokens,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertCredentials stores new or updated user credentials and maintains the
// username index.
func (s *Store) UpsertCredentials(credentials auth.Credentials) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		dbCreds := &DBCredentials{
			UserID:       credentials.UserID,
			Username:     credentials.Username,
			PasswordHash: credentials.PasswordHash,
			CreatedAt:    credentials.CreatedAt,
		}
		data, err := dbCreds.MarshalBinary()
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketUsers).Put(dbCreds.Key(), data); err != nil {
			return err
		}
		return tx.Bucket(bucketUsernames).Put([]byte(credentials.Username), []byte(credentials.UserID))
	})
}

// ListCredentials returns all user credentials stored in the database.
func (s *Store) ListCredentials() ([]auth.Credentials, error) {
	var credentials []auth.Credentials
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(k, v []byte) error {
			var dbCreds DBCredentials
			if err := dbCreds.UnmarshalBinary(v); err != nil {
				return err
			}
			credentials = append(credentials, auth.Credentials{
				UserID:       dbCreds.UserID,
				Username:     dbCreds.Username,
				PasswordHash: dbCreds.PasswordHash,
				CreatedAt:    dbCreds.CreatedAt,
			})
			return nil
		})
	})
	return credentials, err
}

// GetCredentialsByUsername resolves a username through the index bucket.
func (s *Store) GetCredentialsByUsername(username string) (auth.Credentials, error) {
	var creds auth.Credentials
	err := s.db.View(func(tx *bbolt.Tx) error {
		userID := tx.Bucket(bucketUsernames).Get([]byte(username))
		if userID == nil {
			return models.ErrNotFound
		}
		data := tx.Bucket(bucketUsers).Get(userID)
		if data == nil {
			return models.ErrNotFound
		}
		var dbCreds DBCredentials
		if err := dbCreds.UnmarshalBinary(data); err != nil {
			return err
		}
		creds = auth.Credentials{
			UserID:       dbCreds.UserID,
			Username:     dbCreds.Username,
			PasswordHash: dbCreds.PasswordHash,
			CreatedAt:    dbCreds.CreatedAt,
		}
		return nil
	})
	return creds, err
}

// GetUser returns the public identity of a user.
func (s *Store) GetUser(id string) (models.User, error) {
	var user models.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketUsers).Get([]byte(id))
		if data == nil {
			return models.ErrNotFound
		}
		var dbCreds DBCredentials
		if err := dbCreds.UnmarshalBinary(data); err != nil {
			return err
		}
		user = models.User{ID: dbCreds.UserID, Username: dbCreds.Username}
		return nil
	})
	return user, err
}

// ListUsers returns the public identities of all users.
func (s *Store) ListUsers() ([]models.User, error) {
	var users []models.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(k, v []byte) error {
			var dbCreds DBCredentials
			if err := dbCreds.UnmarshalBinary(v); err != nil {
				return err
			}
			users = append(users, models.User{ID: dbCreds.UserID, Username: dbCreds.Username})
			return nil
		})
	})
	return users, err
}

func (s *Store) UpsertToken(userID, tokenHash string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		dbToken := &DBToken{UserID: userID, Token: tokenHash}
		data, err := dbToken.MarshalBinary()
		if err != nil {
			return err
		}
		return tx.Bucket(bucketTokens).Put(dbToken.Key(), data)
	})
}

func (s *Store) DeleteToken(tokenHash string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTokens).Delete([]byte(tokenHash))
	})
}

func (s *Store) ListTokens() (map[string]string, error) {
	tokens := make(map[string]string)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTokens).ForEach(func(k, v []byte) error {
			var dbToken DBToken
			if err := dbToken.UnmarshalBinary(v); err != nil {
				return err
			}
			tokens[dbToken.Token] = dbToken.UserID
			return nil
		})
	})
	return tokens, err
}

// CreateRoomWithMembers creates a room and its initial memberships in one
// transaction. Returns models.ErrConflict if the room already exists.
func (s *Store) CreateRoomWithMembers(room models.Room, members []models.Membership) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketRooms).Get([]byte(room.ID)) != nil {
			return models.ErrConflict
		}
		if err := putRoom(tx, room); err != nil {
			return err
		}
		for _, m := range members {
			if err := putMembership(tx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetRoom returns the room with the given ID or models.ErrNotFound.
func (s *Store) GetRoom(id string) (models.Room, error) {
	var room models.Room
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketRooms).Get([]byte(id))
		if data == nil {
			return models.ErrNotFound
		}
		var dbRoom DBRoom
		if err := dbRoom.UnmarshalBinary(data); err != nil {
			return err
		}
		room = fromDBRoom(dbRoom)
		return nil
	})
	return room, err
}

// EnsureDirectRoom creates the direct conversation between two users if it
// does not exist yet. The room ID is derived from the sorted user ID pair,
// so a second call (including a concurrent one) finds the existing room:
// bbolt serializes writers, making the check-then-create race free.
func (s *Store) EnsureDirectRoom(a, b string) (models.Room, bool, error) {
	roomID := models.DirectRoomID(a, b)
	var (
		room    models.Room
		created bool
	)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if data := tx.Bucket(bucketRooms).Get([]byte(roomID)); data != nil {
			var dbRoom DBRoom
			if err := dbRoom.UnmarshalBinary(data); err != nil {
				return err
			}
			room = fromDBRoom(dbRoom)
			return nil
		}

		now := time.Now().UnixMilli()
		room = models.Room{
			ID:        roomID,
			Type:      models.RoomTypeDirect,
			CreatedAt: now,
		}
		if err := putRoom(tx, room); err != nil {
			return err
		}
		for _, userID := range []string{a, b} {
			m := models.Membership{
				UserID:   userID,
				RoomID:   roomID,
				Role:     models.RoleMember,
				JoinedAt: now,
			}
			if err := putMembership(tx, m); err != nil {
				return err
			}
		}
		created = true
		return nil
	})
	return room, created, err
}

// UpsertMembership writes a membership record and keeps the per-user room
// index in sync.
func (s *Store) UpsertMembership(m models.Membership) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketRooms).Get([]byte(m.RoomID)) == nil {
			return models.ErrNotFound
		}
		return putMembership(tx, m)
	})
}

// GetMembership returns the membership record, including left ones, or
// models.ErrNotFound.
func (s *Store) GetMembership(roomID, userID string) (models.Membership, error) {
	var membership models.Membership
	err := s.db.View(func(tx *bbolt.Tx) error {
		roomBucket := tx.Bucket(bucketParticipants).Bucket([]byte(roomID))
		if roomBucket == nil {
			return models.ErrNotFound
		}
		data := roomBucket.Get([]byte(userID))
		if data == nil {
			return models.ErrNotFound
		}
		var dbMembership DBMembership
		if err := dbMembership.UnmarshalBinary(data); err != nil {
			return err
		}
		membership = fromDBMembership(dbMembership)
		return nil
	})
	return membership, err
}

// ListMembers returns every membership record of a room, left ones included.
// Callers filter on Left; the historical record is retained.
func (s *Store) ListMembers(roomID string) ([]models.Membership, error) {
	var members []models.Membership
	err := s.db.View(func(tx *bbolt.Tx) error {
		roomBucket := tx.Bucket(bucketParticipants).Bucket([]byte(roomID))
		if roomBucket == nil {
			return nil
		}
		return roomBucket.ForEach(func(k, v []byte) error {
			var dbMembership DBMembership
			if err := dbMembership.UnmarshalBinary(v); err != nil {
				return err
			}
			members = append(members, fromDBMembership(dbMembership))
			return nil
		})
	})
	return members, err
}

// ListRoomsFor returns the rooms where the user holds an active membership.
func (s *Store) ListRoomsFor(userID string) ([]models.Room, error) {
	var rooms []models.Room
	err := s.db.View(func(tx *bbolt.Tx) error {
		userBucket := tx.Bucket(bucketUserRooms).Bucket([]byte(userID))
		if userBucket == nil {
			return nil
		}
		roomsBucket := tx.Bucket(bucketRooms)
		return userBucket.ForEach(func(roomID, flag []byte) error {
			if len(flag) == 0 || flag[0] == 0 {
				return nil
			}
			data := roomsBucket.Get(roomID)
			if data == nil {
				return nil
			}
			var dbRoom DBRoom
			if err := dbRoom.UnmarshalBinary(data); err != nil {
				return err
			}
			rooms = append(rooms, fromDBRoom(dbRoom))
			return nil
		})
	})
	return rooms, err
}

// UpdateLastSeen stamps the membership's last-seen timestamp, used for
// unread bookkeeping. Missing membership is models.ErrNotFound.
func (s *Store) UpdateLastSeen(roomID, userID string, at int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		roomBucket := tx.Bucket(bucketParticipants).Bucket([]byte(roomID))
		if roomBucket == nil {
			return models.ErrNotFound
		}
		data := roomBucket.Get([]byte(userID))
		if data == nil {
			return models.ErrNotFound
		}
		var dbMembership DBMembership
		if err := dbMembership.UnmarshalBinary(data); err != nil {
			return err
		}
		dbMembership.LastSeenAt = at
		updated, err := dbMembership.MarshalBinary()
		if err != nil {
			return err
		}
		return roomBucket.Put(dbMembership.Key(), updated)
	})
}

// SaveMessage persists a message and its ID index entry. The room must
// exist; the composite key orders the room bucket by SentAt then ID.
func (s *Store) SaveMessage(message models.Message) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if message.RoomID == "" {
			return errors.New("message missing roomID")
		}
		if tx.Bucket(bucketRooms).Get([]byte(message.RoomID)) == nil {
			return models.ErrNotFound
		}

		roomBucket, err := tx.Bucket(bucketMessages).CreateBucketIfNotExists([]byte(message.RoomID))
		if err != nil {
			return fmt.Errorf("failed to create room message bucket: %w", err)
		}

		dbMessage := toDBMessage(message)
		data, err := dbMessage.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		if err := roomBucket.Put(dbMessage.Key(), data); err != nil {
			return fmt.Errorf("failed to put message: %w", err)
		}

		ref := &DBMessageRef{
			MessageID: message.ID,
			RoomID:    message.RoomID,
			SentAt:    message.SentAt,
		}
		refData, err := ref.MarshalBinary()
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMessageIndex).Put(ref.Key(), refData)
	})
}

// GetMessage looks a message up by ID through the index bucket.
func (s *Store) GetMessage(id string) (models.Message, error) {
	var message models.Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		dbMessage, err := getMessageTx(tx, id)
		if err != nil {
			return err
		}
		message = fromDBMessage(*dbMessage)
		return nil
	})
	return message, err
}

// UpdateMessage rewrites a message in place. ID, RoomID and SentAt are
// immutable; only content and the edit/unsend flags may change.
func (s *Store) UpdateMessage(message models.Message) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		existing, err := getMessageTx(tx, message.ID)
		if err != nil {
			return err
		}

		existing.ContentKind = string(message.Content.Kind)
		existing.ContentText = message.Content.Text
		existing.Edited = message.Edited
		existing.Deleted = message.Deleted

		data, err := existing.MarshalBinary()
		if err != nil {
			return err
		}
		roomBucket := tx.Bucket(bucketMessages).Bucket([]byte(existing.RoomID))
		if roomBucket == nil {
			return models.ErrNotFound
		}
		return roomBucket.Put(existing.Key(), data)
	})
}

// ListMessagesBefore returns up to limit messages with SentAt strictly
// before the given timestamp, newest first. The composite key makes this a
// single backward cursor walk.
func (s *Store) ListMessagesBefore(roomID string, before int64, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		roomBucket := tx.Bucket(bucketMessages).Bucket([]byte(roomID))
		if roomBucket == nil {
			return nil
		}

		c := roomBucket.Cursor()

		// The boundary key is the bare 8-byte timestamp: every stored key
		// with SentAt == before sorts after it, so stepping backward from
		// the seek position yields strictly older messages.
		boundary := messageKey(before, "")
		k, v := c.Seek(boundary)
		if k == nil {
			k, v = c.Last()
		} else {
			k, v = c.Prev()
		}

		for ; k != nil && len(messages) < limit; k, v = c.Prev() {
			var dbMessage DBMessage
			if err := dbMessage.UnmarshalBinary(v); err != nil {
				return err
			}
			messages = append(messages, fromDBMessage(dbMessage))
		}
		return nil
	})
	return messages, err
}

// CountMessagesSince counts messages with SentAt strictly after the given
// timestamp, used for unread bookkeeping against a membership's last-seen.
func (s *Store) CountMessagesSince(roomID string, since int64) (int, error) {
	count := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		roomBucket := tx.Bucket(bucketMessages).Bucket([]byte(roomID))
		if roomBucket == nil {
			return nil
		}
		c := roomBucket.Cursor()
		for k, _ := c.Seek(messageKey(since+1, "")); k != nil; k, _ = c.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func putRoom(tx *bbolt.Tx, room models.Room) error {
	dbRoom := &DBRoom{
		ID:        room.ID,
		Type:      string(room.Type),
		Name:      room.Name,
		CreatedAt: room.CreatedAt,
	}
	data, err := dbRoom.MarshalBinary()
	if err != nil {
		return err
	}
	return tx.Bucket(bucketRooms).Put(dbRoom.Key(), data)
}

func putMembership(tx *bbolt.Tx, m models.Membership) error {
	roomBucket, err := tx.Bucket(bucketParticipants).CreateBucketIfNotExists([]byte(m.RoomID))
	if err != nil {
		return err
	}
	dbMembership := toDBMembership(m)
	data, err := dbMembership.MarshalBinary()
	if err != nil {
		return err
	}
	if err := roomBucket.Put(dbMembership.Key(), data); err != nil {
		return err
	}

	userBucket, err := tx.Bucket(bucketUserRooms).CreateBucketIfNotExists([]byte(m.UserID))
	if err != nil {
		return err
	}
	flag := flagActive
	if m.Left {
		flag = flagLeft
	}
	return userBucket.Put([]byte(m.RoomID), flag)
}

func getMessageTx(tx *bbolt.Tx, id string) (*DBMessage, error) {
	refData := tx.Bucket(bucketMessageIndex).Get([]byte(id))
	if refData == nil {
		return nil, models.ErrNotFound
	}
	var ref DBMessageRef
	if err := ref.UnmarshalBinary(refData); err != nil {
		return nil, err
	}
	roomBucket := tx.Bucket(bucketMessages).Bucket([]byte(ref.RoomID))
	if roomBucket == nil {
		return nil, models.ErrNotFound
	}
	data := roomBucket.Get(messageKey(ref.SentAt, ref.MessageID))
	if data == nil {
		return nil, models.ErrNotFound
	}
	var dbMessage DBMessage
	if err := dbMessage.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &dbMessage, nil
}

func toDBMembership(m models.Membership) *DBMembership {
	return &DBMembership{
		UserID:     m.UserID,
		RoomID:     m.RoomID,
		Role:       string(m.Role),
		JoinedAt:   m.JoinedAt,
		Left:       m.Left,
		LastSeenAt: m.LastSeenAt,
	}
}

func fromDBMembership(m DBMembership) models.Membership {
	return models.Membership{
		UserID:     m.UserID,
		RoomID:     m.RoomID,
		Role:       models.Role(m.Role),
		JoinedAt:   m.JoinedAt,
		Left:       m.Left,
		LastSeenAt: m.LastSeenAt,
	}
}

func fromDBRoom(r DBRoom) models.Room {
	return models.Room{
		ID:        r.ID,
		Type:      models.RoomType(r.Type),
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
	}
}

func toDBMessage(m models.Message) *DBMessage {
	return &DBMessage{
		ID:          m.ID,
		RoomID:      m.RoomID,
		SenderID:    m.SenderID,
		SenderType:  string(m.SenderType),
		ContentKind: string(m.Content.Kind),
		ContentText: m.Content.Text,
		SentAt:      m.SentAt,
		Edited:      m.Edited,
		Deleted:     m.Deleted,
	}
}

func fromDBMessage(m DBMessage) models.Message {
	return models.Message{
		ID:         m.ID,
		RoomID:     m.RoomID,
		SenderID:   m.SenderID,
		SenderType: models.SenderType(m.SenderType),
		Content: models.Content{
			Kind: models.ContentKind(m.ContentKind),
			Text: m.ContentText,
		},
		SentAt:  m.SentAt,
		Edited:  m.Edited,
		Deleted: m.Deleted,
	}
}
