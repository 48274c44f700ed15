package registry

import (
	"hash/fnv"
	"sync"

	"parlor/internal/models"

	mapset "github.com/deckarep/golang-set/v2"
)

const (
	shardCount    = 32
	defaultBuffer = 100
)

// Session is one live authenticated connection: the handle the rest of the
// system fans out to. Outbound frames go through a buffered channel; a full
// buffer drops the frame rather than blocking the sender.
type Session struct {
	UserID   string
	Username string

	mu         sync.Mutex
	activeRoom string
	closed     bool
	out        chan models.ServerEvent
}

func newSession(userID, username string, buffer int) *Session {
	return &Session{
		UserID:   userID,
		Username: username,
		out:      make(chan models.ServerEvent, buffer),
	}
}

// Events is the channel the write pump drains.
func (s *Session) Events() <-chan models.ServerEvent {
	return s.out
}

// Send enqueues an event for the connection. Returns false if the session
// is closed or its buffer is full.
func (s *Session) Send(ev models.ServerEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.out <- ev:
		return true
	default:
		return false
	}
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.out)
}

// ActiveRoom is the room the user is currently viewing on this connection,
// or "" when none. It drives read-receipt bookkeeping.
func (s *Session) ActiveRoom() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeRoom
}

func (s *Session) SetActiveRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeRoom = roomID
}

type shard struct {
	mu    sync.RWMutex
	users map[string]mapset.Set[*Session]
}

// Registry tracks userID -> live sessions. It is the most contended shared
// structure in the system, so it is sharded: fanout reads on one user never
// block connects and disconnects of unrelated users.
type Registry struct {
	shards [shardCount]*shard
	buffer int
}

func NewRegistry() *Registry {
	r := &Registry{buffer: defaultBuffer}
	for i := range r.shards {
		r.shards[i] = &shard{users: make(map[string]mapset.Set[*Session])}
	}
	return r
}

func (r *Registry) shardFor(userID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return r.shards[h.Sum32()%shardCount]
}

// Register creates a session for a new live connection. The second return
// is true when this is the user's first connection, meaning the caller
// should broadcast an online presence update.
func (r *Registry) Register(userID, username string) (*Session, bool) {
	sess := newSession(userID, username, r.buffer)
	sh := r.shardFor(userID)

	sh.mu.Lock()
	defer sh.mu.Unlock()
	set, ok := sh.users[userID]
	if !ok {
		set = mapset.NewThreadUnsafeSet[*Session]()
		sh.users[userID] = set
	}
	set.Add(sess)
	return sess, !ok
}

// Unregister removes a session. Safe to call more than once and concurrent
// with an in-flight fanout. The second return is true when the user has no
// sessions left, meaning the caller should broadcast an offline update.
func (r *Registry) Unregister(sess *Session) (string, bool) {
	sh := r.shardFor(sess.UserID)

	sh.mu.Lock()
	set, ok := sh.users[sess.UserID]
	if !ok || !set.Contains(sess) {
		sh.mu.Unlock()
		return sess.UserID, false
	}
	set.Remove(sess)
	offline := set.IsEmpty()
	if offline {
		delete(sh.users, sess.UserID)
	}
	sh.mu.Unlock()

	sess.close()
	return sess.UserID, offline
}

// HandlesFor returns a snapshot of the user's live sessions. Fanout iterates
// the copy, so a concurrent disconnect cannot invalidate the iteration.
func (r *Registry) HandlesFor(userID string) []*Session {
	sh := r.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	set, ok := sh.users[userID]
	if !ok {
		return nil
	}
	return set.ToSlice()
}

// CountFor reports how many live connections a user has.
func (r *Registry) CountFor(userID string) int {
	sh := r.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	set, ok := sh.users[userID]
	if !ok {
		return 0
	}
	return set.Cardinality()
}

// Broadcast sends an event to every live session, used for presence updates.
func (r *Registry) Broadcast(ev models.ServerEvent) {
	for _, sh := range r.shards {
		sh.mu.RLock()
		sessions := make([]*Session, 0)
		for _, set := range sh.users {
			sessions = append(sessions, set.ToSlice()...)
		}
		sh.mu.RUnlock()

		for _, sess := range sessions {
			sess.Send(ev)
		}
	}
}
