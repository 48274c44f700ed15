package router

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"parlor/internal/content"
	"parlor/internal/history"
	"parlor/internal/models"
	"parlor/internal/registry"

	mapset "github.com/deckarep/golang-set/v2"
)

// Gateway is the persistence surface the router writes through. Satisfied
// by storage.Store.
type Gateway interface {
	GetUser(id string) (models.User, error)
	GetRoom(id string) (models.Room, error)
	EnsureDirectRoom(a, b string) (models.Room, bool, error)
	GetMembership(roomID, userID string) (models.Membership, error)
	UpsertMembership(m models.Membership) error
	ListMembers(roomID string) ([]models.Membership, error)
	UpdateLastSeen(roomID, userID string, at int64) error
	SaveMessage(m models.Message) error
	GetMessage(id string) (models.Message, error)
	UpdateMessage(m models.Message) error
}

// Members answers room membership questions. Satisfied by rooms.Tracker.
type Members interface {
	MembersOf(roomID string) (mapset.Set[string], error)
	IsMember(userID, roomID string) (bool, error)
	Invalidate(roomID string)
}

// Error categories reported in the response envelope.
const (
	categoryValidation  = "validation"
	categoryForbidden   = "forbidden"
	categoryNotFound    = "not_found"
	categoryPersistence = "persistence"
)

// Router is the single authority over inbound room-scoped events: it
// validates them against membership and payload shape, persists the durable
// side effect, and fans the persisted result out to every live member.
//
// Per-room serialization: message-producing handlers hold the room's lock
// across persist and broadcast, so fanout order always matches persistence
// order within a room. No cross-room ordering is promised.
type Router struct {
	gateway  Gateway
	members  Members
	registry *registry.Registry
	history  *history.Paginator
	now      func() time.Time

	mu    sync.Mutex
	rooms map[string]*roomState
}

type roomState struct {
	mu        sync.Mutex
	lastStamp int64
}

// stamp returns a per-room strictly increasing unix-millisecond timestamp.
// Must be called with the room lock held.
func (st *roomState) stamp(now int64) int64 {
	if now <= st.lastStamp {
		now = st.lastStamp + 1
	}
	st.lastStamp = now
	return now
}

func New(gateway Gateway, members Members, reg *registry.Registry, paginator *history.Paginator) *Router {
	return &Router{
		gateway:  gateway,
		members:  members,
		registry: reg,
		history:  paginator,
		now:      time.Now,
		rooms:    make(map[string]*roomState),
	}
}

func (r *Router) roomState(roomID string) *roomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.rooms[roomID]
	if !ok {
		st = &roomState{}
		r.rooms[roomID] = st
	}
	return st
}

// HandleEvent processes one inbound event from a connection. Every failure
// is local to this event: it is reported to the sender only and never
// terminates the connection.
func (r *Router) HandleEvent(sess *registry.Session, raw ClientEvent) {
	ev, err := Parse(raw)
	if err != nil {
		r.fail(sess, raw.Type, "", err)
		return
	}

	switch e := ev.(type) {
	case RoomConnect:
		r.handleRoomConnect(sess, e)
	case RoomOpen:
		r.handleRoomOpen(sess, e)
	case RoomMessage:
		r.handleRoomMessage(sess, e)
	case RoomEdit:
		r.handleRoomEdit(sess, e)
	case RoomUnsend:
		r.handleRoomUnsend(sess, e)
	case GroupJoin:
		r.handleGroupJoin(sess, e)
	case GroupLeave:
		r.handleGroupLeave(sess, e)
	case DirectJoin:
		r.handleDirectJoin(sess, e)
	case DirectOpen:
		r.handleDirectOpen(sess, e)
	case DirectLeave:
		r.handleDirectLeave(sess, e)
	case DirectMessage:
		r.handleDirectMessage(sess, e)
	}
}

func (r *Router) handleRoomConnect(sess *registry.Session, e RoomConnect) {
	if _, err := r.gateway.GetRoom(e.Room); err != nil {
		r.fail(sess, TypeRoomConnect, e.Room, err)
		return
	}
	member, err := r.members.IsMember(sess.UserID, e.Room)
	if err != nil {
		r.fail(sess, TypeRoomConnect, e.Room, err)
		return
	}
	if !member {
		r.fail(sess, TypeRoomConnect, e.Room, models.ErrNotMember)
		return
	}
	r.ack(sess, TypeRoomConnect, e.Room, nil)
}

func (r *Router) handleRoomOpen(sess *registry.Session, e RoomOpen) {
	if _, err := r.gateway.GetRoom(e.Room); err != nil {
		r.fail(sess, TypeRoomOpen, e.Room, err)
		return
	}
	r.openRoom(sess, TypeRoomOpen, e.Room)
}

// openRoom stamps last-seen for the room being opened and for the room the
// connection had open before, then moves the active-room marker. Ack to
// sender only, no fanout.
func (r *Router) openRoom(sess *registry.Session, eventType, roomID string) {
	member, err := r.members.IsMember(sess.UserID, roomID)
	if err != nil {
		r.fail(sess, eventType, roomID, err)
		return
	}
	if !member {
		r.fail(sess, eventType, roomID, models.ErrNotMember)
		return
	}

	now := r.now().UnixMilli()
	if prev := sess.ActiveRoom(); prev != "" && prev != roomID {
		if err := r.gateway.UpdateLastSeen(prev, sess.UserID, now); err != nil && !errors.Is(err, models.ErrNotFound) {
			slog.Warn("failed to stamp previous room", "room_id", prev, "user_id", sess.UserID, "error", err)
		}
	}
	if err := r.gateway.UpdateLastSeen(roomID, sess.UserID, now); err != nil {
		r.fail(sess, eventType, roomID, err)
		return
	}
	sess.SetActiveRoom(roomID)
	r.ack(sess, eventType, roomID, nil)
}

func (r *Router) handleRoomMessage(sess *registry.Session, e RoomMessage) {
	if e.SenderID != sess.UserID {
		r.fail(sess, TypeRoomMessage, e.Room, models.ErrForbidden)
		return
	}
	member, err := r.members.IsMember(sess.UserID, e.Room)
	if err != nil {
		r.fail(sess, TypeRoomMessage, e.Room, err)
		return
	}
	if !member {
		r.fail(sess, TypeRoomMessage, e.Room, models.ErrNotMember)
		return
	}
	text, err := content.ValidateMessageText(e.Content)
	if err != nil {
		r.fail(sess, TypeRoomMessage, e.Room, errValidation("%s", err))
		return
	}

	// The room lock spans persist and broadcast so delivery order matches
	// persisted order. Delivery timestamps come from the server clock, not
	// the client's body.sentAt, because persistence is the single source
	// of sequence.
	st := r.roomState(e.Room)
	st.mu.Lock()
	defer st.mu.Unlock()

	sentAt := st.stamp(r.now().UnixMilli())
	msg := models.Message{
		ID:         models.NewMessageID(e.Room, sess.UserID, sentAt),
		RoomID:     e.Room,
		SenderID:   sess.UserID,
		SenderType: models.SenderTypeUser,
		Content:    models.Content{Kind: models.ContentKindText, Text: text},
		SentAt:     sentAt,
	}
	if err := r.gateway.SaveMessage(msg); err != nil {
		r.fail(sess, TypeRoomMessage, e.Room, err)
		return
	}
	// The sender is a member and receives the broadcast like everyone
	// else; no separate ack.
	r.broadcastRoom(e.Room, models.EventRoomMessage, msg)
}

func (r *Router) handleRoomEdit(sess *registry.Session, e RoomEdit) {
	text, err := content.ValidateMessageText(e.Content)
	if err != nil {
		r.fail(sess, TypeRoomEdit, e.Room, errValidation("%s", err))
		return
	}

	// The room lock spans load, policy check and write. A stale copy read
	// outside the lock could otherwise overwrite a concurrent unsend.
	st := r.roomState(e.Room)
	st.mu.Lock()
	defer st.mu.Unlock()

	msg, err := r.modifiableMessage(sess, TypeRoomEdit, e.Room, e.MessageID)
	if err != nil {
		return
	}

	msg.Content.Text = text
	msg.Edited = true
	if err := r.gateway.UpdateMessage(msg); err != nil {
		r.fail(sess, TypeRoomEdit, e.Room, err)
		return
	}
	r.broadcastRoom(e.Room, models.EventRoomEdit, msg)
}

func (r *Router) handleRoomUnsend(sess *registry.Session, e RoomUnsend) {
	st := r.roomState(e.Room)
	st.mu.Lock()
	defer st.mu.Unlock()

	msg, err := r.modifiableMessage(sess, TypeRoomUnsend, e.Room, e.MessageID)
	if err != nil {
		return
	}

	msg.Deleted = true
	if err := r.gateway.UpdateMessage(msg); err != nil {
		r.fail(sess, TypeRoomUnsend, e.Room, err)
		return
	}
	r.broadcastRoom(e.Room, models.EventRoomUnsend, msg)
}

// modifiableMessage loads a message and enforces the edit/unsend policy:
// the original sender, or a group admin, may modify it. Must be called
// with the room lock held so the loaded copy stays current until the
// write commits. Failures are already reported to the sender when this
// returns an error.
func (r *Router) modifiableMessage(sess *registry.Session, eventType, roomID, messageID string) (models.Message, error) {
	member, err := r.members.IsMember(sess.UserID, roomID)
	if err != nil {
		r.fail(sess, eventType, roomID, err)
		return models.Message{}, err
	}
	if !member {
		r.fail(sess, eventType, roomID, models.ErrNotMember)
		return models.Message{}, models.ErrNotMember
	}

	msg, err := r.gateway.GetMessage(messageID)
	if err != nil {
		r.fail(sess, eventType, roomID, err)
		return models.Message{}, err
	}
	if msg.RoomID != roomID {
		err := errValidation("message %s does not belong to room %s", messageID, roomID)
		r.fail(sess, eventType, roomID, err)
		return models.Message{}, err
	}
	if msg.Deleted {
		err := errValidation("message %s was unsent", messageID)
		r.fail(sess, eventType, roomID, err)
		return models.Message{}, err
	}
	if msg.SenderID == sess.UserID {
		return msg, nil
	}

	membership, err := r.gateway.GetMembership(roomID, sess.UserID)
	if err != nil || membership.Left || membership.Role != models.RoleAdmin {
		r.fail(sess, eventType, roomID, models.ErrForbidden)
		return models.Message{}, models.ErrForbidden
	}
	return msg, nil
}

func (r *Router) handleGroupJoin(sess *registry.Session, e GroupJoin) {
	room, err := r.gateway.GetRoom(e.Group)
	if err != nil {
		r.fail(sess, TypeGroupJoin, e.Group, err)
		return
	}
	if room.Type != models.RoomTypeGroup {
		r.fail(sess, TypeGroupJoin, e.Group, errValidation("room %s is not a group", e.Group))
		return
	}

	now := r.now().UnixMilli()
	membership, err := r.gateway.GetMembership(e.Group, sess.UserID)
	newly := false
	switch {
	case err == nil && !membership.Left:
		// Existing membership is a no-op, not an error.
	case err == nil || errors.Is(err, models.ErrNotFound):
		// Rejoining resets JoinedAt: a returning member does not inherit
		// their old seniority for admin succession.
		m := models.Membership{
			UserID:     sess.UserID,
			RoomID:     e.Group,
			Role:       models.RoleMember,
			JoinedAt:   now,
			LastSeenAt: now,
		}
		if err := r.gateway.UpsertMembership(m); err != nil {
			r.fail(sess, TypeGroupJoin, e.Group, err)
			return
		}
		r.members.Invalidate(e.Group)
		newly = true
	default:
		r.fail(sess, TypeGroupJoin, e.Group, err)
		return
	}

	if newly {
		r.systemActivity(e.Group, models.Activity{
			Type:     models.ActivityJoin,
			RoomID:   e.Group,
			UserID:   sess.UserID,
			Username: sess.Username,
		})
	}

	r.sendHistorySnapshot(sess, e.Group)
	r.ack(sess, TypeGroupJoin, e.Group, room)
}

func (r *Router) handleGroupLeave(sess *registry.Session, e GroupLeave) {
	room, err := r.gateway.GetRoom(e.Group)
	if err != nil {
		r.fail(sess, TypeGroupLeave, e.Group, err)
		return
	}
	if room.Type != models.RoomTypeGroup {
		r.fail(sess, TypeGroupLeave, e.Group, errValidation("room %s is not a group", e.Group))
		return
	}

	membership, err := r.gateway.GetMembership(e.Group, sess.UserID)
	if err != nil || membership.Left {
		r.fail(sess, TypeGroupLeave, e.Group, models.ErrNotMember)
		return
	}

	membership.Left = true
	membership.LastSeenAt = r.now().UnixMilli()
	if err := r.gateway.UpsertMembership(membership); err != nil {
		r.fail(sess, TypeGroupLeave, e.Group, err)
		return
	}
	r.members.Invalidate(e.Group)
	r.clearActiveRoom(sess.UserID, e.Group)

	r.systemActivity(e.Group, models.Activity{
		Type:     models.ActivityLeave,
		RoomID:   e.Group,
		UserID:   sess.UserID,
		Username: sess.Username,
	})

	if membership.Role == models.RoleAdmin {
		r.succeedAdmin(e.Group)
	}

	r.ack(sess, TypeGroupLeave, e.Group, nil)
}

// succeedAdmin promotes the oldest remaining active member (earliest
// JoinedAt, user ID as tie-break) when a room is left without any admin.
func (r *Router) succeedAdmin(roomID string) {
	members, err := r.gateway.ListMembers(roomID)
	if err != nil {
		slog.Error("admin succession aborted", "room_id", roomID, "error", err)
		return
	}

	var active []models.Membership
	for _, m := range members {
		if m.Left {
			continue
		}
		if m.Role == models.RoleAdmin {
			return // still has an admin
		}
		active = append(active, m)
	}
	if len(active) == 0 {
		return
	}

	sort.Slice(active, func(i, j int) bool {
		if active[i].JoinedAt != active[j].JoinedAt {
			return active[i].JoinedAt < active[j].JoinedAt
		}
		return active[i].UserID < active[j].UserID
	})

	promoted := active[0]
	promoted.Role = models.RoleAdmin
	if err := r.gateway.UpsertMembership(promoted); err != nil {
		slog.Error("failed to promote admin", "room_id", roomID, "user_id", promoted.UserID, "error", err)
		return
	}
	r.members.Invalidate(roomID)

	username := ""
	if user, err := r.gateway.GetUser(promoted.UserID); err == nil {
		username = user.Username
	}
	r.systemActivity(roomID, models.Activity{
		Type:     models.ActivityUpdateAdmin,
		RoomID:   roomID,
		UserID:   promoted.UserID,
		Username: username,
	})
}

func (r *Router) handleDirectJoin(sess *registry.Session, e DirectJoin) {
	if e.Peer == sess.UserID {
		r.fail(sess, TypeDirectJoin, "", errValidation("cannot start a direct conversation with yourself"))
		return
	}
	if _, err := r.gateway.GetUser(e.Peer); err != nil {
		r.fail(sess, TypeDirectJoin, "", err)
		return
	}

	room, created, err := r.gateway.EnsureDirectRoom(sess.UserID, e.Peer)
	if err != nil {
		r.fail(sess, TypeDirectJoin, "", err)
		return
	}
	if created {
		r.members.Invalidate(room.ID)
	} else if err := r.rejoinDirect(sess, room.ID); err != nil {
		r.fail(sess, TypeDirectJoin, room.ID, err)
		return
	}

	r.sendHistorySnapshot(sess, room.ID)
	r.ack(sess, TypeDirectJoin, room.ID, room)
}

// rejoinDirect reactivates the caller's membership in an existing direct
// room after a leave, same as rejoining a group: JoinedAt resets and the
// peer sees a join activity. An active membership is a no-op.
func (r *Router) rejoinDirect(sess *registry.Session, roomID string) error {
	membership, err := r.gateway.GetMembership(roomID, sess.UserID)
	switch {
	case err == nil && !membership.Left:
		return nil
	case err == nil || errors.Is(err, models.ErrNotFound):
		now := r.now().UnixMilli()
		m := models.Membership{
			UserID:     sess.UserID,
			RoomID:     roomID,
			Role:       models.RoleMember,
			JoinedAt:   now,
			LastSeenAt: now,
		}
		if err := r.gateway.UpsertMembership(m); err != nil {
			return err
		}
		r.members.Invalidate(roomID)
		r.systemActivity(roomID, models.Activity{
			Type:     models.ActivityJoin,
			RoomID:   roomID,
			UserID:   sess.UserID,
			Username: sess.Username,
		})
		return nil
	default:
		return err
	}
}

func (r *Router) handleDirectOpen(sess *registry.Session, e DirectOpen) {
	room, err := r.gateway.GetRoom(e.Conversation)
	if err != nil {
		r.fail(sess, TypeDirectOpen, e.Conversation, err)
		return
	}
	if room.Type != models.RoomTypeDirect {
		r.fail(sess, TypeDirectOpen, e.Conversation, errValidation("room %s is not a direct conversation", e.Conversation))
		return
	}
	r.openRoom(sess, TypeDirectOpen, e.Conversation)
}

func (r *Router) handleDirectLeave(sess *registry.Session, e DirectLeave) {
	room, err := r.gateway.GetRoom(e.Conversation)
	if err != nil {
		r.fail(sess, TypeDirectLeave, e.Conversation, err)
		return
	}
	if room.Type != models.RoomTypeDirect {
		r.fail(sess, TypeDirectLeave, e.Conversation, errValidation("room %s is not a direct conversation", e.Conversation))
		return
	}

	membership, err := r.gateway.GetMembership(e.Conversation, sess.UserID)
	if err != nil || membership.Left {
		r.fail(sess, TypeDirectLeave, e.Conversation, models.ErrNotMember)
		return
	}

	membership.Left = true
	membership.LastSeenAt = r.now().UnixMilli()
	if err := r.gateway.UpsertMembership(membership); err != nil {
		r.fail(sess, TypeDirectLeave, e.Conversation, err)
		return
	}
	r.members.Invalidate(e.Conversation)
	r.clearActiveRoom(sess.UserID, e.Conversation)

	r.systemActivity(e.Conversation, models.Activity{
		Type:     models.ActivityLeave,
		RoomID:   e.Conversation,
		UserID:   sess.UserID,
		Username: sess.Username,
	})
	r.ack(sess, TypeDirectLeave, e.Conversation, nil)
}

func (r *Router) handleDirectMessage(sess *registry.Session, e DirectMessage) {
	room, err := r.gateway.GetRoom(e.Conversation)
	if err != nil {
		r.fail(sess, TypeDirectMessage, e.Conversation, err)
		return
	}
	if room.Type != models.RoomTypeDirect {
		r.fail(sess, TypeDirectMessage, e.Conversation, errValidation("room %s is not a direct conversation", e.Conversation))
		return
	}
	member, err := r.members.IsMember(sess.UserID, e.Conversation)
	if err != nil {
		r.fail(sess, TypeDirectMessage, e.Conversation, err)
		return
	}
	if !member {
		r.fail(sess, TypeDirectMessage, e.Conversation, models.ErrNotMember)
		return
	}
	text, err := content.ValidateMessageText(e.Content)
	if err != nil {
		r.fail(sess, TypeDirectMessage, e.Conversation, errValidation("%s", err))
		return
	}

	st := r.roomState(e.Conversation)
	st.mu.Lock()
	defer st.mu.Unlock()

	sentAt := st.stamp(r.now().UnixMilli())
	msg := models.Message{
		ID:         models.NewMessageID(e.Conversation, sess.UserID, sentAt),
		RoomID:     e.Conversation,
		SenderID:   sess.UserID,
		SenderType: models.SenderTypeUser,
		Content:    models.Content{Kind: models.ContentKindText, Text: text},
		SentAt:     sentAt,
	}
	if err := r.gateway.SaveMessage(msg); err != nil {
		r.fail(sess, TypeDirectMessage, e.Conversation, err)
		return
	}
	r.broadcastRoom(e.Conversation, models.EventRoomMessage, msg)

	// Personal notification on the receiver's user-scoped channel, so an
	// inactive chat list entry updates without the receiver having opened
	// the conversation.
	r.notifyPeers(sess.UserID, e.Conversation, msg)
}

func (r *Router) notifyPeers(senderID, roomID string, msg models.Message) {
	set, err := r.members.MembersOf(roomID)
	if err != nil {
		slog.Warn("direct notify skipped", "room_id", roomID, "error", err)
		return
	}
	ev := models.ServerEvent{
		Event: models.EventDirectNotify,
		Response: models.Response{
			Status:      models.StatusOK,
			Destination: roomID,
			Body:        msg,
		},
	}
	set.Each(func(userID string) bool {
		if userID == senderID {
			return false
		}
		for _, h := range r.registry.HandlesFor(userID) {
			h.Send(ev)
		}
		return false
	})
}

// systemActivity persists a membership change as a system message, then
// broadcasts the activity to current members. Holds the room lock so the
// system message keeps its slot in delivery order.
func (r *Router) systemActivity(roomID string, activity models.Activity) {
	st := r.roomState(roomID)
	st.mu.Lock()
	defer st.mu.Unlock()

	sentAt := st.stamp(r.now().UnixMilli())
	msg := models.Message{
		ID:         models.NewMessageID(roomID, "", sentAt),
		RoomID:     roomID,
		SenderType: models.SenderTypeSystem,
		Content: models.Content{
			Kind: models.ContentKindText,
			Text: activityText(activity),
		},
		SentAt: sentAt,
	}
	if err := r.gateway.SaveMessage(msg); err != nil {
		slog.Error("failed to persist activity", "room_id", roomID, "activity", activity.Type, "error", err)
		return
	}
	r.broadcastRoom(roomID, models.EventRoomActivity, activity)
}

func activityText(activity models.Activity) string {
	name := activity.Username
	if name == "" {
		name = activity.UserID
	}
	switch activity.Type {
	case models.ActivityJoin:
		return fmt.Sprintf("%s joined", name)
	case models.ActivityLeave:
		return fmt.Sprintf("%s left", name)
	case models.ActivityUpdateAdmin:
		return fmt.Sprintf("%s is now admin", name)
	default:
		return string(activity.Type)
	}
}

// broadcastRoom fans one event out to every live connection of every
// current room member. A failed membership lookup after a successful
// persist is logged, not surfaced: offline readers catch up via history.
func (r *Router) broadcastRoom(roomID, event string, body any) {
	set, err := r.members.MembersOf(roomID)
	if err != nil {
		slog.Error("fanout membership lookup failed", "room_id", roomID, "error", err)
		return
	}
	ev := models.ServerEvent{
		Event: event,
		Response: models.Response{
			Status:      models.StatusOK,
			Destination: roomID,
			Body:        body,
		},
	}
	set.Each(func(userID string) bool {
		for _, h := range r.registry.HandlesFor(userID) {
			h.Send(ev)
		}
		return false
	})
}

func (r *Router) sendHistorySnapshot(sess *registry.Session, roomID string) {
	page, err := r.history.Before(roomID, history.DefaultPageSize, r.now().UnixMilli()+1)
	if err != nil {
		slog.Warn("history snapshot failed", "room_id", roomID, "error", err)
		return
	}
	sess.Send(models.ServerEvent{
		Event: models.EventRoomHistory,
		Response: models.Response{
			Status:      models.StatusOK,
			Destination: roomID,
			Body:        page,
		},
	})
}

func (r *Router) clearActiveRoom(userID, roomID string) {
	for _, h := range r.registry.HandlesFor(userID) {
		if h.ActiveRoom() == roomID {
			h.SetActiveRoom("")
		}
	}
}

func (r *Router) ack(sess *registry.Session, event, destination string, body any) {
	sess.Send(models.ServerEvent{
		Event: event,
		Response: models.Response{
			Status:      models.StatusOK,
			Destination: destination,
			Body:        body,
		},
	})
}

// fail reports an error to the sender only. Persistence errors are logged
// with detail but reported generically.
func (r *Router) fail(sess *registry.Session, event, destination string, err error) {
	category := categorize(err)
	message := err.Error()
	if category == categoryPersistence {
		slog.Error("event failed", "event", event, "destination", destination, "user_id", sess.UserID, "error", err)
		message = "temporary storage failure, please retry"
	}
	sess.Send(models.ServerEvent{
		Event: event,
		Response: models.Response{
			Status:      models.StatusError,
			Error:       category,
			Message:     message,
			Destination: destination,
		},
	})
}

func categorize(err error) string {
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		return categoryValidation
	case errors.Is(err, models.ErrNotFound):
		return categoryNotFound
	case errors.Is(err, models.ErrForbidden), errors.Is(err, models.ErrNotMember):
		return categoryForbidden
	default:
		return categoryPersistence
	}
}
