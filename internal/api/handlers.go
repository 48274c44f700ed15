package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"parlor/internal/auth"
	"parlor/internal/content"
	"parlor/internal/history"
	"parlor/internal/models"
	"parlor/internal/registry"
	"parlor/internal/rooms"
	"parlor/internal/storage"

	"github.com/google/uuid"
)

type API struct {
	auth      *auth.Service
	store     *storage.Store
	tracker   *rooms.Tracker
	paginator *history.Paginator
	registry  *registry.Registry
	now       func() time.Time
}

func New(authService *auth.Service, store *storage.Store, tracker *rooms.Tracker, paginator *history.Paginator, reg *registry.Registry) *API {
	return &API{
		auth:      authService,
		store:     store,
		tracker:   tracker,
		paginator: paginator,
		registry:  reg,
		now:       time.Now,
	}
}

// RoomSummary is a room plus per-user unread bookkeeping.
type RoomSummary struct {
	models.Room
	Unread int `json:"unread"`
}

func (a *API) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	loginResp := a.auth.Login(req)
	if !loginResp.Success {
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(w, loginResp)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    loginResp.Token,
		HttpOnly: true,
		Path:     "/",
		Expires:  time.Unix(loginResp.TokenExpiry, 0),
	})
	writeJSON(w, loginResp)
}

func (a *API) LogoffHandler(w http.ResponseWriter, r *http.Request) {
	if token := a.getToken(r); token != "" {
		_ = a.auth.Logoff(token)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		HttpOnly: true,
		Path:     "/",
		MaxAge:   -1,
	})
	w.WriteHeader(http.StatusOK)
}

// HistoryHandler serves GET /api/rooms/{id}/messages?limit=&before=.
// Requires current room membership; 404 for unknown rooms.
func (a *API) HistoryHandler(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	roomID := r.PathValue("id")
	if _, err := a.store.GetRoom(roomID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "Room not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	member, err := a.tracker.IsMember(identity.UserID, roomID)
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if !member {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	limit := history.DefaultPageSize
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	before := a.now().UnixMilli() + 1
	if v := r.URL.Query().Get("before"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid before cursor", http.StatusBadRequest)
			return
		}
		before = n
	}

	page, err := a.paginator.Before(roomID, limit, before)
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if page == nil {
		page = []models.Message{}
	}
	writeJSON(w, page)
}

// CreateGroupHandler creates a group room with the caller as admin.
func (a *API) CreateGroupHandler(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	name, err := content.ValidateRoomName(req.Name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	now := a.now().UnixMilli()
	room := models.Room{
		ID:        uuid.NewString(),
		Type:      models.RoomTypeGroup,
		Name:      name,
		CreatedAt: now,
	}
	creator := models.Membership{
		UserID:     identity.UserID,
		RoomID:     room.ID,
		Role:       models.RoleAdmin,
		JoinedAt:   now,
		LastSeenAt: now,
	}
	if err := a.store.CreateRoomWithMembers(room, []models.Membership{creator}); err != nil {
		log.Printf("failed to create group: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	a.tracker.Invalidate(room.ID)
	writeJSON(w, room)
}

// RoomsHandler lists the caller's rooms with unread counts.
func (a *API) RoomsHandler(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	roomList, err := a.store.ListRoomsFor(identity.UserID)
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	summaries := make([]RoomSummary, 0, len(roomList))
	for _, room := range roomList {
		summary := RoomSummary{Room: room}
		if membership, err := a.store.GetMembership(room.ID, identity.UserID); err == nil {
			if unread, err := a.store.CountMessagesSince(room.ID, membership.LastSeenAt); err == nil {
				summary.Unread = unread
			}
		}
		summaries = append(summaries, summary)
	}
	writeJSON(w, summaries)
}

// UsersHandler lists all users with their presence derived from the
// connection registry.
func (a *API) UsersHandler(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	users, err := a.store.ListUsers()
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	for i := range users {
		users[i].Online = a.registry.CountFor(users[i].ID) > 0
	}
	writeJSON(w, users)
}

func (a *API) MeHandler(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	writeJSON(w, identity)
}

// RequireAuth resolves the bearer token before the wrapped handler runs.
func (a *API) RequireAuth(next func(http.ResponseWriter, *http.Request, auth.Identity)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := a.auth.Authenticate(a.getToken(r))
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r, identity)
	}
}

// RequireSameOrigin rejects cross-site requests on state-changing
// endpoints by comparing the Origin header against the Host.
func RequireSameOrigin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			u, err := url.Parse(origin)
			if err != nil || u.Host != r.Host {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
		}
		next(w, r)
	}
}

func (a *API) getToken(r *http.Request) string {
	token := r.Header.Get("token")
	if token == "" {
		if c, err := r.Cookie("token"); err == nil {
			token = c.Value
		}
	}
	return token
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}
