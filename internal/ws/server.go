package ws

import (
	"log"
	"net/http"
	"time"

	"parlor/internal/auth"
	"parlor/internal/models"
	"parlor/internal/registry"

	"github.com/gorilla/websocket"
)

type authenticator interface {
	Authenticate(token string) (auth.Identity, error)
}

// Server upgrades HTTP requests to websockets. Authentication happens
// before the upgrade: an invalid bearer token is rejected with 401 before
// any event handling or registry entry exists.
type Server struct {
	auth     authenticator
	registry *registry.Registry
	router   eventRouter
	upgrader *websocket.Upgrader
	now      func() time.Time
}

func NewServer(auth authenticator, reg *registry.Registry, rtr eventRouter) *Server {
	return &Server{
		auth:     auth,
		registry: reg,
		router:   rtr,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // same-origin enforcement happens at the API layer
			},
		},
		now: time.Now,
	}
}

func (s *Server) HandleConnections(w http.ResponseWriter, r *http.Request) {
	identity, err := s.auth.Authenticate(bearerToken(r))
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("error upgrading to websocket: %v", err)
		return
	}

	sess, first := s.registry.Register(identity.UserID, identity.Username)
	if first {
		s.broadcastPresence(identity, true)
	}
	defer func() {
		if _, offline := s.registry.Unregister(sess); offline {
			s.broadcastPresence(identity, false)
		}
	}()

	c := NewConnection(s.router, conn, sess)
	if err := c.Handle(r.Context()); err != nil {
		log.Printf("connection closed for user %s: %v", identity.UserID, err)
	}
}

func (s *Server) broadcastPresence(identity auth.Identity, online bool) {
	s.registry.Broadcast(models.ServerEvent{
		Event: models.EventPresence,
		Response: models.Response{
			Status: models.StatusOK,
			Body: models.PresenceUpdate{
				UserID:   identity.UserID,
				Username: identity.Username,
				Online:   online,
				At:       s.now().UnixMilli(),
			},
		},
	})
}

func bearerToken(r *http.Request) string {
	if token := r.Header.Get("token"); token != "" {
		return token
	}
	if c, err := r.Cookie("token"); err == nil {
		return c.Value
	}
	return r.URL.Query().Get("token")
}
