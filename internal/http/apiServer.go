package http

import (
	"context"
	"log"
	"net/http"
	"sync"

	"parlor/internal/api"
	"parlor/internal/auth"
	"parlor/internal/history"
	"parlor/internal/registry"
	"parlor/internal/rooms"
	"parlor/internal/router"
	"parlor/internal/storage"
	"parlor/internal/ws"
)

type APIServer struct {
	server *http.Server
	wg     sync.WaitGroup
}

func NewAPIServer(
	authService *auth.Service,
	store *storage.Store,
	tracker *rooms.Tracker,
	paginator *history.Paginator,
	reg *registry.Registry,
	rtr *router.Router,
	addr string,
) *APIServer {
	wsServer := ws.NewServer(authService, reg, rtr)
	apiHandlers := api.New(authService, store, tracker, paginator, reg)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/login", api.RequireSameOrigin(apiHandlers.LoginHandler))
	mux.HandleFunc("POST /api/logoff", api.RequireSameOrigin(apiHandlers.LogoffHandler))
	mux.HandleFunc("GET /api/me", apiHandlers.RequireAuth(apiHandlers.MeHandler))
	mux.HandleFunc("GET /api/users", apiHandlers.RequireAuth(apiHandlers.UsersHandler))
	mux.HandleFunc("GET /api/rooms", apiHandlers.RequireAuth(apiHandlers.RoomsHandler))
	mux.HandleFunc("POST /api/groups", api.RequireSameOrigin(apiHandlers.RequireAuth(apiHandlers.CreateGroupHandler)))
	mux.HandleFunc("GET /api/rooms/{id}/messages", apiHandlers.RequireAuth(apiHandlers.HistoryHandler))

	// WebSocket endpoint
	mux.HandleFunc("/api/chat", wsServer.HandleConnections)

	if addr == "" {
		addr = ":8080"
	}

	return &APIServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

func (s *APIServer) Start() error {
	log.Printf("Server started on %s", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
