package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/CrowderSoup/studyboard/services"
)

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps is everything the HTTP surface needs.
type Deps struct {
	Auth       *services.AuthService
	Workspaces *services.Workspaces
	Hub        *services.Hub
	Store      Pinger
	Origins    []string
	StaticDir  string
	Log        *log.Logger
}

// NewRouter wires every route.
func NewRouter(d Deps) *mux.Router {
	authMiddleware := NewAuthMiddleware(d.Auth, d.Log)
	authHandler := NewAuthHandler(d.Auth, d.Log)
	todoHandler := NewTodoHandler(d.Workspaces, d.Log)
	boardHandler := NewBoardHandler(d.Workspaces, d.Log)
	wsHandler := NewWebSocketHandler(d.Workspaces, d.Hub, d.Origins, d.Log)

	r := mux.NewRouter()
	r.Use(requestLogger(d.Log))

	r.HandleFunc("/healthz", healthz(d.Store)).Methods("GET")

	protected := func(h http.HandlerFunc) http.Handler { return authMiddleware.Auth(h) }
	optional := func(h http.HandlerFunc) http.Handler { return authMiddleware.OptionalAuth(h) }

	// Auth routes
	r.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST")
	r.HandleFunc("/api/auth/magic-link", authHandler.HandleMagicLink).Methods("GET")
	r.Handle("/api/auth/verify", protected(authHandler.VerifyToken)).Methods("GET")

	// Reads work without a token and return empty data
	r.Handle("/api/todos", optional(todoHandler.List)).Methods("GET")
	r.Handle("/api/board", optional(boardHandler.Get)).Methods("GET")
	r.Handle("/api/sync/status", optional(boardHandler.SyncStatus)).Methods("GET")

	r.Handle("/api/todos", protected(todoHandler.Create)).Methods("POST")
	r.Handle("/api/todos/reorder", protected(todoHandler.Reorder)).Methods("POST")
	r.Handle("/api/todos/{id}", protected(todoHandler.Rename)).Methods("PATCH")
	r.Handle("/api/todos/{id}", protected(todoHandler.Delete)).Methods("DELETE")
	r.Handle("/api/todos/{id}/toggle", protected(todoHandler.Toggle)).Methods("POST")

	r.Handle("/api/board/groups", protected(boardHandler.CreateGroup)).Methods("POST")
	r.Handle("/api/board/groups/move", protected(boardHandler.MoveGroup)).Methods("POST")
	r.Handle("/api/board/groups/{id}", protected(boardHandler.RenameGroup)).Methods("PATCH")
	r.Handle("/api/board/groups/{id}", protected(boardHandler.DeleteGroup)).Methods("DELETE")
	r.Handle("/api/board/cards", protected(boardHandler.CreateCard)).Methods("POST")
	r.Handle("/api/board/cards/{id}/shift", protected(boardHandler.ShiftCard)).Methods("POST")
	r.Handle("/api/board/drop", protected(boardHandler.Drop)).Methods("POST")

	// WebSocket route for real-time updates
	r.Handle("/api/ws", protected(wsHandler.HandleWebSocket))

	if d.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(d.StaticDir)))
	}
	return r
}

func healthz(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *log.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.WithFields(log.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start),
			}).Debug("Handled request")
		})
	}
}
