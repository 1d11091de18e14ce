// Package httpapi exposes the tenant-scoped management operations to the
// web layer: session lifecycle, message log, direct sends, training
// examples and the response cache.
package httpapi

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/nexshop/storebot/internal/session"
	"github.com/nexshop/storebot/internal/store"
)

// Authorizer is the external capability check gating every tenant-scoped
// route. A false result is an authorization failure, not a server error.
type Authorizer interface {
	CallerMayAccess(ctx context.Context, userID, tenantID string) (bool, error)
}

// AllowAll authorizes every caller. Used when the deployment fronts the
// API with its own gate.
type AllowAll struct{}

func (AllowAll) CallerMayAccess(context.Context, string, string) (bool, error) {
	return true, nil
}

// Storage is the persistence surface the handlers read and write.
type Storage interface {
	RecentMessages(tenantID string, limit int) ([]store.Message, error)
	ListCachedResponses(tenantID string) ([]store.CachedResponse, error)
	UpsertTrainingExample(ex store.TrainingExample) error
}

type Server struct {
	sessions *session.Manager
	storage  Storage
	auth     Authorizer
	server   *http.Server
	host     string
	port     int
}

func NewServer(host string, port int, sessions *session.Manager, storage Storage, auth Authorizer) *Server {
	if auth == nil {
		auth = AllowAll{}
	}
	return &Server{
		sessions: sessions,
		storage:  storage,
		auth:     auth,
		host:     host,
		port:     port,
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/tenants/{tenant}/session/connect", s.authorized(s.handleConnect))
	mux.HandleFunc("POST /api/tenants/{tenant}/session/disconnect", s.authorized(s.handleDisconnect))
	mux.HandleFunc("GET /api/tenants/{tenant}/session/status", s.authorized(s.handleStatus))
	mux.HandleFunc("GET /api/tenants/{tenant}/messages", s.authorized(s.handleMessages))
	mux.HandleFunc("POST /api/tenants/{tenant}/send", s.authorized(s.handleSend))
	mux.HandleFunc("POST /api/tenants/{tenant}/training", s.authorized(s.handleTraining))
	mux.HandleFunc("GET /api/tenants/{tenant}/cache", s.authorized(s.handleCache))
	return mux
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.host, s.port),
		Handler: s.routes(),
	}

	go func() {
		log.Printf("[httpapi] listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[httpapi] server error: %v", err)
		}
	}()
	return nil
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	log.Printf("[httpapi] stopped")
	return nil
}

// authorized wraps a tenant-scoped handler with the capability check. The
// caller identity comes from the authenticating proxy in front of us.
func (s *Server) authorized(next func(w http.ResponseWriter, r *http.Request, tenantID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := r.PathValue("tenant")
		if tenantID == "" {
			writeError(w, http.StatusBadRequest, "tenant id is required")
			return
		}

		userID := r.Header.Get("X-User-ID")
		ok, err := s.auth.CallerMayAccess(r.Context(), userID, tenantID)
		if err != nil {
			log.Printf("[httpapi] authorization check failed for %s: %v", tenantID, err)
			writeError(w, http.StatusInternalServerError, "authorization check failed")
			return
		}
		if !ok {
			writeError(w, http.StatusForbidden, "access to tenant denied")
			return
		}

		next(w, r, tenantID)
	}
}
