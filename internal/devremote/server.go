// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Ledgerkeep Authors

package devremote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ledgerkeep/ledger-sync/internal/logger"
	"github.com/ledgerkeep/ledger-sync/models"
)

type principalKey struct{}

// Server is the in-memory dev backend. Use Router() as the http.Handler.
type Server struct {
	store    *memoryStore
	hub      *eventHub
	sessions *sessionManager
	logger   *logger.Logger
	router   *chi.Mux
}

func NewServer(signingKey []byte, log *logger.Logger) *Server {
	s := &Server{
		store:    newMemoryStore(),
		hub:      newEventHub(log),
		sessions: newSessionManager(signingKey),
		logger:   log,
	}
	s.router = s.routes()
	return s
}

// RegisterUser adds a dev account, typically at startup from flags or env.
func (s *Server) RegisterUser(email, password, tenant string) error {
	return s.sessions.RegisterUser(email, password, tenant)
}

// Router returns the HTTP surface of the dev backend.
func (s *Server) Router() http.Handler {
	return s.router
}

// Close terminates all live subscriptions.
func (s *Server) Close() {
	s.hub.CloseAll()
}

func (s *Server) routes() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	// routes without authorization
	router.Group(func(r chi.Router) {
		r.Get("/api/health", s.health)
		r.Post("/api/session/signin", s.signIn)
		r.Get("/api/session", s.getSession)
	})

	router.Group(func(r chi.Router) {
		r.Use(s.auth)
		r.Post("/api/session/refresh", s.refreshSession)
		r.Post("/api/session/signout", s.signOut)
		r.Post("/api/collections/{name}/query", s.queryCollection)
		r.Post("/api/collections/{name}", s.insertRecords)
		r.Patch("/api/collections/{name}/{id}", s.updateRecord)
		r.Delete("/api/collections/{name}/{id}", s.deleteRecord)
		r.Get("/api/subscribe", s.subscribe)
	})

	return router
}

// auth validates the bearer token and stores the session claims in the
// request context.
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.claimsFromRequest(r)
		if err != nil {
			s.logger.Debug().Err(err).Msg("rejecting unauthenticated request")
			http.Error(w, "invalid or missing bearer token", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) claimsFromRequest(r *http.Request) (*sessionClaims, error) {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return nil, errors.New("missing bearer token")
	}
	return s.sessions.Validate(header[len(prefix):])
}

func principal(r *http.Request) *sessionClaims {
	claims, _ := r.Context().Value(principalKey{}).(*sessionClaims)
	return claims
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	identity, err := s.sessions.SignIn(creds.Login, creds.Password)
	if err != nil {
		s.logger.Debug().Str("login", creds.Login).Err(err).Msg("sign-in rejected")
		http.Error(w, "invalid login/password", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, identity)
}

// getSession returns the session identity, or 204 when the request carries
// no valid token. Anonymous is not an error on this endpoint.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	claims, err := s.claimsFromRequest(r)
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, models.Identity{
		UserID: claims.Subject,
		Tenant: claims.Tenant,
		Email:  claims.Email,
	})
}

func (s *Server) refreshSession(w http.ResponseWriter, r *http.Request) {
	const prefix = "Bearer "
	token := r.Header.Get("Authorization")[len(prefix):]

	identity, err := s.sessions.Refresh(token)
	if err != nil {
		http.Error(w, "session expired", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, identity)
}

func (s *Server) signOut(w http.ResponseWriter, _ *http.Request) {
	// Tokens are stateless; sign-out succeeds unconditionally.
	w.WriteHeader(http.StatusOK)
}

func (s *Server) queryCollection(w http.ResponseWriter, r *http.Request) {
	claims := principal(r)
	collection, ok := s.collectionFromURL(w, r)
	if !ok {
		return
	}

	var filter map[string]any
	if err := json.NewDecoder(r.Body).Decode(&filter); err != nil {
		http.Error(w, "invalid JSON filter", http.StatusBadRequest)
		return
	}
	// The tenant scope comes from the session, never from the filter body.
	delete(filter, "tenant")

	records, err := s.store.Query(claims.Tenant, collection, filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []json.RawMessage{}
	}

	writeJSON(w, http.StatusOK, records)
}

func (s *Server) insertRecords(w http.ResponseWriter, r *http.Request) {
	claims := principal(r)
	collection, ok := s.collectionFromURL(w, r)
	if !ok {
		return
	}

	var records []json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	stored, err := s.store.Insert(claims.Tenant, collection, records)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	for _, row := range stored {
		s.hub.Broadcast(claims.Tenant, collection, models.EventInsert, row)
	}

	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) updateRecord(w http.ResponseWriter, r *http.Request) {
	claims := principal(r)
	collection, ok := s.collectionFromURL(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	var patch json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid JSON patch", http.StatusBadRequest)
		return
	}

	updated, err := s.store.Update(claims.Tenant, collection, id, patch)
	if err != nil {
		if errors.Is(err, errNotFound) {
			http.Error(w, "record not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.hub.Broadcast(claims.Tenant, collection, models.EventUpdate, updated)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request) {
	claims := principal(r)
	collection, ok := s.collectionFromURL(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	if err := s.store.Delete(claims.Tenant, collection, id); err != nil {
		if errors.Is(err, errNotFound) {
			http.Error(w, "record not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	tombstone, _ := json.Marshal(map[string]string{"id": id})
	s.hub.Broadcast(claims.Tenant, collection, models.EventDelete, tombstone)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) subscribe(w http.ResponseWriter, r *http.Request) {
	claims := principal(r)

	collection, err := models.ParseCollection(r.URL.Query().Get("collection"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("websocket accept failed")
		return
	}

	detach := s.hub.Attach(claims.Tenant, collection, conn)
	defer detach()

	s.logger.Debug().
		Str("tenant", claims.Tenant).
		Str("collection", string(collection)).
		Msg("subscriber attached")

	// The feed is one-way. Reading drains control frames and returns when
	// the peer goes away.
	ctx := r.Context()
	for {
		if _, _, err = conn.Read(ctx); err != nil {
			break
		}
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) collectionFromURL(w http.ResponseWriter, r *http.Request) (models.Collection, bool) {
	collection, err := models.ParseCollection(chi.URLParam(r, "name"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return "", false
	}
	return collection, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
