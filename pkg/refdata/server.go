// Copyright 2026 © The Taxis Authors
// SPDX-License-Identifier: Apache-2.0

package refdata

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Server is a minimal in-process registry store speaking the remote backend's
// protocol. It backs integration tests and local development; production
// deployments point the remote backend at the real metadata store instead.
type Server struct {
	Addr string

	mu      sync.RWMutex
	domains map[string]map[string]Record
	touched map[string]time.Time
}

// NewServer builds an empty in-process registry server.
func NewServer(addr string) *Server {
	return &Server{
		Addr:    addr,
		domains: map[string]map[string]Record{},
		touched: map[string]time.Time{},
	}
}

// Handler returns the HTTP handler for the registry API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/registry/", s.handleDomain)
	return mux
}

// Serve starts the registry HTTP server.
func (s *Server) Serve() error {
	return http.ListenAndServe(s.Addr, s.Handler())
}

// Seed applies records to domain directly, bypassing HTTP. Upserts keyed on
// Record.ID; re-seeding the same records leaves the store unchanged.
func (s *Server) Seed(domain string, records []Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(domain, records)
}

// Records returns domain's records sorted by id.
func (s *Server) Records(domain string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked(domain)
}

func (s *Server) handleDomain(w http.ResponseWriter, req *http.Request) {
	domain := strings.Trim(strings.TrimPrefix(req.URL.Path, "/v1/registry/"), "/")
	if domain == "" || strings.Contains(domain, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch req.Method {
	case http.MethodGet:
		s.handleList(w, domain)
	case http.MethodPut:
		s.handleUpsert(w, req, domain)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleList(w http.ResponseWriter, domain string) {
	s.mu.RLock()
	out := s.sortedLocked(domain)
	s.mu.RUnlock()

	payload, err := json.Marshal(out)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

func (s *Server) handleUpsert(w http.ResponseWriter, req *http.Request, domain string) {
	var records []Record
	if err := json.NewDecoder(req.Body).Decode(&records); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	for _, r := range records {
		if strings.TrimSpace(r.ID) == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
	}
	s.mu.Lock()
	s.upsertLocked(domain, records)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) upsertLocked(domain string, records []Record) {
	store, ok := s.domains[domain]
	if !ok {
		store = map[string]Record{}
		s.domains[domain] = store
	}
	for _, r := range records {
		store[r.ID] = r
	}
	s.touched[domain] = time.Now().UTC()
}

func (s *Server) sortedLocked(domain string) []Record {
	store := s.domains[domain]
	out := make([]Record, 0, len(store))
	for _, r := range store {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
