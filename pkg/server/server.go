// Package server exposes the series query engine over HTTP for the benchmark
// page.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mslinn/benchledger/pkg/blob"
	"github.com/mslinn/benchledger/pkg/checksum"
	"github.com/mslinn/benchledger/pkg/ledger"
	"github.com/mslinn/benchledger/pkg/series"
)

// Server answers read-only queries against the current ledger snapshot
type Server struct {
	source blob.Blob
	store  atomic.Pointer[ledger.Store]
	log    *zap.Logger
	router *mux.Router

	reloadMu sync.Mutex
	loaded   checksum.Sum
}

// New creates a server over store. source is re-read by Reload and may be nil.
func New(store *ledger.Store, source blob.Blob, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{source: source, log: log}
	s.store.Store(store)

	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/data.js", s.handleScript).Methods(http.MethodGet)
	r.HandleFunc("/data.json", s.handleJSON).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/groups", s.handleGroups).Methods(http.MethodGet)
	api.HandleFunc("/groups/{group}/tools", s.handleTools).Methods(http.MethodGet)
	api.HandleFunc("/groups/{group}/tools/{tool}/benchmarks", s.handleNames).Methods(http.MethodGet)
	api.HandleFunc("/groups/{group}/tools/{tool}/benchmarks/{name:.+}/series", s.handleSeries).Methods(http.MethodGet)
	api.HandleFunc("/groups/{group}/tools/{tool}/benchmarks/{name:.+}/latest", s.handleLatest).Methods(http.MethodGet)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Reload re-reads the source blob and swaps in the new ledger. Contents
// identical to the last reload are not parsed again.
func (s *Server) Reload(ctx context.Context) error {
	if s.source == nil {
		return nil
	}
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	data, err := s.source.Read(ctx)
	if errors.Is(err, blob.ErrNotFound) {
		s.log.Debug("ledger source does not exist yet")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read ledger: %w", err)
	}

	sum := checksum.Of(data)
	if sum == s.loaded {
		s.log.Debug("ledger unchanged", zap.Stringer("checksum", sum))
		return nil
	}

	l, err := ledger.Load(data)
	if err != nil {
		return err
	}
	if l.RepoURL == "" {
		l.RepoURL = s.snapshot().RepoURL
	}
	store := ledger.NewStore(l, ledger.WithLogger(s.log))
	s.store.Store(store)
	s.loaded = sum

	groups, entries := store.Snapshot().Size()
	s.log.Info("ledger reloaded",
		zap.Int("groups", groups),
		zap.Int("entries", entries),
		zap.Stringer("checksum", sum))
	return nil
}

// Watch reloads the ledger every interval until ctx is cancelled
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Reload(ctx); err != nil {
				s.log.Warn("reload failed", zap.Error(err))
			}
		}
	}
}

func (s *Server) snapshot() *ledger.Ledger {
	return s.store.Load().Snapshot()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	groups, entries := s.snapshot().Size()
	writeJSON(w, http.StatusOK, map[string]int{"groups": groups, "entries": entries})
}

func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	data, err := ledger.SerializeScript(s.snapshot())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	data, err := ledger.Serialize(s.snapshot())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, series.Groups(s.snapshot()))
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	writeJSON(w, http.StatusOK, series.Tools(s.snapshot(), vars["group"]))
}

func (s *Server) handleNames(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	writeJSON(w, http.StatusOK, series.BenchmarkNames(s.snapshot(), vars["group"], vars["tool"]))
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	points := series.Query(s.snapshot(), vars["group"], vars["tool"], vars["name"])

	if v := r.URL.Query().Get("distinct"); v != "" {
		distinct, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("distinct must be a boolean"))
			return
		}
		if distinct {
			points = series.OnlyDistinct(points)
		}
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	p, err := series.Latest(s.snapshot(), vars["group"], vars["tool"], vars["name"])
	if errors.Is(err, ledger.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
