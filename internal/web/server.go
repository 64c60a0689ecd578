// Package web exposes a small read-only HTTP surface over the scheduler:
// current status, portfolio totals and recorded snapshots.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/vadiminshakov/stashd/internal/domain"
	"github.com/vadiminshakov/stashd/internal/services/refresher"
	"go.uber.org/zap"
)

type schedulerInfo interface {
	State() refresher.State
	Status() domain.Status
	LastCycleCompletedAt() time.Time
}

type portfolioReader interface {
	Catalog() (domain.Catalog, error)
	Snapshots() ([]domain.SnapshotRecord, error)
}

type syncHealth interface {
	Healthy() bool
}

// Server serves the status endpoints and shuts down when ctx is cancelled.
type Server struct {
	addr      string
	scheduler schedulerInfo
	store     portfolioReader
	sync      syncHealth
	logger    *zap.Logger
}

// NewServer creates a status server on addr.
func NewServer(addr string, scheduler schedulerInfo, store portfolioReader, sync syncHealth, logger *zap.Logger) *Server {
	return &Server{addr: addr, scheduler: scheduler, store: store, sync: sync, logger: logger}
}

// Start runs the HTTP server, blocking until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/portfolio", s.handlePortfolio)
	mux.HandleFunc("/snapshots", s.handleSnapshots)

	server := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("status server listening", zap.String("addr", s.addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusResponse struct {
	State         string    `json:"state"`
	Status        string    `json:"status"`
	LastUpdatedAt time.Time `json:"last_updated_at,omitzero"`
	SyncHealthy   bool      `json:"sync_healthy"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	healthy := true
	if s.sync != nil {
		healthy = s.sync.Healthy()
	}
	s.writeJSON(w, statusResponse{
		State:         string(s.scheduler.State()),
		Status:        string(s.scheduler.Status()),
		LastUpdatedAt: s.scheduler.LastCycleCompletedAt(),
		SyncHealthy:   healthy,
	})
}

type listTotal struct {
	Name  string `json:"name"`
	Total string `json:"total"`
}

type portfolioResponse struct {
	Lists      []listTotal `json:"lists"`
	GrandTotal string      `json:"grand_total"`
}

func (s *Server) handlePortfolio(w http.ResponseWriter, _ *http.Request) {
	cat, err := s.store.Catalog()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := portfolioResponse{GrandTotal: cat.Total().String()}
	for _, name := range cat.ListNames() {
		if l := cat.FindList(name); l != nil {
			resp.Lists = append(resp.Lists, listTotal{Name: name, Total: l.Total().String()})
		}
	}
	s.writeJSON(w, resp)
}

func (s *Server) handleSnapshots(w http.ResponseWriter, _ *http.Request) {
	snapshots, err := s.store.Snapshots()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, snapshots)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}
