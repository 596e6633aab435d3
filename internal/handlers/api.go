// internal/handlers/api.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/jason-s-yu/mongoose/internal/middleware"
	"github.com/jason-s-yu/mongoose/internal/relay"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// RelayControl is the part of the relay the admin API needs.
type RelayControl interface {
	Snapshot() relay.Snapshot
	Command(line string)
}

// APIServer serves the admin API next to a running relay.
type APIServer struct {
	listenAddr string
	relay      RelayControl
	hub        *SpectatorHub
	gatherer   prometheus.Gatherer
	history    GameHistory
	actions    ActionHistory
	logger     *logrus.Logger
}

// NewAPIServer builds the API. hub and gatherer may be nil, in which case
// the spectate and metrics routes are not mounted.
func NewAPIServer(listenAddr string, rc RelayControl, hub *SpectatorHub, gatherer prometheus.Gatherer, logger *logrus.Logger) *APIServer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &APIServer{
		listenAddr: listenAddr,
		relay:      rc,
		hub:        hub,
		gatherer:   gatherer,
		logger:     logger,
	}
}

// Router returns the configured route tree.
func (s *APIServer) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(enableCORS)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.LogMiddleware(s.logger))
	api.HandleFunc("/health", makeHTTPHandlerFunc(s.handleHealth)).Methods(http.MethodGet)
	api.HandleFunc("/state", makeHTTPHandlerFunc(s.handleState)).Methods(http.MethodGet)
	api.HandleFunc("/command", makeHTTPHandlerFunc(s.handleCommand)).Methods(http.MethodPost, http.MethodOptions)
	if s.history != nil {
		api.HandleFunc("/games/{id}", makeHTTPHandlerFunc(s.handleGame)).Methods(http.MethodGet)
	}
	if s.actions != nil {
		api.HandleFunc("/games/{id}/actions", makeHTTPHandlerFunc(s.handleGameActions)).Methods(http.MethodGet)
	}

	// websocket upgrades need the raw ResponseWriter, so no logging wrapper here
	if s.hub != nil {
		r.HandleFunc("/api/spectate", SpectateHandler(s.logger, s.hub)).Methods(http.MethodGet)
	}
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return r
}

// Run serves until ctx is cancelled.
func (s *APIServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		if s.hub != nil {
			s.hub.Close()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warnf("api shutdown: %v", err)
		}
	}()

	s.logger.Infof("admin API listening on %s", s.listenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) error {
	snap := s.relay.Snapshot()
	return JSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"phase":   snap.Phase,
		"clients": len(snap.Clients),
	})
}

func (s *APIServer) handleState(w http.ResponseWriter, r *http.Request) error {
	return JSON(w, http.StatusOK, s.relay.Snapshot())
}

type commandRequest struct {
	Command string `json:"command"`
}

// handleCommand forwards a console command. Only commands that change
// relay state are accepted; the rest print to the server console.
func (s *APIServer) handleCommand(w http.ResponseWriter, r *http.Request) error {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apiError{Status: http.StatusBadRequest, Msg: "invalid JSON body"}
	}
	cmd := strings.ToLower(strings.TrimSpace(req.Command))
	switch cmd {
	case "start", "quit":
	default:
		return apiError{Status: http.StatusBadRequest, Msg: "unsupported command: " + req.Command}
	}
	s.relay.Command(cmd)
	s.logger.WithField("command", cmd).Info("admin command accepted")
	return JSON(w, http.StatusAccepted, map[string]string{"command": cmd})
}
