// Package api exposes the host-facing HTTP surface: call ingest, settings,
// manual logging, and the read-only views of the engine's state.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/hamzaKhattat/calllog-production-system/internal/engine"
	"github.com/hamzaKhattat/calllog-production-system/internal/matcher"
	"github.com/hamzaKhattat/calllog-production-system/internal/models"
	"github.com/hamzaKhattat/calllog-production-system/internal/monitor"
	"github.com/hamzaKhattat/calllog-production-system/pkg/errors"
	"github.com/hamzaKhattat/calllog-production-system/pkg/logger"
)

// Metrics is the subset of the metrics service the API uses.
type Metrics interface {
	IncrementCounter(name string, labels map[string]string)
	ObserveHistogram(name string, value float64, labels map[string]string)
}

type noopMetrics struct{}

func (noopMetrics) IncrementCounter(string, map[string]string)          {}
func (noopMetrics) ObserveHistogram(string, float64, map[string]string) {}

// Config wires the server to the engine and its collaborators.
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Monitor    *monitor.Monitor
	Engine     *engine.Controller
	Contacts   *matcher.ContactMatcher
	Activities *matcher.ActivityMatcher
	Metrics    Metrics
}

type Server struct {
	monitor    *monitor.Monitor
	engine     *engine.Controller
	contacts   *matcher.ContactMatcher
	activities *matcher.ActivityMatcher
	metrics    Metrics
	server     *http.Server
}

func NewServer(cfg Config) *Server {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	s := &Server{
		monitor:    cfg.Monitor,
		engine:     cfg.Engine,
		contacts:   cfg.Contacts,
		activities: cfg.Activities,
		metrics:    metrics,
	}

	router := mux.NewRouter()
	router.HandleFunc("/v1/calls", s.handleIngest).Methods("POST")
	router.HandleFunc("/v1/calls", s.handleListCalls).Methods("GET")
	router.HandleFunc("/v1/calls/{sessionId}/log", s.handleLogCall).Methods("POST")
	router.HandleFunc("/v1/source", s.handleSetSource).Methods("PUT")
	router.HandleFunc("/v1/settings", s.handleGetSettings).Methods("GET")
	router.HandleFunc("/v1/settings", s.handleSetSettings).Methods("PUT")
	router.HandleFunc("/v1/providers", s.handleProviders).Methods("GET")
	router.HandleFunc("/v1/contacts", s.handleUpsertContact).Methods("POST")

	readTimeout := cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 15 * time.Second
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	return s
}

func (s *Server) Start() error {
	logger.WithField("addr", s.server.Addr).Info("API server started")
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleIngest accepts the full raw call list as the telephony source
// currently reports it. Matcher keys are registered before the snapshot is
// published so the engine's match pass can resolve them.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var raw []models.Call
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.metrics.IncrementCounter("calllogger_ingest", map[string]string{"status": "rejected"})
		writeError(w, errors.New(errors.ErrInvalidCall, "malformed call list").WithStatusCode(http.StatusBadRequest))
		return
	}

	for i := range raw {
		s.registerMatchKeys(&raw[i])
	}

	// A pushed batch is proof the source is alive. Hosts that want the
	// engine armed before the first batch use PUT /v1/source instead.
	s.monitor.SetReady(true)

	start := time.Now()
	s.monitor.Update(raw)
	s.metrics.ObserveHistogram("calllogger_reconcile_duration", time.Since(start).Seconds(), nil)
	s.metrics.IncrementCounter("calllogger_ingest", map[string]string{"status": "accepted"})

	response := map[string]interface{}{"accepted": len(raw)}
	if err := s.engine.OnStateChange(r.Context()); err != nil {
		logger.WithError(err).Warn("Processing pass finished with errors")
		response["processingError"] = err.Error()
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) registerMatchKeys(call *models.Call) {
	if call.From != nil {
		s.contacts.AddKeys(call.From.PhoneNumber)
	}
	if call.To != nil {
		s.contacts.AddKeys(call.To.PhoneNumber)
	}
	s.contacts.AddKeys(call.RawFrom, call.RawTo)
	s.activities.AddKeys(call.SessionID)
}

func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	calls, version := s.monitor.Snapshot()
	if calls == nil {
		calls = []models.LogicalCall{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": version,
		"calls":   calls,
	})
}

// handleLogCall logs one current call to one named provider.
func (s *Server) handleLogCall(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	var req struct {
		Provider string              `json:"provider"`
		Contact  *models.MatchEntity `json:"contact,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New(errors.ErrInvalidCall, "malformed log request").WithStatusCode(http.StatusBadRequest))
		return
	}

	calls, _ := s.monitor.Snapshot()
	var target *models.LogicalCall
	for i := range calls {
		if calls[i].SessionID == sessionID {
			target = &calls[i]
			break
		}
	}
	if target == nil {
		writeError(w, errors.New(errors.ErrCallNotFound, "no current call with that session id").
			WithContext("session_id", sessionID).WithStatusCode(http.StatusNotFound))
		return
	}

	err := s.engine.LogCall(r.Context(), engine.LogRequest{
		Call:     *target,
		Provider: req.Provider,
		Contact:  req.Contact,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged"})
}

// handleSetSource flips the telephony source readiness flag. Dropping it
// resets the engine; raising it again re-arms from an empty baseline.
func (s *Server) handleSetSource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ready bool `json:"ready"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New(errors.ErrInvalidCall, "malformed source request").WithStatusCode(http.StatusBadRequest))
		return
	}

	s.monitor.SetReady(req.Ready)
	if err := s.engine.OnStateChange(r.Context()); err != nil {
		logger.WithError(err).Warn("Processing pass finished with errors")
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ready": req.Ready,
		"state": s.engine.State().String(),
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.LoggerSettings{
		AutoLog:      s.engine.AutoLog(),
		LogOnRinging: s.engine.LogOnRinging(),
	})
}

// handleSetSettings applies a partial settings update. Absent fields keep
// their current values; updates while the engine is pending are dropped
// silently, matching the engine's own gating.
func (s *Server) handleSetSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AutoLog      *bool `json:"autoLog,omitempty"`
		LogOnRinging *bool `json:"logOnRinging,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New(errors.ErrInvalidCall, "malformed settings").WithStatusCode(http.StatusBadRequest))
		return
	}

	if req.AutoLog != nil {
		if err := s.engine.SetAutoLog(r.Context(), *req.AutoLog); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.LogOnRinging != nil {
		if err := s.engine.SetLogOnRinging(r.Context(), *req.LogOnRinging); err != nil {
			writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, models.LoggerSettings{
		AutoLog:      s.engine.AutoLog(),
		LogOnRinging: s.engine.LogOnRinging(),
	})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Providers())
}

func (s *Server) handleUpsertContact(w http.ResponseWriter, r *http.Request) {
	var entity models.MatchEntity
	if err := json.NewDecoder(r.Body).Decode(&entity); err != nil {
		writeError(w, errors.New(errors.ErrInvalidCall, "malformed contact").WithStatusCode(http.StatusBadRequest))
		return
	}

	if err := s.contacts.UpsertContact(r.Context(), entity); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "stored"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.WithError(err).Error("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := string(errors.ErrInternal)

	if appErr, ok := err.(*errors.AppError); ok {
		code = string(appErr.Code)
		switch appErr.Code {
		case errors.ErrCallNotFound, errors.ErrProviderNotFound:
			status = http.StatusNotFound
		case errors.ErrInvalidCall:
			status = http.StatusBadRequest
		default:
			if appErr.StatusCode != 0 && appErr.StatusCode != 500 {
				status = appErr.StatusCode
			}
		}
	}

	writeJSON(w, status, map[string]string{"error": err.Error(), "code": code})
}
