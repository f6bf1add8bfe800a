package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"devicemonitor/internal/metrics"
	"devicemonitor/internal/models"
	"devicemonitor/internal/monitor"
	"devicemonitor/internal/registry"
)

const maxBodyBytes = 1 << 16

// DeviceService is the monitor surface exposed over HTTP.
type DeviceService interface {
	AddDevice(name, address string) (models.Device, error)
	RemoveDevice(id string)
	PingOne(id string) error
	PingAll() error
	SetAutoPing(enabled bool)
	SetInterval(seconds int) error
	SetStaggerDelay(seconds int) error
	ListDevices() []models.Device
	Counts() metrics.Summary
	Schedule() models.ScheduleView
	Subscribe() (<-chan struct{}, func())
}

// Server wraps HTTP serving of the device API.
type Server struct {
	httpServer *http.Server
	devices    DeviceService
	logger     zerolog.Logger
	pushEvery  time.Duration
}

// New creates a configured HTTP server for the monitor.
func New(addr string, devices DeviceService, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second},
		devices:    devices,
		logger:     logger,
		pushEvery:  streamKeepAlive,
	}
	s.registerRoutes(mux)
	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run blocks and serves HTTP traffic.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/devices", s.handleListDevices)
	mux.HandleFunc("POST /api/devices", s.handleAddDevice)
	mux.HandleFunc("DELETE /api/devices/{id}", s.handleRemoveDevice)
	mux.HandleFunc("POST /api/devices/{id}/ping", s.handlePingOne)
	mux.HandleFunc("GET /api/devices/ws", s.handleDevicesWS)
	mux.HandleFunc("POST /api/ping", s.handlePingAll)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/schedule", s.handleGetSchedule)
	mux.HandleFunc("PUT /api/schedule", s.handleUpdateSchedule)
}

type addDeviceRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type scheduleRequest struct {
	Enabled         *bool `json:"enabled"`
	IntervalSeconds *int  `json:"interval_seconds"`
	StaggerSeconds  *int  `json:"stagger_seconds"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.devices.ListDevices())
}

func (s *Server) handleAddDevice(w http.ResponseWriter, r *http.Request) {
	var req addDeviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	device, err := s.devices.AddDevice(req.Name, req.Address)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, device)
}

func (s *Server) handleRemoveDevice(w http.ResponseWriter, r *http.Request) {
	s.devices.RemoveDevice(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePingOne(w http.ResponseWriter, r *http.Request) {
	if err := s.devices.PingOne(r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handlePingAll(w http.ResponseWriter, _ *http.Request) {
	if err := s.devices.PingAll(); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.devices.Counts())
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.devices.Schedule())
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IntervalSeconds != nil {
		if err := s.devices.SetInterval(*req.IntervalSeconds); err != nil {
			s.writeError(w, err)
			return
		}
	}
	if req.StaggerSeconds != nil {
		if err := s.devices.SetStaggerDelay(*req.StaggerSeconds); err != nil {
			s.writeError(w, err)
			return
		}
	}
	if req.Enabled != nil {
		s.devices.SetAutoPing(*req.Enabled)
	}
	writeJSON(w, http.StatusOK, s.devices.Schedule())
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *registry.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Reason, Field: verr.Field})
	case errors.Is(err, monitor.ErrDeviceNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, monitor.ErrProbeInFlight), errors.Is(err, monitor.ErrAutoPingActive):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		s.logger.Error().Err(err).Msg("Request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
