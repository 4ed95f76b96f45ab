// Package server exposes a tuner session over HTTP so a browser front end
// can drive it.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/0xlemi/tunepitch/internal/audio"
	"github.com/0xlemi/tunepitch/internal/tuner"
)

// LatestDisplay is a DisplaySink that keeps only the newest display
type LatestDisplay struct {
	mu sync.RWMutex
	d  tuner.Display
}

func (l *LatestDisplay) Show(d tuner.Display) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.d = d
}

// Get returns the newest display
func (l *LatestDisplay) Get() tuner.Display {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.d
}

// Server serves the tuner API
type Server struct {
	session *tuner.Session
	latest  *LatestDisplay
	logger  *slog.Logger
	handler http.Handler
}

type stateResponse struct {
	State     string  `json:"state"`
	Session   string  `json:"session,omitempty"`
	Reference float64 `json:"reference"`
}

type readingResponse struct {
	Signal    bool    `json:"signal"`
	Note      string  `json:"note,omitempty"`
	Octave    int     `json:"octave"`
	MIDI      int     `json:"midi"`
	Cents     int     `json:"cents"`
	Frequency float64 `json:"frequency"`
	Needle    float64 `json:"needle"`
}

type referenceBody struct {
	A4 float64 `json:"a4"`
}

type calibrateResponse struct {
	A4      float64 `json:"a4"`
	Changed bool    `json:"changed"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New builds the API around session. latest must be the sink the session
// reports to.
func New(session *tuner.Session, latest *LatestDisplay, allowedOrigins []string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		session: session,
		latest:  latest,
		logger:  logger.With("component", "server"),
	}

	router := mux.NewRouter().StrictSlash(true)
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/reading", s.handleReading).Methods(http.MethodGet)
	api.HandleFunc("/reference", s.handleGetReference).Methods(http.MethodGet)
	api.HandleFunc("/reference", s.handleSetReference).Methods(http.MethodPut)
	api.HandleFunc("/calibrate", s.handleCalibrate).Methods(http.MethodPost)
	api.HandleFunc("/start", s.handleStart).Methods(http.MethodPost)
	api.HandleFunc("/stop", s.handleStop).Methods(http.MethodPost)

	s.handler = cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(router)

	return s
}

// Handler returns the HTTP handler of the API
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is done
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("serving", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Pump runs an analysis cycle every interval while the session listens.
// Unlike tuner.Run it keeps going across stop and start requests.
func (s *Server) Pump(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.session.Cycle(); err != nil && !errors.Is(err, tuner.ErrNotListening) {
				s.logger.Warn("analysis cycle failed", "error", err)
			}
		}
	}
}

func (s *Server) state() stateResponse {
	return stateResponse{
		State:     s.session.State().String(),
		Session:   s.session.ID(),
		Reference: s.session.Reference(),
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleReading(w http.ResponseWriter, r *http.Request) {
	d := s.latest.Get()
	res := readingResponse{Signal: d.Signal}
	if d.Signal {
		res.Note = d.Note.Name
		res.Octave = d.Note.Octave
		res.MIDI = d.Note.MIDI
		res.Cents = d.Note.Cents
		res.Frequency = d.Note.Frequency
		res.Needle = d.Needle
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetReference(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, referenceBody{A4: s.session.Reference()})
}

func (s *Server) handleSetReference(w http.ResponseWriter, r *http.Request) {
	var body referenceBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body: " + err.Error()})
		return
	}

	if err := s.session.SetReference(body.A4); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	s.logger.Info("reference pitch set", "a4", s.session.Reference())
	writeJSON(w, http.StatusOK, referenceBody{A4: s.session.Reference()})
}

func (s *Server) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	a4, changed := s.session.Calibrate()
	writeJSON(w, http.StatusOK, calibrateResponse{A4: a4, Changed: changed})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	err := s.session.Start(r.Context())

	var acqErr *audio.AcquisitionError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, s.state())
	case errors.Is(err, tuner.ErrAlreadyListening), errors.Is(err, tuner.ErrStopped):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.As(err, &acqErr):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Stop(); err != nil {
		s.logger.Warn("stop", "error", err)
	}
	writeJSON(w, http.StatusOK, s.state())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
