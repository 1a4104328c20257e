package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/lehigh-university-libraries/biocapture/internal/artifact"
	"github.com/lehigh-university-libraries/biocapture/internal/capture"
	"github.com/lehigh-university-libraries/biocapture/internal/export"
	"github.com/lehigh-university-libraries/biocapture/internal/notify"
	"github.com/lehigh-university-libraries/biocapture/internal/storage"
	"github.com/lehigh-university-libraries/biocapture/internal/workspace"
)

type Handler struct {
	controller    *capture.Controller
	workspace     *workspace.Workspace
	notifications *notify.Recorder
	staticDir     string
}

func New(controller *capture.Controller, ws *workspace.Workspace, notifications *notify.Recorder, staticDir string) *Handler {
	if notifications == nil {
		notifications = notify.NewRecorder(0)
	}
	return &Handler{
		controller:    controller,
		workspace:     ws,
		notifications: notifications,
		staticDir:     staticDir,
	}
}

// Router wires every API route
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger)

	r.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	}).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/steps", h.HandleSteps).Methods("GET")
	api.HandleFunc("/devices", h.HandleDevices).Methods("GET")

	api.HandleFunc("/capture", h.HandleSnapshot).Methods("GET")
	api.HandleFunc("/capture/start", h.HandleStart).Methods("POST")
	api.HandleFunc("/capture/frame", h.HandleFrame).Methods("POST")
	api.HandleFunc("/capture/upload", h.HandleUpload).Methods("POST")
	api.HandleFunc("/capture/accept", h.HandleAccept).Methods("POST")
	api.HandleFunc("/capture/recapture", h.HandleRecapture).Methods("POST")
	api.HandleFunc("/capture/save", h.HandleSave).Methods("POST")
	api.HandleFunc("/capture/discard", h.HandleDiscard).Methods("POST")

	api.HandleFunc("/sessions", h.HandleListSessions).Methods("GET")
	api.HandleFunc("/sessions", h.HandleSelectSession).Methods("POST")
	api.HandleFunc("/sessions/save", h.HandleSaveSession).Methods("POST")
	api.HandleFunc("/sessions/leave", h.HandleLeaveSession).Methods("POST")
	api.HandleFunc("/sessions/{name}", h.HandleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{name}", h.HandleRenameSession).Methods("PUT")
	api.HandleFunc("/sessions/{name}", h.HandleDeleteSession).Methods("DELETE")

	api.HandleFunc("/export/{format}", h.HandleExport).Methods("GET")
	api.HandleFunc("/report", h.HandleReport).Methods("GET")
	api.HandleFunc("/notifications", h.HandleNotifications).Methods("GET")

	r.PathPrefix("/").HandlerFunc(h.HandleStatic).Methods("GET")
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("Request handled", "method", r.Method, "path", r.URL.Path, "request_id", id, "duration", time.Since(start))
	})
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message)
	} else {
		slog.Debug(message, "status", code)
	}
	http.Error(w, message, code)
}

// writeErr maps domain errors onto HTTP status codes
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	h.writeError(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	var herr *httpError
	if errors.As(err, &herr) {
		return herr.code
	}
	switch {
	case errors.Is(err, storage.ErrQuotaExceeded):
		return http.StatusInsufficientStorage
	case errors.Is(err, capture.ErrInvalidState),
		errors.Is(err, capture.ErrNoArtifact),
		errors.Is(err, capture.ErrFeedbackPending),
		errors.Is(err, capture.ErrNotReady),
		errors.Is(err, capture.ErrClosed),
		errors.Is(err, capture.ErrNoActiveSession),
		errors.Is(err, capture.ErrCameraUnavailable),
		errors.Is(err, capture.ErrWrongDevice),
		errors.Is(err, workspace.ErrNoActiveSession),
		errors.Is(err, workspace.ErrNameTaken):
		return http.StatusConflict
	case errors.Is(err, workspace.ErrNotFound),
		errors.Is(err, export.ErrNothingToExport):
		return http.StatusNotFound
	case errors.Is(err, workspace.ErrInvalidName),
		errors.Is(err, capture.ErrEmptyArtifact),
		errors.Is(err, artifact.ErrInvalidDataURI),
		errors.Is(err, artifact.ErrTooLarge),
		errors.Is(err, artifact.ErrUnreadableImage):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
