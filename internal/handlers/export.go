package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/lehigh-university-libraries/biocapture/internal/export"
	"github.com/lehigh-university-libraries/biocapture/internal/models"
	"github.com/lehigh-university-libraries/biocapture/internal/notify"
	"github.com/lehigh-university-libraries/biocapture/internal/report"
)

// sessionRecords resolves ?session=, falling back to the active session
func (h *Handler) sessionRecords(r *http.Request) (string, []models.CapturedDataSet) {
	name := r.URL.Query().Get("session")
	if name == "" {
		name = h.workspace.Active()
	}
	if name == "" {
		return "", nil
	}
	records, _ := h.workspace.Get(name)
	return name, records
}

func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(mux.Vars(r)["format"])
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	session, records := h.sessionRecords(r)
	data, err := export.Render(records, format)
	if err != nil {
		if errors.Is(err, export.ErrNothingToExport) {
			notify.Error(h.notifications, "No Data to Export", "There is no data in the current session to export.")
		}
		h.writeErr(w, err)
		return
	}

	filename := export.FileName(session, format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		slog.Error("Unable to write export", "format", format, "err", err)
		return
	}
	slog.Info("Export downloaded", "session", session, "format", format, "records", len(records))
}

func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	session, records := h.sessionRecords(r)
	h.writeJSON(w, report.Aggregate(session, records, h.controller.Steps()))
}

func (h *Handler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.notifications.Recent())
}
