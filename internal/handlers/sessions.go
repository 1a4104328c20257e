package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

type sessionSummary struct {
	Name    string `json:"name"`
	Records int    `json:"records"`
	Active  bool   `json:"active"`
}

func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	counts := h.workspace.Counts()
	active := h.workspace.Active()
	names := h.workspace.Names()

	list := make([]sessionSummary, 0, len(names))
	for _, name := range names {
		list = append(list, sessionSummary{Name: name, Records: counts[name], Active: name == active})
	}
	h.writeJSON(w, list)
}

// HandleSelectSession activates a session, creating it on first use
func (h *Handler) HandleSelectSession(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.workspace.Select(request.Name); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, map[string]any{
		"name":    h.workspace.Active(),
		"records": h.workspace.Records(),
	})
}

func (h *Handler) HandleSaveSession(w http.ResponseWriter, r *http.Request) {
	if err := h.workspace.Save(r.Context()); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, map[string]string{"name": h.workspace.Active()})
}

// HandleLeaveSession deactivates the session and abandons any capture in progress
func (h *Handler) HandleLeaveSession(w http.ResponseWriter, r *http.Request) {
	h.workspace.Leave()
	h.controller.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	records, ok := h.workspace.Get(name)
	if !ok {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, map[string]any{
		"name":    name,
		"active":  name == h.workspace.Active(),
		"records": records,
	})
}

func (h *Handler) HandleRenameSession(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var request struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.workspace.Rename(r.Context(), name, request.Name); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, map[string]string{"name": request.Name})
}

func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	wasActive := name == h.workspace.Active()
	if err := h.workspace.Delete(r.Context(), name); err != nil {
		h.writeErr(w, err)
		return
	}
	if wasActive {
		h.controller.Reset()
	}
	w.WriteHeader(http.StatusNoContent)
}
