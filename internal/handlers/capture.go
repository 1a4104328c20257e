package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/biocapture/internal/artifact"
	"github.com/lehigh-university-libraries/biocapture/internal/capture"
)

func (h *Handler) HandleSteps(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.controller.Steps())
}

func (h *Handler) HandleDevices(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.controller.Devices())
}

func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.controller.Snapshot())
}

func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	if _, err := h.controller.StartCapture(); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, h.controller.Snapshot())
}

func (h *Handler) HandleFrame(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.CaptureFrame(r.Context()); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, h.controller.Snapshot())
}

// HandleUpload accepts a multipart file, or JSON carrying either a data URI
// or an image URL to fetch.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	var err error
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		err = h.handleJSONUpload(r)
	} else {
		err = h.handleFileUpload(r)
	}
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, h.controller.Snapshot())
}

type uploadRequest struct {
	DataURI  string `json:"dataUri"`
	FileName string `json:"fileName"`
	ImageURL string `json:"image_url"`
}

func (h *Handler) handleJSONUpload(r *http.Request) error {
	var request uploadRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 2*artifact.MaxUploadBytes)).Decode(&request); err != nil {
		return badRequest("Invalid JSON: " + err.Error())
	}

	switch {
	case request.ImageURL != "":
		f, err := artifact.LoadURL(request.ImageURL)
		if err != nil {
			return badRequest("Failed to process image URL: " + err.Error())
		}
		return h.controller.SubmitFile(f.Name, f.Data)
	case request.DataURI != "":
		mimeType, _, err := artifact.DecodeDataURI(request.DataURI)
		if err != nil {
			return err
		}
		step, err := h.controller.CurrentStep()
		if err != nil {
			return err
		}
		return h.controller.SubmitArtifact(capture.Artifact{
			DataURI:  request.DataURI,
			Device:   step.Device,
			Binary:   !artifact.IsImageMIME(mimeType),
			FileName: request.FileName,
		})
	}
	return badRequest("dataUri or image_url is required")
}

func (h *Handler) handleFileUpload(r *http.Request) error {
	file, header, err := r.FormFile("file")
	if err != nil {
		return badRequest("Failed to read file: " + err.Error())
	}
	defer file.Close()

	data, err := artifact.ReadLimited(file)
	if err != nil {
		return err
	}
	return h.controller.SubmitFile(header.Filename, data)
}

func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	if _, err := h.controller.AcceptArtifact(); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, h.controller.Snapshot())
}

func (h *Handler) HandleRecapture(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Recapture(); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, h.controller.Snapshot())
}

func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	rec, err := h.controller.SaveRecord(r.Context())
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, map[string]any{
		"record":   rec,
		"session":  h.workspace.Active(),
		"snapshot": h.controller.Snapshot(),
	})
}

func (h *Handler) HandleDiscard(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.DiscardRecord(); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, h.controller.Snapshot())
}
