package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/biocapture/internal/capture"
	"github.com/lehigh-university-libraries/biocapture/internal/notify"
	"github.com/lehigh-university-libraries/biocapture/internal/storage"
	"github.com/lehigh-university-libraries/biocapture/internal/workspace"
)

const pngURI = "data:image/png;base64,iVBORw0KGgo="

type testServer struct {
	t       *testing.T
	handler http.Handler
	ws      *workspace.Workspace
	rec     *notify.Recorder
}

func newTestServer(t *testing.T, quota int64, staticDir string) *testServer {
	t.Helper()
	rec := notify.NewRecorder(0)
	ws := workspace.New(storage.NewMemory(quota), rec)
	c := capture.New(capture.Options{Sink: ws, Notifier: rec})
	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return &testServer{t: t, handler: New(c, ws, rec, staticDir).Router(), ws: ws, rec: rec}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			s.t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) expect(method, path string, body any, code int) *httptest.ResponseRecorder {
	s.t.Helper()
	rr := s.do(method, path, body)
	if rr.Code != code {
		s.t.Fatalf("%s %s: expected %d, got %d: %s", method, path, code, rr.Code, rr.Body.String())
	}
	return rr
}

func (s *testServer) captureAll() {
	s.t.Helper()
	s.expect("POST", "/api/capture/start", nil, http.StatusOK)
	for i := 0; i < 4; i++ {
		s.expect("POST", "/api/capture/upload", map[string]string{"dataUri": pngURI}, http.StatusOK)
		s.expect("POST", "/api/capture/accept", nil, http.StatusOK)
	}
}

func TestHealthcheck(t *testing.T) {
	s := newTestServer(t, 0, "")
	rr := s.expect("GET", "/healthcheck", nil, http.StatusOK)
	if rr.Body.String() != "OK" {
		t.Errorf("Unexpected body %q", rr.Body.String())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("Expected a request id header")
	}
}

func TestCaptureSaveAndExport(t *testing.T) {
	s := newTestServer(t, 0, "")
	s.expect("POST", "/api/sessions", map[string]string{"name": "clinic"}, http.StatusOK)
	s.captureAll()

	var snap capture.Snapshot
	if err := json.Unmarshal(s.expect("GET", "/api/capture", nil, http.StatusOK).Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Status != capture.StatusValidating || len(snap.Record.Images) != 4 {
		t.Fatalf("Unexpected snapshot %+v", snap)
	}

	s.expect("POST", "/api/capture/save", nil, http.StatusOK)
	if got := s.ws.Counts()["clinic"]; got != 1 {
		t.Fatalf("Expected 1 saved record, got %d", got)
	}

	rr := s.expect("GET", "/api/export/csv", nil, http.StatusOK)
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "clinic.csv") {
		t.Errorf("Unexpected Content-Disposition %q", cd)
	}
	lines, err := csv.NewReader(rr.Body).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 5 {
		t.Errorf("Expected header + 4 rows, got %d", len(lines))
	}

	var summary struct {
		TotalRecords int `json:"totalRecords"`
		TotalImages  int `json:"totalImages"`
	}
	if err := json.Unmarshal(s.expect("GET", "/api/report", nil, http.StatusOK).Body.Bytes(), &summary); err != nil {
		t.Fatal(err)
	}
	if summary.TotalRecords != 1 || summary.TotalImages != 4 {
		t.Errorf("Unexpected report %+v", summary)
	}
}

func TestStatusMapping(t *testing.T) {
	s := newTestServer(t, 0, "")

	s.expect("POST", "/api/capture/accept", nil, http.StatusConflict)
	s.expect("POST", "/api/capture/start", nil, http.StatusOK)
	s.expect("POST", "/api/capture/accept", nil, http.StatusConflict)
	s.expect("POST", "/api/capture/upload", map[string]string{"dataUri": "not-a-uri"}, http.StatusBadRequest)
	s.expect("POST", "/api/capture/upload", map[string]string{}, http.StatusBadRequest)
	s.expect("POST", "/api/sessions", map[string]string{"name": "  "}, http.StatusBadRequest)
	s.expect("GET", "/api/sessions/nope", nil, http.StatusNotFound)
	s.expect("GET", "/api/export/xlsx", nil, http.StatusBadRequest)
	s.expect("DELETE", "/api/capture/start", nil, http.StatusMethodNotAllowed)
}

func TestSaveWithoutSessionConflicts(t *testing.T) {
	s := newTestServer(t, 0, "")
	s.captureAll()
	s.expect("POST", "/api/capture/save", nil, http.StatusConflict)
}

func TestQuotaExceeded(t *testing.T) {
	s := newTestServer(t, 100, "")
	s.expect("POST", "/api/sessions", map[string]string{"name": "tiny"}, http.StatusOK)
	s.captureAll()
	s.expect("POST", "/api/capture/save", nil, http.StatusInsufficientStorage)

	var found bool
	for _, n := range s.rec.Recent() {
		if n.Title == "Save Error" && strings.Contains(n.Description, "quota") {
			found = true
		}
	}
	if !found {
		t.Error("Expected quota Save Error notification")
	}
}

func TestExportWithoutData(t *testing.T) {
	s := newTestServer(t, 0, "")
	s.expect("GET", "/api/export/sql", nil, http.StatusNotFound)

	var notes []notify.Notification
	if err := json.Unmarshal(s.expect("GET", "/api/notifications", nil, http.StatusOK).Body.Bytes(), &notes); err != nil {
		t.Fatal(err)
	}
	if len(notes) == 0 || notes[len(notes)-1].Title != "No Data to Export" {
		t.Errorf("Unexpected notifications %+v", notes)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, 0, "")
	s.expect("POST", "/api/sessions", map[string]string{"name": "first"}, http.StatusOK)
	s.expect("POST", "/api/sessions/save", nil, http.StatusOK)
	s.expect("POST", "/api/sessions", map[string]string{"name": "second"}, http.StatusOK)

	var list []sessionSummary
	if err := json.Unmarshal(s.expect("GET", "/api/sessions", nil, http.StatusOK).Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Name != "first" || !list[1].Active {
		t.Errorf("Unexpected session list %+v", list)
	}

	s.expect("PUT", "/api/sessions/first", map[string]string{"name": "second"}, http.StatusConflict)
	s.expect("PUT", "/api/sessions/first", map[string]string{"name": "renamed"}, http.StatusOK)
	s.expect("GET", "/api/sessions/renamed", nil, http.StatusOK)
	s.expect("DELETE", "/api/sessions/renamed", nil, http.StatusNoContent)
	s.expect("DELETE", "/api/sessions/renamed", nil, http.StatusNoContent)
	s.expect("POST", "/api/sessions/leave", nil, http.StatusNoContent)
	if s.ws.Active() != "" {
		t.Errorf("Expected no active session, got %q", s.ws.Active())
	}
}

func TestMultipartUpload(t *testing.T) {
	s := newTestServer(t, 0, "")
	s.expect("POST", "/api/capture/start", nil, http.StatusOK)

	var img bytes.Buffer
	if err := png.Encode(&img, image.NewGray(image.Rect(0, 0, 3, 3))); err != nil {
		t.Fatal(err)
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "index.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(img.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("POST", "/api/capture/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var snap capture.Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.CurrentImage == nil || snap.CurrentImage.FileName != "index.png" || snap.CurrentImage.IsBinary {
		t.Errorf("Unexpected uploaded artifact %+v", snap.CurrentImage)
	}
}

func TestStatic(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>biocapture</h1>"), 0644); err != nil {
		t.Fatal(err)
	}
	s := newTestServer(t, 0, dir)

	rr := s.expect("GET", "/", nil, http.StatusOK)
	if !strings.Contains(rr.Body.String(), "biocapture") {
		t.Errorf("Unexpected index body %q", rr.Body.String())
	}
	s.expect("GET", "/missing.js", nil, http.StatusNotFound)
}
