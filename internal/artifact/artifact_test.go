package artifact

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDataURIRoundTrip(t *testing.T) {
	payload := []byte{0x00, 0x01, 0xfe, 0xff}
	uri := EncodeDataURI("application/x-wsq", payload)

	mimeType, data, err := DecodeDataURI(uri)
	if err != nil {
		t.Fatalf("DecodeDataURI returned error: %v", err)
	}
	if mimeType != "application/x-wsq" {
		t.Errorf("Expected MIME application/x-wsq, got %s", mimeType)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("Payload mismatch: %v", data)
	}
}

func TestDecodeDataURIErrors(t *testing.T) {
	tests := []struct {
		name string
		uri  string
	}{
		{"no prefix", "image/png;base64,AAAA"},
		{"no comma", "data:image/png;base64"},
		{"not base64", "data:text/plain,hello"},
		{"bad payload", "data:image/png;base64,***"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := DecodeDataURI(tt.uri); !errors.Is(err, ErrInvalidDataURI) {
				t.Errorf("Expected ErrInvalidDataURI, got %v", err)
			}
		})
	}
}

func TestNewFileDetectsBinary(t *testing.T) {
	img, err := NewFile("finger.png", pngBytes(t, 4, 3))
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if img.IsBinary() {
		t.Errorf("PNG should not be binary, MIME %s", img.MIMEType)
	}

	bin, err := NewFile("scan.wsq", []byte{0xff, 0xa0, 0x00, 0x13, 0x37})
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if !bin.IsBinary() {
		t.Errorf("WSQ payload should be binary, MIME %s", bin.MIMEType)
	}
}

func TestNewFileTooLarge(t *testing.T) {
	if _, err := NewFile("big.bin", make([]byte, MaxUploadBytes)); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Expected ErrTooLarge, got %v", err)
	}
}

func TestLoadFileAndDimensions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thumb.png")
	if err := os.WriteFile(path, pngBytes(t, 12, 7), 0644); err != nil {
		t.Fatal(err)
	}

	f, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if f.Name != "thumb.png" || f.MIMEType != "image/png" {
		t.Errorf("Unexpected file %s (%s)", f.Name, f.MIMEType)
	}

	w, h, err := Dimensions(f.Data)
	if err != nil {
		t.Fatalf("Dimensions: %v", err)
	}
	if w != 12 || h != 7 {
		t.Errorf("Expected 12x7, got %dx%d", w, h)
	}
}

func TestDimensions(t *testing.T) {
	var bmpData bytes.Buffer
	if err := bmp.Encode(&bmpData, image.NewRGBA(image.Rect(0, 0, 9, 5))); err != nil {
		t.Fatalf("encode bmp: %v", err)
	}

	tests := []struct {
		name    string
		data    []byte
		w, h    int
		wantErr bool
	}{
		{"png", pngBytes(t, 3, 4), 3, 4, false},
		{"bmp", bmpData.Bytes(), 9, 5, false},
		{"truncated png", []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}, 0, 0, true},
		{"not an image", []byte("hello"), 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, err := Dimensions(tt.data)
			if tt.wantErr {
				if !errors.Is(err, ErrUnreadableImage) {
					t.Errorf("Expected ErrUnreadableImage, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Dimensions: %v", err)
			}
			if w != tt.w || h != tt.h {
				t.Errorf("Expected %dx%d, got %dx%d", tt.w, tt.h, w, h)
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoadURL(t *testing.T) {
	data := pngBytes(t, 2, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	f, err := LoadURL(srv.URL + "/images/index.png?size=large")
	if err != nil {
		t.Fatalf("LoadURL: %v", err)
	}
	if f.Name != "index.png" || !bytes.Equal(f.Data, data) {
		t.Errorf("Unexpected download %s (%d bytes)", f.Name, len(f.Data))
	}

	if _, err := LoadURL(srv.URL + "/missing.png"); err == nil {
		t.Error("Expected error for 404")
	}
}
