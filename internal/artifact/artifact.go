package artifact

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxUploadBytes caps a single artifact read from a file, URL or upload
const MaxUploadBytes = 10 * 1024 * 1024

var (
	ErrInvalidDataURI  = errors.New("invalid data URI")
	ErrTooLarge        = errors.New("file too large (max 10MB)")
	ErrUnreadableImage = errors.New("unreadable image")
)

// EncodeDataURI returns data as a base64 data URI with the given MIME type
func EncodeDataURI(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI splits a base64 data URI into its MIME type and payload
func DecodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURI)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload separator", ErrInvalidDataURI)
	}
	mediaType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURI)
	}
	if mediaType == "" {
		mediaType = "text/plain"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	return mediaType, data, nil
}

// DetectMIME sniffs the content type of data, falling back to the file
// extension when sniffing only yields a generic type.
func DetectMIME(filename string, data []byte) string {
	sniffed := http.DetectContentType(data)
	if i := strings.Index(sniffed, ";"); i != -1 {
		sniffed = sniffed[:i]
	}
	if sniffed != "application/octet-stream" && sniffed != "text/plain" {
		return sniffed
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		if i := strings.Index(byExt, ";"); i != -1 {
			byExt = byExt[:i]
		}
		return byExt
	}
	return sniffed
}

// IsImageMIME reports whether a MIME type describes an image
func IsImageMIME(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// File is an artifact payload read from disk, a URL or an upload
type File struct {
	Name     string
	MIMEType string
	Data     []byte
}

// IsBinary reports whether the file is an opaque (non-image) payload
func (f *File) IsBinary() bool {
	return !IsImageMIME(f.MIMEType)
}

// DataURI returns the payload encoded as a data URI
func (f *File) DataURI() string {
	return EncodeDataURI(f.MIMEType, f.Data)
}

// NewFile builds a File from raw bytes, sniffing the MIME type
func NewFile(name string, data []byte) (*File, error) {
	if len(data) >= MaxUploadBytes {
		return nil, ErrTooLarge
	}
	return &File{Name: name, MIMEType: DetectMIME(name, data), Data: data}, nil
}

// ReadLimited reads at most MaxUploadBytes from r
func ReadLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read file contents: %w", err)
	}
	if len(data) >= MaxUploadBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

// LoadFile reads an artifact from disk
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	data, err := ReadLimited(f)
	if err != nil {
		return nil, err
	}
	return NewFile(filepath.Base(path), data)
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

// LoadURL downloads an artifact over HTTP
func LoadURL(url string) (*File, error) {
	resp, err := httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download file: HTTP %d", resp.StatusCode)
	}

	data, err := ReadLimited(resp.Body)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(strings.SplitN(url, "?", 2)[0], "/")
	name := parts[len(parts)-1]
	if name == "" {
		name = "download"
	}
	return NewFile(name, data)
}

// Dimensions returns the pixel size of an encoded image
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	return cfg.Width, cfg.Height, nil
}
