package devices

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/biocapture/internal/artifact"
)

var (
	// ErrPermissionDenied is returned when the camera capability cannot be acquired
	ErrPermissionDenied = errors.New("camera access denied")
	// ErrNoFrame is returned when the camera has nothing to hand over
	ErrNoFrame = errors.New("no frame available")
	// ErrStreamClosed is returned when grabbing from a released stream
	ErrStreamClosed = errors.New("camera stream closed")
)

// Camera acquires a capture stream
type Camera interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream yields still frames until it is closed
type Stream interface {
	Frame(ctx context.Context) (*artifact.File, error)
	Close() error
}

// Scanner reports when the fingerprint scanner is ready
type Scanner interface {
	Ready(ctx context.Context) error
}

// DirCamera reads frames from a drop folder that a tethered phone syncs
// photos into. The newest image file is the current frame.
type DirCamera struct {
	Dir string
}

func NewDirCamera(dir string) *DirCamera {
	return &DirCamera{Dir: dir}
}

func (c *DirCamera) Open(ctx context.Context) (Stream, error) {
	if c.Dir == "" {
		return nil, fmt.Errorf("%w: no camera directory configured", ErrPermissionDenied)
	}
	info, err := os.Stat(c.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrPermissionDenied, c.Dir)
	}
	return &dirStream{dir: c.Dir}, nil
}

type dirStream struct {
	dir    string
	mu     sync.Mutex
	closed bool
}

func (s *dirStream) Frame(ctx context.Context) (*artifact.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStreamClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read camera directory: %w", err)
	}

	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !artifact.IsImageMIME(artifact.DetectMIME(e.Name(), nil)) {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = e.Name()
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return nil, ErrNoFrame
	}

	return artifact.LoadFile(filepath.Join(s.dir, newest))
}

func (s *dirStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// SimulatedScanner becomes ready after a fixed warm-up
type SimulatedScanner struct {
	Warmup time.Duration
}

func NewSimulatedScanner(warmup time.Duration) *SimulatedScanner {
	return &SimulatedScanner{Warmup: warmup}
}

func (s *SimulatedScanner) Ready(ctx context.Context) error {
	if s.Warmup <= 0 {
		return nil
	}
	select {
	case <-time.After(s.Warmup):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
