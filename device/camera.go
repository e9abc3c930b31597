// Package device models the camera used for face login and enrollment.
package device

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
)

// Camera errors.
var (
	ErrStreamStopped = errors.New("device: stream stopped")
	ErrDeviceBusy    = errors.New("device: camera in use by another stream")
)

// Track is one media track of a stream. Stopping a track turns the device off.
type Track interface {
	Stop()
	Stopped() bool
}

// Stream is an active camera stream.
type Stream interface {
	// Frame grabs the current frame.
	Frame(ctx context.Context) (image.Image, error)
	Tracks() []Track
}

// Camera grants access to a capture device.
type Camera interface {
	Acquire(ctx context.Context) (Stream, error)
}

// Lease is a scoped hold on a camera stream. Release stops every track of
// the stream exactly once, no matter how often it is called.
type Lease struct {
	stream   Stream
	maxWidth int

	once     sync.Once
	mu       sync.Mutex
	released bool
}

// Acquire opens cam and wraps the stream in a Lease. Captured frames wider
// than maxWidth are scaled down; zero keeps the native size.
func Acquire(ctx context.Context, cam Camera, maxWidth int) (*Lease, error) {
	if cam == nil {
		return nil, errors.New("device: no camera available")
	}

	stream, err := cam.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Lease{stream: stream, maxWidth: maxWidth}, nil
}

// Capture grabs a frame and returns it as a base64 JPEG data URL.
func (l *Lease) Capture(ctx context.Context) (string, error) {
	if l.Released() {
		return "", ErrStreamStopped
	}

	frame, err := l.stream.Frame(ctx)
	if err != nil {
		return "", fmt.Errorf("capture frame: %w", err)
	}

	return EncodeFrame(frame, l.maxWidth)
}

// Release stops all tracks. Safe to call repeatedly.
func (l *Lease) Release() {
	l.once.Do(func() {
		for _, track := range l.stream.Tracks() {
			track.Stop()
		}
		l.mu.Lock()
		l.released = true
		l.mu.Unlock()
	})
}

// Released reports whether Release has run.
func (l *Lease) Released() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.released
}

// EncodeFrame scales img down to maxWidth and encodes it as a JPEG data URL.
func EncodeFrame(img image.Image, maxWidth int) (string, error) {
	if img == nil {
		return "", errors.New("device: empty frame")
	}

	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("encode frame: %w", err)
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
