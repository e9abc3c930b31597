package device

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/disintegration/imaging"
)

// FileCamera serves frames from still images. It stands in for a webcam on
// headless hosts and in tests. Only one stream may be open at a time.
type FileCamera struct {
	mu     sync.Mutex
	frames []image.Image
	paths  []string
	active *fileStream
}

// NewFileCamera creates a camera that cycles through the images at paths.
// Files are decoded on Acquire, so a missing file surfaces as an
// unavailable device.
func NewFileCamera(paths ...string) *FileCamera {
	return &FileCamera{paths: paths}
}

// NewImageCamera creates a camera serving in-memory frames.
func NewImageCamera(frames ...image.Image) *FileCamera {
	return &FileCamera{frames: frames}
}

// Acquire implements Camera.
func (c *FileCamera) Acquire(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil && !c.active.track.Stopped() {
		return nil, ErrDeviceBusy
	}

	frames := c.frames
	if len(frames) == 0 {
		for _, p := range c.paths {
			img, err := imaging.Open(p, imaging.AutoOrientation(true))
			if err != nil {
				return nil, fmt.Errorf("open frame %s: %w", p, err)
			}
			frames = append(frames, img)
		}
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("device: no frames configured")
	}

	c.active = &fileStream{frames: frames, track: &videoTrack{}}
	return c.active, nil
}

// Active reports whether a stream is currently open.
func (c *FileCamera) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil && !c.active.track.Stopped()
}

type fileStream struct {
	frames []image.Image
	next   atomic.Int64
	track  *videoTrack
}

func (s *fileStream) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.track.Stopped() {
		return nil, ErrStreamStopped
	}
	i := s.next.Add(1) - 1
	return s.frames[int(i)%len(s.frames)], nil
}

func (s *fileStream) Tracks() []Track {
	return []Track{s.track}
}

type videoTrack struct {
	stopped atomic.Bool
}

func (t *videoTrack) Stop()         { t.stopped.Store(true) }
func (t *videoTrack) Stopped() bool { return t.stopped.Load() }
