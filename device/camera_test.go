package device

import (
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame(w, h int) image.Image {
	return imaging.New(w, h, color.NRGBA{R: 200, G: 120, B: 40, A: 255})
}

func TestLease_CaptureAndRelease(t *testing.T) {
	ctx := context.Background()
	cam := NewImageCamera(testFrame(1280, 720))

	lease, err := Acquire(ctx, cam, 640)
	require.NoError(t, err)
	assert.True(t, cam.Active())

	dataURL, err := lease.Capture(ctx)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(dataURL, "data:image/jpeg;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, "data:image/jpeg;base64,"))
	require.NoError(t, err)
	decoded, err := imaging.Decode(strings.NewReader(string(raw)))
	require.NoError(t, err)
	assert.Equal(t, 640, decoded.Bounds().Dx())
	assert.Equal(t, 360, decoded.Bounds().Dy())

	lease.Release()
	lease.Release()
	assert.True(t, lease.Released())
	assert.False(t, cam.Active())

	_, err = lease.Capture(ctx)
	assert.ErrorIs(t, err, ErrStreamStopped)
}

func TestFileCamera_Exclusive(t *testing.T) {
	ctx := context.Background()
	cam := NewImageCamera(testFrame(10, 10))

	first, err := Acquire(ctx, cam, 0)
	require.NoError(t, err)

	_, err = Acquire(ctx, cam, 0)
	assert.ErrorIs(t, err, ErrDeviceBusy)

	first.Release()
	second, err := Acquire(ctx, cam, 0)
	require.NoError(t, err)
	second.Release()
}

func TestFileCamera_FromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "face.png")
	require.NoError(t, imaging.Save(testFrame(64, 48), path))

	lease, err := Acquire(context.Background(), NewFileCamera(path), 0)
	require.NoError(t, err)
	defer lease.Release()

	_, err = lease.Capture(context.Background())
	assert.NoError(t, err)
}

func TestFileCamera_MissingFile(t *testing.T) {
	_, err := Acquire(context.Background(), NewFileCamera(filepath.Join(t.TempDir(), "nope.jpg")), 0)
	assert.Error(t, err)
}

func TestAcquire_NilCamera(t *testing.T) {
	_, err := Acquire(context.Background(), nil, 0)
	assert.Error(t, err)
}

func TestEncodeFrame_KeepsSmallFrames(t *testing.T) {
	dataURL, err := EncodeFrame(testFrame(100, 50), 640)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, "data:image/jpeg;base64,"))
	require.NoError(t, err)
	decoded, err := imaging.Decode(strings.NewReader(string(raw)))
	require.NoError(t, err)
	assert.Equal(t, 100, decoded.Bounds().Dx())
}
