package rembg

import (
	"context"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodimg/studio/codec"
	"github.com/prodimg/studio/core"
	apperrors "github.com/prodimg/studio/errors"
)

func testArtifact(t *testing.T, w, h int) *core.Artifact {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	art, err := codec.NewArtifact(img)
	require.NoError(t, err)
	return art
}

func cutoutPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	// Opaque subject in the middle, transparent fringe.
	for y := h / 4; y < 3*h/4; y++ {
		for x := w / 4; x < 3*w/4; x++ {
			i := y*img.Stride + x*4
			img.Pix[i+3] = 255
		}
	}
	data, err := codec.EncodePNG(img)
	require.NoError(t, err)
	return data
}

func newTestClient(endpoint string, attempts int) *Client {
	return NewClient(Config{
		Endpoint:    endpoint,
		APIKey:      "test-key",
		CanvasSize:  128,
		MaxAttempts: attempts,
		BackoffBase: time.Millisecond,
		Timeout:     time.Second,
	}, nil)
}

func TestRemove_Success(t *testing.T) {
	var gotKey string
	var gotField bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		_, _, err := r.FormFile("image_file")
		gotField = err == nil
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(cutoutPNG(t, 90, 60))
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL, 3).Remove(context.Background(), testArtifact(t, 128, 128))
	require.NoError(t, err)
	assert.Equal(t, "test-key", gotKey)
	assert.True(t, gotField, "request must carry the image_file multipart field")
	assert.Equal(t, 128, out.Meta.Width, "cut-out must be re-fitted to the canvas")
	assert.Equal(t, 128, out.Meta.Height)
	assert.Equal(t, core.FormatPNG, out.Format)
}

func TestRemove_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(cutoutPNG(t, 64, 64))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 3).Remove(context.Background(), testArtifact(t, 128, 128))
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestRemove_ExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 3).Remove(context.Background(), testArtifact(t, 128, 128))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrRetriesExhausted))
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryService))
	assert.EqualValues(t, 3, calls.Load(), "each attempt must hit the service exactly once")
}

func TestRemove_MissingAPIKey(t *testing.T) {
	client := NewClient(Config{Endpoint: "http://unused", CanvasSize: 128}, nil)

	_, err := client.Remove(context.Background(), testArtifact(t, 64, 64))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMissingAPIKey))
}

func TestRemove_ContextCancelled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := newTestClient(srv.URL, 3).Remove(ctx, testArtifact(t, 64, 64))
	require.Error(t, err)
}
