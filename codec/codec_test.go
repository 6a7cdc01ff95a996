package codec

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodimg/studio/core"
	apperrors "github.com/prodimg/studio/errors"
)

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 180
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestDecode_JPEG(t *testing.T) {
	img, format, err := Decode(jpegBytes(t, 120, 80))
	require.NoError(t, err)
	assert.Equal(t, core.FormatJPEG, format)
	assert.Equal(t, 120, img.Bounds().Dx())
	assert.Equal(t, 80, img.Bounds().Dy())
}

func TestDecode_RoundTripPNG(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	src.Set(4, 4, color.NRGBA{R: 10, G: 20, B: 30, A: 200})

	art, err := NewArtifact(src)
	require.NoError(t, err)

	img, format, err := Decode(art.Data)
	require.NoError(t, err)
	assert.Equal(t, core.FormatPNG, format)
	assert.Equal(t, src.Pix, img.Pix, "PNG round trip must preserve non-premultiplied alpha")
}

func TestDecode_Garbage(t *testing.T) {
	_, _, err := Decode([]byte("definitely not an image"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnsupportedFormat))
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryDecode))
}

func TestDecode_Empty(t *testing.T) {
	_, _, err := Decode(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrEmptyInput))
}

func TestNewArtifact_Metadata(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 33, 44))
	art, err := NewArtifact(src)
	require.NoError(t, err)

	assert.Equal(t, 33, art.Meta.Width)
	assert.Equal(t, 44, art.Meta.Height)
	assert.True(t, art.Meta.HasAlpha)
	assert.Equal(t, int64(len(art.Data)), art.Meta.SizeBytes)
}
