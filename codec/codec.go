// Package codec decodes arbitrary product photos and encodes the pipeline's
// canonical PNG artifacts.  JPEG, PNG, and WebP inputs are supported.
package codec

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/webp"

	"github.com/prodimg/studio/core"
	apperrors "github.com/prodimg/studio/errors"
	"github.com/prodimg/studio/utils"
)

// Decode interprets raw image bytes and returns the pixel buffer converted
// to NRGBA together with the detected source format.
func Decode(data []byte) (*image.NRGBA, core.Format, error) {
	if len(data) == 0 {
		return nil, core.FormatUnknown, apperrors.New(apperrors.CategoryDecode, "codec.decode", apperrors.ErrEmptyInput)
	}

	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, core.FormatUnknown, apperrors.New(apperrors.CategoryDecode, "codec.decode",
			fmt.Errorf("%w: %v", apperrors.ErrUnsupportedFormat, err))
	}

	format := core.Format(utils.DetectFormat(data))
	if format == core.FormatUnknown {
		format = core.Format(name)
	}

	if nrgba, ok := img.(*image.NRGBA); ok {
		return nrgba, format, nil
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	// Per-pixel copy through the color model keeps non-premultiplied alpha.
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x-b.Min.X, y-b.Min.Y, img.At(x, y))
		}
	}
	return dst, format, nil
}

// EncodePNG serialises img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "codec.encode_png", err)
	}
	return buf.Bytes(), nil
}

// NewArtifact PNG-encodes img and wraps it in a ready-to-pass Artifact.
func NewArtifact(img *image.NRGBA) (*core.Artifact, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &core.Artifact{
		Data:   data,
		Format: core.FormatPNG,
		Image:  img,
		Meta: core.Metadata{
			Width:     b.Dx(),
			Height:    b.Dy(),
			HasAlpha:  true,
			SizeBytes: int64(len(data)),
		},
	}, nil
}
