package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/webp"
)

// ErrInvalidImage is returned when bytes cannot be decoded as any supported
// image container. It signals a caller mistake, not a server fault.
var ErrInvalidImage = errors.New("imaging: invalid image data")

// Normalize decodes arbitrary image bytes and re-encodes them as an opaque
// RGB PNG ready for upload to the provider. Transparency is flattened against
// a white background using the alpha channel as blend weight, and any other
// color mode (grayscale, palette, YCbCr) is converted in the same pass.
// Normalizing an already-opaque RGB image is idempotent.
func Normalize(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	bounds := src.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(canvas, canvas.Bounds(), src, bounds.Min, draw.Over)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("imaging: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
