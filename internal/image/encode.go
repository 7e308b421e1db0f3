package imagepkg

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Export flattens all layers of c and encodes the canvas as PNG.
// Identical layer stacks always produce identical bytes.
func Export(c *Composite) ([]byte, error) {
	return Encode(c.Image())
}

// Encode serializes img as PNG.
func Encode(img image.Image) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
