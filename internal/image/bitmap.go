package imagepkg

import (
	"image"

	"github.com/disintegration/imaging"
)

// Bitmap is a decoded image. Its pixels are never modified after construction;
// transformations produce new images.
type Bitmap struct {
	img *image.NRGBA
}

// NewBitmap copies img into a Bitmap. A nil image yields the zero Bitmap.
func NewBitmap(img image.Image) Bitmap {
	if img == nil {
		return Bitmap{}
	}
	return Bitmap{img: imaging.Clone(img)}
}

func (b Bitmap) Width() int {
	if b.img == nil {
		return 0
	}
	return b.img.Bounds().Dx()
}

func (b Bitmap) Height() int {
	if b.img == nil {
		return 0
	}
	return b.img.Bounds().Dy()
}

// MaxDimension returns the longest side in pixels.
func (b Bitmap) MaxDimension() int {
	return max(b.Width(), b.Height())
}

// Empty reports whether the bitmap has no pixels.
func (b Bitmap) Empty() bool {
	return b.Width() <= 0 || b.Height() <= 0
}

// Image exposes the pixels for reading. Callers must not modify the result.
func (b Bitmap) Image() image.Image {
	if b.img == nil {
		return image.NewNRGBA(image.Rectangle{})
	}
	return b.img
}
