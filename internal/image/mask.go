package imagepkg

import (
	"image"
	"math"
)

// MaskKind selects how a layer's alpha is clipped before compositing.
type MaskKind uint8

const (
	// MaskNone draws the layer as is.
	MaskNone MaskKind = iota
	// MaskCircle keeps only the circle inscribed in the canvas.
	MaskCircle
)

func (m MaskKind) String() string {
	switch m {
	case MaskNone:
		return "none"
	case MaskCircle:
		return "circle"
	default:
		return "unknown"
	}
}

// ParseMaskKind maps a name back to a MaskKind.
func ParseMaskKind(s string) (MaskKind, bool) {
	switch s {
	case "", "none":
		return MaskNone, true
	case "circle":
		return MaskCircle, true
	default:
		return MaskNone, false
	}
}

// applyCircleMask scales the alpha of every pixel of img by its coverage of
// the circle inscribed in a size x size canvas. img must be canvas-sized and
// anchored at the origin. The edge is anti-aliased over one pixel.
func applyCircleMask(img *image.NRGBA, size int) {
	r := float64(size) / 2
	for y := 0; y < size; y++ {
		dy := float64(y) + 0.5 - r
		row := img.Pix[y*img.Stride : y*img.Stride+size*4]
		for x := 0; x < size; x++ {
			dx := float64(x) + 0.5 - r
			cov := r - math.Sqrt(dx*dx+dy*dy) + 0.5
			if cov >= 1 {
				continue
			}
			a := &row[x*4+3]
			if cov <= 0 {
				*a = 0
				continue
			}
			*a = uint8(math.Round(float64(*a) * cov))
		}
	}
}
