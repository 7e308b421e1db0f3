package imagepkg

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/disintegration/imaging"

	apperrors "github.com/youruser/tokenizer/internal/errors"
)

// Layer is one image contribution to a Composite.
type Layer struct {
	Bitmap Bitmap
	Mask   MaskKind
	ZIndex int
	// Rect is where the fitted bitmap lands on the canvas.
	Rect image.Rectangle

	// prepared holds the fitted (and masked) pixels, drawn at origin.
	prepared *image.NRGBA
	origin   image.Point
}

// CompositeOption configures a Composite.
type CompositeOption func(*Composite)

// WithBackground fills the canvas with c before any layer is drawn.
func WithBackground(c color.NRGBA) CompositeOption {
	return func(cp *Composite) {
		cp.background = c
	}
}

// Composite is a fixed-size square canvas with an ordered stack of layers.
// Later layers are drawn on top of earlier ones.
type Composite struct {
	mu         sync.RWMutex
	size       int
	background color.NRGBA
	layers     []Layer
	rendered   *image.NRGBA
}

// NewComposite creates an empty composite of size x size pixels.
func NewComposite(size int, opts ...CompositeOption) (*Composite, error) {
	if size <= 0 {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("canvas size must be positive, got %d", size))
	}
	c := &Composite{size: size}
	for _, opt := range opts {
		opt(c)
	}
	c.rendered = c.render(nil)
	return c, nil
}

// Size returns the canvas side length.
func (c *Composite) Size() int {
	return c.size
}

// Len returns the number of layers.
func (c *Composite) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.layers)
}

// Layers returns a copy of the layer stack in render order.
func (c *Composite) Layers() []Layer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Layer, len(c.layers))
	copy(out, c.layers)
	return out
}

// AddLayer fits b to the canvas, applies mask and puts it on top of the stack.
// An empty bitmap or unknown mask is rejected and the stack is left as it was.
func (c *Composite) AddLayer(b Bitmap, mask MaskKind) error {
	if b.Empty() {
		return apperrors.New(apperrors.CodeInvalidLayer, fmt.Sprintf("layer has invalid dimensions %dx%d", b.Width(), b.Height()))
	}
	if mask != MaskNone && mask != MaskCircle {
		return apperrors.New(apperrors.CodeInvalidLayer, fmt.Sprintf("unknown mask %d", mask))
	}
	layer := prepareLayer(b, mask, c.size)

	c.mu.Lock()
	defer c.mu.Unlock()
	layer.ZIndex = len(c.layers)
	layers := append(c.layers[:len(c.layers):len(c.layers)], layer)
	c.rendered = c.render(layers)
	c.layers = layers
	return nil
}

// Render draws all layers in insertion order onto a fresh canvas.
func (c *Composite) Render() *image.NRGBA {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.render(c.layers)
}

// Image returns a copy of the canvas as of the last AddLayer.
func (c *Composite) Image() *image.NRGBA {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return imaging.Clone(c.rendered)
}

// Bitmap returns the current canvas as a Bitmap, for reuse as a layer elsewhere.
func (c *Composite) Bitmap() Bitmap {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return NewBitmap(c.rendered)
}

// Export flattens the composite and encodes it as PNG.
func (c *Composite) Export() ([]byte, error) {
	return Export(c)
}

func (c *Composite) render(layers []Layer) *image.NRGBA {
	canvas := imaging.New(c.size, c.size, c.background)
	for _, l := range layers {
		over(canvas, l.prepared, l.origin)
	}
	return canvas
}

// fitRect returns the largest rectangle with the aspect ratio of w x h whose
// longest side equals size, centered in a size x size square.
func fitRect(w, h, size int) image.Rectangle {
	fw, fh := size, size
	if w > h {
		fh = max(1, int(math.Round(float64(h)*float64(size)/float64(w))))
	} else if h > w {
		fw = max(1, int(math.Round(float64(w)*float64(size)/float64(h))))
	}
	x0 := (size - fw) / 2
	y0 := (size - fh) / 2
	return image.Rect(x0, y0, x0+fw, y0+fh)
}

func prepareLayer(b Bitmap, mask MaskKind, size int) Layer {
	rect := fitRect(b.Width(), b.Height(), size)
	fitted := imaging.Resize(b.Image(), rect.Dx(), rect.Dy(), imaging.Lanczos)

	l := Layer{Bitmap: b, Mask: mask, Rect: rect}
	if mask == MaskCircle {
		full := imaging.New(size, size, color.NRGBA{})
		full = imaging.Paste(full, fitted, rect.Min)
		applyCircleMask(full, size)
		l.prepared = full
		return l
	}
	l.prepared = fitted
	l.origin = rect.Min
	return l
}

// over composites src onto dst at pt with the Porter-Duff "over" operator in
// non-premultiplied space. Integer arithmetic keeps the output reproducible.
func over(dst, src *image.NRGBA, pt image.Point) {
	r := src.Bounds().Sub(src.Bounds().Min).Add(pt).Intersect(dst.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			si := src.PixOffset(x-pt.X+src.Rect.Min.X, y-pt.Y+src.Rect.Min.Y)
			di := dst.PixOffset(x, y)
			s := src.Pix[si : si+4 : si+4]
			d := dst.Pix[di : di+4 : di+4]

			sa := uint32(s[3])
			if sa == 0 {
				continue
			}
			if sa == 255 {
				copy(d, s)
				continue
			}
			da := uint32(d[3])
			outA := sa + (da*(255-sa)+127)/255
			if outA == 0 {
				d[0], d[1], d[2], d[3] = 0, 0, 0, 0
				continue
			}
			den := outA * 255
			for i := 0; i < 3; i++ {
				num := uint32(s[i])*sa*255 + uint32(d[i])*da*(255-sa)
				d[i] = uint8((num + den/2) / den)
			}
			d[3] = uint8(outA)
		}
	}
}
