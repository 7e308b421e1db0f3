package imagepkg

import (
	"bytes"
	"context"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	apperrors "github.com/youruser/tokenizer/internal/errors"
)

// Fetcher retrieves raw bytes for a URL or store path.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Source is either a URL to fetch or raw uploaded bytes.
type Source struct {
	URL  string
	Name string
	Data []byte
}

// URLSource returns a Source fetched from url.
func URLSource(url string) Source {
	return Source{URL: url, Name: url}
}

// UploadSource returns a Source for an uploaded file.
func UploadSource(name string, data []byte) Source {
	return Source{Name: name, Data: data}
}

func (s Source) String() string {
	if s.Name != "" {
		return s.Name
	}
	return s.URL
}

// Loader fetches and decodes images.
type Loader struct {
	fetch Fetcher
}

// NewLoader returns a Loader backed by f.
func NewLoader(f Fetcher) *Loader {
	return &Loader{fetch: f}
}

// Load fetches src (unless it carries its own bytes) and decodes it.
// Every failure is reported as a LOAD_FAILED error.
func (l *Loader) Load(ctx context.Context, src Source) (Bitmap, error) {
	data := src.Data
	if data == nil {
		url := strings.TrimSpace(src.URL)
		if url == "" {
			return Bitmap{}, apperrors.New(apperrors.CodeLoad, "no image source given")
		}
		if l.fetch == nil {
			return Bitmap{}, apperrors.New(apperrors.CodeLoad, "no fetch transport configured")
		}
		b, err := l.fetch.Fetch(ctx, url)
		if err != nil {
			return Bitmap{}, apperrors.Wrap(apperrors.CodeLoad, "fetch "+url, err)
		}
		data = b
	}
	bm, err := Decode(data)
	if err != nil {
		return Bitmap{}, apperrors.Wrap(apperrors.CodeLoad, "load "+src.String(), err)
	}
	return bm, nil
}

// Decode decodes a raster image (png, jpeg, gif, bmp, tiff, webp).
func Decode(data []byte) (Bitmap, error) {
	if len(data) == 0 {
		return Bitmap{}, apperrors.New(apperrors.CodeLoad, "empty image data")
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Bitmap{}, apperrors.Wrap(apperrors.CodeLoad, "decode image", err)
	}
	bm := NewBitmap(img)
	if bm.Empty() {
		return Bitmap{}, apperrors.New(apperrors.CodeLoad, "image has no pixels")
	}
	return bm, nil
}
