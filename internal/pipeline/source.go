package pipeline

import (
	"fmt"

	apperrors "github.com/youruser/tokenizer/internal/errors"
	imagepkg "github.com/youruser/tokenizer/internal/image"
)

// SourceKind says where a new layer comes from.
type SourceKind string

const (
	// SourceUpload is a file sent by the user.
	SourceUpload SourceKind = "upload"
	// SourceDownload is an image fetched from a URL.
	SourceDownload SourceKind = "download"
	// SourceAvatar reuses the rendered avatar composite.
	SourceAvatar SourceKind = "avatar"
)

// Source describes an image to add to a view.
type Source struct {
	Kind SourceKind
	URL  string
	Name string
	Data []byte
	Mask imagepkg.MaskKind
}

func Upload(name string, data []byte) Source {
	return Source{Kind: SourceUpload, Name: name, Data: data}
}

func Download(url string) Source {
	return Source{Kind: SourceDownload, URL: url}
}

func Avatar() Source {
	return Source{Kind: SourceAvatar}
}

func (s Source) String() string {
	switch s.Kind {
	case SourceUpload:
		return "upload " + s.Name
	case SourceDownload:
		return "download " + s.URL
	default:
		return string(s.Kind)
	}
}

func (s Source) validate() error {
	switch s.Kind {
	case SourceUpload:
		if len(s.Data) == 0 {
			return apperrors.New(apperrors.CodeInvalidArgument, "upload has no data")
		}
	case SourceDownload:
		if s.URL == "" {
			return apperrors.New(apperrors.CodeInvalidArgument, "download needs a url")
		}
	case SourceAvatar:
	default:
		return apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("unknown source type %q", s.Kind))
	}
	return nil
}

func (s Source) image() imagepkg.Source {
	if s.Kind == SourceUpload {
		return imagepkg.UploadSource(s.Name, s.Data)
	}
	return imagepkg.URLSource(s.URL)
}
