package api

import (
	imagepkg "github.com/youruser/tokenizer/internal/image"
	"github.com/youruser/tokenizer/internal/pipeline"
)

type layerJSON struct {
	ZIndex int    `json:"z_index"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Mask   string `json:"mask"`
	Rect   [4]int `json:"rect"`
}

type viewJSON struct {
	Size   int         `json:"size"`
	Layers []layerJSON `json:"layers"`
}

type sessionJSON struct {
	ID           string                `json:"id"`
	ActorID      string                `json:"actor_id"`
	Targets      pipeline.Targets      `json:"targets"`
	Avatar       viewJSON              `json:"avatar"`
	Token        viewJSON              `json:"token"`
	Notices      []pipeline.Notice     `json:"notices"`
	Capabilities pipeline.Capabilities `json:"capabilities"`
}

func toViewJSON(c *imagepkg.Composite) viewJSON {
	v := viewJSON{Size: c.Size(), Layers: []layerJSON{}}
	for _, l := range c.Layers() {
		v.Layers = append(v.Layers, layerJSON{
			ZIndex: l.ZIndex,
			Width:  l.Bitmap.Width(),
			Height: l.Bitmap.Height(),
			Mask:   l.Mask.String(),
			Rect:   [4]int{l.Rect.Min.X, l.Rect.Min.Y, l.Rect.Max.X, l.Rect.Max.Y},
		})
	}
	return v
}

func (h *Handler) sessionJSON(s *pipeline.Session) sessionJSON {
	return sessionJSON{
		ID:           s.ID,
		ActorID:      s.Actor.ID,
		Targets:      s.Targets,
		Avatar:       toViewJSON(s.Avatar),
		Token:        toViewJSON(s.Token),
		Notices:      s.Notices(),
		Capabilities: h.Controller.Capabilities(),
	}
}
