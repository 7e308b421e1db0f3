package api

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/youruser/tokenizer/internal/actors"
	apperrors "github.com/youruser/tokenizer/internal/errors"
	imagepkg "github.com/youruser/tokenizer/internal/image"
	"github.com/youruser/tokenizer/internal/pipeline"
	"github.com/youruser/tokenizer/internal/util"
)

// ActorReader is the read side of the actor store.
type ActorReader interface {
	Get(ctx context.Context, id string) (actors.Actor, error)
	List(ctx context.Context) ([]actors.Actor, error)
}

// Handler serves the HTTP surface the hosting UI talks to.
type Handler struct {
	Controller *pipeline.Controller
	Sessions   *pipeline.Registry
	Actors     ActorReader
	Files      pipeline.Lister
}

func writeError(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	c.JSON(code.HTTPStatus(), gin.H{"error": err.Error(), "code": code})
}

// health
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": h.Sessions.Len()})
}

func (h *Handler) listActors(c *gin.Context) {
	all, err := h.Actors.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	opt := actors.FilterOptions{
		FreeWords:    c.Query("q"),
		WildcardMode: c.Query("wildcard"),
	}
	if kinds := c.Query("kinds"); kinds != "" {
		opt.Kinds = strings.Split(kinds, ",")
	}
	out := actors.Filter(all, opt)
	c.JSON(http.StatusOK, gin.H{"count": len(out), "actors": out})
}

func (h *Handler) getActor(c *gin.Context) {
	a, err := h.Actors.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// actorQR returns a PNG QR code of the actor's portrait URL.
func (h *Handler) actorQR(c *gin.Context) {
	a, err := h.Actors.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if a.PortraitURL == "" {
		writeError(c, apperrors.New(apperrors.CodeNotFound, "actor has no portrait"))
		return
	}
	size := 256
	if v, err := strconv.Atoi(c.Query("size")); err == nil && v > 0 && v <= 2048 {
		size = v
	}
	b, err := imagepkg.GenerateQRPNG(a.PortraitURL, size)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", b)
}

func (h *Handler) openSession(c *gin.Context) {
	var req struct {
		ActorID string `json:"actor_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ActorID == "" {
		writeError(c, apperrors.New(apperrors.CodeInvalidArgument, "actor_id is required"))
		return
	}
	s, err := h.Controller.Open(c.Request.Context(), req.ActorID)
	if err != nil {
		writeError(c, err)
		return
	}
	h.Sessions.Add(s)
	c.JSON(http.StatusCreated, h.sessionJSON(s))
}

func (h *Handler) session(c *gin.Context) (*pipeline.Session, bool) {
	s, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return s, true
}

func (h *Handler) getSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.sessionJSON(s))
}

func (h *Handler) closeSession(c *gin.Context) {
	if _, ok := h.Sessions.Remove(c.Param("id")); !ok {
		writeError(c, apperrors.New(apperrors.CodeNotFound, "session "+c.Param("id")+" not found"))
		return
	}
	c.Status(http.StatusNoContent)
}

// addLayer accepts {"view": "avatar|token", "type": "download|avatar", "url": "...", "mask": "none|circle"}.
func (h *Handler) addLayer(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req struct {
		View string `json:"view"`
		Type string `json:"type"`
		URL  string `json:"url"`
		Mask string `json:"mask"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.Wrap(apperrors.CodeInvalidArgument, "bad request body", err))
		return
	}
	view, err := pipeline.ParseView(req.View)
	if err != nil {
		writeError(c, err)
		return
	}
	mask, ok := imagepkg.ParseMaskKind(req.Mask)
	if !ok {
		writeError(c, apperrors.New(apperrors.CodeInvalidArgument, "unknown mask "+req.Mask))
		return
	}
	var src pipeline.Source
	switch pipeline.SourceKind(req.Type) {
	case pipeline.SourceDownload:
		src = pipeline.Download(req.URL)
	case pipeline.SourceAvatar:
		src = pipeline.Avatar()
	default:
		writeError(c, apperrors.New(apperrors.CodeInvalidArgument, "unsupported layer type "+req.Type))
		return
	}
	src.Mask = mask
	if err := h.Controller.AddSource(c.Request.Context(), s, view, src); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessionJSON(s))
}

// uploadLayer accepts a multipart "file" plus "view" and "mask" form fields.
func (h *Handler) uploadLayer(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	view, err := pipeline.ParseView(c.PostForm("view"))
	if err != nil {
		writeError(c, err)
		return
	}
	mask, ok := imagepkg.ParseMaskKind(c.PostForm("mask"))
	if !ok {
		writeError(c, apperrors.New(apperrors.CodeInvalidArgument, "unknown mask "+c.PostForm("mask")))
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, apperrors.Wrap(apperrors.CodeInvalidArgument, "file is required", err))
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, apperrors.Wrap(apperrors.CodeInvalidArgument, "open upload", err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, util.MaxFetchBytes+1))
	if err != nil {
		writeError(c, apperrors.Wrap(apperrors.CodeInvalidArgument, "read upload", err))
		return
	}
	if len(data) > util.MaxFetchBytes {
		writeError(c, apperrors.New(apperrors.CodeInvalidArgument, "upload too large"))
		return
	}
	src := pipeline.Upload(fh.Filename, data)
	src.Mask = mask
	if err := h.Controller.AddSource(c.Request.Context(), s, view, src); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessionJSON(s))
}

// renderView returns the current canvas of a view as PNG.
func (h *Handler) renderView(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	view, err := pipeline.ParseView(strings.TrimSuffix(c.Param("view"), ".png"))
	if err != nil {
		writeError(c, err)
		return
	}
	comp, err := s.View(view)
	if err != nil {
		writeError(c, err)
		return
	}
	b, err := comp.Export()
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", b)
}

// listFiles lists store files matching ?pattern=, defaulting to the
// session's token pattern.
func (h *Handler) listFiles(c *gin.Context) {
	if !h.Controller.Capabilities().CanBrowse {
		writeError(c, apperrors.New(apperrors.CodeForbidden, "browsing files is not permitted"))
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	pattern := c.Query("pattern")
	if pattern == "" {
		pattern = s.Targets.TokenPattern
	}
	if pattern == "" {
		writeError(c, apperrors.New(apperrors.CodeInvalidArgument, "pattern is required"))
		return
	}
	files, err := h.Files.ListFiles(c.Request.Context(), pattern)
	if err != nil {
		writeError(c, apperrors.Wrap(apperrors.CodeInvalidArgument, "list files", err))
		return
	}
	if files == nil {
		files = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"pattern": pattern, "files": files})
}

func (h *Handler) submit(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	res, err := h.Controller.Submit(c.Request.Context(), s)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
