package server

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/ksuid"

	"github.com/chaos-io/cutout/remover"
	"github.com/chaos-io/cutout/util"
)

// DefaultMaxUploadBytes caps the request body of POST /api/v1/cutouts.
const DefaultMaxUploadBytes int64 = 32 << 20

// Server exposes BackgroundRemover over HTTP. Results are stored as
// <ksuid>.png under resultDir; the ksuid doubles as the creation time used
// by the cleanup job.
type Server struct {
	remover   *remover.BackgroundRemover
	resultDir string
	maxUpload int64
	engine    *gin.Engine
	cron      *cron.Cron
}

type Option func(*Server)

// WithMaxUploadBytes overrides DefaultMaxUploadBytes. Larger uploads get 413.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		s.maxUpload = n
	}
}

func New(r *remover.BackgroundRemover, resultDir string, opts ...Option) *Server {
	s := &Server{
		remover:   r,
		resultDir: resultDir,
		maxUpload: DefaultMaxUploadBytes,
		engine:    gin.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine.Use(Logger())
	s.engine.Use(gin.CustomRecovery(HandlePanics()))
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.engine.Group("api/v1")
	{
		v1.POST("/cutouts", s.createCutout)
		v1.GET("/cutouts/:id", s.getCutout)
	}
}

// createCutout handles POST /api/v1/cutouts with the image in the
// multipart field "image".
func (s *Server) createCutout(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)

	header, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing image field"})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer func() {
		_ = file.Close()
	}()

	img, err := util.DecodeImage(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": remover.ErrDecode.Error() + ": " + err.Error()})
		return
	}

	result, err := s.remover.Remove(c.Request.Context(), img)
	if err != nil {
		log.Error().Err(err).Str("upload", header.Filename).Msg("remove background")
		c.JSON(http.StatusInternalServerError, gin.H{"error": remover.ErrRemove.Error() + ": " + err.Error()})
		return
	}

	id := ksuid.New().String()
	if err := util.SaveImage(result, s.resultPath(id)); err != nil {
		log.Error().Err(err).Str("id", id).Msg("save cutout")
		c.JSON(http.StatusInternalServerError, gin.H{"error": remover.ErrWrite.Error() + ": " + err.Error()})
		return
	}

	b := result.Bounds()
	c.JSON(http.StatusCreated, gin.H{
		"id":     id,
		"width":  b.Dx(),
		"height": b.Dy(),
		"url":    "/api/v1/cutouts/" + id,
	})
}

func (s *Server) getCutout(c *gin.Context) {
	id := c.Param("id")
	if _, err := ksuid.Parse(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "cutout not found"})
		return
	}

	path := s.resultPath(id)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		c.JSON(http.StatusNotFound, gin.H{"error": "cutout not found"})
		return
	}

	c.File(path)
}

func (s *Server) resultPath(id string) string {
	return filepath.Join(s.resultDir, id+".png")
}
