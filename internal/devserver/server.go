// Package devserver is an in-memory transcription backend speaking the same
// HTTP/JSON contract as the production one. Editing state lives per session
// cookie and is lost on restart.
package devserver

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/forPelevin/tredit/internal/ports"
	"github.com/forPelevin/tredit/internal/types"
)

const (
	DefaultAddr        = ":5013"
	DefaultMaxDuration = 10 * time.Minute
)

type Options struct {
	Transcriber ports.Transcriber
	// MaxDuration rejects longer sources. Zero disables the check.
	MaxDuration time.Duration
	Logger      *logrus.Logger
}

type Server struct {
	app *fiber.App
	t   ports.Transcriber
	max time.Duration
	log *logrus.Logger
	v   *validator.Validate

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu        sync.Mutex
	tr        *types.Transcription
	sourceURL string
	prompt    string
}

func New(o Options) (*Server, error) {
	if o.Transcriber == nil {
		return nil, errors.New("transcriber is required")
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	s := &Server{
		t:        o.Transcriber,
		max:      o.MaxDuration,
		log:      o.Logger,
		v:        validator.New(),
		sessions: map[string]*session{},
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "tredit-devserver",
		DisableStartupMessage: true,
		// Session state keeps form values and cookies past the request.
		Immutable:    true,
		ErrorHandler: s.handleError,
	})
	s.app.Use(recover.New())
	s.app.Use(requestLogger(o.Logger))
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := s.app.Group("", s.sessionID)
	api.Post("/transcribe", s.transcribe)
	api.Get("/get_cached_transcription", s.cachedTranscription)
	api.Post("/update_segment", s.updateSegment)
	api.Post("/add_segment", s.addSegment)
	api.Post("/remove_segment", s.removeSegment)
	api.Post("/sort_segments", s.sortSegments)
	api.Post("/retranscribe_segment", s.retranscribeSegment)
	for _, f := range []types.Format{types.FormatSRT, types.FormatTXT, types.FormatCSV} {
		api.Get("/download_"+string(f), s.download(f))
	}
}

// App exposes the fiber app, e.g. for app.Test or an http adaptor.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	s.log.WithField("addr", addr).Info("dev backend listening")
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return fail(c, code, err.Error())
}
