package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/fieldops/maintsched/pkg/engine"
)

// Server serves the engine over HTTP.
type Server struct {
	engine  *engine.Engine
	echo    *echo.Echo
	logger  *slog.Logger
	limiter *RateLimiter
}

// Option configures a Server.
type Option interface {
	apply(*Server)
}

type optionFunc func(*Server)

func (f optionFunc) apply(s *Server) { f(s) }

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(s *Server) {
		if l != nil {
			s.logger = l
		}
	})
}

// WithRateLimit limits each client IP to perSecond requests with the given
// burst. A non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return optionFunc(func(s *Server) {
		if perSecond <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = NewRateLimiter(perSecond, burst)
	})
}

// New builds a Server for eng.
func New(eng *engine.Engine, opts ...Option) *Server {
	s := &Server{
		engine: eng,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt.apply(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug("http request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency))
			return nil
		},
	}))
	if s.limiter != nil {
		e.Use(s.limiter.Middleware())
	}
	s.echo = e
	s.register(e.Group("/api/v1"))
	return s
}

func (s *Server) register(g *echo.Group) {
	g.POST("/schedules", s.createSchedule)
	g.GET("/schedules/:id", s.getSchedule)
	g.PATCH("/schedules/:id", s.updateDetails)
	g.DELETE("/schedules/:id", s.deleteSchedule)
	g.PATCH("/schedules/:id/date", s.reschedule)
	g.POST("/schedules/:id/transitions", s.transition)
	g.GET("/schedules/:id/family", s.familyInfo)
	g.GET("/schedules/:id/family/members", s.familyMembers)
	g.POST("/schedules/:id/family/transitions", s.transitionFamily)
	g.GET("/schedules/:id/rule", s.getRule)
	g.PUT("/schedules/:id/rule", s.updateRule)
}

// Handler returns the HTTP handler, for tests and custom servers.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("http server listening", slog.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
