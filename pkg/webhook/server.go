package webhook

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/codeGROOVE-dev/mention-bot/pkg/types"
)

// GitLab webhook headers.
const (
	HeaderEvent     = "X-Gitlab-Event"
	HeaderToken     = "X-Gitlab-Token"
	HeaderEventUUID = "X-Gitlab-Event-UUID"
)

// maxBodySize bounds webhook bodies. Larger deliveries are skipped unread.
const maxBodySize = "1M"

const livenessText = "GitLab Mention Bot Active.\n/_-_/health - Health status\n"

// Runner runs the pipeline for one accepted event.
type Runner interface {
	Run(ctx context.Context, ev *types.MergeRequestEvent) Stage
}

// Server is the HTTP front of the bot.
type Server struct {
	echo     *echo.Echo
	gate     *Gate
	runner   Runner
	stats    *Stats
	dispatch func(func())
	inflight sync.WaitGroup
}

// NewServer wires the routes. Accepted deliveries run on their own goroutine after the
// response is decided.
func NewServer(gate *Gate, runner Runner, stats *Stats) *Server {
	if stats == nil {
		stats = NewStats()
	}
	s := &Server{
		echo:   echo.New(),
		gate:   gate,
		runner: runner,
		stats:  stats,
	}
	s.dispatch = func(fn func()) { go fn() }

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newPayloadValidator()
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(SlogMiddleware())
	e.Use(middleware.Recover())

	e.POST("/", s.handleWebhook, s.skipOversized, middleware.BodyLimit(maxBodySize))
	e.GET("/", s.handleLiveness)
	e.GET("/_-_/health", s.handleHealth)
	return s
}

// WithDispatch replaces how accepted deliveries are started, for tests that need to run
// them inline.
func (s *Server) WithDispatch(dispatch func(func())) *Server {
	s.dispatch = dispatch
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.echo.Server.ReadTimeout = 10 * time.Second
	s.echo.Server.WriteTimeout = 10 * time.Second
	s.echo.Server.IdleTimeout = 60 * time.Second
	slog.Info("Listening", "component", "server", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown stops accepting requests and waits for in-flight deliveries or ctx expiry.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("Shutdown with deliveries still running", "component", "server")
	}
	return err
}

func (s *Server) handleWebhook(c echo.Context) error {
	s.stats.recordReceived()
	req := c.Request()

	deliveryID := req.Header.Get(HeaderEventUUID)
	if deliveryID == "" {
		deliveryID = c.Response().Header().Get(echo.HeaderXRequestID)
	}
	eventType := req.Header.Get(HeaderEvent)
	log := slog.With("component", "webhook", "delivery", deliveryID, "event", eventType)
	log.InfoContext(req.Context(), "Received webhook event")

	if d := s.gate.AcceptHeaders(eventType, req.Header.Get(HeaderToken)); !d.Proceed {
		return s.skip(c, log, d.Reason)
	}

	var payload mergeRequestPayload
	if err := c.Bind(&payload); err != nil {
		log.WarnContext(req.Context(), "Malformed payload", "error", err)
		return s.skip(c, log, "malformed payload")
	}
	if err := c.Validate(&payload); err != nil {
		log.WarnContext(req.Context(), "Incomplete payload", "error", err)
		return s.skip(c, log, "incomplete payload")
	}

	ev := payload.event(eventType, deliveryID)
	if d := s.gate.Accept(ev); !d.Proceed {
		return s.skip(c, log, d.Reason)
	}

	// The delivery outlives the request; keep its values but drop its cancellation.
	ctx := context.WithoutCancel(req.Context())
	s.inflight.Add(1)
	s.dispatch(func() {
		defer s.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error("Pipeline panic", "panic", r)
			}
		}()
		s.runner.Run(ctx, ev)
	})

	return c.NoContent(http.StatusOK)
}

// skipOversized turns the body limiter's 413 into an ordinary skip, so the sender still
// gets an empty 200.
func (s *Server) skipOversized(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
			s.stats.recordReceived()
			log := slog.With("component", "webhook", "event", c.Request().Header.Get(HeaderEvent))
			return s.skip(c, log, "payload too large")
		}
		return err
	}
}

func (s *Server) skip(c echo.Context, log *slog.Logger, reason string) error {
	log.InfoContext(c.Request().Context(), "Skipping delivery", "reason", reason)
	s.stats.record(StageSkipped)
	return c.NoContent(http.StatusOK)
}

func (*Server) handleLiveness(c echo.Context) error {
	return c.String(http.StatusOK, livenessText)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, struct {
		Status string `json:"status"`
		StatsSnapshot
	}{Status: "ok", StatsSnapshot: s.stats.Snapshot()})
}
