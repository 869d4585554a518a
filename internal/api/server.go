package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"moodline/internal/domain"
	"moodline/internal/webhook"
)

const (
	HeaderLineSignature = "X-Line-Signature"
	HeaderSignature     = "X-Signature"

	bodyLimit = "1M"
)

type Dispatcher interface {
	Dispatch(ev domain.InboundEvent) error
}

// RecordSource lists recent audit records for the dashboard.
type RecordSource interface {
	Recent(ctx context.Context, limit int) ([]domain.AuditRecord, error)
}

type Option func(*Server)

func WithRecords(r RecordSource) Option {
	return func(s *Server) { s.records = r }
}

// WithBroker shares a broker with the component producing reports.
func WithBroker(b *SSEBroker) Option {
	return func(s *Server) { s.sse = b }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

type Server struct {
	echo       *echo.Echo
	dispatcher Dispatcher
	secret     string
	logger     *slog.Logger
	records    RecordSource
	sse        *SSEBroker
	now        func() time.Time
}

type recordView struct {
	Timestamp  time.Time `json:"timestamp"`
	UserID     string    `json:"user_id"`
	InputText  string    `json:"input_text"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
}

func NewServer(d Dispatcher, channelSecret string, logger *slog.Logger, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		echo:       e,
		dispatcher: d,
		secret:     channelSecret,
		logger:     logger,
		sse:        NewSSEBroker(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			)
			return nil
		},
	}))
	e.Use(middleware.BodyLimit(bodyLimit))

	s.routes()

	return s
}

func (s *Server) routes() {
	s.echo.GET("/", s.index)
	s.echo.GET("/health", s.health)
	s.echo.POST("/callback", s.callback)
	s.echo.GET("/api/events", s.events)
	s.echo.GET("/api/records", s.getRecords)
}

func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) index(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "ok",
		"sse_clients": s.sse.Clients(),
	})
}

// callback verifies the platform signature, hands each event to the
// dispatcher and answers immediately.
func (s *Server) callback(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.String(http.StatusBadRequest, "Bad Request")
	}

	sig := c.Request().Header.Get(HeaderLineSignature)
	if sig == "" {
		sig = c.Request().Header.Get(HeaderSignature)
	}

	if err := webhook.Verify(s.secret, body, sig); err != nil {
		s.logger.Warn("webhook rejected", "error", err, "remote_ip", c.RealIP())
		return c.String(http.StatusBadRequest, "Bad Request")
	}

	events, err := webhook.Parse(body, s.now())
	if err != nil {
		s.logger.Warn("webhook body invalid", "error", err)
		return c.String(http.StatusBadRequest, "Bad Request")
	}

	for _, ev := range events {
		if err := s.dispatcher.Dispatch(ev); err != nil {
			s.logger.Warn("event not dispatched", "event_id", ev.ID, "user_id", ev.UserID, "error", err)
		}
	}

	return c.String(http.StatusOK, "OK")
}

func (s *Server) getRecords(c echo.Context) error {
	if s.records == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "record listing not configured"})
	}

	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 500"})
		}
		limit = n
	}

	records, err := s.records.Recent(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error("list records failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "list records failed"})
	}

	views := make([]recordView, len(records))
	for i, r := range records {
		views[i] = recordView(r)
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) events(c echo.Context) error {
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")

	ch := s.sse.Subscribe()
	defer s.sse.Unsubscribe(ch)

	fmt.Fprintf(c.Response(), ": ping\n\n")
	c.Response().Flush()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case msg := <-ch:
			fmt.Fprintf(c.Response(), "event: report\n")
			for _, line := range strings.Split(msg, "\n") {
				fmt.Fprintf(c.Response(), "data: %s\n", line)
			}
			fmt.Fprintf(c.Response(), "\n")
			c.Response().Flush()
		}
	}
}
