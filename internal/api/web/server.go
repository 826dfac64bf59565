package web

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/sos-beacon/internal/domain/alert"
	"github.com/oshokin/sos-beacon/internal/logger"
	"github.com/oshokin/sos-beacon/internal/notify"
)

//go:embed static/index.html
var indexHTML []byte

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// StateSource exposes the current alert state.
type StateSource interface {
	Snapshot() *alert.Snapshot
}

// Subscriber hands out notification subscriptions.
type Subscriber interface {
	Subscribe(buffer int) *notify.Subscription
}

// DeviceStatus reports whether the serial link is up.
type DeviceStatus interface {
	Name() string
	Connected() bool
}

// Options wires the dependencies of the HTTP surface.
type Options struct {
	// State is read by /api/state.
	State StateSource
	// Hub feeds /events.
	Hub Subscriber
	// Gatherer is exposed on /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// Device is reported by /healthz. Nil reports no device.
	Device DeviceStatus
}

// Server is the HTTP surface of the coordinator.
type Server struct {
	opts   Options
	engine *gin.Engine
}

// New builds the router.
func New(opts Options) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{
		opts:   opts,
		engine: engine,
	}

	engine.GET("/", s.index)
	engine.GET("/api/state", s.state)
	engine.GET("/events", s.events)
	engine.GET("/healthz", s.healthz)

	if opts.Gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	return s
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve runs the HTTP server on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		<-ctx.Done()
		logger.Info(ctx, "Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WarnKV(ctx, "HTTP shutdown incomplete", "error", err)
		}
	}()

	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	<-done

	return nil
}

func (s *Server) index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

func (s *Server) state(c *gin.Context) {
	c.JSON(http.StatusOK, snapshotView(s.opts.State.Snapshot()))
}

func (s *Server) healthz(c *gin.Context) {
	body := gin.H{"status": "ok", "device_connected": false}

	if d := s.opts.Device; d != nil {
		body["device"] = d.Name()
		body["device_connected"] = d.Connected()
	}

	c.JSON(http.StatusOK, body)
}

// events streams notifications as server-sent events named after the notification.
func (s *Server) events(c *gin.Context) {
	ctx := c.Request.Context()

	sub := s.opts.Hub.Subscribe(notify.DefaultBuffer)
	defer sub.Close()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	greeting := alert.StatusUpdate(alert.ConnectedMessage, time.Now())
	c.SSEvent(greeting.Name, notificationView(greeting))
	c.Writer.Flush()

	logger.DebugKV(ctx, "SSE client connected", "remote", c.ClientIP())

	for {
		select {
		case <-ctx.Done():
			logger.DebugKV(ctx, "SSE client disconnected", "remote", c.ClientIP())

			return
		case n, ok := <-sub.C:
			if !ok {
				return
			}

			c.SSEvent(n.Name, notificationView(n))
			c.Writer.Flush()
		}
	}
}

// requestLogger writes one debug entry per request through the context logger.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()

		c.Next()

		logger.DebugKV(c.Request.Context(), "HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"took", time.Since(started),
		)
	}
}

func snapshotView(s *alert.Snapshot) gin.H {
	if s == nil {
		return gin.H{"phase": alert.PhaseIdle}
	}

	view := gin.H{
		"phase":      s.Phase,
		"updated_at": s.UpdatedAt,
	}

	if a := s.Alert; a != nil {
		view[alert.FieldAlertID] = a.ID
		view[alert.FieldMessage] = a.Message
		view["opened_at"] = a.OpenedAt
		view["deadline"] = a.Deadline
	}

	return view
}

func notificationView(n alert.Notification) gin.H {
	view := make(gin.H, len(n.Fields)+1)

	for key, value := range n.Fields {
		view[key] = value
	}

	view["at"] = n.At

	return view
}
