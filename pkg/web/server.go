// Package web serves the mood monitor: a JSON control API, a websocket
// feed of read-model snapshots, and a client that follows that feed.
package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-soundscape/pkg/hub"
	"github.com/teslashibe/go-soundscape/pkg/pipeline"
	"github.com/teslashibe/go-soundscape/pkg/soundscape"
)

// Controller is the pipeline surface the API drives.
type Controller interface {
	Snapshot() pipeline.Snapshot
	LastFrame() ([]byte, time.Time)
	RecordInteraction() bool
	SetRoom(room string) string
	SetMode(m soundscape.Mode)
	ClearModeOverride()
	SetVolume(v float64)
	RunCycle(ctx context.Context) (pipeline.Cycle, error)
}

// Config holds server configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// StaticDir, when set, is served at "/".
	StaticDir string

	// AllowOrigins is passed to the CORS middleware.
	AllowOrigins string

	// AccessLog receives one line per request. Nil disables it.
	AccessLog io.Writer

	Logger *slog.Logger
}

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		AllowOrigins: "*",
		AccessLog:    os.Stdout,
	}
}

// Event is one line of the monitor's activity feed.
type Event struct {
	Time    time.Time `json:"time"`
	Type    string    `json:"type"` // cycle, room, mode, volume, interaction, error
	Message string    `json:"message"`
}

const maxEvents = 200

// Server is the mood monitor server
type Server struct {
	app    *fiber.App
	cfg    Config
	ctrl   Controller
	logger *slog.Logger

	// Hubs for websocket broadcast
	moodHub  *hub.Hub
	frameHub *hub.Hub

	events   []Event
	eventsMu sync.RWMutex
}

// NewServer creates the server and its routes.
func NewServer(cfg Config, ctrl Controller) *Server {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		ctrl:     ctrl,
		logger:   log.With("component", "web.server"),
		moodHub:  hub.New("mood", log),
		frameHub: hub.New("frames", log),
		events:   make([]Event, 0, maxEvents),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Soundscape Mood Monitor",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	if cfg.AccessLog != nil {
		app.Use(logger.New(logger.Config{Output: cfg.AccessLog}))
	}
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.AllowOrigins}))

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	// API routes
	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/mood", s.handleMood)
	api.Get("/frame", s.handleFrame)
	api.Get("/events", s.handleEvents)
	api.Post("/interaction", s.handleInteraction)
	api.Put("/room", s.handleRoom)
	api.Put("/mode", s.handleMode)
	api.Put("/volume", s.handleVolume)
	api.Post("/capture", s.handleCapture)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/mood", websocket.New(s.handleHubWS(s.moodHub)))
	app.Get("/ws/frames", websocket.New(s.handleHubWS(s.frameHub)))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on cfg.Addr until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the hubs and serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.moodHub.Run(ctx)
	go s.frameHub.Run(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Listener(ln) }()

	s.logger.Info("mood monitor listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Publish broadcasts a snapshot to /ws/mood clients.
func (s *Server) Publish(snap pipeline.Snapshot) {
	if err := s.moodHub.Publish("mood", snap); err != nil {
		s.logger.Warn("encode snapshot", "error", err)
	}
}

// PublishFrame broadcasts a JPEG frame to /ws/frames clients.
func (s *Server) PublishFrame(jpeg []byte) {
	if len(jpeg) == 0 {
		return
	}
	s.frameHub.BroadcastBinary(jpeg)
}

// AddEvent appends to the activity feed.
func (s *Server) AddEvent(typ, message string) {
	entry := Event{Time: time.Now(), Type: typ, Message: message}

	s.eventsMu.Lock()
	s.events = append(s.events, entry)
	if len(s.events) > maxEvents {
		s.events = s.events[1:]
	}
	s.eventsMu.Unlock()
}

// Events returns a copy of the activity feed.
func (s *Server) Events() []Event {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	return append([]Event(nil), s.events...)
}

// ClientCount returns the number of /ws/mood clients.
func (s *Server) ClientCount() int {
	return s.moodHub.ClientCount()
}

func (s *Server) handleHubWS(h *hub.Hub) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		hub.NewClient(h, conn).Run()
	}
}

// errorHandler renders every error as {"error": "..."}.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
