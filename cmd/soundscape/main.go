// Soundscape - emotion-driven ambient audio for gallery visitors.
// Periodically captures a webcam frame, classifies the visitor's facial
// expression and crossfades to the matching track.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/teslashibe/go-soundscape/internal/config"
	"github.com/teslashibe/go-soundscape/internal/log"
	"github.com/teslashibe/go-soundscape/pkg/audio"
	"github.com/teslashibe/go-soundscape/pkg/audioio"
	_ "github.com/teslashibe/go-soundscape/pkg/audioio/speakerout"
	"github.com/teslashibe/go-soundscape/pkg/camera"
	"github.com/teslashibe/go-soundscape/pkg/camera/opencv"
	"github.com/teslashibe/go-soundscape/pkg/classifier"
	"github.com/teslashibe/go-soundscape/pkg/emotions"
	"github.com/teslashibe/go-soundscape/pkg/gate"
	"github.com/teslashibe/go-soundscape/pkg/pipeline"
	"github.com/teslashibe/go-soundscape/pkg/soundscape"
	"github.com/teslashibe/go-soundscape/pkg/web"
)

// settings is the merged result of flags, environment and the config file.
type settings struct {
	logLevel  string
	logFormat string

	addr      string
	staticDir string

	interval    time.Duration
	maxBackoff  int
	initialRoom string
	baseVolume  float64

	preset string
	camera camera.Config

	endpoint      string
	modelName     string
	minConfidence float64
	timeout       time.Duration

	backend      string
	assetDir     string
	crossfade    time.Duration
	steps        int
	ambientLevel float64

	tables soundscape.Tables
}

func main() {
	s, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(2)
	}

	log.Init(s.logLevel, s.logFormat)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, s); err != nil {
		log.Error("soundscape stopped", "error", err)
		os.Exit(1)
	}
}

// parseFlags resolves settings. Precedence: flags, environment, config
// file, built-in defaults.
func parseFlags() (settings, error) {
	configPath := flag.String("config", config.Env(config.EnvConfig, "soundscape.yaml"), "YAML settings file")
	endpoint := flag.String("endpoint", "", "Classifier endpoint (overrides SOUNDSCAPE_ENDPOINT)")
	threshold := flag.Float64("threshold", -1, "Minimum confidence percentage 0-100 (overrides SOUNDSCAPE_THRESHOLD)")
	interval := flag.Duration("interval", 0, "Capture interval (overrides SOUNDSCAPE_INTERVAL)")
	settle := flag.Duration("settle", -1, "Camera settle delay (overrides SOUNDSCAPE_SETTLE)")
	preset := flag.String("preset", "", "Camera preset: "+fmt.Sprint(camera.PresetNames()))
	port := flag.Int("port", 0, "HTTP port (overrides SOUNDSCAPE_PORT)")
	room := flag.String("room", "", "Initial room")
	backend := flag.String("audio", "", "Audio backend: auto, speaker, mock")
	assets := flag.String("assets", "", "Directory holding the audio tracks")
	static := flag.String("static", "", "Directory served at / (optional)")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	flag.Parse()

	file, err := config.Load(*configPath)
	if err != nil {
		return settings{}, err
	}

	s := settings{
		logLevel:    config.Env(config.EnvLogLevel, config.Or(file.Log.Level, "info")),
		logFormat:   config.Or(file.Log.Format, "text"),
		addr:        config.Or(file.Server.Addr, web.DefaultConfig().Addr),
		staticDir:   config.Or(*static, file.Server.StaticDir),
		maxBackoff:  config.Or(file.Capture.MaxBackoffTicks, pipeline.DefaultConfig().MaxBackoffTicks),
		initialRoom: config.Or(*room, config.Or(file.Capture.InitialRoom, soundscape.RoomEntrance)),
		baseVolume:  audio.DefaultConfig().Volume,
		preset:      config.Or(*preset, config.Or(file.Camera.Preset, camera.PresetQuick)),
		modelName:   config.Or(file.Classifier.ModelName, classifier.DefaultModelName),
		timeout:     config.Or(file.Classifier.Timeout, classifier.DefaultTimeout),
		backend:     config.Or(*backend, config.Or(file.Audio.Backend, string(audioio.BackendAuto))),
		assetDir:    config.Or(*assets, config.Or(file.Audio.AssetDir, audioio.DefaultConfig().AssetDir)),
		crossfade:   config.Or(file.Audio.Crossfade, audio.DefaultConfig().Duration),
		steps:       config.Or(file.Audio.Steps, audio.DefaultConfig().Steps),
		tables:      file.Tables(),
	}
	if *debug {
		s.logLevel = "debug"
	}
	s.baseVolume = config.OrPtr(file.Audio.BaseVolume, s.baseVolume)
	s.ambientLevel = config.Or(file.Audio.AmbientLevel, audio.DefaultConfig().AmbientLevel)

	// Camera: preset, then file overrides, then env/flag settle delay.
	cam := camera.GetPreset(s.preset)
	if cam == nil {
		return settings{}, fmt.Errorf("unknown camera preset %q (have %v)", s.preset, camera.PresetNames())
	}
	s.camera = *cam
	s.camera.Width = config.Or(file.Camera.Width, s.camera.Width)
	s.camera.Height = config.Or(file.Camera.Height, s.camera.Height)
	s.camera.Quality = config.Or(file.Camera.Quality, s.camera.Quality)
	s.camera.SettleDelay = config.Or(file.Camera.SettleDelay, s.camera.SettleDelay)
	s.camera.SettleDelay = config.EnvDuration(config.EnvSettle, s.camera.SettleDelay)
	if *settle >= 0 {
		s.camera.SettleDelay = *settle
	}

	s.endpoint = config.Env(config.EnvEndpoint, config.Or(file.Classifier.Endpoint, classifier.DefaultEndpoint))
	if *endpoint != "" {
		s.endpoint = *endpoint
	}
	s.minConfidence = config.EnvFloat(config.EnvThreshold, config.OrPtr(file.Classifier.MinConfidence, classifier.DefaultMinConfidence))
	if *threshold >= 0 {
		s.minConfidence = *threshold
	}
	s.interval = config.EnvDuration(config.EnvInterval, config.Or(file.Capture.Interval, pipeline.DefaultConfig().Interval))
	if *interval > 0 {
		s.interval = *interval
	}
	if p := config.EnvInt(config.EnvPort, 0); p > 0 {
		s.addr = fmt.Sprintf(":%d", p)
	}
	if *port > 0 {
		s.addr = fmt.Sprintf(":%d", *port)
	}
	return s, nil
}

func run(ctx context.Context, s settings) error {
	logger := log.L()

	policy, err := soundscape.NewPolicy(s.tables)
	if err != nil {
		return err
	}

	capturer, err := camera.NewCapturer(opencv.NewSource(logger), s.camera, logger)
	if err != nil {
		return err
	}

	cls, err := classifier.NewClient(
		classifier.WithEndpoint(s.endpoint),
		classifier.WithModelName(s.modelName),
		classifier.WithMinConfidence(s.minConfidence),
		classifier.WithTimeout(s.timeout),
		classifier.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer cls.Close()

	stabilizer, err := emotions.NewStabilizer(emotions.DefaultConfig(), logger)
	if err != nil {
		return err
	}

	engine, err := newEngine(s, policy.Ambient(), logger)
	if err != nil {
		return err
	}

	pcfg := pipeline.DefaultConfig()
	pcfg.Interval = s.interval
	pcfg.MinConfidence = s.minConfidence
	pcfg.MaxBackoffTicks = s.maxBackoff
	pcfg.BaseVolume = s.baseVolume
	pcfg.InitialRoom = s.initialRoom
	pcfg.Logger = logger

	p, err := pipeline.New(pcfg, pipeline.Deps{
		Gate:       gate.New(logger),
		Camera:     capturer,
		Classifier: cls,
		Stabilizer: stabilizer,
		Policy:     policy,
		Engine:     engine,
	})
	if err != nil {
		engine.Close()
		return err
	}
	defer p.Close()

	wcfg := web.DefaultConfig()
	wcfg.Addr = s.addr
	wcfg.StaticDir = s.staticDir
	wcfg.Logger = logger
	srv := web.NewServer(wcfg, p)

	var (
		frameMu   sync.Mutex
		lastFrame time.Time
	)
	p.OnUpdate = func(snap pipeline.Snapshot) {
		srv.Publish(snap)
		frame, at := p.LastFrame()
		frameMu.Lock()
		fresh := len(frame) > 0 && at.After(lastFrame)
		if fresh {
			lastFrame = at
		}
		frameMu.Unlock()
		if fresh {
			srv.PublishFrame(frame)
		}
	}
	engine.OnTransition = func(t audio.Transition) {
		if t.Err != nil {
			srv.AddEvent("error", fmt.Sprintf("transition to %s failed: %v", t.Track, t.Err))
		} else {
			srv.AddEvent("track", fmt.Sprintf("now playing %s", t.Track))
		}
		p.Publish()
	}

	logger.Info("soundscape starting",
		"addr", s.addr,
		"endpoint", s.endpoint,
		"interval", s.interval,
		"threshold", s.minConfidence,
		"preset", s.preset,
		"room", s.initialRoom,
		"audio", s.backend,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 2)
	go func() { errc <- srv.Start(ctx) }()
	go func() { errc <- p.Run(ctx) }()

	// Either side failing stops the other.
	var firstErr error
	for range 2 {
		err := <-errc
		if err != nil && firstErr == nil && ctx.Err() == nil {
			firstErr = err
		}
		cancel()
	}
	return firstErr
}

// newEngine builds the crossfade engine on three buffers from the
// configured backend.
func newEngine(s settings, ambient string, logger *slog.Logger) (*audio.Engine, error) {
	acfg := audioio.DefaultConfig()
	acfg.Backend = audioio.Backend(s.backend)
	acfg.AssetDir = s.assetDir
	if err := acfg.Validate(); err != nil {
		return nil, err
	}

	var bufs [3]audioio.Buffer
	for i, name := range []string{"a", "b", "ambient"} {
		b, err := audioio.NewBuffer(acfg, name, logger)
		if err != nil {
			for _, prev := range bufs[:i] {
				prev.Close()
			}
			return nil, fmt.Errorf("audio buffer %s: %w", name, err)
		}
		bufs[i] = b
	}

	ecfg := audio.DefaultConfig()
	ecfg.Duration = s.crossfade
	ecfg.Steps = s.steps
	ecfg.AmbientTrack = ambient
	ecfg.AmbientLevel = s.ambientLevel
	ecfg.Volume = s.baseVolume
	ecfg.Logger = logger
	engine, err := audio.NewEngine(ecfg, bufs[0], bufs[1], bufs[2])
	if err != nil {
		for _, b := range bufs {
			b.Close()
		}
		return nil, err
	}
	return engine, nil
}
