// Moodmon - terminal mood monitor. Follows a running soundscape's
// /ws/mood feed and prints the visitor's mood and playback state.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/teslashibe/go-soundscape/internal/config"
	"github.com/teslashibe/go-soundscape/internal/log"
	"github.com/teslashibe/go-soundscape/pkg/pipeline"
	"github.com/teslashibe/go-soundscape/pkg/web"
)

const maxRetryDelay = 30 * time.Second

func main() {
	url := flag.String("url", "", "Mood feed URL (default ws://localhost:$SOUNDSCAPE_PORT/ws/mood)")
	jsonLogs := flag.Bool("json", false, "Log JSON instead of text")
	flag.Parse()

	format := "text"
	if *jsonLogs {
		format = "json"
	}
	log.Init(config.Env(config.EnvLogLevel, "info"), format)

	if *url == "" {
		*url = fmt.Sprintf("ws://localhost:%d/ws/mood", config.EnvInt(config.EnvPort, 8080))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := follow(ctx, *url); err != nil && ctx.Err() == nil {
		log.Error("monitor stopped", "error", err)
		os.Exit(1)
	}
}

// follow watches the feed, reconnecting with doubling delays.
func follow(ctx context.Context, url string) error {
	delay := time.Second
	for {
		log.Info("connecting", "url", url)
		connected := false
		err := web.Watch(ctx, url, func(snap pipeline.Snapshot) {
			connected = true
			report(snap)
		})
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			delay = time.Second
		}
		log.Warn("feed lost, retrying", "error", err, "in", delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRetryDelay)
	}
}

func report(s pipeline.Snapshot) {
	args := []any{
		"emotion", s.StableEmotion,
		"consistency", s.Consistency,
		"room", s.Room,
		"mode", s.Mode.String(),
		"track", s.TrackID,
		"volume", fmt.Sprintf("%.2f", s.Playback.Volume),
		"cycles", s.Cycles,
	}
	if s.LastLabel != "" {
		args = append(args, "last", fmt.Sprintf("%s %.1f%%", s.LastLabel, s.LastConfidence))
	}
	if len(s.History) > 0 {
		args = append(args, "history", strings.Join(s.History, ">"))
	}
	if s.Playback.Crossfading {
		args = append(args, "crossfading", true)
	}
	if !s.Interacted {
		args = append(args, "waiting", "visitor interaction")
	}
	if s.CameraNotice != "" {
		args = append(args, "camera", s.CameraNotice)
	}
	if s.LastError != "" {
		args = append(args, "error", s.LastError)
	}
	log.Info("mood", args...)
}
