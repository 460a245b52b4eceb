package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-soundscape/pkg/hub"
	"github.com/teslashibe/go-soundscape/pkg/pipeline"
)

// Watch follows a /ws/mood feed and calls fn for every snapshot. It
// returns when ctx is done or the connection drops.
func Watch(ctx context.Context, url string, fn func(pipeline.Snapshot)) error {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
	}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if typ != websocket.TextMessage {
			continue
		}

		snap, err := decodeSnapshot(data)
		if errors.Is(err, errSkip) {
			continue
		}
		if err != nil {
			return err
		}
		fn(snap)
	}
}

var errSkip = errors.New("not a mood message")

func decodeSnapshot(data []byte) (pipeline.Snapshot, error) {
	var env hub.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return pipeline.Snapshot{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type != "mood" {
		return pipeline.Snapshot{}, errSkip
	}
	var snap pipeline.Snapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		return pipeline.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}
