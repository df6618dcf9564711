package replay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/okian/epidash/internal/domain/model"
)

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Stream is a websocket subscription to the frame feed.
type Stream struct {
	conn *websocket.Conn
}

// openStream connects to /ws and waits for the snapshot, after which the
// server delivers every published frame to this connection.
func openStream(ctx context.Context, baseURL string) (*Stream, error) {
	url := "ws" + strings.TrimPrefix(strings.TrimSuffix(baseURL, "/"), "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	s := &Stream{conn: conn}
	env, err := s.next(time.Now().Add(frameWaitSlack))
	if err != nil {
		s.Close()
		return nil, err
	}
	if env.Type != messageTypeSnapshot {
		s.Close()
		return nil, fmt.Errorf("expected %s message, got %q", messageTypeSnapshot, env.Type)
	}
	return s, nil
}

// Collect reads frames until want were received or deadline passes. Other
// message types are skipped.
func (s *Stream) Collect(ctx context.Context, want int, deadline time.Time, onFrame func(model.AnimationFrame)) ([]model.AnimationFrame, error) {
	frames := make([]model.AnimationFrame, 0, want)
	for len(frames) < want {
		if err := ctx.Err(); err != nil {
			return frames, err
		}
		env, err := s.next(deadline)
		if err != nil {
			return frames, fmt.Errorf("received %d of %d frames: %w", len(frames), want, err)
		}
		if env.Type != messageTypeFrame {
			continue
		}
		var frame model.AnimationFrame
		if err := json.Unmarshal(env.Data, &frame); err != nil {
			return frames, fmt.Errorf("failed to decode frame: %w", err)
		}
		frames = append(frames, frame)
		if onFrame != nil {
			onFrame(frame)
		}
	}
	return frames, nil
}

// Close closes the connection.
func (s *Stream) Close() {
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = s.conn.Close()
}

func (s *Stream) next(deadline time.Time) (envelope, error) {
	var env envelope
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return env, err
	}
	_, b, err := s.conn.ReadMessage()
	if err != nil {
		return env, err
	}
	err = json.Unmarshal(b, &env)
	return env, err
}
