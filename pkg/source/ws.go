package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ja7ad/dyno/pkg/config"
	"github.com/ja7ad/dyno/pkg/dyno"
	"github.com/ja7ad/dyno/pkg/timebase"
)

// WS reads JSON samples from a WebSocket endpoint. A normal close from the
// server ends the stream with io.EOF.
type WS struct {
	conn *websocket.Conn
	pipe *pipe
	log  *slog.Logger

	day     timebase.Unwrapper // reader goroutine only
	skipped atomic.Int64
}

func DialWS(ctx context.Context, cfg config.SourceConfig, log *slog.Logger) (*WS, error) {
	if log == nil {
		log = slog.Default()
	}
	d := websocket.Dialer{HandshakeTimeout: cfg.ConnectTimeout()}
	conn, _, err := d.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("ws dial %s: %w", cfg.URL, err)
	}

	w := &WS{
		conn: conn,
		pipe: newPipe(cfg.Buffer),
		log:  log.With("source", "ws", "url", cfg.URL),
	}
	go w.read()
	w.log.Info("connected")
	return w, nil
}

func (w *WS) read() {
	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = io.EOF
			}
			w.pipe.send(result{err: err})
			return
		}

		s, err := decodePayload(data)
		if err != nil {
			w.skipped.Add(1)
			w.log.Debug("dropping message", "err", err)
			continue
		}
		s.Time = w.day.Next(s.Time)
		if !w.pipe.send(result{sample: s}) {
			return
		}
	}
}

func (w *WS) Next(ctx context.Context) (dyno.Sample, error) { return w.pipe.next(ctx) }

// Skipped is the number of messages that did not decode.
func (w *WS) Skipped() int64 { return w.skipped.Load() }

func (w *WS) Close() error {
	w.pipe.close()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return w.conn.Close()
}
