package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/ja7ad/dyno/pkg/config"
	"github.com/ja7ad/dyno/pkg/dyno"
)

type Source interface {
	Next(ctx context.Context) (dyno.Sample, error)
	Close() error
}

// Decoder reads samples from a byte stream, skipping input it cannot use.
// It returns an error only when the underlying reader fails or ends.
type Decoder interface {
	Decode() (dyno.Sample, error)
}

// Open returns the Source selected by cfg.Kind.
func Open(ctx context.Context, cfg config.SourceConfig, log *slog.Logger) (Source, error) {
	if log == nil {
		log = slog.Default()
	}

	switch cfg.Kind {
	case config.KindNMEA:
		port, err := openSerial(cfg.Device, cfg.Baud)
		if err != nil {
			return nil, err
		}
		return NewStream(NewNMEADecoder(port), port, cfg.Buffer), nil

	case config.KindUBX:
		port, err := openSerial(cfg.Device, cfg.Baud)
		if err != nil {
			return nil, err
		}
		if err := ConfigureUBX(port, cfg.RateHz); err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("ubx configure %s: %w", cfg.Device, err)
		}
		return NewStream(NewUBXDecoder(port), port, cfg.Buffer), nil

	case config.KindCSV:
		f, err := os.Open(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("csv open: %w", err)
		}
		return NewStream(NewCSVDecoder(f), f, cfg.Buffer), nil

	case config.KindMQTT:
		m, err := DialMQTT(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return m, nil

	case config.KindWS:
		w, err := DialWS(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return w, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

type result struct {
	sample dyno.Sample
	err    error
}

// pipe hands samples from a producer goroutine or callback to Next.
type pipe struct {
	out  chan result
	done chan struct{}
	once sync.Once

	// terminal error, owned by the consumer
	err error
}

func newPipe(buffer int) *pipe {
	if buffer < 0 {
		buffer = 0
	}
	return &pipe{out: make(chan result, buffer), done: make(chan struct{})}
}

// send blocks until r is queued or the pipe is closed.
func (p *pipe) send(r result) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.out <- r:
		return true
	case <-p.done:
		return false
	}
}

func (p *pipe) next(ctx context.Context) (dyno.Sample, error) {
	if p.err != nil {
		return dyno.Sample{}, p.err
	}
	select {
	case <-p.done:
		return dyno.Sample{}, ErrClosed
	default:
	}
	select {
	case <-ctx.Done():
		return dyno.Sample{}, ctx.Err()
	case <-p.done:
		return dyno.Sample{}, ErrClosed
	case r := <-p.out:
		if r.err != nil {
			p.err = r.err
		}
		return r.sample, r.err
	}
}

func (p *pipe) close() { p.once.Do(func() { close(p.done) }) }

// Stream runs a Decoder in its own goroutine so Next can honour context
// cancellation while the decoder blocks on I/O.
type Stream struct {
	pipe   *pipe
	dec    Decoder
	closer io.Closer
}

// NewStream starts decoding. c, if not nil, is closed by Close and should
// unblock the decoder's reader.
func NewStream(dec Decoder, c io.Closer, buffer int) *Stream {
	s := &Stream{pipe: newPipe(buffer), dec: dec, closer: c}
	go s.run()
	return s
}

func (s *Stream) run() {
	for {
		smp, err := s.dec.Decode()
		if !s.pipe.send(result{sample: smp, err: err}) || err != nil {
			return
		}
	}
}

func (s *Stream) Next(ctx context.Context) (dyno.Sample, error) { return s.pipe.next(ctx) }

// Skipped reports how much input the decoder dropped, when it counts.
func (s *Stream) Skipped() int64 {
	if sk, ok := s.dec.(interface{ Skipped() int64 }); ok {
		return sk.Skipped()
	}
	return 0
}

func (s *Stream) Close() error {
	s.pipe.close()
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
