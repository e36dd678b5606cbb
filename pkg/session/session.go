// Package session runs one dyno measurement: it feeds samples from a
// source into a dyno.Engine and makes the results readable from other
// goroutines while the run is in progress.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ja7ad/dyno/pkg/config"
	"github.com/ja7ad/dyno/pkg/dyno"
	"github.com/ja7ad/dyno/pkg/source"
)

// Update describes the session right after one sample was added.
type Update struct {
	Index    int
	Sample   dyno.Sample
	Phase    dyno.Phase
	Changed  bool // Phase differs from the one before this sample
	Progress float64
}

type Session struct {
	cfg config.SessionConfig
	log *slog.Logger

	mu        sync.RWMutex
	id        uuid.UUID
	startedAt time.Time
	engine    *dyno.Engine
	stats     *Accumulator
	skipped   int64
}

// New creates a session with the calibration and session settings of cfg.
func New(cfg config.Config, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	s := &Session{
		cfg:    cfg.Session,
		log:    log,
		engine: dyno.New(cfg.Session.MinimumRecords),
		stats:  NewAccumulator(0),
	}
	s.engine.SetConfig(cfg.Calibration)
	s.begin()
	return s
}

func (s *Session) begin() {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	s.id = id
	s.startedAt = time.Now().UTC()
}

func (s *Session) ID() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

func (s *Session) StartedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startedAt
}

// Add appends one sample to the engine.
func (s *Session) Add(smp dyno.Sample) Update {
	s.mu.Lock()
	before := s.engine.Phase()
	s.engine.AddRecord(smp)
	s.stats.Apply(smp)
	u := Update{
		Index:    s.engine.Len() - 1,
		Sample:   smp,
		Phase:    s.engine.Phase(),
		Progress: s.engine.Progress(),
	}
	s.mu.Unlock()

	u.Changed = u.Phase != before
	if u.Changed {
		s.log.Info("phase changed", "from", before, "to", u.Phase, "record", u.Index, "speed", smp.Speed.Humanized())
	}
	return u
}

func (s *Session) SetCalibration(cal dyno.Calibration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.SetConfig(cal)
}

func (s *Session) Calibration() dyno.Calibration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Calibration()
}

// PowerRecords recomputes the store, so it takes the write lock.
func (s *Session) PowerRecords() []dyno.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.PowerRecords()
}

func (s *Session) LossRecords() []dyno.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.LossRecords()
}

func (s *Session) Records() []dyno.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Records()
}

// Reset starts a new run with a new ID. Calibration is kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Reset()
	s.stats.Reset()
	s.skipped = 0
	s.begin()
	s.log.Info("session reset", "session", s.id)
}

func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Len()
}

func (s *Session) Phase() dyno.Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Phase()
}

func (s *Session) Progress() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Progress()
}

func (s *Session) MinimumRecords() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.MinimumRecords()
}

// Snapshot is a consistent view of a session taken under one lock.
type Snapshot struct {
	ID          uuid.UUID
	StartedAt   time.Time
	Calibration dyno.Calibration
	Stats       Stats
	Power       []dyno.Record
	Loss        []dyno.Record
	Records     []dyno.Record
}

// Snapshot recomputes the store once and copies everything a report needs.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats.Stats()
	st.Skipped = s.skipped
	return Snapshot{
		ID:          s.id,
		StartedAt:   s.startedAt,
		Calibration: s.engine.Calibration(),
		Stats:       st,
		Power:       s.engine.PowerRecords(),
		Loss:        s.engine.LossRecords(),
		Records:     s.engine.Records(),
	}
}

func (s *Session) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.stats.Stats()
	st.Skipped = s.skipped
	return st
}

// Run reads src until it ends, ctx is done, MaxRecords samples were added
// or, with StopWhenDone, the loss phase is sealed. notify, if not nil, is
// called after every sample from Run's goroutine.
//
// The end of the source and a cancelled ctx both return nil; other source
// errors are returned wrapped.
func (s *Session) Run(ctx context.Context, src source.Source, notify func(Update)) error {
	log := s.log.With("session", s.ID())
	log.Info("run started", "minimum_records", s.MinimumRecords())

	defer func() {
		if sk, ok := src.(interface{ Skipped() int64 }); ok {
			s.mu.Lock()
			s.skipped = sk.Skipped()
			s.mu.Unlock()
		}
		st := s.Stats()
		log.Info("run finished",
			"records", st.Samples,
			"phase", s.Phase(),
			"duration", st.Duration.Humanized(),
			"rate_hz", st.RateHz,
			"skipped", st.Skipped,
		)
	}()

	for {
		smp, err := src.Next(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			log.Info("source ended")
			return nil
		case errors.Is(err, context.Canceled):
			log.Info("run interrupted")
			return nil
		default:
			return fmt.Errorf("session: read sample: %w", err)
		}

		u := s.Add(smp)
		if notify != nil {
			notify(u)
		}

		if s.cfg.MaxRecords > 0 && u.Index+1 >= s.cfg.MaxRecords {
			log.Info("max records reached", "max_records", s.cfg.MaxRecords)
			return nil
		}
		if s.cfg.StopWhenDone && u.Phase == dyno.Done {
			return nil
		}
	}
}
