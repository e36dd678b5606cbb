package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/ja7ad/dyno/pkg/config"
	"github.com/ja7ad/dyno/pkg/dyno"
	"github.com/ja7ad/dyno/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceSource replays samples, then returns end.
type sliceSource struct {
	samples []dyno.Sample
	end     error
	skipped int64
	closed  bool
}

func (s *sliceSource) Next(ctx context.Context) (dyno.Sample, error) {
	if err := ctx.Err(); err != nil {
		return dyno.Sample{}, err
	}
	if len(s.samples) == 0 {
		return dyno.Sample{}, s.end
	}
	smp := s.samples[0]
	s.samples = s.samples[1:]
	return smp, nil
}

func (s *sliceSource) Skipped() int64 { return s.skipped }
func (s *sliceSource) Close() error   { s.closed = true; return nil }

func speeds(vs ...float64) []dyno.Sample {
	out := make([]dyno.Sample, len(vs))
	for i, v := range vs {
		out[i] = dyno.Sample{Speed: types.Kmh(v), Time: types.Centis(100 + 10*i)}
	}
	return out
}

func ramp(from, to float64) []float64 {
	var out []float64
	step := 1.0
	if to < from {
		step = -1
	}
	for v := from; (step > 0 && v <= to) || (step < 0 && v >= to); v += step {
		out = append(out, v)
	}
	return out
}

// fullRun commits power with 21 records and loss with 20.
func fullRun() []dyno.Sample {
	var vs []float64
	vs = append(vs, 60, 55)
	vs = append(vs, ramp(56, 75)...)
	vs = append(vs, 74)
	vs = append(vs, ramp(73, 54)...)
	vs = append(vs, 55, 56, 57)
	return speeds(vs...)
}

func testConfig() config.Config {
	cfg := *config.Default()
	cfg.Calibration = dyno.Calibration{
		WeightKg: 1000, SpeedAt3000Rpm: 120, Cx: 0.3, FrontalSurface: 2, WheelLoss: 0.0002, AirDensity: 1.2,
	}
	return cfg
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSession_RunUntilEOF(t *testing.T) {
	s := New(testConfig(), quiet())
	src := &sliceSource{samples: fullRun(), end: io.EOF, skipped: 4}

	var changes []dyno.Phase
	err := s.Run(context.Background(), src, func(u Update) {
		if u.Changed {
			changes = append(changes, u.Phase)
		}
	})
	require.NoError(t, err)

	assert.Equal(t, []dyno.Phase{dyno.InPower, dyno.SeekingLoss, dyno.InLoss, dyno.Done}, changes)
	assert.Equal(t, len(fullRun()), s.Len())
	assert.Len(t, s.PowerRecords(), 21)
	assert.Len(t, s.LossRecords(), 20)
	assert.Equal(t, dyno.Done, s.Phase())
	assert.Equal(t, int64(4), s.Stats().Skipped)
	assert.False(t, src.closed, "the caller owns the source")
}

func TestSession_StopWhenDone(t *testing.T) {
	cfg := testConfig()
	cfg.Session.StopWhenDone = true
	s := New(cfg, quiet())

	require.NoError(t, s.Run(context.Background(), &sliceSource{samples: fullRun(), end: io.EOF}, nil))
	assert.Equal(t, dyno.Done, s.Phase())
	assert.Equal(t, len(fullRun())-2, s.Len(), "stops on the sample that seals loss")
}

func TestSession_MaxRecords(t *testing.T) {
	cfg := testConfig()
	cfg.Session.MaxRecords = 10
	s := New(cfg, quiet())

	require.NoError(t, s.Run(context.Background(), &sliceSource{samples: fullRun(), end: io.EOF}, nil))
	assert.Equal(t, 10, s.Len())
}

func TestSession_CancelledContext(t *testing.T) {
	s := New(testConfig(), quiet())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.Run(ctx, &sliceSource{samples: fullRun(), end: io.EOF}, nil))
	assert.Equal(t, 0, s.Len())
}

func TestSession_SourceError(t *testing.T) {
	boom := errors.New("port gone")
	s := New(testConfig(), quiet())
	err := s.Run(context.Background(), &sliceSource{samples: speeds(10, 11), end: boom}, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, s.Len())
}

func TestSession_Reset(t *testing.T) {
	s := New(testConfig(), quiet())
	id := s.ID()
	assert.Equal(t, byte(7), id[6]>>4, "uuid v7")

	for _, smp := range fullRun() {
		s.Add(smp)
	}
	cal := s.Calibration()

	s.Reset()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, dyno.SeekingPower, s.Phase())
	assert.Equal(t, Stats{}, s.Stats())
	assert.Equal(t, cal, s.Calibration())
	assert.NotEqual(t, id, s.ID())
	assert.NotEqual(t, uuid.Nil, s.ID())
}

func TestSession_SetCalibration(t *testing.T) {
	s := New(testConfig(), quiet())
	for _, smp := range fullRun() {
		s.Add(smp)
	}
	before := s.PowerRecords()

	cal := s.Calibration()
	cal.WeightKg *= 2
	s.SetCalibration(cal)

	after := s.PowerRecords()
	require.Len(t, after, len(before))
	assert.InDelta(t, 2*before[5].PowerKw, after[5].PowerKw, 1e-6)
}

func TestSession_ConcurrentReaders(t *testing.T) {
	s := New(testConfig(), quiet())
	samples := fullRun()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				switch i % 4 {
				case 0:
					_ = s.PowerRecords()
				case 1:
					_ = s.LossRecords()
				case 2:
					_ = s.Records()
				default:
					_, _ = s.Phase(), s.Stats()
				}
			}
		}(i)
	}

	require.NoError(t, s.Run(context.Background(), &sliceSource{samples: samples, end: io.EOF}, nil))
	close(stop)
	wg.Wait()

	assert.Len(t, s.PowerRecords(), 21)
	assert.Len(t, s.LossRecords(), 20)
}

func TestAccumulator(t *testing.T) {
	a := NewAccumulator(1)
	assert.Equal(t, Stats{}, a.Stats())

	a.Apply(dyno.Sample{Speed: 36, Time: 100})
	a.Apply(dyno.Sample{Speed: 72, Time: 200})
	a.Apply(dyno.Sample{Speed: 72, Time: 200})
	a.Apply(dyno.Sample{Speed: 36, Time: 250})

	st := a.Stats()
	assert.Equal(t, 4, st.Samples)
	assert.Equal(t, types.Centis(150), st.Duration)
	// (10+20)/2*1 + (20+10)/2*0.5
	assert.InDelta(t, 22.5, st.Distance, 1e-6)
	assert.InDelta(t, 54.0, float64(st.MeanSpeed), 1e-9)
	assert.Equal(t, types.Kmh(72), st.MaxSpeed)
	assert.InDelta(t, 2.0, st.RateHz, 1e-9, "alpha 1 keeps the last interval")
	assert.Equal(t, 1, st.Stalled)

	a.Reset()
	assert.Equal(t, Stats{}, a.Stats())
	a.Apply(dyno.Sample{Speed: 10, Time: 0})
	assert.Equal(t, 0.0, a.Stats().RateHz)
}

func TestSession_SnapshotIsConsistent(t *testing.T) {
	s := New(testConfig(), quiet())
	src := &sliceSource{samples: fullRun(), end: io.EOF}

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), src, nil) }()

	check := func(snap Snapshot) {
		var power, loss int
		for _, r := range snap.Records {
			switch r.Status {
			case dyno.Power:
				power++
			case dyno.Loss:
				loss++
			}
		}
		require.Equal(t, len(snap.Records), snap.Stats.Samples)
		require.Len(t, snap.Power, power)
		require.Len(t, snap.Loss, loss)
		for _, r := range snap.Loss {
			require.Greater(t, r.SpeedMs, 0.0, "loss rows carry the snapshot's recompute")
		}
	}

	for running := true; running; {
		select {
		case err := <-done:
			require.NoError(t, err)
			running = false
		default:
			check(s.Snapshot())
		}
	}

	snap := s.Snapshot()
	check(snap)
	assert.Equal(t, s.ID(), snap.ID)
	assert.Len(t, snap.Power, 21)
	assert.Len(t, snap.Loss, 20)
}
