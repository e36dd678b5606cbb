package session

import (
	"github.com/ja7ad/dyno/pkg/dyno"
	"github.com/ja7ad/dyno/pkg/types"
	"github.com/ja7ad/dyno/pkg/util"
)

// Stats summarizes the input of a session, independent of segmentation.
type Stats struct {
	Samples  int          `json:"samples"`
	Duration types.Centis `json:"duration"` // last time - first time
	// Distance in meters, speed integrated between consecutive samples.
	Distance  float64   `json:"distance_m"`
	MeanSpeed types.Kmh `json:"mean_speed"`
	MaxSpeed  types.Kmh `json:"max_speed"`
	// RateHz is the smoothed sample rate, 0 until two samples arrived.
	RateHz float64 `json:"rate_hz"`
	// Stalled counts samples whose time did not move forward.
	Stalled int `json:"stalled"`
	// Skipped is input the source dropped, as of the end of Run.
	Skipped int64 `json:"skipped"`
}

// Accumulator keeps running input statistics.
type Accumulator struct {
	count    int
	sumSpeed float64
	maxSpeed types.Kmh
	distance float64
	stalled  int

	first, last dyno.Sample
	interval    *util.EMA // seconds
}

// NewAccumulator smooths the sample interval with weight alpha in (0,1].
// Out of range values select 0.2.
func NewAccumulator(alpha float64) *Accumulator {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.2
	}
	return &Accumulator{interval: util.NewEMA(alpha)}
}

// Apply adds one sample.
//
// A sample is integrated against its predecessor as
//
//	d += (v_prev + v) / 2 * dt
func (a *Accumulator) Apply(s dyno.Sample) {
	if a.count == 0 {
		a.first = s
	} else {
		dt := (s.Time - a.last.Time).Seconds()
		if dt > 0 {
			a.distance += (a.last.Speed.MetersPerSecond() + s.Speed.MetersPerSecond()) / 2 * dt
			a.interval.Next(dt)
		} else {
			a.stalled++
		}
	}

	a.count++
	a.sumSpeed += float64(s.Speed)
	if s.Speed > a.maxSpeed {
		a.maxSpeed = s.Speed
	}
	a.last = s
}

func (a *Accumulator) Stats() Stats {
	if a.count == 0 {
		return Stats{}
	}
	return Stats{
		Samples:   a.count,
		Duration:  a.last.Time - a.first.Time,
		Distance:  a.distance,
		MeanSpeed: types.Kmh(a.sumSpeed / float64(a.count)),
		MaxSpeed:  a.maxSpeed,
		RateHz:    util.SafeDiv(1, a.interval.Value()),
		Stalled:   a.stalled,
	}
}

func (a *Accumulator) Reset() {
	a.interval.Reset()
	*a = Accumulator{interval: a.interval}
}
