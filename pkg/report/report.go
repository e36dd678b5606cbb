// Package report turns the records of a finished session into a summary
// and writes it out as CSV, JSON, HTML or a console table.
package report

import (
	"time"

	"github.com/google/uuid"
	"github.com/ja7ad/dyno/pkg/dyno"
	"github.com/ja7ad/dyno/pkg/session"
	"github.com/ja7ad/dyno/pkg/types"
)

// Summary holds the headline numbers of a run. Peaks are taken from the
// doubly smoothed curves.
type Summary struct {
	PowerRecords int `json:"power_records"`
	LossRecords  int `json:"loss_records"`

	PeakPowerKm    float64   `json:"peak_power_km"`
	PeakPowerRpm   float64   `json:"peak_power_rpm"`
	PeakPowerSpeed types.Kmh `json:"peak_power_speed"`
	// modeled wheel and air loss at the peak power record
	LossAtPeakKm float64 `json:"loss_at_peak_km"`

	PeakTorqueNm  float64 `json:"peak_torque_nm"`
	PeakTorqueRpm float64 `json:"peak_torque_rpm"`

	// mean deceleration power over the coast-down, positive
	CoastDownKm float64 `json:"coast_down_km"`

	PowerRunSec float64 `json:"power_run_sec"`
	LossRunSec  float64 `json:"loss_run_sec"`
}

// Summarize computes the summary of labeled power and loss records. Both
// slices are expected oldest first, as returned by the engine.
func Summarize(power, loss []dyno.Record) Summary {
	sum := Summary{PowerRecords: len(power), LossRecords: len(loss)}

	if len(power) > 0 {
		peak, torque := 0, 0
		for i, r := range power {
			if r.PowerKmAvg2 > power[peak].PowerKmAvg2 {
				peak = i
			}
			if r.TorqueAvg2 > power[torque].TorqueAvg2 {
				torque = i
			}
		}
		sum.PeakPowerKm = power[peak].PowerKmAvg2
		sum.PeakPowerRpm = power[peak].EngineSpeedRpm
		sum.PeakPowerSpeed = power[peak].Speed
		sum.LossAtPeakKm = power[peak].LossPowerKm
		sum.PeakTorqueNm = power[torque].TorqueAvg2
		sum.PeakTorqueRpm = power[torque].EngineSpeedRpm
		sum.PowerRunSec = span(power)
	}

	if len(loss) > 0 {
		var total float64
		for _, r := range loss {
			total -= r.PowerKm
		}
		sum.CoastDownKm = total / float64(len(loss))
		sum.LossRunSec = span(loss)
	}
	return sum
}

func span(recs []dyno.Record) float64 {
	return (recs[len(recs)-1].Time - recs[0].Time).Seconds()
}

// Report is everything written at the end of a run.
type Report struct {
	SessionID   uuid.UUID        `json:"session_id"`
	StartedAt   time.Time        `json:"started_at"`
	GeneratedAt time.Time        `json:"generated_at"`
	Calibration dyno.Calibration `json:"calibration"`
	Stats       session.Stats    `json:"stats"`
	Summary     Summary          `json:"summary"`
	Power       []dyno.Record    `json:"power"`
	Loss        []dyno.Record    `json:"loss"`

	// every record, labeled or not; CSV only
	Records []dyno.Record `json:"-"`
}

// FromSession builds a report from one snapshot of s, so it is consistent
// even while samples are still being added.
func FromSession(s *session.Session) Report {
	snap := s.Snapshot()
	return Report{
		SessionID:   snap.ID,
		StartedAt:   snap.StartedAt,
		GeneratedAt: time.Now().UTC(),
		Calibration: snap.Calibration,
		Stats:       snap.Stats,
		Summary:     Summarize(snap.Power, snap.Loss),
		Power:       snap.Power,
		Loss:        snap.Loss,
		Records:     snap.Records,
	}
}
