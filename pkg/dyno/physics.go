package dyno

import (
	"math"

	"github.com/ja7ad/dyno/pkg/types"
	"github.com/ja7ad/dyno/pkg/util"
)

const (
	referenceRpm  = 3000.0
	torqueFactor  = 9549.3 // N·m per kW/rpm
	hpPerKw       = 1.36
	airLossFactor = 0.0005
	airLossHp     = 1.359
)

// derive recomputes the physics fields of every record in place.
// The predecessor of the first record is all zeros.
func derive(records []Record, cal Calibration) {
	var prev *Record
	for i := range records {
		r := &records[i]
		r.clearDerived()
		r.derive(prev, cal)
		prev = r
	}
}

func (r *Record) derive(prev *Record, cal Calibration) {
	var (
		prevTime    types.Centis
		prevEk      float64
		prevPowerKw float64
	)
	if prev != nil {
		prevTime = prev.Time
		prevEk = prev.KineticEnergyJ
		prevPowerKw = prev.PowerKw
	}

	r.MeasureTimeSec = (r.Time - prevTime).Seconds()
	if r.MeasureTimeSec == 0 {
		return
	}

	speed := float64(r.Speed)
	r.EngineSpeedRpm = util.SafeDiv(speed*referenceRpm, cal.SpeedAt3000Rpm)
	r.SpeedMs = r.Speed.MetersPerSecond()
	r.KineticEnergyJ = cal.WeightKg * r.SpeedMs * r.SpeedMs / 2
	r.DeltaEkPerSec = (r.KineticEnergyJ - prevEk) / r.MeasureTimeSec
	r.PowerKw = r.DeltaEkPerSec / 1000
	r.PowerKm = types.KW(r.PowerKw).MetricHP()
	r.TorqueNm = util.SafeDiv(torqueFactor*prevPowerKw, r.EngineSpeedRpm)

	wheel := cal.WheelLoss * speed * speed
	air := airLossFactor * cal.Cx * cal.FrontalSurface * cal.AirDensity * math.Pow(r.SpeedMs, 3) * airLossHp
	r.LossPowerKm = wheel + air
	r.PowerKmWithLoss = r.PowerKm + wheel + air
	r.TorqueWithLoss = util.SafeDiv(torqueFactor*r.PowerKmWithLoss/hpPerKw, r.EngineSpeedRpm)
}

func (r *Record) clearDerived() {
	r.SpeedMs = 0
	r.EngineSpeedRpm = 0
	r.MeasureTimeSec = 0
	r.KineticEnergyJ = 0
	r.DeltaEkPerSec = 0
	r.PowerKw = 0
	r.PowerKm = 0
	r.TorqueNm = 0
	r.LossPowerKm = 0
	r.PowerKmWithLoss = 0
	r.TorqueWithLoss = 0
	r.PowerKmAvg = 0
	r.TorqueAvg = 0
	r.PowerKmAvg2 = 0
	r.TorqueAvg2 = 0
}
