package dyno

import "github.com/ja7ad/dyno/pkg/types"

// Calibration holds the vehicle constants used by the physics pass.
// Units:
//   - WeightKg: kg, vehicle with driver
//   - SpeedAt3000Rpm: km/h at 3000 rpm in the gear used for the run
//   - Cx: drag coefficient, dimensionless
//   - FrontalSurface: m²
//   - WheelLoss: metric hp per (km/h)², rolling resistance
//   - AirDensity: kg/m³
//
// Zero values are accepted and zero out the matching term.
type Calibration struct {
	WeightKg       float64 `json:"weight_kg" yaml:"weight_kg"`
	SpeedAt3000Rpm float64 `json:"speed_at_3000_rpm" yaml:"speed_at_3000_rpm"`
	Cx             float64 `json:"cx" yaml:"cx"`
	FrontalSurface float64 `json:"frontal_surface" yaml:"frontal_surface"`
	WheelLoss      float64 `json:"wheel_loss" yaml:"wheel_loss"`
	AirDensity     float64 `json:"air_density" yaml:"air_density"`
}

// Sample is one reading from the speed sensor.
type Sample struct {
	Speed      types.Kmh
	Time       types.Centis
	Altitude   *float64
	Satellites *int
}

// Status is the run phase a record was assigned to.
type Status uint8

const (
	Unset Status = iota
	Power
	Loss
)

func (s Status) String() string {
	switch s {
	case Power:
		return "power"
	case Loss:
		return "loss"
	default:
		return "unset"
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Record is one ingested sample plus the fields derived from it and its
// predecessor. Derived fields stay zero until the engine recomputes them.
type Record struct {
	Speed      types.Kmh    `json:"speed"`
	Time       types.Centis `json:"time"`
	Altitude   *float64     `json:"alt,omitempty"`
	Satellites *int         `json:"satellites,omitempty"`

	// floor(speed) compared to floor of the previous record's speed
	Increment bool   `json:"increment"`
	Decrement bool   `json:"decrement"`
	Status    Status `json:"status"`

	SpeedMs         float64 `json:"speed_ms"`
	EngineSpeedRpm  float64 `json:"engine_speed_rpm"`
	MeasureTimeSec  float64 `json:"measure_time_sec"`
	KineticEnergyJ  float64 `json:"ek_j"`
	DeltaEkPerSec   float64 `json:"delta_ek_per_sec"`
	PowerKw         float64 `json:"power_kw"`
	PowerKm         float64 `json:"power_km"`
	TorqueNm        float64 `json:"torque_nm"`
	LossPowerKm     float64 `json:"loss_power_km"`
	PowerKmWithLoss float64 `json:"power_km_with_loss"`
	TorqueWithLoss  float64 `json:"torque_with_loss"`
	PowerKmAvg      float64 `json:"power_km_avg"`
	TorqueAvg       float64 `json:"torque_avg"`
	PowerKmAvg2     float64 `json:"power_km_avg2"`
	TorqueAvg2      float64 `json:"torque_avg2"`
}

// Phase is the position of the segmentation state machine.
type Phase uint8

const (
	SeekingPower Phase = iota
	InPower
	SeekingLoss
	InLoss
	Done
)

func (p Phase) String() string {
	switch p {
	case SeekingPower:
		return "seeking-power"
	case InPower:
		return "power"
	case SeekingLoss:
		return "seeking-loss"
	case InLoss:
		return "loss"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}
