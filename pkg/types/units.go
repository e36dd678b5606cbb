package types

import (
	"fmt"
	"math"
)

const (
	kmhToMs      = 0.277777778
	knotsToKmh   = 1.852
	mmsToKmh     = 0.0036
	kwToMetricHP = 0.73549875
	centisPerSec = 100
)

// Kmh is a speed in kilometres per hour.
type Kmh float64

// KmhFromKnots converts a speed over ground in knots (NMEA RMC) to km/h.
func KmhFromKnots(kn float64) Kmh { return Kmh(kn * knotsToKmh) }

// KmhFromMms converts a ground speed in mm/s (UBX NAV-PVT gSpeed) to km/h.
func KmhFromMms(mms int32) Kmh { return Kmh(float64(mms) * mmsToKmh) }

// MetersPerSecond returns the speed in m/s.
func (k Kmh) MetersPerSecond() float64 { return float64(k) * kmhToMs }

// Floor returns the whole km/h part, used for direction detection.
func (k Kmh) Floor() float64 { return math.Floor(float64(k)) }

// Humanized returns the speed with one decimal and unit.
func (k Kmh) Humanized() string { return fmt.Sprintf("%.1f km/h", float64(k)) }

// Centis is a sensor timestamp in hundredths of a second.
type Centis float64

// CentisFromSeconds converts seconds to hundredths of a second.
func CentisFromSeconds(s float64) Centis { return Centis(s * centisPerSec) }

// Seconds returns the timestamp in seconds.
func (c Centis) Seconds() float64 { return float64(c) / centisPerSec }

// Humanized renders the timestamp as a clock reading (HH:MM:SS.ff).
func (c Centis) Humanized() string {
	v := int64(math.Round(float64(c)))
	neg := v < 0
	if neg {
		v = -v
	}
	cs := v % 100
	s := (v / 100) % 60
	m := (v / 6000) % 60
	h := v / 360000
	out := fmt.Sprintf("%02d:%02d:%02d.%02d", h, m, s, cs)
	if neg {
		return "-" + out
	}
	return out
}

// KW is a power in kilowatts.
type KW float64

// MetricHP returns the power in metric horsepower (PS).
func (k KW) MetricHP() float64 { return float64(k) / kwToMetricHP }
