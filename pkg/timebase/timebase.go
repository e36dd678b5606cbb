// Package timebase converts sensor timestamps into hundredths of a second
// since midnight UTC, the time base of the measurement engine.
//
// Accepted layouts:
//
//	12345.5                    hundredths, used as is
//	14:03:07.25                clock reading, HH:MM:SS[.f...]
//	2025-06-01T14:03:07.25Z    ISO-8601 date-time, clock part in UTC
//	140307.25                  NMEA hhmmss[.f...], via ParseNMEA only
package timebase

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ja7ad/dyno/pkg/types"
	"github.com/relvacode/iso8601"
)

// Day is one day in hundredths of a second.
const Day = types.Centis(24 * 60 * 60 * 100)

// Parse converts s into hundredths of a second. Plain numbers are taken
// as hundredths already; see the package doc for the other layouts.
func Parse(s string) (types.Centis, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return 0, ErrEmpty
	case strings.ContainsAny(s, "Tt") || strings.Count(s, "-") >= 2:
		t, err := iso8601.ParseString(s)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrFormat, s, err)
		}
		return FromTime(t), nil
	case strings.Contains(s, ":"):
		return ParseClock(s)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrFormat, s)
	}
	return types.Centis(v), nil
}

// ParseClock parses HH:MM:SS with an optional fraction of a second.
func ParseClock(s string) (types.Centis, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrFormat, s)
	}
	sec, frac, _ := strings.Cut(parts[2], ".")
	return clock(s, parts[0], parts[1], sec, frac)
}

// ParseNMEA parses the hhmmss[.ss] time field of an NMEA sentence.
func ParseNMEA(s string) (types.Centis, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrEmpty
	}
	whole, frac, _ := strings.Cut(s, ".")
	if len(whole) != 6 {
		return 0, fmt.Errorf("%w: %q", ErrFormat, s)
	}
	return clock(s, whole[0:2], whole[2:4], whole[4:6], frac)
}

func clock(raw, hh, mm, ss, frac string) (types.Centis, error) {
	h, err1 := strconv.Atoi(hh)
	m, err2 := strconv.Atoi(mm)
	sec, err3 := strconv.Atoi(ss)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, fmt.Errorf("%w: %q", ErrFormat, raw)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 60 {
		return 0, fmt.Errorf("%w: %q out of range", ErrFormat, raw)
	}

	nsec := 0
	if frac != "" {
		digits := len(frac)
		if digits > 9 {
			frac = frac[:9]
			digits = 9
		}
		f, err := strconv.Atoi(frac)
		if err != nil || f < 0 {
			return 0, fmt.Errorf("%w: %q", ErrFormat, raw)
		}
		for i := 0; i < 9-digits; i++ {
			f *= 10
		}
		nsec = f
	}
	return FromClock(h, m, sec, nsec), nil
}

// FromClock converts a UTC wall clock reading into hundredths since midnight.
func FromClock(hour, min, sec, nsec int) types.Centis {
	whole := (hour*3600 + min*60 + sec) * 100
	return types.Centis(float64(whole) + float64(nsec)/1e7)
}

// FromTime returns the UTC clock part of t in hundredths since midnight.
func FromTime(t time.Time) types.Centis {
	t = t.UTC()
	return FromClock(t.Hour(), t.Minute(), t.Second(), t.Nanosecond())
}

// Unwrapper keeps a series of clock readings monotonic across midnight.
// A reading more than half a day behind the previous one is taken as the
// next day.
type Unwrapper struct {
	offset types.Centis
	last   types.Centis
	ok     bool
}

func (u *Unwrapper) Next(c types.Centis) types.Centis {
	if u.ok && c+u.offset < u.last-Day/2 {
		u.offset += Day
	}
	out := c + u.offset
	u.last, u.ok = out, true
	return out
}

func (u *Unwrapper) Reset() { *u = Unwrapper{} }
