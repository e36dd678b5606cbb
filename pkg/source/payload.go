package source

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/ja7ad/dyno/pkg/dyno"
	"github.com/ja7ad/dyno/pkg/timebase"
	"github.com/ja7ad/dyno/pkg/types"
)

// payload is the JSON message accepted by the mqtt and ws sources.
type payload struct {
	Speed     *float64        `json:"speed"`
	Time      json.RawMessage `json:"time"`
	Timestamp string          `json:"timestamp"`
	Alt       *float64        `json:"alt"`
	Sats      *int            `json:"sats"`
}

func decodePayload(b []byte) (dyno.Sample, error) {
	var p payload
	if err := json.Unmarshal(b, &p); err != nil {
		return dyno.Sample{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if p.Speed == nil {
		return dyno.Sample{}, fmt.Errorf("%w: missing speed", ErrBadPayload)
	}
	if !finite(*p.Speed) || (p.Alt != nil && !finite(*p.Alt)) {
		return dyno.Sample{}, fmt.Errorf("%w: non-finite value", ErrBadPayload)
	}

	t, err := payloadTime(p)
	if err != nil {
		return dyno.Sample{}, err
	}
	return dyno.Sample{
		Speed:      types.Kmh(*p.Speed),
		Time:       t,
		Altitude:   p.Alt,
		Satellites: p.Sats,
	}, nil
}

func payloadTime(p payload) (types.Centis, error) {
	raw := p.Timestamp
	if len(p.Time) > 0 && string(p.Time) != "null" {
		var n float64
		if err := json.Unmarshal(p.Time, &n); err == nil {
			if !finite(n) {
				return 0, fmt.Errorf("%w: non-finite time", ErrBadPayload)
			}
			return types.Centis(n), nil
		}
		if err := json.Unmarshal(p.Time, &raw); err != nil {
			return 0, fmt.Errorf("%w: time: %v", ErrBadPayload, err)
		}
	}
	if raw == "" {
		return 0, fmt.Errorf("%w: missing time", ErrBadPayload)
	}
	t, err := timebase.Parse(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBadPayload, err)
	}
	return t, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
