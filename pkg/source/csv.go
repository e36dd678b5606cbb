package source

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/ja7ad/dyno/pkg/dyno"
	"github.com/ja7ad/dyno/pkg/timebase"
	"github.com/ja7ad/dyno/pkg/types"
)

// CSVDecoder replays a recorded run. Without a header the columns are
// speed,time[,alt,sats]; with one they may come in any order and extra
// columns are ignored, so a report CSV replays as is.
type CSVDecoder struct {
	r *csv.Reader

	cols    map[string]int
	started bool

	day     timebase.Unwrapper
	skipped atomic.Int64
}

var csvAliases = map[string]string{
	"speed":      "speed",
	"speed_kmh":  "speed",
	"time":       "time",
	"timestamp":  "time",
	"alt":        "alt",
	"altitude":   "alt",
	"sats":       "sats",
	"satellites": "sats",
}

func NewCSVDecoder(r io.Reader) *CSVDecoder {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	return &CSVDecoder{
		r:    cr,
		cols: map[string]int{"speed": 0, "time": 1, "alt": 2, "sats": 3},
	}
}

func (d *CSVDecoder) Decode() (dyno.Sample, error) {
	for {
		row, err := d.r.Read()
		if err != nil {
			if _, ok := err.(*csv.ParseError); ok {
				d.skipped.Add(1)
				continue
			}
			return dyno.Sample{}, err
		}

		if !d.started {
			d.started = true
			if d.header(row) {
				continue
			}
		}

		s, ok := d.row(row)
		if !ok {
			d.skipped.Add(1)
			continue
		}
		return s, nil
	}
}

// Skipped is the number of rows that did not parse.
func (d *CSVDecoder) Skipped() int64 { return d.skipped.Load() }

// header reports whether row names columns, and if so maps them.
func (d *CSVDecoder) header(row []string) bool {
	if len(row) == 0 {
		return false
	}
	if _, err := strconv.ParseFloat(strings.TrimSpace(row[0]), 64); err == nil {
		return false
	}
	cols := map[string]int{}
	for i, name := range row {
		if k, ok := csvAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
			if _, seen := cols[k]; !seen {
				cols[k] = i
			}
		}
	}
	d.cols = cols
	return true
}

func (d *CSVDecoder) row(row []string) (dyno.Sample, bool) {
	cell := func(k string) string {
		i, ok := d.cols[k]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	speed, ok := parseFinite(cell("speed"))
	if !ok {
		return dyno.Sample{}, false
	}
	t, err := timebase.Parse(cell("time"))
	if err != nil {
		return dyno.Sample{}, false
	}

	s := dyno.Sample{Speed: types.Kmh(speed), Time: d.day.Next(t)}
	if v, ok := parseFinite(cell("alt")); ok {
		s.Altitude = &v
	}
	if v, err := strconv.Atoi(cell("sats")); err == nil {
		s.Satellites = &v
	}
	return s, true
}

// parseFinite rejects NaN and infinities along with malformed numbers.
func parseFinite(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
