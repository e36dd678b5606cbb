package source

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/ja7ad/dyno/pkg/dyno"
	"github.com/ja7ad/dyno/pkg/timebase"
	"github.com/ja7ad/dyno/pkg/types"
)

// NMEADecoder turns RMC sentences into samples. GGA sentences only update
// the altitude and satellite count attached to later samples.
type NMEADecoder struct {
	r *bufio.Reader

	alt  *float64
	sats *int

	day     timebase.Unwrapper
	skipped atomic.Int64
}

func NewNMEADecoder(r io.Reader) *NMEADecoder {
	return &NMEADecoder{r: bufio.NewReader(r)}
}

func (d *NMEADecoder) Decode() (dyno.Sample, error) {
	for {
		line, rerr := d.r.ReadString('\n')
		if s, ok := d.sentence(strings.TrimSpace(line)); ok {
			return s, nil
		}
		if rerr != nil {
			return dyno.Sample{}, rerr
		}
	}
}

// Skipped is the number of sentences dropped for a bad checksum or field.
func (d *NMEADecoder) Skipped() int64 { return d.skipped.Load() }

func (d *NMEADecoder) sentence(line string) (dyno.Sample, bool) {
	if !strings.HasPrefix(line, "$") {
		return dyno.Sample{}, false
	}
	body, err := verifyNMEA(line)
	if err != nil {
		d.skipped.Add(1)
		return dyno.Sample{}, false
	}

	fields := strings.Split(body, ",")
	if len(fields[0]) < 5 {
		return dyno.Sample{}, false
	}
	switch fields[0][len(fields[0])-3:] {
	case "RMC":
		s, ok := d.parseRMC(fields)
		if !ok {
			d.skipped.Add(1)
		}
		return s, ok
	case "GGA":
		d.parseGGA(fields)
	}
	return dyno.Sample{}, false
}

// parseRMC reads field 1 = hhmmss.ss, 2 = A/V, 7 = speed over ground in knots.
func (d *NMEADecoder) parseRMC(fields []string) (dyno.Sample, bool) {
	if len(fields) < 10 || fields[2] != "A" {
		return dyno.Sample{}, false
	}
	t, err := timebase.ParseNMEA(fields[1])
	if err != nil {
		return dyno.Sample{}, false
	}
	knots, err := strconv.ParseFloat(fields[7], 64)
	if err != nil {
		return dyno.Sample{}, false
	}
	return dyno.Sample{
		Speed:      types.KmhFromKnots(knots),
		Time:       d.day.Next(t),
		Altitude:   d.alt,
		Satellites: d.sats,
	}, true
}

// parseGGA reads field 6 = fix quality, 7 = satellites in use, 9 = altitude (m MSL).
func (d *NMEADecoder) parseGGA(fields []string) {
	if len(fields) < 10 {
		return
	}
	if fields[6] == "" || fields[6] == "0" {
		d.alt, d.sats = nil, nil
		return
	}
	if n, err := strconv.Atoi(fields[7]); err == nil {
		d.sats = &n
	}
	if a, err := strconv.ParseFloat(fields[9], 64); err == nil {
		d.alt = &a
	}
}

// verifyNMEA strips '$' and the *hh checksum, which must match when present.
func verifyNMEA(line string) (string, error) {
	body := line[1:]
	i := strings.LastIndexByte(body, '*')
	if i < 0 {
		return body, nil
	}
	sum, err := strconv.ParseUint(body[i+1:], 16, 8)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrChecksum, line)
	}
	body = body[:i]
	if nmeaChecksum(body) != byte(sum) {
		return "", fmt.Errorf("%w: %q", ErrChecksum, line)
	}
	return body, nil
}

func nmeaChecksum(body string) byte {
	var cs byte
	for i := 0; i < len(body); i++ {
		cs ^= body[i]
	}
	return cs
}
