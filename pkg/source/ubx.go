package source

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/ja7ad/dyno/pkg/dyno"
	"github.com/ja7ad/dyno/pkg/timebase"
	"github.com/ja7ad/dyno/pkg/types"
)

// UBX framing
const (
	ubxSync1 = 0xB5
	ubxSync2 = 0x62

	ubxMaxPayload = 1024
)

// Message classes and IDs.
const (
	ubxClassNAV = 0x01
	ubxIDNAVPVT = 0x07

	ubxClassCFG = 0x06
	ubxIDCFGMSG = 0x01
	ubxIDCFGRAT = 0x08
)

// NAV-PVT payload layout (u-blox M8 protocol).
const (
	navPVTSize = 92

	navPVTHour    = 8  // U1
	navPVTMin     = 9  // U1
	navPVTSec     = 10 // U1
	navPVTValid   = 11 // X1, bit1 validTime
	navPVTNano    = 16 // I4, ns, may be negative
	navPVTFixType = 20 // U1, 2 = 2D, 3 = 3D, 4 = GNSS+DR
	navPVTFlags   = 21 // X1, bit0 gnssFixOK
	navPVTNumSV   = 23 // U1
	navPVTHMSL    = 36 // I4, mm
	navPVTGSpeed  = 60 // I4, mm/s

	navPVTValidTime = 1 << 1
	navPVTFixOK     = 1 << 0
)

// UBXDecoder turns NAV-PVT frames into samples and ignores other messages.
type UBXDecoder struct {
	r       *bufio.Reader
	day     timebase.Unwrapper
	skipped atomic.Int64
}

func NewUBXDecoder(r io.Reader) *UBXDecoder {
	return &UBXDecoder{r: bufio.NewReader(r)}
}

func (d *UBXDecoder) Decode() (dyno.Sample, error) {
	for {
		pkt, err := readUBX(d.r)
		if errors.Is(err, ErrChecksum) || errors.Is(err, ErrFrame) {
			d.skipped.Add(1)
			continue
		}
		if err != nil {
			return dyno.Sample{}, err
		}
		if pkt[2] != ubxClassNAV || pkt[3] != ubxIDNAVPVT {
			continue
		}
		s, ok := parseNAVPVT(pkt[6 : len(pkt)-2])
		if !ok {
			continue
		}
		s.Time = d.day.Next(s.Time)
		return s, nil
	}
}

// Skipped is the number of frames dropped for a bad checksum or length.
func (d *UBXDecoder) Skipped() int64 { return d.skipped.Load() }

// ConfigureUBX sets the navigation rate and enables NAV-PVT output on the
// port the receiver is connected to.
func ConfigureUBX(w io.Writer, rateHz int) error {
	if rateHz <= 0 {
		rateHz = 1
	}
	rate := make([]byte, 6)
	binary.LittleEndian.PutUint16(rate[0:], uint16(1000/rateHz)) // measRate, ms
	binary.LittleEndian.PutUint16(rate[2:], 1)                   // navRate, cycles
	binary.LittleEndian.PutUint16(rate[4:], 0)                   // timeRef, UTC

	for _, pkt := range [][]byte{
		encodeUBX(ubxClassCFG, ubxIDCFGRAT, rate),
		encodeUBX(ubxClassCFG, ubxIDCFGMSG, []byte{ubxClassNAV, ubxIDNAVPVT, 1}),
	} {
		if _, err := w.Write(pkt); err != nil {
			return err
		}
	}
	return nil
}

func ubxChecksum(data []byte) (ckA, ckB uint8) {
	for _, b := range data {
		ckA += b
		ckB += ckA
	}
	return ckA, ckB
}

// encodeUBX builds sync + class + id + length + payload + checksum.
func encodeUBX(class, id uint8, payload []byte) []byte {
	buf := make([]byte, 0, 8+len(payload))
	buf = append(buf, ubxSync1, ubxSync2, class, id)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(payload)))
	buf = append(buf, payload...)
	ckA, ckB := ubxChecksum(buf[2:])
	return append(buf, ckA, ckB)
}

// readUBX hunts for the sync bytes and returns one frame starting at sync1,
// checksum included.
func readUBX(r *bufio.Reader) ([]byte, error) {
	var prev byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if prev == ubxSync1 && b == ubxSync2 {
			break
		}
		prev = b
	}

	header := make([]byte, 4) // class, id, length
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, eofToUnexpected(err)
	}
	length := int(binary.LittleEndian.Uint16(header[2:]))
	if length > ubxMaxPayload {
		return nil, fmt.Errorf("%w: length %d", ErrFrame, length)
	}

	pkt := make([]byte, 0, 6+length+2)
	pkt = append(pkt, ubxSync1, ubxSync2)
	pkt = append(pkt, header...)
	rest := make([]byte, length+2)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, eofToUnexpected(err)
	}
	pkt = append(pkt, rest...)

	ckA, ckB := ubxChecksum(pkt[2 : len(pkt)-2])
	if pkt[len(pkt)-2] != ckA || pkt[len(pkt)-1] != ckB {
		return nil, fmt.Errorf("%w: ubx class 0x%02x id 0x%02x", ErrChecksum, pkt[2], pkt[3])
	}
	return pkt, nil
}

func eofToUnexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// parseNAVPVT reads a sample from a NAV-PVT payload. Frames without a
// valid time or a 2D/3D fix are rejected.
func parseNAVPVT(p []byte) (dyno.Sample, bool) {
	if len(p) < navPVTSize {
		return dyno.Sample{}, false
	}
	if p[navPVTValid]&navPVTValidTime == 0 || p[navPVTFlags]&navPVTFixOK == 0 {
		return dyno.Sample{}, false
	}
	if fix := p[navPVTFixType]; fix < 2 || fix > 4 {
		return dyno.Sample{}, false
	}

	nano := int32(binary.LittleEndian.Uint32(p[navPVTNano:]))
	t := timebase.FromClock(int(p[navPVTHour]), int(p[navPVTMin]), int(p[navPVTSec]), 0) +
		types.Centis(float64(nano)/1e7)

	alt := float64(int32(binary.LittleEndian.Uint32(p[navPVTHMSL:]))) / 1000
	sats := int(p[navPVTNumSV])

	return dyno.Sample{
		Speed:      types.KmhFromMms(int32(binary.LittleEndian.Uint32(p[navPVTGSpeed:]))),
		Time:       t,
		Altitude:   &alt,
		Satellites: &sats,
	}, true
}
