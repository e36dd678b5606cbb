package source

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/ja7ad/dyno/pkg/timebase"
	"github.com/ja7ad/dyno/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sentence(body string) string {
	return fmt.Sprintf("$%s*%02X\r\n", body, nmeaChecksum(body))
}

func TestNMEA_ReferenceSentences(t *testing.T) {
	in := "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47\r\n" +
		"$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A\r\n"
	d := NewNMEADecoder(strings.NewReader(in))

	s, err := d.Decode()
	require.NoError(t, err)
	assert.InDelta(t, 22.4*1.852, float64(s.Speed), 1e-9)
	assert.Equal(t, timebase.FromClock(12, 35, 19, 0), s.Time)
	require.NotNil(t, s.Altitude)
	require.NotNil(t, s.Satellites)
	assert.Equal(t, 545.4, *s.Altitude)
	assert.Equal(t, 8, *s.Satellites)

	_, err = d.Decode()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, int64(0), d.Skipped())
}

func TestNMEA_SkipsUnusableSentences(t *testing.T) {
	in := strings.Join([]string{
		"garbage line",
		sentence("GNRMC,101500.00,V,,,,,,,010625,,,N"),
		"$GNRMC,101500.10,A,4807.038,N,01131.000,E,10.0,0,010625,,,A*00",
		sentence("GNVTG,,T,,M,10.0,N,18.5,K,A"),
		sentence("GNRMC,101500.20,A,4807.038,N,01131.000,E,,0,010625,,,A"),
		sentence("GNRMC,101500.30,A,4807.038,N,01131.000,E,10.0,0,010625,,,A"),
		// last line has no terminator
		strings.TrimSuffix(sentence("GNRMC,101500.40,A,4807.038,N,01131.000,E,10.5,0,010625,,,A"), "\r\n"),
	}, "\r\n")

	d := NewNMEADecoder(strings.NewReader(in))

	s, err := d.Decode()
	require.NoError(t, err)
	assert.InDelta(t, 18.52, float64(s.Speed), 1e-9)
	assert.InDelta(t, float64(timebase.FromClock(10, 15, 0, 300000000)), float64(s.Time), 1e-6)
	assert.Nil(t, s.Altitude, "no GGA seen yet")

	s, err = d.Decode()
	require.NoError(t, err)
	assert.InDelta(t, 10.5*1.852, float64(s.Speed), 1e-9)

	_, err = d.Decode()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, int64(3), d.Skipped())
}

func TestNMEA_GGALostFixClearsExtras(t *testing.T) {
	in := sentence("GPGGA,000001,4807.038,N,01131.000,E,1,11,0.9,100.0,M,46.9,M,,") +
		sentence("GPRMC,000001,A,4807.038,N,01131.000,E,5.0,0,010625,,") +
		sentence("GPGGA,000002,,,,,0,00,,,M,,M,,") +
		sentence("GPRMC,000002,A,4807.038,N,01131.000,E,5.0,0,010625,,")

	d := NewNMEADecoder(strings.NewReader(in))
	s, err := d.Decode()
	require.NoError(t, err)
	require.NotNil(t, s.Satellites)
	assert.Equal(t, 11, *s.Satellites)

	s, err = d.Decode()
	require.NoError(t, err)
	assert.Nil(t, s.Satellites)
	assert.Nil(t, s.Altitude)
}

func TestNMEA_MidnightRollover(t *testing.T) {
	in := sentence("GPRMC,235959.90,A,4807.038,N,01131.000,E,30.0,0,010625,,") +
		sentence("GPRMC,000000.00,A,4807.038,N,01131.000,E,30.5,0,020625,,") +
		sentence("GPRMC,000000.10,A,4807.038,N,01131.000,E,31.0,0,020625,,")

	d := NewNMEADecoder(strings.NewReader(in))
	var times []types.Centis
	for {
		s, err := d.Decode()
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			break
		}
		times = append(times, s.Time)
	}
	require.Len(t, times, 3)
	assert.InDelta(t, 10.0, float64(times[1]-times[0]), 1e-6)
	assert.InDelta(t, 10.0, float64(times[2]-times[1]), 1e-6)
}

func TestVerifyNMEA(t *testing.T) {
	body, err := verifyNMEA("$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(body, "GPRMC,"))

	_, err = verifyNMEA("$GPRMC,123519,A*ZZ")
	assert.ErrorIs(t, err, ErrChecksum)

	body, err = verifyNMEA("$GPRMC,1,2,3")
	require.NoError(t, err, "checksum is optional")
	assert.Equal(t, "GPRMC,1,2,3", body)
}
