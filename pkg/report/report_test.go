package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/ja7ad/dyno/pkg/config"
	"github.com/ja7ad/dyno/pkg/dyno"
	"github.com/ja7ad/dyno/pkg/session"
	"github.com/ja7ad/dyno/pkg/source"
	"github.com/ja7ad/dyno/pkg/types"
	"github.com/ja7ad/dyno/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finishedSession(t *testing.T) *session.Session {
	t.Helper()
	cfg := *config.Default()
	cfg.Calibration = dyno.Calibration{
		WeightKg: 1000, SpeedAt3000Rpm: 120, Cx: 0.3, FrontalSurface: 2, WheelLoss: 0.0002, AirDensity: 1.2,
	}
	s := session.New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var vs []float64
	vs = append(vs, 60, 55)
	for v := 56.0; v <= 75; v++ {
		vs = append(vs, v)
	}
	vs = append(vs, 74)
	for v := 73.0; v >= 54; v-- {
		vs = append(vs, v)
	}
	vs = append(vs, 55)

	alt, sats := 101.5, 9
	for i, v := range vs {
		s.Add(dyno.Sample{Speed: types.Kmh(v), Time: types.Centis(100 + 10*i), Altitude: &alt, Satellites: &sats})
	}
	require.Equal(t, dyno.Done, s.Phase())
	return s
}

func TestSummarize(t *testing.T) {
	power := []dyno.Record{
		{Time: 100, Speed: 50, EngineSpeedRpm: 1250, PowerKmAvg2: 40, TorqueAvg2: 200, LossPowerKm: 1.0},
		{Time: 110, Speed: 60, EngineSpeedRpm: 1500, PowerKmAvg2: 55, TorqueAvg2: 230, LossPowerKm: 1.5},
		{Time: 120, Speed: 70, EngineSpeedRpm: 1750, PowerKmAvg2: 61, TorqueAvg2: 220, LossPowerKm: 2.0},
		{Time: 135, Speed: 75, EngineSpeedRpm: 1875, PowerKmAvg2: 58, TorqueAvg2: 190, LossPowerKm: 2.4},
	}
	loss := []dyno.Record{
		{Time: 200, PowerKm: -4},
		{Time: 210, PowerKm: -3},
		{Time: 225, PowerKm: -2},
	}

	s := Summarize(power, loss)
	assert.Equal(t, 4, s.PowerRecords)
	assert.Equal(t, 3, s.LossRecords)
	assert.Equal(t, 61.0, s.PeakPowerKm)
	assert.Equal(t, 1750.0, s.PeakPowerRpm)
	assert.Equal(t, types.Kmh(70), s.PeakPowerSpeed)
	assert.Equal(t, 2.0, s.LossAtPeakKm)
	assert.Equal(t, 230.0, s.PeakTorqueNm)
	assert.Equal(t, 1500.0, s.PeakTorqueRpm)
	assert.InDelta(t, 0.35, s.PowerRunSec, 1e-12)
	assert.InDelta(t, 3.0, s.CoastDownKm, 1e-12)
	assert.InDelta(t, 0.25, s.LossRunSec, 1e-12)

	assert.Equal(t, Summary{}, Summarize(nil, nil))
}

func TestFromSession(t *testing.T) {
	s := finishedSession(t)
	rep := FromSession(s)

	assert.Equal(t, s.ID(), rep.SessionID)
	assert.Len(t, rep.Power, 21)
	assert.Len(t, rep.Loss, 20)
	assert.Len(t, rep.Records, s.Len())
	assert.Equal(t, 21, rep.Summary.PowerRecords)
	assert.Greater(t, rep.Summary.PeakPowerKm, 0.0)
	assert.Greater(t, rep.Summary.CoastDownKm, 0.0)
	assert.Greater(t, rep.Summary.LossAtPeakKm, 0.0)
	assert.Equal(t, s.Len(), rep.Stats.Samples)

	// loss rows carry derived values from the same recompute
	for _, r := range rep.Loss {
		assert.Greater(t, r.SpeedMs, 0.0)
	}
}

func TestWriteCSV_Replays(t *testing.T) {
	rep := FromSession(finishedSession(t))

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rep.Records))

	rows, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, len(rep.Records)+1)
	assert.Equal(t, csvHeader, rows[0])
	for _, row := range rows[1:] {
		assert.Len(t, row, len(csvHeader))
	}
	assert.Equal(t, "unset", rows[1][4])
	assert.Equal(t, "power", rows[2][4])

	dec := source.NewCSVDecoder(bytes.NewReader(buf.Bytes()))
	for i, want := range rep.Records {
		got, err := dec.Decode()
		require.NoError(t, err, "row %d", i)
		assert.Equal(t, want.Speed, got.Speed)
		assert.Equal(t, want.Time, got.Time)
		require.NotNil(t, got.Altitude)
		assert.Equal(t, 101.5, *got.Altitude)
		require.NotNil(t, got.Satellites)
		assert.Equal(t, 9, *got.Satellites)
	}
	_, err = dec.Decode()
	assert.ErrorIs(t, err, io.EOF)
}

func TestWriteJSON(t *testing.T) {
	rep := FromSession(finishedSession(t))

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, rep, true))
	assert.Contains(t, buf.String(), "\n  \"session_id\"")

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	for _, k := range []string{"session_id", "generated_at", "calibration", "stats", "summary", "power", "loss"} {
		assert.Contains(t, got, k)
	}
	assert.NotContains(t, got, "Records")
	assert.Equal(t, rep.SessionID.String(), got["session_id"])
	assert.Len(t, got["power"], 21)

	first := got["power"].([]any)[0].(map[string]any)
	assert.Equal(t, "power", first["status"])

	buf.Reset()
	require.NoError(t, WriteJSON(&buf, rep, false))
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestWriteHTML(t *testing.T) {
	rep := FromSession(finishedSession(t))

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, rep))
	out := buf.String()
	assert.Contains(t, out, "<title>Dyno Report</title>")
	assert.Contains(t, out, rep.SessionID.String())
	assert.Equal(t, 2, strings.Count(out, "<polyline"))
	assert.Equal(t, 1+21+1+20, strings.Count(out, "<tr>"))

	buf.Reset()
	require.NoError(t, WriteHTML(&buf, Report{}))
	assert.NotContains(t, buf.String(), "<svg")
}

func TestPrintSummary(t *testing.T) {
	rep := FromSession(finishedSession(t))

	var buf bytes.Buffer
	require.NoError(t, PrintSummary(&buf, rep))
	out := buf.String()
	assert.Contains(t, out, "peak power:")
	assert.Contains(t, out, "peak torque:")
	assert.Contains(t, out, "coast-down:")
	assert.NotContains(t, out, "skipped input")

	buf.Reset()
	require.NoError(t, PrintSummary(&buf, Report{}))
	assert.Contains(t, buf.String(), "no power run detected")
	assert.Contains(t, buf.String(), "no coast-down detected")
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, true)
	tbl.Header()
	tbl.Row(session.Update{Index: 3, Sample: dyno.Sample{Speed: 61.25, Time: 12345}, Phase: dyno.InPower, Changed: true, Progress: 1})
	out := buf.String()
	assert.Contains(t, out, "PHASE")
	assert.Contains(t, out, "power *")
	assert.Contains(t, out, "100%")

	buf.Reset()
	tbl = NewTable(&buf, false)
	tbl.Row(session.Update{Index: 0, Sample: dyno.Sample{Speed: 10, Time: 0}, Phase: dyno.SeekingPower})
	assert.Equal(t, "0, 00:00:00.00, 10.00, seeking-power, 0.00\n", buf.String())
}

func TestCSVReplay_NonFiniteRowDoesNotPoisonReport(t *testing.T) {
	var in strings.Builder
	in.WriteString("speed,time\n")
	for i := 0; i < 40; i++ {
		if i == 20 {
			in.WriteString("61,NaN\n")
			continue
		}
		in.WriteString(util.FmtFloat(40+float64(i)) + "," + util.FmtFloat(float64(100+10*i)) + "\n")
	}

	cfg := *config.Default()
	s := session.New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	dec := source.NewCSVDecoder(strings.NewReader(in.String()))
	for {
		smp, err := dec.Decode()
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			break
		}
		s.Add(smp)
	}
	assert.Equal(t, 39, s.Len())
	assert.Equal(t, int64(1), dec.Skipped())

	rep := FromSession(s)
	for i, r := range rep.Records {
		for _, v := range []float64{r.MeasureTimeSec, r.PowerKmAvg, r.PowerKmAvg2, r.TorqueAvg2} {
			require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "record %d", i)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, rep, false))
}
