package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/ja7ad/dyno/pkg/dyno"
	"github.com/ja7ad/dyno/pkg/util"
)

var csvHeader = []string{
	"time", "speed", "alt", "sats", "status", "increment", "decrement",
	"measure_time_sec", "speed_ms", "engine_speed_rpm", "ek_j", "delta_ek_per_sec",
	"power_kw", "power_km", "torque_nm", "loss_power_km", "power_km_with_loss",
	"torque_with_loss", "power_km_avg", "torque_avg", "power_km_avg2", "torque_avg2",
}

// WriteCSV writes one row per record. The time, speed, alt and sats columns
// come first, so the file replays through the csv source.
func WriteCSV(w io.Writer, records []dyno.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		var alt, sats string
		if r.Altitude != nil {
			alt = util.FmtFloat(*r.Altitude)
		}
		if r.Satellites != nil {
			sats = strconv.Itoa(*r.Satellites)
		}
		row := []string{
			util.FmtFloat(float64(r.Time)), util.FmtFloat(float64(r.Speed)), alt, sats,
			r.Status.String(), strconv.FormatBool(r.Increment), strconv.FormatBool(r.Decrement),
			util.FmtFloat(r.MeasureTimeSec), util.FmtFloat(r.SpeedMs), util.FmtFloat(r.EngineSpeedRpm),
			util.FmtFloat(r.KineticEnergyJ), util.FmtFloat(r.DeltaEkPerSec),
			util.FmtFloat(r.PowerKw), util.FmtFloat(r.PowerKm), util.FmtFloat(r.TorqueNm),
			util.FmtFloat(r.LossPowerKm), util.FmtFloat(r.PowerKmWithLoss), util.FmtFloat(r.TorqueWithLoss),
			util.FmtFloat(r.PowerKmAvg), util.FmtFloat(r.TorqueAvg),
			util.FmtFloat(r.PowerKmAvg2), util.FmtFloat(r.TorqueAvg2),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
