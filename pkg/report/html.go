package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/ja7ad/dyno/pkg/dyno"
)

const (
	chartW = 720
	chartH = 320
	chartM = 40 // margin
)

// chart is an SVG polyline pair of smoothed power and torque over rpm.
type chart struct {
	Power, Torque string
	MaxRpm        float64
	MaxPower      float64
	MaxTorque     float64
	W, H, M       int
}

func newChart(recs []dyno.Record) *chart {
	if len(recs) < 2 {
		return nil
	}
	c := &chart{W: chartW, H: chartH, M: chartM}
	for _, r := range recs {
		c.MaxRpm = max(c.MaxRpm, r.EngineSpeedRpm)
		c.MaxPower = max(c.MaxPower, r.PowerKmAvg2)
		c.MaxTorque = max(c.MaxTorque, r.TorqueAvg2)
	}
	if c.MaxRpm <= 0 {
		return nil
	}

	var p, t strings.Builder
	for _, r := range recs {
		x := c.x(r.EngineSpeedRpm)
		fmt.Fprintf(&p, "%.1f,%.1f ", x, c.y(r.PowerKmAvg2, c.MaxPower))
		fmt.Fprintf(&t, "%.1f,%.1f ", x, c.y(r.TorqueAvg2, c.MaxTorque))
	}
	c.Power = strings.TrimSpace(p.String())
	c.Torque = strings.TrimSpace(t.String())
	return c
}

func (c *chart) x(rpm float64) float64 {
	return chartM + rpm/c.MaxRpm*(chartW-2*chartM)
}

func (c *chart) y(v, top float64) float64 {
	if top <= 0 {
		return chartH - chartM
	}
	return chartH - chartM - max(v, 0)/top*(chartH-2*chartM)
}

// WriteHTML renders a standalone page with the summary, a power/torque
// chart and the labeled records.
func WriteHTML(w io.Writer, rep Report) error {
	data := struct {
		Report
		Chart *chart
	}{rep, newChart(rep.Power)}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

var tpl = template.Must(template.New("rep").Parse(`<!doctype html>
<html lang="en"><meta charset="utf-8">
<title>Dyno Report</title>
<style>
body{font-family:system-ui,Segoe UI,Roboto,Helvetica,Arial,sans-serif;margin:20px}
h1,h2{margin:0 0 8px}
table{border-collapse:collapse;width:100%;font-size:14px;margin-bottom:18px}
th,td{border:1px solid #ddd;padding:6px 8px;text-align:right}
th:first-child,td:first-child{text-align:left}
ul{margin:6px 0 14px;padding-left:20px}
.small{color:#555}
.badge{display:inline-block;background:#eef;border:1px solid #ccd;padding:2px 6px;border-radius:6px;margin-right:6px;}
svg{border:1px solid #ddd;margin-bottom:14px}
</style>

<h1>Dyno Report</h1>

<p class="small">
<span class="badge">session {{.SessionID}}</span>
Started: {{.StartedAt.Format "2006-01-02 15:04:05"}} &nbsp;|&nbsp;
Generated: {{.GeneratedAt.Format "2006-01-02 15:04:05"}} &nbsp;|&nbsp;
Samples: {{.Stats.Samples}} ({{printf "%.1f" .Stats.RateHz}} Hz, {{.Stats.Skipped}} skipped)
</p>

<h2>Summary</h2>
<ul>
<li>Peak power: {{printf "%.1f" .Summary.PeakPowerKm}} PS at {{printf "%.0f" .Summary.PeakPowerRpm}} rpm ({{.Summary.PeakPowerSpeed.Humanized}})</li>
<li>Loss at peak: {{printf "%.2f" .Summary.LossAtPeakKm}} PS</li>
<li>Peak torque: {{printf "%.1f" .Summary.PeakTorqueNm}} Nm at {{printf "%.0f" .Summary.PeakTorqueRpm}} rpm</li>
<li>Coast-down: {{printf "%.2f" .Summary.CoastDownKm}} PS over {{printf "%.2f" .Summary.LossRunSec}} s</li>
<li>Power run: {{.Summary.PowerRecords}} records over {{printf "%.2f" .Summary.PowerRunSec}} s</li>
</ul>

<h2>Calibration</h2>
<ul>
<li>Weight: {{.Calibration.WeightKg}} kg</li>
<li>Speed at 3000 rpm: {{.Calibration.SpeedAt3000Rpm}} km/h</li>
<li>Cx: {{.Calibration.Cx}} &nbsp; Frontal surface: {{.Calibration.FrontalSurface}} m²</li>
<li>Wheel loss: {{.Calibration.WheelLoss}} &nbsp; Air density: {{.Calibration.AirDensity}} kg/m³</li>
</ul>

{{with .Chart}}
<h2>Curves</h2>
<svg width="{{.W}}" height="{{.H}}" viewBox="0 0 {{.W}} {{.H}}" xmlns="http://www.w3.org/2000/svg">
<polyline fill="none" stroke="#c33" stroke-width="2" points="{{.Power}}"/>
<polyline fill="none" stroke="#36c" stroke-width="2" points="{{.Torque}}"/>
<text x="{{.M}}" y="16" font-size="12" fill="#c33">power, max {{printf "%.1f" .MaxPower}} PS</text>
<text x="{{.M}}" y="30" font-size="12" fill="#36c">torque, max {{printf "%.1f" .MaxTorque}} Nm</text>
<text x="{{.M}}" y="{{.H}}" font-size="12" dy="-8">0 to {{printf "%.0f" .MaxRpm}} rpm</text>
</svg>
{{end}}

<h2>Power run</h2>
<table>
<thead>
<tr><th>time</th><th>speed</th><th>rpm</th><th>P (PS)</th><th>P+loss (PS)</th><th>P avg2 (PS)</th><th>T avg2 (Nm)</th></tr>
</thead>
<tbody>
{{range .Power}}
<tr>
<td>{{.Time.Humanized}}</td>
<td>{{printf "%.1f" .Speed}}</td>
<td>{{printf "%.0f" .EngineSpeedRpm}}</td>
<td>{{printf "%.2f" .PowerKm}}</td>
<td>{{printf "%.2f" .PowerKmWithLoss}}</td>
<td>{{printf "%.2f" .PowerKmAvg2}}</td>
<td>{{printf "%.1f" .TorqueAvg2}}</td>
</tr>
{{end}}
</tbody>
</table>

<h2>Coast-down</h2>
<table>
<thead>
<tr><th>time</th><th>speed</th><th>rpm</th><th>P (PS)</th><th>loss model (PS)</th></tr>
</thead>
<tbody>
{{range .Loss}}
<tr>
<td>{{.Time.Humanized}}</td>
<td>{{printf "%.1f" .Speed}}</td>
<td>{{printf "%.0f" .EngineSpeedRpm}}</td>
<td>{{printf "%.2f" .PowerKm}}</td>
<td>{{printf "%.2f" .LossPowerKm}}</td>
</tr>
{{end}}
</tbody>
</table>
</html>`))
