package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ja7ad/dyno/pkg/config"
	"github.com/ja7ad/dyno/pkg/report"
	"github.com/ja7ad/dyno/pkg/session"
	"github.com/ja7ad/dyno/pkg/source"
)

type opts struct {
	configPath string
	verbose    bool
	quiet      bool

	// source
	kind    string
	device  string
	baud    int
	rateHz  int
	file    string
	broker  string
	topic   string
	url     string
	timeout string

	// calibration
	weight  float64
	at3000  float64
	cx      float64
	surface float64
	wheel   float64
	rho     float64

	// session
	minRecords   int
	maxRecords   int
	stopWhenDone bool

	// outputs
	csvPath  string
	jsonPath string
	htmlPath string
	pretty   bool
}

func main() {
	root, _ := newRootCmd()
	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func newRootCmd() (*cobra.Command, *opts) {
	o := &opts{}

	root := &cobra.Command{
		Use:   "dyno",
		Short: "Road dyno: power and torque from GNSS speed",
		Long: `The dyno tool measures engine power and torque on the road from a stream
of speed samples. Accelerate through one gear, then coast down with the
clutch pressed: the power run and the coast-down are detected on their own,
and the smoothed power/torque curves are reported at the end.

Samples come from a GNSS receiver on a serial port (NMEA or u-blox UBX),
a recorded CSV file, an MQTT topic or a WebSocket feed.

Examples:
  dyno --source nmea --device /dev/ttyACM0 --baud 38400 --weight 1180 --speed-at-3000 104
  dyno --source ubx --device /dev/ttyACM0 --rate 10 --stop-when-done --html run.html
  dyno --config garage.yaml --source csv --file runs/2025-06-01.csv --json out.json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *o)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, *o)
		},
	}

	f := root.Flags()
	f.StringVarP(&o.configPath, "config", "c", "", "YAML config file")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")
	f.BoolVarP(&o.quiet, "quiet", "q", false, "do not print a line per sample")

	f.StringVar(&o.kind, "source", config.KindNMEA, "sample source: nmea, ubx, csv, mqtt, ws")
	f.StringVar(&o.device, "device", "/dev/ttyUSB0", "serial device of the GNSS receiver")
	f.IntVar(&o.baud, "baud", 9600, "serial baud rate")
	f.IntVar(&o.rateHz, "rate", 10, "ubx navigation rate pushed to the receiver (Hz)")
	f.StringVar(&o.file, "file", "", "recorded CSV run to replay")
	f.StringVar(&o.broker, "broker", "", "MQTT broker URL, e.g. tcp://localhost:1883")
	f.StringVar(&o.topic, "topic", "dyno/samples", "MQTT topic carrying JSON samples")
	f.StringVar(&o.url, "url", "", "WebSocket URL serving JSON samples")
	f.StringVar(&o.timeout, "timeout", "10s", "connect timeout for network sources")

	f.Float64Var(&o.weight, "weight", 1200, "vehicle weight incl. driver (kg)")
	f.Float64Var(&o.at3000, "speed-at-3000", 100, "road speed at 3000 rpm in the measured gear (km/h)")
	f.Float64Var(&o.cx, "cx", 0.32, "drag coefficient")
	f.Float64Var(&o.surface, "frontal-surface", 2.1, "frontal surface (m²)")
	f.Float64Var(&o.wheel, "wheel-loss", 0.0002, "wheel loss coefficient")
	f.Float64Var(&o.rho, "air-density", 1.225, "air density (kg/m³)")

	f.IntVar(&o.minRecords, "min-records", 20, "run length that commits the power and loss phases")
	f.IntVar(&o.maxRecords, "max-records", 0, "stop after this many samples (0 = no limit)")
	f.BoolVar(&o.stopWhenDone, "stop-when-done", false, "stop once the coast-down is complete")

	f.StringVar(&o.csvPath, "csv", "", "write every record to CSV file")
	f.StringVar(&o.jsonPath, "json", "", "write the report to JSON file")
	f.StringVar(&o.htmlPath, "html", "", "write the report to HTML file")
	f.BoolVar(&o.pretty, "pretty", true, "format output as a table instead of CSV-like lines")

	return root, o
}

// loadConfig reads the config file, if any, then applies the flags that
// were set on the command line.
func loadConfig(cmd *cobra.Command, o opts) (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		c, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = c
	}

	set := cmd.Flags().Changed
	if set("source") {
		cfg.Source.Kind = o.kind
	}
	if set("device") {
		cfg.Source.Device = o.device
	}
	if set("baud") {
		cfg.Source.Baud = o.baud
	}
	if set("rate") {
		cfg.Source.RateHz = o.rateHz
	}
	if set("file") {
		cfg.Source.File = o.file
	}
	if set("broker") {
		cfg.Source.Broker = o.broker
	}
	if set("topic") {
		cfg.Source.Topic = o.topic
	}
	if set("url") {
		cfg.Source.URL = o.url
	}
	if set("timeout") {
		cfg.Source.Timeout = o.timeout
	}

	if set("weight") {
		cfg.Calibration.WeightKg = o.weight
	}
	if set("speed-at-3000") {
		cfg.Calibration.SpeedAt3000Rpm = o.at3000
	}
	if set("cx") {
		cfg.Calibration.Cx = o.cx
	}
	if set("frontal-surface") {
		cfg.Calibration.FrontalSurface = o.surface
	}
	if set("wheel-loss") {
		cfg.Calibration.WheelLoss = o.wheel
	}
	if set("air-density") {
		cfg.Calibration.AirDensity = o.rho
	}

	if set("min-records") {
		cfg.Session.MinimumRecords = o.minRecords
	}
	if set("max-records") {
		cfg.Session.MaxRecords = o.maxRecords
	}
	if set("stop-when-done") {
		cfg.Session.StopWhenDone = o.stopWhenDone
	}

	if set("csv") {
		cfg.Output.CSV = o.csvPath
	}
	if set("json") {
		cfg.Output.JSON = o.jsonPath
	}
	if set("html") {
		cfg.Output.HTML = o.htmlPath
	}
	if set("pretty") {
		cfg.Output.Pretty = o.pretty
	}

	if cfg.Session.MinimumRecords <= 0 {
		return nil, fmt.Errorf("min-records must be > 0")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, o opts) error {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Ctrl-C ends the run; the report is still written.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := source.Open(ctx, cfg.Source, log)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	defer src.Close()

	sess := session.New(*cfg, log)
	c := cfg.Calibration
	fmt.Printf(_console, sess.ID(), cfg.Source.Kind, where(cfg.Source),
		c.WeightKg, c.SpeedAt3000Rpm, c.Cx, c.FrontalSurface, c.WheelLoss, c.AirDensity,
		cfg.Session.MinimumRecords, time.Now().Format("2006-01-02 15:04:05"))

	var notify func(session.Update)
	if !o.quiet {
		tbl := report.NewTable(os.Stdout, cfg.Output.Pretty)
		tbl.Header()
		notify = tbl.Row
	}

	runErr := sess.Run(ctx, src, notify)
	if runErr != nil {
		log.Error("run ended early", "err", runErr)
	}

	rep := report.FromSession(sess)
	writeOutputs(cfg.Output, rep, log)
	if err := report.PrintSummary(os.Stdout, rep); err != nil {
		return err
	}
	return runErr
}

func where(s config.SourceConfig) string {
	switch s.Kind {
	case config.KindNMEA, config.KindUBX:
		return fmt.Sprintf("%s @ %d baud", s.Device, s.Baud)
	case config.KindCSV:
		return s.File
	case config.KindMQTT:
		return s.Broker + " " + s.Topic
	default:
		return s.URL
	}
}

func writeOutputs(out config.OutputConfig, rep report.Report, log *slog.Logger) {
	write := func(path, kind string, fn func(io.Writer) error) {
		if path == "" {
			return
		}
		if err := writeFile(path, fn); err != nil {
			log.Error("write "+kind, "path", path, "err", err)
			return
		}
		log.Info("wrote "+kind, "path", path)
	}

	write(out.CSV, "csv", func(w io.Writer) error { return report.WriteCSV(w, rep.Records) })
	write(out.JSON, "json", func(w io.Writer) error { return report.WriteJSON(w, rep, out.Pretty) })
	write(out.HTML, "html", func(w io.Writer) error { return report.WriteHTML(w, rep) })
}

func writeFile(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

const _console = `Dyno - Road Power/Torque Measurement Tool

       Session: %s
       Source: %s (%s)
       Weight: %.0f kg, %.1f km/h @ 3000 rpm
       Aero: cx %.2f, %.2f m², wheel loss %g, air %.3f kg/m³
       Phase length: %d records

Run started %s:

`
