package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ja7ad/dyno/pkg/dyno"
	"gopkg.in/yaml.v3"
)

// Source kinds.
const (
	KindNMEA = "nmea"
	KindUBX  = "ubx"
	KindCSV  = "csv"
	KindMQTT = "mqtt"
	KindWS   = "ws"
)

// Config is the dyno run configuration.
type Config struct {
	Calibration dyno.Calibration `yaml:"calibration"`
	Session     SessionConfig    `yaml:"session"`
	Source      SourceConfig     `yaml:"source"`
	Output      OutputConfig     `yaml:"output"`
}

// SessionConfig controls segmentation and when a run stops.
type SessionConfig struct {
	MinimumRecords int `yaml:"minimum_records"`
	// 0 = until the source ends or the run is interrupted
	MaxRecords int `yaml:"max_records"`
	// stop once the loss phase is sealed
	StopWhenDone bool `yaml:"stop_when_done"`
}

// SourceConfig selects where samples come from. Only the fields of the
// chosen kind are read.
type SourceConfig struct {
	Kind string `yaml:"kind"` // nmea, ubx, csv, mqtt, ws

	// nmea / ubx serial receiver
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
	RateHz int    `yaml:"rate_hz"` // ubx only: navigation rate pushed to the receiver

	// csv replay
	File string `yaml:"file"`

	// mqtt
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// ws
	URL string `yaml:"url"`

	Timeout string `yaml:"timeout"` // connect timeout, e.g. "10s"
	Buffer  int    `yaml:"buffer"`  // queued samples for push sources
}

// OutputConfig lists report files written when the run ends. Empty = skip.
type OutputConfig struct {
	CSV    string `yaml:"csv"`
	JSON   string `yaml:"json"`
	HTML   string `yaml:"html"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Calibration: dyno.Calibration{
			WeightKg:       1200,
			SpeedAt3000Rpm: 100,
			Cx:             0.32,
			FrontalSurface: 2.1,
			WheelLoss:      0.0002,
			AirDensity:     1.225,
		},
		Session: SessionConfig{
			MinimumRecords: dyno.DefaultMinimumRecords,
		},
		Source: SourceConfig{
			Kind:     KindNMEA,
			Device:   "/dev/ttyUSB0",
			Baud:     9600,
			RateHz:   10,
			Topic:    "dyno/samples",
			ClientID: "dyno",
			Timeout:  "10s",
			Buffer:   256,
		},
		Output: OutputConfig{
			Pretty: true,
		},
	}
}

// Load reads a YAML config. Keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(c)
	return c, nil
}

func applyDefaults(c *Config) {
	d := Default()
	if c.Session.MinimumRecords <= 0 {
		c.Session.MinimumRecords = d.Session.MinimumRecords
	}
	if c.Source.Kind == "" {
		c.Source.Kind = d.Source.Kind
	}
	if c.Source.Baud == 0 {
		c.Source.Baud = d.Source.Baud
	}
	if c.Source.RateHz <= 0 {
		c.Source.RateHz = d.Source.RateHz
	}
	if c.Source.ClientID == "" {
		c.Source.ClientID = d.Source.ClientID
	}
	if c.Source.Timeout == "" {
		c.Source.Timeout = d.Source.Timeout
	}
	if c.Source.Buffer <= 0 {
		c.Source.Buffer = d.Source.Buffer
	}
}

// Validate checks that the fields required by the source kind are set.
func (c *Config) Validate() error {
	s := c.Source
	switch s.Kind {
	case KindNMEA, KindUBX:
		if s.Device == "" {
			return fmt.Errorf("config: source.device is required for %s", s.Kind)
		}
	case KindCSV:
		if s.File == "" {
			return fmt.Errorf("config: source.file is required for %s", s.Kind)
		}
	case KindMQTT:
		if s.Broker == "" || s.Topic == "" {
			return fmt.Errorf("config: source.broker and source.topic are required for %s", s.Kind)
		}
	case KindWS:
		if s.URL == "" {
			return fmt.Errorf("config: source.url is required for %s", s.Kind)
		}
	default:
		return fmt.Errorf("config: unknown source kind %q", s.Kind)
	}
	if _, err := time.ParseDuration(s.Timeout); err != nil {
		return fmt.Errorf("config: source.timeout: %w", err)
	}
	if c.Session.MaxRecords < 0 {
		return fmt.Errorf("config: session.max_records must be >= 0")
	}
	return nil
}

// ConnectTimeout returns the parsed timeout, 10s when unset or invalid.
func (s SourceConfig) ConnectTimeout() time.Duration {
	d, err := time.ParseDuration(s.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}
