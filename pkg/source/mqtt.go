package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/ja7ad/dyno/pkg/config"
	"github.com/ja7ad/dyno/pkg/dyno"
	"github.com/ja7ad/dyno/pkg/timebase"
)

// MQTT receives JSON samples on one topic. It resubscribes after a
// reconnect, so a broker restart does not end the stream.
type MQTT struct {
	client mqtt.Client
	topic  string
	pipe   *pipe
	log    *slog.Logger

	ready   chan error
	day     timebase.Unwrapper // handler goroutine only
	skipped atomic.Int64
}

// DialMQTT connects to cfg.Broker and waits until cfg.Topic is subscribed.
func DialMQTT(ctx context.Context, cfg config.SourceConfig, log *slog.Logger) (*MQTT, error) {
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.ConnectTimeout()

	m := &MQTT{
		topic: cfg.Topic,
		pipe:  newPipe(cfg.Buffer),
		log:   log.With("source", "mqtt", "topic", cfg.Topic),
		ready: make(chan error, 1),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	// brokers drop an older session holding the same id
	opts.SetClientID(fmt.Sprintf("%s-%s", cfg.ClientID, uuid.NewString()[:8]))
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(timeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(10 * time.Second)
	opts.SetOrderMatters(true)
	opts.OnConnect = func(c mqtt.Client) { m.onConnect(c, timeout) }
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		m.log.Warn("connection lost", "err", err)
	}

	m.client = mqtt.NewClient(opts)
	token := m.client.Connect()
	if !token.WaitTimeout(timeout) {
		m.client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect %s: timeout after %s", cfg.Broker, timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}

	select {
	case err := <-m.ready:
		if err != nil {
			m.client.Disconnect(250)
			return nil, fmt.Errorf("mqtt subscribe %s: %w", cfg.Topic, err)
		}
	case <-ctx.Done():
		m.client.Disconnect(0)
		return nil, ctx.Err()
	case <-time.After(timeout):
		m.client.Disconnect(0)
		return nil, fmt.Errorf("mqtt subscribe %s: timeout after %s", cfg.Topic, timeout)
	}

	m.log.Info("subscribed", "broker", cfg.Broker)
	return m, nil
}

func (m *MQTT) onConnect(c mqtt.Client, timeout time.Duration) {
	token := c.Subscribe(m.topic, 1, m.onMessage)
	var err error
	if !token.WaitTimeout(timeout) {
		err = errors.New("timeout")
	} else {
		err = token.Error()
	}
	if err != nil {
		m.log.Warn("subscribe failed", "err", err)
	}

	select {
	case m.ready <- err:
	default:
	}
}

func (m *MQTT) onMessage(_ mqtt.Client, msg mqtt.Message) {
	s, err := decodePayload(msg.Payload())
	if err != nil {
		m.skipped.Add(1)
		m.log.Debug("dropping message", "err", err)
		return
	}
	s.Time = m.day.Next(s.Time)
	m.pipe.send(result{sample: s})
}

func (m *MQTT) Next(ctx context.Context) (dyno.Sample, error) { return m.pipe.next(ctx) }

// Skipped is the number of messages that did not decode.
func (m *MQTT) Skipped() int64 { return m.skipped.Load() }

func (m *MQTT) Close() error {
	m.pipe.close()
	m.client.Disconnect(250)
	return nil
}
