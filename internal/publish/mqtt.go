package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	DefaultBroker   = "tcp://localhost:1883"
	DefaultClientID = "flight-video-sync-replay"
	DefaultTopic    = "flight/telemetry"

	disconnectQuiesce = 250 // ms
)

var ErrConnectTimeout = errors.New("mqtt connect timed out")

// MQTTConfig describes the broker connection
type MQTTConfig struct {
	Broker         string
	ClientID       string
	Topic          string
	QoS            byte
	Retained       bool
	ConnectTimeout time.Duration
}

func (c MQTTConfig) Validate() error {
	if c.Broker == "" {
		return errors.New("MQTTConfig: broker is required")
	}
	if c.Topic == "" {
		return errors.New("MQTTConfig: topic is required")
	}
	if c.QoS > 2 {
		return fmt.Errorf("MQTTConfig: invalid QoS %d", c.QoS)
	}
	return nil
}

// MQTTPublisher publishes payloads to a single MQTT topic
type MQTTPublisher struct {
	client mqtt.Client
	config MQTTConfig
	logger *slog.Logger
}

// WithMQTTLogger sets the logger for the publisher
func WithMQTTLogger(logger *slog.Logger) func(p *MQTTPublisher) {
	return func(p *MQTTPublisher) {
		p.logger = logger.With(slog.String("broker", p.config.Broker), slog.String("topic", p.config.Topic))
	}
}

// NewMQTTPublisher connects to the broker
func NewMQTTPublisher(config MQTTConfig, options ...func(p *MQTTPublisher)) (*MQTTPublisher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.ClientID == "" {
		config.ClientID = DefaultClientID
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 10 * time.Second
	}

	p := MQTTPublisher{
		config: config,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}
	for _, option := range options {
		option(&p)
	}

	opts := mqtt.NewClientOptions().
		AddBroker(config.Broker).
		SetClientID(config.ClientID).
		SetConnectTimeout(config.ConnectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			p.logger.Warn("mqtt connection lost", slog.String("error", err.Error()))
		})

	p.client = mqtt.NewClient(opts)

	token := p.client.Connect()
	if !token.WaitTimeout(config.ConnectTimeout) {
		return nil, fmt.Errorf("%w: %s", ErrConnectTimeout, config.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", config.Broker, err)
	}

	p.logger.Info("connected to mqtt broker")
	return &p, nil
}

func (p *MQTTPublisher) Publish(ctx context.Context, payload []byte) error {
	token := p.client.Publish(p.config.Topic, p.config.QoS, p.config.Retained, payload)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return token.Error()
	}
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(disconnectQuiesce)
	return nil
}
