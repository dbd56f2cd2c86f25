package app

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/roman-kulish/flight-video-sync/internal/publish"
)

type Config struct {
	DBPath    string
	SessionID int64
	Speed     float64
	MQTT      publish.MQTTConfig
}

func NewConfig() *Config {
	return &Config{
		SessionID: 1,
		Speed:     1,
		MQTT: publish.MQTTConfig{
			Broker:   publish.DefaultBroker,
			ClientID: publish.DefaultClientID,
			Topic:    publish.DefaultTopic,
		},
	}
}

// NewConfigFromCLI parses the process command line
func NewConfigFromCLI() (*Config, error) {
	c, err := ParseArgs(flag.CommandLine, os.Args[1:])
	if err != nil {
		flag.Usage()
		return nil, err
	}
	return c, nil
}

// ParseArgs parses and validates the command line arguments
func ParseArgs(fs *flag.FlagSet, args []string) (*Config, error) {
	c := NewConfig()

	var qos uint
	fs.StringVar(&c.DBPath, "db", "", "Path to the database file")
	fs.Int64Var(&c.SessionID, "s", c.SessionID, "Session ID")
	fs.Float64Var(&c.Speed, "speed", c.Speed, "Playback speed factor")
	fs.StringVar(&c.MQTT.Broker, "broker", c.MQTT.Broker, "MQTT broker URL")
	fs.StringVar(&c.MQTT.ClientID, "client-id", c.MQTT.ClientID, "MQTT client ID")
	fs.StringVar(&c.MQTT.Topic, "topic", c.MQTT.Topic, "MQTT topic")
	fs.UintVar(&qos, "qos", 0, "MQTT quality of service [0, 1, 2]")
	fs.BoolVar(&c.MQTT.Retained, "retained", false, "Publish retained messages")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if qos > 2 {
		return nil, fmt.Errorf("invalid QoS: %d", qos)
	}
	c.MQTT.QoS = byte(qos)

	if c.DBPath == "" {
		return nil, errors.New("db path is required")
	}
	if c.SessionID <= 0 {
		return nil, errors.New("session id is required")
	}
	if !(c.Speed > 0) {
		return nil, fmt.Errorf("invalid speed: %v", c.Speed)
	}
	if err := c.MQTT.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
