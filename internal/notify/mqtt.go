package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"devicemonitor/internal/models"
)

const publishTimeout = 5 * time.Second

// MQTTClient is the subset of the paho client used by the publisher.
type MQTTClient interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTConfig configures the MQTT status publisher.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QOS      int    `yaml:"qos"`
	Retained bool   `yaml:"retained"`
}

// MQTTPublisher publishes status events as JSON to <topic>/<device id>.
type MQTTPublisher struct {
	client   MQTTClient
	topic    string
	qos      byte
	retained bool
	logger   zerolog.Logger
}

// NewMQTTPublisher wraps an existing client.
func NewMQTTPublisher(client MQTTClient, cfg MQTTConfig, logger zerolog.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		client:   client,
		topic:    strings.TrimSuffix(cfg.Topic, "/"),
		qos:      byte(cfg.QOS),
		retained: cfg.Retained,
		logger:   logger,
	}
}

// DialMQTT connects to the configured broker and returns a publisher.
func DialMQTT(cfg MQTTConfig, logger zerolog.Logger) (*MQTTPublisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(publishTimeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		return nil, fmt.Errorf("connect mqtt %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect mqtt %s: %w", cfg.Broker, err)
	}

	logger.Info().Str("broker", cfg.Broker).Str("topic", cfg.Topic).Msg("MQTT status publisher connected")
	return NewMQTTPublisher(client, cfg, logger), nil
}

// Notify publishes the event. Errors are logged and otherwise ignored.
func (p *MQTTPublisher) Notify(event models.StatusEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Str("device_id", event.DeviceID).Msg("Failed to encode status event")
		return
	}

	topic := p.topic + "/" + event.DeviceID
	token := p.client.Publish(topic, p.qos, p.retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.logger.Warn().Str("topic", topic).Msg("Timed out publishing status event")
		return
	}
	if err := token.Error(); err != nil {
		p.logger.Error().Err(err).Str("topic", topic).Msg("Failed to publish status event")
		return
	}
	p.logger.Debug().Str("topic", topic).Str("status", string(event.Status)).Msg("Status event published")
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
