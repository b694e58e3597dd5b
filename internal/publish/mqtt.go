package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/i474232898/srf-weather/internal/entity"
)

// MQTTConfig holds the broker settings of the MQTT publisher.
type MQTTConfig struct {
	Broker      string
	Port        int
	ClientID    string
	TopicPrefix string
}

// MQTTPublisher publishes the entity state as retained JSON to
// <prefix>/<unique_id>/state.
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
	logger zerolog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMQTTPublisher creates a publisher. Call Connect before the first Publish.
func NewMQTTPublisher(cfg MQTTConfig, logger zerolog.Logger) *MQTTPublisher {
	logger = logger.With().Str("component", "mqtt").Logger()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info().Str("broker", cfg.Broker).Int("port", cfg.Port).Msg("mqtt connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("mqtt connection lost")
	})

	return newMQTTPublisher(mqtt.NewClient(opts), cfg.TopicPrefix, logger)
}

func newMQTTPublisher(client mqtt.Client, prefix string, logger zerolog.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		client: client,
		prefix: prefix,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Connect waits for the initial broker connection. It respects ctx and Disconnect.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return fmt.Errorf("publisher stopped")
	default:
	}

	if p.client.IsConnected() {
		return nil
	}

	token := p.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopCh:
		return fmt.Errorf("publisher stopped")
	}
}

// Topic returns the state topic of the entity with uniqueID.
func (p *MQTTPublisher) Topic(uniqueID string) string {
	return fmt.Sprintf("%s/%s/state", p.prefix, uniqueID)
}

// Publish implements entity.Publisher.
func (p *MQTTPublisher) Publish(ctx context.Context, state entity.State) error {
	if !p.client.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	topic := p.Topic(state.UniqueID)
	token := p.client.Publish(topic, 1, true, data)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.logger.Debug().Str("topic", topic).Int("bytes", len(data)).Msg("published state")
	return nil
}

// Disconnect closes the broker connection. Safe to call more than once.
func (p *MQTTPublisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.client.Disconnect(250)
	p.logger.Info().Msg("mqtt publisher disconnected")
}
