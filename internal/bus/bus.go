package bus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"khome/internal/config"
	"khome/internal/logging"
)

// MessageHandler receives every message arriving on a subscribed topic.
// The payload has firmware quoting already repaired.
type MessageHandler func(topic, payload string)

// Bus wraps the MQTT connection to the node network.
type Bus struct {
	client         mqtt.Client
	logger         *slog.Logger
	handler        MessageHandler
	onConnect      func()
	connectTimeout time.Duration
}

// Options configures a Bus.
type Options struct {
	// OnConnect runs after (re)connecting and subscribing.
	OnConnect func()
	// OnMessage receives all subscribed traffic.
	OnMessage MessageHandler
}

// New builds a Bus from configuration. Connect must be called before use.
func New(cfg *config.Config, logger *slog.Logger, opts Options) *Bus {
	if logger == nil {
		logger = logging.NewNop()
	}
	b := &Bus{
		logger:         logging.WithComponent(logger, "bus"),
		handler:        opts.OnMessage,
		onConnect:      opts.OnConnect,
		connectTimeout: time.Duration(cfg.Broker.ConnectTimeout) * time.Second,
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker.Host, cfg.Broker.Port)).
		SetClientID(cfg.Broker.ClientID).
		SetKeepAlive(time.Duration(cfg.Broker.KeepAlive) * time.Second).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(mqtt.Client) { b.subscribed() }).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			b.logger.Warn("connection to broker lost", logging.Error(err))
		})

	b.client = mqtt.NewClient(clientOpts)
	return b
}

// Connect establishes the broker connection and blocks until it is up or
// the configured timeout elapses.
func (b *Bus) Connect() error {
	token := b.client.Connect()
	if !token.WaitTimeout(b.connectTimeout) {
		return fmt.Errorf("connect to broker: timeout after %s", b.connectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (b *Bus) Close() {
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(250)
	}
}

func (b *Bus) subscribed() {
	for _, topic := range []string{TopicManager, TopicNodes + "/#", TopicData + "/#"} {
		token := b.client.Subscribe(topic, 0, b.dispatch)
		token.Wait()
		if err := token.Error(); err != nil {
			b.logger.Error("subscribe failed", logging.String("topic", topic), logging.Error(err))
		}
	}
	b.logger.Info("connected to broker")
	if b.onConnect != nil {
		b.onConnect()
	}
}

func (b *Bus) dispatch(_ mqtt.Client, msg mqtt.Message) {
	payload := RepairJSON(string(msg.Payload()))
	b.logger.Debug("message received",
		logging.String("topic", msg.Topic()),
		logging.String("payload", payload))
	if b.handler != nil {
		// Handlers may publish and wait on node sessions; never block the
		// paho router goroutine.
		go b.handler(msg.Topic(), payload)
	}
}

// Publish sends a message to the given topic. Non-string messages are JSON
// encoded. When compact is set the payload is packed for node firmware.
// The payload actually sent is returned.
func (b *Bus) Publish(topic string, message any, compact bool) (string, error) {
	var payload string
	switch value := message.(type) {
	case string:
		payload = value
	case []byte:
		payload = string(value)
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("encode payload for %s: %w", topic, err)
		}
		payload = string(encoded)
	}
	if compact {
		payload = Compact(payload)
	}

	b.logger.Debug("message sent", logging.String("topic", topic), logging.String("payload", payload))
	token := b.client.Publish(topic, 0, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return payload, fmt.Errorf("publish to %s: %w", topic, err)
	}
	return payload, nil
}
