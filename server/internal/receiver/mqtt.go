package receiver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/vitalops/vitalops/server/internal/config"
	"github.com/vitalops/vitalops/server/internal/vitals"
)

// Subscriber consumes device readings published to an MQTT topic and feeds
// them through a Receiver. Invalid payloads are logged and dropped.
type Subscriber struct {
	client    mqtt.Client
	cfg       config.MQTTConfig
	receiver  *Receiver
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSubscriber builds an auto-reconnecting MQTT client for cfg. It does not
// connect until Connect is called.
func NewSubscriber(cfg config.MQTTConfig, rc *Receiver) *Subscriber {
	s := &Subscriber{
		cfg:      cfg,
		receiver: rc,
		stopCh:   make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password())
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		s.setConnected(true)
		slog.Info("mqtt connected", "broker", cfg.Broker, "port", cfg.Port)
		// Clean sessions lose subscriptions on reconnect.
		if err := s.subscribe(c); err != nil {
			slog.Error("mqtt subscribe failed", "topic", cfg.Topic, "err", err)
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.setConnected(false)
		slog.Warn("mqtt connection lost", "err", err)
	})

	s.client = mqtt.NewClient(opts)
	return s
}

// Connect establishes the broker connection. The topic subscription is made
// from the on-connect handler so that it survives reconnects. Connect returns
// early if ctx is cancelled or the subscriber is stopped.
func (s *Subscriber) Connect(ctx context.Context) error {
	select {
	case <-s.stopCh:
		return fmt.Errorf("mqtt subscriber stopped")
	default:
	}

	if s.IsConnected() {
		return nil
	}

	token := s.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			s.client.Disconnect(0)
			return ctx.Err()
		case <-s.stopCh:
			s.client.Disconnect(0)
			return fmt.Errorf("mqtt subscriber stopped")
		default:
		}
	}
}

func (s *Subscriber) subscribe(c mqtt.Client) error {
	const qos = byte(1) // at least once

	token := c.Subscribe(s.cfg.Topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", s.cfg.Topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.cfg.Topic, err)
	}

	slog.Info("subscribed to mqtt topic", "topic", s.cfg.Topic, "qos", qos)
	return nil
}

// handleMessage decodes one payload and passes it to the receiver.
func (s *Subscriber) handleMessage(topic string, payload []byte) {
	slog.Debug("received mqtt message", "topic", topic, "size", len(payload))

	var p vitals.Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		slog.Warn("mqtt: failed to parse reading",
			"topic", topic,
			"err", err,
			"payload", string(payload),
		)
		s.receiver.Reject(SourceMQTT, err)
		return
	}

	r, err := p.Reading()
	if err != nil {
		slog.Warn("mqtt: invalid reading", "topic", topic, "err", err)
		s.receiver.Reject(SourceMQTT, err)
		return
	}

	if _, err := s.receiver.Accept(SourceMQTT, r); err != nil {
		slog.Warn("mqtt: reading not stored", "topic", topic, "err", err)
	}
}

// IsConnected returns whether the client is connected.
func (s *Subscriber) IsConnected() bool {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	return connected && s.client.IsConnected()
}

// Disconnect stops the subscriber and closes the MQTT connection.
// Idempotent and safe to call multiple times.
func (s *Subscriber) Disconnect() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	if s.client != nil && s.IsConnected() {
		token := s.client.Unsubscribe(s.cfg.Topic)
		token.WaitTimeout(2 * time.Second)
	}
	if s.client != nil {
		s.client.Disconnect(250)
	}

	s.setConnected(false)
	slog.Info("mqtt subscriber disconnected")
}

func (s *Subscriber) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
