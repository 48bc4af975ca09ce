package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/furthemore/registerd/internal/config"
	"github.com/furthemore/registerd/internal/models"
)

const (
	// Suffix of the per-terminal topic tree carrying inbound events.
	eventTopicSuffix = "payment/#"
	// Suffix of the topic the frontend display listens on.
	notifyTopicSuffix = "web/notify/payment"

	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// MQTTChannel implements the event channel over an MQTT broker. Each
// Subscribe call owns a fresh broker connection; the caller cancels the
// previous subscription before starting a new one.
type MQTTChannel struct {
	logger *zap.Logger

	mu     sync.Mutex
	client mqtt.Client
}

func NewMQTTChannel(logger *zap.Logger) *MQTTChannel {
	return &MQTTChannel{logger: logger}
}

// eventStream owns a subscription's output channel. Broker callbacks and the
// shutdown path race against each other, so every send and the final close go
// through the same lock: once closed, late callbacks are dropped instead of
// sending on a closed channel.
type eventStream struct {
	ctx context.Context
	out chan models.EventResult

	mu     sync.Mutex
	closed bool
}

func newEventStream(ctx context.Context) *eventStream {
	return &eventStream{ctx: ctx, out: make(chan models.EventResult, 16)}
}

func (s *eventStream) emit(result models.EventResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.out <- result:
	case <-s.ctx.Done():
	}
}

func (s *eventStream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.out)
}

// BrokerURL derives the broker address from the terminal config. Hosts given
// as ws/wss URLs are used as-is for websocket transport, anything else is a
// plain TCP connection.
func BrokerURL(cfg config.Config) string {
	host := cfg.MQTTHost
	if strings.HasPrefix(host, "ws://") || strings.HasPrefix(host, "wss://") {
		return host
	}
	return fmt.Sprintf("tcp://%s:%d", host, cfg.MQTTPort)
}

// EventTopic is the subscription filter for a terminal's inbound events.
func EventTopic(cfg config.Config) string {
	return cfg.MQTTPrefix + "/" + eventTopicSuffix
}

// NotifyTopic is where frontend notifications are published.
func NotifyTopic(cfg config.Config) string {
	return cfg.MQTTPrefix + "/" + notifyTopicSuffix
}

func (m *MQTTChannel) Subscribe(ctx context.Context, cfg config.Config) (<-chan models.EventResult, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(BrokerURL(cfg)).
		SetClientID("terminal-" + strings.ToLower(cfg.TerminalName)).
		SetUsername(cfg.MQTTUsername).
		SetPassword(cfg.MQTTPassword).
		SetCleanSession(false).
		SetKeepAlive(10 * time.Second).
		SetAutoReconnect(false).
		SetConnectTimeout(connectTimeout)

	stream := newEventStream(ctx)

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		m.logger.Warn("MQTT connection lost", zap.Error(err))
		stream.emit(models.EventResult{Err: fmt.Errorf("connection lost: %w", err)})
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); !token.WaitTimeout(connectTimeout) || token.Error() != nil {
		err := token.Error()
		if err == nil {
			err = fmt.Errorf("timed out connecting to broker")
		}
		return nil, fmt.Errorf("could not subscribe to events: %w", err)
	}
	m.logger.Debug("Connected to MQTT broker", zap.String("broker", BrokerURL(cfg)))

	topic := EventTopic(cfg)
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		event, err := models.DecodeEvent(msg.Payload())
		if err != nil {
			m.logger.Warn("Unknown event payload",
				zap.String("topic", msg.Topic()),
				zap.Error(err),
			)
			stream.emit(models.EventResult{Err: err})
			return
		}
		stream.emit(models.EventResult{Event: event})
	}

	if token := client.Subscribe(topic, 1, handler); !token.WaitTimeout(connectTimeout) || token.Error() != nil {
		client.Disconnect(0)
		err := token.Error()
		if err == nil {
			err = fmt.Errorf("timed out subscribing")
		}
		return nil, fmt.Errorf("could not subscribe to events: %w", err)
	}
	m.logger.Debug("Subscribed to event topic", zap.String("topic", topic))

	m.mu.Lock()
	m.client = client
	m.mu.Unlock()

	// The synthetic connected event is the first item on a healthy stream.
	stream.emit(models.EventResult{Event: models.Connected{}})

	go func() {
		<-ctx.Done()
		client.Unsubscribe(topic)
		client.Disconnect(250)
		m.mu.Lock()
		if m.client == client {
			m.client = nil
		}
		m.mu.Unlock()
		stream.close()
		m.logger.Debug("MQTT subscription closed")
	}()

	return stream.out, nil
}

// Publish sends a frontend notification on the active connection. Failures
// are logged and swallowed; there is nothing the session can do about a lost
// display update.
func (m *MQTTChannel) Publish(ctx context.Context, cfg config.Config, notification models.FrontendNotification) {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()

	if client == nil || !client.IsConnected() {
		m.logger.Debug("Dropping frontend notification, channel not connected",
			zap.String("notification", string(notification)))
		return
	}

	payload, err := json.Marshal(string(notification))
	if err != nil {
		return
	}

	topic := NotifyTopic(cfg)
	token := client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
		m.logger.Warn("Could not publish frontend notification",
			zap.String("topic", topic),
			zap.Error(token.Error()),
		)
	}
}
