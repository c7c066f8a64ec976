package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/rewired-gh/venuepulse/internal/logger"
	"github.com/rewired-gh/venuepulse/internal/metrics"
)

// DefaultMQTTTopic matches the topics devices publish to: pulse/sensors/<venue>.
const DefaultMQTTTopic = "pulse/sensors/+"

// MQTTConfig holds broker connection settings.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// MQTTSubscriber stores every device message received on the configured
// topic. Messages that fail to decode are counted and dropped.
type MQTTSubscriber struct {
	config MQTTConfig
	proc   *processor

	mu     sync.Mutex
	client mqtt.Client

	ctxMu sync.RWMutex
	ctx   context.Context
}

// NewMQTTSubscriber creates a subscriber. Call Start to connect.
func NewMQTTSubscriber(cfg MQTTConfig, sink ReadingSink, m *metrics.Metrics) *MQTTSubscriber {
	if cfg.Topic == "" {
		cfg.Topic = DefaultMQTTTopic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "venuepulse"
	}
	return &MQTTSubscriber{
		config: cfg,
		proc: &processor{
			source:  SourceMQTT,
			sink:    sink,
			metrics: m,
			now:     time.Now,
		},
		ctx: context.Background(),
	}
}

// Start connects to the broker. The subscription is (re)established in the
// connect handler so it survives automatic reconnects. ctx bounds the
// sink writes made on behalf of received messages.
func (s *MQTTSubscriber) Start(ctx context.Context) error {
	if s.config.Broker == "" {
		return errors.New("mqtt broker must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return errors.New("mqtt subscriber already started")
	}
	s.ctxMu.Lock()
	s.ctx = ctx
	s.ctxMu.Unlock()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.config.Broker)
	opts.SetClientID(s.config.ClientID)
	opts.SetUsername(s.config.Username)
	opts.SetPassword(s.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOnConnectHandler(s.onConnect)
	opts.SetConnectionLostHandler(s.onConnectionLost)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return errors.New("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection error: %w", err)
	}
	s.client = client
	return nil
}

// Stop disconnects from the broker.
func (s *MQTTSubscriber) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return
	}
	if s.client.IsConnected() {
		s.client.Unsubscribe(s.config.Topic).WaitTimeout(5 * time.Second)
	}
	s.client.Disconnect(250)
	s.client = nil
}

func (s *MQTTSubscriber) onConnect(client mqtt.Client) {
	logger.Info("Connected to MQTT broker %s, subscribing to %s", s.config.Broker, s.config.Topic)
	token := client.Subscribe(s.config.Topic, s.config.QoS, s.onMessage)
	if !token.WaitTimeout(10 * time.Second) {
		logger.Error("MQTT subscribe to %s timed out", s.config.Topic)
		return
	}
	if err := token.Error(); err != nil {
		logger.Error("MQTT subscribe to %s failed: %v", s.config.Topic, err)
	}
}

func (s *MQTTSubscriber) onConnectionLost(_ mqtt.Client, err error) {
	logger.Warn("Connection to MQTT broker %s lost: %v", s.config.Broker, err)
}

func (s *MQTTSubscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	s.HandleMessage(msg.Topic(), msg.Payload())
}

// HandleMessage processes one message as if it had been received on topic.
func (s *MQTTSubscriber) HandleMessage(topic string, payload []byte) {
	s.ctxMu.RLock()
	ctx := s.ctx
	s.ctxMu.RUnlock()

	if err := s.proc.process(ctx, VenueFromTopic(topic), payload); err != nil {
		logger.Warn("Dropping MQTT message on %s: %v", topic, err)
	}
}
