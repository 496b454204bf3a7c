// Package telemetry republishes bancho events to an MQTT broker.
package telemetry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/soumetsu-project/soumetsu/internal/config"
	"github.com/soumetsu-project/soumetsu/internal/events"
	"github.com/soumetsu-project/soumetsu/internal/util"
)

// Topic suffixes, published under the configured prefix.
const (
	TopicSessions = "sessions"
	TopicStreams  = "streams"
	TopicChat     = "chat"
	TopicStatus   = "status"
	TopicAdmin    = "admin"
)

// ErrDisabled is returned by NewMQTTHandler when MQTT is turned off.
var ErrDisabled = errors.New("telemetry: MQTT is disabled")

var eventTopics = map[events.EventType]string{
	events.EventSessionCreated:   TopicSessions,
	events.EventSessionDestroyed: TopicSessions,
	events.EventLoginFailed:      TopicSessions,
	events.EventMailboxOverflow:  TopicSessions,
	events.EventStreamJoined:     TopicStreams,
	events.EventStreamLeft:       TopicStreams,
	events.EventChatMessage:      TopicChat,
	events.EventStatusChange:     TopicStatus,
	events.EventConfigChanged:    TopicAdmin,
	events.EventShutdown:         TopicAdmin,
}

// MQTTHandler publishes every bus event as JSON, tagged with host metadata.
type MQTTHandler struct {
	cfg      config.MQTTConfig
	eventBus *events.EventBus
	client   mqtt.Client
	logger   zerolog.Logger

	// Metadata included in every message
	metadata map[string]interface{}
}

// NewMQTTHandler creates a handler for the broker in cfg. It does not connect.
func NewMQTTHandler(cfg config.MQTTConfig, eventBus *events.EventBus) (*MQTTHandler, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	opts := mqtt.NewClientOptions()
	scheme := "tcp"
	if cfg.UseTLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.BrokerURL, cfg.Port))

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "soumetsu"
	}
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(false)

	if cfg.UseTLS {
		tlsConfig, err := buildTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	h := newHandler(cfg, eventBus, nil)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		h.logger.Info().Msg("MQTT connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		h.logger.Warn().Err(err).Msg("MQTT connection lost")
	})
	h.client = mqtt.NewClient(opts)

	return h, nil
}

func newHandler(cfg config.MQTTConfig, eventBus *events.EventBus, client mqtt.Client) *MQTTHandler {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "soumetsu"
	}
	sysInfo := util.GetSystemInfo()
	return &MQTTHandler{
		cfg:      cfg,
		eventBus: eventBus,
		client:   client,
		logger:   util.ComponentLogger("telemetry"),
		metadata: map[string]interface{}{
			"hostname":  sysInfo.Hostname,
			"os":        sysInfo.OS,
			"cpu_cores": sysInfo.CPUCores,
			"memory_mb": sysInfo.TotalMemory,
		},
	}
}

func buildTLSConfig(cfg config.MQTTConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load MQTT TLS certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read MQTT CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates in MQTT CA file %s", cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}
	return tlsConfig, nil
}

// Start connects, forwards events until ctx is done, then disconnects.
func (h *MQTTHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("broker", h.cfg.BrokerURL).
		Int("port", h.cfg.Port).
		Msg("connecting to MQTT broker")

	token := h.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	h.subscribeEvents()

	<-ctx.Done()

	h.unsubscribeEvents()
	h.publishShutdown()
	h.client.Disconnect(5000)
	h.logger.Info().Msg("MQTT disconnected")

	return nil
}

const handlerName = "mqtt"

func (h *MQTTHandler) subscribeEvents() {
	for t := range eventTopics {
		h.eventBus.Subscribe(t, handlerName, h.onEvent)
	}
}

func (h *MQTTHandler) unsubscribeEvents() {
	for t := range eventTopics {
		h.eventBus.Unsubscribe(t, handlerName)
	}
}

func (h *MQTTHandler) topic(suffix string) string {
	return h.cfg.TopicPrefix + "/" + suffix
}

func (h *MQTTHandler) onEvent(_ context.Context, event events.Event) error {
	suffix, ok := eventTopics[event.Type]
	if !ok {
		return nil
	}
	return h.publish(h.topic(suffix), event)
}

// publish sends event as a JSON message. Nothing is sent while disconnected.
func (h *MQTTHandler) publish(topic string, event events.Event) error {
	if !h.client.IsConnected() {
		return nil
	}

	data, err := json.Marshal(h.buildMessage(event))
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event.Type, err)
	}

	token := h.client.Publish(topic, 1, false, data)
	go func() {
		token.Wait()
		if token.Error() != nil {
			h.logger.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
	return nil
}

// buildMessage combines metadata with the event.
func (h *MQTTHandler) buildMessage(event events.Event) map[string]interface{} {
	msg := make(map[string]interface{}, len(h.metadata)+4)
	for k, v := range h.metadata {
		msg[k] = v
	}
	msg["event"] = string(event.Type)
	msg["source"] = event.Source
	msg["payload"] = event.Payload
	msg["timestamp"] = event.Time.UTC().Format(time.RFC3339)
	return msg
}

func (h *MQTTHandler) publishShutdown() {
	h.publish(h.topic(TopicAdmin), events.New(events.EventShutdown, "telemetry", nil))
}
