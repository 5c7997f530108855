// Package emitter publishes alerts and danger transitions to an MQTT
// broker so other devices (a wristband, a caregiver's phone) can react.
package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/teslashibe/go-wayfinder/pkg/protocol"
	"github.com/teslashibe/go-wayfinder/pkg/proximity"
)

// ErrNotConnected is returned when publishing before Connect succeeds.
var ErrNotConnected = errors.New("emitter: mqtt not connected")

// Topic suffixes under Config.TopicPrefix
const (
	TopicAlerts = "alerts"
	TopicDanger = "danger"
	TopicStatus = "status"
)

// Config controls the MQTT emitter. An empty Broker disables it.
type Config struct {
	Broker         string        `yaml:"broker" json:"broker"` // host:port or a full URL
	ClientID       string        `yaml:"client_id" json:"client_id"`
	TopicPrefix    string        `yaml:"topic_prefix" json:"topic_prefix"`
	QoS            byte          `yaml:"qos" json:"qos"`
	Username       string        `yaml:"username" json:"username"`
	Password       string        `yaml:"password" json:"-"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
	PublishTimeout time.Duration `yaml:"publish_timeout" json:"publish_timeout"`
	Buffer         int           `yaml:"buffer" json:"buffer"` // Queued publishes before dropping
}

// DefaultConfig returns a disabled emitter publishing under "wayfinder".
func DefaultConfig() Config {
	return Config{
		TopicPrefix:    "wayfinder",
		QoS:            1,
		ConnectTimeout: 5 * time.Second,
		PublishTimeout: 2 * time.Second,
		Buffer:         64,
	}
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool {
	return c.Broker != ""
}

// Validate checks the config.
func (c Config) Validate() error {
	if c.QoS > 2 {
		return fmt.Errorf("emitter: qos %d must be 0, 1 or 2", c.QoS)
	}
	if c.Enabled() && strings.Trim(c.TopicPrefix, "/") == "" {
		return fmt.Errorf("emitter: topic_prefix is required")
	}
	return nil
}

// Topic returns the full topic for suffix.
func (c Config) Topic(suffix string) string {
	return strings.TrimSuffix(c.TopicPrefix, "/") + "/" + suffix
}

// BrokerURL adds the tcp scheme when Broker has none.
func (c Config) BrokerURL() string {
	if strings.Contains(c.Broker, "://") {
		return c.Broker
	}
	return "tcp://" + c.Broker
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool              `json:"connected"`
	Published map[string]uint64 `json:"published"` // Count per topic
	Dropped   uint64            `json:"dropped"`   // Queue full
	Errors    uint64            `json:"errors"`
}

type publication struct {
	topic    string
	retained bool
	payload  []byte
	danger   bool // Carries the retained danger state
}

// Emitter publishes to MQTT from its own goroutine so the frame loop never
// waits on the network.
type Emitter struct {
	cfg    Config
	client mqtt.Client
	logger *slog.Logger
	queue  chan publication

	mu         sync.RWMutex
	connected  bool
	lastDanger bool // Last danger state queued
	dangerSent bool // The broker holds lastDanger
	inFlight   int  // Danger publications queued or being sent
	published  map[string]uint64
	dropped    uint64
	errors     uint64
}

// New creates an emitter. Call Connect, then Start.
func New(cfg Config, logger *slog.Logger) *Emitter {
	if cfg.ClientID == "" {
		cfg.ClientID = "wayfinder-" + uuid.NewString()[:8]
	}
	e := newEmitter(cfg, nil, logger)
	e.client = mqtt.NewClient(e.clientOptions())
	return e
}

func newEmitter(cfg Config, client mqtt.Client, logger *slog.Logger) *Emitter {
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultConfig().Buffer
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultConfig().PublishTimeout
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConfig().ConnectTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{
		cfg:       cfg,
		client:    client,
		logger:    logger.With("component", "emitter", "broker", cfg.Broker),
		queue:      make(chan publication, cfg.Buffer),
		published:  make(map[string]uint64),
		dangerSent: true,
	}
}

func (e *Emitter) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(e.cfg.BrokerURL())
	opts.SetClientID(e.cfg.ClientID)
	if e.cfg.Username != "" {
		opts.SetUsername(e.cfg.Username)
		opts.SetPassword(e.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	// The broker marks us offline if the connection drops
	opts.SetWill(e.cfg.Topic(TopicStatus), "offline", e.cfg.QoS, true)

	opts.OnConnect = func(c mqtt.Client) {
		e.setConnected(true)
		e.logger.Info("mqtt connection established", "client_id", e.cfg.ClientID)
		c.Publish(e.cfg.Topic(TopicStatus), e.cfg.QoS, true, "online")
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.setConnected(false)
		e.logger.Warn("mqtt connection lost, will auto-reconnect", "error", err)
	}
	return opts
}

// Connect establishes connection to the broker.
func (e *Emitter) Connect(ctx context.Context) error {
	e.logger.Info("connecting to mqtt broker")

	token := e.client.Connect()
	timer := time.NewTimer(e.cfg.ConnectTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-timer.C:
		return fmt.Errorf("emitter: mqtt connection timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("emitter: mqtt connection failed: %w", err)
	}

	e.setConnected(true)
	return nil
}

// Start runs the publish worker until ctx is done.
func (e *Emitter) Start(ctx context.Context) {
	go e.run(ctx)
}

func (e *Emitter) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-e.queue:
			err := e.publish(p)
			if p.danger {
				e.dangerDone(err == nil)
			}
			if err != nil {
				e.logger.Warn("publish failed", "topic", p.topic, "error", err)
			}
		}
	}
}

// HandleResult queues every alert of res and, when the danger signal
// changed or its last publish failed, a retained danger message. It never
// blocks.
func (e *Emitter) HandleResult(res proximity.FrameResult) {
	for _, a := range res.Alerts {
		e.enqueue(publication{topic: e.cfg.Topic(TopicAlerts)}, protocol.FromAlert(res.Sequence, a))
	}

	e.mu.Lock()
	resend := !e.dangerSent && e.inFlight == 0
	send := res.Danger != e.lastDanger || resend
	if send {
		e.lastDanger = res.Danger
		e.inFlight++
	}
	e.mu.Unlock()

	if send {
		ok := e.enqueue(publication{
			topic:    e.cfg.Topic(TopicDanger),
			retained: true,
			danger:   true,
		}, protocol.DangerData{Danger: res.Danger, Sequence: res.Sequence})
		if !ok {
			e.dangerDone(false)
		}
	}
}

// dangerDone records the outcome of a danger publication. A failure leaves
// the state unsent so that the next frame queues it again.
func (e *Emitter) dangerDone(ok bool) {
	e.mu.Lock()
	e.inFlight--
	e.dangerSent = ok
	e.mu.Unlock()
}

func (e *Emitter) enqueue(p publication, v any) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		e.countError()
		e.logger.Error("marshal payload", "topic", p.topic, "error", err)
		return false
	}
	p.payload = payload

	select {
	case e.queue <- p:
		return true
	default:
		e.mu.Lock()
		e.dropped++
		e.mu.Unlock()
		e.logger.Warn("publish queue full, dropping", "topic", p.topic)
		return false
	}
}

func (e *Emitter) publish(p publication) error {
	if !e.isConnected() {
		e.countError()
		return ErrNotConnected
	}

	token := e.client.Publish(p.topic, e.cfg.QoS, p.retained, p.payload)
	if !token.WaitTimeout(e.cfg.PublishTimeout) {
		e.countError()
		return fmt.Errorf("emitter: publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("emitter: publish failed: %w", err)
	}

	e.mu.Lock()
	e.published[p.topic]++
	e.mu.Unlock()

	e.logger.Debug("published", "topic", p.topic, "retained", p.retained, "size", len(p.payload))
	return nil
}

// Close publishes a clean offline status and disconnects.
func (e *Emitter) Close() error {
	if e.client != nil && e.client.IsConnected() {
		token := e.client.Publish(e.cfg.Topic(TopicStatus), e.cfg.QoS, true, "offline")
		token.WaitTimeout(e.cfg.PublishTimeout)
		e.client.Disconnect(250)
		e.logger.Info("mqtt disconnected")
	}
	e.setConnected(false)
	return nil
}

// Stats returns emitter statistics
func (e *Emitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	return Stats{
		Connected: e.connected,
		Published: published,
		Dropped:   e.dropped,
		Errors:    e.errors,
	}
}

func (e *Emitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *Emitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *Emitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
