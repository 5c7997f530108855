package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-wayfinder/pkg/protocol"
	"github.com/teslashibe/go-wayfinder/pkg/proximity"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

// fakeClient records publishes. Unimplemented methods panic through the
// nil embedded interface.
type fakeClient struct {
	mqtt.Client

	connectErr error
	publishErr error

	mu        sync.Mutex
	messages  []published
	connected bool
}

func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	c.connected = c.connectErr == nil
	c.mu.Unlock()
	return newToken(c.connectErr)
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

func (c *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	var b []byte
	switch p := payload.(type) {
	case []byte:
		b = p
	case string:
		b = []byte(p)
	}
	c.messages = append(c.messages, published{topic: topic, retained: retained, payload: b})
	return newToken(c.publishErr)
}

func (c *fakeClient) Messages() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.messages...)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Broker = "localhost:1883"
	cfg.ClientID = "test"
	return cfg
}

func connected(t *testing.T, client *fakeClient) *Emitter {
	t.Helper()
	e := newEmitter(testConfig(), client, nil)
	require.NoError(t, e.Connect(context.Background()))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	e.Start(ctx)
	return e
}

func TestConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled())
	assert.NoError(t, cfg.Validate())

	cfg.Broker = "broker:1883"
	assert.Equal(t, "tcp://broker:1883", cfg.BrokerURL())
	cfg.Broker = "ssl://broker:8883"
	assert.Equal(t, "ssl://broker:8883", cfg.BrokerURL())

	cfg.TopicPrefix = "home/wayfinder/"
	assert.Equal(t, "home/wayfinder/alerts", cfg.Topic(TopicAlerts))

	cfg.QoS = 3
	assert.Error(t, cfg.Validate())

	cfg = testConfig()
	cfg.TopicPrefix = "/"
	assert.Error(t, cfg.Validate())
}

func TestConnect_Error(t *testing.T) {
	e := newEmitter(testConfig(), &fakeClient{connectErr: errors.New("refused")}, nil)
	err := e.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
	assert.False(t, e.Stats().Connected)
}

func TestHandleResult_PublishesAlertsAndDanger(t *testing.T) {
	client := &fakeClient{}
	e := connected(t, client)

	e.HandleResult(proximity.FrameResult{
		Sequence: 3,
		Danger:   true,
		Alerts: []proximity.AlertMessage{{
			Text: "Warning! person at 40.0 cm, center. Stop.", IsDanger: true,
			ObjectID: 2, ClassName: "person", Distance: 40, Zone: proximity.ZoneCenter, Kind: proximity.KindNear,
		}},
	})
	e.HandleResult(proximity.FrameResult{Sequence: 4, Danger: true})
	e.HandleResult(proximity.FrameResult{Sequence: 5, Danger: false})

	require.Eventually(t, func() bool { return len(client.Messages()) == 3 }, time.Second, 5*time.Millisecond)
	msgs := client.Messages()

	assert.Equal(t, "wayfinder/alerts", msgs[0].topic)
	assert.False(t, msgs[0].retained)
	var alert protocol.AlertData
	require.NoError(t, json.Unmarshal(msgs[0].payload, &alert))
	assert.Equal(t, int64(2), alert.ObjectID)
	assert.Equal(t, "center", alert.Zone)

	assert.Equal(t, "wayfinder/danger", msgs[1].topic)
	assert.True(t, msgs[1].retained)
	assert.JSONEq(t, `{"danger":true,"seq":3}`, string(msgs[1].payload))
	assert.JSONEq(t, `{"danger":false,"seq":5}`, string(msgs[2].payload))

	stats := e.Stats()
	assert.Equal(t, uint64(1), stats.Published["wayfinder/alerts"])
	assert.Equal(t, uint64(2), stats.Published["wayfinder/danger"])
}

func TestHandleResult_ResendsDangerAfterReconnect(t *testing.T) {
	client := &fakeClient{}
	e := newEmitter(testConfig(), client, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	e.Start(ctx)

	// The broker is down when the obstacle appears
	e.HandleResult(proximity.FrameResult{Sequence: 1, Danger: true})
	require.Eventually(t, func() bool { return e.Stats().Errors == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, client.Messages())

	require.NoError(t, e.Connect(context.Background()))
	seq := uint64(1)
	require.Eventually(t, func() bool {
		seq++
		e.HandleResult(proximity.FrameResult{Sequence: seq, Danger: true})
		return len(client.Messages()) > 0
	}, time.Second, 5*time.Millisecond)

	// Once delivered the unchanged state is not sent again
	e.HandleResult(proximity.FrameResult{Sequence: seq + 1, Danger: true})
	e.HandleResult(proximity.FrameResult{Sequence: seq + 2, Danger: true})
	time.Sleep(20 * time.Millisecond)

	msgs := client.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "wayfinder/danger", msgs[0].topic)
	assert.True(t, msgs[0].retained)
	var d protocol.DangerData
	require.NoError(t, json.Unmarshal(msgs[0].payload, &d))
	assert.True(t, d.Danger)
	assert.Equal(t, uint64(1), e.Stats().Published["wayfinder/danger"])
}

func TestHandleResult_ResendsDroppedDanger(t *testing.T) {
	cfg := testConfig()
	cfg.Buffer = 1
	e := newEmitter(cfg, &fakeClient{}, nil)

	// No worker, so the alert fills the queue and the danger message is dropped
	e.HandleResult(proximity.FrameResult{Danger: true, Alerts: []proximity.AlertMessage{{ObjectID: 1}}})
	assert.Equal(t, uint64(1), e.Stats().Dropped)

	<-e.queue
	e.HandleResult(proximity.FrameResult{Danger: true})
	require.Len(t, e.queue, 1)
	p := <-e.queue
	assert.True(t, p.danger)
	assert.Equal(t, "wayfinder/danger", p.topic)
}

func TestPublish_NotConnected(t *testing.T) {
	e := newEmitter(testConfig(), &fakeClient{}, nil)
	err := e.publish(publication{topic: "wayfinder/alerts"})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, uint64(1), e.Stats().Errors)
}

func TestPublish_Error(t *testing.T) {
	client := &fakeClient{publishErr: errors.New("no route")}
	e := newEmitter(testConfig(), client, nil)
	require.NoError(t, e.Connect(context.Background()))

	err := e.publish(publication{topic: "wayfinder/alerts", payload: []byte("{}")})
	require.Error(t, err)
	assert.Equal(t, uint64(1), e.Stats().Errors)
	assert.Empty(t, e.Stats().Published)
}

func TestEnqueue_DropsWhenFull(t *testing.T) {
	cfg := testConfig()
	cfg.Buffer = 1
	e := newEmitter(cfg, &fakeClient{}, nil)

	// No worker running, so the queue fills
	e.HandleResult(proximity.FrameResult{Alerts: []proximity.AlertMessage{{ObjectID: 1}, {ObjectID: 2}}})
	assert.Equal(t, uint64(1), e.Stats().Dropped)
}

func TestClose_PublishesOffline(t *testing.T) {
	client := &fakeClient{}
	e := connected(t, client)

	require.NoError(t, e.Close())
	msgs := client.Messages()
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	assert.Equal(t, "wayfinder/status", last.topic)
	assert.Equal(t, "offline", string(last.payload))
	assert.True(t, last.retained)
	assert.False(t, client.IsConnected())
	assert.False(t, e.Stats().Connected)
}
