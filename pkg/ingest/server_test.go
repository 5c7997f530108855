package ingest

import (
	"context"
	"errors"
	"image"
	"io"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-wayfinder/pkg/protocol"
	"github.com/teslashibe/go-wayfinder/pkg/proximity"
)

func detectionsJSON(t *testing.T, seq uint64, width int) []byte {
	t.Helper()
	msg, err := protocol.NewMessage(protocol.TypeDetections, protocol.DetectionFrame{
		Sequence: seq,
		Width:    width,
		Height:   480,
		Detections: []protocol.DetectionData{
			{ID: 5, ClassName: "person", Confidence: 0.8, Box: [4]int{10, 20, 110, 220}},
		},
	})
	require.NoError(t, err)
	data, err := msg.Bytes()
	require.NoError(t, err)
	return data
}

func next(t *testing.T, s *Server) proximity.Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	f, err := s.Next(ctx)
	require.NoError(t, err)
	return f
}

func TestHandleMessage_Detections(t *testing.T) {
	s := New(DefaultConfig(), nil)

	assert.Nil(t, s.handleMessage(detectionsJSON(t, 0, 640)))
	f := next(t, s)
	assert.Equal(t, uint64(1), f.Sequence, "unnumbered frames get a sequence")
	assert.Equal(t, 640, f.Width)
	require.Len(t, f.Detections, 1)
	assert.Equal(t, proximity.ObjectID(5), f.Detections[0].ID)
	assert.Equal(t, image.Rect(10, 20, 110, 220), f.Detections[0].Box)

	s.handleMessage(detectionsJSON(t, 40, 640))
	assert.Equal(t, uint64(40), next(t, s).Sequence)
	s.handleMessage(detectionsJSON(t, 0, 640))
	assert.Equal(t, uint64(41), next(t, s).Sequence, "numbering continues from the detector's")

	assert.Equal(t, uint64(3), s.Stats().FramesReceived)
}

func TestHandleMessage_Rejects(t *testing.T) {
	s := New(DefaultConfig(), nil)

	tests := map[string][]byte{
		"garbage":     []byte("not json"),
		"zero width":  detectionsJSON(t, 1, 0),
		"unsupported": []byte(`{"type":"alert","data":{}}`),
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			reply := s.handleMessage(in)
			require.NotNil(t, reply)
			assert.Equal(t, protocol.TypeError, reply.Type)
		})
	}
	assert.Equal(t, uint64(3), s.Stats().Rejected)
	assert.Zero(t, s.Stats().FramesReceived)
}

func TestHandleMessage_Ping(t *testing.T) {
	s := New(DefaultConfig(), nil)
	ping, _ := protocol.NewPingMessage("p1")
	data, _ := ping.Bytes()

	reply := s.handleMessage(data)
	require.NotNil(t, reply)
	require.Equal(t, protocol.TypePong, reply.Type)
	pong, err := reply.GetPongData()
	require.NoError(t, err)
	assert.Equal(t, "p1", pong.ID)
	assert.GreaterOrEqual(t, pong.LatencyMs, int64(0))
}

func TestDeliver_ReplacesOldest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Buffer = 2
	s := New(cfg, nil)

	for seq := uint64(1); seq <= 4; seq++ {
		s.deliver(proximity.Frame{Sequence: seq, Width: 640})
	}

	assert.Equal(t, uint64(3), next(t, s).Sequence)
	assert.Equal(t, uint64(4), next(t, s).Sequence)
	assert.Equal(t, uint64(2), s.Stats().FramesDropped)
}

func TestNext_EndsOnCloseAndContext(t *testing.T) {
	s := New(DefaultConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "second close is a no-op")
	_, err = s.Next(context.Background())
	assert.True(t, errors.Is(err, io.EOF))
}

func startServer(t *testing.T, s *Server) string {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	s.RegisterRoutes(app)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })
	return "ws://" + ln.Addr().String() + DefaultConfig().Path
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	var ws *websocket.Conn
	require.Eventually(t, func() bool {
		var err error
		ws, _, err = websocket.DefaultDialer.Dial(url, nil)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	return ws
}

func TestWebSocket_DeliversFrames(t *testing.T) {
	s := New(DefaultConfig(), nil)
	url := startServer(t, s)

	ws := dial(t, url+"?id=test-detector")
	defer ws.Close()

	require.Eventually(t, func() bool { return s.Stats().Connected }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "test-detector", s.Stats().DetectorID)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, detectionsJSON(t, 7, 640)))
	f := next(t, s)
	assert.Equal(t, uint64(7), f.Sequence)

	// Bad frames get an error reply on the same connection
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, detectionsJSON(t, 8, 0)))
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	reply, err := protocol.ParseMessage(data)
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeError, reply.Type)

	ws.Close()
	require.Eventually(t, func() bool { return !s.Stats().Connected }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_SecondDetectorRejected(t *testing.T) {
	s := New(DefaultConfig(), nil)
	url := startServer(t, s)

	first := dial(t, url)
	defer first.Close()
	require.Eventually(t, func() bool { return s.Stats().Connected }, time.Second, 5*time.Millisecond)

	second := dial(t, url)
	defer second.Close()
	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := second.ReadMessage()
	require.NoError(t, err)

	reply, err := protocol.ParseMessage(data)
	require.NoError(t, err)
	ed, err := reply.GetErrorData()
	require.NoError(t, err)
	assert.Equal(t, ErrBusy.Error(), ed.Message)
}
