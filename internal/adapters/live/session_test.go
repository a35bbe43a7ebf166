package live

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/LiveVoice/internal/core"
	"github.com/dkeye/LiveVoice/internal/domain"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// liveServer runs script after a successful setup handshake.
func liveServer(t *testing.T, script func(conn *websocket.Conn)) (*httptest.Server, chan clientMessage) {
	t.Helper()
	setups := make(chan clientMessage, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var m clientMessage
		if err := conn.ReadJSON(&m); err != nil {
			return
		}
		setups <- m
		if err := conn.WriteJSON(map[string]any{"setupComplete": map[string]any{}}); err != nil {
			return
		}
		script(conn)
	}))
	t.Cleanup(srv.Close)
	return srv, setups
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testConfig() domain.SessionConfig {
	return domain.SessionConfig{
		Model:             "gemini-live",
		Voice:             "Kore",
		SystemInstruction: "be brief",
		SetupTimeout:      time.Second,
	}
}

func audioPart(pcm []byte) map[string]any {
	return map[string]any{"inlineData": map[string]any{
		"mimeType": "audio/pcm;rate=24000",
		"data":     base64.StdEncoding.EncodeToString(pcm),
	}}
}

func collect(t *testing.T, ch <-chan core.Event) []core.Event {
	t.Helper()
	var out []core.Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("events channel was not closed")
		}
	}
}

func TestSessionHandshakeAndDispatch(t *testing.T) {
	srv, setups := liveServer(t, func(conn *websocket.Conn) {
		var in clientMessage
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		_ = conn.WriteJSON(map[string]any{"serverContent": map[string]any{
			"modelTurn": map[string]any{"parts": []any{audioPart([]byte{1, 0}), audioPart([]byte{2, 0})}},
		}})
		_ = conn.WriteJSON(map[string]any{"serverContent": map[string]any{"interrupted": true}})
		_ = conn.WriteJSON(map[string]any{"serverContent": map[string]any{"turnComplete": true}})
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		_, _, _ = conn.ReadMessage()
	})

	d := &Dialer{URL: wsURL(srv), APIKey: "test-key"}
	sc, err := d.Dial(context.Background(), testConfig())
	require.NoError(t, err)
	defer sc.Close()
	assert.Equal(t, domain.StateOpen, sc.State())

	setup := <-setups
	require.NotNil(t, setup.Setup)
	assert.Equal(t, "models/gemini-live", setup.Setup.Model)
	assert.Equal(t, []string{"AUDIO"}, setup.Setup.GenerationConfig.ResponseModalities)
	assert.Equal(t, "Kore", setup.Setup.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
	assert.Equal(t, "be brief", setup.Setup.SystemInstruction.Parts[0].Text)

	require.NoError(t, sc.Send(domain.MediaBlob{MimeType: "audio/pcm;rate=16000", Data: "AAA="}))

	events := collect(t, sc.Events())
	kinds := make([]core.EventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	assert.Equal(t, []core.EventKind{core.EventAudioChunk, core.EventAudioChunk, core.EventInterrupted, core.EventClosed}, kinds)
	assert.Equal(t, uint64(1), events[0].Chunk.Seq)
	assert.Equal(t, []byte{1, 0}, events[0].Chunk.Data)
	assert.Equal(t, uint64(2), events[1].Chunk.Seq)
	assert.Equal(t, "audio/pcm;rate=24000", events[1].Chunk.MimeType)
	assert.Equal(t, domain.StateClosed, sc.State())
}

func TestSessionSendShape(t *testing.T) {
	got := make(chan []byte, 1)
	srv, _ := liveServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.ReadMessage()
		if err == nil {
			got <- data
		}
		_, _, _ = conn.ReadMessage()
	})

	sc, err := (&Dialer{URL: wsURL(srv), APIKey: "test-key"}).Dial(context.Background(), testConfig())
	require.NoError(t, err)
	defer sc.Close()

	require.NoError(t, sc.Send(domain.MediaBlob{MimeType: domain.MimeJPEG, Data: "/9j/"}))

	var m map[string]map[string][]map[string]string
	require.NoError(t, json.Unmarshal(<-got, &m))
	assert.Equal(t, "image/jpeg", m["realtimeInput"]["mediaChunks"][0]["mimeType"])
	assert.Equal(t, "/9j/", m["realtimeInput"]["mediaChunks"][0]["data"])
}

func TestSessionDialRejected(t *testing.T) {
	srv, _ := liveServer(t, func(*websocket.Conn) {})

	_, err := (&Dialer{URL: wsURL(srv), APIKey: "wrong"}).Dial(context.Background(), testConfig())
	require.Error(t, err)

	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "dial", te.Op)
	assert.Equal(t, "Could not connect.", domain.UserMessage(err))
}

func TestSessionSetupTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.SetupTimeout = 50 * time.Millisecond
	_, err := (&Dialer{URL: wsURL(srv)}).Dial(context.Background(), cfg)

	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "setup", te.Op)
}

func TestSessionRemoteDropIsError(t *testing.T) {
	srv, _ := liveServer(t, func(conn *websocket.Conn) {
		_ = conn.UnderlyingConn().Close()
	})

	sc, err := (&Dialer{URL: wsURL(srv), APIKey: "test-key"}).Dial(context.Background(), testConfig())
	require.NoError(t, err)
	defer sc.Close()

	events := collect(t, sc.Events())
	require.Len(t, events, 1)
	assert.Equal(t, core.EventError, events[0].Kind)
	assert.ErrorIs(t, events[0].Err, domain.ErrTransport)
	assert.Equal(t, "Connection lost.", domain.UserMessage(events[0].Err))
	assert.Equal(t, domain.StateError, sc.State())
	assert.ErrorIs(t, sc.Send(domain.MediaBlob{}), domain.ErrSessionClosed)
}

func TestSessionCloseDiscardsInbound(t *testing.T) {
	release := make(chan struct{})
	srv, _ := liveServer(t, func(conn *websocket.Conn) {
		<-release
		_ = conn.WriteJSON(map[string]any{"serverContent": map[string]any{
			"modelTurn": map[string]any{"parts": []any{audioPart([]byte{1, 0})}},
		}})
		_, _, _ = conn.ReadMessage()
	})

	sc, err := (&Dialer{URL: wsURL(srv), APIKey: "test-key"}).Dial(context.Background(), testConfig())
	require.NoError(t, err)

	sc.Close()
	sc.Close()
	close(release)

	assert.Empty(t, collect(t, sc.Events()))
	assert.Equal(t, domain.StateClosed, sc.State())
	assert.ErrorIs(t, sc.Send(domain.MediaBlob{}), domain.ErrSessionClosed)
}

func TestSessionCloseDropsBufferedEvents(t *testing.T) {
	const sent = 50
	srv, _ := liveServer(t, func(conn *websocket.Conn) {
		for range sent {
			_ = conn.WriteJSON(map[string]any{"serverContent": map[string]any{
				"modelTurn": map[string]any{"parts": []any{audioPart([]byte{1, 0})}},
			}})
		}
		_, _, _ = conn.ReadMessage()
	})

	sc, err := (&Dialer{URL: wsURL(srv), APIKey: "test-key"}).Dial(context.Background(), testConfig())
	require.NoError(t, err)
	events := sc.Events()
	require.Eventually(t, func() bool { return len(events) == sent }, 2*time.Second, 5*time.Millisecond)

	sc.Close()

	assert.Empty(t, collect(t, events))
}

func TestSessionSendBackpressure(t *testing.T) {
	s := newSession(domain.SessionConfig{SendBuffer: 1})
	s.state = domain.StateOpen

	require.NoError(t, s.Send(domain.MediaBlob{MimeType: "audio/pcm;rate=16000"}))
	assert.ErrorIs(t, s.Send(domain.MediaBlob{MimeType: "audio/pcm;rate=16000"}), domain.ErrBackpressure)
}

func TestEndpoint(t *testing.T) {
	got, err := endpoint("wss://example.test/ws/live?alt=1", "k")
	require.NoError(t, err)
	assert.Equal(t, "wss://example.test/ws/live?alt=1&key=k", got)

	_, err = endpoint("", "k")
	assert.Error(t, err)
}
