package buzzer_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neonbeat/back/internal/buzzer"
)

func nopLogger() zerolog.Logger { return zerolog.New(io.Discard) }

type fakeDispatcher struct {
	mu     sync.Mutex
	buzzes []string
}

func (f *fakeDispatcher) HandleBuzz(buzzerID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buzzes = append(f.buzzes, buzzerID)
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buzzes)
}

var upgrader = websocket.Upgrader{}

func newTestServer(t *testing.T, reg *buzzer.Registry) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		reg.HandleConn(conn)
	}))
	wsURL := "ws" + srv.URL[len("http"):]
	return srv, wsURL
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestHandleConn_IdentifyThenBuzzForwardsToDispatcher(t *testing.T) {
	disp := &fakeDispatcher{}
	reg := buzzer.New(disp, time.Second, nopLogger())
	srv, url := newTestServer(t, reg)
	defer srv.Close()

	conn := dial(t, url)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(buzzer.InboundFrame{Type: "identification", ID: "aaaaaaaaaaaa"}))
	require.Eventually(t, func() bool { return reg.Connected("aaaaaaaaaaaa") }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(buzzer.InboundFrame{Type: "buzz", ID: "aaaaaaaaaaaa"}))
	require.Eventually(t, func() bool { return disp.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHandleConn_BuzzWithMismatchedIDIsIgnored(t *testing.T) {
	disp := &fakeDispatcher{}
	reg := buzzer.New(disp, time.Second, nopLogger())
	srv, url := newTestServer(t, reg)
	defer srv.Close()

	conn := dial(t, url)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(buzzer.InboundFrame{Type: "identification", ID: "aaaaaaaaaaaa"}))
	require.Eventually(t, func() bool { return reg.Connected("aaaaaaaaaaaa") }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(buzzer.InboundFrame{Type: "buzz", ID: "bbbbbbbbbbbb"}))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, disp.count())
}

func TestHandleConn_SecondIdentificationClosesPriorSocket(t *testing.T) {
	disp := &fakeDispatcher{}
	reg := buzzer.New(disp, time.Second, nopLogger())
	srv, url := newTestServer(t, reg)
	defer srv.Close()

	first := dial(t, url)
	defer first.Close()
	require.NoError(t, first.WriteJSON(buzzer.InboundFrame{Type: "identification", ID: "aaaaaaaaaaaa"}))
	require.Eventually(t, func() bool { return reg.Connected("aaaaaaaaaaaa") }, time.Second, 10*time.Millisecond)

	second := dial(t, url)
	defer second.Close()
	require.NoError(t, second.WriteJSON(buzzer.InboundFrame{Type: "identification", ID: "aaaaaaaaaaaa"}))

	first.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := first.ReadMessage()
	assert.Error(t, err) // prior socket closed
}

func TestHandleConn_IdentifyTimeoutClosesSocket(t *testing.T) {
	disp := &fakeDispatcher{}
	reg := buzzer.New(disp, 20*time.Millisecond, nopLogger())
	srv, url := newTestServer(t, reg)
	defer srv.Close()

	conn := dial(t, url)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
