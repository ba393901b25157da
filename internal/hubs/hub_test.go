package hubs_test

import (
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neonbeat/back/internal/hubs"
)

func nopLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestAdminHub_SecondSubscriberInvalidatesFirst(t *testing.T) {
	h := hubs.New(true, nopLogger())

	first := h.Subscribe()
	handshake1 := (<-first.Events()).Payload.(hubs.HandshakePayload)
	require.NotEmpty(t, handshake1.Token)
	assert.True(t, h.ValidateToken(handshake1.Token))

	second := h.Subscribe()
	handshake2 := (<-second.Events()).Payload.(hubs.HandshakePayload)
	require.NotEmpty(t, handshake2.Token)
	assert.NotEqual(t, handshake1.Token, handshake2.Token)

	<-first.Done()
	assert.False(t, h.ValidateToken(handshake1.Token))
	assert.True(t, h.ValidateToken(handshake2.Token))
}

func TestPublicHub_HandshakeHasNoToken(t *testing.T) {
	h := hubs.New(false, nopLogger())

	sub := h.Subscribe()
	handshake := (<-sub.Events()).Payload.(hubs.HandshakePayload)
	assert.Empty(t, handshake.Token)
	assert.False(t, h.ValidateToken("anything"))
}

func TestPublish_DropsSubscriberOnFullQueue(t *testing.T) {
	h := hubs.New(false, nopLogger())
	sub := h.Subscribe()
	<-sub.Events() // drain handshake

	for i := 0; i < 64; i++ {
		h.Publish(hubs.Event{Name: hubs.EventTeamUpdated})
	}

	select {
	case <-sub.Done():
	default:
		t.Fatal("expected subscriber to be dropped after queue overflow")
	}
	assert.Equal(t, 0, h.SubscriberCount())
}

func TestSetDegraded_EmitsOnChangeOnly(t *testing.T) {
	h := hubs.New(false, nopLogger())
	sub := h.Subscribe()
	<-sub.Events() // drain handshake

	assert.True(t, h.SetDegraded(true))
	ev := <-sub.Events()
	assert.Equal(t, hubs.EventSystemStatus, ev.Name)

	assert.False(t, h.SetDegraded(true))
}
