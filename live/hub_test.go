package live

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFailureIsLoggedAndSubstituted(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	hub := NewHub(HubConfig{}, logger, NewMetrics(prometheus.NewRegistry()))
	client := hub.Register(nil)

	// A payload of invalid raw bytes cannot be marshalled back out; the hub
	// substitutes an error frame and says so in the log.
	ok := hub.SendToConnection(client.ID, Envelope{Type: "erg:update", Payload: json.RawMessage("{")})
	require.True(t, ok)

	envs := drain(t, client)
	require.Len(t, envs, 1)
	assert.Equal(t, "error", envs[0].Type)
	assert.Contains(t, buf.String(), "failed to encode outbound frame")
}
