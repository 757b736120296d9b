package live

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/rowerg/live-platform/models"
)

const (
	testSecret    = "erg-secret"
	testJWTSecret = "jwt-secret"
)

// testRig wires a hub, store, binding and router the way main does, with a
// private metrics registry so tests can run in parallel.
type testRig struct {
	hub    *Hub
	store  SessionStore
	router *Router
}

func newTestRig() *testRig {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := NewMetrics(prometheus.NewRegistry())
	hub := NewHub(HubConfig{}, logger, metrics)
	store := NewMemoryStore()
	binding := NewBinding(hub, store, testSecret, logger, metrics)
	router := NewRouter(hub, store, binding, []byte(testJWTSecret), logger, metrics)
	return &testRig{hub: hub, store: store, router: router}
}

// connect registers a client with no underlying socket; messages pile up in
// its Send channel for assertions.
func (r *testRig) connect() *Client {
	return r.hub.Register(nil)
}

func signedToken(t *testing.T, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": 1,
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

// admin connects and unlocks the control channel with an organizer token.
func (r *testRig) admin(t *testing.T) *Client {
	t.Helper()
	c := r.connect()
	r.dispatch(t, c, TypeAdminAuthenticate, AdminAuthenticatePayload{Token: signedToken(t, models.RoleOrganizer)})
	drain(t, c)
	return c
}

// dispatch feeds one frame through the router the way ReadPump would.
func (r *testRig) dispatch(t *testing.T, client *Client, msgType string, payload interface{}) {
	t.Helper()
	env, err := NewEnvelope(msgType, payload)
	require.NoError(t, err)
	data, err := json.Marshal(env)
	require.NoError(t, err)
	r.router.HandleMessage(client, data)
}

// drain empties a client's send queue into decoded envelopes.
func drain(t *testing.T, client *Client) []Envelope {
	t.Helper()
	var out []Envelope
	for {
		select {
		case data, ok := <-client.Send:
			if !ok {
				return out
			}
			var env Envelope
			require.NoError(t, json.Unmarshal(data, &env))
			out = append(out, env)
		default:
			return out
		}
	}
}

func decodeAs(t *testing.T, env Envelope, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Payload, dst))
}

func typesOf(envs []Envelope) []string {
	types := make([]string, len(envs))
	for i, env := range envs {
		types[i] = env.Type
	}
	return types
}
