package live

import (
	"log/slog"
	"time"

	"github.com/rowerg/live-platform/models"
)

// Binding implements the telemetry-source side of the protocol: shared-secret
// authentication, the 1:1 session binding, and reclaim after a disconnect.
//
// Per-session state machine: UNBOUND -> BOUND -> UNBOUND (disconnected) ->
// BOUND (reclaimed) -> DESTROYED. At most one live connection is ever bound
// to a session.
type Binding struct {
	hub     *Hub
	store   SessionStore
	secret  string
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

func NewBinding(hub *Hub, store SessionStore, secret string, logger *slog.Logger, metrics *Metrics) *Binding {
	return &Binding{
		hub:     hub,
		store:   store,
		secret:  secret,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Authenticate validates the shared secret and, when a disconnected session
// matches, rebinds it to this connection and replays the stored snapshot.
// A bad secret is fatal for the socket, with no retry path; the false return
// tells the router to tear the connection down once its dispatch is over,
// since closing from inside a dispatch would re-enter the disconnect path.
func (b *Binding) Authenticate(client *Client, p AuthenticatePayload) bool {
	if p.Secret != b.secret {
		b.metrics.AuthFailures.Inc()
		b.logger.Warn("telemetry source rejected: bad secret",
			slog.String("connection_id", client.ID))
		b.send(client.ID, TypeAuthAck, AuthAck{Success: false})
		return false
	}

	b.hub.ClassifyAsSource(client.ID)

	if p.SessionID != "" {
		b.tryReclaimByID(client, p.SessionID)
		return true
	}
	b.tryReclaimOrphan(client)
	return true
}

func (b *Binding) tryReclaimByID(client *Client, sessionID string) {
	if sess, ok := b.store.GetSession(sessionID); ok {
		populated := len(sess.Competitors) > 0
		stale := sess.TelemetryBindingID == "" || !b.hub.IsLive(sess.TelemetryBindingID)
		if populated && stale {
			b.rebindSession(client, sessionID)
			return
		}
		// Session exists but is not reclaimable: either empty or another
		// source is still live. Authenticate without binding.
		b.send(client.ID, TypeAuthAck, AuthAck{Success: true, SessionID: sessionID})
		return
	}
	if sess, ok := b.store.GetTeamSession(sessionID); ok {
		populated := len(sess.TeamA.Members) > 0 || len(sess.TeamB.Members) > 0
		stale := sess.TelemetryBindingID == "" || !b.hub.IsLive(sess.TelemetryBindingID)
		if populated && stale {
			b.rebindTeamSession(client, sessionID)
			return
		}
		b.send(client.ID, TypeAuthAck, AuthAck{Success: true, SessionID: sessionID})
		return
	}
	b.send(client.ID, TypeAuthAck, AuthAck{Success: true})
}

func (b *Binding) tryReclaimOrphan(client *Client) {
	sess, team, err := b.store.FindOrphaned(b.hub.IsLive)
	if err != nil {
		b.logger.Warn("orphan scan ambiguous, reconnect with an explicit session id",
			slog.String("connection_id", client.ID), slog.Any("error", err))
		b.send(client.ID, TypeAuthAck, AuthAck{Success: true})
		return
	}
	switch {
	case sess != nil:
		b.rebindSession(client, sess.SessionID)
	case team != nil:
		b.rebindTeamSession(client, team.SessionID)
	default:
		b.send(client.ID, TypeAuthAck, AuthAck{Success: true})
	}
}

func (b *Binding) rebindSession(client *Client, sessionID string) {
	sess := b.store.UpsertSession(sessionID, func(s *models.Session) {
		s.TelemetryBindingID = client.ID
		s.DisconnectedAt = nil
	})
	b.metrics.Reclaims.Inc()
	b.logger.Info("telemetry source reclaimed session",
		slog.String("session_id", sessionID),
		slog.String("connection_id", client.ID))

	// The ack and the resume frame share the connection's FIFO send queue,
	// so the source always observes the ack first.
	b.send(client.ID, TypeAuthAck, AuthAck{
		Success:     true,
		Reconnected: true,
		SessionID:   sessionID,
		Session:     sess,
	})
	b.send(client.ID, TypeSessionResume, sess)
	b.broadcast(sessionID, TypeSourceReconnected, SourceStatePayload{SessionID: sessionID})
}

func (b *Binding) rebindTeamSession(client *Client, sessionID string) {
	sess := b.store.UpsertTeamSession(sessionID, func(s *models.TeamSession) {
		s.TelemetryBindingID = client.ID
		s.DisconnectedAt = nil
	})
	b.metrics.Reclaims.Inc()
	b.logger.Info("telemetry source reclaimed team session",
		slog.String("session_id", sessionID),
		slog.String("connection_id", client.ID))

	b.send(client.ID, TypeAuthAck, AuthAck{
		Success:     true,
		Reconnected: true,
		SessionID:   sessionID,
		Session:     sess,
	})
	b.send(client.ID, TypeSessionResume, sess)
	b.broadcast(sessionID, TypeSourceReconnected, SourceStatePayload{SessionID: sessionID})
}

// HandleDisconnect runs when a telemetry-source socket drops. The session
// record survives: only the binding is cleared, so a reconnecting source can
// reclaim it and viewers see "paused", not "over".
func (b *Binding) HandleDisconnect(connectionID string) {
	sess, team := b.store.FindByBinding(connectionID)
	if sess != nil {
		b.store.UpsertSession(sess.SessionID, func(s *models.Session) {
			s.TelemetryBindingID = ""
			now := b.now()
			s.DisconnectedAt = &now
		})
		b.logger.Warn("telemetry source disconnected",
			slog.String("session_id", sess.SessionID))
		b.broadcast(sess.SessionID, TypeSourceDisconnected, SourceStatePayload{SessionID: sess.SessionID})
	}
	if team != nil {
		b.store.UpsertTeamSession(team.SessionID, func(s *models.TeamSession) {
			s.TelemetryBindingID = ""
			now := b.now()
			s.DisconnectedAt = &now
		})
		b.logger.Warn("telemetry source disconnected",
			slog.String("session_id", team.SessionID))
		b.broadcast(team.SessionID, TypeSourceDisconnected, SourceStatePayload{SessionID: team.SessionID})
	}
}

func (b *Binding) send(connectionID, msgType string, payload interface{}) {
	env, err := NewEnvelope(msgType, payload)
	if err != nil {
		b.logger.Error("failed to encode message", slog.String("type", msgType), slog.Any("error", err))
		return
	}
	b.hub.SendToConnection(connectionID, env)
}

func (b *Binding) broadcast(roomID, msgType string, payload interface{}) {
	env, err := NewEnvelope(msgType, payload)
	if err != nil {
		b.logger.Error("failed to encode message", slog.String("type", msgType), slog.Any("error", err))
		return
	}
	b.hub.BroadcastToRoom(roomID, env)
}
