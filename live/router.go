package live

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/rowerg/live-platform/models"
)

// Router relays admin control commands toward the bound telemetry source and
// telemetry ticks toward viewer rooms, applying every mutation to the session
// store on the way through.
//
// A single mutex is held for the whole of each dispatch, so every command
// runs to completion before the next one starts and no per-record locking
// is needed.
type Router struct {
	mu        sync.Mutex
	hub       *Hub
	store     SessionStore
	binding   *Binding
	agg       Aggregator
	admins    map[string]bool
	jwtSecret []byte
	logger    *slog.Logger
	metrics   *Metrics
	now       func() time.Time
}

func NewRouter(hub *Hub, store SessionStore, binding *Binding, jwtSecret []byte, logger *slog.Logger, metrics *Metrics) *Router {
	r := &Router{
		hub:       hub,
		store:     store,
		binding:   binding,
		admins:    make(map[string]bool),
		jwtSecret: jwtSecret,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
	hub.OnDisconnect = r.HandleDisconnect
	return r
}

// HandleMessage is the single entry point for every inbound frame. Malformed
// frames and commands referencing unknown sessions are logged no-ops; they
// never affect other connections.
func (r *Router) HandleMessage(client *Client, raw []byte) {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		r.metrics.DroppedMessages.Inc()
		r.logger.Warn("dropping malformed frame",
			slog.String("connection_id", client.ID), slog.Any("error", err))
		return
	}

	// Closing re-enters the disconnect path, which takes the dispatch lock,
	// so a fatal frame is acted on only after the dispatch releases it.
	if fatal := r.dispatch(client, env); fatal {
		r.hub.CloseConnection(client.ID)
	}
}

func (r *Router) dispatch(client *Client, env Envelope) (fatal bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch env.Type {
	case TypeAuthenticate:
		var p AuthenticatePayload
		if r.decode(client, env, &p) {
			return !r.binding.Authenticate(client, p)
		}
	case TypeAdminAuthenticate:
		var p AdminAuthenticatePayload
		if r.decode(client, env, &p) {
			r.handleAdminAuthenticate(client, p)
		}
	case TypeSessionJoin:
		var p SessionJoinPayload
		if r.decode(client, env, &p) {
			r.handleViewerJoin(client, p)
		}
	case TypeSessionStart:
		var p SessionStartPayload
		if r.decode(client, env, &p) && r.requireAdmin(client, env.Type) {
			r.handleSessionStart(env, p)
		}
	case TypeSessionStop:
		var p SessionStopPayload
		if r.decode(client, env, &p) && r.requireAdmin(client, env.Type) {
			r.handleSessionStop(env, p)
		}
	case TypeUpdateCompetitors:
		var p UpdateCompetitorsPayload
		if r.decode(client, env, &p) && r.requireAdmin(client, env.Type) {
			r.handleUpdateCompetitors(env, p)
		}
	case TypeTeamSessionStart:
		var p TeamSessionStartPayload
		if r.decode(client, env, &p) && r.requireAdmin(client, env.Type) {
			r.handleTeamSessionStart(env, p)
		}
	case TypeTeamSessionStop:
		var p SessionStopPayload
		if r.decode(client, env, &p) && r.requireAdmin(client, env.Type) {
			r.handleTeamSessionStop(env, p)
		}
	case TypeTeamCompetitorJoin:
		var p TeamCompetitorJoinPayload
		if r.decode(client, env, &p) && r.requireAdmin(client, env.Type) {
			r.handleTeamCompetitorJoin(env, p)
		}
	case TypeTeamCompetitorLeft:
		var p TeamCompetitorLeavePayload
		if r.decode(client, env, &p) && r.requireAdmin(client, env.Type) {
			r.handleTeamCompetitorLeave(env, p)
		}
	case TypeAssign:
		var p AssignPayload
		if r.decode(client, env, &p) && r.requireAdmin(client, env.Type) {
			r.handleAssign(env, p)
		}
	case TypeComplete:
		var p CompletePayload
		if r.decode(client, env, &p) && r.requireAdmin(client, env.Type) {
			r.handleComplete(env, p)
		}
	case TypeErgData:
		var p ErgDataPayload
		if r.decode(client, env, &p) {
			r.handleErgData(client, p)
		}
	case TypeTeamErgData:
		var p TeamErgDataPayload
		if r.decode(client, env, &p) {
			r.handleTeamErgData(client, p)
		}
	default:
		r.metrics.DroppedMessages.Inc()
		r.logger.Debug("ignoring unknown message type",
			slog.String("type", env.Type), slog.String("connection_id", client.ID))
	}
	return false
}

// HandleDisconnect is wired into the hub and runs after transport-level
// cleanup. Admin grants die with the connection; bound telemetry sources
// additionally go through the binding protocol.
func (r *Router) HandleDisconnect(connectionID string, wasSource bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.admins, connectionID)
	if wasSource {
		r.binding.HandleDisconnect(connectionID)
	}
}

// handleAdminAuthenticate grants the control channel to a connection
// presenting an organizer JWT, the same tokens the HTTP admin routes accept.
// Rejection is not fatal: the connection can stay on as a plain viewer.
func (r *Router) handleAdminAuthenticate(client *Client, p AdminAuthenticatePayload) {
	if !r.isOrganizerToken(p.Token) {
		r.metrics.AuthFailures.Inc()
		r.logger.Warn("admin channel rejected",
			slog.String("connection_id", client.ID))
		r.sendTo(client.ID, TypeAdminAuthAck, AdminAuthAck{Success: false})
		return
	}
	r.admins[client.ID] = true
	r.logger.Info("admin channel granted", slog.String("connection_id", client.ID))
	r.sendTo(client.ID, TypeAdminAuthAck, AdminAuthAck{Success: true})
}

func (r *Router) isOrganizerToken(tokenString string) bool {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return r.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return false
	}
	role, _ := claims["role"].(string)
	return role == models.RoleOrganizer
}

func (r *Router) requireAdmin(client *Client, msgType string) bool {
	if r.admins[client.ID] {
		return true
	}
	r.metrics.DroppedMessages.Inc()
	r.logger.Warn("control command from non-admin connection",
		slog.String("type", msgType), slog.String("connection_id", client.ID))
	return false
}

func (r *Router) handleViewerJoin(client *Client, p SessionJoinPayload) {
	if err := requireSessionID(TypeSessionJoin, p.SessionID); err != nil {
		r.dropInvalid(client, err)
		return
	}
	r.hub.JoinRoom(client.ID, p.SessionID)

	// Snapshot goes to the joining connection only, so a late joiner is not
	// blind until the next tick.
	if sess, ok := r.store.GetSession(p.SessionID); ok {
		r.sendTo(client.ID, TypeSessionData, sess)
		return
	}
	if sess, ok := r.store.GetTeamSession(p.SessionID); ok {
		r.sendTo(client.ID, TypeTeamSessionData, sess)
		r.broadcastScores(sessOnlyTo(client.ID), sess)
	}
}

func (r *Router) handleSessionStart(env Envelope, p SessionStartPayload) {
	if err := requireSessionID(env.Type, p.SessionID); err != nil {
		r.logger.Warn("invalid control command", slog.Any("error", err))
		return
	}
	// Merge, never replace: a start may carry only the fields that changed
	// since an earlier start for the same session.
	sess := r.store.UpsertSession(p.SessionID, func(s *models.Session) {
		if p.Competitors != nil {
			s.Competitors = p.Competitors
		}
		if p.EventID != "" {
			s.EventID = p.EventID
		}
		if p.EventType != "" {
			s.EventType = p.EventType
		}
	})
	r.logger.Info("session started", slog.String("session_id", p.SessionID),
		slog.Int("competitors", len(sess.Competitors)))
	r.forwardControl(env, sess.TelemetryBindingID, p.SessionID)
}

func (r *Router) handleSessionStop(env Envelope, p SessionStopPayload) {
	sess, ok := r.store.GetSession(p.SessionID)
	if !ok {
		// Admin UIs double-submit; an unknown session is not an error.
		r.logger.Warn("stop for unknown session", slog.String("session_id", p.SessionID))
		return
	}
	bindingID := sess.TelemetryBindingID
	r.store.DeleteSession(p.SessionID)
	r.logger.Info("session stopped", slog.String("session_id", p.SessionID))
	r.broadcastTo(p.SessionID, TypeSessionEnded, SessionStopPayload{SessionID: p.SessionID})
	r.forwardControl(env, bindingID, p.SessionID)
}

func (r *Router) handleUpdateCompetitors(env Envelope, p UpdateCompetitorsPayload) {
	if _, ok := r.store.GetSession(p.SessionID); !ok {
		r.logger.Warn("update-competitors for unknown session",
			slog.String("session_id", p.SessionID))
		return
	}
	sess := r.store.UpsertSession(p.SessionID, func(s *models.Session) {
		s.Competitors = p.Competitors
	})
	r.forwardControl(env, sess.TelemetryBindingID, p.SessionID)
}

func (r *Router) handleTeamSessionStart(env Envelope, p TeamSessionStartPayload) {
	if err := requireSessionID(env.Type, p.SessionID); err != nil {
		r.logger.Warn("invalid control command", slog.Any("error", err))
		return
	}
	sess := r.store.UpsertTeamSession(p.SessionID, func(s *models.TeamSession) {
		if p.TeamA.ID != "" {
			s.TeamA = p.TeamA
		}
		if p.TeamB.ID != "" {
			s.TeamB = p.TeamB
		}
		if p.SessionType != "" {
			s.SessionType = p.SessionType
		}
		if s.TeamA.ID != "" {
			ensureTeamScore(s, s.TeamA.ID)
		}
		if s.TeamB.ID != "" {
			ensureTeamScore(s, s.TeamB.ID)
		}
	})
	r.logger.Info("team session started", slog.String("session_id", p.SessionID),
		slog.String("team_a", sess.TeamA.ID), slog.String("team_b", sess.TeamB.ID))
	r.forwardControl(env, sess.TelemetryBindingID, p.SessionID)
}

func (r *Router) handleTeamSessionStop(env Envelope, p SessionStopPayload) {
	sess, ok := r.store.GetTeamSession(p.SessionID)
	if !ok {
		r.logger.Warn("stop for unknown team session", slog.String("session_id", p.SessionID))
		return
	}
	bindingID := sess.TelemetryBindingID
	r.store.DeleteTeamSession(p.SessionID)
	r.logger.Info("team session stopped", slog.String("session_id", p.SessionID))
	r.broadcastTo(p.SessionID, TypeTeamSessionEnded, SessionStopPayload{SessionID: p.SessionID})
	r.forwardControl(env, bindingID, p.SessionID)
}

func (r *Router) handleTeamCompetitorJoin(env Envelope, p TeamCompetitorJoinPayload) {
	sess, ok := r.store.GetTeamSession(p.SessionID)
	if !ok {
		r.logger.Warn("join for unknown team session", slog.String("session_id", p.SessionID))
		return
	}
	sess = r.store.UpsertTeamSession(p.SessionID, func(s *models.TeamSession) {
		addTeamMember(s, p.TeamID, p.Competitor)
	})
	r.forwardControl(env, sess.TelemetryBindingID, p.SessionID)
	r.broadcastScores(nil, sess)
}

func (r *Router) handleTeamCompetitorLeave(env Envelope, p TeamCompetitorLeavePayload) {
	sess, ok := r.store.GetTeamSession(p.SessionID)
	if !ok {
		r.logger.Warn("leave for unknown team session", slog.String("session_id", p.SessionID))
		return
	}
	sess = r.store.UpsertTeamSession(p.SessionID, func(s *models.TeamSession) {
		removeTeamMember(s, p.TeamID, p.CompetitorID)
		r.agg.RemoveActive(s, p.TeamID, p.CompetitorID)
	})
	r.forwardControl(env, sess.TelemetryBindingID, p.SessionID)
	r.broadcastScores(nil, sess)
}

func (r *Router) handleAssign(env Envelope, p AssignPayload) {
	sess, ok := r.store.GetTeamSession(p.SessionID)
	if !ok {
		r.logger.Warn("assign for unknown team session", slog.String("session_id", p.SessionID))
		return
	}
	sess = r.store.UpsertTeamSession(p.SessionID, func(s *models.TeamSession) {
		a := p.Assignment
		s.Assignments[a.ErgSlotID] = &a
	})
	r.logger.Info("erg slot assigned",
		slog.String("session_id", p.SessionID),
		slog.String("erg_slot", p.Assignment.ErgSlotID),
		slog.String("competitor", p.Assignment.CompetitorID))
	r.forwardControl(env, sess.TelemetryBindingID, p.SessionID)
}

func (r *Router) handleComplete(env Envelope, p CompletePayload) {
	sess, ok := r.store.GetTeamSession(p.SessionID)
	if !ok {
		r.logger.Warn("complete for unknown team session", slog.String("session_id", p.SessionID))
		return
	}
	sess = r.store.UpsertTeamSession(p.SessionID, func(s *models.TeamSession) {
		var name string
		if a, ok := s.Assignments[p.ErgSlotID]; ok && a.CompetitorID == p.CompetitorID {
			name = a.CompetitorName
			delete(s.Assignments, p.ErgSlotID)
		}
		r.agg.Complete(s, p.TeamID, p.CompetitorID, name, p.FinalScore)
	})
	r.logger.Info("participant completed",
		slog.String("session_id", p.SessionID),
		slog.String("competitor", p.CompetitorID),
		slog.Float64("final_score", p.FinalScore))
	r.forwardControl(env, sess.TelemetryBindingID, p.SessionID)
	r.broadcastScores(nil, sess)
}

func (r *Router) handleErgData(client *Client, p ErgDataPayload) {
	sess, ok := r.store.GetSession(p.SessionID)
	if !ok {
		// A tick racing a stop lands here; drop it quietly.
		r.metrics.DroppedMessages.Inc()
		r.logger.Debug("tick for unknown session", slog.String("session_id", p.SessionID))
		return
	}
	if sess.TelemetryBindingID != client.ID {
		r.metrics.DroppedMessages.Inc()
		r.logger.Warn("tick from unbound connection",
			slog.String("session_id", p.SessionID),
			slog.String("connection_id", client.ID))
		return
	}
	update := ErgUpdatePayload{
		SessionID:       p.SessionID,
		CompetitorIndex: p.CompetitorIndex,
		Metrics:         p.Metrics,
		CalculatedScore: p.CalculatedScore,
		Timestamp:       r.now(),
	}
	r.store.UpsertSession(p.SessionID, func(s *models.Session) {
		s.LastTicks[p.CompetitorIndex] = models.ErgTick{
			CompetitorIndex: p.CompetitorIndex,
			Metrics:         p.Metrics,
			CalculatedScore: p.CalculatedScore,
			ReceivedAt:      update.Timestamp,
		}
	})
	r.metrics.TicksRelayed.WithLabelValues("head_to_head").Inc()
	r.broadcastTo(p.SessionID, TypeErgUpdate, update)
}

func (r *Router) handleTeamErgData(client *Client, p TeamErgDataPayload) {
	sess, ok := r.store.GetTeamSession(p.SessionID)
	if !ok {
		r.metrics.DroppedMessages.Inc()
		r.logger.Debug("tick for unknown team session", slog.String("session_id", p.SessionID))
		return
	}
	if sess.TelemetryBindingID != client.ID {
		r.metrics.DroppedMessages.Inc()
		r.logger.Warn("tick from unbound connection",
			slog.String("session_id", p.SessionID),
			slog.String("connection_id", client.ID))
		return
	}
	update := TeamErgUpdatePayload{
		SessionID:       p.SessionID,
		TeamID:          p.TeamID,
		ParticipantID:   p.ParticipantID,
		ParticipantName: p.ParticipantName,
		Metrics:         p.Metrics,
		CalculatedScore: p.CalculatedScore,
		Timestamp:       r.now(),
	}
	r.store.UpsertTeamSession(p.SessionID, func(s *models.TeamSession) {
		r.agg.ApplyTick(s, p.TeamID, p.ParticipantID, p.ParticipantName, p.CalculatedScore)
	})
	r.metrics.TicksRelayed.WithLabelValues("team").Inc()
	r.broadcastTo(p.SessionID, TypeTeamErgUpdate, update)
}

// forwardControl relays a control command to the bound telemetry connection
// when one is live, otherwise to the whole source pool, and always to the
// session's viewer room.
func (r *Router) forwardControl(env Envelope, bindingID, sessionID string) {
	if bindingID != "" && r.hub.IsLive(bindingID) {
		r.hub.SendToConnection(bindingID, env)
	} else {
		r.hub.BroadcastToSources(env)
	}
	r.hub.BroadcastToRoom(sessionID, env)
}

// broadcastScores emits the derived team totals; to a single connection when
// onlyTo is set, to the whole room otherwise.
func (r *Router) broadcastScores(onlyTo *string, sess *models.TeamSession) {
	payload := TeamScoreUpdatePayload{SessionID: sess.SessionID, Scores: sess.ScoreList()}
	env, err := NewEnvelope(TypeTeamScoreUpdate, payload)
	if err != nil {
		r.logger.Error("failed to encode score update", slog.Any("error", err))
		return
	}
	if onlyTo != nil {
		r.hub.SendToConnection(*onlyTo, env)
		return
	}
	r.hub.BroadcastToRoom(sess.SessionID, env)
}

func (r *Router) sendTo(connectionID, msgType string, payload interface{}) {
	env, err := NewEnvelope(msgType, payload)
	if err != nil {
		r.logger.Error("failed to encode message", slog.String("type", msgType), slog.Any("error", err))
		return
	}
	r.hub.SendToConnection(connectionID, env)
}

func (r *Router) broadcastTo(roomID, msgType string, payload interface{}) {
	env, err := NewEnvelope(msgType, payload)
	if err != nil {
		r.logger.Error("failed to encode message", slog.String("type", msgType), slog.Any("error", err))
		return
	}
	r.hub.BroadcastToRoom(roomID, env)
}

func (r *Router) decode(client *Client, env Envelope, dst interface{}) bool {
	if err := decodePayload(env, dst); err != nil {
		r.dropInvalid(client, err)
		return false
	}
	return true
}

func (r *Router) dropInvalid(client *Client, err error) {
	r.metrics.DroppedMessages.Inc()
	r.logger.Warn("dropping invalid payload",
		slog.String("connection_id", client.ID), slog.Any("error", err))
}

func addTeamMember(s *models.TeamSession, teamID string, c models.Competitor) {
	team := teamByID(s, teamID)
	if team == nil {
		return
	}
	for _, m := range team.Members {
		if m.ID == c.ID {
			return
		}
	}
	team.Members = append(team.Members, c)
}

func removeTeamMember(s *models.TeamSession, teamID, competitorID string) {
	team := teamByID(s, teamID)
	if team == nil {
		return
	}
	for i, m := range team.Members {
		if m.ID == competitorID {
			team.Members = append(team.Members[:i], team.Members[i+1:]...)
			return
		}
	}
}

func teamByID(s *models.TeamSession, teamID string) *models.Team {
	switch teamID {
	case s.TeamA.ID:
		return &s.TeamA
	case s.TeamB.ID:
		return &s.TeamB
	default:
		return nil
	}
}

func sessOnlyTo(connectionID string) *string {
	return &connectionID
}
