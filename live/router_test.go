package live

import (
	"testing"

	"github.com/rowerg/live-platform/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// boundSource starts a head-to-head session and binds an authenticated
// telemetry source to it.
func boundSource(t *testing.T, rig *testRig, sessionID string) *Client {
	t.Helper()
	admin := rig.admin(t)
	rig.dispatch(t, admin, TypeSessionStart, SessionStartPayload{
		SessionID:   sessionID,
		Competitors: []models.Competitor{{ID: "c1", Name: "Ana"}, {ID: "c2", Name: "Bo"}},
	})
	source := rig.connect()
	rig.dispatch(t, source, TypeAuthenticate, AuthenticatePayload{Secret: testSecret, SessionID: sessionID})
	drain(t, source)
	return source
}

func TestMalformedFrameIsIgnored(t *testing.T) {
	rig := newTestRig()
	client := rig.connect()

	rig.router.HandleMessage(client, []byte("{not json"))
	rig.router.HandleMessage(client, []byte(`{"payload":{}}`))
	rig.router.HandleMessage(client, []byte(`{"type":"no:such-thing","payload":{}}`))

	assert.Empty(t, drain(t, client))
	assert.True(t, rig.hub.IsLive(client.ID))
}

func TestTickRelayedToViewers(t *testing.T) {
	rig := newTestRig()
	source := boundSource(t, rig, "s1")

	viewer := rig.connect()
	rig.dispatch(t, viewer, TypeSessionJoin, SessionJoinPayload{SessionID: "s1"})
	drain(t, viewer)

	rig.dispatch(t, source, TypeErgData, ErgDataPayload{
		SessionID:       "s1",
		CompetitorIndex: 0,
		Metrics:         models.ErgMetrics{Distance: 120, Pace: 115.2, StrokeRate: 28},
		CalculatedScore: 120,
	})

	envs := drain(t, viewer)
	require.Len(t, envs, 1)
	assert.Equal(t, TypeErgUpdate, envs[0].Type)
	var update ErgUpdatePayload
	decodeAs(t, envs[0], &update)
	assert.Equal(t, 0, update.CompetitorIndex)
	assert.Equal(t, 120.0, update.CalculatedScore)
	assert.False(t, update.Timestamp.IsZero(), "relay stamps the tick server-side")

	sess, _ := rig.store.GetSession("s1")
	assert.Contains(t, sess.LastTicks, 0)
}

func TestTickForUnknownSessionIsNoOp(t *testing.T) {
	rig := newTestRig()
	source := boundSource(t, rig, "s1")

	viewer := rig.connect()
	rig.dispatch(t, viewer, TypeSessionJoin, SessionJoinPayload{SessionID: "s1"})
	drain(t, viewer)

	rig.dispatch(t, source, TypeErgData, ErgDataPayload{
		SessionID:       "ghost",
		CalculatedScore: 99,
	})

	assert.Empty(t, drain(t, viewer))
	_, ok := rig.store.GetSession("ghost")
	assert.False(t, ok, "a stray tick must not create a session")

	// The bound session keeps working.
	rig.dispatch(t, source, TypeErgData, ErgDataPayload{SessionID: "s1", CalculatedScore: 10})
	assert.Len(t, drain(t, viewer), 1)
}

func TestTickFromUnboundConnectionIsDropped(t *testing.T) {
	rig := newTestRig()
	boundSource(t, rig, "s1")

	viewer := rig.connect()
	rig.dispatch(t, viewer, TypeSessionJoin, SessionJoinPayload{SessionID: "s1"})
	drain(t, viewer)

	impostor := rig.connect()
	rig.dispatch(t, impostor, TypeAuthenticate, AuthenticatePayload{Secret: testSecret})
	drain(t, impostor)
	rig.dispatch(t, impostor, TypeErgData, ErgDataPayload{SessionID: "s1", CalculatedScore: 1})

	assert.Empty(t, drain(t, viewer))
	sess, _ := rig.store.GetSession("s1")
	assert.Empty(t, sess.LastTicks)
}

func TestLateViewerGetsSnapshot(t *testing.T) {
	rig := newTestRig()
	source := boundSource(t, rig, "s1")
	rig.dispatch(t, source, TypeErgData, ErgDataPayload{
		SessionID:       "s1",
		CompetitorIndex: 1,
		CalculatedScore: 300,
	})

	viewer := rig.connect()
	rig.dispatch(t, viewer, TypeSessionJoin, SessionJoinPayload{SessionID: "s1"})

	envs := drain(t, viewer)
	require.Len(t, envs, 1)
	assert.Equal(t, TypeSessionData, envs[0].Type)
	var snapshot models.Session
	decodeAs(t, envs[0], &snapshot)
	assert.Len(t, snapshot.Competitors, 2)
	require.Contains(t, snapshot.LastTicks, 1)
	assert.Equal(t, 300.0, snapshot.LastTicks[1].CalculatedScore)
}

func TestViewerJoinForUnknownSessionSendsNothing(t *testing.T) {
	rig := newTestRig()
	viewer := rig.connect()

	rig.dispatch(t, viewer, TypeSessionJoin, SessionJoinPayload{SessionID: "not-yet"})

	assert.Empty(t, drain(t, viewer))
}

func TestSessionStopDeletesAndNotifies(t *testing.T) {
	rig := newTestRig()
	source := boundSource(t, rig, "s1")

	viewer := rig.connect()
	rig.dispatch(t, viewer, TypeSessionJoin, SessionJoinPayload{SessionID: "s1"})
	drain(t, viewer)

	admin := rig.admin(t)
	rig.dispatch(t, admin, TypeSessionStop, SessionStopPayload{SessionID: "s1"})

	_, ok := rig.store.GetSession("s1")
	assert.False(t, ok)

	types := typesOf(drain(t, viewer))
	assert.Contains(t, types, TypeSessionEnded)
	// The bound source is told to stop streaming.
	assert.Contains(t, typesOf(drain(t, source)), TypeSessionStop)
}

func TestControlForwardedToBoundSource(t *testing.T) {
	rig := newTestRig()
	source := boundSource(t, rig, "s1")

	admin := rig.admin(t)
	rig.dispatch(t, admin, TypeUpdateCompetitors, UpdateCompetitorsPayload{
		SessionID:   "s1",
		Competitors: []models.Competitor{{ID: "c3", Name: "Cy"}},
	})

	envs := drain(t, source)
	require.Len(t, envs, 1)
	assert.Equal(t, TypeUpdateCompetitors, envs[0].Type)

	sess, _ := rig.store.GetSession("s1")
	require.Len(t, sess.Competitors, 1)
	assert.Equal(t, "c3", sess.Competitors[0].ID)
}

func TestControlBroadcastToPoolWhenUnbound(t *testing.T) {
	rig := newTestRig()
	pooled := rig.connect()
	rig.dispatch(t, pooled, TypeAuthenticate, AuthenticatePayload{Secret: testSecret})
	drain(t, pooled)

	admin := rig.admin(t)
	rig.dispatch(t, admin, TypeSessionStart, SessionStartPayload{
		SessionID:   "s1",
		Competitors: []models.Competitor{{ID: "c1"}},
	})

	envs := drain(t, pooled)
	require.Len(t, envs, 1)
	assert.Equal(t, TypeSessionStart, envs[0].Type)
}

func TestTeamRelayFlow(t *testing.T) {
	rig := newTestRig()
	admin := rig.admin(t)
	rig.dispatch(t, admin, TypeTeamSessionStart, TeamSessionStartPayload{
		SessionID: "relay-1",
		TeamA:     models.Team{ID: "A", Name: "Alpha", Members: []models.Competitor{{ID: "p1", Name: "Pia"}}},
		TeamB:     models.Team{ID: "B", Name: "Bravo", Members: []models.Competitor{{ID: "p2", Name: "Quinn"}}},
	})

	source := rig.connect()
	rig.dispatch(t, source, TypeAuthenticate, AuthenticatePayload{Secret: testSecret, SessionID: "relay-1"})
	drain(t, source)

	viewer := rig.connect()
	rig.dispatch(t, viewer, TypeSessionJoin, SessionJoinPayload{SessionID: "relay-1"})
	types := typesOf(drain(t, viewer))
	assert.Contains(t, types, TypeTeamSessionData)
	assert.Contains(t, types, TypeTeamScoreUpdate)

	rig.dispatch(t, admin, TypeAssign, AssignPayload{
		SessionID: "relay-1",
		Assignment: models.Assignment{
			CompetitorID:   "p1",
			CompetitorName: "Pia",
			TeamID:         "A",
			ErgSlotID:      "erg-1",
		},
	})
	drain(t, viewer)
	drain(t, source)

	// Streaming ticks update the display but never the team total.
	rig.dispatch(t, source, TypeTeamErgData, TeamErgDataPayload{
		SessionID:       "relay-1",
		TeamID:          "A",
		ParticipantID:   "p1",
		ParticipantName: "Pia",
		CalculatedScore: 50,
	})
	envs := drain(t, viewer)
	require.Len(t, envs, 1)
	assert.Equal(t, TypeTeamErgUpdate, envs[0].Type)

	sess, _ := rig.store.GetTeamSession("relay-1")
	assert.Equal(t, 0.0, sess.TeamScores["A"].TotalScore)
	assert.Equal(t, 50.0, sess.TeamScores["A"].Participant("p1").CurrentScore)

	// Completion locks the final score and frees the erg slot.
	rig.dispatch(t, admin, TypeComplete, CompletePayload{
		SessionID:    "relay-1",
		ErgSlotID:    "erg-1",
		CompetitorID: "p1",
		TeamID:       "A",
		FinalScore:   55,
	})

	sess, _ = rig.store.GetTeamSession("relay-1")
	assert.Equal(t, 55.0, sess.TeamScores["A"].TotalScore)
	assert.NotContains(t, sess.Assignments, "erg-1")

	types = typesOf(drain(t, viewer))
	require.Contains(t, types, TypeTeamScoreUpdate)
}

func TestTeamCompetitorJoinAndLeave(t *testing.T) {
	rig := newTestRig()
	admin := rig.admin(t)
	rig.dispatch(t, admin, TypeTeamSessionStart, TeamSessionStartPayload{
		SessionID: "relay-1",
		TeamA:     models.Team{ID: "A", Name: "Alpha"},
		TeamB:     models.Team{ID: "B", Name: "Bravo"},
	})

	rig.dispatch(t, admin, TypeTeamCompetitorJoin, TeamCompetitorJoinPayload{
		SessionID:  "relay-1",
		TeamID:     "A",
		Competitor: models.Competitor{ID: "p1", Name: "Pia"},
	})
	sess, _ := rig.store.GetTeamSession("relay-1")
	require.Len(t, sess.TeamA.Members, 1)

	// Joining twice is idempotent.
	rig.dispatch(t, admin, TypeTeamCompetitorJoin, TeamCompetitorJoinPayload{
		SessionID:  "relay-1",
		TeamID:     "A",
		Competitor: models.Competitor{ID: "p1", Name: "Pia"},
	})
	sess, _ = rig.store.GetTeamSession("relay-1")
	require.Len(t, sess.TeamA.Members, 1)

	rig.dispatch(t, admin, TypeTeamCompetitorLeft, TeamCompetitorLeavePayload{
		SessionID:    "relay-1",
		TeamID:       "A",
		CompetitorID: "p1",
	})
	sess, _ = rig.store.GetTeamSession("relay-1")
	assert.Empty(t, sess.TeamA.Members)
}

func TestControlFromAnonymousConnectionIsRejected(t *testing.T) {
	rig := newTestRig()
	anon := rig.connect()

	rig.dispatch(t, anon, TypeSessionStart, SessionStartPayload{
		SessionID:   "s1",
		Competitors: []models.Competitor{{ID: "c1"}},
	})

	_, ok := rig.store.GetSession("s1")
	assert.False(t, ok, "control commands require the admin channel")
	assert.Empty(t, drain(t, anon))
}

func TestViewerCannotStopSession(t *testing.T) {
	rig := newTestRig()
	admin := rig.admin(t)
	rig.dispatch(t, admin, TypeSessionStart, SessionStartPayload{
		SessionID:   "s1",
		Competitors: []models.Competitor{{ID: "c1"}},
	})

	viewer := rig.connect()
	rig.dispatch(t, viewer, TypeSessionJoin, SessionJoinPayload{SessionID: "s1"})
	drain(t, viewer)

	rig.dispatch(t, viewer, TypeSessionStop, SessionStopPayload{SessionID: "s1"})

	_, ok := rig.store.GetSession("s1")
	assert.True(t, ok, "a viewer must not be able to destroy a live session")
	assert.Empty(t, drain(t, viewer))
}

func TestAdminAuthenticateRejectsNonOrganizerToken(t *testing.T) {
	rig := newTestRig()
	c := rig.connect()

	rig.dispatch(t, c, TypeAdminAuthenticate, AdminAuthenticatePayload{Token: signedToken(t, models.RoleViewer)})

	envs := drain(t, c)
	require.Len(t, envs, 1)
	assert.Equal(t, TypeAdminAuthAck, envs[0].Type)
	var ack AdminAuthAck
	decodeAs(t, envs[0], &ack)
	assert.False(t, ack.Success)

	rig.dispatch(t, c, TypeSessionStart, SessionStartPayload{
		SessionID:   "s1",
		Competitors: []models.Competitor{{ID: "c1"}},
	})
	_, ok := rig.store.GetSession("s1")
	assert.False(t, ok)
}

func TestAdminAuthenticateRejectsGarbageToken(t *testing.T) {
	rig := newTestRig()
	c := rig.connect()

	rig.dispatch(t, c, TypeAdminAuthenticate, AdminAuthenticatePayload{Token: "not-a-jwt"})

	envs := drain(t, c)
	require.Len(t, envs, 1)
	var ack AdminAuthAck
	decodeAs(t, envs[0], &ack)
	assert.False(t, ack.Success)
	assert.True(t, rig.hub.IsLive(c.ID), "rejection leaves the connection usable as a viewer")
}

func TestAdminAuthenticateGrantsControl(t *testing.T) {
	rig := newTestRig()
	c := rig.connect()

	rig.dispatch(t, c, TypeAdminAuthenticate, AdminAuthenticatePayload{Token: signedToken(t, models.RoleOrganizer)})

	envs := drain(t, c)
	require.Len(t, envs, 1)
	var ack AdminAuthAck
	decodeAs(t, envs[0], &ack)
	assert.True(t, ack.Success)

	rig.dispatch(t, c, TypeSessionStart, SessionStartPayload{
		SessionID:   "s1",
		Competitors: []models.Competitor{{ID: "c1"}},
	})
	_, ok := rig.store.GetSession("s1")
	assert.True(t, ok)
}

func TestTeamSessionStopDeletesAndNotifies(t *testing.T) {
	rig := newTestRig()
	admin := rig.admin(t)
	rig.dispatch(t, admin, TypeTeamSessionStart, TeamSessionStartPayload{
		SessionID: "relay-1",
		TeamA:     models.Team{ID: "A", Name: "Alpha"},
		TeamB:     models.Team{ID: "B", Name: "Bravo"},
	})

	viewer := rig.connect()
	rig.dispatch(t, viewer, TypeSessionJoin, SessionJoinPayload{SessionID: "relay-1"})
	drain(t, viewer)

	rig.dispatch(t, admin, TypeTeamSessionStop, SessionStopPayload{SessionID: "relay-1"})

	_, ok := rig.store.GetTeamSession("relay-1")
	assert.False(t, ok)
	assert.Contains(t, typesOf(drain(t, viewer)), TypeTeamSessionEnded)
}
