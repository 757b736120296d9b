package live

import (
	"testing"

	"github.com/rowerg/live-platform/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTeamSession() *models.TeamSession {
	return &models.TeamSession{
		SessionID:   "s1",
		SessionType: models.SessionTypeTeam,
		TeamA:       models.Team{ID: "A", Name: "Alpha", Members: []models.Competitor{{ID: "p1", Name: "Pia"}}},
		TeamB:       models.Team{ID: "B", Name: "Bravo"},
		TeamScores:  make(map[string]*models.TeamScore),
		Assignments: make(map[string]*models.Assignment),
	}
}

func TestApplyTickDoesNotAffectTotal(t *testing.T) {
	var agg Aggregator
	sess := newTeamSession()

	p := agg.ApplyTick(sess, "A", "p1", "Pia", 50)
	require.NotNil(t, p)

	team := sess.TeamScores["A"]
	require.NotNil(t, team)
	assert.Equal(t, 50.0, p.CurrentScore)
	assert.True(t, p.IsActive)
	assert.False(t, p.IsCompleted)
	assert.Equal(t, 0.0, team.TotalScore, "streaming scores must not count until completion")
}

func TestCompleteLocksScoreIntoTotal(t *testing.T) {
	var agg Aggregator
	sess := newTeamSession()

	agg.ApplyTick(sess, "A", "p1", "Pia", 50)
	require.True(t, agg.Complete(sess, "A", "p1", "Pia", 55))

	team := sess.TeamScores["A"]
	assert.Equal(t, 55.0, team.TotalScore)
	p := team.Participant("p1")
	require.NotNil(t, p)
	assert.True(t, p.IsCompleted)
	assert.False(t, p.IsActive)
	assert.Equal(t, 55.0, p.Score)
}

func TestCompleteIsIdempotent(t *testing.T) {
	var agg Aggregator
	sess := newTeamSession()

	agg.Complete(sess, "A", "p1", "Pia", 55)
	agg.Complete(sess, "A", "p1", "Pia", 55)

	assert.Equal(t, 55.0, sess.TeamScores["A"].TotalScore)
}

func TestCompleteLastWriteWins(t *testing.T) {
	var agg Aggregator
	sess := newTeamSession()

	agg.Complete(sess, "A", "p1", "Pia", 55)
	agg.Complete(sess, "A", "p1", "Pia", 60)

	assert.Equal(t, 60.0, sess.TeamScores["A"].TotalScore)
}

func TestLateTickAfterCompletionIsScoringNoOp(t *testing.T) {
	var agg Aggregator
	sess := newTeamSession()

	agg.Complete(sess, "A", "p1", "Pia", 55)
	p := agg.ApplyTick(sess, "A", "p1", "Pia", 70)
	require.NotNil(t, p)

	team := sess.TeamScores["A"]
	assert.Equal(t, 55.0, p.Score, "locked score must not be overwritten by a late tick")
	assert.Equal(t, 55.0, team.TotalScore)
	assert.True(t, p.IsCompleted)
	assert.False(t, p.IsActive, "a completed participant does not become active again")
	assert.Equal(t, 70.0, p.CurrentScore, "display value still follows the stream")
}

func TestTotalSumsOnlyCompletedParticipants(t *testing.T) {
	var agg Aggregator
	sess := newTeamSession()

	agg.ApplyTick(sess, "A", "p1", "Pia", 10)
	agg.ApplyTick(sess, "A", "p2", "Quinn", 20)
	agg.ApplyTick(sess, "A", "p3", "Rey", 30)
	agg.Complete(sess, "A", "p1", "Pia", 12)
	agg.Complete(sess, "A", "p3", "Rey", 33)

	assert.Equal(t, 45.0, sess.TeamScores["A"].TotalScore)
}

func TestRemoveActiveKeepsCompletedScore(t *testing.T) {
	var agg Aggregator
	sess := newTeamSession()

	agg.Complete(sess, "A", "p1", "Pia", 55)
	require.True(t, agg.RemoveActive(sess, "A", "p1"))

	team := sess.TeamScores["A"]
	assert.Equal(t, 55.0, team.TotalScore, "leaving must not erase a completed score")
	assert.False(t, team.Participant("p1").IsActive)
}

func TestRemoveActiveUnknownParticipant(t *testing.T) {
	var agg Aggregator
	sess := newTeamSession()

	assert.False(t, agg.RemoveActive(sess, "A", "ghost"))
	assert.False(t, agg.RemoveActive(sess, "nope", "p1"))
}

func TestTickForUnknownTeamIsDropped(t *testing.T) {
	var agg Aggregator
	sess := newTeamSession()

	assert.Nil(t, agg.ApplyTick(sess, "C", "p9", "Nobody", 10))
	assert.NotContains(t, sess.TeamScores, "C")
}

func TestParticipantOrderIsInsertionOrder(t *testing.T) {
	var agg Aggregator
	sess := newTeamSession()

	agg.ApplyTick(sess, "A", "p2", "Quinn", 1)
	agg.ApplyTick(sess, "A", "p1", "Pia", 1)
	agg.ApplyTick(sess, "A", "p3", "Rey", 1)

	team := sess.TeamScores["A"]
	require.Len(t, team.Participants, 3)
	assert.Equal(t, "p2", team.Participants[0].ParticipantID)
	assert.Equal(t, "p1", team.Participants[1].ParticipantID)
	assert.Equal(t, "p3", team.Participants[2].ParticipantID)
}
