package live

import (
	"testing"

	"github.com/rowerg/live-platform/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alwaysDead(string) bool { return false }
func alwaysLive(string) bool { return true }

func TestUpsertSessionMergesPartialUpdates(t *testing.T) {
	store := NewMemoryStore()

	store.UpsertSession("s1", func(s *models.Session) {
		s.EventID = "ev-9"
		s.EventType = "2000m"
	})
	// A later start carries only a competitor list; earlier fields survive.
	store.UpsertSession("s1", func(s *models.Session) {
		s.Competitors = []models.Competitor{{ID: "c1", Name: "Ana"}, {ID: "c2", Name: "Bo"}}
	})

	sess, ok := store.GetSession("s1")
	require.True(t, ok)
	assert.Equal(t, "ev-9", sess.EventID)
	assert.Equal(t, "2000m", sess.EventType)
	assert.Len(t, sess.Competitors, 2)
	assert.False(t, sess.StartedAt.IsZero())
}

func TestDeleteSessionIsExplicitOnly(t *testing.T) {
	store := NewMemoryStore()
	store.UpsertSession("s1", nil)

	assert.True(t, store.DeleteSession("s1"))
	_, ok := store.GetSession("s1")
	assert.False(t, ok)
	assert.False(t, store.DeleteSession("s1"), "second delete is a no-op")
}

func TestFindByBinding(t *testing.T) {
	store := NewMemoryStore()
	store.UpsertSession("s1", func(s *models.Session) { s.TelemetryBindingID = "conn-1" })
	store.UpsertTeamSession("t1", func(s *models.TeamSession) { s.TelemetryBindingID = "conn-2" })

	sess, team := store.FindByBinding("conn-1")
	require.NotNil(t, sess)
	assert.Nil(t, team)
	assert.Equal(t, "s1", sess.SessionID)

	sess, team = store.FindByBinding("conn-2")
	assert.Nil(t, sess)
	require.NotNil(t, team)
	assert.Equal(t, "t1", team.SessionID)

	sess, team = store.FindByBinding("")
	assert.Nil(t, sess)
	assert.Nil(t, team)
}

func TestFindOrphanedIgnoresEmptySessions(t *testing.T) {
	store := NewMemoryStore()
	// Unbound but has no competitors yet: not an orphan.
	store.UpsertSession("empty", nil)

	sess, team, err := store.FindOrphaned(alwaysDead)
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.Nil(t, team)
}

func TestFindOrphanedSingleMatch(t *testing.T) {
	store := NewMemoryStore()
	store.UpsertSession("s1", func(s *models.Session) {
		s.Competitors = []models.Competitor{{ID: "c1"}}
		s.TelemetryBindingID = "gone"
	})
	store.UpsertSession("s2", func(s *models.Session) {
		s.Competitors = []models.Competitor{{ID: "c2"}}
		s.TelemetryBindingID = "still-here"
	})

	sess, team, err := store.FindOrphaned(func(id string) bool { return id == "still-here" })
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Nil(t, team)
	assert.Equal(t, "s1", sess.SessionID)
}

func TestFindOrphanedTeamSession(t *testing.T) {
	store := NewMemoryStore()
	store.UpsertTeamSession("t1", func(s *models.TeamSession) {
		s.TeamA = models.Team{ID: "A", Members: []models.Competitor{{ID: "p1"}}}
	})

	sess, team, err := store.FindOrphaned(alwaysDead)
	require.NoError(t, err)
	assert.Nil(t, sess)
	require.NotNil(t, team)
	assert.Equal(t, "t1", team.SessionID)
}

func TestFindOrphanedAmbiguous(t *testing.T) {
	store := NewMemoryStore()
	store.UpsertSession("s1", func(s *models.Session) {
		s.Competitors = []models.Competitor{{ID: "c1"}}
	})
	store.UpsertSession("s2", func(s *models.Session) {
		s.Competitors = []models.Competitor{{ID: "c2"}}
	})

	_, _, err := store.FindOrphaned(alwaysDead)
	assert.ErrorIs(t, err, ErrAmbiguousOrphan)
}

func TestFindOrphanedNoneWhenAllBound(t *testing.T) {
	store := NewMemoryStore()
	store.UpsertSession("s1", func(s *models.Session) {
		s.Competitors = []models.Competitor{{ID: "c1"}}
		s.TelemetryBindingID = "conn-1"
	})

	sess, team, err := store.FindOrphaned(alwaysLive)
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.Nil(t, team)
}
