package live

import "github.com/rowerg/live-platform/models"

// Aggregator maintains per-participant scores and the derived team totals.
// The gating rule: a participant's score counts toward the team total only
// once an explicit completion has been received. Complete is the single
// operation allowed to change TotalScore.
type Aggregator struct{}

// ApplyTick upserts the participant's streaming score. For an
// already-completed participant the locked score and the team total are left
// alone; only the display value moves.
func (Aggregator) ApplyTick(sess *models.TeamSession, teamID, participantID, participantName string, currentScore float64) *models.ParticipantScore {
	team := ensureTeamScore(sess, teamID)
	if team == nil {
		return nil
	}
	p := team.Participant(participantID)
	if p == nil {
		p = &models.ParticipantScore{
			ParticipantID:   participantID,
			ParticipantName: participantName,
		}
		team.Participants = append(team.Participants, p)
	}
	if participantName != "" {
		p.ParticipantName = participantName
	}
	p.CurrentScore = currentScore
	if !p.IsCompleted {
		p.IsActive = true
	}
	return p
}

// Complete locks the participant's final score and recomputes the team
// total. Idempotent: re-completing re-applies the final score (last write
// wins) and arrives at the same sum.
func (Aggregator) Complete(sess *models.TeamSession, teamID, participantID, participantName string, finalScore float64) bool {
	team := ensureTeamScore(sess, teamID)
	if team == nil {
		return false
	}
	p := team.Participant(participantID)
	if p == nil {
		p = &models.ParticipantScore{
			ParticipantID:   participantID,
			ParticipantName: participantName,
		}
		team.Participants = append(team.Participants, p)
	}
	p.Score = finalScore
	p.IsCompleted = true
	p.IsActive = false
	recomputeTotal(team)
	return true
}

// RemoveActive marks a participant inactive on an explicit leave. The locked
// score and completion flag are untouched, so a completed rower who leaves
// still counts.
func (Aggregator) RemoveActive(sess *models.TeamSession, teamID, participantID string) bool {
	team, ok := sess.TeamScores[teamID]
	if !ok {
		return false
	}
	p := team.Participant(participantID)
	if p == nil {
		return false
	}
	p.IsActive = false
	recomputeTotal(team)
	return true
}

func ensureTeamScore(sess *models.TeamSession, teamID string) *models.TeamScore {
	if team, ok := sess.TeamScores[teamID]; ok {
		return team
	}
	var name string
	switch teamID {
	case sess.TeamA.ID:
		name = sess.TeamA.Name
	case sess.TeamB.ID:
		name = sess.TeamB.Name
	default:
		// Ticks for a team that is not part of this session are dropped.
		return nil
	}
	team := &models.TeamScore{TeamID: teamID, TeamName: name}
	sess.TeamScores[teamID] = team
	return team
}

func recomputeTotal(team *models.TeamScore) {
	var total float64
	for _, p := range team.Participants {
		if p.IsCompleted {
			total += p.Score
		}
	}
	team.TotalScore = total
}
