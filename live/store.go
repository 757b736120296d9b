package live

import (
	"errors"
	"sync"
	"time"

	"github.com/rowerg/live-platform/models"
)

// ErrAmbiguousOrphan is returned when more than one session has lost its
// telemetry binding; a reconnecting source must then supply an explicit
// session id instead of letting the scan pick one.
var ErrAmbiguousOrphan = errors.New("multiple orphaned sessions, session id required")

// SessionStore owns every live session record. All mutation goes through
// the Upsert* mutators, which is what keeps the completion-gated scoring
// invariant enforceable; nothing else holds long-lived references.
type SessionStore interface {
	GetSession(sessionID string) (*models.Session, bool)
	GetTeamSession(sessionID string) (*models.TeamSession, bool)

	// UpsertSession creates the record if absent, then applies mutate to it.
	// Fields the mutator does not touch keep their previous values, which is
	// what lets a start command arrive with only a partial field set.
	UpsertSession(sessionID string, mutate func(*models.Session)) *models.Session
	UpsertTeamSession(sessionID string, mutate func(*models.TeamSession)) *models.TeamSession

	// Delete* remove a record; used only on an explicit stop, never on a
	// transport disconnect.
	DeleteSession(sessionID string) bool
	DeleteTeamSession(sessionID string) bool

	// FindByBinding returns whichever session (at most one of each kind)
	// is bound to the given connection.
	FindByBinding(connectionID string) (*models.Session, *models.TeamSession)

	// FindOrphaned scans for a session whose binding is empty or stale (per
	// isLive) and which has at least one competitor. Exactly one match is
	// returned; several matches yield ErrAmbiguousOrphan.
	FindOrphaned(isLive func(bindingID string) bool) (*models.Session, *models.TeamSession, error)
}

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	teams    map[string]*models.TeamSession
	now      func() time.Time
}

func NewMemoryStore() SessionStore {
	return &memoryStore{
		sessions: make(map[string]*models.Session),
		teams:    make(map[string]*models.TeamSession),
		now:      time.Now,
	}
}

func (s *memoryStore) GetSession(sessionID string) (*models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	return sess, ok
}

func (s *memoryStore) GetTeamSession(sessionID string) (*models.TeamSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.teams[sessionID]
	return sess, ok
}

func (s *memoryStore) UpsertSession(sessionID string, mutate func(*models.Session)) *models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &models.Session{
			SessionID: sessionID,
			StartedAt: s.now(),
			LastTicks: make(map[int]models.ErgTick),
		}
		s.sessions[sessionID] = sess
	}
	if mutate != nil {
		mutate(sess)
	}
	return sess
}

func (s *memoryStore) UpsertTeamSession(sessionID string, mutate func(*models.TeamSession)) *models.TeamSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.teams[sessionID]
	if !ok {
		sess = &models.TeamSession{
			SessionID:   sessionID,
			SessionType: models.SessionTypeTeam,
			StartedAt:   s.now(),
			TeamScores:  make(map[string]*models.TeamScore),
			Assignments: make(map[string]*models.Assignment),
		}
		s.teams[sessionID] = sess
	}
	if mutate != nil {
		mutate(sess)
	}
	return sess
}

func (s *memoryStore) DeleteSession(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return false
	}
	delete(s.sessions, sessionID)
	return true
}

func (s *memoryStore) DeleteTeamSession(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teams[sessionID]; !ok {
		return false
	}
	delete(s.teams, sessionID)
	return true
}

func (s *memoryStore) FindByBinding(connectionID string) (*models.Session, *models.TeamSession) {
	if connectionID == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sess *models.Session
	var team *models.TeamSession
	for _, candidate := range s.sessions {
		if candidate.TelemetryBindingID == connectionID {
			sess = candidate
			break
		}
	}
	for _, candidate := range s.teams {
		if candidate.TelemetryBindingID == connectionID {
			team = candidate
			break
		}
	}
	return sess, team
}

func (s *memoryStore) FindOrphaned(isLive func(string) bool) (*models.Session, *models.TeamSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var foundSession *models.Session
	var foundTeam *models.TeamSession
	matches := 0

	for _, sess := range s.sessions {
		if len(sess.Competitors) == 0 {
			continue
		}
		if sess.TelemetryBindingID == "" || !isLive(sess.TelemetryBindingID) {
			foundSession = sess
			matches++
		}
	}
	for _, sess := range s.teams {
		if len(sess.TeamA.Members) == 0 && len(sess.TeamB.Members) == 0 {
			continue
		}
		if sess.TelemetryBindingID == "" || !isLive(sess.TelemetryBindingID) {
			foundTeam = sess
			matches++
		}
	}

	switch matches {
	case 0:
		return nil, nil, nil
	case 1:
		if foundTeam != nil && foundSession == nil {
			return nil, foundTeam, nil
		}
		return foundSession, nil, nil
	default:
		return nil, nil, ErrAmbiguousOrphan
	}
}
