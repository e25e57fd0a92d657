package booking

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doctoc/doctoc/internal/domain/scheduling"
)

// Session is one patient's walk through the wizard for a single doctor.
// All mutable fields are guarded by mu. Remote calls are made without
// holding mu; their results are applied only if the selection they were
// requested for is still current.
type Session struct {
	ID        string
	DoctorID  string
	CreatedAt time.Time

	mu            sync.Mutex
	owner         *User
	wizard        *Wizard
	schedule      scheduling.WeeklySchedule
	busyDate      string
	busy          []scheduling.BusyRange
	types         []scheduling.AppointmentType
	payload       *AppointmentPayload
	payloadSel    Selection
	submitting    bool
	appointmentID string
}

func newSession(doctorID string, owner *User, schedule scheduling.WeeklySchedule, now time.Time) *Session {
	sess := &Session{
		ID:        uuid.New().String(),
		DoctorID:  doctorID,
		CreatedAt: now,
		wizard:    NewWizard(owner != nil),
		schedule:  schedule,
	}
	if owner != nil {
		u := *owner
		sess.owner = &u
	}
	return sess
}

type sessionEntry struct {
	sess     *Session
	lastSeen time.Time
}

// SessionStore keeps wizard sessions in memory. Sessions idle for longer
// than the TTL are dropped on access and by Sweep.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates a store. A nil clock uses time.Now.
func NewSessionStore(ttl time.Duration, now func() time.Time) *SessionStore {
	if now == nil {
		now = time.Now
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionStore{
		sessions: make(map[string]*sessionEntry),
		ttl:      ttl,
		now:      now,
	}
}

func (s *SessionStore) Add(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = &sessionEntry{sess: sess, lastSeen: s.now()}
}

// Get returns a live session and refreshes its idle timer.
func (s *SessionStore) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	now := s.now()
	if now.Sub(e.lastSeen) > s.ttl {
		delete(s.sessions, id)
		return nil, ErrSessionNotFound
	}
	e.lastSeen = now
	return e.sess, nil
}

func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Sweep removes expired sessions and returns how many were dropped.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for id, e := range s.sessions {
		if now.Sub(e.lastSeen) > s.ttl {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
