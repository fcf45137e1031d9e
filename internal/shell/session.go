// Package shell is the interactive HTTP surface: sessions holding credentials,
// conversation history, intent extraction and dispatch.
package shell

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"finhub-workers/internal/common/metrics"
	"finhub-workers/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

type session struct {
	id           string
	createdAt    time.Time
	lastActivity time.Time
	creds        models.Credentials
	lastIntent   *models.ExtractedIntent
}

// SessionInfo is the secret-free view of a session.
type SessionInfo struct {
	ID           string             `json:"sessionId"`
	CreatedAt    time.Time          `json:"createdAt"`
	LastActivity time.Time          `json:"lastActivity"`
	Credentials  models.Credentials `json:"credentials"`
	HasIntent    bool               `json:"hasIntent"`
}

// SessionStore keeps sessions in process memory. Sessions idle for longer
// than the TTL are dropped together with their credentials.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *SessionStore) Create() SessionInfo {
	now := s.now()
	sess := &session{
		id:           uuid.NewString(),
		createdAt:    now,
		lastActivity: now,
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	return sess.info()
}

func (s *SessionStore) Get(id string) (SessionInfo, error) {
	var info SessionInfo
	err := s.with(id, func(sess *session) {
		info = sess.info()
	})
	return info, err
}

// SaveCredentials replaces the session's credentials.
func (s *SessionStore) SaveCredentials(id string, creds models.Credentials) error {
	return s.with(id, func(sess *session) {
		sess.creds = creds
	})
}

// Credentials returns a copy for one dispatch.
func (s *SessionStore) Credentials(id string) (models.Credentials, error) {
	var creds models.Credentials
	err := s.with(id, func(sess *session) {
		creds = sess.creds
	})
	return creds, err
}

func (s *SessionStore) ClearCredentials(id string) error {
	return s.with(id, func(sess *session) {
		sess.creds = models.Credentials{}
	})
}

func (s *SessionStore) SetLastIntent(id string, intent models.ExtractedIntent) error {
	return s.with(id, func(sess *session) {
		sess.lastIntent = &intent
	})
}

// LastIntent returns the most recently extracted intent, or nil.
func (s *SessionStore) LastIntent(id string) (*models.ExtractedIntent, error) {
	var intent *models.ExtractedIntent
	err := s.with(id, func(sess *session) {
		if sess.lastIntent != nil {
			cp := *sess.lastIntent
			intent = &cp
		}
	})
	return intent, err
}

// Delete drops the session. It reports whether the session existed.
func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[id]
	delete(s.sessions, id)
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	return ok
}

// Sweep removes expired sessions and returns their ids.
func (s *SessionStore) Sweep() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []string
	now := s.now()
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			expired = append(expired, id)
		}
	}
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	return expired
}

// Run sweeps every interval until ctx is done. onExpire is called for each
// removed session outside the lock.
func (s *SessionStore) Run(ctx context.Context, interval time.Duration, onExpire func(id string)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range s.Sweep() {
				if onExpire != nil {
					onExpire(id)
				}
			}
		}
	}
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// with runs fn on a live session under the lock and refreshes its activity.
func (s *SessionStore) with(id string, fn func(*session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	now := s.now()
	// Expired sessions are removed only by Sweep so onExpire always runs.
	if s.expired(sess, now) {
		return ErrSessionNotFound
	}

	sess.lastActivity = now
	fn(sess)
	return nil
}

func (s *SessionStore) expired(sess *session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.lastActivity) > s.ttl
}

func (sess *session) info() SessionInfo {
	return SessionInfo{
		ID:           sess.id,
		CreatedAt:    sess.createdAt,
		LastActivity: sess.lastActivity,
		Credentials:  sess.creds,
		HasIntent:    sess.lastIntent != nil,
	}
}
