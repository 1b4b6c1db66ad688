package store

import (
	"time"

	"github.com/google/uuid"
)

// createSession issues a random v4 UUID token. Caller holds s.mu.
func (s *Store) createSession(userID string, now time.Time) string {
	token := uuid.NewString()
	s.sessions[token] = &Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: now.Add(s.opts.SessionTTL),
	}
	return token
}

// validate resolves token to its user. Expiry is checked here and nowhere
// else. Caller holds s.mu.
func (s *Store) validate(token string, now time.Time) (*User, error) {
	session, ok := s.sessions[token]
	if !ok || token == "" || session.ExpiresAt.Before(now) {
		return nil, &ValidationError{Err: ErrSessionInvalid}
	}
	user, ok := s.users[session.UserID]
	if !ok {
		return nil, &ValidationError{Err: ErrSessionInvalid}
	}
	return user, nil
}

// Validate returns the user id behind token.
func (s *Store) Validate(token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, err := s.validate(token, s.now())
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// SweepSessions drops expired sessions and returns how many were removed.
// Validation does not depend on it.
func (s *Store) SweepSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for token, session := range s.sessions {
		if session.ExpiresAt.Before(now) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}
