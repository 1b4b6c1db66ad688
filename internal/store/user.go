package store

import (
	"strings"
)

// Register creates a user holding the starting balance and a session for it.
// origin identifies the requesting connection, which is left out of the
// userJoined broadcast.
func (s *Store) Register(origin, username, inviteCode string) (User, string, error) {
	if strings.TrimSpace(username) == "" || inviteCode == "" {
		return User{}, "", invalidInput("username and invite code required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invites[inviteCode]; !ok {
		return User{}, "", &ValidationError{Err: ErrInvalidInvite}
	}
	key := strings.ToLower(username)
	if _, taken := s.usernames[key]; taken {
		return User{}, "", &ValidationError{Err: ErrUsernameTaken}
	}

	now := s.now()
	user := &User{
		ID:        nextID("user", s.userSeq),
		Username:  username,
		Balance:   s.opts.StartingBalance,
		CreatedAt: now,
	}
	grant := entry{
		userID: user.ID,
		kind:   GrantTx,
		amount: user.Balance,
		after:  user.Balance,
	}
	if err := s.journal.recordUser(user, grant); err != nil {
		return User{}, "", err
	}
	s.userSeq++
	s.users[user.ID] = user
	s.usernames[key] = user.ID

	token := s.createSession(user.ID, now)
	s.logger.Infof("Registered %s as %s", user.Username, user.ID)
	s.publisher.Publish(Event{
		Type:    EventUserJoined,
		Except:  origin,
		Payload: Presence{Username: user.Username, At: now},
	})
	return *user, token, nil
}

// Login opens a new session for an existing user. Identity is the name alone.
func (s *Store) Login(origin, username string) (User, string, error) {
	if strings.TrimSpace(username) == "" {
		return User{}, "", invalidInput("username required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.usernames[strings.ToLower(username)]
	if !ok {
		return User{}, "", &NotFoundError{Err: ErrUserNotFound}
	}
	user := s.users[id]
	now := s.now()
	token := s.createSession(user.ID, now)
	s.publisher.Publish(Event{
		Type:    EventUserJoined,
		Except:  origin,
		Payload: Presence{Username: user.Username, At: now},
	})
	return *user, token, nil
}

// Leave announces that a connection last bound to username went away.
// Sessions outlive connections, so nothing is removed, and an expired or swept
// session does not suppress the notice.
func (s *Store) Leave(origin, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.usernames[strings.ToLower(username)]
	if !ok {
		return
	}
	s.publisher.Publish(Event{
		Type:    EventUserLeft,
		Except:  origin,
		Payload: Presence{Username: s.users[id].Username, At: s.now()},
	})
}
