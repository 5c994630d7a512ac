package service

import (
	"sync"
	"time"

	"github.com/PeterKeDer/connect-5-server/internal/model"
)

// SessionState is the outcome of a registry lookup.
type SessionState int

const (
	SessionNotFound SessionState = iota
	SessionPending
	SessionDisconnected
)

// Session tracks a user who is either awaiting their first connection
// (pending) or tolerating a transport loss (disconnected). The entry is
// resolved exactly once: promoted by Resolve, or expired by its timer.
type Session struct {
	User     *model.User
	Room     *model.Room
	Role     model.Role
	Deadline time.Time

	timer *time.Timer
}

// SessionRegistry holds the two expiring collections. The map mutex is
// the arbiter of the promote-vs-expire race: whichever side removes the
// entry first owns it, the loser finds it gone and does nothing.
type SessionRegistry struct {
	pending           map[string]*Session
	disconnected      map[string]*Session
	pendingTimeout    time.Duration
	disconnectTimeout time.Duration
	mu                sync.Mutex
}

func NewSessionRegistry(pendingTimeout, disconnectTimeout time.Duration) *SessionRegistry {
	return &SessionRegistry{
		pending:           make(map[string]*Session),
		disconnected:      make(map[string]*Session),
		pendingTimeout:    pendingTimeout,
		disconnectTimeout: disconnectTimeout,
	}
}

// AddPending registers a user awaiting their first connection. onExpire
// runs once at the deadline unless the entry is resolved first.
func (sr *SessionRegistry) AddPending(user *model.User, room *model.Room, role model.Role, onExpire func(*Session)) {
	sr.add(sr.pending, user, room, role, sr.pendingTimeout, onExpire)
}

// AddDisconnected registers a user awaiting reconnection.
func (sr *SessionRegistry) AddDisconnected(user *model.User, room *model.Room, role model.Role, onExpire func(*Session)) {
	sr.add(sr.disconnected, user, room, role, sr.disconnectTimeout, onExpire)
}

func (sr *SessionRegistry) add(m map[string]*Session, user *model.User, room *model.Room, role model.Role, timeout time.Duration, onExpire func(*Session)) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	sess := &Session{
		User:     user,
		Room:     room,
		Role:     role,
		Deadline: time.Now().Add(timeout),
	}
	m[user.ID] = sess

	sess.timer = time.AfterFunc(timeout, func() {
		// The timer only acts if the entry is still ours to claim.
		if sr.claim(m, user.ID, sess) {
			onExpire(sess)
		}
	})
}

func (sr *SessionRegistry) claim(m map[string]*Session, userID string, sess *Session) bool {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if cur, ok := m[userID]; ok && cur == sess {
		delete(m, userID)
		return true
	}
	return false
}

// Resolve atomically removes and returns the entry for userID, cancelling
// its expiry. Pending is checked before disconnected. The caller owns the
// returned session and is responsible for seating or reseating the user.
func (sr *SessionRegistry) Resolve(userID string) (*Session, SessionState) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if sess, ok := sr.pending[userID]; ok {
		delete(sr.pending, userID)
		sess.timer.Stop()
		return sess, SessionPending
	}
	if sess, ok := sr.disconnected[userID]; ok {
		delete(sr.disconnected, userID)
		sess.timer.Stop()
		return sess, SessionDisconnected
	}
	return nil, SessionNotFound
}

// Remove drops any entry for userID without invoking its callback. Used
// by explicit leave to cancel an outstanding grace timer.
func (sr *SessionRegistry) Remove(userID string) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if sess, ok := sr.pending[userID]; ok {
		delete(sr.pending, userID)
		sess.timer.Stop()
	}
	if sess, ok := sr.disconnected[userID]; ok {
		delete(sr.disconnected, userID)
		sess.timer.Stop()
	}
}
