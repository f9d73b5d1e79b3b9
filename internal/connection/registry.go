// Package connection tracks live client sessions and the set of sessions
// subscribed to waiting list pushes.
package connection

import (
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/restaurant-reservation/internal/model"
)

// ErrUnknownSession is returned for an id that is not (or no longer)
// registered.
var ErrUnknownSession = errors.New("unknown session")

// Sender writes one response line to a client. Implementations append the
// line terminator.
type Sender interface {
	Send(line string) error
}

// Session is one connected client.
type Session struct {
	ID          string
	RemoteAddr  string
	ConnectedAt time.Time

	mu         sync.Mutex // guards the identity fields and subscribed
	username   string
	role       string
	subscribed bool

	sendMu sync.Mutex // serializes writes from the handler and broadcasts
	sender Sender
}

// Send writes line to the client. Concurrent callers are serialized so
// lines never interleave.
func (s *Session) Send(line string) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.sender.Send(line)
}

// Identity returns the username and role the client identified as. An
// anonymous session reports RoleGuest.
func (s *Session) Identity() (username, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username, s.role
}

// Role is the session's current role.
func (s *Session) Role() string {
	_, role := s.Identity()
	return role
}

// Info is the observable state of a session.
type Info struct {
	ID          string    `json:"id"`
	RemoteAddr  string    `json:"remote_addr"`
	Username    string    `json:"username,omitempty"`
	Role        string    `json:"role"`
	Subscribed  bool      `json:"subscribed"`
	ConnectedAt time.Time `json:"connected_at"`
}

func (s *Session) info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:          s.ID,
		RemoteAddr:  s.RemoteAddr,
		Username:    s.username,
		Role:        s.role,
		Subscribed:  s.subscribed,
		ConnectedAt: s.ConnectedAt,
	}
}

// Registry is the in-memory table of sessions. The zero value is not
// usable; call NewRegistry.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	subscribers map[string]*Session
	now         func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions:    make(map[string]*Session),
		subscribers: make(map[string]*Session),
		now:         time.Now,
	}
}

// Add registers a new session that writes through sender.
func (r *Registry) Add(remoteAddr string, sender Sender) *Session {
	s := &Session{
		ID:          uuid.NewString(),
		RemoteAddr:  remoteAddr,
		ConnectedAt: r.now().UTC(),
		role:        model.RoleGuest,
		sender:      sender,
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Remove forgets a session and drops it from the subscriber set. It
// reports whether the session was registered.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	delete(r.subscribers, id)
	return ok
}

// Get returns a registered session.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Identify records who is behind a session.
func (r *Registry) Identify(id, username, role string) error {
	s, ok := r.Get(id)
	if !ok {
		return ErrUnknownSession
	}
	s.mu.Lock()
	s.username, s.role = username, role
	s.mu.Unlock()
	return nil
}

// Subscribe adds a session to the waiting list broadcast set.
func (r *Registry) Subscribe(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return ErrUnknownSession
	}
	r.subscribers[id] = s
	s.mu.Lock()
	s.subscribed = true
	s.mu.Unlock()
	return nil
}

// Unsubscribe removes a session from the broadcast set.
func (r *Registry) Unsubscribe(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return ErrUnknownSession
	}
	delete(r.subscribers, id)
	s.mu.Lock()
	s.subscribed = false
	s.mu.Unlock()
	return nil
}

// Subscribers returns a copy of the broadcast set.
func (r *Registry) Subscribers() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.subscribers))
	for _, s := range r.subscribers {
		out = append(out, s)
	}
	return out
}

// Len is the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot lists every live session, oldest first.
func (r *Registry) Snapshot() []Info {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.info())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

// Broadcast pushes line to every subscriber and returns how many writes
// succeeded. The subscriber list is copied under the lock and written to
// outside it; a session whose write fails is removed.
func (r *Registry) Broadcast(line string) int {
	delivered := 0
	for _, s := range r.Subscribers() {
		if err := s.Send(line); err != nil {
			log.Printf("connection: dropping %s (%s): %v", s.ID, s.RemoteAddr, err)
			r.Remove(s.ID)
			continue
		}
		delivered++
	}
	return delivered
}
