package presence

import (
	"sync"

	"letscollab-be/pkg/realtime"
)

// Registry maps a document session to the connections currently in it.
// A session exists only while it has at least one participant.
type Registry struct {
	mu       sync.Mutex
	sessions map[string][]realtime.Participant // registration order, oldest first
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string][]realtime.Participant),
	}
}

// Register adds a participant. Re-registering a connection id moves it to the
// most recent position with the new metadata.
func (r *Registry) Register(sessionID string, p realtime.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	participants := removeConnection(r.sessions[sessionID], p.ConnectionID)
	r.sessions[sessionID] = append(participants, p)
}

// Unregister removes a connection and returns how many connections remain.
// The session entry is dropped when the last one leaves.
func (r *Registry) Unregister(sessionID, connectionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	participants, ok := r.sessions[sessionID]
	if !ok {
		return 0
	}
	participants = removeConnection(participants, connectionID)
	if len(participants) == 0 {
		delete(r.sessions, sessionID)
		return 0
	}
	r.sessions[sessionID] = participants
	return len(participants)
}

// ListUnique returns one participant per user id. For users with several
// connections, the most recently registered connection wins.
func (r *Registry) ListUnique(sessionID string) []realtime.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	participants := r.sessions[sessionID]
	latest := make(map[string]int, len(participants))
	for i, p := range participants {
		latest[p.UserID] = i
	}

	unique := make([]realtime.Participant, 0, len(latest))
	for i, p := range participants {
		if latest[p.UserID] == i {
			unique = append(unique, p)
		}
	}
	return unique
}

// Connections returns every connection id in the session, including several per user.
func (r *Registry) Connections(sessionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	participants := r.sessions[sessionID]
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.ConnectionID)
	}
	return ids
}

// ConnectionCount counts connections held by one user in a session.
func (r *Registry) ConnectionCount(sessionID, userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, p := range r.sessions[sessionID] {
		if p.UserID == userID {
			n++
		}
	}
	return n
}

func (r *Registry) Has(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[sessionID]
	return ok
}

// SessionCount is the number of live sessions.
func (r *Registry) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func removeConnection(participants []realtime.Participant, connectionID string) []realtime.Participant {
	for i, p := range participants {
		if p.ConnectionID == connectionID {
			out := make([]realtime.Participant, 0, len(participants)-1)
			out = append(out, participants[:i]...)
			return append(out, participants[i+1:]...)
		}
	}
	return participants
}
