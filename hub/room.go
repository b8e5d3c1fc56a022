package hub

import (
	"sync"
	"time"
)

// room is the in-memory fan-out structure for one document. It caches the
// latest body to seed new joiners; the persistence port stays the source
// of truth and the cache is only advanced to strictly greater revisions.
//
// The roster lock (mu) guards membership and the cached body. Emitting
// never happens under it: broadcasts snapshot the roster, release the
// lock, then emit under sendMu, which serializes concurrent broadcasts so
// all peers observe them in the same order.
type room struct {
	documentID string

	mu         sync.Mutex
	sessions   map[string]*Session
	content    string
	version    int64
	lastEdited *time.Time

	sendMu sync.Mutex
}

func newRoom(documentID, content string, version int64, lastEdited *time.Time) *room {
	return &room{
		documentID: documentID,
		sessions:   make(map[string]*Session),
		content:    content,
		version:    version,
		lastEdited: lastEdited,
	}
}

// add inserts a session into the roster.
func (r *room) add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

// remove deletes a session and reports the remaining roster size.
func (r *room) remove(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return len(r.sessions)
}

// snapshot returns the cached document state and the roster, excluding
// the given session.
func (r *room) snapshot(exceptID string) (content string, version int64, lastEdited *time.Time, peers []Presence) {
	r.mu.Lock()
	content = r.content
	version = r.version
	lastEdited = r.lastEdited
	sessions := r.peersLocked(exceptID)
	r.mu.Unlock()

	peers = make([]Presence, 0, len(sessions))
	for _, s := range sessions {
		peers = append(peers, s.presence())
	}
	return content, version, lastEdited, peers
}

// advance moves the cached body forward if version is strictly greater
// than the cached one. Stale updates are dropped; revision monotonicity
// is what lets two writers publish out of commit order safely.
func (r *room) advance(content string, version int64, lastEdited *time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if version > r.version {
		r.content = content
		r.version = version
		r.lastEdited = lastEdited
	}
}

// broadcast emits a message to every session except the given one. The
// roster is snapshotted under the roster lock; the emit loop runs under
// sendMu only, so a slow session never blocks membership changes and all
// peers observe broadcasts in a single per-room order.
func (r *room) broadcast(exceptID string, msg *Message) {
	r.mu.Lock()
	targets := r.peersLocked(exceptID)
	r.mu.Unlock()

	r.sendMu.Lock()
	defer r.sendMu.Unlock()
	for _, s := range targets {
		s.send(msg)
	}
}

func (r *room) peersLocked(exceptID string) []*Session {
	peers := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		if id == exceptID {
			continue
		}
		peers = append(peers, s)
	}
	return peers
}
