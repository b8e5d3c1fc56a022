package hub

import (
	"sync"

	"github.com/google/uuid"
)

// Session is one connected client. The ID is fresh per connection; the
// principal behind it may hold several sessions at once. Outbound
// messages flow through a buffered channel drained by the transport's
// write loop; a full buffer drops the message rather than blocking the
// hub (clients recover dropped cursor traffic naturally, and content
// updates carry revisions so stale ones are discarded anyway).
type Session struct {
	ID       string
	UserID   string
	Username string
	Color    string

	mu         sync.Mutex
	documentID string
	position   *int
	selection  *Selection
	typing     bool
	closed     bool

	out chan *Message
}

func newSession(userID, username, color string, buffer int) *Session {
	return &Session{
		ID:       uuid.NewString(),
		UserID:   userID,
		Username: username,
		Color:    color,
		out:      make(chan *Message, buffer),
	}
}

// Outbox returns the channel the transport write loop drains. It is
// closed when the session disconnects.
func (s *Session) Outbox() <-chan *Message {
	return s.out
}

// send enqueues a message without blocking. Reports whether the message
// was accepted.
func (s *Session) send(msg *Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.out <- msg:
		return true
	default:
		return false
	}
}

// close shuts the outbox exactly once.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.out)
}

// setRoom records the joined document, empty when not in a room.
func (s *Session) setRoom(documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documentID = documentID
	if documentID == "" {
		s.position = nil
		s.selection = nil
		s.typing = false
	}
}

// Room returns the joined document id, or empty.
func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documentID
}

// setCursor stores cursor state so future joiners see it in snapshots.
func (s *Session) setCursor(position *int, selection *Selection, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = position
	s.selection = selection
	if username != "" {
		s.Username = username
	}
}

// setTyping stores the typing flag.
func (s *Session) setTyping(typing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typing = typing
}

// presence snapshots the session for a roster.
func (s *Session) presence() Presence {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := Presence{
		UserID:   s.UserID,
		SocketID: s.ID,
		Username: s.Username,
		Color:    s.Color,
		Typing:   s.typing,
	}
	if s.position != nil {
		pos := *s.position
		p.Position = &pos
	}
	if s.selection != nil {
		sel := *s.selection
		p.Selection = &sel
	}
	return p
}
