// Package hub implements the collaboration hub: an in-memory registry of
// per-document rooms that fans cursor, typing, presence, and content
// broadcasts out between the sessions joined to the same document.
//
// Rooms are created lazily on first join, seeded from the persistence
// port, and destroyed when the last session leaves. Content broadcasts
// write through the port (the serialization point shared with the change
// engine) before fanning out, and every document-updated message carries
// the committed revision so peers can discard stale ones.
package hub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jdamiba/sandstone-project/common"
	"github.com/jdamiba/sandstone-project/document"
	"github.com/jdamiba/sandstone-project/events"
)

// colorPalette is the fixed set of presence hues. Assignment cycles
// through it and is not stable across reconnects.
var colorPalette = [10]string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#fabebe",
}

// Options tunes hub behavior.
type Options struct {
	// SendBuffer is the per-session outbound buffer size.
	SendBuffer int
}

// DefaultOptions returns the standard hub tuning.
func DefaultOptions() Options {
	return Options{SendBuffer: 64}
}

// Hub is the process-wide room registry.
type Hub struct {
	store  document.Store
	events *events.Publisher
	log    *logrus.Entry
	opts   Options

	mu    sync.Mutex
	rooms map[string]*room

	colorIdx atomic.Uint64
}

// New creates a hub writing through the given store. The events
// publisher may be nil.
func New(store document.Store, publisher *events.Publisher, opts Options) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultOptions().SendBuffer
	}
	return &Hub{
		store:  store,
		events: publisher,
		log:    common.Logger.WithField("component", "hub"),
		opts:   opts,
		rooms:  make(map[string]*room),
	}
}

// Connect creates a session for an accepted transport. The session is
// not in any room until Join succeeds.
func (h *Hub) Connect(userID, username string) *Session {
	color := colorPalette[h.colorIdx.Add(1)%uint64(len(colorPalette))]
	s := newSession(userID, username, color, h.opts.SendBuffer)
	h.log.WithFields(logrus.Fields{
		"session_id": s.ID,
		"user_id":    userID,
	}).Debug("session connected")
	return s
}

// Join performs the access check and, on success, adds the session to
// the document's room, emits the state snapshot to the joiner and a
// user-joined notice to peers. On denial the session receives
// access-denied and stays connected. The access check is point-in-time;
// later messages are not re-checked.
func (h *Hub) Join(ctx context.Context, s *Session, documentID string) {
	rejoin := false
	if prev := s.Room(); prev != "" {
		if prev == documentID {
			rejoin = true
		} else {
			h.LeaveRoom(s)
		}
	}

	doc, err := h.store.GetDocument(ctx, documentID)
	if err != nil {
		s.send(errorMessage("document not found"))
		return
	}

	binding, err := h.store.GetCollaborator(ctx, documentID, s.UserID)
	if err != nil {
		s.send(errorMessage("failed to check document access"))
		return
	}
	if !document.CanRead(doc, binding, s.UserID) {
		s.send(accessDeniedMessage("you do not have access to this document"))
		return
	}

	// The roster insert stays inside the registry critical section: a
	// concurrent last-member leave deletes empty rooms from the registry,
	// and adding after unlock could land in that orphaned room.
	h.mu.Lock()
	r, ok := h.rooms[documentID]
	if !ok {
		r = newRoom(documentID, doc.Content, doc.Version, doc.LastEditedAt)
		h.rooms[documentID] = r
	}
	r.add(s)
	h.mu.Unlock()

	s.setRoom(documentID)

	content, version, lastEdited, peers := r.snapshot(s.ID)
	s.send(&Message{
		Kind:       KindDocumentState,
		DocumentID: documentID,
		Content:    content,
		Version:    version,
		LastEdited: lastEdited,
		Users:      peers,
	})

	// A re-join of the current room only refreshes the snapshot; peers
	// already saw this session join.
	if rejoin {
		return
	}

	r.broadcast(s.ID, &Message{
		Kind:       KindUserJoined,
		DocumentID: documentID,
		UserID:     s.UserID,
		SocketID:   s.ID,
		Username:   s.Username,
		Timestamp:  now(),
	})

	h.log.WithFields(logrus.Fields{
		"session_id":  s.ID,
		"user_id":     s.UserID,
		"document_id": documentID,
	}).Info("session joined room")
}

// LeaveRoom removes the session from its room, destroying the room when
// it empties. The session stays connected and may join again. Idempotent.
func (h *Hub) LeaveRoom(s *Session) {
	documentID := s.Room()
	if documentID == "" {
		return
	}

	h.mu.Lock()
	r, ok := h.rooms[documentID]
	if !ok {
		h.mu.Unlock()
		s.setRoom("")
		return
	}
	remaining := r.remove(s.ID)
	if remaining == 0 {
		delete(h.rooms, documentID)
	}
	h.mu.Unlock()

	s.setRoom("")

	r.broadcast(s.ID, &Message{
		Kind:       KindUserLeft,
		DocumentID: documentID,
		SocketID:   s.ID,
		Timestamp:  now(),
	})

	h.log.WithFields(logrus.Fields{
		"session_id":  s.ID,
		"document_id": documentID,
		"remaining":   remaining,
	}).Info("session left room")
}

// Disconnect tears the session down on transport close: leave the room
// exactly once and close the outbox.
func (h *Hub) Disconnect(s *Session) {
	h.LeaveRoom(s)
	s.close()
	h.log.WithField("session_id", s.ID).Debug("session disconnected")
}

// UpdateCursor stores the session's cursor state and forwards it to
// peers. Fire-and-forget; no reply is expected.
func (h *Hub) UpdateCursor(s *Session, position *int, selection *Selection, username string) {
	documentID := s.Room()
	if documentID == "" {
		return
	}
	if selection != nil && selection.Start > selection.End {
		s.send(errorMessage("invalid selection range"))
		return
	}

	s.setCursor(position, selection, username)

	h.withRoom(documentID, func(r *room) {
		r.broadcast(s.ID, &Message{
			Kind:       KindCursorUpdate,
			DocumentID: documentID,
			UserID:     s.UserID,
			SocketID:   s.ID,
			Username:   s.Username,
			Position:   position,
			Selection:  selection,
		})
	})
}

// SetTyping stores the typing flag and notifies peers.
func (h *Hub) SetTyping(s *Session, typing bool) {
	documentID := s.Room()
	if documentID == "" {
		return
	}

	s.setTyping(typing)

	kind := KindTypingStop
	if typing {
		kind = KindTypingStart
	}
	h.withRoom(documentID, func(r *room) {
		r.broadcast(s.ID, &Message{
			Kind:       kind,
			DocumentID: documentID,
			UserID:     s.UserID,
			SocketID:   s.ID,
		})
	})
}

// BroadcastContent persists a new body pushed over the realtime channel
// and fans the committed revision out to peers. The persistence-port
// transaction is the serialization point against concurrent writers; the
// room cache only advances to strictly greater revisions.
func (h *Hub) BroadcastContent(ctx context.Context, s *Session, newContent string) {
	documentID := s.Room()
	if documentID == "" {
		s.send(errorMessage("join a document before sending changes"))
		return
	}
	if len(newContent) > document.MaxBodyBytes {
		s.send(errorMessage("document body exceeds maximum size"))
		return
	}

	updated, err := h.store.UpdateBody(ctx, documentID, newContent, s.UserID)
	if err != nil {
		if appErr, ok := common.AsAppError(err); ok {
			s.send(errorMessage(appErr.Message))
		} else {
			s.send(errorMessage("failed to save document"))
		}
		return
	}

	h.withRoom(documentID, func(r *room) {
		r.advance(updated.Content, updated.Version, updated.LastEditedAt)
		r.broadcast(s.ID, &Message{
			Kind:       KindDocumentUpdated,
			DocumentID: documentID,
			UserID:     s.UserID,
			SocketID:   s.ID,
			Change: &ChangePayload{
				NewContent: updated.Content,
				Version:    updated.Version,
				Timestamp:  time.Now(),
			},
		})
	})

	h.events.Publish(ctx, events.Event{
		Type:       events.TypeUpdated,
		DocumentID: documentID,
		UserID:     s.UserID,
		Version:    updated.Version,
		Timestamp:  time.Now(),
	})
}

// RoomCount reports the number of live rooms, for health details.
func (h *Hub) RoomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

func (h *Hub) withRoom(documentID string, fn func(*room)) {
	h.mu.Lock()
	r, ok := h.rooms[documentID]
	h.mu.Unlock()
	if ok {
		fn(r)
	}
}
