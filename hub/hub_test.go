package hub

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdamiba/sandstone-project/document"
)

func newHubFixture(t *testing.T, body string, public bool) (*Hub, *document.MemoryStore, *document.Document) {
	t.Helper()
	store := document.NewMemoryStore()
	doc := &document.Document{
		ID:       uuid.NewString(),
		Title:    "shared notes",
		Content:  body,
		IsPublic: public,
		OwnerID:  "alice",
		Version:  1,
	}
	require.NoError(t, store.CreateDocument(context.Background(), doc))
	return New(store, nil, Options{SendBuffer: 16}), store, doc
}

// drain pops every message currently buffered for the session.
func drain(s *Session) []*Message {
	var msgs []*Message
	for {
		select {
		case m := <-s.Outbox():
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

// TestJoinReceivesDocumentState delivers the snapshot to the joiner
func TestJoinReceivesDocumentState(t *testing.T) {
	h, _, doc := newHubFixture(t, "hello", false)

	s := h.Connect("alice", "Alice")
	h.Join(context.Background(), s, doc.ID)

	msgs := drain(s)
	require.Len(t, msgs, 1)
	assert.Equal(t, KindDocumentState, msgs[0].Kind)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, int64(1), msgs[0].Version)
	assert.Empty(t, msgs[0].Users)
	assert.Equal(t, doc.ID, s.Room())
	assert.Equal(t, 1, h.RoomCount())
}

// TestJoinNotifiesPeers sends user-joined to existing members only
func TestJoinNotifiesPeers(t *testing.T) {
	h, _, doc := newHubFixture(t, "hello", true)

	s1 := h.Connect("alice", "Alice")
	h.Join(context.Background(), s1, doc.ID)
	drain(s1)

	s2 := h.Connect("bob", "Bob")
	h.Join(context.Background(), s2, doc.ID)

	peerMsgs := drain(s1)
	require.Len(t, peerMsgs, 1)
	assert.Equal(t, KindUserJoined, peerMsgs[0].Kind)
	assert.Equal(t, "bob", peerMsgs[0].UserID)
	assert.Equal(t, s2.ID, peerMsgs[0].SocketID)

	joinerMsgs := drain(s2)
	require.Len(t, joinerMsgs, 1)
	assert.Equal(t, KindDocumentState, joinerMsgs[0].Kind)
	require.Len(t, joinerMsgs[0].Users, 1)
	assert.Equal(t, "alice", joinerMsgs[0].Users[0].UserID)
}

// TestJoinDeniedWithoutAccess keeps the session connected but roomless
func TestJoinDeniedWithoutAccess(t *testing.T) {
	h, _, doc := newHubFixture(t, "secret", false)

	s := h.Connect("mallory", "Mallory")
	h.Join(context.Background(), s, doc.ID)

	msgs := drain(s)
	require.Len(t, msgs, 1)
	assert.Equal(t, KindAccessDenied, msgs[0].Kind)
	assert.Empty(t, s.Room())
	assert.Equal(t, 0, h.RoomCount())
}

// TestJoinUnknownDocument reports an error without joining
func TestJoinUnknownDocument(t *testing.T) {
	h, _, _ := newHubFixture(t, "", false)

	s := h.Connect("alice", "Alice")
	h.Join(context.Background(), s, uuid.NewString())

	msgs := drain(s)
	require.Len(t, msgs, 1)
	assert.Equal(t, KindError, msgs[0].Kind)
	assert.Empty(t, s.Room())
}

// TestLeaveDestroysEmptyRoom removes the room when the last member leaves
func TestLeaveDestroysEmptyRoom(t *testing.T) {
	h, _, doc := newHubFixture(t, "hello", false)

	s := h.Connect("alice", "Alice")
	h.Join(context.Background(), s, doc.ID)
	require.Equal(t, 1, h.RoomCount())

	h.LeaveRoom(s)
	assert.Equal(t, 0, h.RoomCount())
	assert.Empty(t, s.Room())

	// idempotent
	h.LeaveRoom(s)
	assert.Equal(t, 0, h.RoomCount())
}

// TestLeaveNotifiesPeers sends user-left to remaining members
func TestLeaveNotifiesPeers(t *testing.T) {
	h, _, doc := newHubFixture(t, "hello", true)

	s1 := h.Connect("alice", "Alice")
	s2 := h.Connect("bob", "Bob")
	h.Join(context.Background(), s1, doc.ID)
	h.Join(context.Background(), s2, doc.ID)
	drain(s1)
	drain(s2)

	h.LeaveRoom(s2)

	msgs := drain(s1)
	require.Len(t, msgs, 1)
	assert.Equal(t, KindUserLeft, msgs[0].Kind)
	assert.Equal(t, s2.ID, msgs[0].SocketID)
	assert.Equal(t, 1, h.RoomCount())
}

// TestCursorFanOutExcludesSender forwards cursor updates to peers only
func TestCursorFanOutExcludesSender(t *testing.T) {
	h, _, doc := newHubFixture(t, "hello", true)

	s1 := h.Connect("alice", "Alice")
	s2 := h.Connect("bob", "Bob")
	h.Join(context.Background(), s1, doc.ID)
	h.Join(context.Background(), s2, doc.ID)
	drain(s1)
	drain(s2)

	pos := 4
	h.UpdateCursor(s1, &pos, &Selection{Start: 4, End: 9}, "")

	assert.Empty(t, drain(s1), "sender must not receive its own cursor")

	msgs := drain(s2)
	require.Len(t, msgs, 1)
	assert.Equal(t, KindCursorUpdate, msgs[0].Kind)
	require.NotNil(t, msgs[0].Position)
	assert.Equal(t, 4, *msgs[0].Position)
	require.NotNil(t, msgs[0].Selection)
	assert.Equal(t, 9, msgs[0].Selection.End)
}

// TestCursorInvalidSelection rejects start > end
func TestCursorInvalidSelection(t *testing.T) {
	h, _, doc := newHubFixture(t, "hello", false)

	s := h.Connect("alice", "Alice")
	h.Join(context.Background(), s, doc.ID)
	drain(s)

	pos := 2
	h.UpdateCursor(s, &pos, &Selection{Start: 5, End: 1}, "")

	msgs := drain(s)
	require.Len(t, msgs, 1)
	assert.Equal(t, KindError, msgs[0].Kind)
}

// TestContentBroadcast persists the body and fans out the committed
// revision to peers, never echoing to the sender
func TestContentBroadcast(t *testing.T) {
	h, store, doc := newHubFixture(t, "", true)

	s1 := h.Connect("alice", "Alice")
	s2 := h.Connect("bob", "Bob")
	h.Join(context.Background(), s1, doc.ID)
	h.Join(context.Background(), s2, doc.ID)
	drain(s1)
	drain(s2)

	h.BroadcastContent(context.Background(), s1, "abc")

	assert.Empty(t, drain(s1), "sender must not receive its own update")

	msgs := drain(s2)
	require.Len(t, msgs, 1)
	assert.Equal(t, KindDocumentUpdated, msgs[0].Kind)
	require.NotNil(t, msgs[0].Change)
	assert.Equal(t, "abc", msgs[0].Change.NewContent)
	assert.Equal(t, int64(2), msgs[0].Change.Version)

	persisted, err := store.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "abc", persisted.Content)
	assert.Equal(t, int64(2), persisted.Version)
}

// TestContentBroadcastSeedsLaterJoiners updates the room cache so a
// later joiner sees the new body without a store round trip
func TestContentBroadcastSeedsLaterJoiners(t *testing.T) {
	h, _, doc := newHubFixture(t, "", true)

	s1 := h.Connect("alice", "Alice")
	h.Join(context.Background(), s1, doc.ID)
	drain(s1)
	h.BroadcastContent(context.Background(), s1, "abc")

	s2 := h.Connect("bob", "Bob")
	h.Join(context.Background(), s2, doc.ID)

	msgs := drain(s2)
	require.Len(t, msgs, 1)
	assert.Equal(t, "abc", msgs[0].Content)
	assert.Equal(t, int64(2), msgs[0].Version)
}

// TestContentBroadcastWithoutRoom reports an error
func TestContentBroadcastWithoutRoom(t *testing.T) {
	h, _, _ := newHubFixture(t, "", true)

	s := h.Connect("alice", "Alice")
	h.BroadcastContent(context.Background(), s, "abc")

	msgs := drain(s)
	require.Len(t, msgs, 1)
	assert.Equal(t, KindError, msgs[0].Kind)
}

// TestTypingIndicators forwards start/stop to peers
func TestTypingIndicators(t *testing.T) {
	h, _, doc := newHubFixture(t, "hello", true)

	s1 := h.Connect("alice", "Alice")
	s2 := h.Connect("bob", "Bob")
	h.Join(context.Background(), s1, doc.ID)
	h.Join(context.Background(), s2, doc.ID)
	drain(s1)
	drain(s2)

	h.SetTyping(s1, true)
	h.SetTyping(s1, false)

	msgs := drain(s2)
	require.Len(t, msgs, 2)
	assert.Equal(t, KindTypingStart, msgs[0].Kind)
	assert.Equal(t, KindTypingStop, msgs[1].Kind)
	assert.Empty(t, drain(s1))
}

// TestDisconnectClosesOutbox leaves the room and closes the channel
func TestDisconnectClosesOutbox(t *testing.T) {
	h, _, doc := newHubFixture(t, "hello", false)

	s := h.Connect("alice", "Alice")
	h.Join(context.Background(), s, doc.ID)
	drain(s)

	h.Disconnect(s)
	assert.Equal(t, 0, h.RoomCount())

	_, open := <-s.Outbox()
	assert.False(t, open)
}

// TestColorAssignmentCycles hands out distinct palette colors to
// consecutive sessions
func TestColorAssignmentCycles(t *testing.T) {
	h, _, _ := newHubFixture(t, "", false)

	seen := make(map[string]bool)
	for i := 0; i < len(colorPalette); i++ {
		s := h.Connect("u", "U")
		assert.NotEmpty(t, s.Color)
		seen[s.Color] = true
	}
	assert.Len(t, seen, len(colorPalette))
}

// TestRejoinSameRoomSkipsDuplicateNotice re-sends the snapshot to the
// rejoiner without announcing a second user-joined to peers
func TestRejoinSameRoomSkipsDuplicateNotice(t *testing.T) {
	h, _, doc := newHubFixture(t, "hello", true)

	s1 := h.Connect("alice", "Alice")
	s2 := h.Connect("bob", "Bob")
	h.Join(context.Background(), s1, doc.ID)
	h.Join(context.Background(), s2, doc.ID)
	drain(s1)
	drain(s2)

	h.Join(context.Background(), s2, doc.ID)

	assert.Empty(t, drain(s1), "peers must not see a duplicate join")

	msgs := drain(s2)
	require.Len(t, msgs, 1)
	assert.Equal(t, KindDocumentState, msgs[0].Kind)
	require.Len(t, msgs[0].Users, 1)
	assert.Equal(t, doc.ID, s2.Room())
	assert.Equal(t, 1, h.RoomCount())
}

// TestJoinLeaveRaceKeepsRoomLive races a join against the last member's
// leave and checks the joiner always lands in the registry's room, never
// in one already deleted from it
func TestJoinLeaveRaceKeepsRoomLive(t *testing.T) {
	h, _, doc := newHubFixture(t, "hello", true)
	ctx := context.Background()

	for i := 0; i < 2000; i++ {
		s1 := h.Connect("alice", "Alice")
		h.Join(ctx, s1, doc.ID)
		drain(s1)

		s2 := h.Connect("bob", "Bob")
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.LeaveRoom(s1)
		}()
		go func() {
			defer wg.Done()
			h.Join(ctx, s2, doc.ID)
		}()
		wg.Wait()

		require.Equal(t, doc.ID, s2.Room())
		inRegistry := false
		h.withRoom(doc.ID, func(r *room) {
			r.mu.Lock()
			_, inRegistry = r.sessions[s2.ID]
			r.mu.Unlock()
		})
		require.True(t, inRegistry, "joined session missing from the registry room")

		h.LeaveRoom(s2)
		require.Equal(t, 0, h.RoomCount())
	}
}

// TestJoinSwitchesRooms leaves the previous room implicitly
func TestJoinSwitchesRooms(t *testing.T) {
	h, store, doc := newHubFixture(t, "one", true)

	other := &document.Document{
		ID:       uuid.NewString(),
		Title:    "other",
		Content:  "two",
		IsPublic: true,
		OwnerID:  "alice",
		Version:  1,
	}
	require.NoError(t, store.CreateDocument(context.Background(), other))

	s := h.Connect("alice", "Alice")
	h.Join(context.Background(), s, doc.ID)
	drain(s)

	h.Join(context.Background(), s, other.ID)
	assert.Equal(t, other.ID, s.Room())
	assert.Equal(t, 1, h.RoomCount())

	msgs := drain(s)
	require.Len(t, msgs, 1)
	assert.Equal(t, "two", msgs[0].Content)
}
