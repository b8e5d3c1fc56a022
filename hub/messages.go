package hub

import "time"

// Inbound message kinds.
const (
	KindJoinDocument   = "join-document"
	KindLeaveDocument  = "leave-document"
	KindCursorUpdate   = "cursor-update"
	KindTypingStart    = "typing-start"
	KindTypingStop     = "typing-stop"
	KindDocumentChange = "document-change"
)

// Outbound message kinds.
const (
	KindDocumentState   = "document-state"
	KindUserJoined      = "user-joined"
	KindUserLeft        = "user-left"
	KindDocumentUpdated = "document-updated"
	KindAccessDenied    = "access-denied"
	KindError           = "error"
)

// Selection is a cursor selection range; Start and End are byte offsets
// with Start <= End.
type Selection struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ChangePayload carries content on the realtime mutation path. Version is
// set on outbound document-updated messages; peers must discard payloads
// whose version is not strictly greater than the last one they observed.
type ChangePayload struct {
	NewContent string    `json:"newContent"`
	Version    int64     `json:"version,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Presence is one session's roster entry in a document-state snapshot.
type Presence struct {
	UserID    string     `json:"userId"`
	SocketID  string     `json:"socketId"`
	Username  string     `json:"username,omitempty"`
	Color     string     `json:"color"`
	Position  *int       `json:"position,omitempty"`
	Selection *Selection `json:"selection,omitempty"`
	Typing    bool       `json:"typing"`
}

// Message is the JSON envelope on the realtime channel, both directions.
// Kind selects which payload fields are meaningful.
type Message struct {
	Kind       string         `json:"kind"`
	DocumentID string         `json:"documentId,omitempty"`
	UserID     string         `json:"userId,omitempty"`
	SocketID   string         `json:"socketId,omitempty"`
	Username   string         `json:"username,omitempty"`
	Position   *int           `json:"position,omitempty"`
	Selection  *Selection     `json:"selection,omitempty"`
	Change     *ChangePayload `json:"change,omitempty"`
	Content    string         `json:"content,omitempty"`
	Version    int64          `json:"version,omitempty"`
	LastEdited *time.Time     `json:"lastEdited,omitempty"`
	Users      []Presence     `json:"currentUsers,omitempty"`
	Timestamp  *time.Time     `json:"timestamp,omitempty"`
	Message    string         `json:"message,omitempty"`
}

func now() *time.Time {
	t := time.Now()
	return &t
}

func errorMessage(msg string) *Message {
	return &Message{Kind: KindError, Message: msg}
}

func accessDeniedMessage(msg string) *Message {
	return &Message{Kind: KindAccessDenied, Message: msg}
}
