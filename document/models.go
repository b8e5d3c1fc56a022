// Package document defines the persistent data model of the Sandstone
// service and the persistence port the change engine and collaboration hub
// write through. Two implementations of the port exist: PostgreSQL (gorm)
// and an in-memory store for development and tests.
package document

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Field size limits. Body sizes are byte counts of the UTF-8 encoding.
const (
	MaxTitleLen       = 255
	MaxDescriptionLen = 1000
	MaxBodyBytes      = 1000000
	MaxTagLen         = 50
)

// Collaborator permissions.
const (
	PermissionOwner     = "owner"
	PermissionEditor    = "editor"
	PermissionViewer    = "viewer"
	PermissionCommenter = "commenter"
)

// Operation kinds.
const (
	OpInsert  = "insert"
	OpDelete  = "delete"
	OpReplace = "replace"
)

// ValidPermission reports whether p is a known collaborator permission.
func ValidPermission(p string) bool {
	switch p {
	case PermissionOwner, PermissionEditor, PermissionViewer, PermissionCommenter:
		return true
	}
	return false
}

// StringList stores a tag set as a JSON-encoded text column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported type for StringList: %T", value)
	}
}

// JSONMap stores arbitrary metadata as a JSON-encoded text column.
type JSONMap map[string]interface{}

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported type for JSONMap: %T", value)
	}
}

// Document is a named, versioned, UTF-8 text body with metadata and a
// visibility policy. Version is the content revision counter; it advances
// exactly when Content changes, always in the same transaction.
type Document struct {
	ID               string     `gorm:"type:uuid;primaryKey" json:"id"`
	Title            string     `gorm:"size:255;not null" json:"title"`
	Description      string     `gorm:"size:1000" json:"description,omitempty"`
	Content          string     `gorm:"type:text" json:"content"`
	Tags             StringList `gorm:"type:text" json:"tags"`
	IsPublic         bool       `gorm:"not null;default:false;index" json:"is_public"`
	AllowComments    bool       `gorm:"not null;default:true" json:"allow_comments"`
	AllowSuggestions bool       `gorm:"not null;default:true" json:"allow_suggestions"`
	RequireApproval  bool       `gorm:"not null;default:false" json:"require_approval"`
	OwnerID          string     `gorm:"not null;index" json:"owner_id"`
	Version          int64      `gorm:"not null;default:1" json:"version"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	LastEditedAt     *time.Time `json:"last_edited_at,omitempty"`
}

// Collaborator is an explicit (document, principal, permission) binding.
// At most one binding exists per (document, principal).
type Collaborator struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	DocumentID string    `gorm:"type:uuid;not null;uniqueIndex:idx_collaborators_doc_user" json:"document_id"`
	UserID     string    `gorm:"not null;uniqueIndex:idx_collaborators_doc_user" json:"user_id"`
	Permission string    `gorm:"size:20;not null" json:"permission"`
	IsActive   bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// Operation is one entry of the append-only per-document mutation log.
// Sequence numbers are strictly increasing and contiguous per document,
// assigned inside the change transaction.
type Operation struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	DocumentID string    `gorm:"type:uuid;not null;uniqueIndex:idx_operations_doc_seq" json:"document_id"`
	Sequence   int64     `gorm:"not null;uniqueIndex:idx_operations_doc_seq" json:"sequence"`
	Kind       string    `gorm:"size:10;not null" json:"kind"`
	Position   int       `gorm:"not null" json:"position"`
	Length     int       `gorm:"not null" json:"length"`
	Content    string    `gorm:"type:text" json:"content"`
	UserID     string    `gorm:"not null" json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// AnalyticsEvent records one mutation request summary for the analytics
// write-hook.
type AnalyticsEvent struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	DocumentID string    `gorm:"type:uuid;not null;index" json:"document_id"`
	UserID     string    `gorm:"not null" json:"user_id"`
	EventType  string    `gorm:"size:40;not null" json:"event_type"`
	Metadata   JSONMap   `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// OpKind derives the operation log kind from a replacement pair: deleting
// when the new text is empty, inserting when the replaced text is empty,
// replacing otherwise.
func OpKind(textReplaced, newText string) string {
	switch {
	case len(newText) == 0 && len(textReplaced) > 0:
		return OpDelete
	case len(textReplaced) == 0:
		return OpInsert
	default:
		return OpReplace
	}
}
