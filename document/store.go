package document

import (
	"context"
)

// ListQuery filters document listings. Limit and Offset are assumed to be
// validated by the caller (limit 1..100, offset >= 0).
type ListQuery struct {
	// UserID scopes the listing to documents the principal may read
	UserID string

	// Search matches against title and description when non-empty
	Search string

	// Public filters on the visibility flag when non-nil
	Public *bool

	Limit  int
	Offset int
}

// AppliedOp describes one applied mutation destined for the operation log.
type AppliedOp struct {
	Kind     string
	Position int
	Length   int
	Content  string
}

// ChangeSummary is the analytics record written alongside a change.
type ChangeSummary struct {
	EventType string
	Metadata  map[string]interface{}
}

// Store is the persistence port. It is implementable on any relational
// store with row-level locking and a UTF-8 text column; the service ships
// a PostgreSQL implementation and an in-memory one for tests.
//
// All body-mutating methods serialize per document through the store's
// row-level locking: the document row update carries the version bump, so
// the database is the single serialization point for concurrent writers.
type Store interface {
	// CreateDocument inserts a document and its implicit owner binding in
	// one transaction.
	CreateDocument(ctx context.Context, doc *Document) error

	// GetDocument returns the document or a NotFound error.
	GetDocument(ctx context.Context, id string) (*Document, error)

	// UpdateDocument applies a partial metadata update and returns the
	// updated row. Fields holds column-name keys.
	UpdateDocument(ctx context.Context, id string, fields map[string]interface{}) (*Document, error)

	// DeleteDocument hard-deletes the document with its bindings,
	// operations, and analytics records.
	DeleteDocument(ctx context.Context, id string) error

	// ListDocuments returns the documents visible to q.UserID.
	ListDocuments(ctx context.Context, q ListQuery) ([]Document, error)

	// GetCollaborator returns the active binding for (docID, userID), or
	// (nil, nil) when no active binding exists.
	GetCollaborator(ctx context.Context, docID, userID string) (*Collaborator, error)

	// AddCollaborator inserts a binding. A second binding for the same
	// (document, principal) pair is a Conflict error.
	AddCollaborator(ctx context.Context, collab *Collaborator) error

	// RemoveCollaborator deletes the binding if present.
	RemoveCollaborator(ctx context.Context, docID, userID string) error

	// ListCollaborators returns all bindings for a document.
	ListCollaborators(ctx context.Context, docID string) ([]Collaborator, error)

	// ApplyChange commits a change-engine result in one transaction:
	// replace the body and bump the version, append one operation record
	// per applied op with contiguous sequence numbers, and append the
	// analytics record. Returns the updated document.
	ApplyChange(ctx context.Context, docID, newBody, userID string, ops []AppliedOp, summary ChangeSummary) (*Document, error)

	// UpdateBody commits a realtime content broadcast: replace the body,
	// bump the version, and append an analytics record, in one
	// transaction. No operation records are written on this path.
	UpdateBody(ctx context.Context, docID, newBody, userID string) (*Document, error)

	// Close releases the underlying resources.
	Close() error
}
