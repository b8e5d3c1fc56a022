package document

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jdamiba/sandstone-project/common"
)

// MemoryStore implements Store entirely in memory. It is used by tests
// and by development runs without a database. Returned values are copies;
// mutating them does not affect stored state.
type MemoryStore struct {
	mu         sync.RWMutex
	documents  map[string]*Document
	bindings   map[string][]Collaborator
	operations map[string][]Operation
	analytics  map[string][]AnalyticsEvent
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents:  make(map[string]*Document),
		bindings:   make(map[string][]Collaborator),
		operations: make(map[string][]Operation),
		analytics:  make(map[string][]AnalyticsEvent),
	}
}

// See docs for Store interface.
func (s *MemoryStore) CreateDocument(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.documents[doc.ID]; exists {
		return common.Conflict("document already exists")
	}

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if doc.Version == 0 {
		doc.Version = 1
	}

	stored := *doc
	s.documents[doc.ID] = &stored
	s.bindings[doc.ID] = []Collaborator{{
		DocumentID: doc.ID,
		UserID:     doc.OwnerID,
		Permission: PermissionOwner,
		IsActive:   true,
		CreatedAt:  now,
	}}
	return nil
}

// See docs for Store interface.
func (s *MemoryStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, common.NotFound("document not found")
	}
	cp := *doc
	return &cp, nil
}

// See docs for Store interface.
func (s *MemoryStore) UpdateDocument(ctx context.Context, id string, fields map[string]interface{}) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, common.NotFound("document not found")
	}

	for key, value := range fields {
		switch key {
		case "title":
			doc.Title = value.(string)
		case "description":
			doc.Description = value.(string)
		case "content":
			doc.Content = value.(string)
		case "tags":
			doc.Tags = append(StringList(nil), value.(StringList)...)
		case "is_public":
			doc.IsPublic = value.(bool)
		case "allow_comments":
			doc.AllowComments = value.(bool)
		case "allow_suggestions":
			doc.AllowSuggestions = value.(bool)
		case "require_approval":
			doc.RequireApproval = value.(bool)
		}
	}
	now := time.Now()
	if _, ok := fields["content"]; ok {
		doc.Version++
		doc.LastEditedAt = &now
	}
	doc.UpdatedAt = now

	cp := *doc
	return &cp, nil
}

// See docs for Store interface.
func (s *MemoryStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return common.NotFound("document not found")
	}
	delete(s.documents, id)
	delete(s.bindings, id)
	delete(s.operations, id)
	delete(s.analytics, id)
	return nil
}

// See docs for Store interface.
func (s *MemoryStore) ListDocuments(ctx context.Context, q ListQuery) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	visible := []Document{}
	for _, doc := range s.documents {
		if !s.readableLocked(doc, q.UserID) {
			continue
		}
		if q.Public != nil && doc.IsPublic != *q.Public {
			continue
		}
		if q.Search != "" {
			needle := strings.ToLower(q.Search)
			if !strings.Contains(strings.ToLower(doc.Title), needle) &&
				!strings.Contains(strings.ToLower(doc.Description), needle) {
				continue
			}
		}
		visible = append(visible, *doc)
	}

	sort.Slice(visible, func(i, j int) bool {
		return visible[i].UpdatedAt.After(visible[j].UpdatedAt)
	})

	if q.Offset >= len(visible) {
		return []Document{}, nil
	}
	visible = visible[q.Offset:]
	if q.Limit > 0 && q.Limit < len(visible) {
		visible = visible[:q.Limit]
	}
	return visible, nil
}

func (s *MemoryStore) readableLocked(doc *Document, userID string) bool {
	if doc.OwnerID == userID || doc.IsPublic {
		return true
	}
	for _, b := range s.bindings[doc.ID] {
		if b.UserID == userID && b.IsActive {
			return true
		}
	}
	return false
}

// See docs for Store interface.
func (s *MemoryStore) GetCollaborator(ctx context.Context, docID, userID string) (*Collaborator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.bindings[docID] {
		if b.UserID == userID && b.IsActive {
			cp := b
			return &cp, nil
		}
	}
	return nil, nil
}

// See docs for Store interface.
func (s *MemoryStore) AddCollaborator(ctx context.Context, collab *Collaborator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[collab.DocumentID]; !ok {
		return common.BadRequest("referenced resource does not exist")
	}
	for _, b := range s.bindings[collab.DocumentID] {
		if b.UserID == collab.UserID {
			return common.Conflict("resource already exists")
		}
	}
	if collab.CreatedAt.IsZero() {
		collab.CreatedAt = time.Now()
	}
	s.bindings[collab.DocumentID] = append(s.bindings[collab.DocumentID], *collab)
	return nil
}

// See docs for Store interface.
func (s *MemoryStore) RemoveCollaborator(ctx context.Context, docID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bindings := s.bindings[docID]
	for i, b := range bindings {
		if b.UserID == userID {
			s.bindings[docID] = append(bindings[:i], bindings[i+1:]...)
			return nil
		}
	}
	return nil
}

// See docs for Store interface.
func (s *MemoryStore) ListCollaborators(ctx context.Context, docID string) ([]Collaborator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Collaborator, len(s.bindings[docID]))
	copy(out, s.bindings[docID])
	return out, nil
}

// See docs for Store interface.
func (s *MemoryStore) ApplyChange(ctx context.Context, docID, newBody, userID string, ops []AppliedOp, summary ChangeSummary) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[docID]
	if !ok {
		return nil, common.NotFound("document not found")
	}

	s.bumpBodyLocked(doc, newBody)

	seq := int64(len(s.operations[docID]))
	now := time.Now()
	for i, op := range ops {
		s.operations[docID] = append(s.operations[docID], Operation{
			DocumentID: docID,
			Sequence:   seq + int64(i) + 1,
			Kind:       op.Kind,
			Position:   op.Position,
			Length:     op.Length,
			Content:    op.Content,
			UserID:     userID,
			CreatedAt:  now,
		})
	}

	s.analytics[docID] = append(s.analytics[docID], AnalyticsEvent{
		DocumentID: docID,
		UserID:     userID,
		EventType:  summary.EventType,
		Metadata:   summary.Metadata,
		CreatedAt:  now,
	})

	cp := *doc
	return &cp, nil
}

// See docs for Store interface.
func (s *MemoryStore) UpdateBody(ctx context.Context, docID, newBody, userID string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[docID]
	if !ok {
		return nil, common.NotFound("document not found")
	}

	s.bumpBodyLocked(doc, newBody)
	s.analytics[docID] = append(s.analytics[docID], AnalyticsEvent{
		DocumentID: docID,
		UserID:     userID,
		EventType:  "realtime_update",
		Metadata:   JSONMap{"contentLength": len(newBody)},
		CreatedAt:  time.Now(),
	})

	cp := *doc
	return &cp, nil
}

func (s *MemoryStore) bumpBodyLocked(doc *Document, newBody string) {
	now := time.Now()
	doc.Content = newBody
	doc.Version++
	doc.LastEditedAt = &now
	doc.UpdatedAt = now
}

// Close implements Store. It is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// Operations returns a copy of the operation log for a document. Test
// helper; the HTTP surface does not expose the log directly.
func (s *MemoryStore) Operations(docID string) []Operation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Operation, len(s.operations[docID]))
	copy(out, s.operations[docID])
	return out
}

// Analytics returns a copy of the analytics records for a document.
func (s *MemoryStore) Analytics(docID string) []AnalyticsEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]AnalyticsEvent, len(s.analytics[docID]))
	copy(out, s.analytics[docID])
	return out
}
