// Package engine implements the change engine: validation, authorization,
// and atomic application of find-and-replace batches against a document,
// producing a new revision, operation log entries, and an analytics
// record per request.
package engine

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jdamiba/sandstone-project/common"
	"github.com/jdamiba/sandstone-project/document"
	"github.com/jdamiba/sandstone-project/events"
)

// AppliedChange is the per-op outcome in a response. Position is the byte
// offset in the working copy at the moment of application, or -1 for ops
// whose target was not found.
type AppliedChange struct {
	TextReplaced string `json:"textReplaced"`
	NewText      string `json:"newText"`
	Position     int    `json:"position"`
	Applied      bool   `json:"applied"`
}

// Summary describes the request outcome.
type Summary struct {
	RequestType     string          `json:"requestType"`
	TotalChanges    int             `json:"totalChanges"`
	AppliedChanges  int             `json:"appliedChanges"`
	Changes         []AppliedChange `json:"changes"`
	DocumentVersion int64           `json:"documentVersion"`
}

// Result is the change endpoint response body.
type Result struct {
	DocumentText string  `json:"documentText"`
	Changes      Summary `json:"changes"`
}

// Engine applies change requests through the persistence port. It never
// retries internally; partial-failure rollback is the transaction's job.
type Engine struct {
	store  document.Store
	events *events.Publisher
	log    *logrus.Entry
}

// New creates an engine. The events publisher may be nil.
func New(store document.Store, publisher *events.Publisher) *Engine {
	return &Engine{
		store:  store,
		events: publisher,
		log:    common.Logger.WithField("component", "engine"),
	}
}

// Apply validates, authorizes, and applies a change request to the
// document, committing the new body, the operation records, and the
// analytics record in one transaction. At least one op must find its
// target or the request fails with no side effects.
func (e *Engine) Apply(ctx context.Context, documentID, userID string, req *Request) (*Result, error) {
	if _, err := uuid.Parse(documentID); err != nil {
		return nil, common.BadRequest("invalid document id")
	}
	if userID == "" {
		return nil, common.Unauthorized("authentication required")
	}

	changes, requestType, err := req.normalize()
	if err != nil {
		return nil, err
	}

	doc, err := e.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	binding, err := e.store.GetCollaborator(ctx, documentID, userID)
	if err != nil {
		return nil, err
	}
	if !document.CanWrite(doc, binding, userID) {
		return nil, common.Forbidden("you do not have permission to edit this document")
	}

	outcomes, newBody := applyChanges(doc.Content, changes)

	applied := 0
	var ops []document.AppliedOp
	for _, oc := range outcomes {
		if !oc.Applied {
			continue
		}
		applied++
		ops = append(ops, document.AppliedOp{
			Kind:     document.OpKind(oc.TextReplaced, oc.NewText),
			Position: oc.Position,
			Length:   len(oc.TextReplaced),
			Content:  oc.NewText,
		})
	}

	if applied == 0 {
		return nil, common.BadRequest("no matching text found in document").
			WithDetails("reason", "change_not_found")
	}
	if len(newBody) > document.MaxBodyBytes {
		return nil, common.Validation("document body exceeds maximum size")
	}

	summary := document.ChangeSummary{
		EventType: "text_change",
		Metadata: map[string]interface{}{
			"requestType":    requestType,
			"totalChanges":   len(changes),
			"appliedChanges": applied,
			"outcomes":       outcomeMetadata(outcomes),
		},
	}

	updated, err := e.store.ApplyChange(ctx, documentID, newBody, userID, ops, summary)
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"document_id": documentID,
		"user_id":     userID,
		"applied":     applied,
		"total":       len(changes),
		"version":     updated.Version,
	}).Info("change applied")

	e.events.Publish(ctx, events.Event{
		Type:       events.TypeUpdated,
		DocumentID: documentID,
		UserID:     userID,
		Version:    updated.Version,
		Timestamp:  time.Now(),
	})

	return &Result{
		DocumentText: updated.Content,
		Changes: Summary{
			RequestType:     requestType,
			TotalChanges:    len(changes),
			AppliedChanges:  applied,
			Changes:         outcomes,
			DocumentVersion: updated.Version,
		},
	}, nil
}

// applyChanges runs the replacement pass: ops are ordered by their
// first-occurrence position in the original body, descending (stable on
// ties), then each op searches the working copy at its turn. Applying an
// earlier op therefore never invalidates the recorded position of a later
// one, while ops targeting text disjoint from earlier replacements still
// land.
func applyChanges(body string, changes []Change) ([]AppliedChange, string) {
	type positioned struct {
		change   Change
		original int
	}

	ordered := make([]positioned, len(changes))
	for i, ch := range changes {
		ordered[i] = positioned{change: ch, original: strings.Index(body, ch.TextToReplace)}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].original > ordered[j].original
	})

	working := body
	outcomes := make([]AppliedChange, 0, len(ordered))
	for _, p := range ordered {
		idx := strings.Index(working, p.change.TextToReplace)
		if idx < 0 {
			outcomes = append(outcomes, AppliedChange{
				TextReplaced: p.change.TextToReplace,
				NewText:      p.change.NewText,
				Position:     -1,
				Applied:      false,
			})
			continue
		}
		working = working[:idx] + p.change.NewText + working[idx+len(p.change.TextToReplace):]
		outcomes = append(outcomes, AppliedChange{
			TextReplaced: p.change.TextToReplace,
			NewText:      p.change.NewText,
			Position:     idx,
			Applied:      true,
		})
	}

	return outcomes, working
}

func outcomeMetadata(outcomes []AppliedChange) []map[string]interface{} {
	out := make([]map[string]interface{}, len(outcomes))
	for i, oc := range outcomes {
		out[i] = map[string]interface{}{
			"position": oc.Position,
			"applied":  oc.Applied,
			"length":   len(oc.TextReplaced),
		}
	}
	return out
}
