package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/jdamiba/sandstone-project/common"
	"github.com/jdamiba/sandstone-project/document"
	"github.com/jdamiba/sandstone-project/engine"
	"github.com/jdamiba/sandstone-project/events"
	"github.com/jdamiba/sandstone-project/hub"
	"github.com/jdamiba/sandstone-project/security"
)

// Handlers bundles the service dependencies the HTTP surface needs.
type Handlers struct {
	Store    document.Store
	Engine   *engine.Engine
	Realtime *hub.Transport
	JWT      *security.JWTService
	Events   *events.Publisher
}

type createDocumentRequest struct {
	Title            string   `json:"title"`
	Content          string   `json:"content"`
	Description      string   `json:"description"`
	Tags             []string `json:"tags"`
	IsPublic         bool     `json:"is_public"`
	AllowComments    *bool    `json:"allow_comments"`
	AllowSuggestions *bool    `json:"allow_suggestions"`
	RequireApproval  bool     `json:"require_approval"`
}

// CreateDocument creates a document owned by the caller. The owner
// binding is created in the same transaction as the document.
func (h *Handlers) CreateDocument(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	var req createDocumentRequest
	if err := c.Bind(&req); err != nil {
		return common.BadRequest("invalid request body")
	}
	if err := validateMetadata(&req.Title, &req.Description, req.Tags); err != nil {
		return err
	}
	if len(req.Content) > document.MaxBodyBytes {
		return common.Validation("content exceeds maximum document size").
			WithDetails("max_bytes", document.MaxBodyBytes)
	}

	// comments and suggestions default to allowed when omitted
	allowComments := true
	if req.AllowComments != nil {
		allowComments = *req.AllowComments
	}
	allowSuggestions := true
	if req.AllowSuggestions != nil {
		allowSuggestions = *req.AllowSuggestions
	}

	doc := &document.Document{
		ID:               uuid.NewString(),
		Title:            req.Title,
		Description:      req.Description,
		Content:          req.Content,
		Tags:             document.StringList(req.Tags),
		IsPublic:         req.IsPublic,
		AllowComments:    allowComments,
		AllowSuggestions: allowSuggestions,
		RequireApproval:  req.RequireApproval,
		OwnerID:          p.UserID,
		Version:          1,
	}
	if err := h.Store.CreateDocument(c.Request().Context(), doc); err != nil {
		return err
	}

	h.Events.Publish(c.Request().Context(), events.Event{
		Type:       events.TypeCreated,
		DocumentID: doc.ID,
		UserID:     p.UserID,
		Version:    doc.Version,
		Timestamp:  time.Now().UTC(),
	})

	return c.JSON(http.StatusCreated, doc)
}

// GetDocument returns a document the caller may read. Missing and
// unreadable documents are indistinguishable to the caller.
func (h *Handlers) GetDocument(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	doc, _, err := h.readableDocument(c, p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc)
}

type updateDocumentRequest struct {
	Title            *string   `json:"title"`
	Content          *string   `json:"content"`
	Description      *string   `json:"description"`
	Tags             *[]string `json:"tags"`
	IsPublic         *bool     `json:"is_public"`
	AllowComments    *bool     `json:"allow_comments"`
	AllowSuggestions *bool     `json:"allow_suggestions"`
	RequireApproval  *bool     `json:"require_approval"`
}

// UpdateDocument applies a partial update to any subset of fields.
// Updating content bumps the revision like any other body change.
func (h *Handlers) UpdateDocument(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	doc, binding, err := h.readableDocument(c, p.UserID)
	if err != nil {
		return err
	}
	if !document.CanWrite(doc, binding, p.UserID) {
		return common.Forbidden("you do not have permission to edit this document")
	}

	var req updateDocumentRequest
	if err := c.Bind(&req); err != nil {
		return common.BadRequest("invalid request body")
	}

	var tags []string
	if req.Tags != nil {
		tags = *req.Tags
	}
	if err := validateMetadata(req.Title, req.Description, tags); err != nil {
		return err
	}
	if req.Content != nil && len(*req.Content) > document.MaxBodyBytes {
		return common.Validation("content exceeds maximum document size").
			WithDetails("max_bytes", document.MaxBodyBytes)
	}

	fields := map[string]interface{}{}
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Content != nil {
		fields["content"] = *req.Content
	}
	if req.Tags != nil {
		fields["tags"] = document.StringList(*req.Tags)
	}
	if req.IsPublic != nil {
		fields["is_public"] = *req.IsPublic
	}
	if req.AllowComments != nil {
		fields["allow_comments"] = *req.AllowComments
	}
	if req.AllowSuggestions != nil {
		fields["allow_suggestions"] = *req.AllowSuggestions
	}
	if req.RequireApproval != nil {
		fields["require_approval"] = *req.RequireApproval
	}
	if len(fields) == 0 {
		return common.BadRequest("no fields to update")
	}

	updated, err := h.Store.UpdateDocument(c.Request().Context(), doc.ID, fields)
	if err != nil {
		return err
	}

	h.Events.Publish(c.Request().Context(), events.Event{
		Type:       events.TypeUpdated,
		DocumentID: updated.ID,
		UserID:     p.UserID,
		Version:    updated.Version,
		Timestamp:  time.Now().UTC(),
	})

	return c.JSON(http.StatusOK, updated)
}

// DeleteDocument hard-deletes a document. Only the owner may delete;
// everyone else sees 404, readable or not.
func (h *Handlers) DeleteDocument(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	id, err := documentID(c)
	if err != nil {
		return err
	}
	doc, err := h.Store.GetDocument(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if doc.OwnerID != p.UserID {
		return common.NotFound("document not found")
	}

	if err := h.Store.DeleteDocument(c.Request().Context(), id); err != nil {
		return err
	}

	h.Events.Publish(c.Request().Context(), events.Event{
		Type:       events.TypeDeleted,
		DocumentID: id,
		UserID:     p.UserID,
		Version:    doc.Version,
		Timestamp:  time.Now().UTC(),
	})

	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

// ListDocuments returns documents visible to the caller, optionally
// filtered by search text and visibility.
func (h *Handlers) ListDocuments(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	q, err := parseListQuery(c, p.UserID)
	if err != nil {
		return err
	}

	docs, err := h.Store.ListDocuments(c.Request().Context(), q)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"documents": docs,
		"count":     len(docs),
	})
}

// SearchDocuments is the q-parameter variant of listing.
func (h *Handlers) SearchDocuments(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	term := c.QueryParam("q")
	if term == "" || len(term) > maxSearchLen {
		return common.BadRequest("q must be between 1 and 100 characters")
	}

	q, err := parseListQuery(c, p.UserID)
	if err != nil {
		return err
	}
	q.Search = term

	docs, err := h.Store.ListDocuments(c.Request().Context(), q)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"documents": docs,
		"count":     len(docs),
	})
}

// ApplyChanges runs a find-and-replace request through the change
// engine.
func (h *Handlers) ApplyChanges(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	var req engine.Request
	if err := c.Bind(&req); err != nil {
		return common.BadRequest("invalid request body")
	}

	result, err := h.Engine.Apply(c.Request().Context(), c.Param("id"), p.UserID, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

type addCollaboratorRequest struct {
	UserID     string `json:"user_id"`
	Permission string `json:"permission"`
}

// ListCollaborators returns a document's bindings to any reader.
func (h *Handlers) ListCollaborators(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	doc, _, err := h.readableDocument(c, p.UserID)
	if err != nil {
		return err
	}

	collabs, err := h.Store.ListCollaborators(c.Request().Context(), doc.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"collaborators": collabs,
		"count":         len(collabs),
	})
}

// AddCollaborator creates a binding. Owner only.
func (h *Handlers) AddCollaborator(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	doc, _, err := h.readableDocument(c, p.UserID)
	if err != nil {
		return err
	}
	if doc.OwnerID != p.UserID {
		return common.Forbidden("only the owner may manage collaborators")
	}

	var req addCollaboratorRequest
	if err := c.Bind(&req); err != nil {
		return common.BadRequest("invalid request body")
	}
	if req.UserID == "" {
		return common.BadRequest("user_id is required")
	}
	if req.UserID == doc.OwnerID {
		return common.BadRequest("the owner already has full access")
	}
	if !document.ValidPermission(req.Permission) {
		return common.Validation("invalid permission").WithDetails("permission", req.Permission)
	}

	collab := &document.Collaborator{
		DocumentID: doc.ID,
		UserID:     req.UserID,
		Permission: req.Permission,
		IsActive:   true,
	}
	if err := h.Store.AddCollaborator(c.Request().Context(), collab); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, collab)
}

// RemoveCollaborator deletes a binding. Owner only.
func (h *Handlers) RemoveCollaborator(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	doc, _, err := h.readableDocument(c, p.UserID)
	if err != nil {
		return err
	}
	if doc.OwnerID != p.UserID {
		return common.Forbidden("only the owner may manage collaborators")
	}

	target := c.Param("userID")
	if target == doc.OwnerID {
		return common.BadRequest("the owner binding cannot be removed")
	}

	if err := h.Store.RemoveCollaborator(c.Request().Context(), doc.ID, target); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "removed"})
}

// ServeWS upgrades the connection into the collaboration hub.
func (h *Handlers) ServeWS(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	return h.Realtime.Serve(c, p.UserID, p.Username)
}

// readableDocument loads the document and the caller's active binding,
// collapsing missing and unreadable into the same not-found error.
func (h *Handlers) readableDocument(c echo.Context, userID string) (*document.Document, *document.Collaborator, error) {
	id, err := documentID(c)
	if err != nil {
		return nil, nil, err
	}

	ctx := c.Request().Context()
	doc, err := h.Store.GetDocument(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	binding, err := h.Store.GetCollaborator(ctx, id, userID)
	if err != nil {
		return nil, nil, err
	}
	if !document.CanRead(doc, binding, userID) {
		return nil, nil, common.NotFound("document not found")
	}
	return doc, binding, nil
}

func documentID(c echo.Context) (string, error) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", common.BadRequest("invalid document id").WithDetails("id", id)
	}
	return id, nil
}
