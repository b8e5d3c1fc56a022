package document

// Access rules. The binding argument is the caller's active binding for
// the document, or nil when none exists; inactive bindings must not be
// passed in. The caller is assumed to be authenticated.

// CanRead reports whether userID may read doc: owner, public document, or
// any active binding.
func CanRead(doc *Document, binding *Collaborator, userID string) bool {
	if doc.OwnerID == userID {
		return true
	}
	if binding != nil {
		return true
	}
	return doc.IsPublic
}

// CanWrite reports whether userID may mutate doc's body. Owners and
// active owner/editor bindings may write. Public documents are writable
// by any authenticated principal, but an explicit lower-tier binding
// (viewer, commenter) is a hard deny even then.
func CanWrite(doc *Document, binding *Collaborator, userID string) bool {
	if doc.OwnerID == userID {
		return true
	}
	if binding != nil {
		return binding.Permission == PermissionOwner || binding.Permission == PermissionEditor
	}
	return doc.IsPublic
}
