package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func binding(permission string) *Collaborator {
	return &Collaborator{UserID: "bob", Permission: permission, IsActive: true}
}

// TestCanRead covers the read rule: owner, public, or any binding
func TestCanRead(t *testing.T) {
	private := &Document{OwnerID: "alice"}
	public := &Document{OwnerID: "alice", IsPublic: true}

	cases := []struct {
		name    string
		doc     *Document
		binding *Collaborator
		userID  string
		want    bool
	}{
		{"owner reads private", private, nil, "alice", true},
		{"stranger denied private", private, nil, "bob", false},
		{"anyone reads public", public, nil, "bob", true},
		{"viewer reads private", private, binding(PermissionViewer), "bob", true},
		{"commenter reads private", private, binding(PermissionCommenter), "bob", true},
		{"editor reads private", private, binding(PermissionEditor), "bob", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanRead(tc.doc, tc.binding, tc.userID))
		})
	}
}

// TestCanWrite covers the write rule, including the hard deny an
// explicit lower-tier binding places on public documents
func TestCanWrite(t *testing.T) {
	private := &Document{OwnerID: "alice"}
	public := &Document{OwnerID: "alice", IsPublic: true}

	cases := []struct {
		name    string
		doc     *Document
		binding *Collaborator
		userID  string
		want    bool
	}{
		{"owner writes private", private, nil, "alice", true},
		{"stranger denied private", private, nil, "bob", false},
		{"stranger writes public", public, nil, "bob", true},
		{"editor writes private", private, binding(PermissionEditor), "bob", true},
		{"owner binding writes private", private, binding(PermissionOwner), "bob", true},
		{"viewer denied private", private, binding(PermissionViewer), "bob", false},
		{"commenter denied private", private, binding(PermissionCommenter), "bob", false},
		{"viewer denied public", public, binding(PermissionViewer), "bob", false},
		{"commenter denied public", public, binding(PermissionCommenter), "bob", false},
		{"editor writes public", public, binding(PermissionEditor), "bob", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanWrite(tc.doc, tc.binding, tc.userID))
		})
	}
}
