package services

import (
	"context"
	"fmt"

	"github.com/drivehub/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ResourceKind string

const (
	ResourceFile   ResourceKind = "file"
	ResourceFolder ResourceKind = "folder"
)

// ResourceRef is a tagged reference to exactly one file or folder. Using a
// single kind+id pair keeps the file-xor-folder invariant structural
// instead of convention-enforced.
type ResourceRef struct {
	Kind ResourceKind
	ID   uuid.UUID
}

func FileRef(id uuid.UUID) ResourceRef   { return ResourceRef{Kind: ResourceFile, ID: id} }
func FolderRef(id uuid.UUID) ResourceRef { return ResourceRef{Kind: ResourceFolder, ID: id} }

type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
	ActionShare  Action = "share"
	ActionMove   Action = "move"
)

// Actions lists every authorizable action. NewAuthorizer validates its
// role table against this list.
var Actions = []Action{ActionRead, ActionWrite, ActionDelete, ActionShare, ActionMove}

// Identity is the verified caller extracted from a session token.
type Identity struct {
	ID    uuid.UUID
	Email string
	Roles []string
}

func (i *Identity) HasRole(name string) bool {
	for _, r := range i.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// Hierarchy is a total privilege order over role names, most privileged
// first. It is injected into the Authorizer rather than read from a
// package constant so tests can substitute alternate orders.
type Hierarchy []string

func DefaultHierarchy() Hierarchy {
	return Hierarchy{models.RoleAdmin, models.RoleManager, models.RoleMember, models.RoleViewer}
}

func (h Hierarchy) rank(role string) (int, bool) {
	for i, name := range h {
		if name == role {
			return i, true
		}
	}
	return 0, false
}

// AtLeast reports whether role `have` is at least as privileged as `want`.
// Unknown names on either side are never privileged.
func (h Hierarchy) AtLeast(have, want string) bool {
	haveRank, ok := h.rank(have)
	if !ok {
		return false
	}
	wantRank, ok := h.rank(want)
	if !ok {
		return false
	}
	return haveRank <= wantRank
}

type DenyReason string

const (
	// DenyNotFound covers absent and soft-deleted resources alike, so a
	// denied caller cannot probe which ids exist. Surfaced as 404.
	DenyNotFound  DenyReason = "not_found"
	DenyForbidden DenyReason = "forbidden"
)

type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func allow() Decision            { return Decision{Allowed: true} }
func deny(r DenyReason) Decision { return Decision{Reason: r} }

// DefaultActionRoles maps each action to the minimum role a non-owner
// needs.
func DefaultActionRoles() map[Action]string {
	return map[Action]string{
		ActionRead:   models.RoleViewer,
		ActionWrite:  models.RoleMember,
		ActionMove:   models.RoleMember,
		ActionShare:  models.RoleManager,
		ActionDelete: models.RoleManager,
	}
}

// Authorizer decides (identity, resource, action) triples. Read-only: the
// caller performs the action after an Allow. It is not a transaction
// guard; a concurrent delete between check and use is an accepted race.
type Authorizer struct {
	DB          *gorm.DB
	hierarchy   Hierarchy
	actionRoles map[Action]string
}

// NewAuthorizer validates the action table exhaustively: every Action
// variant needs an entry naming a role known to the hierarchy.
func NewAuthorizer(db *gorm.DB, hierarchy Hierarchy, actionRoles map[Action]string) (*Authorizer, error) {
	if len(hierarchy) == 0 {
		return nil, fmt.Errorf("authorizer: empty role hierarchy")
	}
	for _, action := range Actions {
		role, ok := actionRoles[action]
		if !ok {
			return nil, fmt.Errorf("authorizer: no minimum role for action %q", action)
		}
		if _, ok := hierarchy.rank(role); !ok {
			return nil, fmt.Errorf("authorizer: action %q maps to unknown role %q", action, role)
		}
	}
	return &Authorizer{DB: db, hierarchy: hierarchy, actionRoles: actionRoles}, nil
}

func (a *Authorizer) Authorize(ctx context.Context, user *Identity, ref ResourceRef, action Action) Decision {
	if user == nil {
		return deny(DenyForbidden)
	}

	// Admin bypass happens before the existence check: admins get Allow
	// even on a soft-deleted resource.
	if user.HasRole(models.RoleAdmin) {
		return allow()
	}

	ownerID, found := a.loadOwner(ctx, ref)
	if !found {
		return deny(DenyNotFound)
	}

	if ownerID == user.ID {
		return allow()
	}

	required := a.actionRoles[action]
	for _, role := range user.Roles {
		if a.hierarchy.AtLeast(role, required) {
			return allow()
		}
	}

	return deny(DenyForbidden)
}

// loadOwner resolves the resource owner. Soft-deleted rows are filtered by
// GORM, so they come back as not found.
func (a *Authorizer) loadOwner(ctx context.Context, ref ResourceRef) (uuid.UUID, bool) {
	switch ref.Kind {
	case ResourceFile:
		var file models.File
		if err := a.DB.WithContext(ctx).Select("id", "owner_id").First(&file, "id = ?", ref.ID).Error; err != nil {
			return uuid.Nil, false
		}
		return file.OwnerID, true
	case ResourceFolder:
		var folder models.Folder
		if err := a.DB.WithContext(ctx).Select("id", "owner_id").First(&folder, "id = ?", ref.ID).Error; err != nil {
			return uuid.Nil, false
		}
		return folder.OwnerID, true
	default:
		return uuid.Nil, false
	}
}
