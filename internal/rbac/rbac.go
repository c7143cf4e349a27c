package rbac

// Role names a capability bundle granted to a project member.
type Role string

// Permission names a single gated operation on a project.
type Permission string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleSigner Role = "signer"
	RoleViewer Role = "viewer"
)

const (
	PermissionAnnotateAdd    Permission = "annotate:add"
	PermissionAnnotateUpdate Permission = "annotate:update"
	PermissionAnnotateRemove Permission = "annotate:remove"
	PermissionAnnotateInvite Permission = "annotate:invite"
	PermissionSettingsUpdate Permission = "settings:update"
	PermissionTableUpdate    Permission = "table:update"
)

func grants(role Role, permission Permission) bool {
	switch role {
	case RoleOwner:
		return true
	case RoleEditor:
		switch permission {
		case PermissionAnnotateAdd, PermissionAnnotateUpdate, PermissionAnnotateRemove,
			PermissionSettingsUpdate, PermissionTableUpdate:
			return true
		}
		return false
	case RoleSigner, RoleViewer:
		return false
	default:
		return false
	}
}

// HasPermission reports whether the role set grants every required
// permission. It is pure and has no side effects.
func HasPermission(roles []Role, required []Permission) bool {
	for _, permission := range required {
		granted := false
		for _, role := range roles {
			if grants(role, permission) {
				granted = true
				break
			}
		}
		if !granted {
			return false
		}
	}
	return true
}

// Normalize maps a raw role string onto a known role, defaulting to viewer.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleOwner, RoleEditor, RoleSigner, RoleViewer:
		return Role(role)
	default:
		return RoleViewer
	}
}

// Gate is the boolean capability check injected into the annotation store.
type Gate struct{}

// HasPermission implements the permission-gate contract.
func (Gate) HasPermission(roles []Role, required []Permission) bool {
	return HasPermission(roles, required)
}
