package authz

import "errors"

// Role enumerates the authorization roles known to the application.
type Role string

const (
	RoleAnonymous Role = "ANONYMOUS"
	RoleUser      Role = "USER"
	RoleAdmin     Role = "ADMIN"
)

// Action enumerates the operations the policy decides on.
type Action string

const (
	ActionView     Action = "view"
	ActionSubmit   Action = "submit"
	ActionEdit     Action = "edit"
	ActionDelete   Action = "delete"
	ActionModerate Action = "moderate"
)

var (
	// ErrForbidden indicates the principal's role or ownership does not grant the action.
	ErrForbidden = errors.New("authz: forbidden")
	// ErrAuthenticationRequired indicates an anonymous caller attempted a protected action.
	ErrAuthenticationRequired = errors.New("authz: authentication required")
)

// Principal carries the authenticated identity and role for a request.
// A zero Principal represents an anonymous visitor.
type Principal struct {
	Username string
	Role     Role
}

// Authenticated reports whether the principal carries a logged-in identity.
func (p Principal) Authenticated() bool {
	return p.Username != "" && p.Role != "" && p.Role != RoleAnonymous
}

// EffectiveRole normalizes the principal's role, mapping unauthenticated
// principals to RoleAnonymous.
func (p Principal) EffectiveRole() Role {
	if !p.Authenticated() {
		return RoleAnonymous
	}
	return p.Role
}

// Authorize decides whether the principal may perform the action.
// ownsResource reports whether the target story's author token equals the
// token recomputed from the principal's identity; it is ignored for actions
// that do not depend on ownership. The result is one of nil, ErrForbidden,
// or ErrAuthenticationRequired.
func Authorize(p Principal, action Action, ownsResource bool) error {
	if action == ActionView {
		return nil
	}
	if !p.Authenticated() {
		return ErrAuthenticationRequired
	}

	switch action {
	case ActionSubmit:
		if p.Role != RoleUser {
			return ErrForbidden
		}
		return nil
	case ActionEdit:
		if p.Role != RoleUser || !ownsResource {
			return ErrForbidden
		}
		return nil
	case ActionDelete:
		if p.Role == RoleAdmin {
			return nil
		}
		if p.Role == RoleUser && ownsResource {
			return nil
		}
		return ErrForbidden
	case ActionModerate:
		if p.Role != RoleAdmin {
			return ErrForbidden
		}
		return nil
	default:
		return ErrForbidden
	}
}

// CanPerform reports whether the action is reachable for the role at all,
// ignoring ownership. Used to gate routes and UI affordances before a
// target resource is loaded.
func CanPerform(role Role, action Action) bool {
	switch action {
	case ActionView:
		return true
	case ActionSubmit, ActionEdit:
		return role == RoleUser
	case ActionDelete:
		return role == RoleUser || role == RoleAdmin
	case ActionModerate:
		return role == RoleAdmin
	default:
		return false
	}
}

// ParseRole maps a stored role string onto a Role, defaulting to anonymous.
func ParseRole(value string) Role {
	switch Role(value) {
	case RoleUser:
		return RoleUser
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleAnonymous
	}
}
