// Package access decides whether a caller may perform a method on a kind of
// resource. Every HTTP handler consults Authorize before touching data; role
// checks are not repeated anywhere else.
package access

import (
	"net/http"
	"strings"

	"github.com/yamdb/apiserver/types"
)

// Kind identifies the resource family a request targets.
type Kind int

const (
	KindUnknown Kind = iota
	// Account is user management: listing, creating, editing and deleting
	// other accounts, including their roles.
	Account
	// Profile is the caller's own account (/users/me).
	Profile
	Category
	Genre
	Title
	Review
	Comment
)

func (k Kind) String() string {
	switch k {
	case Account:
		return "account"
	case Profile:
		return "profile"
	case Category:
		return "category"
	case Genre:
		return "genre"
	case Title:
		return "title"
	case Review:
		return "review"
	case Comment:
		return "comment"
	default:
		return "unknown"
	}
}

// Decision is the outcome of Authorize.
type Decision bool

const (
	Deny  Decision = false
	Allow Decision = true
)

// Caller is the identity behind a request. The zero value is anonymous.
type Caller struct {
	UserID  int
	Role    types.Role
	IsStaff bool
}

// CallerFromUser builds a Caller for an authenticated account.
func CallerFromUser(user types.User) Caller {
	return Caller{UserID: user.ID, Role: user.Role, IsStaff: user.IsStaff}
}

// Authenticated reports whether the caller presented a valid token.
func (c Caller) Authenticated() bool {
	return c.UserID > 0
}

func (c Caller) isAdmin() bool {
	return c.IsStaff || c.Role == types.RoleAdmin
}

func (c Caller) isModerator() bool {
	return c.isAdmin() || c.Role == types.RoleModerator
}

// Target is the resource instance a request acts on.
type Target struct {
	AuthorID int
}

// Authorize applies the permission table. target is nil for collection-level
// requests (list, create). Unknown kinds and methods are denied.
func Authorize(caller Caller, method string, kind Kind, target *Target) Decision {
	method = strings.ToUpper(strings.TrimSpace(method))
	safe := isSafe(method)

	switch kind {
	case Category, Genre, Title:
		if safe {
			return Allow
		}
		if !isWrite(method) {
			return Deny
		}
		return Decision(caller.Authenticated() && caller.isAdmin())

	case Review, Comment:
		if safe {
			return Allow
		}
		// Anonymous writes stop here before any ownership check.
		if !caller.Authenticated() || !isWrite(method) {
			return Deny
		}
		if method == http.MethodPost {
			return Allow
		}
		if target == nil {
			return Deny
		}
		return Decision(target.AuthorID == caller.UserID || caller.isModerator())

	case Account:
		return Decision(caller.Authenticated() && caller.isAdmin())

	case Profile:
		return Decision(caller.Authenticated())
	}

	return Deny
}

func isSafe(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
