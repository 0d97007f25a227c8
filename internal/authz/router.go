// Package authz decides which application surface a caller may reach.
//
// A caller is Unauthenticated, Operator or Admin. Admin requires both the fixed
// administrator email and a positive remote privilege check; the email alone is
// never enough. The decision is recomputed on every mount of a protected surface
// and on every session change (see Guard).
package authz

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

type Role int

const (
	RoleOperator Role = iota
	RoleAdmin
)

func (r Role) State() State {
	if r == RoleAdmin {
		return StateAdmin
	}
	return StateOperator
}

// Home is the surface a role lands on.
func (r Role) Home() Surface {
	if r == RoleAdmin {
		return SurfaceAdmin
	}
	return SurfaceOperator
}

type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateOperator        State = "operator"
	StateAdmin           State = "admin"
)

type Surface string

const (
	SurfaceLogin    Surface = "login"
	SurfaceAdmin    Surface = "admin"
	SurfaceOperator Surface = "operator"
)

func ParseSurface(s string) (Surface, error) {
	switch sf := Surface(strings.ToLower(strings.TrimSpace(s))); sf {
	case SurfaceLogin, SurfaceAdmin, SurfaceOperator:
		return sf, nil
	default:
		return "", fmt.Errorf("unknown surface %q", s)
	}
}

// Path is where the surface is served.
func (s Surface) Path() string {
	switch s {
	case SurfaceAdmin:
		return "/admin"
	case SurfaceOperator:
		return "/dashboard"
	default:
		return "/login"
	}
}

const (
	NoticeSignIn       = "please sign in to continue"
	NoticeUnauthorized = "unauthorized"
)

// Decision is the outcome of one evaluation. When Allowed is false, Redirect names
// the surface to send the caller to.
type Decision struct {
	State    State   `json:"state"`
	Surface  Surface `json:"surface"`
	Allowed  bool    `json:"allowed"`
	Redirect Surface `json:"redirect,omitempty"`
	Path     string  `json:"path,omitempty"`
	Notice   string  `json:"notice,omitempty"`
}

// PrivilegeChecker is the remote "is this caller privileged" check.
type PrivilegeChecker interface {
	IsAdmin(ctx context.Context, s Session) (bool, error)
}

// CheckerFunc adapts a function to PrivilegeChecker.
type CheckerFunc func(ctx context.Context, s Session) (bool, error)

func (f CheckerFunc) IsAdmin(ctx context.Context, s Session) (bool, error) { return f(ctx, s) }

type Router struct {
	adminEmail string
	checker    PrivilegeChecker
}

func NewRouter(adminEmail string, checker PrivilegeChecker) *Router {
	return &Router{adminEmail: strings.ToLower(strings.TrimSpace(adminEmail)), checker: checker}
}

// Role resolves the role of s. Only the administrator email is sent to the remote
// check; a failing check demotes to operator.
func (rt *Router) Role(ctx context.Context, s Session) Role {
	if rt.adminEmail == "" || strings.ToLower(strings.TrimSpace(s.Email)) != rt.adminEmail {
		return RoleOperator
	}
	if rt.checker == nil {
		return RoleOperator
	}
	ok, err := rt.checker.IsAdmin(ctx, s)
	if err != nil {
		log.Warn().Err(err).Str("user_id", s.UserID.String()).Msg("privilege check failed")
		return RoleOperator
	}
	if !ok {
		return RoleOperator
	}
	return RoleAdmin
}

// Evaluate decides whether s may see the required surface.
func (rt *Router) Evaluate(ctx context.Context, s *Session, required Surface) Decision {
	if s == nil {
		if required == SurfaceLogin {
			return Decision{State: StateUnauthenticated, Surface: required, Allowed: true}
		}
		return redirect(StateUnauthenticated, required, SurfaceLogin, NoticeSignIn)
	}

	role := rt.Role(ctx, *s)
	state := role.State()
	switch {
	case required == SurfaceLogin:
		return redirect(state, required, role.Home(), "")
	case required == SurfaceAdmin && role != RoleAdmin:
		return redirect(state, required, SurfaceOperator, NoticeUnauthorized)
	case required == SurfaceOperator && role == RoleAdmin:
		return redirect(state, required, SurfaceAdmin, "")
	default:
		return Decision{State: state, Surface: required, Allowed: true}
	}
}

func redirect(state State, required, to Surface, notice string) Decision {
	return Decision{
		State:    state,
		Surface:  required,
		Redirect: to,
		Path:     to.Path(),
		Notice:   notice,
	}
}
