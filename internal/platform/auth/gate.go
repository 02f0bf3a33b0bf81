package auth

import "net/url"

// Session describes what a route gate knows about the caller. Ready is false
// while token verification is still in flight; Identity is nil when no valid
// credential accompanied the request.
type Session struct {
	Ready    bool
	Identity *Identity
}

// Decision is the outcome of evaluating a session against a route's role
// requirements.
type Decision int

const (
	// DecisionPending means verification has not completed; callers should
	// neither grant nor deny access yet.
	DecisionPending Decision = iota
	// DecisionUnauthenticated means no valid credential was presented.
	DecisionUnauthenticated
	// DecisionAllowed grants access to the route.
	DecisionAllowed
	// DecisionForbidden means the caller is authenticated but lacks a
	// required role.
	DecisionForbidden
)

// String returns the decision name for logging.
func (d Decision) String() string {
	switch d {
	case DecisionPending:
		return "pending"
	case DecisionUnauthenticated:
		return "unauthenticated"
	case DecisionAllowed:
		return "allowed"
	case DecisionForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Decide evaluates a session against the allowed roles for a route. An empty
// role list admits any authenticated caller. Authentication is always decided
// before authorisation: an unauthenticated caller is never reported as
// forbidden, regardless of the role requirements.
func Decide(session Session, allowedRoles ...string) Decision {
	if !session.Ready {
		return DecisionPending
	}
	if session.Identity == nil || session.Identity.UID == "" {
		return DecisionUnauthenticated
	}
	if len(allowedRoles) == 0 {
		return DecisionAllowed
	}
	if session.Identity.HasAnyRole(allowedRoles...) {
		return DecisionAllowed
	}
	return DecisionForbidden
}

// LoginRedirectURL builds the login location for an unauthenticated caller,
// preserving the originally requested path so the client can return to it
// after signing in.
func LoginRedirectURL(loginPath, requestedPath string) string {
	if loginPath == "" {
		loginPath = "/login"
	}
	if requestedPath == "" {
		return loginPath
	}
	return loginPath + "?next=" + url.QueryEscape(requestedPath)
}
