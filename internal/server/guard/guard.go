// Package guard holds the access checks run in front of protected calls.
// Each check returns an explicit Decision; checks run in a fixed order and
// the first denial wins.
package guard

import "github.com/dmitrijs2005/cropdb/internal/server/models"

// Reason tells the transport which kind of denial occurred.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonLogin
	ReasonAdmin
	ReasonCSRF
)

func (r Reason) String() string {
	switch r {
	case ReasonLogin:
		return "login required"
	case ReasonAdmin:
		return "admin required"
	case ReasonCSRF:
		return "csrf check failed"
	}
	return "allowed"
}

type Decision struct {
	Allowed bool
	Reason  Reason
}

var allow = Decision{Allowed: true}

func deny(r Reason) Decision { return Decision{Reason: r} }

// Request is what a guard sees of the call. User is nil for anonymous calls.
type Request struct {
	User *models.User
	CSRF string
}

type Guard func(r Request) Decision

// CSRFChecker compares a presented nonce with the one stored on the user.
type CSRFChecker func(u *models.User, value string) bool

func LoginRequired() Guard {
	return func(r Request) Decision {
		if r.User == nil || !r.User.IsActive() {
			return deny(ReasonLogin)
		}
		return allow
	}
}

func AdminRequired() Guard {
	return func(r Request) Decision {
		if r.User == nil || !r.User.Admin {
			return deny(ReasonAdmin)
		}
		return allow
	}
}

func CSRFRequired(check CSRFChecker) Guard {
	return func(r Request) Decision {
		if r.User == nil || !check(r.User, r.CSRF) {
			return deny(ReasonCSRF)
		}
		return allow
	}
}

// Run evaluates guards in order and returns the first denial.
func Run(r Request, guards ...Guard) Decision {
	for _, g := range guards {
		if d := g(r); !d.Allowed {
			return d
		}
	}
	return allow
}

// Policy declares which checks protect a call. Admin and CSRF imply Login.
type Policy struct {
	Login bool
	Admin bool
	CSRF  bool
}

var (
	Public    = Policy{}
	Login     = Policy{Login: true}
	LoginCSRF = Policy{Login: true, CSRF: true}
	Admin     = Policy{Login: true, Admin: true}
	AdminCSRF = Policy{Login: true, Admin: true, CSRF: true}
)

// NeedsUser reports whether the call must carry a valid session.
func (p Policy) NeedsUser() bool {
	return p.Login || p.Admin || p.CSRF
}

// Guards builds the checks for p in the order login, admin, csrf.
func (p Policy) Guards(check CSRFChecker) []Guard {
	var gs []Guard
	if p.NeedsUser() {
		gs = append(gs, LoginRequired())
	}
	if p.Admin {
		gs = append(gs, AdminRequired())
	}
	if p.CSRF {
		gs = append(gs, CSRFRequired(check))
	}
	return gs
}
