// Package guard decides whether a session may enter a route. It performs no
// I/O; callers act on the returned Decision.
package guard

import (
	"net/url"
	"path"
	"strings"

	"github.com/OHshajim/MedLink/pkg/medlink/api"
	"github.com/OHshajim/MedLink/pkg/medlink/auth"
)

const (
	PathLogin               = "/login"
	PathRegister            = "/register"
	PathRoot                = "/"
	PathPatientDashboard    = "/patient/dashboard"
	PathPatientAppointments = "/patient/appointments"
	PathDoctorDashboard     = "/doctor/dashboard"
)

// Outcome is the result of a navigation check
type Outcome int

const (
	Allow Outcome = iota
	RedirectLogin
	NotFound
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect"
	case NotFound:
		return "not-found"
	}
	return "unknown"
}

// Decision is what a view should do with a navigation attempt. From is set
// only when an anonymous user was sent to the login page, so that login can
// return to it.
type Decision struct {
	Outcome    Outcome
	RedirectTo string
	From       string
}

// Route is an entry of the route table. An empty Role marks a public route.
type Route struct {
	Path string
	Role api.Role
}

// Public reports whether the route can be entered without a session
func (r Route) Public() bool {
	return r.Role == ""
}

// Routes lists every page of the application
var Routes = []Route{
	{Path: PathLogin},
	{Path: PathRegister},
	{Path: PathRoot, Role: api.RolePatient},
	{Path: PathPatientDashboard, Role: api.RolePatient},
	{Path: PathPatientAppointments, Role: api.RolePatient},
	{Path: PathDoctorDashboard, Role: api.RoleDoctor},
}

// Decide applies the protection rule for a route that requires role. An
// empty required role only demands a session.
func Decide(session auth.Session, required api.Role, requestedPath string) Decision {
	if !session.IsAuthenticated {
		return Decision{Outcome: RedirectLogin, RedirectTo: PathLogin, From: requestedPath}
	}
	if required != "" && session.Role != required {
		return Decision{Outcome: RedirectLogin, RedirectTo: PathLogin}
	}
	return Decision{Outcome: Allow}
}

// Lookup finds the route for p. Query strings, fragments and trailing
// slashes are ignored.
func Lookup(p string) (Route, bool) {
	clean := Clean(p)
	for _, r := range Routes {
		if r.Path == clean {
			return r, true
		}
	}
	return Route{}, false
}

// Navigate resolves p against the route table and checks it for session
func Navigate(session auth.Session, p string) Decision {
	route, ok := Lookup(p)
	if !ok {
		return Decision{Outcome: NotFound}
	}
	if route.Public() {
		return Decision{Outcome: Allow}
	}
	return Decide(session, route.Role, Clean(p))
}

// HomeFor returns the landing page after login
func HomeFor(role api.Role) string {
	switch role {
	case api.RoleDoctor:
		return PathDoctorDashboard
	case api.RolePatient:
		return PathPatientDashboard
	}
	return PathLogin
}

// ReturnPath picks where to go after logging in as role. from is honoured
// only when it names a page that role may enter.
func ReturnPath(role api.Role, from string) string {
	if from == "" {
		return HomeFor(role)
	}
	route, ok := Lookup(from)
	if !ok || route.Public() || route.Role != role {
		return HomeFor(role)
	}
	return route.Path
}

// Clean normalizes a requested path
func Clean(p string) string {
	if u, err := url.Parse(p); err == nil {
		p = u.Path
	}
	p = strings.TrimSpace(p)
	if p == "" {
		return PathRoot
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
