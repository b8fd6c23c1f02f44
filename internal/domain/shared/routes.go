package shared

import (
	"net/url"
	"strings"
)

// Console routes known to the core
const (
	LoginRoute    = "/login"
	HomeRoute     = "/home"
	NotFoundRoute = "/404"
)

// FromParam is the login query parameter carrying the location to resume
const FromParam = "from"

// LoginLocation returns the login route that resumes at from after login.
// Locations that are empty or already on the login route are not preserved.
func LoginLocation(from string) string {
	if from == "" || from == "/" || isLoginRoute(from) {
		return LoginRoute
	}
	return LoginRoute + "?" + FromParam + "=" + url.QueryEscape(from)
}

// ResumeTarget extracts the preserved location from a login location,
// falling back to the home route.
func ResumeTarget(loginLocation string) string {
	u, err := url.Parse(loginLocation)
	if err != nil {
		return HomeRoute
	}
	from := u.Query().Get(FromParam)
	if from == "" || !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") || isLoginRoute(from) {
		return HomeRoute
	}
	return from
}

// RoutePath strips the query from a location
func RoutePath(location string) string {
	if i := strings.IndexAny(location, "?#"); i >= 0 {
		return location[:i]
	}
	return location
}

func isLoginRoute(location string) bool {
	return RoutePath(location) == LoginRoute
}
