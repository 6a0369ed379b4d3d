package session

var (
	// RouteRoot is the route unauthenticated clients are kept on
	RouteRoot = "/"

	// RouteLanding is the route authenticated clients land on
	RouteLanding = "/introduction"
)

// DecideRoute decides whether a client positioned at the given path has to be redirected somewhere else.
// A logged-in client never rests on the root route and a logged-out client never rests anywhere else.
// The boolean return value indicates whether a redirect is required at all.
func DecideRoute(loggedIn bool, path string) (string, bool) {
	if loggedIn && path == RouteRoot {
		return RouteLanding, true
	}
	if !loggedIn && path != RouteRoot {
		return RouteRoot, true
	}
	return "", false
}
