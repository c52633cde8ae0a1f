package launch

// AuthStatus is the sign-in state reported by the identity provider.
type AuthStatus string

const (
	AuthLoading         AuthStatus = "loading"
	AuthAuthenticated   AuthStatus = "authenticated"
	AuthUnauthenticated AuthStatus = "unauthenticated"
)

// User identifies whoever is signed in.
type User struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session is the read-only identity handed to the view layer.
type Session struct {
	User   *User      `json:"user"`
	Status AuthStatus `json:"status"`
}

// Authenticated reports whether the session carries a signed-in user.
func (s Session) Authenticated() bool {
	return s.Status == AuthAuthenticated && s.User != nil
}

// AuthenticatedSession builds a signed-in session for user.
func AuthenticatedSession(user User) Session {
	return Session{User: &user, Status: AuthAuthenticated}
}
