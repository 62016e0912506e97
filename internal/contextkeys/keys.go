package contextkeys

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const (
	// User is the context key for the authenticated *domain.User.
	User contextKey = "user"
)
