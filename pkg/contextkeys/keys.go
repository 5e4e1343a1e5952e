package contextkeys

type contextKey string

const (
	UserEmailKey contextKey = "UserEmail"
	UserNameKey  contextKey = "UserName"
)
