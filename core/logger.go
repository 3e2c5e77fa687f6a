package core

// Logger is anything that can report application events.
// args may contain errors, maps of extra data or the acting user's ID (UserID).
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// UserID tags a log entry with the acting user.
type UserID string
