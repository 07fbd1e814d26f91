package core

// Logger is any service that can log app events.
// expected args: error | map[string]interface{} | Staff (the person behind the event)
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Staff is the authenticated staff member acting on the app (taken from the request token).
type Staff struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"is_admin"`
}
