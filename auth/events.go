package auth

const (
	LoginEvent   = "auth.login"
	LogoutEvent  = "auth.logout"
	FailureEvent = "auth.failure"
)

// AuthEvent is emitted on login and logout.
type AuthEvent struct {
	Principal Principal
	SessionID string
}

// FailureEventData is emitted when a callback is rejected.
type FailureEventData struct {
	Provider   string
	Reason     FailureReason
	Err        error
	RemoteAddr string
}
