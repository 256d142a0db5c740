package auth

import "fmt"

// Outcome is the result of exchanging an authorization code. It is either a
// Success or a Failure.
type Outcome interface {
	isOutcome()
}

// Success carries the principal built from the provider's profile.
type Success struct {
	Principal Principal
}

// Failure explains why no principal could be established.
type Failure struct {
	Reason FailureReason
	Err    error
}

func (Success) isOutcome() {}
func (Failure) isOutcome() {}

func (f Failure) Error() string {
	if f.Err == nil {
		return string(f.Reason)
	}
	return fmt.Sprintf("%s: %s", f.Reason, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// FailureReason is a short, loggable classification of a failed login.
type FailureReason string

const (
	// The user declined consent or the provider returned an error parameter.
	ReasonDenied FailureReason = "denied"

	// The callback carried no authorization code.
	ReasonMissingCode FailureReason = "missing_code"

	// The state parameter was missing, forged or expired.
	ReasonInvalidState FailureReason = "invalid_state"

	// The code could not be exchanged for a token.
	ReasonExchange FailureReason = "exchange"

	// The profile could not be fetched or was incomplete.
	ReasonProfile FailureReason = "profile"

	// The ID token returned with the access token failed verification.
	ReasonIDToken FailureReason = "id_token"
)
