package auth

import (
	"context"
	"fmt"
)

// Provider is an OAuth 2.0 identity provider client.
type Provider interface {
	// Name is used in routes and recorded on principals.
	Name() string

	// AuthorizationRedirect returns the URL the browser should be sent to. It
	// is deterministic and has no side effects.
	AuthorizationRedirect(scopes []string, prompt Prompt, state string) string

	// Exchange trades an authorization code for a principal. Implementations
	// make a single attempt and report every failure as a Failure wrapping
	// ErrProvider.
	Exchange(ctx context.Context, code string) Outcome
}

// Prompt controls the account chooser shown by the provider.
type Prompt int

const (
	// Let the provider decide.
	PromptDefault Prompt = iota

	// Always show the account chooser.
	PromptSelectAccount
)

func (p Prompt) String() string {
	switch p {
	case PromptSelectAccount:
		return "select_account"
	default:
		return ""
	}
}

// ParsePrompt converts a config value to a Prompt.
func ParsePrompt(s string) (Prompt, error) {
	switch s {
	case "", "default":
		return PromptDefault, nil
	case "select_account":
		return PromptSelectAccount, nil
	}
	return PromptDefault, fmt.Errorf("auth: unknown prompt %q", s)
}
