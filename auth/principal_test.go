package auth

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dpup/gatehouse/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestNewPrincipal(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	p, err := NewPrincipal("google", "g-123", "Ada Lovelace", "ada@example.com",
		WithEmailVerified(true),
		WithPicture("https://example.com/ada.png"),
		WithLocale("en-GB"),
		WithExtra(map[string]any{"hd": "example.com"}),
		WithTokens(Tokens{AccessToken: "ya29.token", TokenType: "Bearer"}),
		WithAuthTime(at),
	)
	require.NoError(t, err)

	assert.Equal(t, "google", p.Provider)
	assert.Equal(t, "g-123", p.Subject)
	assert.Equal(t, "google:g-123", p.Key())
	assert.True(t, p.EmailVerified)
	assert.Equal(t, "en-GB", p.Locale)
	assert.Equal(t, "example.com", p.Extra["hd"])
	assert.Equal(t, "ya29.token", p.Tokens.AccessToken)
	assert.Equal(t, at, p.AuthTime)
	assert.False(t, p.IsZero())
}

func TestNewPrincipalRequiredFields(t *testing.T) {
	tests := []struct {
		name                   string
		subject, display, mail string
		missing                string
	}{
		{"no subject", "", "Ada", "ada@example.com", "subject"},
		{"no email", "g-1", "Ada", "", "email"},
		{"nothing", "", "", "", "subject, email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPrincipal("google", tt.subject, tt.display, tt.mail)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrProvider)
			assert.Equal(t, codes.Unauthenticated, errors.Code(err))
			assert.Contains(t, err.Error(), "profile missing "+tt.missing)
			assert.True(t, p.IsZero())
		})
	}
}

func TestNewPrincipalWithoutName(t *testing.T) {
	p, err := NewPrincipal("google", "123", "", "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", p.Name)
	assert.Equal(t, "a@b.com", p.Email)
}

func TestPrincipalCopies(t *testing.T) {
	p, err := NewPrincipal("google", "g-1", "Ada", "ada@example.com",
		WithExtra(map[string]any{"hd": "example.com"}))
	require.NoError(t, err)

	linked := p.WithUserID("u-1")
	linked.Extra["hd"] = "changed"

	assert.Empty(t, p.UserID, "original untouched")
	assert.Equal(t, "example.com", p.Extra["hd"], "extra is cloned")
	assert.Equal(t, "u-1", linked.UserID)

	renamed := p.WithProfile("Augusta", "augusta@example.com", "")
	assert.Equal(t, "Ada", p.Name)
	assert.Equal(t, "Augusta", renamed.Name)
	assert.False(t, p.Equal(renamed))
	assert.True(t, p.Equal(p.WithUserID("")))
}

func TestPrincipalJSON(t *testing.T) {
	p, err := NewPrincipal("google", "g-1", "Ada", "ada@example.com", WithLocale("en"))
	require.NoError(t, err)
	p = p.WithUserID("u-1")

	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "tokens", "empty tokens are omitted")

	var decoded Principal
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.True(t, p.Equal(decoded))
	assert.True(t, p.AuthTime.Equal(decoded.AuthTime))
	assert.NoError(t, decoded.Validate())
}

func TestPrincipalFromContext(t *testing.T) {
	_, err := PrincipalFromContext(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)

	p, err := NewPrincipal("google", "g-1", "Ada", "ada@example.com")
	require.NoError(t, err)

	got, err := PrincipalFromContext(WithPrincipal(context.Background(), p))
	require.NoError(t, err)
	assert.True(t, p.Equal(got))
}

func TestFailure(t *testing.T) {
	var o Outcome = Failure{Reason: ReasonExchange, Err: errors.Mark(ErrProvider, 0)}

	f, ok := o.(Failure)
	require.True(t, ok)
	assert.ErrorIs(t, f, ErrProvider)
	assert.Equal(t, "exchange: auth: identity provider error", f.Error())
	assert.Equal(t, "denied", Failure{Reason: ReasonDenied}.Error())
}

func TestParsePrompt(t *testing.T) {
	p, err := ParsePrompt("select_account")
	require.NoError(t, err)
	assert.Equal(t, PromptSelectAccount, p)
	assert.Equal(t, "select_account", p.String())

	p, err = ParsePrompt("")
	require.NoError(t, err)
	assert.Equal(t, PromptDefault, p)
	assert.Empty(t, p.String())

	_, err = ParsePrompt("consent")
	assert.Error(t, err)
}
