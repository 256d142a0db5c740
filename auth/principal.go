package auth

import (
	"maps"
	"strings"
	"time"

	"github.com/dpup/gatehouse/errors"
)

// Principal is the authenticated identity carried by a session. Values are
// immutable once built, methods that change a field return a copy.
type Principal struct {
	// Name of the identity provider, e.g. "google".
	Provider string `json:"provider"`

	// Provider specific, stable identifier for the user.
	Subject string `json:"subject"`

	Name          string `json:"name"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified,omitempty"`
	Picture       string `json:"picture,omitempty"`
	Locale        string `json:"locale,omitempty"`

	// Raw profile fields returned by the provider.
	Extra map[string]any `json:"extra,omitempty"`

	Tokens Tokens `json:"tokens,omitzero"`

	// Identifier of the local user record, set during session attachment.
	UserID string `json:"userId,omitempty"`

	// When the provider authenticated the user.
	AuthTime time.Time `json:"authTime"`
}

// Tokens issued by the provider alongside the profile.
type Tokens struct {
	AccessToken  string    `json:"accessToken,omitempty"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	TokenType    string    `json:"tokenType,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero"`
}

// PrincipalOption sets optional profile fields in NewPrincipal.
type PrincipalOption func(*Principal)

// WithEmailVerified records whether the provider verified the email address.
func WithEmailVerified(v bool) PrincipalOption {
	return func(p *Principal) { p.EmailVerified = v }
}

// WithPicture sets the avatar URL.
func WithPicture(url string) PrincipalOption {
	return func(p *Principal) { p.Picture = url }
}

// WithLocale sets the preferred locale.
func WithLocale(locale string) PrincipalOption {
	return func(p *Principal) { p.Locale = locale }
}

// WithExtra attaches the raw provider profile.
func WithExtra(extra map[string]any) PrincipalOption {
	return func(p *Principal) { p.Extra = maps.Clone(extra) }
}

// WithTokens attaches provider tokens.
func WithTokens(t Tokens) PrincipalOption {
	return func(p *Principal) { p.Tokens = t }
}

// WithAuthTime overrides the authentication time, which defaults to now.
func WithAuthTime(t time.Time) PrincipalOption {
	return func(p *Principal) { p.AuthTime = t }
}

// NewPrincipal builds a principal from a provider profile. Subject and email
// are required, a profile missing either yields ErrProvider. Without a name
// the email doubles as the display name.
func NewPrincipal(provider, subject, name, email string, opts ...PrincipalOption) (Principal, error) {
	if name == "" {
		name = email
	}
	p := Principal{
		Provider: provider,
		Subject:  subject,
		Name:     name,
		Email:    email,
		AuthTime: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&p)
	}
	if err := p.Validate(); err != nil {
		return Principal{}, err
	}
	return p, nil
}

// Validate checks required fields. Used when principals are decoded from
// storage as well as when they are built.
func (p Principal) Validate() error {
	var missing []string
	if p.Subject == "" {
		missing = append(missing, "subject")
	}
	if p.Email == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return errors.Mark(ErrProvider, 1).Append("profile missing " + strings.Join(missing, ", "))
	}
	return nil
}

// IsZero reports whether p is the zero principal.
func (p Principal) IsZero() bool {
	return p.Subject == "" && p.Provider == ""
}

// Key identifies the principal across providers, "provider:subject".
func (p Principal) Key() string {
	return p.Provider + ":" + p.Subject
}

// WithUserID returns a copy of p linked to a local user.
func (p Principal) WithUserID(id string) Principal {
	c := p.clone()
	c.UserID = id
	return c
}

// WithProfile returns a copy of p with the display fields replaced.
func (p Principal) WithProfile(name, email, picture string) Principal {
	c := p.clone()
	c.Name = name
	c.Email = email
	c.Picture = picture
	return c
}

// Equal reports whether two principals describe the same identity and
// profile. Tokens and auth time are ignored.
func (p Principal) Equal(o Principal) bool {
	return p.Provider == o.Provider &&
		p.Subject == o.Subject &&
		p.Name == o.Name &&
		p.Email == o.Email &&
		p.EmailVerified == o.EmailVerified &&
		p.Picture == o.Picture &&
		p.Locale == o.Locale &&
		p.UserID == o.UserID
}

func (p Principal) clone() Principal {
	p.Extra = maps.Clone(p.Extra)
	return p
}
