package google

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/dpup/gatehouse/auth"
	"github.com/dpup/gatehouse/errors"
)

const userInfoEndpoint = "https://www.googleapis.com/oauth2/v3/userinfo"

// UserInfoFromClaims returns a UserInfo struct from verified ID token claims.
// Only the subject is required, Google omits profile claims from ID tokens
// unless the matching scopes were granted.
func UserInfoFromClaims(c map[string]interface{}) (*UserInfo, error) {
	ui := &UserInfo{}
	var err error
	ui.ID, err = claimsString("sub", c, true)
	if err != nil {
		return nil, err
	}
	ui.Email, _ = claimsString("email", c, false)
	ui.Name, _ = claimsString("name", c, false)
	ui.GivenName, _ = claimsString("given_name", c, false)
	ui.FamilyName, _ = claimsString("family_name", c, false)
	ui.Locale, _ = claimsString("locale", c, false)
	ui.Picture, _ = claimsString("picture", c, false)
	ui.Hd, _ = claimsString("hd", c, false)

	if verified, ok := c["email_verified"].(bool); ok {
		ui.EmailVerified = &verified
	}

	return ui, nil
}

func claimsString(key string, c map[string]interface{}, required bool) (string, error) {
	if v, ok := c[key].(string); ok {
		return v, nil
	}
	if !required {
		return "", nil
	}
	return "", errors.Mark(auth.ErrProvider, 0).Append("google: id token missing '" + key + "'")
}

// UserInfoFromJSON decodes a userinfo response. The raw fields are kept so
// they can be attached to the principal.
func UserInfoFromJSON(data io.Reader) (*UserInfo, error) {
	b, err := io.ReadAll(io.LimitReader(data, maxUserInfoBytes))
	if err != nil {
		return nil, errors.Mark(auth.ErrProvider, 0).Append("google: failed to read user info: " + err.Error())
	}
	userInfo := &UserInfo{}
	if err := json.Unmarshal(b, userInfo); err != nil {
		return nil, errors.Mark(auth.ErrProvider, 0).Append("google: failed to decode user info: " + err.Error())
	}
	d := json.NewDecoder(bytes.NewReader(b))
	d.UseNumber()
	if err := d.Decode(&userInfo.raw); err != nil {
		return nil, errors.Mark(auth.ErrProvider, 0).Append("google: failed to decode user info: " + err.Error())
	}
	return userInfo, nil
}

// Profiles are small, anything larger is not a userinfo response.
const maxUserInfoBytes = 1 << 20

// The result of calling Google's OAuth2 userinfo endpoint response. Per google
// the email is always verified as they only return the primary email for the
// account.
type UserInfo struct {
	// The user's unique and stable ID.
	ID string `json:"sub"`

	// The user's email address.
	Email string `json:"email,omitempty"`

	// The user's full name.
	Name string `json:"name,omitempty"`

	// The user's first name.
	GivenName string `json:"given_name,omitempty"`

	// The user's last name.
	FamilyName string `json:"family_name,omitempty"`

	// The user's preferred locale.
	Locale string `json:"locale,omitempty"`

	// URL of the user's picture image.
	Picture string `json:"picture,omitempty"`

	// The hosted domain e.g. example.com if the user is Google apps user.
	Hd string `json:"hd,omitempty"`

	// Included for 3rd party emails and some HD accounts.
	EmailVerified *bool `json:"email_verified,omitempty"`

	raw map[string]any
}

// IsConfirmed returns true if Google is authorative and the user is confirmed
// to be a legitimate user.
//
// Google is authoritative when the email has a @gmail.com suffix, or when
// email_verified is true and hd is set (a Google Workspace account). For other
// addresses email_verified only says Google verified the address when the
// account was created, ownership may have changed since.
func (ui *UserInfo) IsConfirmed() bool {
	if ui.Hd != "" {
		return ui.EmailVerified != nil && *ui.EmailVerified
	}
	return strings.HasSuffix(ui.Email, "@gmail.com")
}

// Principal converts the profile, failing with auth.ErrProvider when a
// required field is missing.
func (ui *UserInfo) Principal(opts ...auth.PrincipalOption) (auth.Principal, error) {
	base := []auth.PrincipalOption{
		auth.WithEmailVerified(ui.IsConfirmed()),
		auth.WithPicture(ui.Picture),
		auth.WithLocale(ui.Locale),
		auth.WithExtra(ui.raw),
	}
	return auth.NewPrincipal(ProviderName, ui.ID, ui.DisplayName(), ui.Email, append(base, opts...)...)
}

// DisplayName is the full name, or the given and family names when Google
// omits it. Empty when the profile carries no name at all.
func (ui *UserInfo) DisplayName() string {
	if ui.Name != "" {
		return ui.Name
	}
	return strings.TrimSpace(ui.GivenName + " " + ui.FamilyName)
}
