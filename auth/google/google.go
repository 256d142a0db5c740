// Package google implements auth.Provider for Google sign in using the OAuth
// 2.0 authorization code flow.
//
// The client makes exactly one token request and one userinfo request per
// exchange. It never retries, a failed login is reported to the browser and
// the user can simply try again.
package google

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dpup/gatehouse"
	"github.com/dpup/gatehouse/auth"
	"github.com/dpup/gatehouse/errors"
	"github.com/dpup/gatehouse/logging"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

const (
	// Constant name used as the auth provider in routes and principals.
	ProviderName = "google"

	// Path, relative to the configured address, Google redirects back to.
	CallbackPath = "/auth/google/callback"

	defaultTimeout = 10 * time.Second
)

// IDTokenValidator verifies Google ID tokens. *idtoken.Validator satisfies it.
type IDTokenValidator interface {
	Validate(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

// Option allows configuration of the Client.
type Option func(*Client)

// WithClient configures the client id and secret.
func WithClient(id, secret string) Option {
	return func(c *Client) {
		c.conf.ClientID = id
		c.conf.ClientSecret = secret
	}
}

// WithCallbackURL overrides the redirect URL registered with Google.
func WithCallbackURL(u string) Option {
	return func(c *Client) {
		c.conf.RedirectURL = u
	}
}

// WithEndpoint overrides Google's auth and token URLs.
func WithEndpoint(e oauth2.Endpoint) Option {
	return func(c *Client) {
		c.conf.Endpoint = e
	}
}

// WithUserInfoURL overrides the userinfo endpoint.
func WithUserInfoURL(u string) Option {
	return func(c *Client) {
		c.userInfoURL = u
	}
}

// WithHTTPClient sets the client used for all requests to Google.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithIDTokenVerification requires the id_token returned with the access
// token to be valid for this client and to name the same subject as the
// userinfo response.
func WithIDTokenVerification(enabled bool) Option {
	return func(c *Client) {
		c.verifyIDToken = enabled
	}
}

// WithIDTokenValidator replaces the default validator, which fetches Google's
// public keys. Implies WithIDTokenVerification(true).
func WithIDTokenValidator(v IDTokenValidator) Option {
	return func(c *Client) {
		c.validator = v
		c.verifyIDToken = true
	}
}

// New returns a Google client configured from auth.google.* and address,
// then from opts.
func New(opts ...Option) *Client {
	address := strings.TrimRight(gatehouse.ConfigString("address"), "/")
	c := &Client{
		conf: &oauth2.Config{
			ClientID:     gatehouse.ConfigString("auth.google.id"),
			ClientSecret: gatehouse.ConfigString("auth.google.secret"),
			Endpoint:     google.Endpoint,
			RedirectURL:  address + CallbackPath,
		},
		userInfoURL:   userInfoEndpoint,
		httpClient:    &http.Client{Timeout: defaultTimeout},
		verifyIDToken: gatehouse.ConfigBool("auth.google.verifyIdToken"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Client talks to Google's OAuth endpoints.
type Client struct {
	conf          *oauth2.Config
	userInfoURL   string
	httpClient    *http.Client
	verifyIDToken bool

	// validator is set by WithIDTokenValidator or built on first use.
	validator     IDTokenValidator
	validatorOnce sync.Once
	validatorErr  error
}

// From auth.Provider.
func (c *Client) Name() string {
	return ProviderName
}

// CallbackURL is the redirect_uri sent to Google.
func (c *Client) CallbackURL() string {
	return c.conf.RedirectURL
}

// AuthorizationRedirect returns the URL of Google's consent screen.
//
// https://developers.google.com/identity/protocols/oauth2/web-server#httprest
func (c *Client) AuthorizationRedirect(scopes []string, prompt auth.Prompt, state string) string {
	conf := *c.conf
	conf.Scopes = scopes

	// Refresh tokens are not needed, the session outlives the access token.
	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOnline}
	if p := prompt.String(); p != "" {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", p))
	}
	return conf.AuthCodeURL(state, opts...)
}

// Exchange trades an authorization code for a principal.
func (c *Client) Exchange(ctx context.Context, code string) auth.Outcome {
	if code == "" {
		return failure(auth.ReasonMissingCode, "google: missing authorization code")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.conf.Exchange(ctx, code)
	if err != nil {
		return failure(auth.ReasonExchange, "google: code exchange failed: "+err.Error())
	}

	var claimed *UserInfo
	if c.verifyIDToken {
		claimed, err = c.validateIDToken(ctx, tok)
		if err != nil {
			return auth.Failure{Reason: auth.ReasonIDToken, Err: err}
		}
	}

	ui, err := c.fetchUserInfo(ctx, tok)
	if err != nil {
		return auth.Failure{Reason: auth.ReasonProfile, Err: err}
	}
	if claimed != nil && claimed.ID != ui.ID {
		return failure(auth.ReasonIDToken, "google: id token subject does not match user info")
	}

	p, err := ui.Principal(auth.WithTokens(auth.Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.Type(),
		Expiry:       tok.Expiry,
	}))
	if err != nil {
		return auth.Failure{Reason: auth.ReasonProfile, Err: err}
	}

	logging.Infow(ctx, "google: exchanged authorization code", "auth.subject", p.Subject)
	return auth.Success{Principal: p}
}

func (c *Client) fetchUserInfo(ctx context.Context, tok *oauth2.Token) (*UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return nil, errors.Mark(auth.ErrProvider, 0).Append(err.Error())
	}
	tok.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Mark(auth.ErrProvider, 0).Append("google: user info request failed: " + err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Mark(auth.ErrProvider, 0).Append("google: user info returned " + resp.Status)
	}
	return UserInfoFromJSON(resp.Body)
}

func (c *Client) validateIDToken(ctx context.Context, tok *oauth2.Token) (*UserInfo, error) {
	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return nil, errors.Mark(auth.ErrProvider, 0).Append("google: token response has no id_token")
	}

	v, err := c.idTokenValidator(ctx)
	if err != nil {
		return nil, errors.Mark(auth.ErrProvider, 0).Append("google: id token validator: " + err.Error())
	}

	payload, err := v.Validate(ctx, raw, c.conf.ClientID)
	if err != nil {
		return nil, errors.Mark(auth.ErrProvider, 0).Append("google: invalid id token: " + err.Error())
	}
	return UserInfoFromClaims(payload.Claims)
}

// idTokenValidator returns the shared validator, creating it once. The
// validator outlives the request that created it, so it gets a context
// without the request's cancellation.
func (c *Client) idTokenValidator(ctx context.Context) (IDTokenValidator, error) {
	c.validatorOnce.Do(func() {
		if c.validator != nil {
			return
		}
		c.validator, c.validatorErr = idtoken.NewValidator(context.WithoutCancel(ctx), option.WithHTTPClient(c.httpClient))
	})
	return c.validator, c.validatorErr
}

func failure(reason auth.FailureReason, msg string) auth.Failure {
	return auth.Failure{Reason: reason, Err: errors.Mark(auth.ErrProvider, 1).Append(msg)}
}
