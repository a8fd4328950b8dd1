package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/brinebarrel/storefront-api/internal/models"
)

const (
	oauthStateCookieName = "bb_oauth_state"
	oauthNonceCookieName = "bb_oauth_nonce"

	oauthCookieTTL = 10 * time.Minute
)

var (
	// ErrOAuthStateMismatch indicates the callback state did not match the cookie
	ErrOAuthStateMismatch = errors.New("oauth state mismatch")
	// ErrOAuthUnverifiedEmail indicates the provider account has no verified email
	ErrOAuthUnverifiedEmail = errors.New("provider email not verified")
)

// GoogleOAuth runs the OIDC authorization-code flow against Google and
// produces a verified Identity for the auth service to resolve into a
// local account.
type GoogleOAuth struct {
	oauthConfig     *oauth2.Config
	idTokenVerifier *oidc.IDTokenVerifier
	secureCookies   bool
}

// NewGoogleOAuth discovers Google's OIDC endpoints and builds the flow.
// Use context.Background() from main; discovery makes a network call.
func NewGoogleOAuth(ctx context.Context, clientID, clientSecret, redirectURL string, secureCookies bool) (*GoogleOAuth, error) {
	provider, err := oidc.NewProvider(ctx, "https://accounts.google.com")
	if err != nil {
		return nil, fmt.Errorf("oidc provider discovery: %w", err)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes: []string{
			oidc.ScopeOpenID,
			"profile",
			"email",
		},
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})

	return &GoogleOAuth{
		oauthConfig:     oauthCfg,
		idTokenVerifier: verifier,
		secureCookies:   secureCookies,
	}, nil
}

// Begin generates state and nonce values, stores them in short-lived
// HttpOnly cookies, and returns the Google authorization URL to redirect to.
func (g *GoogleOAuth) Begin(w http.ResponseWriter) (string, error) {
	state, err := randomURLToken(32)
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomURLToken(32)
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	g.setFlowCookie(w, oauthStateCookieName, state, oauthCookieTTL)
	g.setFlowCookie(w, oauthNonceCookieName, nonce, oauthCookieTTL)

	url := g.oauthConfig.AuthCodeURL(
		state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("prompt", "select_account"),
		oauth2.SetAuthURLParam("nonce", nonce),
	)

	return url, nil
}

// Complete validates the callback against the flow cookies, exchanges the
// code, verifies the ID token, and returns the provider identity.
func (g *GoogleOAuth) Complete(w http.ResponseWriter, r *http.Request) (*models.Identity, error) {
	ctx := r.Context()

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		return nil, errors.New("missing state or code")
	}

	stateCookie, err := r.Cookie(oauthStateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != state {
		return nil, ErrOAuthStateMismatch
	}

	nonceCookie, err := r.Cookie(oauthNonceCookieName)
	if err != nil || nonceCookie.Value == "" {
		return nil, errors.New("missing nonce cookie")
	}
	expectedNonce := nonceCookie.Value

	// Flow cookies are single-use
	g.setFlowCookie(w, oauthStateCookieName, "", -1)
	g.setFlowCookie(w, oauthNonceCookieName, "", -1)

	token, err := g.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("no id_token in token response")
	}

	idToken, err := g.idTokenVerifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}

	var claims struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
		Nonce         string `json:"nonce"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("parse id_token claims: %w", err)
	}

	if claims.Sub == "" || claims.Email == "" {
		return nil, errors.New("incomplete provider identity")
	}
	if !claims.EmailVerified {
		return nil, ErrOAuthUnverifiedEmail
	}
	if claims.Nonce == "" || claims.Nonce != expectedNonce {
		return nil, errors.New("nonce mismatch")
	}

	return &models.Identity{
		ID:        claims.Sub,
		Email:     claims.Email,
		Name:      claims.Name,
		AvatarURL: claims.Picture,
	}, nil
}

func (g *GoogleOAuth) setFlowCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   g.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl < 0 {
		cookie.MaxAge = -1
	} else {
		cookie.Expires = time.Now().Add(ttl)
	}
	http.SetCookie(w, cookie)
}

func randomURLToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
