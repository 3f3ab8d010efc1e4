package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"example/comment-search-api/app/models"
)

// CodeExchanger is satisfied by *oauth2.Config.
type CodeExchanger interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

type IDTokenValidator interface {
	VerifyIDToken(raw string) (models.Profile, error)
}

// GoogleLogin runs the authorization-code flow against Google.
type GoogleLogin struct {
	oauth CodeExchanger
	ids   IDTokenValidator
}

// NewGoogleOAuthConfig returns the oauth2 config for the callback URL.
func NewGoogleOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"openid", "email", "profile"},
	}
}

func NewGoogleLogin(oauth CodeExchanger, ids IDTokenValidator) *GoogleLogin {
	return &GoogleLogin{oauth: oauth, ids: ids}
}

// NewState returns an unguessable value for the oauth state parameter.
func NewState() string {
	return uuid.NewString()
}

func (g *GoogleLogin) AuthURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Complete exchanges the authorization code and verifies the returned ID
// token.
func (g *GoogleLogin) Complete(ctx context.Context, code string) (models.Profile, error) {
	if code == "" {
		return models.Profile{}, errors.New("auth: missing authorization code")
	}
	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return models.Profile{}, fmt.Errorf("auth: exchange code: %w", err)
	}

	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return models.Profile{}, errors.New("auth: token response missing id_token")
	}

	profile, err := g.ids.VerifyIDToken(raw)
	if err != nil {
		return models.Profile{}, fmt.Errorf("auth: verify id token: %w", err)
	}
	return profile, nil
}
