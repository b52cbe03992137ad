package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	cfg "labeladmin/src/configuration"
)

// OIDCVerifier exchanges the credentials for tokens with the resource owner
// password grant and accepts them only if the returned ID token verifies.
type OIDCVerifier struct {
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
	client   *http.Client
}

// NewOIDCVerifier discovers the provider at config.Host.
func NewOIDCVerifier(ctx context.Context, config cfg.AuthProperties) (*OIDCVerifier, error) {
	client := &http.Client{Timeout: config.ReadTimeout}
	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, client), config.Host)
	if err != nil {
		return nil, fmt.Errorf("auth: oidc provider %s: %w", config.Host, err)
	}
	oauthConfig := &oauth2.Config{
		ClientID:     config.ID,
		ClientSecret: config.Secret,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile"},
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: config.ID})
	return newOIDCVerifier(oauthConfig, verifier, client), nil
}

func newOIDCVerifier(config *oauth2.Config, verifier *oidc.IDTokenVerifier, client *http.Client) *OIDCVerifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &OIDCVerifier{config: config, verifier: verifier, client: client}
}

func (o *OIDCVerifier) Verify(ctx context.Context, username, password string) error {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, o.client)
	token, err := o.config.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) && rejected(rErr) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("auth: token exchange: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return errors.New("auth: no id_token in token response")
	}
	if _, err := o.verifier.Verify(ctx, rawIDToken); err != nil {
		return fmt.Errorf("auth: verify id token: %w", err)
	}
	return nil
}

func rejected(err *oauth2.RetrieveError) bool {
	if err.ErrorCode == "invalid_grant" {
		return true
	}
	return err.Response != nil && err.Response.StatusCode == http.StatusUnauthorized
}
