// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/identra-io/identra/internal/platform/apperr"
	"github.com/identra-io/identra/internal/platform/constants"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleProvider implements [Provider] for Google OpenID Connect.
type GoogleProvider struct {
	config *oauth2.Config
}

// NewGoogleProvider wires a Google provider from client credentials.
// redirectURL must match the URI registered in the Google console.
func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
	}
}

// Name returns the provider key.
func (provider *GoogleProvider) Name() string {
	return "google"
}

// AuthorizationURL builds the Google consent URL carrying the given state.
func (provider *GoogleProvider) AuthorizationURL(state string) string {
	return provider.config.AuthCodeURL(state)
}

/*
Exchange trades an authorization code for the Google identity.

Description: Performs the code-for-token exchange and then fetches the
userinfo endpoint. Both calls share one bounded deadline so a slow provider
cannot hold the request hostage.

Parameters:
  - ctx: context.Context
  - code: string

Returns:
  - *Identity: Subject, email, display name, avatar
  - error: apperr.Unauthorized on a rejected code, wrapped errors otherwise
*/
func (provider *GoogleProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.ProviderExchangeTimeout)
	defer cancel()

	token, err := provider.config.Exchange(ctx, code)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid OAuth authorization code")
	}

	payload, err := fetchProviderJSON(ctx, provider.config.Client(ctx, token), googleUserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("google_userinfo_failed: %w", err)
	}

	var info struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.Unmarshal(payload, &info); err != nil {
		return nil, fmt.Errorf("google_userinfo_decode_failed: %w", err)
	}

	if info.ID == "" || info.Email == "" {
		return nil, apperr.Unauthorized("OAuth provider returned an incomplete identity")
	}

	return &Identity{
		ProviderID: info.ID,
		Email:      info.Email,
		Name:       info.Name,
		AvatarURL:  info.Picture,
	}, nil
}

// fetchProviderJSON performs an authenticated GET and returns the body on 200.
func fetchProviderJSON(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Accept", "application/json")

	response, err := client.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider_status_%d", response.StatusCode)
	}

	return io.ReadAll(io.LimitReader(response.Body, 1<<20))
}
