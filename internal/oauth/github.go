// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/identra-io/identra/internal/platform/apperr"
	"github.com/identra-io/identra/internal/platform/constants"
)

const (
	githubUserURL   = "https://api.github.com/user"
	githubEmailsURL = "https://api.github.com/user/emails"
)

// GitHubProvider implements [Provider] for GitHub OAuth apps.
type GitHubProvider struct {
	config *oauth2.Config
}

// NewGitHubProvider wires a GitHub provider from client credentials.
func NewGitHubProvider(clientID, clientSecret, redirectURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
	}
}

// Name returns the provider key.
func (provider *GitHubProvider) Name() string {
	return "github"
}

// AuthorizationURL builds the GitHub consent URL carrying the given state.
func (provider *GitHubProvider) AuthorizationURL(state string) string {
	return provider.config.AuthCodeURL(state)
}

/*
Exchange trades an authorization code for the GitHub identity.

Description: GitHub may keep the email off the /user payload when the user
hides it, so a second call to /user/emails resolves the primary verified
address. The display name falls back to the login handle.

Parameters:
  - ctx: context.Context
  - code: string

Returns:
  - *Identity: Subject, email, display name, avatar
  - error: apperr.Unauthorized on a rejected code or missing email
*/
func (provider *GitHubProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.ProviderExchangeTimeout)
	defer cancel()

	token, err := provider.config.Exchange(ctx, code)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid OAuth authorization code")
	}

	client := provider.config.Client(ctx, token)

	payload, err := fetchProviderJSON(ctx, client, githubUserURL)
	if err != nil {
		return nil, fmt.Errorf("github_user_failed: %w", err)
	}

	var user struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.Unmarshal(payload, &user); err != nil {
		return nil, fmt.Errorf("github_user_decode_failed: %w", err)
	}

	email := user.Email
	if email == "" {
		email, err = provider.primaryEmail(ctx, client)
		if err != nil {
			return nil, err
		}
	}

	if user.ID == 0 || email == "" {
		return nil, apperr.Unauthorized("OAuth provider returned an incomplete identity")
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}

	return &Identity{
		ProviderID: strconv.FormatInt(user.ID, 10),
		Email:      email,
		Name:       name,
		AvatarURL:  user.AvatarURL,
	}, nil
}

// primaryEmail resolves the primary verified address from /user/emails.
func (provider *GitHubProvider) primaryEmail(ctx context.Context, client *http.Client) (string, error) {
	payload, err := fetchProviderJSON(ctx, client, githubEmailsURL)
	if err != nil {
		return "", fmt.Errorf("github_emails_failed: %w", err)
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := json.Unmarshal(payload, &emails); err != nil {
		return "", fmt.Errorf("github_emails_decode_failed: %w", err)
	}

	for _, entry := range emails {
		if entry.Primary && entry.Verified {
			return entry.Email, nil
		}
	}
	for _, entry := range emails {
		if entry.Verified {
			return entry.Email, nil
		}
	}

	return "", apperr.Unauthorized("OAuth provider account has no verified email")
}
