// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

package oauth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/identra-io/identra/internal/auth"
	"github.com/identra-io/identra/internal/platform/apperr"
	"github.com/identra-io/identra/internal/platform/sec"
	"github.com/identra-io/identra/internal/secevent"
	"github.com/identra-io/identra/pkg/uuidv7"
)

// # Definitions & Constructors

// Service orchestrates the federated login flow across providers, the state
// store, provider links, and the core authentication engine.
type Service struct {
	providers map[string]Provider
	states    StateStore
	accounts  AccountRepository
	users     auth.UserRepository
	sessions  *auth.Service
	events    *secevent.Emitter
}

// NewService constructs an OAuth [Service]. Providers are keyed by their
// Name(); a provider missing from the map is simply not offered.
func NewService(
	providers []Provider,
	states StateStore,
	accounts AccountRepository,
	users auth.UserRepository,
	sessions *auth.Service,
	events *secevent.Emitter,
) *Service {
	byName := make(map[string]Provider, len(providers))
	for _, provider := range providers {
		byName[provider.Name()] = provider
	}

	return &Service{
		providers: byName,
		states:    states,
		accounts:  accounts,
		users:     users,
		sessions:  sessions,
		events:    events,
	}
}

// CallbackResult is the outcome of a completed provider callback.
type CallbackResult struct {
	User      *auth.User      `json:"user"`
	Tokens    *auth.TokenPair `json:"tokens"`
	IsNewUser bool            `json:"isNewUser"`
}

// titleCaser turns email local-parts into presentable names for accounts the
// provider gives us no display name for.
var titleCaser = cases.Title(language.Und)

// # Authorization

/*
AuthorizationURL starts the flow for one provider.

Description: Mints a single-use state nonce bound to the provider and embeds
it in the consent URL.

Parameters:
  - ctx: context.Context
  - providerName: string

Returns:
  - string: The provider consent URL
  - error: apperr.NotFound for an unknown or disabled provider
*/
func (service *Service) AuthorizationURL(ctx context.Context, providerName string) (string, error) {
	provider, ok := service.providers[providerName]
	if !ok {
		return "", apperr.NotFound("OAuth provider")
	}

	state, err := service.states.Issue(ctx, providerName)
	if err != nil {
		return "", fmt.Errorf("oauth_service_state_issue_failed: %w", err)
	}

	return provider.AuthorizationURL(state), nil
}

// # Callback

/*
Callback completes the flow after the provider redirects back.

Description: Consumes the state nonce (single use, provider-bound), exchanges
the code, and resolves the external identity to a local account:

  - An existing link logs that user in.
  - An email match links the provider to the existing account, but only when
    the local email is verified, so an attacker cannot ride an unverified
    registration into someone's provider identity.
  - No match provisions a new account with no password; the provider has
    already verified the address, so the account starts verified.

Parameters:
  - ctx: context.Context
  - providerName: string
  - state: string
  - code: string
  - meta: auth.RequestMeta

Returns:
  - *CallbackResult: User, token pair, and whether the account is new
  - error: apperr.Unauthorized on state or exchange failures
*/
func (service *Service) Callback(ctx context.Context, providerName, state, code string, meta auth.RequestMeta) (*CallbackResult, error) {
	provider, ok := service.providers[providerName]
	if !ok {
		return nil, apperr.NotFound("OAuth provider")
	}

	record, err := service.states.Consume(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("oauth_service_state_consume_failed: %w", err)
	}
	if record == nil || record.Provider != providerName {
		service.emitFailure(ctx, providerName, "", "state rejected", meta)
		return nil, apperr.Unauthorized("Invalid or expired OAuth state parameter")
	}

	identity, err := provider.Exchange(ctx, code)
	if err != nil {
		service.emitFailure(ctx, providerName, "", "code exchange failed", meta)
		return nil, err
	}

	user, isNewUser, err := service.resolveUser(ctx, provider.Name(), identity)
	if err != nil {
		service.emitFailure(ctx, providerName, identity.Email, "identity resolution failed", meta)
		return nil, err
	}

	tokens, _, err := service.sessions.Issue(ctx, user, providerName, meta)
	if err != nil {
		return nil, err
	}

	service.events.Emit(ctx, secevent.Event{
		Type:      secevent.OAuthLoginSuccess,
		UserID:    user.ID,
		Email:     user.Email,
		Provider:  providerName,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	})

	return &CallbackResult{User: user, Tokens: tokens, IsNewUser: isNewUser}, nil
}

// resolveUser maps a provider identity to a local user, creating the link
// and, if needed, the account.
func (service *Service) resolveUser(ctx context.Context, providerName string, identity *Identity) (*auth.User, bool, error) {
	account, err := service.accounts.FindByProviderID(ctx, providerName, identity.ProviderID)
	if err != nil && !isNotFound(err) {
		return nil, false, err
	}

	if account != nil {
		user, err := service.users.FindByID(ctx, account.UserID)
		if err != nil {
			return nil, false, err
		}
		if user.IsSuspended || !user.IsActive {
			return nil, false, apperr.Unauthorized("Account is not available")
		}
		return user, false, nil
	}

	user, err := service.users.FindByEmail(ctx, identity.Email)
	if err != nil && !isNotFound(err) {
		return nil, false, err
	}

	isNewUser := false
	if user == nil {
		user, err = service.provisionUser(ctx, identity)
		if err != nil {
			return nil, false, err
		}
		isNewUser = true
	} else {
		if user.IsSuspended || !user.IsActive {
			return nil, false, apperr.Unauthorized("Account is not available")
		}
		if !user.EmailVerified {
			return nil, false, apperr.BadRequest("Verify your email before signing in with this provider")
		}
	}

	link := &Account{
		ID:         uuidv7.New(),
		UserID:     user.ID,
		Provider:   providerName,
		ProviderID: identity.ProviderID,
		Email:      identity.Email,
		AvatarURL:  identity.AvatarURL,
		CreatedAt:  time.Now(),
	}
	if err := service.accounts.Create(ctx, link); err != nil {
		return nil, false, err
	}

	return user, isNewUser, nil
}

// provisionUser creates a passwordless local account from a provider identity.
func (service *Service) provisionUser(ctx context.Context, identity *Identity) (*auth.User, error) {
	firstName, lastName := splitName(identity.Name, identity.Email)

	now := time.Now()
	user := &auth.User{
		ID:            uuidv7.New(),
		Email:         strings.ToLower(identity.Email),
		PasswordHash:  nil,
		FirstName:     firstName,
		LastName:      lastName,
		Role:          sec.RoleUser,
		EmailVerified: true,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := service.users.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// splitName derives first/last names from a provider display name, falling
// back to the email local part. A single-token name fills both fields.
func splitName(displayName, email string) (string, string) {
	fields := strings.Fields(displayName)

	switch len(fields) {
	case 0:
		local, _, _ := strings.Cut(email, "@")
		name := titleCaser.String(local)
		return name, name
	case 1:
		return fields[0], fields[0]
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}

// # Link Management

/*
Linked returns the provider links held by a user.

Parameters:
  - ctx: context.Context
  - userID: string

Returns:
  - []Account: Links, oldest first (never nil)
  - error: Storage failures
*/
func (service *Service) Linked(ctx context.Context, userID string) ([]Account, error) {
	accounts, err := service.accounts.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []Account{}
	}
	return accounts, nil
}

/*
Unlink removes a provider link from a user.

Description: Refuses to remove the last remaining sign-in method: a user with
no password must keep at least one provider link or they lock themselves out.

Parameters:
  - ctx: context.Context
  - userID: string
  - providerName: string

Returns:
  - error: apperr.BadRequest on the last-method guard, apperr.NotFound when
    the link does not exist
*/
func (service *Service) Unlink(ctx context.Context, userID, providerName string) error {
	user, err := service.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if !user.HasPassword() {
		count, err := service.accounts.CountForUser(ctx, userID)
		if err != nil {
			return err
		}
		if count <= 1 {
			return apperr.BadRequest("Cannot unlink the only sign-in method. Set a password first.")
		}
	}

	deleted, err := service.accounts.Delete(ctx, userID, providerName)
	if err != nil {
		return err
	}
	if !deleted {
		return apperr.NotFound("OAuth account")
	}

	return nil
}

// emitFailure records a failed federated login attempt.
func (service *Service) emitFailure(ctx context.Context, providerName, email, reason string, meta auth.RequestMeta) {
	service.events.Emit(ctx, secevent.Event{
		Type:      secevent.OAuthLoginFailed,
		Email:     email,
		Provider:  providerName,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Error:     reason,
	})
}

// isNotFound reports whether err is the application-level not-found error.
func isNotFound(err error) bool {
	appError := apperr.As(err)
	return appError != nil && appError.HTTPStatus == http.StatusNotFound
}
