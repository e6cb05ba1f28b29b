// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

/*
Package oauth implements federated login against external identity providers.

# Flow

 1. The client asks for an authorization URL; a one-time state nonce is
    minted and bound to the provider in Redis.
 2. The provider redirects back with a code; the state is consumed (single
    use) and the code exchanged for the provider identity.
 3. The identity is resolved against local accounts: returning link, email
    match, or brand-new user.

Providers are pluggable behind the [Provider] interface; Google and GitHub
ship in this package.
*/

package oauth

import "context"

// Identity is the provider-agnostic view of an external account, produced by
// a successful code exchange.
type Identity struct {
	// ProviderID is the provider's stable subject identifier.
	ProviderID string

	// Email as asserted by the provider.
	Email string

	// Name is the display name, when the provider exposes one.
	Name string

	// AvatarURL is the profile picture, when available.
	AvatarURL string
}

// Provider abstracts one external identity provider.
type Provider interface {
	// Name returns the provider key used in routes and stored links.
	Name() string

	// AuthorizationURL builds the redirect target carrying the given state.
	AuthorizationURL(state string) string

	// Exchange trades an authorization code for the external identity.
	Exchange(ctx context.Context, code string) (*Identity, error)
}
