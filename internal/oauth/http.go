// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

package oauth

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/identra-io/identra/internal/auth"
	"github.com/identra-io/identra/internal/platform/apperr"
	"github.com/identra-io/identra/internal/platform/middleware"
	requestutil "github.com/identra-io/identra/internal/platform/request"
	"github.com/identra-io/identra/internal/platform/respond"
)

// Handler implements the federated login HTTP endpoints.
type Handler struct {
	oauthService *Service
	frontendURL  string
}

// NewHandler constructs a new [Handler]. frontendURL is where the browser is
// sent after a provider callback.
func NewHandler(service *Service, frontendURL string) *Handler {
	return &Handler{oauthService: service, frontendURL: frontendURL}
}

// Routes returns a [chi.Router] configured with OAuth routes.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints (browser-driven)
	router.Get("/{provider}", handler.authorize)
	router.Get("/{provider}/callback", handler.callback)

	// Protected endpoints (link management)
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/linked", handler.linked)
		r.Delete("/{provider}", handler.unlink)
	})

	return router
}

/*
Authorize starts the federated login flow for a provider.

GET /api/v1/auth/oauth/{provider}

Description: Returns the provider consent URL carrying a freshly minted
one-time state; the client navigates the browser there.

Response:
  - 200: {authUrl}
  - 404: ErrNotFound: Unknown or disabled provider
*/
func (handler *Handler) authorize(writer http.ResponseWriter, request *http.Request) {
	providerName := requestutil.Param(request, "provider")

	authURL, err := handler.oauthService.AuthorizationURL(request.Context(), providerName)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{"authUrl": authURL})
}

/*
Callback completes the federated login flow.

GET /api/v1/auth/oauth/{provider}/callback?state=...&code=...

Description: This endpoint is hit by the provider's redirect, so the outcome
travels to the frontend as a browser redirect rather than a JSON body:

	success: {frontend}/auth/callback?accessToken=...&refreshToken=...&isNewUser=...
	failure: {frontend}/auth/callback?error=...

Response:
  - 302: Redirect to the frontend callback page
*/
func (handler *Handler) callback(writer http.ResponseWriter, request *http.Request) {
	providerName := requestutil.Param(request, "provider")
	query := request.URL.Query()

	result, err := handler.oauthService.Callback(
		request.Context(),
		providerName,
		query.Get("state"),
		query.Get("code"),
		auth.RequestMeta{IP: middleware.RealIP(request), UserAgent: request.UserAgent()},
	)

	target, buildErr := url.Parse(handler.frontendURL + "/auth/callback")
	if buildErr != nil {
		respond.Error(writer, request, apperr.Internal(buildErr))
		return
	}

	values := url.Values{}
	if err != nil {
		message := "Authentication failed"
		if appError := apperr.As(err); appError != nil {
			message = appError.Message
		}
		values.Set("error", message)
	} else {
		values.Set("accessToken", result.Tokens.AccessToken)
		values.Set("refreshToken", result.Tokens.RefreshToken)
		values.Set("isNewUser", strconv.FormatBool(result.IsNewUser))
	}
	target.RawQuery = values.Encode()

	http.Redirect(writer, request, target.String(), http.StatusFound)
}

/*
Linked returns the authenticated user's provider links.

GET /api/v1/auth/oauth/linked

Response:
  - 200: {providers}: Linked accounts, oldest first
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) linked(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	accounts, err := handler.oauthService.Linked(request.Context(), claims.UserID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{"providers": accounts})
}

/*
Unlink removes a provider link from the authenticated user.

DELETE /api/v1/auth/oauth/{provider}

Response:
  - 200: Success: Provider unlinked
  - 400: ErrBadRequest: Link is the only remaining sign-in method
  - 404: ErrNotFound: No such link
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) unlink(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	providerName := requestutil.Param(request, "provider")

	if err := handler.oauthService.Unlink(request.Context(), claims.UserID, providerName); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OKMessage(writer, "Provider unlinked")
}
