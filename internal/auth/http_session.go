// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/identra-io/identra/internal/platform/middleware"
	requestutil "github.com/identra-io/identra/internal/platform/request"
	"github.com/identra-io/identra/internal/platform/respond"
)

// SessionHandler implements the session management HTTP endpoints.
//
// Every route requires an authenticated bearer; the session identifier inside
// the access token claims marks the current device.
type SessionHandler struct {
	authService *Service
}

// NewSessionHandler constructs a new [SessionHandler].
func NewSessionHandler(service *Service) *SessionHandler {
	return &SessionHandler{authService: service}
}

// Routes returns a [chi.Router] configured with session management routes.
func (handler *SessionHandler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)

	router.Get("/", handler.list)
	router.Delete("/other", handler.revokeOthers)
	router.Delete("/{id}", handler.revoke)

	return router
}

/*
List returns every active session of the authenticated user.

GET /api/v1/sessions

Description: Each entry is enriched with device metadata where available, and
the session matching the caller's access token is flagged as current.

Response:
  - 200: {sessions}: Active sessions, newest first
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *SessionHandler) list(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	sessions, err := handler.authService.Sessions(request.Context(), claims.UserID, claims.SessionID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{"sessions": sessions})
}

/*
RevokeOthers terminates every session of the user except the current one.

DELETE /api/v1/sessions/other

Response:
  - 200: Success: Other sessions revoked
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *SessionHandler) revokeOthers(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.RevokeOtherSessions(request.Context(), claims.UserID, claims.SessionID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OKMessage(writer, "Other sessions revoked")
}

/*
Revoke terminates a single session owned by the authenticated user.

DELETE /api/v1/sessions/{id}

Description: Ownership is enforced in the delete predicate, so a foreign
session ID yields the same 404 as a nonexistent one.

Response:
  - 200: Success: Session revoked
  - 404: ErrNotFound: No such session for this user
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *SessionHandler) revoke(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	sessionID := requestutil.Param(request, "id")

	if err := handler.authService.RevokeSession(request.Context(), claims.UserID, sessionID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OKMessage(writer, "Session revoked")
}
