// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

package middleware

import (
	"context"
	"net/http"

	"github.com/identra-io/identra/internal/platform/apperr"
	"github.com/identra-io/identra/internal/platform/constants"
	"github.com/identra-io/identra/internal/platform/respond"
)

// CSRFValidator checks whether a presented CSRF token is currently live.
type CSRFValidator interface {
	Validate(ctx context.Context, token string) (bool, error)
}

// CSRF enforces the double-submit token check on every state-changing request.
//
// # Flow
//  1. Safe methods (GET, HEAD, OPTIONS) pass through untouched.
//  2. Mutating requests must carry a live token in the X-CSRF-Token header.
//  3. A missing or unknown token aborts with HTTP 403 Forbidden.
//
// Validation is read-only: the token stays live until its TTL expires, so a
// single page session can issue many mutating requests with one token.
func CSRF(validator CSRFValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// ── 1. Safe Methods ───────────────────────────────────────────────
			switch request.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(writer, request)
				return
			}

			// ── 2. Token Presence ─────────────────────────────────────────────
			token := request.Header.Get(constants.HeaderCSRFToken)
			if token == "" {
				respond.Error(writer, request, apperr.Forbidden("Missing CSRF token"))
				return
			}

			// ── 3. Token Liveness ─────────────────────────────────────────────
			valid, err := validator.Validate(request.Context(), token)
			if err != nil {
				respond.Error(writer, request, apperr.Internal(err))
				return
			}
			if !valid {
				respond.Error(writer, request, apperr.Forbidden("Invalid or expired CSRF token"))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}
