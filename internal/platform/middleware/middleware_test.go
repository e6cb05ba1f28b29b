// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/identra-io/identra/internal/platform/middleware"
)

// corsEnv satisfies middleware.CORSConfig with a fixed environment.
type corsEnv bool

func (env corsEnv) IsDevelopment() bool { return bool(env) }

func runCORS(t *testing.T, dev bool, origin, method string) *httptest.ResponseRecorder {
	t.Helper()

	handler := middleware.CORS(corsEnv(dev), "https://app.identra.io", "")(
		http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
			writer.WriteHeader(http.StatusOK)
		}),
	)

	request := httptest.NewRequest(method, "/api/v1/auth/login", nil)
	if origin != "" {
		request.Header.Set("Origin", origin)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

/*
TestCORS_AllowedOrigin checks the full header set for a production request
from the configured frontend, including that the CSRF token header is
readable by browser clients.
*/
func TestCORS_AllowedOrigin(t *testing.T) {
	recorder := runCORS(t, false, "https://app.identra.io", http.MethodGet)

	header := recorder.Header()
	assert.Equal(t, "https://app.identra.io", header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, header.Get("Access-Control-Expose-Headers"), "X-CSRF-Token")
	assert.Contains(t, header.Get("Access-Control-Allow-Headers"), "X-CSRF-Token")
	assert.Equal(t, "true", header.Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, http.StatusOK, recorder.Code)
}

/*
TestCORS_DisallowedOrigin checks that an unknown origin in production gets
no CORS headers at all.
*/
func TestCORS_DisallowedOrigin(t *testing.T) {
	recorder := runCORS(t, false, "https://evil.example", http.MethodGet)

	assert.Empty(t, recorder.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, recorder.Header().Get("Access-Control-Expose-Headers"))
}

/*
TestCORS_DevelopmentIsOpen checks that development mode accepts any origin.
*/
func TestCORS_DevelopmentIsOpen(t *testing.T) {
	recorder := runCORS(t, true, "http://localhost:5173", http.MethodGet)

	assert.Equal(t, "http://localhost:5173", recorder.Header().Get("Access-Control-Allow-Origin"))
}

/*
TestCORS_Preflight checks that OPTIONS short-circuits with 204.
*/
func TestCORS_Preflight(t *testing.T) {
	recorder := runCORS(t, false, "https://app.identra.io", http.MethodOptions)

	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Equal(t, "https://app.identra.io", recorder.Header().Get("Access-Control-Allow-Origin"))
}
