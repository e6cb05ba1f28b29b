// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

package profile

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/identra-io/identra/internal/platform/middleware"
	requestutil "github.com/identra-io/identra/internal/platform/request"
	"github.com/identra-io/identra/internal/platform/respond"
	"github.com/identra-io/identra/internal/platform/validate"
)

// Handler implements the profile HTTP endpoints.
type Handler struct {
	profileService *Service
}

// NewHandler constructs a new [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{profileService: service}
}

// Routes returns a [chi.Router] configured with profile routes.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)

	router.Get("/", handler.get)
	router.Put("/", handler.update)

	return router
}

type updateRequest struct {
	DisplayName *string `json:"displayName,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	AvatarURL   *string `json:"avatarUrl,omitempty"`
	Website     *string `json:"website,omitempty"`
	Location    *string `json:"location,omitempty"`
}

/*
Get returns the authenticated user's profile.

GET /api/v1/profile

Response:
  - 200: {profile}: Stored profile, or an empty default
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) get(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.profileService.Get(request.Context(), claims.UserID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{"profile": result})
}

/*
Update applies partial changes to the authenticated user's profile.

PUT /api/v1/profile

Request:
  - Body: updateRequest (all fields optional)

Response:
  - 200: {profile}: The updated profile
  - 400: ErrInvalidJSON: Bad input or validation failure
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) update(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input updateRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	v := &validate.Validator{}
	if input.DisplayName != nil {
		v.MaxLen("displayName", *input.DisplayName, 100)
	}
	if input.Bio != nil {
		v.MaxLen("bio", *input.Bio, 500)
	}
	if input.AvatarURL != nil {
		v.MaxLen("avatarUrl", *input.AvatarURL, 500)
	}
	if input.Website != nil {
		v.MaxLen("website", *input.Website, 200)
	}
	if input.Location != nil {
		v.MaxLen("location", *input.Location, 100)
	}

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.profileService.Update(request.Context(), claims.UserID, UpdateInput{
		DisplayName: input.DisplayName,
		Bio:         input.Bio,
		AvatarURL:   input.AvatarURL,
		Website:     input.Website,
		Location:    input.Location,
	})

	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{"profile": result})
}
