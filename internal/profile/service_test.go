// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

package profile_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/identra-io/identra/internal/platform/apperr"
	"github.com/identra-io/identra/internal/profile"
)

type memoryProfiles struct {
	mu   sync.Mutex
	rows map[string]profile.UserProfile
}

func newMemoryProfiles() *memoryProfiles {
	return &memoryProfiles{rows: map[string]profile.UserProfile{}}
}

func (repository *memoryProfiles) FindByUserID(_ context.Context, userID string) (*profile.UserProfile, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	row, ok := repository.rows[userID]
	if !ok {
		return nil, apperr.NotFound("Profile")
	}
	return &row, nil
}

func (repository *memoryProfiles) Upsert(_ context.Context, userProfile *profile.UserProfile) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	repository.rows[userProfile.UserID] = *userProfile
	return nil
}

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []string
}

func (invalidator *recordingInvalidator) InvalidateUser(_ context.Context, userID string) {
	invalidator.mu.Lock()
	defer invalidator.mu.Unlock()
	invalidator.ids = append(invalidator.ids, userID)
}

func newService(repository profile.Repository, invalidator profile.CacheInvalidator) *profile.Service {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	return profile.NewService(repository, invalidator, quiet)
}

func TestService_Get_LazyDefault(t *testing.T) {
	service := newService(newMemoryProfiles(), &recordingInvalidator{})

	result, err := service.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", result.UserID)
	assert.Empty(t, result.DisplayName)
	assert.False(t, result.UpdatedAt.IsZero())
}

func TestService_Update_OverlaysOnlyProvidedFields(t *testing.T) {
	repository := newMemoryProfiles()
	invalidator := &recordingInvalidator{}
	service := newService(repository, invalidator)
	ctx := context.Background()

	displayName := "Ada"
	bio := "Analyst and programmer."
	_, err := service.Update(ctx, "user-1", profile.UpdateInput{
		DisplayName: &displayName,
		Bio:         &bio,
	})
	require.NoError(t, err)

	// A follow-up partial write must not wipe the untouched fields.
	website := "https://ada.example"
	result, err := service.Update(ctx, "user-1", profile.UpdateInput{Website: &website})
	require.NoError(t, err)

	assert.Equal(t, "Ada", result.DisplayName)
	assert.Equal(t, "Analyst and programmer.", result.Bio)
	assert.Equal(t, "https://ada.example", result.Website)

	stored, err := service.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, *result, *stored)

	assert.Equal(t, []string{"user-1", "user-1"}, invalidator.ids,
		"every write invalidates the identity cache")
}
