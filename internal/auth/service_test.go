// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

package auth_test

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/identra-io/identra/internal/auth"
	"github.com/identra-io/identra/internal/mailer"
	"github.com/identra-io/identra/internal/platform/apperr"
	"github.com/identra-io/identra/internal/platform/sec"
	"github.com/identra-io/identra/internal/secevent"
)

// # In-Memory Repositories
//
// The durable stores are faked in memory; the volatile stores run against
// miniredis through the real Redis implementations.

type memoryUsers struct {
	mu   sync.Mutex
	byID map[string]*auth.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: map[string]*auth.User{}}
}

func (m *memoryUsers) Create(_ context.Context, user *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if strings.EqualFold(existing.Email, user.Email) {
			return apperr.Conflict("Resource already exists")
		}
	}
	clone := *user
	m.byID[user.ID] = &clone
	return nil
}

func (m *memoryUsers) FindByID(_ context.Context, id string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byID[id]
	if !ok {
		return nil, apperr.NotFound("User")
	}
	clone := *user
	return &clone, nil
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.byID {
		if strings.EqualFold(user.Email, email) {
			clone := *user
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (m *memoryUsers) UpdatePassword(_ context.Context, userID, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.byID[userID]; ok {
		hash := newHash
		user.PasswordHash = &hash
	}
	return nil
}

func (m *memoryUsers) MarkEmailVerified(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.byID[userID]; ok {
		user.EmailVerified = true
	}
	return nil
}

// mutate edits the stored record directly, bypassing the repository contract.
func (m *memoryUsers) mutate(userID string, fn func(*auth.User)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.byID[userID]; ok {
		fn(user)
	}
}

type memoryVerifications struct {
	mu   sync.Mutex
	rows map[string]*auth.EmailVerification // keyed by ID
}

func newMemoryVerifications() *memoryVerifications {
	return &memoryVerifications{rows: map[string]*auth.EmailVerification{}}
}

func (m *memoryVerifications) Create(_ context.Context, verification *auth.EmailVerification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if verification.CreatedAt.IsZero() {
		verification.CreatedAt = time.Now()
	}
	clone := *verification
	m.rows[verification.ID] = &clone
	return nil
}

func (m *memoryVerifications) FindByToken(_ context.Context, token string) (*auth.EmailVerification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Token == token {
			clone := *row
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("Verification token")
}

func (m *memoryVerifications) MarkVerified(_ context.Context, id string, verifiedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[id]; ok {
		row.Verified = true
		row.VerifiedAt = &verifiedAt
	}
	return nil
}

func (m *memoryVerifications) tokens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, row := range m.rows {
		out = append(out, row.Token)
	}
	sort.Strings(out)
	return out
}

func (m *memoryVerifications) age(token string, createdAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Token == token {
			row.CreatedAt = createdAt
		}
	}
}

type memoryResets struct {
	mu   sync.Mutex
	rows map[string]*auth.PasswordReset // keyed by ID
}

func newMemoryResets() *memoryResets {
	return &memoryResets{rows: map[string]*auth.PasswordReset{}}
}

func (m *memoryResets) Create(_ context.Context, reset *auth.PasswordReset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *reset
	m.rows[reset.ID] = &clone
	return nil
}

func (m *memoryResets) FindByToken(_ context.Context, token string) (*auth.PasswordReset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Token == token {
			clone := *row
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("Reset token")
}

func (m *memoryResets) MarkUsed(_ context.Context, id string, usedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[id]; ok {
		row.Used = true
		row.UsedAt = &usedAt
	}
	return nil
}

func (m *memoryResets) DeleteExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for id, row := range m.rows {
		if !row.ExpiresAt.After(time.Now()) {
			delete(m.rows, id)
			removed++
		}
	}
	return removed, nil
}

func (m *memoryResets) tokens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, row := range m.rows {
		out = append(out, row.Token)
	}
	sort.Strings(out)
	return out
}

type memorySessions struct {
	mu   sync.Mutex
	rows map[string]*auth.Session // keyed by ID
}

func newMemorySessions() *memorySessions {
	return &memorySessions{rows: map[string]*auth.Session{}}
}

func (m *memorySessions) Create(_ context.Context, session *auth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Token == session.Token {
			return apperr.Conflict("Resource already exists")
		}
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	clone := *session
	m.rows[session.ID] = &clone
	return nil
}

func (m *memorySessions) FindByToken(_ context.Context, token string) (*auth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Token == token {
			clone := *row
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("Session")
}

func (m *memorySessions) DeleteByToken(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, row := range m.rows {
		if row.Token == token {
			delete(m.rows, id)
			return true, nil
		}
	}
	return false, nil
}

func (m *memorySessions) DeleteOwned(_ context.Context, userID, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[sessionID]; ok && row.UserID == userID {
		delete(m.rows, sessionID)
		return true, nil
	}
	return false, nil
}

func (m *memorySessions) DeleteAllForUser(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, row := range m.rows {
		if row.UserID == userID {
			delete(m.rows, id)
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memorySessions) DeleteOthers(_ context.Context, userID, keepSessionID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, row := range m.rows {
		if row.UserID == userID && id != keepSessionID {
			delete(m.rows, id)
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memorySessions) ListForUser(_ context.Context, userID string) ([]auth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []auth.Session
	for _, row := range m.rows {
		if row.UserID == userID {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memorySessions) DeleteExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for id, row := range m.rows {
		if !row.ExpiresAt.After(time.Now()) {
			delete(m.rows, id)
			removed++
		}
	}
	return removed, nil
}

func (m *memorySessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// expire backdates a session row so the service sees it as dead.
func (m *memorySessions) expire(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Token == token {
			row.ExpiresAt = time.Now().Add(-time.Minute)
		}
	}
}

// # Fixture

type fixture struct {
	service       *auth.Service
	users         *memoryUsers
	verifications *memoryVerifications
	resets        *memoryResets
	sessions      *memorySessions
	redis         *miniredis.Miniredis
	tokens        *sec.TokenService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tokens, err := sec.NewTokenService(
		"access-secret-for-tests", "refresh-secret-for-tests",
		15*time.Minute, time.Hour,
		"identra", "identra-api",
	)
	require.NoError(t, err)

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		users:         newMemoryUsers(),
		verifications: newMemoryVerifications(),
		resets:        newMemoryResets(),
		sessions:      newMemorySessions(),
		redis:         server,
		tokens:        tokens,
	}

	f.service = auth.NewService(
		f.users,
		f.verifications,
		f.resets,
		f.sessions,
		auth.NewLockoutStore(client),
		auth.NewFamilyStore(client),
		auth.NewMetaStore(client),
		auth.NewUserCache(client),
		tokens,
		mailer.NewNoopSender(quiet),
		secevent.NewEmitter(quiet),
		"http://localhost:3000",
	)

	return f
}

var testMeta = auth.RequestMeta{IP: "203.0.113.7", UserAgent: "go-test"}

func (f *fixture) register(t *testing.T, email, password string) *auth.AuthResult {
	t.Helper()
	result, err := f.service.Register(context.Background(), auth.RegisterInput{
		Email:     email,
		Password:  password,
		FirstName: "Ada",
		LastName:  "Lovelace",
	}, testMeta)
	require.NoError(t, err)
	return result
}

// # Registration

func TestRegister_Success(t *testing.T) {
	f := newFixture(t)

	result := f.register(t, "ada@example.com", "Str0ng!pass")

	assert.Equal(t, "ada@example.com", result.User.Email)
	assert.False(t, result.User.EmailVerified, "new accounts start unverified")
	assert.True(t, result.User.IsActive)
	assert.NotEmpty(t, result.Tokens.AccessToken)
	assert.NotEmpty(t, result.Tokens.RefreshToken)

	assert.Len(t, f.verifications.tokens(), 1, "a verification token is persisted")
	assert.Equal(t, 1, f.sessions.count(), "registration opens a session")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada@example.com", "Str0ng!pass")

	_, err := f.service.Register(context.Background(), auth.RegisterInput{
		Email:     "ADA@example.com",
		Password:  "Str0ng!pass",
		FirstName: "Ada",
		LastName:  "Lovelace",
	}, testMeta)

	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "CONFLICT", ae.Code)
	assert.Equal(t, "Email is already registered", ae.Message)
}

func TestRegister_LongEmail(t *testing.T) {
	f := newFixture(t)

	// The refresh token embeds the email claim, so a long (but valid) address
	// produces a token well past 512 bytes. Issuance, storage, and rotation
	// must handle it without truncation.
	email := strings.Repeat("a", 64) + "@" + strings.Repeat("b", 59) + ".example.com"
	result := f.register(t, email, "Str0ng!pass")

	assert.Equal(t, email, result.User.Email)
	assert.Greater(t, len(result.Tokens.RefreshToken), 512)

	rotated, err := f.service.Refresh(context.Background(), result.Tokens.RefreshToken, testMeta)
	require.NoError(t, err)
	assert.Equal(t, 1, f.sessions.count())
	assert.Greater(t, len(rotated.Tokens.RefreshToken), 512)
}

// # Login & Lockout

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada@example.com", "Str0ng!pass")

	result, err := f.service.Login(context.Background(), auth.LoginInput{
		Email:    "ada@example.com",
		Password: "Str0ng!pass",
	}, testMeta)

	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", result.User.Email)
	assert.NotEmpty(t, result.Tokens.RefreshToken)
}

func TestLogin_UniformFailureMessage(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada@example.com", "Str0ng!pass")

	_, unknownErr := f.service.Login(context.Background(), auth.LoginInput{
		Email:    "nobody@example.com",
		Password: "whatever",
	}, testMeta)
	_, wrongErr := f.service.Login(context.Background(), auth.LoginInput{
		Email:    "ada@example.com",
		Password: "wrong-password",
	}, testMeta)

	require.Error(t, unknownErr)
	require.Error(t, wrongErr)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error(),
		"an attacker must not be able to probe which emails exist")
	assert.Equal(t, "Invalid email or password", wrongErr.Error())
}

func TestLogin_LockoutAfterRepeatedFailures(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada@example.com", "Str0ng!pass")
	ctx := context.Background()

	for i := 0; i < auth.MaxLoginAttempts; i++ {
		_, err := f.service.Login(ctx, auth.LoginInput{
			Email:    "ada@example.com",
			Password: "wrong-password",
		}, testMeta)
		require.Error(t, err)
	}

	// The lock rejects even the correct password.
	_, err := f.service.Login(ctx, auth.LoginInput{
		Email:    "ada@example.com",
		Password: "Str0ng!pass",
	}, testMeta)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Account is locked")

	// The lock expires on its own.
	f.redis.FastForward(31 * time.Minute)
	result, err := f.service.Login(ctx, auth.LoginInput{
		Email:    "ada@example.com",
		Password: "Str0ng!pass",
	}, testMeta)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Tokens.RefreshToken)
}

func TestLogin_SuccessClearsCounter(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada@example.com", "Str0ng!pass")
	ctx := context.Background()

	for i := 0; i < auth.MaxLoginAttempts-1; i++ {
		_, err := f.service.Login(ctx, auth.LoginInput{
			Email:    "ada@example.com",
			Password: "wrong-password",
		}, testMeta)
		require.Error(t, err)
	}

	_, err := f.service.Login(ctx, auth.LoginInput{
		Email:    "ada@example.com",
		Password: "Str0ng!pass",
	}, testMeta)
	require.NoError(t, err)

	// The slate is clean: the next run of failures starts from zero.
	for i := 0; i < auth.MaxLoginAttempts-1; i++ {
		_, err := f.service.Login(ctx, auth.LoginInput{
			Email:    "ada@example.com",
			Password: "wrong-password",
		}, testMeta)
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "locked")
	}
}

func TestLogin_SuspendedAccount(t *testing.T) {
	f := newFixture(t)
	result := f.register(t, "ada@example.com", "Str0ng!pass")

	f.users.mutate(result.User.ID, func(user *auth.User) { user.IsSuspended = true })

	_, err := f.service.Login(context.Background(), auth.LoginInput{
		Email:    "ada@example.com",
		Password: "Str0ng!pass",
	}, testMeta)
	require.Error(t, err)
	assert.Equal(t, "Account is not available", err.Error())
}

// # Password Recovery

func TestRequestPasswordReset_UnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)

	err := f.service.RequestPasswordReset(context.Background(), "ghost@example.com")
	require.NoError(t, err, "unknown emails must not be distinguishable")
	assert.Empty(t, f.resets.tokens())
}

func TestResetPassword_FullFlow(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada@example.com", "Str0ng!pass")
	ctx := context.Background()

	require.NoError(t, f.service.RequestPasswordReset(ctx, "ada@example.com"))
	tokens := f.resets.tokens()
	require.Len(t, tokens, 1)
	resetToken := tokens[0]

	require.NoError(t, f.service.ResetPassword(ctx, resetToken, "N3w!passw0rd"))

	// Every session of the user is purged.
	assert.Equal(t, 0, f.sessions.count())

	// Old password dead, new password live.
	_, err := f.service.Login(ctx, auth.LoginInput{Email: "ada@example.com", Password: "Str0ng!pass"}, testMeta)
	require.Error(t, err)
	_, err = f.service.Login(ctx, auth.LoginInput{Email: "ada@example.com", Password: "N3w!passw0rd"}, testMeta)
	require.NoError(t, err)

	// The token is single use.
	err = f.service.ResetPassword(ctx, resetToken, "An0ther!pass")
	require.Error(t, err)
	assert.Equal(t, "Invalid or expired reset token", err.Error())
}

func TestResetPassword_UnknownToken(t *testing.T) {
	f := newFixture(t)

	err := f.service.ResetPassword(context.Background(), "no-such-token", "N3w!passw0rd")
	require.Error(t, err)
	assert.Equal(t, "Invalid or expired reset token", err.Error())
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	result := f.register(t, "ada@example.com", "Str0ng!pass")
	ctx := context.Background()

	err := f.service.ChangePassword(ctx, result.User.ID, "wrong-current", "N3w!passw0rd")
	require.Error(t, err)
	assert.Equal(t, "Current password is incorrect", err.Error())

	require.NoError(t, f.service.ChangePassword(ctx, result.User.ID, "Str0ng!pass", "N3w!passw0rd"))
	assert.Equal(t, 0, f.sessions.count(), "a password change signs out every device")

	_, err = f.service.Login(ctx, auth.LoginInput{Email: "ada@example.com", Password: "N3w!passw0rd"}, testMeta)
	require.NoError(t, err)
}

// # Email Verification

func TestVerifyEmail(t *testing.T) {
	f := newFixture(t)
	result := f.register(t, "ada@example.com", "Str0ng!pass")
	ctx := context.Background()

	tokens := f.verifications.tokens()
	require.Len(t, tokens, 1)
	token := tokens[0]

	require.NoError(t, f.service.VerifyEmail(ctx, token))

	user, err := f.users.FindByID(ctx, result.User.ID)
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)

	// Second redemption is rejected.
	err = f.service.VerifyEmail(ctx, token)
	require.Error(t, err)
	assert.Equal(t, "Email is already verified", err.Error())
}

func TestVerifyEmail_ExpiredToken(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada@example.com", "Str0ng!pass")

	token := f.verifications.tokens()[0]
	f.verifications.age(token, time.Now().Add(-25*time.Hour))

	err := f.service.VerifyEmail(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, "Verification token has expired", err.Error())
}

func TestVerifyEmail_UnknownToken(t *testing.T) {
	f := newFixture(t)

	err := f.service.VerifyEmail(context.Background(), "no-such-token")
	require.Error(t, err)
	assert.Equal(t, "Invalid verification token", err.Error())
}

// # Cache-Aside Reads

func TestGetUserByID_CacheAside(t *testing.T) {
	f := newFixture(t)
	result := f.register(t, "ada@example.com", "Str0ng!pass")
	ctx := context.Background()

	// First read populates the cache.
	first, err := f.service.GetUserByID(ctx, result.User.ID)
	require.NoError(t, err)
	assert.True(t, f.redis.Exists("user:"+result.User.ID))

	// A direct DB mutation is invisible while the entry lives.
	f.users.mutate(result.User.ID, func(user *auth.User) { user.FirstName = "Changed" })
	second, err := f.service.GetUserByID(ctx, result.User.ID)
	require.NoError(t, err)
	assert.Equal(t, first.FirstName, second.FirstName)

	// Mutations through the service invalidate before reporting success.
	require.NoError(t, f.service.ChangePassword(ctx, result.User.ID, "Str0ng!pass", "N3w!passw0rd"))
	assert.False(t, f.redis.Exists("user:"+result.User.ID))
}
