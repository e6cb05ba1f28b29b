// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing, random
// token generation) from the domain logic. It acts as an Infrastructure
// service injected into the Application layer.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Distinct verification failures. Callers can branch on the failure class
// without parsing library error strings.
var (
	// ErrTokenMalformed means the string is not a structurally valid JWT.
	ErrTokenMalformed = errors.New("sec: token is malformed")

	// ErrTokenSignature means the signature does not verify under the expected key.
	ErrTokenSignature = errors.New("sec: token signature is invalid")

	// ErrTokenExpired means the token was valid but its lifetime has passed.
	ErrTokenExpired = errors.New("sec: token has expired")

	// ErrTokenClaims means the issuer or audience does not match this service.
	ErrTokenClaims = errors.New("sec: token claims rejected")
)

// Claims represents the payload embedded inside every Identra JWT.
//
// # Why custom claims?
//
// By embedding the user identity, role, and session coordinates directly in
// the token, access verification never touches a store. The refresh-specific
// fields (FamilyID, SessionID) drive the rotation machine.
type Claims struct {
	jwt.RegisteredClaims

	// Custom application claims are abbreviated to keep the JWT payload small.
	UserID    string `json:"uid"`
	Email     string `json:"eml"`
	Role      string `json:"rol"`
	FamilyID  string `json:"fam"`
	SessionID string `json:"sid"`
}

// TokenInput carries the identity fields stamped into an issued token.
type TokenInput struct {
	UserID    string
	Email     string
	Role      string
	FamilyID  string
	SessionID string
}

// TokenService issues and verifies HS256 JWTs using two independent secrets:
// one for short-lived access tokens and one for long-lived refresh tokens.
//
// # Key Separation
//
// A refresh token presented where an access token is expected (or vice versa)
// fails signature verification outright, because the two token classes never
// share a key.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	audience      string
}

// NewTokenService creates a TokenService bound to the given secrets and lifetimes.
func NewTokenService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, issuer, audience string) (*TokenService, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("sec: token secrets must not be empty")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("sec: access and refresh secrets must differ")
	}

	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		issuer:        issuer,
		audience:      audience,
	}, nil
}

// RefreshTTL exposes the configured refresh-token lifetime so that session
// rows and family heads can share the exact same expiry window.
func (service *TokenService) RefreshTTL() time.Duration {
	return service.refreshTTL
}

// IssueAccess creates a signed short-lived access token.
func (service *TokenService) IssueAccess(input TokenInput) (string, error) {
	return service.sign(input, service.accessSecret, service.accessTTL)
}

// IssueRefresh creates a signed long-lived refresh token.
func (service *TokenService) IssueRefresh(input TokenInput) (string, error) {
	return service.sign(input, service.refreshSecret, service.refreshTTL)
}

// VerifyAccess checks an access token. It never consults a store.
func (service *TokenService) VerifyAccess(tokenString string) (*Claims, error) {
	return service.verify(tokenString, service.accessSecret)
}

// VerifyRefresh checks a refresh token's signature and registered claims.
// The family-head reuse check is a separate step owned by the session engine.
func (service *TokenService) VerifyRefresh(tokenString string) (*Claims, error) {
	return service.verify(tokenString, service.refreshSecret)
}

// sign builds the claim set and produces the signed compact serialization.
func (service *TokenService) sign(input TokenInput, secret []byte, timeToLive time.Duration) (string, error) {
	currentTime := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   input.UserID,
			Issuer:    service.issuer,
			Audience:  jwt.ClaimStrings{service.audience},
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		UserID:    input.UserID,
		Email:     input.Email,
		Role:      input.Role,
		FamilyID:  input.FamilyID,
		SessionID: input.SessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// verify parses and validates a token under the given secret, translating
// library failures into this package's distinct error classes.
func (service *TokenService) verify(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		},
		jwt.WithIssuer(service.issuer),
		jwt.WithAudience(service.audience),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("%w: %w", ErrTokenSignature, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
			return nil, fmt.Errorf("%w: %w", ErrTokenClaims, err)
		default:
			return nil, fmt.Errorf("%w: %w", ErrTokenClaims, err)
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenClaims
	}

	return claims, nil
}
