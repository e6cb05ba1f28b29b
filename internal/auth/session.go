// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

package auth

import "time"

// # Session Entities

// Session is the durable anchor of one outstanding refresh token.
//
// # Rotation
//
// Exactly one row exists per live refresh token (unique Token column). A
// rotation deletes the presented row and inserts a fresh one; the unique
// constraint is the serialization point for concurrent rotations.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Token     string    `json:"-"` // The exact refresh-token string. Omitted for security.
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Expired reports whether the session can no longer be refreshed.
func (session *Session) Expired(now time.Time) bool {
	return !session.ExpiresAt.After(now)
}

// SessionMeta is the ephemeral transport metadata attached to a session.
// It lives in Redis under session_meta:{sessionId} and may be missing; a
// session without metadata is still fully functional.
type SessionMeta struct {
	IP          string    `json:"ip,omitempty"`
	UserAgent   string    `json:"userAgent,omitempty"`
	LastUsedAt  time.Time `json:"lastUsedAt"`
	LastLoginAt time.Time `json:"lastLoginAt"`
	LoginMethod string    `json:"loginMethod,omitempty"`
}

// SessionInfo is the client-facing merge of a Session row with its metadata.
type SessionInfo struct {
	ID          string     `json:"id"`
	IP          string     `json:"ip,omitempty"`
	UserAgent   string     `json:"userAgent,omitempty"`
	LoginMethod string     `json:"loginMethod,omitempty"`
	LastUsedAt  *time.Time `json:"lastUsedAt,omitempty"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	IsCurrent   bool       `json:"isCurrent"`
}

// FamilyHead is the ephemeral head pointer of a refresh-token family,
// stored under token_family:{familyId}.
//
// # Reuse Detection
//
// CurrentToken always equals the most recently issued refresh token of the
// family. A presented family member that is not the head is proof of reuse.
type FamilyHead struct {
	CurrentToken string `json:"currentToken"`
	UserID       string `json:"userId"`
}

// TokenPair is the bearer credential set returned by every authentication path.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResult bundles the authenticated user with freshly minted tokens.
type AuthResult struct {
	User   *User     `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

// RequestMeta carries transport attributes of the calling request into the
// service layer for session metadata and security events.
type RequestMeta struct {
	IP        string
	UserAgent string
}
