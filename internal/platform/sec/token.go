// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

package sec

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// RandomTokenBytes is the entropy of every opaque token the platform issues
// (family ids, verification/reset tokens, CSRF tokens, OAuth state nonces).
// 32 bytes is double the 128-bit floor the security policy requires.
const RandomTokenBytes = 32

// RandomToken returns a url-safe, uniformly random opaque token.
//
// # Format
//
// 32 bytes from the OS entropy pool, base64 raw-url encoded (43 characters,
// no padding). Safe to embed in URLs, headers, and Redis keys without escaping.
func RandomToken() (string, error) {
	buffer := make([]byte, RandomTokenBytes)
	if _, err := rand.Read(buffer); err != nil {
		// Never degrade to a weaker source. Entropy failure is a system-level fault.
		return "", fmt.Errorf("sec: failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}
