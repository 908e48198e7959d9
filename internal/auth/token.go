// Package auth implements a reduced, single-static-token
// authentication surface: an MCP bearer token compared in constant
// time, and an admin HTTP API key hashed with SHA-256. Neither needs
// bcrypt's per-call cost, since there is exactly one static secret to
// check rather than a table of user passwords.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrInvalidToken is returned for a missing, malformed, mismatched, or
// revoked bearer token.
var ErrInvalidToken = errors.New("auth: invalid token")

const revokedKeyPrefix = "codeindex:revoked-token:"

// HashAPIKey hashes a raw admin API key with SHA-256 so only the
// digest needs to be held in memory or configuration.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// MCPVerifier checks the MCP transport's single static bearer token,
// held in memory rather than hashed (there is nothing to leak to a
// database row), compared in constant time to avoid a timing oracle.
// An optional Redis cache lets an operator revoke the token without
// restarting the process.
type MCPVerifier struct {
	Token string // the configured MCP_AUTH_TOKEN; empty disables auth entirely
	Redis *redis.Client
}

// Enabled reports whether an MCP auth token is configured at all.
func (v *MCPVerifier) Enabled() bool {
	return v != nil && v.Token != ""
}

// Verify checks a raw bearer token against the configured token,
// consulting the revocation cache first.
func (v *MCPVerifier) Verify(ctx context.Context, token string) error {
	if !v.Enabled() {
		return nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}

	if v.Redis != nil {
		revoked, err := v.Redis.Exists(ctx, revokedKeyPrefix+token).Result()
		if err == nil && revoked > 0 {
			return ErrInvalidToken
		}
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(v.Token)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// Revoke marks a token as revoked for ttl, so Verify rejects it even
// though it still matches the configured token. No-op when Redis is
// not configured.
func (v *MCPVerifier) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if v.Redis == nil {
		return nil
	}
	return v.Redis.Set(ctx, revokedKeyPrefix+token, "1", ttl).Err()
}

// APIKeyVerifier checks the HTTP admin surface's API key against its
// configured SHA-256 hash.
type APIKeyVerifier struct {
	Hash string // hex SHA-256 of the configured admin key; empty disables auth
}

// Enabled reports whether an admin API key is configured at all.
func (v *APIKeyVerifier) Enabled() bool {
	return v != nil && v.Hash != ""
}

// Verify checks a raw API key against the configured hash.
func (v *APIKeyVerifier) Verify(raw string) error {
	if !v.Enabled() {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrInvalidToken
	}
	if subtle.ConstantTimeCompare([]byte(HashAPIKey(raw)), []byte(v.Hash)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// BearerToken extracts the token from a "Bearer <token>" header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix)), true
}
