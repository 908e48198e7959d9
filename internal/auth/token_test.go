package auth

import (
	"context"
	"testing"
)

func TestMCPVerifierDisabledWhenTokenEmpty(t *testing.T) {
	v := &MCPVerifier{}
	if v.Enabled() {
		t.Fatal("expected verifier with empty token to be disabled")
	}
	if err := v.Verify(context.Background(), "anything"); err != nil {
		t.Fatalf("expected disabled verifier to accept any token, got %v", err)
	}
}

func TestMCPVerifierAcceptsMatchingToken(t *testing.T) {
	v := &MCPVerifier{Token: "secret-token"}
	if err := v.Verify(context.Background(), "secret-token"); err != nil {
		t.Fatalf("expected matching token to verify, got %v", err)
	}
}

func TestMCPVerifierRejectsMismatchedToken(t *testing.T) {
	v := &MCPVerifier{Token: "secret-token"}
	if err := v.Verify(context.Background(), "wrong-token"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestMCPVerifierRejectsEmptyToken(t *testing.T) {
	v := &MCPVerifier{Token: "secret-token"}
	if err := v.Verify(context.Background(), ""); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
}

func TestHashAPIKeyIsDeterministic(t *testing.T) {
	a := HashAPIKey("my-api-key")
	b := HashAPIKey("my-api-key")
	if a != b {
		t.Fatal("expected hashing the same key twice to produce the same hash")
	}
	if a == "my-api-key" {
		t.Fatal("expected hash to differ from raw key")
	}
}

func TestAPIKeyVerifierAcceptsMatchingKey(t *testing.T) {
	raw := "admin-key-123"
	v := &APIKeyVerifier{Hash: HashAPIKey(raw)}
	if err := v.Verify(raw); err != nil {
		t.Fatalf("expected matching key to verify, got %v", err)
	}
}

func TestAPIKeyVerifierRejectsMismatchedKey(t *testing.T) {
	v := &APIKeyVerifier{Hash: HashAPIKey("admin-key-123")}
	if err := v.Verify("wrong-key"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAPIKeyVerifierDisabledWhenHashEmpty(t *testing.T) {
	v := &APIKeyVerifier{}
	if err := v.Verify("anything"); err != nil {
		t.Fatalf("expected disabled verifier to accept any key, got %v", err)
	}
}

func TestBearerTokenExtractsToken(t *testing.T) {
	token, ok := BearerToken("Bearer abc123")
	if !ok || token != "abc123" {
		t.Fatalf("expected (abc123, true), got (%q, %v)", token, ok)
	}
}

func TestBearerTokenRejectsMissingPrefix(t *testing.T) {
	_, ok := BearerToken("abc123")
	if ok {
		t.Fatal("expected missing Bearer prefix to fail")
	}
}
