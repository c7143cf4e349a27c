package auth

import (
	"testing"
	"time"

	"github.com/InkLedgerLabs/certmark/backend/internal/rbac"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestIssueAndValidateRoundTrip(t *testing.T) {
	now := time.Unix(1780000000, 0).UTC()
	manager := NewTokenManager(TokenManagerConfig{
		SigningSecret: []byte("test-secret"),
		Issuer:        "certmark-auth",
		Audience:      "certmark-api",
		TokenTTL:      15 * time.Minute,
		Clock:         fixedClock(now),
	})

	token, expiresIn, err := manager.IssueToken("user-1", []rbac.Role{rbac.RoleOwner, rbac.RoleEditor})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expiresIn != int64((15 * time.Minute).Seconds()) {
		t.Fatalf("expiresIn = %d, want %d", expiresIn, int64((15*time.Minute).Seconds()))
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("subject = %q", claims.Subject)
	}
	if len(claims.Roles) != 2 || claims.Roles[0] != rbac.RoleOwner || claims.Roles[1] != rbac.RoleEditor {
		t.Fatalf("roles = %v", claims.Roles)
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	issuedAt := time.Unix(1780000000, 0).UTC()
	issuer := NewTokenManager(TokenManagerConfig{
		SigningSecret: []byte("test-secret"),
		Issuer:        "certmark-auth",
		Audience:      "certmark-api",
		TokenTTL:      time.Minute,
		Clock:         fixedClock(issuedAt),
	})
	token, _, err := issuer.IssueToken("user-1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	validator := NewTokenManager(TokenManagerConfig{
		SigningSecret: []byte("test-secret"),
		Issuer:        "certmark-auth",
		Audience:      "certmark-api",
		Clock:         fixedClock(issuedAt.Add(2 * time.Minute)),
	})
	if _, err := validator.ValidateToken(token); err == nil {
		t.Fatalf("expected expired token to fail validation")
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	now := time.Unix(1780000000, 0).UTC()
	issuer := NewTokenManager(TokenManagerConfig{
		SigningSecret: []byte("secret-a"),
		Issuer:        "certmark-auth",
		Audience:      "certmark-api",
		Clock:         fixedClock(now),
	})
	token, _, err := issuer.IssueToken("user-1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	validator := NewTokenManager(TokenManagerConfig{
		SigningSecret: []byte("secret-b"),
		Issuer:        "certmark-auth",
		Audience:      "certmark-api",
		Clock:         fixedClock(now),
	})
	if _, err := validator.ValidateToken(token); err == nil {
		t.Fatalf("expected signature mismatch to fail validation")
	}
}

func TestValidateRejectsWrongAudience(t *testing.T) {
	now := time.Unix(1780000000, 0).UTC()
	issuer := NewTokenManager(TokenManagerConfig{
		SigningSecret: []byte("test-secret"),
		Issuer:        "certmark-auth",
		Audience:      "other-api",
		Clock:         fixedClock(now),
	})
	token, _, err := issuer.IssueToken("user-1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	validator := NewTokenManager(TokenManagerConfig{
		SigningSecret: []byte("test-secret"),
		Issuer:        "certmark-auth",
		Audience:      "certmark-api",
		Clock:         fixedClock(now),
	})
	if _, err := validator.ValidateToken(token); err == nil {
		t.Fatalf("expected audience mismatch to fail validation")
	}
}

func TestValidateNormalizesUnknownRoles(t *testing.T) {
	now := time.Unix(1780000000, 0).UTC()
	manager := NewTokenManager(TokenManagerConfig{
		SigningSecret: []byte("test-secret"),
		Issuer:        "certmark-auth",
		Audience:      "certmark-api",
		Clock:         fixedClock(now),
	})

	token, _, err := manager.IssueToken("user-1", []rbac.Role{"superuser"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != rbac.RoleViewer {
		t.Fatalf("unknown role should normalize to viewer, got %v", claims.Roles)
	}
}

func TestIssueTokenRequiresSubjectAndSecret(t *testing.T) {
	manager := NewTokenManager(TokenManagerConfig{
		SigningSecret: []byte("test-secret"),
	})
	if _, _, err := manager.IssueToken("", nil); err == nil {
		t.Fatalf("expected error for missing subject")
	}

	unsigned := NewTokenManager(TokenManagerConfig{})
	if _, _, err := unsigned.IssueToken("user-1", nil); err == nil {
		t.Fatalf("expected error for missing secret")
	}
}
