package credential_test

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"

	"github.com/schoolone/portal/internal/credential"
)

func TestVaultRoundTrip(t *testing.T) {
	v := credential.NewVault(keyring.NewArrayKeyring(nil))

	if _, err := v.Get("access_token"); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := v.Set("access_token", "abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := v.Get("access_token")
	if err != nil || got != "abc" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	if err := v.Delete("access_token"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := v.Delete("access_token"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if _, err := v.Get("access_token"); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
