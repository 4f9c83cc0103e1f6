package api

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStoreCredentialFallsBackToFileWhenKeyringUnavailable(t *testing.T) {
	origGet := keyringGet
	origSet := keyringSet
	origHome := userHomeDir
	defer func() {
		keyringGet = origGet
		keyringSet = origSet
		userHomeDir = origHome
	}()

	tmpHome := t.TempDir()
	userHomeDir = func() (string, error) { return tmpHome, nil }
	keyringSet = func(service, user, password string) error { return errors.New("keyring unavailable") }
	keyringGet = func(service, user string) (string, error) { return "", errors.New("keyring unavailable") }

	if err := StoreCredential(KeyName, "pk-test"); err != nil {
		t.Fatalf("store credential: %v", err)
	}

	credentialPath := filepath.Join(tmpHome, ".config", "keeper", "credentials.json")
	info, err := os.Stat(credentialPath)
	if err != nil {
		t.Fatalf("stat credential file: %v", err)
	}
	if got := info.Mode().Perm(); got != 0o600 {
		t.Fatalf("expected credential file mode 0600, got %o", got)
	}

	got, err := LoadCredential(KeyName)
	if err != nil {
		t.Fatalf("load credential: %v", err)
	}
	if got != "pk-test" {
		t.Fatalf("expected stored credential, got %q", got)
	}
}

func TestStoreCredentialUsesKeyringWhenAvailable(t *testing.T) {
	origGet := keyringGet
	origSet := keyringSet
	origHome := userHomeDir
	defer func() {
		keyringGet = origGet
		keyringSet = origSet
		userHomeDir = origHome
	}()

	tmpHome := t.TempDir()
	userHomeDir = func() (string, error) { return tmpHome, nil }

	keyringValues := make(map[string]string)
	keyringSet = func(service, user, password string) error {
		keyringValues[user] = password
		return nil
	}
	keyringGet = func(service, user string) (string, error) {
		value := keyringValues[user]
		if value == "" {
			return "", errors.New("not found")
		}
		return value, nil
	}

	if err := StoreCredential(KeyName, "pk-live"); err != nil {
		t.Fatalf("store credential: %v", err)
	}
	if got := keyringValues[KeyName]; got != "pk-live" {
		t.Fatalf("expected keyring value persisted, got %q", got)
	}
	credentialPath := filepath.Join(tmpHome, ".config", "keeper", "credentials.json")
	if _, err := os.Stat(credentialPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no credential fallback file when keyring succeeds, got err=%v", err)
	}
}

func TestDeleteCredentialClearsKeyringAndFile(t *testing.T) {
	origGet := keyringGet
	origSet := keyringSet
	origDelete := keyringDelete
	origHome := userHomeDir
	defer func() {
		keyringGet = origGet
		keyringSet = origSet
		keyringDelete = origDelete
		userHomeDir = origHome
	}()

	tmpHome := t.TempDir()
	userHomeDir = func() (string, error) { return tmpHome, nil }
	keyringSet = func(service, user, password string) error { return errors.New("keyring unavailable") }
	keyringGet = func(service, user string) (string, error) { return "", errors.New("keyring unavailable") }

	deleted := false
	keyringDelete = func(service, user string) error {
		deleted = true
		return errors.New("keyring unavailable")
	}

	if err := StoreCredential(KeyName, "pk-test"); err != nil {
		t.Fatalf("store credential: %v", err)
	}
	if err := DeleteCredential(KeyName); err != nil {
		t.Fatalf("delete credential: %v", err)
	}
	if !deleted {
		t.Fatal("expected keyring delete attempt")
	}
	if _, err := LoadCredential(KeyName); !errors.Is(err, ErrCredentialNotFound) {
		t.Fatalf("expected credential gone, got err=%v", err)
	}

	// Deleting again is a no-op.
	if err := DeleteCredential(KeyName); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestValidateCredential(t *testing.T) {
	if err := ValidateCredential("  "); err == nil {
		t.Fatal("expected error for blank credential")
	}
	if err := ValidateCredential("token"); err != nil {
		t.Fatalf("unexpected error for token: %v", err)
	}
}
