package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

const credentialService = "keeper"

// KeyName is the credential slot holding the backend API key.
const KeyName = "api"

var ErrCredentialNotFound = errors.New("credential not found")

var (
	fallbackMu    sync.Mutex
	keyringGet    = keyring.Get
	keyringSet    = keyring.Set
	keyringDelete = keyring.Delete
	userHomeDir   = os.UserHomeDir
)

// ValidateCredential rejects blank keys before they reach the keyring.
func ValidateCredential(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("credential is empty")
	}
	return nil
}

// StoreCredential saves a key in the OS keyring, falling back to a 0600
// JSON file under ~/.config/keeper when no keyring is available.
func StoreCredential(keyName, key string) error {
	keyName = strings.TrimSpace(keyName)
	key = strings.TrimSpace(key)
	if keyName == "" {
		return errors.New("credential key name is empty")
	}
	if err := ValidateCredential(key); err != nil {
		return err
	}

	if err := keyringSet(credentialService, keyName, key); err == nil {
		return nil
	}

	fallbackMu.Lock()
	defer fallbackMu.Unlock()

	entries, err := readFallbackFile()
	if err != nil {
		return err
	}
	entries[keyName] = key
	return writeFallbackFile(entries)
}

// LoadCredential reads a key from the keyring, then from the fallback file.
func LoadCredential(keyName string) (string, error) {
	keyName = strings.TrimSpace(keyName)
	if keyName == "" {
		return "", errors.New("credential key name is empty")
	}

	if key, err := keyringGet(credentialService, keyName); err == nil {
		if key = strings.TrimSpace(key); key != "" {
			return key, nil
		}
	}

	fallbackMu.Lock()
	defer fallbackMu.Unlock()

	entries, err := readFallbackFile()
	if err != nil {
		return "", err
	}
	key := entries[keyName]
	if key == "" {
		return "", ErrCredentialNotFound
	}
	return key, nil
}

// DeleteCredential removes a key from both the keyring and the fallback
// file. Missing entries are not an error.
func DeleteCredential(keyName string) error {
	keyName = strings.TrimSpace(keyName)
	if keyName == "" {
		return errors.New("credential key name is empty")
	}

	_ = keyringDelete(credentialService, keyName)

	fallbackMu.Lock()
	defer fallbackMu.Unlock()

	entries, err := readFallbackFile()
	if err != nil {
		return err
	}
	if _, ok := entries[keyName]; !ok {
		return nil
	}
	delete(entries, keyName)
	return writeFallbackFile(entries)
}

func fallbackPath() (string, error) {
	home, err := userHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	if strings.TrimSpace(home) == "" {
		return "", errors.New("home directory is empty")
	}
	return filepath.Join(home, ".config", "keeper", "credentials.json"), nil
}

// readFallbackFile returns the fallback entries with blank names and values
// already filtered out. A missing or empty file is an empty map.
func readFallbackFile() (map[string]string, error) {
	path, err := fallbackPath()
	if err != nil {
		return nil, err
	}

	entries := map[string]string{}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return entries, nil
	case err != nil:
		return nil, fmt.Errorf("read credential file: %w", err)
	case strings.TrimSpace(string(raw)) == "":
		return entries, nil
	}

	var stored map[string]string
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode credential file: %w", err)
	}
	for name, value := range stored {
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if name != "" && value != "" {
			entries[name] = value
		}
	}
	return entries, nil
}

// writeFallbackFile replaces the fallback file atomically and keeps it
// readable by the owner only.
func writeFallbackFile(entries map[string]string) error {
	path, err := fallbackPath()
	if err != nil {
		return err
	}
	if entries == nil {
		entries = map[string]string{}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create credential directory: %w", err)
	}
	payload, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential file: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write credential temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace credential file: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("set credential file permissions: %w", err)
	}
	return nil
}
