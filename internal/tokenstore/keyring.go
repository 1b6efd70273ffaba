package tokenstore

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/99designs/keyring"
)

const serviceName = "timegrave"

// KeyringBackend stores the session in the operating system keyring, with
// an encrypted file fallback where no system keyring is available.
type KeyringBackend struct {
	ring keyring.Keyring
}

// OpenKeyring returns a configured keyring backend. fileDir is used by the
// file fallback.
func OpenKeyring(fileDir string) (*KeyringBackend, error) {
	return openKeyring(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("timegrave-file-key"),
		KeychainTrustApplication: true,
	})
}

func openKeyring(cfg keyring.Config) (*KeyringBackend, error) {
	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &KeyringBackend{ring: ring}, nil
}

// Get retrieves a value by key from the keyring.
func (k *KeyringBackend) Get(key string) (string, bool, error) {
	item, err := k.ring.Get(key)
	if err != nil {
		if isMissing(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), true, nil
}

// Set stores each entry in order. Keyrings have no multi-key transaction,
// so a failure part way leaves the earlier entries written.
func (k *KeyringBackend) Set(entries ...Entry) error {
	for _, e := range entries {
		err := k.ring.Set(keyring.Item{
			Key:   e.Key,
			Data:  []byte(e.Value),
			Label: "TimeGrave " + e.Key,
		})
		if err != nil {
			return fmt.Errorf("setting credential %q: %w", e.Key, err)
		}
	}
	return nil
}

// Remove deletes credentials by key. Keys that do not exist are skipped.
func (k *KeyringBackend) Remove(keys ...string) error {
	var errs []error
	for _, key := range keys {
		if err := k.ring.Remove(key); err != nil && !isMissing(err) {
			errs = append(errs, fmt.Errorf("deleting credential %q: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// isMissing covers both ErrKeyNotFound and the file backend, which reports
// absent keys as a plain not-exist error on Remove.
func isMissing(err error) bool {
	return errors.Is(err, keyring.ErrKeyNotFound) || errors.Is(err, fs.ErrNotExist)
}
