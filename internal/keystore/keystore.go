// Package keystore loads provider credentials from a NAME=value file.
package keystore

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
)

// DefaultPath is the credential file read when no path is configured.
const DefaultPath = "secrets.env"

// Load parses a credential file. Each non-empty line must be NAME=value;
// the first '=' splits name from value and everything after it, further
// '=' included, is the value. There is no quoting, escaping or comment
// syntax.
func Load(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.NewConfigurationErrorWithCause(path, "credential file not found", err)
		}
		return nil, domain.NewConfigurationErrorWithCause(path, "cannot open credential file", err)
	}
	defer f.Close()

	secrets := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		name, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, domain.NewConfigurationError(path, fmt.Sprintf("line %d has no '=' separator", lineNo))
		}
		secrets[name] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, domain.NewConfigurationErrorWithCause(path, "cannot read credential file", err)
	}

	return secrets, nil
}

// KeyStore loads its file on first use and keeps the result for its
// lifetime. A failed load is sticky.
type KeyStore struct {
	path string

	once    sync.Once
	secrets map[string]string
	err     error
}

// New creates a KeyStore for path. Nothing is read until the first lookup.
func New(path string) *KeyStore {
	if path == "" {
		path = DefaultPath
	}
	return &KeyStore{path: path}
}

// Path returns the credential file location.
func (k *KeyStore) Path() string {
	return k.path
}

func (k *KeyStore) load() error {
	k.once.Do(func() {
		k.secrets, k.err = Load(k.path)
	})
	return k.err
}

// Get returns the secret stored under name. A name absent from the file is
// a configuration error; there is no default.
func (k *KeyStore) Get(name string) (string, error) {
	if err := k.load(); err != nil {
		return "", err
	}

	secret, ok := k.secrets[name]
	if !ok {
		return "", domain.NewConfigurationError(k.path, fmt.Sprintf("credential %q not found", name))
	}
	return secret, nil
}

// Credential wraps Get into a ProviderCredential.
func (k *KeyStore) Credential(name string) (domain.ProviderCredential, error) {
	secret, err := k.Get(name)
	if err != nil {
		return domain.ProviderCredential{}, err
	}
	return domain.ProviderCredential{Name: name, Secret: secret}, nil
}

// Names lists the loaded credential names in sorted order.
func (k *KeyStore) Names() ([]string, error) {
	if err := k.load(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(k.secrets))
	for name := range k.secrets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}
