// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bureau-foundation/foyer/lib/ref"
	"github.com/bureau-foundation/foyer/lib/sealed"
	"github.com/bureau-foundation/foyer/lib/secret"
	"github.com/bureau-foundation/foyer/messaging"
)

// StoredSession is the session material persisted between runs.
type StoredSession struct {
	UserID        ref.UserID `json:"user_id"`
	AccessToken   string     `json:"access_token"`
	DeviceID      string     `json:"device_id,omitempty"`
	HomeserverURL string     `json:"homeserver_url"`
}

// SessionStore seals the access token to disk with a passphrase so a
// restart does not require a fresh password login. The file is age
// ciphertext (scrypt recipient); the decrypted token only ever lives
// in mmap-backed secret memory.
type SessionStore struct {
	path string
}

// NewSessionStore creates a store at the given file path.
func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

// Exists reports whether a stored session is present.
func (s *SessionStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Save seals the session under the passphrase and writes it with owner-
// only permissions.
func (s *SessionStore) Save(session StoredSession, passphrase *secret.Buffer) error {
	plaintext, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("client: encoding session: %w", err)
	}
	defer secret.Zero(plaintext)

	ciphertext, err := sealed.Seal(plaintext, passphrase)
	if err != nil {
		return fmt.Errorf("client: sealing session: %w", err)
	}
	if err := os.WriteFile(s.path, ciphertext, 0o600); err != nil {
		return fmt.Errorf("client: writing session file: %w", err)
	}
	return nil
}

// Load unseals the stored session and resumes it against the client.
// The access token moves straight from the unsealed buffer into the
// session's secret memory.
func (s *SessionStore) Load(client *messaging.Client, passphrase *secret.Buffer) (*messaging.DirectSession, *StoredSession, error) {
	ciphertext, err := os.ReadFile(s.path)
	if err != nil {
		return nil, nil, fmt.Errorf("client: reading session file: %w", err)
	}
	plaintext, err := sealed.Unseal(ciphertext, passphrase)
	if err != nil {
		return nil, nil, fmt.Errorf("client: unsealing session: %w", err)
	}
	defer plaintext.Close()

	var stored StoredSession
	if err := json.Unmarshal(plaintext.Bytes(), &stored); err != nil {
		return nil, nil, fmt.Errorf("client: decoding session: %w", err)
	}
	session, err := client.SessionFromToken(stored.UserID, stored.AccessToken)
	if err != nil {
		return nil, nil, err
	}
	stored.AccessToken = ""
	return session, &stored, nil
}

// Remove deletes the stored session. Called at logout.
func (s *SessionStore) Remove() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("client: removing session file: %w", err)
	}
	return nil
}
