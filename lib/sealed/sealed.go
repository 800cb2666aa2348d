// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed provides age encryption for the saved session file.
//
// Foyer persists the Matrix access token between runs so the user does
// not log in on every start. The session file is sealed with age using
// a passphrase-derived (scrypt) recipient: no keypair to manage, and
// the file is useless without the passphrase. Decrypted plaintext is
// returned in a *secret.Buffer (mmap-backed, locked against swap,
// zeroed on close).
package sealed

import (
	"bytes"
	"fmt"
	"io"

	"filippo.io/age"

	"github.com/bureau-foundation/foyer/lib/secret"
)

// Seal encrypts plaintext with a passphrase-derived age recipient.
// The passphrase buffer is read but not closed — the caller retains
// ownership. Returns the raw age ciphertext for writing to disk.
func Seal(plaintext []byte, passphrase *secret.Buffer) ([]byte, error) {
	// age requires the passphrase as a string; the heap copy is brief
	// and call-scoped.
	recipient, err := age.NewScryptRecipient(passphrase.String())
	if err != nil {
		return nil, fmt.Errorf("sealed: creating scrypt recipient: %w", err)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipient)
	if err != nil {
		return nil, fmt.Errorf("sealed: creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("sealed: writing plaintext: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("sealed: finalizing encryption: %w", err)
	}
	return ciphertext.Bytes(), nil
}

// Unseal decrypts age ciphertext produced by Seal. The passphrase
// buffer is read but not closed. The plaintext is returned in a
// secret.Buffer that the caller must close.
func Unseal(ciphertext []byte, passphrase *secret.Buffer) (*secret.Buffer, error) {
	identity, err := age.NewScryptIdentity(passphrase.String())
	if err != nil {
		return nil, fmt.Errorf("sealed: creating scrypt identity: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("sealed: decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("sealed: reading decrypted plaintext: %w", err)
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("sealed: decrypted plaintext is empty")
	}

	// NewFromBytes moves the plaintext into mmap-backed memory and
	// zeros the heap copy.
	buffer, err := secret.NewFromBytes(plaintext)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("sealed: protecting plaintext: %w", err)
	}
	return buffer, nil
}
