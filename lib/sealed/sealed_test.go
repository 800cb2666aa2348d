// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"testing"

	"github.com/bureau-foundation/foyer/lib/secret"
)

func testPassphrase(t *testing.T, value string) *secret.Buffer {
	t.Helper()
	buffer, err := secret.NewFromString(value)
	if err != nil {
		t.Fatalf("creating passphrase buffer: %v", err)
	}
	t.Cleanup(func() { buffer.Close() })
	return buffer
}

func TestSealUnsealRoundTrip(t *testing.T) {
	passphrase := testPassphrase(t, "correct horse battery staple")
	plaintext := []byte(`{"user_id":"@alice:example.org","access_token":"syt_abc"}`)

	ciphertext, err := Seal(plaintext, passphrase)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(ciphertext, []byte("syt_abc")) {
		t.Fatal("ciphertext contains plaintext token")
	}

	recovered, err := Unseal(ciphertext, passphrase)
	if err != nil {
		t.Fatalf("Unseal: %v", err)
	}
	defer recovered.Close()

	if !bytes.Equal(recovered.Bytes(), plaintext) {
		t.Errorf("round trip mismatch: got %q", recovered.Bytes())
	}
}

func TestUnsealWrongPassphrase(t *testing.T) {
	ciphertext, err := Seal([]byte("secret"), testPassphrase(t, "right"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := Unseal(ciphertext, testPassphrase(t, "wrong")); err == nil {
		t.Error("expected error unsealing with wrong passphrase")
	}
}

func TestUnsealGarbage(t *testing.T) {
	if _, err := Unseal([]byte("not an age file"), testPassphrase(t, "pw")); err == nil {
		t.Error("expected error unsealing garbage")
	}
}
