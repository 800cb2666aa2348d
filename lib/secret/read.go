// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"golang.org/x/term"
)

// ReadFromPath reads a secret from a file path, or from stdin if path
// is "-". Leading and trailing whitespace is trimmed. The returned
// buffer must be closed by the caller.
func ReadFromPath(path string) (*Buffer, error) {
	var data []byte

	if path == "-" {
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, fmt.Errorf("reading stdin: %w", err)
			}
			return nil, fmt.Errorf("stdin is empty")
		}
		data = scanner.Bytes()
	} else {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		Zero(data)
		return nil, fmt.Errorf("secret is empty")
	}

	// NewFromBytes copies into mmap-backed memory and zeros trimmed.
	buffer, err := NewFromBytes(trimmed)
	Zero(data)
	if err != nil {
		return nil, err
	}
	return buffer, nil
}

// ReadPassword prompts on the controlling terminal and reads a line
// with echo disabled. The prompt goes to stderr so it works even when
// stdout is redirected. The returned buffer must be closed by the
// caller.
func ReadPassword(prompt string) (*Buffer, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("password is empty")
	}
	// NewFromBytes zeros raw.
	return NewFromBytes(raw)
}
