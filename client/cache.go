// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/foyer/lib/codec"
	"github.com/bureau-foundation/foyer/state"
)

// cacheMagic identifies a Foyer state cache file and its format
// version. Bump the trailing digit on incompatible snapshot changes;
// an unrecognized magic is treated the same as a corrupt cache.
var cacheMagic = []byte("FOYERSC1")

// Cache persists state snapshots between runs: deterministic CBOR,
// zstd-compressed, with a BLAKE3 checksum so truncation or corruption
// is detected and the cache discarded instead of half-loaded. The
// cache is an optimization only — losing it costs one initial sync.
type Cache struct {
	path    string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCache creates a cache at the given file path.
func NewCache(path string) (*Cache, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("client: creating zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("client: creating zstd decoder: %w", err)
	}
	return &Cache{path: path, encoder: encoder, decoder: decoder}, nil
}

// Save writes a snapshot of the client state. The write goes through a
// temporary file and rename, so a crash mid-write leaves the previous
// cache intact.
func (c *Cache) Save(clientState *state.ClientState) error {
	encoded, err := codec.Marshal(clientState.TakeSnapshot())
	if err != nil {
		return fmt.Errorf("client: encoding state snapshot: %w", err)
	}
	compressed := c.encoder.EncodeAll(encoded, nil)

	checksum := blake3.Sum256(compressed)
	payload := make([]byte, 0, len(cacheMagic)+len(checksum)+len(compressed))
	payload = append(payload, cacheMagic...)
	payload = append(payload, checksum[:]...)
	payload = append(payload, compressed...)

	temp, err := os.CreateTemp(filepath.Dir(c.path), ".cache-*")
	if err != nil {
		return fmt.Errorf("client: creating cache temp file: %w", err)
	}
	tempPath := temp.Name()
	if _, err := temp.Write(payload); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("client: writing cache: %w", err)
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("client: closing cache temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0o600); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("client: setting cache permissions: %w", err)
	}
	if err := os.Rename(tempPath, c.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("client: replacing cache: %w", err)
	}
	return nil
}

// Load reads the cached state. A missing cache returns (nil, nil); a
// corrupt, truncated, or version-mismatched cache returns an error and
// the caller falls back to a fresh initial sync.
func (c *Cache) Load() (*state.ClientState, error) {
	payload, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("client: reading cache: %w", err)
	}

	headerLen := len(cacheMagic) + 32
	if len(payload) < headerLen {
		return nil, fmt.Errorf("client: cache truncated (%d bytes)", len(payload))
	}
	if !bytes.Equal(payload[:len(cacheMagic)], cacheMagic) {
		return nil, fmt.Errorf("client: cache has unknown format %q", payload[:len(cacheMagic)])
	}
	stored := payload[len(cacheMagic):headerLen]
	compressed := payload[headerLen:]
	checksum := blake3.Sum256(compressed)
	if !bytes.Equal(stored, checksum[:]) {
		return nil, fmt.Errorf("client: cache checksum mismatch")
	}

	encoded, err := c.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("client: decompressing cache: %w", err)
	}
	var snapshot state.Snapshot
	if err := codec.Unmarshal(encoded, &snapshot); err != nil {
		return nil, fmt.Errorf("client: decoding cache: %w", err)
	}
	restored, err := state.RestoreSnapshot(&snapshot)
	if err != nil {
		return nil, fmt.Errorf("client: restoring cached state: %w", err)
	}
	return restored, nil
}

// Remove deletes the cache file. Called at logout.
func (c *Cache) Remove() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("client: removing cache: %w", err)
	}
	return nil
}
