// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides deterministic CBOR encoding for the on-disk
// client state cache. Same logical state always produces identical
// bytes, which keeps the cache checksum stable across rewrites of
// unchanged state.
package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items.
var encMode cbor.EncMode

// decMode is the CBOR decoder configured to accept standard CBOR.
// Unknown fields are silently ignored for forward compatibility with
// cache files written by newer versions.
var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// ref.RoomID, ref.UserID, and the other identifier types carry
	// their value in an unexported field and expose it through
	// encoding.TextMarshaler. Without this setting they would encode
	// as empty CBOR maps.
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// When the decode target is any (e.g., opaque event content),
		// produce map[string]any rather than the CBOR default
		// map[interface{}]interface{}, which encoding/json and most Go
		// code cannot work with. Struct field decoding is unaffected.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		// Mirror of TextMarshaler above for round-trip correctness.
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
