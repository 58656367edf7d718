// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package ed25519 wraps the standard library ed25519 implementation with
// the fixed-size key and signature types used by GRANDPA.
package ed25519

import (
	ed25519 "crypto/ed25519"
	"errors"
	"fmt"
)

const (
	// PublicKeyLength is the expected public key length.
	PublicKeyLength = 32
	// SignatureLength is the expected signature length.
	SignatureLength = 64
)

// ErrBadPublicKeyLength is returned when building a key from a byte slice
// of the wrong size.
var ErrBadPublicKeyLength = errors.New("bad ed25519 public key length")

// PublicKey is an ed25519 public key.
type PublicKey [PublicKeyLength]byte

// NewPublicKey builds a PublicKey from raw bytes.
func NewPublicKey(in []byte) (*PublicKey, error) {
	if len(in) != PublicKeyLength {
		return nil, fmt.Errorf("%w: %d", ErrBadPublicKeyLength, len(in))
	}

	pub := new(PublicKey)
	copy(pub[:], in)
	return pub, nil
}

// Verify reports whether sig is a valid signature of msg by pub.
func (pub *PublicKey) Verify(msg, sig []byte) bool {
	if len(sig) != SignatureLength {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig)
}

// Verify checks an ed25519 signature given raw key and signature bytes.
// It satisfies crypto.SigVerifyFunc.
func Verify(pubkey, sig, msg []byte) (bool, error) {
	pub, err := NewPublicKey(pubkey)
	if err != nil {
		return false, err
	}
	return pub.Verify(msg, sig), nil
}
