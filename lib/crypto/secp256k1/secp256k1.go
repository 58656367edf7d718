// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package secp256k1 wraps go-ethereum's secp256k1 recovery for the
// 65-byte ECDSA signatures used by BEEFY commitments.
package secp256k1

import (
	"errors"
	"fmt"

	secp256k1 "github.com/ethereum/go-ethereum/crypto"
)

const (
	// CompressedPublicKeyLength is the length of a compressed public key.
	CompressedPublicKeyLength = 33
	// SignatureLength is the length of an (r, s, v) recovery signature.
	SignatureLength = 65
)

// ErrBadSignatureLength is returned for signatures that are not 65 bytes.
var ErrBadSignatureLength = errors.New("bad secp256k1 signature length")

// RecoverCompressedPublicKey recovers the compressed public key that
// produced sig over the 32-byte message digest. Recovery ids of both the
// 0/1 and the legacy 27/28 form are accepted.
func RecoverCompressedPublicKey(digest, sig []byte) ([]byte, error) {
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("%w: %d", ErrBadSignatureLength, len(sig))
	}

	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	pub, err := secp256k1.SigToPub(digest, normalized)
	if err != nil {
		return nil, fmt.Errorf("recovering public key: %w", err)
	}

	return secp256k1.CompressPubkey(pub), nil
}
