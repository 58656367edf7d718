// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package crypto holds the signature threshold contract shared by the
// GRANDPA justification and BEEFY commitment verifiers.
package crypto

import (
	"errors"

	log "github.com/ChainSafe/log15"
)

var logger = log.New("pkg", "crypto")

var (
	// ErrAuthoritiesSignaturesMismatch is returned when the signatures list
	// is not the same length as the authorities list. This is a structural
	// error in the input, never a tolerated one.
	ErrAuthoritiesSignaturesMismatch = errors.New("authorities and signatures count mismatch")

	// ErrNotEnoughCorrectSignatures is returned when fewer than
	// SignaturesRequired authorities produced a valid signature.
	ErrNotEnoughCorrectSignatures = errors.New("not enough correct signatures")
)

// SigVerifyFunc verifies a signature over msg for the given public key.
type SigVerifyFunc func(pubkey, sig, msg []byte) (bool, error)

// SignaturesRequired returns the number of valid signatures required to
// accept a commitment signed by n authorities: strictly more than 2/3,
// with ties broken toward requiring the extra signer.
//
// Note that SignaturesRequired(0) == 0, so an empty authority set is
// trivially satisfied. Callers verifying against sets that may legally be
// empty must reject them before calling VerifyThreshold.
func SignaturesRequired(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	return n - (n-1)/3
}

// VerifyThreshold checks that at least SignaturesRequired(len(authorities))
// of the given authorities signed msg. The signatures slice is parallel to
// authorities; a nil entry means the authority did not sign. Invalid
// signatures are skipped, not fatal: the commitment may carry garbage from
// some authorities and still be acceptable. Iteration stops as soon as the
// threshold is met.
func VerifyThreshold(authorities [][]byte, signatures [][]byte, msg []byte, verify SigVerifyFunc) error {
	if len(authorities) != len(signatures) {
		return ErrAuthoritiesSignaturesMismatch
	}

	remaining := SignaturesRequired(uint64(len(authorities)))
	for i, sig := range signatures {
		if remaining == 0 {
			break
		}
		if sig == nil {
			continue
		}

		ok, err := verify(authorities[i], sig, msg)
		if err != nil || !ok {
			logger.Debug("skipping invalid signature", "authority", i, "err", err)
			continue
		}
		remaining--
	}

	if remaining > 0 {
		return ErrNotEnoughCorrectSignatures
	}
	return nil
}
