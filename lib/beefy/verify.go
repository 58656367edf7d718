// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package beefy

import (
	"bytes"
	"fmt"

	"github.com/ChainSafe/bridge-relay/lib/crypto"
	"github.com/ChainSafe/bridge-relay/lib/crypto/secp256k1"
	"github.com/ChainSafe/bridge-relay/pkg/mmr"
	"golang.org/x/crypto/sha3"
)

// ValidatorSet is a BEEFY validator set: compressed ECDSA public keys and
// the set's generation id.
type ValidatorSet struct {
	Validators [][secp256k1.CompressedPublicKeyLength]byte
	ID         uint64
}

// verifyECDSA recovers the signer of a recoverable ECDSA signature over
// the digest and compares it against the expected compressed key.
func verifyECDSA(pubkey, sig, digest []byte) (bool, error) {
	recovered, err := secp256k1.RecoverCompressedPublicKey(digest, sig)
	if err != nil {
		return false, err
	}
	return bytes.Equal(recovered, pubkey), nil
}

// VerifyCommitment checks that the signed commitment was produced by the
// given validator set. The set id is matched before any signature is
// inspected, so callers can tell a stale validator set apart from bad
// signatures.
func VerifyCommitment(signed *SignedCommitment, validators *ValidatorSet) error {
	if signed.Commitment.ValidatorSetID != validators.ID {
		return fmt.Errorf("%w: commitment has %d, expected %d",
			ErrInvalidCommitmentValidatorSetID, signed.Commitment.ValidatorSetID, validators.ID)
	}
	if len(signed.Signatures) != len(validators.Validators) {
		return fmt.Errorf("%w: %d signatures for %d validators",
			ErrInvalidCommitmentSignaturesLen, len(signed.Signatures), len(validators.Validators))
	}

	digest, err := signed.Commitment.Hash()
	if err != nil {
		return err
	}

	keys := make([][]byte, len(validators.Validators))
	for i := range validators.Validators {
		keys[i] = validators.Validators[i][:]
	}
	signatures := make([][]byte, len(signed.Signatures))
	for i := range signed.Signatures {
		if signed.Signatures[i].HasValue {
			signatures[i] = signed.Signatures[i].Value[:]
		}
	}

	if err := crypto.VerifyThreshold(keys, signatures, digest, verifyECDSA); err != nil {
		return err
	}
	logger.Trace("verified commitment", "block", signed.Commitment.BlockNumber,
		"set_id", validators.ID)
	return nil
}

// VerifyMMRLeafProof checks that the leaf is included in the MMR whose
// root the commitment carries under MMRRootID.
func VerifyMMRLeafProof(commitment *Commitment, leaf []byte, proof *mmr.Proof) error {
	root := commitment.Payload.Get(MMRRootID)
	if len(root) != 32 {
		return ErrMMRRootMissingFromCommitment
	}
	if !proof.Verify(sha3.NewLegacyKeccak256(), root, leaf) {
		return ErrMMRProofVerificationFailed
	}
	return nil
}
