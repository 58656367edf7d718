// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package beefy

import "errors"

var (
	// ErrInvalidCommitmentValidatorSetID is returned when a commitment
	// claims a different validator set than the one verifying it.
	ErrInvalidCommitmentValidatorSetID = errors.New("commitment is signed by unexpected validator set")

	// ErrInvalidCommitmentSignaturesLen is returned when the signature
	// vector length does not match the validator set size.
	ErrInvalidCommitmentSignaturesLen = errors.New("commitment signatures length does not match validator set")

	// ErrMMRRootMissingFromCommitment is returned when the commitment
	// payload carries no usable MMR root.
	ErrMMRRootMissingFromCommitment = errors.New("mmr root is missing from commitment payload")

	// ErrMMRProofVerificationFailed is returned when an MMR proof does not
	// reconstruct the committed root.
	ErrMMRProofVerificationFailed = errors.New("mmr proof verification failed")
)
