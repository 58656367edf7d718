// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package beefy verifies BEEFY signed commitments and MMR inclusion
// proofs against the roots they commit to.
package beefy

import (
	"fmt"

	log "github.com/ChainSafe/log15"
	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var logger = log.New("pkg", "beefy")

// MMRRootID is the payload id under which a commitment carries an MMR
// root.
var MMRRootID = [2]byte{'m', 'h'}

// PayloadItem is one id-tagged entry of a commitment payload.
type PayloadItem struct {
	ID   [2]byte
	Data []byte
}

// Payload is the ordered list of things a commitment commits to.
type Payload []PayloadItem

// Get returns the data stored under the given id, or nil if absent.
func (p Payload) Get(id [2]byte) []byte {
	for _, item := range p {
		if item.ID == id {
			return item.Data
		}
	}
	return nil
}

// Commitment is the statement a BEEFY validator set signs about a
// finalized block.
type Commitment struct {
	Payload        Payload
	BlockNumber    uint32
	ValidatorSetID uint64
}

// Hash returns the keccak256 digest of the SCALE-encoded commitment,
// which is what validators sign.
func (c *Commitment) Hash() ([]byte, error) {
	encoded, err := codec.Encode(c)
	if err != nil {
		return nil, fmt.Errorf("encoding commitment: %w", err)
	}
	return ethcrypto.Keccak256(encoded), nil
}

// Signature is a 65-byte recoverable ECDSA signature over the commitment
// hash.
type Signature [65]byte

// OptionalSignature is a SCALE Option<Signature>: one slot of a signed
// commitment's signature vector.
type OptionalSignature struct {
	HasValue bool
	Value    Signature
}

// Encode implements scale.Encodeable.
func (o OptionalSignature) Encode(encoder scale.Encoder) error {
	return encoder.EncodeOption(o.HasValue, o.Value)
}

// Decode implements scale.Decodeable.
func (o *OptionalSignature) Decode(decoder scale.Decoder) error {
	return decoder.DecodeOption(&o.HasValue, &o.Value)
}

// SignedCommitment pairs a commitment with the validator signatures,
// indexed by validator position. An empty slot means that validator did
// not sign.
type SignedCommitment struct {
	Commitment Commitment
	Signatures []OptionalSignature
}
