// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package relay

import (
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"golang.org/x/crypto/blake2b"
)

// HeaderID identifies a point on a chain by block number and hash.
// Two ids are ordered by number and equal only if both fields match.
type HeaderID struct {
	Number uint32
	Hash   types.Hash
}

func (id HeaderID) String() string {
	return fmt.Sprintf("#%d (%s)", id.Number, id.Hash.Hex())
}

// HeaderHash returns the blake2b-256 hash of the SCALE-encoded header.
func HeaderHash(header *types.Header) (types.Hash, error) {
	encoded, err := codec.Encode(header)
	if err != nil {
		return types.Hash{}, fmt.Errorf("encoding header: %w", err)
	}
	return types.NewHash(blake2bSum(encoded)), nil
}

// HeaderIDOf builds a HeaderID for the given header.
func HeaderIDOf(header *types.Header) (HeaderID, error) {
	hash, err := HeaderHash(header)
	if err != nil {
		return HeaderID{}, err
	}
	return HeaderID{Number: uint32(header.Number), Hash: hash}, nil
}

func blake2bSum(data []byte) []byte {
	sum := blake2b.Sum256(data)
	return sum[:]
}

// ClientState is a snapshot of one chain client's view used by the relay
// loops: its own best and best finalized blocks, plus the best finalized
// block of the bridged (peer) chain as known at the client's best block.
type ClientState struct {
	BestSelf          HeaderID
	BestFinalizedSelf HeaderID
	// BestFinalizedPeerAtBestSelf is nil until the bridge pallet at this
	// chain has been initialized with at least one peer header.
	BestFinalizedPeerAtBestSelf *HeaderID
}

// LaneID identifies a unidirectional message channel between two chains.
type LaneID [4]byte

func (l LaneID) String() string {
	return fmt.Sprintf("%#x", l[:])
}
