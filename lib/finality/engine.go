// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package finality bridges a source chain's finality to a target chain:
// it abstracts the consensus engine behind the Engine interface, provides
// the GRANDPA implementation and drives the justification sync loop.
package finality

import (
	"context"

	log "github.com/ChainSafe/log15"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"

	"github.com/ChainSafe/bridge-relay/lib/grandpa"
	"github.com/ChainSafe/bridge-relay/lib/relay"
	"github.com/ChainSafe/bridge-relay/lib/substrate"
)

var logger = log.New("pkg", "finality")

// ChainClient is the read capability the engine needs from a chain.
// *substrate.Client satisfies it.
type ChainClient interface {
	HeaderByHash(hash types.Hash) (*types.Header, error)
	GrandpaAuthorities(hash types.Hash) (grandpa.AuthorityList, error)
	RawStorageValue(key types.StorageKey, hash types.Hash) ([]byte, error)
	RawStorageValueLatest(key types.StorageKey) ([]byte, error)
	SubscribeJustifications(ctx context.Context) (substrate.JustificationStream, error)
}

// OperatingMode is the bridge pallet's operating mode.
type OperatingMode uint8

const (
	// OperatingModeNormal accepts all transactions.
	OperatingModeNormal OperatingMode = iota
	// OperatingModeHalted rejects all transactions.
	OperatingModeHalted
)

// InitializationData is everything the target pallet needs to start
// verifying the source chain's finality. It is produced once by
// PrepareInitializationData; afterwards the pallet's own storage is the
// source of truth.
type InitializationData struct {
	Header        *types.Header
	AuthorityList grandpa.AuthorityList
	SetID         uint64
	OperatingMode OperatingMode
}

// Engine abstracts the finality scheme of the bridged chain, so the sync
// loop is written once and the consensus-specific logic is swapped
// wholesale.
type Engine interface {
	// IsInitialized probes whether the target pallet holds any finalized
	// header of the source chain.
	IsInitialized(target ChainClient) (bool, error)
	// IsHalted reports whether the target pallet rejects transactions. An
	// absent operating-mode value reads as not halted.
	IsHalted(target ChainClient) (bool, error)
	// FinalityProofs opens the source chain's stream of encoded finality
	// proofs.
	FinalityProofs(ctx context.Context, source ChainClient) (substrate.JustificationStream, error)
	// ProofTarget returns the header a raw finality proof finalizes.
	ProofTarget(proof []byte) (relay.HeaderID, error)
	// OptimizeProof strips the proof down to what the target needs to
	// accept it. Optimization failures are tolerated: the original proof
	// is returned and the target chain's verification stays authoritative.
	OptimizeProof(target ChainClient, header relay.HeaderID, proof []byte) []byte
	// PrepareInitializationData bootstraps the pallet initialization data
	// from the source chain's live finality stream.
	PrepareInitializationData(ctx context.Context, source ChainClient) (*InitializationData, error)
}
