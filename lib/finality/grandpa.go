// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package finality

import (
	"context"
	"errors"
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/centrifuge/go-substrate-rpc-client/v4/xxhash"

	"github.com/ChainSafe/bridge-relay/lib/grandpa"
	"github.com/ChainSafe/bridge-relay/lib/relay"
	"github.com/ChainSafe/bridge-relay/lib/substrate"
)

var (
	// ErrGuessInitialAuthorities is returned when no authority set id
	// verifies the bootstrap justification within the header-number bound.
	ErrGuessInitialAuthorities = errors.New("failed to guess initial authority set id")

	// ErrUnsupportedScheduledChangeDelay is returned when the bootstrap
	// header schedules an authority set change with a non-zero delay.
	ErrUnsupportedScheduledChangeDelay = errors.New("unsupported non-zero scheduled change delay")

	// ErrUnsupportedForcedChange is returned when the bootstrap header
	// carries a forced authority set change.
	ErrUnsupportedForcedChange = errors.New("unsupported forced authority set change")
)

// Storage items of the bridge GRANDPA pallet.
const (
	bestFinalizedItem       = "BestFinalized"
	operatingModeItem       = "PalletOperatingMode"
	currentAuthoritySetItem = "CurrentAuthoritySet"
)

// Grandpa is the GRANDPA implementation of Engine. PalletPrefix is the
// name of the bridge GRANDPA pallet instance on the target chain.
type Grandpa struct {
	PalletPrefix string
}

// NewGrandpa returns a GRANDPA engine reading the given pallet instance.
func NewGrandpa(palletPrefix string) *Grandpa {
	return &Grandpa{PalletPrefix: palletPrefix}
}

func (g *Grandpa) storageKey(item string) types.StorageKey {
	key := xxhash.New128([]byte(g.PalletPrefix)).Sum(nil)
	key = append(key, xxhash.New128([]byte(item)).Sum(nil)...)
	return types.StorageKey(key)
}

// IsInitialized probes the pallet's BestFinalized storage for presence.
// The value itself is not decoded.
func (g *Grandpa) IsInitialized(target ChainClient) (bool, error) {
	raw, err := target.RawStorageValueLatest(g.storageKey(bestFinalizedItem))
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}

// IsHalted reads the pallet's operating mode. An unoccupied storage entry
// means the pallet was never explicitly halted, so it reads as operational.
func (g *Grandpa) IsHalted(target ChainClient) (bool, error) {
	raw, err := target.RawStorageValueLatest(g.storageKey(operatingModeItem))
	if err != nil {
		return false, err
	}
	if len(raw) == 0 {
		return false, nil
	}
	return OperatingMode(raw[0]) == OperatingModeHalted, nil
}

// FinalityProofs opens the source chain's justification stream.
func (g *Grandpa) FinalityProofs(ctx context.Context, source ChainClient) (substrate.JustificationStream, error) {
	return source.SubscribeJustifications(ctx)
}

// ProofTarget returns the header the justification finalizes.
func (g *Grandpa) ProofTarget(proof []byte) (relay.HeaderID, error) {
	justification, err := grandpa.Decode(proof)
	if err != nil {
		return relay.HeaderID{}, err
	}
	return justification.Target(), nil
}

// currentAuthoritySet reads the authority set the target pallet currently
// verifies against.
func (g *Grandpa) currentAuthoritySet(target ChainClient) (*grandpa.AuthoritySet, error) {
	raw, err := target.RawStorageValueLatest(g.storageKey(currentAuthoritySetItem))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("authority set not found in pallet %s", g.PalletPrefix)
	}

	set := new(grandpa.AuthoritySet)
	if err := codec.Decode(raw, set); err != nil {
		return nil, fmt.Errorf("decoding authority set: %w", err)
	}
	return set, nil
}

// OptimizeProof strips redundant precommits and ancestry headers from the
// justification, validating against the authority set the target currently
// knows. Any failure returns the proof unchanged: the set may have changed
// between selection and submission, and the target's own verification is
// authoritative.
func (g *Grandpa) OptimizeProof(target ChainClient, header relay.HeaderID, proof []byte) []byte {
	set, err := g.currentAuthoritySet(target)
	if err != nil {
		logger.Warn("skipping proof optimization", "header", header, "err", err)
		return proof
	}

	justification, err := grandpa.Decode(proof)
	if err != nil {
		logger.Warn("skipping proof optimization", "header", header, "err", err)
		return proof
	}
	if justification.Target() != header {
		logger.Warn("skipping proof optimization: justification targets different header",
			"header", header, "target", justification.Target())
		return proof
	}

	optimized, err := justification.Optimize(set.SetID, set.Authorities)
	if err != nil {
		logger.Warn("skipping proof optimization", "header", header, "err", err)
		return proof
	}

	encoded, err := optimized.Encode()
	if err != nil {
		logger.Warn("skipping proof optimization", "header", header, "err", err)
		return proof
	}
	return encoded
}

// PrepareInitializationData reconstructs the source chain's current
// authority set id from first principles: it waits for a live
// justification and brute-forces the set id that verifies it, instead of
// trusting the chain's own set counter.
func (g *Grandpa) PrepareInitializationData(ctx context.Context, source ChainClient) (*InitializationData, error) {
	justification, err := waitJustification(ctx, source)
	if err != nil {
		return nil, err
	}
	target := justification.Target()
	logger.Info("bootstrapping from justification", "block", target.Number, "hash", target.Hash)

	header, err := source.HeaderByHash(target.Hash)
	if err != nil {
		return nil, err
	}
	authorities, err := source.GrandpaAuthorities(target.Hash)
	if err != nil {
		return nil, err
	}

	if forced, err := grandpa.FindForcedChange(header); err != nil {
		return nil, err
	} else if forced != nil {
		return nil, ErrUnsupportedForcedChange
	}

	scheduled, err := grandpa.FindScheduledChange(header)
	if err != nil {
		return nil, err
	}

	// A change scheduled at the initial header takes effect only after
	// it, so the justification itself is signed by the parent's set.
	verifyAuthorities := authorities
	if scheduled != nil {
		if scheduled.Delay != 0 {
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedScheduledChangeDelay, scheduled.Delay)
		}
		verifyAuthorities, err = source.GrandpaAuthorities(header.ParentHash)
		if err != nil {
			return nil, err
		}
	}

	setID, err := guessSetID(justification, verifyAuthorities, target.Number)
	if err != nil {
		return nil, err
	}
	if scheduled != nil {
		setID++
	}

	return &InitializationData{
		Header:        header,
		AuthorityList: authorities,
		SetID:         setID,
		OperatingMode: OperatingModeNormal,
	}, nil
}

// waitJustification blocks until the source emits its next justification.
// Any already-known head is deliberately not used: only a live proof pins
// down a verifiable (header, set) pair.
func waitJustification(ctx context.Context, source ChainClient) (*grandpa.Justification, error) {
	stream, err := source.SubscribeJustifications(ctx)
	if err != nil {
		return nil, err
	}
	defer stream.Unsubscribe()

	select {
	case raw, ok := <-stream.Justifications():
		if !ok {
			return nil, relay.WrapConnectionError(errors.New("justification stream closed"))
		}
		return grandpa.Decode(raw)
	case err := <-stream.Err():
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// guessSetID linearly probes set ids starting from zero until one verifies
// the justification. There cannot have been more set changes than blocks,
// so the probe is bounded by the justified header's number.
func guessSetID(justification *grandpa.Justification, authorities grandpa.AuthorityList, bound uint32) (uint64, error) {
	for candidate := uint64(0); candidate <= uint64(bound); candidate++ {
		if err := justification.Verify(candidate, authorities); err == nil {
			logger.Debug("guessed authority set id", "set_id", candidate)
			return candidate, nil
		}
	}
	return 0, fmt.Errorf("%w: no candidate below %d verifies", ErrGuessInitialAuthorities, bound)
}
