// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package grandpa

import (
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
)

// GrandpaEngineID is the `FRNK` consensus engine id, read as a
// little-endian u32.
const GrandpaEngineID = types.ConsensusEngineID(0x4b4e5246)

const (
	scheduledChangeIndex byte = 1
	forcedChangeIndex    byte = 2
)

// ScheduledChange schedules an authority set change after the given number
// of blocks have been finalized.
type ScheduledChange struct {
	NextAuthorities AuthorityList
	Delay           uint32
}

// ForcedChange applies an authority set change immediately, without
// waiting for finalization of the announcing block.
type ForcedChange struct {
	Median uint32
	Change ScheduledChange
}

// FindScheduledChange returns the scheduled authority set change announced
// in the header's digest, or nil if there is none.
func FindScheduledChange(header *types.Header) (*ScheduledChange, error) {
	payload, found := findGrandpaLog(header, scheduledChangeIndex)
	if !found {
		return nil, nil
	}

	change := new(ScheduledChange)
	if err := scaleDecode(payload, change); err != nil {
		return nil, fmt.Errorf("decoding scheduled change: %w", err)
	}
	return change, nil
}

// FindForcedChange returns the forced authority set change announced in
// the header's digest, or nil if there is none.
func FindForcedChange(header *types.Header) (*ForcedChange, error) {
	payload, found := findGrandpaLog(header, forcedChangeIndex)
	if !found {
		return nil, nil
	}

	change := new(ForcedChange)
	if err := scaleDecode(payload, change); err != nil {
		return nil, fmt.Errorf("decoding forced change: %w", err)
	}
	return change, nil
}

func findGrandpaLog(header *types.Header, variant byte) (payload []byte, found bool) {
	for _, item := range header.Digest {
		if !item.IsConsensus {
			continue
		}
		if item.AsConsensus.ConsensusEngineID != GrandpaEngineID {
			continue
		}

		log := []byte(item.AsConsensus.Bytes)
		if len(log) == 0 || log[0] != variant {
			continue
		}
		return log[1:], true
	}
	return nil, false
}
