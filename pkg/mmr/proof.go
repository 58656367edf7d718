// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package mmr

import (
	"bytes"
	"errors"
	"fmt"
	"hash"
)

// ErrLeafOutOfRange is returned when a proof is requested or checked for a
// leaf index not covered by the MMR.
var ErrLeafOutOfRange = errors.New("leaf index out of range")

// Proof is an inclusion proof for a single leaf. Items holds the sibling
// hashes from the leaf up to its mountain peak, followed by the remaining
// peaks left to right.
type Proof struct {
	LeafIndex uint64
	LeafCount uint64
	Items     []MMRElement
}

// GenerateProof builds an inclusion proof for the leaf with the given
// zero-based index.
func (mmr *MMR) GenerateProof(leafIndex uint64) (*Proof, error) {
	leafCount := mmr.LeafCount()
	if leafIndex >= leafCount {
		return nil, fmt.Errorf("%w: index %d, have %d leaves", ErrLeafOutOfRange, leafIndex, leafCount)
	}

	peaks := peaksForSize(mmr.size)
	pos := leafIndexToPos(leafIndex)
	height := 0
	items := make([]MMRElement, 0)

	for !containsPos(peaks, pos) {
		var siblingPos uint64
		if posHeight(pos+1) > height {
			// pos is a right child
			siblingPos = pos - siblingOffset(height)
			pos++
		} else {
			siblingPos = pos + siblingOffset(height)
			pos += parentOffset(height)
		}

		sibling, err := mmr.storage.getElement(siblingPos)
		if err != nil || sibling == nil {
			return nil, errInconsistentStore
		}
		items = append(items, *sibling)
		height++
	}

	for _, peak := range peaks {
		if peak == pos {
			continue
		}
		element, err := mmr.storage.getElement(peak)
		if err != nil || element == nil {
			return nil, errInconsistentStore
		}
		items = append(items, *element)
	}

	return &Proof{
		LeafIndex: leafIndex,
		LeafCount: leafCount,
		Items:     items,
	}, nil
}

// Verify reports whether leaf is included under root for this proof.
// A malformed proof yields false, never an error, so attacker-controlled
// input cannot abort verification paths.
func (p *Proof) Verify(hasher hash.Hash, root, leaf MMRElement) bool {
	if p.LeafIndex >= p.LeafCount {
		return false
	}

	size := sizeForLeafCount(p.LeafCount)
	peaks := peaksForSize(size)
	pos := leafIndexToPos(p.LeafIndex)
	current := leaf
	height := 0
	next := 0

	for !containsPos(peaks, pos) {
		if next >= len(p.Items) {
			return false
		}
		sibling := p.Items[next]
		next++

		if posHeight(pos+1) > height {
			current = merge(hasher, sibling, current)
			pos++
		} else {
			current = merge(hasher, current, sibling)
			pos += parentOffset(height)
		}
		height++
	}

	assembled := make([]MMRElement, 0, len(peaks))
	for _, peak := range peaks {
		if peak == pos {
			assembled = append(assembled, current)
			continue
		}
		if next >= len(p.Items) {
			return false
		}
		assembled = append(assembled, p.Items[next])
		next++
	}
	if next != len(p.Items) {
		return false
	}

	return bytes.Equal(bagPeaks(hasher, assembled), root)
}

func siblingOffset(height int) uint64 {
	return (2 << height) - 1
}

func parentOffset(height int) uint64 {
	return 2 << height
}

func containsPos(peaks []uint64, pos uint64) bool {
	for _, peak := range peaks {
		if peak == pos {
			return true
		}
	}
	return false
}
