// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package mmr implements a Merkle Mountain Range: a persistent,
// append-only accumulator allowing efficient inclusion proofs for any
// leaf ever added to it.
package mmr

import (
	"errors"
	"hash"
	"math/bits"
)

var (
	errInconsistentStore = errors.New("inconsistent store")
	errGetRootOnEmpty    = errors.New("get root on empty MMR")
)

// MMRElement is an alias to easily change the MMR element type if needed.
type MMRElement []byte

// MMRStorage persists MMR nodes by position.
type MMRStorage interface {
	getElement(pos uint64) (*MMRElement, error)
	append(pos uint64, elements []MMRElement) error
}

// MMR is an append-only Merkle Mountain Range over the given storage.
// Not safe for concurrent use.
type MMR struct {
	size    uint64
	storage MMRStorage
	hasher  hash.Hash
}

// NewMMR returns an MMR of the given size (node count) backed by storage.
func NewMMR(size uint64, storage MMRStorage, hasher hash.Hash) *MMR {
	return &MMR{
		size:    size,
		storage: storage,
		hasher:  hasher,
	}
}

// LeafCount returns the number of leaves pushed so far.
func (mmr *MMR) LeafCount() uint64 {
	return leafCountForSize(mmr.size)
}

// Push adds a new leaf to the MMR returning its position.
func (mmr *MMR) Push(leaf MMRElement) (uint64, error) {
	elements := []MMRElement{leaf}
	peakMap := peakMapForSize(mmr.size)
	elemPosition := mmr.size
	position := mmr.size
	peak := uint64(1)

	for (peakMap & peak) != 0 {
		peak <<= 1
		position++
		leftPosition := position - peak
		leftElement, err := mmr.findElement(leftPosition, elements)
		if err != nil {
			return 0, err
		}

		rightElement := elements[len(elements)-1]
		elements = append(elements, merge(mmr.hasher, leftElement, rightElement))
	}

	if err := mmr.storage.append(elemPosition, elements); err != nil {
		return 0, err
	}

	mmr.size = position + 1
	return elemPosition, nil
}

// Root returns the root of the MMR by bagging its peaks.
func (mmr *MMR) Root() (MMRElement, error) {
	if mmr.size == 0 {
		return nil, errGetRootOnEmpty
	} else if mmr.size == 1 {
		root, err := mmr.storage.getElement(0)
		if err != nil || root == nil {
			return nil, errInconsistentStore
		}
		return *root, nil
	}

	peaks := make([]MMRElement, 0)
	for _, pos := range peaksForSize(mmr.size) {
		peak, err := mmr.storage.getElement(pos)
		if err != nil || peak == nil {
			return nil, errInconsistentStore
		}
		peaks = append(peaks, *peak)
	}

	return bagPeaks(mmr.hasher, peaks), nil
}

func (mmr *MMR) findElement(position uint64, values []MMRElement) (MMRElement, error) {
	if position > mmr.size {
		positionOffset := position - mmr.size
		return values[positionOffset], nil
	}

	value, err := mmr.storage.getElement(position)
	if err != nil || value == nil {
		return nil, errInconsistentStore
	}

	return *value, nil
}

func merge(hasher hash.Hash, left, right MMRElement) MMRElement {
	hasher.Reset()
	hasher.Write(left)
	hasher.Write(right)
	return hasher.Sum(nil)
}

// bagPeaks folds the peaks right to left into a single root.
func bagPeaks(hasher hash.Hash, peaks []MMRElement) MMRElement {
	for len(peaks) > 1 {
		var rightPeak, leftPeak MMRElement
		rightPeak, peaks = peaks[len(peaks)-1], peaks[:len(peaks)-1]
		leftPeak, peaks = peaks[len(peaks)-1], peaks[:len(peaks)-1]
		peaks = append(peaks, merge(hasher, rightPeak, leftPeak))
	}

	if len(peaks) < 1 {
		return nil
	}
	return peaks[0]
}

// peakMapForSize returns a bitmap of the peaks present in an MMR of the
// given node count. Eg. 0b11 means peaks of height 1 and 0 are present.
func peakMapForSize(size uint64) uint64 {
	if size == 0 {
		return 0
	}

	pos := size
	peakSize := ^uint64(0) >> bits.LeadingZeros64(pos)
	peakMap := uint64(0)

	for peakSize > 0 {
		peakMap <<= 1
		if pos >= peakSize {
			pos -= peakSize
			peakMap |= 1
		}
		peakSize >>= 1
	}

	return peakMap
}

// peaksForSize returns the positions of the peaks in an MMR of the given
// node count, leftmost (highest) peak first.
func peaksForSize(size uint64) []uint64 {
	if size == 0 {
		return []uint64{}
	}

	pos := size
	peakSize := ^uint64(0) >> bits.LeadingZeros64(pos)
	peaks := make([]uint64, 0)
	peaksSum := uint64(0)
	for peakSize > 0 {
		if pos >= peakSize {
			pos -= peakSize
			peaks = append(peaks, peaksSum+peakSize-1)
			peaksSum += peakSize
		}
		peakSize >>= 1
	}

	return peaks
}

// leafIndexToPos returns the node position of the leaf with the given
// zero-based index.
func leafIndexToPos(index uint64) uint64 {
	return 2*index - uint64(bits.OnesCount64(index))
}

// sizeForLeafCount returns the node count of an MMR holding count leaves.
func sizeForLeafCount(count uint64) uint64 {
	if count == 0 {
		return 0
	}
	return 2*count - uint64(bits.OnesCount64(count))
}

func leafCountForSize(size uint64) uint64 {
	// bit h of the peak map marks a peak holding 1<<h leaves, so the map
	// read as an integer is exactly the leaf count
	return peakMapForSize(size)
}

// posHeight returns the height of the node at pos: 0 for leaves.
func posHeight(pos uint64) int {
	pos++
	for !allOnes(pos) {
		pos = jumpLeft(pos)
	}
	return bits.Len64(pos) - 1
}

func allOnes(n uint64) bool {
	return n != 0 && bits.OnesCount64(n) == bits.Len64(n)
}

func jumpLeft(pos uint64) uint64 {
	msb := uint64(1) << (bits.Len64(pos) - 1)
	return pos - (msb - 1)
}
