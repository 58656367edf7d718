// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package relay

import "fmt"

// InclusiveRange is a contiguous inclusive range of message nonces.
type InclusiveRange struct {
	Begin uint64
	End   uint64
}

// Len returns the number of nonces in the range, zero for an inverted range.
func (r InclusiveRange) Len() uint64 {
	if r.End < r.Begin {
		return 0
	}
	return r.End - r.Begin + 1
}

// Contains reports whether the nonce lies within the range.
func (r InclusiveRange) Contains(nonce uint64) bool {
	return nonce >= r.Begin && nonce <= r.End
}

func (r InclusiveRange) String() string {
	return fmt.Sprintf("%d..=%d", r.Begin, r.End)
}
