// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package grandpa

import "errors"

// ErrEmptyAuthorityList is returned when verifying against an authority
// set with no members.
var ErrEmptyAuthorityList = errors.New("authority list is empty")

// ErrAuthoritySetRegression is returned when an authority set update does
// not strictly increase the set id.
var ErrAuthoritySetRegression = errors.New("authority set id did not increase")

// ErrInvalidPrecommitAncestry is returned when a precommit target cannot be
// routed to the commit target through the votes-ancestries headers.
var ErrInvalidPrecommitAncestry = errors.New("invalid precommit ancestry in justification")

// ErrRedundantVotesAncestries is returned when the justification carries
// ancestry headers no precommit route uses.
var ErrRedundantVotesAncestries = errors.New("redundant votes ancestries in justification")
