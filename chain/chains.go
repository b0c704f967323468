// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

// names of all chains
const (
	Platform = "platform"
	Testing  = "testing"
	Local    = "local"
)

// Parameters - per chain consensus constants
type Parameters struct {
	EpochSpan       uint64 // epoch window in milliseconds
	BlockTimeWindow uint64 // symmetric timestamp validation window in milliseconds
	QuorumType      uint32 // anchor chain quorum type used for platform commits
}

// per chain parameter table
var parameters = map[string]Parameters{
	Platform: {
		EpochSpan:       18 * 24 * 60 * 60 * 1000, // 18 days
		BlockTimeWindow: 5 * 60 * 1000,            // ±5 minutes
		QuorumType:      100,
	},
	Testing: {
		EpochSpan:       60 * 60 * 1000, // 1 hour
		BlockTimeWindow: 5 * 60 * 1000,
		QuorumType:      106,
	},
	Local: {
		EpochSpan:       20 * 60 * 1000, // 20 minutes
		BlockTimeWindow: 5 * 60 * 1000,
		QuorumType:      100,
	},
}

// Valid - validate a chain name
func Valid(name string) bool {
	switch name {
	case Platform, Testing, Local:
		return true
	default:
		return false
	}
}

// Get - the parameters for a chain
//
// second value is false for an unknown chain name
func Get(name string) (Parameters, bool) {
	p, ok := parameters[name]
	return p, ok
}
