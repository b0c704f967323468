// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package genesis - fixed chain starting points
//
// One block zero record per chain.  The genesis time anchors the
// epoch calendar, the core height anchors masternode diff requests,
// so these values are compiled in and never configurable.
package genesis

import (
	"github.com/bitmark-inc/platformd/chain"
	"github.com/bitmark-inc/platformd/protocol"
)

// Block - the compiled in block zero of one chain
type Block struct {
	ChainID         string
	Time            uint64 // milliseconds since epoch
	ProtocolVersion uint32
	CoreHeight      uint32 // anchor chain height at platform launch
}

// per chain genesis table
var blocks = map[string]Block{
	chain.Platform: {
		ChainID: "platform-main",
		// date -u -r 1721865600 '+%FT%TZ'
		// 2024-07-25T00:00:00Z
		Time:            1721865600000,
		ProtocolVersion: protocol.MinimalSupportedVersion,
		CoreHeight:      2100000,
	},
	chain.Testing: {
		ChainID:         "platform-test",
		Time:            1718150400000, // 2024-06-12T00:00:00Z
		ProtocolVersion: protocol.MinimalSupportedVersion,
		CoreHeight:      900000,
	},
	chain.Local: {
		ChainID:         "platform-local",
		Time:            1700000000000,
		ProtocolVersion: protocol.MinimalSupportedVersion,
		CoreHeight:      1000,
	},
}

// Get - the genesis block for a chain
//
// second value is false for an unknown chain name
func Get(chainName string) (Block, bool) {
	b, ok := blocks[chainName]
	return b, ok
}
