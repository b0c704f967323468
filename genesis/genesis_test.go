// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package genesis_test

import (
	"testing"

	"github.com/bitmark-inc/platformd/chain"
	"github.com/bitmark-inc/platformd/genesis"
	"github.com/bitmark-inc/platformd/protocol"
)

// every chain name must have a usable genesis record
func TestGenesisCoverage(t *testing.T) {
	chainIDs := map[string]struct{}{}
	for _, name := range []string{chain.Platform, chain.Testing, chain.Local} {
		b, ok := genesis.Get(name)
		if !ok {
			t.Fatalf("missing genesis block for chain: %s", name)
		}
		if "" == b.ChainID {
			t.Fatalf("empty chain id for chain: %s", name)
		}
		if _, duplicate := chainIDs[b.ChainID]; duplicate {
			t.Fatalf("duplicated chain id: %s", b.ChainID)
		}
		chainIDs[b.ChainID] = struct{}{}

		if 0 == b.Time {
			t.Fatalf("zero genesis time for chain: %s", name)
		}
		if b.ProtocolVersion < protocol.MinimalSupportedVersion ||
			b.ProtocolVersion > protocol.LatestVersion {
			t.Fatalf("unsupported genesis protocol version: %d", b.ProtocolVersion)
		}
		if 0 == b.CoreHeight {
			t.Fatalf("zero genesis core height for chain: %s", name)
		}
	}
}

func TestGenesisUnknownChain(t *testing.T) {
	if _, ok := genesis.Get("nonesuch"); ok {
		t.Fatal("unexpected genesis block for unknown chain")
	}
}

// the epoch calendar derives from the genesis time so every chain
// with a genesis block must also carry consensus parameters
func TestGenesisHasParameters(t *testing.T) {
	for _, name := range []string{chain.Platform, chain.Testing, chain.Local} {
		p, ok := chain.Get(name)
		if !ok {
			t.Fatalf("missing chain parameters: %s", name)
		}
		if 0 == p.EpochSpan || 0 == p.BlockTimeWindow {
			t.Fatalf("incomplete chain parameters: %s", name)
		}
	}
}
