// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package validator

import (
	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/merkle"
	"github.com/bitmark-inc/platformd/util"
)

// StateID - the state snapshot a commit signs
type StateID struct {
	AppVersion            uint64
	CoreChainLockedHeight uint32
	Time                  uint64 // milliseconds
	AppHash               merkle.Digest
	Height                uint64
}

func (s *StateID) pack(buffer []byte) []byte {
	buffer = util.AppendVarint64(buffer, s.AppVersion)
	buffer = util.AppendVarint64(buffer, uint64(s.CoreChainLockedHeight))
	buffer = util.AppendVarint64(buffer, s.Time)
	buffer = append(buffer, s.AppHash[:]...)
	return util.AppendVarint64(buffer, s.Height)
}

// Commit - a threshold signed block commit
type Commit struct {
	ChainID    string
	Height     uint64
	Round      uint32
	BlockID    merkle.Digest
	StateID    StateID
	QuorumHash QuorumHash
	Signature  []byte
}

// SignBytes - the canonical byte string the quorum signs
//
// this layout is the external ABI shared with the consensus engine;
// reordering any field breaks every previously signed commit
func (c *Commit) SignBytes() []byte {
	buffer := make([]byte, 0, 128)
	buffer = util.AppendString(buffer, c.ChainID)
	buffer = util.AppendVarint64(buffer, c.Height)
	buffer = util.AppendVarint64(buffer, uint64(c.Round))
	buffer = append(buffer, c.BlockID[:]...)
	return c.StateID.pack(buffer)
}

// Verify - check the threshold signature against the signing quorum
//
// the quorum is looked up among current and recent sets; a commit by
// a set that has already aged out of the recent map is rejected
func (c *Commit) Verify(rotation *Rotation, bls BLSVerifier) error {
	set, err := rotation.Lookup(c.QuorumHash)
	if nil != err {
		return err
	}
	err = bls.Verify(set.ThresholdPublicKey, c.SignBytes(), c.Signature)
	if nil != err {
		return fault.ErrBadCommitSignature
	}
	return nil
}
