// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package platform

import (
	"sort"

	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/storage"
	"github.com/bitmark-inc/platformd/util"
	"github.com/bitmark-inc/platformd/validator"
)

// key of the chain tip record in the state pool
var chainStateKey = []byte("chain")

// saveChainState - persist the chain tip alongside the tree data
//
// written after every committed block so a restarted node resumes
// from its last height instead of reporting an empty chain; the
// record sits outside the authenticated tree because it is local
// bookkeeping, never part of the app hash
func saveChainState() {
	buffer := make([]byte, 0, 512)
	buffer = util.AppendVarint64(buffer, globalData.last.Height)
	buffer = util.AppendVarint64(buffer, globalData.last.Time)
	buffer = util.AppendVarint64(buffer, uint64(globalData.last.Epoch))
	buffer = append(buffer, globalData.last.AppHash[:]...)
	buffer = append(buffer, globalData.last.QuorumHash[:]...)
	buffer = util.AppendVarint64(buffer, uint64(globalData.last.Round))
	buffer = util.AppendBytes(buffer, globalData.last.Signature)
	buffer = util.AppendVarint64(buffer, uint64(globalData.coreHeight))

	proposers := make([]string, 0, len(globalData.blockCounts))
	for proposer := range globalData.blockCounts {
		proposers = append(proposers, proposer)
	}
	sort.Strings(proposers)
	buffer = util.AppendVarint64(buffer, uint64(len(proposers)))
	for _, proposer := range proposers {
		buffer = append(buffer, proposer...)
		buffer = util.AppendVarint64(buffer, globalData.blockCounts[proposer])
	}

	buffer = globalData.rotation.Current().Pack(buffer)
	if next := globalData.rotation.Next(); nil != next {
		buffer = append(buffer, 0x01)
		buffer = next.Pack(buffer)
	} else {
		buffer = append(buffer, 0x00)
	}

	storage.Pool.State.Put(chainStateKey, buffer)
}

// restoreChainState - load the persisted chain tip if one exists
//
// a missing record is a fresh store still waiting for InitChain; a
// record that will not parse is corruption and refuses startup
func restoreChainState() error {
	buffer := storage.Pool.State.Get(chainStateKey)
	if nil == buffer {
		return nil
	}

	last := LastBlock{}
	height, n := util.FromVarint64(buffer)
	if 0 == n {
		return fault.ErrCorruptedStorage
	}
	last.Height = height

	blockTime, m := util.FromVarint64(buffer[n:])
	if 0 == m {
		return fault.ErrCorruptedStorage
	}
	last.Time = blockTime
	n += m

	epoch, m := util.FromVarint64(buffer[n:])
	if 0 == m || epoch > maxEpoch {
		return fault.ErrCorruptedStorage
	}
	last.Epoch = uint16(epoch)
	n += m

	if len(buffer) < n+len(last.AppHash)+len(last.QuorumHash) {
		return fault.ErrCorruptedStorage
	}
	copy(last.AppHash[:], buffer[n:])
	n += len(last.AppHash)
	copy(last.QuorumHash[:], buffer[n:])
	n += len(last.QuorumHash)

	round, m := util.FromVarint64(buffer[n:])
	if 0 == m || round > 0xffffffff {
		return fault.ErrCorruptedStorage
	}
	last.Round = uint32(round)
	n += m

	signatureLength, m := util.ClippedVarint64(buffer[n:], 0, 256)
	if 0 == m {
		return fault.ErrCorruptedStorage
	}
	n += m
	if len(buffer) < n+signatureLength {
		return fault.ErrCorruptedStorage
	}
	if 0 != signatureLength {
		last.Signature = make([]byte, signatureLength)
		copy(last.Signature, buffer[n:n+signatureLength])
	}
	n += signatureLength

	coreHeight, m := util.FromVarint64(buffer[n:])
	if 0 == m || coreHeight > 0xffffffff {
		return fault.ErrCorruptedStorage
	}
	n += m

	count, m := util.FromVarint64(buffer[n:])
	if 0 == m {
		return fault.ErrCorruptedStorage
	}
	n += m
	blockCounts := make(map[string]uint64)
	proTxHashLength := len(validator.ProTxHash{})
	for i := uint64(0); i < count; i += 1 {
		if len(buffer) < n+proTxHashLength {
			return fault.ErrCorruptedStorage
		}
		proposer := string(buffer[n : n+proTxHashLength])
		n += proTxHashLength
		blocks, m := util.FromVarint64(buffer[n:])
		if 0 == m {
			return fault.ErrCorruptedStorage
		}
		blockCounts[proposer] = blocks
		n += m
	}

	current, m, err := validator.UnpackSet(buffer[n:])
	if nil != err {
		return err
	}
	n += m

	if len(buffer) < n+1 {
		return fault.ErrCorruptedStorage
	}
	rotation := validator.NewRotation(current)
	switch buffer[n] {
	case 0x00:
	case 0x01:
		next, _, err := validator.UnpackSet(buffer[n+1:])
		if nil != err {
			return err
		}
		rotation.SetNext(next)
	default:
		return fault.ErrCorruptedStorage
	}

	globalData.last = last
	globalData.coreHeight = uint32(coreHeight)
	globalData.blockCounts = blockCounts
	globalData.rotation = rotation
	globalData.log.Infof("resuming at height: %d  app hash: %v", last.Height, last.AppHash)
	return nil
}
