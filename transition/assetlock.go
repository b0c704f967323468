// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transition

import (
	"encoding/binary"

	"github.com/bitmark-inc/platformd/drive"
	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/merkle"
	"github.com/bitmark-inc/platformd/util"
)

// AssetLockProof - a chain locked anchor chain output funding an
// identity create or top up
//
// the output value converts to credits at the fixed multiplier; the
// outpoint is burned into the spent set on apply so each lock funds
// exactly one transition
type AssetLockProof struct {
	TransactionID         merkle.Digest
	OutputIndex           uint32
	Value                 uint64 // satoshis
	CoreChainLockedHeight uint32
}

// Outpoint - canonical outpoint bytes, also the identity id seed
func (p *AssetLockProof) Outpoint() []byte {
	buffer := make([]byte, merkle.DigestLength+4)
	copy(buffer, p.TransactionID[:])
	binary.BigEndian.PutUint32(buffer[merkle.DigestLength:], p.OutputIndex)
	return buffer
}

func (p *AssetLockProof) pack(buffer []byte) []byte {
	buffer = append(buffer, p.TransactionID[:]...)
	buffer = util.AppendVarint64(buffer, uint64(p.OutputIndex))
	buffer = util.AppendVarint64(buffer, p.Value)
	return util.AppendVarint64(buffer, uint64(p.CoreChainLockedHeight))
}

func (r *reader) assetLock() AssetLockProof {
	p := AssetLockProof{}
	copy(p.TransactionID[:], r.fixed(merkle.DigestLength))
	p.OutputIndex = r.uint32()
	p.Value = r.varint()
	p.CoreChainLockedHeight = r.uint32()
	return p
}

func spentAssetLocksPath() drive.Path {
	return drive.NewPath([]byte{drive.RootSpentAssetLockTransactions})
}

// checkUnspent - the lock must be chain locked and never used before
func (p *AssetLockProof) checkUnspent(tx *drive.Tx, env *Env) (drive.OperationCost, error) {
	cost := drive.OperationCost{}
	if 0 == p.Value {
		return cost, fault.ErrInvalidStateTransitionType
	}
	if p.CoreChainLockedHeight > env.CoreChainLockedHeight {
		return cost, fault.ErrAssetLockNotChainLocked
	}
	spent, c := tx.Has(spentAssetLocksPath(), p.Outpoint())
	cost.Add(c)
	if spent {
		return cost, fault.ErrAssetLockAlreadySpent
	}
	return cost, nil
}

// markSpent - burn the outpoint
func (p *AssetLockProof) markSpent(tx *drive.Tx, epoch uint16) (drive.OperationCost, error) {
	return tx.ApplyBatch(drive.Batch{
		drive.Insert(spentAssetLocksPath(), p.Outpoint(),
			drive.NewItem(nil, drive.StorageFlags{Epoch: epoch})),
	})
}
