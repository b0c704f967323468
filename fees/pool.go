// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fees

import (
	"encoding/binary"

	"github.com/bitmark-inc/platformd/credit"
	"github.com/bitmark-inc/platformd/drive"
	"github.com/bitmark-inc/platformd/fault"
)

// epoch pools live in the pools sum subtree keyed by big endian
// epoch number, so the subtree sum is the total undistributed fees

func poolsPath() drive.Path {
	return drive.NewPath([]byte{drive.RootPools})
}

// PoolKey - storage key of one epoch pool
func PoolKey(epoch uint16) []byte {
	key := make([]byte, 2)
	binary.BigEndian.PutUint16(key, epoch)
	return key
}

// PoolBalance - undistributed credits of one epoch pool
//
// a missing pool reads as zero
func PoolBalance(tx *drive.Tx, epoch uint16) (credit.Amount, drive.OperationCost, error) {
	element, cost, err := tx.Get(poolsPath(), PoolKey(epoch))
	if fault.ErrKeyNotFound == err {
		return 0, cost, nil
	}
	if nil != err {
		return 0, cost, err
	}
	if drive.KindSumItem != element.Kind {
		return 0, cost, fault.ErrCorruptedStorage
	}
	if element.Sum < 0 {
		// refunds can overdraw a pool; it distributes nothing
		return 0, cost, nil
	}
	return credit.Amount(element.Sum), cost, nil
}

// rawPoolSum - signed pool level, missing pools read as zero
func rawPoolSum(tx *drive.Tx, epoch uint16) (int64, drive.OperationCost, error) {
	element, cost, err := tx.Get(poolsPath(), PoolKey(epoch))
	if fault.ErrKeyNotFound == err {
		return 0, cost, nil
	}
	if nil != err {
		return 0, cost, err
	}
	if drive.KindSumItem != element.Kind {
		return 0, cost, fault.ErrCorruptedStorage
	}
	return element.Sum, cost, nil
}

// DebitPool - take refund credits out of the epoch that stored them
//
// the pool sum may go negative: the storing epoch already paid its
// proposers, so the shortfall is carried against future fees of that
// entry and total supply stays conserved
func DebitPool(tx *drive.Tx, epoch uint16, amount credit.Amount) (drive.OperationCost, error) {
	sum, cost, err := rawPoolSum(tx, epoch)
	if nil != err {
		return cost, err
	}
	c, err := tx.ApplyBatch(drive.Batch{
		drive.Insert(poolsPath(), PoolKey(epoch), drive.NewSumItem(sum-int64(amount), drive.StorageFlags{})),
	})
	cost.Add(c)
	return cost, err
}

// CreditPool - add fees into an epoch pool
func CreditPool(tx *drive.Tx, epoch uint16, amount credit.Amount) (drive.OperationCost, error) {
	sum, cost, err := rawPoolSum(tx, epoch)
	if nil != err {
		return cost, err
	}
	c, err := tx.ApplyBatch(drive.Batch{
		drive.Insert(poolsPath(), PoolKey(epoch), drive.NewSumItem(sum+int64(amount), drive.StorageFlags{})),
	})
	cost.Add(c)
	return cost, err
}

// DrainPool - empty an epoch pool for distribution
//
// returns the drained amount; the pool entry is reset to zero rather
// than deleted so closed epochs stay visible
func DrainPool(tx *drive.Tx, epoch uint16) (credit.Amount, drive.OperationCost, error) {
	balance, cost, err := PoolBalance(tx, epoch)
	if nil != err {
		return 0, cost, err
	}
	if 0 == balance {
		return 0, cost, nil
	}
	c, err := tx.ApplyBatch(drive.Batch{
		drive.Insert(poolsPath(), PoolKey(epoch), drive.NewSumItem(0, drive.StorageFlags{})),
	})
	cost.Add(c)
	return balance, cost, err
}
