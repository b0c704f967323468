// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package drive

import (
	"sync"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/merkle"
	"github.com/bitmark-inc/platformd/protocol"
)

// globals for this module
type globalDataType struct {
	sync.RWMutex
	log         *logger.L
	initialised bool
}

var globalData globalDataType

// Initialise - setup the drive layer
//
// the storage package must be initialised first
func Initialise() error {
	globalData.Lock()
	defer globalData.Unlock()

	if globalData.initialised {
		return fault.ErrAlreadyInitialised
	}

	globalData.log = logger.New("drive")
	globalData.log.Info("starting…")

	globalData.initialised = true
	return nil
}

// Finalise - shutdown the drive layer
func Finalise() error {
	globalData.Lock()
	defer globalData.Unlock()

	if !globalData.initialised {
		return fault.ErrNotInitialised
	}

	globalData.log.Info("shutting down…")
	globalData.log.Flush()

	globalData.initialised = false
	return nil
}

// CreateRootTree - build the empty root structure at genesis
//
// inserts every root discriminant subtree, balances and pools as sum
// trees, and commits the result as the height zero app hash
func CreateRootTree(version *protocol.Version) (merkle.Digest, error) {
	root := Path{}
	batch := Batch{
		InsertEmptyTree(root, []byte{RootIdentities}),
		InsertEmptyTree(root, []byte{RootUniquePublicKeyHashesToIdentities}),
		InsertEmptyTree(root, []byte{RootNonUniquePublicKeyHashesToIdentities}),
		InsertEmptyTree(root, []byte{RootContractDocuments}),
		InsertEmptyTree(root, []byte{RootSpentAssetLockTransactions}),
		InsertEmptySumTree(root, []byte{RootBalances}),
		InsertEmptySumTree(root, []byte{RootPools}),
		InsertEmptyTree(root, []byte{RootWithdrawalTransactions}),
		InsertEmptyTree(root, []byte{RootMisc}),
	}

	tx := NewTx(version)
	tx.StageBegin()
	_, err := tx.ApplyBatch(batch)
	if nil != err {
		tx.StageAbort()
		return merkle.Digest{}, err
	}
	tx.StageCommit()
	return tx.Commit(0)
}
