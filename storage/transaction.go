// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"sync"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/bitmark-inc/platformd/fault"
)

// Transaction - an atomic group of writes
//
// writes are staged into a batch and hit the database only on
// Commit; Abort discards everything; reads are not served here, the
// caller keeps its own overlay for read-your-writes
type Transaction struct {
	sync.Mutex
	batch *leveldb.Batch
	inUse bool
}

// NewTransaction - create an idle transaction
func NewTransaction() *Transaction {
	return &Transaction{
		batch: new(leveldb.Batch),
	}
}

// Begin - mark the transaction in use
//
// only one block transaction is live at a time
func (t *Transaction) Begin() error {
	t.Lock()
	defer t.Unlock()
	if t.inUse {
		return fault.ErrTransactionAlreadyInUse
	}
	t.inUse = true
	t.batch.Reset()
	return nil
}

// Put - stage a key/value write
func (t *Transaction) Put(pool *PoolHandle, key []byte, value []byte) {
	t.Lock()
	defer t.Unlock()
	t.batch.Put(pool.prefixKey(key), value)
}

// Delete - stage a key removal
func (t *Transaction) Delete(pool *PoolHandle, key []byte) {
	t.Lock()
	defer t.Unlock()
	t.batch.Delete(pool.prefixKey(key))
}

// Commit - apply all staged writes atomically
func (t *Transaction) Commit() error {
	t.Lock()
	defer t.Unlock()
	if !t.inUse {
		return fault.ErrNotInitialised
	}

	poolData.RLock()
	defer poolData.RUnlock()
	if nil == poolData.db {
		return fault.ErrNotInitialised
	}
	err := poolData.db.Write(t.batch, nil)
	if nil != err {
		return err
	}
	t.batch.Reset()
	t.inUse = false
	return nil
}

// Abort - discard all staged writes
func (t *Transaction) Abort() {
	t.Lock()
	defer t.Unlock()
	t.batch.Reset()
	t.inUse = false
}

// InUse - true while a transaction is open
func (t *Transaction) InUse() bool {
	t.Lock()
	defer t.Unlock()
	return t.inUse
}
