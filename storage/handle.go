// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"github.com/syndtr/goleveldb/leveldb"
	ldb_util "github.com/syndtr/goleveldb/leveldb/util"

	"github.com/bitmark-inc/platformd/fault"
)

// PoolHandle - access to one prefixed table of the database
type PoolHandle struct {
	prefix byte
	limit  []byte
}

// Element - a binary data item
type Element struct {
	Key   []byte
	Value []byte
}

// prepend the prefix onto the key
func (p *PoolHandle) prefixKey(key []byte) []byte {
	prefixedKey := make([]byte, 1, len(key)+1)
	prefixedKey[0] = p.prefix
	return append(prefixedKey, key...)
}

// Put - store a key/value bytes pair to the database
func (p *PoolHandle) Put(key []byte, value []byte) {
	poolData.RLock()
	defer poolData.RUnlock()
	if nil == poolData.db {
		fault.PanicWithError("pool.Put", fault.ErrNotInitialised)
	}
	err := poolData.db.Put(p.prefixKey(key), value, nil)
	fault.PanicIfError("pool.Put", err)
}

// Delete - remove a key from the database
func (p *PoolHandle) Delete(key []byte) {
	poolData.RLock()
	defer poolData.RUnlock()
	if nil == poolData.db {
		fault.PanicWithError("pool.Delete", fault.ErrNotInitialised)
	}
	err := poolData.db.Delete(p.prefixKey(key), nil)
	fault.PanicIfError("pool.Delete", err)
}

// Get - read a value for a given key
//
// this returns the actual element - copy the result if it must be preserved
func (p *PoolHandle) Get(key []byte) []byte {
	poolData.RLock()
	defer poolData.RUnlock()
	if nil == poolData.db {
		return nil
	}
	value, err := poolData.db.Get(p.prefixKey(key), nil)
	if leveldb.ErrNotFound == err {
		return nil
	}
	fault.PanicIfError("pool.Get", err)
	return value
}

// Has - check if a key exists
func (p *PoolHandle) Has(key []byte) bool {
	poolData.RLock()
	defer poolData.RUnlock()
	if nil == poolData.db {
		return false
	}
	value, err := poolData.db.Has(p.prefixKey(key), nil)
	fault.PanicIfError("pool.Has", err)
	return value
}

// Fetch - ordered scan of all elements whose key starts with prefix
//
// count limits the result; a negative count fetches everything
func (p *PoolHandle) Fetch(prefix []byte, count int) []Element {
	poolData.RLock()
	defer poolData.RUnlock()
	if nil == poolData.db {
		return nil
	}

	iter := poolData.db.NewIterator(ldb_util.BytesPrefix(p.prefixKey(prefix)), nil)
	defer iter.Release()

	results := make([]Element, 0, 16)
	for iter.Next() {
		if count >= 0 && len(results) >= count {
			break
		}

		// contents of the returned slices must not be modified, and are
		// only valid until the next call to Next
		key := iter.Key()
		value := iter.Value()

		dataKey := make([]byte, len(key)-1) // strip the pool prefix
		copy(dataKey, key[1:])

		dataValue := make([]byte, len(value))
		copy(dataValue, value)

		results = append(results, Element{Key: dataKey, Value: dataValue})
	}
	fault.PanicIfError("pool.Fetch", iter.Error())
	return results
}

// FetchFrom - ordered scan starting at a key within a prefix range
//
// used for range queries: returns elements with key ≥ start that
// still carry the given prefix
func (p *PoolHandle) FetchFrom(prefix []byte, start []byte, count int) []Element {
	poolData.RLock()
	defer poolData.RUnlock()
	if nil == poolData.db {
		return nil
	}

	bounds := ldb_util.BytesPrefix(p.prefixKey(prefix))
	iter := poolData.db.NewIterator(bounds, nil)
	defer iter.Release()

	results := make([]Element, 0, 16)
	ok := iter.Seek(p.prefixKey(start))
	for ; ok; ok = iter.Next() {
		if count >= 0 && len(results) >= count {
			break
		}

		key := iter.Key()
		value := iter.Value()

		dataKey := make([]byte, len(key)-1)
		copy(dataKey, key[1:])

		dataValue := make([]byte, len(value))
		copy(dataValue, value)

		results = append(results, Element{Key: dataKey, Value: dataValue})
	}
	fault.PanicIfError("pool.FetchFrom", iter.Error())
	return results
}
