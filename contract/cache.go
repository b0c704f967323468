// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package contract

import (
	"time"

	go_cache "github.com/patrickmn/go-cache"

	"github.com/bitmark-inc/platformd/drive"
)

// compiled contracts are immutable so the whole record is shared;
// entries are dropped when a block updates the contract
var contractCache = go_cache.New(30*time.Minute, 10*time.Minute)

// CachedFetch - load a contract through the shared cache
//
// only committed contracts are cached: the tx must be a read view,
// block transactions bypass the cache to see their own staged writes
func CachedFetch(tx *drive.Tx, id ID) (*Contract, drive.OperationCost, error) {
	if entry, ok := contractCache.Get(id.String()); ok {
		return entry.(*Contract), drive.OperationCost{}, nil
	}

	c, cost, err := Fetch(tx, id)
	if nil != err {
		return nil, cost, err
	}
	contractCache.Set(id.String(), c, go_cache.DefaultExpiration)
	return c, cost, nil
}

// Invalidate - drop updated contracts from the cache
//
// called after a block commits with the set of contract ids it
// created or updated
func Invalidate(ids []ID) {
	for _, id := range ids {
		contractCache.Delete(id.String())
	}
}
