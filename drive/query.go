// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package drive

import (
	"bytes"

	"github.com/bitmark-inc/platformd/fault"
)

// PathQuery - a read over one subtree
//
// either an explicit key list or a half open range; a zero limit
// means unlimited
type PathQuery struct {
	Path       Path
	Keys       [][]byte // explicit keys, nil for a range query
	RangeStart []byte   // inclusive, nil means from the first key
	RangeEnd   []byte   // exclusive, nil means to the last key
	Limit      int
}

// QueryResult - one matched key and its element
type QueryResult struct {
	Key     []byte
	Element *Element
}

// Execute - run the query against the transaction's view
//
// explicit keys resolve references one hop; range scans return raw
// elements in key order
func (tx *Tx) Execute(query *PathQuery) ([]QueryResult, OperationCost, error) {
	cost := OperationCost{}

	if !tx.hasSubtree(query.Path, &cost) {
		return nil, cost, fault.ErrPathNotFound
	}

	if nil != query.Keys {
		results := make([]QueryResult, 0, len(query.Keys))
		for _, key := range query.Keys {
			element, c, err := tx.Get(query.Path, key)
			cost.Add(c)
			if fault.ErrKeyNotFound == err {
				continue
			}
			if nil != err {
				return nil, cost, err
			}
			results = append(results, QueryResult{Key: key, Element: element})
			if 0 != query.Limit && len(results) >= query.Limit {
				break
			}
		}
		return results, cost, nil
	}

	children := tx.mergedChildren(query.Path, &cost)
	results := make([]QueryResult, 0, 16)
	for _, child := range children {
		if nil != query.RangeStart && bytes.Compare(child.Key, query.RangeStart) < 0 {
			continue
		}
		if nil != query.RangeEnd && bytes.Compare(child.Key, query.RangeEnd) >= 0 {
			break
		}
		element, err := UnpackElement(child.Value)
		if nil != err {
			return nil, cost, err
		}
		results = append(results, QueryResult{Key: child.Key, Element: element})
		if 0 != query.Limit && len(results) >= query.Limit {
			break
		}
	}
	return results, cost, nil
}
