// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package drive

import (
	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/merkle"
	"github.com/bitmark-inc/platformd/storage"
	"github.com/bitmark-inc/platformd/util"
)

// recompute the digest and sum of one subtree from its children
func (tx *Tx) recomputeSubtree(path Path) (merkle.Digest, int64, error) {
	children := tx.mergedChildren(path, nil)
	leaves := make([]merkle.Digest, 0, len(children))
	sum := int64(0)
	for _, child := range children {
		element, err := UnpackElement(child.Value)
		if nil != err {
			return merkle.Digest{}, 0, err
		}
		leaves = append(leaves, leafDigest(child.Key, element.Digest()))
		sum += element.sumContribution()
	}
	return merkle.RootFromLeaves(leaves), sum, nil
}

// Commit - flush the block to the database
//
// recomputes every dirty subtree bottom up, rewrites the subtree
// elements binding child roots into their parents, then writes all
// rows, metadata and the new app hash atomically; returns the app
// hash for the block header
func (tx *Tx) Commit(height uint64) (merkle.Digest, error) {
	if tx.readOnly {
		return merkle.Digest{}, fault.ErrTransactionAlreadyInUse
	}
	if tx.staging {
		tx.StageAbort() // an unfinished transition never commits
	}

	// bucket the dirty subtrees by depth
	maxDepth := 0
	buckets := make(map[int]map[string]Path)
	mark := func(path Path) {
		depth := len(path)
		if nil == buckets[depth] {
			buckets[depth] = make(map[string]Path)
		}
		subtree := path.SubtreeID()
		buckets[depth][string(subtree[:])] = path
		if depth > maxDepth {
			maxDepth = depth
		}
	}
	for _, path := range tx.dirty {
		mark(path)
	}
	mark(Path{}) // the root digest always refreshes

	// deepest first so a parent sees final child digests
	for depth := maxDepth; depth >= 1; depth -= 1 {
		for id, path := range buckets[depth] {
			meta := tx.metas[id]
			if nil == meta {
				meta = tx.getMeta(path, nil)
			}
			if nil == meta || meta.deleted {
				continue
			}

			digest, sum, err := tx.recomputeSubtree(path)
			if nil != err {
				return merkle.Digest{}, err
			}
			meta.digest = digest
			meta.sum = sum
			tx.metas[id] = meta

			// rebind into the parent subtree element
			parent, segment := path.Parent()
			packed := tx.getRow(parent.SubtreeID(), segment, nil)
			if nil == packed {
				return merkle.Digest{}, fault.ErrCorruptedStorage
			}
			element, err := UnpackElement(packed)
			if nil != err {
				return merkle.Digest{}, err
			}
			if !element.IsSubtree() {
				return merkle.Digest{}, fault.ErrWrongElementType
			}
			element.Child = digest
			if KindSumSubtree == element.Kind {
				element.Sum = sum
			}
			tx.overlay[string(rowKey(parent.SubtreeID(), segment))] = pendingRow{value: element.Pack()}
			mark(parent)
		}
	}

	appHash, _, err := tx.recomputeSubtree(Path{})
	if nil != err {
		return merkle.Digest{}, err
	}

	// single atomic database write
	dbTransaction := storage.NewTransaction()
	err = dbTransaction.Begin()
	if nil != err {
		return merkle.Digest{}, err
	}
	for k, row := range tx.overlay {
		if row.deleted {
			dbTransaction.Delete(storage.Pool.Nodes, []byte(k))
		} else {
			dbTransaction.Put(storage.Pool.Nodes, []byte(k), row.value)
		}
	}
	for id, meta := range tx.metas {
		if meta.deleted {
			dbTransaction.Delete(storage.Pool.Meta, []byte(id))
		} else {
			dbTransaction.Put(storage.Pool.Meta, []byte(id), packMeta(meta))
		}
	}
	dbTransaction.Put(storage.Pool.Roots, util.AppendUint64(nil, height), appHash[:])
	err = dbTransaction.Commit()
	if nil != err {
		return merkle.Digest{}, err
	}

	// the tx is spent, reset so accidental reuse starts clean
	tx.overlay = make(map[string]pendingRow)
	tx.metas = make(map[string]*subtreeMeta)
	tx.dirty = make(map[string]Path)
	tx.removals = nil
	return appHash, nil
}

// Abort - discard the whole block
func (tx *Tx) Abort() {
	tx.StageAbort()
	tx.overlay = make(map[string]pendingRow)
	tx.metas = make(map[string]*subtreeMeta)
	tx.dirty = make(map[string]Path)
	tx.removals = nil
}

// RootAtHeight - the committed app hash for a block height
func RootAtHeight(height uint64) (merkle.Digest, error) {
	value := storage.Pool.Roots.Get(util.AppendUint64(nil, height))
	if nil == value {
		return merkle.Digest{}, fault.ErrInvalidBlockHeight
	}
	var digest merkle.Digest
	if err := merkle.DigestFromBytes(&digest, value); nil != err {
		return merkle.Digest{}, err
	}
	return digest, nil
}
