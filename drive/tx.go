// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package drive

import (
	"bytes"
	"sort"

	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/merkle"
	"github.com/bitmark-inc/platformd/protocol"
	"github.com/bitmark-inc/platformd/storage"
)

// a pending row change: value nil means deleted
type pendingRow struct {
	value   []byte
	deleted bool
}

// per subtree bookkeeping carried through the block
type subtreeMeta struct {
	path    Path
	kind    Kind
	digest  merkle.Digest
	sum     int64
	deleted bool
}

// Removal - storage freed by a delete, basis for a refund
type Removal struct {
	Owner []byte // nil when the bytes carried no owner
	Epoch uint16
	Bytes uint64
}

// Tx - a block transaction over the committed store
//
// reads consult the per transition stage, then the block overlay,
// then the database; writes only ever touch the stage until the
// transition is accepted; the database changes only at Commit
type Tx struct {
	version  *protocol.Version
	readOnly bool

	// block level accepted state
	overlay  map[string]pendingRow
	metas    map[string]*subtreeMeta
	dirty    map[string]Path
	removals []Removal

	// current transition staging
	stage         map[string]pendingRow
	stageMetas    map[string]*subtreeMeta
	stageDirty    map[string]Path
	stageRemovals []Removal
	staging       bool
}

// NewTx - open a block transaction
func NewTx(version *protocol.Version) *Tx {
	return &Tx{
		version:    version,
		overlay:    make(map[string]pendingRow),
		metas:      make(map[string]*subtreeMeta),
		dirty:      make(map[string]Path),
		stage:      make(map[string]pendingRow),
		stageMetas: make(map[string]*subtreeMeta),
		stageDirty: make(map[string]Path),
	}
}

// ReadTx - a read only view of the committed store
//
// used by the query surface between blocks
func ReadTx(version *protocol.Version) *Tx {
	tx := NewTx(version)
	tx.readOnly = true
	return tx
}

// row key inside the node pool
func rowKey(subtree merkle.Digest, key []byte) []byte {
	k := make([]byte, 0, merkle.DigestLength+len(key))
	k = append(k, subtree[:]...)
	return append(k, key...)
}

// StageBegin - start staging one transition
func (tx *Tx) StageBegin() {
	tx.stage = make(map[string]pendingRow)
	tx.stageMetas = make(map[string]*subtreeMeta)
	tx.stageDirty = make(map[string]Path)
	tx.stageRemovals = nil
	tx.staging = true
}

// StageCommit - accept the staged transition into the block
func (tx *Tx) StageCommit() {
	for k, v := range tx.stage {
		tx.overlay[k] = v
	}
	for k, v := range tx.stageMetas {
		tx.metas[k] = v
	}
	for k, v := range tx.stageDirty {
		tx.dirty[k] = v
	}
	tx.removals = append(tx.removals, tx.stageRemovals...)
	tx.StageBegin()
	tx.staging = false
}

// StageAbort - discard the staged transition
func (tx *Tx) StageAbort() {
	tx.StageBegin()
	tx.staging = false
}

// StageRemovals - storage freed by the currently staged transition
func (tx *Tx) StageRemovals() []Removal {
	return tx.stageRemovals
}

// read one row through stage and overlay; cost accounts the probe
func (tx *Tx) getRow(subtree merkle.Digest, key []byte, cost *OperationCost) []byte {
	k := string(rowKey(subtree, key))
	if r, ok := tx.stage[k]; ok {
		if r.deleted {
			return nil
		}
		return r.value
	}
	if r, ok := tx.overlay[k]; ok {
		if r.deleted {
			return nil
		}
		return r.value
	}
	value := storage.Pool.Nodes.Get(rowKey(subtree, key))
	if nil != cost {
		cost.Seeks += 1
		cost.BytesLoaded += uint64(len(value)) + uint64(len(key))
	}
	return value
}

// stage one row write
func (tx *Tx) putRow(path Path, key []byte, packed []byte) {
	subtree := path.SubtreeID()
	tx.stage[string(rowKey(subtree, key))] = pendingRow{value: packed}
	tx.stageDirty[string(subtree[:])] = path
}

// stage one row delete
func (tx *Tx) deleteRow(path Path, key []byte) {
	subtree := path.SubtreeID()
	tx.stage[string(rowKey(subtree, key))] = pendingRow{deleted: true}
	tx.stageDirty[string(subtree[:])] = path
}

// read subtree metadata through stage and overlay
func (tx *Tx) getMeta(path Path, cost *OperationCost) *subtreeMeta {
	subtree := path.SubtreeID()
	k := string(subtree[:])
	if m, ok := tx.stageMetas[k]; ok {
		if m.deleted {
			return nil
		}
		return m
	}
	if m, ok := tx.metas[k]; ok {
		if m.deleted {
			return nil
		}
		return m
	}
	value := storage.Pool.Meta.Get(subtree[:])
	if nil != cost {
		cost.Seeks += 1
		cost.BytesLoaded += uint64(len(value))
	}
	if nil == value {
		return nil
	}
	meta, err := unpackMeta(value)
	if nil != err {
		fault.PanicWithError("drive.getMeta", err)
	}
	return meta
}

// stage subtree metadata
func (tx *Tx) putMeta(meta *subtreeMeta) {
	subtree := meta.path.SubtreeID()
	tx.stageMetas[string(subtree[:])] = meta
}

// true when a subtree exists to hold elements at this path
func (tx *Tx) hasSubtree(path Path, cost *OperationCost) bool {
	if 0 == len(path) {
		return true // the root always exists
	}
	return nil != tx.getMeta(path, cost)
}

// mergedChildren - ordered elements of one subtree through the
// stage and overlay
func (tx *Tx) mergedChildren(path Path, cost *OperationCost) []storage.Element {
	subtree := path.SubtreeID()
	prefix := subtree[:]

	committed := storage.Pool.Nodes.Fetch(prefix, -1)
	if nil != cost {
		cost.Seeks += 1
		for _, e := range committed {
			cost.BytesLoaded += uint64(len(e.Key)) + uint64(len(e.Value))
		}
	}

	merged := make(map[string][]byte, len(committed))
	for _, e := range committed {
		merged[string(e.Key[merkle.DigestLength:])] = e.Value
	}

	applyLayer := func(layer map[string]pendingRow) {
		for k, r := range layer {
			if len(k) < merkle.DigestLength || !bytes.Equal([]byte(k)[:merkle.DigestLength], prefix) {
				continue
			}
			childKey := k[merkle.DigestLength:]
			if r.deleted {
				delete(merged, childKey)
			} else {
				merged[childKey] = r.value
			}
		}
	}
	applyLayer(tx.overlay)
	applyLayer(tx.stage)

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	results := make([]storage.Element, 0, len(keys))
	for _, k := range keys {
		results = append(results, storage.Element{
			Key:   []byte(k),
			Value: merged[k],
		})
	}
	return results
}

// record freed storage for later refund calculation
func (tx *Tx) recordRemoval(key []byte, packed []byte) {
	element, err := UnpackElement(packed)
	if nil != err {
		return // unhashed garbage carries no refund
	}
	switch element.Kind {
	case KindItem, KindSumItem, KindReference:
		tx.stageRemovals = append(tx.stageRemovals, Removal{
			Owner: element.Flags.Owner,
			Epoch: element.Flags.Epoch,
			Bytes: uint64(len(key)) + uint64(len(packed)),
		})
	}
}
