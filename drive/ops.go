// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package drive

import (
	"github.com/bitmark-inc/platformd/fault"
)

// validate key and element bounds shared by the inserts
func checkBounds(key []byte, element *Element) error {
	if 0 == len(key) || len(key) > maxKeyLength {
		return fault.ErrDataTooLarge
	}
	if nil != element && len(element.Value) > maxValueLength {
		return fault.ErrDataTooLarge
	}
	return nil
}

// insert - stage one element write
//
// subtree elements cannot be inserted directly, empty tree creation
// goes through insertEmptyTree so metadata stays consistent
func (tx *Tx) insert(path Path, key []byte, element *Element, skipExisting bool) (OperationCost, error) {
	cost := OperationCost{}

	if nil == element || element.IsSubtree() {
		return cost, fault.ErrWrongElementType
	}
	if err := checkBounds(key, element); nil != err {
		return cost, err
	}
	if !tx.hasSubtree(path, &cost) {
		return cost, fault.ErrBatchPathNotCreated
	}

	existing := tx.getRow(path.SubtreeID(), key, &cost)
	if nil != existing {
		if skipExisting {
			return cost, nil
		}
		old, err := UnpackElement(existing)
		if nil != err {
			return cost, err
		}
		if old.IsSubtree() {
			return cost, fault.ErrWrongElementType
		}
		tx.recordRemoval(key, existing)
		cost.StorageBytesRemoved += uint64(len(key)) + uint64(len(existing))
	}

	packed := element.Pack()
	tx.putRow(path, key, packed)
	cost.StorageBytesWritten += uint64(len(key)) + uint64(len(packed))
	cost.HashNodes += uint64(len(path)) + 1
	return cost, nil
}

// insertEmptyTree - stage creation of an empty subtree
//
// creating a subtree that already exists with the same kind is a
// no-op so index paths can be ensured idempotently
func (tx *Tx) insertEmptyTree(path Path, key []byte, isSum bool) (OperationCost, error) {
	cost := OperationCost{}

	if err := checkBounds(key, nil); nil != err {
		return cost, err
	}
	if !tx.hasSubtree(path, &cost) {
		return cost, fault.ErrBatchPathNotCreated
	}

	kind := KindSubtree
	element := NewSubtree()
	if isSum {
		kind = KindSumSubtree
		element = NewSumSubtree()
	}

	existing := tx.getRow(path.SubtreeID(), key, &cost)
	if nil != existing {
		old, err := UnpackElement(existing)
		if nil != err {
			return cost, err
		}
		if old.Kind == kind {
			return cost, nil
		}
		return cost, fault.ErrWrongElementType
	}

	child := path.Child(key)
	packed := element.Pack()
	tx.putRow(path, key, packed)
	tx.putMeta(&subtreeMeta{
		path:   child,
		kind:   kind,
		digest: emptySubtreeDigest(),
	})
	cost.ProcessingBytesWritten += uint64(len(key)) + uint64(len(packed)) + metaRowOverhead
	cost.HashNodes += uint64(len(path)) + 1
	return cost, nil
}

// deleteElement - stage removal of one element
//
// subtree elements are removed recursively with every row below them
func (tx *Tx) deleteElement(path Path, key []byte) (OperationCost, error) {
	cost := OperationCost{}

	if !tx.hasSubtree(path, &cost) {
		return cost, fault.ErrBatchPathNotCreated
	}
	existing := tx.getRow(path.SubtreeID(), key, &cost)
	if nil == existing {
		return cost, fault.ErrKeyNotFound
	}

	element, err := UnpackElement(existing)
	if nil != err {
		return cost, err
	}
	if element.IsSubtree() {
		err = tx.deleteSubtreeRows(path.Child(key), &cost)
		if nil != err {
			return cost, err
		}
	} else {
		tx.recordRemoval(key, existing)
	}

	tx.deleteRow(path, key)
	cost.StorageBytesRemoved += uint64(len(key)) + uint64(len(existing))
	cost.HashNodes += uint64(len(path)) + 1
	return cost, nil
}

// remove every row below a subtree, depth first
func (tx *Tx) deleteSubtreeRows(path Path, cost *OperationCost) error {
	for _, child := range tx.mergedChildren(path, cost) {
		element, err := UnpackElement(child.Value)
		if nil != err {
			return err
		}
		if element.IsSubtree() {
			err = tx.deleteSubtreeRows(path.Child(child.Key), cost)
			if nil != err {
				return err
			}
		} else {
			tx.recordRemoval(child.Key, child.Value)
		}
		tx.deleteRow(path, child.Key)
		cost.StorageBytesRemoved += uint64(len(child.Key)) + uint64(len(child.Value))
	}
	subtree := path.SubtreeID()
	tx.stageMetas[string(subtree[:])] = &subtreeMeta{path: path, deleted: true}
	return nil
}

// deleteUpTreeWhileEmpty - remove one element then prune ancestors
// that became empty, stopping at stopAtDepth path segments
func (tx *Tx) deleteUpTreeWhileEmpty(path Path, key []byte, stopAtDepth int) (OperationCost, error) {
	cost, err := tx.deleteElement(path, key)
	if nil != err {
		return cost, err
	}

	current := path
	for len(current) > stopAtDepth {
		children := tx.mergedChildren(current, &cost)
		if 0 != len(children) {
			break
		}
		parent, segment := current.Parent()
		existing := tx.getRow(parent.SubtreeID(), segment, &cost)
		if nil == existing {
			break
		}
		subtree := current.SubtreeID()
		tx.stageMetas[string(subtree[:])] = &subtreeMeta{path: current, deleted: true}
		tx.deleteRow(parent, segment)
		cost.StorageBytesRemoved += uint64(len(segment)) + uint64(len(existing))
		cost.HashNodes += uint64(len(parent)) + 1
		current = parent
	}
	return cost, nil
}

// refreshReference - re-stage a reference row so the commit pass
// recomputes digests along its path after its target moved
func (tx *Tx) refreshReference(path Path, key []byte) (OperationCost, error) {
	cost := OperationCost{}

	if !tx.hasSubtree(path, &cost) {
		return cost, fault.ErrBatchPathNotCreated
	}
	existing := tx.getRow(path.SubtreeID(), key, &cost)
	if nil == existing {
		return cost, fault.ErrKeyNotFound
	}
	element, err := UnpackElement(existing)
	if nil != err {
		return cost, err
	}
	if KindReference != element.Kind {
		return cost, fault.ErrWrongElementType
	}

	tx.putRow(path, key, existing)
	cost.ProcessingBytesWritten += uint64(len(key)) + uint64(len(existing))
	cost.HashNodes += uint64(len(path)) + 1
	return cost, nil
}

// GetRaw - fetch an element without resolving references
func (tx *Tx) GetRaw(path Path, key []byte) (*Element, OperationCost, error) {
	cost := OperationCost{}

	if !tx.hasSubtree(path, &cost) {
		return nil, cost, fault.ErrPathNotFound
	}
	packed := tx.getRow(path.SubtreeID(), key, &cost)
	if nil == packed {
		return nil, cost, fault.ErrKeyNotFound
	}
	element, err := UnpackElement(packed)
	if nil != err {
		return nil, cost, err
	}
	return element, cost, nil
}

// Get - fetch an element resolving a reference in one hop
func (tx *Tx) Get(path Path, key []byte) (*Element, OperationCost, error) {
	element, cost, err := tx.GetRaw(path, key)
	if nil != err {
		return nil, cost, err
	}
	if KindReference != element.Kind {
		return element, cost, nil
	}

	target, targetCost, err := tx.GetRaw(element.RefPath, element.RefKey)
	cost.Add(targetCost)
	if nil != err {
		return nil, cost, err
	}
	if KindReference == target.Kind {
		// a reference may not point at another reference
		return nil, cost, fault.ErrCorruptedStorage
	}
	return target, cost, nil
}

// Has - true when a key holds any element
func (tx *Tx) Has(path Path, key []byte) (bool, OperationCost) {
	cost := OperationCost{}
	if !tx.hasSubtree(path, &cost) {
		return false, cost
	}
	return nil != tx.getRow(path.SubtreeID(), key, &cost), cost
}
