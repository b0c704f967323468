// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package drive

import (
	"fmt"

	"github.com/bitmark-inc/platformd/fault"
)

// Op - batch operation code
type Op byte

// all batch operation codes
const (
	OpInsert                 Op = 0x01
	OpInsertIfNotExists      Op = 0x02
	OpInsertEmptyTree        Op = 0x03
	OpInsertEmptySumTree     Op = 0x04
	OpDelete                 Op = 0x05
	OpDeleteUpTreeWhileEmpty Op = 0x06
	OpRefreshReference       Op = 0x07
)

// BatchOp - one operation of a batch
type BatchOp struct {
	Op      Op
	Path    Path
	Key     []byte
	Element *Element // insert payload, nil for the other ops

	// OpDeleteUpTreeWhileEmpty only: ancestor count at which the
	// upward walk stops, the root discriminants are never removed
	StopAtDepth int
}

// Batch - ordered operations applied atomically
type Batch []BatchOp

// BatchError - failure of one operation inside a batch
type BatchError struct {
	Index int
	Err   error
}

// Error - implement the error interface
func (e BatchError) Error() string {
	return fmt.Sprintf("batch op %d: %s", e.Index, e.Err.Error())
}

// Unwrap - expose the underlying fault
func (e BatchError) Unwrap() error {
	return e.Err
}

// Insert - convenience constructor
func Insert(path Path, key []byte, element *Element) BatchOp {
	return BatchOp{Op: OpInsert, Path: path, Key: key, Element: element}
}

// InsertIfNotExists - insert skipped when the key already holds a value
func InsertIfNotExists(path Path, key []byte, element *Element) BatchOp {
	return BatchOp{Op: OpInsertIfNotExists, Path: path, Key: key, Element: element}
}

// InsertEmptyTree - create an empty subtree under path at key
func InsertEmptyTree(path Path, key []byte) BatchOp {
	return BatchOp{Op: OpInsertEmptyTree, Path: path, Key: key}
}

// InsertEmptySumTree - create an empty sum subtree under path at key
func InsertEmptySumTree(path Path, key []byte) BatchOp {
	return BatchOp{Op: OpInsertEmptySumTree, Path: path, Key: key}
}

// Delete - remove the element at key, recursively for subtrees
func Delete(path Path, key []byte) BatchOp {
	return BatchOp{Op: OpDelete, Path: path, Key: key}
}

// DeleteUpTreeWhileEmpty - remove the element then prune empty ancestors
func DeleteUpTreeWhileEmpty(path Path, key []byte, stopAtDepth int) BatchOp {
	return BatchOp{Op: OpDeleteUpTreeWhileEmpty, Path: path, Key: key, StopAtDepth: stopAtDepth}
}

// RefreshReference - re-stage a reference so its digest follows a
// moved target
func RefreshReference(path Path, key []byte) BatchOp {
	return BatchOp{Op: OpRefreshReference, Path: path, Key: key}
}

// ApplyBatch - apply every operation or none
//
// each operation sees the effects of the previous ones, so a batch
// may create a subtree and fill it; any failure rolls the whole
// batch back via the transition stage
func (tx *Tx) ApplyBatch(batch Batch) (OperationCost, error) {
	cost := OperationCost{}
	if tx.readOnly {
		return cost, fault.ErrTransactionAlreadyInUse
	}

	for i, op := range batch {
		opCost, err := tx.applyOp(op)
		cost.Add(opCost)
		if nil != err {
			return cost, BatchError{Index: i, Err: err}
		}
	}
	return cost, nil
}

// dispatch one batch operation
func (tx *Tx) applyOp(op BatchOp) (OperationCost, error) {
	switch op.Op {
	case OpInsert:
		return tx.insert(op.Path, op.Key, op.Element, false)
	case OpInsertIfNotExists:
		return tx.insert(op.Path, op.Key, op.Element, true)
	case OpInsertEmptyTree:
		return tx.insertEmptyTree(op.Path, op.Key, false)
	case OpInsertEmptySumTree:
		return tx.insertEmptyTree(op.Path, op.Key, true)
	case OpDelete:
		return tx.deleteElement(op.Path, op.Key)
	case OpDeleteUpTreeWhileEmpty:
		return tx.deleteUpTreeWhileEmpty(op.Path, op.Key, op.StopAtDepth)
	case OpRefreshReference:
		return tx.refreshReference(op.Path, op.Key)
	default:
		return OperationCost{}, fault.ErrWrongElementType
	}
}
