// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package document

import (
	"bytes"

	"github.com/bitmark-inc/platformd/contract"
	"github.com/bitmark-inc/platformd/drive"
	"github.com/bitmark-inc/platformd/fault"
)

// reference leaf key inside a fully resolved index path
var indexLeafKey = []byte{0x00}

// runtime bounds on indexed values
const (
	maxIndexedStringLength = 63
	maxIndexedBytesLength  = 255
)

// indexEntry - the resolved placement of one document in one index
//
// a unique entry is a single reference keyed 0 at the value path; a
// non unique entry sits inside a 0 subtree keyed by document id so
// many documents can share the same values
type indexEntry struct {
	path      drive.Path
	key       []byte
	nonUnique bool
}

// location of the reference element itself
func (e *indexEntry) refPath() drive.Path {
	if e.nonUnique {
		return e.path.Child(indexLeafKey)
	}
	return e.path
}

func (e *indexEntry) refKey() []byte {
	if e.nonUnique {
		return e.key
	}
	return indexLeafKey
}

// equal placement, used by the update diff
func (e *indexEntry) equal(other *indexEntry) bool {
	return e.nonUnique == other.nonUnique &&
		e.path.Equal(other.path) &&
		bytes.Equal(e.key, other.key)
}

// deriveEntry - compute the index placement of a document
//
// property names and order preserving value encodings alternate as
// path segments below the index name; a unique index whose values
// are all null degrades to non unique placement so absent optional
// values cannot collide
func deriveEntry(d *Document, index *contract.Index, dt *contract.DocumentType) (*indexEntry, error) {
	base := contract.TypePath(d.ContractID, d.Type).Child([]byte(index.Name))

	allNull := true
	for _, property := range index.Properties {
		value := Get(d.Properties, property.Name)
		if !value.IsNull() {
			allNull = false
		}

		switch value.Kind {
		case KindString:
			if len(value.Str) > maxIndexedStringLength {
				return nil, fault.ErrInvalidIndexedPropertyConstraint
			}
		case KindBytes, KindIdentifier:
			if len(value.Bytes) > maxIndexedBytesLength {
				return nil, fault.ErrInvalidIndexedPropertyConstraint
			}
		case KindArray, KindObject:
			return nil, fault.ErrInvalidIndexPropertyType
		}

		base = base.Child([]byte(property.Name)).Child(value.IndexKey())
	}

	return &indexEntry{
		path:      base,
		key:       d.ID[:],
		nonUnique: !index.Unique || allNull,
	}, nil
}

// ensurePathOps - batch operations creating every missing subtree
// from the type tree down to the entry
func (e *indexEntry) ensurePathOps(typeDepth int) drive.Batch {
	batch := drive.Batch{}
	target := e.path
	if e.nonUnique {
		target = e.refPath()
	}
	for depth := typeDepth; depth < len(target); depth += 1 {
		batch = append(batch, drive.InsertEmptyTree(target[:depth], target[depth]))
	}
	return batch
}

// insertOps - batch operations placing the reference
//
// the target is the primary item, or the current version item for
// history keeping types
func (e *indexEntry) insertOps(target drive.Path, targetKey []byte, typeDepth int, flags drive.StorageFlags) drive.Batch {
	batch := e.ensurePathOps(typeDepth)
	return append(batch,
		drive.Insert(e.refPath(), e.refKey(), drive.NewReference(target, targetKey, flags)),
	)
}

// deleteOps - batch operations removing the reference and pruning
// emptied value subtrees, bounded so the index tree itself survives
func (e *indexEntry) deleteOps(indexDepth int) drive.Batch {
	return drive.Batch{
		drive.DeleteUpTreeWhileEmpty(e.refPath(), e.refKey(), indexDepth),
	}
}

// checkUniqueConflict - a unique entry must not already exist for a
// different document
func (e *indexEntry) checkUniqueConflict(tx *drive.Tx, docID ID) (drive.OperationCost, error) {
	cost := drive.OperationCost{}
	if e.nonUnique {
		return cost, nil
	}

	element, c, err := tx.GetRaw(e.refPath(), e.refKey())
	cost.Add(c)
	if fault.ErrKeyNotFound == err || fault.ErrPathNotFound == err {
		return cost, nil
	}
	if nil != err {
		return cost, err
	}
	if drive.KindReference == element.Kind && bytes.Equal(element.RefKey, docID[:]) {
		return cost, nil // our own entry, a replace refreshes it
	}
	return cost, fault.ErrDuplicateUniqueIndex
}
