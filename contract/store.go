// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package contract

import (
	"encoding/binary"

	"github.com/bitmark-inc/platformd/drive"
	"github.com/bitmark-inc/platformd/fault"
)

// contract subtree layout
//
//	ContractDocuments/<id>/0            the packed contract
//	ContractDocuments/<id>/1/<type>/…   documents and indexes
//	ContractDocuments/<id>/2/<rev>      superseded contract versions
var (
	contractKey  = []byte{0x00}
	documentsKey = []byte{0x01}
	historyKey   = []byte{0x02}

	// primary document tree inside a type subtree
	primaryKey = []byte{0x00}
)

// RootPath - the contract documents root subtree
func RootPath() drive.Path {
	return drive.NewPath([]byte{drive.RootContractDocuments})
}

// Path - the subtree of one contract
func Path(id ID) drive.Path {
	return RootPath().Child(id[:])
}

// TypePath - the subtree of one document type
func TypePath(id ID, typeName string) drive.Path {
	return Path(id).Child(documentsKey).Child([]byte(typeName))
}

// PrimaryPath - the primary document storage of one type
//
// documents live here keyed by their id; index trees are siblings
// of the primary tree inside the type subtree
func PrimaryPath(id ID, typeName string) drive.Path {
	return TypePath(id, typeName).Child(primaryKey)
}

// HistoryPath - superseded versions of one contract
func HistoryPath(id ID) drive.Path {
	return Path(id).Child(historyKey)
}

// revision history storage key
func revisionKey(revision uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, revision)
	return key
}

// RecordKey - the key of the packed contract inside its subtree
func RecordKey() []byte {
	return contractKey
}

// RevisionKey - the history key of one superseded revision
func RevisionKey(revision uint64) []byte {
	return revisionKey(revision)
}

// Register - store a new contract
//
// creates the contract subtree, the per type document trees and the
// revision history tree
func Register(tx *drive.Tx, c *Contract, epoch uint16) (drive.OperationCost, error) {
	cost := drive.OperationCost{}

	if !c.compiled {
		if err := c.Compile(); nil != err {
			return cost, err
		}
	}

	exists, hc := tx.Has(RootPath(), c.ID[:])
	cost.Add(hc)
	if exists {
		return cost, fault.ErrContractAlreadyExists
	}

	flags := drive.StorageFlags{Epoch: epoch, Owner: c.OwnerID[:]}
	batch := drive.Batch{
		drive.InsertEmptyTree(RootPath(), c.ID[:]),
		drive.Insert(Path(c.ID), contractKey, drive.NewItem(c.Pack(), flags)),
		drive.InsertEmptyTree(Path(c.ID), documentsKey),
		drive.InsertEmptyTree(Path(c.ID), historyKey),
	}
	for _, name := range c.TypeNames() {
		batch = append(batch,
			drive.InsertEmptyTree(Path(c.ID).Child(documentsKey), []byte(name)),
			drive.InsertEmptyTree(TypePath(c.ID, name), primaryKey),
		)
	}

	c2, err := tx.ApplyBatch(batch)
	cost.Add(c2)
	return cost, err
}

// Fetch - load and compile a contract from the store
func Fetch(tx *drive.Tx, id ID) (*Contract, drive.OperationCost, error) {
	element, cost, err := tx.Get(Path(id), contractKey)
	if fault.ErrKeyNotFound == err || fault.ErrPathNotFound == err {
		return nil, cost, fault.ErrContractNotFound
	}
	if nil != err {
		return nil, cost, err
	}
	c, err := Unpack(element.Value)
	if nil != err {
		return nil, cost, err
	}
	err = c.Compile()
	if nil != err {
		return nil, cost, err
	}
	return c, cost, nil
}

// FetchRevision - load one superseded contract version
func FetchRevision(tx *drive.Tx, id ID, revision uint64) (*Contract, drive.OperationCost, error) {
	element, cost, err := tx.Get(HistoryPath(id), revisionKey(revision))
	if fault.ErrKeyNotFound == err || fault.ErrPathNotFound == err {
		return nil, cost, fault.ErrContractNotFound
	}
	if nil != err {
		return nil, cost, err
	}
	c, err := Unpack(element.Value)
	if nil != err {
		return nil, cost, err
	}
	return c, cost, nil
}

// Update - replace a contract with its next revision
//
// the id and owner are immutable, the revision advances by exactly
// one, existing document types keep their indexes unchanged though
// new types and new indexes may be added; the superseded version
// moves into the history tree
func Update(tx *drive.Tx, updated *Contract, epoch uint16) (drive.OperationCost, error) {
	existing, cost, err := Fetch(tx, updated.ID)
	if nil != err {
		return cost, err
	}

	if existing.OwnerID != updated.OwnerID || existing.Entropy != updated.Entropy {
		return cost, fault.ErrContractIdMismatch
	}
	if updated.Revision != existing.Revision+1 {
		return cost, fault.ErrInvalidContractRevision
	}

	if !updated.compiled {
		if err := updated.Compile(); nil != err {
			return cost, err
		}
	}

	newTypes := drive.Batch{}
	for _, name := range existing.TypeNames() {
		updatedType, ok := updated.DocumentTypes[name]
		if !ok {
			return cost, fault.ErrDocumentTypeNotFound
		}
		err = checkIndexesPreserved(existing.DocumentTypes[name], updatedType)
		if nil != err {
			return cost, err
		}
	}
	for _, name := range updated.TypeNames() {
		if _, ok := existing.DocumentTypes[name]; !ok {
			newTypes = append(newTypes,
				drive.InsertEmptyTree(Path(updated.ID).Child(documentsKey), []byte(name)),
				drive.InsertEmptyTree(TypePath(updated.ID, name), primaryKey),
			)
		}
	}

	flags := drive.StorageFlags{Epoch: epoch, Owner: updated.OwnerID[:]}
	batch := drive.Batch{
		drive.Insert(HistoryPath(updated.ID), revisionKey(existing.Revision), drive.NewItem(existing.Pack(), flags)),
		drive.Insert(Path(updated.ID), contractKey, drive.NewItem(updated.Pack(), flags)),
	}
	batch = append(batch, newTypes...)

	c2, err := tx.ApplyBatch(batch)
	cost.Add(c2)
	return cost, err
}

// existing indexes must survive an update byte for byte
func checkIndexesPreserved(old *DocumentType, updated *DocumentType) error {
	if len(updated.Indexes) < len(old.Indexes) {
		return fault.ErrContractIndexModified
	}
	for i := range old.Indexes {
		a := &old.Indexes[i]
		b := &updated.Indexes[i]
		if a.Name != b.Name || a.Unique != b.Unique ||
			len(a.Properties) != len(b.Properties) {
			return fault.ErrContractIndexModified
		}
		for j := range a.Properties {
			if a.Properties[j] != b.Properties[j] {
				return fault.ErrContractIndexModified
			}
		}
	}
	return nil
}
