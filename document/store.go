// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package document

import (
	"encoding/binary"

	"github.com/bitmark-inc/platformd/contract"
	"github.com/bitmark-inc/platformd/drive"
	"github.com/bitmark-inc/platformd/fault"
)

// history subtree key of the current version reference
var currentVersionKey = []byte{0x00}

// newest version first: bitwise complement of time then revision
func historyKey(updatedAt uint64, revision uint64) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[:8], ^updatedAt)
	binary.BigEndian.PutUint64(key[8:], ^revision)
	return key
}

// resolved type coordinates used by every operation
type typeContext struct {
	dt       *contract.DocumentType
	primary  drive.Path
	typePath drive.Path
}

func resolveType(c *contract.Contract, typeName string) (*typeContext, error) {
	dt, err := c.DocumentType(typeName)
	if nil != err {
		return nil, err
	}
	return &typeContext{
		dt:       dt,
		primary:  contract.PrimaryPath(c.ID, typeName),
		typePath: contract.TypePath(c.ID, typeName),
	}, nil
}

// Create - store a new document with all its index entries
func Create(tx *drive.Tx, c *contract.Contract, d *Document, epoch uint16) (drive.OperationCost, error) {
	cost := drive.OperationCost{}

	ctx, err := resolveType(c, d.Type)
	if nil != err {
		return cost, err
	}
	if c.ID != d.ContractID {
		return cost, fault.ErrContractIdMismatch
	}
	if err := d.Validate(ctx.dt); nil != err {
		return cost, err
	}
	// the first stored revision is always one
	if 1 != d.Revision {
		return cost, fault.ErrInvalidDocumentRevision
	}

	exists, c2 := tx.Has(ctx.primary, d.ID[:])
	cost.Add(c2)
	if exists {
		return cost, fault.ErrDocumentAlreadyExists
	}

	flags := drive.StorageFlags{Epoch: epoch, Owner: d.OwnerID[:]}
	packed := d.Pack()

	batch := drive.Batch{}
	target := ctx.primary
	targetKey := d.ID[:]
	if ctx.dt.DocumentsKeepHistory {
		versioned := ctx.primary.Child(d.ID[:])
		versionKey := historyKey(d.UpdatedAt, d.Revision)
		batch = append(batch,
			drive.InsertEmptyTree(ctx.primary, d.ID[:]),
			drive.Insert(versioned, versionKey, drive.NewItem(packed, flags)),
			drive.Insert(versioned, currentVersionKey, drive.NewReference(versioned, versionKey, flags)),
		)
		target = versioned
		targetKey = versionKey
	} else {
		batch = append(batch,
			drive.Insert(ctx.primary, d.ID[:], drive.NewItem(packed, flags)),
		)
	}

	entries, c3, err := deriveAndCheckEntries(tx, d, ctx)
	cost.Add(c3)
	if nil != err {
		return cost, err
	}
	for _, entry := range entries {
		batch = append(batch, entry.insertOps(target, targetKey, len(ctx.typePath), flags)...)
	}

	c4, err := tx.ApplyBatch(batch)
	cost.Add(c4)
	return cost, err
}

// derive all index entries and check unique conflicts
func deriveAndCheckEntries(tx *drive.Tx, d *Document, ctx *typeContext) ([]*indexEntry, drive.OperationCost, error) {
	cost := drive.OperationCost{}
	entries := make([]*indexEntry, 0, len(ctx.dt.Indexes))
	for i := range ctx.dt.Indexes {
		entry, err := deriveEntry(d, &ctx.dt.Indexes[i], ctx.dt)
		if nil != err {
			return nil, cost, err
		}
		c, err := entry.checkUniqueConflict(tx, d.ID)
		cost.Add(c)
		if nil != err {
			return nil, cost, err
		}
		entries = append(entries, entry)
	}
	return entries, cost, nil
}

// Fetch - read the current version of a document
func Fetch(tx *drive.Tx, c *contract.Contract, typeName string, id ID) (*Document, drive.OperationCost, error) {
	ctx, err := resolveType(c, typeName)
	if nil != err {
		return nil, drive.OperationCost{}, err
	}

	element, cost, err := tx.GetRaw(ctx.primary, id[:])
	if fault.ErrKeyNotFound == err || fault.ErrPathNotFound == err {
		return nil, cost, fault.ErrDocumentNotFound
	}
	if nil != err {
		return nil, cost, err
	}

	if element.IsSubtree() {
		// history mode: follow the current version reference
		element, c2, err := tx.Get(ctx.primary.Child(id[:]), currentVersionKey)
		cost.Add(c2)
		if nil != err {
			return nil, cost, err
		}
		d, err := Unpack(element.Value)
		return d, cost, err
	}

	d, err := Unpack(element.Value)
	return d, cost, err
}

// Replace - store the next revision of a document
//
// the revision advances by exactly one and the owner is immutable;
// history types append the new version, plain types overwrite; index
// entries whose projections changed move, unchanged unique entries
// are refreshed so their digests follow the primary update
func Replace(tx *drive.Tx, c *contract.Contract, d *Document, epoch uint16) (drive.OperationCost, error) {
	cost := drive.OperationCost{}

	ctx, err := resolveType(c, d.Type)
	if nil != err {
		return cost, err
	}
	if !ctx.dt.DocumentsMutable {
		return cost, fault.ErrDocumentNotMutable
	}
	if err := d.Validate(ctx.dt); nil != err {
		return cost, err
	}

	existing, c2, err := Fetch(tx, c, d.Type, d.ID)
	cost.Add(c2)
	if nil != err {
		return cost, err
	}
	if existing.OwnerID != d.OwnerID {
		return cost, fault.ErrDocumentOwnerMismatch
	}
	if d.Revision != existing.Revision+1 {
		return cost, fault.ErrInvalidDocumentRevision
	}

	flags := drive.StorageFlags{Epoch: epoch, Owner: d.OwnerID[:]}
	packed := d.Pack()

	batch := drive.Batch{}
	target := ctx.primary
	targetKey := d.ID[:]
	if ctx.dt.DocumentsKeepHistory {
		versioned := ctx.primary.Child(d.ID[:])
		versionKey := historyKey(d.UpdatedAt, d.Revision)
		batch = append(batch,
			drive.Insert(versioned, versionKey, drive.NewItem(packed, flags)),
			drive.Insert(versioned, currentVersionKey, drive.NewReference(versioned, versionKey, flags)),
		)
		target = versioned
		targetKey = versionKey
	} else {
		batch = append(batch,
			drive.Insert(ctx.primary, d.ID[:], drive.NewItem(packed, flags)),
		)
	}

	for i := range ctx.dt.Indexes {
		index := &ctx.dt.Indexes[i]

		oldEntry, err := deriveEntry(existing, index, ctx.dt)
		if nil != err {
			return cost, err
		}
		newEntry, err := deriveEntry(d, index, ctx.dt)
		if nil != err {
			return cost, err
		}

		if oldEntry.equal(newEntry) {
			if ctx.dt.DocumentsKeepHistory {
				// retarget onto the new version
				batch = append(batch, newEntry.insertOps(target, targetKey, len(ctx.typePath), flags)...)
			} else {
				batch = append(batch, drive.RefreshReference(newEntry.refPath(), newEntry.refKey()))
			}
			continue
		}

		c3, err := newEntry.checkUniqueConflict(tx, d.ID)
		cost.Add(c3)
		if nil != err {
			return cost, err
		}
		batch = append(batch, oldEntry.deleteOps(len(ctx.typePath)+1)...)
		batch = append(batch, newEntry.insertOps(target, targetKey, len(ctx.typePath), flags)...)
	}

	c4, err := tx.ApplyBatch(batch)
	cost.Add(c4)
	return cost, err
}

// Delete - remove a document and all its index entries
//
// only the owning identity may delete its document
func Delete(tx *drive.Tx, c *contract.Contract, typeName string, id ID, owner [32]byte) (drive.OperationCost, error) {
	cost := drive.OperationCost{}

	ctx, err := resolveType(c, typeName)
	if nil != err {
		return cost, err
	}
	if !ctx.dt.DocumentsMutable {
		return cost, fault.ErrDocumentNotMutable
	}
	if ctx.dt.DocumentsKeepHistory {
		return cost, fault.ErrDocumentDeleteNotAllowed
	}

	existing, c2, err := Fetch(tx, c, typeName, id)
	cost.Add(c2)
	if nil != err {
		return cost, err
	}
	if existing.OwnerID != owner {
		return cost, fault.ErrDocumentOwnerMismatch
	}

	batch := drive.Batch{
		drive.Delete(ctx.primary, id[:]),
	}
	for i := range ctx.dt.Indexes {
		entry, err := deriveEntry(existing, &ctx.dt.Indexes[i], ctx.dt)
		if nil != err {
			return cost, err
		}
		batch = append(batch, entry.deleteOps(len(ctx.typePath)+1)...)
	}

	c3, err := tx.ApplyBatch(batch)
	cost.Add(c3)
	return cost, err
}

// QueryByIndex - exact match lookup through one declared index
//
// every index property must be given a value; a unique match yields
// at most one document, non unique matches are returned in document
// id order up to the limit
func QueryByIndex(tx *drive.Tx, c *contract.Contract, typeName string, indexName string, values []Value, limit int) ([]*Document, drive.OperationCost, error) {
	cost := drive.OperationCost{}

	ctx, err := resolveType(c, typeName)
	if nil != err {
		return nil, cost, err
	}

	var index *contract.Index
	for i := range ctx.dt.Indexes {
		if indexName == ctx.dt.Indexes[i].Name {
			index = &ctx.dt.Indexes[i]
			break
		}
	}
	if nil == index {
		return nil, cost, fault.ErrPropertyNotFound
	}
	if len(values) != len(index.Properties) {
		return nil, cost, fault.ErrPropertyNotFound
	}

	path := ctx.typePath.Child([]byte(index.Name))
	allNull := true
	for i, property := range index.Properties {
		if !values[i].IsNull() {
			allNull = false
		}
		path = path.Child([]byte(property.Name)).Child(values[i].IndexKey())
	}

	resolve := func(element *drive.Element) (*Document, error) {
		if drive.KindReference != element.Kind {
			return nil, fault.ErrCorruptedStorage
		}
		target, c2, err := tx.Get(element.RefPath, element.RefKey)
		cost.Add(c2)
		if nil != err {
			return nil, err
		}
		return Unpack(target.Value)
	}

	if index.Unique && !allNull {
		element, c2, err := tx.GetRaw(path, indexLeafKey)
		cost.Add(c2)
		if fault.ErrKeyNotFound == err || fault.ErrPathNotFound == err {
			return nil, cost, nil
		}
		if nil != err {
			return nil, cost, err
		}
		d, err := resolve(element)
		if nil != err {
			return nil, cost, err
		}
		return []*Document{d}, cost, nil
	}

	results, c2, err := tx.Execute(&drive.PathQuery{
		Path:  path.Child(indexLeafKey),
		Limit: limit,
	})
	cost.Add(c2)
	if fault.ErrPathNotFound == err {
		return nil, cost, nil
	}
	if nil != err {
		return nil, cost, err
	}

	documents := make([]*Document, 0, len(results))
	for _, result := range results {
		d, err := resolve(result.Element)
		if nil != err {
			return nil, cost, err
		}
		documents = append(documents, d)
	}
	return documents, cost, nil
}
