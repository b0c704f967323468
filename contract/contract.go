// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package contract - data contracts, document schemas and indexes
//
// A contract declares document types: a property schema tree with
// $defs references, a required set and secondary indexes.  Compiling
// a contract expands references into a flat dot joined property map
// and validates every index against the consensus rules; compiled
// contracts are immutable and shared through the platform cache.
package contract

import (
	"sort"

	"github.com/mr-tron/base58"

	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/merkle"
)

// IDLength - bytes in a contract id
const IDLength = 32

// ID - a contract identifier
type ID [IDLength]byte

// String - base58 text form
func (id ID) String() string {
	return base58.Encode(id[:])
}

// IDFromBytes - convert a byte slice to a contract id
func IDFromBytes(buffer []byte) (ID, error) {
	id := ID{}
	if IDLength != len(buffer) {
		return id, fault.ErrContractNotFound
	}
	copy(id[:], buffer)
	return id, nil
}

// DeriveID - contract id from its owner and creation entropy
func DeriveID(owner []byte, entropy []byte) ID {
	buffer := make([]byte, 0, len(owner)+len(entropy))
	buffer = append(buffer, owner...)
	buffer = append(buffer, entropy...)
	return ID(merkle.NewDigest(buffer))
}

// IndexProperty - one ordered property of an index
type IndexProperty struct {
	Name      string
	Ascending bool
}

// Index - a secondary index over one document type
type Index struct {
	Name       string
	Unique     bool
	Properties []IndexProperty
}

// DocumentType - one document type of a contract
//
// the flat property map and cached path sets are derived at compile
// time; both the tree and the flat map are kept since validation
// walks the tree while indexing and queries use the flat paths
type DocumentType struct {
	Name                 string
	Schema               *SchemaNode
	Indexes              []Index
	DocumentsKeepHistory bool
	DocumentsMutable     bool

	flat *flatSchema
}

// Contract - a full data contract
type Contract struct {
	ID            ID
	OwnerID       [32]byte
	Entropy       [32]byte
	Revision      uint64
	Defs          map[string]*SchemaNode
	DocumentTypes map[string]*DocumentType

	compiled bool
}

// DocumentType - look up a document type by name
func (c *Contract) DocumentType(name string) (*DocumentType, error) {
	dt, ok := c.DocumentTypes[name]
	if !ok {
		return nil, fault.ErrDocumentTypeNotFound
	}
	return dt, nil
}

// TypeNames - document type names in deterministic order
func (c *Contract) TypeNames() []string {
	names := make([]string, 0, len(c.DocumentTypes))
	for name := range c.DocumentTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Property - flat schema node for a dot joined path
func (dt *DocumentType) Property(path string) (*SchemaNode, error) {
	node, ok := dt.flat.properties[path]
	if !ok {
		return nil, fault.ErrPropertyNotFound
	}
	return node, nil
}

// Required - true when a property path must be present
func (dt *DocumentType) Required(path string) bool {
	return dt.flat.required[path]
}

// RequiredPaths - all required property paths in deterministic order
func (dt *DocumentType) RequiredPaths() []string {
	paths := make([]string, 0, len(dt.flat.required))
	for path := range dt.flat.required {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// IdentifierPaths - flat paths holding identifiers
func (dt *DocumentType) IdentifierPaths() map[string]bool {
	return dt.flat.identifierPaths
}

// ByteArrayPaths - flat paths holding byte arrays
func (dt *DocumentType) ByteArrayPaths() map[string]bool {
	return dt.flat.byteArrayPaths
}

// Compile - derive flat schemas and validate every index
//
// the id must already match the owner and entropy; a compiled
// contract is safe to share between goroutines
func (c *Contract) Compile() error {
	if DeriveID(c.OwnerID[:], c.Entropy[:]) != c.ID {
		return fault.ErrContractIdMismatch
	}

	for _, name := range c.TypeNames() {
		dt := c.DocumentTypes[name]
		dt.Name = name

		if nil == dt.Schema || PropertyObject != dt.Schema.Type {
			return fault.ErrInvalidPropertyType
		}

		flat, err := flatten(dt.Schema, c.Defs)
		if nil != err {
			return err
		}
		dt.flat = flat

		err = dt.validateIndexes()
		if nil != err {
			return err
		}
	}
	c.compiled = true
	return nil
}

// validateIndexes - the consensus rules for one type's indexes
func (dt *DocumentType) validateIndexes() error {
	names := make(map[string]bool, len(dt.Indexes))
	uniqueCount := 0

	for i := range dt.Indexes {
		index := &dt.Indexes[i]

		if "" == index.Name || names[index.Name] {
			return fault.ErrDuplicateIndexName
		}
		names[index.Name] = true

		if index.Unique {
			uniqueCount += 1
			if uniqueCount > maxUniqueIndexCount {
				return fault.ErrUniqueIndicesLimitReached
			}
		}

		if 0 == len(index.Properties) {
			return fault.ErrInvalidIndexedPropertyConstraint
		}

		for _, property := range index.Properties {
			if systemProperties[property.Name] {
				// $id is implicitly the primary index
				return fault.ErrSystemPropertyRedeclared
			}
			node, err := dt.Property(property.Name)
			if nil != err {
				return err
			}
			err = checkIndexable(node)
			if nil != err {
				return err
			}
		}
	}
	return nil
}

// checkIndexable - size and type constraints on indexed properties
func checkIndexable(node *SchemaNode) error {
	switch node.Type {

	case PropertyString:
		if 0 == node.MaxLength || node.MaxLength > maxIndexStringSize {
			return fault.ErrInvalidIndexedPropertyConstraint
		}

	case PropertyBytes:
		if 0 == node.MaxLength || node.MaxLength > maxIndexBytesSize {
			return fault.ErrInvalidIndexedPropertyConstraint
		}

	case PropertyArray, PropertyObject:
		return fault.ErrInvalidIndexPropertyType

	case PropertyInteger, PropertyNumber, PropertyIdentifier,
		PropertyBoolean, PropertyDate:
		// fixed size, always indexable

	default:
		return fault.ErrInvalidIndexPropertyType
	}
	return nil
}
