// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package document - documents stored under data contracts
//
// A document is a typed property bag owned by an identity.  Its
// primary copy lives in the contract's per type tree keyed by the
// document id; every declared index holds references back to the
// primary copy so index lookups cost one extra hop at most.
package document

import (
	"sort"

	"github.com/mr-tron/base58"

	"github.com/bitmark-inc/platformd/contract"
	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/merkle"
	"github.com/bitmark-inc/platformd/util"
)

// IDLength - bytes in a document id
const IDLength = 32

// ID - a document identifier
type ID [IDLength]byte

// String - base58 text form
func (id ID) String() string {
	return base58.Encode(id[:])
}

// IDFromBytes - convert a byte slice to a document id
func IDFromBytes(buffer []byte) (ID, error) {
	id := ID{}
	if IDLength != len(buffer) {
		return id, fault.ErrDocumentNotFound
	}
	copy(id[:], buffer)
	return id, nil
}

// DeriveID - document id from its coordinates and creation entropy
func DeriveID(contractID contract.ID, owner []byte, typeName string, entropy []byte) ID {
	buffer := make([]byte, 0, 128)
	buffer = append(buffer, contractID[:]...)
	buffer = append(buffer, owner...)
	buffer = append(buffer, typeName...)
	buffer = append(buffer, entropy...)
	return ID(merkle.NewDigest(buffer))
}

// Document - one document record
//
// CreatedAt and UpdatedAt are both zero or both set; they are
// milliseconds since the unix epoch
type Document struct {
	ID         ID
	ContractID contract.ID
	Type       string
	OwnerID    [32]byte
	Revision   uint64
	CreatedAt  uint64
	UpdatedAt  uint64
	Properties map[string]Value
}

// Pack - canonical byte encoding
func (d *Document) Pack() []byte {
	buffer := make([]byte, 0, 256)
	buffer = append(buffer, d.ID[:]...)
	buffer = append(buffer, d.ContractID[:]...)
	buffer = util.AppendString(buffer, d.Type)
	buffer = append(buffer, d.OwnerID[:]...)
	buffer = util.AppendVarint64(buffer, d.Revision)
	buffer = util.AppendVarint64(buffer, d.CreatedAt)
	buffer = util.AppendVarint64(buffer, d.UpdatedAt)

	keys := make([]string, 0, len(d.Properties))
	for key := range d.Properties {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	buffer = util.AppendVarint64(buffer, uint64(len(keys)))
	for _, key := range keys {
		buffer = util.AppendString(buffer, key)
		buffer = d.Properties[key].pack(buffer)
	}
	return buffer
}

// Unpack - decode a packed document
func Unpack(buffer []byte) (*Document, error) {
	d := &Document{}
	if len(buffer) < 2*IDLength {
		return nil, fault.ErrCorruptedStorage
	}
	copy(d.ID[:], buffer[:IDLength])
	n := IDLength
	copy(d.ContractID[:], buffer[n:n+contract.IDLength])
	n += contract.IDLength

	length, m := util.ClippedVarint64(buffer[n:], 1, 256)
	if 0 == m {
		return nil, fault.ErrCorruptedStorage
	}
	n += m
	if len(buffer) < n+length {
		return nil, fault.ErrCorruptedStorage
	}
	d.Type = string(buffer[n : n+length])
	n += length

	if len(buffer) < n+32 {
		return nil, fault.ErrCorruptedStorage
	}
	copy(d.OwnerID[:], buffer[n:n+32])
	n += 32

	revision, m := util.FromVarint64(buffer[n:])
	if 0 == m {
		return nil, fault.ErrCorruptedStorage
	}
	d.Revision = revision
	n += m

	createdAt, m := util.FromVarint64(buffer[n:])
	if 0 == m {
		return nil, fault.ErrCorruptedStorage
	}
	d.CreatedAt = createdAt
	n += m

	updatedAt, m := util.FromVarint64(buffer[n:])
	if 0 == m {
		return nil, fault.ErrCorruptedStorage
	}
	d.UpdatedAt = updatedAt
	n += m

	count, m := util.ClippedVarint64(buffer[n:], 0, maxObjectKeys)
	if 0 == m {
		return nil, fault.ErrCorruptedStorage
	}
	n += m

	d.Properties = make(map[string]Value, count)
	for i := 0; i < count; i += 1 {
		keyLength, m := util.ClippedVarint64(buffer[n:], 1, maxStringLength)
		if 0 == m {
			return nil, fault.ErrCorruptedStorage
		}
		n += m
		if len(buffer) < n+keyLength {
			return nil, fault.ErrCorruptedStorage
		}
		key := string(buffer[n : n+keyLength])
		n += keyLength

		value, m, err := unpackValue(buffer[n:], 0)
		if nil != err {
			return nil, err
		}
		d.Properties[key] = value
		n += m
	}

	if n != len(buffer) {
		return nil, fault.ErrCorruptedStorage
	}
	return d, nil
}

// Validate - structural checks against the document type schema
//
// checks required presence, declared types, string and byte array
// length bounds and the timestamp pairing rule
func (d *Document) Validate(dt *contract.DocumentType) error {
	if (0 == d.CreatedAt) != (0 == d.UpdatedAt) {
		return fault.ErrIncompatibleTimestamps
	}
	return d.checkTree("", d.Properties, dt)
}

// walk the value tree against the flat schema
func (d *Document) checkTree(prefix string, properties map[string]Value, dt *contract.DocumentType) error {
	seen := make(map[string]bool, len(properties))
	for name, value := range properties {
		path := name
		if "" != prefix {
			path = prefix + "." + name
		}
		// an explicit null does not satisfy a required property
		seen[name] = !value.IsNull()

		node, err := dt.Property(path)
		if nil != err {
			return fault.ErrPropertyNotFound
		}
		err = checkValue(value, node)
		if nil != err {
			return err
		}
		if KindObject == value.Kind {
			err = d.checkTree(path, value.Object, dt)
			if nil != err {
				return err
			}
		}
	}

	// required properties at this level must be present and not null
	for path := range requiredAt(prefix, dt) {
		if !seen[path] {
			return fault.ErrMissingRequiredProperty
		}
	}
	return nil
}

// required property names directly below one prefix
func requiredAt(prefix string, dt *contract.DocumentType) map[string]bool {
	names := make(map[string]bool)
	for _, path := range dt.RequiredPaths() {
		dir, name := splitPath(path)
		if dir == prefix {
			names[name] = true
		}
	}
	return names
}

// split a dot joined path into directory and final name
func splitPath(path string) (string, string) {
	for i := len(path) - 1; i >= 0; i -= 1 {
		if '.' == path[i] {
			return path[:i], path[i+1:]
		}
	}
	return "", path
}

// checkValue - one value against one schema node
func checkValue(value Value, node *contract.SchemaNode) error {
	if value.IsNull() {
		return nil // required presence is checked separately
	}

	switch node.Type {

	case contract.PropertyInteger:
		if KindInteger != value.Kind {
			return fault.ErrInvalidPropertyType
		}

	case contract.PropertyNumber:
		if KindNumber != value.Kind && KindInteger != value.Kind {
			return fault.ErrInvalidPropertyType
		}

	case contract.PropertyString:
		if KindString != value.Kind {
			return fault.ErrInvalidPropertyType
		}
		if 0 != node.MaxLength && len(value.Str) > int(node.MaxLength) {
			return fault.ErrStringTooLong
		}
		if len(value.Str) < int(node.MinLength) {
			return fault.ErrInvalidPropertyType
		}

	case contract.PropertyBytes:
		if KindBytes != value.Kind {
			return fault.ErrInvalidPropertyType
		}
		if 0 != node.MaxLength && len(value.Bytes) > int(node.MaxLength) {
			return fault.ErrDataTooLarge
		}

	case contract.PropertyIdentifier:
		if KindIdentifier != value.Kind || 32 != len(value.Bytes) {
			return fault.ErrInvalidPropertyType
		}

	case contract.PropertyBoolean:
		if KindBoolean != value.Kind {
			return fault.ErrInvalidPropertyType
		}

	case contract.PropertyDate:
		if KindDate != value.Kind {
			return fault.ErrInvalidPropertyType
		}

	case contract.PropertyObject:
		if KindObject != value.Kind {
			return fault.ErrInvalidPropertyType
		}

	case contract.PropertyArray:
		if KindArray != value.Kind {
			return fault.ErrInvalidPropertyType
		}
		if 0 != node.MaxItems && len(value.Array) > int(node.MaxItems) {
			return fault.ErrDataTooLarge
		}

	default:
		return fault.ErrInvalidPropertyType
	}
	return nil
}
