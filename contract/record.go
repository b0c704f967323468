// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package contract

import (
	"sort"

	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/util"
)

// marker distinguishing a reference node from a typed node
const refMarker = 0xff

// structural decode limits
const (
	maxDefsCount    = 64
	maxTypesCount   = 64
	maxIndexCount   = 64
	maxIndexDepth   = 16
	maxNameLength   = 256
	maxRecordLength = 65536
)

// Pack - canonical byte encoding of a contract
//
// maps are encoded in sorted key order so equal contracts pack to
// equal bytes regardless of construction order
func (c *Contract) Pack() []byte {
	buffer := make([]byte, 0, 512)
	buffer = append(buffer, c.ID[:]...)
	buffer = append(buffer, c.OwnerID[:]...)
	buffer = append(buffer, c.Entropy[:]...)
	buffer = util.AppendVarint64(buffer, c.Revision)

	defNames := make([]string, 0, len(c.Defs))
	for name := range c.Defs {
		defNames = append(defNames, name)
	}
	sort.Strings(defNames)
	buffer = util.AppendVarint64(buffer, uint64(len(defNames)))
	for _, name := range defNames {
		buffer = util.AppendString(buffer, name)
		buffer = packNode(buffer, c.Defs[name])
	}

	typeNames := c.TypeNames()
	buffer = util.AppendVarint64(buffer, uint64(len(typeNames)))
	for _, name := range typeNames {
		dt := c.DocumentTypes[name]
		buffer = util.AppendString(buffer, name)
		flags := byte(0)
		if dt.DocumentsKeepHistory {
			flags |= 0x01
		}
		if dt.DocumentsMutable {
			flags |= 0x02
		}
		buffer = append(buffer, flags)
		buffer = packNode(buffer, dt.Schema)

		buffer = util.AppendVarint64(buffer, uint64(len(dt.Indexes)))
		for i := range dt.Indexes {
			index := &dt.Indexes[i]
			buffer = util.AppendString(buffer, index.Name)
			if index.Unique {
				buffer = append(buffer, 0x01)
			} else {
				buffer = append(buffer, 0x00)
			}
			buffer = util.AppendVarint64(buffer, uint64(len(index.Properties)))
			for _, property := range index.Properties {
				buffer = util.AppendString(buffer, property.Name)
				if property.Ascending {
					buffer = append(buffer, 0x01)
				} else {
					buffer = append(buffer, 0x00)
				}
			}
		}
	}
	return buffer
}

// encode one schema node, recursively
func packNode(buffer []byte, node *SchemaNode) []byte {
	if "" != node.Ref {
		buffer = append(buffer, refMarker)
		return util.AppendString(buffer, node.Ref)
	}

	buffer = append(buffer, byte(node.Type))
	buffer = util.AppendVarint64(buffer, uint64(node.MinLength))
	buffer = util.AppendVarint64(buffer, uint64(node.MaxLength))
	buffer = util.AppendVarint64(buffer, uint64(node.MaxItems))

	switch node.Type {
	case PropertyObject:
		names := make([]string, 0, len(node.Properties))
		for name := range node.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		buffer = util.AppendVarint64(buffer, uint64(len(names)))
		for _, name := range names {
			buffer = util.AppendString(buffer, name)
			buffer = packNode(buffer, node.Properties[name])
		}

		required := make([]string, len(node.Required))
		copy(required, node.Required)
		sort.Strings(required)
		buffer = util.AppendVarint64(buffer, uint64(len(required)))
		for _, name := range required {
			buffer = util.AppendString(buffer, name)
		}

	case PropertyArray:
		buffer = packNode(buffer, node.Items)
	}
	return buffer
}

// decode state threaded through the unpack helpers
type unpacker struct {
	buffer []byte
	n      int
	failed bool
}

func (u *unpacker) fail() {
	u.failed = true
}

func (u *unpacker) varint() uint64 {
	if u.failed {
		return 0
	}
	value, m := util.FromVarint64(u.buffer[u.n:])
	if 0 == m {
		u.fail()
		return 0
	}
	u.n += m
	return value
}

func (u *unpacker) bytes(limit int) []byte {
	if u.failed {
		return nil
	}
	length, m := util.ClippedVarint64(u.buffer[u.n:], 0, limit)
	if 0 == m {
		u.fail()
		return nil
	}
	u.n += m
	if len(u.buffer) < u.n+length {
		u.fail()
		return nil
	}
	data := make([]byte, length)
	copy(data, u.buffer[u.n:u.n+length])
	u.n += length
	return data
}

func (u *unpacker) str(limit int) string {
	return string(u.bytes(limit))
}

func (u *unpacker) byteValue() byte {
	if u.failed {
		return 0
	}
	if len(u.buffer) < u.n+1 {
		u.fail()
		return 0
	}
	b := u.buffer[u.n]
	u.n += 1
	return b
}

func (u *unpacker) fixed(length int) []byte {
	if u.failed {
		return nil
	}
	if len(u.buffer) < u.n+length {
		u.fail()
		return nil
	}
	data := u.buffer[u.n : u.n+length]
	u.n += length
	return data
}

// decode one schema node, recursively
func (u *unpacker) node(depth int) *SchemaNode {
	if u.failed || depth > maxSchemaDepth {
		u.fail()
		return nil
	}

	marker := u.byteValue()
	if refMarker == marker {
		return &SchemaNode{Ref: u.str(maxNameLength)}
	}

	node := &SchemaNode{
		Type:      PropertyType(marker),
		MinLength: uint32(u.varint()),
		MaxLength: uint32(u.varint()),
		MaxItems:  uint32(u.varint()),
	}

	switch node.Type {
	case PropertyObject:
		count := u.varint()
		if count > maxPropertyCount {
			u.fail()
			return nil
		}
		node.Properties = make(map[string]*SchemaNode, count)
		for i := uint64(0); i < count && !u.failed; i += 1 {
			name := u.str(maxNameLength)
			node.Properties[name] = u.node(depth + 1)
		}
		requiredCount := u.varint()
		if requiredCount > maxPropertyCount {
			u.fail()
			return nil
		}
		for i := uint64(0); i < requiredCount && !u.failed; i += 1 {
			node.Required = append(node.Required, u.str(maxNameLength))
		}

	case PropertyArray:
		node.Items = u.node(depth + 1)

	case PropertyInteger, PropertyNumber, PropertyString, PropertyBytes,
		PropertyIdentifier, PropertyBoolean, PropertyDate:

	default:
		u.fail()
		return nil
	}
	return node
}

// Unpack - decode a packed contract
//
// the result is not yet compiled
func Unpack(buffer []byte) (*Contract, error) {
	if len(buffer) > maxRecordLength {
		return nil, fault.ErrDataTooLarge
	}
	u := &unpacker{buffer: buffer}

	c := &Contract{
		Defs:          make(map[string]*SchemaNode),
		DocumentTypes: make(map[string]*DocumentType),
	}
	copy(c.ID[:], u.fixed(IDLength))
	copy(c.OwnerID[:], u.fixed(32))
	copy(c.Entropy[:], u.fixed(32))
	c.Revision = u.varint()

	defCount := u.varint()
	if defCount > maxDefsCount {
		u.fail()
	}
	for i := uint64(0); i < defCount && !u.failed; i += 1 {
		name := u.str(maxNameLength)
		c.Defs[name] = u.node(0)
	}

	typeCount := u.varint()
	if typeCount > maxTypesCount {
		u.fail()
	}
	for i := uint64(0); i < typeCount && !u.failed; i += 1 {
		name := u.str(maxNameLength)
		flags := u.byteValue()
		if 0 != flags&^0x03 {
			u.fail()
			break
		}
		dt := &DocumentType{
			Name:                 name,
			DocumentsKeepHistory: 0 != flags&0x01,
			DocumentsMutable:     0 != flags&0x02,
			Schema:               u.node(0),
		}

		indexCount := u.varint()
		if indexCount > maxIndexCount {
			u.fail()
			break
		}
		for j := uint64(0); j < indexCount && !u.failed; j += 1 {
			index := Index{
				Name:   u.str(maxNameLength),
				Unique: 0x01 == u.byteValue(),
			}
			propertyCount := u.varint()
			if propertyCount > maxIndexDepth {
				u.fail()
				break
			}
			for k := uint64(0); k < propertyCount && !u.failed; k += 1 {
				index.Properties = append(index.Properties, IndexProperty{
					Name:      u.str(maxNameLength),
					Ascending: 0x01 == u.byteValue(),
				})
			}
			dt.Indexes = append(dt.Indexes, index)
		}
		c.DocumentTypes[name] = dt
	}

	if u.failed || u.n != len(buffer) {
		return nil, fault.ErrCorruptedStorage
	}
	return c, nil
}
