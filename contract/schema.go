// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package contract

import (
	"strings"

	"github.com/bitmark-inc/platformd/fault"
)

// PropertyType - the declared type of a document property
type PropertyType byte

// all property types
const (
	PropertyInteger    PropertyType = 0x01
	PropertyNumber     PropertyType = 0x02
	PropertyString     PropertyType = 0x03
	PropertyBytes      PropertyType = 0x04
	PropertyIdentifier PropertyType = 0x05
	PropertyBoolean    PropertyType = 0x06
	PropertyDate       PropertyType = 0x07
	PropertyObject     PropertyType = 0x08
	PropertyArray      PropertyType = 0x09
)

// schema structural limits
const (
	maxSchemaDepth      = 16
	maxPropertyCount    = 256
	maxRefExpansions    = 128
	refPrefix           = "$defs/"
	maxStringLengthCap  = 16384
	maxIndexStringSize  = 63
	maxIndexBytesSize   = 255
	maxIndexArrayItems  = 1024
	maxUniqueIndexCount = 16
)

// system property names, implicitly defined on every document type
var systemProperties = map[string]bool{
	"$id":        true,
	"$ownerId":   true,
	"$revision":  true,
	"$createdAt": true,
	"$updatedAt": true,
}

// SchemaNode - one node of a document type schema tree
//
// either a concrete type or a $defs reference, never both; only
// object nodes carry children and a required list
type SchemaNode struct {
	Type       PropertyType
	Ref        string // "$defs/<name>" style reference
	MinLength  uint32 // strings and byte arrays
	MaxLength  uint32 // zero means unbounded
	MaxItems   uint32 // arrays, zero means unbounded
	Properties map[string]*SchemaNode
	Required   []string
	Items      *SchemaNode // array element schema
}

// flattened view of one document type schema
type flatSchema struct {
	properties      map[string]*SchemaNode // dot joined paths
	required        map[string]bool
	identifierPaths map[string]bool
	byteArrayPaths  map[string]bool
}

// resolve a $defs reference
func resolveRef(node *SchemaNode, defs map[string]*SchemaNode, expansions *int) (*SchemaNode, error) {
	for "" != node.Ref {
		*expansions += 1
		if *expansions > maxRefExpansions {
			return nil, fault.ErrSchemaReferenceNotFound
		}
		if !strings.HasPrefix(node.Ref, refPrefix) {
			return nil, fault.ErrSchemaReferenceNotFound
		}
		target, ok := defs[node.Ref[len(refPrefix):]]
		if !ok {
			return nil, fault.ErrSchemaReferenceNotFound
		}
		node = target
	}
	return node, nil
}

// walk one schema tree accumulating flat dot joined paths
func (flat *flatSchema) walk(prefix string, node *SchemaNode, defs map[string]*SchemaNode, depth int, expansions *int) error {
	if depth > maxSchemaDepth {
		return fault.ErrDataTooLarge
	}

	node, err := resolveRef(node, defs, expansions)
	if nil != err {
		return err
	}

	switch node.Type {

	case PropertyObject:
		if "" != prefix {
			flat.properties[prefix] = node
		}
		for name, child := range node.Properties {
			if systemProperties[name] || strings.ContainsAny(name, ".$") {
				return fault.ErrSystemPropertyRedeclared
			}
			childPath := name
			if "" != prefix {
				childPath = prefix + "." + name
			}
			err = flat.walk(childPath, child, defs, depth+1, expansions)
			if nil != err {
				return err
			}
		}
		for _, name := range node.Required {
			requiredPath := name
			if "" != prefix {
				requiredPath = prefix + "." + name
			}
			if _, ok := flat.properties[requiredPath]; !ok {
				return fault.ErrPropertyNotFound
			}
			flat.required[requiredPath] = true
		}

	case PropertyArray:
		if nil == node.Items {
			return fault.ErrInvalidPropertyType
		}
		flat.properties[prefix] = node
		items, err := resolveRef(node.Items, defs, expansions)
		if nil != err {
			return err
		}
		if PropertyObject == items.Type || PropertyArray == items.Type {
			return fault.ErrInvalidPropertyType // no nested containers in arrays
		}

	case PropertyInteger, PropertyNumber, PropertyString, PropertyBytes,
		PropertyIdentifier, PropertyBoolean, PropertyDate:
		if "" == prefix {
			return fault.ErrInvalidPropertyType // the root must be an object
		}
		flat.properties[prefix] = node
		switch node.Type {
		case PropertyIdentifier:
			flat.identifierPaths[prefix] = true
		case PropertyBytes:
			flat.byteArrayPaths[prefix] = true
		}

	default:
		return fault.ErrInvalidPropertyType
	}

	if len(flat.properties) > maxPropertyCount {
		return fault.ErrDataTooLarge
	}
	return nil
}

// flatten - build the flat property map of a schema tree
func flatten(root *SchemaNode, defs map[string]*SchemaNode) (*flatSchema, error) {
	flat := &flatSchema{
		properties:      make(map[string]*SchemaNode),
		required:        make(map[string]bool),
		identifierPaths: make(map[string]bool),
		byteArrayPaths:  make(map[string]bool),
	}
	expansions := 0
	err := flat.walk("", root, defs, 0, &expansions)
	if nil != err {
		return nil, err
	}
	return flat, nil
}
