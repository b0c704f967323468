// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package drive

import (
	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/merkle"
	"github.com/bitmark-inc/platformd/util"
)

// Kind - element type code, first byte of every packed element
type Kind byte

// all element kinds
const (
	KindSubtree    Kind = 0x01
	KindSumSubtree Kind = 0x02
	KindItem       Kind = 0x03
	KindSumItem    Kind = 0x04
	KindReference  Kind = 0x05
)

// size bounds
const (
	maxKeyLength     = 256
	maxValueLength   = 16384
	maxReferenceHops = 1 // references resolve in exactly one hop
)

// StorageFlags - prepaid storage accounting attached to leaves
//
// records the epoch that paid for the bytes and optionally the owner
// to credit when the bytes are removed
type StorageFlags struct {
	Epoch uint16
	Owner []byte // nil or 32 bytes
}

// Element - one node of a subtree
type Element struct {
	Kind    Kind
	Value   []byte        // item payload
	Sum     int64         // sum item value or sum subtree aggregate
	Child   merkle.Digest // subtree root digest, engine maintained
	RefPath Path          // reference target subtree
	RefKey  []byte        // reference target key
	Flags   StorageFlags
}

// NewItem - an item element with storage flags
func NewItem(value []byte, flags StorageFlags) *Element {
	return &Element{
		Kind:  KindItem,
		Value: value,
		Flags: flags,
	}
}

// NewSumItem - a signed sum leaf
func NewSumItem(sum int64, flags StorageFlags) *Element {
	return &Element{
		Kind:  KindSumItem,
		Sum:   sum,
		Flags: flags,
	}
}

// NewReference - a one hop reference to primary storage
func NewReference(path Path, key []byte, flags StorageFlags) *Element {
	return &Element{
		Kind:    KindReference,
		RefPath: path,
		RefKey:  key,
		Flags:   flags,
	}
}

// NewSubtree - an empty subtree element
func NewSubtree() *Element {
	return &Element{Kind: KindSubtree, Child: emptySubtreeDigest()}
}

// NewSumSubtree - an empty sum subtree element
func NewSumSubtree() *Element {
	return &Element{Kind: KindSumSubtree, Child: emptySubtreeDigest()}
}

// digest of a subtree with no children
func emptySubtreeDigest() merkle.Digest {
	return merkle.NewDigest(nil)
}

// IsSubtree - true for both subtree kinds
func (e *Element) IsSubtree() bool {
	return KindSubtree == e.Kind || KindSumSubtree == e.Kind
}

// pack the storage flags
func (f StorageFlags) pack(buffer []byte) []byte {
	buffer = util.AppendVarint64(buffer, uint64(f.Epoch))
	if nil == f.Owner {
		return append(buffer, 0x00)
	}
	buffer = append(buffer, 0x01)
	return append(buffer, f.Owner...)
}

// unpack the storage flags
func unpackFlags(buffer []byte) (StorageFlags, int, error) {
	flags := StorageFlags{}
	epoch, n := util.FromVarint64(buffer)
	if 0 == n || epoch > 0xffff {
		return flags, 0, fault.ErrCorruptedStorage
	}
	flags.Epoch = uint16(epoch)
	if len(buffer) < n+1 {
		return flags, 0, fault.ErrCorruptedStorage
	}
	marker := buffer[n]
	n += 1
	switch marker {
	case 0x00:
		// no owner
	case 0x01:
		if len(buffer) < n+merkle.DigestLength {
			return flags, 0, fault.ErrCorruptedStorage
		}
		flags.Owner = make([]byte, merkle.DigestLength)
		copy(flags.Owner, buffer[n:n+merkle.DigestLength])
		n += merkle.DigestLength
	default:
		return flags, 0, fault.ErrCorruptedStorage
	}
	return flags, n, nil
}

// Pack - canonical byte encoding of an element
func (e *Element) Pack() []byte {
	buffer := []byte{byte(e.Kind)}
	switch e.Kind {
	case KindSubtree:
		buffer = append(buffer, e.Child[:]...)
	case KindSumSubtree:
		buffer = append(buffer, e.Child[:]...)
		buffer = util.AppendInt64(buffer, e.Sum)
	case KindItem:
		buffer = util.AppendBytes(buffer, e.Value)
		buffer = e.Flags.pack(buffer)
	case KindSumItem:
		buffer = util.AppendInt64(buffer, e.Sum)
		buffer = e.Flags.pack(buffer)
	case KindReference:
		buffer = append(buffer, maxReferenceHops)
		buffer = append(buffer, e.RefPath.Canonical()...)
		buffer = util.AppendBytes(buffer, e.RefKey)
		buffer = e.Flags.pack(buffer)
	default:
		fault.PanicWithError("element.Pack", fault.ErrWrongElementType)
	}
	return buffer
}

// UnpackElement - decode a packed element
func UnpackElement(buffer []byte) (*Element, error) {
	if 0 == len(buffer) {
		return nil, fault.ErrCorruptedStorage
	}
	e := &Element{Kind: Kind(buffer[0])}
	n := 1
	switch e.Kind {

	case KindSubtree, KindSumSubtree:
		if len(buffer) < n+merkle.DigestLength {
			return nil, fault.ErrCorruptedStorage
		}
		copy(e.Child[:], buffer[n:n+merkle.DigestLength])
		n += merkle.DigestLength
		if KindSumSubtree == e.Kind {
			sum, m := util.Int64FromVarint64(buffer[n:])
			if 0 == m {
				return nil, fault.ErrCorruptedStorage
			}
			e.Sum = sum
			n += m
		}

	case KindItem:
		length, m := util.ClippedVarint64(buffer[n:], 0, maxValueLength)
		if 0 == m {
			return nil, fault.ErrCorruptedStorage
		}
		n += m
		if len(buffer) < n+length {
			return nil, fault.ErrCorruptedStorage
		}
		e.Value = make([]byte, length)
		copy(e.Value, buffer[n:n+length])
		n += length
		flags, m, err := unpackFlags(buffer[n:])
		if nil != err {
			return nil, err
		}
		e.Flags = flags
		n += m

	case KindSumItem:
		sum, m := util.Int64FromVarint64(buffer[n:])
		if 0 == m {
			return nil, fault.ErrCorruptedStorage
		}
		e.Sum = sum
		n += m
		flags, m, err := unpackFlags(buffer[n:])
		if nil != err {
			return nil, err
		}
		e.Flags = flags
		n += m

	case KindReference:
		if len(buffer) < n+1 || maxReferenceHops != buffer[n] {
			return nil, fault.ErrCorruptedStorage
		}
		n += 1
		path, m := pathFromCanonical(buffer[n:])
		if 0 == m {
			return nil, fault.ErrCorruptedStorage
		}
		e.RefPath = path
		n += m
		length, m := util.ClippedVarint64(buffer[n:], 0, maxKeyLength)
		if 0 == m {
			return nil, fault.ErrCorruptedStorage
		}
		n += m
		if len(buffer) < n+length {
			return nil, fault.ErrCorruptedStorage
		}
		e.RefKey = make([]byte, length)
		copy(e.RefKey, buffer[n:n+length])
		n += length
		flags, m, err := unpackFlags(buffer[n:])
		if nil != err {
			return nil, err
		}
		e.Flags = flags
		n += m

	default:
		return nil, fault.ErrWrongElementType
	}
	return e, nil
}

// Digest - the authenticated digest of an element
//
// subtrees hash their maintained child root so a parent binds the
// whole subtree below it
func (e *Element) Digest() merkle.Digest {
	return merkle.NewDigest(e.Pack())
}

// leaf digest binding a key to its element inside one subtree level
func leafDigest(key []byte, elementDigest merkle.Digest) merkle.Digest {
	buffer := util.AppendBytes(nil, key)
	return merkle.NewDigest(append(buffer, elementDigest[:]...))
}

// sum contribution of an element inside a sum subtree
func (e *Element) sumContribution() int64 {
	switch e.Kind {
	case KindSumItem, KindSumSubtree:
		return e.Sum
	default:
		return 0
	}
}
