// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package document

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"
	"strings"

	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/util"
)

// ValueKind - runtime type of a document property value
type ValueKind byte

// all value kinds
const (
	KindNull       ValueKind = 0x00
	KindInteger    ValueKind = 0x01
	KindNumber     ValueKind = 0x02
	KindString     ValueKind = 0x03
	KindBytes      ValueKind = 0x04
	KindIdentifier ValueKind = 0x05
	KindBoolean    ValueKind = 0x06
	KindDate       ValueKind = 0x07
	KindArray      ValueKind = 0x08
	KindObject     ValueKind = 0x09
)

// Value - one document property value
//
// a small tagged union; only the field matching Kind is meaningful
type Value struct {
	Kind   ValueKind
	Int    int64
	Float  float64
	Str    string
	Bytes  []byte
	Bool   bool
	Date   uint64 // milliseconds since the unix epoch
	Array  []Value
	Object map[string]Value
}

// typed constructors
func Null() Value                     { return Value{Kind: KindNull} }
func Integer(v int64) Value           { return Value{Kind: KindInteger, Int: v} }
func Number(v float64) Value          { return Value{Kind: KindNumber, Float: v} }
func String(v string) Value           { return Value{Kind: KindString, Str: v} }
func Binary(v []byte) Value           { return Value{Kind: KindBytes, Bytes: v} }
func Identifier(v []byte) Value       { return Value{Kind: KindIdentifier, Bytes: v} }
func Boolean(v bool) Value            { return Value{Kind: KindBoolean, Bool: v} }
func Date(v uint64) Value             { return Value{Kind: KindDate, Date: v} }
func Array(v []Value) Value           { return Value{Kind: KindArray, Array: v} }
func Object(v map[string]Value) Value { return Value{Kind: KindObject, Object: v} }

// IsNull - true for the null value
func (v Value) IsNull() bool {
	return KindNull == v.Kind
}

// Get - resolve a dot joined path inside a value tree
//
// returns null when any step of the path is absent
func Get(properties map[string]Value, path string) Value {
	steps := strings.Split(path, ".")
	current := Object(properties)
	for _, step := range steps {
		if KindObject != current.Kind {
			return Null()
		}
		next, ok := current.Object[step]
		if !ok {
			return Null()
		}
		current = next
	}
	return current
}

// Equal - deep value comparison
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindInteger:
		return v.Int == other.Int
	case KindNumber:
		return v.Float == other.Float
	case KindString:
		return v.Str == other.Str
	case KindBytes, KindIdentifier:
		return bytes.Equal(v.Bytes, other.Bytes)
	case KindBoolean:
		return v.Bool == other.Bool
	case KindDate:
		return v.Date == other.Date
	case KindArray:
		if len(v.Array) != len(other.Array) {
			return false
		}
		for i := range v.Array {
			if !v.Array[i].Equal(other.Array[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.Object) != len(other.Object) {
			return false
		}
		for key, value := range v.Object {
			otherValue, ok := other.Object[key]
			if !ok || !value.Equal(otherValue) {
				return false
			}
		}
		return true
	}
	return false
}

// pack one value, recursively, in canonical form
func (v Value) pack(buffer []byte) []byte {
	buffer = append(buffer, byte(v.Kind))
	switch v.Kind {
	case KindNull:
	case KindInteger:
		buffer = util.AppendInt64(buffer, v.Int)
	case KindNumber:
		bits := make([]byte, 8)
		binary.BigEndian.PutUint64(bits, math.Float64bits(v.Float))
		buffer = append(buffer, bits...)
	case KindString:
		buffer = util.AppendString(buffer, v.Str)
	case KindBytes, KindIdentifier:
		buffer = util.AppendBytes(buffer, v.Bytes)
	case KindBoolean:
		if v.Bool {
			buffer = append(buffer, 0x01)
		} else {
			buffer = append(buffer, 0x00)
		}
	case KindDate:
		buffer = util.AppendVarint64(buffer, v.Date)
	case KindArray:
		buffer = util.AppendVarint64(buffer, uint64(len(v.Array)))
		for _, item := range v.Array {
			buffer = item.pack(buffer)
		}
	case KindObject:
		keys := make([]string, 0, len(v.Object))
		for key := range v.Object {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		buffer = util.AppendVarint64(buffer, uint64(len(keys)))
		for _, key := range keys {
			buffer = util.AppendString(buffer, key)
			buffer = v.Object[key].pack(buffer)
		}
	}
	return buffer
}

// decode limits
const (
	maxValueDepth   = 16
	maxStringLength = 16384
	maxBytesLength  = 16384
	maxArrayLength  = 1024
	maxObjectKeys   = 256
)

// unpack one value, recursively
func unpackValue(buffer []byte, depth int) (Value, int, error) {
	if depth > maxValueDepth || 0 == len(buffer) {
		return Value{}, 0, fault.ErrCorruptedStorage
	}

	v := Value{Kind: ValueKind(buffer[0])}
	n := 1

	switch v.Kind {

	case KindNull:

	case KindInteger:
		value, m := util.Int64FromVarint64(buffer[n:])
		if 0 == m {
			return Value{}, 0, fault.ErrCorruptedStorage
		}
		v.Int = value
		n += m

	case KindNumber:
		if len(buffer) < n+8 {
			return Value{}, 0, fault.ErrCorruptedStorage
		}
		v.Float = math.Float64frombits(binary.BigEndian.Uint64(buffer[n : n+8]))
		n += 8

	case KindString:
		length, m := util.ClippedVarint64(buffer[n:], 0, maxStringLength)
		if 0 == m {
			return Value{}, 0, fault.ErrCorruptedStorage
		}
		n += m
		if len(buffer) < n+length {
			return Value{}, 0, fault.ErrCorruptedStorage
		}
		v.Str = string(buffer[n : n+length])
		n += length

	case KindBytes, KindIdentifier:
		length, m := util.ClippedVarint64(buffer[n:], 0, maxBytesLength)
		if 0 == m {
			return Value{}, 0, fault.ErrCorruptedStorage
		}
		n += m
		if len(buffer) < n+length {
			return Value{}, 0, fault.ErrCorruptedStorage
		}
		v.Bytes = make([]byte, length)
		copy(v.Bytes, buffer[n:n+length])
		n += length

	case KindBoolean:
		if len(buffer) < n+1 {
			return Value{}, 0, fault.ErrCorruptedStorage
		}
		switch buffer[n] {
		case 0x00:
		case 0x01:
			v.Bool = true
		default:
			return Value{}, 0, fault.ErrCorruptedStorage
		}
		n += 1

	case KindDate:
		value, m := util.FromVarint64(buffer[n:])
		if 0 == m {
			return Value{}, 0, fault.ErrCorruptedStorage
		}
		v.Date = value
		n += m

	case KindArray:
		count, m := util.ClippedVarint64(buffer[n:], 0, maxArrayLength)
		if 0 == m {
			return Value{}, 0, fault.ErrCorruptedStorage
		}
		n += m
		v.Array = make([]Value, 0, count)
		for i := 0; i < count; i += 1 {
			item, m, err := unpackValue(buffer[n:], depth+1)
			if nil != err {
				return Value{}, 0, err
			}
			v.Array = append(v.Array, item)
			n += m
		}

	case KindObject:
		count, m := util.ClippedVarint64(buffer[n:], 0, maxObjectKeys)
		if 0 == m {
			return Value{}, 0, fault.ErrCorruptedStorage
		}
		n += m
		v.Object = make(map[string]Value, count)
		for i := 0; i < count; i += 1 {
			keyLength, m := util.ClippedVarint64(buffer[n:], 0, maxStringLength)
			if 0 == m {
				return Value{}, 0, fault.ErrCorruptedStorage
			}
			n += m
			if len(buffer) < n+keyLength {
				return Value{}, 0, fault.ErrCorruptedStorage
			}
			key := string(buffer[n : n+keyLength])
			n += keyLength
			item, m, err := unpackValue(buffer[n:], depth+1)
			if nil != err {
				return Value{}, 0, err
			}
			v.Object[key] = item
			n += m
		}

	default:
		return Value{}, 0, fault.ErrCorruptedStorage
	}
	return v, n, nil
}

// IndexKey - order preserving byte encoding for index placement
//
// integers and dates sort numerically, floats by IEEE total order,
// strings and byte arrays lexically; the leading kind byte keeps
// mixed types apart
func (v Value) IndexKey() []byte {
	switch v.Kind {

	case KindNull:
		return []byte{0x00}

	case KindInteger:
		key := make([]byte, 9)
		key[0] = 0x01
		binary.BigEndian.PutUint64(key[1:], uint64(v.Int)^(1<<63))
		return key

	case KindNumber:
		bits := math.Float64bits(v.Float)
		if 0 != bits&(1<<63) {
			bits = ^bits
		} else {
			bits |= 1 << 63
		}
		key := make([]byte, 9)
		key[0] = 0x02
		binary.BigEndian.PutUint64(key[1:], bits)
		return key

	case KindString:
		return append([]byte{0x03}, v.Str...)

	case KindBytes, KindIdentifier:
		return append([]byte{0x04}, v.Bytes...)

	case KindBoolean:
		if v.Bool {
			return []byte{0x05, 0x01}
		}
		return []byte{0x05, 0x00}

	case KindDate:
		key := make([]byte, 9)
		key[0] = 0x06
		binary.BigEndian.PutUint64(key[1:], v.Date)
		return key

	default:
		// containers never reach index placement
		return append([]byte{0x7f}, v.pack(nil)...)
	}
}
