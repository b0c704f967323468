// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package util

import (
	"encoding/binary"
)

// canonical append helpers
//
// all serialised records are built from these so the byte form is
// deterministic: length prefixed fields, big endian fixed integers,
// Varint64 for counts and tags

// AppendVarint64 - append a Varint64 value
func AppendVarint64(buffer []byte, value uint64) []byte {
	return append(buffer, ToVarint64(value)...)
}

// AppendBytes - append a length prefixed byte slice
func AppendBytes(buffer []byte, data []byte) []byte {
	buffer = append(buffer, ToVarint64(uint64(len(data)))...)
	return append(buffer, data...)
}

// AppendString - append a length prefixed utf-8 string
func AppendString(buffer []byte, s string) []byte {
	return AppendBytes(buffer, []byte(s))
}

// AppendUint64 - append a fixed 8 byte big endian value
func AppendUint64(buffer []byte, value uint64) []byte {
	valueBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(valueBytes, value)
	return append(buffer, valueBytes...)
}

// AppendUint32 - append a fixed 4 byte big endian value
func AppendUint32(buffer []byte, value uint32) []byte {
	valueBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(valueBytes, value)
	return append(buffer, valueBytes...)
}

// AppendInt64 - append a signed value as zigzag Varint64
func AppendInt64(buffer []byte, value int64) []byte {
	return AppendVarint64(buffer, uint64(value)<<1^uint64(value>>63))
}

// Int64FromVarint64 - decode a zigzag Varint64 signed value
//
// returns the value and byte count; count is zero on truncation
func Int64FromVarint64(buffer []byte) (int64, int) {
	u, n := FromVarint64(buffer)
	if 0 == n {
		return 0, 0
	}
	return int64(u>>1) ^ -int64(u&1), n
}
