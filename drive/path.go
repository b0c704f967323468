// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package drive

import (
	"bytes"

	"github.com/bitmark-inc/platformd/merkle"
	"github.com/bitmark-inc/platformd/util"
)

// root subtree discriminants
//
// single byte keys under the root; these are the external ABI and
// changing any of them requires a protocol version bump
const (
	RootIdentities                           byte = 0x20
	RootUniquePublicKeyHashesToIdentities    byte = 0x30
	RootNonUniquePublicKeyHashesToIdentities byte = 0x31
	RootContractDocuments                    byte = 0x40
	RootSpentAssetLockTransactions           byte = 0x50
	RootBalances                             byte = 0x60
	RootPools                                byte = 0x70
	RootWithdrawalTransactions               byte = 0x80
	RootMisc                                 byte = 0x90
)

// Path - a sequence of byte keys naming a subtree
//
// the empty path is the root subtree whose children are the root
// discriminants
type Path [][]byte

// NewPath - build a path from byte segments
func NewPath(segments ...[]byte) Path {
	p := make(Path, len(segments))
	for i, s := range segments {
		p[i] = s
	}
	return p
}

// Child - extend a path by one segment
func (p Path) Child(segment []byte) Path {
	child := make(Path, 0, len(p)+1)
	child = append(child, p...)
	return append(child, segment)
}

// Parent - strip the last segment
//
// the parent of the root is the root
func (p Path) Parent() (Path, []byte) {
	if 0 == len(p) {
		return nil, nil
	}
	return p[:len(p)-1], p[len(p)-1]
}

// Equal - compare two paths segment by segment
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if !bytes.Equal(p[i], other[i]) {
			return false
		}
	}
	return true
}

// Canonical - deterministic byte encoding of a path
//
// varint segment count then length prefixed segments
func (p Path) Canonical() []byte {
	buffer := util.AppendVarint64(nil, uint64(len(p)))
	for _, segment := range p {
		buffer = util.AppendBytes(buffer, segment)
	}
	return buffer
}

// pathFromCanonical - decode a canonical path encoding
//
// returns the path and the bytes consumed; zero count on error
func pathFromCanonical(buffer []byte) (Path, int) {
	count, n := util.FromVarint64(buffer)
	if 0 == n {
		return nil, 0
	}
	p := make(Path, 0, count)
	for i := uint64(0); i < count; i += 1 {
		length, m := util.ClippedVarint64(buffer[n:], 0, maxKeyLength)
		if 0 == m {
			return nil, 0
		}
		n += m
		if len(buffer) < n+length {
			return nil, 0
		}
		segment := make([]byte, length)
		copy(segment, buffer[n:n+length])
		n += length
		p = append(p, segment)
	}
	return p, n
}

// SubtreeID - the storage identifier of a subtree
func (p Path) SubtreeID() merkle.Digest {
	return merkle.NewDigest(p.Canonical())
}

// String - printable path for logs
func (p Path) String() string {
	buffer := make([]byte, 0, 64)
	for i, segment := range p {
		if 0 != i {
			buffer = append(buffer, '/')
		}
		for _, b := range segment {
			const hexDigits = "0123456789abcdef"
			buffer = append(buffer, hexDigits[b>>4], hexDigits[b&0x0f])
		}
	}
	return string(buffer)
}
