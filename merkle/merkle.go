// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package merkle

import (
	"github.com/bitmark-inc/platformd/fault"
)

// merkle hashing over an ordered list of leaf digests
//
// structure per level: pairs are combined left to right, an odd
// trailing leaf is combined with itself, the final single digest is
// the root; an empty list hashes to the digest of the empty record

// RootFromLeaves - compute the root of an ordered leaf list
func RootFromLeaves(leaves []Digest) Digest {
	if 0 == len(leaves) {
		return NewDigest(nil)
	}

	level := make([]Digest, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		next := make([]Digest, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			j := i + 1
			if j == len(level) {
				j = i // compensate for odd number
			}
			next = append(next, Combine(level[i], level[j]))
		}
		level = next
	}
	return level[0]
}

// AuditPath - sibling digests from a leaf up to the root
//
// the returned path combined with the leaf index is sufficient to
// recompute the root without the other leaves
func AuditPath(leaves []Digest, index int) ([]Digest, error) {
	if index < 0 || index >= len(leaves) {
		return nil, fault.ErrKeyNotFound
	}

	path := make([]Digest, 0, 16)

	level := make([]Digest, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		sibling := index ^ 1
		if sibling >= len(level) {
			sibling = index // odd trailing leaf pairs with itself
		}
		path = append(path, level[sibling])

		next := make([]Digest, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			j := i + 1
			if j == len(level) {
				j = i
			}
			next = append(next, Combine(level[i], level[j]))
		}
		level = next
		index >>= 1
	}
	return path, nil
}

// VerifyAuditPath - recompute a root from a leaf and its audit path
func VerifyAuditPath(leaf Digest, index int, path []Digest) Digest {
	current := leaf
	for _, sibling := range path {
		if 0 == index&1 {
			current = Combine(current, sibling)
		} else {
			current = Combine(sibling, current)
		}
		index >>= 1
	}
	return current
}
