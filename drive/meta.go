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

// packMeta - canonical encoding of a subtree metadata row
//
// path canonical ++ kind ++ root digest ++ sum zigzag varint
func packMeta(meta *subtreeMeta) []byte {
	buffer := meta.path.Canonical()
	buffer = append(buffer, byte(meta.kind))
	buffer = append(buffer, meta.digest[:]...)
	return util.AppendInt64(buffer, meta.sum)
}

// unpackMeta - decode a subtree metadata row
func unpackMeta(buffer []byte) (*subtreeMeta, error) {
	path, n := pathFromCanonical(buffer)
	if 0 == n {
		return nil, fault.ErrCorruptedStorage
	}
	if len(buffer) < n+1+merkle.DigestLength {
		return nil, fault.ErrCorruptedStorage
	}
	meta := &subtreeMeta{
		path: path,
		kind: Kind(buffer[n]),
	}
	n += 1
	copy(meta.digest[:], buffer[n:n+merkle.DigestLength])
	n += merkle.DigestLength
	sum, m := util.Int64FromVarint64(buffer[n:])
	if 0 == m {
		return nil, fault.ErrCorruptedStorage
	}
	meta.sum = sum
	switch meta.kind {
	case KindSubtree, KindSumSubtree:
		return meta, nil
	default:
		return nil, fault.ErrWrongElementType
	}
}
