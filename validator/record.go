// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package validator

import (
	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/util"
)

// sanity bound, anchor chain quorums are far smaller
const maxPackedMembers = 1024

// Pack - append the canonical byte encoding of a set
//
// members are already in canonical order so equal sets always pack
// to equal bytes
func (s *Set) Pack(buffer []byte) []byte {
	buffer = append(buffer, s.QuorumHash[:]...)
	buffer = util.AppendVarint64(buffer, uint64(s.QuorumType))
	buffer = util.AppendVarint64(buffer, uint64(s.CoreHeight))
	buffer = util.AppendBytes(buffer, s.ThresholdPublicKey)
	buffer = util.AppendVarint64(buffer, uint64(len(s.Members)))
	for i := range s.Members {
		buffer = append(buffer, s.Members[i].ProTxHash[:]...)
		buffer = util.AppendBytes(buffer, s.Members[i].PublicKeyShare)
	}
	return buffer
}

// UnpackSet - decode one packed set, returning the bytes consumed
func UnpackSet(buffer []byte) (*Set, int, error) {
	if len(buffer) < len(QuorumHash{}) {
		return nil, 0, fault.ErrCorruptedStorage
	}
	s := &Set{}
	copy(s.QuorumHash[:], buffer)
	n := len(s.QuorumHash)

	quorumType, m := util.FromVarint64(buffer[n:])
	if 0 == m || quorumType > 0xffffffff {
		return nil, 0, fault.ErrCorruptedStorage
	}
	s.QuorumType = uint32(quorumType)
	n += m

	coreHeight, m := util.FromVarint64(buffer[n:])
	if 0 == m || coreHeight > 0xffffffff {
		return nil, 0, fault.ErrCorruptedStorage
	}
	s.CoreHeight = uint32(coreHeight)
	n += m

	keyLength, m := util.ClippedVarint64(buffer[n:], 0, 256)
	if 0 == m {
		return nil, 0, fault.ErrCorruptedStorage
	}
	n += m
	if len(buffer) < n+keyLength {
		return nil, 0, fault.ErrCorruptedStorage
	}
	if 0 != keyLength {
		s.ThresholdPublicKey = make([]byte, keyLength)
		copy(s.ThresholdPublicKey, buffer[n:n+keyLength])
	}
	n += keyLength

	count, m := util.FromVarint64(buffer[n:])
	if 0 == m || count > maxPackedMembers {
		return nil, 0, fault.ErrCorruptedStorage
	}
	n += m

	s.Members = make([]Member, 0, count)
	for i := uint64(0); i < count; i += 1 {
		member := Member{}
		if len(buffer) < n+len(member.ProTxHash) {
			return nil, 0, fault.ErrCorruptedStorage
		}
		copy(member.ProTxHash[:], buffer[n:])
		n += len(member.ProTxHash)

		shareLength, m := util.ClippedVarint64(buffer[n:], 0, 256)
		if 0 == m {
			return nil, 0, fault.ErrCorruptedStorage
		}
		n += m
		if len(buffer) < n+shareLength {
			return nil, 0, fault.ErrCorruptedStorage
		}
		if 0 != shareLength {
			member.PublicKeyShare = make([]byte, shareLength)
			copy(member.PublicKeyShare, buffer[n:n+shareLength])
		}
		n += shareLength

		s.Members = append(s.Members, member)
	}
	return s, n, nil
}
