// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package validator - validator sets and commit verification
//
// A validator set mirrors one anchor chain quorum: its members keyed
// by pro tx hash and the threshold public key the quorum signs block
// commits with.  Sets rotate as quorums cycle on the anchor chain; a
// bounded map of recent sets stays available so a commit signed just
// before a rotation can still be verified.
package validator

import (
	"bytes"
	"sort"

	"github.com/bitmark-inc/platformd/fault"
)

// ProTxHash - anchor chain masternode registration hash
type ProTxHash [32]byte

// QuorumHash - anchor chain quorum identifier
type QuorumHash [32]byte

// Member - one validator of a set
type Member struct {
	ProTxHash      ProTxHash
	PublicKeyShare []byte // BLS share, verification of individual votes
}

// Set - one validator set
type Set struct {
	QuorumHash         QuorumHash
	QuorumType         uint32
	CoreHeight         uint32
	Members            []Member // ordered by pro tx hash
	ThresholdPublicKey []byte
}

// NewSet - build a set with members in canonical order
func NewSet(quorumHash QuorumHash, quorumType uint32, coreHeight uint32, members []Member, thresholdPublicKey []byte) *Set {
	ordered := make([]Member, len(members))
	copy(ordered, members)
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i].ProTxHash[:], ordered[j].ProTxHash[:]) < 0
	})
	return &Set{
		QuorumHash:         quorumHash,
		QuorumType:         quorumType,
		CoreHeight:         coreHeight,
		Members:            ordered,
		ThresholdPublicKey: thresholdPublicKey,
	}
}

// HasMember - true when a pro tx hash belongs to the set
func (s *Set) HasMember(proTxHash ProTxHash) bool {
	n := sort.Search(len(s.Members), func(i int) bool {
		return bytes.Compare(s.Members[i].ProTxHash[:], proTxHash[:]) >= 0
	})
	return n < len(s.Members) && proTxHash == s.Members[n].ProTxHash
}

// sets kept after rotating out, enough to cover straggling commits
const recentSetLimit = 24

// Rotation - the current, next and recently rotated out sets
//
// not safe for concurrent use; the platform serialises access behind
// its own lock
type Rotation struct {
	current *Set
	next    *Set
	recent  map[QuorumHash]*Set
	order   []QuorumHash // recent insertion order for eviction
}

// NewRotation - start with an initial current set
func NewRotation(current *Set) *Rotation {
	r := &Rotation{
		current: current,
		recent:  make(map[QuorumHash]*Set),
	}
	r.remember(current)
	return r
}

// Current - the set validating new blocks
func (r *Rotation) Current() *Set {
	return r.current
}

// Next - the staged set, nil when none is staged
func (r *Rotation) Next() *Set {
	return r.next
}

// SetNext - stage the set that takes over at the next quorum change
func (r *Rotation) SetNext(next *Set) {
	r.next = next
	r.remember(next)
}

// Promote - rotate to the set with the given quorum hash
//
// only the staged next set may take over; anything else is a denied
// rotation
func (r *Rotation) Promote(quorumHash QuorumHash) error {
	if quorumHash == r.current.QuorumHash {
		return nil
	}
	if nil == r.next || quorumHash != r.next.QuorumHash {
		return fault.ErrValidatorSetRotationDenied
	}
	r.current = r.next
	r.next = nil
	return nil
}

// Lookup - find a current or recent set by quorum hash
func (r *Rotation) Lookup(quorumHash QuorumHash) (*Set, error) {
	if s, ok := r.recent[quorumHash]; ok {
		return s, nil
	}
	return nil, fault.ErrQuorumNotFound
}

func (r *Rotation) remember(s *Set) {
	if nil == s {
		return
	}
	if _, ok := r.recent[s.QuorumHash]; ok {
		return
	}
	r.recent[s.QuorumHash] = s
	r.order = append(r.order, s.QuorumHash)
	for len(r.order) > recentSetLimit {
		oldest := r.order[0]
		r.order = r.order[1:]
		if oldest != r.current.QuorumHash {
			delete(r.recent, oldest)
		}
	}
}
