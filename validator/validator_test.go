// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package validator_test

import (
	"testing"

	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/merkle"
	"github.com/bitmark-inc/platformd/validator"
)

func makeSet(seed byte, memberCount int) *validator.Set {
	quorumHash := validator.QuorumHash{}
	quorumHash[0] = seed

	members := make([]validator.Member, memberCount)
	for i := range members {
		// descending on purpose, NewSet must reorder
		members[i].ProTxHash[0] = byte(memberCount - i)
		members[i].PublicKeyShare = []byte{seed, byte(i)}
	}

	threshold := []byte{0x71, seed}
	return validator.NewSet(quorumHash, 100, uint32(seed)*10, members, threshold)
}

func TestSetOrdering(t *testing.T) {
	set := makeSet(1, 5)

	for i := 1; i < len(set.Members); i += 1 {
		if set.Members[i-1].ProTxHash[0] >= set.Members[i].ProTxHash[0] {
			t.Fatal("members not in canonical order")
		}
	}

	present := validator.ProTxHash{}
	present[0] = 3
	if !set.HasMember(present) {
		t.Fatal("member not found")
	}
	absent := validator.ProTxHash{}
	absent[0] = 0xff
	if set.HasMember(absent) {
		t.Fatal("phantom member found")
	}
}

func TestRotation(t *testing.T) {
	first := makeSet(1, 3)
	second := makeSet(2, 3)
	third := makeSet(3, 3)

	rotation := validator.NewRotation(first)
	if rotation.Current() != first {
		t.Fatal("current set differs")
	}

	// promoting to the same quorum is a no op
	if err := rotation.Promote(first.QuorumHash); nil != err {
		t.Fatalf("self promote error: %v", err)
	}

	// only the staged next set may take over
	err := rotation.Promote(second.QuorumHash)
	if fault.ErrValidatorSetRotationDenied != err {
		t.Fatalf("error: %v  expected: %v", err, fault.ErrValidatorSetRotationDenied)
	}

	rotation.SetNext(second)
	if err := rotation.Promote(second.QuorumHash); nil != err {
		t.Fatalf("promote error: %v", err)
	}
	if rotation.Current() != second {
		t.Fatal("promotion did not rotate")
	}

	// an unstaged third set is still denied
	err = rotation.Promote(third.QuorumHash)
	if fault.ErrValidatorSetRotationDenied != err {
		t.Fatalf("error: %v  expected: %v", err, fault.ErrValidatorSetRotationDenied)
	}

	// the rotated out set stays available for straggling commits
	if _, err := rotation.Lookup(first.QuorumHash); nil != err {
		t.Fatalf("lookup error: %v", err)
	}
	unknown := validator.QuorumHash{}
	unknown[0] = 0xee
	if _, err := rotation.Lookup(unknown); fault.ErrQuorumNotFound != err {
		t.Fatalf("error: %v  expected: %v", err, fault.ErrQuorumNotFound)
	}
}

func TestRotationAgeing(t *testing.T) {
	first := makeSet(1, 3)
	rotation := validator.NewRotation(first)

	// push enough sets through to age the oldest staged ones out
	previous := first
	for seed := byte(2); seed < 40; seed += 1 {
		next := makeSet(seed, 3)
		rotation.SetNext(next)
		if err := rotation.Promote(next.QuorumHash); nil != err {
			t.Fatalf("promote error: %v", err)
		}
		previous = next
	}

	if _, err := rotation.Lookup(first.QuorumHash); fault.ErrQuorumNotFound != err {
		t.Fatalf("aged set error: %v  expected: %v", err, fault.ErrQuorumNotFound)
	}
	if _, err := rotation.Lookup(previous.QuorumHash); nil != err {
		t.Fatalf("current lookup error: %v", err)
	}
}

func TestCommitVerify(t *testing.T) {
	set := makeSet(5, 4)
	rotation := validator.NewRotation(set)
	bls := validator.DigestBLS{}

	commit := &validator.Commit{
		ChainID:    "platform-testing",
		Height:     12,
		Round:      0,
		BlockID:    merkle.NewDigest([]byte("block")),
		QuorumHash: set.QuorumHash,
		StateID: validator.StateID{
			AppVersion:            1,
			CoreChainLockedHeight: 50,
			Time:                  1000000,
			AppHash:               merkle.NewDigest([]byte("state")),
			Height:                12,
		},
	}
	commit.Signature = bls.Sign(set.ThresholdPublicKey, commit.SignBytes())

	if err := commit.Verify(rotation, bls); nil != err {
		t.Fatalf("verify error: %v", err)
	}

	// any field change invalidates the signature
	commit.Height = 13
	if err := commit.Verify(rotation, bls); fault.ErrBadCommitSignature != err {
		t.Fatalf("error: %v  expected: %v", err, fault.ErrBadCommitSignature)
	}
	commit.Height = 12

	// a commit by an unknown quorum never verifies
	commit.QuorumHash[0] = 0xdd
	if err := commit.Verify(rotation, bls); fault.ErrQuorumNotFound != err {
		t.Fatalf("error: %v  expected: %v", err, fault.ErrQuorumNotFound)
	}
}

func TestSetPackRoundTrip(t *testing.T) {
	set := makeSet(9, 4)

	packed := set.Pack(nil)
	decoded, consumed, err := validator.UnpackSet(packed)
	if nil != err {
		t.Fatalf("unpack error: %v", err)
	}
	if len(packed) != consumed {
		t.Fatalf("consumed: %d  expected: %d", consumed, len(packed))
	}

	if decoded.QuorumHash != set.QuorumHash ||
		decoded.QuorumType != set.QuorumType ||
		decoded.CoreHeight != set.CoreHeight {
		t.Fatalf("decoded set: %+v", decoded)
	}
	if string(decoded.ThresholdPublicKey) != string(set.ThresholdPublicKey) {
		t.Fatal("threshold key differs")
	}
	if len(decoded.Members) != len(set.Members) {
		t.Fatalf("members: %d  expected: %d", len(decoded.Members), len(set.Members))
	}
	for i := range set.Members {
		if decoded.Members[i].ProTxHash != set.Members[i].ProTxHash ||
			string(decoded.Members[i].PublicKeyShare) != string(set.Members[i].PublicKeyShare) {
			t.Fatalf("member: %d differs", i)
		}
	}

	// equal sets pack to equal bytes
	if string(packed) != string(makeSet(9, 4).Pack(nil)) {
		t.Fatal("packing is not canonical")
	}

	// truncation never decodes
	for cut := 0; cut < len(packed); cut += 7 {
		if _, _, err := validator.UnpackSet(packed[:cut]); nil == err {
			t.Fatalf("truncated at %d decoded", cut)
		}
	}
}
