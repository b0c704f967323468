// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package anchorchain - access to the anchoring proof of work chain
//
// The platform reads chain locks, quorum rotations and masternode
// diffs from the anchor chain daemon.  Only the client interface lives
// here; the platform never blocks consensus on a slow daemon, callers
// pass a context and get an explicit error.
package anchorchain

import (
	"context"

	"github.com/bitmark-inc/platformd/merkle"
	"github.com/bitmark-inc/platformd/validator"
)

// ChainLock - the highest threshold signed anchor chain block
type ChainLock struct {
	Height    uint32
	BlockHash merkle.Digest
	Signature []byte
}

// BlockInfo - summary of one anchor chain block
type BlockInfo struct {
	Hash        merkle.Digest
	Height      uint32
	Time        uint64 // milliseconds
	ChainLocked bool
}

// QuorumList - active quorum hashes grouped by quorum type
type QuorumList struct {
	Quorums map[uint32][]validator.QuorumHash
}

// QuorumMember - one masternode of a quorum
type QuorumMember struct {
	ProTxHash      validator.ProTxHash
	PublicKeyShare []byte
	Valid          bool
}

// QuorumInfo - full description of one quorum
type QuorumInfo struct {
	QuorumHash         validator.QuorumHash
	QuorumType         uint32
	Height             uint32
	Members            []QuorumMember
	ThresholdPublicKey []byte
}

// MasternodeEntry - one masternode in a diff
type MasternodeEntry struct {
	ProTxHash     validator.ProTxHash
	OwnerKeyHash  []byte // hash160 of the owner key
	VotingKeyHash []byte // hash160 of the voting key
	PayoutScript  []byte
	Revision      uint64
}

// MasternodeDiff - masternode list changes between two core heights
type MasternodeDiff struct {
	BaseHeight uint32
	Height     uint32
	Added      []MasternodeEntry
	Updated    []MasternodeEntry
	Removed    []validator.ProTxHash
}

// Client - the anchor chain daemon RPC surface the platform uses
type Client interface {
	GetBestChainLock(ctx context.Context) (*ChainLock, error)
	GetBlockHash(ctx context.Context, height uint32) (merkle.Digest, error)
	GetBlock(ctx context.Context, hash merkle.Digest) (*BlockInfo, error)
	GetQuorumListExtended(ctx context.Context, height uint32) (*QuorumList, error)
	GetQuorumInfo(ctx context.Context, quorumType uint32, quorumHash validator.QuorumHash) (*QuorumInfo, error)
	MasternodeDiff(ctx context.Context, baseHeight uint32, height uint32) (*MasternodeDiff, error)
}
