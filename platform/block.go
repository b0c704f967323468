// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package platform

import (
	"context"
	"sort"

	"github.com/bitmark-inc/platformd/anchorchain"
	"github.com/bitmark-inc/platformd/contract"
	"github.com/bitmark-inc/platformd/credit"
	"github.com/bitmark-inc/platformd/drive"
	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/fees"
	"github.com/bitmark-inc/platformd/identity"
	"github.com/bitmark-inc/platformd/merkle"
	"github.com/bitmark-inc/platformd/mode"
	"github.com/bitmark-inc/platformd/protocol"
	"github.com/bitmark-inc/platformd/transition"
	"github.com/bitmark-inc/platformd/validator"
)

// BeginBlock - open a block
//
// promotes a staged validator set on a quorum hash change, settles
// the previous epoch pool on an epoch change and mirrors masternode
// list changes from the anchor chain, all inside the outer block
// transaction so a failed commit rolls everything back together; a
// proposed protocol version change takes effect only when this block
// commits
func BeginBlock(height uint64, blockTime uint64, proposer validator.ProTxHash, proposedVersion uint32, quorumHash validator.QuorumHash, coreLockedHeight uint32) error {
	globalData.Lock()
	defer globalData.Unlock()

	if !globalData.initialised || nil == globalData.rotation {
		return fault.ErrNotInitialised
	}
	err := protocol.CheckMethod("platform.BeginBlock", []uint16{0}, globalData.version.Block.BeginBlock)
	if nil != err {
		return err
	}

	version := globalData.version
	if proposedVersion != version.ProtocolVersion {
		version, err = protocol.PlatformVersion(proposedVersion)
		if nil != err {
			return err
		}
	}

	if err := mode.Advance(mode.Preparing); nil != err {
		return err
	}

	if height != globalData.last.Height+1 {
		globalData.log.Errorf("begin block: height: %d  expected: %d", height, globalData.last.Height+1)
		abortBlock()
		return fault.ErrInvalidBlockHeight
	}

	if quorumHash != globalData.rotation.Current().QuorumHash {
		if err := globalData.rotation.Promote(quorumHash); nil != err {
			abortBlock()
			return err
		}
		globalData.log.Infof("validator set rotated: %x", quorumHash[:8])
	}
	if !globalData.rotation.Current().HasMember(proposer) {
		abortBlock()
		return fault.ErrProposerNotInValidatorSet
	}

	epoch := epochOf(blockTime)
	tx := drive.NewTx(version)

	tx.StageBegin()
	if epoch != globalData.last.Epoch {
		if err := settleEpoch(tx, globalData.last.Epoch, epoch); nil != err {
			tx.StageAbort()
			tx.Abort()
			abortBlock()
			return err
		}
	}
	blockCoreHeight := globalData.coreHeight
	if nil != globalData.anchor && coreLockedHeight > globalData.coreHeight {
		// the masternode mirror must stay in step on every replica,
		// so an unreachable anchor daemon fails the whole block
		diff, err := globalData.anchor.MasternodeDiff(context.Background(), globalData.coreHeight, coreLockedHeight)
		if nil != err {
			globalData.log.Errorf("masternode diff %d..%d: %s", globalData.coreHeight, coreLockedHeight, err)
			tx.StageAbort()
			tx.Abort()
			abortBlock()
			return err
		}
		applyMasternodeDiff(tx, diff, epoch, blockTime)
		blockCoreHeight = diff.Height
	}
	tx.StageCommit()

	globalData.blockTx = tx
	globalData.blockVersion = version
	globalData.blockCoreHeight = blockCoreHeight
	globalData.blockEnv = &transition.Env{
		Version:               version,
		Epoch:                 epoch,
		LastBlockTime:         globalData.last.Time,
		BlockTimeWindow:       globalData.parameters.BlockTimeWindow,
		CoreChainLockedHeight: coreLockedHeight,
		BLS:                   globalData.bls,
	}
	globalData.height = height
	globalData.blockTime = blockTime
	globalData.proposer = proposer
	globalData.epoch = epoch
	globalData.blockFees = fees.NewResult()
	globalData.updatedContracts = nil

	return mode.Advance(mode.Delivering)
}

// DeliverTx - run one wire form transition inside the open block
//
// a consensus error fails only this transition, its staged writes
// are already rolled back; the numeric code for the engine comes
// from fault.Code
func DeliverTx(packed transition.Packed) (*transition.Outcome, error) {
	globalData.Lock()
	defer globalData.Unlock()

	if !mode.Is(mode.Delivering) {
		return nil, fault.ErrOutOfPlaceBlockLifecycle
	}

	t, err := packed.Unpack()
	if nil != err {
		return nil, err
	}
	outcome, err := transition.Apply(globalData.blockTx, globalData.blockEnv, t)
	if nil != err {
		globalData.log.Debugf("deliver: kind: %d  code: %d  error: %s", t.Kind(), fault.Code(err), err)
		return nil, err
	}

	if err := globalData.blockFees.Add(outcome.Fees); nil != err {
		abortBlock()
		return nil, err
	}
	switch r := t.(type) {
	case *transition.DataContractCreate:
		globalData.updatedContracts = append(globalData.updatedContracts, r.ContractID())
	case *transition.DataContractUpdate:
		globalData.updatedContracts = append(globalData.updatedContracts, r.ContractID())
	}
	return outcome, nil
}

// EndBlock - close delivery and report the aggregated block fees
//
// the proposer's block is counted towards the epoch payout only when
// the block actually commits
func EndBlock() (*fees.Result, error) {
	globalData.Lock()
	defer globalData.Unlock()

	if err := mode.Advance(mode.Ending); nil != err {
		return nil, err
	}
	return globalData.blockFees, nil
}

// Commit - verify the quorum commit and write the block
//
// the quorum signs the parent state, so the commit's state id must
// carry the previous app hash; any mismatch or a bad threshold
// signature rolls the whole block back
func Commit(commit *validator.Commit) (merkle.Digest, error) {
	globalData.Lock()
	defer globalData.Unlock()

	if !mode.Is(mode.Ending) {
		return merkle.Digest{}, fault.ErrOutOfPlaceBlockLifecycle
	}
	err := protocol.CheckMethod("platform.Commit", []uint16{0}, globalData.version.Block.Commit)
	if nil != err {
		abortBlock()
		return merkle.Digest{}, err
	}

	if commit.ChainID != globalData.chainID ||
		commit.Height != globalData.height ||
		commit.StateID.Height != globalData.last.Height ||
		commit.StateID.AppHash != globalData.last.AppHash {
		abortBlock()
		return merkle.Digest{}, fault.ErrBadCommitSignature
	}
	if err := commit.Verify(globalData.rotation, globalData.bls); nil != err {
		abortBlock()
		return merkle.Digest{}, err
	}

	appHash, err := globalData.blockTx.Commit(globalData.height)
	if nil != err {
		abortBlock()
		return merkle.Digest{}, err
	}
	globalData.blockTx = nil

	globalData.version = globalData.blockVersion
	// the mirrored anchor height becomes durable only with the block,
	// an aborted block retries the same diff range
	globalData.coreHeight = globalData.blockCoreHeight
	globalData.blockCounts[string(globalData.proposer[:])] += 1
	globalData.last = LastBlock{
		Height:     globalData.height,
		Time:       globalData.blockTime,
		Epoch:      globalData.epoch,
		AppHash:    appHash,
		QuorumHash: commit.QuorumHash,
		Round:      commit.Round,
		Signature:  commit.Signature,
	}
	saveChainState()

	if err := mode.Advance(mode.Committed); nil != err {
		return merkle.Digest{}, err
	}
	return appHash, nil
}

// Finalize - drop cached contracts the block changed and return the
// lifecycle to idle
func Finalize() error {
	globalData.Lock()
	defer globalData.Unlock()

	if !mode.Is(mode.Committed) {
		return fault.ErrOutOfPlaceBlockLifecycle
	}

	if 0 != len(globalData.updatedContracts) {
		// queries outside the lock may still serve the old revision
		// until here, never after
		contract.Invalidate(globalData.updatedContracts)
		globalData.updatedContracts = nil
	}

	return mode.Advance(mode.Idle)
}

// MasternodeIdentityID - the identity a masternode's payouts accrue to
//
// derived from the registration hash so it is the same on every
// replica without any extra coordination
func MasternodeIdentityID(proTxHash validator.ProTxHash) identity.ID {
	return identity.ID(merkle.NewDigest(proTxHash[:]))
}

// settleEpoch - close the previous epoch pool into proposer payouts
//
// shares are proportional to proposed block counts; shares of
// proposers without an identity and the division residue roll
// forward into the new epoch pool so supply is conserved exactly
func settleEpoch(tx *drive.Tx, previous uint16, next uint16) error {
	pool, _, err := fees.DrainPool(tx, previous)
	if nil != err {
		return err
	}

	shares, residue, err := fees.Distribution(pool, globalData.blockCounts)
	if nil != err {
		return err
	}

	carry := residue
	for _, proposer := range sortedProposers(shares) {
		share := shares[proposer]
		if 0 == share {
			continue
		}
		var proTxHash validator.ProTxHash
		copy(proTxHash[:], proposer)
		id := MasternodeIdentityID(proTxHash)

		_, _, err := identity.Fetch(tx, id)
		if fault.ErrIdentityNotFound == err {
			carry, err = carry.Add(share)
			if nil != err {
				return err
			}
			continue
		}
		if nil != err {
			return err
		}
		if _, err := identity.AddToBalance(tx, id, share); nil != err {
			return err
		}
	}

	if 0 != carry {
		if _, err := fees.CreditPool(tx, next, carry); nil != err {
			return err
		}
	}

	globalData.log.Infof("epoch %d settled: pool: %d  carried: %d", previous, pool, carry)
	globalData.blockCounts = make(map[string]uint64)
	return nil
}

func sortedProposers(shares map[string]credit.Amount) []string {
	proposers := make([]string, 0, len(shares))
	for proposer := range shares {
		proposers = append(proposers, proposer)
	}
	// map order is random, payouts must apply deterministically
	sort.Strings(proposers)
	return proposers
}

// masternode identity key slots
const (
	ownerKeyID        uint32 = 0
	firstVotingKeyID  uint32 = 1
	votingKeySecurity        = identity.High
)

// applyMasternodeDiff - mirror anchor chain masternode changes
//
// additions become identities keyed by their owner and voting key
// hashes, voting key changes disable the old key and add the new one,
// removals disable every key so the identity can no longer sign; a
// single bad entry is logged and skipped, the diff as a whole never
// fails the block
func applyMasternodeDiff(tx *drive.Tx, diff *anchorchain.MasternodeDiff, epoch uint16, blockTime uint64) {
	for _, entry := range diff.Added {
		id := MasternodeIdentityID(entry.ProTxHash)
		record := &identity.Identity{
			ID: id,
			Keys: []identity.PublicKey{
				{
					ID:            ownerKeyID,
					Purpose:       identity.Authentication,
					SecurityLevel: identity.Master,
					KeyType:       identity.ECDSAHash160,
					Data:          entry.OwnerKeyHash,
				},
				{
					ID:            firstVotingKeyID,
					Purpose:       identity.Voting,
					SecurityLevel: votingKeySecurity,
					KeyType:       identity.ECDSAHash160,
					Data:          entry.VotingKeyHash,
				},
			},
			Revision: 0,
		}
		_, err := identity.AddNewIdentity(tx, record, 0, epoch)
		if fault.ErrIdentityAlreadyExists == err {
			continue // re-registration of a removed masternode
		}
		if nil != err {
			globalData.log.Warnf("masternode add: %x: %s", entry.ProTxHash[:8], err)
		}
	}

	for _, entry := range diff.Updated {
		if err := updateVotingKey(tx, &entry, epoch, blockTime); nil != err {
			globalData.log.Warnf("masternode update: %x: %s", entry.ProTxHash[:8], err)
		}
	}

	// removed masternodes keep their identity and balance but lose
	// the use of every key until they re-register
	for _, proTxHash := range diff.Removed {
		id := MasternodeIdentityID(proTxHash)
		_, err := identity.DisableAllKeys(tx, id, blockTime, epoch)
		if fault.ErrIdentityNotFound == err {
			continue // never mirrored, nothing to disable
		}
		if nil != err {
			globalData.log.Warnf("masternode remove: %x: %s", proTxHash[:8], err)
		}
	}
}

func updateVotingKey(tx *drive.Tx, entry *anchorchain.MasternodeEntry, epoch uint16, blockTime uint64) error {
	id := MasternodeIdentityID(entry.ProTxHash)
	record, _, err := identity.Fetch(tx, id)
	if nil != err {
		return err
	}

	// the newest enabled voting key is the highest non owner key slot
	var current *identity.PublicKey
	nextKeyID := firstVotingKeyID
	for i := range record.Keys {
		key := &record.Keys[i]
		if key.ID >= nextKeyID {
			nextKeyID = key.ID + 1
		}
		if ownerKeyID != key.ID && key.Enabled() {
			current = key
		}
	}
	if nil != current && string(current.Data) == string(entry.VotingKeyHash) {
		return nil // unchanged
	}

	update := &identity.KeyUpdate{
		Add: []identity.PublicKey{{
			ID:            nextKeyID,
			Purpose:       identity.Voting,
			SecurityLevel: votingKeySecurity,
			KeyType:       identity.ECDSAHash160,
			Data:          entry.VotingKeyHash,
		}},
		DisabledAt: blockTime,
		Revision:   record.Revision + 1,
		Epoch:      epoch,
	}
	if nil != current {
		update.DisableIDs = []uint32{current.ID}
	}
	_, err = identity.UpdateIdentityKeys(tx, id, update)
	return err
}
