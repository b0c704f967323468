// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package platform - the block lifecycle coordinator
//
// Glue between the consensus engine and the state machine: opens one
// outer drive transaction per block, feeds delivered transitions
// through the pipeline, settles epoch pools at epoch boundaries,
// mirrors masternode changes from the anchor chain into identities
// and verifies the quorum threshold signature before any state is
// committed.  All block boundary calls are serialised behind the
// package lock; queries run concurrently against the last committed
// state under read locks.
package platform

import (
	"sync"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/platformd/anchorchain"
	"github.com/bitmark-inc/platformd/chain"
	"github.com/bitmark-inc/platformd/contract"
	"github.com/bitmark-inc/platformd/drive"
	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/fees"
	"github.com/bitmark-inc/platformd/genesis"
	"github.com/bitmark-inc/platformd/merkle"
	"github.com/bitmark-inc/platformd/mode"
	"github.com/bitmark-inc/platformd/protocol"
	"github.com/bitmark-inc/platformd/transition"
	"github.com/bitmark-inc/platformd/util"
	"github.com/bitmark-inc/platformd/validator"
)

// LastBlock - the last committed block
type LastBlock struct {
	Height     uint64
	Time       uint64 // milliseconds
	Epoch      uint16
	AppHash    merkle.Digest
	QuorumHash validator.QuorumHash
	Round      uint32
	Signature  []byte
}

// globals for this module
type globalDataType struct {
	sync.RWMutex
	log         *logger.L
	initialised bool

	chainName  string
	chainID    string
	parameters chain.Parameters
	version    *protocol.Version

	anchor   anchorchain.Client
	bls      validator.BLSVerifier
	rotation *validator.Rotation

	genesisTime uint64 // milliseconds, anchors the epoch calendar
	coreHeight  uint32 // last core height applied to identities

	last        LastBlock
	blockCounts map[string]uint64 // proposer pro tx hash → blocks this epoch

	// the open block, nil outside the lifecycle
	blockTx          *drive.Tx
	blockVersion     *protocol.Version
	blockCoreHeight  uint32
	blockEnv         *transition.Env
	height           uint64
	blockTime        uint64
	proposer         validator.ProTxHash
	epoch            uint16
	blockFees        *fees.Result
	updatedContracts []contract.ID
}

var globalData globalDataType

// Initialise - setup the platform coordinator
//
// storage, drive and mode must be initialised first; the anchor
// client may be nil for nodes that never follow masternode changes
func Initialise(chainName string, anchor anchorchain.Client, bls validator.BLSVerifier) error {
	globalData.Lock()
	defer globalData.Unlock()

	if globalData.initialised {
		return fault.ErrAlreadyInitialised
	}

	parameters, ok := chain.Get(chainName)
	if !ok {
		return fault.ErrInvalidChain
	}
	block, ok := genesis.Get(chainName)
	if !ok {
		return fault.ErrInvalidChain
	}
	version, err := protocol.PlatformVersion(block.ProtocolVersion)
	if nil != err {
		return err
	}

	globalData.log = logger.New("platform")
	globalData.log.Info("starting…")

	globalData.chainName = chainName
	globalData.chainID = block.ChainID
	globalData.parameters = parameters
	globalData.version = version
	globalData.anchor = anchor
	globalData.bls = bls
	globalData.rotation = nil
	globalData.genesisTime = block.Time
	globalData.coreHeight = block.CoreHeight
	globalData.last = LastBlock{}
	globalData.blockCounts = make(map[string]uint64)
	globalData.blockTx = nil

	// a restarted node resumes at its persisted chain tip
	if err := restoreChainState(); nil != err {
		return err
	}

	globalData.initialised = true
	return nil
}

// Finalise - shutdown the platform coordinator
func Finalise() error {
	globalData.Lock()
	defer globalData.Unlock()

	if !globalData.initialised {
		return fault.ErrNotInitialised
	}

	if nil != globalData.blockTx {
		globalData.blockTx.Abort()
		globalData.blockTx = nil
	}

	globalData.log.Info("shutting down…")
	globalData.log.Flush()

	globalData.initialised = false
	return nil
}

// Info - the last committed block and the protocol version in force
func Info() (string, uint32, LastBlock) {
	globalData.RLock()
	defer globalData.RUnlock()

	return globalData.chainID, globalData.version.ProtocolVersion, globalData.last
}

// key of the genesis record under the misc root
var genesisKey = []byte("genesis")

func miscPath() drive.Path {
	return drive.NewPath([]byte{drive.RootMisc})
}

// InitChain - build the block zero state
//
// creates the empty root structure, stores the genesis record and
// installs the initial validator set; the returned app hash is what
// the consensus engine pins as the chain starting point
func InitChain(initial *validator.Set) (merkle.Digest, error) {
	globalData.Lock()
	defer globalData.Unlock()

	if !globalData.initialised {
		return merkle.Digest{}, fault.ErrNotInitialised
	}
	if 0 != globalData.last.Height || nil != globalData.rotation {
		return merkle.Digest{}, fault.ErrAlreadyInitialised
	}

	_, err := drive.CreateRootTree(globalData.version)
	if nil != err {
		return merkle.Digest{}, err
	}

	// the genesis record joins the block zero state so every replica
	// starts from the same app hash
	record := util.AppendString(nil, globalData.chainID)
	record = util.AppendVarint64(record, globalData.genesisTime)
	record = util.AppendVarint64(record, uint64(globalData.coreHeight))

	tx := drive.NewTx(globalData.version)
	tx.StageBegin()
	_, err = tx.ApplyBatch(drive.Batch{
		drive.Insert(miscPath(), genesisKey, drive.NewItem(record, drive.StorageFlags{})),
	})
	if nil != err {
		tx.StageAbort()
		tx.Abort()
		return merkle.Digest{}, err
	}
	tx.StageCommit()
	appHash, err := tx.Commit(0)
	if nil != err {
		return merkle.Digest{}, err
	}

	globalData.rotation = validator.NewRotation(initial)
	globalData.last = LastBlock{
		Height:  0,
		Time:    globalData.genesisTime,
		Epoch:   0,
		AppHash: appHash,
	}
	saveChainState()
	globalData.log.Infof("chain initialised: %s  app hash: %v", globalData.chainID, appHash)
	return appHash, nil
}

// StageNextValidatorSet - stage the set taking over at the next
// quorum rotation
func StageNextValidatorSet(next *validator.Set) error {
	globalData.Lock()
	defer globalData.Unlock()

	if nil == globalData.rotation {
		return fault.ErrNotInitialised
	}
	globalData.rotation.SetNext(next)
	saveChainState()
	return nil
}

// the epoch a block time falls in
//
// the index saturates at the top of the uint16 range rather than
// wrapping, a wrap would fold fee pools of far apart epochs together
func epochOf(blockTime uint64) uint16 {
	if blockTime <= globalData.genesisTime {
		return 0
	}
	epoch := (blockTime - globalData.genesisTime) / globalData.parameters.EpochSpan
	if epoch > maxEpoch {
		return uint16(maxEpoch)
	}
	return uint16(epoch)
}

const maxEpoch = uint64(^uint16(0))

// roll back the open block and return the lifecycle to idle
func abortBlock() {
	if nil != globalData.blockTx {
		globalData.blockTx.Abort()
		globalData.blockTx = nil
	}
	mode.Set(mode.Aborted)
	mode.Set(mode.Idle)
}
