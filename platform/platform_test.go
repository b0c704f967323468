// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package platform_test

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/bitmark-inc/logger"
	"github.com/golang/mock/gomock"
	"golang.org/x/crypto/ed25519"

	"github.com/bitmark-inc/platformd/anchorchain"
	"github.com/bitmark-inc/platformd/anchorchain/mocks"
	"github.com/bitmark-inc/platformd/chain"
	"github.com/bitmark-inc/platformd/credit"
	"github.com/bitmark-inc/platformd/drive"
	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/fees"
	"github.com/bitmark-inc/platformd/genesis"
	"github.com/bitmark-inc/platformd/identity"
	"github.com/bitmark-inc/platformd/merkle"
	"github.com/bitmark-inc/platformd/mode"
	"github.com/bitmark-inc/platformd/platform"
	"github.com/bitmark-inc/platformd/protocol"
	"github.com/bitmark-inc/platformd/storage"
	"github.com/bitmark-inc/platformd/transition"
	"github.com/bitmark-inc/platformd/validator"
)

var testDir string

func TestMain(m *testing.M) {
	curPath, _ := os.Getwd()
	testDir = curPath + "/testing"
	_ = os.Mkdir(testDir, 0700)

	logging := logger.Configuration{
		Directory: testDir,
		File:      "testing.log",
		Size:      1048576,
		Count:     10,
		Console:   false,
		Levels: map[string]string{
			logger.DefaultTag: "critical",
		},
	}
	if err := logger.Initialise(logging); nil != err {
		panic("logger setup failed: " + err.Error())
	}

	if err := storage.Initialise(testDir + "/platform.leveldb"); nil != err {
		panic("storage setup failed: " + err.Error())
	}
	if err := drive.Initialise(); nil != err {
		panic("drive setup failed: " + err.Error())
	}
	if err := mode.Initialise(chain.Local); nil != err {
		panic("mode setup failed: " + err.Error())
	}
	if err := platform.Initialise(chain.Local, nil, validator.DigestBLS{}); nil != err {
		panic("platform setup failed: " + err.Error())
	}

	// os.Exit skips any deferred teardown so run it directly
	result := m.Run()
	platform.Finalise()
	mode.Finalise()
	drive.Finalise()
	storage.Finalise()
	logger.Finalise()
	os.RemoveAll(testDir)
	os.Exit(result)
}

// fixed quorum for the whole test chain
var (
	quorumHash   = validator.QuorumHash{0xaa, 0x01}
	thresholdKey = []byte("local-threshold-public-key")
	proposer     = validator.ProTxHash{0x01}
	stranger     = validator.ProTxHash{0xff, 0xee}
)

func testSet() *validator.Set {
	members := []validator.Member{
		{ProTxHash: validator.ProTxHash{0x01}},
		{ProTxHash: validator.ProTxHash{0x02}},
		{ProTxHash: validator.ProTxHash{0x03}},
	}
	parameters, _ := chain.Get(chain.Local)
	block, _ := genesis.Get(chain.Local)
	return validator.NewSet(quorumHash, parameters.QuorumType, block.CoreHeight, members, thresholdKey)
}

func signedCommit(chainID string, height uint64, stateHeight uint64, stateHash merkle.Digest, blockTime uint64) *validator.Commit {
	block, _ := genesis.Get(chain.Local)
	commit := &validator.Commit{
		ChainID: chainID,
		Height:  height,
		Round:   0,
		BlockID: merkle.NewDigest([]byte{0xb1, byte(height)}),
		StateID: validator.StateID{
			AppVersion:            uint64(protocol.LatestVersion),
			CoreChainLockedHeight: block.CoreHeight,
			Time:                  blockTime,
			AppHash:               stateHash,
			Height:                stateHeight,
		},
		QuorumHash: quorumHash,
	}
	commit.Signature = validator.DigestBLS{}.Sign(thresholdKey, commit.SignBytes())
	return commit
}

// a funded identity create transition in wire form
func packedIdentityCreate(seed byte) (transition.Packed, identity.ID, identity.PublicKey) {
	specs := []struct {
		id      uint32
		purpose identity.Purpose
		level   identity.SecurityLevel
	}{
		{0, identity.Authentication, identity.Master},
		{1, identity.Authentication, identity.Critical},
	}

	priv := make(map[uint32]ed25519.PrivateKey)
	keys := make([]identity.PublicKey, 0, len(specs))
	for i, spec := range specs {
		s := make([]byte, ed25519.SeedSize)
		s[0] = seed
		s[1] = byte(i)
		p := ed25519.NewKeyFromSeed(s)
		priv[spec.id] = p
		keys = append(keys, identity.PublicKey{
			ID:            spec.id,
			Purpose:       spec.purpose,
			SecurityLevel: spec.level,
			KeyType:       identity.ED25519,
			Data:          []byte(p.Public().(ed25519.PublicKey)),
		})
	}

	tr := &transition.IdentityCreate{
		AssetLock: transition.AssetLockProof{
			TransactionID:         merkle.NewDigest([]byte{0xa5, seed}),
			OutputIndex:           uint32(seed),
			Value:                 1000000000,
			CoreChainLockedHeight: 100,
		},
		Keys: keys,
	}
	signable := tr.SignableBytes()
	for i := range keys {
		tr.ProofsOfPossession = append(tr.ProofsOfPossession,
			ed25519.Sign(priv[keys[i].ID], signable))
	}
	tr.SignaturePublicKeyID = 0
	tr.Signature = ed25519.Sign(priv[0], signable)

	return tr.Pack(), tr.IdentityID(), keys[0]
}

func poolOf(t *testing.T, epoch uint16) credit.Amount {
	t.Helper()
	read := drive.ReadTx(protocol.Latest())
	balance, _, err := fees.PoolBalance(read, epoch)
	if nil != err {
		t.Fatalf("pool balance error: %v", err)
	}
	return balance
}

// the whole lifecycle in consensus call order; subtests share chain
// state and must run in sequence
func TestBlockLifecycle(t *testing.T) {
	block, _ := genesis.Get(chain.Local)
	parameters, _ := chain.Get(chain.Local)

	timeBlock1 := block.Time + 60000
	timeBlock2 := block.Time + parameters.EpochSpan + 60000

	var appHashGenesis merkle.Digest
	var appHashBlock1 merkle.Digest

	packedCreate, walletID, masterKey := packedIdentityCreate(0x51)

	t.Run("init chain", func(t *testing.T) {
		var err error
		appHashGenesis, err = platform.InitChain(testSet())
		if nil != err {
			t.Fatalf("init chain error: %v", err)
		}
		if (merkle.Digest{}) == appHashGenesis {
			t.Fatal("zero genesis app hash")
		}
		if _, err := platform.InitChain(testSet()); fault.ErrAlreadyInitialised != err {
			t.Fatalf("second init chain error: %v  expected: %v", err, fault.ErrAlreadyInitialised)
		}

		root, err := drive.RootAtHeight(0)
		if nil != err {
			t.Fatalf("root at height error: %v", err)
		}
		if root != appHashGenesis {
			t.Fatal("genesis app hash differs from stored root")
		}
	})

	t.Run("begin block guards", func(t *testing.T) {
		err := platform.BeginBlock(5, timeBlock1, proposer, block.ProtocolVersion, quorumHash, block.CoreHeight)
		if fault.ErrInvalidBlockHeight != err {
			t.Fatalf("height error: %v  expected: %v", err, fault.ErrInvalidBlockHeight)
		}

		err = platform.BeginBlock(1, timeBlock1, proposer, 999, quorumHash, block.CoreHeight)
		if fault.ErrUnknownProtocolVersion != err {
			t.Fatalf("version error: %v  expected: %v", err, fault.ErrUnknownProtocolVersion)
		}

		err = platform.BeginBlock(1, timeBlock1, stranger, block.ProtocolVersion, quorumHash, block.CoreHeight)
		if fault.ErrProposerNotInValidatorSet != err {
			t.Fatalf("proposer error: %v  expected: %v", err, fault.ErrProposerNotInValidatorSet)
		}

		unstaged := validator.QuorumHash{0xbb, 0x02}
		err = platform.BeginBlock(1, timeBlock1, proposer, block.ProtocolVersion, unstaged, block.CoreHeight)
		if fault.ErrValidatorSetRotationDenied != err {
			t.Fatalf("rotation error: %v  expected: %v", err, fault.ErrValidatorSetRotationDenied)
		}

		if _, err := platform.DeliverTx(packedCreate); fault.ErrOutOfPlaceBlockLifecycle != err {
			t.Fatalf("deliver error: %v  expected: %v", err, fault.ErrOutOfPlaceBlockLifecycle)
		}
	})

	t.Run("bad commit aborts", func(t *testing.T) {
		if err := platform.BeginBlock(1, timeBlock1, proposer, block.ProtocolVersion, quorumHash, block.CoreHeight); nil != err {
			t.Fatalf("begin block error: %v", err)
		}
		outcome, err := platform.DeliverTx(packedCreate)
		if nil != err {
			t.Fatalf("deliver error: %v", err)
		}
		total, err := outcome.Fees.Total()
		if nil != err || 0 == total {
			t.Fatalf("fees: %d  error: %v", total, err)
		}
		if _, err := platform.EndBlock(); nil != err {
			t.Fatalf("end block error: %v", err)
		}

		forged := signedCommit("platform-local", 1, 0, appHashGenesis, timeBlock1)
		forged.Signature = []byte("not a threshold signature")
		if _, err := platform.Commit(forged); fault.ErrBadCommitSignature != err {
			t.Fatalf("commit error: %v  expected: %v", err, fault.ErrBadCommitSignature)
		}

		// the whole block rolled back
		_, _, last := platform.Info()
		if 0 != last.Height {
			t.Fatalf("height after abort: %d", last.Height)
		}
		read := drive.ReadTx(protocol.Latest())
		if _, _, err := identity.Fetch(read, walletID); fault.ErrIdentityNotFound != err {
			t.Fatalf("identity after abort: %v", err)
		}
	})

	t.Run("block one commits", func(t *testing.T) {
		if err := platform.BeginBlock(1, timeBlock1, proposer, block.ProtocolVersion, quorumHash, block.CoreHeight); nil != err {
			t.Fatalf("begin block error: %v", err)
		}
		if _, err := platform.DeliverTx(packedCreate); nil != err {
			t.Fatalf("deliver error: %v", err)
		}
		if _, err := platform.EndBlock(); nil != err {
			t.Fatalf("end block error: %v", err)
		}

		chainID, _, _ := platform.Info()
		var err error
		appHashBlock1, err = platform.Commit(signedCommit(chainID, 1, 0, appHashGenesis, timeBlock1))
		if nil != err {
			t.Fatalf("commit error: %v", err)
		}
		if err := platform.Finalize(); nil != err {
			t.Fatalf("finalize error: %v", err)
		}

		_, _, last := platform.Info()
		if 1 != last.Height || appHashBlock1 != last.AppHash {
			t.Fatalf("last block: %+v", last)
		}
		if appHashBlock1 == appHashGenesis {
			t.Fatal("app hash did not advance")
		}
	})

	t.Run("proved queries", func(t *testing.T) {
		response, err := platform.QueryIdentity(walletID)
		if nil != err {
			t.Fatalf("query identity error: %v", err)
		}
		if nil == response.Data[0] {
			t.Fatal("identity data missing")
		}
		if 1 != response.Metadata.Height || appHashBlock1 != response.Metadata.AppHash {
			t.Fatalf("metadata: %+v", response.Metadata)
		}

		proof, err := drive.UnpackProof(response.Proof)
		if nil != err {
			t.Fatalf("unpack proof error: %v", err)
		}
		path := drive.NewPath([]byte{drive.RootIdentities})
		elements, err := drive.VerifyProof(proof, path, appHashBlock1)
		if nil != err {
			t.Fatalf("verify proof error: %v", err)
		}
		record, err := identity.Unpack(elements[0].Value)
		if nil != err {
			t.Fatalf("unpack identity error: %v", err)
		}
		if walletID != record.ID {
			t.Fatal("proved identity differs")
		}

		hash := masterKey.Hash()
		mapping, err := platform.QueryIdentityByKeyHash(hash)
		if nil != err {
			t.Fatalf("query by key hash error: %v", err)
		}
		element, err := drive.UnpackElement(mapping.Data[0])
		if nil != err {
			t.Fatalf("unpack element error: %v", err)
		}
		if !bytes.Equal(element.Value, walletID[:]) {
			t.Fatal("key hash mapping differs")
		}

		balance, err := platform.QueryBalance(walletID)
		if nil != err {
			t.Fatalf("query balance error: %v", err)
		}
		if nil == balance.Data[0] {
			t.Fatal("balance data missing")
		}

		absent, err := platform.QueryIdentity(identity.ID{0xde, 0xad})
		if nil != err {
			t.Fatalf("query absent error: %v", err)
		}
		if nil != absent.Data[0] {
			t.Fatal("absent identity returned data")
		}
	})

	t.Run("proposals", func(t *testing.T) {
		garbage := transition.Packed{0x00, 0x01, 0x02}
		valid, _, _ := packedIdentityCreate(0x52)

		selected := platform.PrepareProposal([]transition.Packed{garbage, valid})
		if 1 != len(selected) {
			t.Fatalf("selected: %d  expected: 1", len(selected))
		}
		if err := platform.ProcessProposal([]transition.Packed{valid, garbage}); nil == err {
			t.Fatal("garbage proposal accepted")
		}
		if err := platform.ProcessProposal([]transition.Packed{valid}); nil != err {
			t.Fatalf("valid proposal rejected: %v", err)
		}
	})

	t.Run("epoch settlement", func(t *testing.T) {
		poolBefore := poolOf(t, 0)
		if 0 == poolBefore {
			t.Fatal("epoch zero pool is empty")
		}

		if err := platform.BeginBlock(2, timeBlock2, proposer, block.ProtocolVersion, quorumHash, block.CoreHeight); nil != err {
			t.Fatalf("begin block error: %v", err)
		}
		if _, err := platform.EndBlock(); nil != err {
			t.Fatalf("end block error: %v", err)
		}
		chainID, _, _ := platform.Info()
		appHashBlock2, err := platform.Commit(signedCommit(chainID, 2, 1, appHashBlock1, timeBlock2))
		if nil != err {
			t.Fatalf("commit error: %v", err)
		}
		if err := platform.Finalize(); nil != err {
			t.Fatalf("finalize error: %v", err)
		}
		if appHashBlock2 == appHashBlock1 {
			t.Fatal("app hash did not advance")
		}

		// the proposer has no identity, its share carries forward so
		// supply is conserved exactly
		if 0 != poolOf(t, 0) {
			t.Fatal("epoch zero pool not drained")
		}
		if poolBefore != poolOf(t, 1) {
			t.Fatalf("carried pool: %d  expected: %d", poolOf(t, 1), poolBefore)
		}

		_, _, last := platform.Info()
		if 1 != last.Epoch {
			t.Fatalf("epoch: %d  expected: 1", last.Epoch)
		}
	})
}

// run one empty block through the whole lifecycle
func commitEmptyBlock(t *testing.T, blockTime uint64, coreLockedHeight uint32) {
	t.Helper()
	block, _ := genesis.Get(chain.Local)
	chainID, _, last := platform.Info()
	height := last.Height + 1

	if err := platform.BeginBlock(height, blockTime, proposer, block.ProtocolVersion, quorumHash, coreLockedHeight); nil != err {
		t.Fatalf("begin block error: %v", err)
	}
	if _, err := platform.EndBlock(); nil != err {
		t.Fatalf("end block error: %v", err)
	}
	if _, err := platform.Commit(signedCommit(chainID, height, last.Height, last.AppHash, blockTime)); nil != err {
		t.Fatalf("commit error: %v", err)
	}
	if err := platform.Finalize(); nil != err {
		t.Fatalf("finalize error: %v", err)
	}
}

var errAnchorDown = errors.New("anchorchain: connection refused")

// masternode list changes mirrored from the anchor chain; runs after
// the lifecycle test and continues its chain
func TestMasternodeMirror(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()
	anchor := mocks.NewMockClient(ctl)

	// restart the coordinator with an anchor client attached
	if err := platform.Finalise(); nil != err {
		t.Fatalf("finalise error: %v", err)
	}
	if err := platform.Initialise(chain.Local, anchor, validator.DigestBLS{}); nil != err {
		t.Fatalf("initialise error: %v", err)
	}

	block, _ := genesis.Get(chain.Local)
	_, _, start := platform.Info()
	if 0 == start.Height {
		t.Fatal("no committed chain to continue")
	}

	lockedHeight := block.CoreHeight + 5
	nodeHash := validator.ProTxHash{0x77, 0x01}
	entry := anchorchain.MasternodeEntry{
		ProTxHash:     nodeHash,
		OwnerKeyHash:  bytes.Repeat([]byte{0x0a}, 20),
		VotingKeyHash: bytes.Repeat([]byte{0x0b}, 20),
	}
	nodeID := platform.MasternodeIdentityID(nodeHash)

	t.Run("anchor failure aborts the block", func(t *testing.T) {
		anchor.EXPECT().
			MasternodeDiff(gomock.Any(), block.CoreHeight, lockedHeight).
			Return(nil, errAnchorDown)

		err := platform.BeginBlock(start.Height+1, start.Time+60000, proposer, block.ProtocolVersion, quorumHash, lockedHeight)
		if errAnchorDown != err {
			t.Fatalf("begin block error: %v  expected: %v", err, errAnchorDown)
		}

		_, _, last := platform.Info()
		if start.Height != last.Height {
			t.Fatalf("height after abort: %d  expected: %d", last.Height, start.Height)
		}
	})

	t.Run("addition retries the failed range", func(t *testing.T) {
		// the aborted block must not have advanced the mirrored core
		// height, the diff request repeats with the same base
		anchor.EXPECT().
			MasternodeDiff(gomock.Any(), block.CoreHeight, lockedHeight).
			Return(&anchorchain.MasternodeDiff{
				BaseHeight: block.CoreHeight,
				Height:     lockedHeight,
				Added:      []anchorchain.MasternodeEntry{entry},
			}, nil)

		commitEmptyBlock(t, start.Time+60000, lockedHeight)

		read := drive.ReadTx(protocol.Latest())
		record, _, err := identity.Fetch(read, nodeID)
		if nil != err {
			t.Fatalf("fetch masternode identity error: %v", err)
		}
		if 2 != len(record.Keys) {
			t.Fatalf("keys: %d  expected: 2", len(record.Keys))
		}
		for i := range record.Keys {
			if !record.Keys[i].Enabled() {
				t.Fatalf("key: %d disabled on a live masternode", record.Keys[i].ID)
			}
		}
	})

	t.Run("removal disables every key", func(t *testing.T) {
		removedHeight := lockedHeight + 4
		anchor.EXPECT().
			MasternodeDiff(gomock.Any(), lockedHeight, removedHeight).
			Return(&anchorchain.MasternodeDiff{
				BaseHeight: lockedHeight,
				Height:     removedHeight,
				Removed:    []validator.ProTxHash{nodeHash},
			}, nil)

		commitEmptyBlock(t, start.Time+120000, removedHeight)

		read := drive.ReadTx(protocol.Latest())
		record, _, err := identity.Fetch(read, nodeID)
		if nil != err {
			t.Fatalf("fetch masternode identity error: %v", err)
		}
		for i := range record.Keys {
			if record.Keys[i].Enabled() {
				t.Fatalf("key: %d still enabled after removal", record.Keys[i].ID)
			}
		}
	})
}

// a restarted node must resume at its last committed block
func TestRestartResume(t *testing.T) {
	chainID, version, before := platform.Info()
	if 0 == before.Height {
		t.Fatal("no committed chain to resume")
	}

	if err := platform.Finalise(); nil != err {
		t.Fatalf("finalise error: %v", err)
	}
	if err := platform.Initialise(chain.Local, nil, validator.DigestBLS{}); nil != err {
		t.Fatalf("initialise error: %v", err)
	}

	resumedID, resumedVersion, after := platform.Info()
	if chainID != resumedID || version != resumedVersion {
		t.Fatalf("chain: %s version: %d  expected: %s %d", resumedID, resumedVersion, chainID, version)
	}
	if before.Height != after.Height ||
		before.Time != after.Time ||
		before.Epoch != after.Epoch ||
		before.AppHash != after.AppHash ||
		before.QuorumHash != after.QuorumHash ||
		!bytes.Equal(before.Signature, after.Signature) {
		t.Fatalf("resumed block: %+v  expected: %+v", after, before)
	}

	// a resumed chain refuses a second genesis
	if _, err := platform.InitChain(testSet()); fault.ErrAlreadyInitialised != err {
		t.Fatalf("init chain error: %v  expected: %v", err, fault.ErrAlreadyInitialised)
	}

	// and keeps committing with the restored validator set
	commitEmptyBlock(t, after.Time+60000, 0)
	_, _, next := platform.Info()
	if before.Height+1 != next.Height {
		t.Fatalf("height: %d  expected: %d", next.Height, before.Height+1)
	}
}

// two independent stores replaying the same blocks must report the
// same app hash at every height
func TestDeterministicReplay(t *testing.T) {
	// each pass runs on its own fresh store
	if err := platform.Finalise(); nil != err {
		t.Fatalf("platform finalise error: %v", err)
	}
	if err := drive.Finalise(); nil != err {
		t.Fatalf("drive finalise error: %v", err)
	}
	storage.Finalise()

	const blocks = 12

	replay := func(path string) []merkle.Digest {
		if err := storage.Initialise(path); nil != err {
			t.Fatalf("storage setup error: %v", err)
		}
		if err := drive.Initialise(); nil != err {
			t.Fatalf("drive setup error: %v", err)
		}
		if err := platform.Initialise(chain.Local, nil, validator.DigestBLS{}); nil != err {
			t.Fatalf("platform setup error: %v", err)
		}

		block, _ := genesis.Get(chain.Local)
		hashes := make([]merkle.Digest, 0, blocks+1)

		appHash, err := platform.InitChain(testSet())
		if nil != err {
			t.Fatalf("init chain error: %v", err)
		}
		hashes = append(hashes, appHash)

		chainID, _, _ := platform.Info()
		blockTime := block.Time
		for height := uint64(1); height <= blocks; height += 1 {
			blockTime += 3000
			if err := platform.BeginBlock(height, blockTime, proposer, block.ProtocolVersion, quorumHash, block.CoreHeight); nil != err {
				t.Fatalf("height: %d  begin block error: %v", height, err)
			}
			packed, _, _ := packedIdentityCreate(byte(0x80 + height))
			if _, err := platform.DeliverTx(packed); nil != err {
				t.Fatalf("height: %d  deliver error: %v", height, err)
			}
			if _, err := platform.EndBlock(); nil != err {
				t.Fatalf("height: %d  end block error: %v", height, err)
			}
			appHash, err = platform.Commit(signedCommit(chainID, height, height-1, hashes[height-1], blockTime))
			if nil != err {
				t.Fatalf("height: %d  commit error: %v", height, err)
			}
			if err := platform.Finalize(); nil != err {
				t.Fatalf("height: %d  finalize error: %v", height, err)
			}
			hashes = append(hashes, appHash)
		}

		if err := platform.Finalise(); nil != err {
			t.Fatalf("platform finalise error: %v", err)
		}
		if err := drive.Finalise(); nil != err {
			t.Fatalf("drive finalise error: %v", err)
		}
		storage.Finalise()
		return hashes
	}

	first := replay(testDir + "/replay-one.leveldb")
	second := replay(testDir + "/replay-two.leveldb")

	if len(first) != len(second) {
		t.Fatalf("hash counts: %d %d", len(first), len(second))
	}
	for height := range first {
		if first[height] != second[height] {
			t.Fatalf("height: %d  app hash: %v  second store: %v", height, first[height], second[height])
		}
	}

	// hand the original stack back for teardown
	if err := storage.Initialise(testDir + "/platform.leveldb"); nil != err {
		t.Fatalf("storage setup error: %v", err)
	}
	if err := drive.Initialise(); nil != err {
		t.Fatalf("drive setup error: %v", err)
	}
	if err := platform.Initialise(chain.Local, nil, validator.DigestBLS{}); nil != err {
		t.Fatalf("platform setup error: %v", err)
	}
}
