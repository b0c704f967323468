// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package identity_test

import (
	"os"
	"testing"

	"github.com/bitmark-inc/logger"
	"golang.org/x/crypto/ed25519"

	"github.com/bitmark-inc/platformd/credit"
	"github.com/bitmark-inc/platformd/drive"
	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/identity"
	"github.com/bitmark-inc/platformd/merkle"
	"github.com/bitmark-inc/platformd/protocol"
	"github.com/bitmark-inc/platformd/storage"
)

var nextHeight uint64 = 1

func TestMain(m *testing.M) {
	curPath, _ := os.Getwd()
	testDir := curPath + "/testing"
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

	if err := storage.Initialise(testDir + "/identity.leveldb"); nil != err {
		panic("storage setup failed: " + err.Error())
	}

	if err := drive.Initialise(); nil != err {
		panic("drive setup failed: " + err.Error())
	}

	if _, err := drive.CreateRootTree(version()); nil != err {
		panic("root tree failed: " + err.Error())
	}

	// os.Exit skips any deferred teardown so run it directly
	result := m.Run()
	drive.Finalise()
	storage.Finalise()
	logger.Finalise()
	os.RemoveAll(testDir)
	os.Exit(result)
}

func version() *protocol.Version {
	v, err := protocol.PlatformVersion(protocol.LatestVersion)
	if nil != err {
		panic(err.Error())
	}
	return v
}

// deterministic key material from a seed byte
func edKeyData(seed byte) []byte {
	s := make([]byte, ed25519.SeedSize)
	s[0] = seed
	return []byte(ed25519.NewKeyFromSeed(s).Public().(ed25519.PublicKey))
}

func makeIdentity(idSeed byte, keySeed byte) *identity.Identity {
	id := identity.ID{}
	id[0] = idSeed
	return &identity.Identity{
		ID: id,
		Keys: []identity.PublicKey{
			{
				ID:            0,
				Purpose:       identity.Authentication,
				SecurityLevel: identity.Master,
				KeyType:       identity.ED25519,
				Data:          edKeyData(keySeed),
			},
			{
				ID:            1,
				Purpose:       identity.Authentication,
				SecurityLevel: identity.High,
				KeyType:       identity.ED25519,
				Data:          edKeyData(keySeed + 1),
			},
		},
	}
}

func commit(t *testing.T, tx *drive.Tx) {
	t.Helper()
	tx.StageCommit()
	if _, err := tx.Commit(nextHeight); nil != err {
		t.Fatalf("commit error: %v", err)
	}
	nextHeight += 1
}

func TestPackUnpack(t *testing.T) {
	original := makeIdentity(1, 10)
	original.Revision = 7

	packed, err := original.Pack()
	if nil != err {
		t.Fatalf("pack error: %v", err)
	}
	decoded, err := identity.Unpack(packed)
	if nil != err {
		t.Fatalf("unpack error: %v", err)
	}
	if !original.Equal(decoded) {
		t.Fatalf("round trip mismatch: %+v  expected: %+v", decoded, original)
	}
}

func TestAddAndFetch(t *testing.T) {
	subject := makeIdentity(2, 20)

	tx := drive.NewTx(version())
	tx.StageBegin()
	_, err := identity.AddNewIdentity(tx, subject, credit.Amount(5000), 1)
	if nil != err {
		t.Fatalf("add error: %v", err)
	}
	commit(t, tx)

	read := drive.ReadTx(version())
	fetched, _, err := identity.Fetch(read, subject.ID)
	if nil != err {
		t.Fatalf("fetch error: %v", err)
	}
	if !subject.Equal(fetched) {
		t.Fatal("fetched identity differs")
	}

	balance, _, err := identity.Balance(read, subject.ID)
	if nil != err {
		t.Fatalf("balance error: %v", err)
	}
	if credit.Amount(5000) != balance {
		t.Fatalf("balance: %d  expected: 5000", balance)
	}

	// lookup through the unique key hash index
	hash := merkle.NewDigest(subject.Keys[0].Data)
	owner, _, err := identity.FetchByUniqueKeyHash(read, hash)
	if nil != err {
		t.Fatalf("hash lookup error: %v", err)
	}
	if subject.ID != owner {
		t.Fatal("hash index points at the wrong identity")
	}
}

func TestDuplicateIdentity(t *testing.T) {
	subject := makeIdentity(2, 30) // id already used above

	tx := drive.NewTx(version())
	tx.StageBegin()
	_, err := identity.AddNewIdentity(tx, subject, 0, 1)
	tx.StageAbort()
	if fault.ErrIdentityAlreadyExists != err {
		t.Fatalf("error: %v  expected: %v", err, fault.ErrIdentityAlreadyExists)
	}
}

func TestDuplicateUniqueKeyHash(t *testing.T) {
	subject := makeIdentity(3, 20) // key seed already used by identity 2

	tx := drive.NewTx(version())
	tx.StageBegin()
	_, err := identity.AddNewIdentity(tx, subject, 0, 1)
	tx.StageAbort()
	if fault.ErrIdentityPublicKeyAlreadyExists != err {
		t.Fatalf("error: %v  expected: %v", err, fault.ErrIdentityPublicKeyAlreadyExists)
	}
}

func TestMissingMasterKey(t *testing.T) {
	subject := makeIdentity(4, 40)
	subject.Keys = subject.Keys[1:] // drop the master key

	tx := drive.NewTx(version())
	tx.StageBegin()
	_, err := identity.AddNewIdentity(tx, subject, 0, 1)
	tx.StageAbort()
	if fault.ErrMasterKeyRemoved != err {
		t.Fatalf("error: %v  expected: %v", err, fault.ErrMasterKeyRemoved)
	}
}

func TestBalanceMovements(t *testing.T) {
	subject := makeIdentity(5, 50)

	tx := drive.NewTx(version())
	tx.StageBegin()
	if _, err := identity.AddNewIdentity(tx, subject, 1000, 1); nil != err {
		t.Fatalf("add error: %v", err)
	}
	if _, err := identity.AddToBalance(tx, subject.ID, 500); nil != err {
		t.Fatalf("credit error: %v", err)
	}
	if _, err := identity.RemoveFromBalance(tx, subject.ID, 200); nil != err {
		t.Fatalf("debit error: %v", err)
	}

	// overdraw refused
	_, err := identity.RemoveFromBalance(tx, subject.ID, 1000000)
	if fault.ErrBalanceInsufficient != err {
		t.Fatalf("overdraw error: %v  expected: %v", err, fault.ErrBalanceInsufficient)
	}
	commit(t, tx)

	read := drive.ReadTx(version())
	balance, _, err := identity.Balance(read, subject.ID)
	if nil != err {
		t.Fatalf("balance error: %v", err)
	}
	if credit.Amount(1300) != balance {
		t.Fatalf("balance: %d  expected: 1300", balance)
	}
}

func TestKeyUpdate(t *testing.T) {
	subject := makeIdentity(6, 60)
	subject.Keys[1].ReadOnly = true

	tx := drive.NewTx(version())
	tx.StageBegin()
	if _, err := identity.AddNewIdentity(tx, subject, 0, 1); nil != err {
		t.Fatalf("add error: %v", err)
	}
	commit(t, tx)

	// wrong revision refused
	tx = drive.NewTx(version())
	tx.StageBegin()
	_, err := identity.UpdateIdentityKeys(tx, subject.ID, &identity.KeyUpdate{
		Revision: 2, // current is 0, must be 1
	})
	tx.StageAbort()
	if fault.ErrInvalidIdentityRevision != err {
		t.Fatalf("revision error: %v  expected: %v", err, fault.ErrInvalidIdentityRevision)
	}

	// read-only key cannot be disabled
	tx = drive.NewTx(version())
	tx.StageBegin()
	_, err = identity.UpdateIdentityKeys(tx, subject.ID, &identity.KeyUpdate{
		DisableIDs: []uint32{1},
		DisabledAt: 170000,
		Revision:   1,
	})
	tx.StageAbort()
	if fault.ErrIdentityPublicKeyIsReadOnly != err {
		t.Fatalf("read-only error: %v  expected: %v", err, fault.ErrIdentityPublicKeyIsReadOnly)
	}

	// disabling the only master key refused
	tx = drive.NewTx(version())
	tx.StageBegin()
	_, err = identity.UpdateIdentityKeys(tx, subject.ID, &identity.KeyUpdate{
		DisableIDs: []uint32{0},
		DisabledAt: 170000,
		Revision:   1,
	})
	tx.StageAbort()
	if fault.ErrMasterKeyRemoved != err {
		t.Fatalf("master error: %v  expected: %v", err, fault.ErrMasterKeyRemoved)
	}

	// a valid update adds a key and bumps the revision
	tx = drive.NewTx(version())
	tx.StageBegin()
	_, err = identity.UpdateIdentityKeys(tx, subject.ID, &identity.KeyUpdate{
		Add: []identity.PublicKey{{
			ID:            2,
			Purpose:       identity.Withdraw,
			SecurityLevel: identity.Critical,
			KeyType:       identity.ED25519,
			Data:          edKeyData(62),
		}},
		Revision: 1,
		Epoch:    2,
	})
	if nil != err {
		t.Fatalf("update error: %v", err)
	}
	commit(t, tx)

	read := drive.ReadTx(version())
	updated, _, err := identity.Fetch(read, subject.ID)
	if nil != err {
		t.Fatalf("fetch error: %v", err)
	}
	if 1 != updated.Revision {
		t.Fatalf("revision: %d  expected: 1", updated.Revision)
	}
	if 3 != len(updated.Keys) {
		t.Fatalf("keys: %d  expected: 3", len(updated.Keys))
	}
	if nil == updated.Key(2) {
		t.Fatal("added key missing")
	}
}

func TestDisableAllKeys(t *testing.T) {
	subject := makeIdentity(7, 70)
	subject.Keys[1].ReadOnly = true

	tx := drive.NewTx(version())
	tx.StageBegin()
	if _, err := identity.AddNewIdentity(tx, subject, 0, 1); nil != err {
		t.Fatalf("add error: %v", err)
	}
	commit(t, tx)

	// the system action overrides the read only and master key rules
	tx = drive.NewTx(version())
	tx.StageBegin()
	if _, err := identity.DisableAllKeys(tx, subject.ID, 98765, 1); nil != err {
		t.Fatalf("disable error: %v", err)
	}
	commit(t, tx)

	read := drive.ReadTx(version())
	disabled, _, err := identity.Fetch(read, subject.ID)
	if nil != err {
		t.Fatalf("fetch error: %v", err)
	}
	if 1 != disabled.Revision {
		t.Fatalf("revision: %d  expected: 1", disabled.Revision)
	}
	for i := range disabled.Keys {
		if disabled.Keys[i].Enabled() {
			t.Fatalf("key %d still enabled", disabled.Keys[i].ID)
		}
		if 98765 != disabled.Keys[i].DisabledAt {
			t.Fatalf("key %d disabled at: %d", disabled.Keys[i].ID, disabled.Keys[i].DisabledAt)
		}
	}

	// disabling again changes nothing
	tx = drive.NewTx(version())
	tx.StageBegin()
	if _, err := identity.DisableAllKeys(tx, subject.ID, 99999, 1); nil != err {
		t.Fatalf("second disable error: %v", err)
	}
	commit(t, tx)

	read = drive.ReadTx(version())
	again, _, err := identity.Fetch(read, subject.ID)
	if nil != err {
		t.Fatalf("fetch error: %v", err)
	}
	if 1 != again.Revision || 98765 != again.Keys[0].DisabledAt {
		t.Fatalf("idempotent disable: revision %d  disabled at %d",
			again.Revision, again.Keys[0].DisabledAt)
	}
}

func TestSignatureVerify(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	seed[0] = 99
	private := ed25519.NewKeyFromSeed(seed)

	key := identity.PublicKey{
		ID:            0,
		Purpose:       identity.Authentication,
		SecurityLevel: identity.Master,
		KeyType:       identity.ED25519,
		Data:          []byte(private.Public().(ed25519.PublicKey)),
	}

	message := []byte("state transition signable bytes")
	signature := ed25519.Sign(private, message)

	if err := key.VerifySignature(message, signature); nil != err {
		t.Fatalf("verify error: %v", err)
	}

	signature[0] ^= 0x01
	if err := key.VerifySignature(message, signature); fault.ErrInvalidSignature != err {
		t.Fatalf("tampered verify error: %v  expected: %v", err, fault.ErrInvalidSignature)
	}

	key.DisabledAt = 12345
	if err := key.VerifySignature(message, signature); fault.ErrPublicKeyIsDisabled != err {
		t.Fatalf("disabled verify error: %v  expected: %v", err, fault.ErrPublicKeyIsDisabled)
	}
}

// key types carrying only a 20 byte hash of the real key material
func TestHashedKeyTypes(t *testing.T) {
	hashed := []identity.KeyType{
		identity.ECDSAHash160,
		identity.BIP13ScriptHash,
		identity.EDDSA25519Hash160,
	}

	for _, keyType := range hashed {
		key := identity.PublicKey{
			ID:            0,
			Purpose:       identity.Authentication,
			SecurityLevel: identity.Master,
			KeyType:       keyType,
			Data:          make([]byte, 20),
		}
		key.Data[0] = byte(keyType)

		if err := key.CheckKeyData(); nil != err {
			t.Fatalf("key type: %d  check error: %v", keyType, err)
		}
		key.Data = key.Data[:19]
		if err := key.CheckKeyData(); fault.ErrInvalidSignature != err {
			t.Fatalf("key type: %d  short data error: %v", keyType, err)
		}

		// the same hash may back several identities
		if key.Unique() {
			t.Fatalf("key type: %d  unexpectedly unique", keyType)
		}
	}

	// script and hashed eddsa keys never verify a signature directly
	script := identity.PublicKey{
		ID:            0,
		Purpose:       identity.Authentication,
		SecurityLevel: identity.Master,
		KeyType:       identity.BIP13ScriptHash,
		Data:          make([]byte, 20),
	}
	err := script.VerifySignature([]byte("message"), []byte("signature"))
	if fault.ErrSignatureNotAllowedForKeyType != err {
		t.Fatalf("script verify error: %v  expected: %v", err, fault.ErrSignatureNotAllowedForKeyType)
	}
}
