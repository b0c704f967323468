// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package document_test

import (
	"bytes"
	"os"
	"testing"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/platformd/contract"
	"github.com/bitmark-inc/platformd/document"
	"github.com/bitmark-inc/platformd/drive"
	"github.com/bitmark-inc/platformd/fault"
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

	if err := storage.Initialise(testDir + "/document.leveldb"); nil != err {
		panic("storage setup failed: " + err.Error())
	}

	if err := drive.Initialise(); nil != err {
		panic("drive setup failed: " + err.Error())
	}

	if _, err := drive.CreateRootTree(protocol.Latest()); nil != err {
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

func commit(t *testing.T, tx *drive.Tx) {
	t.Helper()
	tx.StageCommit()
	if _, err := tx.Commit(nextHeight); nil != err {
		t.Fatalf("commit error: %v", err)
	}
	nextHeight += 1
}

// a contract with a mutable indexed type, a history keeping type and
// an immutable type
func makeContract(ownerSeed byte) *contract.Contract {
	owner := [32]byte{}
	owner[0] = ownerSeed
	entropy := [32]byte{}
	entropy[0] = ownerSeed + 1

	return &contract.Contract{
		ID:      contract.DeriveID(owner[:], entropy[:]),
		OwnerID: owner,
		Entropy: entropy,
		Defs: map[string]*contract.SchemaNode{
			"shortString": {Type: contract.PropertyString, MinLength: 1, MaxLength: 63},
		},
		DocumentTypes: map[string]*contract.DocumentType{
			"profile": {
				DocumentsMutable: true,
				Schema: &contract.SchemaNode{
					Type: contract.PropertyObject,
					Properties: map[string]*contract.SchemaNode{
						"name":     {Ref: "$defs/shortString"},
						"email":    {Ref: "$defs/shortString"},
						"nickname": {Ref: "$defs/shortString"},
						"age":      {Type: contract.PropertyInteger},
					},
					Required: []string{"name", "email"},
				},
				Indexes: []contract.Index{
					{
						Name:       "byEmail",
						Unique:     true,
						Properties: []contract.IndexProperty{{Name: "email", Ascending: true}},
					},
					{
						Name:       "byNickname",
						Unique:     true,
						Properties: []contract.IndexProperty{{Name: "nickname", Ascending: true}},
					},
					{
						Name:       "byNameAge",
						Properties: []contract.IndexProperty{{Name: "name", Ascending: true}, {Name: "age", Ascending: true}},
					},
				},
			},
			"memo": {
				DocumentsMutable:     true,
				DocumentsKeepHistory: true,
				Schema: &contract.SchemaNode{
					Type: contract.PropertyObject,
					Properties: map[string]*contract.SchemaNode{
						"text": {Type: contract.PropertyString, MaxLength: 100},
						"tag":  {Ref: "$defs/shortString"},
					},
					Required: []string{"text"},
				},
				Indexes: []contract.Index{
					{
						Name:       "byTag",
						Properties: []contract.IndexProperty{{Name: "tag", Ascending: true}},
					},
				},
			},
			"audit": {
				Schema: &contract.SchemaNode{
					Type: contract.PropertyObject,
					Properties: map[string]*contract.SchemaNode{
						"event": {Type: contract.PropertyString, MaxLength: 100},
					},
					Required: []string{"event"},
				},
			},
			"ledger": {
				DocumentsKeepHistory: true,
				Schema: &contract.SchemaNode{
					Type: contract.PropertyObject,
					Properties: map[string]*contract.SchemaNode{
						"entry": {Type: contract.PropertyString, MaxLength: 100},
					},
					Required: []string{"entry"},
				},
			},
		},
	}
}

func register(t *testing.T, c *contract.Contract) {
	t.Helper()
	tx := drive.NewTx(protocol.Latest())
	tx.StageBegin()
	if _, err := contract.Register(tx, c, 1); nil != err {
		t.Fatalf("register error: %v", err)
	}
	commit(t, tx)
}

func newDoc(c *contract.Contract, typeName string, ownerSeed byte, entropySeed byte, properties map[string]document.Value) *document.Document {
	owner := [32]byte{}
	owner[0] = ownerSeed
	entropy := []byte{entropySeed}
	return &document.Document{
		ID:         document.DeriveID(c.ID, owner[:], typeName, entropy),
		ContractID: c.ID,
		Type:       typeName,
		OwnerID:    owner,
		Revision:   1,
		Properties: properties,
	}
}

func create(t *testing.T, tx *drive.Tx, c *contract.Contract, d *document.Document) {
	t.Helper()
	if _, err := document.Create(tx, c, d, 1); nil != err {
		t.Fatalf("create error: %v", err)
	}
}

func TestValidate(t *testing.T) {
	c := makeContract(20)
	if err := c.Compile(); nil != err {
		t.Fatalf("compile error: %v", err)
	}
	dt, _ := c.DocumentType("profile")

	d := newDoc(c, "profile", 1, 1, map[string]document.Value{
		"name":  document.String("alice"),
		"email": document.String("alice@example.com"),
		"age":   document.Integer(30),
	})
	if err := d.Validate(dt); nil != err {
		t.Fatalf("validate error: %v", err)
	}

	// required property absent
	missing := newDoc(c, "profile", 1, 2, map[string]document.Value{
		"name": document.String("bob"),
	})
	if err := missing.Validate(dt); fault.ErrMissingRequiredProperty != err {
		t.Fatalf("error: %v  expected: %v", err, fault.ErrMissingRequiredProperty)
	}

	// an explicit null does not satisfy a required property
	nulled := newDoc(c, "profile", 1, 6, map[string]document.Value{
		"name":  document.String("bob"),
		"email": document.Null(),
	})
	if err := nulled.Validate(dt); fault.ErrMissingRequiredProperty != err {
		t.Fatalf("error: %v  expected: %v", err, fault.ErrMissingRequiredProperty)
	}

	// undeclared property
	unknown := newDoc(c, "profile", 1, 3, map[string]document.Value{
		"name":   document.String("bob"),
		"email":  document.String("bob@example.com"),
		"height": document.Integer(180),
	})
	if err := unknown.Validate(dt); fault.ErrPropertyNotFound != err {
		t.Fatalf("error: %v  expected: %v", err, fault.ErrPropertyNotFound)
	}

	// string over the declared maximum
	long := newDoc(c, "profile", 1, 4, map[string]document.Value{
		"name":  document.String(string(make([]byte, 64))),
		"email": document.String("bob@example.com"),
	})
	if err := long.Validate(dt); fault.ErrStringTooLong != err {
		t.Fatalf("error: %v  expected: %v", err, fault.ErrStringTooLong)
	}

	// created at without updated at
	halfTimed := newDoc(c, "profile", 1, 5, map[string]document.Value{
		"name":  document.String("bob"),
		"email": document.String("bob2@example.com"),
	})
	halfTimed.CreatedAt = 1000
	if err := halfTimed.Validate(dt); fault.ErrIncompatibleTimestamps != err {
		t.Fatalf("error: %v  expected: %v", err, fault.ErrIncompatibleTimestamps)
	}
}

func TestPackUnpack(t *testing.T) {
	c := makeContract(21)
	d := newDoc(c, "profile", 1, 1, map[string]document.Value{
		"name":  document.String("alice"),
		"email": document.String("alice@example.com"),
		"age":   document.Integer(30),
	})
	d.Revision = 3
	d.CreatedAt = 1000
	d.UpdatedAt = 2000

	packed := d.Pack()
	decoded, err := document.Unpack(packed)
	if nil != err {
		t.Fatalf("unpack error: %v", err)
	}
	if !bytes.Equal(packed, decoded.Pack()) {
		t.Fatal("repack differs")
	}
	if decoded.ID != d.ID || 3 != decoded.Revision {
		t.Fatal("decoded header differs")
	}
	if !decoded.Properties["age"].Equal(document.Integer(30)) {
		t.Fatal("decoded property differs")
	}
}

func TestCreateAndFetch(t *testing.T) {
	c := makeContract(22)
	register(t, c)

	d := newDoc(c, "profile", 1, 1, map[string]document.Value{
		"name":  document.String("alice"),
		"email": document.String("alice@22.example"),
		"age":   document.Integer(30),
	})

	tx := drive.NewTx(protocol.Latest())
	tx.StageBegin()
	create(t, tx, c, d)

	// a second create of the same document is refused
	_, err := document.Create(tx, c, d, 1)
	if fault.ErrDocumentAlreadyExists != err {
		t.Fatalf("duplicate error: %v  expected: %v", err, fault.ErrDocumentAlreadyExists)
	}

	// a new document starts at revision one
	early := newDoc(c, "profile", 1, 9, map[string]document.Value{
		"name":  document.String("eve"),
		"email": document.String("eve@22.example"),
	})
	early.Revision = 0
	_, err = document.Create(tx, c, early, 1)
	if fault.ErrInvalidDocumentRevision != err {
		t.Fatalf("revision error: %v  expected: %v", err, fault.ErrInvalidDocumentRevision)
	}
	commit(t, tx)

	read := drive.ReadTx(protocol.Latest())
	fetched, _, err := document.Fetch(read, c, "profile", d.ID)
	if nil != err {
		t.Fatalf("fetch error: %v", err)
	}
	if !bytes.Equal(d.Pack(), fetched.Pack()) {
		t.Fatal("fetched document differs")
	}

	absent := document.ID{}
	absent[0] = 0xff
	_, _, err = document.Fetch(read, c, "profile", absent)
	if fault.ErrDocumentNotFound != err {
		t.Fatalf("missing error: %v  expected: %v", err, fault.ErrDocumentNotFound)
	}
}

func TestUniqueIndexConflict(t *testing.T) {
	c := makeContract(23)
	register(t, c)

	alice := newDoc(c, "profile", 1, 1, map[string]document.Value{
		"name":  document.String("alice"),
		"email": document.String("shared@23.example"),
	})
	bob := newDoc(c, "profile", 2, 1, map[string]document.Value{
		"name":  document.String("bob"),
		"email": document.String("shared@23.example"),
	})

	tx := drive.NewTx(protocol.Latest())
	tx.StageBegin()
	create(t, tx, c, alice)
	commit(t, tx)

	tx = drive.NewTx(protocol.Latest())
	tx.StageBegin()
	_, err := document.Create(tx, c, bob, 1)
	tx.StageAbort()
	if fault.ErrDuplicateUniqueIndex != err {
		t.Fatalf("conflict error: %v  expected: %v", err, fault.ErrDuplicateUniqueIndex)
	}

	// absent optional unique values never collide
	carol := newDoc(c, "profile", 3, 1, map[string]document.Value{
		"name":  document.String("carol"),
		"email": document.String("carol@23.example"),
	})
	tx = drive.NewTx(protocol.Latest())
	tx.StageBegin()
	create(t, tx, c, carol)
	commit(t, tx)
}

func TestQueryByIndex(t *testing.T) {
	c := makeContract(24)
	register(t, c)

	alice := newDoc(c, "profile", 1, 1, map[string]document.Value{
		"name":  document.String("smith"),
		"email": document.String("alice@24.example"),
		"age":   document.Integer(30),
	})
	bob := newDoc(c, "profile", 2, 1, map[string]document.Value{
		"name":  document.String("smith"),
		"email": document.String("bob@24.example"),
		"age":   document.Integer(30),
	})

	tx := drive.NewTx(protocol.Latest())
	tx.StageBegin()
	create(t, tx, c, alice)
	create(t, tx, c, bob)
	commit(t, tx)

	read := drive.ReadTx(protocol.Latest())

	// unique index resolves to the single document
	results, _, err := document.QueryByIndex(read, c, "profile", "byEmail",
		[]document.Value{document.String("alice@24.example")}, 0)
	if nil != err {
		t.Fatalf("query error: %v", err)
	}
	if 1 != len(results) || results[0].ID != alice.ID {
		t.Fatalf("unique query results: %d", len(results))
	}

	// non unique index returns every matching document
	results, _, err = document.QueryByIndex(read, c, "profile", "byNameAge",
		[]document.Value{document.String("smith"), document.Integer(30)}, 0)
	if nil != err {
		t.Fatalf("query error: %v", err)
	}
	if 2 != len(results) {
		t.Fatalf("non unique query results: %d  expected: 2", len(results))
	}

	// no match is an empty result, not an error
	results, _, err = document.QueryByIndex(read, c, "profile", "byEmail",
		[]document.Value{document.String("nobody@24.example")}, 0)
	if nil != err {
		t.Fatalf("query error: %v", err)
	}
	if 0 != len(results) {
		t.Fatalf("empty query results: %d", len(results))
	}
}

func TestReplace(t *testing.T) {
	c := makeContract(25)
	register(t, c)

	d := newDoc(c, "profile", 1, 1, map[string]document.Value{
		"name":  document.String("alice"),
		"email": document.String("old@25.example"),
		"age":   document.Integer(30),
	})

	tx := drive.NewTx(protocol.Latest())
	tx.StageBegin()
	create(t, tx, c, d)
	commit(t, tx)

	// a revision skip is refused
	skipped, _ := document.Unpack(d.Pack())
	skipped.Revision = 3
	tx = drive.NewTx(protocol.Latest())
	tx.StageBegin()
	_, err := document.Replace(tx, c, skipped, 1)
	tx.StageAbort()
	if fault.ErrInvalidDocumentRevision != err {
		t.Fatalf("revision error: %v  expected: %v", err, fault.ErrInvalidDocumentRevision)
	}

	// the valid replace moves the changed unique index entry
	updated, _ := document.Unpack(d.Pack())
	updated.Revision = 2
	updated.Properties["email"] = document.String("new@25.example")
	tx = drive.NewTx(protocol.Latest())
	tx.StageBegin()
	if _, err = document.Replace(tx, c, updated, 1); nil != err {
		t.Fatalf("replace error: %v", err)
	}
	commit(t, tx)

	read := drive.ReadTx(protocol.Latest())
	fetched, _, err := document.Fetch(read, c, "profile", d.ID)
	if nil != err {
		t.Fatalf("fetch error: %v", err)
	}
	if 2 != fetched.Revision {
		t.Fatalf("revision: %d  expected: 2", fetched.Revision)
	}

	results, _, err := document.QueryByIndex(read, c, "profile", "byEmail",
		[]document.Value{document.String("old@25.example")}, 0)
	if nil != err || 0 != len(results) {
		t.Fatalf("old index entry still present: %d  error: %v", len(results), err)
	}
	results, _, err = document.QueryByIndex(read, c, "profile", "byEmail",
		[]document.Value{document.String("new@25.example")}, 0)
	if nil != err || 1 != len(results) {
		t.Fatalf("new index entry missing: %d  error: %v", len(results), err)
	}

	// the unchanged non unique entry still resolves to the new copy
	results, _, err = document.QueryByIndex(read, c, "profile", "byNameAge",
		[]document.Value{document.String("alice"), document.Integer(30)}, 0)
	if nil != err || 1 != len(results) {
		t.Fatalf("unchanged index entry missing: %d  error: %v", len(results), err)
	}
	if 2 != results[0].Revision {
		t.Fatalf("index resolves stale revision: %d", results[0].Revision)
	}

	// an immutable type refuses replacement
	frozen := newDoc(c, "audit", 1, 2, map[string]document.Value{
		"event": document.String("login"),
	})
	tx = drive.NewTx(protocol.Latest())
	tx.StageBegin()
	create(t, tx, c, frozen)
	commit(t, tx)

	next, _ := document.Unpack(frozen.Pack())
	next.Revision = 2
	tx = drive.NewTx(protocol.Latest())
	tx.StageBegin()
	_, err = document.Replace(tx, c, next, 1)
	tx.StageAbort()
	if fault.ErrDocumentNotMutable != err {
		t.Fatalf("mutable error: %v  expected: %v", err, fault.ErrDocumentNotMutable)
	}

	// history keeping does not override an immutable type
	entry := newDoc(c, "ledger", 1, 3, map[string]document.Value{
		"entry": document.String("opening"),
	})
	entry.CreatedAt = 1000
	entry.UpdatedAt = 1000
	tx = drive.NewTx(protocol.Latest())
	tx.StageBegin()
	create(t, tx, c, entry)
	commit(t, tx)

	amended, _ := document.Unpack(entry.Pack())
	amended.Revision = 2
	amended.UpdatedAt = 2000
	tx = drive.NewTx(protocol.Latest())
	tx.StageBegin()
	_, err = document.Replace(tx, c, amended, 1)
	tx.StageAbort()
	if fault.ErrDocumentNotMutable != err {
		t.Fatalf("history mutable error: %v  expected: %v", err, fault.ErrDocumentNotMutable)
	}
}

func TestDelete(t *testing.T) {
	c := makeContract(26)
	register(t, c)

	d := newDoc(c, "profile", 1, 1, map[string]document.Value{
		"name":  document.String("alice"),
		"email": document.String("alice@26.example"),
		"age":   document.Integer(30),
	})

	tx := drive.NewTx(protocol.Latest())
	tx.StageBegin()
	create(t, tx, c, d)
	commit(t, tx)

	// only the owner may delete
	stranger := [32]byte{}
	stranger[0] = 9
	tx = drive.NewTx(protocol.Latest())
	tx.StageBegin()
	_, err := document.Delete(tx, c, "profile", d.ID, stranger)
	tx.StageAbort()
	if fault.ErrDocumentOwnerMismatch != err {
		t.Fatalf("owner error: %v  expected: %v", err, fault.ErrDocumentOwnerMismatch)
	}

	tx = drive.NewTx(protocol.Latest())
	tx.StageBegin()
	if _, err := document.Delete(tx, c, "profile", d.ID, d.OwnerID); nil != err {
		t.Fatalf("delete error: %v", err)
	}
	commit(t, tx)

	read := drive.ReadTx(protocol.Latest())
	_, _, err = document.Fetch(read, c, "profile", d.ID)
	if fault.ErrDocumentNotFound != err {
		t.Fatalf("fetch error: %v  expected: %v", err, fault.ErrDocumentNotFound)
	}
	results, _, err := document.QueryByIndex(read, c, "profile", "byEmail",
		[]document.Value{document.String("alice@26.example")}, 0)
	if nil != err || 0 != len(results) {
		t.Fatalf("index entry survived delete: %d  error: %v", len(results), err)
	}

	// an immutable type refuses delete even by its owner
	frozen := newDoc(c, "audit", 1, 2, map[string]document.Value{
		"event": document.String("login"),
	})
	tx = drive.NewTx(protocol.Latest())
	tx.StageBegin()
	create(t, tx, c, frozen)
	commit(t, tx)

	tx = drive.NewTx(protocol.Latest())
	tx.StageBegin()
	_, err = document.Delete(tx, c, "audit", frozen.ID, frozen.OwnerID)
	tx.StageAbort()
	if fault.ErrDocumentNotMutable != err {
		t.Fatalf("immutable delete error: %v  expected: %v", err, fault.ErrDocumentNotMutable)
	}
}

func TestHistory(t *testing.T) {
	c := makeContract(27)
	register(t, c)

	d := newDoc(c, "memo", 1, 1, map[string]document.Value{
		"text": document.String("first"),
		"tag":  document.String("work"),
	})
	d.CreatedAt = 1000
	d.UpdatedAt = 1000

	tx := drive.NewTx(protocol.Latest())
	tx.StageBegin()
	create(t, tx, c, d)
	commit(t, tx)

	// history keeping types refuse delete
	tx = drive.NewTx(protocol.Latest())
	tx.StageBegin()
	_, err := document.Delete(tx, c, "memo", d.ID, d.OwnerID)
	tx.StageAbort()
	if fault.ErrDocumentDeleteNotAllowed != err {
		t.Fatalf("delete error: %v  expected: %v", err, fault.ErrDocumentDeleteNotAllowed)
	}

	// two replacements append versions
	for revision := uint64(2); revision <= 3; revision += 1 {
		next, _ := document.Unpack(d.Pack())
		next.Revision = revision
		next.UpdatedAt = 1000 * revision
		next.Properties["text"] = document.String("revised")
		tx = drive.NewTx(protocol.Latest())
		tx.StageBegin()
		if _, err = document.Replace(tx, c, next, 1); nil != err {
			t.Fatalf("replace error: %v", err)
		}
		commit(t, tx)
		d = next
	}

	read := drive.ReadTx(protocol.Latest())
	current, _, err := document.Fetch(read, c, "memo", d.ID)
	if nil != err {
		t.Fatalf("fetch error: %v", err)
	}
	if 3 != current.Revision {
		t.Fatalf("revision: %d  expected: 3", current.Revision)
	}
	if !current.Properties["text"].Equal(document.String("revised")) {
		t.Fatal("current version differs")
	}

	// three version items plus the current reference leaf
	versioned := contract.PrimaryPath(c.ID, "memo").Child(d.ID[:])
	results, _, err := read.Execute(&drive.PathQuery{Path: versioned})
	if nil != err {
		t.Fatalf("version scan error: %v", err)
	}
	if 4 != len(results) {
		t.Fatalf("version rows: %d  expected: 4", len(results))
	}

	// the index entry tracks the newest version
	matches, _, err := document.QueryByIndex(read, c, "memo", "byTag",
		[]document.Value{document.String("work")}, 0)
	if nil != err || 1 != len(matches) {
		t.Fatalf("tag query: %d  error: %v", len(matches), err)
	}
	if 3 != matches[0].Revision {
		t.Fatalf("tag query revision: %d  expected: 3", matches[0].Revision)
	}
}
