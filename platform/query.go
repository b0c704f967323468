// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package platform

import (
	"github.com/bitmark-inc/platformd/contract"
	"github.com/bitmark-inc/platformd/document"
	"github.com/bitmark-inc/platformd/drive"
	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/identity"
	"github.com/bitmark-inc/platformd/merkle"
	"github.com/bitmark-inc/platformd/mode"
)

// BlockMetadata - the committed state a query answered from
type BlockMetadata struct {
	Height          uint64
	Time            uint64 // milliseconds
	Epoch           uint16
	ProtocolVersion uint32
	AppHash         merkle.Digest
}

// ProvedResponse - one query answer with its inclusion proof
//
// Data holds the packed elements in key order, nil entries mark
// absent keys; the proof verifies against the metadata app hash via
// drive.VerifyProof
type ProvedResponse struct {
	Data     [][]byte
	Proof    []byte
	Metadata BlockMetadata
}

func metadata() BlockMetadata {
	return BlockMetadata{
		Height:          globalData.last.Height,
		Time:            globalData.last.Time,
		Epoch:           globalData.last.Epoch,
		ProtocolVersion: globalData.version.ProtocolVersion,
		AppHash:         globalData.last.AppHash,
	}
}

// prove a set of keys in one subtree of the last committed state
//
// callers hold the read lock
func provedQuery(path drive.Path, keys [][]byte) (*ProvedResponse, error) {
	tx := drive.ReadTx(globalData.version)

	data := make([][]byte, len(keys))
	for i, key := range keys {
		element, _, err := tx.GetRaw(path, key)
		if fault.ErrKeyNotFound == err || fault.ErrPathNotFound == err {
			continue // absence is part of the proof
		}
		if nil != err {
			return nil, err
		}
		data[i] = element.Pack()
	}

	proof, err := tx.Prove(path, keys)
	if nil != err {
		return nil, err
	}
	return &ProvedResponse{
		Data:     data,
		Proof:    proof.Pack(),
		Metadata: metadata(),
	}, nil
}

func identitiesPath() drive.Path {
	return drive.NewPath([]byte{drive.RootIdentities})
}

func balancesPath() drive.Path {
	return drive.NewPath([]byte{drive.RootBalances})
}

func uniqueHashesPath() drive.Path {
	return drive.NewPath([]byte{drive.RootUniquePublicKeyHashesToIdentities})
}

// QueryIdentity - the packed identity record with proof
func QueryIdentity(id identity.ID) (*ProvedResponse, error) {
	globalData.RLock()
	defer globalData.RUnlock()

	if !globalData.initialised {
		return nil, fault.ErrNotInitialised
	}
	return provedQuery(identitiesPath(), [][]byte{id[:]})
}

// QueryIdentityByKeyHash - the unique key hash to identity mapping
//
// the proved value is the owning identity id; a second QueryIdentity
// call proves the record itself
func QueryIdentityByKeyHash(hash merkle.Digest) (*ProvedResponse, error) {
	globalData.RLock()
	defer globalData.RUnlock()

	if !globalData.initialised {
		return nil, fault.ErrNotInitialised
	}
	return provedQuery(uniqueHashesPath(), [][]byte{hash[:]})
}

// QueryBalance - the balance sum item of one identity with proof
func QueryBalance(id identity.ID) (*ProvedResponse, error) {
	globalData.RLock()
	defer globalData.RUnlock()

	if !globalData.initialised {
		return nil, fault.ErrNotInitialised
	}
	return provedQuery(balancesPath(), [][]byte{id[:]})
}

// QueryContract - the packed contract record with proof
func QueryContract(id contract.ID) (*ProvedResponse, error) {
	globalData.RLock()
	defer globalData.RUnlock()

	if !globalData.initialised {
		return nil, fault.ErrNotInitialised
	}
	return provedQuery(contract.Path(id), [][]byte{contract.RecordKey()})
}

// QueryContractHistory - one superseded contract revision with proof
func QueryContractHistory(id contract.ID, revision uint64) (*ProvedResponse, error) {
	globalData.RLock()
	defer globalData.RUnlock()

	if !globalData.initialised {
		return nil, fault.ErrNotInitialised
	}
	return provedQuery(contract.HistoryPath(id), [][]byte{contract.RevisionKey(revision)})
}

// QueryDocuments - documents matching an index query, with a proof
// of each returned document in the primary tree
func QueryDocuments(contractID contract.ID, typeName string, indexName string, values []document.Value, limit int) (*ProvedResponse, error) {
	globalData.RLock()
	defer globalData.RUnlock()

	if !globalData.initialised {
		return nil, fault.ErrNotInitialised
	}

	tx := drive.ReadTx(globalData.version)
	c, _, err := contract.CachedFetch(tx, contractID)
	if nil != err {
		return nil, err
	}

	documents, _, err := document.QueryByIndex(tx, c, typeName, indexName, values, limit)
	if nil != err {
		return nil, err
	}

	keys := make([][]byte, len(documents))
	for i, d := range documents {
		keys[i] = d.ID[:]
	}
	return provedQuery(contract.PrimaryPath(contractID, typeName), keys)
}

// QueryMode - the current lifecycle state, for operators
func QueryMode() string {
	return mode.String()
}
