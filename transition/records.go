// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transition

import (
	"bytes"

	"github.com/bitmark-inc/platformd/contract"
	"github.com/bitmark-inc/platformd/credit"
	"github.com/bitmark-inc/platformd/document"
	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/identity"
	"github.com/bitmark-inc/platformd/merkle"
)

// DataContractCreate - register a new data contract
type DataContractCreate struct {
	RawContract          []byte
	SignaturePublicKeyID uint32
	Signature            []byte

	contract *contract.Contract // parsed during structural validation
}

// Kind - the transition type tag
func (t *DataContractCreate) Kind() Kind { return DataContractCreateTag }

// ContractID - the id of the contract being registered
//
// only valid after structural validation
func (t *DataContractCreate) ContractID() contract.ID {
	return t.contract.ID
}

func (t *DataContractCreate) structural() error {
	if 0 == len(t.RawContract) || len(t.RawContract) > maxPackedContractLength {
		return fault.ErrDataTooLarge
	}
	c, err := contract.Unpack(t.RawContract)
	if nil != err {
		return fault.ErrNotTransitionPack
	}
	if 0 != c.Revision {
		return fault.ErrInvalidStateTransitionType
	}
	if err := c.Compile(); nil != err {
		return err
	}
	t.contract = c
	return nil
}

// DataContractUpdate - store the next revision of a contract
type DataContractUpdate struct {
	RawContract          []byte
	SignaturePublicKeyID uint32
	Signature            []byte

	contract *contract.Contract
}

// Kind - the transition type tag
func (t *DataContractUpdate) Kind() Kind { return DataContractUpdateTag }

// ContractID - the id of the contract being updated
//
// only valid after structural validation
func (t *DataContractUpdate) ContractID() contract.ID {
	return t.contract.ID
}

func (t *DataContractUpdate) structural() error {
	if 0 == len(t.RawContract) || len(t.RawContract) > maxPackedContractLength {
		return fault.ErrDataTooLarge
	}
	c, err := contract.Unpack(t.RawContract)
	if nil != err {
		return fault.ErrNotTransitionPack
	}
	if 0 == c.Revision {
		return fault.ErrInvalidStateTransitionType
	}
	if err := c.Compile(); nil != err {
		return err
	}
	t.contract = c
	return nil
}

// ActionType - one document action discriminant
type ActionType byte

// all document actions
const (
	ActionCreate  ActionType = 0x00
	ActionReplace ActionType = 0x01
	ActionDelete  ActionType = 0x02
)

// DocumentAction - one document operation inside a batch
//
// the contract id and type name are bound explicitly so they are
// covered by the signature even for deletes, which carry no document
type DocumentAction struct {
	Action      ActionType
	ContractID  contract.ID
	TypeName    string
	DocumentID  document.ID
	RawDocument []byte // empty for delete

	document *document.Document
}

// DocumentsBatch - a vector of document actions by one owner
type DocumentsBatch struct {
	OwnerID              identity.ID
	Actions              []DocumentAction
	SignaturePublicKeyID uint32
	Signature            []byte
}

// Kind - the transition type tag
func (t *DocumentsBatch) Kind() Kind { return DocumentsBatchTag }

func (t *DocumentsBatch) structural() error {
	if 0 == len(t.Actions) || len(t.Actions) > maxDocumentActions {
		return fault.ErrInvalidStateTransitionType
	}
	for i := range t.Actions {
		action := &t.Actions[i]
		switch action.Action {

		case ActionDelete:
			if 0 != len(action.RawDocument) {
				return fault.ErrInvalidStateTransitionType
			}

		case ActionCreate, ActionReplace:
			if 0 == len(action.RawDocument) || len(action.RawDocument) > maxPackedDocumentLength {
				return fault.ErrDataTooLarge
			}
			d, err := document.Unpack(action.RawDocument)
			if nil != err {
				return fault.ErrNotTransitionPack
			}
			if d.ID != action.DocumentID ||
				d.ContractID != action.ContractID ||
				d.Type != action.TypeName ||
				!bytes.Equal(d.OwnerID[:], t.OwnerID[:]) {
				return fault.ErrInvalidStateTransitionType
			}
			if ActionCreate == action.Action && 1 != d.Revision {
				return fault.ErrInvalidDocumentRevision
			}
			action.document = d

		default:
			return fault.ErrInvalidStateTransitionType
		}
	}
	return nil
}

// IdentityCreate - register a new identity funded by an asset lock
//
// the identity id is the hash of the funding outpoint; the signature
// and every proof of possession are made by the keys being added
type IdentityCreate struct {
	AssetLock            AssetLockProof
	Keys                 []identity.PublicKey
	ProofsOfPossession   [][]byte // one per key, same order
	SignaturePublicKeyID uint32
	Signature            []byte
}

// Kind - the transition type tag
func (t *IdentityCreate) Kind() Kind { return IdentityCreateTag }

// IdentityID - the id the new identity will have
func (t *IdentityCreate) IdentityID() identity.ID {
	return identity.ID(merkle.NewDigest(t.AssetLock.Outpoint()))
}

func (t *IdentityCreate) structural() error {
	if 0 == t.AssetLock.Value {
		return fault.ErrInvalidStateTransitionType
	}
	if 0 == len(t.Keys) || len(t.Keys) > maxTransitionKeys ||
		len(t.ProofsOfPossession) != len(t.Keys) {
		return fault.ErrInvalidStateTransitionType
	}
	record := identity.Identity{ID: t.IdentityID()}
	for i := range t.Keys {
		key := t.Keys[i]
		if 0 != key.DisabledAt {
			return fault.ErrInvalidStateTransitionType
		}
		if err := key.CheckKeyData(); nil != err {
			return err
		}
		record.Keys = append(record.Keys, key)
	}
	if _, err := record.Pack(); nil != err { // rejects duplicate key ids
		return fault.ErrIdentityPublicKeyAlreadyExists
	}
	return record.CheckMasterKey()
}

// IdentityTopUp - add asset lock credits to an existing identity
type IdentityTopUp struct {
	IdentityID           identity.ID
	AssetLock            AssetLockProof
	SignaturePublicKeyID uint32
	Signature            []byte
}

// Kind - the transition type tag
func (t *IdentityTopUp) Kind() Kind { return IdentityTopUpTag }

func (t *IdentityTopUp) structural() error {
	if 0 == t.AssetLock.Value {
		return fault.ErrInvalidStateTransitionType
	}
	return nil
}

// IdentityCreditWithdrawal - burn credits into a queued anchor chain
// withdrawal
type IdentityCreditWithdrawal struct {
	IdentityID           identity.ID
	Amount               credit.Amount
	CoreFeePerByte       uint32
	OutputScript         []byte
	SignaturePublicKeyID uint32
	Signature            []byte
}

// Kind - the transition type tag
func (t *IdentityCreditWithdrawal) Kind() Kind { return IdentityCreditWithdrawalTag }

func (t *IdentityCreditWithdrawal) structural() error {
	if 0 == t.Amount || 0 == t.CoreFeePerByte {
		return fault.ErrInvalidStateTransitionType
	}
	if 0 == len(t.OutputScript) || len(t.OutputScript) > maxOutputScriptLength {
		return fault.ErrDataTooLarge
	}
	return nil
}

// IdentityCreditTransfer - move credits between identities
type IdentityCreditTransfer struct {
	SenderID             identity.ID
	RecipientID          identity.ID
	Amount               credit.Amount
	SignaturePublicKeyID uint32
	Signature            []byte
}

// Kind - the transition type tag
func (t *IdentityCreditTransfer) Kind() Kind { return IdentityCreditTransferTag }

func (t *IdentityCreditTransfer) structural() error {
	if 0 == t.Amount {
		return fault.ErrInvalidStateTransitionType
	}
	if t.SenderID == t.RecipientID {
		return fault.ErrInvalidTransferRecipient
	}
	return nil
}

// IdentityUpdate - change the key set of an identity
type IdentityUpdate struct {
	IdentityID           identity.ID
	Revision             uint64
	AddKeys              []identity.PublicKey
	DisableKeyIDs        []uint32
	DisabledAt           uint64 // required when disabling, zero otherwise
	SignaturePublicKeyID uint32
	Signature            []byte
}

// Kind - the transition type tag
func (t *IdentityUpdate) Kind() Kind { return IdentityUpdateTag }

func (t *IdentityUpdate) structural() error {
	if 0 == len(t.AddKeys) && 0 == len(t.DisableKeyIDs) {
		return fault.ErrInvalidStateTransitionType
	}
	if len(t.AddKeys) > maxTransitionKeys || len(t.DisableKeyIDs) > maxTransitionKeys {
		return fault.ErrInvalidStateTransitionType
	}
	if (0 == len(t.DisableKeyIDs)) != (0 == t.DisabledAt) {
		return fault.ErrInvalidStateTransitionType
	}
	for i := range t.AddKeys {
		if 0 != t.AddKeys[i].DisabledAt {
			return fault.ErrInvalidStateTransitionType
		}
		if err := t.AddKeys[i].CheckKeyData(); nil != err {
			return err
		}
	}
	return nil
}
