// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transition

import (
	"github.com/bitmark-inc/platformd/contract"
	"github.com/bitmark-inc/platformd/credit"
	"github.com/bitmark-inc/platformd/document"
	"github.com/bitmark-inc/platformd/drive"
	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/fees"
	"github.com/bitmark-inc/platformd/identity"
	"github.com/bitmark-inc/platformd/protocol"
)

// Execute - decode and run one wire form transition
func Execute(tx *drive.Tx, env *Env, packed Packed) (*Outcome, error) {
	t, err := packed.Unpack()
	if nil != err {
		return nil, err
	}
	return Apply(tx, env, t)
}

// Check - decode and structurally validate without touching state
//
// used by proposal building to filter obviously invalid wire data
// before any state dependent stage runs
func Check(packed Packed) (Transition, error) {
	t, err := packed.Unpack()
	if nil != err {
		return nil, err
	}
	if err := t.structural(); nil != err {
		return nil, err
	}
	return t, nil
}

// Apply - run the four stage pipeline for one transition
//
// the first three stages never write; the apply stage runs inside a
// drive stage so any failure, including fee settlement, rolls the
// whole transition back
func Apply(tx *drive.Tx, env *Env, t Transition) (*Outcome, error) {
	err := protocol.CheckMethod("transition.Apply", []uint16{0}, env.Version.Transition.Apply)
	if nil != err {
		return nil, err
	}

	if err := t.structural(); nil != err {
		return nil, err
	}
	if err := t.verifySignatures(tx, env); nil != err {
		return nil, err
	}
	if err := t.checkState(tx, env); nil != err {
		return nil, err
	}

	tx.StageBegin()
	payer, cost, err := t.apply(tx, env)
	if nil != err {
		tx.StageAbort()
		return nil, err
	}

	result, err := fees.Calculate(env.Version, env.Epoch, cost, tx.StageRemovals())
	if nil != err {
		tx.StageAbort()
		return nil, err
	}
	if err := settle(tx, env, payer, result); nil != err {
		tx.StageAbort()
		return nil, err
	}

	tx.StageCommit()
	return &Outcome{Payer: payer, Cost: cost, Fees: result}, nil
}

// settle - debit the payer, fill the epoch pool, pay refunds
//
// the payer's whole fee enters the current pool; refunds come out of
// the pools of the epochs that originally collected the storage fee,
// so total supply is conserved exactly
func settle(tx *drive.Tx, env *Env, payer identity.ID, result *fees.Result) error {
	total, err := result.Total()
	if nil != err {
		return err
	}
	if _, err = identity.RemoveFromBalance(tx, payer, total); nil != err {
		return err
	}
	if _, err = fees.CreditPool(tx, env.Epoch, total); nil != err {
		return err
	}

	for _, owner := range result.Owners() {
		id, err := identity.IDFromBytes(owner)
		if nil != err {
			return fault.ErrCorruptedStorage
		}
		refund := result.TotalRefund(owner)
		if 0 == refund {
			continue
		}
		for epoch, amount := range result.Refunds[string(owner)] {
			if _, err = fees.DebitPool(tx, epoch, amount); nil != err {
				return err
			}
		}
		if _, err = identity.AddToBalance(tx, id, refund); nil != err {
			return err
		}
	}
	return nil
}

// which key purpose authenticates a transition kind
//
// credit movement out of an identity needs a withdraw key, everything
// else an authentication key
func expectedPurpose(kind Kind) identity.Purpose {
	switch kind {
	case IdentityCreditWithdrawalTag, IdentityCreditTransferTag:
		return identity.Withdraw
	default:
		return identity.Authentication
	}
}

// check one key against the policy and the signature
func verifyWithKey(t Transition, key *identity.PublicKey, signature []byte) error {
	if nil == key {
		return fault.ErrMissingPublicKey
	}
	if expectedPurpose(t.Kind()) != key.Purpose {
		return fault.ErrInvalidSignaturePublicKeyPurpose
	}
	if key.SecurityLevel > maximumSecurityLevel(t.Kind()) {
		return fault.ErrInvalidSignaturePublicKeySecurityLevel
	}
	return key.VerifySignature(t.SignableBytes(), signature)
}

// resolve a stored identity and verify against one of its keys
func verifyStoredSignature(tx *drive.Tx, t Transition, signer identity.ID, keyID uint32, signature []byte) error {
	record, _, err := identity.Fetch(tx, signer)
	if nil != err {
		return err
	}
	return verifyWithKey(t, record.Key(keyID), signature)
}

// DataContractCreate

func (t *DataContractCreate) verifySignatures(tx *drive.Tx, env *Env) error {
	return verifyStoredSignature(tx, t, identity.ID(t.contract.OwnerID), t.SignaturePublicKeyID, t.Signature)
}

func (t *DataContractCreate) checkState(tx *drive.Tx, env *Env) error {
	_, _, err := contract.Fetch(tx, t.contract.ID)
	if nil == err {
		return fault.ErrContractAlreadyExists
	}
	if fault.ErrContractNotFound != err {
		return err
	}
	return nil
}

func (t *DataContractCreate) apply(tx *drive.Tx, env *Env) (identity.ID, drive.OperationCost, error) {
	payer := identity.ID(t.contract.OwnerID)
	cost, err := contract.Register(tx, t.contract, env.Epoch)
	return payer, cost, err
}

// DataContractUpdate

func (t *DataContractUpdate) verifySignatures(tx *drive.Tx, env *Env) error {
	return verifyStoredSignature(tx, t, identity.ID(t.contract.OwnerID), t.SignaturePublicKeyID, t.Signature)
}

func (t *DataContractUpdate) checkState(tx *drive.Tx, env *Env) error {
	current, _, err := contract.Fetch(tx, t.contract.ID)
	if nil != err {
		return err
	}
	if t.contract.Revision != current.Revision+1 {
		return fault.ErrInvalidContractRevision
	}
	return nil
}

func (t *DataContractUpdate) apply(tx *drive.Tx, env *Env) (identity.ID, drive.OperationCost, error) {
	payer := identity.ID(t.contract.OwnerID)
	cost, err := contract.Update(tx, t.contract, env.Epoch)
	return payer, cost, err
}

// DocumentsBatch

func (t *DocumentsBatch) verifySignatures(tx *drive.Tx, env *Env) error {
	return verifyStoredSignature(tx, t, t.OwnerID, t.SignaturePublicKeyID, t.Signature)
}

func (t *DocumentsBatch) checkState(tx *drive.Tx, env *Env) error {
	for i := range t.Actions {
		action := &t.Actions[i]
		if _, _, err := contract.Fetch(tx, action.ContractID); nil != err {
			return err
		}
		d := action.document
		if nil == d {
			continue // delete carries no document
		}
		if 0 != d.CreatedAt && !withinTimeWindow(d.CreatedAt, env) {
			return fault.ErrTimestampWindowViolation
		}
		if 0 != d.UpdatedAt && !withinTimeWindow(d.UpdatedAt, env) {
			return fault.ErrTimestampWindowViolation
		}
	}
	return nil
}

func (t *DocumentsBatch) apply(tx *drive.Tx, env *Env) (identity.ID, drive.OperationCost, error) {
	cost := drive.OperationCost{}
	for i := range t.Actions {
		action := &t.Actions[i]
		c, fetchCost, err := contract.Fetch(tx, action.ContractID)
		cost.Add(fetchCost)
		if nil != err {
			return t.OwnerID, cost, err
		}

		var opCost drive.OperationCost
		switch action.Action {
		case ActionCreate:
			opCost, err = document.Create(tx, c, action.document, env.Epoch)
		case ActionReplace:
			opCost, err = document.Replace(tx, c, action.document, env.Epoch)
		case ActionDelete:
			opCost, err = document.Delete(tx, c, action.TypeName, action.DocumentID, [32]byte(t.OwnerID))
		}
		cost.Add(opCost)
		if nil != err {
			return t.OwnerID, cost, err
		}
	}
	return t.OwnerID, cost, nil
}

// IdentityCreate

func (t *IdentityCreate) verifySignatures(tx *drive.Tx, env *Env) error {
	var signing *identity.PublicKey
	for i := range t.Keys {
		if t.SignaturePublicKeyID == t.Keys[i].ID {
			signing = &t.Keys[i]
			break
		}
	}
	if err := verifyWithKey(t, signing, t.Signature); nil != err {
		return err
	}

	// every added key proves possession of its private half
	signable := t.SignableBytes()
	for i := range t.Keys {
		key := &t.Keys[i]
		var err error
		if identity.BLS12381 == key.KeyType {
			if nil == env.BLS {
				return fault.ErrSignatureProofOfPossession
			}
			err = env.BLS.Verify(key.Data, signable, t.ProofsOfPossession[i])
		} else {
			err = key.VerifySignature(signable, t.ProofsOfPossession[i])
		}
		if nil != err {
			return fault.ErrSignatureProofOfPossession
		}
	}
	return nil
}

func (t *IdentityCreate) checkState(tx *drive.Tx, env *Env) error {
	if _, _, err := identity.Fetch(tx, t.IdentityID()); nil == err {
		return fault.ErrIdentityAlreadyExists
	} else if fault.ErrIdentityNotFound != err {
		return err
	}
	_, err := t.AssetLock.checkUnspent(tx, env)
	return err
}

func (t *IdentityCreate) apply(tx *drive.Tx, env *Env) (identity.ID, drive.OperationCost, error) {
	id := t.IdentityID()
	cost, err := t.AssetLock.markSpent(tx, env.Epoch)
	if nil != err {
		return id, cost, err
	}

	record := &identity.Identity{ID: id, Keys: t.Keys}
	c, err := identity.AddNewIdentity(tx, record, credit.FromSatoshi(t.AssetLock.Value), env.Epoch)
	cost.Add(c)
	return id, cost, err
}

// IdentityTopUp

func (t *IdentityTopUp) verifySignatures(tx *drive.Tx, env *Env) error {
	return verifyStoredSignature(tx, t, t.IdentityID, t.SignaturePublicKeyID, t.Signature)
}

func (t *IdentityTopUp) checkState(tx *drive.Tx, env *Env) error {
	_, err := t.AssetLock.checkUnspent(tx, env)
	return err
}

func (t *IdentityTopUp) apply(tx *drive.Tx, env *Env) (identity.ID, drive.OperationCost, error) {
	cost, err := t.AssetLock.markSpent(tx, env.Epoch)
	if nil != err {
		return t.IdentityID, cost, err
	}
	c, err := identity.AddToBalance(tx, t.IdentityID, credit.FromSatoshi(t.AssetLock.Value))
	cost.Add(c)
	return t.IdentityID, cost, err
}

// IdentityCreditWithdrawal

func (t *IdentityCreditWithdrawal) verifySignatures(tx *drive.Tx, env *Env) error {
	return verifyStoredSignature(tx, t, t.IdentityID, t.SignaturePublicKeyID, t.Signature)
}

func (t *IdentityCreditWithdrawal) checkState(tx *drive.Tx, env *Env) error {
	balance, _, err := identity.Balance(tx, t.IdentityID)
	if nil != err {
		return err
	}
	if balance < t.Amount {
		return fault.ErrBalanceInsufficient
	}
	return nil
}

func (t *IdentityCreditWithdrawal) apply(tx *drive.Tx, env *Env) (identity.ID, drive.OperationCost, error) {
	cost, err := identity.RemoveFromBalance(tx, t.IdentityID, t.Amount)
	if nil != err {
		return t.IdentityID, cost, err
	}

	withdrawal := &Withdrawal{
		ID:             WithdrawalID(t.SignableBytes()),
		IdentityID:     t.IdentityID,
		Amount:         t.Amount,
		CoreFeePerByte: t.CoreFeePerByte,
		OutputScript:   t.OutputScript,
		Time:           env.LastBlockTime,
	}
	c, err := withdrawal.enqueue(tx, env.Epoch)
	cost.Add(c)
	return t.IdentityID, cost, err
}

// IdentityCreditTransfer

func (t *IdentityCreditTransfer) verifySignatures(tx *drive.Tx, env *Env) error {
	return verifyStoredSignature(tx, t, t.SenderID, t.SignaturePublicKeyID, t.Signature)
}

func (t *IdentityCreditTransfer) checkState(tx *drive.Tx, env *Env) error {
	if _, _, err := identity.Fetch(tx, t.RecipientID); nil != err {
		return err
	}
	balance, _, err := identity.Balance(tx, t.SenderID)
	if nil != err {
		return err
	}
	if balance < t.Amount {
		return fault.ErrBalanceInsufficient
	}
	return nil
}

func (t *IdentityCreditTransfer) apply(tx *drive.Tx, env *Env) (identity.ID, drive.OperationCost, error) {
	cost, err := identity.RemoveFromBalance(tx, t.SenderID, t.Amount)
	if nil != err {
		return t.SenderID, cost, err
	}
	c, err := identity.AddToBalance(tx, t.RecipientID, t.Amount)
	cost.Add(c)
	return t.SenderID, cost, err
}

// IdentityUpdate

func (t *IdentityUpdate) verifySignatures(tx *drive.Tx, env *Env) error {
	return verifyStoredSignature(tx, t, t.IdentityID, t.SignaturePublicKeyID, t.Signature)
}

func (t *IdentityUpdate) checkState(tx *drive.Tx, env *Env) error {
	record, _, err := identity.Fetch(tx, t.IdentityID)
	if nil != err {
		return err
	}
	if t.Revision != record.Revision+1 {
		return fault.ErrInvalidIdentityRevision
	}

	for _, keyID := range t.DisableKeyIDs {
		key := record.Key(keyID)
		if nil == key {
			return fault.ErrMissingPublicKey
		}
		if key.ReadOnly {
			return fault.ErrIdentityPublicKeyIsReadOnly
		}
		if !key.Enabled() {
			return fault.ErrPublicKeyIsDisabled
		}
	}
	if 0 != t.DisabledAt && !withinTimeWindow(t.DisabledAt, env) {
		return fault.ErrIdentityPublicKeyDisabledAtWindowViolation
	}
	return nil
}

func (t *IdentityUpdate) apply(tx *drive.Tx, env *Env) (identity.ID, drive.OperationCost, error) {
	cost, err := identity.UpdateIdentityKeys(tx, t.IdentityID, &identity.KeyUpdate{
		Add:        t.AddKeys,
		DisableIDs: t.DisableKeyIDs,
		DisabledAt: t.DisabledAt,
		Revision:   t.Revision,
		Epoch:      env.Epoch,
	})
	return t.IdentityID, cost, err
}
