// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package identity

import (
	"github.com/bitmark-inc/platformd/credit"
	"github.com/bitmark-inc/platformd/drive"
	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/merkle"
)

// store paths
func identitiesPath() drive.Path {
	return drive.NewPath([]byte{drive.RootIdentities})
}
func balancesPath() drive.Path {
	return drive.NewPath([]byte{drive.RootBalances})
}
func uniqueHashesPath() drive.Path {
	return drive.NewPath([]byte{drive.RootUniquePublicKeyHashesToIdentities})
}
func nonUniqueHashesRoot() drive.Path {
	return drive.NewPath([]byte{drive.RootNonUniquePublicKeyHashesToIdentities})
}

// AddNewIdentity - create an identity with its initial balance
//
// inserts the identity record, the balance sum item and one index
// entry per key hash; all inside the caller's staged transition
func AddNewIdentity(tx *drive.Tx, identity *Identity, deposit credit.Amount, epoch uint16) (drive.OperationCost, error) {
	cost := drive.OperationCost{}

	if err := identity.normalise(); nil != err {
		return cost, err
	}
	if err := identity.CheckMasterKey(); nil != err {
		return cost, err
	}
	for i := range identity.Keys {
		if err := identity.Keys[i].CheckKeyData(); nil != err {
			return cost, err
		}
	}

	exists, c := tx.Has(identitiesPath(), identity.ID[:])
	cost.Add(c)
	if exists {
		return cost, fault.ErrIdentityAlreadyExists
	}

	flags := drive.StorageFlags{Epoch: epoch, Owner: identity.ID[:]}
	packed, err := identity.Pack()
	if nil != err {
		return cost, err
	}

	batch := drive.Batch{
		drive.Insert(identitiesPath(), identity.ID[:], drive.NewItem(packed, flags)),
		drive.Insert(balancesPath(), identity.ID[:], drive.NewSumItem(int64(deposit), drive.StorageFlags{Epoch: epoch})),
	}

	for i := range identity.Keys {
		key := &identity.Keys[i]
		hash := key.Hash()

		if key.Unique() {
			existing, hc := tx.Has(uniqueHashesPath(), hash[:])
			cost.Add(hc)
			if existing {
				return cost, fault.ErrIdentityPublicKeyAlreadyExists
			}
			batch = append(batch,
				drive.Insert(uniqueHashesPath(), hash[:], drive.NewItem(identity.ID[:], flags)),
			)
		} else {
			batch = append(batch,
				drive.InsertEmptyTree(nonUniqueHashesRoot(), hash[:]),
				drive.Insert(nonUniqueHashesRoot().Child(hash[:]), identity.ID[:], drive.NewItem(nil, flags)),
			)
		}
	}

	c, err = tx.ApplyBatch(batch)
	cost.Add(c)
	return cost, err
}

// Fetch - read an identity record
func Fetch(tx *drive.Tx, id ID) (*Identity, drive.OperationCost, error) {
	element, cost, err := tx.Get(identitiesPath(), id[:])
	if fault.ErrKeyNotFound == err {
		return nil, cost, fault.ErrIdentityNotFound
	}
	if nil != err {
		return nil, cost, err
	}
	identity, err := Unpack(element.Value)
	if nil != err {
		return nil, cost, err
	}
	return identity, cost, nil
}

// FetchByUniqueKeyHash - find the identity owning a unique key hash
func FetchByUniqueKeyHash(tx *drive.Tx, hash merkle.Digest) (ID, drive.OperationCost, error) {
	element, cost, err := tx.Get(uniqueHashesPath(), hash[:])
	if fault.ErrKeyNotFound == err {
		return ID{}, cost, fault.ErrIdentityNotFound
	}
	if nil != err {
		return ID{}, cost, err
	}
	id, err := IDFromBytes(element.Value)
	return id, cost, err
}

// Balance - current credit balance of an identity
func Balance(tx *drive.Tx, id ID) (credit.Amount, drive.OperationCost, error) {
	element, cost, err := tx.Get(balancesPath(), id[:])
	if fault.ErrKeyNotFound == err {
		return 0, cost, fault.ErrIdentityNotFound
	}
	if nil != err {
		return 0, cost, err
	}
	if drive.KindSumItem != element.Kind || element.Sum < 0 {
		return 0, cost, fault.ErrCorruptedStorage
	}
	return credit.Amount(element.Sum), cost, nil
}

// AddToBalance - credit an identity
func AddToBalance(tx *drive.Tx, id ID, amount credit.Amount) (drive.OperationCost, error) {
	balance, cost, err := Balance(tx, id)
	if nil != err {
		return cost, err
	}
	balance, err = balance.Add(amount)
	if nil != err {
		return cost, err
	}
	c, err := tx.ApplyBatch(drive.Batch{
		drive.Insert(balancesPath(), id[:], drive.NewSumItem(int64(balance), drive.StorageFlags{})),
	})
	cost.Add(c)
	return cost, err
}

// RemoveFromBalance - debit an identity
//
// an insufficient balance is a fee class failure so the caller can
// surface it as such to the submitter
func RemoveFromBalance(tx *drive.Tx, id ID, amount credit.Amount) (drive.OperationCost, error) {
	balance, cost, err := Balance(tx, id)
	if nil != err {
		return cost, err
	}
	balance, err = balance.Sub(amount)
	if nil != err {
		return cost, err
	}
	c, err := tx.ApplyBatch(drive.Batch{
		drive.Insert(balancesPath(), id[:], drive.NewSumItem(int64(balance), drive.StorageFlags{})),
	})
	cost.Add(c)
	return cost, err
}

// KeyUpdate - one identity keys change
type KeyUpdate struct {
	Add        []PublicKey
	DisableIDs []uint32
	DisabledAt uint64 // applied to every disabled key
	Revision   uint64 // must be exactly current revision + 1
	Epoch      uint16 // storage epoch for new index entries
}

// UpdateIdentityKeys - atomically change the key set of an identity
//
// disabled keys stay in the record carrying their disabling time and
// keep their index entries so old signatures remain attributable
func UpdateIdentityKeys(tx *drive.Tx, id ID, update *KeyUpdate) (drive.OperationCost, error) {
	identity, cost, err := Fetch(tx, id)
	if nil != err {
		return cost, err
	}

	if update.Revision != identity.Revision+1 {
		return cost, fault.ErrInvalidIdentityRevision
	}

	for _, keyID := range update.DisableIDs {
		key := identity.Key(keyID)
		if nil == key {
			return cost, fault.ErrMissingPublicKey
		}
		if key.ReadOnly {
			return cost, fault.ErrIdentityPublicKeyIsReadOnly
		}
		if !key.Enabled() {
			return cost, fault.ErrPublicKeyIsDisabled
		}
		key.DisabledAt = update.DisabledAt
	}

	flags := drive.StorageFlags{Epoch: update.Epoch, Owner: id[:]}
	batch := drive.Batch{}
	for i := range update.Add {
		key := update.Add[i]
		if err := key.CheckKeyData(); nil != err {
			return cost, err
		}
		identity.Keys = append(identity.Keys, key)

		hash := key.Hash()
		if key.Unique() {
			existing, hc := tx.Has(uniqueHashesPath(), hash[:])
			cost.Add(hc)
			if existing {
				return cost, fault.ErrIdentityPublicKeyAlreadyExists
			}
			batch = append(batch,
				drive.Insert(uniqueHashesPath(), hash[:], drive.NewItem(id[:], flags)),
			)
		} else {
			batch = append(batch,
				drive.InsertEmptyTree(nonUniqueHashesRoot(), hash[:]),
				drive.Insert(nonUniqueHashesRoot().Child(hash[:]), id[:], drive.NewItem(nil, flags)),
			)
		}
	}

	if err := identity.normalise(); nil != err {
		return cost, err
	}
	if err := identity.CheckMasterKey(); nil != err {
		return cost, err
	}

	identity.Revision = update.Revision
	packed, err := identity.Pack()
	if nil != err {
		return cost, err
	}
	batch = append(batch,
		drive.Insert(identitiesPath(), id[:], drive.NewItem(packed, flags)),
	)

	c, err := tx.ApplyBatch(batch)
	cost.Add(c)
	return cost, err
}

// DisableAllKeys - disable every enabled key of an identity
//
// a system action for identities whose backing masternode left the
// anchor chain; it bypasses the master key and read only rules that
// bind client driven updates, so the identity can no longer sign
// anything until the masternode returns
func DisableAllKeys(tx *drive.Tx, id ID, disabledAt uint64, epoch uint16) (drive.OperationCost, error) {
	identity, cost, err := Fetch(tx, id)
	if nil != err {
		return cost, err
	}

	changed := false
	for i := range identity.Keys {
		if identity.Keys[i].Enabled() {
			identity.Keys[i].DisabledAt = disabledAt
			changed = true
		}
	}
	if !changed {
		return cost, nil
	}

	identity.Revision += 1
	packed, err := identity.Pack()
	if nil != err {
		return cost, err
	}
	c, err := tx.ApplyBatch(drive.Batch{
		drive.Insert(identitiesPath(), id[:], drive.NewItem(packed, drive.StorageFlags{Epoch: epoch, Owner: id[:]})),
	})
	cost.Add(c)
	return cost, err
}
