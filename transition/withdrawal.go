// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transition

import (
	"github.com/bitmark-inc/platformd/credit"
	"github.com/bitmark-inc/platformd/drive"
	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/identity"
	"github.com/bitmark-inc/platformd/merkle"
	"github.com/bitmark-inc/platformd/util"
)

// Withdrawal - a queued credit withdrawal awaiting anchor chain payout
type Withdrawal struct {
	ID             merkle.Digest
	IdentityID     identity.ID
	Amount         credit.Amount
	CoreFeePerByte uint32
	OutputScript   []byte
	Time           uint64 // block time when queued, milliseconds
}

// WithdrawalID - derive the queue key of a withdrawal
//
// the digest of the signable bytes, so resubmitting the same signed
// transition cannot queue a second payout
func WithdrawalID(signable []byte) merkle.Digest {
	return merkle.NewDigest(signable)
}

func withdrawalsPath() drive.Path {
	return drive.NewPath([]byte{drive.RootWithdrawalTransactions})
}

func (w *Withdrawal) pack() []byte {
	buffer := make([]byte, 0, 96)
	buffer = append(buffer, w.IdentityID[:]...)
	buffer = util.AppendVarint64(buffer, uint64(w.Amount))
	buffer = util.AppendVarint64(buffer, uint64(w.CoreFeePerByte))
	buffer = util.AppendVarint64(buffer, uint64(len(w.OutputScript)))
	buffer = append(buffer, w.OutputScript...)
	return util.AppendVarint64(buffer, w.Time)
}

func unpackWithdrawal(key []byte, buffer []byte) (*Withdrawal, error) {
	if merkle.DigestLength != len(key) {
		return nil, fault.ErrCorruptedStorage
	}
	w := &Withdrawal{}
	copy(w.ID[:], key)

	r := &reader{buffer: buffer}
	idBytes := r.fixed(identity.IDLength)
	copy(w.IdentityID[:], idBytes)
	w.Amount = credit.Amount(r.varint())
	w.CoreFeePerByte = r.uint32()
	w.OutputScript = r.bytesField(maxOutputScriptLength)
	w.Time = r.varint()
	if r.failed || r.n != len(buffer) {
		return nil, fault.ErrCorruptedStorage
	}
	return w, nil
}

// add the withdrawal to the queue
func (w *Withdrawal) enqueue(tx *drive.Tx, epoch uint16) (drive.OperationCost, error) {
	present, cost := tx.Has(withdrawalsPath(), w.ID[:])
	if present {
		return cost, fault.ErrWithdrawalAlreadyQueued
	}
	flags := drive.StorageFlags{Epoch: epoch, Owner: w.IdentityID[:]}
	batch := drive.Batch{
		drive.Insert(withdrawalsPath(), w.ID[:], drive.NewItem(w.pack(), flags)),
	}
	c, err := tx.ApplyBatch(batch)
	cost.Add(c)
	return cost, err
}

// PendingWithdrawals - list queued withdrawals in key order
func PendingWithdrawals(tx *drive.Tx, limit int) ([]*Withdrawal, drive.OperationCost, error) {
	results, cost, err := tx.Execute(&drive.PathQuery{
		Path:  withdrawalsPath(),
		Limit: limit,
	})
	if nil != err {
		return nil, cost, err
	}

	withdrawals := make([]*Withdrawal, 0, len(results))
	for _, result := range results {
		w, err := unpackWithdrawal(result.Key, result.Element.Value)
		if nil != err {
			return nil, cost, err
		}
		withdrawals = append(withdrawals, w)
	}
	return withdrawals, cost, nil
}

// DequeueWithdrawal - remove a paid out withdrawal from the queue
func DequeueWithdrawal(tx *drive.Tx, id merkle.Digest) (drive.OperationCost, error) {
	present, cost := tx.Has(withdrawalsPath(), id[:])
	if !present {
		return cost, fault.ErrWithdrawalNotFound
	}
	batch := drive.Batch{
		drive.Delete(withdrawalsPath(), id[:]),
	}
	c, err := tx.ApplyBatch(batch)
	cost.Add(c)
	return cost, err
}
