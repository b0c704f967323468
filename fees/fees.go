// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package fees - credit pricing of store operations
//
// Storage bytes are prepaid at the rate of the epoch that writes
// them and refunded at that same rate when removed, so a refund
// never exceeds what was originally charged.  Processing work is
// paid at the current epoch rate and never refunded.
package fees

import (
	"sort"

	"github.com/bitmark-inc/platformd/credit"
	"github.com/bitmark-inc/platformd/drive"
	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/protocol"
)

// per epoch rate table
//
// all epochs share one table at version 1; a future fee version adds
// entries here without disturbing refunds from earlier epochs
type rateTable struct {
	storageCreditPerByte    credit.Amount
	processingCreditPerByte credit.Amount
	loadCreditPerByte       credit.Amount
	seekCost                credit.Amount
	hashNodeCost            credit.Amount
}

var rateVersion0 = rateTable{
	storageCreditPerByte:    27000,
	processingCreditPerByte: 400,
	loadCreditPerByte:       30,
	seekCost:                4000,
	hashNodeCost:            1600,
}

// rates - the table in force for one epoch
func rates(version *protocol.Version, epoch uint16) (*rateTable, error) {
	switch version.Fee.CalculateOperationFee {
	case 0:
		return &rateVersion0, nil
	default:
		return nil, protocol.CheckMethod("fees.Calculate", []uint16{0}, version.Fee.CalculateOperationFee)
	}
}

// Result - the priced outcome of one transition
type Result struct {
	StorageFee    credit.Amount
	ProcessingFee credit.Amount

	// refunds credited back to the owners of removed bytes, keyed by
	// owner id then by the epoch that originally paid
	Refunds map[string]map[uint16]credit.Amount

	// removed bytes per paying epoch, for pool bookkeeping
	RemovedBytes map[uint16]uint64
}

// NewResult - an empty result
func NewResult() *Result {
	return &Result{
		Refunds:      make(map[string]map[uint16]credit.Amount),
		RemovedBytes: make(map[uint16]uint64),
	}
}

// Total - credits the payer must hold
func (r *Result) Total() (credit.Amount, error) {
	return r.StorageFee.Add(r.ProcessingFee)
}

// TotalRefund - credits flowing back to one owner
func (r *Result) TotalRefund(owner []byte) credit.Amount {
	total := credit.Amount(0)
	for _, amount := range r.Refunds[string(owner)] {
		total += amount
	}
	return total
}

// Add - merge another result
func (r *Result) Add(other *Result) error {
	storage, err := r.StorageFee.Add(other.StorageFee)
	if nil != err {
		return err
	}
	processing, err := r.ProcessingFee.Add(other.ProcessingFee)
	if nil != err {
		return err
	}
	r.StorageFee = storage
	r.ProcessingFee = processing

	for owner, epochs := range other.Refunds {
		if nil == r.Refunds[owner] {
			r.Refunds[owner] = make(map[uint16]credit.Amount)
		}
		for epoch, amount := range epochs {
			r.Refunds[owner][epoch] += amount
		}
	}
	for epoch, bytes := range other.RemovedBytes {
		r.RemovedBytes[epoch] += bytes
	}
	return nil
}

// Calculate - price an operation cost at the current epoch
//
// removals carry the epoch that paid for the bytes so refunds use
// the storing epoch's rate, not the current one
func Calculate(version *protocol.Version, epoch uint16, cost drive.OperationCost, removals []drive.Removal) (*Result, error) {
	current, err := rates(version, epoch)
	if nil != err {
		return nil, err
	}

	result := NewResult()

	result.StorageFee = credit.Amount(cost.StorageBytesWritten) * current.storageCreditPerByte

	processing := credit.Amount(cost.ProcessingBytesWritten) * current.processingCreditPerByte
	processing += credit.Amount(cost.BytesLoaded) * current.loadCreditPerByte
	processing += credit.Amount(cost.Seeks) * current.seekCost
	processing += credit.Amount(cost.HashNodes) * current.hashNodeCost
	result.ProcessingFee = processing

	for _, removal := range removals {
		result.RemovedBytes[removal.Epoch] += removal.Bytes
		if nil == removal.Owner {
			continue // unowned bytes refund to nobody
		}
		storing, err := rates(version, removal.Epoch)
		if nil != err {
			return nil, err
		}
		owner := string(removal.Owner)
		if nil == result.Refunds[owner] {
			result.Refunds[owner] = make(map[uint16]credit.Amount)
		}
		result.Refunds[owner][removal.Epoch] += credit.Amount(removal.Bytes) * storing.storageCreditPerByte
	}
	return result, nil
}

// Owners - refund recipients in deterministic order
func (r *Result) Owners() [][]byte {
	owners := make([]string, 0, len(r.Refunds))
	for owner := range r.Refunds {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	results := make([][]byte, len(owners))
	for i, owner := range owners {
		results[i] = []byte(owner)
	}
	return results
}

// Distribution - proposer payout shares of one epoch pool
//
// shares are proportional to proposed block counts; the integer
// division residue rolls forward to the next epoch
func Distribution(pool credit.Amount, blockCounts map[string]uint64) (map[string]credit.Amount, credit.Amount, error) {
	total := uint64(0)
	for _, count := range blockCounts {
		total += count
	}
	if 0 == total {
		return nil, pool, nil
	}

	proposers := make([]string, 0, len(blockCounts))
	for proposer := range blockCounts {
		proposers = append(proposers, proposer)
	}
	sort.Strings(proposers)

	shares := make(map[string]credit.Amount, len(proposers))
	distributed := credit.Amount(0)
	for _, proposer := range proposers {
		share := pool * credit.Amount(blockCounts[proposer]) / credit.Amount(total)
		shares[proposer] = share
		var err error
		distributed, err = distributed.Add(share)
		if nil != err {
			return nil, 0, fault.ErrCorruptedStorage
		}
	}
	residue, err := pool.Sub(distributed)
	if nil != err {
		return nil, 0, fault.ErrCorruptedStorage
	}
	return shares, residue, nil
}
