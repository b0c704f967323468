// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package transition - state transitions and their pipeline
//
// A state transition is the only way platform state changes.  Every
// transition passes four stages: structural validation, identity and
// signature validation, side effect free state validation, and the
// atomic apply that derives store writes, prices them and settles the
// fee.  Failure at any stage aborts the transition with a typed
// consensus error and leaves state untouched; per transition
// atomicity rides on the drive staging layer, per block atomicity on
// the outer drive transaction.
package transition

import (
	"github.com/bitmark-inc/platformd/drive"
	"github.com/bitmark-inc/platformd/fees"
	"github.com/bitmark-inc/platformd/identity"
	"github.com/bitmark-inc/platformd/protocol"
	"github.com/bitmark-inc/platformd/validator"
)

// Kind - transition type tag, first field after the version tag
type Kind uint64

// all transition kinds
const (
	DataContractCreateTag Kind = iota + 1
	DataContractUpdateTag
	DocumentsBatchTag
	IdentityCreateTag
	IdentityTopUpTag
	IdentityCreditWithdrawalTag
	IdentityCreditTransferTag
	IdentityUpdateTag
)

// wire format version tag
const transitionVersion = 1

// wire limits
const (
	maxPackedContractLength = 65536
	maxPackedDocumentLength = 16384
	maxDocumentActions      = 10
	maxTransitionKeys       = 32
	maxSignatureLength      = 96
	maxOutputScriptLength   = 256
)

// Packed - a transition in wire form
type Packed []byte

// Env - the block context a transition executes in
type Env struct {
	Version               *protocol.Version
	Epoch                 uint16
	LastBlockTime         uint64 // milliseconds, zero before the first block
	BlockTimeWindow       uint64 // symmetric window in milliseconds
	CoreChainLockedHeight uint32
	BLS                   validator.BLSVerifier // proof of possession for BLS keys
}

// Transition - one state transition
//
// the stage methods mirror the pipeline; they are driven by Apply
// and never called out of order
type Transition interface {
	Kind() Kind
	Pack() Packed
	SignableBytes() []byte

	structural() error
	verifySignatures(tx *drive.Tx, env *Env) error
	checkState(tx *drive.Tx, env *Env) error
	apply(tx *drive.Tx, env *Env) (identity.ID, drive.OperationCost, error)
}

// Outcome - the result of one successful transition
type Outcome struct {
	Payer identity.ID
	Cost  drive.OperationCost
	Fees  *fees.Result
}

// transitions must be signed by an authentication key of at most
// this security level
func maximumSecurityLevel(kind Kind) identity.SecurityLevel {
	switch kind {
	case IdentityCreateTag, IdentityUpdateTag:
		return identity.Master
	case DocumentsBatchTag:
		return identity.High
	default:
		return identity.Critical
	}
}

// a timestamp must lie within the symmetric window around the last
// committed block time; before the first block there is no anchor
func withinTimeWindow(timestamp uint64, env *Env) bool {
	if 0 == env.LastBlockTime {
		return true
	}
	low := timestamp
	high := env.LastBlockTime
	if low > high {
		low, high = high, low
	}
	return high-low <= env.BlockTimeWindow
}
