// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package credit - the platform credit unit
//
// Credits are unsigned 64 bit; anchor chain satoshis convert with a
// fixed multiplier so the conversion is exact and reversible
package credit

import (
	"github.com/bitmark-inc/platformd/fault"
)

// Amount - a quantity of platform credits
type Amount uint64

// CreditsPerSatoshi - fixed conversion multiplier
const CreditsPerSatoshi = 1000

// FromSatoshi - convert an anchor chain satoshi value to credits
func FromSatoshi(satoshi uint64) Amount {
	return Amount(satoshi * CreditsPerSatoshi)
}

// Add - checked addition
//
// overflow is storage corruption: total issued credits fit well
// inside 64 bits
func (a Amount) Add(other Amount) (Amount, error) {
	sum := a + other
	if sum < a {
		return 0, fault.ErrCorruptedStorage
	}
	return sum, nil
}

// Sub - checked subtraction
func (a Amount) Sub(other Amount) (Amount, error) {
	if other > a {
		return 0, fault.ErrBalanceInsufficient
	}
	return a - other, nil
}
