// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mode

import (
	"sync"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/platformd/chain"
	"github.com/bitmark-inc/platformd/fault"
)

// Mode - type to hold the block lifecycle state
type Mode int

// per block state machine
//
// Idle → Preparing → Delivering → Ending → Committed → Idle
// any failure in Preparing/Delivering/Ending moves to Aborted and
// the outer store transaction is rolled back before returning to Idle
const (
	Idle Mode = iota
	Preparing
	Delivering
	Ending
	Committed
	Aborted
	maximum
)

var globalData struct {
	sync.RWMutex
	log     *logger.L
	mode    Mode
	testing bool
	chain   string

	// set once during initialise
	initialised bool
}

// Initialise - set up the mode system
func Initialise(chainName string) error {
	globalData.Lock()
	defer globalData.Unlock()

	// no need to start if already started
	if globalData.initialised {
		return fault.ErrAlreadyInitialised
	}

	globalData.log = logger.New("mode")
	globalData.log.Info("starting…")

	globalData.chain = chainName
	globalData.testing = false
	globalData.mode = Idle

	switch chainName {
	case chain.Platform:
		// no change
	case chain.Testing, chain.Local:
		globalData.testing = true
	default:
		globalData.log.Criticalf("mode cannot handle chain: '%s'", chainName)
		return fault.ErrInvalidChain
	}

	globalData.initialised = true

	return nil
}

// Finalise - shutdown mode handling
func Finalise() error {

	if !globalData.initialised {
		return fault.ErrNotInitialised
	}

	globalData.log.Info("shutting down…")
	globalData.log.Flush()

	Set(Idle)

	globalData.Lock()
	globalData.initialised = false
	globalData.Unlock()

	return nil
}

// allowed lifecycle advances
var allowed = map[Mode][]Mode{
	Idle:       {Preparing},
	Preparing:  {Delivering, Aborted},
	Delivering: {Delivering, Ending, Aborted},
	Ending:     {Committed, Aborted},
	Committed:  {Idle},
	Aborted:    {Idle},
}

// Advance - move to the next lifecycle state
//
// out of place calls from the consensus engine are rejected, the
// current state is left unchanged
func Advance(next Mode) error {
	globalData.Lock()
	defer globalData.Unlock()

	for _, m := range allowed[globalData.mode] {
		if m == next {
			globalData.log.Debugf("advance: %s → %s", globalData.mode, next)
			globalData.mode = next
			return nil
		}
	}
	globalData.log.Errorf("refused advance: %s → %s", globalData.mode, next)
	return fault.ErrOutOfPlaceBlockLifecycle
}

// Set - change mode unconditionally
func Set(mode Mode) {

	if mode >= Idle && mode < maximum {
		globalData.Lock()
		globalData.mode = mode
		globalData.Unlock()

		globalData.log.Infof("set: %s", mode)
	} else {
		globalData.log.Errorf("ignore invalid set: %d", mode)
	}
}

// Is - detect mode
func Is(mode Mode) bool {
	globalData.RLock()
	defer globalData.RUnlock()
	return mode == globalData.mode
}

// IsNot - detect mode
func IsNot(mode Mode) bool {
	globalData.RLock()
	defer globalData.RUnlock()
	return mode != globalData.mode
}

// IsTesting - special for testing
func IsTesting() bool {
	globalData.RLock()
	defer globalData.RUnlock()
	return globalData.testing
}

// ChainName - name of the current chain
func ChainName() string {
	globalData.RLock()
	defer globalData.RUnlock()
	return globalData.chain
}

// String - current mode represented as a string
func String() string {
	globalData.RLock()
	defer globalData.RUnlock()
	return globalData.mode.String()
}

// String - mode represented as a string
func (m Mode) String() string {
	switch m {
	case Idle:
		return "Idle"
	case Preparing:
		return "Preparing"
	case Delivering:
		return "Delivering"
	case Ending:
		return "Ending"
	case Committed:
		return "Committed"
	case Aborted:
		return "Aborted"
	default:
		return "*Unknown*"
	}
}
