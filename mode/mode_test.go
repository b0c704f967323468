// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mode_test

import (
	"os"
	"testing"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/platformd/chain"
	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/mode"
)

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

	// os.Exit skips any deferred teardown so run it directly
	result := m.Run()
	logger.Finalise()
	os.RemoveAll(testDir)
	os.Exit(result)
}

func TestLifecycle(t *testing.T) {

	err := mode.Initialise(chain.Testing)
	if nil != err {
		t.Fatalf("initialise error: %v", err)
	}
	defer mode.Finalise()

	if !mode.Is(mode.Idle) {
		t.Fatalf("initial mode: %s  expected: Idle", mode.String())
	}
	if !mode.IsTesting() {
		t.Fatal("testing chain not flagged as testing")
	}

	steps := []mode.Mode{
		mode.Preparing,
		mode.Delivering,
		mode.Delivering, // deliver-tx loop stays put
		mode.Ending,
		mode.Committed,
		mode.Idle,
	}
	for i, next := range steps {
		if err := mode.Advance(next); nil != err {
			t.Fatalf("step: %d  advance to %s error: %v", i, next, err)
		}
	}

	// cannot commit from idle
	if err := mode.Advance(mode.Committed); fault.ErrOutOfPlaceBlockLifecycle != err {
		t.Fatalf("advance error: %v  expected: %v", err, fault.ErrOutOfPlaceBlockLifecycle)
	}
	if !mode.Is(mode.Idle) {
		t.Fatalf("mode after refused advance: %s  expected: Idle", mode.String())
	}

	// a failed block aborts then returns to idle
	_ = mode.Advance(mode.Preparing)
	_ = mode.Advance(mode.Delivering)
	if err := mode.Advance(mode.Aborted); nil != err {
		t.Fatalf("abort error: %v", err)
	}
	if err := mode.Advance(mode.Idle); nil != err {
		t.Fatalf("recover error: %v", err)
	}
}

func TestInvalidChain(t *testing.T) {
	err := mode.Initialise("bogus")
	if fault.ErrInvalidChain != err {
		if nil == err {
			defer mode.Finalise()
		}
		t.Fatalf("initialise error: %v  expected: %v", err, fault.ErrInvalidChain)
	}
}
