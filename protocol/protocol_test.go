// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package protocol_test

import (
	"testing"

	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/protocol"
)

func TestPlatformVersion(t *testing.T) {

	v, err := protocol.PlatformVersion(1)
	if nil != err {
		t.Fatalf("platform version error: %v", err)
	}
	if 1 != v.ProtocolVersion {
		t.Fatalf("protocol version: %d  expected: 1", v.ProtocolVersion)
	}

	// all selectors are zero at v1
	if 0 != v.Drive.Insert || 0 != v.Transition.Apply || 0 != v.Block.Commit {
		t.Fatal("v1 selectors must all be zero")
	}

	_, err = protocol.PlatformVersion(0)
	if fault.ErrUnknownProtocolVersion != err {
		t.Fatalf("version 0 error: %v  expected: %v", err, fault.ErrUnknownProtocolVersion)
	}

	_, err = protocol.PlatformVersion(protocol.LatestVersion + 1)
	if fault.ErrUnknownProtocolVersion != err {
		t.Fatalf("future version error: %v  expected: %v", err, fault.ErrUnknownProtocolVersion)
	}
}

func TestCheckMethod(t *testing.T) {

	if err := protocol.CheckMethod("drive.insert", []uint16{0}, 0); nil != err {
		t.Fatalf("check method error: %v", err)
	}

	err := protocol.CheckMethod("drive.insert", []uint16{0}, 7)
	mismatch, ok := err.(protocol.VersionMismatchError)
	if !ok {
		t.Fatalf("check method error type: %T", err)
	}
	if "drive.insert" != mismatch.Method || 7 != mismatch.Received {
		t.Fatalf("mismatch payload: %+v", mismatch)
	}
	if fault.IsConsensusError(err) {
		t.Fatal("version mismatch must not be a consensus error")
	}
}
