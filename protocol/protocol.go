// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package protocol - platform version registry
//
// Maps a platform protocol version to a table of method version
// selectors.  Every versioned operation reads its selector before
// branching and must handle every value it was compiled to know;
// anything else is a hard version mismatch, so old nodes refuse a
// new fork cleanly while old and new logic coexist in the binary.
package protocol

import (
	"fmt"

	"github.com/bitmark-inc/platformd/fault"
)

// version bounds
const (
	MinimalSupportedVersion uint32 = 1
	LatestVersion           uint32 = 1
)

// DriveVersions - selectors for authenticated store methods
type DriveVersions struct {
	Insert                 uint16
	InsertIfNotExists      uint16
	InsertEmptyTree        uint16
	Get                    uint16
	Delete                 uint16
	DeleteUpTreeWhileEmpty uint16
	PathQuery              uint16
	ProvedPathQuery        uint16
	ApplyBatch             uint16
	RootHash               uint16
}

// FeeVersions - selectors for fee calculation methods
type FeeVersions struct {
	CalculateOperationFee uint16
	CalculateRefund       uint16
	DistributePool        uint16
}

// ContractVersions - selectors for contract and schema methods
type ContractVersions struct {
	DeriveId        uint16
	ParseSchema     uint16
	ValidateIndexes uint16
	IndexPaths      uint16
}

// DocumentVersions - selectors for document storage methods
type DocumentVersions struct {
	Create        uint16
	Replace       uint16
	Delete        uint16
	UpdateIndexes uint16
}

// IdentityVersions - selectors for identity methods
type IdentityVersions struct {
	AddNewIdentity     uint16
	AddToBalance       uint16
	RemoveFromBalance  uint16
	UpdateKeys         uint16
	ApplyBalanceChange uint16
}

// TransitionVersions - selectors for state transition pipeline stages
type TransitionVersions struct {
	Structural uint16
	Signature  uint16
	State      uint16
	Apply      uint16
}

// BlockVersions - selectors for block lifecycle methods
type BlockVersions struct {
	BeginBlock        uint16
	DeliverTransition uint16
	EndBlock          uint16
	Commit            uint16
	Finalize          uint16
	MasternodeDiff    uint16
}

// Version - the full selector table for one protocol version
type Version struct {
	ProtocolVersion uint32
	Drive           DriveVersions
	Fee             FeeVersions
	Contract        ContractVersions
	Document        DocumentVersions
	Identity        IdentityVersions
	Transition      TransitionVersions
	Block           BlockVersions
}

// all selectors are zero at protocol version 1; the table still
// exists so a future fork is a one line change here
var version1 = Version{
	ProtocolVersion: 1,
}

// the registry, indexed by protocol version
var versions = map[uint32]*Version{
	1: &version1,
}

// PlatformVersion - the selector table for a protocol version
func PlatformVersion(n uint32) (*Version, error) {
	if v, ok := versions[n]; ok {
		return v, nil
	}
	return nil, fault.ErrUnknownProtocolVersion
}

// Latest - the selector table for the newest known protocol version
func Latest() *Version {
	v, err := PlatformVersion(LatestVersion)
	if nil != err {
		fault.PanicWithError("protocol.Latest", err)
	}
	return v
}

// VersionMismatchError - a versioned method received a selector it
// was not compiled to know
//
// always a block aborting internal error, never shown to clients in
// detail
type VersionMismatchError struct {
	Method        string
	KnownVersions []uint16
	Received      uint16
}

// the error interface
func (e VersionMismatchError) Error() string {
	return fmt.Sprintf("%s: method: %q  known: %v  received: %d",
		fault.ErrVersionMismatch, e.Method, e.KnownVersions, e.Received)
}

// CheckMethod - guard a versioned branch
//
// returns nil when the received selector is one of the known ones
func CheckMethod(method string, known []uint16, received uint16) error {
	for _, k := range known {
		if k == received {
			return nil
		}
	}
	return VersionMismatchError{
		Method:        method,
		KnownVersions: known,
		Received:      received,
	}
}
