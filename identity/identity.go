// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package identity - platform identities and their public keys
//
// An identity is a 32 byte id, an ordered set of public keys and a
// revision counter.  The credit balance lives in the balances sum
// subtree so total supply stays provable; key hashes are indexed so
// an identity can be found from any of its keys.
package identity

import (
	"bytes"
	"sort"

	"github.com/mr-tron/base58"

	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/merkle"
)

// IDLength - bytes in an identity id
const IDLength = 32

// ID - an identity identifier
type ID [IDLength]byte

// Purpose - what a key is allowed to do
type Purpose byte

// all key purposes
//
// System and Voting keys never authenticate client transitions; they
// belong to masternode identities driven by the anchor chain
const (
	Authentication Purpose = 0
	Encryption     Purpose = 1
	Decryption     Purpose = 2
	Withdraw       Purpose = 3
	System         Purpose = 4
	Voting         Purpose = 5
)

// SecurityLevel - how protected the private key is expected to be
type SecurityLevel byte

// security levels, lower is stronger
const (
	Master   SecurityLevel = 0
	Critical SecurityLevel = 1
	High     SecurityLevel = 2
	Medium   SecurityLevel = 3
)

// KeyType - the signature scheme of a key
type KeyType byte

// all key types
//
// the two trailing hash forms carry a 20 byte digest of the real key
// material, so signatures cannot be checked against them directly
const (
	ED25519           KeyType = 0
	ECDSASecp256k1    KeyType = 1
	BLS12381          KeyType = 2
	ECDSAHash160      KeyType = 3
	BIP13ScriptHash   KeyType = 4
	EDDSA25519Hash160 KeyType = 5
)

// PublicKey - one key of an identity
//
// a zero DisabledAt means the key is enabled; the timestamp is
// milliseconds since the unix epoch
type PublicKey struct {
	ID            uint32
	Purpose       Purpose
	SecurityLevel SecurityLevel
	KeyType       KeyType
	ReadOnly      bool
	Data          []byte
	DisabledAt    uint64
}

// Enabled - true while the key may sign
func (k *PublicKey) Enabled() bool {
	return 0 == k.DisabledAt
}

// Unique - true when the key hash must map to exactly one identity
//
// masternode style keys are shared between identities and are looked
// up through the non unique index
func (k *PublicKey) Unique() bool {
	switch k.KeyType {
	case ECDSAHash160, BIP13ScriptHash, EDDSA25519Hash160:
		return false
	default:
		return true
	}
}

// Hash - index key derived from the key material
func (k *PublicKey) Hash() merkle.Digest {
	return merkle.NewDigest(k.Data)
}

// Identity - the full identity record
type Identity struct {
	ID       ID
	Keys     []PublicKey // ordered by key id
	Revision uint64
}

// String - base58 text form of an id
func (id ID) String() string {
	return base58.Encode(id[:])
}

// IDFromBytes - convert a byte slice to an id
func IDFromBytes(buffer []byte) (ID, error) {
	id := ID{}
	if IDLength != len(buffer) {
		return id, fault.ErrIdentityNotFound
	}
	copy(id[:], buffer)
	return id, nil
}

// Key - find a key by its id
func (identity *Identity) Key(keyID uint32) *PublicKey {
	for i := range identity.Keys {
		if keyID == identity.Keys[i].ID {
			return &identity.Keys[i]
		}
	}
	return nil
}

// sort keys and reject duplicate key ids
func (identity *Identity) normalise() error {
	sort.Slice(identity.Keys, func(i, j int) bool {
		return identity.Keys[i].ID < identity.Keys[j].ID
	})
	for i := 1; i < len(identity.Keys); i += 1 {
		if identity.Keys[i].ID == identity.Keys[i-1].ID {
			return fault.ErrIdentityPublicKeyAlreadyExists
		}
	}
	return nil
}

// CheckMasterKey - every identity keeps at least one enabled master
// authentication key
func (identity *Identity) CheckMasterKey() error {
	for i := range identity.Keys {
		k := &identity.Keys[i]
		if Authentication == k.Purpose && Master == k.SecurityLevel && k.Enabled() {
			return nil
		}
	}
	return fault.ErrMasterKeyRemoved
}

// Equal - deep compare, used by tests
func (identity *Identity) Equal(other *Identity) bool {
	if identity.ID != other.ID || identity.Revision != other.Revision ||
		len(identity.Keys) != len(other.Keys) {
		return false
	}
	for i := range identity.Keys {
		a := &identity.Keys[i]
		b := &other.Keys[i]
		if a.ID != b.ID || a.Purpose != b.Purpose ||
			a.SecurityLevel != b.SecurityLevel || a.KeyType != b.KeyType ||
			a.ReadOnly != b.ReadOnly || a.DisabledAt != b.DisabledAt ||
			!bytes.Equal(a.Data, b.Data) {
			return false
		}
	}
	return true
}
