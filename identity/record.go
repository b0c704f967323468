// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package identity

import (
	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/util"
)

// longest allowed raw key material
const maxKeyDataLength = 96 // BLS public keys are the largest

// Pack - canonical byte encoding of an identity
//
// keys are encoded in key id order so equal identities always pack
// to equal bytes
func (identity *Identity) Pack() ([]byte, error) {
	err := identity.normalise()
	if nil != err {
		return nil, err
	}

	buffer := make([]byte, 0, 128)
	buffer = append(buffer, identity.ID[:]...)
	buffer = util.AppendVarint64(buffer, identity.Revision)
	buffer = util.AppendVarint64(buffer, uint64(len(identity.Keys)))
	for i := range identity.Keys {
		buffer = identity.Keys[i].pack(buffer)
	}
	return buffer, nil
}

// pack one public key
func (k *PublicKey) pack(buffer []byte) []byte {
	buffer = util.AppendVarint64(buffer, uint64(k.ID))
	buffer = append(buffer, byte(k.Purpose), byte(k.SecurityLevel), byte(k.KeyType))
	if k.ReadOnly {
		buffer = append(buffer, 0x01)
	} else {
		buffer = append(buffer, 0x00)
	}
	buffer = util.AppendVarint64(buffer, k.DisabledAt)
	return util.AppendBytes(buffer, k.Data)
}

// PackKey - append the canonical encoding of one key
//
// the same layout the identity record uses, so transitions carrying
// keys stay byte compatible with stored identities
func (k *PublicKey) PackKey(buffer []byte) []byte {
	return k.pack(buffer)
}

// UnpackKey - decode one key, returning the bytes consumed
func UnpackKey(buffer []byte) (PublicKey, int, error) {
	return unpackKey(buffer)
}

// Unpack - decode a packed identity
func Unpack(buffer []byte) (*Identity, error) {
	if len(buffer) < IDLength {
		return nil, fault.ErrCorruptedStorage
	}
	identity := &Identity{}
	copy(identity.ID[:], buffer[:IDLength])
	n := IDLength

	revision, m := util.FromVarint64(buffer[n:])
	if 0 == m {
		return nil, fault.ErrCorruptedStorage
	}
	identity.Revision = revision
	n += m

	count, m := util.FromVarint64(buffer[n:])
	if 0 == m || count > 32 {
		return nil, fault.ErrCorruptedStorage
	}
	n += m

	identity.Keys = make([]PublicKey, 0, count)
	for i := uint64(0); i < count; i += 1 {
		k, m, err := unpackKey(buffer[n:])
		if nil != err {
			return nil, err
		}
		identity.Keys = append(identity.Keys, k)
		n += m
	}
	err := identity.normalise()
	if nil != err {
		return nil, err
	}
	return identity, nil
}

// unpack one public key
func unpackKey(buffer []byte) (PublicKey, int, error) {
	k := PublicKey{}

	keyID, n := util.FromVarint64(buffer)
	if 0 == n || keyID > 0xffffffff {
		return k, 0, fault.ErrCorruptedStorage
	}
	k.ID = uint32(keyID)

	if len(buffer) < n+4 {
		return k, 0, fault.ErrCorruptedStorage
	}
	k.Purpose = Purpose(buffer[n])
	k.SecurityLevel = SecurityLevel(buffer[n+1])
	k.KeyType = KeyType(buffer[n+2])
	switch buffer[n+3] {
	case 0x00:
	case 0x01:
		k.ReadOnly = true
	default:
		return k, 0, fault.ErrCorruptedStorage
	}
	n += 4

	disabledAt, m := util.FromVarint64(buffer[n:])
	if 0 == m {
		return k, 0, fault.ErrCorruptedStorage
	}
	k.DisabledAt = disabledAt
	n += m

	length, m := util.ClippedVarint64(buffer[n:], 1, maxKeyDataLength)
	if 0 == m {
		return k, 0, fault.ErrCorruptedStorage
	}
	n += m
	if len(buffer) < n+length {
		return k, 0, fault.ErrCorruptedStorage
	}
	k.Data = make([]byte, length)
	copy(k.Data, buffer[n:n+length])
	n += length

	return k, n, nil
}
