// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package identity

import (
	"bytes"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/ed25519"

	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/merkle"
)

// VerifySignature - check a signature made by this key
//
// ed25519 keys verify directly; secp256k1 keys use the 65 byte
// compact recoverable form and compare the recovered compressed
// public key, or its 20 byte hash for hash160 keys; BLS keys only
// sign consensus commits, never state transitions; script hash and
// hashed eddsa keys carry no recoverable material so they never
// verify directly
func (k *PublicKey) VerifySignature(message []byte, signature []byte) error {
	if !k.Enabled() {
		return fault.ErrPublicKeyIsDisabled
	}

	switch k.KeyType {

	case ED25519:
		if ed25519.PublicKeySize != len(k.Data) || ed25519.SignatureSize != len(signature) {
			return fault.ErrInvalidSignature
		}
		if !ed25519.Verify(ed25519.PublicKey(k.Data), message, signature) {
			return fault.ErrInvalidSignature
		}
		return nil

	case ECDSASecp256k1, ECDSAHash160:
		digest := merkle.NewDigest(message)
		publicKey, _, err := ecdsa.RecoverCompact(signature, digest[:])
		if nil != err {
			return fault.ErrInvalidSignature
		}
		compressed := publicKey.SerializeCompressed()
		if ECDSAHash160 == k.KeyType {
			hash := merkle.NewDigest(compressed)
			compressed = hash[:20]
		}
		if !bytes.Equal(k.Data, compressed) {
			return fault.ErrInvalidSignature
		}
		return nil

	default:
		return fault.ErrSignatureNotAllowedForKeyType
	}
}

// CheckKeyData - structural validation of the key material length
func (k *PublicKey) CheckKeyData() error {
	expected := 0
	switch k.KeyType {
	case ED25519:
		expected = ed25519.PublicKeySize
	case ECDSASecp256k1:
		expected = 33
	case BLS12381:
		expected = 48
	case ECDSAHash160, BIP13ScriptHash, EDDSA25519Hash160:
		expected = 20
	default:
		return fault.ErrSignatureNotAllowedForKeyType
	}
	if expected != len(k.Data) {
		return fault.ErrInvalidSignature
	}
	return nil
}
