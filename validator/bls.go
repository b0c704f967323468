// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package validator

import (
	"bytes"

	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/merkle"
)

// BLSVerifier - threshold signature verification backend
//
// BLS12-381 aggregation is supplied by the host process; the core
// only ever verifies, it never holds key shares
type BLSVerifier interface {
	Verify(publicKey []byte, message []byte, signature []byte) error
}

// DigestBLS - deterministic stand in backend
//
// the signature is the digest of public key and message; only for
// local chains and tests, a production node wires a real backend
type DigestBLS struct{}

// Sign - produce the stand in signature
func (DigestBLS) Sign(publicKey []byte, message []byte) []byte {
	digest := merkle.NewDigest(append(append([]byte{}, publicKey...), message...))
	return digest[:]
}

// Verify - the BLSVerifier interface
func (d DigestBLS) Verify(publicKey []byte, message []byte, signature []byte) error {
	if !bytes.Equal(d.Sign(publicKey, message), signature) {
		return fault.ErrInvalidSignature
	}
	return nil
}
