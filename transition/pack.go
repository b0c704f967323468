// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transition

import (
	"github.com/bitmark-inc/platformd/credit"
	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/identity"
	"github.com/bitmark-inc/platformd/util"
)

// every record packs as: version tag, kind tag, body fields, then
// the signature fields last so signable bytes are a simple prefix

func packHeader(kind Kind) []byte {
	buffer := util.AppendVarint64(nil, transitionVersion)
	return util.AppendVarint64(buffer, uint64(kind))
}

func appendSignature(buffer []byte, keyID uint32, signature []byte) []byte {
	buffer = util.AppendVarint64(buffer, uint64(keyID))
	return util.AppendBytes(buffer, signature)
}

func (t *DataContractCreate) packBody() []byte {
	return util.AppendBytes(packHeader(DataContractCreateTag), t.RawContract)
}

// SignableBytes - the signed projection: everything but signatures
func (t *DataContractCreate) SignableBytes() []byte { return t.packBody() }

// Pack - full wire form
func (t *DataContractCreate) Pack() Packed {
	return Packed(appendSignature(t.packBody(), t.SignaturePublicKeyID, t.Signature))
}

func (t *DataContractUpdate) packBody() []byte {
	return util.AppendBytes(packHeader(DataContractUpdateTag), t.RawContract)
}

// SignableBytes - the signed projection: everything but signatures
func (t *DataContractUpdate) SignableBytes() []byte { return t.packBody() }

// Pack - full wire form
func (t *DataContractUpdate) Pack() Packed {
	return Packed(appendSignature(t.packBody(), t.SignaturePublicKeyID, t.Signature))
}

func (t *DocumentsBatch) packBody() []byte {
	buffer := packHeader(DocumentsBatchTag)
	buffer = append(buffer, t.OwnerID[:]...)
	buffer = util.AppendVarint64(buffer, uint64(len(t.Actions)))
	for i := range t.Actions {
		action := &t.Actions[i]
		buffer = append(buffer, byte(action.Action))
		buffer = append(buffer, action.ContractID[:]...)
		buffer = util.AppendString(buffer, action.TypeName)
		buffer = append(buffer, action.DocumentID[:]...)
		buffer = util.AppendBytes(buffer, action.RawDocument)
	}
	return buffer
}

// SignableBytes - the signed projection: everything but signatures
func (t *DocumentsBatch) SignableBytes() []byte { return t.packBody() }

// Pack - full wire form
func (t *DocumentsBatch) Pack() Packed {
	return Packed(appendSignature(t.packBody(), t.SignaturePublicKeyID, t.Signature))
}

func (t *IdentityCreate) packBody() []byte {
	buffer := packHeader(IdentityCreateTag)
	buffer = t.AssetLock.pack(buffer)
	buffer = util.AppendVarint64(buffer, uint64(len(t.Keys)))
	for i := range t.Keys {
		buffer = t.Keys[i].PackKey(buffer)
	}
	return buffer
}

// SignableBytes - the signed projection; proofs of possession sign
// this too, so they are stripped along with the signature
func (t *IdentityCreate) SignableBytes() []byte { return t.packBody() }

// Pack - full wire form
func (t *IdentityCreate) Pack() Packed {
	buffer := t.packBody()
	buffer = util.AppendVarint64(buffer, uint64(len(t.ProofsOfPossession)))
	for _, proof := range t.ProofsOfPossession {
		buffer = util.AppendBytes(buffer, proof)
	}
	return Packed(appendSignature(buffer, t.SignaturePublicKeyID, t.Signature))
}

func (t *IdentityTopUp) packBody() []byte {
	buffer := packHeader(IdentityTopUpTag)
	buffer = append(buffer, t.IdentityID[:]...)
	return t.AssetLock.pack(buffer)
}

// SignableBytes - the signed projection: everything but signatures
func (t *IdentityTopUp) SignableBytes() []byte { return t.packBody() }

// Pack - full wire form
func (t *IdentityTopUp) Pack() Packed {
	return Packed(appendSignature(t.packBody(), t.SignaturePublicKeyID, t.Signature))
}

func (t *IdentityCreditWithdrawal) packBody() []byte {
	buffer := packHeader(IdentityCreditWithdrawalTag)
	buffer = append(buffer, t.IdentityID[:]...)
	buffer = util.AppendVarint64(buffer, uint64(t.Amount))
	buffer = util.AppendVarint64(buffer, uint64(t.CoreFeePerByte))
	return util.AppendBytes(buffer, t.OutputScript)
}

// SignableBytes - the signed projection: everything but signatures
func (t *IdentityCreditWithdrawal) SignableBytes() []byte { return t.packBody() }

// Pack - full wire form
func (t *IdentityCreditWithdrawal) Pack() Packed {
	return Packed(appendSignature(t.packBody(), t.SignaturePublicKeyID, t.Signature))
}

func (t *IdentityCreditTransfer) packBody() []byte {
	buffer := packHeader(IdentityCreditTransferTag)
	buffer = append(buffer, t.SenderID[:]...)
	buffer = append(buffer, t.RecipientID[:]...)
	return util.AppendVarint64(buffer, uint64(t.Amount))
}

// SignableBytes - the signed projection: everything but signatures
func (t *IdentityCreditTransfer) SignableBytes() []byte { return t.packBody() }

// Pack - full wire form
func (t *IdentityCreditTransfer) Pack() Packed {
	return Packed(appendSignature(t.packBody(), t.SignaturePublicKeyID, t.Signature))
}

func (t *IdentityUpdate) packBody() []byte {
	buffer := packHeader(IdentityUpdateTag)
	buffer = append(buffer, t.IdentityID[:]...)
	buffer = util.AppendVarint64(buffer, t.Revision)
	buffer = util.AppendVarint64(buffer, uint64(len(t.AddKeys)))
	for i := range t.AddKeys {
		buffer = t.AddKeys[i].PackKey(buffer)
	}
	buffer = util.AppendVarint64(buffer, uint64(len(t.DisableKeyIDs)))
	for _, keyID := range t.DisableKeyIDs {
		buffer = util.AppendVarint64(buffer, uint64(keyID))
	}
	return util.AppendVarint64(buffer, t.DisabledAt)
}

// SignableBytes - the signed projection: everything but signatures
func (t *IdentityUpdate) SignableBytes() []byte { return t.packBody() }

// Pack - full wire form
func (t *IdentityUpdate) Pack() Packed {
	return Packed(appendSignature(t.packBody(), t.SignaturePublicKeyID, t.Signature))
}

// strict wire reader; any failure poisons all later reads
type reader struct {
	buffer []byte
	n      int
	failed bool
}

func (r *reader) fail() {
	r.failed = true
}

func (r *reader) varint() uint64 {
	if r.failed {
		return 0
	}
	value, n := util.FromVarint64(r.buffer[r.n:])
	if 0 == n {
		r.fail()
		return 0
	}
	r.n += n
	return value
}

func (r *reader) uint32() uint32 {
	value := r.varint()
	if value > 0xffffffff {
		r.fail()
		return 0
	}
	return uint32(value)
}

func (r *reader) count(maximum int) int {
	if r.failed {
		return 0
	}
	value, n := util.ClippedVarint64(r.buffer[r.n:], 0, maximum)
	if 0 == n {
		r.fail()
		return 0
	}
	r.n += n
	return value
}

func (r *reader) bytesField(maximum int) []byte {
	length := r.count(maximum)
	if r.failed {
		return nil
	}
	if len(r.buffer) < r.n+length {
		r.fail()
		return nil
	}
	data := make([]byte, length)
	copy(data, r.buffer[r.n:r.n+length])
	r.n += length
	return data
}

func (r *reader) fixed(length int) []byte {
	if r.failed {
		return nil
	}
	if len(r.buffer) < r.n+length {
		r.fail()
		return make([]byte, length)
	}
	data := r.buffer[r.n : r.n+length]
	r.n += length
	return data
}

func (r *reader) byteValue() byte {
	return r.fixed(1)[0]
}

func (r *reader) key() identity.PublicKey {
	if r.failed {
		return identity.PublicKey{}
	}
	k, n, err := identity.UnpackKey(r.buffer[r.n:])
	if nil != err {
		r.fail()
		return identity.PublicKey{}
	}
	r.n += n
	return k
}

func (r *reader) signature() (uint32, []byte) {
	keyID := r.uint32()
	signature := r.bytesField(maxSignatureLength)
	return keyID, signature
}

// Unpack - decode a wire form transition
//
// the whole buffer must be consumed; anything else is not a
// transition
func (p Packed) Unpack() (Transition, error) {
	r := &reader{buffer: p}

	if transitionVersion != r.varint() {
		return nil, fault.ErrNotTransitionPack
	}
	kind := Kind(r.varint())
	if r.failed {
		return nil, fault.ErrNotTransitionPack
	}

	var t Transition
	switch kind {

	case DataContractCreateTag:
		record := &DataContractCreate{}
		record.RawContract = r.bytesField(maxPackedContractLength)
		record.SignaturePublicKeyID, record.Signature = r.signature()
		t = record

	case DataContractUpdateTag:
		record := &DataContractUpdate{}
		record.RawContract = r.bytesField(maxPackedContractLength)
		record.SignaturePublicKeyID, record.Signature = r.signature()
		t = record

	case DocumentsBatchTag:
		record := &DocumentsBatch{}
		copy(record.OwnerID[:], r.fixed(identity.IDLength))
		count := r.count(maxDocumentActions)
		for i := 0; i < count && !r.failed; i += 1 {
			action := DocumentAction{}
			action.Action = ActionType(r.byteValue())
			copy(action.ContractID[:], r.fixed(32))
			action.TypeName = string(r.bytesField(256))
			copy(action.DocumentID[:], r.fixed(32))
			action.RawDocument = r.bytesField(maxPackedDocumentLength)
			record.Actions = append(record.Actions, action)
		}
		record.SignaturePublicKeyID, record.Signature = r.signature()
		t = record

	case IdentityCreateTag:
		record := &IdentityCreate{}
		record.AssetLock = r.assetLock()
		count := r.count(maxTransitionKeys)
		for i := 0; i < count && !r.failed; i += 1 {
			record.Keys = append(record.Keys, r.key())
		}
		count = r.count(maxTransitionKeys)
		for i := 0; i < count && !r.failed; i += 1 {
			record.ProofsOfPossession = append(record.ProofsOfPossession,
				r.bytesField(maxSignatureLength))
		}
		record.SignaturePublicKeyID, record.Signature = r.signature()
		t = record

	case IdentityTopUpTag:
		record := &IdentityTopUp{}
		copy(record.IdentityID[:], r.fixed(identity.IDLength))
		record.AssetLock = r.assetLock()
		record.SignaturePublicKeyID, record.Signature = r.signature()
		t = record

	case IdentityCreditWithdrawalTag:
		record := &IdentityCreditWithdrawal{}
		copy(record.IdentityID[:], r.fixed(identity.IDLength))
		record.Amount = credit.Amount(r.varint())
		record.CoreFeePerByte = r.uint32()
		record.OutputScript = r.bytesField(maxOutputScriptLength)
		record.SignaturePublicKeyID, record.Signature = r.signature()
		t = record

	case IdentityCreditTransferTag:
		record := &IdentityCreditTransfer{}
		copy(record.SenderID[:], r.fixed(identity.IDLength))
		copy(record.RecipientID[:], r.fixed(identity.IDLength))
		record.Amount = credit.Amount(r.varint())
		record.SignaturePublicKeyID, record.Signature = r.signature()
		t = record

	case IdentityUpdateTag:
		record := &IdentityUpdate{}
		copy(record.IdentityID[:], r.fixed(identity.IDLength))
		record.Revision = r.varint()
		count := r.count(maxTransitionKeys)
		for i := 0; i < count && !r.failed; i += 1 {
			record.AddKeys = append(record.AddKeys, r.key())
		}
		count = r.count(maxTransitionKeys)
		for i := 0; i < count && !r.failed; i += 1 {
			record.DisableKeyIDs = append(record.DisableKeyIDs, r.uint32())
		}
		record.DisabledAt = r.varint()
		record.SignaturePublicKeyID, record.Signature = r.signature()
		t = record

	default:
		return nil, fault.ErrInvalidStateTransitionType
	}

	if r.failed || r.n != len(p) {
		return nil, fault.ErrNotTransitionPack
	}
	return t, nil
}
