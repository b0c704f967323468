// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault

// error base
type GenericError string

// to allow for the consensus error categories
//
// basic: detectable without state; signature: key and signature
// failures; fee: balance failures; state: checks against the
// committed store; internal: invariant violations and version
// mismatches, never returned to clients in detail
type BasicError GenericError
type SignatureError GenericError
type FeeError GenericError
type StateError GenericError
type InternalError GenericError

// numeric code bases for each category
const (
	BasicCodeBase     = 1000
	SignatureCodeBase = 2000
	FeeCodeBase       = 3000
	StateCodeBase     = 4000
	InternalCodeBase  = 5000
)

// basic errors - keep in alphabetic order
var (
	ErrContractIdMismatch               = BasicError("contract id does not match hash of owner and entropy")
	ErrDataTooLarge                     = BasicError("data size exceeds limit")
	ErrDocumentTypeNotFound             = BasicError("document type not found in contract")
	ErrDuplicateIndexName               = BasicError("duplicate index name in document type")
	ErrIncompatibleTimestamps           = BasicError("created at and updated at must both be set or both be absent")
	ErrInvalidDocumentRevision          = BasicError("document revision is invalid")
	ErrInvalidIndexedPropertyConstraint = BasicError("indexed property violates length constraint")
	ErrInvalidIndexPropertyType         = BasicError("array and object properties cannot be indexed")
	ErrInvalidPropertyType              = BasicError("unsupported property type in schema")
	ErrInvalidStateTransitionType       = BasicError("invalid state transition type")
	ErrInvalidTransferRecipient         = BasicError("credit transfer recipient must differ from the sender")
	ErrMissingRequiredProperty          = BasicError("required property is missing")
	ErrNotTransitionPack                = BasicError("can not unpack state transition")
	ErrPropertyNotFound                 = BasicError("property not defined by document type")
	ErrSchemaReferenceNotFound          = BasicError("schema $ref target not found")
	ErrStringTooLong                    = BasicError("string value exceeds maximum length")
	ErrSystemPropertyRedeclared         = BasicError("system property cannot be redeclared in an index")
	ErrUniqueIndicesLimitReached        = BasicError("unique indices limit reached")
)

// signature errors - keep in alphabetic order
var (
	ErrInvalidSignature                       = SignatureError("invalid signature")
	ErrInvalidSignaturePublicKeyPurpose       = SignatureError("public key purpose cannot authenticate transitions")
	ErrInvalidSignaturePublicKeySecurityLevel = SignatureError("public key security level is not allowed for this transition")
	ErrMissingPublicKey                       = SignatureError("public key not found on identity")
	ErrPublicKeyIsDisabled                    = SignatureError("public key is disabled")
	ErrSignatureNotAllowedForKeyType          = SignatureError("signature type not allowed for key type")
	ErrSignatureProofOfPossession             = SignatureError("proof of possession signature is invalid")
)

// fee errors - keep in alphabetic order
var (
	ErrBalanceInsufficient = FeeError("identity balance is insufficient")
)

// state errors - keep in alphabetic order
var (
	ErrAssetLockAlreadySpent                      = StateError("asset lock transaction output already spent")
	ErrAssetLockNotChainLocked                    = StateError("asset lock transaction is not chain locked yet")
	ErrContractAlreadyExists                      = StateError("data contract already exists")
	ErrContractIndexModified                      = StateError("existing contract index cannot be modified")
	ErrContractNotFound                           = StateError("data contract not found")
	ErrDocumentAlreadyExists                      = StateError("document already exists")
	ErrDocumentDeleteNotAllowed                   = StateError("document type keeps history and does not allow delete")
	ErrDocumentNotFound                           = StateError("document not found")
	ErrDocumentNotMutable                         = StateError("document type does not allow mutation")
	ErrDocumentOwnerMismatch                      = StateError("document is owned by another identity")
	ErrDuplicateUniqueIndex                       = StateError("duplicate value for unique index")
	ErrIdentityAlreadyExists                      = StateError("identity already exists")
	ErrIdentityNotFound                           = StateError("identity not found")
	ErrIdentityPublicKeyAlreadyExists             = StateError("identity public key hash already registered")
	ErrIdentityPublicKeyDisabledAtWindowViolation = StateError("public key disabled at is outside the block time window")
	ErrIdentityPublicKeyIsReadOnly                = StateError("read only public key cannot be modified")
	ErrInvalidContractRevision                    = StateError("contract revision must advance by exactly one")
	ErrInvalidIdentityRevision                    = StateError("identity revision must advance by exactly one")
	ErrMasterKeyRemoved                           = StateError("identity would have no enabled master authentication key")
	ErrTimestampWindowViolation                   = StateError("timestamp is outside the block time window")
	ErrWithdrawalAlreadyQueued                    = StateError("withdrawal is already queued")
	ErrWithdrawalNotFound                         = StateError("withdrawal not found")
)

// internal errors - keep in alphabetic order
var (
	ErrAlreadyInitialised         = InternalError("already initialised")
	ErrBadCommitSignature         = InternalError("commit threshold signature is invalid")
	ErrBatchPathNotCreated        = InternalError("batch operation path not created before use")
	ErrCorruptedStorage           = InternalError("storage is corrupted")
	ErrInvalidBlockHeight         = InternalError("block height is out of sequence")
	ErrInvalidChain               = InternalError("invalid chain")
	ErrInvalidLoggerChannel       = InternalError("invalid logger channel")
	ErrKeyNotFound                = InternalError("key not found")
	ErrNotInitialised             = InternalError("not initialised")
	ErrOutOfPlaceBlockLifecycle   = InternalError("block lifecycle call out of place")
	ErrPathNotFound               = InternalError("path not found")
	ErrProposerNotInValidatorSet  = InternalError("proposer is not a member of the current validator set")
	ErrQuorumNotFound             = InternalError("signing quorum is not known")
	ErrTransactionAlreadyInUse    = InternalError("transaction already in use")
	ErrUnknownProtocolVersion     = InternalError("unknown protocol version")
	ErrValidatorSetRotationDenied = InternalError("validator set rotation is not permitted")
	ErrVersionMismatch            = InternalError("method version mismatch")
	ErrWrongElementType           = InternalError("wrong element type at path")
)

// the error interface base method
func (e GenericError) Error() string { return string(e) }

// the error interface methods
func (e BasicError) Error() string     { return string(e) }
func (e SignatureError) Error() string { return string(e) }
func (e FeeError) Error() string       { return string(e) }
func (e StateError) Error() string     { return string(e) }
func (e InternalError) Error() string  { return string(e) }

// determine the class of an error
func IsErrBasic(e error) bool     { _, ok := e.(BasicError); return ok }
func IsErrSignature(e error) bool { _, ok := e.(SignatureError); return ok }
func IsErrFee(e error) bool       { _, ok := e.(FeeError); return ok }
func IsErrState(e error) bool     { _, ok := e.(StateError); return ok }
func IsErrInternal(e error) bool  { _, ok := e.(InternalError); return ok }

// IsConsensusError - true for errors that abort a single transition
// but not the whole block
func IsConsensusError(e error) bool {
	switch e.(type) {
	case BasicError, SignatureError, FeeError, StateError:
		return true
	default:
		return false
	}
}
