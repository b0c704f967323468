// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault

// fixed numeric codes for every consensus error
//
// codes are part of the external ABI: clients match on them and the
// per-transition block results record them, so entries are append
// only and never renumbered
var errorCodes = map[error]int{
	// basic 1000..1999
	ErrNotTransitionPack:                1001,
	ErrInvalidStateTransitionType:       1002,
	ErrDataTooLarge:                     1003,
	ErrContractIdMismatch:               1010,
	ErrDocumentTypeNotFound:             1011,
	ErrDuplicateIndexName:               1012,
	ErrUniqueIndicesLimitReached:        1013,
	ErrInvalidIndexedPropertyConstraint: 1014,
	ErrInvalidIndexPropertyType:         1015,
	ErrSystemPropertyRedeclared:         1016,
	ErrInvalidPropertyType:              1020,
	ErrSchemaReferenceNotFound:          1021,
	ErrMissingRequiredProperty:          1022,
	ErrPropertyNotFound:                 1023,
	ErrStringTooLong:                    1024,
	ErrIncompatibleTimestamps:           1030,
	ErrInvalidDocumentRevision:          1031,
	ErrInvalidTransferRecipient:         1040,

	// signature 2000..2999
	ErrMissingPublicKey:                       2001,
	ErrInvalidSignature:                       2002,
	ErrPublicKeyIsDisabled:                    2003,
	ErrInvalidSignaturePublicKeySecurityLevel: 2004,
	ErrSignatureNotAllowedForKeyType:          2005,
	ErrSignatureProofOfPossession:             2006,
	ErrInvalidSignaturePublicKeyPurpose:       2007,

	// fee 3000..3999
	ErrBalanceInsufficient: 3001,

	// state 4000..4999
	ErrIdentityAlreadyExists:                      4001,
	ErrIdentityNotFound:                           4002,
	ErrIdentityPublicKeyAlreadyExists:             4003,
	ErrInvalidIdentityRevision:                    4004,
	ErrIdentityPublicKeyIsReadOnly:                4005,
	ErrIdentityPublicKeyDisabledAtWindowViolation: 4006,
	ErrMasterKeyRemoved:                           4007,
	ErrContractAlreadyExists:                      4010,
	ErrContractNotFound:                           4011,
	ErrInvalidContractRevision:                    4012,
	ErrContractIndexModified:                      4013,
	ErrDocumentAlreadyExists:                      4020,
	ErrDocumentNotFound:                           4021,
	ErrDocumentNotMutable:                         4022,
	ErrDocumentDeleteNotAllowed:                   4023,
	ErrDuplicateUniqueIndex:                       4024,
	ErrDocumentOwnerMismatch:                      4025,
	ErrTimestampWindowViolation:                   4030,
	ErrAssetLockAlreadySpent:                      4031,
	ErrAssetLockNotChainLocked:                    4032,
	ErrWithdrawalAlreadyQueued:                    4040,
	ErrWithdrawalNotFound:                         4041,
}

// Code - the fixed numeric code for an error
//
// errors without an assigned code report the base code of their
// category; unknown error types report the internal base code
func Code(e error) int {
	if code, ok := errorCodes[e]; ok {
		return code
	}
	switch e.(type) {
	case BasicError:
		return BasicCodeBase
	case SignatureError:
		return SignatureCodeBase
	case FeeError:
		return FeeCodeBase
	case StateError:
		return StateCodeBase
	default:
		return InternalCodeBase
	}
}
