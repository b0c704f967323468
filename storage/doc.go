// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package storage - maintain the on-disk data store
//
// maintain separate pools of a number of elements in key->value form
//
// This maintains a LevelDB database split into a series of tables.
// Each table is defined by a prefix byte that is obtained from the
// prefix tag in the struct defining the available tables.
//
// Notes:
// 1. each separate pool has a single byte prefix (to spread the keys in LevelDB)
// 2. ++           = concatenation of byte data
// 3. subtree id   = 32 byte SHA3-256 of the canonical path encoding
// 4. height       = big endian uint64 (8 bytes)
//
// Trie nodes:
//
//   T ++ subtree id ++ key     - one row per element of a subtree
//                                data: packed element
//   M ++ subtree id            - subtree metadata
//                                data: packed parent path ++ cached digest ++ sum
//
// Roots:
//
//   R ++ height                - app hash after the block at height
//                                data: 32 byte root digest
//
// Platform state:
//
//   S ++ key                   - persisted platform state records
//                                data: packed platform state
//
// Testing:
//
//   Z ++ key                   - testing data
package storage
