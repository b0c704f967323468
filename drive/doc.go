// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package drive - the authenticated path addressed store
//
// State is a hierarchy of named subtrees addressed by a sequence of
// byte keys.  Four element kinds exist: plain subtrees, sum subtrees
// whose interior nodes aggregate signed 64 bit child sums, items
// carrying opaque values with storage flags, and one hop references
// from index paths to primary storage.
//
// Every subtree hashes to the merkle root of its ordered children;
// the app hash is the root subtree's digest.  All mutations flow
// through a block transaction holding an overlay over the committed
// database; per transition staging allows a failed transition to be
// discarded without disturbing the block.
//
// Storage layout is described in the storage package: one row per
// element keyed by subtree id ++ element key, one metadata row per
// subtree.
package drive
