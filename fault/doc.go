// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package fault - error instances
//
// Provides a single instance of each error to allow comparison by
// identity instead of partial string matches.  Errors are classed into
// the five consensus categories and each carries a fixed numeric code
// reported to the consensus engine via Code.
package fault
