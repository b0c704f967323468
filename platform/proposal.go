// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package platform

import (
	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/transition"
)

// proposals never carry more than this many transitions
const maximumProposalSize = 1000

// PrepareProposal - select transitions for a block this node proposes
//
// structurally invalid wire data is dropped here so a proposal never
// wastes a block slot on something every validator must reject; state
// dependent failures still surface individually during delivery
func PrepareProposal(candidates []transition.Packed) []transition.Packed {
	limit := maximumProposalSize
	if len(candidates) < limit {
		limit = len(candidates)
	}

	selected := make([]transition.Packed, 0, limit)
	for _, packed := range candidates {
		if len(selected) >= limit {
			break
		}
		if _, err := transition.Check(packed); nil != err {
			globalData.log.Debugf("proposal drop: code: %d  error: %s", fault.Code(err), err)
			continue
		}
		selected = append(selected, packed)
	}
	return selected
}

// ProcessProposal - vet a block proposed by another validator
//
// a proposer that includes oversized or structurally invalid wire
// data is misbehaving, the whole proposal is rejected
func ProcessProposal(candidates []transition.Packed) error {
	if len(candidates) > maximumProposalSize {
		return fault.ErrDataTooLarge
	}
	for _, packed := range candidates {
		if _, err := transition.Check(packed); nil != err {
			return err
		}
	}
	return nil
}
