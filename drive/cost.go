// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package drive

// OperationCost - resources consumed by one store operation
//
// storage written bytes are prepaid and refundable when removed;
// processing bytes cover tree maintenance that is not user data
type OperationCost struct {
	StorageBytesWritten    uint64
	ProcessingBytesWritten uint64
	BytesLoaded            uint64
	Seeks                  uint64
	HashNodes              uint64
	StorageBytesRemoved    uint64 // bytes freed, basis for refunds
}

// Add - accumulate another cost
func (c *OperationCost) Add(other OperationCost) {
	c.StorageBytesWritten += other.StorageBytesWritten
	c.ProcessingBytesWritten += other.ProcessingBytesWritten
	c.BytesLoaded += other.BytesLoaded
	c.Seeks += other.Seeks
	c.HashNodes += other.HashNodes
	c.StorageBytesRemoved += other.StorageBytesRemoved
}

// AtLeast - true when every component of c is ≥ the other cost
//
// the contract between estimate and apply mode
func (c OperationCost) AtLeast(other OperationCost) bool {
	return c.StorageBytesWritten >= other.StorageBytesWritten &&
		c.ProcessingBytesWritten >= other.ProcessingBytesWritten &&
		c.BytesLoaded >= other.BytesLoaded &&
		c.Seeks >= other.Seeks &&
		c.HashNodes >= other.HashNodes
}

// EstimatedLayerInformation - worst case shape of one layer for
// estimate mode, keyed by the symbolic canonical path
type EstimatedLayerInformation struct {
	Depth            uint64 // layers from the root, inclusive
	MaxKeySize       uint64
	MaxElementSize   uint64
	MaxChildCount    uint64
	IsSumTree        bool
}

// EstimatedLayers - worst case layer map for a whole estimated batch
//
// keyed by string(path.Canonical()); a missing entry falls back to
// the defaults below
type EstimatedLayers map[string]EstimatedLayerInformation

// pessimistic defaults for unmapped paths
var defaultLayer = EstimatedLayerInformation{
	Depth:          8,
	MaxKeySize:     maxKeyLength,
	MaxElementSize: maxValueLength,
	MaxChildCount:  1 << 20,
}

// layer - lookup with default
func (layers EstimatedLayers) layer(path Path) EstimatedLayerInformation {
	if info, ok := layers[string(path.Canonical())]; ok {
		return info
	}
	info := defaultLayer
	if depth := uint64(len(path)) + 1; depth > info.Depth {
		info.Depth = depth
	}
	return info
}

// ceiling of log2, minimum 1
func log2Ceiling(n uint64) uint64 {
	bits := uint64(1)
	for value := uint64(1); value < n; value <<= 1 {
		bits += 1
	}
	return bits
}

// EstimateOp - upper bound cost of one batch operation without I/O
//
// every component must dominate the exact apply cost for any store
// whose layers fit the estimated shapes
func EstimateOp(op BatchOp, layers EstimatedLayers) OperationCost {
	info := layers.layer(op.Path)

	depth := info.Depth
	if d := uint64(len(op.Path)) + 1; d > depth {
		depth = d
	}

	rowSize := info.MaxKeySize + info.MaxElementSize + flagsOverhead

	cost := OperationCost{
		// one existence probe per level plus the target row
		Seeks:       depth + 1,
		BytesLoaded: (depth + 1) * rowSize,
		// every level rehashes an audit path worth of nodes plus the
		// per level subtree element rewrite
		HashNodes: depth * (log2Ceiling(info.MaxChildCount) + 2),
	}

	switch op.Op {
	case OpInsert, OpInsertIfNotExists:
		cost.StorageBytesWritten = rowSize
		cost.ProcessingBytesWritten = depth * (metaRowOverhead + info.MaxKeySize)
	case OpInsertEmptyTree, OpInsertEmptySumTree:
		cost.ProcessingBytesWritten = rowSize + depth*(metaRowOverhead+info.MaxKeySize)
	case OpDelete, OpDeleteUpTreeWhileEmpty:
		// deletions still rewrite ancestor metadata
		cost.ProcessingBytesWritten = depth * (metaRowOverhead + info.MaxKeySize)
		cost.StorageBytesRemoved = rowSize
		if OpDeleteUpTreeWhileEmpty == op.Op {
			// may walk every ancestor level
			cost.Seeks += depth
			cost.BytesLoaded += depth * rowSize
		}
	case OpRefreshReference:
		cost.ProcessingBytesWritten = rowSize
	}
	return cost
}

// EstimateBatch - upper bound cost of a whole batch
func EstimateBatch(batch Batch, layers EstimatedLayers) OperationCost {
	total := OperationCost{}
	for _, op := range batch {
		total.Add(EstimateOp(op, layers))
	}
	return total
}

// fixed overheads used by both modes
const (
	flagsOverhead   = 3 + 1 + 32 // epoch varint + owner marker + owner id
	metaRowOverhead = 32 + 1 + 32 + 9
)
