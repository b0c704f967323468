// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package drive

import (
	"bytes"

	"github.com/bitmark-inc/platformd/fault"
	"github.com/bitmark-inc/platformd/merkle"
	"github.com/bitmark-inc/platformd/storage"
	"github.com/bitmark-inc/platformd/util"
)

// ProofEntry - one proved key in the target subtree
type ProofEntry struct {
	Key       []byte
	Element   []byte // packed element
	Index     uint64 // leaf position in the subtree
	AuditPath []merkle.Digest
}

// ProofLayer - one ancestor binding on the way to the target
//
// proves that the parent layer holds a subtree element for this
// segment whose child digest authenticates the layer below
type ProofLayer struct {
	Segment   []byte
	Element   []byte // packed subtree element
	Index     uint64
	AuditPath []merkle.Digest
}

// Proof - a layered membership proof against one app hash
//
// Layers[0] sits directly under the root, the last layer is the
// target subtree's element in its parent
type Proof struct {
	Layers  []ProofLayer
	Entries []ProofEntry
}

// locate a key in an ordered child list
func findChild(children []storage.Element, key []byte) int {
	for i, child := range children {
		if bytes.Equal(child.Key, key) {
			return i
		}
	}
	return -1
}

// Prove - build a membership proof for keys under one path
//
// absent keys are skipped, so an entry appears only for keys that
// exist and a verifier learns absence from the missing entry; proofs
// are built over the transaction's current view, normally a read
// transaction over the committed store
func (tx *Tx) Prove(path Path, keys [][]byte) (*Proof, error) {
	if !tx.hasSubtree(path, nil) {
		return nil, fault.ErrPathNotFound
	}

	proof := &Proof{}

	// ancestor layers from just under the root down to the target
	for i := 0; i < len(path); i += 1 {
		parent := path[:i]
		segment := path[i]

		children := tx.mergedChildren(Path(parent), nil)
		index := findChild(children, segment)
		if index < 0 {
			return nil, fault.ErrPathNotFound
		}
		leaves := make([]merkle.Digest, len(children))
		for j, child := range children {
			element, err := UnpackElement(child.Value)
			if nil != err {
				return nil, err
			}
			leaves[j] = leafDigest(child.Key, element.Digest())
		}
		auditPath, err := merkle.AuditPath(leaves, index)
		if nil != err {
			return nil, err
		}
		proof.Layers = append(proof.Layers, ProofLayer{
			Segment:   segment,
			Element:   children[index].Value,
			Index:     uint64(index),
			AuditPath: auditPath,
		})
	}

	// the target layer
	children := tx.mergedChildren(path, nil)
	leaves := make([]merkle.Digest, len(children))
	for j, child := range children {
		element, err := UnpackElement(child.Value)
		if nil != err {
			return nil, err
		}
		leaves[j] = leafDigest(child.Key, element.Digest())
	}
	for _, key := range keys {
		index := findChild(children, key)
		if index < 0 {
			continue // absent keys produce no entry
		}
		auditPath, err := merkle.AuditPath(leaves, index)
		if nil != err {
			return nil, err
		}
		proof.Entries = append(proof.Entries, ProofEntry{
			Key:       key,
			Element:   children[index].Value,
			Index:     uint64(index),
			AuditPath: auditPath,
		})
	}
	return proof, nil
}

// VerifyProof - check a proof against a path and an app hash
//
// returns the proved elements keyed by their position in the proof
func VerifyProof(proof *Proof, path Path, appHash merkle.Digest) ([]*Element, error) {
	if len(proof.Layers) != len(path) {
		return nil, fault.ErrInvalidSignature
	}

	expected := appHash
	for i, layer := range proof.Layers {
		if !bytes.Equal(layer.Segment, path[i]) {
			return nil, fault.ErrInvalidSignature
		}
		element, err := UnpackElement(layer.Element)
		if nil != err {
			return nil, err
		}
		if !element.IsSubtree() {
			return nil, fault.ErrWrongElementType
		}
		leaf := leafDigest(layer.Segment, element.Digest())
		if expected != merkle.VerifyAuditPath(leaf, int(layer.Index), layer.AuditPath) {
			return nil, fault.ErrInvalidSignature
		}
		expected = element.Child
	}

	elements := make([]*Element, 0, len(proof.Entries))
	for _, entry := range proof.Entries {
		element, err := UnpackElement(entry.Element)
		if nil != err {
			return nil, err
		}
		leaf := leafDigest(entry.Key, element.Digest())
		if expected != merkle.VerifyAuditPath(leaf, int(entry.Index), entry.AuditPath) {
			return nil, fault.ErrInvalidSignature
		}
		elements = append(elements, element)
	}
	return elements, nil
}

// Pack - wire encoding of a proof
func (proof *Proof) Pack() []byte {
	packDigests := func(buffer []byte, digests []merkle.Digest) []byte {
		buffer = util.AppendVarint64(buffer, uint64(len(digests)))
		for _, d := range digests {
			buffer = append(buffer, d[:]...)
		}
		return buffer
	}

	buffer := util.AppendVarint64(nil, uint64(len(proof.Layers)))
	for _, layer := range proof.Layers {
		buffer = util.AppendBytes(buffer, layer.Segment)
		buffer = util.AppendBytes(buffer, layer.Element)
		buffer = util.AppendVarint64(buffer, layer.Index)
		buffer = packDigests(buffer, layer.AuditPath)
	}
	buffer = util.AppendVarint64(buffer, uint64(len(proof.Entries)))
	for _, entry := range proof.Entries {
		buffer = util.AppendBytes(buffer, entry.Key)
		buffer = util.AppendBytes(buffer, entry.Element)
		buffer = util.AppendVarint64(buffer, entry.Index)
		buffer = packDigests(buffer, entry.AuditPath)
	}
	return buffer
}

// UnpackProof - decode a wire encoded proof
func UnpackProof(buffer []byte) (*Proof, error) {
	n := 0

	nextBytes := func(limit int) ([]byte, error) {
		length, m := util.ClippedVarint64(buffer[n:], 0, limit)
		if 0 == m {
			return nil, fault.ErrCorruptedStorage
		}
		n += m
		if len(buffer) < n+length {
			return nil, fault.ErrCorruptedStorage
		}
		data := make([]byte, length)
		copy(data, buffer[n:n+length])
		n += length
		return data, nil
	}
	nextVarint := func() (uint64, error) {
		value, m := util.FromVarint64(buffer[n:])
		if 0 == m {
			return 0, fault.ErrCorruptedStorage
		}
		n += m
		return value, nil
	}
	nextDigests := func() ([]merkle.Digest, error) {
		count, err := nextVarint()
		if nil != err {
			return nil, err
		}
		if count > 64 {
			return nil, fault.ErrCorruptedStorage
		}
		digests := make([]merkle.Digest, count)
		for i := uint64(0); i < count; i += 1 {
			if len(buffer) < n+merkle.DigestLength {
				return nil, fault.ErrCorruptedStorage
			}
			copy(digests[i][:], buffer[n:n+merkle.DigestLength])
			n += merkle.DigestLength
		}
		return digests, nil
	}

	proof := &Proof{}

	layerCount, err := nextVarint()
	if nil != err {
		return nil, err
	}
	if layerCount > 64 {
		return nil, fault.ErrCorruptedStorage
	}
	for i := uint64(0); i < layerCount; i += 1 {
		layer := ProofLayer{}
		if layer.Segment, err = nextBytes(maxKeyLength); nil != err {
			return nil, err
		}
		if layer.Element, err = nextBytes(maxValueLength + maxKeyLength); nil != err {
			return nil, err
		}
		if layer.Index, err = nextVarint(); nil != err {
			return nil, err
		}
		if layer.AuditPath, err = nextDigests(); nil != err {
			return nil, err
		}
		proof.Layers = append(proof.Layers, layer)
	}

	entryCount, err := nextVarint()
	if nil != err {
		return nil, err
	}
	if entryCount > 1024 {
		return nil, fault.ErrCorruptedStorage
	}
	for i := uint64(0); i < entryCount; i += 1 {
		entry := ProofEntry{}
		if entry.Key, err = nextBytes(maxKeyLength); nil != err {
			return nil, err
		}
		if entry.Element, err = nextBytes(maxValueLength + maxKeyLength); nil != err {
			return nil, err
		}
		if entry.Index, err = nextVarint(); nil != err {
			return nil, err
		}
		if entry.AuditPath, err = nextDigests(); nil != err {
			return nil, err
		}
		proof.Entries = append(proof.Entries, entry)
	}
	return proof, nil
}
