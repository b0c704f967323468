// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package merkle_test

import (
	"fmt"
	"testing"

	"github.com/bitmark-inc/platformd/merkle"
)

func makeLeaves(count int) []merkle.Digest {
	leaves := make([]merkle.Digest, count)
	for i := 0; i < count; i += 1 {
		leaves[i] = merkle.NewDigest([]byte(fmt.Sprintf("leaf-%d", i)))
	}
	return leaves
}

func TestRootFromLeaves(t *testing.T) {

	// empty list hashes the empty record
	if root := merkle.RootFromLeaves(nil); root != merkle.NewDigest(nil) {
		t.Fatalf("empty root: %v", root)
	}

	// single leaf is its own root
	leaves := makeLeaves(1)
	if root := merkle.RootFromLeaves(leaves); root != leaves[0] {
		t.Fatalf("single leaf root: %v  expected: %v", root, leaves[0])
	}

	// two leaves combine
	leaves = makeLeaves(2)
	expected := merkle.Combine(leaves[0], leaves[1])
	if root := merkle.RootFromLeaves(leaves); root != expected {
		t.Fatalf("pair root: %v  expected: %v", root, expected)
	}

	// three leaves: odd trailing leaf pairs with itself
	leaves = makeLeaves(3)
	expected = merkle.Combine(
		merkle.Combine(leaves[0], leaves[1]),
		merkle.Combine(leaves[2], leaves[2]),
	)
	if root := merkle.RootFromLeaves(leaves); root != expected {
		t.Fatalf("triple root: %v  expected: %v", root, expected)
	}
}

func TestAuditPath(t *testing.T) {

	for _, count := range []int{1, 2, 3, 4, 5, 8, 13, 64, 100} {
		leaves := makeLeaves(count)
		root := merkle.RootFromLeaves(leaves)

		for index := 0; index < count; index += 1 {
			path, err := merkle.AuditPath(leaves, index)
			if nil != err {
				t.Fatalf("count: %d  index: %d  audit path error: %v", count, index, err)
			}
			computed := merkle.VerifyAuditPath(leaves[index], index, path)
			if computed != root {
				t.Errorf("count: %d  index: %d  computed: %v  expected: %v", count, index, computed, root)
			}
		}

		// wrong leaf must not verify
		if count > 1 {
			path, _ := merkle.AuditPath(leaves, 0)
			computed := merkle.VerifyAuditPath(leaves[1], 0, path)
			if computed == root {
				t.Errorf("count: %d  wrong leaf verified", count)
			}
		}
	}

	if _, err := merkle.AuditPath(makeLeaves(3), 3); nil == err {
		t.Fatal("audit path accepted out of range index")
	}
}
