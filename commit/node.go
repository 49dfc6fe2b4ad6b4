// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package commit

import (
	"encoding/binary"
	"maps"

	"github.com/0xsoniclabs/deltacurate/codec"
	"github.com/0xsoniclabs/deltacurate/common"
)

// Domain separation prefixes for leaf and interior node digests.
const (
	leafDomain     = 0x00
	interiorDomain = 0x01
)

// Counts maps field ordinals to the number of descendant deltas in which the
// field changed. Ordinals that never changed are absent.
type Counts map[byte]uint64

// Get returns the count for an ordinal, zero if absent.
func (c Counts) Get(ordinal byte) uint64 {
	return c[ordinal]
}

// add accumulates the other counts into this one.
func (c Counts) add(other Counts) {
	for ordinal, count := range other {
		c[ordinal] += count
	}
}

// serialize returns the canonical byte form used as digest input: for every
// present ordinal in ascending order, the ordinal byte followed by the count
// as a uvarint.
func (c Counts) serialize() []byte {
	res := make([]byte, 0, len(c)*3)
	for ordinal := range common.MaxOrdinals {
		if count, ok := c[byte(ordinal)]; ok {
			res = append(res, byte(ordinal))
			res = binary.AppendUvarint(res, count)
		}
	}
	return res
}

// Node is one node of the commitment tree: the OR of all descendant presence
// masks, the per-field change counters summed over all descendants, and the
// digest binding both to the subtree's leaves.
type Node struct {
	Digest common.Hash
	Mask   common.FieldMask
	Counts Counts
}

// newLeaf wraps a single delta entry's mask into a tree leaf.
func newLeaf(entry *codec.DeltaEntry) Node {
	node := Node{Mask: entry.Mask, Counts: Counts{}}
	for _, ordinal := range entry.Mask.Ordinals() {
		node.Counts[ordinal] = 1
	}
	node.Digest = leafDigest(node.Mask, node.Counts)
	return node
}

// neutralLeaf returns the padding leaf: empty mask, no counts, and the digest
// of the empty input. Padding the leaf sequence with neutral leaves makes the
// tree shape a function of the leaf count alone.
func neutralLeaf() Node {
	return Node{Digest: common.EmptyHash(), Counts: Counts{}}
}

func leafDigest(mask common.FieldMask, counts Counts) common.Hash {
	return common.HashData([]byte{leafDomain}, mask.Bytes(), counts.serialize())
}

// combine merges two sibling nodes into their parent.
func combine(left, right Node) Node {
	parent := Node{Mask: left.Mask, Counts: maps.Clone(left.Counts)}
	if parent.Counts == nil {
		parent.Counts = Counts{}
	}
	parent.Mask.Or(right.Mask)
	parent.Counts.add(right.Counts)
	parent.Digest = interiorDigest(left.Digest, right.Digest, parent.Mask, parent.Counts)
	return parent
}

func interiorDigest(left, right common.Hash, mask common.FieldMask, counts Counts) common.Hash {
	return common.HashData([]byte{interiorDomain}, left[:], right[:], mask.Bytes(), counts.serialize())
}
