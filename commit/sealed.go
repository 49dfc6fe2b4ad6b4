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

// SealedEpoch is the immutable commitment tree of a closed epoch. It serves
// proof generation; verification only needs the published EpochCommitment.
type SealedEpoch struct {
	epochID     uint64
	leafCount   int // number of real leaves, before padding
	padded      int
	nodes       []Node // heap-layout arena of size 2*padded-1
	refs        []LeafRef
	fingerprint Fingerprint
}

// EpochID returns the sealed epoch's identifier.
func (e *SealedEpoch) EpochID() uint64 {
	return e.epochID
}

// LeafCount returns the number of delta entries committed in this epoch.
func (e *SealedEpoch) LeafCount() int {
	return e.leafCount
}

// Root returns the tree's root node.
func (e *SealedEpoch) Root() Node {
	return e.nodes[0]
}

// Commitment returns the published artifact of this epoch: root digest and
// leaf count. It is the only data a verifier needs besides the proof itself.
func (e *SealedEpoch) Commitment() EpochCommitment {
	return EpochCommitment{
		EpochID:    e.epochID,
		RootDigest: e.nodes[0].Digest,
		LeafCount:  uint64(e.leafCount),
	}
}

// Fingerprint returns the epoch's statistical fingerprint.
func (e *SealedEpoch) Fingerprint() Fingerprint {
	return e.fingerprint
}

// FingerprintCommitment returns the published fingerprint commitment, a
// sibling artifact to the epoch commitment.
func (e *SealedEpoch) FingerprintCommitment() FingerprintCommitment {
	return e.fingerprint.Commit(e.epochID)
}

// leafRange returns the positions of the first and last real leaf whose
// sequence number falls into [fromSeq, toSeq], in leaf index space. The
// second return value is false if no leaf is in range.
func (e *SealedEpoch) leafRange(fromSeq, toSeq uint64) (int, int, bool) {
	first, last := -1, -1
	for i, ref := range e.refs {
		if ref.Sequence < fromSeq || ref.Sequence > toSeq {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	return first, last, first >= 0
}

// node returns the node at the given heap position.
func (e *SealedEpoch) node(position int) Node {
	return e.nodes[position]
}
