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
	"errors"
	"fmt"
	"math/bits"

	"github.com/0xsoniclabs/deltacurate/common"
	"github.com/ethereum/go-ethereum/rlp"
)

var (
	// ErrRootMismatch reports that a proof's recomputed root digest does not
	// match the known commitment. A rejected proof is an expected, reportable
	// outcome, not a fault.
	ErrRootMismatch = errors.New("recomputed root does not match commitment")

	// ErrMaskAssertionFailed reports that a field asserted to be unchanged
	// was in fact changed somewhere in the covered range.
	ErrMaskAssertionFailed = errors.New("field changed within the covered range")

	// ErrMalformedProof reports a proof whose structure does not allow the
	// root to be recomputed from the claimed leaf count.
	ErrMalformedProof = errors.New("malformed proof")

	// ErrEmptySequenceRange reports an exclusion query over a sequence range
	// containing no committed delta entries.
	ErrEmptySequenceRange = errors.New("no delta entries in sequence range")

	// ErrCommitmentMismatch reports a proof checked against a commitment of a
	// different epoch or leaf count.
	ErrCommitmentMismatch = errors.New("proof does not speak about the given commitment")
)

// CountPair is one per-ordinal change counter in a proof's wire form.
type CountPair struct {
	Ordinal uint64
	Count   uint64
}

// ProofNode is one tree node disclosed by a proof: its heap position, digest,
// presence mask, and change counters. Covering nodes additionally disclose
// the digests of their two children so the verifier can recompute the node
// digest from its preimage instead of trusting the claimed mask. Left and
// Right stay zero for leaf nodes and for authentication nodes.
type ProofNode struct {
	Position uint64
	Digest   common.Hash
	Mask     [32]byte
	Counts   []CountPair
	Left     common.Hash
	Right    common.Hash
}

func newProofNode(position int, node Node) ProofNode {
	res := ProofNode{
		Position: uint64(position),
		Digest:   node.Digest,
		Mask:     [32]byte(node.Mask.Bytes()),
	}
	for ordinal := range common.MaxOrdinals {
		if count, ok := node.Counts[byte(ordinal)]; ok {
			res.Counts = append(res.Counts, CountPair{Ordinal: uint64(ordinal), Count: count})
		}
	}
	return res
}

func (p *ProofNode) toNode() Node {
	node := Node{
		Digest: p.Digest,
		Mask:   common.FieldMaskFromBytes(p.Mask[:]),
		Counts: Counts{},
	}
	for _, pair := range p.Counts {
		node.Counts[byte(pair.Ordinal)] = pair.Count
	}
	return node
}

// ExclusionProof asserts that one field did not change in a range of
// committed delta entries. It carries the canonical decomposition of the
// covered leaf range plus the complementary nodes needed to recompute the
// root. The binding of sequence numbers to leaf positions is attested by the
// generator; the commitment binds leaf positions.
type ExclusionProof struct {
	EpochID   uint64
	LeafCount uint64
	Ordinal   uint64
	FirstLeaf uint64
	LastLeaf  uint64
	Covering  []ProofNode
	Auth      []ProofNode
}

// FrequencyProof reveals the number of committed delta entries in which one
// field changed, by disclosing the root node's preimage. No per-leaf data is
// revealed.
type FrequencyProof struct {
	EpochID     uint64
	LeafCount   uint64
	Ordinal     uint64
	LeftDigest  common.Hash
	RightDigest common.Hash
	Mask        [32]byte
	Counts      []CountPair
}

// Count returns the disclosed change count for the proven ordinal. The value
// is only trustworthy after Verify succeeded.
func (p *FrequencyProof) Count() uint64 {
	for _, pair := range p.Counts {
		if pair.Ordinal == p.Ordinal {
			return pair.Count
		}
	}
	return 0
}

// Proof is the tagged variant over the supported proof types. Exactly one of
// its fields is set.
type Proof struct {
	Exclusion *ExclusionProof `rlp:"nil"`
	Frequency *FrequencyProof `rlp:"nil"`
}

// MarshalBinary serializes the proof for transport using RLP.
func (p *Proof) MarshalBinary() ([]byte, error) {
	return rlp.EncodeToBytes(p)
}

// UnmarshalBinary parses a transported proof.
func (p *Proof) UnmarshalBinary(data []byte) error {
	return rlp.DecodeBytes(data, p)
}

// EpochID returns the id of the epoch the proof speaks about.
func (p *Proof) EpochID() uint64 {
	switch {
	case p.Exclusion != nil:
		return p.Exclusion.EpochID
	case p.Frequency != nil:
		return p.Frequency.EpochID
	}
	return 0
}

// Verify checks the proof against a known epoch commitment. It is a pure
// function of the proof and the commitment's root digest and leaf count; no
// raw record data is consulted. A nil result means the proof's statement
// holds under the given commitment.
func (p *Proof) Verify(commitment EpochCommitment) error {
	switch {
	case p.Exclusion != nil && p.Frequency == nil:
		return p.Exclusion.verify(commitment)
	case p.Frequency != nil && p.Exclusion == nil:
		return p.Frequency.verify(commitment)
	}
	return fmt.Errorf("%w: proof must carry exactly one variant", ErrMalformedProof)
}

// ProveExclusion builds a proof that the field with the given ordinal did not
// change in any delta entry whose sequence number lies in [fromSeq, toSeq].
// If the field did change there, no proof can exist and ErrMaskAssertionFailed
// is reported.
func (e *SealedEpoch) ProveExclusion(ordinal byte, fromSeq, toSeq uint64) (*Proof, error) {
	first, last, ok := e.leafRange(fromSeq, toSeq)
	if !ok {
		return nil, fmt.Errorf("%w: epoch %d, sequences [%d, %d]",
			ErrEmptySequenceRange, e.epochID, fromSeq, toSeq)
	}

	covering := decomposeRange(e.padded, first, last)
	proof := &ExclusionProof{
		EpochID:   e.epochID,
		LeafCount: uint64(e.leafCount),
		Ordinal:   uint64(ordinal),
		FirstLeaf: uint64(first),
		LastLeaf:  uint64(last),
	}
	inCovering := map[int]bool{}
	for _, pos := range covering {
		node := e.node(pos)
		if node.Mask.Get(ordinal) {
			return nil, fmt.Errorf("%w: ordinal %d in epoch %d", ErrMaskAssertionFailed, ordinal, e.epochID)
		}
		disclosed := newProofNode(pos, node)
		if pos < e.padded-1 {
			disclosed.Left = e.node(2*pos + 1).Digest
			disclosed.Right = e.node(2*pos + 2).Digest
		}
		proof.Covering = append(proof.Covering, disclosed)
		inCovering[pos] = true
	}
	for _, pos := range authPositions(e.padded, first, last, inCovering) {
		proof.Auth = append(proof.Auth, newProofNode(pos, e.node(pos)))
	}
	return &Proof{Exclusion: proof}, nil
}

// ProveFrequency builds a proof of the exact number of delta entries in this
// epoch whose presence mask includes the given ordinal.
func (e *SealedEpoch) ProveFrequency(ordinal byte) *Proof {
	root := e.Root()
	proof := &FrequencyProof{
		EpochID:   e.epochID,
		LeafCount: uint64(e.leafCount),
		Ordinal:   uint64(ordinal),
		Mask:      [32]byte(root.Mask.Bytes()),
	}
	for o := range common.MaxOrdinals {
		if count, ok := root.Counts[byte(o)]; ok {
			proof.Counts = append(proof.Counts, CountPair{Ordinal: uint64(o), Count: count})
		}
	}
	if e.padded > 1 {
		proof.LeftDigest = e.node(1).Digest
		proof.RightDigest = e.node(2).Digest
	}
	return &Proof{Frequency: proof}
}

func (p *ExclusionProof) verify(commitment EpochCommitment) error {
	if p.EpochID != commitment.EpochID || p.LeafCount != commitment.LeafCount {
		return fmt.Errorf("%w: proof covers epoch %d with %d leaves, commitment is epoch %d with %d leaves",
			ErrCommitmentMismatch, p.EpochID, p.LeafCount, commitment.EpochID, commitment.LeafCount)
	}
	leafCount := int(p.LeafCount)
	first, last := int(p.FirstLeaf), int(p.LastLeaf)
	padded := paddedLeafCount(leafCount)
	if first > last || last >= leafCount || leafCount < 0 {
		return fmt.Errorf("%w: leaf range [%d, %d] out of bounds", ErrMalformedProof, first, last)
	}

	// The covering nodes must be exactly the canonical decomposition of the
	// claimed leaf range and the authentication nodes exactly its complement;
	// the tree shape is fixed by the committed leaf count alone. Covering
	// digests are recomputed from their disclosed preimages so the masks the
	// exclusion check runs on are bound to the digest chain.
	expected := decomposeRange(padded, first, last)
	if len(expected) != len(p.Covering) {
		return fmt.Errorf("%w: covering set does not match leaf range", ErrMalformedProof)
	}
	provided := map[int]Node{}
	inCovering := map[int]bool{}
	for i, proofNode := range p.Covering {
		pos := int(proofNode.Position)
		if pos != expected[i] {
			return fmt.Errorf("%w: covering set does not match leaf range", ErrMalformedProof)
		}
		node := proofNode.toNode()
		if node.Mask.Get(byte(p.Ordinal)) {
			return fmt.Errorf("%w: ordinal %d", ErrMaskAssertionFailed, p.Ordinal)
		}
		if pos >= padded-1 {
			node.Digest = leafDigest(node.Mask, node.Counts)
		} else {
			node.Digest = interiorDigest(proofNode.Left, proofNode.Right, node.Mask, node.Counts)
		}
		provided[pos] = node
		inCovering[pos] = true
	}
	auth := authPositions(padded, first, last, inCovering)
	if len(auth) != len(p.Auth) {
		return fmt.Errorf("%w: authentication set does not match leaf range", ErrMalformedProof)
	}
	for i, proofNode := range p.Auth {
		if int(proofNode.Position) != auth[i] {
			return fmt.Errorf("%w: authentication set does not match leaf range", ErrMalformedProof)
		}
		provided[auth[i]] = proofNode.toNode()
	}

	recomputed, err := resolveNode(0, padded, provided)
	if err != nil {
		return err
	}
	if recomputed.Digest != commitment.RootDigest {
		return fmt.Errorf("%w: epoch %d", ErrRootMismatch, p.EpochID)
	}
	return nil
}

func (p *FrequencyProof) verify(commitment EpochCommitment) error {
	if p.EpochID != commitment.EpochID || p.LeafCount != commitment.LeafCount {
		return fmt.Errorf("%w: proof covers epoch %d with %d leaves, commitment is epoch %d with %d leaves",
			ErrCommitmentMismatch, p.EpochID, p.LeafCount, commitment.EpochID, commitment.LeafCount)
	}
	mask := common.FieldMaskFromBytes(p.Mask[:])
	counts := Counts{}
	for _, pair := range p.Counts {
		if pair.Ordinal >= common.MaxOrdinals {
			return fmt.Errorf("%w: ordinal %d out of range", ErrMalformedProof, pair.Ordinal)
		}
		counts[byte(pair.Ordinal)] = pair.Count
	}

	var digest common.Hash
	if paddedLeafCount(int(p.LeafCount)) == 1 {
		digest = leafDigest(mask, counts)
	} else {
		digest = interiorDigest(p.LeftDigest, p.RightDigest, mask, counts)
	}
	if digest != commitment.RootDigest {
		return fmt.Errorf("%w: epoch %d", ErrRootMismatch, p.EpochID)
	}
	return nil
}

// resolveNode recomputes the node at the given heap position from the
// provided partial node set, combining children recursively.
func resolveNode(position, padded int, provided map[int]Node) (Node, error) {
	if node, ok := provided[position]; ok {
		return node, nil
	}
	if position >= padded-1 {
		return Node{}, fmt.Errorf("%w: node at position %d missing", ErrMalformedProof, position)
	}
	left, err := resolveNode(2*position+1, padded, provided)
	if err != nil {
		return Node{}, err
	}
	right, err := resolveNode(2*position+2, padded, provided)
	if err != nil {
		return Node{}, err
	}
	return combine(left, right), nil
}

// decomposeRange returns the canonical decomposition of the leaf index range
// [first, last] into maximal aligned subtrees, as heap positions in
// left-to-right order.
func decomposeRange(padded, first, last int) []int {
	var positions []int
	for i := first; i <= last; {
		size := 1
		for {
			next := size * 2
			if i%next != 0 || i+next-1 > last {
				break
			}
			size = next
		}
		pos := leafPosition(padded, i)
		for s := size; s > 1; s /= 2 {
			pos = (pos - 1) / 2
		}
		positions = append(positions, pos)
		i += size
	}
	return positions
}

// authPositions returns the positions of the subtrees outside the covered
// leaf range that are needed to recompute the root, in depth-first order.
func authPositions(padded, first, last int, covering map[int]bool) []int {
	var res []int
	var walk func(pos int)
	walk = func(pos int) {
		if covering[pos] {
			return
		}
		lo, hi := leafSpan(padded, pos)
		if hi < first || lo > last {
			res = append(res, pos)
			return
		}
		walk(2*pos + 1)
		walk(2*pos + 2)
	}
	walk(0)
	return res
}

// leafSpan returns the range of leaf indices covered by the subtree rooted at
// the given heap position.
func leafSpan(padded, position int) (int, int) {
	level := bits.Len(uint(position+1)) - 1
	span := padded >> level
	lo := (position + 1 - 1<<level) * span
	return lo, lo + span - 1
}
