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
	"github.com/0xsoniclabs/deltacurate/codec"
)

// Fingerprint dimensions. Width classes occupy the low half of the
// commitment vector, the pair co-occurrence sketch the high half.
const (
	numWidthClasses   = 65 // gamma width classes; classes 2..64 are populated
	numCoOccurBuckets = 128
	coOccurOffset     = VectorSize - numCoOccurBuckets
)

// Fingerprint is the statistical shape of one epoch's delta stream: the
// distribution of packed width classes across all numeric deltas, and a
// bucketed sketch of which field pairs change together. It reveals aggregate
// shape only, never field values, and lets a verifier test whether a later
// disclosed dataset matches the shape committed at seal time.
type Fingerprint struct {
	WidthClasses [numWidthClasses]uint64
	CoOccurrence [numCoOccurBuckets]uint64
}

// Observe folds one delta entry into the fingerprint.
func (f *Fingerprint) Observe(entry *codec.DeltaEntry) {
	for _, class := range entry.WidthClasses {
		if int(class) < numWidthClasses {
			f.WidthClasses[class]++
		}
	}
	ordinals := entry.Mask.Ordinals()
	for i := 0; i < len(ordinals); i++ {
		for j := i + 1; j < len(ordinals); j++ {
			f.CoOccurrence[pairBucket(ordinals[i], ordinals[j])]++
		}
	}
}

// pairBucket maps an ordered ordinal pair (i < j) onto one of the sketch
// buckets. The mapping is fixed; interoperability depends on it.
func pairBucket(i, j byte) int {
	return (int(i)*131 + int(j)) % numCoOccurBuckets
}

// Equal reports whether two fingerprints describe the same statistical shape.
func (f *Fingerprint) Equal(other *Fingerprint) bool {
	return *f == *other
}

// vector lays the fingerprint out as the fixed-size value vector the
// commitment is made to.
func (f *Fingerprint) vector() [VectorSize]uint64 {
	var res [VectorSize]uint64
	copy(res[:numWidthClasses], f.WidthClasses[:])
	copy(res[coOccurOffset:], f.CoOccurrence[:])
	return res
}

// Commit produces the published fingerprint commitment for an epoch, a
// sibling artifact to the epoch's root commitment.
func (f *Fingerprint) Commit(epochID uint64) FingerprintCommitment {
	return FingerprintCommitment{
		EpochID:    epochID,
		Commitment: CommitVector(f.vector()).Compress(),
	}
}

// FingerprintCommitment is the published, fixed-size fingerprint artifact,
// keyed by epoch id.
type FingerprintCommitment struct {
	EpochID    uint64
	Commitment [32]byte
}

// Matches tests whether a fingerprint recomputed from a disclosed dataset has
// the statistical shape committed for this epoch.
func (c FingerprintCommitment) Matches(f *Fingerprint) bool {
	return CommitVector(f.vector()).Compress() == c.Commitment
}
