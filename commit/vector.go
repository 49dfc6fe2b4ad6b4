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
	"sync"

	"github.com/crate-crypto/go-ipa/banderwagon"
	"github.com/crate-crypto/go-ipa/ipa"
)

// VectorSize is the size of the value vector a vector commitment is made to.
const VectorSize = 256

// ipaConfig holds the precomputed commitment basis. Setup is expensive and
// only needed once per process.
var ipaConfig = sync.OnceValue(func() *ipa.IPAConfig {
	conf, err := ipa.NewIPASettings()
	if err != nil {
		panic(err)
	}
	return conf
})

// VectorCommitment is a Pedersen commitment to a vector of 256 values, a
// point on the Banderwagon curve. It is used to commit epoch fingerprints in
// constant size.
//
// For background on the Pedersen commitment scheme, see:
// https://rareskills.io/post/pedersen-commitment
type VectorCommitment struct {
	point banderwagon.Element
}

// CommitVector creates a commitment to the given value vector.
func CommitVector(values [VectorSize]uint64) VectorCommitment {
	elements := make([]banderwagon.Fr, VectorSize)
	for i, value := range values {
		elements[i].SetUint64(value)
	}
	return VectorCommitment{point: ipaConfig().Commit(elements)}
}

// Compress returns the canonical 32-byte serialized form of the commitment.
func (c VectorCommitment) Compress() [32]byte {
	return c.point.Bytes()
}
