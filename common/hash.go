// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// HashSize is the byte length of all digests produced by this module.
const HashSize = 32

// Hash is a SHA3-256 digest. It is used for commitment tree nodes and for
// epoch root commitments.
type Hash [HashSize]byte

// HashData computes the SHA3-256 digest of the concatenation of the given
// byte slices.
func HashData(parts ...[]byte) Hash {
	h := sha3.New256()
	for _, part := range parts {
		h.Write(part)
	}
	var res Hash
	h.Sum(res[:0])
	return res
}

// EmptyHash returns the digest of the empty input. It is the digest assigned
// to neutral padding leaves in the commitment tree.
func EmptyHash() Hash {
	return HashData()
}

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}
