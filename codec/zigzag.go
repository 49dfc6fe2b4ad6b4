// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package codec

import "math/bits"

// zigzag maps signed integers to unsigned so small magnitudes of either sign
// map to small values: 0 -> 0, -1 -> 1, 1 -> 2, -2 -> 3, ...
func zigzag(v int64) uint64 {
	return uint64(v<<1) ^ uint64(v>>63)
}

// unzigzag is the inverse of zigzag.
func unzigzag(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

// widthClass returns the gamma width class a non-zero delta is packed in.
// The class is the bit length of zigzag(delta)+1, which is identical for +m
// and -m. Class numbering starts at 2, the smallest non-zero class.
func widthClass(delta int64) uint8 {
	return uint8(bits.Len64(zigzag(delta) + 1))
}
