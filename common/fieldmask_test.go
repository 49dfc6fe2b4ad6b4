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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFieldMask_SetAndGet(t *testing.T) {
	require := require.New(t)
	ordinals := []byte{0, 1, 2, 3, 4, 5, 63, 64, 127, 128, 191, 192, 255}

	var mask FieldMask
	for i, ordinal := range ordinals {
		for j := range ordinals {
			require.Equal(j < i, mask.Get(ordinals[j]), "Before setting: i=%d,j=%d", i, j)
		}
		mask.Set(ordinal)
		for j := range ordinals {
			require.Equal(j <= i, mask.Get(ordinals[j]), "After setting: i=%d,j=%d", i, j)
		}
	}
}

func TestFieldMask_Any_TrueIfAnyBitIsSet(t *testing.T) {
	require := require.New(t)
	ordinals := []byte{0, 1, 63, 64, 127, 128, 191, 192, 255}

	for _, ordinal := range ordinals {
		var mask FieldMask
		require.False(mask.Any(), "Mask should be empty initially")
		mask.Set(ordinal)
		require.True(mask.Any(), "Mask should report non-empty after setting ordinal %d", ordinal)
	}
}

func TestFieldMask_Or_MergesMasks(t *testing.T) {
	require := require.New(t)

	var a, b FieldMask
	a.Set(3)
	a.Set(70)
	b.Set(70)
	b.Set(200)

	a.Or(b)
	require.True(a.Get(3))
	require.True(a.Get(70))
	require.True(a.Get(200))
	require.Equal(3, a.PopCount())
}

func TestFieldMask_Ordinals_AreAscending(t *testing.T) {
	require := require.New(t)

	var mask FieldMask
	for _, ordinal := range []byte{200, 5, 64, 0, 130} {
		mask.Set(ordinal)
	}
	require.Equal([]byte{0, 5, 64, 130, 200}, mask.Ordinals())
}

func TestFieldMask_Bytes_RoundTrip(t *testing.T) {
	require := require.New(t)

	var mask FieldMask
	mask.Set(0)
	mask.Set(65)
	mask.Set(255)

	restored := FieldMaskFromBytes(mask.Bytes())
	require.Equal(mask, restored)
}

func TestFieldMask_PopCount_CountsAllWords(t *testing.T) {
	require := require.New(t)

	var mask FieldMask
	require.Zero(mask.PopCount())
	for _, ordinal := range []byte{1, 63, 64, 128, 254, 255} {
		mask.Set(ordinal)
	}
	require.Equal(6, mask.PopCount())
}
