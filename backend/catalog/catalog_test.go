// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package catalog

import (
	"path/filepath"
	"testing"

	"github.com/0xsoniclabs/deltacurate/commit"
	"github.com/0xsoniclabs/deltacurate/common"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	catalog, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, catalog.Close())
	})
	return catalog
}

func testCommitment(epochID uint64) commit.EpochCommitment {
	return commit.EpochCommitment{
		EpochID:    epochID,
		RootDigest: common.HashData([]byte{byte(epochID)}),
		LeafCount:  epochID * 10,
	}
}

func TestCatalog_PublishCommitment_RoundTrip(t *testing.T) {
	require := require.New(t)
	catalog := testCatalog(t)
	commitment := testCommitment(3)

	require.NoError(catalog.PublishCommitment(commitment))
	got, err := catalog.Commitment(3)
	require.NoError(err)
	require.Equal(commitment, got)
}

func TestCatalog_PublishCommitment_IdenticalRepublishIsIgnored(t *testing.T) {
	require := require.New(t)
	catalog := testCatalog(t)
	commitment := testCommitment(3)

	require.NoError(catalog.PublishCommitment(commitment))
	require.NoError(catalog.PublishCommitment(commitment))

	got, err := catalog.Commitment(3)
	require.NoError(err)
	require.Equal(commitment, got)
}

func TestCatalog_PublishCommitment_ConflictingRepublishIsRefused(t *testing.T) {
	require := require.New(t)
	catalog := testCatalog(t)
	commitment := testCommitment(3)
	require.NoError(catalog.PublishCommitment(commitment))

	conflicting := commitment
	conflicting.LeafCount++
	require.ErrorIs(catalog.PublishCommitment(conflicting), ErrCatalogConflict)

	conflicting = commitment
	conflicting.RootDigest[0] ^= 0xff
	require.ErrorIs(catalog.PublishCommitment(conflicting), ErrCatalogConflict)

	// the recorded artifact stays untouched
	got, err := catalog.Commitment(3)
	require.NoError(err)
	require.Equal(commitment, got)
}

func TestCatalog_PublishFingerprint_AppendOnlySemantics(t *testing.T) {
	require := require.New(t)
	catalog := testCatalog(t)
	fingerprint := commit.FingerprintCommitment{EpochID: 7}
	fingerprint.Commitment[0] = 0x42

	require.NoError(catalog.PublishFingerprint(fingerprint))
	require.NoError(catalog.PublishFingerprint(fingerprint))

	conflicting := fingerprint
	conflicting.Commitment[1] = 0x99
	require.ErrorIs(catalog.PublishFingerprint(conflicting), ErrCatalogConflict)

	got, err := catalog.Fingerprint(7)
	require.NoError(err)
	require.Equal(fingerprint, got)
}

func TestCatalog_Lookup_UnknownEpochIsReported(t *testing.T) {
	require := require.New(t)
	catalog := testCatalog(t)

	_, err := catalog.Commitment(12)
	require.ErrorIs(err, ErrUnknownEpoch)

	_, err = catalog.Fingerprint(12)
	require.ErrorIs(err, ErrUnknownEpoch)
}

func TestCatalog_LastEpochID_TracksHighestCommitment(t *testing.T) {
	require := require.New(t)
	catalog := testCatalog(t)

	_, exists, err := catalog.LastEpochID()
	require.NoError(err)
	require.False(exists)

	for _, epochID := range []uint64{0, 4, 2} {
		require.NoError(catalog.PublishCommitment(testCommitment(epochID)))
	}

	last, exists, err := catalog.LastEpochID()
	require.NoError(err)
	require.True(exists)
	require.Equal(uint64(4), last)
}

func TestCatalog_ArtifactsSurviveReopen(t *testing.T) {
	require := require.New(t)
	path := filepath.Join(t.TempDir(), "catalog.db")
	commitment := testCommitment(1)

	catalog, err := Open(path)
	require.NoError(err)
	require.NoError(catalog.PublishCommitment(commitment))
	require.NoError(catalog.Close())

	catalog, err = Open(path)
	require.NoError(err)
	defer catalog.Close()
	got, err := catalog.Commitment(1)
	require.NoError(err)
	require.Equal(commitment, got)
}
