// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ldb

import (
	"math"
	"testing"

	"github.com/0xsoniclabs/deltacurate/backend"
	"github.com/0xsoniclabs/deltacurate/codec"
	"github.com/0xsoniclabs/deltacurate/common"
	"github.com/0xsoniclabs/deltacurate/epoch"
	"github.com/0xsoniclabs/deltacurate/schema"
	"github.com/stretchr/testify/require"
)

func testLog(t *testing.T) (*Log, *schema.Schema) {
	t.Helper()
	s, err := schema.New("account", []schema.FieldSpec{
		{Name: "balance", Ordinal: 0, Kind: schema.KindInt, BitWidth: 48},
		{Name: "nonce", Ordinal: 1, Kind: schema.KindUint, BitWidth: 32},
		{Name: "code", Ordinal: 2, Kind: schema.KindBytes},
	})
	require.NoError(t, err)
	db, err := backend.OpenLevelDb(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return NewLog(db, s), s
}

// writeHistory appends numUpdates consecutive deltas for the given record and
// returns them in sequence order.
func writeHistory(t *testing.T, log *Log, s *schema.Schema, id common.RecordID, numUpdates int) []codec.DeltaEntry {
	t.Helper()
	entries := make([]codec.DeltaEntry, 0, numUpdates)
	var prev *schema.Record
	for sequence := uint64(1); sequence <= uint64(numUpdates); sequence++ {
		cur := schema.NewRecord(id, sequence)
		cur.Set(0, schema.IntValue(int64(sequence)*7-20))
		cur.Set(1, schema.UintValue(sequence))
		entry, err := codec.Encode(s, prev, cur)
		require.NoError(t, err)
		entry.EpochID = sequence / 4
		require.NoError(t, log.PutDelta(entry))
		entries = append(entries, entry)
		prev = cur
	}
	return entries
}

func TestLog_Deltas_ReturnsRequestedRangeInOrder(t *testing.T) {
	require := require.New(t)
	log, s := testLog(t)
	id := common.NewRecordID()
	entries := writeHistory(t, log, s, id, 5)

	// an unrelated record must not leak into the range
	writeHistory(t, log, s, common.NewRecordID(), 5)

	got, err := log.Deltas(id, 2, 4)
	require.NoError(err)
	require.Equal(entries[1:4], got)
}

func TestLog_Deltas_OpenUpperBoundCoversFullHistory(t *testing.T) {
	require := require.New(t)
	log, s := testLog(t)
	id := common.NewRecordID()
	entries := writeHistory(t, log, s, id, 5)

	got, err := log.Deltas(id, 1, math.MaxUint64)
	require.NoError(err)
	require.Equal(entries, got)
}

func TestLog_Deltas_UnknownRecordYieldsEmptyResult(t *testing.T) {
	require := require.New(t)
	log, _ := testLog(t)

	got, err := log.Deltas(common.NewRecordID(), 1, 10)
	require.NoError(err)
	require.Empty(got)
}

func TestLog_LatestSnapshot_PicksNearestBelowBound(t *testing.T) {
	require := require.New(t)
	log, _ := testLog(t)
	id := common.NewRecordID()

	for _, sequence := range []uint64{2, 5} {
		record := schema.NewRecord(id, sequence)
		record.Set(0, schema.IntValue(-int64(sequence)))
		record.Set(2, schema.BytesValue([]byte{byte(sequence)}))
		require.NoError(log.PutSnapshot(1, record))
	}

	record, err := log.LatestSnapshot(id, 4)
	require.NoError(err)
	require.Equal(uint64(2), record.Sequence)
	require.Equal(int64(-2), record.Get(0).Int())

	record, err = log.LatestSnapshot(id, 5)
	require.NoError(err)
	require.Equal(uint64(5), record.Sequence)

	record, err = log.LatestSnapshot(id, math.MaxUint64)
	require.NoError(err)
	require.Equal(uint64(5), record.Sequence)
	require.Equal([]byte{5}, record.Get(2).Bytes())
}

func TestLog_LatestSnapshot_MissingSnapshotIsReported(t *testing.T) {
	require := require.New(t)
	log, _ := testLog(t)
	id := common.NewRecordID()

	_, err := log.LatestSnapshot(id, math.MaxUint64)
	require.ErrorIs(err, epoch.ErrSnapshotUnavailable)

	record := schema.NewRecord(id, 5)
	record.Set(0, schema.IntValue(1))
	require.NoError(log.PutSnapshot(0, record))

	_, err = log.LatestSnapshot(id, 4)
	require.ErrorIs(err, epoch.ErrSnapshotUnavailable)
}

func TestLog_SnapshotSurvivesCompressedRoundTrip(t *testing.T) {
	require := require.New(t)
	log, s := testLog(t)
	id := common.NewRecordID()

	record := schema.NewRecord(id, 9)
	record.Set(0, schema.IntValue(-123456789))
	record.Set(1, schema.UintValue(42))
	record.Set(2, schema.BytesValue([]byte("contract code")))
	require.NoError(log.PutSnapshot(3, record))

	restored, err := log.LatestSnapshot(id, 9)
	require.NoError(err)
	require.True(record.Equal(restored, s))
	require.Equal(record.Sequence, restored.Sequence)
	require.Equal(record.ID, restored.ID)
}
