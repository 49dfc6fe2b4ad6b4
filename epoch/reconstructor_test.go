// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package epoch_test

import (
	"testing"

	"github.com/0xsoniclabs/deltacurate/backend/memory"
	"github.com/0xsoniclabs/deltacurate/codec"
	"github.com/0xsoniclabs/deltacurate/common"
	"github.com/0xsoniclabs/deltacurate/epoch"
	"github.com/0xsoniclabs/deltacurate/schema"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestReconstruct_RecordBornInFirstEpochNeedsNoSnapshot(t *testing.T) {
	require := require.New(t)
	s := testSchema(t)
	log := memory.NewLog()
	id := common.NewRecordID()

	var prev *schema.Record
	for sequence := uint64(1); sequence <= 3; sequence++ {
		cur := schema.NewRecord(id, sequence)
		cur.Set(0, schema.IntValue(int64(sequence * 10)))
		entry, err := codec.Encode(s, prev, cur)
		require.NoError(err)
		require.NoError(log.PutDelta(entry))
		prev = cur
	}

	record, err := epoch.Reconstruct(s, log, id, 2)
	require.NoError(err)
	require.Equal(int64(20), record.Get(0).Int())
	require.Equal(uint64(2), record.Sequence)
}

func TestReconstruct_UsesNearestSnapshotBelowTarget(t *testing.T) {
	require := require.New(t)
	s := testSchema(t)
	log := memory.NewLog()
	id := common.NewRecordID()

	// snapshot at sequence 5, deltas 6 and 7 on top
	snapshot := schema.NewRecord(id, 5)
	snapshot.Set(0, schema.IntValue(50))
	require.NoError(log.PutSnapshot(1, snapshot))

	prev := snapshot
	for sequence := uint64(6); sequence <= 7; sequence++ {
		cur := prev.Clone()
		cur.Sequence = sequence
		cur.Set(0, schema.IntValue(int64(sequence*10)))
		entry, err := codec.Encode(s, prev, cur)
		require.NoError(err)
		require.NoError(log.PutDelta(entry))
		prev = cur
	}

	record, err := epoch.Reconstruct(s, log, id, 7)
	require.NoError(err)
	require.Equal(int64(70), record.Get(0).Int())

	record, err = epoch.Reconstruct(s, log, id, 5)
	require.NoError(err)
	require.Equal(int64(50), record.Get(0).Int())
}

func TestReconstruct_GapInDeltaStreamIsDetected(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)
	s := testSchema(t)
	id := common.NewRecordID()

	base := schema.NewRecord(id, 1)
	base.Set(0, schema.IntValue(1))

	// the log returns sequences 2 and 4, with 3 missing
	log := epoch.NewMockDeltaLog(ctrl)
	log.EXPECT().LatestSnapshot(id, uint64(4)).Return(base, nil)
	log.EXPECT().Deltas(id, uint64(2), uint64(4)).Return([]codec.DeltaEntry{
		{RecordID: id, Sequence: 2},
		{RecordID: id, Sequence: 4},
	}, nil)

	_, err := epoch.Reconstruct(s, log, id, 4)
	require.ErrorIs(err, epoch.ErrSequenceGap)
}

func TestReconstruct_MissingStreamTailIsDetected(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)
	s := testSchema(t)
	id := common.NewRecordID()

	base := schema.NewRecord(id, 1)
	log := epoch.NewMockDeltaLog(ctrl)
	log.EXPECT().LatestSnapshot(id, uint64(3)).Return(base, nil)
	log.EXPECT().Deltas(id, uint64(2), uint64(3)).Return([]codec.DeltaEntry{
		{RecordID: id, Sequence: 2},
	}, nil)

	_, err := epoch.Reconstruct(s, log, id, 3)
	require.ErrorIs(err, epoch.ErrSequenceGap)
}

func TestReconstruct_PrunedHistoryIsReportedAsRetentionViolation(t *testing.T) {
	require := require.New(t)
	s := testSchema(t)
	log := memory.NewLog()
	id := common.NewRecordID()

	// only a delta at sequence 5 is retained, no snapshot covers it
	entry := codec.DeltaEntry{RecordID: id, Sequence: 5}
	require.NoError(log.PutDelta(entry))

	_, err := epoch.Reconstruct(s, log, id, 5)
	require.ErrorIs(err, epoch.ErrSnapshotUnavailable)
}

func TestReconstruct_UnknownRecordIsReported(t *testing.T) {
	s := testSchema(t)
	_, err := epoch.Reconstruct(s, memory.NewLog(), common.NewRecordID(), 3)
	require.ErrorIs(t, err, epoch.ErrSnapshotUnavailable)
}
