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
	"fmt"
	"sync"
	"testing"

	"github.com/0xsoniclabs/deltacurate/backend/memory"
	"github.com/0xsoniclabs/deltacurate/codec"
	"github.com/0xsoniclabs/deltacurate/commit"
	"github.com/0xsoniclabs/deltacurate/common"
	"github.com/0xsoniclabs/deltacurate/epoch"
	"github.com/0xsoniclabs/deltacurate/schema"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New("account", []schema.FieldSpec{
		{Name: "a", Ordinal: 0, Kind: schema.KindInt, BitWidth: 32},
		{Name: "b", Ordinal: 1, Kind: schema.KindInt, BitWidth: 32},
	})
	require.NoError(t, err)
	return s
}

func TestManager_Append_TracksMaskOfChangedFieldsOnly(t *testing.T) {
	require := require.New(t)
	s := testSchema(t)
	manager := epoch.NewManager(s, memory.NewLog(), memory.NewRegistry(), epoch.Config{})
	defer manager.Close()
	id := common.NewRecordID()

	first := schema.NewRecord(id, 1)
	first.Set(0, schema.IntValue(5)).Set(1, schema.IntValue(10))
	entry, err := manager.Append(first)
	require.NoError(err)
	require.True(entry.Mask.Get(0))
	require.True(entry.Mask.Get(1))

	second := schema.NewRecord(id, 2)
	second.Set(0, schema.IntValue(6)).Set(1, schema.IntValue(10))
	entry, err = manager.Append(second)
	require.NoError(err)
	require.True(entry.Mask.Get(0), "field a changed by +1")
	require.False(entry.Mask.Get(1), "field b did not change")
	require.Equal(1, entry.NumDeltas())
}

func TestManager_Append_SequenceGapIsRejected(t *testing.T) {
	require := require.New(t)
	s := testSchema(t)
	manager := epoch.NewManager(s, memory.NewLog(), memory.NewRegistry(), epoch.Config{})
	defer manager.Close()
	id := common.NewRecordID()

	record := schema.NewRecord(id, 1)
	record.Set(0, schema.IntValue(1))
	_, err := manager.Append(record)
	require.NoError(err)

	skipped := schema.NewRecord(id, 3)
	skipped.Set(0, schema.IntValue(2))
	_, err = manager.Append(skipped)
	require.ErrorIs(err, epoch.ErrSequenceGap)
}

func TestManager_Append_WidthOverflowForcesSnapshotWithoutClosingEpoch(t *testing.T) {
	require := require.New(t)
	s, err := schema.New("narrow", []schema.FieldSpec{
		{Name: "v", Ordinal: 0, Kind: schema.KindInt, BitWidth: 8},
	})
	require.NoError(err)

	log := memory.NewLog()
	manager := epoch.NewManager(s, log, memory.NewRegistry(), epoch.Config{})
	defer manager.Close()
	id := common.NewRecordID()

	record := schema.NewRecord(id, 1)
	record.Set(0, schema.IntValue(-100))
	_, err = manager.Append(record)
	require.NoError(err)

	// both values fit 8 bits, but the jump between them does not; the append
	// must fall back to a snapshot
	jump := schema.NewRecord(id, 2)
	jump.Set(0, schema.IntValue(100))
	entry, err := manager.Append(jump)
	require.NoError(err)
	require.False(entry.Mask.Any(), "delta after a forced snapshot is empty")
	require.Equal(uint64(0), manager.OpenEpochID(), "epoch must stay open")

	snapshot, err := log.LatestSnapshot(id, 2)
	require.NoError(err)
	require.Equal(uint64(2), snapshot.Sequence)
	require.Equal(int64(100), snapshot.Get(0).Int())

	// the stream stays replayable across the snapshot boundary
	replayed, err := epoch.Reconstruct(s, log, id, 2)
	require.NoError(err)
	require.Equal(int64(100), replayed.Get(0).Int())
}

func TestManager_Append_ValueBeyondFieldWidthIsRejected(t *testing.T) {
	require := require.New(t)
	s, err := schema.New("narrow", []schema.FieldSpec{
		{Name: "v", Ordinal: 0, Kind: schema.KindInt, BitWidth: 8},
	})
	require.NoError(err)

	log := memory.NewLog()
	manager := epoch.NewManager(s, log, memory.NewRegistry(), epoch.Config{})
	defer manager.Close()
	id := common.NewRecordID()

	record := schema.NewRecord(id, 1)
	record.Set(0, schema.IntValue(1))
	_, err = manager.Append(record)
	require.NoError(err)

	// 100001 cannot be represented in 8 bits at all; no snapshot can save it
	// and the append must fail instead of storing a truncated value
	jump := schema.NewRecord(id, 2)
	jump.Set(0, schema.IntValue(100001))
	_, err = manager.Append(jump)
	require.ErrorIs(err, codec.ErrWidthOverflow)

	_, err = log.LatestSnapshot(id, 2)
	require.ErrorIs(err, epoch.ErrSnapshotUnavailable, "rejected value must leave no snapshot")

	// the record accepts further in-width updates at the refused sequence
	next := schema.NewRecord(id, 2)
	next.Set(0, schema.IntValue(2))
	_, err = manager.Append(next)
	require.NoError(err)
}

func TestManager_RotationByCount_IsLosslessAcrossEpochs(t *testing.T) {
	require := require.New(t)
	s := testSchema(t)
	log := memory.NewLog()
	registry := memory.NewRegistry()
	manager := epoch.NewManager(s, log, registry, epoch.Config{MaxDeltasPerEpoch: 4})
	defer manager.Close()

	ids := []common.RecordID{common.NewRecordID(), common.NewRecordID()}
	const numUpdates = 10
	for sequence := uint64(1); sequence <= numUpdates; sequence++ {
		for i, id := range ids {
			record := schema.NewRecord(id, sequence)
			record.Set(0, schema.IntValue(int64(sequence)*int64(i+1)))
			record.Set(1, schema.IntValue(-int64(sequence)))
			_, err := manager.Append(record)
			require.NoError(err)
		}
	}
	require.Greater(manager.OpenEpochID(), uint64(0), "rotations must have happened")

	// every epoch sealed so far has a published commitment
	for epochID := uint64(0); epochID < manager.OpenEpochID(); epochID++ {
		commitment, exists := registry.Commitment(epochID)
		require.True(exists, "missing commitment of epoch %d", epochID)
		require.NotZero(commitment.LeafCount)
		_, exists = registry.Fingerprint(epochID)
		require.True(exists, "missing fingerprint of epoch %d", epochID)
	}

	// every intermediate state is reconstructable
	for sequence := uint64(1); sequence <= numUpdates; sequence++ {
		for i, id := range ids {
			record, err := epoch.Reconstruct(s, log, id, sequence)
			require.NoError(err, "record %d at sequence %d", i, sequence)
			require.Equal(int64(sequence)*int64(i+1), record.Get(0).Int())
			require.Equal(-int64(sequence), record.Get(1).Int())
		}
	}
}

func TestManager_CloseEpoch_PublishesMatchingCommitment(t *testing.T) {
	require := require.New(t)
	s := testSchema(t)
	registry := memory.NewRegistry()
	manager := epoch.NewManager(s, memory.NewLog(), registry, epoch.Config{})
	defer manager.Close()
	id := common.NewRecordID()

	record := schema.NewRecord(id, 1)
	record.Set(0, schema.IntValue(5))
	_, err := manager.Append(record)
	require.NoError(err)

	commitment, err := manager.CloseEpoch()
	require.NoError(err)
	require.Equal(uint64(0), commitment.EpochID)
	require.Equal(uint64(1), commitment.LeafCount)
	require.Equal(uint64(1), manager.OpenEpochID())

	published, exists := registry.Commitment(0)
	require.True(exists)
	require.Equal(commitment, published)
}

func TestManager_SealedEpochServesProofs(t *testing.T) {
	require := require.New(t)
	s := testSchema(t)
	manager := epoch.NewManager(s, memory.NewLog(), memory.NewRegistry(), epoch.Config{})
	defer manager.Close()
	id := common.NewRecordID()

	// field b changes at sequence 1 only; field a changes at both
	first := schema.NewRecord(id, 1)
	first.Set(0, schema.IntValue(5)).Set(1, schema.IntValue(10))
	second := schema.NewRecord(id, 2)
	second.Set(0, schema.IntValue(6)).Set(1, schema.IntValue(10))
	for _, record := range []*schema.Record{first, second} {
		_, err := manager.Append(record)
		require.NoError(err)
	}
	commitment, err := manager.CloseEpoch()
	require.NoError(err)

	sealed, exists := manager.SealedEpoch(0)
	require.True(exists)

	proof, err := sealed.ProveExclusion(1, 2, 2)
	require.NoError(err)
	require.NoError(proof.Verify(commitment))

	frequency := sealed.ProveFrequency(0)
	require.NoError(frequency.Verify(commitment))
	require.Equal(uint64(2), frequency.Frequency.Count())

	manager.DropSealedBefore(1)
	_, exists = manager.SealedEpoch(0)
	require.False(exists)
}

func TestManager_SnapshotFor_ReturnsIsolatedCopy(t *testing.T) {
	require := require.New(t)
	s := testSchema(t)
	manager := epoch.NewManager(s, memory.NewLog(), memory.NewRegistry(), epoch.Config{})
	defer manager.Close()
	id := common.NewRecordID()

	_, exists := manager.SnapshotFor(id)
	require.False(exists)

	record := schema.NewRecord(id, 1)
	record.Set(0, schema.IntValue(5))
	_, err := manager.Append(record)
	require.NoError(err)

	snapshot, exists := manager.SnapshotFor(id)
	require.True(exists)
	require.Equal(int64(5), snapshot.Get(0).Int())

	snapshot.Set(0, schema.IntValue(99))
	unchanged, _ := manager.SnapshotFor(id)
	require.Equal(int64(5), unchanged.Get(0).Int())
}

func TestManager_Close_RejectsFurtherOperations(t *testing.T) {
	require := require.New(t)
	s := testSchema(t)
	manager := epoch.NewManager(s, memory.NewLog(), memory.NewRegistry(), epoch.Config{})
	require.NoError(manager.Close())
	require.NoError(manager.Close(), "closing twice is fine")

	record := schema.NewRecord(common.NewRecordID(), 1)
	record.Set(0, schema.IntValue(1))
	_, err := manager.Append(record)
	require.ErrorIs(err, epoch.ErrManagerClosed)
	_, err = manager.CloseEpoch()
	require.ErrorIs(err, epoch.ErrManagerClosed)
}

func TestManager_PublisherFailureSurfacesOnRotation(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)
	s := testSchema(t)

	injected := fmt.Errorf("injected publish failure")
	publisher := epoch.NewMockCommitmentPublisher(ctrl)
	publisher.EXPECT().PublishCommitment(gomock.Any()).Return(injected)

	manager := epoch.NewManager(s, memory.NewLog(), publisher, epoch.Config{})
	defer manager.Close()

	record := schema.NewRecord(common.NewRecordID(), 1)
	record.Set(0, schema.IntValue(1))
	_, err := manager.Append(record)
	require.NoError(err)

	_, err = manager.CloseEpoch()
	require.ErrorIs(err, injected)
}

func TestManager_DeltaLogFailureSurfacesOnAppend(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)
	s := testSchema(t)

	injected := fmt.Errorf("injected put failure")
	log := epoch.NewMockDeltaLog(ctrl)
	log.EXPECT().PutDelta(gomock.Any()).Return(injected)

	manager := epoch.NewManager(s, log, memory.NewRegistry(), epoch.Config{})
	defer manager.Close()

	record := schema.NewRecord(common.NewRecordID(), 1)
	record.Set(0, schema.IntValue(1))
	_, err := manager.Append(record)
	require.ErrorIs(err, injected)
}

// The full ingest-seal-replay-prove cycle over a two-field record: sequence 1
// seals into the first epoch and becomes the base snapshot of the second, so
// the second epoch's leaves carry exactly one changed field each.
func TestManager_EndToEnd_SealReplayAndProve(t *testing.T) {
	require := require.New(t)
	s := testSchema(t)
	log := memory.NewLog()
	manager := epoch.NewManager(s, log, memory.NewRegistry(), epoch.Config{})
	defer manager.Close()
	id := common.NewRecordID()

	base := schema.NewRecord(id, 1)
	base.Set(0, schema.IntValue(10)).Set(1, schema.IntValue(5))
	_, err := manager.Append(base)
	require.NoError(err)
	_, err = manager.CloseEpoch()
	require.NoError(err)

	second := schema.NewRecord(id, 2)
	second.Set(0, schema.IntValue(10)).Set(1, schema.IntValue(7))
	entry, err := manager.Append(second)
	require.NoError(err)
	require.False(entry.Mask.Get(0))
	require.True(entry.Mask.Get(1), "only b changed at sequence 2")

	third := schema.NewRecord(id, 3)
	third.Set(0, schema.IntValue(12)).Set(1, schema.IntValue(7))
	entry, err = manager.Append(third)
	require.NoError(err)
	require.True(entry.Mask.Get(0), "only a changed at sequence 3")
	require.False(entry.Mask.Get(1))

	commitment, err := manager.CloseEpoch()
	require.NoError(err)
	require.Equal(uint64(1), commitment.EpochID)
	require.Equal(uint64(2), commitment.LeafCount)

	replayed, err := epoch.Reconstruct(s, log, id, 3)
	require.NoError(err)
	require.Equal(int64(12), replayed.Get(0).Int())
	require.Equal(int64(7), replayed.Get(1).Int())

	sealed, exists := manager.SealedEpoch(1)
	require.True(exists)

	// a is untouched up to sequence 2, but changes at sequence 3
	proof, err := sealed.ProveExclusion(0, 1, 2)
	require.NoError(err)
	require.NoError(proof.Verify(commitment))

	_, err = sealed.ProveExclusion(0, 1, 3)
	require.ErrorIs(err, commit.ErrMaskAssertionFailed)
}

func TestManager_Append_ConcurrentEntitiesStayLossless(t *testing.T) {
	require := require.New(t)
	s := testSchema(t)
	log := memory.NewLog()
	manager := epoch.NewManager(s, log, memory.NewRegistry(), epoch.Config{MaxDeltasPerEpoch: 64})
	defer manager.Close()

	const entities = 16
	const updates = 50
	ids := make([]common.RecordID, entities)
	for i := range ids {
		ids[i] = common.NewRecordID()
	}

	var wg sync.WaitGroup
	errs := make([]error, entities)
	for i := range entities {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for seq := uint64(1); seq <= updates; seq++ {
				record := schema.NewRecord(ids[i], seq)
				record.Set(0, schema.IntValue(int64(seq)*int64(i+1)))
				record.Set(1, schema.IntValue(-int64(seq)))
				if _, err := manager.Append(record); err != nil {
					errs[i] = err
					return
				}
			}
		}()
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(err, "entity %d", i)
	}

	_, err := manager.CloseEpoch()
	require.NoError(err)

	for i, id := range ids {
		replayed, err := epoch.Reconstruct(s, log, id, updates)
		require.NoError(err)
		require.Equal(int64(updates)*int64(i+1), replayed.Get(0).Int())
		require.Equal(int64(-updates), replayed.Get(1).Int())
		require.Equal(uint64(updates), replayed.Sequence)
	}
}

func TestManager_UpdateSchema_AllowsAdditiveEvolutionOnly(t *testing.T) {
	require := require.New(t)
	s := testSchema(t)
	manager := epoch.NewManager(s, memory.NewLog(), memory.NewRegistry(), epoch.Config{})
	defer manager.Close()
	id := common.NewRecordID()

	record := schema.NewRecord(id, 1)
	record.Set(0, schema.IntValue(1))
	_, err := manager.Append(record)
	require.NoError(err)

	// appending a field is fine and makes it usable immediately
	extended, err := s.Extend(schema.FieldSpec{Name: "c", Ordinal: 2, Kind: schema.KindUint, BitWidth: 16})
	require.NoError(err)
	require.NoError(manager.UpdateSchema(extended))
	require.Equal(extended, manager.Schema())

	next := schema.NewRecord(id, 2)
	next.Set(0, schema.IntValue(2)).Set(2, schema.UintValue(7))
	entry, err := manager.Append(next)
	require.NoError(err)
	require.True(entry.Mask.Get(2))

	// redefining an existing field violates the evolution contract
	redefined, err := schema.New("account", []schema.FieldSpec{
		{Name: "a", Ordinal: 0, Kind: schema.KindUint, BitWidth: 32},
		{Name: "b", Ordinal: 1, Kind: schema.KindInt, BitWidth: 32},
	})
	require.NoError(err)
	require.ErrorIs(manager.UpdateSchema(redefined), schema.ErrSchemaMismatch)
	require.Equal(extended, manager.Schema(), "a refused update must not take effect")

	// dropping a field is just as illegal
	narrowed, err := schema.New("account", []schema.FieldSpec{
		{Name: "a", Ordinal: 0, Kind: schema.KindInt, BitWidth: 32},
	})
	require.NoError(err)
	require.ErrorIs(manager.UpdateSchema(narrowed), schema.ErrSchemaMismatch)
}

// ensure the mock satisfies the interface used by the log-backed tests
var _ epoch.DeltaLog = (*epoch.MockDeltaLog)(nil)
