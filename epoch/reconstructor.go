// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package epoch

import (
	"errors"
	"fmt"

	"github.com/0xsoniclabs/deltacurate/codec"
	"github.com/0xsoniclabs/deltacurate/common"
	"github.com/0xsoniclabs/deltacurate/schema"
)

// Reconstruct rebuilds the full state of a record at the given sequence
// number by locating the nearest retained snapshot at or below it and
// replaying the delta chain forward. A record whose delta stream starts at
// sequence 1 replays from the implicit zero-valued record without needing a
// snapshot.
func Reconstruct(s *schema.Schema, log DeltaLog, id common.RecordID, targetSequence uint64) (*schema.Record, error) {
	base, err := log.LatestSnapshot(id, targetSequence)
	synthetic := false
	if errors.Is(err, ErrSnapshotUnavailable) {
		base = schema.NewRecord(id, 0)
		synthetic = true
	} else if err != nil {
		return nil, fmt.Errorf("loading snapshot of record %s: %w", id, err)
	}
	if base.Sequence == targetSequence {
		return base, nil
	}
	if base.Sequence > targetSequence {
		return nil, fmt.Errorf("%w: record %s snapshot at sequence %d exceeds target %d",
			ErrSnapshotUnavailable, id, base.Sequence, targetSequence)
	}

	entries, err := log.Deltas(id, base.Sequence+1, targetSequence)
	if err != nil {
		return nil, fmt.Errorf("loading deltas of record %s: %w", id, err)
	}

	current := base
	expected := base.Sequence + 1
	for _, entry := range entries {
		if entry.Sequence != expected {
			if synthetic && current == base {
				// The head of the stream was pruned and no snapshot covers
				// the remainder; retention was violated, not the log.
				return nil, fmt.Errorf("%w: record %s delta stream starts at sequence %d",
					ErrSnapshotUnavailable, id, entry.Sequence)
			}
			return nil, fmt.Errorf("%w: record %s jumps from sequence %d to %d",
				ErrSequenceGap, id, expected-1, entry.Sequence)
		}
		current, err = codec.Apply(s, current, entry)
		if err != nil {
			return nil, fmt.Errorf("replaying record %s at sequence %d: %w", id, entry.Sequence, err)
		}
		expected++
	}
	if expected != targetSequence+1 {
		if synthetic && len(entries) == 0 {
			return nil, fmt.Errorf("%w: record %s has no retained history", ErrSnapshotUnavailable, id)
		}
		return nil, fmt.Errorf("%w: record %s delta stream ends at sequence %d, target %d",
			ErrSequenceGap, id, expected-1, targetSequence)
	}
	return current, nil
}
