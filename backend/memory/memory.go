// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package memory provides in-memory implementations of the delta log and
// commitment registry, used by tests and the diagnostic tooling.
package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/0xsoniclabs/deltacurate/codec"
	"github.com/0xsoniclabs/deltacurate/commit"
	"github.com/0xsoniclabs/deltacurate/common"
	"github.com/0xsoniclabs/deltacurate/epoch"
	"github.com/0xsoniclabs/deltacurate/schema"
)

// Log is an in-memory delta log.
type Log struct {
	mu        sync.Mutex
	deltas    map[common.RecordID][]codec.DeltaEntry
	snapshots map[common.RecordID][]*schema.Record
}

func NewLog() *Log {
	return &Log{
		deltas:    map[common.RecordID][]codec.DeltaEntry{},
		snapshots: map[common.RecordID][]*schema.Record{},
	}
}

func (l *Log) PutDelta(entry codec.DeltaEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := l.deltas[entry.RecordID]
	l.deltas[entry.RecordID] = append(entries, entry)
	return nil
}

func (l *Log) PutSnapshot(epochID uint64, record *schema.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	snapshots := l.snapshots[record.ID]
	// Re-snapshotting the same sequence replaces the previous entry.
	for i, snapshot := range snapshots {
		if snapshot.Sequence == record.Sequence {
			snapshots[i] = record.Clone()
			return nil
		}
	}
	l.snapshots[record.ID] = append(snapshots, record.Clone())
	return nil
}

func (l *Log) LatestSnapshot(id common.RecordID, maxSequence uint64) (*schema.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var best *schema.Record
	for _, snapshot := range l.snapshots[id] {
		if snapshot.Sequence > maxSequence {
			continue
		}
		if best == nil || snapshot.Sequence > best.Sequence {
			best = snapshot
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: record %s up to sequence %d", epoch.ErrSnapshotUnavailable, id, maxSequence)
	}
	return best.Clone(), nil
}

func (l *Log) Deltas(id common.RecordID, fromSequence, toSequence uint64) ([]codec.DeltaEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var entries []codec.DeltaEntry
	for _, entry := range l.deltas[id] {
		if entry.Sequence >= fromSequence && entry.Sequence <= toSequence {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Sequence < entries[j].Sequence
	})
	return entries, nil
}

// Registry is an in-memory commitment registry with the same append-only
// conflict rules as the SQLite catalog.
type Registry struct {
	mu           sync.Mutex
	commitments  map[uint64]commit.EpochCommitment
	fingerprints map[uint64]commit.FingerprintCommitment
}

func NewRegistry() *Registry {
	return &Registry{
		commitments:  map[uint64]commit.EpochCommitment{},
		fingerprints: map[uint64]commit.FingerprintCommitment{},
	}
}

func (r *Registry) PublishCommitment(commitment commit.EpochCommitment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if recorded, exists := r.commitments[commitment.EpochID]; exists {
		if recorded != commitment {
			return fmt.Errorf("conflicting commitment for sealed epoch %d", commitment.EpochID)
		}
		return nil
	}
	r.commitments[commitment.EpochID] = commitment
	return nil
}

func (r *Registry) PublishFingerprint(fingerprint commit.FingerprintCommitment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if recorded, exists := r.fingerprints[fingerprint.EpochID]; exists {
		if recorded != fingerprint {
			return fmt.Errorf("conflicting fingerprint for sealed epoch %d", fingerprint.EpochID)
		}
		return nil
	}
	r.fingerprints[fingerprint.EpochID] = fingerprint
	return nil
}

// Commitment returns the recorded commitment of a sealed epoch.
func (r *Registry) Commitment(epochID uint64) (commit.EpochCommitment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	commitment, exists := r.commitments[epochID]
	return commitment, exists
}

// Fingerprint returns the recorded fingerprint commitment of a sealed epoch.
func (r *Registry) Fingerprint(epochID uint64) (commit.FingerprintCommitment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fingerprint, exists := r.fingerprints[epochID]
	return fingerprint, exists
}
