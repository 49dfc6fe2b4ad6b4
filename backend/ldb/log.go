// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package ldb persists delta streams and record snapshots in LevelDB.
package ldb

import (
	"fmt"
	"math"

	"github.com/0xsoniclabs/deltacurate/backend"
	"github.com/0xsoniclabs/deltacurate/codec"
	"github.com/0xsoniclabs/deltacurate/common"
	"github.com/0xsoniclabs/deltacurate/epoch"
	"github.com/0xsoniclabs/deltacurate/schema"
	"github.com/golang/snappy"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Log is a LevelDB backed delta log. Entries and snapshots are stored under
// per-record keys ordered by sequence number and snappy-compressed; the
// self-delimiting wire format carries everything needed to decode them back.
type Log struct {
	db     *backend.LevelDb
	schema *schema.Schema
}

// NewLog creates a delta log on the given database instance.
func NewLog(db *backend.LevelDb, s *schema.Schema) *Log {
	return &Log{db: db, schema: s}
}

func (l *Log) PutDelta(entry codec.DeltaEntry) error {
	var key DbKey
	key.SetTableKey(backend.DeltaKey, entry.RecordID)
	key.SetSequence(entry.Sequence)
	return l.db.Put(key.ToBytes(), snappy.Encode(nil, codec.EncodeDelta(entry)))
}

func (l *Log) PutSnapshot(epochID uint64, record *schema.Record) error {
	var key DbKey
	key.SetTableKey(backend.SnapshotKey, record.ID)
	key.SetSequence(record.Sequence)
	return l.db.Put(key.ToBytes(), snappy.Encode(nil, codec.EncodeSnapshot(l.schema, record, epochID)))
}

func (l *Log) LatestSnapshot(id common.RecordID, maxSequence uint64) (*schema.Record, error) {
	iter := l.db.Backend().NewIterator(keyRange(backend.SnapshotKey, id, 0, maxSequence), nil)
	defer iter.Release()
	if !iter.Last() {
		if err := iter.Error(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: record %s up to sequence %d", epoch.ErrSnapshotUnavailable, id, maxSequence)
	}
	raw, err := snappy.Decode(nil, iter.Value())
	if err != nil {
		return nil, fmt.Errorf("decompressing snapshot of record %s: %w", id, err)
	}
	record, _, err := codec.DecodeSnapshot(l.schema, raw)
	if err != nil {
		return nil, err
	}
	return record, iter.Error()
}

func (l *Log) Deltas(id common.RecordID, fromSequence, toSequence uint64) ([]codec.DeltaEntry, error) {
	iter := l.db.Backend().NewIterator(keyRange(backend.DeltaKey, id, fromSequence, toSequence), nil)
	defer iter.Release()
	var entries []codec.DeltaEntry
	for iter.Next() {
		raw, err := snappy.Decode(nil, iter.Value())
		if err != nil {
			return nil, fmt.Errorf("decompressing delta of record %s: %w", id, err)
		}
		entry, err := codec.DecodeDelta(l.schema, raw)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, iter.Error()
}

// keyRange builds the half-open LevelDB key range covering the sequences
// [from, to] of one record within a table space.
func keyRange(table backend.TableSpace, id common.RecordID, from, to uint64) *util.Range {
	var start, limit DbKey
	start.SetTableKey(table, id)
	start.SetSequence(from)
	limit.SetTableKey(table, id)
	if to == math.MaxUint64 {
		limit.SetMaxSequence()
		return &util.Range{Start: start.ToBytes(), Limit: append(limit.ToBytes(), 0x00)}
	}
	limit.SetSequence(to + 1)
	return &util.Range{Start: start.ToBytes(), Limit: limit.ToBytes()}
}
