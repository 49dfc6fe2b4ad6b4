// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package backend provides the on-disk building blocks of the delta engine:
// a LevelDB instance shared by all table spaces and the key layout that
// multiplexes them into it.
package backend

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// TableSpace is the single-byte prefix separating logical tables within one
// shared LevelDB instance.
type TableSpace byte

const (
	// DeltaKey is the table space of encoded delta entries.
	DeltaKey TableSpace = 'd'
	// SnapshotKey is the table space of full record snapshots.
	SnapshotKey TableSpace = 's'
)

// LevelDb wraps a single leveldb instance shared by all table spaces.
type LevelDb struct {
	db *leveldb.DB
}

// OpenLevelDb opens (creating if needed) a LevelDB instance at the given
// directory.
func OpenLevelDb(path string, options *opt.Options) (*LevelDb, error) {
	db, err := leveldb.OpenFile(path, options)
	if err != nil {
		return nil, err
	}
	return &LevelDb{db: db}, nil
}

// Backend returns the underlying leveldb instance for direct access.
func (l *LevelDb) Backend() *leveldb.DB {
	return l.db
}

func (l *LevelDb) Put(key, value []byte) error {
	return l.db.Put(key, value, nil)
}

func (l *LevelDb) Get(key []byte) ([]byte, error) {
	return l.db.Get(key, nil)
}

func (l *LevelDb) Close() error {
	return l.db.Close()
}
