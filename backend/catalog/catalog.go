// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package catalog keeps the append-only registry of sealed epoch artifacts
// in SQLite. Once an epoch's commitment is recorded it can never be
// replaced; re-publishing identical artifacts is a no-op so recovery after a
// crash between seal and publish stays safe.
package catalog

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"

	"github.com/0xsoniclabs/deltacurate/commit"
	"github.com/0xsoniclabs/deltacurate/common"
	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrCatalogConflict signals an attempt to overwrite a recorded epoch
	// artifact with different content.
	ErrCatalogConflict = errors.New("conflicting artifact for sealed epoch")

	// ErrUnknownEpoch signals a lookup of an epoch the catalog never saw.
	ErrUnknownEpoch = errors.New("unknown epoch")
)

const catalogSchema = `
CREATE TABLE IF NOT EXISTS commitments (
	epoch_id INTEGER PRIMARY KEY,
	root_digest BLOB NOT NULL,
	leaf_count INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS fingerprints (
	epoch_id INTEGER PRIMARY KEY,
	commitment BLOB NOT NULL
);
`

// Catalog is a SQLite backed commitment registry. It implements the
// publisher interface of the epoch manager.
type Catalog struct {
	db *sql.DB
}

// Open creates or opens a catalog database at the given path.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	// SQLite supports a single writer; a second connection would only
	// produce SQLITE_BUSY errors.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(catalogSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

func (c *Catalog) PublishCommitment(commitment commit.EpochCommitment) error {
	var digest []byte
	var leafCount uint64
	err := c.db.QueryRow(
		"SELECT root_digest, leaf_count FROM commitments WHERE epoch_id = ?",
		commitment.EpochID).Scan(&digest, &leafCount)
	if err == nil {
		if !bytes.Equal(digest, commitment.RootDigest[:]) || leafCount != commitment.LeafCount {
			return fmt.Errorf("%w: commitment of epoch %d", ErrCatalogConflict, commitment.EpochID)
		}
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	_, err = c.db.Exec(
		"INSERT INTO commitments (epoch_id, root_digest, leaf_count) VALUES (?, ?, ?)",
		commitment.EpochID, commitment.RootDigest[:], commitment.LeafCount)
	return err
}

func (c *Catalog) PublishFingerprint(fingerprint commit.FingerprintCommitment) error {
	var recorded []byte
	err := c.db.QueryRow(
		"SELECT commitment FROM fingerprints WHERE epoch_id = ?",
		fingerprint.EpochID).Scan(&recorded)
	if err == nil {
		if !bytes.Equal(recorded, fingerprint.Commitment[:]) {
			return fmt.Errorf("%w: fingerprint of epoch %d", ErrCatalogConflict, fingerprint.EpochID)
		}
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	_, err = c.db.Exec(
		"INSERT INTO fingerprints (epoch_id, commitment) VALUES (?, ?)",
		fingerprint.EpochID, fingerprint.Commitment[:])
	return err
}

// Commitment returns the recorded commitment of a sealed epoch.
func (c *Catalog) Commitment(epochID uint64) (commit.EpochCommitment, error) {
	var digest []byte
	var leafCount uint64
	err := c.db.QueryRow(
		"SELECT root_digest, leaf_count FROM commitments WHERE epoch_id = ?",
		epochID).Scan(&digest, &leafCount)
	if errors.Is(err, sql.ErrNoRows) {
		return commit.EpochCommitment{}, fmt.Errorf("%w: %d", ErrUnknownEpoch, epochID)
	}
	if err != nil {
		return commit.EpochCommitment{}, err
	}
	if len(digest) != len(common.Hash{}) {
		return commit.EpochCommitment{}, fmt.Errorf("corrupted root digest of epoch %d: %d bytes", epochID, len(digest))
	}
	result := commit.EpochCommitment{EpochID: epochID, LeafCount: leafCount}
	copy(result.RootDigest[:], digest)
	return result, nil
}

// Fingerprint returns the recorded fingerprint commitment of a sealed epoch.
func (c *Catalog) Fingerprint(epochID uint64) (commit.FingerprintCommitment, error) {
	var recorded []byte
	err := c.db.QueryRow(
		"SELECT commitment FROM fingerprints WHERE epoch_id = ?",
		epochID).Scan(&recorded)
	if errors.Is(err, sql.ErrNoRows) {
		return commit.FingerprintCommitment{}, fmt.Errorf("%w: %d", ErrUnknownEpoch, epochID)
	}
	if err != nil {
		return commit.FingerprintCommitment{}, err
	}
	result := commit.FingerprintCommitment{EpochID: epochID}
	if len(recorded) != len(result.Commitment) {
		return commit.FingerprintCommitment{}, fmt.Errorf("corrupted fingerprint of epoch %d: %d bytes", epochID, len(recorded))
	}
	copy(result.Commitment[:], recorded)
	return result, nil
}

// LastEpochID returns the highest epoch id with a recorded commitment.
func (c *Catalog) LastEpochID() (uint64, bool, error) {
	var epochID sql.NullInt64
	err := c.db.QueryRow("SELECT MAX(epoch_id) FROM commitments").Scan(&epochID)
	if err != nil {
		return 0, false, err
	}
	if !epochID.Valid {
		return 0, false, nil
	}
	return uint64(epochID.Int64), true, nil
}
