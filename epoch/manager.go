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

//go:generate mockgen -source manager.go -destination manager_mocks.go -package epoch

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0xsoniclabs/deltacurate/codec"
	"github.com/0xsoniclabs/deltacurate/commit"
	"github.com/0xsoniclabs/deltacurate/common"
	"github.com/0xsoniclabs/deltacurate/common/future"
	"github.com/0xsoniclabs/deltacurate/common/result"
	"github.com/0xsoniclabs/deltacurate/schema"
)

var (
	// ErrSnapshotUnavailable signals that no retained snapshot covers the
	// requested sequence. This indicates a retention policy violation and is
	// surfaced, not retried; replay cannot invent missing data.
	ErrSnapshotUnavailable = errors.New("no covering snapshot retained")

	// ErrSequenceGap signals a missing sequence number in a delta stream.
	// This must never happen for a well-formed log and indicates corruption.
	ErrSequenceGap = errors.New("sequence gap in delta stream")

	// ErrManagerClosed signals an operation on a manager that was shut down.
	ErrManagerClosed = errors.New("epoch manager closed")
)

// DeltaLog is the persistence interface the epoch manager writes through and
// the reconstructor reads from.
type DeltaLog interface {
	// PutDelta persists an encoded delta entry.
	PutDelta(entry codec.DeltaEntry) error
	// PutSnapshot persists a full record as a replay base within an epoch.
	PutSnapshot(epochID uint64, record *schema.Record) error
	// LatestSnapshot returns the most recent persisted snapshot of the
	// record with a sequence number <= maxSequence, or
	// ErrSnapshotUnavailable if none is retained.
	LatestSnapshot(id common.RecordID, maxSequence uint64) (*schema.Record, error)
	// Deltas returns the persisted delta entries of a record with sequence
	// numbers in [fromSequence, toSequence], in ascending sequence order.
	Deltas(id common.RecordID, fromSequence, toSequence uint64) ([]codec.DeltaEntry, error)
}

// CommitmentPublisher receives the durable artifacts of every sealed epoch.
type CommitmentPublisher interface {
	PublishCommitment(commitment commit.EpochCommitment) error
	PublishFingerprint(fingerprint commit.FingerprintCommitment) error
}

// Config carries the epoch rotation policy.
type Config struct {
	// MaxDeltasPerEpoch closes the epoch once this many deltas were
	// ingested. Zero selects a default of 1<<16.
	MaxDeltasPerEpoch int
	// MaxEpochAge closes the epoch once this much time passed since it was
	// opened. Zero disables the time trigger.
	MaxEpochAge time.Duration
	// MaxBufferedLeaves bounds the aggregator's leaf buffer; reaching the
	// bound forces an epoch close.
	MaxBufferedLeaves int
	// Now is the clock used for the age trigger; defaults to time.Now.
	Now func() time.Time
	// Logger receives rotation and seal events; defaults to slog.Default.
	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.MaxDeltasPerEpoch <= 0 {
		c.MaxDeltasPerEpoch = 1 << 16
	}
	if c.MaxBufferedLeaves <= 0 {
		c.MaxBufferedLeaves = commit.DefaultMaxBufferedLeaves
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// numStripes is the number of snapshot stripes; record ids spread over
// stripes by their first byte, which is uniformly random for the ids
// produced by common.NewRecordID.
const numStripes = 256

// snapshotStripe holds the running snapshots of all records routed to one
// stripe. Appends of records in different stripes encode in parallel; only
// the aggregator ingest in Manager.ingest serializes them.
type snapshotStripe struct {
	mu        sync.Mutex
	snapshots map[common.RecordID]*schema.Record
}

// Manager owns the currently open epoch: the running snapshot of every
// active record, the epoch's aggregator, and the rotation policy. Snapshots
// are striped by record id, so appends of different entities run the
// sequence check and the delta encoding concurrently; partition ingestion by
// record id (see Pipeline) to exploit this. The delta stream itself has a
// single writer, the ingest step, which keeps the leaf order of each epoch
// well defined.
//
// Sealing runs on a background worker; the manager does not open a new epoch
// until the previous epoch's commitment has been computed, keeping epoch ids
// monotonic and commitments well ordered.
type Manager struct {
	schema    atomic.Pointer[schema.Schema]
	registry  *schema.Registry
	log       DeltaLog
	publisher CommitmentPublisher
	cfg       Config

	stripes [numStripes]snapshotStripe

	epochID atomic.Uint64
	closed  atomic.Bool

	// mu guards the open epoch: its aggregator, delta count, and rotation.
	mu           sync.Mutex
	opened       time.Time
	deltaCount   int
	agg          *commit.Aggregator
	sealedEpochs map[uint64]*commit.SealedEpoch

	commands chan sealRequest
	done     chan struct{}
}

// sealRequest asks the background worker to seal an aggregator and publish
// the resulting artifacts.
type sealRequest struct {
	agg     *commit.Aggregator
	promise future.Promise[result.Result[*commit.SealedEpoch]]
}

// NewManager creates a manager with an open epoch 0.
func NewManager(s *schema.Schema, log DeltaLog, publisher CommitmentPublisher, cfg Config) *Manager {
	cfg.applyDefaults()
	m := &Manager{
		registry:     schema.NewRegistry(),
		log:          log,
		publisher:    publisher,
		cfg:          cfg,
		opened:       cfg.Now(),
		agg:          commit.NewAggregator(0, cfg.MaxBufferedLeaves),
		sealedEpochs: map[uint64]*commit.SealedEpoch{},
		commands:     make(chan sealRequest),
		done:         make(chan struct{}),
	}
	m.schema.Store(s)
	// registering into a fresh registry cannot conflict
	_ = m.registry.Register(s)
	for i := range m.stripes {
		m.stripes[i].snapshots = map[common.RecordID]*schema.Record{}
	}
	go m.runSealWorker()
	return m
}

func (m *Manager) runSealWorker() {
	defer close(m.done)
	for request := range m.commands {
		epochID := request.agg.EpochID()
		sealed, err := request.agg.Seal()
		if err == nil && m.publisher != nil {
			if e := m.publisher.PublishCommitment(sealed.Commitment()); e != nil {
				err = fmt.Errorf("publishing commitment of epoch %d: %w", epochID, e)
			} else if e := m.publisher.PublishFingerprint(sealed.FingerprintCommitment()); e != nil {
				err = fmt.Errorf("publishing fingerprint of epoch %d: %w", epochID, e)
			}
		}
		if err != nil {
			request.promise.Fulfill(result.Err[*commit.SealedEpoch](err))
			continue
		}
		m.cfg.Logger.Info("epoch sealed",
			"epoch", epochID,
			"leaves", sealed.LeafCount(),
			"root", sealed.Root().Digest.String())
		request.promise.Fulfill(result.Ok(sealed))
	}
}

func (m *Manager) stripe(id common.RecordID) *snapshotStripe {
	return &m.stripes[id[0]]
}

// Append encodes the next record of its entity into a delta entry, persists
// it, and feeds it to the open epoch's aggregator. Records of the same
// entity must arrive in sequence order; records of different entities may be
// interleaved freely. A WidthOverflow during encoding forces an out-of-band
// snapshot for the affected record only and retries the encode once, without
// closing the epoch.
func (m *Manager) Append(cur *schema.Record) (codec.DeltaEntry, error) {
	if m.closed.Load() {
		return codec.DeltaEntry{}, ErrManagerClosed
	}
	stripe := m.stripe(cur.ID)
	entry, prev, err := m.encode(stripe, cur)
	if err != nil {
		return codec.DeltaEntry{}, err
	}
	if err := m.ingest(&entry); err != nil {
		// Roll back the stripe so a caller retrying the same sequence is not
		// refused as a gap.
		stripe.mu.Lock()
		if prev == nil {
			delete(stripe.snapshots, cur.ID)
		} else {
			stripe.snapshots[cur.ID] = prev
		}
		stripe.mu.Unlock()
		return codec.DeltaEntry{}, err
	}
	return entry, nil
}

// encode runs the per-record part of an append under the record's stripe
// lock: the sequence check, the delta encoding, and the forced-snapshot
// recovery. It returns the encoded entry without an epoch tag plus the
// previous snapshot for rollback.
func (m *Manager) encode(stripe *snapshotStripe, cur *schema.Record) (codec.DeltaEntry, *schema.Record, error) {
	s := m.schema.Load()
	stripe.mu.Lock()
	defer stripe.mu.Unlock()

	prev := stripe.snapshots[cur.ID]
	if prev != nil && cur.Sequence != prev.Sequence+1 {
		return codec.DeltaEntry{}, nil, fmt.Errorf("%w: record %s has sequence %d, expected %d",
			ErrSequenceGap, cur.ID, cur.Sequence, prev.Sequence+1)
	}

	entry, err := codec.Encode(s, prev, cur)
	if errors.Is(err, codec.ErrWidthOverflow) {
		// A delta overflow between two in-width values is recovered by a
		// forced snapshot. The retry is checked before anything is persisted,
		// so a record value that itself exceeds its field width is rejected
		// without leaving a trace in the log.
		snapshot := cur.Clone()
		retried, retryErr := codec.Encode(s, snapshot, cur)
		if retryErr != nil {
			return codec.DeltaEntry{}, nil, retryErr
		}
		if err := m.log.PutSnapshot(m.epochID.Load(), snapshot); err != nil {
			return codec.DeltaEntry{}, nil, fmt.Errorf("persisting forced snapshot: %w", err)
		}
		entry, err = retried, nil
	}
	if err != nil {
		return codec.DeltaEntry{}, nil, err
	}
	stripe.snapshots[cur.ID] = cur.Clone()
	return entry, prev, nil
}

// ingest persists the entry and feeds it to the open epoch's aggregator.
// This is the serialization point shared by all stripes. Rotation triggers
// are checked before tagging so the entry lands in the epoch it is counted
// against.
func (m *Manager) ingest(entry *codec.DeltaEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed.Load() {
		return ErrManagerClosed
	}
	if m.rotationDue() {
		if _, err := m.rotate(); err != nil {
			return err
		}
	}
	entry.EpochID = m.epochID.Load()
	if err := m.log.PutDelta(*entry); err != nil {
		return fmt.Errorf("persisting delta: %w", err)
	}
	if err := m.agg.Ingest(*entry); err != nil {
		return err
	}
	m.deltaCount++
	return nil
}

func (m *Manager) rotationDue() bool {
	if m.deltaCount == 0 {
		return false
	}
	if m.deltaCount >= m.cfg.MaxDeltasPerEpoch {
		return true
	}
	if m.deltaCount >= m.cfg.MaxBufferedLeaves {
		return true
	}
	if m.cfg.MaxEpochAge > 0 && m.cfg.Now().Sub(m.opened) >= m.cfg.MaxEpochAge {
		return true
	}
	return false
}

// rotate seals the open epoch through the background worker, waits for its
// commitment, and opens the successor epoch with fresh snapshots for every
// active record. Callers must hold mu; appenders never wait on mu while
// holding a stripe lock, so taking the stripe locks here cannot deadlock.
func (m *Manager) rotate() (commit.EpochCommitment, error) {
	promise, pending := future.Create[result.Result[*commit.SealedEpoch]]()
	m.commands <- sealRequest{agg: m.agg, promise: promise}
	sealed, err := pending.Await().Get()
	if err != nil {
		return commit.EpochCommitment{}, err
	}
	m.sealedEpochs[sealed.EpochID()] = sealed

	next := m.epochID.Add(1)
	m.opened = m.cfg.Now()
	m.deltaCount = 0
	m.agg = commit.NewAggregator(next, m.cfg.MaxBufferedLeaves)
	records := 0
	for i := range m.stripes {
		stripe := &m.stripes[i]
		stripe.mu.Lock()
		for _, record := range stripe.snapshots {
			if err := m.log.PutSnapshot(next, record); err != nil {
				stripe.mu.Unlock()
				return commit.EpochCommitment{}, fmt.Errorf("persisting epoch %d base snapshot: %w", next, err)
			}
			records++
		}
		stripe.mu.Unlock()
	}
	m.cfg.Logger.Info("epoch opened", "epoch", next, "records", records)
	return sealed.Commitment(), nil
}

// CloseEpoch seals the currently open epoch and opens its successor. It
// returns the sealed epoch's commitment.
func (m *Manager) CloseEpoch() (commit.EpochCommitment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed.Load() {
		return commit.EpochCommitment{}, ErrManagerClosed
	}
	return m.rotate()
}

// UpdateSchema switches the manager to a new version of its record schema.
// The registry enforces the additive evolution contract: every field of the
// previously registered version must survive unchanged, new fields may only
// be appended. Appends running concurrently keep using the version they
// loaded at entry.
func (m *Manager) UpdateSchema(s *schema.Schema) error {
	if err := m.registry.Register(s); err != nil {
		return err
	}
	m.schema.Store(s)
	return nil
}

// Schema returns the currently active record schema.
func (m *Manager) Schema() *schema.Schema {
	return m.schema.Load()
}

// SnapshotFor returns a copy of the most recent full state of a record, the
// replay base used for live queries against the open epoch.
func (m *Manager) SnapshotFor(id common.RecordID) (*schema.Record, bool) {
	stripe := m.stripe(id)
	stripe.mu.Lock()
	defer stripe.mu.Unlock()
	record, ok := stripe.snapshots[id]
	if !ok {
		return nil, false
	}
	return record.Clone(), true
}

// SealedEpoch returns the retained commitment tree of a sealed epoch, used
// for proof generation. Only sealed epochs serve committed proofs; the open
// epoch serves live queries via SnapshotFor.
func (m *Manager) SealedEpoch(epochID uint64) (*commit.SealedEpoch, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sealed, ok := m.sealedEpochs[epochID]
	return sealed, ok
}

// DropSealedBefore releases the retained trees of all sealed epochs with an
// id lower than the given bound. Published commitments remain verifiable;
// only local proof generation for dropped epochs becomes impossible. This is
// the primitive retention policies are built on.
func (m *Manager) DropSealedBefore(epochID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.sealedEpochs {
		if id < epochID {
			delete(m.sealedEpochs, id)
		}
	}
}

// OpenEpochID returns the id of the currently open epoch.
func (m *Manager) OpenEpochID() uint64 {
	return m.epochID.Load()
}

// Close seals the open epoch if it holds any deltas and shuts the manager
// down. Further operations fail with ErrManagerClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed.Load() {
		return nil
	}
	var err error
	if m.deltaCount > 0 {
		_, err = m.rotate()
	}
	m.closed.Store(true)
	close(m.commands)
	<-m.done
	return err
}
