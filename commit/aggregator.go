// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package commit

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"

	"github.com/0xsoniclabs/deltacurate/codec"
	"github.com/0xsoniclabs/deltacurate/common"
)

var (
	// ErrEpochSealed signals an ingest after the epoch's tree was sealed.
	// This is a caller protocol violation.
	ErrEpochSealed = errors.New("epoch already sealed")

	// ErrOutOfOrderIngest signals a delta entry tagged with an epoch other
	// than the currently open one. This is a caller protocol violation.
	ErrOutOfOrderIngest = errors.New("delta entry for wrong epoch")

	// ErrLeafBufferFull signals that the open epoch's leaf buffer reached
	// its configured bound. The caller is expected to force an epoch close
	// rather than grow the buffer unbounded.
	ErrLeafBufferFull = errors.New("epoch leaf buffer full")
)

// DefaultMaxBufferedLeaves bounds the open epoch's leaf buffer unless
// configured otherwise.
const DefaultMaxBufferedLeaves = 1 << 20

// Aggregator folds the presence masks and per-field change counters of one
// epoch's delta entries into a commitment tree. Ingestion order determines
// tree shape and is therefore serialized; batching contiguous runs of leaves
// under one lock acquisition is the intended mitigation for contention.
type Aggregator struct {
	mu          sync.Mutex
	epochID     uint64
	maxBuffered int
	sealed      bool
	leaves      []Node
	refs        []LeafRef
	fingerprint Fingerprint
}

// LeafRef records which delta entry a tree leaf was built from.
type LeafRef struct {
	RecordID common.RecordID
	Sequence uint64
}

// NewAggregator creates an aggregator for the given epoch. A maxBuffered
// value of zero selects DefaultMaxBufferedLeaves.
func NewAggregator(epochID uint64, maxBuffered int) *Aggregator {
	if maxBuffered <= 0 {
		maxBuffered = DefaultMaxBufferedLeaves
	}
	return &Aggregator{epochID: epochID, maxBuffered: maxBuffered}
}

// EpochID returns the epoch this aggregator collects leaves for.
func (a *Aggregator) EpochID() uint64 {
	return a.epochID
}

// LeafCount returns the number of ingested leaves.
func (a *Aggregator) LeafCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.leaves)
}

// Ingest appends one delta entry as a tree leaf.
func (a *Aggregator) Ingest(entry codec.DeltaEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ingest(entry)
}

// IngestBatch appends a contiguous run of delta entries under a single lock
// acquisition. If an entry fails, entries before it remain ingested and the
// error is returned.
func (a *Aggregator) IngestBatch(entries []codec.DeltaEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range entries {
		if err := a.ingest(entries[i]); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregator) ingest(entry codec.DeltaEntry) error {
	if a.sealed {
		return fmt.Errorf("%w: epoch %d", ErrEpochSealed, a.epochID)
	}
	if entry.EpochID != a.epochID {
		return fmt.Errorf("%w: entry for epoch %d, open epoch is %d",
			ErrOutOfOrderIngest, entry.EpochID, a.epochID)
	}
	if len(a.leaves) >= a.maxBuffered {
		return fmt.Errorf("%w: epoch %d at %d leaves", ErrLeafBufferFull, a.epochID, len(a.leaves))
	}
	a.leaves = append(a.leaves, newLeaf(&entry))
	a.refs = append(a.refs, LeafRef{RecordID: entry.RecordID, Sequence: entry.Sequence})
	a.fingerprint.Observe(&entry)
	return nil
}

// Seal closes the epoch's tree: the leaf sequence is padded to the next power
// of two with neutral leaves, the tree is built bottom-up, and the resulting
// sealed epoch is returned. After Seal, all further Ingest calls fail.
func (a *Aggregator) Seal() (*SealedEpoch, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		return nil, fmt.Errorf("%w: epoch %d", ErrEpochSealed, a.epochID)
	}
	a.sealed = true

	padded := paddedLeafCount(len(a.leaves))
	nodes := make([]Node, 2*padded-1)
	for i := range padded {
		if i < len(a.leaves) {
			nodes[leafPosition(padded, i)] = a.leaves[i]
		} else {
			nodes[leafPosition(padded, i)] = neutralLeaf()
		}
	}
	buildInterior(nodes, padded)

	return &SealedEpoch{
		epochID:     a.epochID,
		leafCount:   len(a.leaves),
		padded:      padded,
		nodes:       nodes,
		refs:        a.refs,
		fingerprint: a.fingerprint,
	}, nil
}

// paddedLeafCount returns the smallest power of two >= max(count, 1).
func paddedLeafCount(count int) int {
	if count <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(count-1))
}

// The tree is stored as a flat array in heap layout: the root at index 0,
// the children of node i at 2i+1 and 2i+2, and the leaves occupying the
// last `padded` positions.
func leafPosition(padded, index int) int {
	return padded - 1 + index
}

// buildInterior fills all interior nodes of the heap-layout arena, bottom-up.
// Levels with enough nodes are digested in parallel via the task framework.
func buildInterior(nodes []Node, padded int) {
	if padded == 1 {
		return
	}
	tasks := make([]*task, 0, padded-1)
	byPosition := make([]*task, padded-1)
	// Interior positions are 0..padded-2; create tasks deepest level first
	// so the list is topologically sorted.
	for pos := padded - 2; pos >= 0; pos-- {
		left, right := 2*pos+1, 2*pos+2
		numDependencies := 0
		if left < padded-1 {
			numDependencies = 2
		}
		t := newTask(func() {
			nodes[pos] = combine(nodes[left], nodes[right])
		}, numDependencies)
		byPosition[pos] = t
		if left < padded-1 {
			byPosition[left].parentTask = t
			byPosition[right].parentTask = t
		}
		tasks = append(tasks, t)
	}
	runTasks(tasks)
}
