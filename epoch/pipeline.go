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
	"encoding/binary"
	"errors"
	"log/slog"
	"sync"

	"github.com/0xsoniclabs/deltacurate/schema"
)

// Pipeline fans record ingestion out over a fixed set of shard workers.
// Records are routed by record id, so the per-entity sequence order is
// preserved while different entities encode in parallel. The shard channels
// are bounded; a full shard blocks Submit, which is the backpressure that
// lets the manager's rotation triggers catch up.
type Pipeline struct {
	manager *Manager
	shards  []chan *schema.Record
	wg      sync.WaitGroup
	issues  issueCollector
	logger  *slog.Logger
}

// NewPipeline starts numShards workers feeding the given manager, each with
// a submission buffer of bufferSize records.
func NewPipeline(manager *Manager, numShards, bufferSize int, logger *slog.Logger) *Pipeline {
	if numShards < 1 {
		numShards = 1
	}
	if bufferSize < 1 {
		bufferSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		manager: manager,
		shards:  make([]chan *schema.Record, numShards),
		logger:  logger,
	}
	for i := range p.shards {
		p.shards[i] = make(chan *schema.Record, bufferSize)
		p.wg.Add(1)
		go p.runShard(i)
	}
	return p
}

func (p *Pipeline) runShard(shard int) {
	defer p.wg.Done()
	for record := range p.shards[shard] {
		if _, err := p.manager.Append(record); err != nil {
			p.issues.add(err)
			p.logger.Error("appending record failed",
				"shard", shard,
				"record", record.ID.String(),
				"sequence", record.Sequence,
				"error", err)
		}
	}
}

// Submit routes a record to its shard worker. It blocks while the shard's
// buffer is full. The caller must not modify the record afterwards.
func (p *Pipeline) Submit(record *schema.Record) {
	shard := binary.BigEndian.Uint64(record.ID[:8]) % uint64(len(p.shards))
	p.shards[shard] <- record
}

// Close drains all shards, stops the workers, and reports the issues
// collected during ingestion. It does not close the underlying manager.
func (p *Pipeline) Close() error {
	for _, shard := range p.shards {
		close(shard)
	}
	p.wg.Wait()
	return errors.Join(p.issues.list()...)
}

// issueCollector accumulates ingestion errors across shard workers.
type issueCollector struct {
	mu     sync.Mutex
	issues []error
}

func (c *issueCollector) add(issue error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issues = append(c.issues, issue)
}

func (c *issueCollector) list() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.issues
}
