// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/0xsoniclabs/deltacurate/backend"
	"github.com/0xsoniclabs/deltacurate/backend/ldb"
	"github.com/0xsoniclabs/deltacurate/backend/memory"
	"github.com/0xsoniclabs/deltacurate/common"
	"github.com/0xsoniclabs/deltacurate/common/diagnostics"
	"github.com/0xsoniclabs/deltacurate/epoch"
	"github.com/0xsoniclabs/deltacurate/schema"
	"github.com/urfave/cli/v2"
)

var (
	numRecordsFlag = cli.IntFlag{
		Name:  "num-records",
		Usage: "number of distinct records to update",
		Value: 1000,
	}
	numUpdatesFlag = cli.IntFlag{
		Name:  "num-updates",
		Usage: "number of updates per record",
		Value: 100,
	}
	epochSizeFlag = cli.IntFlag{
		Name:  "epoch-size",
		Usage: "number of deltas per epoch",
		Value: 10000,
	}
	numShardsFlag = cli.IntFlag{
		Name:  "shards",
		Usage: "number of parallel encoding shards",
		Value: 4,
	}
)

var StressCmd = cli.Command{
	Action:    diagnostics.WrapPerformanceDiagnostics(doStress, &diagnosticsFlag, &cpuProfileFlag, &traceFlag),
	Name:      "stress",
	Usage:     "drive randomized record updates through the full encode and seal path",
	ArgsUsage: "[db directory]",
	Flags: []cli.Flag{
		&numRecordsFlag,
		&numUpdatesFlag,
		&epochSizeFlag,
		&numShardsFlag,
	},
}

func doStress(context *cli.Context) error {
	fmt.Println(diagnostics.SystemReport())

	s, err := parseSchema("balance:int:48,nonce:uint:32,active:bool,tag:bytes")
	if err != nil {
		return err
	}

	var log epoch.DeltaLog
	if context.Args().Len() > 0 {
		db, err := backend.OpenLevelDb(context.Args().Get(0), nil)
		if err != nil {
			return err
		}
		defer db.Close()
		log = ldb.NewLog(db, s)
	} else {
		dir, err := os.MkdirTemp("", "deltacurate-stress-*")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		db, err := backend.OpenLevelDb(dir, nil)
		if err != nil {
			return err
		}
		defer db.Close()
		log = ldb.NewLog(db, s)
	}

	registry := memory.NewRegistry()
	manager := epoch.NewManager(s, log, registry, epoch.Config{
		MaxDeltasPerEpoch: context.Int(epochSizeFlag.Name),
	})
	pipeline := epoch.NewPipeline(manager, context.Int(numShardsFlag.Name), 1024, nil)

	numRecords := context.Int(numRecordsFlag.Name)
	numUpdates := context.Int(numUpdatesFlag.Name)
	ids := make([]common.RecordID, numRecords)
	for i := range ids {
		ids[i] = common.NewRecordID()
	}

	random := rand.New(rand.NewSource(42))
	start := time.Now()
	for sequence := uint64(1); sequence <= uint64(numUpdates); sequence++ {
		for _, id := range ids {
			record := schema.NewRecord(id, sequence)
			record.Set(0, schema.IntValue(random.Int63n(1<<40)))
			record.Set(1, schema.UintValue(sequence))
			// Fields stay set once they appeared in a record's stream.
			if sequence >= 7 {
				record.Set(2, schema.BoolValue(sequence%2 == 0))
			}
			pipeline.Submit(record)
		}
	}
	if err := pipeline.Close(); err != nil {
		return err
	}
	commitment, err := manager.CloseEpoch()
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	total := numRecords * numUpdates
	fmt.Printf("applied %d updates in %v (%.0f updates/s)\n",
		total, elapsed.Round(time.Millisecond), float64(total)/elapsed.Seconds())
	fmt.Printf("last sealed epoch %d, root %x\n", commitment.EpochID, commitment.RootDigest)
	return manager.Close()
}
