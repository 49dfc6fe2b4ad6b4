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

	"github.com/0xsoniclabs/deltacurate/backend/catalog"
	"github.com/urfave/cli/v2"
)

var Info = cli.Command{
	Action:    doInfo,
	Name:      "info",
	Usage:     "print the sealed epochs recorded in a commitment catalog",
	ArgsUsage: "<catalog file>",
}

func doInfo(context *cli.Context) error {
	if context.Args().Len() != 1 {
		return fmt.Errorf("missing catalog file parameter")
	}
	registry, err := catalog.Open(context.Args().Get(0))
	if err != nil {
		return err
	}
	defer registry.Close()

	last, any, err := registry.LastEpochID()
	if err != nil {
		return err
	}
	if !any {
		fmt.Println("catalog is empty")
		return nil
	}
	for epochID := uint64(0); epochID <= last; epochID++ {
		commitment, err := registry.Commitment(epochID)
		if err != nil {
			fmt.Printf("epoch %d: no commitment recorded\n", epochID)
			continue
		}
		fmt.Printf("epoch %d: root %x, %d leaves", epochID, commitment.RootDigest, commitment.LeafCount)
		if fingerprint, err := registry.Fingerprint(epochID); err == nil {
			fmt.Printf(", fingerprint %x", fingerprint.Commitment[:8])
		}
		fmt.Println()
	}
	return nil
}
