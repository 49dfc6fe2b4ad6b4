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
	"os"

	"github.com/0xsoniclabs/deltacurate/backend/catalog"
	"github.com/0xsoniclabs/deltacurate/commit"
	"github.com/urfave/cli/v2"
)

var Verify = cli.Command{
	Action:    doVerify,
	Name:      "verify",
	Usage:     "check a serialized proof against the commitment recorded for its epoch",
	ArgsUsage: "<catalog file> <proof file>",
}

func doVerify(context *cli.Context) error {
	if context.Args().Len() != 2 {
		return fmt.Errorf("expected catalog file and proof file parameters")
	}
	registry, err := catalog.Open(context.Args().Get(0))
	if err != nil {
		return err
	}
	defer registry.Close()

	data, err := os.ReadFile(context.Args().Get(1))
	if err != nil {
		return err
	}
	proof := &commit.Proof{}
	if err := proof.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("parsing proof: %w", err)
	}

	commitment, err := registry.Commitment(proof.EpochID())
	if err != nil {
		return err
	}
	if err := proof.Verify(commitment); err != nil {
		return fmt.Errorf("proof rejected: %w", err)
	}
	fmt.Printf("proof verified against epoch %d\n", proof.EpochID())
	return nil
}
