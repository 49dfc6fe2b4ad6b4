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
	"strconv"
	"strings"

	"github.com/0xsoniclabs/deltacurate/backend"
	"github.com/0xsoniclabs/deltacurate/backend/ldb"
	"github.com/0xsoniclabs/deltacurate/common"
	"github.com/0xsoniclabs/deltacurate/epoch"
	"github.com/0xsoniclabs/deltacurate/schema"
	"github.com/urfave/cli/v2"
)

var (
	schemaFlag = cli.StringFlag{
		Name:     "schema",
		Usage:    "field list as name:kind[:width], e.g. 'balance:int:32,nonce:uint:64,code:bytes,active:bool'",
		Required: true,
	}
	recordFlag = cli.StringFlag{
		Name:     "record",
		Usage:    "record id as UUID",
		Required: true,
	}
	sequenceFlag = cli.Uint64Flag{
		Name:     "sequence",
		Usage:    "sequence number to reconstruct the record at",
		Required: true,
	}
)

var Replay = cli.Command{
	Action:    doReplay,
	Name:      "replay",
	Usage:     "reconstruct the full state of a record from a delta log",
	ArgsUsage: "<db directory>",
	Flags: []cli.Flag{
		&schemaFlag,
		&recordFlag,
		&sequenceFlag,
	},
}

func doReplay(context *cli.Context) error {
	if context.Args().Len() != 1 {
		return fmt.Errorf("missing db directory parameter")
	}
	s, err := parseSchema(context.String(schemaFlag.Name))
	if err != nil {
		return err
	}
	id, err := common.ParseRecordID(context.String(recordFlag.Name))
	if err != nil {
		return err
	}

	db, err := backend.OpenLevelDb(context.Args().Get(0), nil)
	if err != nil {
		return err
	}
	defer db.Close()

	record, err := epoch.Reconstruct(s, ldb.NewLog(db, s), id, context.Uint64(sequenceFlag.Name))
	if err != nil {
		return err
	}
	fmt.Printf("record %s at sequence %d:\n", record.ID, record.Sequence)
	for _, field := range s.Fields() {
		if !record.Has(field.Ordinal) {
			fmt.Printf("  %s: <unset>\n", field.Name)
			continue
		}
		value := record.Get(field.Ordinal)
		switch field.Kind {
		case schema.KindInt:
			fmt.Printf("  %s: %d\n", field.Name, value.Int())
		case schema.KindUint:
			fmt.Printf("  %s: %d\n", field.Name, value.Uint())
		case schema.KindBool:
			fmt.Printf("  %s: %t\n", field.Name, value.Bool())
		case schema.KindBytes:
			fmt.Printf("  %s: %x\n", field.Name, value.Bytes())
		}
	}
	return nil
}

// parseSchema builds a schema from a comma separated list of
// name:kind[:width] field declarations, assigning ordinals in declaration
// order.
func parseSchema(declaration string) (*schema.Schema, error) {
	var fields []schema.FieldSpec
	for i, part := range strings.Split(declaration, ",") {
		pieces := strings.Split(strings.TrimSpace(part), ":")
		if len(pieces) < 2 {
			return nil, fmt.Errorf("invalid field declaration %q", part)
		}
		field := schema.FieldSpec{Name: pieces[0], Ordinal: byte(i)}
		switch pieces[1] {
		case "int":
			field.Kind = schema.KindInt
		case "uint":
			field.Kind = schema.KindUint
		case "bool":
			field.Kind = schema.KindBool
		case "bytes":
			field.Kind = schema.KindBytes
		default:
			return nil, fmt.Errorf("unknown field kind %q", pieces[1])
		}
		if field.Kind.Numeric() {
			if len(pieces) != 3 {
				return nil, fmt.Errorf("field %q needs a bit width", pieces[0])
			}
			width, err := strconv.ParseUint(pieces[2], 10, 8)
			if err != nil {
				return nil, fmt.Errorf("invalid bit width of field %q: %w", pieces[0], err)
			}
			field.BitWidth = uint8(width)
		}
		fields = append(fields, field)
	}
	return schema.New("replay", fields)
}
