// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package schema

import (
	"errors"
	"fmt"
	"sync"

	"github.com/0xsoniclabs/deltacurate/common"
)

// Kind enumerates the supported field value kinds.
type Kind uint8

const (
	KindInt Kind = iota
	KindUint
	KindBytes
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindBytes:
		return "bytes"
	case KindBool:
		return "bool"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Numeric returns true for kinds whose changes are stored as packed deltas
// rather than full replacement values.
func (k Kind) Numeric() bool {
	return k == KindInt || k == KindUint
}

var (
	// ErrSchemaMismatch signals a non-additive schema change: an ordinal was
	// reused, reordered, or redefined, or a record carries ordinals unknown
	// to the schema.
	ErrSchemaMismatch = errors.New("non-additive schema change")
)

// FieldSpec declares one typed field of a record type. Ordinals are unique
// and stable across schema evolution; evolution only appends new ordinals.
type FieldSpec struct {
	Name     string
	Ordinal  byte
	Kind     Kind
	BitWidth uint8 // maximum packed width of a delta; 1..64 for numeric kinds
}

// Schema is the ordered, immutable list of typed fields of one record type.
type Schema struct {
	name   string
	fields []FieldSpec
	index  [common.MaxOrdinals]int16 // ordinal -> position in fields, -1 if absent
}

// New creates a schema from the given field list. Fields must use unique
// ordinals; numeric fields must declare a bit width between 1 and 64.
func New(name string, fields []FieldSpec) (*Schema, error) {
	s := &Schema{name: name}
	for i := range s.index {
		s.index[i] = -1
	}
	for _, f := range fields {
		if err := s.append(f); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Schema) append(f FieldSpec) error {
	if s.index[f.Ordinal] >= 0 {
		return fmt.Errorf("%w: ordinal %d assigned twice", ErrSchemaMismatch, f.Ordinal)
	}
	if len(s.fields) > 0 && f.Ordinal <= s.fields[len(s.fields)-1].Ordinal {
		return fmt.Errorf("%w: ordinal %d not appended in ascending order", ErrSchemaMismatch, f.Ordinal)
	}
	switch f.Kind {
	case KindInt, KindUint:
		if f.BitWidth < 1 || f.BitWidth > 64 {
			return fmt.Errorf("field %q: invalid bit width %d", f.Name, f.BitWidth)
		}
	case KindBool:
		f.BitWidth = 1
	case KindBytes:
		f.BitWidth = 0
	default:
		return fmt.Errorf("field %q: unknown kind %d", f.Name, f.Kind)
	}
	s.index[f.Ordinal] = int16(len(s.fields))
	s.fields = append(s.fields, f)
	return nil
}

// Name returns the record type name this schema describes.
func (s *Schema) Name() string {
	return s.name
}

// Fields returns the schema's fields in declaration order. The returned slice
// must not be modified.
func (s *Schema) Fields() []FieldSpec {
	return s.fields
}

// Field looks up a field by ordinal.
func (s *Schema) Field(ordinal byte) (FieldSpec, bool) {
	pos := s.index[ordinal]
	if pos < 0 {
		return FieldSpec{}, false
	}
	return s.fields[pos], true
}

// Extend derives a new schema version by appending fields. Existing ordinals
// may not be touched; this is the only supported form of schema evolution.
func (s *Schema) Extend(fields ...FieldSpec) (*Schema, error) {
	res := &Schema{name: s.name, index: s.index}
	res.fields = append(res.fields[:0:0], s.fields...)
	for _, f := range fields {
		if err := res.append(f); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Registry holds the current schema of every known record type. It is
// read-only configuration for the codec; registration of a new version of a
// known type must be additive.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
}

func NewRegistry() *Registry {
	return &Registry{schemas: map[string]*Schema{}}
}

// Register installs a schema. If a schema of the same name is already
// registered, the new one must contain every existing field unchanged and may
// only append; otherwise ErrSchemaMismatch is reported.
func (r *Registry) Register(s *Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, exists := r.schemas[s.name]
	if exists {
		if len(s.fields) < len(old.fields) {
			return fmt.Errorf("%w: schema %q dropped fields", ErrSchemaMismatch, s.name)
		}
		for i, f := range old.fields {
			if s.fields[i] != f {
				return fmt.Errorf("%w: schema %q redefined field %q", ErrSchemaMismatch, s.name, f.Name)
			}
		}
	}
	r.schemas[s.name] = s
	return nil
}

// Get returns the current schema of the named record type.
func (r *Registry) Get(name string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name]
	return s, ok
}
