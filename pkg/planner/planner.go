// Package planner decides which candidate columns a write may touch given the live schema.
package planner

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	apperrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/schema"
)

// Assignment is a column and its storage-ready value
type Assignment struct {
	Column string
	Value  any
}

// WritePlan is the filtered, coerced write for one table.
type WritePlan struct {
	Assignments []Assignment
	// Skipped lists candidate columns the live table does not have.
	Skipped []string
}

// Columns returns the planned column names in order
func (p WritePlan) Columns() []string {
	cols := make([]string, len(p.Assignments))
	for i, a := range p.Assignments {
		cols[i] = a.Column
	}
	return cols
}

// Plan keeps the candidates whose column exists in known, preserving candidate order.
// A plan with no assignments is a SchemaMismatch.
func Plan(candidates []Candidate, known schema.ColumnSet) (WritePlan, error) {
	plan := WritePlan{
		Assignments: make([]Assignment, 0, len(candidates)),
	}

	for _, c := range candidates {
		if !known.Has(c.Column) {
			plan.Skipped = append(plan.Skipped, c.Column)
			continue
		}

		value, err := Coerce(c.Value)
		if err != nil {
			return WritePlan{}, apperrors.Wrapf(apperrors.KindSchemaMismatch, err, "column %s", c.Column)
		}
		plan.Assignments = append(plan.Assignments, Assignment{Column: c.Column, Value: value})
	}

	if len(plan.Assignments) == 0 {
		return plan, apperrors.Newf(apperrors.KindSchemaMismatch, "none of %d candidate columns exist", len(candidates))
	}
	return plan, nil
}

// Coerce turns a candidate value into something every SQL driver accepts.
func Coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	if valuer, ok := v.(driver.Valuer); ok {
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Ptr && rv.IsNil() {
			return nil, nil
		}
		return valuer.Value()
	}

	if t, ok := v.(time.Time); ok {
		return t, nil
	}

	switch reflect.Indirect(reflect.ValueOf(v)).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		if b, ok := v.([]byte); ok {
			return b, nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize %T: %w", v, err)
		}
		return string(data), nil
	case reflect.Invalid:
		return nil, nil
	}

	return v, nil
}
