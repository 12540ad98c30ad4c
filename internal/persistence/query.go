package persistence

import (
	"fmt"
	"time"
)

// Field names a queryable reservation field.
type Field string

const (
	FieldStart Field = "start"
	FieldEnd   Field = "end"
)

// Operator is a comparison operator accepted by reservation queries.
type Operator string

const (
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpEqual        Operator = "=="
)

// Condition is one where clause of a reservation query.
type Condition struct {
	Field Field
	Op    Operator
	Value time.Time
}

// Where builds a condition.
func Where(field Field, op Operator, value time.Time) Condition {
	return Condition{Field: field, Op: op, Value: value}
}

// Validate reports conditions that reference unknown fields or operators.
func (c Condition) Validate() error {
	switch c.Field {
	case FieldStart, FieldEnd:
	default:
		return fmt.Errorf("%w: field %q", ErrInvalidCondition, c.Field)
	}
	switch c.Op {
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpEqual:
	default:
		return fmt.Errorf("%w: operator %q", ErrInvalidCondition, c.Op)
	}
	return nil
}

// RangeFields returns the distinct fields that carry inequality conditions.
// Queries with inequalities on more than one field need a composite index.
func RangeFields(conds []Condition) []Field {
	seen := make(map[Field]bool, 2)
	fields := make([]Field, 0, 2)
	for _, c := range conds {
		if c.Op == OpEqual || seen[c.Field] {
			continue
		}
		seen[c.Field] = true
		fields = append(fields, c.Field)
	}
	return fields
}
