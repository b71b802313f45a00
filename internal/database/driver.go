package database

import (
	"context"
	"errors"
	"fmt"
)

//go:generate mockgen -destination=../mocks/driver_mock.go -package=mocks donation-platform/internal/database Driver

// Row is a single record keyed by column name.
type Row map[string]any

// Cond is one term of a WHERE clause. Terms are joined with AND.
type Cond struct {
	Column string
	Value  any
	IsNull bool
}

type Filter []Cond

func Eq(column string, value any) Cond {
	return Cond{Column: column, Value: value}
}

func IsNull(column string) Cond {
	return Cond{Column: column, IsNull: true}
}

// Driver is the minimal table-level contract the repositories need from a
// relational store. Implementations must translate a missing column into
// *UnknownColumnError and a missing row into ErrNotFound.
type Driver interface {
	Insert(ctx context.Context, table string, values Row, returning []string) (Row, error)
	Update(ctx context.Context, table string, values Row, where Filter) (int64, error)
	Delete(ctx context.Context, table string, where Filter) (int64, error)
	SelectOne(ctx context.Context, table string, where Filter) (Row, error)
	Close() error
}

var (
	ErrNotFound    = errors.New("record not found")
	ErrEmptyFilter = errors.New("refusing to touch every row: empty filter")
)

// UnknownColumnError reports that the store schema has no such column.
type UnknownColumnError struct {
	Table  string
	Column string
	Err    error
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("column %q does not exist on %s", e.Column, e.Table)
}

func (e *UnknownColumnError) Unwrap() error {
	return e.Err
}

// pick narrows row to the requested columns. An empty list keeps everything.
func pick(row Row, columns []string) Row {
	if len(columns) == 0 {
		return row
	}
	out := make(Row, len(columns))
	for _, c := range columns {
		if v, ok := row[c]; ok {
			out[c] = v
		}
	}
	return out
}
