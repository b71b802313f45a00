package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"donation-platform/internal/database"
)

// MaxInsertAttempts bounds how many columns a single insert may shed.
const MaxInsertAttempts = 5

// Payload is an explicit row for one insert. Optional names the columns the
// insert may do without when the store schema lags behind this build; every
// other column is required.
type Payload struct {
	Values   database.Row
	Optional map[string]bool
}

func NewPayload(values database.Row, optional ...string) Payload {
	p := Payload{Values: values, Optional: make(map[string]bool, len(optional))}
	for _, c := range optional {
		p.Optional[c] = true
	}
	return p
}

// Writer inserts rows while tolerating a schema that is missing optional
// columns.
type Writer struct {
	driver database.Driver
	log    *zap.Logger
}

func NewWriter(driver database.Driver, log *zap.Logger) *Writer {
	return &Writer{driver: driver, log: log}
}

// Insert writes p into table and returns the requested columns of the new row.
func (w *Writer) Insert(ctx context.Context, table string, p Payload, returning []string) (database.Row, error) {
	values := make(database.Row, len(p.Values))
	for k, v := range p.Values {
		values[k] = v
	}

	var lastErr error
	for attempt := 1; attempt <= MaxInsertAttempts; attempt++ {
		row, err := w.driver.Insert(ctx, table, values, returning)
		if err == nil {
			return row, nil
		}
		lastErr = err

		var unknown *database.UnknownColumnError
		if !errors.As(err, &unknown) {
			return nil, fmt.Errorf("insert into %s: %w", table, err)
		}
		if _, present := values[unknown.Column]; !present || !p.Optional[unknown.Column] {
			return nil, fmt.Errorf("insert into %s: required column missing from schema: %w", table, err)
		}

		w.log.Warn("store schema is missing column, retrying insert without it",
			zap.String("table", table),
			zap.String("column", unknown.Column),
			zap.Int("attempt", attempt),
		)
		delete(values, unknown.Column)
	}

	return nil, fmt.Errorf("insert into %s: gave up after %d attempts: %w", table, MaxInsertAttempts, lastErr)
}
