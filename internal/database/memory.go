package database

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// MemoryTable declares a table for the in-memory driver. Key is the
// store-assigned id column. A nil Columns accepts any column; otherwise
// writes naming an undeclared column fail like a lagging schema would.
type MemoryTable struct {
	Name    string
	Key     string
	Columns []string
}

type memTable struct {
	key     string
	columns map[string]bool
	rows    []Row
	nextID  int64
}

// Memory is a process-local store used for development and tests.
type Memory struct {
	mu     sync.Mutex
	tables map[string]*memTable
}

func NewMemory(tables ...MemoryTable) *Memory {
	m := &Memory{tables: make(map[string]*memTable, len(tables))}
	for _, t := range tables {
		mt := &memTable{key: t.Key}
		if t.Columns != nil {
			mt.columns = map[string]bool{t.Key: true}
			for _, c := range t.Columns {
				mt.columns[c] = true
			}
		}
		m.tables[t.Name] = mt
	}
	return m
}

func (m *Memory) table(name string) (*memTable, error) {
	t, ok := m.tables[name]
	if !ok {
		return nil, fmt.Errorf("relation %q does not exist", name)
	}
	return t, nil
}

func (t *memTable) check(table string, cols []string) error {
	if t.columns == nil {
		return nil
	}
	sort.Strings(cols)
	for _, c := range cols {
		if !t.columns[c] {
			return &UnknownColumnError{Table: table, Column: c}
		}
	}
	return nil
}

func (t *memTable) matches(row Row, where Filter) bool {
	for _, cond := range where {
		v, ok := row[cond.Column]
		if cond.IsNull {
			if ok && !isNil(v) {
				return false
			}
			continue
		}
		if !ok || fmt.Sprint(deref(v)) != fmt.Sprint(deref(cond.Value)) {
			return false
		}
	}
	return true
}

func (m *Memory) Insert(ctx context.Context, table string, values Row, returning []string) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(table)
	if err != nil {
		return nil, err
	}
	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	if err := t.check(table, cols); err != nil {
		return nil, err
	}

	t.nextID++
	row := make(Row, len(values)+1)
	for k, v := range values {
		row[k] = deref(v)
	}
	row[t.key] = t.nextID
	t.rows = append(t.rows, row)

	return pick(copyRow(row), returning), nil
}

func (m *Memory) Update(ctx context.Context, table string, values Row, where Filter) (int64, error) {
	if len(where) == 0 {
		return 0, ErrEmptyFilter
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(table)
	if err != nil {
		return 0, err
	}
	cols := make([]string, 0, len(values)+len(where))
	for c := range values {
		cols = append(cols, c)
	}
	for _, cond := range where {
		cols = append(cols, cond.Column)
	}
	if err := t.check(table, cols); err != nil {
		return 0, err
	}

	var n int64
	for _, row := range t.rows {
		if !t.matches(row, where) {
			continue
		}
		for k, v := range values {
			row[k] = deref(v)
		}
		n++
	}
	return n, nil
}

func (m *Memory) Delete(ctx context.Context, table string, where Filter) (int64, error) {
	if len(where) == 0 {
		return 0, ErrEmptyFilter
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(table)
	if err != nil {
		return 0, err
	}

	kept := t.rows[:0]
	var n int64
	for _, row := range t.rows {
		if t.matches(row, where) {
			n++
			continue
		}
		kept = append(kept, row)
	}
	t.rows = kept
	return n, nil
}

func (m *Memory) SelectOne(ctx context.Context, table string, where Filter) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(table)
	if err != nil {
		return nil, err
	}
	for _, row := range t.rows {
		if t.matches(row, where) {
			return copyRow(row), nil
		}
	}
	return nil, ErrNotFound
}

// Rows returns a snapshot of every row in table.
func (m *Memory) Rows(table string) []Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[table]
	if !ok {
		return nil
	}
	out := make([]Row, len(t.rows))
	for i, r := range t.rows {
		out[i] = copyRow(r)
	}
	return out
}

func (m *Memory) Close() error {
	return nil
}

func copyRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// deref stores pointed-to values so later writes by the caller cannot leak in.
func deref(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer {
		return v
	}
	if rv.IsNil() {
		return nil
	}
	return rv.Elem().Interface()
}

func isNil(v any) bool {
	return deref(v) == nil
}
