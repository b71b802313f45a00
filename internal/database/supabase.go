package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	postgrest "github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
)

// Supabase reaches the store through the project's PostgREST endpoint using
// the service role key. postgrest-go has no context support, so ctx is only
// checked before each call.
type Supabase struct {
	client *supabase.Client
}

func NewSupabase(url, serviceKey, schema string) (*Supabase, error) {
	client, err := supabase.NewClient(url, serviceKey, &supabase.ClientOptions{Schema: schema})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &Supabase{client: client}, nil
}

func (s *Supabase) Insert(ctx context.Context, table string, values Row, returning []string) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, _, err := s.client.From(table).
		Insert(map[string]any(values), false, "", "representation", "").
		Execute()
	if err != nil {
		return nil, classifyRest(table, err)
	}

	rows, err := decodeRows(data)
	if err != nil {
		return nil, fmt.Errorf("decode inserted %s row: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert into %s returned no row", table)
	}
	return pick(rows[0], returning), nil
}

func (s *Supabase) Update(ctx context.Context, table string, values Row, where Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(where) == 0 {
		return 0, ErrEmptyFilter
	}

	q := s.client.From(table).Update(map[string]any(values), "minimal", "exact")
	_, count, err := applyFilter(q, where).Execute()
	if err != nil {
		return 0, classifyRest(table, err)
	}
	return count, nil
}

func (s *Supabase) Delete(ctx context.Context, table string, where Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(where) == 0 {
		return 0, ErrEmptyFilter
	}

	q := s.client.From(table).Delete("minimal", "exact")
	_, count, err := applyFilter(q, where).Execute()
	if err != nil {
		return 0, classifyRest(table, err)
	}
	return count, nil
}

func (s *Supabase) SelectOne(ctx context.Context, table string, where Filter) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := s.client.From(table).Select("*", "", false)
	data, _, err := applyFilter(q, where).Limit(1, "").Execute()
	if err != nil {
		return nil, classifyRest(table, err)
	}

	rows, err := decodeRows(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s row: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

func (s *Supabase) Close() error {
	return nil
}

func applyFilter(f *postgrest.FilterBuilder, where Filter) *postgrest.FilterBuilder {
	for _, cond := range where {
		if cond.IsNull {
			f = f.Is(cond.Column, "null")
			continue
		}
		f = f.Eq(cond.Column, fmt.Sprint(cond.Value))
	}
	return f
}

// decodeRows keeps numbers as json.Number so ids and amounts survive intact.
func decodeRows(data []byte) ([]Row, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var rows []Row
	if err := dec.Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// postgrest-go flattens errors into "(CODE) message" strings.
func classifyRest(table string, err error) error {
	if col, ok := unknownColumn(err.Error()); ok {
		return &UnknownColumnError{Table: table, Column: col, Err: err}
	}
	return err
}
