package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

const undefinedColumn = "42703"

type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Postgres talks to the store directly through sqlx on the pgx stdlib driver.
type Postgres struct {
	db *sqlx.DB
}

func NewPostgres(dsn string, opts PoolOptions) (*Postgres, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	return &Postgres{db: db}, nil
}

// NewPostgresFromDB wraps an existing connection pool.
func NewPostgresFromDB(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Insert(ctx context.Context, table string, values Row, returning []string) (Row, error) {
	query, args := buildInsert(table, values, returning)

	rows, err := p.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, classifyPg(table, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, classifyPg(table, err)
		}
		return nil, fmt.Errorf("insert into %s returned no row", table)
	}

	row := Row{}
	if err := rows.MapScan(row); err != nil {
		return nil, fmt.Errorf("scan inserted %s row: %w", table, err)
	}
	return row, nil
}

func (p *Postgres) Update(ctx context.Context, table string, values Row, where Filter) (int64, error) {
	if len(where) == 0 {
		return 0, ErrEmptyFilter
	}
	query, args := buildUpdate(table, values, where)

	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classifyPg(table, err)
	}
	return res.RowsAffected()
}

func (p *Postgres) Delete(ctx context.Context, table string, where Filter) (int64, error) {
	if len(where) == 0 {
		return 0, ErrEmptyFilter
	}
	clause, args := buildWhere(where, 1)
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", pgx.Identifier{table}.Sanitize(), clause)

	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classifyPg(table, err)
	}
	return res.RowsAffected()
}

func (p *Postgres) SelectOne(ctx context.Context, table string, where Filter) (Row, error) {
	query := fmt.Sprintf("SELECT * FROM %s", pgx.Identifier{table}.Sanitize())
	var args []any
	if len(where) > 0 {
		var clause string
		clause, args = buildWhere(where, 1)
		query += " WHERE " + clause
	}
	query += " LIMIT 1"

	row := Row{}
	err := p.db.QueryRowxContext(ctx, query, args...).MapScan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classifyPg(table, err)
	}
	return row, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func classifyPg(table string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedColumn {
		if col, ok := unknownColumn(pgErr.Message); ok {
			return &UnknownColumnError{Table: table, Column: col, Err: err}
		}
	}
	return err
}

func sortedColumns(values Row) []string {
	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

func buildInsert(table string, values Row, returning []string) (string, []any) {
	cols := sortedColumns(values)
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = values[c]
	}

	ret := "*"
	if len(returning) > 0 {
		r := make([]string, len(returning))
		for i, c := range returning {
			r[i] = pgx.Identifier{c}.Sanitize()
		}
		ret = strings.Join(r, ", ")
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		pgx.Identifier{table}.Sanitize(),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
		ret,
	)
	return query, args
}

func buildUpdate(table string, values Row, where Filter) (string, []any) {
	cols := sortedColumns(values)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(where))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", pgx.Identifier{c}.Sanitize(), i+1)
		args = append(args, values[c])
	}

	clause, whereArgs := buildWhere(where, len(cols)+1)
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		pgx.Identifier{table}.Sanitize(),
		strings.Join(sets, ", "),
		clause,
	)
	return query, args
}

// buildWhere numbers placeholders starting at start.
func buildWhere(where Filter, start int) (string, []any) {
	terms := make([]string, len(where))
	var args []any
	n := start
	for i, cond := range where {
		col := pgx.Identifier{cond.Column}.Sanitize()
		if cond.IsNull {
			terms[i] = col + " IS NULL"
			continue
		}
		terms[i] = fmt.Sprintf("%s = $%d", col, n)
		args = append(args, cond.Value)
		n++
	}
	return strings.Join(terms, " AND "), args
}
