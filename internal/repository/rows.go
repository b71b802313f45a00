package repository

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"donation-platform/internal/database"
	"donation-platform/internal/models"
)

var (
	donationColumns = []string{
		"donor_id", "amount", "is_anonymous", "branch_id", "notes", "donation_date",
	}
	transactionColumns = []string{
		"donation_id", "amount", "status", "reference_id", "transaction_type", "created_by",
		"branch_id", "notes", "transaction_date", "updated_at",
	}
)

// MemorySchema declares both tables for the in-memory driver.
func MemorySchema() []database.MemoryTable {
	return []database.MemoryTable{
		{Name: models.DonationsTable, Key: "donation_id", Columns: donationColumns},
		{Name: models.TransactionsTable, Key: "transaction_id", Columns: transactionColumns},
	}
}

func nullable(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

// Drivers hand back int64 (pgx, memory), json.Number (PostgREST) or strings.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Int64()
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	}
	return cast.ToInt64E(v)
}

func int64Column(row database.Row, column string) (int64, error) {
	v, ok := row[column]
	if !ok || v == nil {
		return 0, fmt.Errorf("column %s missing from returned row", column)
	}
	id, err := toInt64(v)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", column, err)
	}
	return id, nil
}

func optionalInt64(v any) (*int64, error) {
	if v == nil {
		return nil, nil
	}
	n, err := toInt64(v)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch d := v.(type) {
	case decimal.Decimal:
		return d, nil
	case json.Number:
		return decimal.NewFromString(d.String())
	case []byte:
		return decimal.NewFromString(string(d))
	case string:
		return decimal.NewFromString(d)
	case float64:
		return decimal.NewFromFloat(d), nil
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unsupported amount type %T", v)
	}
	return decimal.NewFromInt(n), nil
}

func optionalTime(v any) (*time.Time, error) {
	if v == nil {
		return nil, nil
	}
	t, err := cast.ToTimeE(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func decodeTransaction(row database.Row) (*models.Transaction, error) {
	txn := &models.Transaction{
		Status:          models.TransactionStatus(cast.ToString(row["status"])),
		TransactionType: cast.ToString(row["transaction_type"]),
		Notes:           cast.ToString(row["notes"]),
	}

	var err error
	if txn.ID, err = int64Column(row, "transaction_id"); err != nil {
		return nil, err
	}
	if txn.DonationID, err = int64Column(row, "donation_id"); err != nil {
		return nil, err
	}
	if txn.Amount, err = toDecimal(row["amount"]); err != nil {
		return nil, fmt.Errorf("column amount: %w", err)
	}
	if v := row["created_by"]; v != nil {
		if txn.CreatedBy, err = toInt64(v); err != nil {
			return nil, fmt.Errorf("column created_by: %w", err)
		}
	}
	if txn.BranchID, err = optionalInt64(row["branch_id"]); err != nil {
		return nil, fmt.Errorf("column branch_id: %w", err)
	}
	if ref := row["reference_id"]; ref != nil {
		s := cast.ToString(ref)
		txn.ReferenceID = &s
	}
	if ts, err := optionalTime(row["transaction_date"]); err == nil && ts != nil {
		txn.TransactionDate = *ts
	}
	if txn.UpdatedAt, err = optionalTime(row["updated_at"]); err != nil {
		return nil, fmt.Errorf("column updated_at: %w", err)
	}
	return txn, nil
}
