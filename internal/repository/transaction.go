package repository

import (
	"context"
	"fmt"
	"time"

	"donation-platform/internal/database"
	"donation-platform/internal/models"
	"donation-platform/internal/store"
)

type TransactionRepository interface {
	Create(ctx context.Context, txn *models.Transaction) error
	// Transition moves a pending transaction to status. It reports false when
	// the row is missing or no longer pending.
	Transition(ctx context.Context, transactionID int64, status models.TransactionStatus) (bool, error)
	// AttachReference sets reference_id once; later calls are no-ops.
	AttachReference(ctx context.Context, transactionID int64, referenceID string) (bool, error)
	// ForceComplete marks the transaction completed whatever its status.
	ForceComplete(ctx context.Context, transactionID int64) (bool, error)
	FindByID(ctx context.Context, transactionID int64) (*models.Transaction, error)
}

type transactionRepoImpl struct {
	driver database.Driver
	writer *store.Writer
	now    func() time.Time
}

func NewTransactionRepository(driver database.Driver, writer *store.Writer) TransactionRepository {
	return &transactionRepoImpl{
		driver: driver,
		writer: writer,
		now:    time.Now,
	}
}

func (r *transactionRepoImpl) Create(ctx context.Context, txn *models.Transaction) error {
	payload := store.NewPayload(database.Row{
		"donation_id":      txn.DonationID,
		"amount":           txn.Amount,
		"status":           string(txn.Status),
		"transaction_type": txn.TransactionType,
		"created_by":       txn.CreatedBy,
		"branch_id":        nullable(txn.BranchID),
		"notes":            txn.Notes,
		"transaction_date": txn.TransactionDate,
	}, "transaction_type", "branch_id", "notes", "transaction_date")

	row, err := r.writer.Insert(ctx, models.TransactionsTable, payload, []string{"transaction_id"})
	if err != nil {
		return err
	}

	id, err := int64Column(row, "transaction_id")
	if err != nil {
		return fmt.Errorf("insert into %s: %w", models.TransactionsTable, err)
	}
	txn.ID = id
	return nil
}

func (r *transactionRepoImpl) Transition(ctx context.Context, transactionID int64, status models.TransactionStatus) (bool, error) {
	return r.update(ctx, database.Row{
		"status":     string(status),
		"updated_at": r.now().UTC(),
	}, database.Filter{
		database.Eq("transaction_id", transactionID),
		database.Eq("status", string(models.StatusPending)),
	})
}

func (r *transactionRepoImpl) AttachReference(ctx context.Context, transactionID int64, referenceID string) (bool, error) {
	return r.update(ctx, database.Row{
		"reference_id": referenceID,
	}, database.Filter{
		database.Eq("transaction_id", transactionID),
		database.IsNull("reference_id"),
	})
}

func (r *transactionRepoImpl) ForceComplete(ctx context.Context, transactionID int64) (bool, error) {
	return r.update(ctx, database.Row{
		"status":     string(models.StatusCompleted),
		"updated_at": r.now().UTC(),
	}, database.Filter{
		database.Eq("transaction_id", transactionID),
	})
}

func (r *transactionRepoImpl) update(ctx context.Context, values database.Row, where database.Filter) (bool, error) {
	n, err := r.driver.Update(ctx, models.TransactionsTable, values, where)
	if err != nil {
		return false, fmt.Errorf("update %s: %w", models.TransactionsTable, err)
	}
	return n > 0, nil
}

func (r *transactionRepoImpl) FindByID(ctx context.Context, transactionID int64) (*models.Transaction, error) {
	row, err := r.driver.SelectOne(ctx, models.TransactionsTable, database.Filter{
		database.Eq("transaction_id", transactionID),
	})
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", models.TransactionsTable, err)
	}
	return decodeTransaction(row)
}
