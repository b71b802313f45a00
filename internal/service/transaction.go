package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"donation-platform/internal/database"
	"donation-platform/internal/dto"
	"donation-platform/internal/models"
	"donation-platform/internal/repository"
)

type TransactionService interface {
	// Complete force-sets the transaction to completed. It is the operator's
	// recovery path for lost webhooks and skips the pending check.
	Complete(ctx context.Context, transactionID int64) (*dto.CompleteTransactionResponse, error)
	Get(ctx context.Context, transactionID int64) (*dto.TransactionStatusResponse, error)
	// Lookup is Get for callers outside the operator surface. The caller
	// proves it started the checkout by presenting its session id; a
	// mismatch reads as not found.
	Lookup(ctx context.Context, transactionID int64, checkoutSessionID string) (*dto.TransactionStatusResponse, error)
}

type transactionServiceImpl struct {
	transactions repository.TransactionRepository
	notifier     Notifier
	log          *zap.Logger
}

func NewTransactionService(transactions repository.TransactionRepository, notifier Notifier, log *zap.Logger) TransactionService {
	return &transactionServiceImpl{
		transactions: transactions,
		notifier:     notifier,
		log:          log,
	}
}

func (s *transactionServiceImpl) Complete(ctx context.Context, transactionID int64) (*dto.CompleteTransactionResponse, error) {
	if transactionID <= 0 {
		return nil, invalid("transaction_id", "must be a positive integer")
	}

	updated, err := s.transactions.ForceComplete(ctx, transactionID)
	if err != nil {
		return nil, &StoreError{Op: "complete transaction", Table: models.TransactionsTable, Err: err}
	}

	if updated {
		s.log.Info("transaction completed manually", zap.Int64("transaction_id", transactionID))
		s.notifier.PublishStatus(transactionID, models.StatusCompleted)
	} else {
		s.log.Warn("manual completion matched no transaction", zap.Int64("transaction_id", transactionID))
	}

	return &dto.CompleteTransactionResponse{
		OK:            true,
		TransactionID: transactionID,
		Status:        string(models.StatusCompleted),
		Updated:       updated,
	}, nil
}

func (s *transactionServiceImpl) Get(ctx context.Context, transactionID int64) (*dto.TransactionStatusResponse, error) {
	if transactionID <= 0 {
		return nil, invalid("transaction_id", "must be a positive integer")
	}

	txn, err := s.transactions.FindByID(ctx, transactionID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StoreError{Op: "find transaction", Table: models.TransactionsTable, Err: err}
	}

	return &dto.TransactionStatusResponse{
		TransactionID: txn.ID,
		DonationID:    txn.DonationID,
		Status:        string(txn.Status),
		ReferenceID:   txn.ReferenceID,
		Amount:        txn.Amount,
		UpdatedAt:     txn.UpdatedAt,
	}, nil
}

func (s *transactionServiceImpl) Lookup(ctx context.Context, transactionID int64, checkoutSessionID string) (*dto.TransactionStatusResponse, error) {
	checkoutSessionID = strings.TrimSpace(checkoutSessionID)
	if checkoutSessionID == "" {
		return nil, invalid("checkout_session_id", "is required")
	}

	resp, err := s.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if resp.ReferenceID == nil || subtle.ConstantTimeCompare([]byte(*resp.ReferenceID), []byte(checkoutSessionID)) != 1 {
		return nil, ErrNotFound
	}
	return resp, nil
}

// ParseTransactionID accepts a JSON number or a numeric string.
func ParseTransactionID(v any) (int64, error) {
	switch id := v.(type) {
	case float64:
		if id > 0 && id == math.Trunc(id) && id <= maxExactFloat {
			return int64(id), nil
		}
	case json.Number:
		n, err := id.Int64()
		if err == nil && n > 0 {
			return n, nil
		}
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
		if err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, invalid("transaction_id", "must be a positive integer")
}
