package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"donation-platform/internal/dto"
	"donation-platform/internal/models"
	"donation-platform/internal/paymongo"
	"donation-platform/internal/repository"
)

//go:generate mockgen -destination=../mocks/notifier_mock.go -package=mocks donation-platform/internal/service Notifier

// Notifier receives every status change that actually hit the store.
type Notifier interface {
	PublishStatus(transactionID int64, status models.TransactionStatus)
}

type WebhookService interface {
	HandleEvent(ctx context.Context, body []byte, signature string) (*dto.WebhookResult, error)
}

type webhookServiceImpl struct {
	transactions repository.TransactionRepository
	secret       string
	notifier     Notifier
	log          *zap.Logger
}

func NewWebhookService(transactions repository.TransactionRepository, webhookSecret string, notifier Notifier, log *zap.Logger) WebhookService {
	return &webhookServiceImpl{
		transactions: transactions,
		secret:       webhookSecret,
		notifier:     notifier,
		log:          log,
	}
}

// statusForEvent maps a provider event type to the status it settles a
// transaction into.
func statusForEvent(eventType string) (models.TransactionStatus, bool) {
	switch eventType {
	case paymongo.EventCheckoutSessionPaid, paymongo.EventPaymentPaid:
		return models.StatusCompleted, true
	case paymongo.EventPaymentFailed:
		return models.StatusFailed, true
	}
	return "", false
}

// HandleEvent verifies and applies one webhook delivery. Signature errors are
// returned as paymongo.ErrMissingSignature / ErrInvalidSignature.
func (s *webhookServiceImpl) HandleEvent(ctx context.Context, body []byte, signature string) (*dto.WebhookResult, error) {
	if err := paymongo.VerifySignature(signature, body, s.secret); err != nil {
		s.log.Warn("rejected webhook", zap.Error(err))
		return nil, err
	}

	ev, err := paymongo.ParseEvent(body)
	if err != nil {
		return nil, &ValidationError{Message: "invalid webhook payload", Err: err}
	}
	log := s.log.With(zap.String("event_id", ev.ID), zap.String("event_type", ev.Type))

	if ev.TransactionID == "" {
		log.Info("webhook carries no transaction id, ignoring")
		return &dto.WebhookResult{Ignored: "no transaction_id in metadata"}, nil
	}

	status, ok := statusForEvent(ev.Type)
	if !ok {
		log.Info("unhandled webhook event type, ignoring")
		return &dto.WebhookResult{Ignored: "unhandled event type " + ev.Type}, nil
	}

	transactionID, err := strconv.ParseInt(ev.TransactionID, 10, 64)
	if err != nil || transactionID <= 0 {
		log.Warn("webhook transaction id is not a positive integer", zap.String("transaction_id", ev.TransactionID))
		return &dto.WebhookResult{Ignored: fmt.Sprintf("invalid transaction_id %q", ev.TransactionID)}, nil
	}

	updated, err := s.transactions.Transition(ctx, transactionID, status)
	if err != nil {
		return nil, &StoreError{Op: "apply webhook status", Table: models.TransactionsTable, Err: err}
	}

	if updated {
		log.Info("transaction settled by webhook", zap.Int64("transaction_id", transactionID), zap.String("status", string(status)))
		s.notifier.PublishStatus(transactionID, status)
	} else {
		// Duplicate delivery, late event after a terminal state, or an id from
		// another environment.
		log.Info("webhook matched no pending transaction", zap.Int64("transaction_id", transactionID))
	}

	return &dto.WebhookResult{
		TransactionID: transactionID,
		Updated:       updated,
		Status:        string(status),
	}, nil
}
