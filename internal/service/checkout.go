package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"donation-platform/internal/dto"
	"donation-platform/internal/models"
	"donation-platform/internal/paymongo"
	"donation-platform/internal/repository"
	"donation-platform/internal/returnurl"
	"donation-platform/internal/saga"
)

const (
	Currency                   = "PHP"
	DefaultPaymentMethod       = "gcash"
	DefaultCheckoutDescription = "Donation"
	stepCreateDonation         = "create donation"
	stepCreateTransaction      = "create transaction"
)

var hundred = decimal.NewFromInt(100)

// maxExactFloat is the largest integer a float64 holds without rounding.
// Ids decoded as float64 beyond it may not be the ones the caller sent.
const maxExactFloat = 1<<53 - 1

type CheckoutOptions struct {
	DefaultPaymentMethod string
	Description          string
	ReturnURLs           returnurl.Normalizer
}

type CheckoutService interface {
	CreateCheckout(ctx context.Context, req dto.CheckoutRequest) (*dto.CheckoutResponse, error)
}

type checkoutServiceImpl struct {
	donations    repository.DonationRepository
	transactions repository.TransactionRepository
	client       paymongo.CheckoutClient
	opts         CheckoutOptions
	log          *zap.Logger
	now          func() time.Time
}

func NewCheckoutService(
	donations repository.DonationRepository,
	transactions repository.TransactionRepository,
	client paymongo.CheckoutClient,
	opts CheckoutOptions,
	log *zap.Logger,
) CheckoutService {
	if opts.DefaultPaymentMethod == "" {
		opts.DefaultPaymentMethod = DefaultPaymentMethod
	}
	if opts.Description == "" {
		opts.Description = DefaultCheckoutDescription
	}
	return &checkoutServiceImpl{
		donations:    donations,
		transactions: transactions,
		client:       client,
		opts:         opts,
		log:          log,
		now:          time.Now,
	}
}

type checkoutInput struct {
	amount     decimal.Decimal
	centavos   int64
	appUserID  int64
	branchID   *int64
	noteKey    models.NoteKey
	notes      string
	methods    []string
	successURL string
	cancelURL  string
}

func (s *checkoutServiceImpl) CreateCheckout(ctx context.Context, req dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	in, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	donation := &models.Donation{
		Amount:       in.amount,
		IsAnonymous:  in.noteKey == models.NoteAnonymous,
		BranchID:     in.branchID,
		Notes:        in.notes,
		DonationDate: now,
	}
	if !donation.IsAnonymous {
		donorID := in.appUserID
		donation.DonorID = &donorID
	}
	txn := &models.Transaction{
		Amount:          in.amount,
		Status:          models.StatusPending,
		TransactionType: in.methods[0],
		CreatedBy:       in.appUserID,
		BranchID:        in.branchID,
		Notes:           in.notes,
		TransactionDate: now,
	}

	err = saga.Run(ctx, s.log,
		saga.Step{
			Name:   stepCreateDonation,
			Action: func(ctx context.Context) error { return s.donations.Create(ctx, donation) },
			Compensate: func(ctx context.Context) error {
				return s.donations.Delete(ctx, donation.ID)
			},
		},
		saga.Step{
			Name: stepCreateTransaction,
			Action: func(ctx context.Context) error {
				txn.DonationID = donation.ID
				return s.transactions.Create(ctx, txn)
			},
		},
	)
	if err != nil {
		return nil, storeErrorFromSaga(err)
	}

	log := s.log.With(zap.Int64("transaction_id", txn.ID), zap.Int64("donation_id", donation.ID))
	ids := map[string]string{
		"transaction_id": strconv.FormatInt(txn.ID, 10),
		"donation_id":    strconv.FormatInt(donation.ID, 10),
	}

	session, err := s.openSession(ctx, in, req.Metadata, ids)
	if err != nil {
		log.Error("payment provider rejected checkout", zap.Error(err))
		// The attempt stays on record as failed.
		if _, markErr := s.transactions.Transition(context.WithoutCancel(ctx), txn.ID, models.StatusFailed); markErr != nil {
			log.Error("failed to mark transaction failed", zap.Error(markErr))
		}
		return nil, &CheckoutError{TransactionID: txn.ID, DonationID: donation.ID, Err: err}
	}

	attached, err := s.transactions.AttachReference(ctx, txn.ID, session.ID)
	if err != nil {
		log.Error("failed to attach checkout session to transaction",
			zap.String("checkout_session_id", session.ID), zap.Error(err))
	} else if !attached {
		log.Warn("transaction already carries a reference",
			zap.String("checkout_session_id", session.ID))
	}

	log.Info("checkout session created", zap.String("checkout_session_id", session.ID))

	return &dto.CheckoutResponse{
		CheckoutURL:       session.CheckoutURL,
		CheckoutSessionID: session.ID,
		TransactionID:     txn.ID,
		DonationID:        donation.ID,
	}, nil
}

func (s *checkoutServiceImpl) openSession(ctx context.Context, in *checkoutInput, callerMeta map[string]any, ids map[string]string) (*paymongo.CheckoutSession, error) {
	successURL, err := returnurl.AppendQuery(in.successURL, ids)
	if err != nil {
		return nil, err
	}
	cancelURL, err := returnurl.AppendQuery(in.cancelURL, ids)
	if err != nil {
		return nil, err
	}

	metadata := stringMetadata(callerMeta)
	for k, v := range ids {
		metadata[k] = v
	}

	return s.client.CreateCheckoutSession(ctx, paymongo.CheckoutSessionRequest{
		Amount:             in.centavos,
		Currency:           Currency,
		Name:               s.opts.Description,
		Description:        in.notes,
		PaymentMethodTypes: in.methods,
		SuccessURL:         successURL,
		CancelURL:          cancelURL,
		Metadata:           metadata,
	})
}

func (s *checkoutServiceImpl) validate(req dto.CheckoutRequest) (*checkoutInput, error) {
	if req.AmountPHP == nil {
		return nil, invalid("amount_php", "is required")
	}
	amount := *req.AmountPHP
	if !amount.IsPositive() {
		return nil, invalid("amount_php", "must be greater than zero")
	}
	centavos := amount.Mul(hundred).Round(0)
	if !centavos.IsPositive() {
		return nil, invalid("amount_php", "must be at least one centavo")
	}
	if centavos.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return nil, invalid("amount_php", "is too large")
	}

	if strings.TrimSpace(req.SuccessURL) == "" {
		return nil, invalid("success_url", "is required")
	}
	if strings.TrimSpace(req.CancelURL) == "" {
		return nil, invalid("cancel_url", "is required")
	}

	appUserID, ok, err := metadataInt(req.Metadata, "app_user_id")
	if !ok {
		return nil, invalid("metadata.app_user_id", "is required")
	}
	if err != nil {
		return nil, invalid("metadata.app_user_id", "must be numeric")
	}

	in := &checkoutInput{
		amount:    amount,
		centavos:  centavos.IntPart(),
		appUserID: appUserID,
		noteKey:   models.ParseNoteKey(strings.TrimSpace(req.DonorNoteKey)),
		methods:   s.paymentMethods(req),
	}

	branchID, ok, err := metadataInt(req.Metadata, "branch_id")
	if err != nil {
		return nil, invalid("metadata.branch_id", "must be numeric")
	}
	if ok {
		in.branchID = &branchID
	}

	if in.successURL, err = s.opts.ReturnURLs.Normalize(req.SuccessURL); err != nil {
		return nil, &ValidationError{Field: "success_url", Message: err.Error(), Err: err}
	}
	if in.cancelURL, err = s.opts.ReturnURLs.Normalize(req.CancelURL); err != nil {
		return nil, &ValidationError{Field: "cancel_url", Message: err.Error(), Err: err}
	}

	in.notes = donorNotes(in.noteKey, req.DonorNoteLabel, req.Message)
	return in, nil
}

func (s *checkoutServiceImpl) paymentMethods(req dto.CheckoutRequest) []string {
	var methods []string
	for _, m := range req.PaymentMethodTypes {
		if m = strings.TrimSpace(m); m != "" {
			methods = append(methods, m)
		}
	}
	if len(methods) > 0 {
		return methods
	}
	if w := strings.TrimSpace(req.Wallet); w != "" {
		return []string{w}
	}
	return []string{s.opts.DefaultPaymentMethod}
}

func donorNotes(key models.NoteKey, label, message string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		label = key.Label()
	}
	if message = strings.TrimSpace(message); message != "" {
		return label + ": " + message
	}
	return label
}

// metadataInt reads an integer from metadata. ok is false when the key is
// absent or null.
func metadataInt(meta map[string]any, key string) (int64, bool, error) {
	v, found := meta[key]
	if !found || v == nil {
		return 0, false, nil
	}

	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || math.Abs(n) > maxExactFloat {
			return 0, true, fmt.Errorf("%s is not an exactly representable integer", key)
		}
		return int64(n), true, nil
	case json.Number:
		if id, err := n.Int64(); err == nil {
			return id, true, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, true, err
		}
		return metadataInt(map[string]any{key: f}, key)
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false, nil
		}
		id, err := strconv.ParseInt(s, 10, 64)
		return id, true, err
	}
	return 0, true, fmt.Errorf("%s has unsupported type %T", key, v)
}

func stringMetadata(meta map[string]any) map[string]string {
	out := make(map[string]string, len(meta)+2)
	for k, v := range meta {
		if v == nil {
			continue
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			b, jerr := json.Marshal(v)
			if jerr != nil {
				continue
			}
			s = string(b)
		}
		out[k] = s
	}
	return out
}

func storeErrorFromSaga(err error) error {
	var stepErr *saga.StepError
	if !errors.As(err, &stepErr) {
		return &StoreError{Op: "checkout", Err: err}
	}
	table := models.DonationsTable
	if stepErr.Step == stepCreateTransaction {
		table = models.TransactionsTable
	}
	return &StoreError{Op: stepErr.Step, Table: table, Err: stepErr.Err}
}
