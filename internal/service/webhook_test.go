package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"donation-platform/internal/database"
	"donation-platform/internal/dto"
	"donation-platform/internal/mocks"
	"donation-platform/internal/models"
	"donation-platform/internal/paymongo"
	"donation-platform/internal/repository"
	"donation-platform/internal/store"
)

const webhookSecret = "whsk_test"

type webhookFixture struct {
	transactions repository.TransactionRepository
	notifier     *mocks.MockNotifier
	webhooks     WebhookService
	txns         TransactionService
}

func newWebhookFixture(t *testing.T, tables ...database.MemoryTable) *webhookFixture {
	t.Helper()
	if len(tables) == 0 {
		tables = repository.MemorySchema()
	}
	ctrl := gomock.NewController(t)
	mem := database.NewMemory(tables...)
	log := zap.NewNop()
	transactions := repository.NewTransactionRepository(mem, store.NewWriter(mem, log))
	notifier := mocks.NewMockNotifier(ctrl)

	return &webhookFixture{
		transactions: transactions,
		notifier:     notifier,
		webhooks:     NewWebhookService(transactions, webhookSecret, notifier, log),
		txns:         NewTransactionService(transactions, notifier, log),
	}
}

func (f *webhookFixture) pendingTransaction(t *testing.T) int64 {
	t.Helper()
	txn := &models.Transaction{
		DonationID:      1,
		Amount:          decimal.NewFromInt(500),
		Status:          models.StatusPending,
		CreatedBy:       7,
		TransactionDate: time.Now(),
	}
	if err := f.transactions.Create(context.Background(), txn); err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	return txn.ID
}

func (f *webhookFixture) status(t *testing.T, id int64) models.TransactionStatus {
	t.Helper()
	txn, err := f.transactions.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("FindByID(%d): %v", id, err)
	}
	return txn.Status
}

func eventBody(eventType string, transactionID any) []byte {
	return []byte(fmt.Sprintf(`{"data":{"id":"evt_1","attributes":{"type":%q,"data":{"attributes":{"metadata":{"transaction_id":%q}}}}}}`,
		eventType, fmt.Sprint(transactionID)))
}

func sign(body []byte) string {
	ts := "1700000000"
	return "t=" + ts + ",te=" + paymongo.ComputeSignature(webhookSecret, ts, body) + ",li="
}

func deliver(t *testing.T, svc WebhookService, body []byte) *dto.WebhookResult {
	t.Helper()
	res, err := svc.HandleEvent(context.Background(), body, sign(body))
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	return res
}

func TestWebhookPaidEventIsIdempotent(t *testing.T) {
	f := newWebhookFixture(t)
	id := f.pendingTransaction(t)
	body := eventBody(paymongo.EventPaymentPaid, id)

	f.notifier.EXPECT().PublishStatus(id, models.StatusCompleted).Times(1)

	first := deliver(t, f.webhooks, body)
	if !first.Updated || first.Status != "completed" {
		t.Errorf("first delivery = %+v", first)
	}

	second := deliver(t, f.webhooks, body)
	if second.Updated || second.Status != "completed" {
		t.Errorf("second delivery = %+v", second)
	}

	if got := f.status(t, id); got != models.StatusCompleted {
		t.Errorf("status = %s", got)
	}
}

func TestWebhookLateFailureKeepsCompleted(t *testing.T) {
	f := newWebhookFixture(t)
	id := f.pendingTransaction(t)

	f.notifier.EXPECT().PublishStatus(id, models.StatusCompleted)

	deliver(t, f.webhooks, eventBody(paymongo.EventCheckoutSessionPaid, id))
	late := deliver(t, f.webhooks, eventBody(paymongo.EventPaymentFailed, id))
	if late.Updated {
		t.Error("late failure reported as an update")
	}
	if got := f.status(t, id); got != models.StatusCompleted {
		t.Errorf("status = %s, want completed", got)
	}
}

func TestWebhookPaymentFailed(t *testing.T) {
	f := newWebhookFixture(t)
	id := f.pendingTransaction(t)

	f.notifier.EXPECT().PublishStatus(id, models.StatusFailed)

	out := deliver(t, f.webhooks, eventBody(paymongo.EventPaymentFailed, id))
	if !out.Updated || out.Status != "failed" {
		t.Errorf("outcome = %+v", out)
	}
	if got := f.status(t, id); got != models.StatusFailed {
		t.Errorf("status = %s", got)
	}
}

func TestWebhookIgnoredEvents(t *testing.T) {
	tests := []struct {
		name string
		body func(id int64) []byte
	}{
		{"unknown event type", func(id int64) []byte { return eventBody("checkout_session.expired", id) }},
		{"source event", func(id int64) []byte { return eventBody("source.chargeable", id) }},
		{"no transaction id", func(int64) []byte {
			return []byte(`{"data":{"attributes":{"type":"payment.paid","data":{"attributes":{"metadata":{}}}}}}`)
		}},
		{"non numeric transaction id", func(int64) []byte { return eventBody(paymongo.EventPaymentPaid, "abc") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWebhookFixture(t)
			id := f.pendingTransaction(t)

			out := deliver(t, f.webhooks, tt.body(id))
			if out.Ignored == "" || out.Updated {
				t.Errorf("outcome = %+v", out)
			}
			if got := f.status(t, id); got != models.StatusPending {
				t.Errorf("ignored event changed status to %s", got)
			}
		})
	}
}

func TestWebhookUnknownTransactionIsAcknowledged(t *testing.T) {
	f := newWebhookFixture(t)

	out := deliver(t, f.webhooks, eventBody(paymongo.EventPaymentPaid, 4242))
	if out.Updated || out.Status != "completed" || out.Ignored != "" {
		t.Errorf("outcome = %+v", out)
	}
}

func TestWebhookRejectsBadSignatures(t *testing.T) {
	f := newWebhookFixture(t)
	id := f.pendingTransaction(t)
	body := eventBody(paymongo.EventPaymentPaid, id)

	if _, err := f.webhooks.HandleEvent(context.Background(), body, ""); !errors.Is(err, paymongo.ErrMissingSignature) {
		t.Errorf("missing header: %v", err)
	}

	tampered := eventBody(paymongo.EventPaymentPaid, id+1)
	if _, err := f.webhooks.HandleEvent(context.Background(), tampered, sign(body)); !errors.Is(err, paymongo.ErrInvalidSignature) {
		t.Errorf("tampered body: %v", err)
	}

	if got := f.status(t, id); got != models.StatusPending {
		t.Errorf("rejected webhook changed status to %s", got)
	}
}

func TestWebhookMalformedPayload(t *testing.T) {
	f := newWebhookFixture(t)
	body := []byte(`{"data":`)

	_, err := f.webhooks.HandleEvent(context.Background(), body, sign(body))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
}

func TestWebhookStoreFailure(t *testing.T) {
	// Only donations exist, so the status update has nowhere to go.
	f := newWebhookFixture(t, repository.MemorySchema()[0])
	body := eventBody(paymongo.EventPaymentPaid, 1)

	_, err := f.webhooks.HandleEvent(context.Background(), body, sign(body))
	var sErr *StoreError
	if !errors.As(err, &sErr) || sErr.Table != models.TransactionsTable {
		t.Fatalf("expected a transactions StoreError, got %v", err)
	}
}

func TestCompleteOverridesAnyStatus(t *testing.T) {
	f := newWebhookFixture(t)
	id := f.pendingTransaction(t)

	f.notifier.EXPECT().PublishStatus(id, models.StatusFailed)
	f.notifier.EXPECT().PublishStatus(id, models.StatusCompleted)

	deliver(t, f.webhooks, eventBody(paymongo.EventPaymentFailed, id))

	resp, err := f.txns.Complete(context.Background(), id)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !resp.OK || resp.TransactionID != id || resp.Status != "completed" || !resp.Updated {
		t.Errorf("response = %+v", resp)
	}
	if got := f.status(t, id); got != models.StatusCompleted {
		t.Errorf("status = %s", got)
	}
}

func TestCompleteUnknownTransaction(t *testing.T) {
	f := newWebhookFixture(t)

	resp, err := f.txns.Complete(context.Background(), 77)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Updated {
		t.Error("nothing should have been updated")
	}

	var vErr *ValidationError
	if _, err := f.txns.Complete(context.Background(), 0); !errors.As(err, &vErr) {
		t.Errorf("zero id: %v", err)
	}
}

func TestGetTransaction(t *testing.T) {
	f := newWebhookFixture(t)
	id := f.pendingTransaction(t)

	got, err := f.txns.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TransactionID != id || got.Status != "pending" || !got.Amount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("unexpected response %+v", got)
	}

	if _, err := f.txns.Get(context.Background(), id+100); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing transaction: %v", err)
	}
}

func TestParseTransactionID(t *testing.T) {
	tests := []struct {
		in      any
		want    int64
		wantErr bool
	}{
		{float64(42), 42, false},
		{json.Number("9007199254740993"), 9007199254740993, false},
		{json.Number("1e19"), 0, true},
		{json.Number("-4"), 0, true},
		{float64(9007199254740993), 0, true},
		{1e19, 0, true},
		{"42", 42, false},
		{" 7 ", 7, false},
		{"012", 12, false},
		{float64(0), 0, true},
		{float64(-3), 0, true},
		{1.5, 0, true},
		{"abc", 0, true},
		{nil, 0, true},
		{true, 0, true},
	}

	for _, tt := range tests {
		got, err := ParseTransactionID(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseTransactionID(%v) = %d, %v", tt.in, got, err)
		}
	}
}

func TestLookupNeedsMatchingCheckoutSession(t *testing.T) {
	f := newWebhookFixture(t)
	id := f.pendingTransaction(t)
	unreferenced := f.pendingTransaction(t)
	if _, err := f.transactions.AttachReference(context.Background(), id, "cs_owner"); err != nil {
		t.Fatalf("AttachReference: %v", err)
	}

	got, err := f.txns.Lookup(context.Background(), id, " cs_owner ")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.TransactionID != id || got.ReferenceID == nil || *got.ReferenceID != "cs_owner" {
		t.Errorf("unexpected response %+v", got)
	}

	var vErr *ValidationError
	if _, err := f.txns.Lookup(context.Background(), id, ""); !errors.As(err, &vErr) || vErr.Field != "checkout_session_id" {
		t.Errorf("missing session: %v", err)
	}
	for _, tc := range []struct {
		id      int64
		session string
	}{
		{id, "cs_other"},
		{unreferenced, "cs_owner"},
		{id + 100, "cs_owner"},
	} {
		if _, err := f.txns.Lookup(context.Background(), tc.id, tc.session); !errors.Is(err, ErrNotFound) {
			t.Errorf("Lookup(%d, %q) = %v, want ErrNotFound", tc.id, tc.session, err)
		}
	}
}
