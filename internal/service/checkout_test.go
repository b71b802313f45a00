package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"donation-platform/internal/database"
	"donation-platform/internal/dto"
	"donation-platform/internal/mocks"
	"donation-platform/internal/models"
	"donation-platform/internal/paymongo"
	"donation-platform/internal/repository"
	"donation-platform/internal/returnurl"
	"donation-platform/internal/store"
)

type fixture struct {
	mem          *database.Memory
	transactions repository.TransactionRepository
	client       *mocks.MockCheckoutClient
	checkout     CheckoutService
}

func newFixture(t *testing.T, tables ...database.MemoryTable) *fixture {
	t.Helper()
	if len(tables) == 0 {
		tables = repository.MemorySchema()
	}
	ctrl := gomock.NewController(t)
	mem := database.NewMemory(tables...)
	log := zap.NewNop()
	writer := store.NewWriter(mem, log)
	donations := repository.NewDonationRepository(mem, writer)
	transactions := repository.NewTransactionRepository(mem, writer)
	client := mocks.NewMockCheckoutClient(ctrl)

	return &fixture{
		mem:          mem,
		transactions: transactions,
		client:       client,
		checkout: NewCheckoutService(donations, transactions, client, CheckoutOptions{
			ReturnURLs: returnurl.Normalizer{BaseWebURL: "https://give.example.org"},
		}, log),
	}
}

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func validRequest() dto.CheckoutRequest {
	return dto.CheckoutRequest{
		AmountPHP:    amount("500.00"),
		Wallet:       "gcash",
		DonorNoteKey: "anonymous",
		SuccessURL:   "https://app.example.org/donate/success",
		CancelURL:    "https://app.example.org/donate/cancel",
		Metadata:     map[string]any{"app_user_id": float64(7)},
	}
}

func TestCreateCheckoutAnonymousDonation(t *testing.T) {
	f := newFixture(t)

	var sent paymongo.CheckoutSessionRequest
	f.client.EXPECT().CreateCheckoutSession(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req paymongo.CheckoutSessionRequest) (*paymongo.CheckoutSession, error) {
			sent = req
			return &paymongo.CheckoutSession{ID: "cs_123", CheckoutURL: "https://pay.example/cs_123"}, nil
		})

	resp, err := f.checkout.CreateCheckout(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	if resp.CheckoutURL != "https://pay.example/cs_123" || resp.CheckoutSessionID != "cs_123" {
		t.Errorf("unexpected response %+v", resp)
	}

	donations := f.mem.Rows(models.DonationsTable)
	txns := f.mem.Rows(models.TransactionsTable)
	if len(donations) != 1 || len(txns) != 1 {
		t.Fatalf("expected one donation and one transaction, got %d and %d", len(donations), len(txns))
	}
	d := donations[0]
	if d["donor_id"] != nil || d["is_anonymous"] != true {
		t.Errorf("anonymous donation carries a donor: %v", d)
	}
	if !d["amount"].(decimal.Decimal).Equal(decimal.RequireFromString("500")) {
		t.Errorf("donation amount = %v", d["amount"])
	}
	if d["donation_id"] != resp.DonationID {
		t.Errorf("donation_id = %v, response says %d", d["donation_id"], resp.DonationID)
	}

	txn, err := f.transactions.FindByID(context.Background(), resp.TransactionID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if txn.DonationID != resp.DonationID || !txn.Amount.Equal(d["amount"].(decimal.Decimal)) {
		t.Errorf("transaction not linked to its donation: %+v", txn)
	}
	if txn.Status != models.StatusPending || txn.ReferenceID == nil || *txn.ReferenceID != "cs_123" {
		t.Errorf("unexpected transaction state %+v", txn)
	}
	if txn.CreatedBy != 7 || txn.TransactionType != "gcash" {
		t.Errorf("created_by/transaction_type = %d/%s", txn.CreatedBy, txn.TransactionType)
	}

	if sent.Amount != 50000 || sent.Currency != "PHP" {
		t.Errorf("provider amount = %d %s", sent.Amount, sent.Currency)
	}
	if len(sent.PaymentMethodTypes) != 1 || sent.PaymentMethodTypes[0] != "gcash" {
		t.Errorf("payment methods = %v", sent.PaymentMethodTypes)
	}
	if sent.Metadata["transaction_id"] != "1" || sent.Metadata["donation_id"] != "1" || sent.Metadata["app_user_id"] != "7" {
		t.Errorf("metadata = %v", sent.Metadata)
	}
	for _, raw := range []string{sent.SuccessURL, sent.CancelURL} {
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatal(err)
		}
		if u.Query().Get("transaction_id") != "1" || u.Query().Get("donation_id") != "1" {
			t.Errorf("redirect url missing ids: %s", raw)
		}
	}
}

func TestCreateCheckoutNamedDonor(t *testing.T) {
	f := newFixture(t)
	f.client.EXPECT().CreateCheckoutSession(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req paymongo.CheckoutSessionRequest) (*paymongo.CheckoutSession, error) {
			if req.Amount != 10050 {
				t.Errorf("amount = %d, want 10050", req.Amount)
			}
			if len(req.PaymentMethodTypes) != 2 {
				t.Errorf("explicit payment methods ignored: %v", req.PaymentMethodTypes)
			}
			return &paymongo.CheckoutSession{ID: "cs_9", CheckoutURL: "https://pay.example/cs_9"}, nil
		})

	req := validRequest()
	req.AmountPHP = amount("100.499")
	req.DonorNoteKey = "family"
	req.Message = "for the roof"
	req.PaymentMethodTypes = []string{"gcash", "paymaya"}
	req.SuccessURL = "parish://donation/success"
	req.Metadata = map[string]any{"app_user_id": "12", "branch_id": float64(3)}

	if _, err := f.checkout.CreateCheckout(context.Background(), req); err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}

	d := f.mem.Rows(models.DonationsTable)[0]
	if d["donor_id"] != int64(12) || d["is_anonymous"] != false || d["branch_id"] != int64(3) {
		t.Errorf("unexpected donation %v", d)
	}
	if d["notes"] != "Family: for the roof" {
		t.Errorf("notes = %q", d["notes"])
	}
}

func TestCreateCheckoutValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *dto.CheckoutRequest)
		field  string
	}{
		{"missing amount", func(r *dto.CheckoutRequest) { r.AmountPHP = nil }, "amount_php"},
		{"zero amount", func(r *dto.CheckoutRequest) { r.AmountPHP = amount("0") }, "amount_php"},
		{"negative amount", func(r *dto.CheckoutRequest) { r.AmountPHP = amount("-5") }, "amount_php"},
		{"below one centavo", func(r *dto.CheckoutRequest) { r.AmountPHP = amount("0.004") }, "amount_php"},
		{"missing success url", func(r *dto.CheckoutRequest) { r.SuccessURL = "" }, "success_url"},
		{"missing cancel url", func(r *dto.CheckoutRequest) { r.CancelURL = " " }, "cancel_url"},
		{"missing app user", func(r *dto.CheckoutRequest) { r.Metadata = map[string]any{"user_id": "auth0|abc"} }, "metadata.app_user_id"},
		{"non numeric app user", func(r *dto.CheckoutRequest) { r.Metadata = map[string]any{"app_user_id": "abc"} }, "metadata.app_user_id"},
		{"fractional app user", func(r *dto.CheckoutRequest) { r.Metadata = map[string]any{"app_user_id": 1.5} }, "metadata.app_user_id"},
		{"non numeric branch", func(r *dto.CheckoutRequest) { r.Metadata["branch_id"] = "main" }, "metadata.branch_id"},
		{"app user beyond float precision", func(r *dto.CheckoutRequest) { r.Metadata = map[string]any{"app_user_id": float64(9007199254740993)} }, "metadata.app_user_id"},
		{"app user overflowing int64", func(r *dto.CheckoutRequest) { r.Metadata = map[string]any{"app_user_id": 1e19} }, "metadata.app_user_id"},
		{"app user number overflowing int64", func(r *dto.CheckoutRequest) { r.Metadata = map[string]any{"app_user_id": json.Number("1e19")} }, "metadata.app_user_id"},
		{"branch overflowing int64", func(r *dto.CheckoutRequest) { r.Metadata["branch_id"] = json.Number("99999999999999999999") }, "metadata.branch_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := validRequest()
			req.Metadata = map[string]any{"app_user_id": float64(7)}
			tt.mutate(&req)

			_, err := f.checkout.CreateCheckout(context.Background(), req)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("field = %q, want %q", vErr.Field, tt.field)
			}
			if n := len(f.mem.Rows(models.DonationsTable)); n != 0 {
				t.Errorf("validation failure wrote %d donations", n)
			}
		})
	}
}

func TestCreateCheckoutKeepsLargeAppUserIDExact(t *testing.T) {
	f := newFixture(t)
	f.client.EXPECT().CreateCheckoutSession(gomock.Any(), gomock.Any()).
		Return(&paymongo.CheckoutSession{ID: "cs_big", CheckoutURL: "https://pay.example/cs_big"}, nil)

	req := validRequest()
	req.DonorNoteKey = "individual"
	req.Metadata = map[string]any{"app_user_id": json.Number("9007199254740993")}

	resp, err := f.checkout.CreateCheckout(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	txn, err := f.transactions.FindByID(context.Background(), resp.TransactionID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if txn.CreatedBy != 9007199254740993 {
		t.Errorf("created_by = %d, want 9007199254740993", txn.CreatedBy)
	}
	if d := f.mem.Rows(models.DonationsTable)[0]; d["donor_id"] != int64(9007199254740993) {
		t.Errorf("donor_id = %v (%T)", d["donor_id"], d["donor_id"])
	}
}

func TestCreateCheckoutRejectsInsecureReturnURL(t *testing.T) {
	f := newFixture(t)
	f.checkout.(*checkoutServiceImpl).opts.ReturnURLs = returnurl.Normalizer{}

	req := validRequest()
	req.CancelURL = "http://example.org/cancel"

	_, err := f.checkout.CreateCheckout(context.Background(), req)
	if !errors.Is(err, returnurl.ErrInsecureURL) {
		t.Fatalf("expected ErrInsecureURL, got %v", err)
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "cancel_url" {
		t.Errorf("expected a cancel_url validation error, got %v", err)
	}
}

func TestCreateCheckoutCompensatesFailedTransactionInsert(t *testing.T) {
	// No transactions table: the second insert fails.
	f := newFixture(t, repository.MemorySchema()[0])

	_, err := f.checkout.CreateCheckout(context.Background(), validRequest())

	var sErr *StoreError
	if !errors.As(err, &sErr) {
		t.Fatalf("expected *StoreError, got %v", err)
	}
	if sErr.Table != models.TransactionsTable {
		t.Errorf("table = %q", sErr.Table)
	}
	if n := len(f.mem.Rows(models.DonationsTable)); n != 0 {
		t.Errorf("orphaned donation left behind: %d rows", n)
	}
}

func TestCreateCheckoutLogsFailedCompensation(t *testing.T) {
	ctrl := gomock.NewController(t)
	driver := mocks.NewMockDriver(ctrl)
	core, logs := observer.New(zap.ErrorLevel)
	log := zap.New(core)

	gomock.InOrder(
		driver.EXPECT().Insert(gomock.Any(), models.DonationsTable, gomock.Any(), []string{"donation_id"}).
			Return(database.Row{"donation_id": int64(5)}, nil),
		driver.EXPECT().Insert(gomock.Any(), models.TransactionsTable, gomock.Any(), []string{"transaction_id"}).
			Return(nil, errors.New("connection reset by peer")),
		driver.EXPECT().Delete(gomock.Any(), models.DonationsTable, database.Filter{database.Eq("donation_id", int64(5))}).
			Return(int64(0), errors.New("connection refused")),
	)

	writer := store.NewWriter(driver, log)
	svc := NewCheckoutService(
		repository.NewDonationRepository(driver, writer),
		repository.NewTransactionRepository(driver, writer),
		mocks.NewMockCheckoutClient(ctrl),
		CheckoutOptions{},
		log,
	)

	_, err := svc.CreateCheckout(context.Background(), validRequest())
	if err == nil || !strings.Contains(err.Error(), "connection reset by peer") {
		t.Fatalf("original error lost: %v", err)
	}
	if strings.Contains(err.Error(), "connection refused") {
		t.Errorf("compensation error leaked into the response: %v", err)
	}
	if logs.FilterMessage("compensation failed, manual cleanup required").Len() != 1 {
		t.Errorf("compensation failure was not logged: %v", logs.All())
	}
}

func TestCreateCheckoutProviderFailureMarksTransactionFailed(t *testing.T) {
	f := newFixture(t)
	f.client.EXPECT().CreateCheckoutSession(gomock.Any(), gomock.Any()).
		Return(nil, &paymongo.APIError{StatusCode: 400, Body: `{"errors":[]}`})

	_, err := f.checkout.CreateCheckout(context.Background(), validRequest())

	var cErr *CheckoutError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected *CheckoutError, got %v", err)
	}
	if cErr.TransactionID == 0 || cErr.DonationID == 0 {
		t.Errorf("ids missing from error: %+v", cErr)
	}
	if p := cErr.Provider(); p == nil || p.StatusCode != 400 {
		t.Errorf("provider diagnostics missing: %+v", p)
	}

	if n := len(f.mem.Rows(models.DonationsTable)); n != 1 {
		t.Errorf("donation should be kept, found %d", n)
	}
	txn, err := f.transactions.FindByID(context.Background(), cErr.TransactionID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if txn.Status != models.StatusFailed || txn.ReferenceID != nil {
		t.Errorf("unexpected transaction %+v", txn)
	}
}

func TestCreateCheckoutIncompleteSession(t *testing.T) {
	f := newFixture(t)
	f.client.EXPECT().CreateCheckoutSession(gomock.Any(), gomock.Any()).
		Return(nil, paymongo.ErrIncompleteSession)

	_, err := f.checkout.CreateCheckout(context.Background(), validRequest())
	var cErr *CheckoutError
	if !errors.As(err, &cErr) || !errors.Is(err, paymongo.ErrIncompleteSession) {
		t.Fatalf("expected CheckoutError wrapping ErrIncompleteSession, got %v", err)
	}
	if cErr.Provider() != nil {
		t.Error("no provider response was received")
	}
}
