package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type CheckoutRequest struct {
	AmountPHP          *decimal.Decimal `json:"amount_php" binding:"required"`
	Wallet             string           `json:"wallet"`
	DonorNoteKey       string           `json:"donor_note_key"`
	DonorNoteLabel     string           `json:"donor_note_label"`
	Message            string           `json:"message"`
	PaymentMethodTypes []string         `json:"payment_method_types"`
	SuccessURL         string           `json:"success_url"`
	CancelURL          string           `json:"cancel_url"`
	// Metadata must carry app_user_id and may carry branch_id. Everything in
	// it is forwarded to the provider as strings.
	Metadata map[string]any `json:"metadata"`
}

type CheckoutResponse struct {
	CheckoutURL       string `json:"checkout_url"`
	CheckoutSessionID string `json:"checkout_session_id"`
	TransactionID     int64  `json:"transaction_id"`
	DonationID        int64  `json:"donation_id"`
}

// WebhookResult describes what a webhook delivery did. Ignored is set when
// the event was acknowledged without touching the store.
type WebhookResult struct {
	TransactionID int64
	Updated       bool
	Status        string
	Ignored       string
}

type CompleteTransactionRequest struct {
	// TransactionID accepts a JSON number or a numeric string.
	TransactionID any `json:"transaction_id"`
}

type CompleteTransactionResponse struct {
	OK            bool   `json:"ok"`
	TransactionID int64  `json:"transaction_id"`
	Status        string `json:"status"`
	Updated       bool   `json:"updated"`
}

type TransactionStatusResponse struct {
	TransactionID int64           `json:"transaction_id"`
	DonationID    int64           `json:"donation_id"`
	Status        string          `json:"status"`
	ReferenceID   *string         `json:"reference_id"`
	Amount        decimal.Decimal `json:"amount"`
	UpdatedAt     *time.Time      `json:"updated_at"`
}

// StatusUpdate is pushed to live subscribers of a transaction.
type StatusUpdate struct {
	TransactionID int64  `json:"transaction_id"`
	Status        string `json:"status"`
}
