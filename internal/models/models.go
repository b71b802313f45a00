package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Table and column names follow the store's snake_case schema so the same
// strings work for sqlx, PostgREST and the in-memory driver.
const (
	DonationsTable    = "donations"
	TransactionsTable = "transactions"
)

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// Terminal reports whether no further transition is defined out of s.
func (s TransactionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// NoteKey is the donor-selected classification shown on receipts.
type NoteKey string

const (
	NoteAnonymous  NoteKey = "anonymous"
	NoteFamily     NoteKey = "family"
	NoteIndividual NoteKey = "individual"
)

// ParseNoteKey falls back to NoteIndividual for anything it does not know.
func ParseNoteKey(raw string) NoteKey {
	switch NoteKey(raw) {
	case NoteAnonymous, NoteFamily, NoteIndividual:
		return NoteKey(raw)
	default:
		return NoteIndividual
	}
}

// Label is the default human readable label for the key.
func (k NoteKey) Label() string {
	switch k {
	case NoteAnonymous:
		return "Anonymous"
	case NoteFamily:
		return "Family"
	default:
		return "Individual"
	}
}

// Donation represents a single giving act.
// DonorID is nil whenever IsAnonymous is set.
type Donation struct {
	ID           int64           `db:"donation_id" json:"donation_id"`
	DonorID      *int64          `db:"donor_id" json:"donor_id"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	IsAnonymous  bool            `db:"is_anonymous" json:"is_anonymous"`
	BranchID     *int64          `db:"branch_id" json:"branch_id"`
	Notes        string          `db:"notes" json:"notes"`
	DonationDate time.Time       `db:"donation_date" json:"donation_date"`
}

// Transaction is one payment attempt against a donation.
type Transaction struct {
	ID              int64             `db:"transaction_id" json:"transaction_id"`
	DonationID      int64             `db:"donation_id" json:"donation_id"`
	Amount          decimal.Decimal   `db:"amount" json:"amount"`
	Status          TransactionStatus `db:"status" json:"status"`
	ReferenceID     *string           `db:"reference_id" json:"reference_id"`
	TransactionType string            `db:"transaction_type" json:"transaction_type"`
	CreatedBy       int64             `db:"created_by" json:"created_by"`
	BranchID        *int64            `db:"branch_id" json:"branch_id"`
	Notes           string            `db:"notes" json:"notes"`
	TransactionDate time.Time         `db:"transaction_date" json:"transaction_date"`
	UpdatedAt       *time.Time        `db:"updated_at" json:"updated_at"`
}
