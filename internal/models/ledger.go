package models

import "time"

// LedgerEntryType classifies a balance-affecting event.
type LedgerEntryType string

const (
	LedgerDebit  LedgerEntryType = "DEBIT"
	LedgerCredit LedgerEntryType = "CREDIT"
	LedgerRefund LedgerEntryType = "REFUND"
)

// LedgerEntry is one append-only row of the user balance ledger.
// The balance is the running sum of entries; rows are never updated or deleted.
type LedgerEntry struct {
	ID           string          `db:"id" json:"id"`
	UserID       string          `db:"user_id" json:"user_id"`
	JobID        *string         `db:"job_id" json:"job_id,omitempty"`
	Type         LedgerEntryType `db:"type" json:"type"`
	Amount       float64         `db:"amount" json:"amount"`
	BalanceAfter float64         `db:"balance_after" json:"balance_after"`
	Reason       string          `db:"reason" json:"reason,omitempty"`
	CreatedBy    string          `db:"created_by" json:"created_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}
