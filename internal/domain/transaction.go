package domain

import (
	"errors"
	"time"
)

// Canonical transaction types. The legacy two-value income/expense scheme
// and the localized three-value scheme both collapse into these; anything
// else is treated as unknown and contributes zero to the balance.
const (
	TypeDeposit    = "deposit"    // inflow
	TypeExpense    = "expense"    // discretionary outflow
	TypeInvestment = "investment" // committed outflow
)

var Types = []string{TypeDeposit, TypeExpense, TypeInvestment}

var Categories = []string{
	"education",
	"entertainment",
	"food",
	"health",
	"housing",
	"other",
	"salary",
	"transportation",
	"utilities",
}

var PaymentMethods = []string{
	"bank_transfer",
	"bank_slip",
	"cash",
	"credit_card",
	"debit_card",
	"other",
	"pix",
}

// Transaction is owned by the transactions service; the BFF treats it as a
// read/write-through value object. Amount is strictly positive; direction
// comes from Type.
type Transaction struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Name          string    `json:"name"`
	Type          string    `json:"type"`
	Category      string    `json:"category"`
	PaymentMethod string    `json:"paymentMethod"`
	Amount        float64   `json:"amount"`
	Date          time.Time `json:"date"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Sign maps a transaction type to its balance contribution direction.
// Unknown types return 0; callers should flag them for observability.
func Sign(txType string) int {
	switch txType {
	case TypeDeposit:
		return 1
	case TypeExpense, TypeInvestment:
		return -1
	default:
		return 0
	}
}

var ErrBadDate = errors.New("unparseable date")

// ParseDate accepts RFC3339 timestamps or plain YYYY-MM-DD calendar dates.
// Plain dates are anchored at noon UTC to avoid timezone day-shift.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Add(12 * time.Hour), nil
	}
	return time.Time{}, ErrBadDate
}
