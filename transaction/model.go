package transaction

import (
	"fmt"
	"time"
)

// Transaction is a categorized statement item. Amounts are in minor units.
type Transaction struct {
	ID           string    `json:"id"`
	UserID       int64     `json:"user_id"`
	Account      string    `json:"account"`
	Amount       int64     `json:"amount"`
	Balance      int64     `json:"balance"`
	CurrencyCode int       `json:"currency_code"`
	MCC          int       `json:"mcc"`
	Category     string    `json:"category"`
	Description  string    `json:"description"`
	Time         time.Time `json:"time"`
}

// Summary renders the transaction as a one-line notification.
func (t *Transaction) Summary() string {
	sign := ""
	amount := t.Amount
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d %s: %s", sign, amount/100, amount%100, t.Category, t.Description)
}
