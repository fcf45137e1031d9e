// internal/models/intent.go
package models

import "github.com/shopspring/decimal"

// ExtractedIntent is the structured record the AI service pulls out of one
// user message. Amount is nil when the extractor did not find one.
type ExtractedIntent struct {
	TransactionType TransactionType  `json:"transaction_type"`
	Amount          *decimal.Decimal `json:"amount"`
	Currency        string           `json:"currency"`
	Memo            string           `json:"memo"`
	Counterparty    string           `json:"counterparty,omitempty"`
	Date            string           `json:"date,omitempty"` // YYYY-MM-DD
}
