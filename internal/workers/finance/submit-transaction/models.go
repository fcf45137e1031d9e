package submittransaction

import (
	"finhub-workers/internal/models"
	"finhub-workers/internal/transaction"
)

// Input reads the extract-intent output. TransactionType, when set,
// overrides the type inside Intent.
type Input struct {
	TransactionType models.TransactionType `json:"transactionType,omitempty"`
	Intent          models.ExtractedIntent `json:"intent"`
}

// Output is written back to the process on a successful dispatch.
type Output struct {
	DispatchStatus transaction.Status          `json:"dispatchStatus"`
	Operation      string                      `json:"operation"`
	Payload        *transaction.RemoteResponse `json:"payload,omitempty"`
}
