// internal/models/transaction_types.go
package models

type TransactionType string

const (
	TransactionTypeSupplierInvoice      TransactionType = "Supplier_Invoice"
	TransactionTypeMiscellaneousPayment TransactionType = "Miscellaneous_Payment"
	TransactionTypeAdHocPayment         TransactionType = "Ad_Hoc_Payment"
)

func (t TransactionType) String() string {
	return string(t)
}
