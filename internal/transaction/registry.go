package transaction

import (
	"fmt"

	"finhub-workers/internal/models"
)

// definition is the single source for a transaction type: the registry derives
// its Operation and the builder its request strategy from it.
type definition struct {
	Type        models.TransactionType
	DataElement string
	// counterparty and date are optional fields whose element depends on the type.
	counterparty func(req *RemoteRequest, id string)
	date         func(req *RemoteRequest, date string)
}

var definitions = []definition{
	{
		Type:         models.TransactionTypeSupplierInvoice,
		DataElement:  "Supplier_Invoice_Data",
		counterparty: supplierReference("Supplier_ID"),
		date:         invoiceDate,
	},
	{
		Type:         models.TransactionTypeMiscellaneousPayment,
		DataElement:  "Miscellaneous_Payment_Request_Data",
		counterparty: payeeReference("Payee_ID"),
		date:         paymentDate,
	},
	{
		Type:         models.TransactionTypeAdHocPayment,
		DataElement:  "Ad_Hoc_Payment_Data",
		counterparty: payeeReference("Ad_Hoc_Payee_ID"),
		date:         paymentDate,
	},
}

func supplierReference(idType string) func(*RemoteRequest, string) {
	return func(req *RemoteRequest, id string) {
		ref := newReference(idType, id)
		req.SupplierReference = &ref
	}
}

func payeeReference(idType string) func(*RemoteRequest, string) {
	return func(req *RemoteRequest, id string) {
		ref := newReference(idType, id)
		req.PayeeReference = &ref
	}
}

func invoiceDate(req *RemoteRequest, date string) { req.InvoiceDate = date }

func paymentDate(req *RemoteRequest, date string) { req.PaymentDate = date }

func (d definition) operation() Operation {
	name := "Submit_" + string(d.Type)
	return Operation{
		Type:           d.Type,
		Name:           name,
		RequestElement: name + "_Request",
		DataElement:    d.DataElement,
	}
}

// Registry is the closed set of supported operations.
type Registry struct {
	operations map[models.TransactionType]Operation
	order      []models.TransactionType
}

var defaultRegistry = newRegistry(definitions)

// DefaultRegistry returns the registry of every supported transaction type.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

func newRegistry(defs []definition) *Registry {
	r := &Registry{operations: make(map[models.TransactionType]Operation, len(defs))}
	for _, d := range defs {
		r.operations[d.Type] = d.operation()
		r.order = append(r.order, d.Type)
	}
	return r
}

// Resolve returns the operation for t. Unknown types fail with
// ErrUnsupportedOperation naming t verbatim.
func (r *Registry) Resolve(t models.TransactionType) (Operation, error) {
	op, ok := r.operations[t]
	if !ok {
		return Operation{}, fmt.Errorf("%w: %s", ErrUnsupportedOperation, t)
	}
	return op, nil
}

// Supported lists the transaction types in definition order.
func (r *Registry) Supported() []models.TransactionType {
	out := make([]models.TransactionType, len(r.order))
	copy(out, r.order)
	return out
}

// Operations lists every operation in definition order.
func (r *Registry) Operations() []Operation {
	out := make([]Operation, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.operations[t])
	}
	return out
}

// IsSupported reports whether t is a known transaction type.
func IsSupported(t models.TransactionType) bool {
	_, ok := defaultRegistry.operations[t]
	return ok
}
