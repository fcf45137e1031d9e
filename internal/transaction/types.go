// Package transaction resolves transaction types to remote operations, builds
// the request documents and dispatches them to the financial system.
package transaction

import (
	"context"
	"encoding/xml"
	"errors"

	apperrors "finhub-workers/internal/common/errors"
	"finhub-workers/internal/models"
)

var (
	ErrUnsupportedOperation = errors.New("unsupported transaction type")
	ErrMalformedIntent      = errors.New("malformed transaction intent")
)

// MessageCredentialsNotConfigured is the failure message when any credential
// field is empty.
const MessageCredentialsNotConfigured = "credentials not configured"

// Operation is a resolved remote operation. All names are fixed when the
// operation is defined.
type Operation struct {
	Type           models.TransactionType `json:"transactionType"`
	Name           string                 `json:"name"`
	RequestElement string                 `json:"requestElement"`
	DataElement    string                 `json:"dataElement"`
}

// RemoteRequest is the data document submitted inside an operation's request
// element. Its XML element name is the operation's DataElement.
type RemoteRequest struct {
	XMLName            xml.Name
	SupplierReference  *Reference `xml:"Supplier_Reference,omitempty" json:"supplierReference,omitempty"`
	PayeeReference     *Reference `xml:"Payee_Reference,omitempty" json:"payeeReference,omitempty"`
	InvoiceDate        string     `xml:"Invoice_Date,omitempty" json:"invoiceDate,omitempty"`
	PaymentDate        string     `xml:"Payment_Date,omitempty" json:"paymentDate,omitempty"`
	ControlAmountTotal string     `xml:"Control_Amount_Total" json:"controlAmountTotal"`
	CurrencyReference  Reference  `xml:"Currency_Reference" json:"currencyReference"`
	Memo               string     `xml:"Memo,omitempty" json:"memo,omitempty"`
}

// Reference is a typed identifier reference.
type Reference struct {
	ID ReferenceID `xml:"ID" json:"id"`
}

type ReferenceID struct {
	Type  string `xml:"type,attr" json:"type"`
	Value string `xml:",chardata" json:"value"`
}

func newReference(idType, value string) Reference {
	return Reference{ID: ReferenceID{Type: idType, Value: value}}
}

// RemoteResponse is the body element returned by the remote system, kept
// verbatim.
type RemoteResponse struct {
	Element string `json:"element"`
	Raw     string `json:"raw"`
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Result is the normalized outcome of one dispatch.
type Result struct {
	Status    Status              `json:"status"`
	Payload   *RemoteResponse     `json:"payload,omitempty"`
	Message   string              `json:"message,omitempty"`
	Code      apperrors.ErrorCode `json:"code,omitempty"`
	Operation string              `json:"operation,omitempty"`
}

func Success(operation string, payload *RemoteResponse) Result {
	return Result{Status: StatusSuccess, Payload: payload, Operation: operation}
}

func Failure(code apperrors.ErrorCode, message string) Result {
	return Result{Status: StatusFailure, Code: code, Message: message}
}

func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// Transport performs the single remote call for a dispatch.
type Transport interface {
	Submit(ctx context.Context, op Operation, creds models.Credentials, req *RemoteRequest) (*RemoteResponse, error)
}

// Resolver maps a transaction type to its operation.
type Resolver interface {
	Resolve(t models.TransactionType) (Operation, error)
}

// RequestBuilder derives the request document from an intent.
type RequestBuilder interface {
	BuildFor(t models.TransactionType, intent models.ExtractedIntent) (*RemoteRequest, error)
}
