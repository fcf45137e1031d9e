package transaction

import (
	"encoding/xml"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finhub-workers/internal/models"
)

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestBuilder_SupplierInvoice(t *testing.T) {
	intent := models.ExtractedIntent{
		TransactionType: models.TransactionTypeSupplierInvoice,
		Amount:          amount("500.00"),
		Currency:        "USD",
		Memo:            "Office Depot",
	}

	req, err := NewBuilder(DefaultMemoMaxLength).Build(intent)
	require.NoError(t, err)

	assert.Equal(t, "Supplier_Invoice_Data", req.XMLName.Local)
	assert.Equal(t, "500.00", req.ControlAmountTotal)
	assert.Equal(t, Reference{ID: ReferenceID{Type: "Currency_ID", Value: "USD"}}, req.CurrencyReference)
	assert.Equal(t, "Office Depot", req.Memo)
	assert.Nil(t, req.SupplierReference)
	assert.Nil(t, req.PayeeReference)

	out, err := xml.Marshal(req)
	require.NoError(t, err)
	assert.Equal(t,
		`<Supplier_Invoice_Data><Control_Amount_Total>500.00</Control_Amount_Total>`+
			`<Currency_Reference><ID type="Currency_ID">USD</ID></Currency_Reference>`+
			`<Memo>Office Depot</Memo></Supplier_Invoice_Data>`,
		string(out))
}

func TestBuilder_CounterpartyAndDatePerType(t *testing.T) {
	tests := []struct {
		txType        models.TransactionType
		supplierRef   *Reference
		payeeRef      *Reference
		invoiceDate   string
		paymentDate   string
		expectElement string
	}{
		{
			txType:        models.TransactionTypeSupplierInvoice,
			supplierRef:   &Reference{ID: ReferenceID{Type: "Supplier_ID", Value: "SUP-0042"}},
			invoiceDate:   "2024-03-01",
			expectElement: "Supplier_Invoice_Data",
		},
		{
			txType:        models.TransactionTypeMiscellaneousPayment,
			payeeRef:      &Reference{ID: ReferenceID{Type: "Payee_ID", Value: "SUP-0042"}},
			paymentDate:   "2024-03-01",
			expectElement: "Miscellaneous_Payment_Request_Data",
		},
		{
			txType:        models.TransactionTypeAdHocPayment,
			payeeRef:      &Reference{ID: ReferenceID{Type: "Ad_Hoc_Payee_ID", Value: "SUP-0042"}},
			paymentDate:   "2024-03-01",
			expectElement: "Ad_Hoc_Payment_Data",
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.txType), func(t *testing.T) {
			req, err := NewBuilder(0).BuildFor(tt.txType, models.ExtractedIntent{
				Amount:       amount("10"),
				Currency:     "usd",
				Counterparty: "  SUP-0042 ",
				Date:         "2024-03-01",
			})
			require.NoError(t, err)

			assert.Equal(t, tt.expectElement, req.XMLName.Local)
			assert.Equal(t, tt.supplierRef, req.SupplierReference)
			assert.Equal(t, tt.payeeRef, req.PayeeReference)
			assert.Equal(t, tt.invoiceDate, req.InvoiceDate)
			assert.Equal(t, tt.paymentDate, req.PaymentDate)
			assert.Equal(t, "USD", req.CurrencyReference.ID.Value)
		})
	}
}

func TestBuilder_PadsToCurrencyScale(t *testing.T) {
	tests := []struct {
		currency string
		amount   string
		expected string
	}{
		{"USD", "120.5", "120.50"},
		{"USD", "12.500", "12.50"},
		{"EUR", "120.51", "120.51"},
		{"JPY", "1500", "1500"},
		{"BHD", "3.1", "3.100"},
		{"USD", "0", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.currency+"_"+tt.amount, func(t *testing.T) {
			req, err := NewBuilder(0).BuildFor(models.TransactionTypeAdHocPayment, models.ExtractedIntent{
				Amount:   amount(tt.amount),
				Currency: tt.currency,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, req.ControlAmountTotal)
		})
	}
}

func TestBuilder_RejectsSubMinorUnitAmounts(t *testing.T) {
	tests := []struct {
		currency string
		amount   string
	}{
		{"USD", "0.004"},
		{"EUR", "120.505"},
		{"JPY", "1500.4"},
		{"BHD", "3.1234"},
	}

	for _, tt := range tests {
		t.Run(tt.currency+"_"+tt.amount, func(t *testing.T) {
			req, err := NewBuilder(0).BuildFor(models.TransactionTypeAdHocPayment, models.ExtractedIntent{
				Amount:   amount(tt.amount),
				Currency: tt.currency,
			})

			require.Error(t, err)
			assert.Nil(t, req)
			assert.True(t, errors.Is(err, ErrMalformedIntent))
			assert.Contains(t, err.Error(), "decimal places for "+tt.currency)
		})
	}
}

func TestBuilder_MalformedIntent(t *testing.T) {
	valid := func() models.ExtractedIntent {
		return models.ExtractedIntent{
			TransactionType: models.TransactionTypeSupplierInvoice,
			Amount:          amount("100"),
			Currency:        "USD",
			Memo:            "ok",
		}
	}

	tests := []struct {
		name    string
		mutate  func(i *models.ExtractedIntent)
		message string
	}{
		{"missing amount", func(i *models.ExtractedIntent) { i.Amount = nil }, "amount is required"},
		{"negative amount", func(i *models.ExtractedIntent) { i.Amount = amount("-10") }, "must not be negative"},
		{"empty currency", func(i *models.ExtractedIntent) { i.Currency = "" }, "ISO-4217"},
		{"unknown currency", func(i *models.ExtractedIntent) { i.Currency = "ZZQ" }, "ISO-4217"},
		{"currency name instead of code", func(i *models.ExtractedIntent) { i.Currency = "dollars" }, "ISO-4217"},
		{"memo too long", func(i *models.ExtractedIntent) { i.Memo = strings.Repeat("m", 501) }, "limit is 500"},
		{"bad date", func(i *models.ExtractedIntent) { i.Date = "03/01/2024" }, "not YYYY-MM-DD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := valid()
			tt.mutate(&intent)

			req, err := NewBuilder(DefaultMemoMaxLength).Build(intent)

			require.Error(t, err)
			assert.Nil(t, req)
			assert.True(t, errors.Is(err, ErrMalformedIntent))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestBuilder_MemoLimitCountsRunes(t *testing.T) {
	b := NewBuilder(5)
	intent := models.ExtractedIntent{Amount: amount("1"), Currency: "EUR", Memo: "café!"}

	_, err := b.BuildFor(models.TransactionTypeAdHocPayment, intent)
	assert.NoError(t, err)

	intent.Memo = "cafés!"
	_, err = b.BuildFor(models.TransactionTypeAdHocPayment, intent)
	assert.True(t, errors.Is(err, ErrMalformedIntent))
}

func TestBuilder_UnknownType(t *testing.T) {
	_, err := NewBuilder(0).BuildFor("Journal_Entry", models.ExtractedIntent{Amount: amount("1"), Currency: "USD"})
	assert.True(t, errors.Is(err, ErrUnsupportedOperation))
}

func TestBuilder_Idempotent(t *testing.T) {
	b := NewBuilder(DefaultMemoMaxLength)
	intent := models.ExtractedIntent{
		TransactionType: models.TransactionTypeMiscellaneousPayment,
		Amount:          amount("75.25"),
		Currency:        "GBP",
		Memo:            "Team lunch",
		Counterparty:    "PAYEE-7",
		Date:            "2024-05-17",
	}

	first, err := b.Build(intent)
	require.NoError(t, err)
	second, err := b.Build(intent)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotSame(t, first, second)

	firstXML, _ := xml.Marshal(first)
	secondXML, _ := xml.Marshal(second)
	assert.Equal(t, string(firstXML), string(secondXML))
}
