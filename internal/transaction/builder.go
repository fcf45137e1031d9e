package transaction

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/currency"

	"finhub-workers/internal/models"
)

// DefaultMemoMaxLength is the memo limit in runes when none is configured.
const DefaultMemoMaxLength = 500

const dateLayout = "2006-01-02"

// Builder derives RemoteRequests from extracted intents. It reads no clock and
// holds no mutable state, so the same intent always yields an equal request.
type Builder struct {
	memoMaxLength int
	strategies    map[models.TransactionType]definition
}

// NewBuilder returns a builder enforcing memoMaxLength runes on memos.
// Non-positive values fall back to DefaultMemoMaxLength.
func NewBuilder(memoMaxLength int) *Builder {
	if memoMaxLength <= 0 {
		memoMaxLength = DefaultMemoMaxLength
	}
	strategies := make(map[models.TransactionType]definition, len(definitions))
	for _, d := range definitions {
		strategies[d.Type] = d
	}
	return &Builder{memoMaxLength: memoMaxLength, strategies: strategies}
}

// Build uses the intent's own transaction type.
func (b *Builder) Build(intent models.ExtractedIntent) (*RemoteRequest, error) {
	return b.BuildFor(intent.TransactionType, intent)
}

// BuildFor builds the request document for t from intent.
func (b *Builder) BuildFor(t models.TransactionType, intent models.ExtractedIntent) (*RemoteRequest, error) {
	strategy, ok := b.strategies[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperation, t)
	}

	if intent.Amount == nil {
		return nil, fmt.Errorf("%w: amount is required", ErrMalformedIntent)
	}
	if intent.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount must not be negative, got %s", ErrMalformedIntent, intent.Amount.String())
	}

	unit, err := parseCurrency(intent.Currency)
	if err != nil {
		return nil, err
	}

	if n := utf8.RuneCountInString(intent.Memo); n > b.memoMaxLength {
		return nil, fmt.Errorf("%w: memo is %d characters, limit is %d", ErrMalformedIntent, n, b.memoMaxLength)
	}

	date := strings.TrimSpace(intent.Date)
	if date != "" {
		if _, err := time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrMalformedIntent, intent.Date)
		}
	}

	scale, _ := currency.Standard.Rounding(unit)
	minor := int32(scale)
	if !intent.Amount.Equal(intent.Amount.Truncate(minor)) {
		return nil, fmt.Errorf("%w: amount %s has more than %d decimal places for %s",
			ErrMalformedIntent, intent.Amount.String(), minor, unit)
	}

	req := &RemoteRequest{
		ControlAmountTotal: intent.Amount.StringFixed(minor),
		CurrencyReference:  newReference("Currency_ID", unit.String()),
		Memo:               intent.Memo,
	}
	req.XMLName.Local = strategy.DataElement

	if counterparty := strings.TrimSpace(intent.Counterparty); counterparty != "" {
		strategy.counterparty(req, counterparty)
	}
	if date != "" {
		strategy.date(req, date)
	}

	return req, nil
}

func parseCurrency(code string) (currency.Unit, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if len(normalized) != 3 {
		return currency.Unit{}, fmt.Errorf("%w: currency %q is not an ISO-4217 code", ErrMalformedIntent, code)
	}
	unit, err := currency.ParseISO(normalized)
	if err != nil {
		return currency.Unit{}, fmt.Errorf("%w: currency %q is not an ISO-4217 code", ErrMalformedIntent, code)
	}
	return unit, nil
}
