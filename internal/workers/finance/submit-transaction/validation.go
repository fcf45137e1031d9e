package submittransaction

import "finhub-workers/internal/common/validation"

// GetInputSchema checks the shape only. Amounts and currencies are checked
// by the request builder so that failures carry the dispatch error codes.
func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"intent"},
		Properties: map[string]validation.Property{
			"transactionType": {
				Type:        "string",
				Description: "Overrides intent.transaction_type",
			},
			"intent": {
				Type:     "object",
				Required: []string{"transaction_type"},
				Properties: map[string]validation.Property{
					"transaction_type": {Type: "string", MinLength: validation.Int(1)},
					"amount":           {Description: "number or numeric string"},
					"currency":         {Type: "string", Nullable: true},
					"memo":             {Type: "string", Nullable: true},
					"counterparty":     {Type: "string", Nullable: true},
					"date":             {Type: "string", Nullable: true},
				},
			},
		},
	}
}
