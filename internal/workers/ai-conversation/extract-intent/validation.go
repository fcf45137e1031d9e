package extractintent

import "finhub-workers/internal/common/validation"

// GetInputSchema validates job variables.
func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"message": {
				Type:        "string",
				Description: "Free-text user message",
				MinLength:   validation.Int(1),
			},
			"history": {
				Type: "array",
				Items: &validation.Property{
					Type:     "object",
					Required: []string{"role", "content"},
					Properties: map[string]validation.Property{
						"role":    {Type: "string", Enum: []string{"user", "assistant"}},
						"content": {Type: "string"},
					},
				},
			},
		},
		Required: []string{"message"},
	}
}

// GetResponseSchema validates the GenAI response body. The transaction type
// is not enumerated here: unknown types must reach the registry so they
// surface as unsupported operations.
func GetResponseSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"found":            {Type: "boolean"},
			"transaction_type": {Type: "string", Nullable: true},
			"amount":           {Description: "number or numeric string"},
			"currency":         {Type: "string", Nullable: true},
			"memo":             {Type: "string", Nullable: true},
			"counterparty":     {Type: "string", Nullable: true},
			"date":             {Type: "string", Nullable: true},
		},
	}
}
