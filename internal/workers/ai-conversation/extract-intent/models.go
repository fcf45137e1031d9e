// internal/workers/ai-conversation/extract-intent/models.go
package extractintent

import "finhub-workers/internal/models"

// Input is the job payload for the extract-intent task.
type Input struct {
	Message string                     `json:"message"`
	History []models.ConversationEntry `json:"history,omitempty"`
}

// Output is written back to the process. Intent is nil when Found is false.
type Output struct {
	Found  bool                    `json:"found"`
	Intent *models.ExtractedIntent `json:"intent,omitempty"`
}

type apiRequest struct {
	Query   string       `json:"query"`
	History []apiMessage `json:"history"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// apiResponse is the GenAI extraction result. Found defaults to true when the
// service omits it.
type apiResponse struct {
	Found *bool `json:"found"`
	models.ExtractedIntent
}
