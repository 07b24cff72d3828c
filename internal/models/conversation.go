package models

import "time"

// Conversation is one saved chat exchange. CompletionID is the upstream
// provider's identifier for the completion that produced the response; it
// lets a stored answer be traced back to the inference run.
type Conversation struct {
	ID           string    `json:"id"`
	Query        string    `json:"query"`
	Response     string    `json:"response"`
	ModelUsed    string    `json:"model_used"`
	CompletionID string    `json:"completion_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
