package models

import (
	"time"

	"github.com/google/uuid"
)

// Report is a generated narrative investment report. Reports are never cached.
type Report struct {
	ID          uuid.UUID `json:"id"`
	Symbol      string    `json:"symbol"`
	Name        string    `json:"name"`
	Content     string    `json:"report"`
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	GeneratedAt time.Time `json:"generated_at"`
}

// NewReport creates a Report with a fresh ID
func NewReport(symbol, name, content, provider, model string, generatedAt time.Time) *Report {
	return &Report{
		ID:          uuid.New(),
		Symbol:      symbol,
		Name:        name,
		Content:     content,
		Provider:    provider,
		Model:       model,
		GeneratedAt: generatedAt,
	}
}
