package model

import "time"

// Export is the top-level JSON structure for session export.
type Export struct {
	GeneratedAt time.Time     `json:"generated_at"`
	BankVersion string        `json:"bank_version"`
	Sessions    []SessionView `json:"sessions"`
}
