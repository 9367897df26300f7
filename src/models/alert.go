package models

// Market alert severities
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// MMarketAlert is a broadcast notice about unusual activity on one symbol.
type MMarketAlert struct {
	Symbol    string `json:"symbol"`
	Severity  string `json:"severity"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}
