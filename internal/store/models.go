package store

import "time"

type Report struct {
	ID        string    `json:"id"` // Using UUID for external ID
	Word      string    `json:"word"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

type WordReportSummary struct {
	Word    string   `json:"word"`
	Count   int      `json:"count"`
	Reasons []string `json:"reasons"`
}
