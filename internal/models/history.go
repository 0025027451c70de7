package models

import "time"

// HistoryRecord is one raw step record as streamed from the backend: a step
// counter, the absolute timestamp of the record, and whichever metrics were
// logged at that step (sparse — a metric need not appear at every step).
type HistoryRecord struct {
	Step      int64              `json:"step"`
	Timestamp time.Time          `json:"timestamp"`
	Metrics   map[string]float64 `json:"metrics"`
}

// HistoryRow is a reconstructed history record with the derived elapsed
// wall-time axis: Elapsed is the row's timestamp minus the timestamp of the
// run's first recorded row, so the first row is always 0.
type HistoryRow struct {
	Step      int64              `json:"step"`
	Timestamp time.Time          `json:"timestamp"`
	Elapsed   time.Duration      `json:"elapsed"`
	Metrics   map[string]float64 `json:"metrics"`
}
