package dto

import "time"

// RefreshRequest POST /api/admin/stock/refresh.
type RefreshRequest struct {
	Class string `json:"class" validate:"required,max=64"`
}

// RefreshResult resumen de una corrida del refresh de stock.
type RefreshResult struct {
	Class        string    `json:"class"`
	ProductTypes []string  `json:"product_types"`
	Fetched      int       `json:"fetched"`
	Accepted     int       `json:"accepted"`
	Skipped      int       `json:"skipped"`
	Deleted      int64     `json:"deleted"`
	Inserted     int64     `json:"inserted"`
	Atomic       bool      `json:"atomic"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// ReconcileResult resumen de una pasada de reconciliación del directorio.
type ReconcileResult struct {
	Identities    int       `json:"identities"`
	Created       int       `json:"created"`
	Updated       int       `json:"updated"`
	OrphansFound  int       `json:"orphans_found"`
	OrphansPurged int       `json:"orphans_purged"`
	Failures      int       `json:"failures"`
	Complete      bool      `json:"complete"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}
