package domain

import (
	"time"

	"github.com/google/uuid"
)

// ImportProgress is pushed to observers after every state change of a run.
// Current counts product groups dispatched, Completed those finished.
type ImportProgress struct {
	Current         int      `json:"current"`
	Completed       int      `json:"completed"`
	Total           int      `json:"total"`
	Status          string   `json:"status"`
	Errors          []string `json:"errors"`
	Warnings        []string `json:"warnings"`
	ProductsCreated int      `json:"products_created"`
	VariantsCreated int      `json:"variants_created"`
	ImagesCreated   int      `json:"images_created"`
	ImagesFailed    int      `json:"images_failed"`
}

// Clone returns a copy that does not share slices with p. Errors and
// Warnings are never nil so they encode as JSON arrays.
func (p ImportProgress) Clone() ImportProgress {
	c := p
	c.Errors = append([]string{}, p.Errors...)
	c.Warnings = append([]string{}, p.Warnings...)
	return c
}

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

type ImportJob struct {
	ID          uuid.UUID      `json:"id"`
	Supplier    string         `json:"supplier"`
	FileName    string         `json:"file_name"`
	Status      string         `json:"status"`
	Progress    ImportProgress `json:"progress"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at"`
}
