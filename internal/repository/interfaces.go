package repository

import "dronecam/internal/dto"

// DetectionRepository persists detection passes.
type DetectionRepository interface {
	// Create operations
	InsertBatch(passes []dto.DetectionPass) error

	// Read operations
	GetRecent(limit int) ([]dto.DetectionPass, error)
	Count() (int, error)

	// Delete operations
	DeleteAll() error
}
