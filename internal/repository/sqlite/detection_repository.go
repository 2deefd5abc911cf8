package sqlite

import (
	"fmt"

	"dronecam/internal/dto"
)

// DetectionRepository implements repository.DetectionRepository for SQLite.
type DetectionRepository struct {
	db *DB
}

// NewDetectionRepository creates a new SQLite detection repository.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// InsertBatch stores passes and their rectangles in a single transaction.
func (r *DetectionRepository) InsertBatch(passes []dto.DetectionPass) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	passStmt, err := tx.Prepare(`INSERT INTO passes (timestamp, detection_count) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer passStmt.Close()

	detStmt, err := tx.Prepare(`
		INSERT INTO detections (pass_id, x, y, width, height)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer detStmt.Close()

	for _, pass := range passes {
		result, err := passStmt.Exec(pass.Timestamp.UTC(), len(pass.Detections))
		if err != nil {
			return fmt.Errorf("failed to insert pass: %w", err)
		}
		passID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read pass id: %w", err)
		}
		for _, det := range pass.Detections {
			if _, err := detStmt.Exec(passID, det.X, det.Y, det.Width, det.Height); err != nil {
				return fmt.Errorf("failed to insert detection: %w", err)
			}
		}
	}

	return tx.Commit()
}

// GetRecent returns up to limit passes, newest first, with their rectangles.
func (r *DetectionRepository) GetRecent(limit int) ([]dto.DetectionPass, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, timestamp FROM passes
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query passes: %w", err)
	}

	var passes []dto.DetectionPass
	index := make(map[int64]int)
	for rows.Next() {
		var pass dto.DetectionPass
		if err := rows.Scan(&pass.ID, &pass.Timestamp); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan pass: %w", err)
		}
		pass.Detections = []dto.Detection{}
		index[pass.ID] = len(passes)
		passes = append(passes, pass)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate passes: %w", err)
	}
	if len(passes) == 0 {
		return passes, nil
	}

	minID := passes[0].ID
	for _, pass := range passes {
		if pass.ID < minID {
			minID = pass.ID
		}
	}

	detRows, err := r.db.Conn().Query(`
		SELECT pass_id, x, y, width, height FROM detections
		WHERE pass_id >= ? ORDER BY id
	`, minID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer detRows.Close()

	for detRows.Next() {
		var passID int64
		var det dto.Detection
		if err := detRows.Scan(&passID, &det.X, &det.Y, &det.Width, &det.Height); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		if i, ok := index[passID]; ok {
			passes[i].Detections = append(passes[i].Detections, det)
		}
	}

	return passes, detRows.Err()
}

// Count returns the number of stored passes.
func (r *DetectionRepository) Count() (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM passes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count passes: %w", err)
	}
	return count, nil
}

// DeleteAll removes every pass and detection.
func (r *DetectionRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM detections`); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}
	if _, err := r.db.Conn().Exec(`DELETE FROM passes`); err != nil {
		return fmt.Errorf("failed to delete passes: %w", err)
	}
	return nil
}
