package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rpattn/sparkify/internal/db"
	"github.com/rpattn/sparkify/internal/domain"
)

type loadLogRepository struct {
	db db.DBTX
}

// NewLoadLogRepository wires a repository backed by q. It should run outside
// the file transaction so failures are recorded after a rollback.
func NewLoadLogRepository(q db.DBTX) LoadLogRepository {
	return &loadLogRepository{db: q}
}

func (r *loadLogRepository) Record(ctx context.Context, entry domain.LoadLogEntry) error {
	if r.db == nil {
		return fmt.Errorf("load log repository not initialized")
	}

	var errorMessage any
	if entry.ErrorMessage != "" {
		errorMessage = entry.ErrorMessage
	}

	_, err := r.db.Exec(
		ctx,
		`INSERT INTO load_log (id, run_id, phase, file_path, status, rows_loaded, error_message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID,
		entry.RunID,
		string(entry.Phase),
		entry.FilePath,
		string(entry.Status),
		entry.RowsLoaded,
		errorMessage,
		entry.CreatedAt,
	)
	if err != nil {
		return storageError("record load log", err)
	}

	return nil
}

func (r *loadLogRepository) ListRun(ctx context.Context, runID uuid.UUID) ([]domain.LoadLogEntry, error) {
	if r.db == nil {
		return nil, fmt.Errorf("load log repository not initialized")
	}

	rows, err := r.db.Query(
		ctx,
		`SELECT id, run_id, phase, file_path, status, rows_loaded, error_message, created_at
		 FROM load_log
		 WHERE run_id = $1
		 ORDER BY created_at, file_path`,
		runID,
	)
	if err != nil {
		return nil, storageError("list load log", err)
	}
	defer rows.Close()

	entries := []domain.LoadLogEntry{}
	for rows.Next() {
		var (
			entry        domain.LoadLogEntry
			phase        string
			status       string
			errorMessage pgtype.Text
			createdAt    pgtype.Timestamptz
		)
		if scanErr := rows.Scan(
			&entry.ID,
			&entry.RunID,
			&phase,
			&entry.FilePath,
			&status,
			&entry.RowsLoaded,
			&errorMessage,
			&createdAt,
		); scanErr != nil {
			return nil, storageError("scan load log", scanErr)
		}

		entry.Phase = domain.Phase(phase)
		entry.Status = domain.LoadStatus(status)
		if errorMessage.Valid {
			entry.ErrorMessage = errorMessage.String
		}
		if createdAt.Valid {
			entry.CreatedAt = createdAt.Time
		}

		entries = append(entries, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, storageError("iterate load log", rowsErr)
	}

	return entries, nil
}
