package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const processorColumns = "id, instance_id, address, status, workload, last_used_at, created_at, updated_at"

// NewProcessor registers a freshly requested compute instance in status PENDING.
func (s *Store) NewProcessor(ctx context.Context, instanceID string) (*Processor, error) {
	if strings.TrimSpace(instanceID) == "" {
		return nil, errors.New("instance id is required")
	}
	now := time.Now()
	timestamp := formatTime(now)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO processors (
            instance_id, status, workload, last_used_at, created_at, updated_at
        ) VALUES (?, ?, 0, ?, ?, ?)`,
		instanceID,
		ProcessorPending,
		timestamp,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert processor: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetProcessorByID(ctx, id)
}

// GetProcessorByID fetches a processor by registry identifier.
func (s *Store) GetProcessorByID(ctx context.Context, id int64) (*Processor, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+processorColumns+` FROM processors WHERE id = ?`, id)
	proc, err := scanProcessor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get processor: %w", err)
	}
	return proc, nil
}

// FindProcessorByInstanceID returns the processor backing a compute instance, if any.
func (s *Store) FindProcessorByInstanceID(ctx context.Context, instanceID string) (*Processor, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+processorColumns+` FROM processors WHERE instance_id = ? LIMIT 1`,
		instanceID,
	)
	proc, err := scanProcessor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by instance id: %w", err)
	}
	return proc, nil
}

// UpdateProcessor persists changes to an existing processor.
func (s *Store) UpdateProcessor(ctx context.Context, proc *Processor) error {
	if proc == nil {
		return errors.New("processor is nil")
	}
	proc.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE processors
         SET instance_id = ?, address = ?, status = ?, workload = ?,
             last_used_at = ?, updated_at = ?
         WHERE id = ?`,
		proc.InstanceID,
		nullableString(proc.Address),
		proc.Status,
		proc.Workload,
		formatTime(proc.LastUsedAt),
		formatTime(proc.UpdatedAt),
		proc.ID,
	)
	if err != nil {
		return fmt.Errorf("update processor: %w", err)
	}
	return nil
}

// AdjustProcessorWorkload atomically applies a workload delta and refreshes
// the last-used timestamp. Concurrent attempts against the same processor
// mutate workload only through this statement; the floor at zero guards
// against a stray double decrement.
func (s *Store) AdjustProcessorWorkload(ctx context.Context, id int64, delta int) error {
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE processors
         SET workload = MAX(0, workload + ?), last_used_at = ?, updated_at = ?
         WHERE id = ?`,
		delta,
		now,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("adjust workload: %w", err)
	}
	return nil
}

// ProcessorsByStatus returns processors matching a status ordered by current
// workload ascending, so the dispatcher sees least-loaded first.
func (s *Store) ProcessorsByStatus(ctx context.Context, status ProcessorStatus) ([]*Processor, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+processorColumns+` FROM processors WHERE status = ? ORDER BY workload, id`,
		status,
	)
	if err != nil {
		return nil, fmt.Errorf("query processors by status: %w", err)
	}
	defer rows.Close()
	return collectProcessors(rows)
}

// ListProcessors returns processors filtered by status set (or all when no
// status is provided).
func (s *Store) ListProcessors(ctx context.Context, statuses ...ProcessorStatus) ([]*Processor, error) {
	baseQuery := `SELECT ` + processorColumns + ` FROM processors`
	orderClause := ` ORDER BY id`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list processors: %w", err)
	}
	defer rows.Close()
	return collectProcessors(rows)
}

// RemoveProcessor deletes a processor record after its instance is terminated.
func (s *Store) RemoveProcessor(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM processors WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete processor: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ProcessorCounts returns a count of processors grouped by status.
func (s *Store) ProcessorCounts(ctx context.Context) (ProcessorStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM processors GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("processor stats: %w", err)
	}
	defer rows.Close()

	stats := make(ProcessorStats)
	for rows.Next() {
		var status ProcessorStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func collectProcessors(rows *sql.Rows) ([]*Processor, error) {
	var procs []*Processor
	for rows.Next() {
		proc, err := scanProcessor(rows)
		if err != nil {
			return nil, err
		}
		procs = append(procs, proc)
	}
	return procs, rows.Err()
}

func scanProcessor(scanner interface{ Scan(dest ...any) error }) (*Processor, error) {
	var (
		id         int64
		instanceID string
		address    sql.NullString
		statusStr  string
		workload   int
		lastUsed   string
		createdRaw string
		updatedRaw string
	)

	if err := scanner.Scan(
		&id,
		&instanceID,
		&address,
		&statusStr,
		&workload,
		&lastUsed,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	proc := &Processor{
		ID:         id,
		InstanceID: instanceID,
		Address:    address.String,
		Status:     ProcessorStatus(statusStr),
		Workload:   workload,
	}
	if used, err := parseTimeString(lastUsed); err == nil {
		proc.LastUsedAt = used
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		proc.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		proc.UpdatedAt = updated
	}
	return proc, nil
}
