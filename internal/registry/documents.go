package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const documentColumns = "id, original_file_id, file_name, input_folder, output_folder, status, processed_file_id, converted_document_id, error_message, created_at, updated_at"

// NewDocument inserts a newly observed content-store file in status QUEUED.
func (s *Store) NewDocument(ctx context.Context, originalFileID, fileName, inputFolder, outputFolder string) (*Document, error) {
	if strings.TrimSpace(originalFileID) == "" {
		return nil, errors.New("original file id is required")
	}
	timestamp := formatTime(time.Now())

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO documents (
            original_file_id, file_name, input_folder, output_folder,
            status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		originalFileID,
		fileName,
		inputFolder,
		outputFolder,
		StatusQueued,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetDocumentByID(ctx, id)
}

// GetDocumentByID fetches a document by registry identifier.
func (s *Store) GetDocumentByID(ctx context.Context, id int64) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// FindDocumentByOriginalFileID returns the document registered for a
// content-store file, if any. Ingestion uses this to stay idempotent.
func (s *Store) FindDocumentByOriginalFileID(ctx context.Context, fileID string) (*Document, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+documentColumns+` FROM documents WHERE original_file_id = ? LIMIT 1`,
		fileID,
	)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by original file id: %w", err)
	}
	return doc, nil
}

// FindDocumentByProcessedFileID returns the document that produced the given
// processed file identifier, if any.
func (s *Store) FindDocumentByProcessedFileID(ctx context.Context, fileID string) (*Document, error) {
	if strings.TrimSpace(fileID) == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+documentColumns+` FROM documents WHERE processed_file_id = ? LIMIT 1`,
		fileID,
	)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by processed file id: %w", err)
	}
	return doc, nil
}

// UpdateDocument persists changes to an existing document.
func (s *Store) UpdateDocument(ctx context.Context, doc *Document) error {
	if doc == nil {
		return errors.New("document is nil")
	}
	doc.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE documents
         SET original_file_id = ?, file_name = ?, input_folder = ?, output_folder = ?,
             status = ?, processed_file_id = ?, converted_document_id = ?,
             error_message = ?, updated_at = ?
         WHERE id = ?`,
		doc.OriginalFileID,
		doc.FileName,
		doc.InputFolder,
		doc.OutputFolder,
		doc.Status,
		nullableString(doc.ProcessedFileID),
		nullableString(doc.ConvertedDocumentID),
		nullableString(doc.ErrorMessage),
		formatTime(doc.UpdatedAt),
		doc.ID,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

// DocumentsByStatus returns documents matching a status ordered by creation time.
func (s *Store) DocumentsByStatus(ctx context.Context, status DocumentStatus) ([]*Document, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+documentColumns+` FROM documents WHERE status = ? ORDER BY created_at, id`,
		status,
	)
	if err != nil {
		return nil, fmt.Errorf("query documents by status: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// ListDocuments returns documents filtered by status set (or all documents
// when no status is provided).
func (s *Store) ListDocuments(ctx context.Context, statuses ...DocumentStatus) ([]*Document, error) {
	baseQuery := `SELECT ` + documentColumns + ` FROM documents`
	orderClause := ` ORDER BY created_at, id`

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
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// CountDocumentsByStatus returns the number of documents in the given status.
func (s *Store) CountDocumentsByStatus(ctx context.Context, status DocumentStatus) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM documents WHERE status = ?`, status)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

// CountQueuedOlderThan returns the number of QUEUED documents created before
// the cutoff. The autoscaler treats these as overdue.
func (s *Store) CountQueuedOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM documents WHERE status = ? AND created_at < ?`,
		StatusQueued,
		formatTime(cutoff),
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count overdue documents: %w", err)
	}
	return count, nil
}

// ResetStuckProcessing returns documents left in PROCESSING by an interrupted
// daemon back to QUEUED so the next dispatch cycle retries them.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE documents SET status = ?, error_message = 'Reset from interrupted processing', updated_at = ?
         WHERE status = ?`,
		StatusQueued,
		formatTime(time.Now()),
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck documents: %w", err)
	}
	return res.RowsAffected()
}

// DocumentCounts returns a count of documents grouped by status.
func (s *Store) DocumentCounts(ctx context.Context) (DocumentStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM documents GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("document stats: %w", err)
	}
	defer rows.Close()

	stats := make(DocumentStats)
	for rows.Next() {
		var status DocumentStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func collectDocuments(rows *sql.Rows) ([]*Document, error) {
	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func scanDocument(scanner interface{ Scan(dest ...any) error }) (*Document, error) {
	var (
		id             int64
		originalFileID string
		fileName       string
		inputFolder    string
		outputFolder   string
		statusStr      string
		processedFile  sql.NullString
		convertedDoc   sql.NullString
		errorMessage   sql.NullString
		createdRaw     string
		updatedRaw     string
	)

	if err := scanner.Scan(
		&id,
		&originalFileID,
		&fileName,
		&inputFolder,
		&outputFolder,
		&statusStr,
		&processedFile,
		&convertedDoc,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	doc := &Document{
		ID:                  id,
		OriginalFileID:      originalFileID,
		FileName:            fileName,
		InputFolder:         inputFolder,
		OutputFolder:        outputFolder,
		Status:              DocumentStatus(statusStr),
		ProcessedFileID:     processedFile.String,
		ConvertedDocumentID: convertedDoc.String,
		ErrorMessage:        errorMessage.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		doc.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		doc.UpdatedAt = updated
	}
	return doc, nil
}
