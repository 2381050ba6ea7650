// Package store persists documents and extracted defect records in SQLite.
//
// The schema includes an FTS5 index over record reasons, so binaries and
// tests using this package must be built with:
//
//	go build -tags sqlite_fts5 ./...
//	CGO_ENABLED=1 go test -tags sqlite_fts5 ./...
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Document represents a row in the documents table.
type Document struct {
	ID          int64  `json:"id"`
	Path        string `json:"path"`
	Filename    string `json:"filename"`
	Format      string `json:"format"`
	ContentHash string `json:"content_hash"`
	Status      string `json:"status"`
	PageCount   int    `json:"page_count"`
	RecordCount int    `json:"record_count"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Record represents a row in the defect_records table.
type Record struct {
	ID         int64  `json:"id"`
	DocumentID int64  `json:"document_id"`
	Page       int    `json:"page"`
	Candidate  int    `json:"candidate"`
	Code       string `json:"defect_code"`
	Reason     string `json:"reason"`
	GroupKey   string `json:"group_key"`
	ImageExt   string `json:"image_ext"`
	Image      []byte `json:"-"`
}

// ReasonCount is a per-reason aggregate over defect records.
type ReasonCount struct {
	GroupKey string `json:"group_key"`
	Reason   string `json:"reason"`
	Count    int    `json:"count"`
}

// Batch represents a row in the scan_batches table.
type Batch struct {
	ID              int64  `json:"id"`
	StartedAt       string `json:"started_at"`
	FinishedAt      string `json:"finished_at,omitempty"`
	DocumentsTotal  int    `json:"documents_total"`
	DocumentsFailed int    `json:"documents_failed"`
	RecordsTotal    int    `json:"records_total"`
}

// Store wraps the SQLite database for all defectscan persistence.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including the FTS5 reason index.
func New(dbPath string) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// --- Document operations ---

// UpsertDocument inserts or updates a document record. Returns the document ID.
func (s *Store) UpsertDocument(ctx context.Context, doc Document) (int64, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (path, filename, format, content_hash, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			filename = excluded.filename,
			format = excluded.format,
			content_hash = excluded.content_hash,
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP
	`, doc.Path, doc.Filename, doc.Format, doc.ContentHash, doc.Status)
	if err != nil {
		return 0, err
	}

	// LastInsertId is unreliable after an UPSERT that took the UPDATE arm;
	// resolve the row id by path instead.
	var id int64
	row := s.db.QueryRowContext(ctx, "SELECT id FROM documents WHERE path = ?", doc.Path)
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) scanDocument(row *sql.Row) (*Document, error) {
	doc := &Document{}
	err := row.Scan(&doc.ID, &doc.Path, &doc.Filename, &doc.Format,
		&doc.ContentHash, &doc.Status, &doc.PageCount, &doc.RecordCount,
		&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

const documentColumns = `id, path, filename, format, content_hash, status, page_count, record_count, created_at, updated_at`

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id int64) (*Document, error) {
	return s.scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
}

// GetDocumentByPath retrieves a document by its file path.
func (s *Store) GetDocumentByPath(ctx context.Context, path string) (*Document, error) {
	return s.scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE path = ?`, path))
}

// ListDocuments returns all documents ordered by creation time.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Path, &doc.Filename, &doc.Format,
			&doc.ContentHash, &doc.Status, &doc.PageCount, &doc.RecordCount,
			&doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// UpdateDocumentStatus updates a document's processing status.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id)
	return err
}

// UpdateDocumentCounts records the pages processed and records extracted for
// a document.
func (s *Store) UpdateDocumentCounts(ctx context.Context, id int64, pages, records int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET page_count = ?, record_count = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		pages, records, id)
	return err
}

// DeleteDocumentRecords removes all defect records for a document
// (re-processing).
func (s *Store) DeleteDocumentRecords(ctx context.Context, documentID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM defect_records WHERE document_id = ?`, documentID)
	return err
}

// DeleteDocument removes a document and all its defect records.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}

// --- Record operations ---

// InsertRecords stores defect records in a single transaction, preserving
// their order, and returns the assigned IDs.
func (s *Store) InsertRecords(ctx context.Context, records []Record) ([]int64, error) {
	if len(records) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO defect_records (document_id, page, candidate, defect_code, reason, group_key, image_ext, image)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(records))
	for _, r := range records {
		res, err := stmt.ExecContext(ctx, r.DocumentID, r.Page, r.Candidate,
			r.Code, r.Reason, r.GroupKey, r.ImageExt, r.Image)
		if err != nil {
			return nil, fmt.Errorf("inserting record (doc %d page %d): %w", r.DocumentID, r.Page, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

const recordColumns = `id, document_id, page, candidate, defect_code, reason, group_key, image_ext, image`

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.Page, &r.Candidate,
			&r.Code, &r.Reason, &r.GroupKey, &r.ImageExt, &r.Image); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ListRecordsByDocument returns a document's records in extraction order:
// page ascending, within-page candidate order.
func (s *Store) ListRecordsByDocument(ctx context.Context, documentID int64) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM defect_records
		 WHERE document_id = ? ORDER BY page, candidate`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// SearchRecords runs a full-text query over reasons and grouping keys.
func (s *Store) SearchRecords(ctx context.Context, query string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.document_id, r.page, r.candidate, r.defect_code,
		       r.reason, r.group_key, r.image_ext, r.image
		FROM records_fts f
		JOIN defect_records r ON r.id = f.rowid
		WHERE records_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// CountByReason aggregates record counts per grouping key, most frequent
// first. documentID zero aggregates across all documents.
func (s *Store) CountByReason(ctx context.Context, documentID int64) ([]ReasonCount, error) {
	q := `SELECT group_key, MIN(reason), COUNT(*) FROM defect_records`
	args := []any{}
	if documentID != 0 {
		q += ` WHERE document_id = ?`
		args = append(args, documentID)
	}
	q += ` GROUP BY group_key ORDER BY COUNT(*) DESC, group_key`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []ReasonCount
	for rows.Next() {
		var rc ReasonCount
		if err := rows.Scan(&rc.GroupKey, &rc.Reason, &rc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, rc)
	}
	return counts, rows.Err()
}

// --- Batch operations ---

// StartBatch opens a scan batch row and returns its ID.
func (s *Store) StartBatch(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO scan_batches DEFAULT VALUES`)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FinishBatch closes a scan batch with its final counters.
func (s *Store) FinishBatch(ctx context.Context, id int64, total, failed, records int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scan_batches
		SET finished_at = CURRENT_TIMESTAMP, documents_total = ?, documents_failed = ?, records_total = ?
		WHERE id = ?`, total, failed, records, id)
	return err
}

// GetBatch retrieves a scan batch by ID.
func (s *Store) GetBatch(ctx context.Context, id int64) (*Batch, error) {
	b := &Batch{}
	var finished sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, documents_total, documents_failed, records_total
		FROM scan_batches WHERE id = ?`, id).
		Scan(&b.ID, &b.StartedAt, &finished, &b.DocumentsTotal, &b.DocumentsFailed, &b.RecordsTotal)
	if err != nil {
		return nil, err
	}
	b.FinishedAt = finished.String
	return b, nil
}
