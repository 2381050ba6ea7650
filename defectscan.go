// Package defectscan extracts defect records (image, numeric code, free-text
// reason) from multi-page inspection report documents. The engine walks each
// page's block stream, selects candidate defect images, scans the caption
// window that follows each candidate, and assembles sanitized records
// grouped by reason.
package defectscan

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fieldaudit/defectscan/block"
	"github.com/fieldaudit/defectscan/extract"
	"github.com/fieldaudit/defectscan/store"
)

// Engine is the main entry point for defect-record extraction.
type Engine interface {
	// ProcessDocument extracts defect records from one document. Records
	// are returned in (page ascending, within-page candidate) order. Zero
	// records is a successful empty result, not an error.
	ProcessDocument(ctx context.Context, path string, opts ...ProcessOption) (*DocumentResult, error)

	// ProcessBatch processes documents in caller order. A document that
	// fails to open aborts only itself; its failure is reported in the
	// outcome list while the rest of the batch continues.
	ProcessBatch(ctx context.Context, paths []string, opts ...ProcessOption) (*BatchResult, error)

	// SearchRecords runs a full-text query over stored record reasons.
	SearchRecords(ctx context.Context, query string, limit int) ([]DefectRecord, error)

	// ListDocuments returns all processed documents.
	ListDocuments(ctx context.Context) ([]Document, error)

	// GetDocument returns one processed document by id.
	GetDocument(ctx context.Context, id int64) (*Document, error)

	// Store returns the underlying store for diagnostic access.
	Store() *store.Store

	// Close cleanly shuts down the engine.
	Close() error
}

// DefectRecord is one extracted defect. Immutable once created and owned by
// the caller.
type DefectRecord struct {
	DocumentID int64  `json:"document_id"`
	Document   string `json:"document"`
	Page       int    `json:"page"`
	Code       string `json:"defect_code"`
	Reason     string `json:"reason"`
	GroupKey   string `json:"group_key"`
	ImageData  []byte `json:"-"`
	ImageExt   string `json:"image_ext"`
}

// Diagnostic is a per-candidate negative match surfaced for reporting.
type Diagnostic struct {
	Page      int    `json:"page"`
	Candidate int    `json:"candidate"`
	Kind      string `json:"kind"`
	Detail    string `json:"detail,omitempty"`
}

// DocumentResult reports a successfully processed document.
type DocumentResult struct {
	DocumentID  int64          `json:"document_id"`
	Path        string         `json:"path"`
	Filename    string         `json:"filename"`
	Pages       int            `json:"pages"`
	Records     []DefectRecord `json:"records"`
	Diagnostics []Diagnostic   `json:"diagnostics,omitempty"`
}

// DocumentOutcome pairs a batch entry with its result or failure. Err is
// non-nil only for document-level failures; a document with zero records
// has a Result and a nil Err.
type DocumentOutcome struct {
	Path   string          `json:"path"`
	Result *DocumentResult `json:"result,omitempty"`
	Err    error           `json:"-"`
}

// BatchResult aggregates a batch run. Records preserves caller-supplied
// document order, then page order, then within-page candidate order.
type BatchResult struct {
	BatchID   int64             `json:"batch_id"`
	Documents []DocumentOutcome `json:"documents"`
	Records   []DefectRecord    `json:"records"`
	Failed    int               `json:"failed"`
}

// Document represents a processed document.
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

// ProcessOption configures processing behavior.
type ProcessOption func(*processOptions)

type processOptions struct {
	forceReprocess bool
}

// WithForceReprocess re-extracts even when the document hash is unchanged.
func WithForceReprocess() ProcessOption {
	return func(o *processOptions) { o.forceReprocess = true }
}

// Option configures engine construction.
type Option func(*engine)

// WithProvider replaces the default PDF block stream provider. Used to
// plug in alternate layout providers (or fixtures in tests).
func WithProvider(p block.Provider) Option {
	return func(e *engine) { e.provider = p }
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg       Config
	store     *store.Store
	provider  block.Provider
	extractor *extract.Extractor
	formats   map[string]bool
}

// New creates a defectscan engine with the given configuration.
func New(cfg Config, opts ...Option) (Engine, error) {
	if cfg.PageWorkers <= 0 {
		cfg.PageWorkers = 4
	}

	ex, err := extract.New(cfg.extractConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	s, err := store.New(cfg.resolveDBPath())
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	e := &engine{
		cfg:       cfg,
		store:     s,
		provider:  block.NewPDFProvider(),
		extractor: ex,
	}
	for _, o := range opts {
		o(e)
	}

	e.formats = make(map[string]bool)
	for _, f := range e.provider.SupportedFormats() {
		e.formats[f] = true
	}

	return e, nil
}

// ProcessDocument runs the extraction pipeline for one document.
func (e *engine) ProcessDocument(ctx context.Context, path string, opts ...ProcessOption) (*DocumentResult, error) {
	options := &processOptions{}
	for _, o := range opts {
		o(options)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	filename := filepath.Base(absPath)

	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(absPath), "."))
	if !e.formats[format] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	hash, err := fileHash(absPath)
	if err != nil {
		return nil, fmt.Errorf("%w: hashing %s: %v", ErrDocumentRead, filename, err)
	}

	// Unchanged documents are served from the store.
	if !options.forceReprocess {
		if existing, err := e.store.GetDocumentByPath(ctx, absPath); err == nil &&
			existing.ContentHash == hash && existing.Status == "ready" {
			slog.Info("process: document unchanged, using stored records",
				"file", filename, "doc_id", existing.ID, "records", existing.RecordCount)
			return e.storedResult(ctx, existing)
		}
	}

	docID, err := e.store.UpsertDocument(ctx, store.Document{
		Path:        absPath,
		Filename:    filename,
		Format:      format,
		ContentHash: hash,
		Status:      "processing",
	})
	if err != nil {
		return nil, fmt.Errorf("upserting document: %w", err)
	}

	slog.Info("process: opening document", "file", filename, "doc_id", docID)
	start := time.Now()

	doc, err := e.provider.Open(ctx, absPath)
	if err != nil {
		e.store.UpdateDocumentStatus(ctx, docID, "error")
		return nil, fmt.Errorf("%w: %s: %v", ErrDocumentRead, filename, err)
	}
	defer doc.Close()

	records, diags, pages := e.extractPages(ctx, doc)

	slog.Info("process: extraction complete",
		"file", filename, "doc_id", docID, "pages", pages,
		"records", len(records), "negative_matches", len(diags),
		"elapsed", time.Since(start).Round(time.Millisecond))

	if err := e.store.DeleteDocumentRecords(ctx, docID); err != nil {
		return nil, fmt.Errorf("cleaning old records: %w", err)
	}

	stored := make([]store.Record, len(records))
	for i, r := range records {
		stored[i] = store.Record{
			DocumentID: docID,
			Page:       r.Page,
			Candidate:  r.Candidate,
			Code:       r.Code,
			Reason:     r.Reason,
			GroupKey:   r.GroupKey,
			ImageExt:   r.ImageExt,
			Image:      r.ImageData,
		}
	}
	if _, err := e.store.InsertRecords(ctx, stored); err != nil {
		e.store.UpdateDocumentStatus(ctx, docID, "error")
		return nil, fmt.Errorf("inserting records: %w", err)
	}

	e.store.UpdateDocumentCounts(ctx, docID, pages, len(records))
	e.store.UpdateDocumentStatus(ctx, docID, "ready")

	result := &DocumentResult{
		DocumentID: docID,
		Path:       absPath,
		Filename:   filename,
		Pages:      pages,
	}
	for _, r := range records {
		result.Records = append(result.Records, DefectRecord{
			DocumentID: docID,
			Document:   filename,
			Page:       r.Page,
			Code:       r.Code,
			Reason:     r.Reason,
			GroupKey:   r.GroupKey,
			ImageData:  r.ImageData,
			ImageExt:   r.ImageExt,
		})
	}
	for _, d := range diags {
		result.Diagnostics = append(result.Diagnostics, Diagnostic{
			Page: d.Page, Candidate: d.Candidate, Kind: string(d.Kind), Detail: d.Detail,
		})
	}
	return result, nil
}

// extractPages runs the per-page extractor across the document with a
// bounded worker pool. Page state (including the claimed-asset set inside
// the extractor) is local to each page, so workers share nothing mutable;
// results are merged back into page order afterwards.
func (e *engine) extractPages(ctx context.Context, doc block.Document) ([]extract.Record, []extract.Diagnostic, int) {
	type pageResult struct {
		page    int
		records []extract.Record
		diags   []extract.Diagnostic
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		sem     = make(chan struct{}, e.cfg.PageWorkers)
		results []pageResult
		pages   int
	)

	for n := 1; n <= doc.NumPages(); n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			page, err := doc.Page(n)
			if err != nil {
				// A single bad page is not a document failure.
				slog.Warn("process: skipping unreadable page", "page", n, "error", err)
				return
			}

			records, diags := e.extractor.ExtractPage(page)

			mu.Lock()
			results = append(results, pageResult{page: n, records: records, diags: diags})
			pages++
			mu.Unlock()
		}(n)
	}
	wg.Wait()

	// Re-establish page-ascending order after parallel extraction;
	// within-page order is already candidate order.
	sort.Slice(results, func(i, j int) bool { return results[i].page < results[j].page })

	var records []extract.Record
	var diags []extract.Diagnostic
	for _, r := range results {
		records = append(records, r.records...)
		diags = append(diags, r.diags...)
	}
	return records, diags, pages
}

// ProcessBatch processes documents independently in caller-supplied order.
func (e *engine) ProcessBatch(ctx context.Context, paths []string, opts ...ProcessOption) (*BatchResult, error) {
	batchID, err := e.store.StartBatch(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting batch: %w", err)
	}

	result := &BatchResult{BatchID: batchID}
	for _, path := range paths {
		res, err := e.ProcessDocument(ctx, path, opts...)
		if err != nil {
			slog.Error("batch: document failed", "path", path, "error", err)
			result.Documents = append(result.Documents, DocumentOutcome{Path: path, Err: err})
			result.Failed++
			continue
		}
		result.Documents = append(result.Documents, DocumentOutcome{Path: path, Result: res})
		result.Records = append(result.Records, res.Records...)
	}

	if err := e.store.FinishBatch(ctx, batchID, len(paths), result.Failed, len(result.Records)); err != nil {
		slog.Warn("batch: recording batch failed", "batch_id", batchID, "error", err)
	}

	slog.Info("batch: complete", "batch_id", batchID,
		"documents", len(paths), "failed", result.Failed, "records", len(result.Records))
	return result, nil
}

// storedResult rebuilds a DocumentResult from persisted records.
func (e *engine) storedResult(ctx context.Context, doc *store.Document) (*DocumentResult, error) {
	stored, err := e.store.ListRecordsByDocument(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("loading stored records: %w", err)
	}

	result := &DocumentResult{
		DocumentID: doc.ID,
		Path:       doc.Path,
		Filename:   doc.Filename,
		Pages:      doc.PageCount,
	}
	for _, r := range stored {
		result.Records = append(result.Records, DefectRecord{
			DocumentID: r.DocumentID,
			Document:   doc.Filename,
			Page:       r.Page,
			Code:       r.Code,
			Reason:     r.Reason,
			GroupKey:   r.GroupKey,
			ImageData:  r.Image,
			ImageExt:   r.ImageExt,
		})
	}
	return result, nil
}

// SearchRecords runs a full-text query over stored reasons.
func (e *engine) SearchRecords(ctx context.Context, query string, limit int) ([]DefectRecord, error) {
	stored, err := e.store.SearchRecords(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	records := make([]DefectRecord, 0, len(stored))
	for _, r := range stored {
		rec := DefectRecord{
			DocumentID: r.DocumentID,
			Page:       r.Page,
			Code:       r.Code,
			Reason:     r.Reason,
			GroupKey:   r.GroupKey,
			ImageData:  r.Image,
			ImageExt:   r.ImageExt,
		}
		if doc, derr := e.store.GetDocument(ctx, r.DocumentID); derr == nil {
			rec.Document = doc.Filename
		}
		records = append(records, rec)
	}
	return records, nil
}

// ListDocuments returns all processed documents.
func (e *engine) ListDocuments(ctx context.Context) ([]Document, error) {
	docs, err := e.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Document, len(docs))
	for i, d := range docs {
		result[i] = Document(d)
	}
	return result, nil
}

// GetDocument returns one processed document by id.
func (e *engine) GetDocument(ctx context.Context, id int64) (*Document, error) {
	d, err := e.store.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrDocumentNotFound, id)
		}
		return nil, err
	}
	doc := Document(*d)
	return &doc, nil
}

// Store returns the underlying store for diagnostic access.
func (e *engine) Store() *store.Store {
	return e.store
}

// Close shuts down the engine.
func (e *engine) Close() error {
	return e.store.Close()
}

// IsDocumentFailure reports whether err is a document-level read failure
// (as opposed to an engine or store error).
func IsDocumentFailure(err error) bool {
	return errors.Is(err, ErrDocumentRead) || errors.Is(err, ErrUnsupportedFormat)
}

// fileHash computes the SHA-256 hash of a file's content.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
