package store

// schemaSQL is the DDL for all tables.
const schemaSQL = `
-- Document registry with hash-based change detection
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY,
    path TEXT NOT NULL UNIQUE,
    filename TEXT NOT NULL,
    format TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    status TEXT DEFAULT 'pending',
    page_count INTEGER DEFAULT 0,
    record_count INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Extracted defect records, ordered by (document, page, candidate)
CREATE TABLE IF NOT EXISTS defect_records (
    id INTEGER PRIMARY KEY,
    document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    page INTEGER NOT NULL,
    candidate INTEGER NOT NULL,
    defect_code TEXT NOT NULL,
    reason TEXT NOT NULL,
    group_key TEXT NOT NULL,
    image_ext TEXT NOT NULL,
    image BLOB,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Full-text search over reasons via FTS5
CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
    reason,
    group_key,
    content='defect_records',
    content_rowid='id',
    tokenize='porter unicode61'
);

-- FTS triggers to keep index in sync
CREATE TRIGGER IF NOT EXISTS records_ai AFTER INSERT ON defect_records BEGIN
    INSERT INTO records_fts(rowid, reason, group_key) VALUES (new.id, new.reason, new.group_key);
END;
CREATE TRIGGER IF NOT EXISTS records_ad AFTER DELETE ON defect_records BEGIN
    INSERT INTO records_fts(records_fts, rowid, reason, group_key) VALUES ('delete', old.id, old.reason, old.group_key);
END;
CREATE TRIGGER IF NOT EXISTS records_au AFTER UPDATE ON defect_records BEGIN
    INSERT INTO records_fts(records_fts, rowid, reason, group_key) VALUES ('delete', old.id, old.reason, old.group_key);
    INSERT INTO records_fts(rowid, reason, group_key) VALUES (new.id, new.reason, new.group_key);
END;

-- Scan batch bookkeeping
CREATE TABLE IF NOT EXISTS scan_batches (
    id INTEGER PRIMARY KEY,
    started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    finished_at DATETIME,
    documents_total INTEGER DEFAULT 0,
    documents_failed INTEGER DEFAULT 0,
    records_total INTEGER DEFAULT 0
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_records_document ON defect_records(document_id);
CREATE INDEX IF NOT EXISTS idx_records_group_key ON defect_records(group_key);
CREATE INDEX IF NOT EXISTS idx_records_code ON defect_records(defect_code);
CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);
`
