package registry

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    original_file_id TEXT NOT NULL UNIQUE,
    file_name TEXT NOT NULL,
    input_folder TEXT NOT NULL,
    output_folder TEXT NOT NULL,
    status TEXT NOT NULL,
    processed_file_id TEXT,
    converted_document_id TEXT,
    error_message TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_processed_file ON documents(processed_file_id);

CREATE TABLE IF NOT EXISTS processors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    instance_id TEXT NOT NULL UNIQUE,
    address TEXT,
    status TEXT NOT NULL,
    workload INTEGER NOT NULL DEFAULT 0,
    last_used_at TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_processors_status ON processors(status);
`
