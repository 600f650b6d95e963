package database

const schema = `
CREATE TABLE IF NOT EXISTS ledger_meta (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    repo_url TEXT NOT NULL,
    last_update INTEGER NOT NULL,
    mirrored_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS entries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    grp TEXT NOT NULL,
    seq INTEGER NOT NULL,
    commit_id TEXT NOT NULL,
    tool TEXT NOT NULL,
    date_ms INTEGER NOT NULL,
    commit_timestamp TEXT,
    message TEXT,
    author_name TEXT,
    distinct_build INTEGER NOT NULL DEFAULT 1,
    url TEXT
);

CREATE TABLE IF NOT EXISTS measurements (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    entry_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    value REAL NOT NULL,
    unit TEXT NOT NULL,
    extra TEXT,
    FOREIGN KEY (entry_id) REFERENCES entries(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_entries_group_tool ON entries(grp, tool);
CREATE INDEX IF NOT EXISTS idx_measurements_entry ON measurements(entry_id);
CREATE INDEX IF NOT EXISTS idx_measurements_name ON measurements(name);
`
