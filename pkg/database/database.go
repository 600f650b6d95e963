package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mslinn/benchledger/pkg/ledger"
	"github.com/mslinn/benchledger/pkg/series"
)

// DB wraps the SQLite mirror of a ledger
type DB struct {
	conn *sql.DB
}

// Open opens or creates a SQLite database and initializes the schema
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL allows readers while a mirror is being written
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Mirror replaces the mirror contents with one ledger snapshot
func (db *DB) Mirror(l *ledger.Ledger) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM measurements`); err != nil {
		return fmt.Errorf("failed to clear measurements: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM entries`); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}

	entryStmt, err := tx.Prepare(`
		INSERT INTO entries (grp, seq, commit_id, tool, date_ms, commit_timestamp, message, author_name, distinct_build, url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare entry insert: %w", err)
	}
	defer entryStmt.Close()

	benchStmt, err := tx.Prepare(`
		INSERT INTO measurements (entry_id, name, value, unit, extra)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare measurement insert: %w", err)
	}
	defer benchStmt.Close()

	for group, entries := range l.Entries {
		for seq, e := range entries {
			result, err := entryStmt.Exec(
				group, seq, e.Commit.ID, e.Tool, e.Date, e.Commit.Timestamp,
				e.Commit.Message, e.Commit.Author.Name, e.Commit.Distinct, e.Commit.URL,
			)
			if err != nil {
				return fmt.Errorf("failed to insert entry %s: %w", e.Commit.ID, err)
			}

			entryID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to get last insert id: %w", err)
			}

			for _, m := range e.Benches {
				if _, err := benchStmt.Exec(entryID, m.Name, m.Value, m.Unit, m.Extra); err != nil {
					return fmt.Errorf("failed to insert measurement %s: %w", m.Name, err)
				}
			}
		}
	}

	_, err = tx.Exec(`
		INSERT INTO ledger_meta (id, repo_url, last_update, mirrored_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET repo_url = excluded.repo_url,
			last_update = excluded.last_update, mirrored_at = excluded.mirrored_at`,
		l.RepoURL, l.LastUpdate, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to record mirror metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mirror: %w", err)
	}
	return nil
}

// Info returns metadata about the mirrored snapshot; ok is false when nothing
// has been mirrored yet
func (db *DB) Info() (info MirrorInfo, ok bool, err error) {
	var mirroredAt string
	err = db.conn.QueryRow(`SELECT repo_url, last_update, mirrored_at FROM ledger_meta WHERE id = 1`).
		Scan(&info.RepoURL, &info.LastUpdate, &mirroredAt)
	if err == sql.ErrNoRows {
		return info, false, nil
	}
	if err != nil {
		return info, false, fmt.Errorf("failed to read mirror metadata: %w", err)
	}

	info.MirroredAt, err = time.Parse(time.RFC3339, mirroredAt)
	if err != nil {
		return info, false, fmt.Errorf("failed to parse mirror time %q: %w", mirroredAt, err)
	}
	return info, true, nil
}

// Stats summarises every (group, tool) pair in the mirror
func (db *DB) Stats() ([]*GroupStats, error) {
	rows, err := db.conn.Query(`
		SELECT e.grp, e.tool, COUNT(DISTINCT e.id), COUNT(DISTINCT m.name), MIN(e.date_ms), MAX(e.date_ms)
		FROM entries e LEFT JOIN measurements m ON m.entry_id = e.id
		GROUP BY e.grp, e.tool
		ORDER BY e.grp, e.tool`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	var stats []*GroupStats
	for rows.Next() {
		var s GroupStats
		if err := rows.Scan(&s.Group, &s.Tool, &s.Entries, &s.Benchmarks, &s.FirstDate, &s.LastDate); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats = append(stats, &s)
	}

	return stats, rows.Err()
}

// BenchmarkStats summarises each benchmark of a group/tool pair
func (db *DB) BenchmarkStats(group, tool string) ([]*BenchmarkStats, error) {
	rows, err := db.conn.Query(`
		SELECT m.name, MAX(m.unit), COUNT(*), MIN(m.value), MAX(m.value), AVG(m.value)
		FROM measurements m JOIN entries e ON e.id = m.entry_id
		WHERE e.grp = ? AND e.tool = ?
		GROUP BY m.name
		ORDER BY m.name`, group, tool)
	if err != nil {
		return nil, fmt.Errorf("failed to query benchmark stats: %w", err)
	}
	defer rows.Close()

	var stats []*BenchmarkStats
	for rows.Next() {
		var s BenchmarkStats
		if err := rows.Scan(&s.Name, &s.Unit, &s.Count, &s.Min, &s.Max, &s.Avg); err != nil {
			return nil, fmt.Errorf("failed to scan benchmark stats: %w", err)
		}
		stats = append(stats, &s)
	}

	return stats, rows.Err()
}

// Points returns a mirrored series ordered by date, then append order, in
// the same shape the query engine produces from the ledger
func (db *DB) Points(group, tool, name string) ([]series.Point, error) {
	rows, err := db.conn.Query(`
		SELECT e.date_ms, m.value, m.unit, e.commit_id, COALESCE(e.url, ''), e.distinct_build, COALESCE(m.extra, '')
		FROM measurements m JOIN entries e ON e.id = m.entry_id
		WHERE e.grp = ? AND e.tool = ? AND m.name = ?
		ORDER BY e.date_ms, e.seq`, group, tool, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}
	defer rows.Close()

	points := []series.Point{}
	for rows.Next() {
		var p series.Point
		if err := rows.Scan(&p.Date, &p.Value, &p.Unit, &p.CommitID, &p.CommitURL, &p.Distinct, &p.Extra); err != nil {
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}
		points = append(points, p)
	}

	return points, rows.Err()
}
