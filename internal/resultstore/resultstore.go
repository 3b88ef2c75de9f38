// Package resultstore keeps benchmark sessions in a sqlite database so runs
// from different machines and days can be compared with plain SQL.
package resultstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/i5heu/GoDeadlineBench/internal/report"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	session_time TEXT NOT NULL,
	system_info  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS results (
	session_id   INTEGER NOT NULL REFERENCES sessions(id),
	strategy     TEXT    NOT NULL,
	clock        TEXT    NOT NULL,
	mode         TEXT    NOT NULL,
	deadline_win TEXT    NOT NULL,
	gomaxprocs   INTEGER NOT NULL,
	iterations   INTEGER NOT NULL,
	samples      INTEGER NOT NULL,
	ns_min5      REAL    NOT NULL,
	ns_median    REAL    NOT NULL,
	ns_max5      REAL    NOT NULL,
	throughput   REAL    NOT NULL,
	timestamp    INTEGER NOT NULL,
	go_version   TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS results_session ON results(session_id);
`

// Store is a sqlite-backed session history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema in %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes one session and its results in a single transaction and
// returns the new session id.
func (s *Store) Save(ctx context.Context, fr report.FullReport) (int64, error) {
	info, err := json.Marshal(fr.SystemInfo)
	if err != nil {
		return 0, fmt.Errorf("marshal system info: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (session_time, system_info) VALUES (?, ?)`,
		fr.SessionTime, string(info))
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("session id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO results (
		session_id, strategy, clock, mode, deadline_win, gomaxprocs, iterations, samples,
		ns_min5, ns_median, ns_max5, throughput, timestamp, go_version
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare result insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range fr.Benchmarks {
		_, err := stmt.ExecContext(ctx, id, b.Strategy, b.Clock, b.Mode, b.Window,
			b.GOMAXPROCS, int64(b.Iterations), b.Samples,
			b.NsPerElem.Min5, b.NsPerElem.Median, b.NsPerElem.Max5,
			b.Throughput, b.Timestamp, b.GoVersion)
		if err != nil {
			return 0, fmt.Errorf("insert result %s: %w", b.Strategy, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// Sessions returns every stored session in insertion order.
func (s *Store) Sessions(ctx context.Context) ([]report.FullReport, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, session_time, system_info FROM sessions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var ids []int64
	var out []report.FullReport
	for rows.Next() {
		var id int64
		var fr report.FullReport
		var info string
		if err := rows.Scan(&id, &fr.SessionTime, &info); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if err := json.Unmarshal([]byte(info), &fr.SystemInfo); err != nil {
			return nil, fmt.Errorf("session %d system info: %w", id, err)
		}
		ids = append(ids, id)
		out = append(out, fr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i, id := range ids {
		results, err := s.results(ctx, id)
		if err != nil {
			return nil, err
		}
		out[i].Benchmarks = results
	}
	return out, nil
}

func (s *Store) results(ctx context.Context, sessionID int64) ([]report.BenchmarkResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		strategy, clock, mode, deadline_win, gomaxprocs, iterations, samples,
		ns_min5, ns_median, ns_max5, throughput, timestamp, go_version
		FROM results WHERE session_id = ? ORDER BY rowid`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query results of session %d: %w", sessionID, err)
	}
	defer rows.Close()

	var out []report.BenchmarkResult
	for rows.Next() {
		var b report.BenchmarkResult
		var iters int64
		err := rows.Scan(&b.Strategy, &b.Clock, &b.Mode, &b.Window, &b.GOMAXPROCS, &iters, &b.Samples,
			&b.NsPerElem.Min5, &b.NsPerElem.Median, &b.NsPerElem.Max5,
			&b.Throughput, &b.Timestamp, &b.GoVersion)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		b.Iterations = uint64(iters)
		out = append(out, b)
	}
	return out, rows.Err()
}
