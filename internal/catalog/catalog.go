// Package catalog persists parsed storms in SQLite so the API can answer
// queries without re-reading track files.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)

	"github.com/leosaffin/storm-assess/internal/storm"
	"github.com/leosaffin/storm-assess/internal/timeutil"
)

// Store provides SQLite persistence for the storm catalogue.
type Store struct {
	db *sql.DB
}

// Open initialises the catalogue database and runs migrations. WAL mode and
// busy_timeout keep concurrent readers from hitting "database locked".
func Open(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ingested_files (
		path TEXT PRIMARY KEY,
		sha256 TEXT NOT NULL,
		mod_time TEXT NOT NULL,
		storms INTEGER NOT NULL DEFAULT 0,
		ingested_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS storms (
		id TEXT PRIMARY KEY,
		source_file TEXT NOT NULL,
		track_number INTEGER NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		genesis TEXT NOT NULL,
		genesis_year INTEGER NOT NULL,
		genesis_month INTEGER NOT NULL,
		lysis TEXT NOT NULL,
		nrecords INTEGER NOT NULL,
		max_vmax REAL NOT NULL,
		min_mslp REAL NOT NULL,
		ace REAL NOT NULL,
		calendar TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS observations (
		storm_id TEXT NOT NULL REFERENCES storms(id) ON DELETE CASCADE,
		idx INTEGER NOT NULL,
		time TEXT NOT NULL,
		lon REAL NOT NULL,
		lat REAL NOT NULL,
		vorticity REAL NOT NULL,
		vmax REAL NOT NULL,
		mslp REAL NOT NULL,
		extras TEXT,
		PRIMARY KEY (storm_id, idx)
	);

	CREATE INDEX IF NOT EXISTS idx_storms_source ON storms(source_file);
	CREATE INDEX IF NOT EXISTS idx_storms_genesis ON storms(genesis_year, genesis_month);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record is one catalogued storm's summary row.
type Record struct {
	ID          string            `json:"id"`
	SourceFile  string            `json:"source_file"`
	TrackNumber int               `json:"track_number"`
	Name        string            `json:"name,omitempty"`
	Genesis     timeutil.Time     `json:"genesis"`
	Lysis       timeutil.Time     `json:"lysis"`
	NRecords    int               `json:"nrecords"`
	MaxVMax     float64           `json:"max_vmax"`
	MinMSLP     float64           `json:"min_mslp"`
	ACE         float64           `json:"ace"`
	Calendar    timeutil.Calendar `json:"-"`
}

// FileInfo is one ingested source file's bookkeeping row.
type FileInfo struct {
	Path       string
	SHA256     string
	ModTime    time.Time
	Storms     int
	IngestedAt time.Time
}

// GetFile returns the bookkeeping row for path, or nil when the file has
// never been ingested.
func (s *Store) GetFile(ctx context.Context, path string) (*FileInfo, error) {
	query := `
	SELECT path, sha256, mod_time, storms, ingested_at
	FROM ingested_files
	WHERE path = ?
	`
	var fi FileInfo
	var modTimeStr, ingestedStr string
	err := s.db.QueryRowContext(ctx, query, path).Scan(&fi.Path, &fi.SHA256, &modTimeStr, &fi.Storms, &ingestedStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	fi.ModTime, _ = time.Parse(time.RFC3339, modTimeStr)
	fi.IngestedAt, _ = time.Parse(time.RFC3339, ingestedStr)
	return &fi, nil
}

// UpsertFile inserts or updates a source file's bookkeeping row.
func (s *Store) UpsertFile(ctx context.Context, fi FileInfo) error {
	query := `
	INSERT INTO ingested_files (path, sha256, mod_time, storms, ingested_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		sha256 = excluded.sha256,
		mod_time = excluded.mod_time,
		storms = excluded.storms,
		ingested_at = excluded.ingested_at
	`
	_, err := s.db.ExecContext(ctx, query,
		fi.Path, fi.SHA256,
		fi.ModTime.UTC().Format(time.RFC3339),
		fi.Storms,
		fi.IngestedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// InsertStorms replaces the catalogued storms of one source file in a single
// transaction and returns the new storm IDs in input order. Storms without
// observations are skipped.
func (s *Store) InsertStorms(ctx context.Context, sourceFile string, storms []storm.Storm) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM observations WHERE storm_id IN (SELECT id FROM storms WHERE source_file = ?)`, sourceFile); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM storms WHERE source_file = ?`, sourceFile); err != nil {
		return nil, err
	}

	var ids []string
	for i := range storms {
		st := &storms[i]
		if st.Len() == 0 {
			continue
		}
		id := uuid.NewString()
		if err := insertStorm(ctx, tx, id, sourceFile, st); err != nil {
			return nil, fmt.Errorf("storm %d: %w", st.Number, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func insertStorm(ctx context.Context, tx *sql.Tx, id, sourceFile string, st *storm.Storm) error {
	genesis, err := st.GenesisDate()
	if err != nil {
		return err
	}
	lysis, _ := st.LysisDate()
	maxVMax, _ := st.MaxVMax()
	minMSLP, _ := st.MinMSLP()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO storms (id, source_file, track_number, name, genesis, genesis_year, genesis_month,
		lysis, nrecords, max_vmax, min_mslp, ace, calendar)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id, sourceFile, st.Number, st.Name,
		genesis.String(), genesis.Year(), genesis.Month(),
		lysis.String(), st.Len(), maxVMax, minMSLP, st.ACE(),
		genesis.Calendar().String(),
	)
	if err != nil {
		return err
	}

	for i, ob := range st.Obs {
		var extras any
		if len(ob.Extras) > 0 {
			data, err := json.Marshal(ob.Extras)
			if err != nil {
				return fmt.Errorf("marshal extras: %w", err)
			}
			extras = string(data)
		}
		_, err := tx.ExecContext(ctx, `
		INSERT INTO observations (storm_id, idx, time, lon, lat, vorticity, vmax, mslp, extras)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			id, i, ob.Date.String(), ob.Lon, ob.Lat, ob.Vorticity, ob.VMax, ob.MSLP, extras,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Filter narrows ListStorms. Zero values match everything.
type Filter struct {
	Year       int
	Months     []int
	SourceFile string
}

const recordColumns = `id, source_file, track_number, name, genesis, lysis, nrecords, max_vmax, min_mslp, ace, calendar`

// ListStorms returns catalogued storm summaries matching the filter, ordered
// by genesis time.
func (s *Store) ListStorms(ctx context.Context, f Filter) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM storms`
	var clauses []string
	var args []any
	if f.Year != 0 {
		clauses = append(clauses, "genesis_year = ?")
		args = append(args, f.Year)
	}
	if len(f.Months) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(f.Months)), ", ")
		clauses = append(clauses, "genesis_month IN ("+placeholders+")")
		for _, m := range f.Months {
			args = append(args, m)
		}
	}
	if f.SourceFile != "" {
		clauses = append(clauses, "source_file = ?")
		args = append(args, f.SourceFile)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY genesis, track_number"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var r Record
	var genesisStr, lysisStr, calStr string
	if err := row.Scan(
		&r.ID, &r.SourceFile, &r.TrackNumber, &r.Name,
		&genesisStr, &lysisStr, &r.NRecords, &r.MaxVMax, &r.MinMSLP, &r.ACE, &calStr,
	); err != nil {
		return Record{}, err
	}
	var err error
	if r.Genesis, err = timeutil.ParseString(genesisStr); err != nil {
		return Record{}, fmt.Errorf("stored genesis: %w", err)
	}
	if r.Lysis, err = timeutil.ParseString(lysisStr); err != nil {
		return Record{}, fmt.Errorf("stored lysis: %w", err)
	}
	if r.Calendar, err = timeutil.ParseCalendar(calStr); err != nil {
		return Record{}, fmt.Errorf("stored calendar: %w", err)
	}
	return r, nil
}

// ErrNotFound is returned by GetStorm for unknown IDs.
var ErrNotFound = sql.ErrNoRows

// GetStorm returns one storm's summary plus its full observation list.
func (s *Store) GetStorm(ctx context.Context, id string) (Record, *storm.Storm, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM storms WHERE id = ?`, id)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return Record{}, nil, ErrNotFound
	}
	if err != nil {
		return Record{}, nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT time, lon, lat, vorticity, vmax, mslp, extras
	FROM observations
	WHERE storm_id = ?
	ORDER BY idx
	`, id)
	if err != nil {
		return Record{}, nil, err
	}
	defer func() { _ = rows.Close() }()

	st := &storm.Storm{Number: r.TrackNumber, Name: r.Name}
	for rows.Next() {
		var ob storm.Observation
		var timeStr string
		var extras sql.NullString
		if err := rows.Scan(&timeStr, &ob.Lon, &ob.Lat, &ob.Vorticity, &ob.VMax, &ob.MSLP, &extras); err != nil {
			return Record{}, nil, err
		}
		if ob.Date, err = timeutil.ParseString(timeStr); err != nil {
			return Record{}, nil, fmt.Errorf("stored observation time: %w", err)
		}
		if extras.Valid {
			if err := json.Unmarshal([]byte(extras.String), &ob.Extras); err != nil {
				return Record{}, nil, fmt.Errorf("stored extras: %w", err)
			}
		}
		st.Obs = append(st.Obs, ob)
	}
	return r, st, rows.Err()
}

// DeleteFile removes a source file's bookkeeping row and every storm that
// came from it.
func (s *Store) DeleteFile(ctx context.Context, path string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM observations WHERE storm_id IN (SELECT id FROM storms WHERE source_file = ?)`, path); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM storms WHERE source_file = ?`, path); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ingested_files WHERE path = ?`, path); err != nil {
		return err
	}
	return tx.Commit()
}

// Counts returns the number of ingested files and catalogued storms.
func (s *Store) Counts(ctx context.Context) (files, storms int, err error) {
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ingested_files`).Scan(&files); err != nil {
		return 0, 0, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM storms`).Scan(&storms); err != nil {
		return 0, 0, err
	}
	return files, storms, nil
}
