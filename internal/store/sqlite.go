package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/calloutapp/callout/internal/model"
)

// SQLiteJournal persists offer resolutions so the engine can answer what
// happened to an offer across restarts and skip re-adding offers the server
// re-sends after a local resolution.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal opens (or creates) a SQLite database at dbPath and ensures
// the resolutions table exists.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	createTable := `CREATE TABLE IF NOT EXISTS resolutions (
		offer_id    TEXT PRIMARY KEY,
		kind        TEXT NOT NULL,
		job_id      TEXT,
		resolved_at DATETIME NOT NULL
	)`
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating resolutions table: %w", err)
	}

	return &SQLiteJournal{db: db}, nil
}

// Record stores a resolution. A second record for the same offer is ignored:
// the first resolution wins, matching offer immutability.
func (j *SQLiteJournal) Record(res model.Resolution) error {
	var jobID sql.NullString
	if res.Job != nil {
		jobID = sql.NullString{String: res.Job.ID, Valid: true}
	}
	_, err := j.db.Exec(
		"INSERT OR IGNORE INTO resolutions (offer_id, kind, job_id, resolved_at) VALUES (?, ?, ?, ?)",
		res.OfferID, string(res.Kind), jobID, res.ResolvedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording resolution for offer %s: %w", res.OfferID, err)
	}
	return nil
}

// Lookup returns the recorded resolution for an offer, or nil if none exists.
func (j *SQLiteJournal) Lookup(offerID string) (*model.Resolution, error) {
	row := j.db.QueryRow(
		"SELECT kind, job_id, resolved_at FROM resolutions WHERE offer_id = ?", offerID,
	)
	res, err := scanResolution(row, offerID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up resolution for offer %s: %w", offerID, err)
	}
	return res, nil
}

// Recent returns up to limit resolutions, newest first.
func (j *SQLiteJournal) Recent(limit int) ([]model.Resolution, error) {
	rows, err := j.db.Query(
		"SELECT offer_id, kind, job_id, resolved_at FROM resolutions ORDER BY resolved_at DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing recent resolutions: %w", err)
	}
	defer rows.Close()

	var out []model.Resolution
	for rows.Next() {
		var (
			res   model.Resolution
			kind  string
			jobID sql.NullString
			at    string
		)
		if err := rows.Scan(&res.OfferID, &kind, &jobID, &at); err != nil {
			return nil, fmt.Errorf("scanning resolution row: %w", err)
		}
		res.Kind = model.ResolutionKind(kind)
		if jobID.Valid {
			res.Job = &model.Job{ID: jobID.String}
		}
		if t, err := time.Parse(time.RFC3339Nano, at); err == nil {
			res.ResolvedAt = t
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating resolutions: %w", err)
	}
	return out, nil
}

// Close closes the underlying database connection.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

func scanResolution(row *sql.Row, offerID string) (*model.Resolution, error) {
	var (
		kind  string
		jobID sql.NullString
		at    string
	)
	if err := row.Scan(&kind, &jobID, &at); err != nil {
		return nil, err
	}
	res := &model.Resolution{OfferID: offerID, Kind: model.ResolutionKind(kind)}
	if jobID.Valid {
		res.Job = &model.Job{ID: jobID.String}
	}
	if t, err := time.Parse(time.RFC3339Nano, at); err == nil {
		res.ResolvedAt = t
	}
	return res, nil
}
