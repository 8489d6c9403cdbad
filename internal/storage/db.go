package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"infolookup/internal"
)

var ErrRunNotFound = errors.New("run not found")

// DB is the run history and mail store. It is written after lookups complete and is never
// read to answer a lookup.
type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  runId TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  domain TEXT NOT NULL,
  source TEXT NOT NULL,
  emailId INTEGER,
  startedAt TEXT NOT NULL,
  finishedAt TEXT NOT NULL,
  inputs INTEGER NOT NULL,
  rowCount INTEGER NOT NULL,
  countsJson TEXT NOT NULL,
  FOREIGN KEY(emailId) REFERENCES emails(id)
);
CREATE INDEX IF NOT EXISTS idx_runs_startedAt ON runs(startedAt);

CREATE TABLE IF NOT EXISTS result_rows (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  rowNo INTEGER NOT NULL,
  position INTEGER NOT NULL,
  input TEXT NOT NULL,
  lookupKey TEXT NOT NULL,
  outcome TEXT NOT NULL,
  status TEXT NOT NULL,
  recordJson TEXT,
  UNIQUE(runId, rowNo),
  FOREIGN KEY(runId) REFERENCES runs(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// SaveRun stores the run header and every result row in one transaction. A run without an
// ID gets a fresh UUID; the stored ID is returned.
func (d *DB) SaveRun(run internal.RunRow, table internal.ResultTable, emailID *int) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Domain == "" {
		run.Domain = table.Domain
	}
	if run.FinishedAt == "" {
		run.FinishedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if run.StartedAt == "" {
		run.StartedAt = run.FinishedAt
	}
	if run.Counts == nil {
		run.Counts = table.Counts()
	}
	countsJSON, err := json.Marshal(run.Counts)
	if err != nil {
		return "", err
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
INSERT INTO runs (id, domain, source, emailId, startedAt, finishedAt, inputs, rowCount, countsJson)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, run.ID, string(run.Domain), run.Source, emailID, run.StartedAt, run.FinishedAt, run.Inputs, len(table.Rows), string(countsJSON)); err != nil {
		return "", err
	}

	stmt, err := tx.Prepare(`
INSERT INTO result_rows (runId, rowNo, position, input, lookupKey, outcome, status, recordJson)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for i, row := range table.Rows {
		var recordJSON *string
		if row.Record != nil {
			blob, err := json.Marshal(row.Record)
			if err != nil {
				return "", err
			}
			s := string(blob)
			recordJSON = &s
		}
		if _, err := stmt.Exec(run.ID, i, row.Position, row.Input, row.Key, string(row.Outcome), row.Status, recordJSON); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return run.ID, nil
}

func (d *DB) GetRun(id string) (*internal.RunRow, error) {
	row := d.conn.QueryRow(`
SELECT id, domain, source, startedAt, finishedAt, inputs, rowCount, countsJson
FROM runs WHERE id = ?
`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the most recent runs first.
func (d *DB) ListRuns(limit int) ([]internal.RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.Query(`
SELECT id, domain, source, startedAt, finishedAt, inputs, rowCount, countsJson
FROM runs ORDER BY startedAt DESC, rowid DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RunRow
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (internal.RunRow, error) {
	var run internal.RunRow
	var domain, countsJSON string
	if err := s.Scan(&run.ID, &domain, &run.Source, &run.StartedAt, &run.FinishedAt, &run.Inputs, &run.Rows, &countsJSON); err != nil {
		return internal.RunRow{}, err
	}
	run.Domain = internal.Domain(domain)
	run.Counts = map[internal.OutcomeKind]int{}
	_ = json.Unmarshal([]byte(countsJSON), &run.Counts)
	return run, nil
}

// GetRunTable rebuilds the stored result table of a run in its original row order.
func (d *DB) GetRunTable(id string) (internal.ResultTable, error) {
	run, err := d.GetRun(id)
	if err != nil {
		return internal.ResultTable{}, err
	}
	if run == nil {
		return internal.ResultTable{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	rows, err := d.conn.Query(`
SELECT position, input, lookupKey, outcome, status, recordJson
FROM result_rows WHERE runId = ? ORDER BY rowNo ASC
`, id)
	if err != nil {
		return internal.ResultTable{}, err
	}
	defer rows.Close()

	table := internal.ResultTable{Domain: run.Domain}
	for rows.Next() {
		var row internal.ResultRow
		var outcome string
		var recordJSON sql.NullString
		if err := rows.Scan(&row.Position, &row.Input, &row.Key, &outcome, &row.Status, &recordJSON); err != nil {
			return internal.ResultTable{}, err
		}
		row.Outcome = internal.OutcomeKind(outcome)
		if recordJSON.Valid {
			rec, err := decodeRecord(run.Domain, recordJSON.String)
			if err != nil {
				return internal.ResultTable{}, err
			}
			row.Record = rec
		}
		table.Rows = append(table.Rows, row)
	}
	return table, rows.Err()
}

func decodeRecord(domain internal.Domain, blob string) (internal.CanonicalRecord, error) {
	switch domain {
	case internal.DomainPhone:
		var rec internal.PhoneRecord
		err := json.Unmarshal([]byte(blob), &rec)
		return rec, err
	case internal.DomainVehicle:
		var rec internal.VehicleRecord
		err := json.Unmarshal([]byte(blob), &rec)
		return rec, err
	default:
		return nil, fmt.Errorf("unknown domain %q", domain)
	}
}

func (d *DB) UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO emails (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.EmailRow{}, err
	}

	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, errors.New("failed to upsert email")
	}
	return *row, nil
}

const emailColumns = `id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef, runId`

func scanEmail(s scanner) (internal.EmailRow, error) {
	var row internal.EmailRow
	var subject, sender, receivedAt, runID sql.NullString
	if err := s.Scan(&row.ID, &row.Provider, &row.MessageID, &subject, &sender, &receivedAt, &row.Hash, &row.Status, &row.RawRef, &runID); err != nil {
		return internal.EmailRow{}, err
	}
	row.Subject = subject.String
	row.Sender = sender.String
	row.ReceivedAt = receivedAt.String
	if runID.Valid {
		row.RunID = &runID.String
	}
	return row, nil
}

func (d *DB) GetEmailByProviderMessageID(provider, messageID string) (*internal.EmailRow, error) {
	row, err := scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE provider = ? AND messageId = ?`, provider, messageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetEmailByID(id int) (*internal.EmailRow, error) {
	row, err := scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListEmailsByStatus(status string, limit int) ([]internal.EmailRow, error) {
	rows, err := d.conn.Query(`SELECT `+emailColumns+` FROM emails WHERE status = ? ORDER BY receivedAt ASC LIMIT ?`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EmailRow
	for rows.Next() {
		row, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateEmailStatus(emailID int, status string) error {
	_, err := d.conn.Exec(`UPDATE emails SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, emailID)
	return err
}

// AttachEmailRun links a processed e-mail to the run its lookups were recorded under.
func (d *DB) AttachEmailRun(emailID int, runID string) error {
	_, err := d.conn.Exec(`UPDATE emails SET runId = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, runID, emailID)
	return err
}

func (d *DB) MustEmailByProviderMessageID(provider, messageID string) (internal.EmailRow, error) {
	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, fmt.Errorf("email not found: provider=%s messageId=%s", provider, messageID)
	}
	return *row, nil
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
