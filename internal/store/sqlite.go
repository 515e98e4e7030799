package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/docextract/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id            TEXT PRIMARY KEY,
	document_type TEXT NOT NULL,
	file_key      TEXT NOT NULL,
	original_name TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS extraction_jobs (
	id                   TEXT PRIMARY KEY,
	document_id          TEXT NOT NULL REFERENCES documents(id),
	status               TEXT NOT NULL DEFAULT 'PENDING',
	status_message       TEXT NOT NULL DEFAULT '',
	error_details        TEXT,
	extraction_result_id TEXT,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at         DATETIME
);

CREATE TABLE IF NOT EXISTS extraction_results (
	id            TEXT PRIMARY KEY,
	document_id   TEXT NOT NULL REFERENCES documents(id),
	job_id        TEXT NOT NULL UNIQUE REFERENCES extraction_jobs(id),
	source_a      TEXT NOT NULL,
	source_b      TEXT NOT NULL,
	consensus     TEXT NOT NULL,
	confidence    TEXT NOT NULL,
	discrepancies TEXT NOT NULL DEFAULT '[]',
	verification  TEXT NOT NULL DEFAULT '[]',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS extracted_fields (
	result_id      TEXT NOT NULL REFERENCES extraction_results(id),
	name           TEXT NOT NULL,
	value          TEXT NOT NULL DEFAULT '',
	value_in_words TEXT,
	field_order    INTEGER NOT NULL,
	needs_review   BOOLEAN NOT NULL DEFAULT 0,
	PRIMARY KEY (result_id, name)
);

CREATE TABLE IF NOT EXISTS prompt_provenance (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	result_id      TEXT NOT NULL REFERENCES extraction_results(id),
	source         TEXT NOT NULL,
	model          TEXT NOT NULL DEFAULT '',
	prompt_version TEXT NOT NULL DEFAULT '',
	recorded_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON extraction_jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_document ON extraction_jobs(document_id);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON extraction_jobs(created_at);
CREATE INDEX IF NOT EXISTS idx_results_created_at ON extraction_results(created_at);
CREATE INDEX IF NOT EXISTS idx_provenance_result ON prompt_provenance(result_id);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Documents ---

func (s *SQLiteStore) CreateDocument(ctx context.Context, doc model.Document) (*model.Document, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.Type == "" {
		doc.Type = model.DocumentTypeUnknown
	}
	doc.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, document_type, file_key, original_name, created_at) VALUES (?, ?, ?, ?, ?)`,
		doc.ID, string(doc.Type), doc.FileKey, doc.OriginalName, doc.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert document")
	}
	return &doc, nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var d model.Document
	var docType string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, document_type, file_key, original_name, created_at FROM documents WHERE id = ?`,
		id,
	).Scan(&d.ID, &docType, &d.FileKey, &d.OriginalName, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get document %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get document %s", id)
	}
	d.Type = model.DocumentType(docType)
	return &d, nil
}

// --- Jobs ---

func (s *SQLiteStore) CreateJob(ctx context.Context, documentID string) (*model.ExtractionJob, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO extraction_jobs (id, document_id, status, status_message, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, documentID, string(model.JobStatusPending), "", now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
	}
	return &model.ExtractionJob{
		ID:         id,
		DocumentID: documentID,
		Status:     model.JobStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.ExtractionJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM extraction_jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get job %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get job %s", id)
	}
	return j, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.ExtractionJob, error) {
	query := `SELECT ` + jobColumns + ` FROM extraction_jobs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.DocumentID != "" {
		query += ` AND document_id = ?`
		args = append(args, filter.DocumentID)
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.CreatedAfter.UTC())
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.ExtractionJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

func (s *SQLiteStore) UpdateJobStatus(ctx context.Context, id string, status model.JobStatus, message string, details *model.ErrorDetails) error {
	var detailsJSON sql.NullString
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal error details")
		}
		detailsJSON = sql.NullString{String: string(b), Valid: true}
	}

	now := time.Now().UTC()
	var completedAt sql.NullTime
	if status.IsTerminal() {
		completedAt = sql.NullTime{Time: now, Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE extraction_jobs SET status = ?, status_message = ?, error_details = ?, updated_at = ?, completed_at = COALESCE(?, completed_at) WHERE id = ? AND `+notTerminal,
		string(status), message, detailsJSON, now, completedAt, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job status %s", id)
	}
	return s.checkJobUpdated(ctx, res, id)
}

func (s *SQLiteStore) CompleteJob(ctx context.Context, id, resultID, message string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE extraction_jobs SET status = ?, status_message = ?, extraction_result_id = ?, error_details = NULL, updated_at = ?, completed_at = ? WHERE id = ? AND `+notTerminal,
		string(model.JobStatusCompleted), message, resultID, now, now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete job %s", id)
	}
	return s.checkJobUpdated(ctx, res, id)
}

func (s *SQLiteStore) checkJobUpdated(ctx context.Context, res sql.Result, id string) error {
	err := checkRowsAffected(res, "job", id)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return err
	}
	var status string
	lookupErr := s.db.QueryRowContext(ctx, `SELECT status FROM extraction_jobs WHERE id = ?`, id).Scan(&status)
	if errors.Is(lookupErr, sql.ErrNoRows) {
		return err
	}
	if lookupErr != nil {
		return eris.Wrapf(lookupErr, "sqlite: lookup job %s", id)
	}
	return eris.Wrapf(ErrJobTerminal, "sqlite: job %s is %s", id, status)
}

// --- Results ---

func (s *SQLiteStore) CreateExtractionResult(ctx context.Context, r *model.ExtractionResult) (string, error) {
	id := r.ID
	if id == "" {
		id = uuid.New().String()
	}
	cols, err := marshalResult(r)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal result")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO extraction_results (`+resultColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.DocumentID, r.JobID, string(cols.sourceA), string(cols.sourceB), string(cols.consensus),
		string(r.Confidence), string(cols.discrepancies), string(cols.verification), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert extraction result")
	}
	return id, nil
}

func (s *SQLiteStore) InsertExtractedFields(ctx context.Context, resultID string, fields []model.ExtractedField) error {
	if len(fields) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO extracted_fields (result_id, name, value, value_in_words, field_order, needs_review) VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert field")
	}
	defer stmt.Close() //nolint:errcheck

	for _, f := range fields {
		var words sql.NullString
		if f.ValueInWords != nil {
			words = sql.NullString{String: *f.ValueInWords, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, resultID, f.Name, f.Value, words, f.Order, f.NeedsReview); err != nil {
			return eris.Wrapf(err, "sqlite: insert field %s", f.Name)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit fields")
}

func (s *SQLiteStore) DeleteExtractionResult(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM extracted_fields WHERE result_id = ?`, id); err != nil {
		return eris.Wrapf(err, "sqlite: delete fields of %s", id)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM extraction_results WHERE id = ?`, id); err != nil {
		return eris.Wrapf(err, "sqlite: delete extraction result %s", id)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit delete result")
}

func (s *SQLiteStore) GetExtractionResult(ctx context.Context, id string) (*model.ExtractionResult, error) {
	var r model.ExtractionResult
	var c resultJSON
	var confidence string
	err := s.db.QueryRowContext(ctx,
		`SELECT `+resultColumns+` FROM extraction_results WHERE id = ?`, id,
	).Scan(&r.ID, &r.DocumentID, &r.JobID, &c.sourceA, &c.sourceB, &c.consensus,
		&confidence, &c.discrepancies, &c.verification, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get extraction result %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get extraction result %s", id)
	}
	r.Confidence = model.ConfidenceTier(confidence)
	if err := c.unmarshalInto(&r); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal result")
	}
	return &r, nil
}

func (s *SQLiteStore) ListExtractedFields(ctx context.Context, resultID string) ([]model.ExtractedField, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, value, value_in_words, field_order, needs_review FROM extracted_fields WHERE result_id = ? ORDER BY field_order`,
		resultID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list extracted fields")
	}
	defer rows.Close()

	var fields []model.ExtractedField
	for rows.Next() {
		var f model.ExtractedField
		var words sql.NullString
		if err := rows.Scan(&f.Name, &f.Value, &words, &f.Order, &f.NeedsReview); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan extracted field")
		}
		if words.Valid {
			w := words.String
			f.ValueInWords = &w
		}
		fields = append(fields, f)
	}
	return fields, eris.Wrap(rows.Err(), "sqlite: list extracted fields iterate")
}

func (s *SQLiteStore) CountResultsByConfidence(ctx context.Context, since time.Time) (map[model.ConfidenceTier]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT confidence, count(*) FROM extraction_results WHERE created_at >= ? GROUP BY confidence`,
		since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count results by confidence")
	}
	defer rows.Close()

	out := make(map[model.ConfidenceTier]int)
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan confidence count")
		}
		out[model.ConfidenceTier(tier)] = n
	}
	return out, eris.Wrap(rows.Err(), "sqlite: count results iterate")
}

// --- Provenance ---

func (s *SQLiteStore) RecordProvenance(ctx context.Context, p model.PromptProvenance) error {
	if p.RecordedAt.IsZero() {
		p.RecordedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prompt_provenance (result_id, source, model, prompt_version, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		p.ResultID, p.Source, p.Versions.Model, p.Versions.PromptVersion, p.RecordedAt,
	)
	return eris.Wrapf(err, "sqlite: record provenance for %s", p.ResultID)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable) (*model.ExtractionJob, error) {
	var j model.ExtractionJob
	var status string
	var details, resultID sql.NullString
	var completedAt sql.NullTime

	if err := row.Scan(&j.ID, &j.DocumentID, &status, &j.StatusMessage, &details,
		&resultID, &j.CreatedAt, &j.UpdatedAt, &completedAt); err != nil {
		return nil, err
	}
	j.Status = model.JobStatus(status)
	j.ExtractionResultID = resultID.String
	if completedAt.Valid {
		t := completedAt.Time
		j.CompletedAt = &t
	}
	if details.Valid && details.String != "" {
		j.ErrorDetails = &model.ErrorDetails{}
		if err := json.Unmarshal([]byte(details.String), j.ErrorDetails); err != nil {
			return nil, eris.Wrap(err, "unmarshal error details")
		}
	}
	return &j, nil
}
