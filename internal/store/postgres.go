package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/docextract/internal/db"
	"github.com/sells-group/docextract/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_job":      `SELECT ` + jobColumns + ` FROM extraction_jobs WHERE id = $1`,
	"get_document": `SELECT id, document_type, file_key, original_name, created_at FROM documents WHERE id = $1`,
}

const jobColumns = `id, document_id, status, status_message, error_details, extraction_result_id, created_at, updated_at, completed_at`

const resultColumns = `id, document_id, job_id, source_a, source_b, consensus, confidence, discrepancies, verification, created_at`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	document_type TEXT NOT NULL,
	file_key      TEXT NOT NULL,
	original_name TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS extraction_jobs (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	document_id          TEXT NOT NULL REFERENCES documents(id),
	status               TEXT NOT NULL DEFAULT 'PENDING',
	status_message       TEXT NOT NULL DEFAULT '',
	error_details        JSONB,
	extraction_result_id TEXT,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at         TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS extraction_results (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	document_id   TEXT NOT NULL REFERENCES documents(id),
	job_id        TEXT NOT NULL UNIQUE REFERENCES extraction_jobs(id),
	source_a      JSONB NOT NULL,
	source_b      JSONB NOT NULL,
	consensus     JSONB NOT NULL,
	confidence    TEXT NOT NULL,
	discrepancies JSONB NOT NULL DEFAULT '[]',
	verification  JSONB NOT NULL DEFAULT '[]',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS extracted_fields (
	result_id      TEXT NOT NULL REFERENCES extraction_results(id),
	name           TEXT NOT NULL,
	value          TEXT NOT NULL DEFAULT '',
	value_in_words TEXT,
	field_order    INTEGER NOT NULL,
	needs_review   BOOLEAN NOT NULL DEFAULT false,
	PRIMARY KEY (result_id, name)
);

CREATE TABLE IF NOT EXISTS prompt_provenance (
	id             BIGSERIAL PRIMARY KEY,
	result_id      TEXT NOT NULL REFERENCES extraction_results(id),
	source         TEXT NOT NULL,
	model          TEXT NOT NULL DEFAULT '',
	prompt_version TEXT NOT NULL DEFAULT '',
	recorded_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON extraction_jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_document ON extraction_jobs(document_id);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON extraction_jobs(created_at);
CREATE INDEX IF NOT EXISTS idx_results_created_at ON extraction_results(created_at);
CREATE INDEX IF NOT EXISTS idx_provenance_result ON prompt_provenance(result_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Documents ---

func (s *PostgresStore) CreateDocument(ctx context.Context, doc model.Document) (*model.Document, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.Type == "" {
		doc.Type = model.DocumentTypeUnknown
	}
	doc.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, document_type, file_key, original_name, created_at) VALUES ($1, $2, $3, $4, $5)`,
		doc.ID, string(doc.Type), doc.FileKey, doc.OriginalName, doc.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert document")
	}
	return &doc, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var d model.Document
	var docType string
	err := s.pool.QueryRow(ctx,
		`SELECT id, document_type, file_key, original_name, created_at FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &docType, &d.FileKey, &d.OriginalName, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get document %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get document %s", id)
	}
	d.Type = model.DocumentType(docType)
	return &d, nil
}

// --- Jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, documentID string) (*model.ExtractionJob, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO extraction_jobs (id, document_id, status, status_message, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, documentID, string(model.JobStatusPending), "", now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert job")
	}
	return &model.ExtractionJob{
		ID:         id,
		DocumentID: documentID,
		Status:     model.JobStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.ExtractionJob, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM extraction_jobs WHERE id = $1`, id)
	j, err := scanPgJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get job %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get job %s", id)
	}
	return j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.ExtractionJob, error) {
	query := `SELECT ` + jobColumns + ` FROM extraction_jobs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.DocumentID != "" {
		query += fmt.Sprintf(` AND document_id = $%d`, argIdx)
		args = append(args, filter.DocumentID)
		argIdx++
	}
	if !filter.CreatedAfter.IsZero() {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, filter.CreatedAfter)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.ExtractionJob
	for rows.Next() {
		j, err := scanPgJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id string, status model.JobStatus, message string, details *model.ErrorDetails) error {
	var detailsJSON []byte
	if details != nil {
		var err error
		if detailsJSON, err = json.Marshal(details); err != nil {
			return eris.Wrap(err, "postgres: marshal error details")
		}
	}

	now := time.Now().UTC()
	var completedAt *time.Time
	if status.IsTerminal() {
		completedAt = &now
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE extraction_jobs SET status = $1, status_message = $2, error_details = $3, updated_at = $4, completed_at = COALESCE($5, completed_at) WHERE id = $6 AND `+notTerminal,
		string(status), message, detailsJSON, now, completedAt, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return s.explainNoUpdate(ctx, id)
	}
	return nil
}

func (s *PostgresStore) CompleteJob(ctx context.Context, id, resultID, message string) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE extraction_jobs SET status = $1, status_message = $2, extraction_result_id = $3, error_details = NULL, updated_at = $4, completed_at = $4 WHERE id = $5 AND `+notTerminal,
		string(model.JobStatusCompleted), message, resultID, now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete job %s", id)
	}
	if tag.RowsAffected() == 0 {
		return s.explainNoUpdate(ctx, id)
	}
	return nil
}

// explainNoUpdate distinguishes a missing job from a terminal one after a
// guarded UPDATE touched no rows.
func (s *PostgresStore) explainNoUpdate(ctx context.Context, id string) error {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM extraction_jobs WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "postgres: job %s", id)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: lookup job %s", id)
	}
	return eris.Wrapf(ErrJobTerminal, "postgres: job %s is %s", id, status)
}

// --- Results ---

func (s *PostgresStore) CreateExtractionResult(ctx context.Context, r *model.ExtractionResult) (string, error) {
	id := r.ID
	if id == "" {
		id = uuid.New().String()
	}
	cols, err := marshalResult(r)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal result")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO extraction_results (`+resultColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, r.DocumentID, r.JobID, cols.sourceA, cols.sourceB, cols.consensus,
		string(r.Confidence), cols.discrepancies, cols.verification, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert extraction result")
	}
	return id, nil
}

func (s *PostgresStore) InsertExtractedFields(ctx context.Context, resultID string, fields []model.ExtractedField) error {
	_, err := db.CopyRows(ctx, s.pool, "extracted_fields",
		[]string{"result_id", "name", "value", "value_in_words", "field_order", "needs_review"}, fields,
		func(f model.ExtractedField) []any {
			return []any{resultID, f.Name, f.Value, f.ValueInWords, f.Order, f.NeedsReview}
		})
	return eris.Wrapf(err, "postgres: insert extracted fields for %s", resultID)
}

func (s *PostgresStore) DeleteExtractionResult(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin delete result")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM extracted_fields WHERE result_id = $1`, id); err != nil {
		return eris.Wrapf(err, "postgres: delete fields of %s", id)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM extraction_results WHERE id = $1`, id); err != nil {
		return eris.Wrapf(err, "postgres: delete extraction result %s", id)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit delete result")
}

func (s *PostgresStore) GetExtractionResult(ctx context.Context, id string) (*model.ExtractionResult, error) {
	var r model.ExtractionResult
	var c resultJSON
	var confidence string
	err := s.pool.QueryRow(ctx,
		`SELECT `+resultColumns+` FROM extraction_results WHERE id = $1`, id,
	).Scan(&r.ID, &r.DocumentID, &r.JobID, &c.sourceA, &c.sourceB, &c.consensus,
		&confidence, &c.discrepancies, &c.verification, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get extraction result %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get extraction result %s", id)
	}
	r.Confidence = model.ConfidenceTier(confidence)
	if err := c.unmarshalInto(&r); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal result")
	}
	return &r, nil
}

func (s *PostgresStore) ListExtractedFields(ctx context.Context, resultID string) ([]model.ExtractedField, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, value, value_in_words, field_order, needs_review FROM extracted_fields WHERE result_id = $1 ORDER BY field_order`,
		resultID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list extracted fields")
	}
	defer rows.Close()

	var fields []model.ExtractedField
	for rows.Next() {
		var f model.ExtractedField
		if err := rows.Scan(&f.Name, &f.Value, &f.ValueInWords, &f.Order, &f.NeedsReview); err != nil {
			return nil, eris.Wrap(err, "postgres: scan extracted field")
		}
		fields = append(fields, f)
	}
	return fields, eris.Wrap(rows.Err(), "postgres: list extracted fields iterate")
}

func (s *PostgresStore) CountResultsByConfidence(ctx context.Context, since time.Time) (map[model.ConfidenceTier]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT confidence, count(*) FROM extraction_results WHERE created_at >= $1 GROUP BY confidence`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count results by confidence")
	}
	defer rows.Close()

	out := make(map[model.ConfidenceTier]int)
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan confidence count")
		}
		out[model.ConfidenceTier(tier)] = n
	}
	return out, eris.Wrap(rows.Err(), "postgres: count results iterate")
}

// --- Provenance ---

func (s *PostgresStore) RecordProvenance(ctx context.Context, p model.PromptProvenance) error {
	if p.RecordedAt.IsZero() {
		p.RecordedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO prompt_provenance (result_id, source, model, prompt_version, recorded_at) VALUES ($1, $2, $3, $4, $5)`,
		p.ResultID, p.Source, p.Versions.Model, p.Versions.PromptVersion, p.RecordedAt,
	)
	return eris.Wrapf(err, "postgres: record provenance for %s", p.ResultID)
}

func scanPgJob(row pgx.Row) (*model.ExtractionJob, error) {
	var j model.ExtractionJob
	var status string
	var details []byte
	var resultID *string
	if err := row.Scan(&j.ID, &j.DocumentID, &status, &j.StatusMessage, &details,
		&resultID, &j.CreatedAt, &j.UpdatedAt, &j.CompletedAt); err != nil {
		return nil, err
	}
	j.Status = model.JobStatus(status)
	if resultID != nil {
		j.ExtractionResultID = *resultID
	}
	if len(details) > 0 {
		j.ErrorDetails = &model.ErrorDetails{}
		if err := json.Unmarshal(details, j.ErrorDetails); err != nil {
			return nil, eris.Wrap(err, "unmarshal error details")
		}
	}
	return &j, nil
}
