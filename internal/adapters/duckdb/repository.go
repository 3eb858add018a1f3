package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/signflowhq/signflow/internal/core/domain"
	"github.com/signflowhq/signflow/internal/core/ports"
)

// Repository is the DuckDB-backed implementation of every persistence
// port: documents, sign requests, credentials, the job queue and the
// worker pool marker. One embedded database, shared by the web tier
// producer and the worker consumers on the same host.
type Repository struct {
	db     *sql.DB
	secret secretCipher
}

// secretCipher encrypts credential passwords at rest.
type secretCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(encrypted string) (string, error)
}

var (
	_ ports.DocumentRepository    = (*Repository)(nil)
	_ ports.SignRequestRepository = (*Repository)(nil)
	_ ports.CredentialStore       = (*Repository)(nil)
	_ ports.JobQueue              = (*Repository)(nil)
	_ ports.WorkerPoolStateStore  = (*Repository)(nil)
)

// NewRepository opens (or creates) the database at path and bootstraps
// the schema. An empty path opens an in-memory database, handy in tests.
func NewRepository(path string, secret secretCipher) (*Repository, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %s: %w", path, err)
	}

	r := &Repository{db: db, secret: secret}
	if err := r.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id BIGINT PRIMARY KEY,
		name VARCHAR NOT NULL,
		status VARCHAR NOT NULL,
		node_type VARCHAR NOT NULL,
		parent_id BIGINT,
		signature_flow VARCHAR NOT NULL,
		metadata JSON,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sign_requests (
		id BIGINT PRIMARY KEY,
		uuid VARCHAR NOT NULL,
		document_id BIGINT NOT NULL,
		signing_order INTEGER NOT NULL,
		status VARCHAR NOT NULL,
		signed_at TIMESTAMP,
		display_name VARCHAR,
		email VARCHAR,
		user_id VARCHAR,
		identify_method VARCHAR,
		signature_method VARCHAR
	);

	CREATE TABLE IF NOT EXISTS credentials (
		owner_id VARCHAR NOT NULL,
		credential_id VARCHAR NOT NULL,
		sign_without_password BOOLEAN NOT NULL,
		password VARCHAR,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (owner_id, credential_id)
	);

	CREATE TABLE IF NOT EXISTS signing_jobs (
		id VARCHAR PRIMARY KEY,
		job_type VARCHAR NOT NULL,
		payload VARCHAR NOT NULL,
		status VARCHAR NOT NULL,
		error_message VARCHAR,
		leased_until TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS worker_pool_state (
		id INTEGER PRIMARY KEY,
		last_spawn_attempt TIMESTAMP NOT NULL
	);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// --- documents ---

const documentColumns = `id, name, status, node_type, parent_id, signature_flow, metadata, created_at, updated_at`

func (r *Repository) GetDocument(ctx context.Context, id domain.DocumentID) (domain.Document, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, int64(id))
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return domain.Document{}, domain.ErrDocumentNotFound
	}
	return doc, err
}

func (r *Repository) SaveDocument(ctx context.Context, doc domain.Document) error {
	metadata, err := encodeMetadata(doc.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			node_type = excluded.node_type,
			parent_id = excluded.parent_id,
			signature_flow = excluded.signature_flow,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at;
	`, int64(doc.ID), doc.Name, string(doc.Status), string(doc.NodeType),
		parentIDValue(doc.ParentID), string(doc.Flow), metadata,
		doc.CreatedAt, time.Now().UTC())
	return err
}

func (r *Repository) UpdateDocument(ctx context.Context, doc domain.Document) error {
	metadata, err := encodeMetadata(doc.Metadata)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents
		SET status = ?, metadata = ?, updated_at = ?
		WHERE id = ?
	`, string(doc.Status), metadata, time.Now().UTC(), int64(doc.ID))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *Repository) GetChildrenFiles(ctx context.Context, parentID domain.DocumentID) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE parent_id = ? ORDER BY id`, int64(parentID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// --- sign requests ---

const signRequestColumns = `id, uuid, document_id, signing_order, status, signed_at, display_name, email, user_id, identify_method, signature_method`

func (r *Repository) GetSignRequest(ctx context.Context, id domain.SignRequestID) (domain.SignRequest, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+signRequestColumns+` FROM sign_requests WHERE id = ?`, int64(id))
	sr, err := scanSignRequest(row)
	if err == sql.ErrNoRows {
		return domain.SignRequest{}, domain.ErrSignRequestNotFound
	}
	return sr, err
}

func (r *Repository) SaveSignRequest(ctx context.Context, sr domain.SignRequest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sign_requests (`+signRequestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			signing_order = excluded.signing_order,
			status = excluded.status,
			signed_at = excluded.signed_at,
			display_name = excluded.display_name,
			email = excluded.email,
			user_id = excluded.user_id,
			identify_method = excluded.identify_method,
			signature_method = excluded.signature_method;
	`, int64(sr.ID), sr.UUID, int64(sr.DocumentID), sr.SigningOrder, string(sr.Status),
		sr.SignedAt, sr.DisplayName, sr.Email, sr.UserID, sr.IdentifyMethod, sr.SignatureMethod)
	return err
}

func (r *Repository) UpdateSignRequest(ctx context.Context, sr domain.SignRequest) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sign_requests
		SET signing_order = ?, status = ?, signed_at = ?, display_name = ?, signature_method = ?
		WHERE id = ?
	`, sr.SigningOrder, string(sr.Status), sr.SignedAt, sr.DisplayName, sr.SignatureMethod, int64(sr.ID))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrSignRequestNotFound
	}
	return nil
}

func (r *Repository) GetByFileID(ctx context.Context, fileID domain.DocumentID) ([]domain.SignRequest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+signRequestColumns+` FROM sign_requests WHERE document_id = ? ORDER BY signing_order, id`, int64(fileID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []domain.SignRequest
	for rows.Next() {
		sr, err := scanSignRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, sr)
	}
	return requests, rows.Err()
}

// ActivateIfDraft is the conditional DRAFT -> ABLE_TO_SIGN transition.
// The WHERE clause on the current status is what makes concurrent order
// releases collapse into a single activation.
func (r *Repository) ActivateIfDraft(ctx context.Context, id domain.SignRequestID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sign_requests
		SET status = ?
		WHERE id = ? AND status = ?
	`, string(domain.SignRequestStatusAbleToSign), int64(id), string(domain.SignRequestStatusDraft))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// --- worker pool state ---

func (r *Repository) LastSpawnAttempt(ctx context.Context) (time.Time, error) {
	var at time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT last_spawn_attempt FROM worker_pool_state WHERE id = 1`).Scan(&at)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	return at, err
}

func (r *Repository) RecordSpawnAttempt(ctx context.Context, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO worker_pool_state (id, last_spawn_attempt) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET last_spawn_attempt = excluded.last_spawn_attempt;
	`, at.UTC())
	return err
}

func parentIDValue(id *domain.DocumentID) interface{} {
	if id == nil {
		return nil
	}
	return int64(*id)
}
