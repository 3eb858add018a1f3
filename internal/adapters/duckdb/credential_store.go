package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/signflowhq/signflow/internal/core/domain"
)

// Credential store. Passwords are encrypted before they touch disk and
// decrypted on the single consuming read; Delete is unconditional.

func (r *Repository) Store(ctx context.Context, ownerID, credentialID string, payload domain.CredentialPayload) error {
	password := payload.Password
	if password != "" && r.secret != nil {
		enc, err := r.secret.Encrypt(password)
		if err != nil {
			return fmt.Errorf("encrypt credential password: %w", err)
		}
		password = enc
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials (owner_id, credential_id, sign_without_password, password, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, ownerID, credentialID, payload.SignWithoutPassword, password, payload.Timestamp.UTC())
	return err
}

func (r *Repository) Retrieve(ctx context.Context, ownerID, credentialID string) (domain.CredentialPayload, bool, error) {
	var (
		payload  domain.CredentialPayload
		password sql.NullString
		created  time.Time
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT sign_without_password, password, created_at
		FROM credentials
		WHERE owner_id = ? AND credential_id = ?
	`, ownerID, credentialID).Scan(&payload.SignWithoutPassword, &password, &created)
	if err == sql.ErrNoRows {
		return domain.CredentialPayload{}, false, nil
	}
	if err != nil {
		return domain.CredentialPayload{}, false, err
	}

	payload.Timestamp = created
	if password.Valid && password.String != "" {
		plain := password.String
		if r.secret != nil {
			plain, err = r.secret.Decrypt(password.String)
			if err != nil {
				return domain.CredentialPayload{}, false, fmt.Errorf("decrypt credential password: %w", err)
			}
		}
		payload.Password = plain
	}
	return payload, true, nil
}

func (r *Repository) Delete(ctx context.Context, ownerID, credentialID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM credentials WHERE owner_id = ? AND credential_id = ?
	`, ownerID, credentialID)
	return err
}
