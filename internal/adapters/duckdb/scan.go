package duckdb

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/signflowhq/signflow/internal/core/domain"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (domain.Document, error) {
	var (
		doc      domain.Document
		id       int64
		parentID sql.NullInt64
		status   string
		nodeType string
		flow     string
		metadata sql.NullString
	)
	err := row.Scan(&id, &doc.Name, &status, &nodeType, &parentID, &flow, &metadata,
		&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return domain.Document{}, err
	}

	doc.ID = domain.DocumentID(id)
	doc.Status = domain.DocumentStatus(status)
	doc.NodeType = domain.NodeType(nodeType)
	doc.Flow = domain.SignatureFlow(flow)
	if parentID.Valid {
		pid := domain.DocumentID(parentID.Int64)
		doc.ParentID = &pid
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &doc.Metadata); err != nil {
			return domain.Document{}, fmt.Errorf("decode document metadata: %w", err)
		}
	}
	return doc, nil
}

func scanSignRequest(row rowScanner) (domain.SignRequest, error) {
	var (
		sr       domain.SignRequest
		id       int64
		docID    int64
		status   string
		signedAt sql.NullTime
		display  sql.NullString
		email    sql.NullString
		userID   sql.NullString
		identify sql.NullString
		sigMeth  sql.NullString
	)
	err := row.Scan(&id, &sr.UUID, &docID, &sr.SigningOrder, &status, &signedAt,
		&display, &email, &userID, &identify, &sigMeth)
	if err != nil {
		return domain.SignRequest{}, err
	}

	sr.ID = domain.SignRequestID(id)
	sr.DocumentID = domain.DocumentID(docID)
	sr.Status = domain.SignRequestStatus(status)
	if signedAt.Valid {
		t := signedAt.Time
		sr.SignedAt = &t
	}
	sr.DisplayName = display.String
	sr.Email = email.String
	sr.UserID = userID.String
	sr.IdentifyMethod = identify.String
	sr.SignatureMethod = sigMeth.String
	return sr, nil
}

func scanJob(row rowScanner) (domain.Job, error) {
	var (
		job     domain.Job
		id      string
		status  string
		payload string
		errMsg  sql.NullString
		leased  sql.NullTime
	)
	err := row.Scan(&id, &job.Type, &payload, &status, &errMsg, &leased,
		&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return domain.Job{}, err
	}

	job.ID = domain.JobID(id)
	job.Status = domain.JobStatus(status)
	if errMsg.Valid && errMsg.String != "" {
		msg := errMsg.String
		job.Error = &msg
	}
	args, err := domain.DecodeArgs(payload)
	if err != nil {
		return domain.Job{}, fmt.Errorf("decode job payload: %w", err)
	}
	job.Args = args
	return job, nil
}

func encodeMetadata(m map[string]string) (interface{}, error) {
	if len(m) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return string(raw), nil
}
