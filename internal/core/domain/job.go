package domain

import (
	"encoding/json"
	"errors"
	"time"
)

type JobID string

type JobStatus string

const (
	JobStatusPending   JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
)

// Job types understood by the worker loop.
const (
	JobTypeSignFile       = "sign_file"
	JobTypeSignSingleFile = "sign_single_file"
)

// SigningJobArgs is the queue wire format between the dispatcher and the
// workers. It must stay stable across producer/consumer versions, and it
// must never carry a password: the credential id is the only secret
// reference allowed on the wire.
type SigningJobArgs struct {
	FileID               DocumentID        `json:"fileId"`
	SignRequestID        SignRequestID     `json:"signRequestId"`
	SignRequestUUID      string            `json:"signRequestUuid"`
	UserID               *string           `json:"userId"`
	CredentialID         string            `json:"credentialId"`
	UserUniqueIdentifier string            `json:"userUniqueIdentifier"`
	FriendlyName         string            `json:"friendlyName"`
	SignatureMethod      *string           `json:"signatureMethod"`
	VisibleElements      []VisibleElement  `json:"visibleElements"`
	Metadata             map[string]string `json:"metadata"`
}

// VisibleElement describes one visual signature placement on a page.
type VisibleElement struct {
	Page   int `json:"page"`
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Job is one queued signing execution.
type Job struct {
	ID        JobID          `json:"id"`
	Type      string         `json:"type"`
	Args      SigningJobArgs `json:"args"`
	Status    JobStatus      `json:"status"`
	Error     *string        `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// EncodeArgs serializes job args for queue storage.
func EncodeArgs(args SigningJobArgs) (string, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeArgs parses a stored queue payload.
func DecodeArgs(raw string) (SigningJobArgs, error) {
	var args SigningJobArgs
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return SigningJobArgs{}, err
	}
	return args, nil
}

var (
	ErrJobNotFound = errors.New("job not found")
)
