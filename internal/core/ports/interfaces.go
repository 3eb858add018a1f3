package ports

import (
	"context"
	"time"

	"github.com/signflowhq/signflow/internal/core/domain"
)

// DocumentRepository is the minimal read/update contract over document
// persistence. Rollup and status writes go through it; the core assumes
// at least read-then-write consistency from the implementation.
type DocumentRepository interface {
	GetDocument(ctx context.Context, id domain.DocumentID) (domain.Document, error)
	UpdateDocument(ctx context.Context, doc domain.Document) error

	// GetChildrenFiles returns the current child documents of an envelope.
	// Aggregation always works on a fresh fetch, never a cached list.
	GetChildrenFiles(ctx context.Context, parentID domain.DocumentID) ([]domain.Document, error)
}

// SignRequestRepository persists signer slots.
type SignRequestRepository interface {
	GetSignRequest(ctx context.Context, id domain.SignRequestID) (domain.SignRequest, error)
	UpdateSignRequest(ctx context.Context, sr domain.SignRequest) error
	GetByFileID(ctx context.Context, fileID domain.DocumentID) ([]domain.SignRequest, error)

	// ActivateIfDraft transitions a signer DRAFT -> ABLE_TO_SIGN only if it
	// is still DRAFT, reporting whether this call performed the transition.
	// This is the serialization point that makes order release idempotent
	// under concurrent completions.
	ActivateIfDraft(ctx context.Context, id domain.SignRequestID) (bool, error)
}

// CredentialStore is the one-shot secret handoff between dispatcher and
// worker. Single writer, single consumer-then-deleter: a payload is never
// read again after the deleting read.
type CredentialStore interface {
	Store(ctx context.Context, ownerID, credentialID string, payload domain.CredentialPayload) error
	Retrieve(ctx context.Context, ownerID, credentialID string) (domain.CredentialPayload, bool, error)
	Delete(ctx context.Context, ownerID, credentialID string) error
}

// JobQueue hands work to independent, possibly multi-process workers.
// Enqueue is fire-and-forget.
type JobQueue interface {
	Enqueue(ctx context.Context, jobType string, args domain.SigningJobArgs) (domain.JobID, error)

	// Lease claims the oldest pending job for leaseFor, returning
	// domain.ErrJobNotFound when the queue is empty.
	Lease(ctx context.Context, leaseFor time.Duration) (domain.Job, error)
	Complete(ctx context.Context, id domain.JobID) error
	Fail(ctx context.Context, id domain.JobID, reason string) error
}

// ProcessSpawner starts local worker processes. Only used when
// worker_type=local; a remote pool is somebody else's autoscaler.
type ProcessSpawner interface {
	Start(ctx context.Context, count int) error
	Running(ctx context.Context) (int, error)
}

// WorkerPoolStateStore persists the single throttle marker the supervisor
// keeps between spawn attempts.
type WorkerPoolStateStore interface {
	LastSpawnAttempt(ctx context.Context) (time.Time, error)
	RecordSpawnAttempt(ctx context.Context, at time.Time) error
}

// SigningTask is everything the external signing engine needs for one
// signature. The engine itself (PDF/PKCS math, certificates) is out of
// scope and treated as a single call that succeeds or fails.
type SigningTask struct {
	Document            domain.Document
	SignRequest         domain.SignRequest
	UserID              string // empty for guest signers
	UserUniqueID        string
	FriendlyName        string
	SignatureMethod     string
	SignWithoutPassword bool
	Password            string
	VisibleElements     []domain.VisibleElement
	Metadata            map[string]string
}

type SigningEngine interface {
	Sign(ctx context.Context, task SigningTask) error
}

// Notifier schedules signer/document notifications. Delivery (mail etc.)
// is out of scope; implementations must tolerate duplicate scheduling.
type Notifier interface {
	NotifySignerActivated(ctx context.Context, sr domain.SignRequest) error
	NotifyDocumentStatus(ctx context.Context, doc domain.Document) error
}
