package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/signflowhq/signflow/internal/core/domain"
	"github.com/signflowhq/signflow/internal/core/ports"
)

// DispatchCoordinator decides sync vs. async execution and owns the
// enqueue path: mark the document in progress, park the secret in the
// credential store, enqueue the password-free job, then ask the
// supervisor for capacity. Enqueue-before-capacity ordering matters: a
// freshly spawned worker must always find its job already queued.
type DispatchCoordinator struct {
	logger     *slog.Logger
	cfg        domain.SigningConfig
	docs       ports.DocumentRepository
	creds      ports.CredentialStore
	queue      ports.JobQueue
	supervisor *WorkerPoolSupervisor
}

func NewDispatchCoordinator(
	logger *slog.Logger,
	cfg domain.SigningConfig,
	docs ports.DocumentRepository,
	creds ports.CredentialStore,
	queue ports.JobQueue,
	supervisor *WorkerPoolSupervisor,
) *DispatchCoordinator {
	return &DispatchCoordinator{
		logger:     logger,
		cfg:        cfg,
		docs:       docs,
		creds:      creds,
		queue:      queue,
		supervisor: supervisor,
	}
}

// ShouldUseParallelProcessing reports whether a signing request should go
// through the queue. A single signer never pays the async overhead; above
// that it depends on the configured signing mode.
func (d *DispatchCoordinator) ShouldUseParallelProcessing(signerCount int) bool {
	if signerCount <= 1 {
		return false
	}
	return d.cfg.Mode == domain.SigningModeAsync
}

// EnqueueInput is one signing request heading for the queue.
type EnqueueInput struct {
	Document             domain.Document
	SignRequest          domain.SignRequest
	ActorID              string // user id, empty for guest signers
	UserUniqueIdentifier string
	SignWithoutPassword  bool
	Password             string
	SignatureMethod      *string
	VisibleElements      []domain.VisibleElement
	Metadata             map[string]string
}

// EnqueueResult reports the minted credential id and whether the job made
// it onto the queue.
type EnqueueResult struct {
	CredentialID string
	JobAdded     bool
}

// EnqueueSigningJob stages one asynchronous signing execution. The raw
// password goes only into the credential store; the queue payload carries
// the credential id instead.
func (d *DispatchCoordinator) EnqueueSigningJob(ctx context.Context, in EnqueueInput) (EnqueueResult, error) {
	doc := in.Document
	doc.Status = domain.DocumentStatusSigningInProgress
	if err := d.docs.UpdateDocument(ctx, doc); err != nil {
		return EnqueueResult{}, fmt.Errorf("mark document %d signing in progress: %w", doc.ID, err)
	}

	credentialID := domain.NewCredentialID(in.SignRequest.ID)
	payload := domain.CredentialPayload{
		SignWithoutPassword: in.SignWithoutPassword,
		Password:            in.Password,
		Timestamp:           time.Now(),
	}
	if err := d.creds.Store(ctx, in.ActorID, credentialID, payload); err != nil {
		return EnqueueResult{}, fmt.Errorf("store credential for sign request %d: %w", in.SignRequest.ID, err)
	}

	var userID *string
	if in.ActorID != "" {
		id := in.ActorID
		userID = &id
	}

	args := domain.SigningJobArgs{
		FileID:               doc.ID,
		SignRequestID:        in.SignRequest.ID,
		SignRequestUUID:      in.SignRequest.UUID,
		UserID:               userID,
		CredentialID:         credentialID,
		UserUniqueIdentifier: in.UserUniqueIdentifier,
		FriendlyName:         in.SignRequest.DisplayName,
		SignatureMethod:      in.SignatureMethod,
		VisibleElements:      in.VisibleElements,
		Metadata:             in.Metadata,
	}

	jobID, err := d.queue.Enqueue(ctx, domain.JobTypeSignFile, args)
	if err != nil {
		// No job means nothing will ever consume the credential or move
		// the document out of SIGNING_IN_PROGRESS: undo both staging
		// steps before reporting the failure.
		d.rollbackStaging(ctx, in.Document, in.ActorID, credentialID)
		return EnqueueResult{}, fmt.Errorf("enqueue signing job: %w", err)
	}
	d.logger.Info("signing job enqueued",
		"job_id", jobID,
		"document_id", doc.ID,
		"sign_request_id", in.SignRequest.ID,
	)

	// Capacity check comes strictly after the enqueue so a new worker
	// always has work waiting.
	d.supervisor.EnsureWorkerRunning(ctx)

	return EnqueueResult{CredentialID: credentialID, JobAdded: true}, nil
}

// rollbackStaging deletes the stored credential and restores the document
// to its pre-dispatch status after a failed enqueue. Cleanup failures are
// logged, not returned: the enqueue error is the one the caller acts on.
func (d *DispatchCoordinator) rollbackStaging(ctx context.Context, doc domain.Document, ownerID, credentialID string) {
	ctx = context.WithoutCancel(ctx)
	if err := d.creds.Delete(ctx, ownerID, credentialID); err != nil {
		d.logger.Error("failed to delete credential after enqueue failure",
			"credential_id", credentialID, "error", err)
	}
	if err := d.docs.UpdateDocument(ctx, doc); err != nil {
		d.logger.Error("failed to restore document after enqueue failure",
			"document_id", doc.ID, "status", doc.Status, "error", err)
	}
}
