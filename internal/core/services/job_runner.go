package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/signflowhq/signflow/internal/core/domain"
	"github.com/signflowhq/signflow/internal/core/ports"
)

// JobRunner is the background-job entry point. It loads the entities,
// resolves the acting identity, consumes the one-shot credential and
// hands everything to the external signing engine. Whatever happens, the
// credential is deleted before the invocation returns.
type JobRunner struct {
	logger *slog.Logger
	docs   ports.DocumentRepository
	signs  ports.SignRequestRepository
	creds  ports.CredentialStore
	engine ports.SigningEngine
	ledger *StatusLedger
	orders *OrderController
	agg    *EnvelopeAggregator
}

func NewJobRunner(
	logger *slog.Logger,
	docs ports.DocumentRepository,
	signs ports.SignRequestRepository,
	creds ports.CredentialStore,
	engine ports.SigningEngine,
	ledger *StatusLedger,
	orders *OrderController,
	agg *EnvelopeAggregator,
) *JobRunner {
	return &JobRunner{
		logger: logger,
		docs:   docs,
		signs:  signs,
		creds:  creds,
		engine: engine,
		ledger: ledger,
		orders: orders,
		agg:    agg,
	}
}

// RunSignFile executes one queued signing job. Validation and load
// failures are fatal for the invocation and returned; engine failures are
// logged, revert the document to ABLE_TO_SIGN and are not propagated, so
// the queue platform never retries them.
func (r *JobRunner) RunSignFile(ctx context.Context, args domain.SigningJobArgs) error {
	return r.run(ctx, args, false)
}

// RunSignSingleFile is the single-file variant: it additionally marks the
// target document SIGNING_IN_PROGRESS before invoking the engine, in case
// the dispatcher did not.
func (r *JobRunner) RunSignSingleFile(ctx context.Context, args domain.SigningJobArgs) error {
	return r.run(ctx, args, true)
}

func (r *JobRunner) run(ctx context.Context, args domain.SigningJobArgs, markInProgress bool) error {
	ownerID := ""
	if args.UserID != nil {
		ownerID = *args.UserID
	}

	// The credential is deleted on every exit path: success, engine
	// failure, or an early validation error. This is the one hard
	// security invariant of the subsystem.
	if args.CredentialID != "" {
		defer func() {
			if err := r.creds.Delete(context.WithoutCancel(ctx), ownerID, args.CredentialID); err != nil {
				r.logger.Error("failed to delete signing credential",
					"credential_id", args.CredentialID,
					"sign_request_id", args.SignRequestID,
					"error", err,
				)
			}
		}()
	}

	if err := validateArgs(args); err != nil {
		r.logger.Error("signing job rejected",
			"error", err,
			"has_file_id", args.FileID != 0,
			"has_sign_request_id", args.SignRequestID != 0,
			"has_credential_id", args.CredentialID != "",
			"has_user_id", args.UserID != nil,
		)
		return err
	}

	doc, err := r.docs.GetDocument(ctx, args.FileID)
	if err != nil {
		r.logger.Error("signing job document missing", "file_id", args.FileID, "error", err)
		return fmt.Errorf("load document %d: %w", args.FileID, err)
	}
	sr, err := r.signs.GetSignRequest(ctx, args.SignRequestID)
	if err != nil {
		r.logger.Error("signing job sign request missing", "sign_request_id", args.SignRequestID, "error", err)
		return fmt.Errorf("load sign request %d: %w", args.SignRequestID, err)
	}

	task := ports.SigningTask{
		Document:        doc,
		SignRequest:     sr,
		UserID:          ownerID, // empty for guest signing flows
		UserUniqueID:    args.UserUniqueIdentifier,
		FriendlyName:    args.FriendlyName,
		VisibleElements: args.VisibleElements,
		Metadata:        args.Metadata,
	}
	if args.SignatureMethod != nil {
		task.SignatureMethod = *args.SignatureMethod
	}

	if args.CredentialID != "" {
		payload, found, err := r.creds.Retrieve(ctx, ownerID, args.CredentialID)
		if err != nil || !found {
			if err == nil {
				err = domain.ErrCredentialNotFound
			}
			r.failSigning(ctx, doc, sr, err)
			return nil
		}
		task.SignWithoutPassword = payload.SignWithoutPassword
		if !payload.SignWithoutPassword {
			task.Password = payload.Password
		}
	}

	if markInProgress && doc.Status != domain.DocumentStatusSigningInProgress {
		doc.Status = domain.DocumentStatusSigningInProgress
		if err := r.docs.UpdateDocument(ctx, doc); err != nil {
			r.failSigning(ctx, doc, sr, fmt.Errorf("mark signing in progress: %w", err))
			return nil
		}
	}

	if err := r.engine.Sign(ctx, task); err != nil {
		r.failSigning(ctx, doc, sr, err)
		return nil
	}

	return r.completeSigning(ctx, doc, sr)
}

// failSigning logs the engine failure with enough context to locate the
// entities and reverts the document so it stays signable. The error stops
// here: this layer never retries.
func (r *JobRunner) failSigning(ctx context.Context, doc domain.Document, sr domain.SignRequest, cause error) {
	r.logger.Error("signing failed",
		"document_id", doc.ID,
		"sign_request_id", sr.ID,
		"signing_order", sr.SigningOrder,
		"error", cause,
	)
	if err := r.ledger.RevertSigningInProgress(ctx, doc.ID); err != nil {
		r.logger.Error("failed to revert document after signing failure", "document_id", doc.ID, "error", err)
	}
}

// completeSigning records the signature and rolls the consequences
// forward: signer SIGNED, document PARTIAL_SIGNED or SIGNED, and in an
// ordered flow the next order is released.
func (r *JobRunner) completeSigning(ctx context.Context, doc domain.Document, sr domain.SignRequest) error {
	now := time.Now()
	sr.Status = domain.SignRequestStatusSigned
	sr.SignedAt = &now
	if err := r.signs.UpdateSignRequest(ctx, sr); err != nil {
		return fmt.Errorf("record signed sign request %d: %w", sr.ID, err)
	}

	requests, err := r.signs.GetByFileID(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("list sign requests for document %d: %w", doc.ID, err)
	}
	allSigned := true
	for _, other := range requests {
		if other.Status != domain.SignRequestStatusSigned {
			allSigned = false
			break
		}
	}

	// The document left SIGNING_IN_PROGRESS through the completed
	// signature, so write the outcome directly before upgrading.
	next := domain.DocumentStatusPartialSigned
	if allSigned {
		next = domain.DocumentStatusSigned
	}
	doc.Status = next
	if err := r.docs.UpdateDocument(ctx, doc); err != nil {
		return fmt.Errorf("update document %d after signing: %w", doc.ID, err)
	}
	r.logger.Info("signature recorded", "document_id", doc.ID, "sign_request_id", sr.ID, "document_status", next)

	if doc.ParentID != nil {
		if err := r.agg.Aggregate(ctx, *doc.ParentID); err != nil {
			r.logger.Error("envelope rollup failed", "document_id", doc.ID, "envelope_id", *doc.ParentID, "error", err)
		}
	}

	if doc.Flow == domain.FlowOrderedNumeric {
		if err := r.orders.ReleaseNextOrder(ctx, doc.ID, sr.SigningOrder); err != nil {
			r.logger.Error("order release failed", "document_id", doc.ID, "order", sr.SigningOrder, "error", err)
		}
	}
	return nil
}

func validateArgs(args domain.SigningJobArgs) error {
	if args.FileID == 0 && args.SignRequestID == 0 && args.CredentialID == "" {
		return errors.New("empty job arguments")
	}
	if args.FileID == 0 {
		return errors.New("job arguments missing fileId")
	}
	if args.SignRequestID == 0 {
		return errors.New("job arguments missing signRequestId")
	}
	return nil
}
