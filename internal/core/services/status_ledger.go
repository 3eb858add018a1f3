package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/signflowhq/signflow/internal/core/domain"
	"github.com/signflowhq/signflow/internal/core/ports"
)

// StatusLedger owns every status transition for documents and signers.
// The one rule: status only moves up the ladder, with the single
// sanctioned exception of reverting a failed SIGNING_IN_PROGRESS back to
// ABLE_TO_SIGN so the document stays signable.
type StatusLedger struct {
	logger     *slog.Logger
	docs       ports.DocumentRepository
	aggregator *EnvelopeAggregator
}

func NewStatusLedger(logger *slog.Logger, docs ports.DocumentRepository, aggregator *EnvelopeAggregator) *StatusLedger {
	return &StatusLedger{
		logger:     logger,
		docs:       docs,
		aggregator: aggregator,
	}
}

// ApplySignRequestStatus applies desired onto sr if the request is new or
// desired is at least as high as current. Downgrade attempts are expected
// contention, not errors: they resolve to a no-op.
func (l *StatusLedger) ApplySignRequestStatus(sr *domain.SignRequest, current, desired domain.SignRequestStatus, isNew bool) {
	if isNew || desired.Rank() >= current.Rank() {
		sr.Status = desired
		return
	}
	sr.Status = current
}

// UpgradeDocumentStatus persists newStatus only when it strictly outranks
// the document's current status. A successful upgrade of a child inside
// an envelope triggers the parent rollup.
func (l *StatusLedger) UpgradeDocumentStatus(ctx context.Context, doc *domain.Document, newStatus domain.DocumentStatus) error {
	if newStatus.Rank() <= doc.Status.Rank() {
		return nil
	}

	doc.Status = newStatus
	if err := l.docs.UpdateDocument(ctx, *doc); err != nil {
		return fmt.Errorf("update document %d: %w", doc.ID, err)
	}
	l.logger.Info("document status upgraded", "document_id", doc.ID, "status", newStatus)

	if doc.ParentID != nil && l.aggregator != nil {
		if err := l.aggregator.Aggregate(ctx, *doc.ParentID); err != nil {
			return fmt.Errorf("aggregate envelope %d: %w", *doc.ParentID, err)
		}
	}
	return nil
}

// RevertSigningInProgress is the failure path: a document stuck in
// SIGNING_IN_PROGRESS after an engine failure goes back to ABLE_TO_SIGN.
// No other downgrade exists.
func (l *StatusLedger) RevertSigningInProgress(ctx context.Context, docID domain.DocumentID) error {
	doc, err := l.docs.GetDocument(ctx, docID)
	if err != nil {
		return fmt.Errorf("load document %d: %w", docID, err)
	}
	if doc.Status != domain.DocumentStatusSigningInProgress {
		return nil
	}

	doc.Status = domain.DocumentStatusAbleToSign
	if err := l.docs.UpdateDocument(ctx, doc); err != nil {
		return fmt.Errorf("revert document %d: %w", docID, err)
	}
	l.logger.Warn("document signing reverted", "document_id", docID)
	return nil
}

// CanNotifySigners reports whether signers may be notified for a document
// in the given status. Only ABLE_TO_SIGN qualifies: never draft, never
// partially or fully signed, never mid-signing.
func (l *StatusLedger) CanNotifySigners(status domain.DocumentStatus) bool {
	return status == domain.DocumentStatusAbleToSign
}
