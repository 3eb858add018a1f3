package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/signflowhq/signflow/internal/core/domain"
	"github.com/signflowhq/signflow/internal/core/ports"
)

// EnvelopeAggregator rolls child document statuses up into their parent
// envelope. Envelope status is always derived, never set directly.
type EnvelopeAggregator struct {
	logger   *slog.Logger
	docs     ports.DocumentRepository
	notifier ports.Notifier
}

func NewEnvelopeAggregator(logger *slog.Logger, docs ports.DocumentRepository, notifier ports.Notifier) *EnvelopeAggregator {
	return &EnvelopeAggregator{logger: logger, docs: docs, notifier: notifier}
}

// Aggregate recomputes the envelope status from a fresh fetch of all
// children and writes the parent only when the result differs. Called
// after any child status upgrade.
func (a *EnvelopeAggregator) Aggregate(ctx context.Context, parentID domain.DocumentID) error {
	parent, err := a.docs.GetDocument(ctx, parentID)
	if err != nil {
		return fmt.Errorf("load envelope %d: %w", parentID, err)
	}
	if parent.NodeType != domain.NodeTypeEnvelope {
		return nil
	}

	children, err := a.docs.GetChildrenFiles(ctx, parentID)
	if err != nil {
		return fmt.Errorf("list envelope children %d: %w", parentID, err)
	}
	if len(children) == 0 {
		return nil
	}

	computed := AggregateStatuses(children)
	if computed == parent.Status {
		return nil // avoid redundant writes and notification storms
	}

	parent.Status = computed
	if err := a.docs.UpdateDocument(ctx, parent); err != nil {
		return fmt.Errorf("update envelope %d: %w", parentID, err)
	}
	a.logger.Info("envelope status derived", "envelope_id", parentID, "status", computed, "children", len(children))

	if a.notifier != nil {
		if err := a.notifier.NotifyDocumentStatus(ctx, parent); err != nil {
			a.logger.Error("failed to schedule envelope notification", "envelope_id", parentID, "error", err)
		}
	}
	return nil
}

// AggregateStatuses reduces child statuses to the envelope status. The
// reduction only looks at min/max rank, so it is invariant under any
// permutation of the children. Rule, top down: every child SIGNED means
// SIGNED; any child at PARTIAL_SIGNED or above means PARTIAL_SIGNED; any
// child at ABLE_TO_SIGN or above means ABLE_TO_SIGN; otherwise DRAFT.
func AggregateStatuses(children []domain.Document) domain.DocumentStatus {
	minRank := children[0].Status.Rank()
	maxRank := minRank
	for _, child := range children[1:] {
		r := child.Status.Rank()
		if r < minRank {
			minRank = r
		}
		if r > maxRank {
			maxRank = r
		}
	}

	switch {
	case minRank >= domain.DocumentStatusSigned.Rank():
		return domain.DocumentStatusSigned
	case maxRank >= domain.DocumentStatusPartialSigned.Rank():
		return domain.DocumentStatusPartialSigned
	case maxRank >= domain.DocumentStatusAbleToSign.Rank():
		return domain.DocumentStatusAbleToSign
	default:
		return domain.DocumentStatusDraft
	}
}
