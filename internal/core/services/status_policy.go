package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/signflowhq/signflow/internal/core/domain"
	"github.com/signflowhq/signflow/internal/core/ports"
)

// StatusPolicy decides the initial status of a signer slot given the flow
// mode, the document status and the signing order, and resolves requested
// upgrades. Attempts to skip ahead in an ordered flow are not errors; they
// quietly resolve to DRAFT.
type StatusPolicy struct {
	logger *slog.Logger
	signs  ports.SignRequestRepository
}

func NewStatusPolicy(logger *slog.Logger, signs ports.SignRequestRepository) *StatusPolicy {
	return &StatusPolicy{logger: logger, signs: signs}
}

// InitialStatusInput carries the optional context for a policy decision.
// Nil pointers mean "not supplied".
type InitialStatusInput struct {
	Order          int
	DocumentID     domain.DocumentID
	Flow           domain.SignatureFlow
	DocumentStatus *domain.DocumentStatus
	Requested      *string
	Current        *domain.SignRequestStatus
}

// DetermineInitialStatus resolves the status a signer slot should start
// in. The rules, in priority order:
//  1. a DRAFT document keeps every signer in DRAFT;
//  2. an ABLE_TO_SIGN document activates order 1 (or everyone, in
//     parallel flow);
//  3. an explicitly requested status is honored when it is an upgrade,
//     after the skip-ahead check;
//  4. with no document or signer context, the order/flow rule decides.
func (p *StatusPolicy) DetermineInitialStatus(ctx context.Context, in InitialStatusInput) (domain.SignRequestStatus, error) {
	if in.DocumentStatus != nil {
		switch *in.DocumentStatus {
		case domain.DocumentStatusDraft:
			return domain.SignRequestStatusDraft, nil
		case domain.DocumentStatusAbleToSign:
			return p.statusByOrder(in.Order, in.Flow), nil
		}
	}

	if in.Requested != nil {
		desired, err := domain.ParseSignRequestStatus(*in.Requested)
		if err != nil {
			return "", fmt.Errorf("requested signer status: %w", err)
		}
		// Only a strict upgrade goes through the order validation; an
		// equal or lower request keeps the current status untouched.
		if in.Current != nil && desired.Rank() <= in.Current.Rank() {
			return *in.Current, nil
		}
		return p.ValidateStatusByOrder(ctx, desired, in.Order, in.DocumentID, in.Flow)
	}

	return p.statusByOrder(in.Order, in.Flow), nil
}

func (p *StatusPolicy) statusByOrder(order int, flow domain.SignatureFlow) domain.SignRequestStatus {
	if flow == domain.FlowOrderedNumeric && order > 1 {
		return domain.SignRequestStatusDraft
	}
	return domain.SignRequestStatusAbleToSign
}

// ValidateStatusByOrder downgrades an ABLE_TO_SIGN request to DRAFT when a
// signer with a lower order on the same document has not signed yet. Every
// other combination passes through unchanged.
func (p *StatusPolicy) ValidateStatusByOrder(ctx context.Context, desired domain.SignRequestStatus, order int, docID domain.DocumentID, flow domain.SignatureFlow) (domain.SignRequestStatus, error) {
	if desired != domain.SignRequestStatusAbleToSign || order <= 1 || flow != domain.FlowOrderedNumeric {
		return desired, nil
	}

	pending, err := hasPendingLowerOrder(ctx, p.signs, docID, order)
	if err != nil {
		return "", err
	}
	if pending {
		p.logger.Debug("signer held back by order", "document_id", docID, "order", order)
		return domain.SignRequestStatusDraft, nil
	}
	return desired, nil
}

func hasPendingLowerOrder(ctx context.Context, signs ports.SignRequestRepository, docID domain.DocumentID, order int) (bool, error) {
	requests, err := signs.GetByFileID(ctx, docID)
	if err != nil {
		return false, fmt.Errorf("list sign requests for document %d: %w", docID, err)
	}
	for _, sr := range requests {
		if sr.SigningOrder < order && sr.Status != domain.SignRequestStatusSigned {
			return true, nil
		}
	}
	return false, nil
}
