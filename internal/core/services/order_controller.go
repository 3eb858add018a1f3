package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/signflowhq/signflow/internal/core/domain"
	"github.com/signflowhq/signflow/internal/core/ports"
)

// SigningOrderContext tracks the next order to hand out while one batch of
// signers is being processed. Callers create one per processing session;
// it is a plain value, never shared state.
type SigningOrderContext struct {
	next int
}

// NewSigningOrderContext starts a fresh per-session counter at 1.
func NewSigningOrderContext() *SigningOrderContext {
	return &SigningOrderContext{next: 1}
}

// DetermineSigningOrder assigns the order for the next signer in the
// session. Parallel flow is always 1. In ordered flow an explicit order at
// or past the counter wins and moves the counter behind it (jumps are
// allowed, gaps are not repaired here); otherwise the counter value is
// handed out and incremented.
func (c *SigningOrderContext) DetermineSigningOrder(flow domain.SignatureFlow, explicit *int) int {
	if flow != domain.FlowOrderedNumeric {
		return 1
	}
	if explicit != nil && *explicit >= c.next {
		c.next = *explicit + 1
		return *explicit
	}
	order := c.next
	c.next++
	return order
}

// OrderController advances the ordered-numeric flow: it releases the next
// order once the current one is fully signed and closes gaps after a
// signer is removed.
type OrderController struct {
	logger   *slog.Logger
	signs    ports.SignRequestRepository
	notifier ports.Notifier
}

func NewOrderController(logger *slog.Logger, signs ports.SignRequestRepository, notifier ports.Notifier) *OrderController {
	return &OrderController{logger: logger, signs: signs, notifier: notifier}
}

// ReleaseNextOrder activates the signers at the smallest order above
// completedOrder, provided every signer at completedOrder has signed.
// Repeated calls with unchanged data are no-ops: activation only happens
// for signers still in DRAFT, enforced by a conditional store update.
func (o *OrderController) ReleaseNextOrder(ctx context.Context, docID domain.DocumentID, completedOrder int) error {
	requests, err := o.signs.GetByFileID(ctx, docID)
	if err != nil {
		return fmt.Errorf("list sign requests for document %d: %w", docID, err)
	}

	for _, sr := range requests {
		if sr.SigningOrder == completedOrder && sr.Status != domain.SignRequestStatusSigned {
			return nil // order not fully complete yet
		}
	}

	return o.activateOrder(ctx, requests, nextOrderAfter(requests, completedOrder))
}

// ReorderAfterDeletion closes the gap a removed signer left behind: when
// nobody remains at deletedOrder and the order before it is fully signed,
// the next present order is released.
func (o *OrderController) ReorderAfterDeletion(ctx context.Context, docID domain.DocumentID, deletedOrder int) error {
	requests, err := o.signs.GetByFileID(ctx, docID)
	if err != nil {
		return fmt.Errorf("list sign requests for document %d: %w", docID, err)
	}

	for _, sr := range requests {
		if sr.SigningOrder == deletedOrder {
			return nil // order still occupied, nothing to repair
		}
	}
	for _, sr := range requests {
		if sr.SigningOrder < deletedOrder && sr.Status != domain.SignRequestStatusSigned {
			return nil // preceding orders not done, the gap resolves itself later
		}
	}

	return o.activateOrder(ctx, requests, nextOrderAfter(requests, deletedOrder))
}

// HasPendingLowerOrderSigners reports whether any signer with a strictly
// lower order on the document has not signed yet.
func (o *OrderController) HasPendingLowerOrderSigners(ctx context.Context, docID domain.DocumentID, order int) (bool, error) {
	return hasPendingLowerOrder(ctx, o.signs, docID, order)
}

// nextOrderAfter finds the smallest order strictly greater than after
// among the given signers, or 0 when none exists.
func nextOrderAfter(requests []domain.SignRequest, after int) int {
	next := 0
	for _, sr := range requests {
		if sr.SigningOrder > after && (next == 0 || sr.SigningOrder < next) {
			next = sr.SigningOrder
		}
	}
	return next
}

func (o *OrderController) activateOrder(ctx context.Context, requests []domain.SignRequest, order int) error {
	if order == 0 {
		return nil // no higher order present, the flow is done
	}

	for _, sr := range requests {
		if sr.SigningOrder != order || sr.Status != domain.SignRequestStatusDraft {
			continue
		}

		activated, err := o.signs.ActivateIfDraft(ctx, sr.ID)
		if err != nil {
			return fmt.Errorf("activate sign request %d: %w", sr.ID, err)
		}
		if !activated {
			continue // lost the race to a concurrent release, that release notifies
		}

		o.logger.Info("signer activated", "document_id", sr.DocumentID, "sign_request_id", sr.ID, "order", order)
		sr.Status = domain.SignRequestStatusAbleToSign
		if err := o.notifier.NotifySignerActivated(ctx, sr); err != nil {
			o.logger.Error("failed to schedule signer notification", "sign_request_id", sr.ID, "error", err)
		}
	}
	return nil
}
