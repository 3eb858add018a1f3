package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/signflowhq/signflow/internal/core/domain"
	"github.com/signflowhq/signflow/internal/core/ports"
)

type NotificationType string

const (
	NotificationSignerActivated NotificationType = "signer_activated"
	NotificationDocumentStatus  NotificationType = "document_status"
)

// Notification is one queued outbound message. Delivery (mail, webhooks)
// happens elsewhere; subscribers drain these per document.
type Notification struct {
	Type          NotificationType
	DocumentID    domain.DocumentID
	SignRequestID domain.SignRequestID
	Status        string
}

// NotifyBus fans signer/document notifications out to per-document
// subscribers. Publishing never blocks: a full subscriber drops the
// event. Signer-activation events are deduplicated on a
// document:order:signRequest key, which is what keeps a double order
// release from mailing the same signer twice.
type NotifyBus struct {
	logger *slog.Logger
	mu     sync.RWMutex
	subs   map[domain.DocumentID][]chan Notification

	deliveredMu sync.Mutex
	delivered   map[string]struct{}
}

var _ ports.Notifier = (*NotifyBus)(nil)

func NewNotifyBus(logger *slog.Logger) *NotifyBus {
	return &NotifyBus{
		logger:    logger,
		subs:      make(map[domain.DocumentID][]chan Notification),
		delivered: make(map[string]struct{}),
	}
}

// Subscribe returns a channel receiving notifications for one document
// and an unsubscribe function.
func (b *NotifyBus) Subscribe(docID domain.DocumentID) (<-chan Notification, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Notification, 100)
	b.subs[docID] = append(b.subs[docID], ch)

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subscribers := b.subs[docID]
		for i, sub := range subscribers {
			if sub == ch {
				close(ch)
				b.subs[docID] = append(subscribers[:i], subscribers[i+1:]...)
				break
			}
		}
		if len(b.subs[docID]) == 0 {
			delete(b.subs, docID)
		}
	}

	return ch, unsub
}

// NotifySignerActivated schedules an activation notice exactly once per
// signer activation, no matter how many concurrent releases observe it.
func (b *NotifyBus) NotifySignerActivated(_ context.Context, sr domain.SignRequest) error {
	key := fmt.Sprintf("%d:%d:%d", sr.DocumentID, sr.SigningOrder, sr.ID)

	b.deliveredMu.Lock()
	if _, seen := b.delivered[key]; seen {
		b.deliveredMu.Unlock()
		return nil
	}
	b.delivered[key] = struct{}{}
	b.deliveredMu.Unlock()

	b.publish(Notification{
		Type:          NotificationSignerActivated,
		DocumentID:    sr.DocumentID,
		SignRequestID: sr.ID,
		Status:        string(sr.Status),
	})
	return nil
}

// NotifyDocumentStatus schedules a document status notice. Duplicate
// suppression for these lives upstream: the aggregator only writes (and
// notifies) on an actual status change. A SIGNED document is done, so its
// activation dedup entries are dropped to keep the set bounded.
func (b *NotifyBus) NotifyDocumentStatus(_ context.Context, doc domain.Document) error {
	if doc.Status == domain.DocumentStatusSigned {
		b.evictDelivered(doc.ID)
	}
	b.publish(Notification{
		Type:       NotificationDocumentStatus,
		DocumentID: doc.ID,
		Status:     string(doc.Status),
	})
	return nil
}

func (b *NotifyBus) evictDelivered(docID domain.DocumentID) {
	prefix := fmt.Sprintf("%d:", docID)

	b.deliveredMu.Lock()
	defer b.deliveredMu.Unlock()
	for key := range b.delivered {
		if strings.HasPrefix(key, prefix) {
			delete(b.delivered, key)
		}
	}
}

func (b *NotifyBus) publish(n Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[n.DocumentID] {
		select {
		case ch <- n:
		default:
			b.logger.Warn("notification channel full, dropping event", "document_id", n.DocumentID)
		}
	}
}
