package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signflowhq/signflow/internal/core/domain"
)

func TestStatusLedger_ApplySignRequestStatus(t *testing.T) {
	ledger := NewStatusLedger(testLogger(), newFakeStore(), nil)

	tests := []struct {
		name    string
		current domain.SignRequestStatus
		desired domain.SignRequestStatus
		isNew   bool
		want    domain.SignRequestStatus
	}{
		{"upgrade draft to able", domain.SignRequestStatusDraft, domain.SignRequestStatusAbleToSign, false, domain.SignRequestStatusAbleToSign},
		{"upgrade able to signed", domain.SignRequestStatusAbleToSign, domain.SignRequestStatusSigned, false, domain.SignRequestStatusSigned},
		{"equal rank applies", domain.SignRequestStatusAbleToSign, domain.SignRequestStatusAbleToSign, false, domain.SignRequestStatusAbleToSign},
		{"downgrade keeps current", domain.SignRequestStatusSigned, domain.SignRequestStatusDraft, false, domain.SignRequestStatusSigned},
		{"new request takes anything", domain.SignRequestStatusSigned, domain.SignRequestStatusDraft, true, domain.SignRequestStatusDraft},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := domain.SignRequest{ID: 1, Status: tt.current}
			ledger.ApplySignRequestStatus(&sr, tt.current, tt.desired, tt.isNew)
			assert.Equal(t, tt.want, sr.Status)
		})
	}
}

func TestStatusLedger_UpgradeDocumentStatus(t *testing.T) {
	store := newFakeStore()
	ledger := NewStatusLedger(testLogger(), store, nil)
	ctx := context.Background()

	doc := domain.Document{ID: 1, Status: domain.DocumentStatusAbleToSign, NodeType: domain.NodeTypeSingle}
	store.putDoc(doc)

	// Strict upgrade applies
	require.NoError(t, ledger.UpgradeDocumentStatus(ctx, &doc, domain.DocumentStatusPartialSigned))
	assert.Equal(t, domain.DocumentStatusPartialSigned, store.doc(1).Status)

	// Equal rank is a no-op, no extra write
	writes := store.docWrites
	require.NoError(t, ledger.UpgradeDocumentStatus(ctx, &doc, domain.DocumentStatusPartialSigned))
	assert.Equal(t, writes, store.docWrites)

	// Downgrade is a no-op
	require.NoError(t, ledger.UpgradeDocumentStatus(ctx, &doc, domain.DocumentStatusDraft))
	assert.Equal(t, domain.DocumentStatusPartialSigned, store.doc(1).Status)
}

func TestStatusLedger_UpgradeTriggersEnvelopeRollup(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	agg := NewEnvelopeAggregator(testLogger(), store, notifier)
	ledger := NewStatusLedger(testLogger(), store, agg)
	ctx := context.Background()

	envelopeID := domain.DocumentID(10)
	store.putDoc(domain.Document{ID: envelopeID, Status: domain.DocumentStatusAbleToSign, NodeType: domain.NodeTypeEnvelope})
	childA := domain.Document{ID: 11, Status: domain.DocumentStatusAbleToSign, NodeType: domain.NodeTypeSingle, ParentID: &envelopeID}
	childB := domain.Document{ID: 12, Status: domain.DocumentStatusSigned, NodeType: domain.NodeTypeSingle, ParentID: &envelopeID}
	store.putDoc(childA)
	store.putDoc(childB)

	require.NoError(t, ledger.UpgradeDocumentStatus(ctx, &childA, domain.DocumentStatusSigned))

	assert.Equal(t, domain.DocumentStatusSigned, store.doc(envelopeID).Status)
}

func TestStatusLedger_RevertSigningInProgress(t *testing.T) {
	store := newFakeStore()
	ledger := NewStatusLedger(testLogger(), store, nil)
	ctx := context.Background()

	store.putDoc(domain.Document{ID: 1, Status: domain.DocumentStatusSigningInProgress})
	require.NoError(t, ledger.RevertSigningInProgress(ctx, 1))
	assert.Equal(t, domain.DocumentStatusAbleToSign, store.doc(1).Status)

	// Not in progress: nothing happens
	store.putDoc(domain.Document{ID: 2, Status: domain.DocumentStatusSigned})
	require.NoError(t, ledger.RevertSigningInProgress(ctx, 2))
	assert.Equal(t, domain.DocumentStatusSigned, store.doc(2).Status)
}

func TestStatusLedger_CanNotifySigners(t *testing.T) {
	ledger := NewStatusLedger(testLogger(), newFakeStore(), nil)

	assert.True(t, ledger.CanNotifySigners(domain.DocumentStatusAbleToSign))
	assert.False(t, ledger.CanNotifySigners(domain.DocumentStatusDraft))
	assert.False(t, ledger.CanNotifySigners(domain.DocumentStatusPartialSigned))
	assert.False(t, ledger.CanNotifySigners(domain.DocumentStatusSigningInProgress))
	assert.False(t, ledger.CanNotifySigners(domain.DocumentStatusSigned))
}
