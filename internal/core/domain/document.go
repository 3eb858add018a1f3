package domain

import (
	"errors"
	"time"
)

// ID types to prevent stringly-typed confusion
type DocumentID int64

// DocumentStatus is the lifecycle status of a document.
type DocumentStatus string

const (
	DocumentStatusDraft             DocumentStatus = "DRAFT"
	DocumentStatusAbleToSign        DocumentStatus = "ABLE_TO_SIGN"
	DocumentStatusPartialSigned     DocumentStatus = "PARTIAL_SIGNED"
	DocumentStatusSigningInProgress DocumentStatus = "SIGNING_IN_PROGRESS"
	DocumentStatusSigned            DocumentStatus = "SIGNED"
	DocumentStatusDeleted           DocumentStatus = "DELETED"
)

// Rank is the canonical ordering used by every upgrade decision.
// SIGNING_IN_PROGRESS is transient: it outranks PARTIAL_SIGNED so a
// mid-signing document is never downgraded by a concurrent partial
// completion, and only the explicit revert path leaves it.
// DELETED sits outside the ladder and never participates in upgrades.
func (s DocumentStatus) Rank() int {
	switch s {
	case DocumentStatusDraft:
		return 0
	case DocumentStatusAbleToSign:
		return 1
	case DocumentStatusPartialSigned:
		return 2
	case DocumentStatusSigningInProgress:
		return 3
	case DocumentStatusSigned:
		return 4
	default:
		return -1
	}
}

// NodeType distinguishes plain files from envelope containers.
type NodeType string

const (
	NodeTypeSingle   NodeType = "SINGLE"
	NodeTypeEnvelope NodeType = "ENVELOPE"
)

// SignatureFlow selects how signers are gated.
type SignatureFlow string

const (
	FlowParallel       SignatureFlow = "PARALLEL"
	FlowOrderedNumeric SignatureFlow = "ORDERED_NUMERIC"
)

// Document is one signable file or an envelope of files. Envelopes are
// never signed directly; their status is derived from their children.
type Document struct {
	ID       DocumentID        `json:"id"`
	Name     string            `json:"name"`
	Status   DocumentStatus    `json:"status"`
	NodeType NodeType          `json:"node_type"`
	ParentID *DocumentID       `json:"parent_id,omitempty"` // set only for SINGLE nodes inside an envelope
	Flow     SignatureFlow     `json:"signature_flow"`
	Metadata map[string]string `json:"metadata"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	ErrDocumentNotFound = errors.New("document not found")
)
