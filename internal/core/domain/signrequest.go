package domain

import (
	"errors"
	"time"
)

type SignRequestID int64

// SignRequestStatus is the lifecycle status of one signer's slot.
type SignRequestStatus string

const (
	SignRequestStatusDraft      SignRequestStatus = "DRAFT"
	SignRequestStatusAbleToSign SignRequestStatus = "ABLE_TO_SIGN"
	SignRequestStatusSigned     SignRequestStatus = "SIGNED"
)

// Rank is the canonical ordering for signer status upgrades.
func (s SignRequestStatus) Rank() int {
	switch s {
	case SignRequestStatusDraft:
		return 0
	case SignRequestStatusAbleToSign:
		return 1
	case SignRequestStatusSigned:
		return 2
	default:
		return -1
	}
}

// ParseSignRequestStatus maps a raw status value to the enum, or an error
// for values that are not part of the signer ladder.
func ParseSignRequestStatus(raw string) (SignRequestStatus, error) {
	switch SignRequestStatus(raw) {
	case SignRequestStatusDraft, SignRequestStatusAbleToSign, SignRequestStatusSigned:
		return SignRequestStatus(raw), nil
	}
	return "", errors.New("unknown sign request status: " + raw)
}

// SignRequest is one signer's slot on one document.
type SignRequest struct {
	ID           SignRequestID     `json:"id"`
	UUID         string            `json:"uuid"`
	DocumentID   DocumentID        `json:"document_id"`
	SigningOrder int               `json:"signing_order"` // >= 1
	Status       SignRequestStatus `json:"status"`
	SignedAt     *time.Time        `json:"signed_at,omitempty"`

	DisplayName     string `json:"display_name"`
	Email           string `json:"email"`
	UserID          string `json:"user_id"` // empty for guest signers
	IdentifyMethod  string `json:"identify_method"`
	SignatureMethod string `json:"signature_method"`
}

var (
	ErrSignRequestNotFound = errors.New("sign request not found")
)
