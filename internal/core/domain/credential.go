package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const credentialIDPrefix = "sign_"

// CredentialPayload is the one-shot secret handed from the dispatcher to
// the background worker. It is stored by the dispatcher, retrieved exactly
// once by the job runner, and deleted unconditionally afterwards. The
// password never travels inside the queue payload.
type CredentialPayload struct {
	SignWithoutPassword bool      `json:"sign_without_password"`
	Password            string    `json:"password,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
}

// NewCredentialID mints a globally unique credential id bound to a sign
// request: "sign_<signRequestID>_<random>".
func NewCredentialID(signRequestID SignRequestID) string {
	random := strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
	return fmt.Sprintf("%s%d_%s", credentialIDPrefix, signRequestID, random)
}

var (
	ErrCredentialNotFound = errors.New("credential not found")
)
