package enginecmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"

	"github.com/signflowhq/signflow/internal/core/ports"
)

// Engine bridges to the external signing engine as a child process: the
// task is written as JSON to stdin, a zero exit code means the signature
// was produced. The cryptographic work (PDF/PKCS, certificates) lives
// entirely on the other side of this boundary.
type Engine struct {
	command []string
}

var _ ports.SigningEngine = (*Engine)(nil)

func New(command []string) (*Engine, error) {
	if len(command) == 0 {
		return nil, errors.New("signing engine command not configured")
	}
	return &Engine{command: command}, nil
}

// task is the stdin contract with the engine process. The password is
// present here: this hop is process-local, never queued or persisted.
type task struct {
	FileID              int64             `json:"fileId"`
	SignRequestID       int64             `json:"signRequestId"`
	SignRequestUUID     string            `json:"signRequestUuid"`
	UserID              string            `json:"userId,omitempty"`
	UserUniqueID        string            `json:"userUniqueIdentifier"`
	FriendlyName        string            `json:"friendlyName"`
	SignatureMethod     string            `json:"signatureMethod,omitempty"`
	SignWithoutPassword bool              `json:"signWithoutPassword"`
	Password            string            `json:"password,omitempty"`
	VisibleElements     any               `json:"visibleElements"`
	Metadata            map[string]string `json:"metadata"`
}

func (e *Engine) Sign(ctx context.Context, t ports.SigningTask) error {
	payload, err := json.Marshal(task{
		FileID:              int64(t.Document.ID),
		SignRequestID:       int64(t.SignRequest.ID),
		SignRequestUUID:     t.SignRequest.UUID,
		UserID:              t.UserID,
		UserUniqueID:        t.UserUniqueID,
		FriendlyName:        t.FriendlyName,
		SignatureMethod:     t.SignatureMethod,
		SignWithoutPassword: t.SignWithoutPassword,
		Password:            t.Password,
		VisibleElements:     t.VisibleElements,
		Metadata:            t.Metadata,
	})
	if err != nil {
		return fmt.Errorf("encode signing task: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.command[0], e.command[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("signing engine: %w (stderr: %s)", err, stderr.String())
	}
	return nil
}
