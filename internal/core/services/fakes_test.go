package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/signflowhq/signflow/internal/core/domain"
	"github.com/signflowhq/signflow/internal/core/ports"
)

// In-memory collaborator fakes shared by the service tests.

type fakeStore struct {
	mu          sync.Mutex
	docs        map[domain.DocumentID]domain.Document
	signs       map[domain.SignRequestID]domain.SignRequest
	docWrites   int
	activations int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:  make(map[domain.DocumentID]domain.Document),
		signs: make(map[domain.SignRequestID]domain.SignRequest),
	}
}

func (f *fakeStore) putDoc(doc domain.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID] = doc
}

func (f *fakeStore) putSign(sr domain.SignRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signs[sr.ID] = sr
}

func (f *fakeStore) doc(id domain.DocumentID) domain.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[id]
}

func (f *fakeStore) sign(id domain.SignRequestID) domain.SignRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signs[id]
}

func (f *fakeStore) GetDocument(_ context.Context, id domain.DocumentID) (domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return domain.Document{}, domain.ErrDocumentNotFound
	}
	return doc, nil
}

func (f *fakeStore) UpdateDocument(_ context.Context, doc domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[doc.ID]; !ok {
		return domain.ErrDocumentNotFound
	}
	f.docs[doc.ID] = doc
	f.docWrites++
	return nil
}

func (f *fakeStore) GetChildrenFiles(_ context.Context, parentID domain.DocumentID) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var children []domain.Document
	for _, doc := range f.docs {
		if doc.ParentID != nil && *doc.ParentID == parentID {
			children = append(children, doc)
		}
	}
	return children, nil
}

func (f *fakeStore) GetSignRequest(_ context.Context, id domain.SignRequestID) (domain.SignRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sr, ok := f.signs[id]
	if !ok {
		return domain.SignRequest{}, domain.ErrSignRequestNotFound
	}
	return sr, nil
}

func (f *fakeStore) UpdateSignRequest(_ context.Context, sr domain.SignRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.signs[sr.ID]; !ok {
		return domain.ErrSignRequestNotFound
	}
	f.signs[sr.ID] = sr
	return nil
}

func (f *fakeStore) GetByFileID(_ context.Context, fileID domain.DocumentID) ([]domain.SignRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var requests []domain.SignRequest
	for _, sr := range f.signs {
		if sr.DocumentID == fileID {
			requests = append(requests, sr)
		}
	}
	return requests, nil
}

func (f *fakeStore) ActivateIfDraft(_ context.Context, id domain.SignRequestID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sr, ok := f.signs[id]
	if !ok {
		return false, domain.ErrSignRequestNotFound
	}
	if sr.Status != domain.SignRequestStatusDraft {
		return false, nil
	}
	sr.Status = domain.SignRequestStatusAbleToSign
	f.signs[id] = sr
	f.activations++
	return true, nil
}

var (
	_ ports.DocumentRepository    = (*fakeStore)(nil)
	_ ports.SignRequestRepository = (*fakeStore)(nil)
)

type credKey struct{ owner, id string }

type fakeCreds struct {
	mu        sync.Mutex
	stored    map[credKey]domain.CredentialPayload
	deletes   map[credKey]int
	retrieves int
}

var _ ports.CredentialStore = (*fakeCreds)(nil)

func newFakeCreds() *fakeCreds {
	return &fakeCreds{
		stored:  make(map[credKey]domain.CredentialPayload),
		deletes: make(map[credKey]int),
	}
}

func (f *fakeCreds) Store(_ context.Context, ownerID, credentialID string, payload domain.CredentialPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored[credKey{ownerID, credentialID}] = payload
	return nil
}

func (f *fakeCreds) Retrieve(_ context.Context, ownerID, credentialID string) (domain.CredentialPayload, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retrieves++
	payload, ok := f.stored[credKey{ownerID, credentialID}]
	return payload, ok, nil
}

func (f *fakeCreds) Delete(_ context.Context, ownerID, credentialID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stored, credKey{ownerID, credentialID})
	f.deletes[credKey{ownerID, credentialID}]++
	return nil
}

func (f *fakeCreds) deleteCount(ownerID, credentialID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deletes[credKey{ownerID, credentialID}]
}

type fakeQueue struct {
	mu         sync.Mutex
	jobs       []domain.Job
	leased     int
	completed  []domain.JobID
	failed     []domain.JobID
	enqueueErr error
	actions    []string // interleaving record, shared with fakeSpawner
}

var _ ports.JobQueue = (*fakeQueue)(nil)

func newFakeQueue() *fakeQueue { return &fakeQueue{} }

func (f *fakeQueue) Enqueue(_ context.Context, jobType string, args domain.SigningJobArgs) (domain.JobID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enqueueErr != nil {
		return "", f.enqueueErr
	}
	id := domain.JobID(uuid.New().String())
	f.jobs = append(f.jobs, domain.Job{
		ID:        id,
		Type:      jobType,
		Args:      args,
		Status:    domain.JobStatusPending,
		CreatedAt: time.Now(),
	})
	f.actions = append(f.actions, "enqueue")
	return id, nil
}

func (f *fakeQueue) Lease(_ context.Context, _ time.Duration) (domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.leased >= len(f.jobs) {
		return domain.Job{}, domain.ErrJobNotFound
	}
	job := f.jobs[f.leased]
	f.leased++
	return job, nil
}

func (f *fakeQueue) Complete(_ context.Context, id domain.JobID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, id)
	return nil
}

func (f *fakeQueue) Fail(_ context.Context, id domain.JobID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeQueue) completedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.completed)
}

func (f *fakeQueue) failedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.failed)
}

type fakeSpawner struct {
	mu      sync.Mutex
	running int
	spawned []int
	err     error
	actions *[]string
}

var _ ports.ProcessSpawner = (*fakeSpawner)(nil)

func (f *fakeSpawner) Start(_ context.Context, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.spawned = append(f.spawned, count)
	f.running += count
	if f.actions != nil {
		*f.actions = append(*f.actions, "spawn")
	}
	return nil
}

func (f *fakeSpawner) Running(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if f.actions != nil {
		*f.actions = append(*f.actions, "capacity_check")
	}
	return f.running, nil
}

type fakePoolState struct {
	mu   sync.Mutex
	last time.Time
}

var _ ports.WorkerPoolStateStore = (*fakePoolState)(nil)

func (f *fakePoolState) LastSpawnAttempt(_ context.Context) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last, nil
}

func (f *fakePoolState) RecordSpawnAttempt(_ context.Context, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = at
	return nil
}

type fakeEngine struct {
	mu    sync.Mutex
	tasks []ports.SigningTask
	err   error
}

var _ ports.SigningEngine = (*fakeEngine)(nil)

func (f *fakeEngine) Sign(_ context.Context, task ports.SigningTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
	return f.err
}

type fakeNotifier struct {
	mu        sync.Mutex
	activated []domain.SignRequestID
	docs      []domain.DocumentID
}

var _ ports.Notifier = (*fakeNotifier)(nil)

func (f *fakeNotifier) NotifySignerActivated(_ context.Context, sr domain.SignRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activated = append(f.activated, sr.ID)
	return nil
}

func (f *fakeNotifier) NotifyDocumentStatus(_ context.Context, doc domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, doc.ID)
	return nil
}

var errBoom = errors.New("boom")

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
