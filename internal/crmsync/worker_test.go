package crmsync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ninjaos/autopilot/internal/config"
	"github.com/ninjaos/autopilot/internal/store"
)

type fakeProvider struct {
	creates int
	updates int
	notes   int
	results []*Result // consumed in order; empty means always succeed
	nextID  string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) TestConnection(ctx context.Context) error { return nil }

func (f *fakeProvider) next() (*Result, error) {
	if len(f.results) > 0 {
		r := f.results[0]
		f.results = f.results[1:]
		return r, nil
	}
	id := f.nextID
	if id == "" {
		id = "ext-1"
	}
	return &Result{Success: true, ExternalID: id}, nil
}

func (f *fakeProvider) CreateContact(ctx context.Context, payload map[string]any) (*Result, error) {
	f.creates++
	return f.next()
}

func (f *fakeProvider) UpdateContact(ctx context.Context, externalID string, payload map[string]any) (*Result, error) {
	f.updates++
	return f.next()
}

func (f *fakeProvider) CreateNote(ctx context.Context, contactExternalID string, payload map[string]any) (*Result, error) {
	f.notes++
	return f.next()
}

func (f *fakeProvider) CreateTask(ctx context.Context, payload map[string]any) (*Result, error) {
	return f.next()
}

func (f *fakeProvider) UpdateTask(ctx context.Context, externalID string, payload map[string]any) (*Result, error) {
	return f.next()
}

type syncEnv struct {
	store       *store.Store
	worker      *Worker
	queue       *Queue
	fake        *fakeProvider
	integration *store.CrmIntegration
}

func newSyncEnv(t *testing.T) *syncEnv {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "sync.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	integration, err := st.CreateIntegration(&store.CrmIntegration{
		Provider:          "webhook",
		Config:            `{"url":"http://unused.example"}`,
		IsActive:          true,
		SyncPeopleEnabled: true,
		SyncTasksEnabled:  true,
	})
	if err != nil {
		t.Fatalf("create integration: %v", err)
	}

	fake := &fakeProvider{}
	w := NewWorker(st, config.SyncConfig{
		BatchLimit:  10,
		MaxAttempts: 3,
		CallTimeout: time.Second,
		RatePerSec:  1000,
		RateBurst:   1000,
	})
	w.SetResolver(func(*store.CrmIntegration) (Provider, error) { return fake, nil })

	return &syncEnv{store: st, worker: w, queue: NewQueue(st, 3), fake: fake, integration: integration}
}

// rewind makes retry-scheduled items immediately due again.
func (e *syncEnv) rewind(t *testing.T) {
	t.Helper()
	if _, err := e.store.DB().Exec(
		`UPDATE crm_sync_queue SET scheduled_for = ? WHERE status IN ('pending','retry')`,
		time.Now().UTC().Add(-time.Minute)); err != nil {
		t.Fatalf("rewind queue: %v", err)
	}
}

func (e *syncEnv) onlyItem(t *testing.T) *store.CrmSyncItem {
	t.Helper()
	rows, err := e.store.DB().Query(`SELECT item_id FROM crm_sync_queue`)
	if err != nil {
		t.Fatalf("query queue: %v", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("scan: %v", err)
		}
		ids = append(ids, id)
	}
	if len(ids) != 1 {
		t.Fatalf("queue items = %d, want 1", len(ids))
	}
	item, err := e.store.GetSyncItem(ids[0])
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	return item
}

func TestSyncPersonCreateFlow(t *testing.T) {
	env := newSyncEnv(t)
	person, err := env.store.CreatePerson(&store.Person{Name: "Mia Tan", Email: "mia@example.com"})
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	if err := env.queue.SyncPerson(person); err != nil {
		t.Fatalf("sync person: %v", err)
	}

	n, err := env.worker.ProcessQueue(context.Background(), 10)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if n != 1 {
		t.Fatalf("processed = %d, want 1", n)
	}

	item := env.onlyItem(t)
	if item.Status != store.SyncCompleted {
		t.Fatalf("status = %s, want completed", item.Status)
	}
	if env.fake.creates != 1 || env.fake.updates != 0 {
		t.Fatalf("calls = %d creates / %d updates, want 1/0", env.fake.creates, env.fake.updates)
	}
	mapping, err := env.store.GetFieldMapping(env.integration.IntegrationID, store.EntityPerson, person.PersonID)
	if err != nil {
		t.Fatalf("get mapping: %v", err)
	}
	if mapping == nil || mapping.ExternalID != "ext-1" {
		t.Fatalf("mapping = %+v, want ext-1", mapping)
	}
	integration, err := env.store.GetIntegration(env.integration.IntegrationID)
	if err != nil {
		t.Fatalf("get integration: %v", err)
	}
	if integration.LastSyncStatus != "ok" || integration.LastSyncAt == nil {
		t.Fatalf("integration not stamped: %+v", integration)
	}
}

func TestSyncMappedPersonUpdates(t *testing.T) {
	env := newSyncEnv(t)
	person, err := env.store.CreatePerson(&store.Person{Name: "Ned Um"})
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	if err := env.store.PutFieldMapping(&store.CrmFieldMapping{
		IntegrationID:   env.integration.IntegrationID,
		LocalEntityType: store.EntityPerson,
		LocalEntityID:   person.PersonID,
		ExternalID:      "ext-9",
		LastSyncedAt:    time.Now().UTC(),
	}); err != nil {
		t.Fatalf("put mapping: %v", err)
	}
	if err := env.queue.SyncPerson(person); err != nil {
		t.Fatalf("sync person: %v", err)
	}

	if _, err := env.worker.ProcessQueue(context.Background(), 10); err != nil {
		t.Fatalf("process: %v", err)
	}
	if env.fake.updates != 1 || env.fake.creates != 0 {
		t.Fatalf("calls = %d creates / %d updates, want 0/1", env.fake.creates, env.fake.updates)
	}
	item := env.onlyItem(t)
	if item.Operation != store.OpUpdate {
		t.Fatalf("operation = %s, want update", item.Operation)
	}
}

func TestSyncRetriesThenSucceedsWithOneMapping(t *testing.T) {
	env := newSyncEnv(t)
	env.fake.results = []*Result{
		{Success: false, Error: "rate limited upstream"},
	}
	person, err := env.store.CreatePerson(&store.Person{Name: "Oz Pia"})
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	if err := env.queue.SyncPerson(person); err != nil {
		t.Fatalf("sync person: %v", err)
	}

	if _, err := env.worker.ProcessQueue(context.Background(), 10); err != nil {
		t.Fatalf("first process: %v", err)
	}
	item := env.onlyItem(t)
	if item.Status != store.SyncRetry || item.Attempts != 1 {
		t.Fatalf("after failure: status=%s attempts=%d, want retry/1", item.Status, item.Attempts)
	}
	if !item.ScheduledFor.After(time.Now().UTC()) {
		t.Fatal("retry not scheduled in the future")
	}

	// Not due yet, so a drain right now claims nothing.
	if n, _ := env.worker.ProcessQueue(context.Background(), 10); n != 0 {
		t.Fatalf("claimed %d items before schedule", n)
	}

	env.rewind(t)
	if _, err := env.worker.ProcessQueue(context.Background(), 10); err != nil {
		t.Fatalf("second process: %v", err)
	}
	item = env.onlyItem(t)
	if item.Status != store.SyncCompleted || item.Attempts != 2 {
		t.Fatalf("after retry: status=%s attempts=%d, want completed/2", item.Status, item.Attempts)
	}
	n, err := env.store.CountFieldMappings(env.integration.IntegrationID, store.EntityPerson, person.PersonID)
	if err != nil {
		t.Fatalf("count mappings: %v", err)
	}
	if n != 1 {
		t.Fatalf("mappings = %d, want exactly 1", n)
	}
}

func TestSyncFailsTerminallyAfterMaxAttempts(t *testing.T) {
	env := newSyncEnv(t)
	env.fake.results = []*Result{
		{Success: false, Error: "boom"},
		{Success: false, Error: "boom"},
		{Success: false, Error: "boom"},
	}
	person, err := env.store.CreatePerson(&store.Person{Name: "Pam Qi"})
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	if err := env.queue.SyncPerson(person); err != nil {
		t.Fatalf("sync person: %v", err)
	}

	for i := 0; i < 3; i++ {
		env.rewind(t)
		if _, err := env.worker.ProcessQueue(context.Background(), 10); err != nil {
			t.Fatalf("process %d: %v", i+1, err)
		}
	}
	item := env.onlyItem(t)
	if item.Status != store.SyncFailed || item.Attempts != 3 {
		t.Fatalf("status=%s attempts=%d, want failed/3", item.Status, item.Attempts)
	}
	if item.LastError == "" {
		t.Fatal("terminal failure lost its last error")
	}

	// Terminal items are never claimed again.
	env.rewind(t)
	if n, _ := env.worker.ProcessQueue(context.Background(), 10); n != 0 {
		t.Fatalf("claimed %d failed items", n)
	}

	integration, err := env.store.GetIntegration(env.integration.IntegrationID)
	if err != nil {
		t.Fatalf("get integration: %v", err)
	}
	if integration.LastSyncStatus != "error" {
		t.Fatalf("integration status = %s, want error", integration.LastSyncStatus)
	}
}

func TestSyncReconcilesStashedExternalIDWithoutProviderCall(t *testing.T) {
	env := newSyncEnv(t)
	person, err := env.store.CreatePerson(&store.Person{Name: "Raj Sen"})
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	if err := env.queue.SyncPerson(person); err != nil {
		t.Fatalf("sync person: %v", err)
	}

	// Simulate an earlier attempt whose provider call succeeded but whose
	// mapping write did not: the external id is stashed on the item.
	item := env.onlyItem(t)
	if err := env.store.SetSyncItemExternalID(item.ItemID, "ext-stashed"); err != nil {
		t.Fatalf("stash external id: %v", err)
	}

	if _, err := env.worker.ProcessQueue(context.Background(), 10); err != nil {
		t.Fatalf("process: %v", err)
	}
	if env.fake.creates != 0 || env.fake.updates != 0 {
		t.Fatalf("provider was called %d/%d times during reconcile", env.fake.creates, env.fake.updates)
	}
	item = env.onlyItem(t)
	if item.Status != store.SyncCompleted || item.ExternalID != "ext-stashed" {
		t.Fatalf("item = %s/%s, want completed/ext-stashed", item.Status, item.ExternalID)
	}
	mapping, err := env.store.GetFieldMapping(env.integration.IntegrationID, store.EntityPerson, person.PersonID)
	if err != nil {
		t.Fatalf("get mapping: %v", err)
	}
	if mapping == nil || mapping.ExternalID != "ext-stashed" {
		t.Fatalf("mapping = %+v, want ext-stashed", mapping)
	}
}

func TestBackoffMonotonicAndCapped(t *testing.T) {
	prev := time.Duration(0)
	for attempts := 0; attempts < 12; attempts++ {
		d := Backoff(attempts)
		if d < prev {
			t.Fatalf("backoff decreased at attempts=%d: %v < %v", attempts, d, prev)
		}
		if d > maxBackoff {
			t.Fatalf("backoff exceeds cap at attempts=%d: %v", attempts, d)
		}
		prev = d
	}
	if Backoff(1) != 2*time.Minute {
		t.Fatalf("Backoff(1) = %v, want 2m", Backoff(1))
	}
	if Backoff(20) != maxBackoff {
		t.Fatalf("Backoff(20) = %v, want cap %v", Backoff(20), maxBackoff)
	}
}
