package store

import (
	"testing"
	"time"
)

func seedIntegration(t *testing.T, st *Store) *CrmIntegration {
	t.Helper()
	in, err := st.CreateIntegration(&CrmIntegration{
		Provider:          "webhook",
		IsActive:          true,
		SyncPeopleEnabled: true,
	})
	if err != nil {
		t.Fatalf("create integration: %v", err)
	}
	return in
}

func TestFieldMappingUniquePerEntity(t *testing.T) {
	st := newTestStore(t)
	in := seedIntegration(t, st)

	m := &CrmFieldMapping{
		IntegrationID:   in.IntegrationID,
		LocalEntityType: EntityPerson,
		LocalEntityID:   "person-1",
		ExternalID:      "ext-1",
	}
	if err := st.PutFieldMapping(m); err != nil {
		t.Fatalf("put mapping: %v", err)
	}
	m.ExternalID = "ext-2"
	if err := st.PutFieldMapping(m); err != nil {
		t.Fatalf("second put: %v", err)
	}

	n, err := st.CountFieldMappings(in.IntegrationID, EntityPerson, "person-1")
	if err != nil {
		t.Fatalf("count mappings: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one mapping row, got %d", n)
	}
	got, err := st.GetFieldMapping(in.IntegrationID, EntityPerson, "person-1")
	if err != nil || got == nil {
		t.Fatalf("get mapping: %v", err)
	}
	if got.ExternalID != "ext-2" {
		t.Fatalf("upsert lost: %s", got.ExternalID)
	}
}

func TestGetFieldMappingAbsentReturnsNil(t *testing.T) {
	st := newTestStore(t)
	got, err := st.GetFieldMapping("nope", EntityPerson, "person-1")
	if err != nil {
		t.Fatalf("get absent mapping: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil mapping, got %+v", got)
	}
}

func TestClaimDueSyncItemsRespectsScheduleAndStatus(t *testing.T) {
	st := newTestStore(t)
	in := seedIntegration(t, st)
	now := time.Now().UTC()

	due, err := st.EnqueueSyncItem(&CrmSyncItem{
		IntegrationID: in.IntegrationID, EntityType: EntityPerson, EntityID: "p1",
		Operation: "create", ScheduledFor: now.Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := st.EnqueueSyncItem(&CrmSyncItem{
		IntegrationID: in.IntegrationID, EntityType: EntityPerson, EntityID: "p2",
		Operation: "create", ScheduledFor: now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("enqueue future: %v", err)
	}
	failed, err := st.EnqueueSyncItem(&CrmSyncItem{
		IntegrationID: in.IntegrationID, EntityType: EntityPerson, EntityID: "p3",
		Operation: "create", ScheduledFor: now.Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("enqueue doomed: %v", err)
	}
	if err := st.FailSyncItem(failed.ItemID, "boom"); err != nil {
		t.Fatalf("fail item: %v", err)
	}

	items, err := st.ClaimDueSyncItems(now, 10)
	if err != nil {
		t.Fatalf("claim due: %v", err)
	}
	if len(items) != 1 || items[0].ItemID != due.ItemID {
		t.Fatalf("expected only the due pending item, got %+v", items)
	}
}

func TestFailedItemNeverReclaimed(t *testing.T) {
	st := newTestStore(t)
	in := seedIntegration(t, st)
	now := time.Now().UTC()

	item, err := st.EnqueueSyncItem(&CrmSyncItem{
		IntegrationID: in.IntegrationID, EntityType: EntityPerson, EntityID: "p1",
		Operation: "create", MaxAttempts: 3, ScheduledFor: now.Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := st.FailSyncItem(item.ItemID, "provider unreachable"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	items, err := st.ClaimDueSyncItems(now.Add(24*time.Hour), 10)
	if err != nil {
		t.Fatalf("claim due: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("failed item reclaimed: %+v", items)
	}
	got, _ := st.GetSyncItem(item.ItemID)
	if got.Status != SyncFailed || got.LastError == "" {
		t.Fatalf("expected terminal failed with last_error, got %+v", got)
	}
}

func TestMarkProcessingIncrementsAttempts(t *testing.T) {
	st := newTestStore(t)
	in := seedIntegration(t, st)

	item, err := st.EnqueueSyncItem(&CrmSyncItem{
		IntegrationID: in.IntegrationID, EntityType: EntityPerson, EntityID: "p1",
		Operation: "create",
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := st.MarkSyncItemProcessing(item.ItemID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	got, _ := st.GetSyncItem(item.ItemID)
	if got.Status != SyncProcessing || got.Attempts != 1 {
		t.Fatalf("expected processing/1, got %s/%d", got.Status, got.Attempts)
	}
	// A processing item cannot be claimed twice.
	if err := st.MarkSyncItemProcessing(item.ItemID); err == nil {
		t.Fatal("expected second claim to fail")
	}
}

func TestRetryIncreasesScheduledFor(t *testing.T) {
	st := newTestStore(t)
	in := seedIntegration(t, st)
	now := time.Now().UTC()

	item, err := st.EnqueueSyncItem(&CrmSyncItem{
		IntegrationID: in.IntegrationID, EntityType: EntityPerson, EntityID: "p1",
		Operation: "create", ScheduledFor: now,
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := st.MarkSyncItemProcessing(item.ItemID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	next := now.Add(2 * time.Minute)
	if err := st.RetrySyncItem(item.ItemID, next, "rate limited"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	got, _ := st.GetSyncItem(item.ItemID)
	if got.Status != SyncRetry || !got.ScheduledFor.After(now) {
		t.Fatalf("retry schedule not advanced: %+v", got)
	}
	if got.LastError != "rate limited" {
		t.Fatalf("last error lost: %q", got.LastError)
	}
}

func TestStampIntegrationSync(t *testing.T) {
	st := newTestStore(t)
	in := seedIntegration(t, st)

	at := time.Now().UTC()
	if err := st.StampIntegrationSync(in.IntegrationID, "success", "", at); err != nil {
		t.Fatalf("stamp: %v", err)
	}
	got, err := st.GetIntegration(in.IntegrationID)
	if err != nil {
		t.Fatalf("get integration: %v", err)
	}
	if got.LastSyncStatus != "success" || got.LastSyncAt == nil {
		t.Fatalf("stamp lost: %+v", got)
	}
}
