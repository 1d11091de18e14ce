package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nexshop/storebot/internal/store"
)

type fakeJobStorage struct {
	mu   sync.Mutex
	jobs map[string]store.NotificationJob
	runs []string // "jobID|status"
}

func newFakeJobStorage() *fakeJobStorage {
	return &fakeJobStorage{jobs: make(map[string]store.NotificationJob)}
}

func (f *fakeJobStorage) ListNotificationJobs() ([]store.NotificationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var jobs []store.NotificationJob
	for _, job := range f.jobs {
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (f *fakeJobStorage) AddNotificationJob(job store.NotificationJob) (*store.NotificationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	f.jobs[job.ID] = job
	return &job, nil
}

func (f *fakeJobStorage) RemoveNotificationJob(jobID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.jobs[jobID]
	delete(f.jobs, jobID)
	return ok, nil
}

func (f *fakeJobStorage) MarkNotificationJobRun(jobID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, jobID+"|"+status)
	return nil
}

func (f *fakeJobStorage) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

func campaignFixture(t *testing.T) (*CampaignService, *fakeJobStorage, *fakeNotifyStorage, *fakeSender) {
	t.Helper()
	notifyStorage := &fakeNotifyStorage{
		settings: map[string]*store.NotificationSetting{
			"promo": businessHoursSetting(true, nil),
		},
		tenant: &store.Tenant{ID: "shop-1", Phone: "+5511999"},
	}
	sender := &fakeSender{}
	dispatcher := NewDispatcher(notifyStorage, sender, nil, nil, time.UTC)
	jobs := newFakeJobStorage()
	return NewCampaignService(jobs, dispatcher), jobs, notifyStorage, sender
}

func TestCampaignService_ExecuteJobDispatchesAndMarksRun(t *testing.T) {
	svc, jobs, storage, sender := campaignFixture(t)

	job := store.NotificationJob{
		ID:       "job-1",
		TenantID: "shop-1",
		Type:     "promo",
		Message:  "weekly deal",
		CronExpr: "0 0 9 * * 1",
		Enabled:  true,
	}
	svc.executeJob(context.Background(), job)

	if len(sender.sent) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(sender.sent))
	}
	if len(storage.records) != 1 {
		t.Errorf("records = %d, want 1", len(storage.records))
	}
	if jobs.runCount() != 1 || jobs.runs[0] != "job-1|ok" {
		t.Errorf("runs = %v", jobs.runs)
	}
}

func TestCampaignService_ExecuteJobMarksError(t *testing.T) {
	svc, jobs, storage, _ := campaignFixture(t)
	storage.settingErr = errors.New("settings down")

	svc.executeJob(context.Background(), store.NotificationJob{
		ID: "job-1", TenantID: "shop-1", Type: "promo", Message: "deal",
	})

	if jobs.runCount() != 1 || jobs.runs[0] != "job-1|error" {
		t.Errorf("runs = %v", jobs.runs)
	}
}

func TestCampaignService_AddAndRemoveJob(t *testing.T) {
	svc, jobs, _, _ := campaignFixture(t)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer svc.Stop()

	added, err := svc.AddJob(context.Background(), store.NotificationJob{
		TenantID: "shop-1",
		Type:     "promo",
		Message:  "deal",
		CronExpr: "0 0 9 * * 1",
	})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if added.ID == "" {
		t.Fatal("AddJob returned no id")
	}
	if !added.Enabled {
		t.Error("added job must be enabled")
	}

	svc.mu.Lock()
	_, scheduled := svc.entryMap[added.ID]
	svc.mu.Unlock()
	if !scheduled {
		t.Error("added job not scheduled")
	}

	existed, err := svc.RemoveJob(added.ID)
	if err != nil {
		t.Fatalf("RemoveJob: %v", err)
	}
	if !existed {
		t.Error("RemoveJob reported the job absent")
	}
	if _, err := jobs.RemoveNotificationJob(added.ID); err != nil {
		t.Fatalf("storage check: %v", err)
	}

	existed, err = svc.RemoveJob("nonexistent")
	if err != nil {
		t.Fatalf("RemoveJob nonexistent: %v", err)
	}
	if existed {
		t.Error("RemoveJob invented a job")
	}
}

func TestCampaignService_StartRegistersEnabledJobsOnly(t *testing.T) {
	svc, jobs, _, _ := campaignFixture(t)
	jobs.jobs["on"] = store.NotificationJob{
		ID: "on", TenantID: "shop-1", Type: "promo", Message: "m",
		CronExpr: "0 0 9 * * 1", Enabled: true,
	}
	jobs.jobs["off"] = store.NotificationJob{
		ID: "off", TenantID: "shop-1", Type: "promo", Message: "m",
		CronExpr: "0 0 9 * * 1", Enabled: false,
	}

	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer svc.Stop()

	svc.mu.Lock()
	_, onScheduled := svc.entryMap["on"]
	_, offScheduled := svc.entryMap["off"]
	svc.mu.Unlock()
	if !onScheduled {
		t.Error("enabled job not scheduled")
	}
	if offScheduled {
		t.Error("disabled job scheduled")
	}
}
