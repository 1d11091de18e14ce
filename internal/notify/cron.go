package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"

	"github.com/nexshop/storebot/internal/store"
)

// JobStorage persists recurring notification campaigns.
type JobStorage interface {
	ListNotificationJobs() ([]store.NotificationJob, error)
	AddNotificationJob(job store.NotificationJob) (*store.NotificationJob, error)
	RemoveNotificationJob(jobID string) (bool, error)
	MarkNotificationJobRun(jobID, status string) error
}

// CampaignService fires recurring tenant notifications from cron
// expressions. Every firing still goes through the dispatcher's window and
// channel gating.
type CampaignService struct {
	storage    JobStorage
	dispatcher *Dispatcher

	mu       sync.Mutex
	cron     *rcron.Cron
	entryMap map[string]rcron.EntryID // job ID -> cron entry ID
	cancel   context.CancelFunc
}

func NewCampaignService(storage JobStorage, dispatcher *Dispatcher) *CampaignService {
	return &CampaignService{
		storage:    storage,
		dispatcher: dispatcher,
		entryMap:   make(map[string]rcron.EntryID),
	}
}

func (s *CampaignService) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.cron = rcron.New(rcron.WithSeconds())

	jobs, err := s.storage.ListNotificationJobs()
	if err != nil {
		s.mu.Unlock()
		cancel()
		return fmt.Errorf("load notification jobs: %w", err)
	}
	for _, job := range jobs {
		if job.Enabled {
			s.registerJob(runCtx, job)
		}
	}
	s.cron.Start()
	s.mu.Unlock()

	log.Printf("[campaign] started with %d jobs", len(jobs))

	go func() {
		<-runCtx.Done()
		s.Stop()
	}()
	return nil
}

// registerJob adds one campaign to the cron runner. Caller holds s.mu.
func (s *CampaignService) registerJob(ctx context.Context, job store.NotificationJob) {
	id, err := s.cron.AddFunc(job.CronExpr, func() {
		s.executeJob(ctx, job)
	})
	if err != nil {
		log.Printf("[campaign] register job %s (%s): %v", job.ID, job.CronExpr, err)
		return
	}
	s.entryMap[job.ID] = id
}

func (s *CampaignService) executeJob(ctx context.Context, job store.NotificationJob) {
	log.Printf("[campaign] firing %s for %s (%s)", job.Type, job.TenantID, job.ID)

	status := "ok"
	if err := s.dispatcher.Dispatch(ctx, job.TenantID, job.Type, job.Message); err != nil {
		status = "error"
		log.Printf("[campaign] job %s dispatch: %v", job.ID, err)
	}
	if err := s.storage.MarkNotificationJobRun(job.ID, status); err != nil {
		log.Printf("[campaign] job %s bookkeeping: %v", job.ID, err)
	}
}

// AddJob persists and schedules a new campaign.
func (s *CampaignService) AddJob(ctx context.Context, job store.NotificationJob) (*store.NotificationJob, error) {
	job.Enabled = true
	added, err := s.storage.AddNotificationJob(job)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.cron != nil {
		s.registerJob(ctx, *added)
	}
	s.mu.Unlock()
	return added, nil
}

// RemoveJob unschedules and deletes a campaign; reports whether it existed.
func (s *CampaignService) RemoveJob(jobID string) (bool, error) {
	s.mu.Lock()
	if entryID, ok := s.entryMap[jobID]; ok && s.cron != nil {
		s.cron.Remove(entryID)
		delete(s.entryMap, jobID)
	}
	s.mu.Unlock()

	return s.storage.RemoveNotificationJob(jobID)
}

func (s *CampaignService) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	cron := s.cron
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if cron != nil {
		stopCtx := cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(5 * time.Second):
			log.Printf("[campaign] stop timeout waiting for running jobs")
		}
	}
	log.Printf("[campaign] stopped")
}
