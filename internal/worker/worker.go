// Package worker runs campaign jobs from the SQLite job queue.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/voicecheck/internal/campaign"
	"github.com/kalambet/voicecheck/internal/storage"
)

// JobType is the queue type of a campaign run.
const JobType = "campaign_run"

// JobStore abstracts the job queue and contact lookups.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	PendingContacts() ([]campaign.Contact, error)
	GetContact(id string) (campaign.Contact, error)
}

// Runner drives contacts through a campaign.
type Runner interface {
	Run(ctx context.Context, contacts []campaign.Contact) iter.Seq[campaign.Event]
}

// Payload is the JSON body of a campaign_run job. With no ContactIDs the
// run covers every pending contact at the time the job starts.
type Payload struct {
	ContactIDs []string `json:"contact_ids,omitempty"`
	Source     string   `json:"source,omitempty"`
}

// NewJob builds a campaign_run job ready for EnqueueJob. Campaign runs are
// attempted once; a rerun is a new job.
func NewJob(p Payload) (storage.Job, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return storage.Job{}, fmt.Errorf("marshaling payload: %w", err)
	}
	return storage.Job{
		ID:          uuid.New().String(),
		Type:        JobType,
		PayloadJSON: string(b),
		MaxAttempts: 1,
	}, nil
}

// Report counts the events of one run.
type Report struct {
	Contacts           int
	Processed          int
	Verified           int
	InitiationFailures int
	ProcessingFailures int
}

// Worker processes campaign_run jobs.
type Worker struct {
	store  JobStore
	runner Runner
	poll   time.Duration
	logger *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, runner Runner, pollInterval time.Duration, logger *slog.Logger) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:  store,
		runner: runner,
		poll:   pollInterval,
		logger: logger,
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single campaign_run job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	log := w.logger.With("job_id", job.ID)
	report, err := w.processJob(ctx, job)
	if err != nil {
		log.Warn("campaign job failed", "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			log.Error("failed to mark job as failed", "error", failErr)
		}
		return true, nil
	}

	log.Info("campaign job finished",
		"contacts", report.Contacts,
		"processed", report.Processed,
		"verified", report.Verified,
		"initiation_failures", report.InitiationFailures,
		"processing_failures", report.ProcessingFailures,
	)
	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) (Report, error) {
	var payload Payload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return Report{}, fmt.Errorf("parsing payload: %w", err)
	}

	contacts, err := w.loadContacts(payload)
	if err != nil {
		return Report{}, err
	}

	report := Report{Contacts: len(contacts)}
	for ev := range w.runner.Run(ctx, contacts) {
		w.logger.Info("contact done",
			"job_id", job.ID,
			"progress", fmt.Sprintf("%d/%d", ev.Index, ev.Total),
			"contact_id", ev.Contact.ID,
			"result", ev.Summary(),
		)
		switch ev.Kind {
		case campaign.EventProcessed:
			report.Processed++
			if ev.Outcome != nil && ev.Outcome.Verified() {
				report.Verified++
			}
		case campaign.EventCallInitiationFailed:
			report.InitiationFailures++
		case campaign.EventProcessingFailed:
			report.ProcessingFailures++
		}
	}
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("campaign interrupted: %w", err)
	}
	return report, nil
}

func (w *Worker) loadContacts(p Payload) ([]campaign.Contact, error) {
	if len(p.ContactIDs) == 0 {
		contacts, err := w.store.PendingContacts()
		if err != nil {
			return nil, fmt.Errorf("loading pending contacts: %w", err)
		}
		return contacts, nil
	}

	contacts := make([]campaign.Contact, 0, len(p.ContactIDs))
	for _, id := range p.ContactIDs {
		c, err := w.store.GetContact(id)
		if err != nil {
			return nil, fmt.Errorf("loading contact %s: %w", id, err)
		}
		contacts = append(contacts, c)
	}
	return contacts, nil
}
