package api

import (
	"errors"
	"fmt"

	"github.com/kalambet/voicecheck/internal/campaign"
	"github.com/kalambet/voicecheck/internal/storage"
	"github.com/kalambet/voicecheck/internal/worker"
)

// errNothingToCall is returned when a campaign would have no contacts.
var errNothingToCall = errors.New("no pending contacts to call")

// unknownContactError names a contact id given to a campaign that does not exist.
type unknownContactError struct {
	id string
}

func (e *unknownContactError) Error() string {
	return fmt.Sprintf("unknown contact %q", e.id)
}

func loadSummary(store *storage.Store) (campaign.Summary, error) {
	contacts, err := store.AllContacts()
	if err != nil {
		return campaign.Summary{}, fmt.Errorf("listing contacts: %w", err)
	}
	outcomes, err := store.AllOutcomes()
	if err != nil {
		return campaign.Summary{}, fmt.Errorf("listing outcomes: %w", err)
	}
	return campaign.Summarize(outcomes, contacts), nil
}

func recallCandidates(store *storage.Store) ([]campaign.Contact, error) {
	contacts, err := store.AllContacts()
	if err != nil {
		return nil, fmt.Errorf("listing contacts: %w", err)
	}
	outcomes, err := store.AllOutcomes()
	if err != nil {
		return nil, fmt.Errorf("listing outcomes: %w", err)
	}
	return campaign.SelectRecallCandidates(outcomes, contacts), nil
}

// requeueCandidates selects recall candidates and sets them back to pending.
func requeueCandidates(store *storage.Store) (int, error) {
	candidates, err := recallCandidates(store)
	if err != nil {
		return 0, err
	}
	return campaign.Requeue(store, candidates)
}

// enqueueCampaign queues a campaign_run job. With ids it checks that every
// contact exists; without, it refuses when nothing is pending.
func enqueueCampaign(store *storage.Store, ids []string, source string) (storage.Job, error) {
	if len(ids) > 0 {
		for _, id := range ids {
			if _, err := store.GetContact(id); errors.Is(err, storage.ErrNotFound) {
				return storage.Job{}, &unknownContactError{id: id}
			} else if err != nil {
				return storage.Job{}, fmt.Errorf("loading contact %s: %w", id, err)
			}
		}
	} else {
		pending, err := store.PendingContacts()
		if err != nil {
			return storage.Job{}, fmt.Errorf("listing pending contacts: %w", err)
		}
		if len(pending) == 0 {
			return storage.Job{}, errNothingToCall
		}
	}

	job, err := worker.NewJob(worker.Payload{ContactIDs: ids, Source: source})
	if err != nil {
		return storage.Job{}, err
	}
	if err := store.EnqueueJob(job); err != nil {
		return storage.Job{}, fmt.Errorf("enqueuing campaign: %w", err)
	}
	return store.GetJob(job.ID)
}
