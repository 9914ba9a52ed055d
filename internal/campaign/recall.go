package campaign

import (
	"errors"
	"fmt"
)

// SelectRecallCandidates returns the contacts with at least one outcome that
// needs a recall (no response, voicemail, or a consent or identity answer that
// is not true). Every outcome counts, not only the latest: a contact with a
// clean success and a later voicemail is still selected.
//
// The result follows the order of contacts and only includes contacts present
// there. It has no side effects.
func SelectRecallCandidates(outcomes []Outcome, contacts []Contact) []Contact {
	flagged := make(map[string]bool)
	for _, o := range outcomes {
		if o.NeedsRecall() {
			flagged[o.ContactID] = true
		}
	}

	var out []Contact
	seen := make(map[string]bool, len(flagged))
	for _, c := range contacts {
		if flagged[c.ID] && !seen[c.ID] {
			seen[c.ID] = true
			out = append(out, c)
		}
	}
	return out
}

// StatusWriter updates a contact's status.
type StatusWriter interface {
	SetContactStatus(id string, status Status) error
}

// Requeue puts the given contacts back to pending so the next campaign run
// picks them up. It keeps going past individual failures and returns how
// many contacts were requeued along with the joined errors.
func Requeue(w StatusWriter, contacts []Contact) (int, error) {
	var (
		n    int
		errs []error
	)
	for _, c := range contacts {
		if c.ID == "" {
			errs = append(errs, errors.New("contact without id"))
			continue
		}
		if err := w.SetContactStatus(c.ID, StatusPending); err != nil {
			errs = append(errs, fmt.Errorf("requeue %s: %w", c.ID, err))
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}
