package storage

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/voicecheck/internal/campaign"
)

func TestAppendOutcome_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	in := []campaign.Outcome{
		{ContactID: "1", CallID: "c-1", Consent: campaign.True, IdentityConfirmed: campaign.True, Transcript: "oui", Rationale: "ok"},
		{ContactID: "2", CallID: "c-2", NoResponse: true, Error: "call not finished after 60 status checks"},
		{ContactID: "1", CallID: "c-3", Consent: campaign.False, IdentityConfirmed: campaign.Unknown, Rationale: "refus"},
	}
	var stored []campaign.Outcome
	for _, o := range in {
		got, err := s.AppendOutcome(o)
		if err != nil {
			t.Fatalf("AppendOutcome: %v", err)
		}
		if got.ID == "" || got.CreatedAt.IsZero() {
			t.Errorf("stored outcome lacks id or created_at: %+v", got)
		}
		stored = append(stored, got)
	}

	all, err := s.AllOutcomes()
	if err != nil {
		t.Fatalf("AllOutcomes: %v", err)
	}
	if diff := cmp.Diff(stored, all); diff != "" {
		t.Errorf("AllOutcomes mismatch (-want +got):\n%s", diff)
	}

	forOne, err := s.OutcomesForContact("1")
	if err != nil {
		t.Fatalf("OutcomesForContact: %v", err)
	}
	if len(forOne) != 2 || forOne[0].CallID != "c-1" || forOne[1].CallID != "c-3" {
		t.Errorf("OutcomesForContact = %+v", forOne)
	}
}

func TestAppendOutcome_UnknownStoredAsNull(t *testing.T) {
	s := openTestStore(t)

	o, err := s.AppendOutcome(campaign.Outcome{ContactID: "1", NoResponse: true})
	if err != nil {
		t.Fatalf("AppendOutcome: %v", err)
	}

	var consentNull, identityNull bool
	if err := s.db.QueryRow(`SELECT consent IS NULL, identity_confirmed IS NULL FROM call_outcomes WHERE id = ?`, o.ID).
		Scan(&consentNull, &identityNull); err != nil {
		t.Fatalf("SELECT: %v", err)
	}
	if !consentNull || !identityNull {
		t.Errorf("consent null = %v, identity null = %v, want both NULL", consentNull, identityNull)
	}
}

func TestAppendOutcome_KeepsGivenTimestamp(t *testing.T) {
	s := openTestStore(t)
	ts := time.Date(2025, 3, 1, 10, 0, 0, 123, time.UTC)

	if _, err := s.AppendOutcome(campaign.Outcome{ID: "fixed", ContactID: "1", CreatedAt: ts}); err != nil {
		t.Fatalf("AppendOutcome: %v", err)
	}
	all, err := s.AllOutcomes()
	if err != nil {
		t.Fatalf("AllOutcomes: %v", err)
	}
	if all[0].ID != "fixed" || !all[0].CreatedAt.Equal(ts) {
		t.Errorf("outcome = %+v", all[0])
	}
}

func TestStoreDrivesRecall(t *testing.T) {
	s := openTestStore(t)
	contacts := seedContacts(t, s)

	s.AppendOutcome(campaign.Outcome{ContactID: "1", Consent: campaign.True, IdentityConfirmed: campaign.True})
	s.AppendOutcome(campaign.Outcome{ContactID: "2", NoResponse: true})

	outcomes, err := s.AllOutcomes()
	if err != nil {
		t.Fatalf("AllOutcomes: %v", err)
	}
	got := campaign.SelectRecallCandidates(outcomes, contacts)
	if len(got) != 1 || got[0].ID != "2" {
		t.Errorf("recall = %+v, want contact 2", got)
	}

	n, err := campaign.Requeue(s, got)
	if err != nil || n != 1 {
		t.Fatalf("Requeue = %d, %v", n, err)
	}
}
