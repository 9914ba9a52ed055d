package storage

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/voicecheck/internal/campaign"
)

func seedContacts(t *testing.T, s *Store) []campaign.Contact {
	t.Helper()
	added, err := s.AddContacts([]campaign.Contact{
		{FamilyName: "Dupont", GivenName: "Jean", Phone: "+33612345678"},
		{FamilyName: "Martin", GivenName: "Marie", Phone: "+33687654321"},
		{FamilyName: "Durand", GivenName: "Pierre", Phone: "+33698765432"},
	})
	if err != nil {
		t.Fatalf("AddContacts: %v", err)
	}
	return added
}

func TestAddContacts_SequentialIDs(t *testing.T) {
	s := openTestStore(t)

	first := seedContacts(t, s)
	for i, want := range []string{"1", "2", "3"} {
		if first[i].ID != want {
			t.Errorf("contact %d id = %q, want %q", i, first[i].ID, want)
		}
		if first[i].Status != campaign.StatusPending {
			t.Errorf("contact %d status = %q, want pending", i, first[i].Status)
		}
	}

	more, err := s.AddContacts([]campaign.Contact{{FamilyName: "Bernard", Phone: "+33600000000", Status: campaign.StatusCompleted}})
	if err != nil {
		t.Fatalf("AddContacts: %v", err)
	}
	if more[0].ID != "4" || more[0].Status != campaign.StatusPending {
		t.Errorf("next contact = %+v, want id 4 pending", more[0])
	}
}

func TestGetContact(t *testing.T) {
	s := openTestStore(t)
	added := seedContacts(t, s)

	got, err := s.GetContact("2")
	if err != nil {
		t.Fatalf("GetContact: %v", err)
	}
	if diff := cmp.Diff(added[1], got); diff != "" {
		t.Errorf("GetContact mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.GetContact("99"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetContact(99) err = %v, want ErrNotFound", err)
	}
}

func TestSetContactStatus(t *testing.T) {
	s := openTestStore(t)
	seedContacts(t, s)

	if err := s.SetContactStatus("1", campaign.StatusCompleted); err != nil {
		t.Fatalf("SetContactStatus: %v", err)
	}
	c, err := s.GetContact("1")
	if err != nil {
		t.Fatalf("GetContact: %v", err)
	}
	if c.Status != campaign.StatusCompleted || c.UpdatedAt == nil {
		t.Errorf("contact = %+v, want completed with updated_at", c)
	}

	pending, err := s.PendingContacts()
	if err != nil {
		t.Fatalf("PendingContacts: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "2" || pending[1].ID != "3" {
		t.Errorf("pending = %+v, want contacts 2 and 3", pending)
	}

	if err := s.SetContactStatus("99", campaign.StatusPending); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetContactStatus(99) err = %v, want ErrNotFound", err)
	}
}

func TestAllContacts_NumericOrder(t *testing.T) {
	s := openTestStore(t)
	batch := make([]campaign.Contact, 11)
	for i := range batch {
		batch[i] = campaign.Contact{Phone: "+3360000000"}
	}
	if _, err := s.AddContacts(batch); err != nil {
		t.Fatalf("AddContacts: %v", err)
	}

	all, err := s.AllContacts()
	if err != nil {
		t.Fatalf("AllContacts: %v", err)
	}
	if len(all) != 11 || all[1].ID != "2" || all[10].ID != "11" {
		t.Errorf("order = %v, %v ... want numeric", all[1].ID, all[10].ID)
	}
}
