package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/voicecheck/internal/campaign"
)

const outcomeColumns = `id, contact_id, call_id, consent, identity_confirmed, no_response, transcript, rationale, error, created_at`

// AppendOutcome stores a call outcome. Outcomes are never updated or
// deleted. The returned record carries the assigned id and created_at.
func (s *Store) AppendOutcome(o campaign.Outcome) (campaign.Outcome, error) {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO call_outcomes (`+outcomeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.ContactID, o.CallID, tristateArg(o.Consent), tristateArg(o.IdentityConfirmed),
		o.NoResponse, o.Transcript, o.Rationale, o.Error, o.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return campaign.Outcome{}, fmt.Errorf("inserting outcome: %w", err)
	}
	return o, nil
}

// AllOutcomes returns every outcome in insertion order.
func (s *Store) AllOutcomes() ([]campaign.Outcome, error) {
	return s.queryOutcomes(`SELECT ` + outcomeColumns + ` FROM call_outcomes ORDER BY seq`)
}

// OutcomesForContact returns the outcomes of one contact in insertion order.
func (s *Store) OutcomesForContact(contactID string) ([]campaign.Outcome, error) {
	return s.queryOutcomes(`SELECT `+outcomeColumns+` FROM call_outcomes WHERE contact_id = ? ORDER BY seq`, contactID)
}

func (s *Store) queryOutcomes(query string, args ...any) ([]campaign.Outcome, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []campaign.Outcome
	for rows.Next() {
		var o campaign.Outcome
		var consent, identity sql.NullBool
		var createdAt string
		if err := rows.Scan(&o.ID, &o.ContactID, &o.CallID, &consent, &identity,
			&o.NoResponse, &o.Transcript, &o.Rationale, &o.Error, &createdAt); err != nil {
			return nil, err
		}
		o.Consent = scanTristate(consent)
		o.IdentityConfirmed = scanTristate(identity)
		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		o.CreatedAt = t
		out = append(out, o)
	}
	return out, rows.Err()
}

// tristateArg maps Unknown to NULL.
func tristateArg(t campaign.Tristate) any {
	switch t {
	case campaign.True:
		return true
	case campaign.False:
		return false
	default:
		return nil
	}
}

func scanTristate(n sql.NullBool) campaign.Tristate {
	if !n.Valid {
		return campaign.Unknown
	}
	if n.Bool {
		return campaign.True
	}
	return campaign.False
}

var _ campaign.Store = (*Store)(nil)
