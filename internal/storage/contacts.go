package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/kalambet/voicecheck/internal/campaign"
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const contactColumns = `id, family_name, given_name, phone, status, created_at, updated_at`

// AddContacts stores new contacts with sequential numeric ids continuing
// from the current maximum, pending status and a creation time. It returns
// the stored contacts.
func (s *Store) AddContacts(contacts []campaign.Contact) ([]campaign.Contact, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var maxID int64
	if err := tx.QueryRow(`SELECT COALESCE(MAX(CAST(id AS INTEGER)), 0) FROM contacts WHERE id GLOB '[0-9]*'`).Scan(&maxID); err != nil {
		return nil, fmt.Errorf("reading max contact id: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	out := make([]campaign.Contact, 0, len(contacts))
	for _, c := range contacts {
		maxID++
		c.ID = strconv.FormatInt(maxID, 10)
		c.Status = campaign.StatusPending
		c.CreatedAt = now
		c.UpdatedAt = nil
		if _, err := tx.Exec(`
			INSERT INTO contacts (id, family_name, given_name, phone, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, c.FamilyName, c.GivenName, c.Phone, string(c.Status), now.Format(time.RFC3339),
		); err != nil {
			return nil, fmt.Errorf("inserting contact %s: %w", c.ID, err)
		}
		out = append(out, c)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing contacts: %w", err)
	}
	return out, nil
}

func (s *Store) GetContact(id string) (campaign.Contact, error) {
	c, err := scanContact(s.db.QueryRow(`SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return campaign.Contact{}, ErrNotFound
	}
	return c, err
}

// AllContacts returns every contact in id order.
func (s *Store) AllContacts() ([]campaign.Contact, error) {
	return s.queryContacts(`SELECT ` + contactColumns + ` FROM contacts ORDER BY CAST(id AS INTEGER), id`)
}

// ContactsByStatus returns the contacts with the given status in id order.
func (s *Store) ContactsByStatus(status campaign.Status) ([]campaign.Contact, error) {
	return s.queryContacts(`SELECT `+contactColumns+` FROM contacts WHERE status = ? ORDER BY CAST(id AS INTEGER), id`, string(status))
}

// PendingContacts returns the contacts a campaign run should call.
func (s *Store) PendingContacts() ([]campaign.Contact, error) {
	return s.ContactsByStatus(campaign.StatusPending)
}

// SetContactStatus updates a contact's status and updated_at. Writing the
// same status again still refreshes updated_at.
func (s *Store) SetContactStatus(id string, status campaign.Status) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`UPDATE contacts SET status = ?, updated_at = ? WHERE id = ?`, string(status), now, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) queryContacts(query string, args ...any) ([]campaign.Contact, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []campaign.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanContact(row scanner) (campaign.Contact, error) {
	var c campaign.Contact
	var status, createdAt string
	var updatedAt sql.NullString
	if err := row.Scan(&c.ID, &c.FamilyName, &c.GivenName, &c.Phone, &status, &createdAt, &updatedAt); err != nil {
		return campaign.Contact{}, err
	}
	c.Status = campaign.Status(status)

	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return campaign.Contact{}, fmt.Errorf("parsing created_at: %w", err)
	}
	c.CreatedAt = t
	if updatedAt.Valid {
		u, err := time.Parse(time.RFC3339, updatedAt.String)
		if err != nil {
			return campaign.Contact{}, fmt.Errorf("parsing updated_at: %w", err)
		}
		c.UpdatedAt = &u
	}
	return c, nil
}
