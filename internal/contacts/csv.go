// Package contacts moves contacts and call results in and out of CSV files.
package contacts

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kalambet/voicecheck/internal/campaign"
)

// ErrMissingColumns is returned when the header lacks a required column.
var ErrMissingColumns = errors.New("CSV must contain the columns nom, prenom, telephone")

var headerAliases = map[string]string{
	"nom":         "family",
	"family_name": "family",
	"prenom":      "given",
	"prénom":      "given",
	"given_name":  "given",
	"telephone":   "phone",
	"téléphone":   "phone",
	"phone":       "phone",
}

// Import reads contacts from CSV with a header row naming nom, prenom and
// telephone (English family_name, given_name and phone are accepted too).
// Values are trimmed and phones get a leading "+" when missing. Blank lines
// are skipped. The returned contacts have no id and pending status.
func Import(r io.Reader) ([]campaign.Contact, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrMissingColumns
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	idx := map[string]int{}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if field, ok := headerAliases[h]; ok {
			if _, dup := idx[field]; !dup {
				idx[field] = i
			}
		}
	}
	for _, f := range []string{"family", "given", "phone"} {
		if _, ok := idx[f]; !ok {
			return nil, ErrMissingColumns
		}
	}

	var out []campaign.Contact
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if blank(rec) {
			continue
		}

		phone := NormalizePhone(field(rec, idx["phone"]))
		if phone == "" {
			return nil, fmt.Errorf("line %d: empty telephone", line)
		}
		out = append(out, campaign.Contact{
			FamilyName: field(rec, idx["family"]),
			GivenName:  field(rec, idx["given"]),
			Phone:      phone,
			Status:     campaign.StatusPending,
		})
	}
	return out, nil
}

// NormalizePhone trims p and prefixes "+" when missing. Empty stays empty.
func NormalizePhone(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || strings.HasPrefix(p, "+") {
		return p
	}
	return "+" + p
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

var exportHeader = []string{
	"Date/Heure", "ID Contact", "Nom", "Prénom", "Téléphone",
	"Consentement", "Refus explicite", "Identité confirmée",
	"Répondeur détecté", "Pas de réponse", "Raison", "Erreur",
}

// ExportOutcomes writes one row per outcome, joined with its contact when
// known, plus derived voicemail and explicit refusal columns. Unknown
// answers are written as empty cells.
func ExportOutcomes(w io.Writer, outcomes []campaign.Outcome, contacts []campaign.Contact) error {
	byID := make(map[string]campaign.Contact, len(contacts))
	for _, c := range contacts {
		byID[c.ID] = c
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, o := range outcomes {
		c := byID[o.ContactID]
		var ts string
		if !o.CreatedAt.IsZero() {
			ts = o.CreatedAt.Format(time.RFC3339)
		}
		row := []string{
			ts,
			o.ContactID,
			c.FamilyName,
			c.GivenName,
			c.Phone,
			cell(o.Consent),
			strconv.FormatBool(ExplicitRefusal(o)),
			cell(o.IdentityConfirmed),
			strconv.FormatBool(o.IsVoicemail()),
			strconv.FormatBool(o.NoResponse),
			o.Rationale,
			o.Error,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing outcome %s: %w", o.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExplicitRefusal reports a consent refusal given by a person, as opposed
// to an answering machine.
func ExplicitRefusal(o campaign.Outcome) bool {
	return o.Consent == campaign.False && o.Rationale != "" && !o.IsVoicemail()
}

func cell(t campaign.Tristate) string {
	if t == campaign.Unknown {
		return ""
	}
	return t.String()
}
