package campaign

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Tristate is a three-valued answer: true, false, or unknown.
// The zero value is Unknown.
type Tristate int8

const (
	Unknown Tristate = iota
	True
	False
)

// TristateOf converts a nullable bool into a Tristate.
func TristateOf(b *bool) Tristate {
	if b == nil {
		return Unknown
	}
	if *b {
		return True
	}
	return False
}

// Ptr returns the nullable bool form of t (nil for Unknown).
func (t Tristate) Ptr() *bool {
	switch t {
	case True:
		v := true
		return &v
	case False:
		v := false
		return &v
	default:
		return nil
	}
}

func (t Tristate) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// And is the Kleene conjunction: False dominates, True only when both are True.
func (t Tristate) And(other Tristate) Tristate {
	if t == False || other == False {
		return False
	}
	if t == True && other == True {
		return True
	}
	return Unknown
}

func (t Tristate) MarshalJSON() ([]byte, error) {
	switch t {
	case True:
		return []byte("true"), nil
	case False:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts true, false and null, plus their quoted forms
// ("true", "false", "null") which LLM output occasionally produces.
func (t *Tristate) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if s, err := unquote(raw); err == nil {
		raw = s
	}
	switch strings.ToLower(raw) {
	case "true":
		*t = True
	case "false":
		*t = False
	case "null", "":
		*t = Unknown
	default:
		return fmt.Errorf("invalid tristate value %s", string(data))
	}
	return nil
}

func unquote(s string) (string, error) {
	var out string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return "", err
	}
	return out, nil
}

// Status is the lifecycle state of a contact.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Contact is a person targeted for a verification call.
type Contact struct {
	ID         string     `json:"id"`
	FamilyName string     `json:"family_name"`
	GivenName  string     `json:"given_name"`
	Phone      string     `json:"phone"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// FullName returns "Given Family".
func (c Contact) FullName() string {
	return strings.TrimSpace(c.GivenName + " " + c.FamilyName)
}

// Decision is the classifier's reading of a transcript.
type Decision struct {
	Consent           Tristate `json:"consent"`
	IdentityConfirmed Tristate `json:"identity_confirmed"`
	Rationale         string   `json:"rationale"`
}

// Outcome is one persisted call attempt. Outcomes are append-only.
type Outcome struct {
	ID                string    `json:"id"`
	ContactID         string    `json:"contact_id"`
	CallID            string    `json:"call_id"`
	Consent           Tristate  `json:"consent"`
	IdentityConfirmed Tristate  `json:"identity_confirmed"`
	NoResponse        bool      `json:"no_response"`
	Transcript        string    `json:"transcript"`
	Rationale         string    `json:"rationale"`
	Error             string    `json:"error,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

var voicemailMarkers = []string{"répondeur", "boîte vocale"}

// IsVoicemail reports whether the rationale flags an answering machine.
func (o Outcome) IsVoicemail() bool {
	r := strings.ToLower(o.Rationale)
	for _, m := range voicemailMarkers {
		if strings.Contains(r, m) {
			return true
		}
	}
	return false
}

// Verified reports whether both consent and identity are confirmed.
func (o Outcome) Verified() bool {
	return o.Consent.And(o.IdentityConfirmed) == True
}

// CleanSuccess is a verified outcome that came from an actual conversation.
func (o Outcome) CleanSuccess() bool {
	return o.Verified() && !o.NoResponse
}

// NeedsRecall reports whether this outcome alone makes its contact recall-eligible.
func (o Outcome) NeedsRecall() bool {
	return o.NoResponse ||
		o.IsVoicemail() ||
		o.Consent != True ||
		o.IdentityConfirmed != True
}

// ResultingStatus is the contact status implied by this outcome.
func (o Outcome) ResultingStatus() Status {
	if o.Verified() {
		return StatusCompleted
	}
	return StatusPending
}

// CallRequest carries what the provider needs to place one call.
type CallRequest struct {
	Phone         string
	ContactID     string
	Task          string
	FirstSentence string
	Language      string
}

// CallStatus is a provider snapshot of an in-flight or finished call.
type CallStatus struct {
	Status                 string
	ConcatenatedTranscript string
	Transcript             string
	Transcription          string
}

var terminalStatuses = map[string]bool{
	"completed": true,
	"done":      true,
	"finished":  true,
}

// Terminal reports whether the call has ended.
func (s CallStatus) Terminal() bool {
	return terminalStatuses[strings.ToLower(strings.TrimSpace(s.Status))]
}

// Text returns the first non-empty transcript field, preferring the
// consolidated transcript.
func (s CallStatus) Text() string {
	for _, t := range []string{s.ConcatenatedTranscript, s.Transcript, s.Transcription} {
		if t != "" {
			return t
		}
	}
	return ""
}
