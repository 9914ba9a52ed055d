package campaign

import "math"

// Summary aggregates campaign statistics over all contacts and outcomes.
// Counts over outcomes count call attempts, not distinct contacts.
type Summary struct {
	TotalContacts     int     `json:"total_contacts"`
	Pending           int     `json:"pending"`
	Completed         int     `json:"completed"`
	TotalCalls        int     `json:"total_calls"`
	ConsentGiven      int     `json:"consent_given"`
	ConsentRefused    int     `json:"consent_refused"`
	IdentityConfirmed int     `json:"identity_confirmed"`
	IdentityRejected  int     `json:"identity_rejected"`
	NoResponse        int     `json:"no_response"`
	Voicemail         int     `json:"voicemail"`
	Verified          int     `json:"verified"`
	ToRecall          int     `json:"to_recall"`
	ConsentRate       float64 `json:"consent_rate"`
	IdentityRate      float64 `json:"identity_rate"`
	NoResponseRate    float64 `json:"no_response_rate"`
	SuccessRate       float64 `json:"success_rate"`
}

// Summarize computes campaign statistics. Rates are percentages of total
// calls rounded to two decimals, and zero when no call was made.
func Summarize(outcomes []Outcome, contacts []Contact) Summary {
	s := Summary{
		TotalContacts: len(contacts),
		TotalCalls:    len(outcomes),
		ToRecall:      len(SelectRecallCandidates(outcomes, contacts)),
	}
	for _, c := range contacts {
		switch c.Status {
		case StatusPending:
			s.Pending++
		case StatusCompleted:
			s.Completed++
		}
	}
	for _, o := range outcomes {
		switch o.Consent {
		case True:
			s.ConsentGiven++
		case False:
			s.ConsentRefused++
		}
		switch o.IdentityConfirmed {
		case True:
			s.IdentityConfirmed++
		case False:
			s.IdentityRejected++
		}
		if o.NoResponse {
			s.NoResponse++
		}
		if o.IsVoicemail() {
			s.Voicemail++
		}
		if o.CleanSuccess() {
			s.Verified++
		}
	}

	s.ConsentRate = percent(s.ConsentGiven, s.TotalCalls)
	s.IdentityRate = percent(s.IdentityConfirmed, s.TotalCalls)
	s.NoResponseRate = percent(s.NoResponse, s.TotalCalls)
	s.SuccessRate = percent(s.Verified, s.TotalCalls)
	return s
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*10000) / 100
}
