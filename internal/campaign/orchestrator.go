package campaign

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/kalambet/voicecheck/internal/prompt"
)

const (
	defaultPollAttempts  = 60
	defaultPollInterval  = 5 * time.Second
	defaultFirstSentence = "Bonjour, je suis une assistante virtuelle de VoiceCheck AI."
	defaultLanguage      = "fr"
)

// Failure kinds carried by Event.Err and Outcome.Error. Use errors.Is.
var (
	ErrCallInitiation = errors.New("call initiation failed")
	ErrPoll           = errors.New("call status polling failed")
	ErrClassification = errors.New("transcript classification failed")
	ErrProcessing     = errors.New("contact processing failed")
)

// CallProvider places calls and reports their progress.
type CallProvider interface {
	StartCall(ctx context.Context, req CallRequest) (callID string, err error)
	GetCallStatus(ctx context.Context, callID string) (CallStatus, error)
}

// Classifier turns a transcript into a consent/identity decision.
type Classifier interface {
	Classify(ctx context.Context, transcript, familyName, givenName string) (Decision, error)
}

// Store is the write side the orchestrator needs: append an outcome, then
// reconcile the contact status.
type Store interface {
	AppendOutcome(o Outcome) (Outcome, error)
	SetContactStatus(id string, status Status) error
}

// EventKind classifies a progress event.
type EventKind string

const (
	EventProcessed            EventKind = "processed"
	EventCallInitiationFailed EventKind = "call_initiation_failed"
	EventProcessingFailed     EventKind = "contact_processing_failed"
)

// Event reports what happened to one contact. Index is 1-based.
type Event struct {
	Index   int
	Total   int
	Contact Contact
	Kind    EventKind
	Outcome *Outcome
	Err     error
}

// Summary is a short human-readable description of the event.
func (e Event) Summary() string {
	switch e.Kind {
	case EventCallInitiationFailed, EventProcessingFailed:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Outcome == nil {
		return string(e.Kind)
	}
	o := e.Outcome
	switch {
	case o.NoResponse && o.Error != "":
		return "no response (" + o.Error + ")"
	case o.NoResponse:
		return "no response"
	case o.Verified():
		return "verified"
	case o.IsVoicemail():
		return "voicemail"
	default:
		return fmt.Sprintf("consent=%s identity=%s", o.Consent, o.IdentityConfirmed)
	}
}

// Options tunes an Orchestrator. Zero fields take defaults.
type Options struct {
	PollAttempts  int
	PollInterval  time.Duration
	FirstSentence string
	Language      string
	// Task builds the call script from the contact's names.
	Task   func(familyName, givenName string) string
	Logger *slog.Logger
}

// Orchestrator drives contacts through call, poll, classify, persist and
// status reconciliation, one contact at a time.
type Orchestrator struct {
	provider   CallProvider
	classifier Classifier
	store      Store
	opts       Options
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// New creates an Orchestrator with the given collaborators.
func New(provider CallProvider, classifier Classifier, store Store, opts Options) *Orchestrator {
	if opts.PollAttempts <= 0 {
		opts.PollAttempts = defaultPollAttempts
	}
	if opts.PollInterval < 0 {
		opts.PollInterval = 0
	} else if opts.PollInterval == 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.FirstSentence == "" {
		opts.FirstSentence = defaultFirstSentence
	}
	if opts.Language == "" {
		opts.Language = defaultLanguage
	}
	if opts.Task == nil {
		opts.Task = prompt.BuildTask
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		provider:   provider,
		classifier: classifier,
		store:      store,
		opts:       opts,
		logger:     logger,
		sleep:      sleepContext,
	}
}

// Run returns a lazy sequence with one event per contact, in input order.
// Each contact is fully processed before its event is yielded and before
// the next contact starts. Stopping iteration leaves the remaining contacts
// untouched. If ctx is cancelled while a contact is in flight, no outcome is
// written for it and the sequence ends.
func (o *Orchestrator) Run(ctx context.Context, contacts []Contact) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		total := len(contacts)
		for i, c := range contacts {
			if ctx.Err() != nil {
				return
			}
			ev, ok := o.process(ctx, c)
			if !ok {
				o.logger.Warn("campaign cancelled mid-contact, no outcome written", "contact_id", c.ID)
				return
			}
			ev.Index = i + 1
			ev.Total = total
			ev.Contact = c
			if !yield(ev) {
				return
			}
		}
	}
}

// process handles one contact. It returns ok=false only when ctx was
// cancelled before an outcome was committed.
func (o *Orchestrator) process(ctx context.Context, c Contact) (ev Event, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("contact processing panicked", "contact_id", c.ID, "panic", r)
			ev = Event{Kind: EventProcessingFailed, Err: fmt.Errorf("%w: panic: %v", ErrProcessing, r)}
			ok = true
		}
	}()

	log := o.logger.With("contact_id", c.ID)
	log.Info("starting call", "name", c.FullName(), "phone", c.Phone)

	callID, err := o.provider.StartCall(ctx, CallRequest{
		Phone:         c.Phone,
		ContactID:     c.ID,
		Task:          o.opts.Task(c.FamilyName, c.GivenName),
		FirstSentence: o.opts.FirstSentence,
		Language:      o.opts.Language,
	})
	if err != nil {
		if ctx.Err() != nil {
			return Event{}, false
		}
		log.Error("call initiation failed", "error", err)
		return Event{Kind: EventCallInitiationFailed, Err: fmt.Errorf("%w: %w", ErrCallInitiation, err)}, true
	}

	transcript, completed, pollErr := o.poll(ctx, log, callID)
	if ctx.Err() != nil {
		return Event{}, false
	}

	outcome := Outcome{
		ContactID:  c.ID,
		CallID:     callID,
		NoResponse: true,
	}
	switch {
	case pollErr != nil:
		log.Warn("polling aborted", "call_id", callID, "error", pollErr)
		outcome.Error = pollErr.Error()
	case !completed:
		log.Warn("call did not finish in time", "call_id", callID, "attempts", o.opts.PollAttempts)
		outcome.Error = fmt.Sprintf("call not finished after %d status checks", o.opts.PollAttempts)
	case transcript == "":
		log.Warn("call finished without transcript", "call_id", callID)
	default:
		outcome.Transcript = transcript
		d, err := o.classifier.Classify(ctx, transcript, c.FamilyName, c.GivenName)
		if err != nil {
			if ctx.Err() != nil {
				return Event{}, false
			}
			log.Error("classification failed", "call_id", callID, "error", err)
			outcome.Error = fmt.Errorf("%w: %w", ErrClassification, err).Error()
			break
		}
		outcome.NoResponse = false
		outcome.Consent = d.Consent
		outcome.IdentityConfirmed = d.IdentityConfirmed
		outcome.Rationale = d.Rationale
	}

	stored, err := o.store.AppendOutcome(outcome)
	if err != nil {
		log.Error("saving outcome failed", "error", err)
		return Event{Kind: EventProcessingFailed, Err: fmt.Errorf("%w: saving outcome: %w", ErrProcessing, err)}, true
	}

	status := stored.ResultingStatus()
	if err := o.store.SetContactStatus(c.ID, status); err != nil {
		log.Error("updating contact status failed", "status", status, "error", err)
		return Event{
			Kind:    EventProcessingFailed,
			Outcome: &stored,
			Err:     fmt.Errorf("%w: updating status: %w", ErrProcessing, err),
		}, true
	}
	log.Info("contact processed", "status", status, "consent", stored.Consent, "identity", stored.IdentityConfirmed, "no_response", stored.NoResponse)

	return Event{Kind: EventProcessed, Outcome: &stored}, true
}

// poll waits for the call to reach a terminal status. It returns the
// transcript and completed=true on success; a provider error stops polling
// immediately.
func (o *Orchestrator) poll(ctx context.Context, log *slog.Logger, callID string) (string, bool, error) {
	for attempt := 1; attempt <= o.opts.PollAttempts; attempt++ {
		if err := o.sleep(ctx, o.opts.PollInterval); err != nil {
			return "", false, err
		}

		st, err := o.provider.GetCallStatus(ctx, callID)
		if err != nil {
			return "", false, fmt.Errorf("%w: %w", ErrPoll, err)
		}
		log.Debug("polled call status", "call_id", callID, "attempt", attempt, "status", st.Status)

		if st.Terminal() {
			return st.Text(), true, nil
		}
	}
	return "", false, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
