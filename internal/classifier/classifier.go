// Package classifier reads GDPR consent and identity confirmation out of a
// call transcript with a chat model.
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/voicecheck/internal/campaign"
	"github.com/kalambet/voicecheck/internal/llm"
)

const classifyTimeout = 60 * time.Second

// ErrMalformedResponse is returned when the model reply is not the expected JSON.
var ErrMalformedResponse = errors.New("malformed classifier response")

// Classifier implements campaign.Classifier over any llm.Chatter.
type Classifier struct {
	client llm.Chatter
	model  string
	logger *slog.Logger
}

// New creates a Classifier using the given chat backend and model name.
func New(client llm.Chatter, model string, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{client: client, model: model, logger: logger}
}

type reply struct {
	Consent           campaign.Tristate `json:"consent"`
	IdentityConfirmed campaign.Tristate `json:"identity_confirmed"`
	Reasoning         string            `json:"reasoning"`
}

// Classify asks the model for a decision on transcript. Backend and parse
// failures are returned as errors; the caller decides how to degrade.
func (c *Classifier) Classify(ctx context.Context, transcript, familyName, givenName string) (campaign.Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	name := strings.TrimSpace(givenName + " " + familyName)
	c.logger.Debug("classifying transcript", "chars", len(transcript), "model", c.model)

	raw, err := c.client.Chat(ctx, c.model, BuildPrompt(transcript, name), decisionSchema())
	if err != nil {
		return campaign.Decision{}, fmt.Errorf("chat: %w", err)
	}

	d, err := Parse(raw)
	if err != nil {
		c.logger.Warn("unparseable classifier reply", "error", err, "response", raw)
		return campaign.Decision{}, err
	}
	c.logger.Debug("transcript classified", "consent", d.Consent, "identity", d.IdentityConfirmed)
	return d, nil
}

// Parse decodes a model reply. Markdown code fences and surrounding prose
// are tolerated; consent and identity accept true, false, null and their
// quoted forms.
func Parse(raw string) (campaign.Decision, error) {
	body := extractJSON(raw)
	if body == "" {
		return campaign.Decision{}, fmt.Errorf("%w: no JSON object in %q", ErrMalformedResponse, truncate(raw, 80))
	}

	var r reply
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return campaign.Decision{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return campaign.Decision{
		Consent:           r.Consent,
		IdentityConfirmed: r.IdentityConfirmed,
		Rationale:         strings.TrimSpace(r.Reasoning),
	}, nil
}

// extractJSON returns the outermost {...} span of s, or "".
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
