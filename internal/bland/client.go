package bland

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/kalambet/voicecheck/internal/campaign"
)

const (
	DefaultEndpoint    = "https://api.bland.ai/v1/calls"
	DefaultVoice       = "e10f0745-ff46-4b37-9be1-34cbda38af91"
	DefaultMaxDuration = 12

	startTimeout   = 30 * time.Second
	statusTimeout  = 15 * time.Second
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
	maxErrorBody   = 4096
)

// ProviderError is returned for transport failures and non-2xx responses.
// StatusCode is zero when no response was received.
type ProviderError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.StatusCode)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }

// RateLimited reports whether the provider answered 429.
func (e *ProviderError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Config holds the client settings. Zero fields take defaults.
type Config struct {
	APIKey      string
	Endpoint    string
	Voice       string
	MaxDuration int
}

// Client places and inspects calls on a Bland-style voice agent API.
type Client struct {
	apiKey      string
	endpoint    string
	baseURL     string
	voice       string
	maxDuration int
	httpClient  *http.Client
	backoff     time.Duration
}

// New creates a Client from cfg.
func New(cfg Config) *Client {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	voice := cfg.Voice
	if voice == "" {
		voice = DefaultVoice
	}
	maxDuration := cfg.MaxDuration
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDuration
	}
	return &Client{
		apiKey:      cfg.APIKey,
		endpoint:    endpoint,
		baseURL:     strings.TrimSuffix(endpoint, "/v1/calls"),
		voice:       voice,
		maxDuration: maxDuration,
		httpClient:  &http.Client{},
		backoff:     initialBackoff,
	}
}

type metadata struct {
	ContactID string `json:"contact_id"`
}

// callRequest is the JSON body for POST {endpoint}.
type callRequest struct {
	PhoneNumber       string   `json:"phone_number"`
	Voice             string   `json:"voice"`
	WaitForGreeting   bool     `json:"wait_for_greeting"`
	Record            bool     `json:"record"`
	AnsweredByEnabled bool     `json:"answered_by_enabled"`
	MaxDuration       int      `json:"max_duration"`
	Model             string   `json:"model"`
	Language          string   `json:"language"`
	VoicemailAction   string   `json:"voicemail_action"`
	Task              string   `json:"task"`
	FirstSentence     string   `json:"first_sentence"`
	Metadata          metadata `json:"metadata"`
}

type callResponse struct {
	CallID  string `json:"call_id"`
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// statusResponse mirrors the fields of GET /v1/calls/{id} we consume.
type statusResponse struct {
	Status                 string `json:"status"`
	ConcatenatedTranscript string `json:"concatenated_transcript"`
	Transcript             string `json:"transcript"`
	Transcription          string `json:"transcription"`
}

// StartCall initiates an outbound call and returns the provider call id.
func (c *Client) StartCall(ctx context.Context, req campaign.CallRequest) (string, error) {
	body, err := json.Marshal(callRequest{
		PhoneNumber:       req.Phone,
		Voice:             c.voice,
		WaitForGreeting:   false,
		Record:            true,
		AnsweredByEnabled: true,
		MaxDuration:       c.maxDuration,
		Model:             "base",
		Language:          req.Language,
		VoicemailAction:   "hangup",
		Task:              req.Task,
		FirstSentence:     req.FirstSentence,
		Metadata:          metadata{ContactID: req.ContactID},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling call request: %w", err)
	}

	var resp callResponse
	if err := c.do(ctx, "start call", http.MethodPost, c.endpoint, body, startTimeout, &resp); err != nil {
		return "", err
	}

	id := resp.CallID
	if id == "" {
		id = resp.ID
	}
	if id == "" {
		msg := resp.Message
		if msg == "" {
			msg = "response carries no call id"
		}
		return "", &ProviderError{Op: "start call", Err: errors.New(msg)}
	}
	return id, nil
}

// GetCallStatus returns the current status and any transcript of a call.
func (c *Client) GetCallStatus(ctx context.Context, callID string) (campaign.CallStatus, error) {
	var resp statusResponse
	url := c.baseURL + "/v1/calls/" + callID
	if err := c.do(ctx, "get call "+callID, http.MethodGet, url, nil, statusTimeout, &resp); err != nil {
		return campaign.CallStatus{}, err
	}
	return campaign.CallStatus{
		Status:                 resp.Status,
		ConcatenatedTranscript: resp.ConcatenatedTranscript,
		Transcript:             resp.Transcript,
		Transcription:          resp.Transcription,
	}, nil
}

// do sends the request and decodes a 2xx JSON response into out. HTTP 429
// is retried with exponential backoff.
func (c *Client) do(ctx context.Context, op, method, url string, body []byte, timeout time.Duration, out any) error {
	var lastErr error
	for attempt := range maxRetries {
		err := c.once(ctx, op, method, url, body, timeout, out)
		if err == nil {
			return nil
		}

		var pe *ProviderError
		if !errors.As(err, &pe) || !pe.RateLimited() {
			return err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(c.backoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}

func (c *Client) once(ctx context.Context, op, method, url string, body []byte, timeout time.Duration, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// The key goes in as-is, without a Bearer prefix.
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ProviderError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &ProviderError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProviderError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}
