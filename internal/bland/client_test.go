package bland

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalambet/voicecheck/internal/campaign"
)

func newTestClient(url string) *Client {
	c := New(Config{APIKey: "test-key", Endpoint: url + "/v1/calls"})
	c.backoff = time.Millisecond
	return c
}

func testRequest() campaign.CallRequest {
	return campaign.CallRequest{
		Phone:         "+33612345678",
		ContactID:     "7",
		Task:          "script",
		FirstSentence: "Bonjour",
		Language:      "fr",
	}
}

func TestStartCall_Payload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/calls" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "test-key" {
			t.Errorf("Authorization = %q, want raw key", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		w.Write([]byte(`{"status":"success","call_id":"c-123"}`))
	}))
	defer srv.Close()

	id, err := newTestClient(srv.URL).StartCall(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	if id != "c-123" {
		t.Errorf("id = %q, want c-123", id)
	}

	want := map[string]any{
		"phone_number":        "+33612345678",
		"voice":               DefaultVoice,
		"wait_for_greeting":   false,
		"record":              true,
		"answered_by_enabled": true,
		"max_duration":        float64(DefaultMaxDuration),
		"model":               "base",
		"language":            "fr",
		"voicemail_action":    "hangup",
		"task":                "script",
		"first_sentence":      "Bonjour",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
	md, _ := got["metadata"].(map[string]any)
	if md["contact_id"] != "7" {
		t.Errorf("metadata.contact_id = %v, want 7", md["contact_id"])
	}
}

func TestStartCall_FallsBackToID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"alt-1"}`))
	}))
	defer srv.Close()

	id, err := newTestClient(srv.URL).StartCall(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	if id != "alt-1" {
		t.Errorf("id = %q, want alt-1", id)
	}
}

func TestStartCall_NoID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","message":"insufficient balance"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).StartCall(context.Background(), testRequest())
	if err == nil || !strings.Contains(err.Error(), "insufficient balance") {
		t.Errorf("err = %v, want provider message", err)
	}
}

func TestStartCall_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid phone number"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).StartCall(context.Background(), testRequest())
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ProviderError", err)
	}
	if pe.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", pe.StatusCode)
	}
	if !strings.Contains(pe.Error(), "invalid phone number") {
		t.Errorf("Error() = %q, want response body", pe.Error())
	}
}

func TestStartCall_RateLimitRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"call_id":"c-9"}`))
	}))
	defer srv.Close()

	id, err := newTestClient(srv.URL).StartCall(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	if id != "c-9" || calls.Load() != 3 {
		t.Errorf("id = %q after %d calls, want c-9 after 3", id, calls.Load())
	}
}

func TestStartCall_RateLimitExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).StartCall(context.Background(), testRequest())
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("err = %v, want rate limit error", err)
	}
	if calls.Load() != maxRetries {
		t.Errorf("calls = %d, want %d", calls.Load(), maxRetries)
	}
}

func TestGetCallStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/calls/c-123" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"status":"completed","concatenated_transcript":"user: oui","transcripts":[]}`))
	}))
	defer srv.Close()

	st, err := newTestClient(srv.URL).GetCallStatus(context.Background(), "c-123")
	if err != nil {
		t.Fatalf("GetCallStatus: %v", err)
	}
	if !st.Terminal() || st.Text() != "user: oui" {
		t.Errorf("status = %+v", st)
	}
}

func TestGetCallStatus_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := newTestClient(srv.URL).GetCallStatus(context.Background(), "c-1")
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.StatusCode != 0 {
		t.Errorf("err = %v, want transport ProviderError", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{})
	if c.endpoint != DefaultEndpoint {
		t.Errorf("endpoint = %q", c.endpoint)
	}
	if c.baseURL != "https://api.bland.ai" {
		t.Errorf("baseURL = %q, want https://api.bland.ai", c.baseURL)
	}
	if c.voice != DefaultVoice || c.maxDuration != DefaultMaxDuration {
		t.Errorf("voice/maxDuration defaults not applied: %q/%d", c.voice, c.maxDuration)
	}
}
