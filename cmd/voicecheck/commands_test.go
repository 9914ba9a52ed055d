package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/voicecheck/internal/campaign"
	"github.com/kalambet/voicecheck/internal/storage"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

// useServer points newAPIClient at ts for the duration of the test.
func useServer(t *testing.T, ts *testServer) {
	t.Helper()
	orig := newAPIClient
	newAPIClient = func() (*apiClient, error) { return ts.client(), nil }
	t.Cleanup(func() { newAPIClient = orig })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

var ctx = context.Background()

func TestCampaignStart_AllPending(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /campaigns": `{"id":"job-1","type":"campaign_run","status":"pending"}`,
	})
	useServer(t, ts)

	if _, err := execute(t, "campaign", "start"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Method != "POST" || r.Path != "/campaigns" {
		t.Errorf("request = %s %s", r.Method, r.Path)
	}
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}
	if strings.TrimSpace(r.Body) != "{}" {
		t.Errorf("body = %q, want {}", r.Body)
	}
}

func TestCampaignStart_ContactIDs(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /campaigns": `{"id":"job-2"}`,
	})
	useServer(t, ts)

	if _, err := execute(t, "campaign", "start", "3", "7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var body struct {
		ContactIDs []string `json:"contact_ids"`
	}
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if len(body.ContactIDs) != 2 || body.ContactIDs[0] != "3" || body.ContactIDs[1] != "7" {
		t.Errorf("contact_ids = %v", body.ContactIDs)
	}
}

func TestCampaignStart_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":{"message":"no pending contacts to call","type":"conflict"}}`))
	}))
	defer ts.Close()

	orig := newAPIClient
	newAPIClient = func() (*apiClient, error) {
		return &apiClient{baseURL: ts.URL, token: "t", httpClient: ts.Client()}, nil
	}
	defer func() { newAPIClient = orig }()

	_, err := execute(t, "campaign", "start")
	if err == nil || !strings.Contains(err.Error(), "no pending contacts") {
		t.Errorf("err = %v, want server message", err)
	}
}

func TestCampaignList(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /campaigns": `[{"id":"job-1","status":"completed","created_at":"2026-01-02T10:00:00Z"},{"id":"job-2","status":"failed","last_error":"campaign interrupted","created_at":"2026-01-02T11:00:00Z"}]`,
	})
	useServer(t, ts)

	old := noColor
	noColor = true
	defer func() { noColor = old }()

	out, err := execute(t, "campaign", "list", "--limit", "5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.requests[0].Path != "/campaigns?limit=5" {
		t.Errorf("path = %q", ts.requests[0].Path)
	}
	if !strings.Contains(out, "job-1") || !strings.Contains(out, "campaign interrupted") {
		t.Errorf("output = %q", out)
	}
}

func TestCampaignStatus(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /campaigns/job-9": `{"id":"job-9","type":"campaign_run","status":"running"}`,
	})
	useServer(t, ts)

	out, err := execute(t, "campaign", "status", "job-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"status": "running"`) {
		t.Errorf("output = %q", out)
	}
}

func TestImport_MissingArgs(t *testing.T) {
	_, err := execute(t, "import")
	if err == nil {
		t.Fatal("expected error for missing file argument")
	}
}

func TestAPIClient_SendsBearerToken(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
	})
	client := ts.client()
	client.token = "my-secret-token"

	if _, err := client.get(ctx, "/health"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.requests[0].Auth != "Bearer my-secret-token" {
		t.Errorf("auth = %q, want 'Bearer my-secret-token'", ts.requests[0].Auth)
	}
}

func TestAPIClient_ServerDown(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := &apiClient{baseURL: ts.URL, token: "t", httpClient: ts.Client()}
	ts.Close()

	_, err := client.get(ctx, "/summary")
	if err == nil || !strings.Contains(err.Error(), "voicecheck serve") {
		t.Errorf("err = %v, want hint to start the server", err)
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"error":{"message":"invalid or missing bearer token","type":"authentication_error"}}`))
	}))
	defer ts.Close()

	client := &apiClient{baseURL: ts.URL, token: "bad-token", httpClient: ts.Client()}
	resp, err := client.get(ctx, "/summary")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "bearer token") {
		t.Errorf("error = %q, want status and message", err.Error())
	}
}

func TestImportExportRoundTrip(t *testing.T) {
	store := openTestStore(t)

	n, err := importContacts(store, strings.NewReader("nom,prenom,telephone\nDupont,Jean,33612345678\nMartin,Marie,+33687654321\n"))
	if err != nil {
		t.Fatalf("importContacts: %v", err)
	}
	if n != 2 {
		t.Fatalf("imported %d, want 2", n)
	}

	if _, err := store.AppendOutcome(campaign.Outcome{ContactID: "1", CallID: "c-1", Consent: campaign.False, IdentityConfirmed: campaign.True, Rationale: "refus"}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	rows, err := exportResults(store, &buf)
	if err != nil {
		t.Fatalf("exportResults: %v", err)
	}
	if rows != 1 {
		t.Errorf("exported %d rows, want 1", rows)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parsing export: %v", err)
	}
	if len(records) != 2 || records[1][2] != "Dupont" || records[1][4] != "+33612345678" {
		t.Errorf("records = %v", records)
	}
}

func TestImportContacts_Errors(t *testing.T) {
	store := openTestStore(t)

	if _, err := importContacts(store, strings.NewReader("a,b\n1,2\n")); err == nil {
		t.Error("expected error for missing columns")
	}
	if _, err := importContacts(store, strings.NewReader("nom,prenom,telephone\n")); err == nil {
		t.Error("expected error for empty file")
	}
}

func TestRecallReport(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.AddContacts([]campaign.Contact{
		{FamilyName: "Dupont", GivenName: "Jean", Phone: "+1"},
		{FamilyName: "Martin", GivenName: "Marie", Phone: "+2"},
	}); err != nil {
		t.Fatal(err)
	}
	for _, o := range []campaign.Outcome{
		{ContactID: "1", Consent: campaign.True, IdentityConfirmed: campaign.True},
		{ContactID: "2", Rationale: "Répondeur détecté", Consent: campaign.False, IdentityConfirmed: campaign.False},
	} {
		if _, err := store.AppendOutcome(o); err != nil {
			t.Fatal(err)
		}
	}
	for _, id := range []string{"1", "2"} {
		if err := store.SetContactStatus(id, campaign.StatusCompleted); err != nil {
			t.Fatal(err)
		}
	}

	var out bytes.Buffer
	if err := recallReport(store, &out, false); err != nil {
		t.Fatalf("recallReport: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "Marie Martin") || strings.Contains(got, "Jean Dupont") {
		t.Errorf("output = %q", got)
	}
	if c, _ := store.GetContact("2"); c.Status != campaign.StatusCompleted {
		t.Error("listing must not change status")
	}

	out.Reset()
	if err := recallReport(store, &out, true); err != nil {
		t.Fatalf("recallReport requeue: %v", err)
	}
	if c, _ := store.GetContact("2"); c.Status != campaign.StatusPending {
		t.Errorf("contact 2 status = %q, want pending", c.Status)
	}
}

func TestRecallReport_Empty(t *testing.T) {
	var out bytes.Buffer
	if err := recallReport(openTestStore(t), &out, true); err != nil {
		t.Fatalf("recallReport: %v", err)
	}
	if !strings.Contains(out.String(), "No contacts to recall") {
		t.Errorf("output = %q", out.String())
	}
}

func TestSelectContacts(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.AddContacts([]campaign.Contact{{Phone: "+1"}, {Phone: "+2"}}); err != nil {
		t.Fatal(err)
	}
	if err := store.SetContactStatus("1", campaign.StatusCompleted); err != nil {
		t.Fatal(err)
	}

	pending, err := selectContacts(store, nil)
	if err != nil || len(pending) != 1 || pending[0].ID != "2" {
		t.Errorf("pending = %+v, %v", pending, err)
	}

	chosen, err := selectContacts(store, []string{"1", " 2"})
	if err != nil || len(chosen) != 2 {
		t.Errorf("chosen = %+v, %v", chosen, err)
	}

	if _, err := selectContacts(store, []string{"9"}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

type fakeRunner struct {
	events []campaign.Event
}

func (f fakeRunner) Run(_ context.Context, _ []campaign.Contact) iter.Seq[campaign.Event] {
	return func(yield func(campaign.Event) bool) {
		for _, ev := range f.events {
			if !yield(ev) {
				return
			}
		}
	}
}

func TestRunCampaign_PrintsAndCounts(t *testing.T) {
	old := noColor
	noColor = true
	defer func() { noColor = old }()

	jean := campaign.Contact{ID: "1", GivenName: "Jean", FamilyName: "Dupont"}
	marie := campaign.Contact{ID: "2", GivenName: "Marie", FamilyName: "Martin"}
	paul := campaign.Contact{ID: "3", GivenName: "Paul", FamilyName: "Petit"}
	r := fakeRunner{events: []campaign.Event{
		{Index: 1, Total: 3, Contact: jean, Kind: campaign.EventProcessed,
			Outcome: &campaign.Outcome{Consent: campaign.True, IdentityConfirmed: campaign.True}},
		{Index: 2, Total: 3, Contact: marie, Kind: campaign.EventProcessed,
			Outcome: &campaign.Outcome{NoResponse: true}},
		{Index: 3, Total: 3, Contact: paul, Kind: campaign.EventCallInitiationFailed,
			Err: campaign.ErrCallInitiation},
	}}

	var out bytes.Buffer
	report := runCampaign(ctx, r, []campaign.Contact{jean, marie, paul}, &out)

	if report.Contacts != 3 || report.Processed != 2 || report.Verified != 1 || report.InitiationFailures != 1 {
		t.Errorf("report = %+v", report)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), out.String())
	}
	if lines[0] != "[1/3] Jean Dupont: verified" {
		t.Errorf("line 1 = %q", lines[0])
	}
	if lines[1] != "[2/3] Marie Martin: no response" {
		t.Errorf("line 2 = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "[3/3] Paul Petit: call_initiation_failed") {
		t.Errorf("line 3 = %q", lines[2])
	}
}

func TestWriteSummary(t *testing.T) {
	old := noColor
	noColor = true
	defer func() { noColor = old }()

	var out bytes.Buffer
	writeSummary(&out, campaign.Summary{TotalContacts: 4, TotalCalls: 2, Verified: 1, SuccessRate: 50})
	got := out.String()
	for _, want := range []string{"Contacts", "Calls", "(50.00%)"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary output missing %q:\n%s", want, got)
		}
	}
}

func TestColorize(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if result := colorize(colorRed, "error"); strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}

	noColor = false
	if result := colorize(colorRed, "error"); !strings.Contains(result, "\033[31m") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestRootCommands(t *testing.T) {
	want := []string{"serve", "run", "import", "export", "summary", "recall", "campaign", "config"}
	have := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("missing command %q", name)
		}
	}
}
