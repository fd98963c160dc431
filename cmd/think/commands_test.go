package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kalambet/think/internal/api"
	"github.com/kalambet/think/internal/criteria"
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

var ctx = context.Background()

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	})
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// runCLI executes the root command against ts and returns stdout.
func runCLI(t *testing.T, ts *testServer, args ...string) (string, error) {
	t.Helper()

	orig := newAPIClient
	newAPIClient = func() (*apiClient, error) { return ts.client(), nil }
	t.Cleanup(func() {
		newAPIClient = orig
		resetFlags(rootCmd)
	})

	noColor = true
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

const evalJSON = `{"id":"eval-0001-abcd","text":"hello there","criteria":{"true":true,"helpful":false,"important":false,"necessary":false,"kind":true},"percentage":40,"timestamp":"2025-03-10T09:00:00Z","canDelete":false,"band":{"color":"#FF7043","message":"Think twice"},"deletable_at":"2025-03-24T09:00:00Z"}`

func TestEvaluateCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /evaluations": evalJSON,
	})

	out, err := runCLI(t, ts, "evaluate", "hello", "there", "--true", "--kind")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Method != "POST" || r.Path != "/evaluations" {
		t.Errorf("request = %s %s", r.Method, r.Path)
	}
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth header = %q", r.Auth)
	}

	var req api.EvaluateRequest
	if err := json.Unmarshal([]byte(r.Body), &req); err != nil {
		t.Fatalf("decoding request body: %v", err)
	}
	want := api.EvaluateRequest{
		Text:     "hello there",
		Criteria: criteria.Set{True: true, Kind: true},
	}
	if diff := cmp.Diff(want, req); diff != "" {
		t.Errorf("request body mismatch (-want +got):\n%s", diff)
	}

	for _, s := range []string{"40%  Think twice", "✓ True", "✗ Helpful", "✓ Kind", "eval-0001-abcd"} {
		if !strings.Contains(out, s) {
			t.Errorf("output missing %q:\n%s", s, out)
		}
	}
}

func TestEvaluateCommand_TextFlagWins(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /evaluations": evalJSON,
	})

	if _, err := runCLI(t, ts, "evaluate", "ignored", "--text", "from flag"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	var req api.EvaluateRequest
	json.Unmarshal([]byte(ts.requests[0].Body), &req)
	if req.Text != "from flag" {
		t.Errorf("text = %q, want %q", req.Text, "from flag")
	}
	if req.Criteria.Count() != 0 {
		t.Errorf("criteria = %+v, want none", req.Criteria)
	}
}

func TestScoreCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /score": `{"percentage":100,"color":"#4CAF50","message":"Perfect! Say it with confidence"}`,
	})

	out, err := runCLI(t, ts, "score", "--true", "--helpful", "--important", "--necessary", "--kind")
	if err != nil {
		t.Fatalf("score: %v", err)
	}

	var req api.ScoreRequest
	json.Unmarshal([]byte(ts.requests[0].Body), &req)
	if req.Criteria.Count() != criteria.Total {
		t.Errorf("criteria count = %d, want %d", req.Criteria.Count(), criteria.Total)
	}
	if !strings.Contains(out, "100%  Perfect! Say it with confidence") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestHistoryList(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /evaluations": `[` + evalJSON + `,{"id":"eval-0002-efgh","text":"older","criteria":{},"percentage":0,"timestamp":"2025-03-01T09:00:00Z","canDelete":true}]`,
	})

	out, err := runCLI(t, ts, "history", "list", "--limit", "5")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}

	if ts.requests[0].Path != "/evaluations?limit=5" {
		t.Errorf("path = %q", ts.requests[0].Path)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "🔒") || !strings.Contains(lines[0], "eval-000") {
		t.Errorf("first line should be the protected record: %q", lines[0])
	}
	if !strings.Contains(lines[0], "T···K") {
		t.Errorf("first line missing criteria initials: %q", lines[0])
	}
	if strings.HasPrefix(lines[1], "🔒") {
		t.Errorf("second line should not be locked: %q", lines[1])
	}
}

func TestHistoryList_Empty(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /evaluations": `[]`,
	})

	out, err := runCLI(t, ts, "history", "list")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	if ts.requests[0].Path != "/evaluations?limit=20" {
		t.Errorf("default limit not sent: %q", ts.requests[0].Path)
	}
	if !strings.Contains(out, "No evaluations yet.") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestHistoryDelete(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"DELETE /evaluations/eval-1": `{"status":"deleted"}`,
	})

	if _, err := runCLI(t, ts, "history", "delete", "eval-1"); err != nil {
		t.Fatalf("history delete: %v", err)
	}
	if ts.requests[0].Method != "DELETE" || ts.requests[0].Path != "/evaluations/eval-1" {
		t.Errorf("request = %+v", ts.requests[0])
	}
}

func TestHistoryDelete_Protected(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"DELETE /evaluations/eval-1": `{"status":"protected","deletable_at":"2025-03-24T09:00:00Z"}`,
	})

	if _, err := runCLI(t, ts, "history", "delete", "eval-1"); err != nil {
		t.Fatalf("protected delete should not fail: %v", err)
	}
}

func TestHistoryDelete_NotFound(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	_, err := runCLI(t, ts, "history", "delete", "missing")
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected apiError, got %v", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Type != "not_found" {
		t.Errorf("apiError = %+v", apiErr)
	}
}

func TestHistoryClear_RequiresConfirm(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /evaluations/deletion-summary": `{"deletable":3,"protected":1}`,
		"POST /evaluations/clear":           `{"deleted":3,"protected":1}`,
	})

	if _, err := runCLI(t, ts, "history", "clear"); err != nil {
		t.Fatalf("history clear: %v", err)
	}
	if len(ts.requests) != 1 {
		t.Fatalf("expected only the summary request, got %d requests", len(ts.requests))
	}
}

func TestHistoryClear_Confirmed(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /evaluations/deletion-summary": `{"deletable":3,"protected":1}`,
		"POST /evaluations/clear":           `{"deleted":3,"protected":1}`,
	})

	if _, err := runCLI(t, ts, "history", "clear", "--confirm"); err != nil {
		t.Fatalf("history clear: %v", err)
	}
	if len(ts.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(ts.requests))
	}
	if ts.requests[1].Method != "POST" || ts.requests[1].Path != "/evaluations/clear" {
		t.Errorf("second request = %s %s", ts.requests[1].Method, ts.requests[1].Path)
	}
}

func TestHistoryClear_NothingDeletable(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /evaluations/deletion-summary": `{"deletable":0,"protected":2}`,
	})

	out, err := runCLI(t, ts, "history", "clear", "--confirm")
	if err != nil {
		t.Fatalf("history clear: %v", err)
	}
	if len(ts.requests) != 1 {
		t.Errorf("expected no clear request, got %d requests", len(ts.requests))
	}
	if !strings.Contains(out, "Nothing to delete (2 protected).") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestStatsCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /stats": `{
			"overall":{"total":4,"avg_percentage":40,"perfect_count":1,"perfect_rate":25},
			"keep_to_yourself":{"total_keep_to_yourself":1,"overall_score":75,"recent_trend":"stable"},
			"breakdown":{"by_band":{},"by_criterion":{"true":3,"helpful":1,"important":1,"necessary":1,"kind":2}}
		}`,
	})

	out, err := runCLI(t, ts, "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	for _, s := range []string{
		"Evaluations: 4",
		"Average score: 40%",
		"Perfect: 1 (25%)",
		"Keep-to-yourself score: 75% (1 kept to yourself, trend stable)",
		"True       3/4",
		"Kind       2/4",
	} {
		if !strings.Contains(out, s) {
			t.Errorf("output missing %q:\n%s", s, out)
		}
	}
}

func TestStatsCommand_Empty(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /stats": `{"overall":null,"keep_to_yourself":{"total_keep_to_yourself":0,"overall_score":100,"recent_trend":"stable"},"breakdown":{}}`,
	})

	out, err := runCLI(t, ts, "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(out, "No evaluations yet.") {
		t.Errorf("unexpected output: %q", out)
	}
	if strings.Contains(out, "Criteria met") {
		t.Errorf("breakdown should be hidden for an empty history: %q", out)
	}
}

func TestProgressCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /progression": `{
			"start_date":"2025-03-08T00:00:00Z","consecutive_days":3,"last_active_date":"2025-03-10T00:00:00Z",
			"please_unlocked":false,"really_unlocked":false,
			"tiers":[
				{"id":"please","name":"P.L.E.A.S.E.","threshold":14,"unlocked":false,"days_until":11},
				{"id":"really","name":"R.E.A.L.L.Y.","threshold":42,"unlocked":false,"days_until":39}
			]
		}`,
	})

	out, err := runCLI(t, ts, "progress")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	for _, s := range []string{"Streak: 3 days", "P.L.E.A.S.E. in 11 days", "R.E.A.L.L.Y. in 39 days"} {
		if !strings.Contains(out, s) {
			t.Errorf("output missing %q:\n%s", s, out)
		}
	}
}

func TestSessionShow_NoSession(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /session": `{"session":{"name":""},"onboarding_complete":false}`,
	})

	out, err := runCLI(t, ts, "session", "show")
	if err != nil {
		t.Fatalf("session show: %v", err)
	}
	if !strings.Contains(out, "No session yet.") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestSessionShow(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /session": `{"session":{"name":"Ada","email":"ada@example.com"},"onboarding_complete":true}`,
	})

	out, err := runCLI(t, ts, "session", "show")
	if err != nil {
		t.Fatalf("session show: %v", err)
	}
	if !strings.Contains(out, "Name: Ada") || !strings.Contains(out, "Email: ada@example.com") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestSessionCreate(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /session": `{"session":{"name":"Ada"},"onboarding_complete":true}`,
	})

	if _, err := runCLI(t, ts, "session", "create", "--name", "Ada"); err != nil {
		t.Fatalf("session create: %v", err)
	}

	var req api.SessionRequest
	json.Unmarshal([]byte(ts.requests[0].Body), &req)
	if diff := cmp.Diff(api.SessionRequest{Name: "Ada"}, req); diff != "" {
		t.Errorf("request body mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionCreate_NameRequired(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	if _, err := runCLI(t, ts, "session", "create", "--name", "  "); err == nil {
		t.Fatal("expected error for blank name")
	}
	if len(ts.requests) != 0 {
		t.Errorf("no request should be sent, got %d", len(ts.requests))
	}
}

func TestSessionSet(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"PATCH /session": `{"session":{"name":"Ada","email":"ada@lovelace.org"},"onboarding_complete":true}`,
	})

	if _, err := runCLI(t, ts, "session", "set", "--email", "ada@lovelace.org"); err != nil {
		t.Fatalf("session set: %v", err)
	}

	r := ts.requests[0]
	if r.Method != "PATCH" || r.Path != "/session" {
		t.Errorf("request = %s %s", r.Method, r.Path)
	}
	if want := `{"name":null,"email":"ada@lovelace.org"}`; r.Body != want {
		t.Errorf("body = %s, want %s", r.Body, want)
	}
}

func TestSessionSet_ClearEmail(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"PATCH /session": `{"session":{"name":"Ada"},"onboarding_complete":true}`,
	})

	if _, err := runCLI(t, ts, "session", "set", "--email="); err != nil {
		t.Fatalf("session set: %v", err)
	}
	if want := `{"name":null,"email":""}`; ts.requests[0].Body != want {
		t.Errorf("body = %s, want %s", ts.requests[0].Body, want)
	}
}

func TestSessionSet_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no flags", []string{"session", "set"}},
		{"blank name", []string{"session", "set", "--name", "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, map[string]string{})
			if _, err := runCLI(t, ts, tt.args...); err == nil {
				t.Fatal("expected error")
			}
			if len(ts.requests) != 0 {
				t.Errorf("no request should be sent, got %d", len(ts.requests))
			}
		})
	}
}

func TestLastSavedLabel(t *testing.T) {
	if got := lastSavedLabel(nil); got != "never" {
		t.Errorf("lastSavedLabel(nil) = %q", got)
	}
	ts := time.Date(2025, 3, 10, 9, 30, 0, 0, time.Local)
	if got := lastSavedLabel(&ts); got != "2025-03-10 09:30:00" {
		t.Errorf("lastSavedLabel = %q", got)
	}
}

func TestDataExport_ToFile(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /export": "exported_at: 2025-03-10T09:00:00Z\nevaluations: []\n",
	})

	path := filepath.Join(t.TempDir(), "think.yaml")
	if _, err := runCLI(t, ts, "data", "export", "--format", "yml", "--output", path); err != nil {
		t.Fatalf("data export: %v", err)
	}

	if ts.requests[0].Path != "/export?format=yaml" {
		t.Errorf("path = %q", ts.requests[0].Path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	if !strings.HasPrefix(string(data), "exported_at:") {
		t.Errorf("unexpected file contents: %q", data)
	}
}

func TestDataExport_Stdout(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /export": `{"id":"a"}` + "\n" + `{"id":"b"}` + "\n",
	})

	out, err := runCLI(t, ts, "data", "export")
	if err != nil {
		t.Fatalf("data export: %v", err)
	}
	if ts.requests[0].Path != "/export?format=jsonl" {
		t.Errorf("path = %q", ts.requests[0].Path)
	}
	if out != `{"id":"a"}`+"\n"+`{"id":"b"}`+"\n" {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestDataExport_BadFormat(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	if _, err := runCLI(t, ts, "data", "export", "--format", "csv"); err == nil {
		t.Fatal("expected error for unknown format")
	}
	if len(ts.requests) != 0 {
		t.Errorf("no request should be sent, got %d", len(ts.requests))
	}
}

func TestClient_ServerUnreachable(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	client := ts.client()
	ts.server.Close()

	_, err := client.get(ctx, "/health")
	if err == nil || !strings.Contains(err.Error(), "is think running?") {
		t.Errorf("expected unreachable error, got %v", err)
	}
}

func TestReadError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantMsg  string
		wantType string
	}{
		{"envelope", 400, `{"error":{"message":"bad input","type":"invalid_request_error"}}`, "bad input", "invalid_request_error"},
		{"plain text", 502, "upstream down\n", "upstream down", ""},
		{"empty envelope", 500, `{"error":{}}`, `{"error":{}}`, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := &http.Response{
				StatusCode: tc.status,
				Body:       io.NopCloser(strings.NewReader(tc.body)),
			}
			err := readError(resp)
			var apiErr *apiError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected apiError, got %T", err)
			}
			if apiErr.Status != tc.status || apiErr.Message != tc.wantMsg || apiErr.Type != tc.wantType {
				t.Errorf("apiError = %+v", apiErr)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"line one\nline two", 50, "line one line two"},
		{"abcdefghij", 5, "abcd…"},
		{"héllo wörld", 6, "héllo…"},
	}
	for _, tc := range tests {
		if got := truncate(tc.in, tc.n); got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}

func TestFormatChecks(t *testing.T) {
	noColor = true
	if got := formatChecks(criteria.Set{True: true, Necessary: true}); got != "T··N·" {
		t.Errorf("formatChecks = %q", got)
	}
	if got := formatChecks(criteria.Set{True: true, Helpful: true, Important: true, Necessary: true, Kind: true}); got != "THINK" {
		t.Errorf("formatChecks = %q", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]string{
		"debug": "DEBUG",
		"warn":  "WARN",
		"ERROR": "ERROR",
		"bogus": "INFO",
		"":      "INFO",
	}
	for in, want := range tests {
		if got := parseLogLevel(in).String(); got != want {
			t.Errorf("parseLogLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestPIDFile(t *testing.T) {
	path := pidFilePath(filepath.Join(t.TempDir(), "nested"))

	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	pid, err := readPIDFile(path)
	if err != nil {
		t.Fatalf("readPIDFile: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}

	removePIDFile(path)
	if _, err := readPIDFile(path); err == nil {
		t.Error("expected error after removal")
	}
}
