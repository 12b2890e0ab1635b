package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/iho/eodledger/internal/adapter/http/dto"
	"github.com/iho/eodledger/internal/infrastructure/auth"
)

// runCLI executes eodctl against url and returns stdout and the exit code.
func runCLI(t *testing.T, url string, args ...string) (string, int) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--url", url}, args...))

	err := cmd.Execute()
	if err == nil {
		return out.String(), exitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return out.String(), ee.code
	}
	return out.String() + err.Error(), exitFailed
}

func jsonServer(t *testing.T, wantMethod, wantPath string, status int, body any) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != wantMethod || r.URL.Path != wantPath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestJobCommandExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		outcome  string
		wantCode int
	}{
		{name: "success", status: http.StatusOK, outcome: "success", wantCode: exitSuccess},
		{name: "already executed", status: http.StatusOK, outcome: "already_executed", wantCode: exitAlreadyExecuted},
		{name: "blocked", status: http.StatusConflict, outcome: "blocked", wantCode: exitBlocked},
		{name: "failed", status: http.StatusInternalServerError, outcome: "failed", wantCode: exitFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := jsonServer(t, http.MethodPost, "/api/v1/eod/jobs/3/execute", tt.status, dto.JobResultResponse{
				JobNumber: 3,
				JobName:   "Interest Accrual GL Movement",
				Outcome:   tt.outcome,
				Message:   "done",
			})

			out, code := runCLI(t, srv.URL, "job", "3")
			if code != tt.wantCode {
				t.Fatalf("expected exit %d, got %d (%s)", tt.wantCode, code, out)
			}
			if !strings.Contains(out, "Job 3") || !strings.Contains(out, tt.outcome) {
				t.Fatalf("unexpected output %q", out)
			}
		})
	}
}

func TestJobCommandRejectsBadNumber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected, got %s", r.URL.Path)
	}))
	defer srv.Close()

	for _, arg := range []string{"0", "10", "abc"} {
		if _, code := runCLI(t, srv.URL, "job", arg); code != exitFailed {
			t.Fatalf("job %s: expected exit %d, got %d", arg, exitFailed, code)
		}
	}
}

func TestJobCommandLockBusy(t *testing.T) {
	srv := jsonServer(t, http.MethodPost, "/api/v1/eod/jobs/1/execute", http.StatusConflict, dto.ErrorResponse{
		Error:   "failed to execute job",
		Message: "lock not acquired",
	})

	_, code := runCLI(t, srv.URL, "job", "1")
	if code != exitBlocked {
		t.Fatalf("expected exit %d, got %d", exitBlocked, code)
	}
}

func TestCycleCommand(t *testing.T) {
	t.Run("completed", func(t *testing.T) {
		srv := jsonServer(t, http.MethodPost, "/api/v1/eod/cycle", http.StatusOK, dto.CycleResponse{
			Completed: true,
			Jobs: []*dto.JobResultResponse{
				{JobNumber: 8, Outcome: "success", Success: true},
				{JobNumber: 9, Outcome: "success", Success: true},
			},
		})

		out, code := runCLI(t, srv.URL, "cycle")
		if code != exitSuccess {
			t.Fatalf("expected exit 0, got %d (%s)", code, out)
		}
		if !strings.Contains(out, "cycle completed") {
			t.Fatalf("unexpected output %q", out)
		}
	})

	t.Run("stopped at failure", func(t *testing.T) {
		srv := jsonServer(t, http.MethodPost, "/api/v1/eod/cycle", http.StatusInternalServerError, dto.CycleResponse{
			Jobs: []*dto.JobResultResponse{
				{JobNumber: 1, Outcome: "success", Success: true},
				{JobNumber: 2, Outcome: "failed", Message: "rate missing"},
			},
		})

		out, code := runCLI(t, srv.URL, "cycle")
		if code != exitFailed {
			t.Fatalf("expected exit 1, got %d", code)
		}
		if !strings.Contains(out, "rate missing") {
			t.Fatalf("unexpected output %q", out)
		}
	})
}

func TestStatusCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/eod/business-date":
			_ = json.NewEncoder(w).Encode(dto.BusinessDateResponse{BusinessDate: "2025-03-10"})
		case "/api/v1/eod/jobs":
			_ = json.NewEncoder(w).Encode([]*dto.JobStatusResponse{
				{JobNumber: 1, Name: "Account Balance Update", State: "success", RecordsProcessed: 12},
				{JobNumber: 2, Name: "Interest Accrual", State: "pending", CanExecute: true},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	out, code := runCLI(t, srv.URL, "status")
	if code != exitSuccess {
		t.Fatalf("expected exit 0, got %d (%s)", code, out)
	}
	for _, want := range []string{"Business date: 2025-03-10", "Account Balance Update", "Interest Accrual"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output %q", want, out)
		}
	}
}

func TestBooksCommand(t *testing.T) {
	balanced := jsonServer(t, http.MethodGet, "/api/v1/eod/books", http.StatusOK, map[string]any{
		"date": "2025-03-10", "balanced": true, "imbalance": "0",
	})
	if out, code := runCLI(t, balanced.URL, "books"); code != exitSuccess || !strings.Contains(out, "Books balanced") {
		t.Fatalf("balanced: exit %d, output %q", code, out)
	}

	unbalanced := jsonServer(t, http.MethodGet, "/api/v1/eod/books", http.StatusConflict, map[string]any{
		"date": "2025-03-10", "balanced": false, "imbalance": "12.5",
	})
	out, code := runCLI(t, unbalanced.URL, "books", "--date", "2025-03-10")
	if code != exitFailed || !strings.Contains(out, "12.5") {
		t.Fatalf("unbalanced: exit %d, output %q", code, out)
	}
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	out, code := runCLI(t, "http://unused", "token", "--user", "alice", "--role", "operator")
	if code != exitSuccess {
		t.Fatalf("expected exit 0, got %d (%s)", code, out)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	claims, err := auth.NewJWTManager("test-secret", 0).Verify(payload.Token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if op := claims.Operator(); op.ID != "alice" || op.Role != "operator" {
		t.Fatalf("unexpected operator %+v", op)
	}

	if _, code := runCLI(t, "http://unused", "token", "--user", "alice", "--role", "root"); code != exitFailed {
		t.Fatalf("expected invalid role to fail")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("expected short unchanged, got %q", got)
	}

	if got := truncate("longerstring", 6); got != "lon..." {
		t.Fatalf("expected lon..., got %q", got)
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := printJSON(&buf, struct {
		A int `json:"a"`
	}{A: 1}); err != nil {
		t.Fatalf("printJSON: %v", err)
	}

	expected := "{\n  \"a\": 1\n}\n"
	if buf.String() != expected {
		t.Fatalf("expected %q, got %q", expected, buf.String())
	}
}
