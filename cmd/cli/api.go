package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iho/eodledger/internal/adapter/http/dto"
	"github.com/iho/eodledger/internal/domain"
)

type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(opts *options) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(opts.baseURL, "/"),
		token:   opts.token,
		http:    &http.Client{Timeout: opts.timeout},
	}
}

// do sends a request and returns the status code and raw body.
func (c *apiClient) do(ctx context.Context, method, path string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, http.NoBody)
	if err != nil {
		return 0, nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// apiError turns a non-job error response into an exitError. A busy cycle
// lock is reported as blocked.
func apiError(status int, body []byte) error {
	var e dto.ErrorResponse
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		msg = e.Error
		if e.Message != "" {
			msg += ": " + e.Message
		}
	}
	code := exitFailed
	if status == http.StatusConflict {
		code = exitBlocked
	}
	return &exitError{code: code, msg: fmt.Sprintf("request failed (status %d): %s", status, msg)}
}

func exitCodeFor(outcome string) int {
	switch domain.JobOutcome(outcome) {
	case domain.OutcomeSuccess:
		return exitSuccess
	case domain.OutcomeAlreadyExecuted:
		return exitAlreadyExecuted
	case domain.OutcomeBlocked:
		return exitBlocked
	default:
		return exitFailed
	}
}

func newJobCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "job <number>",
		Short: "Execute one EOD job (1-9) for the current business date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || !domain.ValidJobNumber(n) {
				return &exitError{code: exitFailed, msg: fmt.Sprintf("invalid job number %q", args[0])}
			}

			status, body, err := newAPIClient(opts).do(cmd.Context(), http.MethodPost, fmt.Sprintf("/api/v1/eod/jobs/%d/execute", n))
			if err != nil {
				return err
			}

			var result dto.JobResultResponse
			if err := json.Unmarshal(body, &result); err != nil || result.Outcome == "" {
				return apiError(status, body)
			}
			printJobResult(cmd.OutOrStdout(), &result)
			if code := exitCodeFor(result.Outcome); code != exitSuccess {
				return &exitError{code: code}
			}
			return nil
		},
	}
}

func newCycleCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Run every pending EOD job in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := newAPIClient(opts).do(cmd.Context(), http.MethodPost, "/api/v1/eod/cycle")
			if err != nil {
				return err
			}

			var cycle dto.CycleResponse
			if err := json.Unmarshal(body, &cycle); err != nil || cycle.Jobs == nil {
				return apiError(status, body)
			}
			out := cmd.OutOrStdout()
			for _, r := range cycle.Jobs {
				printJobResult(out, r)
			}
			if len(cycle.Jobs) == 0 {
				fmt.Fprintln(out, "no jobs pending")
				return nil
			}
			if cycle.Completed {
				fmt.Fprintln(out, "cycle completed")
				return nil
			}
			last := cycle.Jobs[len(cycle.Jobs)-1]
			return &exitError{code: exitCodeFor(last.Outcome)}
		},
	}
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the business date and the status of every job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(opts)

			status, body, err := client.do(cmd.Context(), http.MethodGet, "/api/v1/eod/business-date")
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return apiError(status, body)
			}
			var date dto.BusinessDateResponse
			if err := json.Unmarshal(body, &date); err != nil {
				return fmt.Errorf("decode business date: %w", err)
			}

			status, body, err = client.do(cmd.Context(), http.MethodGet, "/api/v1/eod/jobs")
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return apiError(status, body)
			}
			var jobs []*dto.JobStatusResponse
			if err := json.Unmarshal(body, &jobs); err != nil {
				return fmt.Errorf("decode job statuses: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Business date: %s\n\n", date.BusinessDate)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "JOB\tNAME\tSTATE\tREADY\tRECORDS\tERROR")
			for _, j := range jobs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%d\t%s\n", j.JobNumber, j.Name, j.State, j.CanExecute, j.RecordsProcessed, truncate(j.Error, 60))
			}
			return w.Flush()
		},
	}
}

func newBooksCmd(opts *options) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Check that closing GL balances net to zero",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/eod/books"
			if date != "" {
				path += "?date=" + date
			}
			status, body, err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, path)
			if err != nil {
				return err
			}

			var books dto.BooksResponse
			if (status != http.StatusOK && status != http.StatusConflict) || json.Unmarshal(body, &books) != nil {
				return apiError(status, body)
			}
			out := cmd.OutOrStdout()
			if books.Balanced {
				fmt.Fprintf(out, "Books balanced on %s\n", books.Date)
				return nil
			}
			fmt.Fprintf(out, "Books NOT balanced on %s (imbalance %s)\n", books.Date, books.Imbalance.String())
			return &exitError{code: exitFailed}
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Business date (YYYY-MM-DD); defaults to the current one")
	return cmd
}

func printJobResult(w io.Writer, r *dto.JobResultResponse) {
	fmt.Fprintf(w, "Job %d (%s): %s - %s", r.JobNumber, r.JobName, r.Outcome, r.Message)
	if r.RecordsProcessed > 0 {
		fmt.Fprintf(w, " [%d records]", r.RecordsProcessed)
	}
	fmt.Fprintln(w)
}

func printJSON(w io.Writer, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
