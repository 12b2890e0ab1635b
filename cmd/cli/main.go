package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// Process exit codes of the job and cycle commands.
const (
	exitSuccess         = 0
	exitFailed          = 1
	exitAlreadyExecuted = 2
	exitBlocked         = 3
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

type options struct {
	baseURL string
	token   string
	timeout time.Duration
}

func main() {
	err := newRootCmd().Execute()
	if err == nil {
		return
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.msg != "" {
			fmt.Fprintln(os.Stderr, ee.msg)
		}
		os.Exit(ee.code)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(exitFailed)
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "eodctl",
		Short:         "EOD ledger CLI tool",
		Long:          `A command line interface for running and inspecting the end-of-day cycle.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", envOr("EODCTL_URL", "http://localhost:8080"), "Base URL of the EOD ledger API")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("EODCTL_TOKEN"), "Bearer token")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 15*time.Minute, "Request timeout")

	rootCmd.AddCommand(
		newJobCmd(opts),
		newCycleCmd(opts),
		newStatusCmd(opts),
		newBooksCmd(opts),
		newMigrateCmd(),
		newInitDateCmd(),
		newTokenCmd(),
	)
	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
