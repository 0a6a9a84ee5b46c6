package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aretw0/weft/pkg/task"
	"github.com/spf13/cobra"
)

// maxBody caps how much of each response is read for --until.
const maxBody = 1 << 20

type probe struct {
	Status  int
	Body    any
	Elapsed time.Duration
}

func newPollCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Poll an HTTP endpoint until it answers with the expected status",
		Long: `Issues GET requests to --url every --interval until the response status
equals --until-status, or until the --until expression holds. The expression
sees status, body (decoded JSON) and elapsed_ms, e.g.

  weft poll --url http://jobs/42 --until 'body.state == "done"'

Request failures stop polling unless --continue-on-error is set.
Ctrl+C cancels the poll.`,
		RunE: runPoll,
	}
	cmd.Flags().String("url", "", "Endpoint to poll")
	cmd.Flags().Duration("interval", 0, "Delay between requests (default from poll.interval)")
	cmd.Flags().Int("until-status", http.StatusOK, "Stop when the response has this status")
	cmd.Flags().String("until", "", "Stop when this expression over status, body and elapsed_ms is true")
	cmd.Flags().Bool("continue-on-error", false, "Keep polling after request errors")
	cmd.Flags().Duration("timeout", 0, "Give up after this long (0 waits forever)")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func runPoll(cmd *cobra.Command, args []string) error {
	c, err := openContainer(cmd)
	if err != nil {
		return err
	}
	defer c.Dispose()

	url, _ := cmd.Flags().GetString("url")
	untilStatus, _ := cmd.Flags().GetInt("until-status")
	untilExpr, _ := cmd.Flags().GetString("until")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	interval, _ := cmd.Flags().GetDuration("interval")
	if interval <= 0 {
		interval = c.Config.Poll.Interval
	}
	continueOnError := c.Config.Poll.ContinueOnError
	if cmd.Flags().Changed("continue-on-error") {
		continueOnError, _ = cmd.Flags().GetBool("continue-on-error")
	}

	ctx := cmd.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	isFinished := func(p probe) bool { return p.Status == untilStatus }
	if untilExpr != "" {
		cond, err := compileUntil(untilExpr)
		if err != nil {
			return err
		}
		isFinished = func(p probe) bool {
			ok, err := cond.Match(p)
			if err != nil {
				c.Logger.Warn("Poll condition failed", "err", err)
			}
			return ok
		}
	}

	out := cmd.OutOrStdout()
	client := &http.Client{Timeout: 30 * time.Second}
	start := time.Now()

	poller := task.Poll(c.Tasks, func(ctx context.Context, url string) (probe, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return probe{}, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return probe{}, err
		}
		defer resp.Body.Close()

		p := probe{Status: resp.StatusCode, Elapsed: time.Since(start)}
		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		if err != nil {
			return p, err
		}
		if json.Unmarshal(raw, &p.Body) != nil {
			p.Body = string(raw)
		}
		return p, nil
	}, task.PollOptions[probe]{
		Interval:        interval,
		ContinueOnError: continueOnError,
		OnFrameResult: func(p probe) {
			fmt.Fprintf(out, "%6s  %d\n", p.Elapsed.Round(time.Millisecond), p.Status)
		},
		OnError: func(err error) {
			c.Logger.Warn("Poll request failed", "err", err)
		},
		IsFinished: isFinished,
	})

	result, err := poller.Run(ctx, url)
	if err != nil {
		return fmt.Errorf("polling %s: %w", url, err)
	}
	fmt.Fprintf(out, "reached status %d after %s\n", result.Status, result.Elapsed.Round(time.Millisecond))
	return nil
}
