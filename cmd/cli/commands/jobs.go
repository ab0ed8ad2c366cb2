package commands

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/celestiaorg/descgen/internal/events"
	"github.com/celestiaorg/descgen/internal/history"
	"github.com/celestiaorg/descgen/internal/logger"
	"github.com/celestiaorg/descgen/internal/selection"
	"github.com/celestiaorg/descgen/internal/submission"
	"github.com/celestiaorg/descgen/internal/tracker"
	"github.com/celestiaorg/descgen/internal/types"
)

// flag names
const (
	flagID        = "id"
	flagItems     = "items"
	flagItemsFile = "items-file"
	flagStyle     = "style"
	flagLanguage  = "language"
	flagMode      = "mode"
	flagWatch     = "watch"
	flagWait      = "wait"
	flagNoCost    = "no-cost"
	flagTimeout   = "timeout"
	flagPage      = "page"
	flagLimit     = "limit"
	flagStatus    = "status"
	flagFrom      = "from"
	flagTo        = "to"
)

func newJobsCmd() *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage generation jobs",
	}

	jobsCmd.AddCommand(
		newSubmitJobCmd(),
		newGetJobCmd(),
		newJobItemsCmd(),
		newCancelJobCmd(),
		newWatchJobCmd(),
		newListJobsCmd(),
	)
	return jobsCmd
}

func addWatchFlags(cmd *cobra.Command) {
	cmd.Flags().Bool(flagNoCost, false, "Do not wait for the cost estimate")
	cmd.Flags().Duration(flagTimeout, 0, "Give up watching after this long (0 waits until the job finishes)")
}

func newSubmitJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit items for description generation",
		Long: `Submit creates one generation job for the given items. Items beyond the
selection capacity are skipped with a warning.`,
		RunE: runSubmit,
	}
	cmd.Flags().StringSliceP(flagItems, "i", nil, "Comma separated item IDs")
	cmd.Flags().StringP(flagItemsFile, "f", "", "File with item IDs, one per line or a JSON array")
	cmd.Flags().String(flagStyle, string(types.StyleProfessional), "Description style (professional, casual, sales-focused)")
	cmd.Flags().String(flagLanguage, string(types.LanguagePL), "Description language (pl, en)")
	cmd.Flags().String(flagMode, string(types.PublicationModeDraft), "Publication mode (draft, published)")
	cmd.Flags().BoolP(flagWatch, "w", false, "Track the job until it finishes")
	addWatchFlags(cmd)
	return cmd
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	ids, _ := cmd.Flags().GetStringSlice(flagItems)
	itemsFile, _ := cmd.Flags().GetString(flagItemsFile)
	if itemsFile != "" {
		fromFile, err := readItemIDs(itemsFile)
		if err != nil {
			return err
		}
		ids = append(ids, fromFile...)
	}

	style, _ := cmd.Flags().GetString(flagStyle)
	language, _ := cmd.Flags().GetString(flagLanguage)
	mode, _ := cmd.Flags().GetString(flagMode)

	sel := selection.NewManager(cfg.SelectionCapacity)
	sel.OnLimitReached(func(attempted string) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: selection limit of %d items reached, skipping %s and later items\n",
			sel.Capacity(), attempted)
	})
	sel.ToggleAll(ids)

	coordinator := submission.NewCoordinator(apiClient)
	res, err := coordinator.SubmitSelection(cmd.Context(), sel, submission.Params{
		Style:           types.Style(style),
		Language:        types.Language(language),
		PublicationMode: types.PublicationMode(mode),
	})
	if err != nil {
		return fmt.Errorf("error submitting job: %w", err)
	}
	if err := printJSON(cmd, res); err != nil {
		return err
	}

	if watch, _ := cmd.Flags().GetBool(flagWatch); watch {
		return watchAndPrint(cmd, res.JobID, false)
	}
	return nil
}

func newGetJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Get a specific job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			jobID, _ := cmd.Flags().GetString(flagID)

			job, err := apiClient.GetJob(cmd.Context(), jobID)
			if err != nil {
				return fmt.Errorf("error fetching job: %w", err)
			}
			return printJSON(cmd, job)
		},
	}
	cmd.Flags().String(flagID, "", "Job ID to fetch")
	_ = cmd.MarkFlagRequired(flagID)
	return cmd
}

func newJobItemsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "List the items of a job with their status and cost",
		RunE: func(cmd *cobra.Command, _ []string) error {
			jobID, _ := cmd.Flags().GetString(flagID)

			items, err := apiClient.ListJobItems(cmd.Context(), jobID)
			if err != nil {
				return fmt.Errorf("error fetching job items: %w", err)
			}
			return printJSON(cmd, jobItemsOutput{
				JobID:   jobID,
				Items:   items,
				Summary: types.SummarizeItems(items),
			})
		},
	}
	cmd.Flags().String(flagID, "", "Job ID")
	_ = cmd.MarkFlagRequired(flagID)
	return cmd
}

func newCancelJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Request cancellation of a job",
		Long: `Cancel sends a single cancel request. The job status is only changed by the
server; use --wait to track the job until it reaches a terminal status.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			jobID, _ := cmd.Flags().GetString(flagID)

			if wait, _ := cmd.Flags().GetBool(flagWait); wait {
				return watchAndPrint(cmd, jobID, true)
			}

			if err := apiClient.CancelJob(cmd.Context(), jobID); err != nil {
				return fmt.Errorf("error cancelling job: %w", err)
			}
			return printJSON(cmd, map[string]interface{}{
				"jobId":           jobID,
				"cancelRequested": true,
			})
		},
	}
	cmd.Flags().String(flagID, "", "Job ID to cancel")
	cmd.Flags().Bool(flagWait, false, "Track the job until the cancellation is observed")
	addWatchFlags(cmd)
	_ = cmd.MarkFlagRequired(flagID)
	return cmd
}

func newWatchJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Track a job until it finishes and its cost estimate is known",
		RunE: func(cmd *cobra.Command, _ []string) error {
			jobID, _ := cmd.Flags().GetString(flagID)
			return watchAndPrint(cmd, jobID, false)
		},
	}
	cmd.Flags().String(flagID, "", "Job ID to watch")
	addWatchFlags(cmd)
	_ = cmd.MarkFlagRequired(flagID)
	return cmd
}

func newListJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List past jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, _ := cmd.Flags().GetInt(flagPage)
			limit, _ := cmd.Flags().GetInt(flagLimit)
			status, _ := cmd.Flags().GetString(flagStatus)
			from, _ := cmd.Flags().GetString(flagFrom)
			to, _ := cmd.Flags().GetString(flagTo)

			params := history.Params{
				Page:   page,
				Limit:  limit,
				Status: types.JobStatus(status),
			}
			var err error
			if params.DateFrom, err = parseDate(flagFrom, from); err != nil {
				return err
			}
			if params.DateTo, err = parseDate(flagTo, to); err != nil {
				return err
			}
			if err := params.Validate(); err != nil {
				return err
			}

			list, err := history.NewQuery(apiClient, params).Fetch(cmd.Context())
			if err != nil {
				return fmt.Errorf("error fetching jobs: %w", err)
			}
			return printJSON(cmd, list)
		},
	}
	cmd.Flags().IntP(flagPage, "p", 1, "Page number")
	cmd.Flags().IntP(flagLimit, "l", history.DefaultLimit, "Jobs per page")
	cmd.Flags().String(flagStatus, "", "Filter by status (pending, processing, completed, failed, cancelled)")
	cmd.Flags().String(flagFrom, "", "Only jobs created on or after this date (YYYY-MM-DD)")
	cmd.Flags().String(flagTo, "", "Only jobs created on or before this date (YYYY-MM-DD)")
	return cmd
}

// watchAndPrint tracks jobID until it is terminal and its cost estimate is
// settled, optionally sending a cancel request first, and prints the final state.
func watchAndPrint(cmd *cobra.Command, jobID string, cancel bool) error {
	noCost, _ := cmd.Flags().GetBool(flagNoCost)
	timeout, _ := cmd.Flags().GetDuration(flagTimeout)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, timeout)
		defer stop()
	}

	tr := tracker.New(apiClient, tracker.Options{
		PollInterval:    cfg.PollInterval,
		CostInterval:    cfg.CostPollInterval,
		CostMaxAttempts: cfg.CostMaxAttempts,
		CostDisabled:    noCost || cancel,
	})
	defer tr.Close()
	tr.Bus().SubscribeAll(logEvent)

	if err := tr.Attach(ctx, jobID, nil); err != nil {
		return err
	}
	if cancel {
		if err := tr.Cancel(ctx); err != nil {
			return fmt.Errorf("error cancelling job: %w", err)
		}
	}

	snap, err := tr.Wait(ctx)
	if printErr := printJSON(cmd, newWatchOutput(snap)); printErr != nil {
		return printErr
	}
	if err != nil {
		return fmt.Errorf("stopped watching job %s: %w", jobID, err)
	}
	return nil
}

func logEvent(_ context.Context, e events.Event) error {
	fields := map[string]interface{}{"job_id": e.JobID}
	if e.Job != nil {
		fields["status"] = e.Job.Status
		fields["progress"] = e.Job.Progress
	}
	if e.Summary != nil {
		fields["completed"] = e.Summary.Completed
		fields["total"] = e.Summary.Total
	}
	if e.Err != nil {
		fields["error"] = e.Err.Error()
	}

	switch e.Type {
	case events.EventJobPollFailed, events.EventCostPollFailed, events.EventCostTimedOut:
		logger.WarnWithFields(string(e.Type), fields)
	case events.EventCostResolved:
		if e.Job != nil && e.Job.TotalCostEstimate != nil {
			fields["total_cost_estimate"] = *e.Job.TotalCostEstimate
		}
		logger.InfoWithFields(string(e.Type), fields)
	default:
		logger.InfoWithFields(string(e.Type), fields)
	}
	return nil
}

// readItemIDs reads item IDs from a JSON array or from a file with one ID per
// line. Blank lines and lines starting with # are skipped.
func readItemIDs(path string) ([]string, error) {
	if err := validateFilePath(path); err != nil {
		return nil, fmt.Errorf("error validating file path: %w", err)
	}
	// #nosec G304 -- file path is validated before use
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading items file: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("[")) {
		var ids []string
		if err := json.Unmarshal(trimmed, &ids); err != nil {
			return nil, fmt.Errorf("error parsing items file: %w", err)
		}
		return ids, nil
	}

	var ids []string
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading items file: %w", err)
	}
	return ids, nil
}

// validateFilePath checks that path exists and does not traverse directories
func validateFilePath(path string) error {
	if strings.Contains(path, "..") {
		return errors.New("path contains invalid characters")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("file does not exist: %w", err)
	}
	return nil
}

func parseDate(flag, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(types.DateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s date %q, expected YYYY-MM-DD", flag, value)
	}
	return &t, nil
}
