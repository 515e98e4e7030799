package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/store"
)

var jobsCmd = &cobra.Command{
	Use:         "jobs",
	Short:       "Inspect extraction jobs",
	Annotations: map[string]string{configMode: "store"},
	Long:        "Commands for listing and viewing extraction jobs and their results.",
}

// -- jobs list --

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List extraction jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		document, _ := cmd.Flags().GetString("document")
		limit, _ := cmd.Flags().GetInt("limit")

		jobs, err := st.ListJobs(ctx, store.JobFilter{
			Status:     model.JobStatus(status),
			DocumentID: document,
			Limit:      limit,
		})
		if err != nil {
			return eris.Wrap(err, "jobs list")
		}

		if len(jobs) == 0 {
			fmt.Fprintln(os.Stderr, "No jobs found.")
			return nil
		}

		formatJobsList(os.Stdout, jobs)
		return nil
	},
}

// -- jobs show --

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show a job with its extraction result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		detail, err := loadJobDetail(ctx, st, args[0])
		if err != nil {
			return eris.Wrap(err, "jobs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(detail)
	},
}

// jobDetail is a job with its result and ordered fields, when completed.
type jobDetail struct {
	Job    *model.ExtractionJob    `json:"job"`
	Result *model.ExtractionResult `json:"result,omitempty"`
	Fields []model.ExtractedField  `json:"fields,omitempty"`
}

func loadJobDetail(ctx context.Context, st store.Store, jobID string) (*jobDetail, error) {
	job, err := st.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	detail := &jobDetail{Job: job}
	if job.ExtractionResultID == "" {
		return detail, nil
	}

	detail.Result, err = st.GetExtractionResult(ctx, job.ExtractionResultID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	detail.Fields, err = st.ListExtractedFields(ctx, job.ExtractionResultID)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func init() {
	jobsListCmd.Flags().String("status", "", "filter by status (PENDING, PROCESSING_TEXTRACT, PROCESSING_LLM, COMPLETED, FAILED)")
	jobsListCmd.Flags().String("document", "", "filter by document id")
	jobsListCmd.Flags().Int("limit", 50, "max number of jobs to display")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsShowCmd)
	rootCmd.AddCommand(jobsCmd)
}

// formatJobsList writes a tabular list of jobs to out.
func formatJobsList(out io.Writer, jobs []model.ExtractionJob) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDOCUMENT\tSTATUS\tERROR_KIND\tCREATED\tDURATION")
	for _, j := range jobs {
		kind := "-"
		if j.ErrorDetails != nil {
			kind = string(j.ErrorDetails.Kind)
		}
		dur := "-"
		if j.CompletedAt != nil {
			dur = j.CompletedAt.Sub(j.CreatedAt).Round(time.Millisecond).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			j.ID, j.DocumentID, j.Status, kind,
			j.CreatedAt.Format("2006-01-02 15:04:05"), dur,
		)
	}
	_ = w.Flush()
}
