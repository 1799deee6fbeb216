package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/linkhound/ingest/internal/data"
	"github.com/linkhound/ingest/internal/domain/model"
	"github.com/linkhound/ingest/internal/service"
	"github.com/linkhound/ingest/internal/util"
)

const defaultCommandTimeout = 2 * time.Minute

// queueJobTypes is the display order for per-type queue output.
var queueJobTypes = []model.JobType{
	model.JobTypeLinkPage,
	model.JobTypeDropPage,
	model.JobTypeVideoChannel,
}

type enqueueOptions struct {
	ProfileID string
	URL       string
	Priority  int
}

type listJobsOptions struct {
	ProfileID string
	Type      string
	Status    string
	Limit     int
	Offset    int
}

type jobResultsOptions struct {
	JobID   string
	RawJSON bool
}

type queueStatsOptions struct {
	Type string
}

func runEnqueue(cmdCtx *commandContext, args []string) error {
	opts, err := parseEnqueueFlags("enqueue", args)
	if err != nil {
		return err
	}

	return withJobServices(cmdCtx, func(ctx context.Context, svcs jobCommandServices) error {
		job, enqueueErr := svcs.Profiles.EnqueueIngestion(ctx, service.EnqueueIngestionParams{
			ProfileID: opts.ProfileID,
			SourceURL: opts.URL,
			Priority:  opts.Priority,
		})
		if enqueueErr != nil {
			return fmt.Errorf("enqueue ingestion: %w", enqueueErr)
		}
		return printEnqueuedJob(job)
	})
}

func runRerun(cmdCtx *commandContext, args []string) error {
	opts, err := parseEnqueueFlags("rerun", args)
	if err != nil {
		return err
	}

	return withJobServices(cmdCtx, func(ctx context.Context, svcs jobCommandServices) error {
		job, rerunErr := svcs.Profiles.Rerun(ctx, service.EnqueueIngestionParams{
			ProfileID: opts.ProfileID,
			SourceURL: opts.URL,
			Priority:  opts.Priority,
		})
		if rerunErr != nil {
			return fmt.Errorf("rerun ingestion: %w", rerunErr)
		}
		return printEnqueuedJob(job)
	})
}

func printEnqueuedJob(job *model.Job) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writef(w, "Job ID\t%s\n", job.ID); err != nil {
		return fmt.Errorf("write job id: %w", err)
	}
	if err := writef(w, "Type\t%s\n", job.Type); err != nil {
		return fmt.Errorf("write job type: %w", err)
	}
	if err := writef(w, "Status\t%s\n", job.Status); err != nil {
		return fmt.Errorf("write job status: %w", err)
	}
	if err := writef(w, "Run At\t%s\n", job.RunAt.Format(time.RFC3339)); err != nil {
		return fmt.Errorf("write job run_at: %w", err)
	}
	if err := writef(w, "Dedup Key\t%s\n", job.DedupKey); err != nil {
		return fmt.Errorf("write job dedup key: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush enqueued job: %w", err)
	}
	return nil
}

func runQueueStats(cmdCtx *commandContext, args []string) error {
	opts, err := parseQueueStatsFlags(args)
	if err != nil {
		return err
	}

	types := queueJobTypes
	if opts.Type != "" {
		jobType, parseErr := parseJobType(opts.Type)
		if parseErr != nil {
			return parseErr
		}
		types = []model.JobType{jobType}
	}

	return withJobServices(cmdCtx, func(ctx context.Context, svcs jobCommandServices) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		if headerErr := writeln(w, "TYPE\tPENDING\tPROCESSING\tSUCCEEDED\tFAILED"); headerErr != nil {
			return fmt.Errorf("write stats header: %w", headerErr)
		}
		for _, jobType := range types {
			stats, statsErr := svcs.Jobs.Stats(ctx, jobType)
			if statsErr != nil {
				return fmt.Errorf("stats for %s: %w", jobType, statsErr)
			}
			if rowErr := writef(
				w,
				"%s\t%d\t%d\t%d\t%d\n",
				jobType,
				stats.Pending,
				stats.Processing,
				stats.Succeeded,
				stats.Failed,
			); rowErr != nil {
				return fmt.Errorf("write stats row for %s: %w", jobType, rowErr)
			}
		}
		if flushErr := w.Flush(); flushErr != nil {
			return fmt.Errorf("flush stats: %w", flushErr)
		}
		return nil
	})
}

func runListJobs(cmdCtx *commandContext, args []string) error {
	opts, err := parseListJobsFlags(args)
	if err != nil {
		return err
	}

	listOpts := &model.JobListOptions{
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}
	if opts.Type != "" {
		jobType, parseErr := parseJobType(opts.Type)
		if parseErr != nil {
			return parseErr
		}
		listOpts.Type = &jobType
	}
	if opts.Status != "" {
		status, parseErr := parseJobStatus(opts.Status)
		if parseErr != nil {
			return parseErr
		}
		listOpts.Status = &status
	}
	if opts.ProfileID != "" {
		profileID := opts.ProfileID
		listOpts.CreatorProfileID = &profileID
	}

	return withJobServices(cmdCtx, func(ctx context.Context, svcs jobCommandServices) error {
		jobs, listErr := svcs.Jobs.List(ctx, listOpts)
		if listErr != nil {
			return fmt.Errorf("list jobs: %w", listErr)
		}
		return printJobRows(jobs)
	})
}

func printJobRows(jobs []*model.Job) error {
	if len(jobs) == 0 {
		if err := writeln(os.Stdout, "(no jobs matched)"); err != nil {
			return fmt.Errorf("write empty jobs message: %w", err)
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "ID\tTYPE\tSTATUS\tATTEMPTS\tPROFILE\tRUN AT\tDURATION"); err != nil {
		return fmt.Errorf("write jobs header: %w", err)
	}
	for _, job := range jobs {
		if err := writef(
			w,
			"%s\t%s\t%s\t%d/%d\t%s\t%s\t%s\n",
			job.ID,
			job.Type,
			job.Status,
			job.Attempts,
			job.MaxAttempts,
			job.CreatorProfileID,
			job.RunAt.Format(time.RFC3339),
			util.FormatProcessingDuration(jobRunDuration(job)),
		); err != nil {
			return fmt.Errorf("write job row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush jobs: %w", err)
	}

	if err := writef(os.Stdout, "Total jobs shown: %d\n", len(jobs)); err != nil {
		return fmt.Errorf("write jobs total: %w", err)
	}
	return nil
}

func jobRunDuration(job *model.Job) time.Duration {
	if job.StartedAt == nil || job.CompletedAt == nil {
		return 0
	}
	return job.CompletedAt.Sub(*job.StartedAt)
}

func runJobResults(cmdCtx *commandContext, args []string) error {
	opts, err := parseJobResultsFlags(args)
	if err != nil {
		return err
	}

	return withJobServices(cmdCtx, func(ctx context.Context, svcs jobCommandServices) error {
		stored, getErr := svcs.Results.GetByJobID(ctx, opts.JobID)
		if getErr != nil {
			if errors.Is(getErr, data.ErrJobResultsNotFound) {
				return printNoJobResults(opts.JobID)
			}
			return fmt.Errorf("load job results: %w", getErr)
		}

		if opts.RawJSON {
			if printErr := writef(os.Stdout, "%s\n", stored.Result); printErr != nil {
				return fmt.Errorf("print raw run summary: %w", printErr)
			}
			return nil
		}

		summary := &model.IngestRunSummary{}
		if decodeErr := json.Unmarshal(stored.Result, summary); decodeErr != nil {
			return fmt.Errorf("decode run summary: %w", decodeErr)
		}

		return printIngestRunSummary(&printRunSummaryRequest{
			JobID:      opts.JobID,
			JobType:    stored.JobType,
			Summary:    summary,
			RecordedAt: stored.UpdatedAt,
		})
	})
}

func printNoJobResults(jobID string) error {
	if err := writef(os.Stdout, "No persisted run summary found for job %s\n", jobID); err != nil {
		return fmt.Errorf("print empty results notice: %w", err)
	}
	return nil
}

type printRunSummaryRequest struct {
	JobID      string
	JobType    model.JobType
	Summary    *model.IngestRunSummary
	RecordedAt time.Time
}

func printIngestRunSummary(req *printRunSummaryRequest) error {
	if err := printRunSummaryHeader(req); err != nil {
		return err
	}
	if err := printRunSummaryMetrics(req.Summary); err != nil {
		return err
	}
	return printRunSummaryNotes(req.Summary)
}

func printRunSummaryHeader(req *printRunSummaryRequest) error {
	if err := writef(os.Stdout, "\nIngestion Run Summary\n"); err != nil {
		return fmt.Errorf("write header title: %w", err)
	}
	if err := writef(os.Stdout, "Job ID:      %s\n", req.JobID); err != nil {
		return fmt.Errorf("write header job id: %w", err)
	}
	if err := writef(os.Stdout, "Job Type:    %s\n", req.JobType); err != nil {
		return fmt.Errorf("write header job type: %w", err)
	}
	if !req.RecordedAt.IsZero() {
		if err := writef(os.Stdout, "Recorded At: %s\n", req.RecordedAt.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("write header recorded at: %w", err)
		}
	}
	if err := writeln(os.Stdout); err != nil {
		return fmt.Errorf("write header newline: %w", err)
	}
	return nil
}

func printRunSummaryMetrics(summary *model.IngestRunSummary) error {
	if summary == nil {
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "Metric\tValue"); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	if err := writef(w, "Source URL\t%s\n", summary.SourceURL); err != nil {
		return fmt.Errorf("write source url: %w", err)
	}
	if err := writef(w, "Crawl Depth\t%d\n", summary.Depth); err != nil {
		return fmt.Errorf("write crawl depth: %w", err)
	}
	if err := writef(w, "Candidates Found\t%d\n", summary.CandidatesFound); err != nil {
		return fmt.Errorf("write candidates found: %w", err)
	}
	if err := writef(w, "Links Created\t%d\n", summary.LinksCreated); err != nil {
		return fmt.Errorf("write links created: %w", err)
	}
	if err := writef(w, "Links Updated\t%d\n", summary.LinksUpdated); err != nil {
		return fmt.Errorf("write links updated: %w", err)
	}
	if err := writef(w, "Links Unchanged\t%d\n", summary.LinksUnchanged); err != nil {
		return fmt.Errorf("write links unchanged: %w", err)
	}
	if err := writef(w, "Follow-up Jobs\t%d\n", summary.FollowUps); err != nil {
		return fmt.Errorf("write follow-up jobs: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush summary: %w", err)
	}
	return nil
}

func printRunSummaryNotes(summary *model.IngestRunSummary) error {
	if summary == nil {
		return nil
	}
	if summary.CandidatesFound == 0 {
		if err := writeln(
			os.Stdout,
			"The run extracted no candidates; the source page may be empty or unsupported.",
		); err != nil {
			return fmt.Errorf("write empty-candidates note: %w", err)
		}
	}
	return nil
}

type jobCommandServices struct {
	Profiles *service.ProfileService
	Jobs     *service.JobService
	Results  *data.JobResultRepo
}

func buildJobCommandServices(db *sql.DB, logger *slog.Logger) (jobCommandServices, error) {
	jobRepo := data.NewJobRepo(db, data.RepoConfig{Logger: logger})
	profileRepo := data.NewProfileRepo(db)

	jobService := service.MustNewJobService(service.JobServiceOptions{
		Repo:         jobRepo,
		DefaultLease: 30 * time.Second,
		Logger:       logger,
	})

	profileService, err := service.NewProfileService(service.ProfileServiceOptions{
		Profiles: profileRepo,
		Jobs:     jobRepo,
		Logger:   logger,
	})
	if err != nil {
		return jobCommandServices{}, fmt.Errorf("build profile service: %w", err)
	}

	return jobCommandServices{
		Profiles: profileService,
		Jobs:     jobService,
		Results:  data.NewJobResultRepo(db),
	}, nil
}

func withJobServices(
	cmdCtx *commandContext,
	f func(context.Context, jobCommandServices) error,
) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	db, _, err := connectInfraWithOptions(&connectInfraOptions{
		Logger: cmdCtx.Logger,
		Config: &cmdCtx.Config,
		WantDB: true,
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	svcs, err := buildJobCommandServices(db, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer svcs.Jobs.StopAllListeners()

	return f(ctx, svcs)
}

func parseEnqueueFlags(name string, args []string) (enqueueOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts enqueueOptions
	fs.StringVar(&opts.ProfileID, "profile-id", "", "Creator profile ID (required)")
	fs.StringVar(&opts.URL, "url", "", "Source URL on a crawlable platform (required)")
	fs.IntVar(&opts.Priority, "priority", 0, "Job priority (higher runs sooner)")

	if err := fs.Parse(args); err != nil {
		return enqueueOptions{}, err
	}

	opts.ProfileID = strings.TrimSpace(opts.ProfileID)
	opts.URL = strings.TrimSpace(opts.URL)
	if opts.ProfileID == "" {
		return enqueueOptions{}, errors.New("--profile-id is required")
	}
	if opts.URL == "" {
		return enqueueOptions{}, errors.New("--url is required")
	}

	return opts, nil
}

func parseQueueStatsFlags(args []string) (queueStatsOptions, error) {
	fs := flag.NewFlagSet("queue-stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts queueStatsOptions
	fs.StringVar(&opts.Type, "type", "", "Job type to report (linkpage, droppage, videochannel; default all)")

	if err := fs.Parse(args); err != nil {
		return queueStatsOptions{}, err
	}

	opts.Type = strings.TrimSpace(opts.Type)
	return opts, nil
}

func parseListJobsFlags(args []string) (listJobsOptions, error) {
	fs := flag.NewFlagSet("list-jobs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts listJobsOptions
	fs.StringVar(&opts.ProfileID, "profile-id", "", "Filter by creator profile ID")
	fs.StringVar(&opts.Type, "type", "", "Filter by job type (linkpage, droppage, videochannel)")
	fs.StringVar(&opts.Status, "status", "", "Filter by status (pending, processing, succeeded, failed)")
	fs.IntVar(&opts.Limit, "limit", 20, "Maximum rows to display")
	fs.IntVar(&opts.Offset, "offset", 0, "Offset for query results")

	if err := fs.Parse(args); err != nil {
		return listJobsOptions{}, err
	}

	if opts.Limit <= 0 {
		return listJobsOptions{}, errors.New("--limit must be > 0")
	}
	if opts.Offset < 0 {
		return listJobsOptions{}, errors.New("--offset must be >= 0")
	}

	opts.ProfileID = strings.TrimSpace(opts.ProfileID)
	opts.Type = strings.TrimSpace(opts.Type)
	opts.Status = strings.TrimSpace(opts.Status)
	return opts, nil
}

func parseJobResultsFlags(args []string) (jobResultsOptions, error) {
	fs := flag.NewFlagSet("job-results", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts jobResultsOptions
	fs.StringVar(&opts.JobID, "job-id", "", "Job ID to inspect (required)")
	fs.BoolVar(&opts.RawJSON, "json", false, "Print the raw persisted JSON payload")

	if err := fs.Parse(args); err != nil {
		return jobResultsOptions{}, err
	}

	opts.JobID = strings.TrimSpace(opts.JobID)
	if opts.JobID == "" {
		return jobResultsOptions{}, errors.New("--job-id is required")
	}

	return opts, nil
}

func parseJobType(v string) (model.JobType, error) {
	jobType := model.JobType(strings.ToLower(v))
	if !jobType.Valid() {
		return "", fmt.Errorf("invalid job type %q (want linkpage, droppage, or videochannel)", v)
	}
	return jobType, nil
}

func parseJobStatus(v string) (model.JobStatus, error) {
	status := model.JobStatus(strings.ToLower(v))
	if !status.Valid() {
		return "", fmt.Errorf("invalid job status %q (want pending, processing, succeeded, or failed)", v)
	}
	return status, nil
}
