package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/linkhound/ingest/internal/data"
	"github.com/linkhound/ingest/internal/domain/model"
	"github.com/linkhound/ingest/internal/service"
)

type listProfilesOptions struct {
	Limit  int
	Offset int
}

type listLinksOptions struct {
	ProfileID string
	State     string
	Platform  string
	Limit     int
	Offset    int
}

type setReingestOptions struct {
	ProfileID string
	URL       string
	Interval  time.Duration
}

type clearReingestOptions struct {
	ProfileID string
}

func runListProfiles(cmdCtx *commandContext, args []string) error {
	opts, err := parseListProfilesFlags(args)
	if err != nil {
		return err
	}

	return withProfileServices(cmdCtx, func(ctx context.Context, svcs profileCommandServices) error {
		profiles, listErr := svcs.Profiles.List(ctx, opts.Limit, opts.Offset)
		if listErr != nil {
			return fmt.Errorf("list profiles: %w", listErr)
		}
		return printProfileRows(profiles)
	})
}

func printProfileRows(profiles []*model.CreatorProfile) error {
	if len(profiles) == 0 {
		if err := writeln(os.Stdout, "(no profiles found)"); err != nil {
			return fmt.Errorf("write empty profiles message: %w", err)
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "ID\tHANDLE\tDISPLAY NAME\tINGESTION\tLAST INGESTED"); err != nil {
		return fmt.Errorf("write profiles header: %w", err)
	}
	for _, profile := range profiles {
		lastIngested := "-"
		if profile.LastIngestedAt != nil {
			lastIngested = profile.LastIngestedAt.Format(time.RFC3339)
		}
		if err := writef(
			w,
			"%s\t%s\t%s\t%s\t%s\n",
			profile.ID,
			profile.Handle,
			profile.DisplayName,
			profile.IngestionStatus,
			lastIngested,
		); err != nil {
			return fmt.Errorf("write profile row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush profiles: %w", err)
	}
	return nil
}

func runListLinks(cmdCtx *commandContext, args []string) error {
	opts, err := parseListLinksFlags(args)
	if err != nil {
		return err
	}

	listOpts := model.LinkListOptions{
		CreatorProfileID: opts.ProfileID,
		Limit:            opts.Limit,
		Offset:           opts.Offset,
	}
	if opts.State != "" {
		state := model.LinkState(strings.ToLower(opts.State))
		if !state.Valid() {
			return fmt.Errorf("invalid link state %q (want active, suggested, or rejected)", opts.State)
		}
		listOpts.State = &state
	}
	if opts.Platform != "" {
		platform := strings.ToLower(opts.Platform)
		listOpts.Platform = &platform
	}

	return withProfileServices(cmdCtx, func(ctx context.Context, svcs profileCommandServices) error {
		links, listErr := svcs.Links.ListByProfile(ctx, listOpts)
		if listErr != nil {
			return fmt.Errorf("list links: %w", listErr)
		}
		return printLinkRows(links)
	})
}

func printLinkRows(links []*model.SocialLink) error {
	if len(links) == 0 {
		if err := writeln(os.Stdout, "(no links matched)"); err != nil {
			return fmt.Errorf("write empty links message: %w", err)
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "ID\tPLATFORM\tSTATE\tCONFIDENCE\tSOURCE\tURL"); err != nil {
		return fmt.Errorf("write links header: %w", err)
	}
	for _, link := range links {
		if err := writef(
			w,
			"%s\t%s\t%s\t%.2f\t%s\t%s\n",
			link.ID,
			link.Platform,
			link.State,
			link.Confidence,
			link.SourceType,
			link.URL,
		); err != nil {
			return fmt.Errorf("write link row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush links: %w", err)
	}

	if err := writef(os.Stdout, "Total links shown: %d\n", len(links)); err != nil {
		return fmt.Errorf("write links total: %w", err)
	}
	return nil
}

func runSetReingest(cmdCtx *commandContext, args []string) error {
	opts, err := parseSetReingestFlags(args)
	if err != nil {
		return err
	}

	return withProfileServices(cmdCtx, func(ctx context.Context, svcs profileCommandServices) error {
		setErr := svcs.Schedules.SetReingest(ctx, service.SetReingestParams{
			ProfileID: opts.ProfileID,
			SourceURL: opts.URL,
			Interval:  opts.Interval,
		})
		if setErr != nil {
			return fmt.Errorf("set reingest schedule: %w", setErr)
		}
		if printErr := writef(
			os.Stdout,
			"Re-ingestion schedule set for profile %s (every %s)\n",
			opts.ProfileID,
			opts.Interval,
		); printErr != nil {
			return fmt.Errorf("print schedule confirmation: %w", printErr)
		}
		return nil
	})
}

func runClearReingest(cmdCtx *commandContext, args []string) error {
	opts, err := parseClearReingestFlags(args)
	if err != nil {
		return err
	}

	return withProfileServices(cmdCtx, func(ctx context.Context, svcs profileCommandServices) error {
		removed, removeErr := svcs.Schedules.RemoveReingest(ctx, opts.ProfileID)
		if removeErr != nil {
			return fmt.Errorf("remove reingest schedule: %w", removeErr)
		}
		msg := "No re-ingestion schedule found for profile " + opts.ProfileID
		if removed {
			msg = "Re-ingestion schedule removed for profile " + opts.ProfileID
		}
		if printErr := writeln(os.Stdout, msg); printErr != nil {
			return fmt.Errorf("print schedule removal result: %w", printErr)
		}
		return nil
	})
}

type profileCommandServices struct {
	Profiles  *service.ProfileService
	Links     *service.LinkService
	Schedules *service.ScheduleService
}

func buildProfileCommandServices(db *sql.DB, cmdCtx *commandContext) (profileCommandServices, error) {
	profileRepo := data.NewProfileRepo(db)
	jobRepo := data.NewJobRepo(db, data.RepoConfig{Logger: cmdCtx.Logger})
	linkRepo := data.NewLinkRepo(db)
	scheduledAdmin := data.NewScheduledJobsAdminRepo(db)

	profileService, err := service.NewProfileService(service.ProfileServiceOptions{
		Profiles: profileRepo,
		Jobs:     jobRepo,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return profileCommandServices{}, fmt.Errorf("build profile service: %w", err)
	}

	linkService, err := service.NewLinkService(service.LinkServiceOptions{Links: linkRepo})
	if err != nil {
		return profileCommandServices{}, fmt.Errorf("build link service: %w", err)
	}

	scheduleService := service.NewScheduleService(service.ScheduleServiceOptions{
		Profiles: profileRepo,
		Admin:    scheduledAdmin,
	})

	return profileCommandServices{
		Profiles:  profileService,
		Links:     linkService,
		Schedules: scheduleService,
	}, nil
}

func withProfileServices(
	cmdCtx *commandContext,
	f func(context.Context, profileCommandServices) error,
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

	svcs, err := buildProfileCommandServices(db, cmdCtx)
	if err != nil {
		return err
	}

	return f(ctx, svcs)
}

func parseListProfilesFlags(args []string) (listProfilesOptions, error) {
	fs := flag.NewFlagSet("list-profiles", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts listProfilesOptions
	fs.IntVar(&opts.Limit, "limit", 20, "Maximum rows to display")
	fs.IntVar(&opts.Offset, "offset", 0, "Offset for query results")

	if err := fs.Parse(args); err != nil {
		return listProfilesOptions{}, err
	}

	if opts.Limit <= 0 {
		return listProfilesOptions{}, errors.New("--limit must be > 0")
	}
	if opts.Offset < 0 {
		return listProfilesOptions{}, errors.New("--offset must be >= 0")
	}

	return opts, nil
}

func parseListLinksFlags(args []string) (listLinksOptions, error) {
	fs := flag.NewFlagSet("list-links", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts listLinksOptions
	fs.StringVar(&opts.ProfileID, "profile-id", "", "Creator profile ID (required)")
	fs.StringVar(&opts.State, "state", "", "Filter by state (active, suggested, rejected)")
	fs.StringVar(&opts.Platform, "platform", "", "Filter by platform tag")
	fs.IntVar(&opts.Limit, "limit", 50, "Maximum rows to display")
	fs.IntVar(&opts.Offset, "offset", 0, "Offset for query results")

	if err := fs.Parse(args); err != nil {
		return listLinksOptions{}, err
	}

	opts.ProfileID = strings.TrimSpace(opts.ProfileID)
	if opts.ProfileID == "" {
		return listLinksOptions{}, errors.New("--profile-id is required")
	}
	if opts.Limit <= 0 {
		return listLinksOptions{}, errors.New("--limit must be > 0")
	}
	if opts.Offset < 0 {
		return listLinksOptions{}, errors.New("--offset must be >= 0")
	}

	opts.State = strings.TrimSpace(opts.State)
	opts.Platform = strings.TrimSpace(opts.Platform)
	return opts, nil
}

func parseSetReingestFlags(args []string) (setReingestOptions, error) {
	fs := flag.NewFlagSet("set-reingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts setReingestOptions
	fs.StringVar(&opts.ProfileID, "profile-id", "", "Creator profile ID (required)")
	fs.StringVar(&opts.URL, "url", "", "Source URL on a crawlable platform (required)")
	fs.DurationVar(&opts.Interval, "interval", 6*time.Hour, "Re-ingestion interval (minimum 1m)")

	if err := fs.Parse(args); err != nil {
		return setReingestOptions{}, err
	}

	opts.ProfileID = strings.TrimSpace(opts.ProfileID)
	opts.URL = strings.TrimSpace(opts.URL)
	if opts.ProfileID == "" {
		return setReingestOptions{}, errors.New("--profile-id is required")
	}
	if opts.URL == "" {
		return setReingestOptions{}, errors.New("--url is required")
	}
	if opts.Interval < time.Minute {
		return setReingestOptions{}, errors.New("--interval must be at least 1m")
	}

	return opts, nil
}

func parseClearReingestFlags(args []string) (clearReingestOptions, error) {
	fs := flag.NewFlagSet("clear-reingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts clearReingestOptions
	fs.StringVar(&opts.ProfileID, "profile-id", "", "Creator profile ID (required)")

	if err := fs.Parse(args); err != nil {
		return clearReingestOptions{}, err
	}

	opts.ProfileID = strings.TrimSpace(opts.ProfileID)
	if opts.ProfileID == "" {
		return clearReingestOptions{}, errors.New("--profile-id is required")
	}

	return opts, nil
}
