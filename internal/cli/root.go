// Package cli wires configuration, storage and the ingestion service into
// the sparkify command.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rpattn/sparkify/internal/config"
	"github.com/rpattn/sparkify/internal/db"
	"github.com/rpattn/sparkify/internal/domain"
	"github.com/rpattn/sparkify/internal/ingestion"
	"github.com/rpattn/sparkify/internal/logger"
	"github.com/rpattn/sparkify/internal/repository"
)

type rootOptions struct {
	configPath string
	songData   string
	logData    string
	migrate    bool
}

// NewRootCommand builds the sparkify command tree. Running it without
// arguments loads the song tree and then the log tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "sparkify",
		Short:        "Load song metadata and activity logs into the sparkify star schema",
		Long:         `sparkify loads song-metadata files, then activity-log files, into the songs, artists, time, users and songplays tables, committing one file at a time.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Directory containing config.yaml")
	cmd.Flags().StringVar(&opts.songData, "song-data", "", "Root of the song-metadata tree (overrides pipeline.song_data)")
	cmd.Flags().StringVar(&opts.logData, "log-data", "", "Root of the activity-log tree (overrides pipeline.log_data)")
	cmd.Flags().BoolVar(&opts.migrate, "migrate", false, "Apply schema migrations before loading")

	cmd.AddCommand(newMigrateCommand(opts))

	return cmd
}

func loadConfig(opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.songData != "" {
		cfg.Pipeline.SongData = opts.songData
	}
	if opts.logData != "" {
		cfg.Pipeline.LogData = opts.logData
	}
	return cfg, nil
}

func runPipeline(ctx context.Context, opts *rootOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.Init(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer closeLog()

	location, err := cfg.Pipeline.Location()
	if err != nil {
		return err
	}

	if opts.migrate {
		if err := migrateUp(cfg.Database, log); err != nil {
			return err
		}
	}

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", "host", cfg.Database.Host, "dbname", cfg.Database.DBName, "error", err)
		return err
	}
	defer conn.Close()

	session, err := conn.Acquire(ctx)
	if err != nil {
		return err
	}
	defer session.Release()

	log.Info("starting load",
		"song_data", cfg.Pipeline.SongData,
		"log_data", cfg.Pipeline.LogData,
		"timezone", location.String(),
		"calendar", domain.WeekdayConvention,
		"duration_tolerance", cfg.Pipeline.DurationTolerance,
	)

	service := ingestion.NewService(
		repository.NewSessionTransactor(session),
		repository.NewLoadLogRepository(session.Conn()),
		ingestion.Options{
			Extension: cfg.Pipeline.Extension,
			Tolerance: cfg.Pipeline.DurationTolerance,
			Location:  location,
			Logger:    logger.WithComponent("ingestion"),
		},
	)

	_, runErr := service.RunAll(ctx, cfg.Pipeline.SongData, cfg.Pipeline.LogData)
	logTally(context.WithoutCancel(ctx), log, service)
	if runErr != nil {
		attrs := []any{"run_id", service.RunID(), "error", runErr}
		if fileErr, ok := ingestion.AsFileError(runErr); ok {
			attrs = append(attrs, "phase", fileErr.Phase, "file", fileErr.Path)
		}
		log.Error("load aborted", attrs...)
		return runErr
	}

	counts, err := repository.CountTables(ctx, session.Conn())
	if err != nil {
		log.Warn("failed to count tables", "error", err)
		return nil
	}
	log.Info("load complete",
		"run_id", service.RunID(),
		slog.Group("tables",
			"songs", counts.Songs,
			"artists", counts.Artists,
			"time", counts.Time,
			"users", counts.Users,
			"songplays", counts.Songplays,
		),
	)
	return nil
}

func logTally(ctx context.Context, log *slog.Logger, service *ingestion.Service) {
	tally, err := service.Tally(ctx)
	if err != nil {
		log.Warn("failed to read load log", "run_id", service.RunID(), "error", err)
		return
	}
	log.Info("load log", "run_id", service.RunID(), "files", tally)
}
