package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"hkcovid/internal/config"
	"hkcovid/internal/dbclient"
	"hkcovid/internal/etl"
	"hkcovid/internal/etl/sources"
	"hkcovid/internal/logging"
	"hkcovid/internal/service"
	"hkcovid/internal/storage"
)

func newRunCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Fetch, transform and load both datasets once.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runETL(cmd, stdout)
		},
	}
}

// runETL performs one run and prints the completion line on success.
func runETL(cmd *cobra.Command, stdout io.Writer) error {
	start := time.Now()
	ctx := cmd.Context()

	cfg, err := config.Load(viper.New(), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var dest etl.Destination
	if cfg.DryRun {
		dest = &etl.DiscardDestination{Logger: logger}
	} else {
		mongo, err := dbclient.Connect(ctx, dbclient.MongoConfig{
			URI:      cfg.MongoURI,
			Host:     cfg.MongoHost,
			Username: cfg.DBUsername,
			Password: cfg.DBPassword,
			Database: cfg.Database,
			Timeout:  cfg.MongoTimeout,
		}, logger)
		if err != nil {
			logger.Error("connect", zap.Error(err))
			return err
		}
		defer func() {
			if err := mongo.Close(); err != nil {
				logger.Warn("disconnect mongo", zap.Error(err))
			}
		}()
		dest = &etl.MongoDestination{DB: mongo, Logger: logger}
	}

	var runLogs service.RunLogStore
	if cfg.RunLog != "" {
		db, err := storage.New(cfg.RunLog)
		if err != nil {
			return errors.Wrap(err, "open run log")
		}
		defer db.Close()
		runLogs = storage.NewRunLogStore(db)
	}

	svc := service.NewETLService(&etl.Engine{Dest: dest, Logger: logger}, runLogs, logger)
	summary, err := svc.Run(ctx, service.DefaultJobs(cfg))
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "ETL of %s data completed in %.2fs.\n",
		completionDate(summary.Version, cfg.Date, start), time.Since(start).Seconds())
	return nil
}

// completionDate is the day of the loaded snapshot, falling back to the
// configured or default archive day when no source reported a version.
func completionDate(version, date string, now time.Time) string {
	if d := sources.VersionDate(version); d != "" {
		return d
	}
	if date != "" {
		return date
	}
	return sources.Yesterday(now)
}
