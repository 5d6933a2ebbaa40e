package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/config"
	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/models"
	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/services"
	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "emulator",
	Short: "Seed reports and emit report.created events against a running matcher",
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		if err := godotenv.Load(); err != nil {
			log.Debug().Msg("No .env file found, using environment variables")
		}
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Store lost/found report pairs and trigger a match search for each found report",
	RunE: func(cmd *cobra.Command, _ []string) error {
		pairs, _ := cmd.Flags().GetInt("pairs")
		delay, _ := cmd.Flags().GetDuration("delay")
		if pairs < 1 {
			return fmt.Errorf("--pairs must be at least 1")
		}

		cfg := config.Load()
		db, err := storage.NewPostgresStorage(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)
		if err != nil {
			return err
		}
		defer db.Close()

		publisher, err := services.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			return err
		}
		defer publisher.Close()

		return seed(cmd.Context(), db.Reports(), publisher, pairs, delay)
	},
}

var triggerCmd = &cobra.Command{
	Use:   "trigger <report-id>...",
	Short: "Emit report.created for existing reports",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		publisher, err := services.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			return err
		}
		defer publisher.Close()

		for _, id := range args {
			if err := emitTrigger(cmd.Context(), publisher, &models.Report{ID: id}); err != nil {
				return err
			}
		}
		return nil
	},
}

type reportSaver interface {
	Save(ctx context.Context, report *models.Report) error
}

type triggerPublisher interface {
	PublishReportCreated(ctx context.Context, event models.ReportCreatedEvent) error
}

// seed stores pairs of matching reports. The lost side goes first so the
// found report's trigger has a candidate to score.
func seed(ctx context.Context, reports reportSaver, publisher triggerPublisher, pairs int, delay time.Duration) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for i := 0; i < pairs; i++ {
		lost, found := samplePair(rng, time.Now().UTC())

		for _, report := range []*models.Report{lost, found} {
			if err := reports.Save(ctx, report); err != nil {
				return fmt.Errorf("failed to save report %s: %w", report.ID, err)
			}
		}
		if err := emitTrigger(ctx, publisher, found); err != nil {
			return err
		}

		log.Info().
			Str("lost_report_id", lost.ID).
			Str("found_report_id", found.ID).
			Str("category", found.Category).
			Msg("Seeded report pair")

		if delay > 0 && i < pairs-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil
}

func emitTrigger(ctx context.Context, publisher triggerPublisher, report *models.Report) error {
	event := models.ReportCreatedEvent{
		ReportID:  report.ID,
		Kind:      report.Kind,
		Timestamp: time.Now().UTC(),
	}
	if err := publisher.PublishReportCreated(ctx, event); err != nil {
		return fmt.Errorf("failed to publish report.created for %s: %w", report.ID, err)
	}
	log.Info().Str("report_id", report.ID).Msg("Emitted report.created")
	return nil
}

func init() {
	seedCmd.Flags().Int("pairs", 5, "number of lost/found pairs to create")
	seedCmd.Flags().Duration("delay", 500*time.Millisecond, "pause between pairs")

	rootCmd.AddCommand(seedCmd, triggerCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Emulator failed")
		os.Exit(1)
	}
}
