package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/IoTeC-ecosystems/backend-app/internal/auth"
	"github.com/IoTeC-ecosystems/backend-app/internal/config"
	"github.com/IoTeC-ecosystems/backend-app/internal/logging"
	"github.com/IoTeC-ecosystems/backend-app/internal/server"
	"github.com/IoTeC-ecosystems/backend-app/internal/telemetry"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	loadConfig  = config.Load
	openBackend = server.OpenBackend
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg config.Config

	rootCmd := &cobra.Command{
		Use:           "fleetctl",
		Short:         "Fleet dashboard maintenance tool",
		Long:          `Seeds sample data, issues ingestion tokens and computes daily aggregates against the configured store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = loadConfig()
			if err := logging.Configure(cfg); err != nil {
				log.WithError(err).Warn("file logging disabled")
			}
			return nil
		},
	}

	rootCmd.AddCommand(seedCmd(&cfg))
	rootCmd.AddCommand(tokenCmd(&cfg))
	rootCmd.AddCommand(aggregateCmd(&cfg, "distance", "Print daily distance traveled per vehicle",
		func(ctx context.Context, agg *telemetry.Aggregator, units []string, w telemetry.Window) (any, error) {
			return agg.DistanceTraveled(ctx, units, w)
		}))
	rootCmd.AddCommand(aggregateCmd(&cfg, "average", "Print daily average speed and distance per vehicle",
		func(ctx context.Context, agg *telemetry.Aggregator, units []string, w telemetry.Window) (any, error) {
			return agg.DailyAverage(ctx, units, w)
		}))
	return rootCmd
}

// seedCmd writes a synthetic fleet into the store.
func seedCmd(cfg *config.Config) *cobra.Command {
	var vehicles, samples int
	var start string
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write synthetic vehicle samples into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := time.Parse(time.RFC3339, start)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}

			backend, closeFn, err := openBackend(*cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			batch := fixture(vehicles, samples, from, interval)
			if err := backend.InsertSamples(cmd.Context(), batch); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d samples for %d vehicles\n", len(batch), vehicles)
			return nil
		},
	}

	cmd.Flags().IntVar(&vehicles, "vehicles", 2, "Number of vehicles")
	cmd.Flags().IntVar(&samples, "samples", 10, "Samples per vehicle")
	cmd.Flags().StringVar(&start, "start", "2023-01-01T00:00:00Z", "Timestamp of the first sample (RFC 3339)")
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Minute, "Time between samples")
	return cmd
}

// tokenCmd prints a bearer token for an ingestion producer.
func tokenCmd(cfg *config.Config) *cobra.Command {
	var producer string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an ingestion token",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := auth.NewIssuer(cfg.JWTSecret).Issue(producer, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&producer, "producer", "", "Producer id embedded in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTokenTTL, "Token lifetime")
	_ = cmd.MarkFlagRequired("producer")
	return cmd
}

type aggregateFn func(context.Context, *telemetry.Aggregator, []string, telemetry.Window) (any, error)

func aggregateCmd(cfg *config.Config, use, short string, run aggregateFn) *cobra.Command {
	var units []string
	var start, end string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := parseWindow(start, end)
			if err != nil {
				return err
			}

			backend, closeFn, err := openBackend(*cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			rows, err := run(cmd.Context(), telemetry.NewAggregator(backend), units, w)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rows)
		},
	}

	cmd.Flags().StringSliceVar(&units, "units", nil, "Vehicle ids (default: all)")
	cmd.Flags().StringVar(&start, "start", "", "Window start (RFC 3339)")
	cmd.Flags().StringVar(&end, "end", "", "Window end (RFC 3339)")
	return cmd
}

func parseWindow(start, end string) (telemetry.Window, error) {
	var w telemetry.Window
	for _, b := range []struct {
		name  string
		value string
		dst   *time.Time
	}{{"start", start, &w.Start}, {"end", end, &w.End}} {
		if strings.TrimSpace(b.value) == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, b.value)
		if err != nil {
			return telemetry.Window{}, fmt.Errorf("invalid --%s: %w", b.name, err)
		}
		*b.dst = t
	}
	return w, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
