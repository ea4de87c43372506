package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/codecatalog/harvester/internal/harvester"
)

// newHarvestCmd creates and configures the 'harvest' subcommand.
func newHarvestCmd() *cobra.Command {
	var (
		limit       int
		details     bool
		strictStats bool
	)

	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Runs one catalog harvest",
		Long: `Fetches up to --limit problem summaries from the remote catalog,
optionally enriches each with a detail fetch, and upserts the normalized
records into the database. Prints the aggregate counts when done.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			svc, err := buildServices(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			delayMin, delayMax := cfg.Harvest.DelayRange()
			opts := harvester.Options{
				Limit:        cfg.Harvest.Limit,
				FetchDetails: cfg.Harvest.FetchDetails,
				DelayMin:     delayMin,
				DelayMax:     delayMax,
				StrictStats:  cfg.Harvest.StrictStats,
			}
			if cmd.Flags().Changed("limit") {
				opts.Limit = limit
			}
			if cmd.Flags().Changed("details") {
				opts.FetchDetails = details
			}
			if cmd.Flags().Changed("strict-stats") {
				opts.StrictStats = strictStats
			}

			result := svc.harvester.Run(cmd.Context(), opts)
			if !result.Success {
				return errors.New(result.Message)
			}

			cmd.Println(result.Message)
			cmd.Printf("total: %d\n", result.Total)
			cmd.Printf("succeeded: %d\n", result.SuccessCount)
			cmd.Printf("failed: %d\n", result.FailCount)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 200, "maximum number of problems to request")
	cmd.Flags().BoolVar(&details, "details", false, "enrich each problem with a detail fetch")
	cmd.Flags().BoolVar(&strictStats, "strict-stats", false, "fail items whose stats payload cannot be decoded")

	return cmd
}
