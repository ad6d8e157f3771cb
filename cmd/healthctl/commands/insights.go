package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/benvon/health-chat/internal/analytics"
	"github.com/benvon/health-chat/internal/config"
	"github.com/benvon/health-chat/internal/database"
	"github.com/benvon/health-chat/internal/records"
	"github.com/benvon/health-chat/internal/services/insights"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewInsightsCmd creates the insights command
func NewInsightsCmd() *cobra.Command {
	var (
		days        int
		showContext bool
	)

	cmd := &cobra.Command{
		Use:   "insights <user-id>",
		Short: "Compute insights for a patient",
		Long:  "Compute insights straight from the record store, bypassing the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user ID: %w", err)
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if days <= 0 {
				days = cfg.InsightHistoryDays
			}

			db, err := openDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeDatabase(db)

			assembler := records.NewAssembler(database.NewRecordRepository(db), records.WithWindowDays(days))

			if showContext {
				pc, err := assembler.Assemble(ctx, userID)
				if err != nil {
					return err
				}
				report := analytics.Analyze(pc, time.Now(), cfg.Thresholds)
				fmt.Fprintln(cmd.OutOrStdout(), records.Summary(pc, report))
				return nil
			}

			service := insights.NewService(assembler, nil, insights.WithThresholds(cfg.Thresholds))
			result, err := service.Compute(ctx, userID, days)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Window in days; defaults to INSIGHT_HISTORY_DAYS")
	cmd.Flags().BoolVar(&showContext, "context", false, "Print the patient summary the agents receive instead of insights")

	return cmd
}
