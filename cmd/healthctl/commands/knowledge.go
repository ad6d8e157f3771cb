package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/benvon/health-chat/internal/app"
	"github.com/benvon/health-chat/internal/config"
	"github.com/benvon/health-chat/internal/database"
	"github.com/benvon/health-chat/internal/knowledge"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewKnowledgeCmd creates the knowledge command
func NewKnowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Manage the knowledge base",
		Long:  "Seed, query and inspect the drug interaction, food and guideline facts used by the agents",
	}

	cmd.AddCommand(newKnowledgeSeedCmd())
	cmd.AddCommand(newKnowledgeLookupCmd())
	cmd.AddCommand(newKnowledgeStatsCmd())

	return cmd
}

func newKnowledgeSeedCmd() *cobra.Command {
	var backends []string

	cmd := &cobra.Command{
		Use:   "seed <catalog.yaml>",
		Short: "Load a YAML fact catalog into the stored backends",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open catalog: %w", err)
			}
			defer f.Close()

			facts, err := knowledge.ParseCatalog(f)
			if err != nil {
				return err
			}
			// Indexing validates domains and required fields before anything is written.
			if _, err := knowledge.NewCatalog(facts); err != nil {
				return err
			}

			if len(backends) == 0 {
				backends = storedBackends(cfg.KnowledgeBackends)
			}
			if len(backends) == 0 {
				return fmt.Errorf("no stored backend configured; pass --backend postgres or --backend weaviate")
			}

			for _, backend := range backends {
				switch backend {
				case config.KnowledgePostgres:
					err = seedPostgres(ctx, cfg, facts)
				case config.KnowledgeWeaviate:
					err = seedWeaviate(ctx, cfg, facts)
				default:
					err = fmt.Errorf("backend %q cannot be seeded", backend)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d facts into %s\n", len(facts), backend)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&backends, "backend", nil, "Backends to seed (postgres, weaviate); defaults to the configured stored backends")

	return cmd
}

func storedBackends(configured []string) []string {
	var out []string
	for _, b := range configured {
		if b == config.KnowledgePostgres || b == config.KnowledgeWeaviate {
			out = append(out, b)
		}
	}
	return out
}

func seedPostgres(ctx context.Context, cfg *config.Config, facts []knowledge.Fact) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	repo := database.NewKnowledgeRepository(db)
	for _, fact := range facts {
		if err := repo.Upsert(ctx, fact); err != nil {
			return err
		}
	}
	return nil
}

func seedWeaviate(ctx context.Context, cfg *config.Config, facts []knowledge.Fact) error {
	if cfg.WeaviateHost == "" {
		return fmt.Errorf("WEAVIATE_HOST is required to seed weaviate")
	}
	wv, err := app.NewWeaviate(ctx, cfg)
	if err != nil {
		return err
	}
	return wv.Upsert(ctx, facts...)
}

func newKnowledgeLookupCmd() *cobra.Command {
	var domain string

	cmd := &cobra.Command{
		Use:   "lookup <entity>...",
		Short: "Look up facts through the configured backends",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			d, err := knowledge.ParseDomain(domain)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			var db *database.DB
			if contains(cfg.KnowledgeBackends, config.KnowledgePostgres) {
				db, err = openDatabase(ctx, cfg)
				if err != nil {
					return err
				}
				defer closeDatabase(db)
			}

			lookup, err := app.NewKnowledge(ctx, cfg, db, nil, zap.NewNop())
			if err != nil {
				return err
			}
			facts, err := lookup.Lookup(ctx, args, d)
			if err != nil {
				return fmt.Errorf("lookup failed: %w", err)
			}
			if facts == nil {
				facts = []knowledge.Fact{}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(facts)
		},
	}

	cmd.Flags().StringVar(&domain, "domain", string(knowledge.DomainDrugInteraction), "Domain to search (drug_interaction, food, clinical_guideline)")

	return cmd
}

func newKnowledgeStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the number of stored facts per domain",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			db, err := openDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeDatabase(db)

			counts, err := database.NewKnowledgeRepository(db).Count(ctx)
			if err != nil {
				return err
			}

			domains := make([]string, 0, len(counts))
			for d := range counts {
				domains = append(domains, string(d))
			}
			sort.Strings(domains)

			fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", "DOMAIN", "FACTS")
			for _, d := range domains {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %d\n", d, counts[knowledge.Domain(d)])
			}
			return nil
		},
	}
}

func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.EnsureSchema(ctx); err != nil {
		closeDatabase(db)
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return db, nil
}

func closeDatabase(db *database.DB) {
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
	}
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
