package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/store"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/postgres"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:          "glossaryctl",
	Short:        "Operate the glossary index",
	Long:         "Migrate the schema, seed the lemma index, manage API keys, and preview variants, lemmas and redaction.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetupWriter(cmd.ErrOrStderr(), logLevel, "text")
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/development.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(variantsCmd)
	rootCmd.AddCommand(lemmasCmd)
	rootCmd.AddCommand(redactCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openStore connects to PostgreSQL. The caller closes the returned client.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, *postgres.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	db, err := postgres.New(connectCtx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	return store.New(db), db, nil
}
