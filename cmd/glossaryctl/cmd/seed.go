package cmd

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/kafka"
	"github.com/spf13/cobra"
)

var (
	seedNotify  bool
	seedWorkers int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Rebuild the lemma index of every Term and Translation",
	Long: "Pages through all Terms and Translations and rewrites their index entries. " +
		"Unchanged entries are left alone, so seeding is safe to repeat.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		docs, db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := docs.Migrate(cmd.Context()); err != nil {
			return err
		}

		workers := cfg.Indexer.RebuildWorkers
		if seedWorkers > 0 {
			workers = seedWorkers
		}
		opts := []indexer.Option{indexer.WithRebuildLimits(workers, cfg.Indexer.SeedPageSize)}
		if seedNotify {
			producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate)
			defer producer.Close()
			opts = append(opts, indexer.WithNotifier(consumer.NewInvalidationNotifier(producer)))
		}

		summary, err := indexer.NewMaintainer(docs, opts...).RebuildAll(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "written=%d unchanged=%d skipped=%d pruned=%d\n",
			summary.Written, summary.Unchanged, summary.Skipped, summary.Pruned)
		return err
	},
}

func init() {
	seedCmd.Flags().BoolVar(&seedNotify, "notify", false, "announce written entries on the invalidation topic")
	seedCmd.Flags().IntVar(&seedWorkers, "workers", 0, "parallel rebuild workers (default from config)")
}
