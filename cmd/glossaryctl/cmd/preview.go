package cmd

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/indexer/variant"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/lexicon"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/redact"
	"github.com/spf13/cobra"
)

var (
	previewLang  string
	previewTerms []string
)

var variantsCmd = &cobra.Command{
	Use:   "variants <value> [extra variants...]",
	Short: "Show generated variants and the index entry of a headword",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lang, err := lexicon.ParseLang(previewLang)
		if err != nil {
			return err
		}
		e := lexicon.Entity{Kind: lexicon.KindTerm, Value: args[0], Lang: lang, Variants: args[1:]}
		out := cmd.OutOrStdout()
		for _, v := range variant.Generate(e.Value, lang) {
			fmt.Fprintf(out, "variant\t%s\n", v)
		}
		for _, seq := range indexer.BuildIndex(e).Lemmas {
			fmt.Fprintf(out, "lemmas\t%s\n", strings.Join(seq, " | "))
		}
		return nil
	},
}

var lemmasCmd = &cobra.Command{
	Use:   "lemmas <text>",
	Short: "Split text into lemmas with byte offsets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, l := range tokenizer.Split(args[0]) {
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%d\t%s\n", l.Start, l.End, l.Text)
		}
		return nil
	},
}

var redactCmd = &cobra.Command{
	Use:   "redact <text>",
	Short: "Mask sensitive words in text",
	Long:  "Masks every word of text that belongs to a sensitive term. Terms come from --term, or from the database when none are given.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		terms := previewTerms
		if len(terms) == 0 {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			docs, db, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			if terms, err = docs.SensitiveTerms(cmd.Context()); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), redact.Redact(args[0], redact.NewTerms(terms...)))
		return nil
	},
}

func init() {
	variantsCmd.Flags().StringVar(&previewLang, "lang", "de", "headword language (de, en)")
	redactCmd.Flags().StringSliceVar(&previewTerms, "term", nil, "sensitive term (repeatable)")
}
