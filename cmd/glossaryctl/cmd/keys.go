package cmd

import (
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/auth/apikey"
	"github.com/spf13/cobra"
)

var (
	keyName      string
	keyAdmin     bool
	keyRateLimit int
	keyExpiresIn time.Duration
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys",
}

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an API key and print it once",
	RunE: func(cmd *cobra.Command, args []string) error {
		if keyName == "" {
			return fmt.Errorf("--name is required")
		}
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

		var expiresAt *time.Time
		if keyExpiresIn > 0 {
			t := time.Now().Add(keyExpiresIn)
			expiresAt = &t
		}
		raw, err := apikey.NewValidator(db).CreateKey(cmd.Context(), keyName, keyRateLimit, keyAdmin, expiresAt)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), raw)
		return nil
	},
}

func init() {
	keysCreateCmd.Flags().StringVar(&keyName, "name", "", "key owner")
	keysCreateCmd.Flags().BoolVar(&keyAdmin, "admin", false, "allow admin routes")
	keysCreateCmd.Flags().IntVar(&keyRateLimit, "rate-limit", 600, "requests per rate limit window")
	keysCreateCmd.Flags().DurationVar(&keyExpiresIn, "expires-in", 0, "lifetime, e.g. 720h (default never)")
	keysCmd.AddCommand(keysCreateCmd)
}
