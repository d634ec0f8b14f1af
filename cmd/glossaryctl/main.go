// Command glossaryctl is the operator CLI: schema migration, index seeding,
// API key creation, and offline previews of variants, lemmas and redaction.
package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/cmd/glossaryctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
