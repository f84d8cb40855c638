// Package cli implements labctl, the operator tool for the dashboard corpus.
package cli

import (
	"context"

	"lab-dashboard/internal/retrieval"

	"github.com/spf13/cobra"
)

// CorpusService is the document side labctl drives
type CorpusService interface {
	ResetCorpus(ctx context.Context) error
	EnsureVectors(ctx context.Context, force bool, limit int) (int, error)
}

// SearchService runs retrieval without calling the completion oracle
type SearchService interface {
	Search(ctx context.Context, q retrieval.Query) retrieval.Outcome
}

var (
	corpusService CorpusService
	searchService SearchService
)

var rootCmd = &cobra.Command{
	Use:   "labctl",
	Short: "Manage the lab dashboard corpus",
	Long: `labctl resets the document store, backfills embeddings and runs
retrieval queries against the same backends the API server uses.`,
	SilenceUsage: true,
}

// SetServices wires the commands to their backends
func SetServices(corpus CorpusService, search SearchService) {
	corpusService = corpus
	searchService = search
}

func Execute() error {
	return rootCmd.Execute()
}
