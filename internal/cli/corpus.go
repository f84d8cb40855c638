package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	ensureForce bool
	ensureLimit int
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every uploaded document and its vectors",
	Long: `Clears all storage backends and the vector store. The seed corpus
is compiled into the configuration and stays available afterwards.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

var ensureCmd = &cobra.Command{
	Use:   "ensure-vectors",
	Short: "Embed documents that have no stored vectors",
	Args:  cobra.NoArgs,
	RunE:  runEnsure,
}

func init() {
	ensureCmd.Flags().BoolVarP(&ensureForce, "force", "f", false, "re-embed documents that already have vectors")
	ensureCmd.Flags().IntVarP(&ensureLimit, "limit", "n", 0, "maximum number of documents to embed (0 for all)")
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(ensureCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	if corpusService == nil {
		return errors.New("corpus service not configured")
	}
	if err := corpusService.ResetCorpus(cmd.Context()); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}
	cmd.Println("Corpus reset.")
	return nil
}

func runEnsure(cmd *cobra.Command, args []string) error {
	if corpusService == nil {
		return errors.New("corpus service not configured")
	}
	n, err := corpusService.EnsureVectors(cmd.Context(), ensureForce, ensureLimit)
	if err != nil {
		return fmt.Errorf("ensure failed: %w", err)
	}
	cmd.Printf("Indexed %d document(s).\n", n)
	return nil
}
