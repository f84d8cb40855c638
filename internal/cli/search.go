package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"lab-dashboard/internal/retrieval"

	"github.com/spf13/cobra"
)

var (
	searchMode    string
	searchNoCache bool
	searchJSON    bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Rank corpus documents for a query",
	Long: `Runs the retrieval step of the chatbot and prints the ranked documents.
Keyword mode scores titles, authors and content; semantic mode compares
embeddings and falls back to keyword scoring when they are unavailable.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchMode, "mode", "m", string(retrieval.ModeKeyword), "keyword or semantic")
	searchCmd.Flags().BoolVar(&searchNoCache, "no-cache", false, "reload the corpus before searching")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

type searchOutput struct {
	Method  string         `json:"method"`
	Results []searchResult `json:"results"`
}

type searchResult struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Author  string   `json:"author,omitempty"`
	Score   float64  `json:"score"`
	Matched []string `json:"matched,omitempty"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	out := searchService.Search(cmd.Context(), retrieval.Query{
		Text:    args[0],
		Mode:    retrieval.ParseMode(searchMode),
		NoCache: searchNoCache,
	})

	result := searchOutput{Method: string(out.Method), Results: []searchResult{}}
	for _, r := range out.Results {
		result.Results = append(result.Results, searchResult{
			ID:      r.Document.ID,
			Title:   r.Document.DisplayTitle(),
			Author:  r.Document.Author,
			Score:   r.Score,
			Matched: r.Matched,
		})
	}

	if searchJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(result.Results) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	cmd.Printf("Results (%s):\n", result.Method)
	for i, r := range result.Results {
		title := r.Title
		if title == "" {
			title = r.ID
		}
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, title, r.Score)
		if r.Author != "" {
			cmd.Printf("      Author: %s\n", r.Author)
		}
	}
	return nil
}
