package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var (
	searchLimit int
	searchType  string
	searchTags  []string
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search ingested documents",
	Long: `Performs semantic search across all ingested documents and prints the
matching chunks. No answer is generated.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().StringVar(&searchType, "type", "", "only documents of this file type")
	searchCmd.Flags().StringSliceVarP(&searchTags, "tag", "t", nil, "only documents carrying all of these tags")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

type searchResultJSON struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Title      string  `json:"title"`
	ChunkID    string  `json:"chunk_id"`
	Position   int     `json:"position"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if documentService == nil {
		return errors.New("document service not configured")
	}

	opts := domain.SearchOptions{
		K:        searchLimit,
		FileType: domain.FileType(strings.ToLower(searchType)),
		Tags:     searchTags,
	}
	if opts.FileType != "" && !opts.FileType.IsValid() {
		return fmt.Errorf("unknown file type %q", searchType)
	}

	results, err := documentService.Search(cmd.Context(), query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}

	return outputSearchTable(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	out := make([]searchResultJSON, len(results))
	for i := range results {
		out[i] = searchResultJSON{
			DocumentID: results[i].Document.ID,
			Filename:   results[i].Document.Filename,
			Title:      results[i].Document.Title,
			ChunkID:    results[i].Chunk.ID,
			Position:   results[i].Chunk.Position,
			Score:      results[i].Score,
			Content:    results[i].Chunk.Content,
		}
	}
	return printJSON(cmd, out)
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		// Format: [N] Title - Snippet (Score)
		title := results[i].Document.Title
		if title == "" {
			title = results[i].Document.ID
		}

		cmd.Printf("  [%d] %s (%.2f)\n", i+1, title, results[i].Score)
		cmd.Printf("      File: %s, chunk %d\n", results[i].Document.Filename, results[i].Chunk.Position)
		if snippet := oneLine(results[i].Chunk.Content); snippet != "" {
			cmd.Printf("      %s\n", truncateRunes(snippet, 160))
		}
		cmd.Println()
	}

	return nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
