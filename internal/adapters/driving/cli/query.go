package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var (
	queryK            int
	queryDocIDs       []string
	queryConversation string
	queryJSON         bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a question about your documents",
	Long: `Retrieves the chunks most similar to the question and asks the LLM to
answer from them. The answer cites its sources.

Pass --conversation with the same id on follow-up questions to include the
recent exchange in the prompt.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize [doc-id]",
	Short: "Summarise a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runSummarize,
}

func init() {
	queryCmd.Flags().IntVarP(&queryK, "k", "k", 0, "number of chunks to retrieve (default from settings)")
	queryCmd.Flags().StringSliceVar(&queryDocIDs, "doc", nil, "restrict retrieval to these document ids")
	queryCmd.Flags().StringVarP(&queryConversation, "conversation", "c", "", "conversation id for follow-up questions")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(summarizeCmd)
}

type querySourceJSON struct {
	DocumentID     string  `json:"document_id"`
	Filename       string  `json:"filename"`
	ChunkID        string  `json:"chunk_id"`
	Position       int     `json:"position"`
	Score          float64 `json:"score"`
	Snippet        string  `json:"snippet"`
	BelowThreshold bool    `json:"below_threshold,omitempty"`
}

type queryResultJSON struct {
	Answer   string            `json:"answer"`
	Grounded bool              `json:"grounded"`
	Sources  []querySourceJSON `json:"sources"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	if ragService == nil {
		return errors.New("rag service not configured")
	}

	k := defaultK()
	if cmd.Flags().Changed("k") {
		k = queryK
	}

	question := strings.Join(args, " ")
	res, err := ragService.Query(cmd.Context(), question, domain.QueryOptions{
		K:              k,
		DocumentIDs:    queryDocIDs,
		ConversationID: queryConversation,
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return outputQueryJSON(cmd, res)
	}

	cmd.Println(res.Answer)
	if len(res.Sources) == 0 {
		return nil
	}
	cmd.Println()
	cmd.Println("Sources:")
	for i, src := range res.Sources {
		marker := ""
		if src.BelowThreshold {
			marker = " (below threshold)"
		}
		cmd.Printf("  [%d] %s #%d (%.2f)%s\n", i+1, src.Filename, src.Position, src.Score, marker)
		if src.Snippet != "" {
			cmd.Printf("      %s\n", oneLine(src.Snippet))
		}
	}
	return nil
}

func outputQueryJSON(cmd *cobra.Command, res *domain.QueryResult) error {
	out := queryResultJSON{
		Answer:   res.Answer,
		Grounded: res.Grounded,
		Sources:  make([]querySourceJSON, len(res.Sources)),
	}
	for i, src := range res.Sources {
		out.Sources[i] = querySourceJSON{
			DocumentID:     src.DocumentID,
			Filename:       src.Filename,
			ChunkID:        src.ChunkID,
			Position:       src.Position,
			Score:          src.Score,
			Snippet:        src.Snippet,
			BelowThreshold: src.BelowThreshold,
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func runSummarize(cmd *cobra.Command, args []string) error {
	if ragService == nil {
		return errors.New("rag service not configured")
	}

	summary, err := ragService.Summarize(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("summarize failed: %w", err)
	}
	cmd.Println(summary)
	return nil
}

// oneLine collapses whitespace so snippets fit on a single line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
