package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge base statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statsCmd)
}

type statsJSONOutput struct {
	TotalDocuments      int            `json:"total_documents"`
	TotalChunks         int            `json:"total_chunks"`
	TotalBytes          int64          `json:"total_bytes"`
	EmbeddingProvider   string         `json:"embedding_provider"`
	LLMProvider         string         `json:"llm_provider"`
	EmbeddingDimensions int            `json:"embedding_dimensions"`
	VectorBackend       string         `json:"vector_backend"`
	FileTypes           map[string]int `json:"file_types"`
	TopTags             map[string]int `json:"top_tags"`
}

func runStats(cmd *cobra.Command, _ []string) error {
	if ragService == nil {
		return errors.New("rag service not configured")
	}

	stats, err := ragService.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	if statsJSON {
		out := statsJSONOutput{
			TotalDocuments:      stats.TotalDocuments,
			TotalChunks:         stats.TotalChunks,
			TotalBytes:          stats.TotalBytes,
			EmbeddingProvider:   stats.EmbeddingProvider,
			LLMProvider:         stats.LLMProvider,
			EmbeddingDimensions: stats.EmbeddingDimensions,
			VectorBackend:       stats.VectorBackend,
			FileTypes:           make(map[string]int, len(stats.FileTypes)),
			TopTags:             make(map[string]int, len(stats.TopTags)),
		}
		for ft, n := range stats.FileTypes {
			out.FileTypes[string(ft)] = n
		}
		for _, tc := range stats.TopTags {
			out.TopTags[tc.Tag] = tc.Count
		}
		return printJSON(cmd, out)
	}

	cmd.Println("Knowledge Base")
	cmd.Println("==============")
	cmd.Printf("  Documents:  %d\n", stats.TotalDocuments)
	cmd.Printf("  Chunks:     %d\n", stats.TotalChunks)
	cmd.Printf("  Size:       %d bytes\n", stats.TotalBytes)
	cmd.Println()
	cmd.Println("[Providers]")
	cmd.Printf("  Embedding:  %s (%d dimensions)\n", stats.EmbeddingProvider, stats.EmbeddingDimensions)
	cmd.Printf("  LLM:        %s\n", stats.LLMProvider)
	cmd.Printf("  Vectors:    %s\n", stats.VectorBackend)

	if len(stats.FileTypes) > 0 {
		cmd.Println()
		cmd.Println("[File Types]")
		types := make([]string, 0, len(stats.FileTypes))
		for ft := range stats.FileTypes {
			types = append(types, string(ft))
		}
		sort.Strings(types)
		for _, ft := range types {
			cmd.Printf("  %-12s %d\n", ft, stats.FileTypes[domain.FileType(ft)])
		}
	}

	if len(stats.TopTags) > 0 {
		cmd.Println()
		cmd.Println("[Top Tags]")
		for _, tc := range stats.TopTags {
			cmd.Printf("  %-12s %d\n", tc.Tag, tc.Count)
		}
	}

	if len(stats.LargestDocuments) > 0 {
		cmd.Println()
		cmd.Println("[Largest Documents]")
		for _, d := range stats.LargestDocuments {
			cmd.Printf("  %s  %s (%d bytes, %d chunks)\n", d.DocumentID, d.Filename, d.SizeBytes, d.ChunkCount)
		}
	}

	return nil
}
