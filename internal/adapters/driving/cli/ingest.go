package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

var (
	ingestTags        []string
	ingestDescription string
	ingestReplaceID   string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Add files to the knowledge base",
	Long: `Extracts text from each file, splits it into chunks, embeds them and
stores the result. Supported formats: .txt .md .html .docx .epub .pdf.

Use --replace to re-ingest a file under an existing document id; the old
chunks are removed once the new ones are stored.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringSliceVarP(&ingestTags, "tag", "t", nil, "tag to attach (repeatable or comma-separated)")
	ingestCmd.Flags().StringVarP(&ingestDescription, "description", "d", "", "description stored with the document")
	ingestCmd.Flags().StringVar(&ingestReplaceID, "replace", "", "document id to replace (single file only)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}
	if ingestReplaceID != "" && len(args) > 1 {
		return errors.New("--replace accepts a single file")
	}

	ctx := cmd.Context()
	limit := maxUploadBytes()
	failed := 0

	for _, path := range args {
		info, err := os.Stat(path)
		if err != nil {
			cmd.PrintErrf("  %s: %v\n", path, err)
			failed++
			continue
		}
		if info.IsDir() {
			cmd.PrintErrf("  %s: is a directory (use 'sercha-rag watch' for directories)\n", path)
			failed++
			continue
		}
		if info.Size() > limit {
			cmd.PrintErrf("  %s: file is %d bytes, the limit is %d\n", path, info.Size(), limit)
			failed++
			continue
		}

		content, err := os.ReadFile(path)
		if err != nil {
			cmd.PrintErrf("  %s: %v\n", path, err)
			failed++
			continue
		}

		res, err := documentService.IngestFile(ctx, driving.IngestFileRequest{
			Filename:    filepath.Base(path),
			Content:     content,
			DocumentID:  ingestReplaceID,
			Tags:        ingestTags,
			Description: ingestDescription,
		})
		if err != nil {
			cmd.PrintErrf("  %s: %v\n", path, err)
			failed++
			continue
		}

		action := "Ingested"
		if res.Replaced {
			action = "Replaced"
		}
		cmd.Printf("%s %s\n", action, res.Filename)
		cmd.Printf("  ID:     %s\n", res.DocumentID)
		cmd.Printf("  Chunks: %d\n", res.ChunkCount)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}
