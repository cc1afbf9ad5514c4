package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage ingested documents",
	Long:  `List, view, update, or delete documents in the knowledge base.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentContentCmd = &cobra.Command{
	Use:   "content [doc-id]",
	Short: "Print document content",
	Long:  `Prints the document text reconstructed from its stored chunks.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentContent,
}

var documentUpdateCmd = &cobra.Command{
	Use:   "update [doc-id]",
	Short: "Change document tags or description",
	Long: `Replaces the tags and/or description of a document. Tags are
normalised (trimmed, lower-cased, de-duplicated). Pass --tag "" to clear them.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentUpdate,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

// Flags for document subcommands.
var (
	documentListType  string
	documentListTag   string
	documentListJSON  bool
	documentTags      []string
	documentDescribe  string
	documentGetAsJSON bool
)

func init() {
	documentListCmd.Flags().StringVar(&documentListType, "type", "", "only documents of this file type")
	documentListCmd.Flags().StringVar(&documentListTag, "tag", "", "only documents carrying this tag")
	documentListCmd.Flags().BoolVar(&documentListJSON, "json", false, "output as JSON")
	documentGetCmd.Flags().BoolVar(&documentGetAsJSON, "json", false, "output as JSON")
	documentUpdateCmd.Flags().StringSliceVarP(&documentTags, "tag", "t", nil, "new tags (replaces existing)")
	documentUpdateCmd.Flags().StringVarP(&documentDescribe, "description", "d", "", "new description")

	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentContentCmd)
	documentCmd.AddCommand(documentUpdateCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

// documentJSON is the JSON form of a document.
type documentJSON struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	FileType    string         `json:"file_type"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Tags        []string       `json:"tags"`
	SizeBytes   int64          `json:"size_bytes"`
	ChunkCount  int            `json:"chunk_count"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	UploadedAt  string         `json:"uploaded_at"`
	UpdatedAt   string         `json:"updated_at"`
}

func toDocumentJSON(doc *domain.Document) documentJSON {
	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}
	return documentJSON{
		ID:          doc.ID,
		Filename:    doc.Filename,
		FileType:    string(doc.FileType),
		Title:       doc.Title,
		Description: doc.Description,
		Tags:        tags,
		SizeBytes:   doc.SizeBytes,
		ChunkCount:  doc.ChunkCount,
		Metadata:    doc.Metadata,
		UploadedAt:  doc.UploadedAt.Format(timeLayoutJSON),
		UpdatedAt:   doc.UpdatedAt.Format(timeLayoutJSON),
	}
}

const (
	timeLayoutJSON = "2006-01-02T15:04:05Z07:00"
	timeLayoutText = "2006-01-02 15:04:05"
)

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	filter := domain.ListFilter{
		FileType: domain.FileType(strings.ToLower(documentListType)),
		Tag:      documentListTag,
	}
	if filter.FileType != "" && !filter.FileType.IsValid() {
		return fmt.Errorf("unknown file type %q", documentListType)
	}

	docs, err := documentService.List(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if documentListJSON {
		out := make([]documentJSON, len(docs))
		for i := range docs {
			out[i] = toDocumentJSON(&docs[i])
		}
		return printJSON(cmd, out)
	}

	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	cmd.Println("Documents:")
	cmd.Println()
	for i := range docs {
		cmd.Printf("  %s\n", docs[i].ID)
		cmd.Printf("    Title:  %s\n", docs[i].Title)
		cmd.Printf("    File:   %s (%s, %d chunks)\n", docs[i].Filename, docs[i].FileType, docs[i].ChunkCount)
		if len(docs[i].Tags) > 0 {
			cmd.Printf("    Tags:   %s\n", strings.Join(docs[i].Tags, ", "))
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	doc, err := documentService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	if documentGetAsJSON {
		return printJSON(cmd, toDocumentJSON(doc))
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Title:       %s\n", doc.Title)
	cmd.Printf("  Filename:    %s\n", doc.Filename)
	cmd.Printf("  Type:        %s\n", doc.FileType)
	cmd.Printf("  Size:        %d bytes\n", doc.SizeBytes)
	cmd.Printf("  Chunks:      %d\n", doc.ChunkCount)
	if doc.Description != "" {
		cmd.Printf("  Description: %s\n", doc.Description)
	}
	if len(doc.Tags) > 0 {
		cmd.Printf("  Tags:        %s\n", strings.Join(doc.Tags, ", "))
	}
	cmd.Printf("  Uploaded:    %s\n", doc.UploadedAt.Format(timeLayoutText))
	cmd.Printf("  Updated:     %s\n", doc.UpdatedAt.Format(timeLayoutText))

	if len(doc.Metadata) > 0 {
		cmd.Println("\n  Metadata:")
		for k, v := range doc.Metadata {
			cmd.Printf("    %s: %v\n", k, v)
		}
	}

	return nil
}

func runDocumentContent(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	content, err := documentService.GetContent(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get content: %w", err)
	}

	cmd.Println(content)
	return nil
}

func runDocumentUpdate(cmd *cobra.Command, args []string) error {
	if ragService == nil {
		return errors.New("rag service not configured")
	}

	var update domain.MetadataUpdate
	if cmd.Flags().Changed("tag") {
		tags := make([]string, 0, len(documentTags))
		for _, t := range documentTags {
			if t != "" {
				tags = append(tags, t)
			}
		}
		update.Tags = &tags
	}
	if cmd.Flags().Changed("description") {
		desc := documentDescribe
		update.Description = &desc
	}
	if update.Tags == nil && update.Description == nil {
		return errors.New("nothing to update: pass --tag and/or --description")
	}

	doc, err := ragService.UpdateMetadata(cmd.Context(), args[0], update)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	cmd.Printf("Updated document: %s\n", doc.ID)
	cmd.Printf("  Tags:        %s\n", strings.Join(doc.Tags, ", "))
	cmd.Printf("  Description: %s\n", doc.Description)
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if ragService == nil {
		return errors.New("rag service not configured")
	}

	if err := ragService.DeleteDocument(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Deleted document: %s\n", args[0])
	return nil
}
