package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove every document and vector from the knowledge base",
	Long: `Remove every document, chunk and vector from the knowledge base.

The vector collection forgets its embedding dimension and model, so run this
after switching to an embedding model whose vectors are not compatible with
the stored ones. Documents have to be ingested again afterwards.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, _ []string) error {
	if ragService == nil {
		return errors.New("rag service not configured")
	}

	if !resetYes {
		cmd.Print("This removes every document from the knowledge base. Continue? [y/N]: ")
		answer := strings.ToLower(readLine(bufio.NewReader(cmd.InOrStdin())))
		if answer != "y" && answer != "yes" {
			cmd.Println("Aborted.")
			return nil
		}
	}

	n, err := ragService.Reset(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to reset knowledge base: %w", err)
	}
	cmd.Printf("Removed %d documents.\n", n)
	return nil
}
