package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/watcher"
)

var (
	watchTags     []string
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Keep a directory in sync with the knowledge base",
	Long: `Ingests every supported file under the directory, then watches it:
created or modified files are re-ingested once they stop changing, and
removed files are deleted from the knowledge base.

The directory defaults to the watch.dir setting.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringSliceVarP(&watchTags, "tag", "t", nil, "tag attached to every ingested file")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watcher.DefaultDebounce, "quiet period before a changed file is ingested")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ragService == nil || documentService == nil {
		return errors.New("rag service not configured")
	}

	dir := ""
	if len(args) == 1 {
		dir = args[0]
	} else if appSettings != nil {
		dir = appSettings.WatchDir
	}
	if dir == "" {
		return errors.New("no directory given and watch.dir is not set")
	}

	w, err := watcher.New(dir, documentService, ragService,
		watcher.WithDebounce(watchDebounce),
		watcher.WithTags(watchTags...),
	)
	if err != nil {
		return err
	}

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", dir)
	return w.Run(cmd.Context())
}
