package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/api"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/mcp"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/watcher"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var (
	serveAddr    string
	serveMCPAddr string
	serveWatch   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Serves the knowledge base over a JSON REST API under /api/v1.

Optionally serves MCP over streamable HTTP on a second address, and keeps a
directory in sync with the knowledge base.

Examples:
  sercha-rag serve
  sercha-rag serve --addr :8080 --mcp-addr :8081
  sercha-rag serve --watch ~/Documents/notes`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from settings, "+domain.DefaultServerAddr+")")
	serveCmd.Flags().StringVar(&serveMCPAddr, "mcp-addr", "", "also serve MCP over HTTP on this address")
	serveCmd.Flags().StringVar(&serveWatch, "watch", "", "also ingest files from this directory as they change")
	rootCmd.AddCommand(serveCmd)
}

// serverAddrs resolves listen addresses from flags, then settings.
func serverAddrs() (addr, mcpAddr string) {
	addr, mcpAddr = serveAddr, serveMCPAddr
	if appSettings != nil {
		if addr == "" {
			addr = appSettings.Server.Addr
		}
		if mcpAddr == "" {
			mcpAddr = appSettings.Server.MCPAddr
		}
	}
	if addr == "" {
		addr = domain.DefaultServerAddr
	}
	return addr, mcpAddr
}

func runServe(cmd *cobra.Command, _ []string) error {
	if ragService == nil || documentService == nil {
		return errors.New("rag service not configured")
	}

	addr, mcpAddr := serverAddrs()

	server, err := api.NewServer(&api.Ports{
		RAG:            ragService,
		Document:       documentService,
		DefaultK:       defaultK(),
		MaxUploadBytes: maxUploadBytes(),
		Version:        version,
	})
	if err != nil {
		return err
	}

	var tasks []func(context.Context) error
	tasks = append(tasks, func(ctx context.Context) error { return server.Run(ctx, addr) })

	if mcpAddr != "" {
		mcpServer, err := mcp.NewServer(&mcp.Ports{RAG: ragService, Document: documentService, DefaultK: defaultK()})
		if err != nil {
			return err
		}
		tasks = append(tasks, func(ctx context.Context) error { return mcpServer.RunHTTP(ctx, mcpAddr) })
	}

	if serveWatch != "" {
		w, err := watcher.New(serveWatch, documentService, ragService)
		if err != nil {
			return err
		}
		tasks = append(tasks, w.Run)
	}

	cmd.Printf("Serving on http://%s\n", addr)
	if mcpAddr != "" {
		cmd.Printf("MCP on http://%s\n", mcpAddr)
	}
	return runAll(cmd.Context(), tasks...)
}

// runAll runs tasks until ctx is done or one fails, then stops the rest and
// returns the first error.
func runAll(ctx context.Context, tasks ...func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, len(tasks))
	for _, task := range tasks {
		go func(run func(context.Context) error) {
			errs <- run(ctx)
		}(task)
	}

	var first error
	for range tasks {
		if err := <-errs; err != nil && first == nil {
			first = fmt.Errorf("server stopped: %w", err)
			cancel()
		}
	}
	return first
}
