// Package cli implements the sercha-rag command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

// Services used by the commands. Set by bootstrap or SetServices.
var (
	ragService      driving.RAGService
	documentService driving.DocumentService
	settingsService driving.SettingsService

	// appSettings is the settings snapshot the services were built from.
	appSettings *domain.AppSettings

	closeServices func() error
)

// Global flags.
var (
	configPath string
	verbose    bool
	ephemeral  bool
)

// Command annotations controlling what bootstrap builds.
const (
	annotationServices = "services"
	servicesNone       = "none"
	servicesSettings   = "settings"
)

// Services are the driving ports behind the commands.
type Services struct {
	RAG      driving.RAGService
	Document driving.DocumentService
	Settings driving.SettingsService

	// Config is the settings snapshot used for defaults such as k and listen
	// addresses. Nil means built-in defaults.
	Config *domain.AppSettings

	// Close releases the services. May be nil.
	Close func() error
}

// BootstrapOptions carries the global flags into service construction.
type BootstrapOptions struct {
	ConfigPath string
	Ephemeral  bool

	// SettingsOnly asks for the settings service alone; no engine is built.
	SettingsOnly bool
}

// BootstrapFunc builds the services for a command.
type BootstrapFunc func(ctx context.Context, opts BootstrapOptions) (*Services, error)

var bootstrap BootstrapFunc

// SetBootstrap installs the function that builds services before a command runs.
func SetBootstrap(fn BootstrapFunc) {
	bootstrap = fn
}

// SetServices installs services directly. Commands then skip bootstrap.
func SetServices(s *Services) {
	if s == nil {
		ragService, documentService, settingsService = nil, nil, nil
		appSettings, closeServices = nil, nil
		return
	}
	ragService = s.RAG
	documentService = s.Document
	settingsService = s.Settings
	appSettings = s.Config
	closeServices = s.Close
}

var rootCmd = &cobra.Command{
	Use:   "sercha-rag",
	Short: "Ask questions about your documents",
	Long: `sercha-rag ingests documents into a local knowledge base and answers
questions grounded in them using retrieval-augmented generation.

Documents (text, markdown, html, docx, epub, pdf) are split into chunks,
embedded, and stored in a vector store. Questions retrieve the most similar
chunks and an LLM answers from them, citing its sources.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setupServices,
	PersistentPostRunE: teardownServices,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.sercha-rag/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "keep documents and vectors in memory only")
}

// Execute runs the root command with a context cancelled on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// requiredServices reports what the command needs, walking up to the first
// ancestor that declares it.
func requiredServices(cmd *cobra.Command) string {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "help" || c.Name() == "completion" {
			return servicesNone
		}
		if v, ok := c.Annotations[annotationServices]; ok {
			return v
		}
	}
	return ""
}

func setupServices(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	need := requiredServices(cmd)
	if bootstrap == nil || need == servicesNone {
		return nil
	}
	if settingsService != nil && (need == servicesSettings || ragService != nil) {
		return nil
	}

	svc, err := bootstrap(cmd.Context(), BootstrapOptions{
		ConfigPath:   configPath,
		Ephemeral:    ephemeral,
		SettingsOnly: need == servicesSettings,
	})
	if err != nil {
		return fmt.Errorf("starting: %w", err)
	}
	SetServices(svc)
	return nil
}

func teardownServices(_ *cobra.Command, _ []string) error {
	if closeServices == nil {
		return nil
	}
	err := closeServices()
	closeServices = nil
	return err
}

// defaultK is the retrieval depth used when a command is given no --k.
func defaultK() int {
	if appSettings != nil && appSettings.RAG.DefaultK > 0 {
		return appSettings.RAG.DefaultK
	}
	return domain.DefaultK
}

func maxUploadBytes() int64 {
	if appSettings != nil && appSettings.MaxFileBytes > 0 {
		return appSettings.MaxFileBytes
	}
	return domain.DefaultMaxFileBytes
}
