package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/embedding/hashing"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	vectormemory "github.com/custodia-labs/sercha-rag/internal/adapters/driven/vectorstore/memory"
	"github.com/custodia-labs/sercha-rag/internal/chunker"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
	"github.com/custodia-labs/sercha-rag/internal/extractors"
)

// stubLLM answers every prompt with a fixed string.
type stubLLM struct {
	mu    sync.Mutex
	calls int
}

func (l *stubLLM) Generate(_ context.Context, _ string, _ driven.GenerateOptions) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return "Cats sleep most of the day.", nil
}

func (l *stubLLM) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func (l *stubLLM) ModelName() string           { return "stub" }
func (l *stubLLM) Ping(_ context.Context) error { return nil }
func (l *stubLLM) Close() error                 { return nil }

type testEnv struct {
	llm      *stubLLM
	rag      *services.RAGService
	docs     *services.DocumentService
	settings *services.SettingsService
	dir      string
}

// setupTestServices installs a working in-memory stack and restores the
// previous services when the test ends.
func setupTestServices(t *testing.T) *testEnv {
	t.Helper()

	split, err := chunker.New(chunker.WithChunkSize(200), chunker.WithOverlap(20))
	require.NoError(t, err)
	prompts, err := file.NewPromptStore(t.TempDir())
	require.NoError(t, err)

	llm := &stubLLM{}
	store := memory.NewDocumentStore()
	engine, err := services.NewRAGService(services.EngineConfig{
		EmbeddingProvider: "local/hashing-v1",
		LLMProvider:       "stub",
		VectorBackend:     "memory",
	}, services.Dependencies{
		Chunker:   split,
		Embedder:  hashing.NewEmbeddingService(64),
		LLM:       llm,
		Vectors:   vectormemory.New(),
		Documents: store,
		Prompts:   prompts,
	})
	require.NoError(t, err)

	registry := extractors.NewRegistry()
	extractors.RegisterDefaults(registry, "")

	env := &testEnv{
		llm:      llm,
		rag:      engine,
		docs:     services.NewDocumentService(registry, store, engine, 4096),
		settings: services.NewSettingsService(memory.NewConfigStore(), nil),
		dir:      t.TempDir(),
	}

	defaults := domain.DefaultAppSettings()
	defaults.MaxFileBytes = 4096
	SetServices(&Services{
		RAG:      env.rag,
		Document: env.docs,
		Settings: env.settings,
		Config:   &defaults,
	})
	t.Cleanup(func() { SetServices(nil) })
	return env
}

// writeFile creates name under the env directory and returns its path.
func (e *testEnv) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// ingest adds a document directly through the document service.
func (e *testEnv) ingest(t *testing.T, id, filename, content string, tags ...string) {
	t.Helper()
	_, err := e.docs.IngestFile(context.Background(), ingestRequest(id, filename, content, tags))
	require.NoError(t, err)
}

func ingestRequest(id, filename, content string, tags []string) driving.IngestFileRequest {
	return driving.IngestFileRequest{
		Filename:   filename,
		Content:    []byte(content),
		DocumentID: id,
		Tags:       tags,
	}
}

// execute runs the root command with args and returns combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWithInput(t, "", args...)
}

func executeWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag to its default so runs do not leak into
// each other.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil) //nolint:errcheck
		} else {
			f.Value.Set(f.DefValue) //nolint:errcheck
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
