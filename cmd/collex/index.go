package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/collexdb/collex/domain/collection"
	"github.com/collexdb/collex/domain/model"
	"github.com/collexdb/collex/infrastructure/embedding"
	"github.com/collexdb/collex/internal/config"
	"github.com/collexdb/collex/internal/log"
	"github.com/collexdb/collex/internal/modelfetch"
	"github.com/collexdb/collex/internal/rowstore"
)

func indexCmd() *cobra.Command {
	var (
		envFile       string
		home          string
		collectionName string
		modelRef      string
		variant       string
		dim           int64
		backend       string
		columns       []string
		overwrite     bool
		rebuild       bool
		batchSize     int
	)

	cmd := &cobra.Command{
		Use:   "index [files...]",
		Short: "Create a collection and embed its indexed columns",
		Long: `Index creates a collection, imports the given files, and embeds each named
column through the configured embedding model. An existing collection of the
same name is replaced with --overwrite; without it, index fails.

Environment variables (see collex serve --help for the full list):
  COLLEX_HOME                 Root directory for collections and model cache
  COLLEX_EMBEDDING_BACKEND    onnx or remote (default: onnx)
  COLLEX_EMBEDDING_ENDPOINT_* Remote embedding endpoint configuration`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), indexOptions{
				envFile:        envFile,
				home:           home,
				files:          args,
				collectionName: collectionName,
				modelRef:       modelRef,
				variant:        variant,
				dim:            dim,
				backend:        backend,
				columns:        columns,
				overwrite:      overwrite,
				rebuild:        rebuild,
				batchSize:      batchSize,
			})
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().StringVar(&home, "home", "", "Root directory for collections and model cache")
	cmd.Flags().StringVar(&collectionName, "collection", "", "Collection name (required)")
	cmd.Flags().StringVar(&modelRef, "model", "", "Model reference: hf://owner/repo or a local directory (required)")
	cmd.Flags().StringVar(&variant, "variant", "f32", "Model variant to select from the model manifest")
	cmd.Flags().Int64Var(&dim, "dim", 0, "Model output dimensionality (required)")
	cmd.Flags().StringVar(&backend, "backend", "", "Embedding backend: onnx or remote (default from config)")
	cmd.Flags().StringSliceVar(&columns, "column", nil, "Column to embed (repeatable, required)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Remove an existing collection of the same name first")
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "Drop and recreate each column's index before embedding")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Rows per embedding batch (default from config)")

	_ = cmd.MarkFlagRequired("collection")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("dim")
	_ = cmd.MarkFlagRequired("column")

	return cmd
}

type indexOptions struct {
	envFile        string
	home           string
	files          []string
	collectionName string
	modelRef       string
	variant        string
	dim            int64
	backend        string
	columns        []string
	overwrite      bool
	rebuild        bool
	batchSize      int
}

func runIndex(ctx context.Context, opts indexOptions) error {
	cfg, err := loadConfig(opts.envFile)
	if err != nil {
		return err
	}
	var cfgOpts []config.AppConfigOption
	if opts.home != "" {
		cfgOpts = append(cfgOpts, config.WithHome(opts.home))
	}
	if opts.backend != "" {
		cfgOpts = append(cfgOpts, config.WithEmbeddingBackend(opts.backend))
	}
	if opts.batchSize > 0 {
		cfgOpts = append(cfgOpts, config.WithBatchSize(opts.batchSize))
	}
	cfg = cfg.Apply(cfgOpts...)

	if err := cfg.EnsureHome(); err != nil {
		return fmt.Errorf("ensure home directory: %w", err)
	}

	logger := log.NewLogger(cfg)
	slogger := logger.Slog()
	slogger.Info("starting collex index", slog.String("collection", opts.collectionName))

	models := model.NewManager()
	modelID, err := loadModel(ctx, cfg, models, opts.modelRef, opts.variant, opts.dim)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}

	col, err := collection.Create(ctx, cfg.CollectionsDir(), opts.collectionName,
		opts.modelRef, opts.variant, opts.overwrite, models)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	defer col.Close()

	for _, file := range opts.files {
		format := formatFromExt(file)
		slogger.Info("importing file", slog.String("path", file))
		if err := col.Import(ctx, file, format); err != nil {
			return fmt.Errorf("import %s: %w", file, err)
		}
	}

	batchSize := cfg.BatchSize()
	sink := newTerminalProgressSink(slogger)

	for _, column := range opts.columns {
		slogger.Info("embedding column", slog.String("column", column))
		if err := col.EmbedColumn(ctx, column, batchSize, modelID, opts.rebuild, sink); err != nil {
			return fmt.Errorf("embed column %s: %w", column, err)
		}
	}

	slogger.Info("index complete", slog.String("collection", opts.collectionName))
	return nil
}

// loadModel resolves modelRef/variant for the configured backend and
// registers the resulting embedding backend with the manager.
func loadModel(ctx context.Context, cfg config.AppConfig, models *model.Manager, modelRef, variant string, dim int64) (uint32, error) {
	switch cfg.EmbeddingBackend() {
	case "remote":
		backend := embedding.NewRemoteBackend(cfg.EmbeddingEndpoint(), dim)
		return models.Register(ctx, backend)
	default:
		fetcher := modelfetch.New(cfg.ModelsDir())
		resolved, err := fetcher.Resolve(ctx, modelRef, variant, cfg.EmbeddingEndpoint().APIKey())
		if err != nil {
			return 0, err
		}
		dir := resolved.Dir
		if !strings.HasPrefix(modelRef, "hf://") {
			dir = modelRef
		}
		backend := embedding.NewONNXBackend(dir, dim)
		return models.Register(ctx, backend)
	}
}

func formatFromExt(path string) rowstore.Format {
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return rowstore.FormatParquet
	}
	return rowstore.FormatJSONL
}

// terminalProgressSink writes human-readable progress lines through the
// structured logger, used by the index command.
type terminalProgressSink struct {
	logger *slog.Logger
	last   time.Time
}

func newTerminalProgressSink(logger *slog.Logger) *terminalProgressSink {
	return &terminalProgressSink{logger: logger}
}

func (s *terminalProgressSink) Report(done, total int, eta time.Duration) {
	now := time.Now()
	if !s.last.IsZero() && now.Sub(s.last) < 500*time.Millisecond && done != total {
		return
	}
	s.last = now
	s.logger.Info("embedding progress",
		slog.Int("done", done),
		slog.Int("total", total),
		slog.Duration("eta", eta),
	)
}

var _ collection.ProgressSink = (*terminalProgressSink)(nil)
