package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/collexdb/collex/domain/collection"
	"github.com/collexdb/collex/domain/model"
	"github.com/collexdb/collex/infrastructure/httpapi"
	"github.com/collexdb/collex/internal/config"
	"github.com/collexdb/collex/internal/log"
)

func serveCmd() *cobra.Command {
	var (
		envFile string
		home    string
		host    string
		port    int
		apiKeys []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the collection search HTTP server",
		Long: `Serve opens every collection under COLLEX_HOME/collections and exposes a
search endpoint for each.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  COLLEX_HOME                  Root directory for collections and model cache
  COLLEX_HOST                  Server host to bind to (default: 0.0.0.0)
  COLLEX_PORT                  Server port to listen on (default: 8080)
  COLLEX_LOG_LEVEL             DEBUG, INFO, WARN, ERROR (default: INFO)
  COLLEX_LOG_FORMAT            pretty, json (default: pretty)
  COLLEX_EMBEDDING_BACKEND     onnx or remote (default: onnx)
  COLLEX_EMBEDDING_ENDPOINT_*  Remote embedding endpoint configuration`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), home, envFile, host, port, apiKeys)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().StringVar(&home, "home", "", "Root directory for collections and model cache")
	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on")
	cmd.Flags().StringSliceVar(&apiKeys, "api-key", nil, "Static API key allowed to issue mutating requests (repeatable)")

	return cmd
}

func runServe(ctx context.Context, home, envFile, host string, port int, apiKeys []string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	var cfgOpts []config.AppConfigOption
	if home != "" {
		cfgOpts = append(cfgOpts, config.WithHome(home))
	}
	if host != "" {
		cfgOpts = append(cfgOpts, config.WithHost(host))
	}
	if port != 0 {
		cfgOpts = append(cfgOpts, config.WithPort(port))
	}
	cfg = cfg.Apply(cfgOpts...)

	if err := cfg.EnsureHome(); err != nil {
		return fmt.Errorf("ensure home directory: %w", err)
	}

	logger := log.NewLogger(cfg)
	slogger := logger.Slog()
	attrs := cfg.LogAttrs()
	slogger.LogAttrs(ctx, slog.LevelInfo, "starting collex", attrs...)

	models := model.NewManager()
	handles, closers, err := openCollections(ctx, cfg, models)
	if err != nil {
		return err
	}
	defer func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				slogger.Error("failed to close collection", slog.Any("error", err))
			}
		}
	}()

	server := httpapi.NewServer(cfg.Addr(), slogger, handles, apiKeys)

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-sigCtx.Done()
		slogger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slogger.Error("shutdown error", slog.Any("error", err))
		}
	}()

	slogger.Info("listening", slog.String("addr", cfg.Addr()))
	if err := server.Start(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// openCollections opens every collection directory under cfg.CollectionsDir(),
// preloading the model each one requests.
func openCollections(ctx context.Context, cfg config.AppConfig, models *model.Manager) (map[string]httpapi.CollectionHandle, []func() error, error) {
	entries, err := os.ReadDir(cfg.CollectionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]httpapi.CollectionHandle{}, nil, nil
		}
		return nil, nil, fmt.Errorf("list collections directory: %w", err)
	}

	handles := make(map[string]httpapi.CollectionHandle, len(entries))
	var closers []func() error

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()

		col, err := collection.Open(ctx, cfg.CollectionsDir(), name, models)
		if err != nil {
			return nil, nil, fmt.Errorf("open collection %s: %w", name, err)
		}
		closers = append(closers, col.Close)

		refs := col.RequestedModels()
		if len(refs) == 0 {
			continue
		}
		modelID, err := loadModel(ctx, cfg, models, refs[0].Name, refs[0].Variant, 0)
		if err != nil {
			return nil, nil, fmt.Errorf("load model for collection %s: %w", name, err)
		}

		handles[name] = httpapi.CollectionHandle{Collection: col, ModelID: modelID}
	}

	return handles, closers, nil
}
