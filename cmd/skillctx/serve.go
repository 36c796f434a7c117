package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/opus67/skillctx/pkg/engine"
	"github.com/opus67/skillctx/pkg/history"
	"github.com/opus67/skillctx/pkg/logger"
	"github.com/opus67/skillctx/pkg/presenter"
	"github.com/opus67/skillctx/pkg/server"
	"github.com/opus67/skillctx/pkg/watcher"
)

// ServeConfig holds configuration for the serve command
type ServeConfig struct {
	Host    string
	Port    int
	Watch   bool
	History bool
}

// NewServeConfig creates a new ServeConfig with default values
func NewServeConfig() *ServeConfig {
	return &ServeConfig{
		Host:    "localhost",
		Port:    8315,
		Watch:   true,
		History: true,
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the selection and admin APIs over HTTP",
	Long: `Start an HTTP server exposing the query API (POST /api/select) and the
admin API (POST /api/reload, GET /api/stats), plus skill listing and
selection history endpoints. Skill directories are watched for changes and
reloaded automatically unless --watch=false.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		config := getServeConfigFromFlags(cmd)
		runServe(ctx, config)
	},
}

func init() {
	defaults := NewServeConfig()
	serveCmd.Flags().String("host", defaults.Host, "Host to bind the server to")
	serveCmd.Flags().Int("port", defaults.Port, "Port to bind the server to")
	serveCmd.Flags().Bool("watch", defaults.Watch, "Reload automatically when skill directories change")
	serveCmd.Flags().Bool("history", defaults.History, "Record selections to the history database")
	rootCmd.AddCommand(serveCmd)
}

func getServeConfigFromFlags(cmd *cobra.Command) *ServeConfig {
	config := NewServeConfig()
	if host, err := cmd.Flags().GetString("host"); err == nil {
		config.Host = host
	}
	if port, err := cmd.Flags().GetInt("port"); err == nil {
		config.Port = port
	}
	if watch, err := cmd.Flags().GetBool("watch"); err == nil {
		config.Watch = watch
	}
	if hist, err := cmd.Flags().GetBool("history"); err == nil {
		config.History = hist
	}
	return config
}

func runServe(ctx context.Context, config *ServeConfig) {
	shutdownTracer, err := initTracing(ctx)
	if err != nil {
		presenter.Warning("Tracing initialization failed: " + err.Error())
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownTracer(shutdownCtx)
		}()
	}

	var opts []engine.Option
	var store *history.Store
	if config.History {
		dbPath, err := history.DefaultDBPath()
		if err == nil {
			store, err = history.Open(ctx, dbPath)
		}
		if err != nil {
			presenter.Warning("Selection history disabled: " + err.Error())
		} else {
			defer store.Close()
			opts = append(opts, engine.WithRecorder(store))
		}
	}

	eng, source, err := loadEngine(ctx, opts...)
	if err != nil {
		presenter.Error(err, "Failed to load skills")
		os.Exit(1)
	}
	presenter.Success("Loaded skill registry")

	if config.Watch {
		w, err := watcher.New(eng, source, source.Dirs(), watcher.DefaultDebounce)
		if err != nil {
			presenter.Warning("Directory watching disabled: " + err.Error())
		} else {
			go func() {
				if err := w.Run(ctx); err != nil {
					logger.G(ctx).WithError(err).Warn("directory watcher stopped")
				}
			}()
		}
	}

	srv, err := server.New(eng, source, store, &server.Config{Host: config.Host, Port: config.Port})
	if err != nil {
		presenter.Error(err, "Failed to create server")
		os.Exit(1)
	}

	presenter.Info(fmt.Sprintf("Serving on http://%s:%d", config.Host, config.Port))
	if err := srv.Start(ctx); err != nil {
		presenter.Error(err, "Server exited")
		os.Exit(1)
	}
}
