package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"sopqa/internal/logger"
	"sopqa/internal/metrics"
	"sopqa/internal/server"
	"sopqa/internal/usecase"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the question-answering API over HTTP. A previously built
index is loaded at startup; if none exists, the server starts empty and
an index can be built via POST /api/ingest.

Endpoints:
  GET  /api/status    Pipeline state and index contents
  POST /api/ingest    (Re)build the index
  POST /api/ask       Answer a question
  GET  /api/sources   List indexed documents
  GET  /metrics       Prometheus metrics`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	log := logger.Component("serve")

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open index store: %w", err)
	}
	defer st.Close()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	pipeline, err := newPipeline(cfg, st, m)
	if err != nil {
		return err
	}
	if err := pipeline.Restore(); err != nil {
		log.Warn().Err(err).Msg("continuing without a restored index")
	}

	docsDir := documentsDir(cfg)
	if cfg.Documents.Watch {
		watcher, err := watchDocuments(docsDir, pipeline)
		if err != nil {
			log.Warn().Err(err).Str("dir", docsDir).Msg("document watching disabled")
		} else {
			defer watcher.Close()
		}
	}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	srv := server.New(pipeline, newLoader(cfg), docsDir, addr, m, registry)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// watchDocuments marks the index stale whenever anything under the
// documents directory changes. Rebuilding stays an explicit operation.
func watchDocuments(dir string, pipeline *usecase.Pipeline) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	log := logger.Component("watcher")
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
					log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("document changed")
					pipeline.MarkStale()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("watch error")
			}
		}
	}()
	return watcher, nil
}
